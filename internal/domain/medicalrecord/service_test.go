package medicalrecord

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oxycare/oxycare/internal/domain/patient"
	"github.com/oxycare/oxycare/internal/platform/apperr"
	"github.com/oxycare/oxycare/pkg/civil"
	"github.com/oxycare/oxycare/pkg/pagination"
)

type mockRepo struct {
	store map[uuid.UUID]*Record
}

func newMockRepo() *mockRepo {
	return &mockRepo{store: make(map[uuid.UUID]*Record)}
}

func (m *mockRepo) Create(_ context.Context, r *Record) error {
	r.ID = uuid.New()
	r.CreatedAt = time.Now()
	r.UpdatedAt = r.CreatedAt
	if r.ResultatsExamens == nil {
		r.ResultatsExamens = map[string][]map[string]interface{}{}
	}
	cp := *r
	m.store[r.ID] = &cp
	return nil
}

func (m *mockRepo) GetByID(_ context.Context, id uuid.UUID) (*Record, error) {
	r, ok := m.store[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *r
	return &cp, nil
}

func (m *mockRepo) Update(_ context.Context, r *Record) error {
	if _, ok := m.store[r.ID]; !ok {
		return ErrNotFound
	}
	cp := *r
	m.store[r.ID] = &cp
	return nil
}

func (m *mockRepo) List(_ context.Context, f Filter, _ pagination.Params) ([]*Record, int, error) {
	out := []*Record{}
	for _, r := range m.store {
		if f.PatientID != nil && r.PatientID != *f.PatientID {
			continue
		}
		if f.Actif != nil && r.Actif != *f.Actif {
			continue
		}
		out = append(out, r)
	}
	return out, len(out), nil
}

func (m *mockRepo) AppendExamResult(_ context.Context, id uuid.UUID, date string, result map[string]interface{}) (*Record, error) {
	r, ok := m.store[id]
	if !ok {
		return nil, ErrNotFound
	}
	r.ResultatsExamens[date] = append(r.ResultatsExamens[date], result)
	cp := *r
	return &cp, nil
}

func (m *mockRepo) AppendDocument(_ context.Context, id uuid.UUID, doc Document) (*Record, error) {
	r, ok := m.store[id]
	if !ok {
		return nil, ErrNotFound
	}
	r.DocumentsExamens = append(r.DocumentsExamens, doc)
	cp := *r
	return &cp, nil
}

type stubPatients struct {
	active   map[uuid.UUID]bool
	inactive map[uuid.UUID]bool
}

func (s *stubPatients) RequireActive(_ context.Context, id uuid.UUID) error {
	if !s.active[id] {
		return patient.ErrNotFound
	}
	return nil
}

func (s *stubPatients) Exists(_ context.Context, id uuid.UUID) error {
	if !s.active[id] && !s.inactive[id] {
		return patient.ErrNotFound
	}
	return nil
}

var fixedNow = time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC)

func newTestService() (*Service, *mockRepo, uuid.UUID) {
	pid := uuid.New()
	repo := newMockRepo()
	svc := NewService(repo, &stubPatients{active: map[uuid.UUID]bool{pid: true}}, zerolog.Nop())
	svc.now = func() time.Time { return fixedNow }
	return svc, repo, pid
}

func day(s string) civil.Date {
	d, err := civil.Parse(s)
	if err != nil {
		panic(err)
	}
	return d
}

func validRecord(pid uuid.UUID) *Record {
	return &Record{
		PatientID:           pid,
		DateDiagnostic:      day("2024-04-02"),
		MedecinPrescripteur: "Dr Lefevre",
		Diagnostic:          "BPCO stade III",
		TraitementType:      "oxygénothérapie",
		TraitementDetails:   "2 L/min au repos, 3 L/min à l'effort",
		DateDebutTraitement: day("2024-04-05"),
	}
}

func TestCreate_RoundTrip(t *testing.T) {
	svc, _, pid := newTestService()
	r := validRecord(pid)
	require.NoError(t, svc.Create(context.Background(), r))

	got, err := svc.Get(context.Background(), r.ID)
	require.NoError(t, err)
	assert.Equal(t, "BPCO stade III", got.Diagnostic)
	assert.Equal(t, "2024-04-05", got.DateDebutTraitement.String())
	assert.True(t, got.Actif)
	assert.NotNil(t, got.ParametresTherapeutiques)
	assert.False(t, got.CreatedAt.IsZero())
}

func TestCreate_Validation(t *testing.T) {
	svc, _, pid := newTestService()
	r := validRecord(pid)
	r.Diagnostic = ""
	fin := day("2024-04-01")
	r.DateFinTraitement = &fin

	err := svc.Create(context.Background(), r)
	var appErr *apperr.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, apperr.KindValidation, appErr.Kind)
	assert.Contains(t, appErr.Fields, "diagnostic")
	assert.Contains(t, appErr.Fields, "date_fin_traitement")
}

func TestCreate_UnknownPatient(t *testing.T) {
	svc, repo, _ := newTestService()
	err := svc.Create(context.Background(), validRecord(uuid.New()))
	assert.ErrorIs(t, err, patient.ErrNotFound)
	assert.Empty(t, repo.store)
}

func TestUpdateAndDeactivate(t *testing.T) {
	svc, _, pid := newTestService()
	r := validRecord(pid)
	require.NoError(t, svc.Create(context.Background(), r))

	freq := "mensuelle"
	got, err := svc.Update(context.Background(), r.ID, Patch{FrequenceSuivi: &freq})
	require.NoError(t, err)
	require.NotNil(t, got.FrequenceSuivi)
	assert.Equal(t, "mensuelle", *got.FrequenceSuivi)

	require.NoError(t, svc.Deactivate(context.Background(), r.ID))
	items, total, err := svc.ForPatient(context.Background(), pid, pagination.Params{Limit: 20})
	require.NoError(t, err)
	assert.Equal(t, 0, total)
	assert.Empty(t, items)

	_, err = svc.Update(context.Background(), uuid.New(), Patch{})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestAddExam_GroupsByDate(t *testing.T) {
	svc, _, pid := newTestService()
	r := validRecord(pid)
	require.NoError(t, svc.Create(context.Background(), r))

	_, err := svc.AddExam(context.Background(), r.ID, ExamInput{Result: map[string]interface{}{"spo2": 91}})
	require.NoError(t, err)
	d := day("2024-05-20")
	_, err = svc.AddExam(context.Background(), r.ID, ExamInput{Date: &d, Result: map[string]interface{}{"pao2": 62}})
	require.NoError(t, err)
	got, err := svc.AddExam(context.Background(), r.ID, ExamInput{Result: map[string]interface{}{"spo2": 93}})
	require.NoError(t, err)

	assert.Len(t, got.ResultatsExamens["2024-06-01"], 2)
	assert.Len(t, got.ResultatsExamens["2024-05-20"], 1)

	_, err = svc.AddExam(context.Background(), r.ID, ExamInput{})
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
}

func TestAddDocument(t *testing.T) {
	svc, _, pid := newTestService()
	r := validRecord(pid)
	require.NoError(t, svc.Create(context.Background(), r))

	got, err := svc.AddDocument(context.Background(), r.ID, DocumentInput{Path: "exams/gazo.pdf", Type: "gazométrie"})
	require.NoError(t, err)
	require.Len(t, got.DocumentsExamens, 1)
	assert.Equal(t, "2024-06-01", got.DocumentsExamens[0].DateAjout)

	_, err = svc.AddDocument(context.Background(), uuid.New(), DocumentInput{Path: "a", Type: "b"})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestForPatient_UnknownPatient(t *testing.T) {
	svc, _, _ := newTestService()
	_, _, err := svc.ForPatient(context.Background(), uuid.New(), pagination.Params{Limit: 20})
	assert.ErrorIs(t, err, patient.ErrNotFound)
}

func TestCreateRecordHandler(t *testing.T) {
	svc, _, pid := newTestService()
	h := NewHandler(svc)
	body := `{"patient_id":"` + pid.String() + `","date_diagnostic":"2024-04-02",
		"medecin_prescripteur":"Dr Lefevre","diagnostic":"SAOS","traitement_type":"PPC",
		"traitement_details":"pression 9 cmH2O","date_debut_traitement":"2024-04-10",
		"parametres_therapeutiques":{"pression":9}}`
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()

	require.NoError(t, h.CreateRecord(echo.New().NewContext(req, rec)))
	assert.Equal(t, http.StatusCreated, rec.Code)

	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	assert.Equal(t, "SAOS", out["diagnostic"])
	assert.Equal(t, map[string]interface{}{"pression": float64(9)}, out["parametres_therapeutiques"])
}

func TestAddExamHandler_RejectsUnknownKeys(t *testing.T) {
	svc, _, _ := newTestService()
	h := NewHandler(svc)
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"resultat":{"spo2":90},"foo":1}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	c := echo.New().NewContext(req, httptest.NewRecorder())
	c.SetParamNames("id")
	c.SetParamValues(uuid.New().String())

	assert.Equal(t, apperr.KindValidation, apperr.KindOf(h.AddExam(c)))
}

package invoicing

import (
	"bytes"
	"context"
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
	"github.com/xuri/excelize/v2"

	"github.com/oxycare/oxycare/internal/domain/catalog"
	"github.com/oxycare/oxycare/internal/domain/equipment"
	"github.com/oxycare/oxycare/internal/domain/insurance"
	"github.com/oxycare/oxycare/internal/domain/intervention"
	"github.com/oxycare/oxycare/internal/domain/patient"
	"github.com/oxycare/oxycare/internal/domain/rental"
	"github.com/oxycare/oxycare/internal/platform/apperr"
	"github.com/oxycare/oxycare/internal/platform/db"
	"github.com/oxycare/oxycare/pkg/civil"
	"github.com/oxycare/oxycare/pkg/pagination"
)

type mockRepo struct {
	invoices map[uuid.UUID]*Invoice
	items    map[uuid.UUID][]*Item
	// collisions makes the next Create calls fail as duplicates.
	collisions int
}

func newMockRepo() *mockRepo {
	return &mockRepo{invoices: map[uuid.UUID]*Invoice{}, items: map[uuid.UUID][]*Item{}}
}

func (m *mockRepo) Create(_ context.Context, inv *Invoice) error {
	if m.collisions > 0 {
		m.collisions--
		return ErrDuplicateNumber
	}
	for _, existing := range m.invoices {
		if existing.NumeroFacture == inv.NumeroFacture {
			return ErrDuplicateNumber
		}
	}
	inv.ID = uuid.New()
	cp := *inv
	m.invoices[inv.ID] = &cp
	return nil
}

func (m *mockRepo) GetByID(_ context.Context, id uuid.UUID) (*Invoice, error) {
	inv, ok := m.invoices[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *inv
	return &cp, nil
}

func (m *mockRepo) Update(_ context.Context, inv *Invoice) error {
	if _, ok := m.invoices[inv.ID]; !ok {
		return ErrNotFound
	}
	cp := *inv
	m.invoices[inv.ID] = &cp
	return nil
}

func (m *mockRepo) List(_ context.Context, f Filter, _ pagination.Params) ([]*Invoice, int, error) {
	out := []*Invoice{}
	for _, inv := range m.invoices {
		if f.Statut != nil && inv.Statut != *f.Statut {
			continue
		}
		cp := *inv
		out = append(out, &cp)
	}
	return out, len(out), nil
}

func (m *mockRepo) ListItems(_ context.Context, id uuid.UUID) ([]*Item, error) {
	return m.items[id], nil
}

func (m *mockRepo) ReplaceItems(_ context.Context, id uuid.UUID, items []*Item) error {
	for _, it := range items {
		it.ID = uuid.New()
		it.FactureID = id
	}
	m.items[id] = items
	return nil
}

type stubPatients map[uuid.UUID]bool

func (s stubPatients) RequireActive(_ context.Context, id uuid.UUID) error {
	if !s[id] {
		return patient.ErrNotFound
	}
	return nil
}

type stubInsurers struct {
	insurer  uuid.UUID
	coverage *insurance.Coverage
}

func (s *stubInsurers) GetInsurance(_ context.Context, id uuid.UUID) (*insurance.Insurance, error) {
	if id != s.insurer {
		return nil, insurance.ErrInsuranceNotFound
	}
	return &insurance.Insurance{ID: id}, nil
}

func (s *stubInsurers) CoverageFor(_ context.Context, _, _ uuid.UUID, _ civil.Date) (*insurance.Coverage, error) {
	return s.coverage, nil
}

type stubInterventions struct {
	billable []*intervention.Intervention
	marked   []uuid.UUID
	invoice  uuid.UUID
}

func (s *stubInterventions) Billable(_ context.Context, _ uuid.UUID, ids []uuid.UUID) ([]*intervention.Intervention, error) {
	want := map[uuid.UUID]bool{}
	for _, id := range ids {
		want[id] = true
	}
	out := []*intervention.Intervention{}
	for _, in := range s.billable {
		if want[in.ID] {
			out = append(out, in)
		}
	}
	return out, nil
}

func (s *stubInterventions) MarkInvoiced(_ context.Context, ids []uuid.UUID, invoiceID uuid.UUID) error {
	s.marked = ids
	s.invoice = invoiceID
	return nil
}

type stubRentals map[uuid.UUID]*rental.View

func (s stubRentals) Get(_ context.Context, id uuid.UUID) (*rental.View, error) {
	v, ok := s[id]
	if !ok {
		return nil, rental.ErrNotFound
	}
	return v, nil
}

func (s stubRentals) MarkInvoiced(_ context.Context, id, invoiceID uuid.UUID) error {
	s[id].FactureID = &invoiceID
	return nil
}

type stubCatalog map[uuid.UUID]*catalog.Item

func (s stubCatalog) Get(_ context.Context, id uuid.UUID) (*catalog.Item, error) {
	it, ok := s[id]
	if !ok {
		return nil, catalog.ErrNotFound
	}
	return it, nil
}

var fixedNow = time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC)

type fixture struct {
	svc           *Service
	repo          *mockRepo
	insurers      *stubInsurers
	interventions *stubInterventions
	rentals       stubRentals
	catalog       stubCatalog
	patientID     uuid.UUID
	numbers       int
}

func newFixture() *fixture {
	f := &fixture{
		repo:          newMockRepo(),
		insurers:      &stubInsurers{insurer: uuid.New()},
		interventions: &stubInterventions{},
		rentals:       stubRentals{},
		catalog:       stubCatalog{},
		patientID:     uuid.New(),
	}
	f.svc = NewService(f.repo, db.NopTransactor{}, stubPatients{f.patientID: true}, f.insurers,
		f.interventions, f.rentals, f.catalog, zerolog.Nop())
	f.svc.now = func() time.Time { return fixedNow }
	return f
}

func date(s string) civil.Date {
	d, err := civil.Parse(s)
	if err != nil {
		panic(err)
	}
	return d
}

func ptr[T any](v T) *T { return &v }

func (f *fixture) create(t *testing.T) *View {
	t.Helper()
	v, err := f.svc.Create(context.Background(), CreateRequest{
		PatientID: f.patientID,
		Items:     []ItemInput{{Description: "Forfait", PrixUnitaire: 100}},
	})
	require.NoError(t, err)
	return v
}

func TestCreate_DerivesAmountsAndDates(t *testing.T) {
	f := newFixture()
	v, err := f.svc.Create(context.Background(), CreateRequest{
		PatientID: f.patientID,
		Items: []ItemInput{
			{Description: "Location", Quantite: ptr(3.0), PrixUnitaire: 10},
			{Description: "Livraison", PrixUnitaire: 25.5},
		},
	})
	require.NoError(t, err)

	assert.Regexp(t, `^F-202406-\d{6}$`, v.NumeroFacture)
	assert.Equal(t, StatusPending, v.Statut)
	assert.Equal(t, "2024-06-01", v.DateEmission.String())
	assert.Equal(t, "2024-07-01", v.DateEcheance.String())
	assert.Equal(t, 55.5, v.MontantHT)
	assert.Equal(t, 20.0, v.TauxTVA)
	assert.Equal(t, 66.6, v.MontantTTC)
	assert.Equal(t, 66.6, v.ResteACharge)
	assert.Zero(t, v.MontantPriseEnCharge)
	assert.False(t, v.EstPayee)
	assert.False(t, v.EstEnRetard)
	require.Len(t, v.Items, 2)
	assert.Equal(t, 30.0, v.Items[0].MontantTotal)
	assert.Equal(t, 1.0, v.Items[1].Quantite)
}

func TestCreate_CallerNumberAndDuplicates(t *testing.T) {
	f := newFixture()
	req := CreateRequest{PatientID: f.patientID, NumeroFacture: ptr("F-CUSTOM-1"), MontantHT: ptr(10.0)}
	v, err := f.svc.Create(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, "F-CUSTOM-1", v.NumeroFacture)

	_, err = f.svc.Create(context.Background(), req)
	assert.ErrorIs(t, err, ErrDuplicateNumber)
	assert.Len(t, f.repo.invoices, 1)
}

func TestCreate_RetriesGeneratedNumberOnCollision(t *testing.T) {
	f := newFixture()
	f.repo.collisions = 2
	calls := 0
	f.svc.numbers = func(time.Time) (string, error) {
		calls++
		return "F-202406-00000" + string(rune('0'+calls)), nil
	}
	v, err := f.svc.Create(context.Background(), CreateRequest{PatientID: f.patientID})
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
	assert.Equal(t, "F-202406-000003", v.NumeroFacture)
}

func TestCreate_GivesUpAfterMaxAttempts(t *testing.T) {
	f := newFixture()
	f.repo.collisions = maxNumberAttempts
	_, err := f.svc.Create(context.Background(), CreateRequest{PatientID: f.patientID})
	assert.ErrorIs(t, err, ErrDuplicateNumber)
	assert.Empty(t, f.repo.invoices)
}

func TestCreate_Validation(t *testing.T) {
	f := newFixture()
	_, err := f.svc.Create(context.Background(), CreateRequest{
		PatientID:    f.patientID,
		DateEmission: ptr(date("2024-06-10")),
		DateEcheance: ptr(date("2024-06-01")),
		MontantHT:    ptr(-5.0),
	})
	var appErr *apperr.Error
	require.ErrorAs(t, err, &appErr)
	assert.Contains(t, appErr.Fields, "date_echeance")
	assert.Contains(t, appErr.Fields, "montant_ht")

	_, err = f.svc.Create(context.Background(), CreateRequest{PatientID: uuid.New()})
	assert.ErrorIs(t, err, patient.ErrNotFound)

	_, err = f.svc.Create(context.Background(), CreateRequest{
		PatientID: f.patientID,
		Items:     []ItemInput{{PrixUnitaire: 5}},
	})
	require.ErrorAs(t, err, &appErr)
	assert.Contains(t, appErr.Fields, "items[0].description")
	assert.Empty(t, f.repo.invoices)
}

func TestCreate_CatalogServiceNamesItem(t *testing.T) {
	f := newFixture()
	svcID := uuid.New()
	f.catalog[svcID] = &catalog.Item{ID: svcID, Nom: "Installation concentrateur", PrixUnitaire: 80}

	v, err := f.svc.Create(context.Background(), CreateRequest{
		PatientID: f.patientID,
		Items:     []ItemInput{{ServiceID: &svcID, PrixUnitaire: 80}},
	})
	require.NoError(t, err)
	assert.Equal(t, "Installation concentrateur", v.Items[0].Description)

	unknown := uuid.New()
	_, err = f.svc.Create(context.Background(), CreateRequest{
		PatientID: f.patientID,
		Items:     []ItemInput{{ServiceID: &unknown, Description: "x"}},
	})
	assert.ErrorIs(t, err, catalog.ErrNotFound)
}

func TestCoverage_ExplicitRate(t *testing.T) {
	f := newFixture()
	v, err := f.svc.Create(context.Background(), CreateRequest{
		Coverage:  Coverage{AssuranceID: &f.insurers.insurer, TauxPriseEnCharge: ptr(60.0)},
		PatientID: f.patientID,
		MontantHT: ptr(100.0),
	})
	require.NoError(t, err)
	assert.Equal(t, 120.0, v.MontantTTC)
	assert.Equal(t, 72.0, v.MontantPriseEnCharge)
	assert.Equal(t, 48.0, v.ResteACharge)
}

func TestCoverage_RateFromPatientCoverage(t *testing.T) {
	f := newFixture()
	f.insurers.coverage = &insurance.Coverage{TauxCouverture: 100}
	v, err := f.svc.Create(context.Background(), CreateRequest{
		Coverage:  Coverage{AssuranceID: &f.insurers.insurer},
		PatientID: f.patientID,
		MontantHT: ptr(50.0),
	})
	require.NoError(t, err)
	assert.Equal(t, 100.0, v.TauxPriseEnCharge)
	assert.Equal(t, 60.0, v.MontantPriseEnCharge)
	assert.Zero(t, v.ResteACharge)
}

func TestCoverage_Errors(t *testing.T) {
	f := newFixture()
	_, err := f.svc.Create(context.Background(), CreateRequest{
		Coverage:  Coverage{AssuranceID: &f.insurers.insurer},
		PatientID: f.patientID,
	})
	assert.ErrorIs(t, err, ErrNoCoverage)

	other := uuid.New()
	_, err = f.svc.Create(context.Background(), CreateRequest{
		Coverage:  Coverage{AssuranceID: &other, TauxPriseEnCharge: ptr(50.0)},
		PatientID: f.patientID,
	})
	assert.ErrorIs(t, err, insurance.ErrInsuranceNotFound)

	_, err = f.svc.Create(context.Background(), CreateRequest{
		Coverage:  Coverage{TauxPriseEnCharge: ptr(50.0)},
		PatientID: f.patientID,
	})
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))

	_, err = f.svc.Create(context.Background(), CreateRequest{
		Coverage:  Coverage{AssuranceID: &f.insurers.insurer, MontantPriseEnCharge: ptr(500.0)},
		PatientID: f.patientID,
		MontantHT: ptr(10.0),
	})
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
	assert.Empty(t, f.repo.invoices)
}

func TestMarkPaid(t *testing.T) {
	f := newFixture()
	inv := f.create(t)

	v, err := f.svc.MarkPaid(context.Background(), inv.ID, PaymentRequest{MethodePaiement: ptr("virement")})
	require.NoError(t, err)
	assert.True(t, v.EstPayee)
	assert.Equal(t, "2024-06-01", v.DatePaiement.String())
	assert.Equal(t, "virement", *v.MethodePaiement)

	_, err = f.svc.MarkPaid(context.Background(), inv.ID, PaymentRequest{})
	assert.ErrorIs(t, err, ErrAlreadyPaid)
}

func TestCancel(t *testing.T) {
	f := newFixture()
	pending := f.create(t)

	v, err := f.svc.Cancel(context.Background(), pending.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusCancelled, v.Statut)

	v, err = f.svc.Cancel(context.Background(), pending.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusCancelled, v.Statut)

	_, err = f.svc.MarkPaid(context.Background(), pending.ID, PaymentRequest{})
	assert.ErrorIs(t, err, ErrInvoiceCancelled)

	paid := f.create(t)
	_, err = f.svc.MarkPaid(context.Background(), paid.ID, PaymentRequest{})
	require.NoError(t, err)
	_, err = f.svc.Cancel(context.Background(), paid.ID)
	assert.ErrorIs(t, err, ErrCannotCancelPaid)
	assert.Equal(t, StatusPaid, f.repo.invoices[paid.ID].Statut)
}

func TestUpdate_PaidInvoiceIsLocked(t *testing.T) {
	f := newFixture()
	inv := f.create(t)
	_, err := f.svc.MarkPaid(context.Background(), inv.ID, PaymentRequest{})
	require.NoError(t, err)

	_, err = f.svc.Update(context.Background(), inv.ID, Patch{Notes: ptr("late edit")})
	assert.ErrorIs(t, err, ErrInvoiceLocked)

	_, err = f.svc.Update(context.Background(), inv.ID, Patch{Statut: ptr(StatusPending)})
	assert.ErrorIs(t, err, ErrInvoiceLocked)

	v, err := f.svc.Update(context.Background(), inv.ID, Patch{Statut: ptr(StatusPaid), ReferencePaiement: ptr("CHQ-42")})
	require.NoError(t, err)
	assert.Equal(t, "CHQ-42", *v.ReferencePaiement)
}

func TestUpdate_CancelledInvoiceStaysCancelled(t *testing.T) {
	f := newFixture()
	inv := f.create(t)
	_, err := f.svc.Cancel(context.Background(), inv.ID)
	require.NoError(t, err)

	_, err = f.svc.MarkPaid(context.Background(), inv.ID, PaymentRequest{})
	assert.ErrorIs(t, err, ErrInvoiceCancelled)

	for _, statut := range []string{StatusPaid, StatusPending} {
		_, err = f.svc.Update(context.Background(), inv.ID, Patch{Statut: ptr(statut)})
		assert.ErrorIs(t, err, ErrInvoiceCancelled, statut)
	}
	assert.Equal(t, StatusCancelled, f.repo.invoices[inv.ID].Statut)
	assert.Nil(t, f.repo.invoices[inv.ID].DatePaiement)

	v, err := f.svc.Update(context.Background(), inv.ID, Patch{Notes: ptr("doublon")})
	require.NoError(t, err)
	assert.Equal(t, StatusCancelled, v.Statut)
	assert.Equal(t, "doublon", *v.Notes)
}

func TestUpdate_CoverageRequiresInsurer(t *testing.T) {
	f := newFixture()
	inv := f.create(t)

	_, err := f.svc.Update(context.Background(), inv.ID, Patch{Coverage: Coverage{MontantPriseEnCharge: ptr(30.0)}})
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
	_, err = f.svc.Update(context.Background(), inv.ID, Patch{Coverage: Coverage{TauxPriseEnCharge: ptr(50.0)}})
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
	assert.Equal(t, 0.0, f.repo.invoices[inv.ID].MontantPriseEnCharge)

	v, err := f.svc.Update(context.Background(), inv.ID, Patch{Coverage: Coverage{
		AssuranceID:       &f.insurers.insurer,
		TauxPriseEnCharge: ptr(50.0),
	}})
	require.NoError(t, err)
	assert.Equal(t, 60.0, v.MontantPriseEnCharge)

	v, err = f.svc.Update(context.Background(), inv.ID, Patch{Coverage: Coverage{MontantPriseEnCharge: ptr(30.0)}})
	require.NoError(t, err)
	assert.Equal(t, 30.0, v.MontantPriseEnCharge)
	assert.Equal(t, 90.0, v.ResteACharge)
}

func TestUpdate_RecomputesAmounts(t *testing.T) {
	f := newFixture()
	inv := f.create(t)
	assert.Equal(t, 120.0, inv.MontantTTC)

	v, err := f.svc.Update(context.Background(), inv.ID, Patch{
		Items: &[]ItemInput{{Description: "Forfait", PrixUnitaire: 40}, {Description: "Consommables", PrixUnitaire: 10}},
	})
	require.NoError(t, err)
	assert.Equal(t, 50.0, v.MontantHT)
	assert.Equal(t, 60.0, v.MontantTTC)
	assert.Equal(t, 60.0, v.ResteACharge)
	assert.Len(t, v.Items, 2)

	v, err = f.svc.Update(context.Background(), inv.ID, Patch{TauxTVA: ptr(5.5)})
	require.NoError(t, err)
	assert.Equal(t, 52.75, v.MontantTTC)
	assert.Len(t, v.Items, 2)

	v, err = f.svc.Update(context.Background(), inv.ID, Patch{Statut: ptr(StatusPaid)})
	require.NoError(t, err)
	require.NotNil(t, v.DatePaiement)
	assert.Equal(t, "2024-06-01", v.DatePaiement.String())
}

func TestOverdueFlag(t *testing.T) {
	f := newFixture()
	v, err := f.svc.Create(context.Background(), CreateRequest{
		PatientID:    f.patientID,
		DateEmission: ptr(date("2024-04-01")),
	})
	require.NoError(t, err)
	assert.Equal(t, "2024-05-01", v.DateEcheance.String())
	assert.True(t, v.EstEnRetard)

	views, total, err := f.svc.List(context.Background(), Filter{}, pagination.All())
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	assert.True(t, views[0].EstEnRetard)
}

func TestFromInterventions(t *testing.T) {
	f := newFixture()
	unit := uuid.New()
	first := &intervention.Intervention{
		ID: uuid.New(), TypeIntervention: "installation", DatePlanifiee: time.Date(2024, 5, 20, 10, 0, 0, 0, time.UTC),
		PatientID: f.patientID, EquipementID: &unit, Facturable: true, Montant: ptr(100.0),
	}
	second := &intervention.Intervention{
		ID: uuid.New(), TypeIntervention: "maintenance", DatePlanifiee: time.Date(2024, 5, 28, 14, 0, 0, 0, time.UTC),
		PatientID: f.patientID, Facturable: true, Montant: ptr(50.0),
	}
	f.interventions.billable = []*intervention.Intervention{first, second}

	v, err := f.svc.FromInterventions(context.Background(), FromInterventionsRequest{
		PatientID:       f.patientID,
		InterventionIDs: []uuid.UUID{first.ID, second.ID},
	})
	require.NoError(t, err)

	assert.Equal(t, 150.0, v.MontantHT)
	assert.Equal(t, 180.0, v.MontantTTC)
	assert.Equal(t, "2024-05-20", v.PeriodeDebut.String())
	assert.Equal(t, "2024-05-28", v.PeriodeFin.String())
	assert.Equal(t, "2024-07-01", v.DateEcheance.String())
	require.Len(t, v.Items, 2)
	assert.Equal(t, "Intervention installation du 20/05/2024", v.Items[0].Description)
	assert.Equal(t, &unit, v.Items[0].EquipementID)
	assert.Equal(t, second.ID, *v.Items[1].InterventionID)
	assert.ElementsMatch(t, []uuid.UUID{first.ID, second.ID}, f.interventions.marked)
	assert.Equal(t, v.ID, f.interventions.invoice)
}

func TestFromInterventions_NothingBillable(t *testing.T) {
	f := newFixture()
	_, err := f.svc.FromInterventions(context.Background(), FromInterventionsRequest{
		PatientID:       f.patientID,
		InterventionIDs: []uuid.UUID{uuid.New()},
	})
	assert.ErrorIs(t, err, ErrNoBillableInterventions)

	_, err = f.svc.FromInterventions(context.Background(), FromInterventionsRequest{PatientID: f.patientID})
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
	assert.Empty(t, f.repo.invoices)
}

func (f *fixture) addRental(mode string, start string, end *civil.Date) *rental.View {
	r := &rental.View{
		Rental: &rental.Rental{
			ID: uuid.New(), PatientID: f.patientID, EquipmentID: uuid.New(),
			DateDebut: date(start), DateFin: end, TarifJournalier: 5, ModeFacturation: mode, Actif: true,
		},
		Equipment: &equipment.Ref{Modele: "EverFlo"},
	}
	f.rentals[r.ID] = r
	return r
}

func TestFromRental_BillingModes(t *testing.T) {
	tests := []struct {
		mode     string
		start    string
		end      *civil.Date
		wantQty  float64
		wantHT   float64
		wantDesc string
	}{
		{rental.BillingDaily, "2024-05-01", ptr(date("2024-05-11")), 10, 50, "Location EverFlo du 01/05/2024 au 11/05/2024"},
		{rental.BillingMonthly, "2024-05-01", ptr(date("2024-06-04")), 60, 300, "Location EverFlo du 01/05/2024 au 04/06/2024"},
		{rental.BillingFlat, "2024-05-01", nil, 1, 5, "Location EverFlo du 01/05/2024 au 01/06/2024"},
		{rental.BillingDaily, "2024-06-01", nil, 1, 5, "Location EverFlo du 01/06/2024 au 01/06/2024"},
	}
	for _, tt := range tests {
		t.Run(tt.mode+"_"+tt.start, func(t *testing.T) {
			f := newFixture()
			r := f.addRental(tt.mode, tt.start, tt.end)

			v, err := f.svc.FromRental(context.Background(), r.ID, GenerateOptions{})
			require.NoError(t, err)
			require.Len(t, v.Items, 1)
			assert.Equal(t, tt.wantQty, v.Items[0].Quantite)
			assert.Equal(t, tt.wantHT, v.MontantHT)
			assert.Equal(t, tt.wantDesc, v.Items[0].Description)
			assert.Equal(t, r.DateDebut, v.PeriodeDebut)
			assert.Equal(t, v.ID, *r.FactureID)
		})
	}
}

func TestFromRental_AlreadyInvoiced(t *testing.T) {
	f := newFixture()
	r := f.addRental(rental.BillingDaily, "2024-05-01", ptr(date("2024-05-11")))

	first, err := f.svc.FromRental(context.Background(), r.ID, GenerateOptions{})
	require.NoError(t, err)

	_, err = f.svc.FromRental(context.Background(), r.ID, GenerateOptions{})
	assert.ErrorIs(t, err, ErrRentalAlreadyInvoiced)

	_, err = f.svc.Cancel(context.Background(), first.ID)
	require.NoError(t, err)
	second, err := f.svc.FromRental(context.Background(), r.ID, GenerateOptions{TauxTVA: ptr(5.5)})
	require.NoError(t, err)
	assert.Equal(t, 52.75, second.MontantTTC)
	assert.Equal(t, second.ID, *r.FactureID)

	_, err = f.svc.FromRental(context.Background(), uuid.New(), GenerateOptions{})
	assert.ErrorIs(t, err, rental.ErrNotFound)
}

func TestExport(t *testing.T) {
	f := newFixture()
	f.create(t)

	data, err := f.svc.Export(context.Background(), Filter{})
	require.NoError(t, err)

	wb, err := excelize.OpenReader(bytes.NewReader(data))
	require.NoError(t, err)
	defer wb.Close()
	rows, err := wb.GetRows(exportSheet)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, exportHeader, rows[0])
	assert.Regexp(t, `^F-202406-`, rows[1][0])
	assert.Equal(t, "120", rows[1][6])
	assert.Equal(t, StatusPending, rows[1][9])
}

func TestHandler_CreateAndExport(t *testing.T) {
	f := newFixture()
	e := echo.New()
	h := NewHandler(f.svc)
	h.RegisterRoutes(e.Group("/api/v1"))

	body := `{"patient_id":"` + f.patientID.String() + `","items":[{"description":"Forfait","prix_unitaire":10}]}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/invoices", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Contains(t, rec.Body.String(), `"montant_ttc":12`)
	assert.Contains(t, rec.Body.String(), `"est_payee":false`)

	req = httptest.NewRequest(http.MethodGet, "/api/v1/invoices/export", nil)
	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, xlsxContentType, rec.Header().Get(echo.HeaderContentType))
	assert.Contains(t, rec.Header().Get(echo.HeaderContentDisposition), "factures_2024-06-01.xlsx")
}

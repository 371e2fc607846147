package patient

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"

	"github.com/oxycare/oxycare/internal/platform/apperr"
	"github.com/oxycare/oxycare/pkg/pagination"
)

func newTestHandler() (*Handler, *echo.Echo) {
	svc, _ := newTestService()
	return NewHandler(svc), echo.New()
}

func TestCreatePatientHandler(t *testing.T) {
	h, e := newTestHandler()
	body := `{"nom":"Martin","prenom":"Paul","date_naissance":"1950-07-01","sexe":"M",
		"adresse":"3 place Bellecour","ville":"Lyon","code_postal":"69002","telephone":"0600000000"}`
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	if err := h.CreatePatient(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusCreated {
		t.Errorf("expected 201, got %d", rec.Code)
	}
	var result map[string]interface{}
	json.Unmarshal(rec.Body.Bytes(), &result)
	if result["date_naissance"] != "1950-07-01" {
		t.Errorf("date_naissance = %v", result["date_naissance"])
	}
	if result["actif"] != true {
		t.Errorf("actif = %v, want true", result["actif"])
	}
}

func TestCreatePatientHandler_ValidationError(t *testing.T) {
	h, e := newTestHandler()
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"nom":"Martin"}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	c := e.NewContext(req, httptest.NewRecorder())

	err := h.CreatePatient(c)
	if apperr.KindOf(err) != apperr.KindValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestUpdatePatientHandler_RejectsUnknownKeys(t *testing.T) {
	h, e := newTestHandler()
	p := validPatient()
	h.svc.Create(context.Background(), p)

	req := httptest.NewRequest(http.MethodPut, "/", strings.NewReader(`{"ville":"Paris","role":"admin"}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	c := e.NewContext(req, httptest.NewRecorder())
	c.SetParamNames("id")
	c.SetParamValues(p.ID.String())

	if err := h.UpdatePatient(c); apperr.KindOf(err) != apperr.KindValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestGetPatientHandler_NotFound(t *testing.T) {
	h, e := newTestHandler()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), httptest.NewRecorder())
	c.SetParamNames("id")
	c.SetParamValues("7f1c1a4e-0000-4000-8000-000000000000")
	if err := h.GetPatient(c); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestListPatientsHandler_ActiveFilter(t *testing.T) {
	h, e := newTestHandler()
	a := validPatient()
	h.svc.Create(context.Background(), a)
	b := validPatient()
	b.Nom = "Bernard"
	h.svc.Create(context.Background(), b)
	h.svc.Deactivate(context.Background(), b.ID)

	rec := httptest.NewRecorder()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/?actif=true", nil), rec)
	if err := h.ListPatients(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var resp pagination.Response
	json.Unmarshal(rec.Body.Bytes(), &resp)
	if resp.Total != 1 {
		t.Errorf("expected 1 active patient, got %d", resp.Total)
	}
}

func TestDeletePatientHandler(t *testing.T) {
	h, e := newTestHandler()
	p := validPatient()
	h.svc.Create(context.Background(), p)

	rec := httptest.NewRecorder()
	c := e.NewContext(httptest.NewRequest(http.MethodDelete, "/", nil), rec)
	c.SetParamNames("id")
	c.SetParamValues(p.ID.String())
	if err := h.DeletePatient(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
}

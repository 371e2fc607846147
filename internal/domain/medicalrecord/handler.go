package medicalrecord

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/oxycare/oxycare/internal/platform/httpx"
	"github.com/oxycare/oxycare/pkg/pagination"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.GET("/medical-records", h.ListRecords)
	api.GET("/medical-records/:id", h.GetRecord)
	api.POST("/medical-records", h.CreateRecord)
	api.PUT("/medical-records/:id", h.UpdateRecord)
	api.DELETE("/medical-records/:id", h.DeleteRecord)
	api.POST("/medical-records/:id/exams", h.AddExam)
	api.POST("/medical-records/:id/documents", h.AddDocument)
	api.GET("/patients/:id/medical-records", h.ListPatientRecords)
}

func (h *Handler) CreateRecord(c echo.Context) error {
	var r Record
	if err := httpx.Bind(c, &r); err != nil {
		return err
	}
	if err := h.svc.Create(c.Request().Context(), &r); err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, r)
}

func (h *Handler) GetRecord(c echo.Context) error {
	id, err := httpx.ParamID(c, "id")
	if err != nil {
		return err
	}
	r, err := h.svc.Get(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, r)
}

func (h *Handler) ListRecords(c echo.Context) error {
	pg := pagination.FromContext(c)
	f := Filter{
		PatientID: httpx.QueryID(c, "patient_id"),
		Actif:     httpx.QueryBool(c, "actif"),
	}
	items, total, err := h.svc.List(c.Request().Context(), f, pg)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg))
}

func (h *Handler) ListPatientRecords(c echo.Context) error {
	id, err := httpx.ParamID(c, "id")
	if err != nil {
		return err
	}
	pg := pagination.FromContext(c)
	items, total, err := h.svc.ForPatient(c.Request().Context(), id, pg)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg))
}

func (h *Handler) UpdateRecord(c echo.Context) error {
	id, err := httpx.ParamID(c, "id")
	if err != nil {
		return err
	}
	var patch Patch
	if err := httpx.Bind(c, &patch); err != nil {
		return err
	}
	r, err := h.svc.Update(c.Request().Context(), id, patch)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, r)
}

func (h *Handler) DeleteRecord(c echo.Context) error {
	id, err := httpx.ParamID(c, "id")
	if err != nil {
		return err
	}
	if err := h.svc.Deactivate(c.Request().Context(), id); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]string{"message": "medical record deactivated"})
}

func (h *Handler) AddExam(c echo.Context) error {
	id, err := httpx.ParamID(c, "id")
	if err != nil {
		return err
	}
	var in ExamInput
	if err := httpx.Bind(c, &in); err != nil {
		return err
	}
	r, err := h.svc.AddExam(c.Request().Context(), id, in)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, r)
}

func (h *Handler) AddDocument(c echo.Context) error {
	id, err := httpx.ParamID(c, "id")
	if err != nil {
		return err
	}
	var in DocumentInput
	if err := httpx.Bind(c, &in); err != nil {
		return err
	}
	r, err := h.svc.AddDocument(c.Request().Context(), id, in)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, r)
}

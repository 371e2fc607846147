package rental

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
	api.GET("/rentals", h.ListRentals)
	api.GET("/rentals/active", h.ListActive)
	api.GET("/rentals/:id", h.GetRental)
	api.POST("/rentals", h.CreateRental)
	api.PUT("/rentals/:id", h.UpdateRental)
	api.DELETE("/rentals/:id", h.DeleteRental)
	api.POST("/rentals/:id/terminate", h.TerminateRental)
	api.GET("/patients/:id/rentals", h.ListPatientRentals)
}

func (h *Handler) CreateRental(c echo.Context) error {
	var in NewRental
	if err := httpx.Bind(c, &in); err != nil {
		return err
	}
	v, err := h.svc.Create(c.Request().Context(), in)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, v)
}

func (h *Handler) GetRental(c echo.Context) error {
	id, err := httpx.ParamID(c, "id")
	if err != nil {
		return err
	}
	v, err := h.svc.Get(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, v)
}

func (h *Handler) ListRentals(c echo.Context) error {
	pg := pagination.FromContext(c)
	f := Filter{
		PatientID:   httpx.QueryID(c, "patient_id"),
		EquipmentID: httpx.QueryID(c, "equipment_id"),
		Actif:       httpx.QueryBool(c, "actif"),
	}
	items, total, err := h.svc.List(c.Request().Context(), f, pg)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg))
}

func (h *Handler) ListActive(c echo.Context) error {
	pg := pagination.FromContext(c)
	items, total, err := h.svc.Active(c.Request().Context(), pg)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg))
}

func (h *Handler) ListPatientRentals(c echo.Context) error {
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

func (h *Handler) UpdateRental(c echo.Context) error {
	id, err := httpx.ParamID(c, "id")
	if err != nil {
		return err
	}
	var patch Patch
	if err := httpx.Bind(c, &patch); err != nil {
		return err
	}
	v, err := h.svc.Update(c.Request().Context(), id, patch)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, v)
}

func (h *Handler) TerminateRental(c echo.Context) error {
	id, err := httpx.ParamID(c, "id")
	if err != nil {
		return err
	}
	var req TerminateRequest
	if err := httpx.BindOptional(c, &req); err != nil {
		return err
	}
	v, err := h.svc.Terminate(c.Request().Context(), id, req)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, v)
}

func (h *Handler) DeleteRental(c echo.Context) error {
	id, err := httpx.ParamID(c, "id")
	if err != nil {
		return err
	}
	if err := h.svc.SoftDelete(c.Request().Context(), id); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]string{"message": "rental deleted"})
}

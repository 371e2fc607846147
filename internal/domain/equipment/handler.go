package equipment

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
	api.GET("/equipments", h.ListEquipments)
	api.GET("/equipments/available", h.ListAvailable)
	api.GET("/equipments/maintenance-due", h.ListMaintenanceDue)
	api.GET("/equipments/:id", h.GetEquipment)
	api.POST("/equipments", h.CreateEquipment)
	api.PUT("/equipments/:id", h.UpdateEquipment)
	api.DELETE("/equipments/:id", h.RetireEquipment)
	api.POST("/equipments/:id/assign", h.AssignEquipment)
	api.POST("/equipments/:id/release", h.ReleaseEquipment)
}

func (h *Handler) CreateEquipment(c echo.Context) error {
	var req CreateRequest
	if err := httpx.Bind(c, &req); err != nil {
		return err
	}
	e := req.Equipment()
	if err := h.svc.Create(c.Request().Context(), e); err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, e)
}

func (h *Handler) GetEquipment(c echo.Context) error {
	id, err := httpx.ParamID(c, "id")
	if err != nil {
		return err
	}
	e, err := h.svc.Get(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, e)
}

func (h *Handler) ListEquipments(c echo.Context) error {
	pg := pagination.FromContext(c)
	f := Filter{
		Type:      httpx.QueryString(c, "type"),
		Statut:    httpx.QueryString(c, "statut"),
		PatientID: httpx.QueryID(c, "patient_id"),
	}
	items, total, err := h.svc.List(c.Request().Context(), f, pg)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg))
}

func (h *Handler) UpdateEquipment(c echo.Context) error {
	id, err := httpx.ParamID(c, "id")
	if err != nil {
		return err
	}
	var patch Patch
	if err := httpx.Bind(c, &patch); err != nil {
		return err
	}
	e, err := h.svc.Update(c.Request().Context(), id, patch)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, e)
}

func (h *Handler) RetireEquipment(c echo.Context) error {
	id, err := httpx.ParamID(c, "id")
	if err != nil {
		return err
	}
	if err := h.svc.Retire(c.Request().Context(), id); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]string{"message": "equipment retired"})
}

func (h *Handler) AssignEquipment(c echo.Context) error {
	id, err := httpx.ParamID(c, "id")
	if err != nil {
		return err
	}
	var req AssignRequest
	if err := httpx.Bind(c, &req); err != nil {
		return err
	}
	e, err := h.svc.Assign(c.Request().Context(), id, req)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, e)
}

func (h *Handler) ReleaseEquipment(c echo.Context) error {
	id, err := httpx.ParamID(c, "id")
	if err != nil {
		return err
	}
	var req ReleaseRequest
	if err := httpx.BindOptional(c, &req); err != nil {
		return err
	}
	e, err := h.svc.Release(c.Request().Context(), id, req)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, e)
}

func (h *Handler) ListAvailable(c echo.Context) error {
	items, err := h.svc.Available(c.Request().Context(), httpx.QueryString(c, "type"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, items)
}

func (h *Handler) ListMaintenanceDue(c echo.Context) error {
	items, err := h.svc.MaintenanceDue(c.Request().Context())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, items)
}

package intervention

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/oxycare/oxycare/internal/platform/httpx"
	"github.com/oxycare/oxycare/pkg/civil"
	"github.com/oxycare/oxycare/pkg/pagination"
)

// scheduleWindow is the default span of a technician schedule, in days.
const scheduleWindow = 7

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.GET("/interventions", h.ListInterventions)
	api.GET("/interventions/overdue", h.ListOverdue)
	api.GET("/interventions/schedule/:technician_id", h.TechnicianSchedule)
	api.GET("/interventions/:id", h.GetIntervention)
	api.POST("/interventions", h.CreateIntervention)
	api.PUT("/interventions/:id", h.UpdateIntervention)
	api.DELETE("/interventions/:id", h.CancelIntervention)
	api.POST("/interventions/:id/start", h.StartIntervention)
	api.POST("/interventions/:id/complete", h.CompleteIntervention)
	api.POST("/interventions/:id/cancel", h.CancelIntervention)
}

func (h *Handler) CreateIntervention(c echo.Context) error {
	var req CreateRequest
	if err := httpx.Bind(c, &req); err != nil {
		return err
	}
	v, err := h.svc.Create(c.Request().Context(), req)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, v)
}

func (h *Handler) GetIntervention(c echo.Context) error {
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

// ListInterventions filters on type, statut, patient_id, equipement_id,
// technicien_id and the date_debut/date_fin pair.
func (h *Handler) ListInterventions(c echo.Context) error {
	pg := pagination.FromContext(c)
	f := Filter{
		Type:         httpx.QueryString(c, "type"),
		Statut:       httpx.QueryString(c, "statut"),
		PatientID:    httpx.QueryID(c, "patient_id"),
		EquipementID: httpx.QueryID(c, "equipement_id"),
		TechnicienID: httpx.QueryID(c, "technicien_id"),
		From:         httpx.QueryDate(c, "date_debut"),
		To:           httpx.QueryDate(c, "date_fin"),
	}
	items, total, err := h.svc.List(c.Request().Context(), f, pg)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg))
}

func (h *Handler) ListOverdue(c echo.Context) error {
	items, err := h.svc.Overdue(c.Request().Context())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, items)
}

// TechnicianSchedule defaults to the coming week when the date_debut and
// date_fin parameters are absent or malformed.
func (h *Handler) TechnicianSchedule(c echo.Context) error {
	techID, err := httpx.ParamID(c, "technician_id")
	if err != nil {
		return err
	}
	from := civil.Today()
	if d := httpx.QueryDate(c, "date_debut"); d != nil {
		from = *d
	}
	to := from.AddDays(scheduleWindow)
	if d := httpx.QueryDate(c, "date_fin"); d != nil {
		to = *d
	}
	items, err := h.svc.Schedule(c.Request().Context(), techID, from, to)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, items)
}

func (h *Handler) UpdateIntervention(c echo.Context) error {
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

func (h *Handler) StartIntervention(c echo.Context) error {
	id, err := httpx.ParamID(c, "id")
	if err != nil {
		return err
	}
	v, err := h.svc.Start(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, v)
}

func (h *Handler) CompleteIntervention(c echo.Context) error {
	id, err := httpx.ParamID(c, "id")
	if err != nil {
		return err
	}
	var req CompleteRequest
	if err := httpx.BindOptional(c, &req); err != nil {
		return err
	}
	v, err := h.svc.Complete(c.Request().Context(), id, req)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, v)
}

func (h *Handler) CancelIntervention(c echo.Context) error {
	id, err := httpx.ParamID(c, "id")
	if err != nil {
		return err
	}
	v, err := h.svc.Cancel(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, v)
}

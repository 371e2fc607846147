package catalog

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
	api.GET("/services", h.ListServices)
	api.GET("/services/:id", h.GetService)
	api.POST("/services", h.CreateService)
	api.PUT("/services/:id", h.UpdateService)
	api.DELETE("/services/:id", h.DeleteService)
}

func (h *Handler) CreateService(c echo.Context) error {
	var n NewItem
	if err := httpx.Bind(c, &n); err != nil {
		return err
	}
	it := n.Item()
	if err := h.svc.Create(c.Request().Context(), it); err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, it)
}

func (h *Handler) GetService(c echo.Context) error {
	id, err := httpx.ParamID(c, "id")
	if err != nil {
		return err
	}
	it, err := h.svc.Get(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, it)
}

func (h *Handler) ListServices(c echo.Context) error {
	pg := pagination.FromContext(c)
	f := Filter{Type: httpx.QueryString(c, "type"), Actif: httpx.QueryBool(c, "actif")}
	items, total, err := h.svc.List(c.Request().Context(), f, pg)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg))
}

func (h *Handler) UpdateService(c echo.Context) error {
	id, err := httpx.ParamID(c, "id")
	if err != nil {
		return err
	}
	var patch Patch
	if err := httpx.Bind(c, &patch); err != nil {
		return err
	}
	it, err := h.svc.Update(c.Request().Context(), id, patch)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, it)
}

func (h *Handler) DeleteService(c echo.Context) error {
	id, err := httpx.ParamID(c, "id")
	if err != nil {
		return err
	}
	if err := h.svc.Deactivate(c.Request().Context(), id); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]string{"message": "service deactivated"})
}

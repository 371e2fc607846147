package dashboard

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/oxycare/oxycare/internal/platform/httpx"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.GET("/dashboard/stats", h.GetStats)
	api.GET("/dashboard/revenue", h.GetRevenue)
}

func (h *Handler) GetStats(c echo.Context) error {
	st, err := h.svc.Stats(c.Request().Context())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, st)
}

// GetRevenue accepts period=day|month|year|custom; custom reads start_date
// and end_date.
func (h *Handler) GetRevenue(c echo.Context) error {
	rev, err := h.svc.Revenue(c.Request().Context(),
		c.QueryParam("period"),
		httpx.QueryDate(c, "start_date"),
		httpx.QueryDate(c, "end_date"),
	)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, rev)
}

package invoicing

import (
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/oxycare/oxycare/internal/platform/httpx"
	"github.com/oxycare/oxycare/pkg/pagination"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.GET("/invoices", h.ListInvoices)
	api.GET("/invoices/export", h.ExportInvoices)
	api.GET("/invoices/:id", h.GetInvoice)
	api.POST("/invoices", h.CreateInvoice)
	api.PUT("/invoices/:id", h.UpdateInvoice)
	api.DELETE("/invoices/:id", h.CancelInvoice)
	api.POST("/invoices/:id/cancel", h.CancelInvoice)
	api.POST("/invoices/:id/pay", h.PayInvoice)
	api.POST("/invoices/from-interventions", h.FromInterventions)
	api.POST("/invoices/from-rental/:id", h.FromRental)
}

func filterFrom(c echo.Context) Filter {
	return Filter{
		PatientID: httpx.QueryID(c, "patient_id"),
		Statut:    httpx.QueryString(c, "statut"),
		From:      httpx.QueryDate(c, "date_debut"),
		To:        httpx.QueryDate(c, "date_fin"),
	}
}

func (h *Handler) ListInvoices(c echo.Context) error {
	pg := pagination.FromContext(c)
	items, total, err := h.svc.List(c.Request().Context(), filterFrom(c), pg)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg))
}

func (h *Handler) ExportInvoices(c echo.Context) error {
	data, err := h.svc.Export(c.Request().Context(), filterFrom(c))
	if err != nil {
		return err
	}
	name := fmt.Sprintf("factures_%s.xlsx", h.svc.today().String())
	c.Response().Header().Set(echo.HeaderContentDisposition, fmt.Sprintf("attachment; filename=%q", name))
	return c.Blob(http.StatusOK, xlsxContentType, data)
}

func (h *Handler) GetInvoice(c echo.Context) error {
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

func (h *Handler) CreateInvoice(c echo.Context) error {
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

func (h *Handler) UpdateInvoice(c echo.Context) error {
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

func (h *Handler) CancelInvoice(c echo.Context) error {
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

func (h *Handler) PayInvoice(c echo.Context) error {
	id, err := httpx.ParamID(c, "id")
	if err != nil {
		return err
	}
	var req PaymentRequest
	if err := httpx.BindOptional(c, &req); err != nil {
		return err
	}
	v, err := h.svc.MarkPaid(c.Request().Context(), id, req)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, v)
}

func (h *Handler) FromInterventions(c echo.Context) error {
	var req FromInterventionsRequest
	if err := httpx.Bind(c, &req); err != nil {
		return err
	}
	v, err := h.svc.FromInterventions(c.Request().Context(), req)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, v)
}

func (h *Handler) FromRental(c echo.Context) error {
	id, err := httpx.ParamID(c, "id")
	if err != nil {
		return err
	}
	var opts GenerateOptions
	if err := httpx.BindOptional(c, &opts); err != nil {
		return err
	}
	v, err := h.svc.FromRental(c.Request().Context(), id, opts)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, v)
}

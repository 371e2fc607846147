package insurance

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
	api.GET("/insurances", h.ListInsurances)
	api.GET("/insurances/:id", h.GetInsurance)
	api.POST("/insurances", h.CreateInsurance)
	api.PUT("/insurances/:id", h.UpdateInsurance)
	api.DELETE("/insurances/:id", h.DeleteInsurance)

	api.GET("/patient-insurances", h.ListCoverages)
	api.GET("/patient-insurances/:id", h.GetCoverage)
	api.POST("/patient-insurances", h.CreateCoverage)
	api.PUT("/patient-insurances/:id", h.UpdateCoverage)
	api.DELETE("/patient-insurances/:id", h.DeleteCoverage)

	api.GET("/patients/:id/insurances", h.ListPatientCoverages)
}

// -- Insurers --

func (h *Handler) CreateInsurance(c echo.Context) error {
	i := Insurance{DelaiPaiement: defaultPaymentDelay, Actif: true}
	if err := httpx.Bind(c, &i); err != nil {
		return err
	}
	if err := h.svc.CreateInsurance(c.Request().Context(), &i); err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, i)
}

func (h *Handler) GetInsurance(c echo.Context) error {
	id, err := httpx.ParamID(c, "id")
	if err != nil {
		return err
	}
	i, err := h.svc.GetInsurance(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, i)
}

func (h *Handler) ListInsurances(c echo.Context) error {
	pg := pagination.FromContext(c)
	f := InsuranceFilter{Type: httpx.QueryString(c, "type"), Actif: httpx.QueryBool(c, "actif")}
	items, total, err := h.svc.ListInsurances(c.Request().Context(), f, pg)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg))
}

func (h *Handler) UpdateInsurance(c echo.Context) error {
	id, err := httpx.ParamID(c, "id")
	if err != nil {
		return err
	}
	var patch InsurancePatch
	if err := httpx.Bind(c, &patch); err != nil {
		return err
	}
	i, err := h.svc.UpdateInsurance(c.Request().Context(), id, patch)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, i)
}

func (h *Handler) DeleteInsurance(c echo.Context) error {
	id, err := httpx.ParamID(c, "id")
	if err != nil {
		return err
	}
	if err := h.svc.DeactivateInsurance(c.Request().Context(), id); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]string{"message": "insurance deactivated"})
}

// -- Patient coverages --

func (h *Handler) CreateCoverage(c echo.Context) error {
	cov := Coverage{Actif: true}
	if err := httpx.Bind(c, &cov); err != nil {
		return err
	}
	if err := h.svc.CreateCoverage(c.Request().Context(), &cov); err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, cov)
}

func (h *Handler) GetCoverage(c echo.Context) error {
	id, err := httpx.ParamID(c, "id")
	if err != nil {
		return err
	}
	cov, err := h.svc.GetCoverage(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, cov)
}

func (h *Handler) ListCoverages(c echo.Context) error {
	pg := pagination.FromContext(c)
	f := CoverageFilter{
		PatientID:   httpx.QueryID(c, "patient_id"),
		AssuranceID: httpx.QueryID(c, "assurance_id"),
		Actif:       httpx.QueryBool(c, "actif"),
	}
	items, total, err := h.svc.ListCoverages(c.Request().Context(), f, pg)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg))
}

func (h *Handler) UpdateCoverage(c echo.Context) error {
	id, err := httpx.ParamID(c, "id")
	if err != nil {
		return err
	}
	var patch CoveragePatch
	if err := httpx.Bind(c, &patch); err != nil {
		return err
	}
	cov, err := h.svc.UpdateCoverage(c.Request().Context(), id, patch)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, cov)
}

func (h *Handler) DeleteCoverage(c echo.Context) error {
	id, err := httpx.ParamID(c, "id")
	if err != nil {
		return err
	}
	if err := h.svc.DeactivateCoverage(c.Request().Context(), id); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]string{"message": "patient insurance deactivated"})
}

func (h *Handler) ListPatientCoverages(c echo.Context) error {
	id, err := httpx.ParamID(c, "id")
	if err != nil {
		return err
	}
	items, err := h.svc.PatientCoverages(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, items)
}

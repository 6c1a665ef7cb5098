package stats

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/mkoskinen/benchcom/pkg/apperror"
	"github.com/mkoskinen/benchcom/pkg/auth"
)

// Handler handles HTTP requests for stats
type Handler struct {
	svc *Service
}

// NewHandler creates a new stats handler
func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// Refresh recomputes the whole cache
// POST /api/v1/stats/refresh
func (h *Handler) Refresh(c echo.Context) error {
	resp, err := h.svc.RefreshAll(c.Request().Context(), auth.GetIdentity(c))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, resp)
}

// ByTest returns grouped aggregates of one test
// GET /api/v1/stats/by-test
func (h *Handler) ByTest(c echo.Context) error {
	limit, err := intParam(c, "limit")
	if err != nil {
		return err
	}
	rows, err := h.svc.ByTest(c.Request().Context(),
		c.QueryParam("test_name"), c.QueryParam("group_by"), c.QueryParam("architecture"), limit)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, rows)
}

// ByCPU returns all aggregates of one CPU
// GET /api/v1/stats/by-cpu
func (h *Handler) ByCPU(c echo.Context) error {
	rows, err := h.svc.ByCPU(c.Request().Context(), c.QueryParam("cpu_model"), c.QueryParam("architecture"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, rows)
}

// AvailableCPUs lists CPUs with cached stats
// GET /api/v1/stats/available-cpus
func (h *Handler) AvailableCPUs(c echo.Context) error {
	rows, err := h.svc.AvailableCPUs(c.Request().Context())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, rows)
}

// AvailableSystems lists system types with cached stats
// GET /api/v1/stats/available-systems
func (h *Handler) AvailableSystems(c echo.Context) error {
	rows, err := h.svc.AvailableSystems(c.Request().Context())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, rows)
}

func intParam(c echo.Context, name string) (int, error) {
	raw := c.QueryParam(name)
	if raw == "" {
		return 0, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, apperror.NewValidation(name, name+" must be an integer")
	}
	return v, nil
}

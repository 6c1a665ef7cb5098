package benchmarks

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/mkoskinen/benchcom/pkg/apperror"
	"github.com/mkoskinen/benchcom/pkg/auth"
)

// Handler handles HTTP requests for benchmark runs and results
type Handler struct {
	svc *Service
}

// NewHandler creates a new benchmarks handler
func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// Submit stores a benchmark run
// POST /api/v1/benchmarks
func (h *Handler) Submit(c echo.Context) error {
	var req SubmitRequest
	if err := c.Bind(&req); err != nil {
		return apperror.NewBadRequest("invalid request body")
	}

	resp, err := h.svc.Submit(c.Request().Context(), auth.GetIdentity(c), req, submitterIP(c.Request()))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, resp)
}

// List returns run summaries
// GET /api/v1/benchmarks
func (h *Handler) List(c echo.Context) error {
	limit, err := intParam(c, "limit")
	if err != nil {
		return err
	}
	offset, err := intParam(c, "offset")
	if err != nil {
		return err
	}

	runs, err := h.svc.List(c.Request().Context(), RunFilter{
		Architecture: c.QueryParam("architecture"),
		Hostname:     c.QueryParam("hostname"),
	}, limit, offset)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, runs)
}

// Get returns one run with its results
// GET /api/v1/benchmarks/:id
func (h *Handler) Get(c echo.Context) error {
	id, err := runID(c)
	if err != nil {
		return err
	}
	detail, err := h.svc.Get(c.Request().Context(), auth.GetIdentity(c), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, detail)
}

// Delete removes one run
// DELETE /api/v1/benchmarks/:id
func (h *Handler) Delete(c echo.Context) error {
	id, err := runID(c)
	if err != nil {
		return err
	}
	if err := h.svc.Delete(c.Request().Context(), auth.GetIdentity(c), id); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]string{"message": "Benchmark deleted"})
}

// ResultsByTest returns result rows across runs
// GET /api/v1/results/by-test
func (h *Handler) ResultsByTest(c echo.Context) error {
	limit, err := intParam(c, "limit")
	if err != nil {
		return err
	}
	rows, err := h.svc.ResultsByTest(c.Request().Context(), ResultFilter{
		TestName:     c.QueryParam("test_name"),
		TestCategory: c.QueryParam("test_category"),
	}, limit)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, rows)
}

// Tests lists the distinct tests
// GET /api/v1/tests
func (h *Handler) Tests(c echo.Context) error {
	tests, err := h.svc.Tests(c.Request().Context())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, tests)
}

func runID(c echo.Context) (int64, error) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, apperror.NewValidation("id", "id must be a positive integer")
	}
	return id, nil
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

package health

import (
	"context"
	"net/http"
	"runtime"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/mkoskinen/benchcom/internal/config"
	"github.com/mkoskinen/benchcom/internal/version"
	"github.com/mkoskinen/benchcom/pkg/auth"
)

const pingTimeout = 5 * time.Second

// Pinger checks database connectivity. *pgxpool.Pool implements it.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Handler handles health check requests
type Handler struct {
	db      Pinger
	cfg     *config.Config
	policy  auth.Policy
	host    hostProbe
	startAt time.Time
}

// NewHandler creates a new health handler
func NewHandler(db Pinger, cfg *config.Config, policy auth.Policy) *Handler {
	return &Handler{
		db:      db,
		cfg:     cfg,
		policy:  policy,
		host:    defaultHostProbe(),
		startAt: time.Now(),
	}
}

// HealthResponse reports liveness, database reachability and the access
// policy clients should expect.
type HealthResponse struct {
	Status                    string `json:"status"`
	Database                  string `json:"database"`
	Version                   string `json:"version"`
	Uptime                    string `json:"uptime"`
	AllowAnonymousSubmissions bool   `json:"allow_anonymous_submissions"`
	AllowAnonymousBrowsing    bool   `json:"allow_anonymous_browsing"`
	AnonymousAdmin            bool   `json:"anonymous_admin"`
}

// Health returns the overall service health
// GET /health
func (h *Handler) Health(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), pingTimeout)
	defer cancel()

	resp := HealthResponse{
		Status:                    "healthy",
		Database:                  "connected",
		Version:                   version.Get().String(),
		Uptime:                    time.Since(h.startAt).Round(time.Second).String(),
		AllowAnonymousSubmissions: h.policy.AllowAnonymousSubmissions,
		AllowAnonymousBrowsing:    h.policy.AllowAnonymousBrowsing,
		AnonymousAdmin:            h.policy.AnonymousAdmin,
	}

	status := http.StatusOK
	if err := h.db.Ping(ctx); err != nil {
		resp.Status = "unhealthy"
		resp.Database = "unreachable"
		status = http.StatusServiceUnavailable
	}
	return c.JSON(status, resp)
}

// Healthz returns a simple liveness check
// GET /healthz
func (h *Handler) Healthz(c echo.Context) error {
	return c.String(http.StatusOK, "OK")
}

// Ready returns readiness based on database connectivity
// GET /ready
func (h *Handler) Ready(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), pingTimeout)
	defer cancel()

	if err := h.db.Ping(ctx); err != nil {
		return c.JSON(http.StatusServiceUnavailable, map[string]any{
			"status":  "not_ready",
			"message": "Database connection failed",
		})
	}
	return c.JSON(http.StatusOK, map[string]any{"status": "ready"})
}

// Debug returns runtime information outside production
// GET /debug
func (h *Handler) Debug(c echo.Context) error {
	if h.cfg.IsProduction() {
		return echo.NewHTTPError(http.StatusNotFound, "Not found")
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), pingTimeout)
	defer cancel()

	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)

	return c.JSON(http.StatusOK, map[string]any{
		"environment": h.cfg.Environment,
		"version":     version.Get(),
		"go_version":  runtime.Version(),
		"goroutines":  runtime.NumGoroutine(),
		"memory": map[string]any{
			"alloc_mb":       mem.Alloc / 1024 / 1024,
			"total_alloc_mb": mem.TotalAlloc / 1024 / 1024,
			"sys_mb":         mem.Sys / 1024 / 1024,
			"num_gc":         mem.NumGC,
		},
		"host": h.host.collect(ctx),
		"database": map[string]any{
			"host":     h.cfg.Database.Host,
			"port":     h.cfg.Database.Port,
			"database": h.cfg.Database.Database,
		},
	})
}

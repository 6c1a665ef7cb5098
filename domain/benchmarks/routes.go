package benchmarks

import (
	"github.com/mkoskinen/benchcom/internal/server"
	"github.com/mkoskinen/benchcom/pkg/auth"
)

// RegisterRoutes registers the benchmark and result routes
func RegisterRoutes(api server.APIGroup, h *Handler, authMiddleware *auth.Middleware, limiter *SubmitRateLimiter) {
	browse := authMiddleware.RequireBrowse()

	api.POST("/benchmarks", h.Submit, limiter.Middleware())
	api.GET("/benchmarks", h.List, browse)
	api.GET("/benchmarks/:id", h.Get, browse)
	api.DELETE("/benchmarks/:id", h.Delete)

	api.GET("/results/by-test", h.ResultsByTest, browse)
	api.GET("/tests", h.Tests, browse)
}

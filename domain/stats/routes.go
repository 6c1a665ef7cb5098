package stats

import (
	"github.com/mkoskinen/benchcom/internal/server"
	"github.com/mkoskinen/benchcom/pkg/auth"
)

// RegisterRoutes registers the stats routes
func RegisterRoutes(api server.APIGroup, h *Handler, authMiddleware *auth.Middleware) {
	g := api.Group.Group("/stats")

	browse := authMiddleware.RequireBrowse()
	g.POST("/refresh", h.Refresh)
	g.GET("/by-test", h.ByTest, browse)
	g.GET("/by-cpu", h.ByCPU, browse)
	g.GET("/available-cpus", h.AvailableCPUs, browse)
	g.GET("/available-systems", h.AvailableSystems, browse)
}

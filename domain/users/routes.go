package users

import (
	"github.com/mkoskinen/benchcom/internal/server"
	"github.com/mkoskinen/benchcom/pkg/auth"
)

// RegisterRoutes registers the users routes. /me is exempt from the
// anonymous browsing policy since it always requires a token.
func RegisterRoutes(api server.APIGroup, h *Handler, authMiddleware *auth.Middleware) {
	api.POST("/register", h.Register)
	api.POST("/login", h.Login)
	api.GET("/me", h.Me, authMiddleware.RequireAuth())
}

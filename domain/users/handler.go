package users

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/mkoskinen/benchcom/pkg/apperror"
	"github.com/mkoskinen/benchcom/pkg/auth"
)

// Handler handles HTTP requests for users
type Handler struct {
	svc *Service
}

// NewHandler creates a new users handler
func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// Register creates an account
// POST /api/v1/register
func (h *Handler) Register(c echo.Context) error {
	var req RegisterRequest
	if err := c.Bind(&req); err != nil {
		return apperror.NewBadRequest("invalid request body")
	}

	user, err := h.svc.Register(c.Request().Context(), req)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, user)
}

// Login exchanges credentials for a bearer token
// POST /api/v1/login
func (h *Handler) Login(c echo.Context) error {
	var req LoginRequest
	if err := c.Bind(&req); err != nil {
		return apperror.NewBadRequest("invalid request body")
	}

	token, err := h.svc.Login(c.Request().Context(), req)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, token)
}

// Me returns the calling user
// GET /api/v1/me
func (h *Handler) Me(c echo.Context) error {
	user, err := h.svc.Me(c.Request().Context(), auth.GetIdentity(c))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, user)
}

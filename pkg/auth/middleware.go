package auth

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/mkoskinen/benchcom/pkg/apperror"
	"github.com/mkoskinen/benchcom/pkg/logger"
)

// Account is the subset of a user record needed to authorize a request.
type Account struct {
	ID       int64
	IsActive bool
	IsAdmin  bool
}

// UserLookup resolves a token subject to an account. It returns an error
// matching apperror.ErrNotFound when the user does not exist.
type UserLookup interface {
	LookupAccount(ctx context.Context, id int64) (Account, error)
}

// Middleware resolves identities and enforces the access policy on routes.
type Middleware struct {
	tokens *TokenService
	users  UserLookup
	policy Policy
	log    *slog.Logger
}

// NewMiddleware creates a new auth middleware
func NewMiddleware(tokens *TokenService, users UserLookup, policy Policy, log *slog.Logger) *Middleware {
	return &Middleware{
		tokens: tokens,
		users:  users,
		policy: policy,
		log:    log.With(logger.Scope("auth")),
	}
}

// Identify resolves the caller on every request. A request without a
// bearer token is anonymous. A token that is present but unusable is
// rejected with 401 instead of falling back to anonymous.
func (m *Middleware) Identify() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			token, present := extractToken(c.Request())
			if !present {
				SetIdentity(c, Anonymous())
				return next(c)
			}
			id, err := m.resolve(c.Request().Context(), token)
			if err != nil {
				return err
			}
			SetIdentity(c, id)
			return next(c)
		}
	}
}

// RequireAuth rejects anonymous callers.
func (m *Middleware) RequireAuth() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if GetIdentity(c).IsAnonymous() {
				return apperror.ErrUnauthorized
			}
			return next(c)
		}
	}
}

// RequireBrowse applies the anonymous browsing policy to read routes.
func (m *Middleware) RequireBrowse() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if c.Request().Method == http.MethodGet || c.Request().Method == http.MethodHead {
				if err := m.policy.CheckBrowse(GetIdentity(c)); err != nil {
					return err
				}
			}
			return next(c)
		}
	}
}

func (m *Middleware) resolve(ctx context.Context, token string) (Identity, error) {
	userID, err := m.tokens.Parse(token)
	if err != nil {
		m.log.Debug("token rejected", logger.Error(err))
		return Identity{}, apperror.ErrInvalidToken
	}
	acct, err := m.users.LookupAccount(ctx, userID)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return Identity{}, apperror.ErrInvalidToken
		}
		m.log.Error("user lookup failed", logger.Error(err))
		return Identity{}, apperror.FromDB(err)
	}
	if !acct.IsActive {
		return Identity{}, apperror.ErrInvalidToken.WithMessage("Inactive user")
	}
	return Authenticated(acct.ID, acct.IsAdmin), nil
}

// extractToken returns the bearer token and whether an Authorization
// header was sent at all.
func extractToken(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return "", false
	}
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", true
	}
	return strings.TrimSpace(token), true
}

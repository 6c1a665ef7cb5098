// Package auth resolves caller identity from bearer tokens and decides what
// an identity may see and do.
package auth

import (
	"strconv"

	"github.com/labstack/echo/v4"
)

// Identity is the resolved caller of a request: anonymous, or an
// authenticated user with an admin flag.
type Identity struct {
	UserID        int64
	IsAdmin       bool
	authenticated bool
}

// Anonymous returns the identity of a caller without credentials.
func Anonymous() Identity {
	return Identity{}
}

// Authenticated returns the identity of a verified user.
func Authenticated(userID int64, isAdmin bool) Identity {
	return Identity{UserID: userID, IsAdmin: isAdmin, authenticated: true}
}

// IsAnonymous reports whether the caller presented no credentials.
func (i Identity) IsAnonymous() bool {
	return !i.authenticated
}

// OwnerID returns the user id to store as a row owner, or nil when anonymous.
func (i Identity) OwnerID() *int64 {
	if !i.authenticated {
		return nil
	}
	id := i.UserID
	return &id
}

// Label is a low-cardinality name for logs and metrics.
func (i Identity) Label() string {
	switch {
	case !i.authenticated:
		return "anonymous"
	case i.IsAdmin:
		return "admin"
	default:
		return "user"
	}
}

func (i Identity) String() string {
	if !i.authenticated {
		return "anonymous"
	}
	return "user:" + strconv.FormatInt(i.UserID, 10)
}

const identityContextKey = "auth_identity"

// GetIdentity returns the identity stored by Middleware.Identify, or
// Anonymous when none was stored.
func GetIdentity(c echo.Context) Identity {
	if id, ok := c.Get(identityContextKey).(Identity); ok {
		return id
	}
	return Anonymous()
}

// SetIdentity stores the caller identity on the request context.
func SetIdentity(c echo.Context, id Identity) {
	c.Set(identityContextKey, id)
}

package auth

import (
	"github.com/mkoskinen/benchcom/internal/config"
	"github.com/mkoskinen/benchcom/pkg/apperror"
)

// Policy is the deployment's anonymous access configuration.
type Policy struct {
	AllowAnonymousSubmissions bool
	AllowAnonymousBrowsing    bool
	// AnonymousAdmin gives anonymous callers admin visibility: browsing
	// and sensitive fields. It never grants delete.
	AnonymousAdmin        bool
	StatsRefreshAdminOnly bool
}

// NewPolicy builds the policy from configuration.
func NewPolicy(cfg *config.Config) Policy {
	return Policy{
		AllowAnonymousSubmissions: cfg.Access.AllowAnonymousSubmissions,
		AllowAnonymousBrowsing:    cfg.Access.AllowAnonymousBrowsing,
		AnonymousAdmin:            cfg.Access.AnonymousAdmin,
		StatsRefreshAdminOnly:     cfg.Access.StatsRefreshAdminOnly,
	}
}

// Capabilities is what a caller may do with one run.
type Capabilities struct {
	CanReadSensitive bool
	CanDelete        bool
}

// Capabilities evaluates the caller against a run owned by ownerID (nil for
// anonymous runs). Anonymous callers never get delete rights.
func (p Policy) Capabilities(id Identity, ownerID *int64) Capabilities {
	if id.IsAnonymous() {
		return Capabilities{CanReadSensitive: p.AnonymousAdmin}
	}
	owner := ownerID != nil && *ownerID == id.UserID
	allowed := id.IsAdmin || owner
	return Capabilities{CanReadSensitive: allowed, CanDelete: allowed}
}

// CheckSubmit returns ErrUnauthorized when anonymous submissions are disabled.
func (p Policy) CheckSubmit(id Identity) error {
	if id.IsAnonymous() && !p.AllowAnonymousSubmissions {
		return apperror.ErrUnauthorized.WithMessage("Anonymous submissions are disabled, please log in")
	}
	return nil
}

// CheckBrowse returns ErrUnauthorized when anonymous browsing is disabled
// and the anonymous-admin override is off.
func (p Policy) CheckBrowse(id Identity) error {
	if id.IsAnonymous() && !p.AllowAnonymousBrowsing && !p.AnonymousAdmin {
		return apperror.ErrUnauthorized.WithMessage("Anonymous browsing is disabled, please log in")
	}
	return nil
}

// CheckStatsRefresh gates the manual full refresh when it is restricted to admins.
func (p Policy) CheckStatsRefresh(id Identity) error {
	if !p.StatsRefreshAdminOnly {
		return nil
	}
	if id.IsAdmin || (id.IsAnonymous() && p.AnonymousAdmin) {
		return nil
	}
	return apperror.NewForbidden("Stats refresh requires admin privileges")
}

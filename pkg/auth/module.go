package auth

import "go.uber.org/fx"

// Module provides the token service, password hasher, access policy and
// middleware. A UserLookup must be supplied by the users domain.
var Module = fx.Module("auth",
	fx.Provide(
		NewPolicy,
		NewTokenService,
		NewPasswordHasher,
		NewMiddleware,
	),
)

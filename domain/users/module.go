package users

import (
	"go.uber.org/fx"

	"github.com/mkoskinen/benchcom/pkg/auth"
)

// Module provides the users domain and the account lookup used by auth.
var Module = fx.Module("users",
	fx.Provide(NewRepository),
	fx.Provide(
		fx.Annotate(
			func(r *Repository) Store { return r },
			fx.As(new(Store)),
		),
		fx.Annotate(
			func(r *Repository) auth.UserLookup { return r },
			fx.As(new(auth.UserLookup)),
		),
	),
	fx.Provide(NewService),
	fx.Provide(NewHandler),
	fx.Invoke(RegisterRoutes),
)

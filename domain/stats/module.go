package stats

import "go.uber.org/fx"

// Module provides the stats cache, its refresher, the periodic rebuild
// and the read views.
var Module = fx.Module("stats",
	fx.Provide(NewRepository),
	fx.Provide(
		fx.Annotate(
			func(r *Repository) Store { return r },
			fx.As(new(Store)),
		),
	),
	fx.Provide(NewService),
	fx.Provide(NewHandler),
	fx.Provide(NewRebuilder),
	fx.Invoke(RegisterRoutes),
	fx.Invoke(RegisterRebuilder),
)

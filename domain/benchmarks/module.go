package benchmarks

import (
	"go.uber.org/fx"

	"github.com/mkoskinen/benchcom/domain/stats"
)

// Module provides benchmark submission and browsing. The stats service is
// the refresher run after every write.
var Module = fx.Module("benchmarks",
	fx.Provide(NewRepository),
	fx.Provide(
		fx.Annotate(
			func(r *Repository) Store { return r },
			fx.As(new(Store)),
		),
		fx.Annotate(
			func(s *stats.Service) Refresher { return s },
			fx.As(new(Refresher)),
		),
	),
	fx.Provide(NewSubmitRateLimiter),
	fx.Provide(NewService),
	fx.Provide(NewHandler),
	fx.Invoke(RegisterRoutes),
)

package health

import (
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/fx"
)

var Module = fx.Module("health",
	fx.Provide(
		fx.Annotate(
			func(pool *pgxpool.Pool) Pinger { return pool },
			fx.As(new(Pinger)),
		),
		NewHandler,
	),
	fx.Invoke(RegisterRoutes),
	fx.Invoke(RegisterPoolMetrics),
)

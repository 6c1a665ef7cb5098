// Command refresh-stats rebuilds the stats cache from stored benchmark
// results. Without flags it recomputes everything; -cpu, -arch and -system
// restrict the rebuild to one scope.
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/fx"

	"github.com/mkoskinen/benchcom/domain/stats"
	"github.com/mkoskinen/benchcom/internal/config"
	"github.com/mkoskinen/benchcom/internal/database"
	"github.com/mkoskinen/benchcom/pkg/auth"
	"github.com/mkoskinen/benchcom/pkg/logger"
)

func main() {
	cpu := flag.String("cpu", "", "Only refresh this CPU model")
	arch := flag.String("arch", "", "Only refresh this architecture")
	system := flag.String("system", "", "Only refresh this system type")
	timeout := flag.Duration("timeout", 10*time.Minute, "Overall timeout")
	flag.Parse()

	_ = godotenv.Load(".env")
	_ = godotenv.Overload(".env.local")

	scope := stats.Scope{
		CPUModel:     optional(*cpu),
		Architecture: optional(*arch),
		SystemType:   optional(*system),
	}

	var (
		svc *stats.Service
		log *slog.Logger
	)
	app := fx.New(
		fx.NopLogger,
		logger.Module,
		config.Module,
		database.Module,
		fx.Provide(
			auth.NewPolicy,
			stats.NewRepository,
			fx.Annotate(
				func(r *stats.Repository) stats.Store { return r },
				fx.As(new(stats.Store)),
			),
			stats.NewService,
		),
		fx.Populate(&svc, &log),
	)

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	if err := app.Start(ctx); err != nil {
		slog.Error("failed to start", logger.Error(err))
		os.Exit(1)
	}
	defer func() { _ = app.Stop(context.Background()) }()

	started := time.Now()
	if err := svc.Refresh(ctx, scope); err != nil {
		log.Error("stats refresh failed", slog.String("scope", scope.String()), logger.Error(err))
		_ = app.Stop(context.Background())
		os.Exit(1)
	}
	log.Info("stats refreshed",
		slog.String("scope", scope.String()),
		slog.Duration("took", time.Since(started)),
	)
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

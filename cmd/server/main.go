// Package main provides the entry point for the BENCHCOM API server.
//
// @title BENCHCOM API
// @description Benchmark result collection and comparison service
// @BasePath /api/v1
// @schemes http https
//
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description JWT access token (format: "Bearer <token>")
package main

import (
	"log/slog"

	"github.com/joho/godotenv"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"

	"github.com/mkoskinen/benchcom/domain/benchmarks"
	"github.com/mkoskinen/benchcom/domain/health"
	"github.com/mkoskinen/benchcom/domain/stats"
	"github.com/mkoskinen/benchcom/domain/tracing"
	"github.com/mkoskinen/benchcom/domain/users"
	"github.com/mkoskinen/benchcom/internal/config"
	"github.com/mkoskinen/benchcom/internal/database"
	"github.com/mkoskinen/benchcom/internal/migrate"
	"github.com/mkoskinen/benchcom/internal/server"
	"github.com/mkoskinen/benchcom/pkg/auth"
	"github.com/mkoskinen/benchcom/pkg/logger"
)

func main() {
	// Load .env files if present (local development).
	// Load never overwrites set vars; Overload lets .env.local win over .env.
	_ = godotenv.Load(".env")
	_ = godotenv.Overload(".env.local")

	fx.New(
		fx.WithLogger(func(log *slog.Logger) fxevent.Logger {
			return &fxevent.SlogLogger{Logger: log}
		}),

		// Infrastructure
		logger.Module,
		config.Module,
		database.Module,
		migrate.Module,
		server.Module,
		tracing.Module,

		auth.Module,

		// Domain
		users.Module,
		stats.Module,
		benchmarks.Module,
		health.Module,
	).Run()
}

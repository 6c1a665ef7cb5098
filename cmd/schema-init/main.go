// Command schema-init applies the embedded BENCHCOM schema and exits. It does
// what DB_AUTO_MIGRATE does at server start, for deployments that keep
// automatic migration off.
package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"

	"github.com/mkoskinen/benchcom/internal/config"
	"github.com/mkoskinen/benchcom/internal/migrate"
	"github.com/mkoskinen/benchcom/pkg/logger"
)

func main() {
	timeout := flag.Duration("timeout", 5*time.Minute, "Overall timeout")
	flag.Parse()

	_ = godotenv.Load(".env")
	_ = godotenv.Overload(".env.local")

	log := logger.NewLogger()

	if err := run(*timeout, log); err != nil {
		log.Error("schema init failed", logger.Error(err))
		os.Exit(1)
	}
}

func run(timeout time.Duration, log *slog.Logger) error {
	cfg, err := config.NewConfig(log)
	if err != nil {
		return err
	}

	zl, err := logger.NewZapLogger()
	if err != nil {
		return fmt.Errorf("create zap logger: %w", err)
	}
	defer func() { _ = zl.Sync() }()

	sqldb := sql.OpenDB(pgdriver.NewConnector(
		pgdriver.WithDSN(cfg.Database.DSN()),
		pgdriver.WithApplicationName("benchcom-schema-init"),
	))
	db := bun.NewDB(sqldb, pgdialect.New())
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		return fmt.Errorf("ping database: %w", err)
	}

	m := migrate.NewMigrator(db, zl)
	if err := m.Up(ctx); err != nil {
		return err
	}

	version, err := m.Version(ctx)
	if err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}
	log.Info("schema ready", slog.Int64("version", version))
	return nil
}

// Package migrate applies the embedded schema with goose when the server starts.
package migrate

import (
	"context"
	"database/sql"
	"fmt"
	"io/fs"

	"github.com/pressly/goose/v3"
	"github.com/uptrace/bun"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/mkoskinen/benchcom/internal/config"
	"github.com/mkoskinen/benchcom/migrations"
)

// Module provides the migrator and applies pending migrations on start
// when DB_AUTO_MIGRATE is set.
var Module = fx.Module("migrate",
	fx.Provide(NewMigrator),
	fx.Invoke(RegisterAutoMigrate),
)

// Migrator applies the embedded schema.
type Migrator struct {
	db     *sql.DB
	fsys   fs.FS
	logger *zap.Logger
}

// NewMigrator creates a new Migrator instance.
func NewMigrator(db *bun.DB, logger *zap.Logger) *Migrator {
	return newMigrator(db.DB, migrations.FS, logger)
}

func newMigrator(db *sql.DB, fsys fs.FS, logger *zap.Logger) *Migrator {
	return &Migrator{
		db:     db,
		fsys:   fsys,
		logger: logger.Named("migrator"),
	}
}

func (m *Migrator) prepare() error {
	goose.SetBaseFS(m.fsys)
	goose.SetLogger(zapGooseLogger{m.logger.Sugar()})
	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("failed to set dialect: %w", err)
	}
	return nil
}

// Up runs all pending migrations.
func (m *Migrator) Up(ctx context.Context) error {
	m.logger.Info("running database migrations")

	if err := m.prepare(); err != nil {
		return err
	}
	if err := goose.UpContext(ctx, m.db, "."); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	version, err := goose.GetDBVersionContext(ctx, m.db)
	if err != nil {
		return fmt.Errorf("failed to read schema version: %w", err)
	}
	m.logger.Info("migrations completed successfully", zap.Int64("version", version))
	return nil
}

// Version returns the current schema version.
func (m *Migrator) Version(ctx context.Context) (int64, error) {
	if err := m.prepare(); err != nil {
		return 0, err
	}
	return goose.GetDBVersionContext(ctx, m.db)
}

// RegisterAutoMigrate runs Up before the HTTP server starts accepting requests.
func RegisterAutoMigrate(lc fx.Lifecycle, cfg *config.Config, m *Migrator) {
	if !cfg.Database.AutoMigrate {
		m.logger.Info("automatic migrations disabled")
		return
	}
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			return m.Up(ctx)
		},
	})
}

// zapGooseLogger routes goose output through zap.
type zapGooseLogger struct {
	s *zap.SugaredLogger
}

func (l zapGooseLogger) Fatalf(format string, v ...any) { l.s.Errorf(format, v...) }
func (l zapGooseLogger) Printf(format string, v ...any) { l.s.Infof(format, v...) }

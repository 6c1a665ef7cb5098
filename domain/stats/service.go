package stats

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/mkoskinen/benchcom/internal/config"
	"github.com/mkoskinen/benchcom/pkg/apperror"
	"github.com/mkoskinen/benchcom/pkg/auth"
	"github.com/mkoskinen/benchcom/pkg/logger"
	"github.com/mkoskinen/benchcom/pkg/mathutil"
	"github.com/mkoskinen/benchcom/pkg/tracing"
)

// Service recomputes and serves the per-hardware stats cache.
type Service struct {
	store  Store
	policy auth.Policy
	limits config.LimitsConfig
	now    func() time.Time
	log    *slog.Logger
}

// NewService creates a new stats service
func NewService(store Store, policy auth.Policy, cfg *config.Config, log *slog.Logger) *Service {
	return &Service{
		store:  store,
		policy: policy,
		limits: cfg.Limits,
		now:    time.Now,
		log:    log.With(logger.Scope("stats.svc")),
	}
}

// Refresh recomputes every stat row inside scope from the current results.
// Rows in scope that no longer have data are removed.
func (s *Service) Refresh(ctx context.Context, scope Scope) (err error) {
	ctx, span := tracing.Start(ctx, "stats.Refresh", attribute.String("stats.scope", scope.String()))
	defer span.End()

	label := scope.Label()
	start := time.Now()
	defer func() {
		RefreshDuration.WithLabelValues(label).Observe(time.Since(start).Seconds())
		result := "ok"
		if err != nil {
			result = "error"
			tracing.Fail(span, err)
		}
		RefreshTotal.WithLabelValues(label, result).Inc()
	}()

	samples, err := s.store.LoadSamples(ctx, scope)
	if err != nil {
		return fmt.Errorf("load samples: %w", err)
	}
	rows := Aggregate(samples, s.now().UTC())

	res, err := s.store.ReplaceScope(ctx, scope, rows)
	if err != nil {
		return fmt.Errorf("replace stats: %w", err)
	}
	RefreshRows.WithLabelValues("upsert").Add(float64(res.Upserted))
	RefreshRows.WithLabelValues("delete").Add(float64(res.Deleted))

	s.log.Debug("stats refreshed",
		slog.String("scope", scope.String()),
		slog.Int("samples", len(samples)),
		slog.Int("upserted", res.Upserted),
		slog.Int("deleted", res.Deleted),
		slog.Duration("duration", time.Since(start)),
	)
	return nil
}

// RefreshAll runs a full recompute on behalf of a caller.
func (s *Service) RefreshAll(ctx context.Context, id auth.Identity) (*RefreshResponse, error) {
	if err := s.policy.CheckStatsRefresh(id); err != nil {
		return nil, err
	}
	if err := s.Refresh(ctx, Scope{}); err != nil {
		s.log.Error("full stats refresh failed", logger.Error(err))
		return nil, apperror.FromDB(err)
	}
	return &RefreshResponse{Status: "ok", Message: "Stats refreshed"}, nil
}

// ByTest returns the grouped aggregates of one test.
func (s *Service) ByTest(ctx context.Context, testName, groupBy, architecture string, limit int) ([]GroupRow, error) {
	testName = strings.TrimSpace(testName)
	if testName == "" {
		return nil, apperror.NewValidation("test_name", "test_name is required")
	}
	g, ok := ParseGroupBy(groupBy)
	if !ok {
		return nil, apperror.NewValidation("group_by", "group_by must be one of cpu, system, architecture")
	}
	return s.store.ByTest(ctx, ByTestQuery{
		TestName:     testName,
		GroupBy:      g,
		Architecture: architecture,
		Limit:        mathutil.ClampLimit(limit, s.limits.PageDefaultLimit, s.limits.PageMaxLimit),
	})
}

// ByCPU returns all aggregates of one CPU.
func (s *Service) ByCPU(ctx context.Context, cpuModel, architecture string) ([]Stat, error) {
	if strings.TrimSpace(cpuModel) == "" {
		return nil, apperror.NewValidation("cpu_model", "cpu_model is required")
	}
	return s.store.ByCPU(ctx, cpuModel, architecture)
}

// AvailableCPUs lists the CPUs present in the cache.
func (s *Service) AvailableCPUs(ctx context.Context) ([]CPUInfo, error) {
	return s.store.AvailableCPUs(ctx)
}

// AvailableSystems lists the system types present in the cache.
func (s *Service) AvailableSystems(ctx context.Context) ([]SystemInfo, error) {
	return s.store.AvailableSystems(ctx)
}

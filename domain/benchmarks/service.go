package benchmarks

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/mkoskinen/benchcom/domain/stats"
	"github.com/mkoskinen/benchcom/internal/config"
	"github.com/mkoskinen/benchcom/internal/database"
	"github.com/mkoskinen/benchcom/pkg/apperror"
	"github.com/mkoskinen/benchcom/pkg/auth"
	"github.com/mkoskinen/benchcom/pkg/logger"
	"github.com/mkoskinen/benchcom/pkg/mathutil"
	"github.com/mkoskinen/benchcom/pkg/tracing"
)

// Refresher recomputes the stats cache for one hardware key.
type Refresher interface {
	Refresh(ctx context.Context, scope stats.Scope) error
}

// Service implements submission, browsing and deletion of benchmark runs.
type Service struct {
	store          Store
	refresher      Refresher
	policy         auth.Policy
	limits         config.LimitsConfig
	refreshTimeout time.Duration
	log            *slog.Logger
}

// NewService creates a new benchmarks service
func NewService(store Store, refresher Refresher, policy auth.Policy, cfg *config.Config, log *slog.Logger) *Service {
	return &Service{
		store:          store,
		refresher:      refresher,
		policy:         policy,
		limits:         cfg.Limits,
		refreshTimeout: cfg.Stats.RefreshTimeout,
		log:            log.With(logger.Scope("benchmarks.svc")),
	}
}

// Submit validates and stores a run with its results, then refreshes the
// stats of the run's hardware key.
func (s *Service) Submit(ctx context.Context, id auth.Identity, req SubmitRequest, ip string) (*SubmitResponse, error) {
	ctx, span := tracing.Start(ctx, "benchmarks.Submit",
		attribute.String("benchcom.identity", id.Label()),
		attribute.Int("benchcom.results", len(req.Results)),
	)
	defer span.End()

	if err := s.policy.CheckSubmit(id); err != nil {
		SubmissionsRejected.WithLabelValues("unauthorized").Inc()
		return nil, err
	}
	if err := validateSubmission(&req, s.limits); err != nil {
		SubmissionsRejected.WithLabelValues("validation").Inc()
		return nil, err
	}

	run := NewRun{
		Hostname:             strings.TrimSpace(req.Hostname),
		Architecture:         strings.TrimSpace(req.Architecture),
		CPUModel:             req.CPUModel,
		CPUCores:             req.CPUCores,
		TotalMemoryMB:        req.TotalMemoryMB,
		OSInfo:               req.OSInfo,
		KernelVersion:        req.KernelVersion,
		BenchmarkStartedAt:   parseClientTimestamp(req.BenchmarkStartedAt),
		BenchmarkCompletedAt: parseClientTimestamp(req.BenchmarkCompletedAt),
		UserID:               id.OwnerID(),
		IsAnonymous:          id.IsAnonymous(),
		BenchmarkVersion:     req.BenchmarkVersion,
		RunTypeVersion:       req.RunTypeVersion,
		Labels:               req.Labels,
		Tags:                 req.Tags,
		Notes:                req.Notes,
		DMIInfo:              req.DMIInfo,
		ConsoleOutput:        req.ConsoleOutput,
	}
	if run.BenchmarkVersion == "" {
		run.BenchmarkVersion = DefaultBenchmarkVersion
	}
	if ip != "" {
		run.SubmitterIP = &ip
	}

	runID, err := s.store.CreateRun(ctx, run, req.Results)
	if err != nil {
		tracing.Fail(span, err)
		return nil, err
	}
	span.SetAttributes(attribute.Int64("benchcom.run_id", runID))

	SubmissionsTotal.WithLabelValues(id.Label()).Inc()
	SubmissionResultsTotal.Add(float64(len(req.Results)))
	s.log.Info("benchmark submitted",
		slog.Int64("run_id", runID),
		slog.String("identity", id.String()),
		slog.Int("results", len(req.Results)),
	)

	s.refresh(ctx, stats.ScopeFor(run.CPUModel, run.Architecture, run.DMIInfo))

	return &SubmitResponse{ID: runID, Message: "Benchmark submitted successfully"}, nil
}

// refresh recomputes stats for scope. It outlives request cancellation but
// is bounded by the refresh timeout; failures are logged only.
func (s *Service) refresh(ctx context.Context, scope stats.Scope) {
	ctx, cancel := database.WithTimeout(context.WithoutCancel(ctx), s.refreshTimeout)
	defer cancel()

	if err := s.refresher.Refresh(ctx, scope); err != nil {
		s.log.Warn("stats refresh failed",
			slog.String("scope", scope.String()),
			logger.Error(err),
		)
	}
}

// List returns run summaries, newest first.
func (s *Service) List(ctx context.Context, f RunFilter, limit, offset int) ([]RunSummary, error) {
	limit = mathutil.ClampLimit(limit, s.limits.PageDefaultLimit, s.limits.PageMaxLimit)
	offset = mathutil.ClampOffset(offset)
	return s.store.ListRuns(ctx, f, limit, offset)
}

// Get returns a run, redacted unless the caller may read sensitive fields.
func (s *Service) Get(ctx context.Context, id auth.Identity, runID int64) (*RunDetail, error) {
	detail, err := s.store.GetRun(ctx, runID)
	if err != nil {
		return nil, err
	}
	if !s.policy.Capabilities(id, detail.UserID).CanReadSensitive {
		detail.Redact()
	}
	return detail, nil
}

// Delete removes a run owned by the caller, or any run for an admin.
func (s *Service) Delete(ctx context.Context, id auth.Identity, runID int64) error {
	ctx, span := tracing.Start(ctx, "benchmarks.Delete", attribute.Int64("benchcom.run_id", runID))
	defer span.End()

	if id.IsAnonymous() {
		return apperror.ErrUnauthorized
	}
	ref, err := s.store.GetRunRef(ctx, runID)
	if err != nil {
		return err
	}
	if !s.policy.Capabilities(id, ref.UserID).CanDelete {
		return apperror.NewForbidden("Not allowed to delete this benchmark")
	}
	if err := s.store.DeleteRun(ctx, runID); err != nil {
		tracing.Fail(span, err)
		return err
	}

	DeletionsTotal.Inc()
	s.log.Info("benchmark deleted", slog.Int64("run_id", runID), slog.String("identity", id.String()))

	s.refresh(ctx, stats.ScopeFor(ref.CPUModel, ref.Architecture, ref.DMIInfo))
	return nil
}

// ResultsByTest returns result rows sorted best first.
func (s *Service) ResultsByTest(ctx context.Context, f ResultFilter, limit int) ([]ResultRow, error) {
	limit = mathutil.ClampLimit(limit, s.limits.PageDefaultLimit, s.limits.PageMaxLimit)
	return s.store.ListResultsByTest(ctx, f, limit)
}

// Tests lists the distinct tests with their result counts.
func (s *Service) Tests(ctx context.Context) ([]TestInfo, error) {
	return s.store.ListTests(ctx)
}

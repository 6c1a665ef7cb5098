package stats

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/fx"

	"github.com/mkoskinen/benchcom/internal/config"
	"github.com/mkoskinen/benchcom/pkg/logger"
)

const rebuildTask = "stats_rebuild"

type scopeRefresher interface {
	Refresh(ctx context.Context, scope Scope) error
}

// Rebuilder periodically recomputes the whole stats cache so rows left
// stale by a failed post-submit refresh converge again.
type Rebuilder struct {
	cron     *cron.Cron
	svc      scopeRefresher
	schedule string
	timeout  time.Duration
	log      *slog.Logger
}

// NewRebuilder validates STATS_REBUILD_SCHEDULE and registers the rebuild task.
// An empty schedule yields a disabled Rebuilder.
func NewRebuilder(svc *Service, cfg *config.Config, log *slog.Logger) (*Rebuilder, error) {
	return newRebuilder(svc, cfg.Stats, log)
}

func newRebuilder(svc scopeRefresher, cfg config.StatsConfig, log *slog.Logger) (*Rebuilder, error) {
	log = log.With(logger.Scope("stats.rebuild"))
	r := &Rebuilder{
		svc:      svc,
		schedule: cfg.RebuildSchedule,
		timeout:  cfg.RebuildTimeout,
		log:      log,
	}
	if r.schedule == "" {
		return r, nil
	}

	cl := cronLogger{log}
	r.cron = cron.New(
		cron.WithLogger(cl),
		cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
	)
	if _, err := r.cron.AddFunc(r.schedule, r.run); err != nil {
		return nil, fmt.Errorf("invalid STATS_REBUILD_SCHEDULE %q: %w", r.schedule, err)
	}
	return r, nil
}

// Enabled reports whether a rebuild schedule is configured.
func (r *Rebuilder) Enabled() bool {
	return r.cron != nil
}

// Start begins firing the schedule.
func (r *Rebuilder) Start() {
	if !r.Enabled() {
		r.log.Info("periodic stats rebuild disabled")
		return
	}
	r.cron.Start()
	r.log.Info("periodic stats rebuild scheduled",
		slog.String("task", rebuildTask),
		slog.String("schedule", r.schedule),
		slog.Time("next_run", r.nextRun()))
}

// Stop waits for a running rebuild to finish or for ctx to expire.
func (r *Rebuilder) Stop(ctx context.Context) {
	if !r.Enabled() {
		return
	}
	select {
	case <-r.cron.Stop().Done():
		r.log.Info("stats rebuild stopped")
	case <-ctx.Done():
		r.log.Warn("stats rebuild stop timeout")
	}
}

// nextRun returns the next scheduled rebuild, or the zero time when disabled.
func (r *Rebuilder) nextRun() time.Time {
	if !r.Enabled() {
		return time.Time{}
	}
	entries := r.cron.Entries()
	if len(entries) == 0 {
		return time.Time{}
	}
	return entries[0].Next
}

func (r *Rebuilder) run() {
	start := time.Now()
	ctx := context.Background()
	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	if err := r.svc.Refresh(ctx, Scope{}); err != nil {
		r.log.Error("scheduled stats rebuild failed",
			slog.Duration("duration", time.Since(start)),
			logger.Error(err))
		return
	}
	r.log.Info("scheduled stats rebuild completed",
		slog.Duration("duration", time.Since(start)))
}

// RegisterRebuilder ties the rebuild schedule to the fx lifecycle.
func RegisterRebuilder(lc fx.Lifecycle, r *Rebuilder) {
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			r.Start()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			r.Stop(ctx)
			return nil
		},
	})
}

// cronLogger routes cron's own logging through slog. Wakeups are debug noise.
type cronLogger struct {
	log *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.log.Debug(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.log.Error(msg, append(keysAndValues, logger.Error(err))...)
}

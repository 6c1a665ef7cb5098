package stats

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/uptrace/bun"

	"github.com/mkoskinen/benchcom/internal/config"
	"github.com/mkoskinen/benchcom/internal/database"
	"github.com/mkoskinen/benchcom/pkg/apperror"
	"github.com/mkoskinen/benchcom/pkg/jsondoc"
	"github.com/mkoskinen/benchcom/pkg/logger"
	"github.com/mkoskinen/benchcom/pkg/querybuilder"
)

// Store is the persistence surface of the stats service.
type Store interface {
	LoadSamples(ctx context.Context, scope Scope) ([]Sample, error)
	ReplaceScope(ctx context.Context, scope Scope, rows []Stat) (ReplaceResult, error)
	ByTest(ctx context.Context, q ByTestQuery) ([]GroupRow, error)
	ByCPU(ctx context.Context, cpuModel, architecture string) ([]Stat, error)
	AvailableCPUs(ctx context.Context) ([]CPUInfo, error)
	AvailableSystems(ctx context.Context) ([]SystemInfo, error)
}

// ReplaceResult counts the rows a refresh touched.
type ReplaceResult struct {
	Upserted int
	Deleted  int
}

// ByTestQuery parameterizes the grouped by-test view. Limit must already
// be clamped.
type ByTestQuery struct {
	TestName     string
	GroupBy      GroupBy
	Architecture string
	Limit        int
}

var columns = querybuilder.NewWhitelist(
	[]string{
		"br.cpu_model", "br.architecture",
		"bs.cpu_model", "bs.architecture", "bs.system_type", "bs.test_name",
	},
	[]string{"br", "bres", "bs"},
)

// Repository reads samples with pgx and maintains benchmark_stats with bun.
type Repository struct {
	pool           database.Querier
	db             bun.IDB
	queryTimeout   time.Duration
	refreshTimeout time.Duration
	log            *slog.Logger
}

// NewRepository creates a new stats repository
func NewRepository(pool database.Querier, db bun.IDB, cfg *config.Config, log *slog.Logger) *Repository {
	return &Repository{
		pool:           pool,
		db:             db,
		queryTimeout:   cfg.Database.QueryTimeout,
		refreshTimeout: cfg.Stats.RefreshTimeout,
		log:            log.With(logger.Scope("stats.repo")),
	}
}

// buildSamplesQuery selects every non-null measurement, narrowed in SQL by
// the scope's architecture and cpu_model. NULL cpu_model rows are keyed as
// UnknownKey, so an UnknownKey scope is narrowed in Go instead.
func buildSamplesQuery(scope Scope) (string, []any, error) {
	b := columns.NewBuilder()

	var conds []querybuilder.Condition
	if scope.Architecture != nil {
		conds = append(conds, querybuilder.Eq("br.architecture", *scope.Architecture))
	}
	if scope.CPUModel != nil && *scope.CPUModel != UnknownKey {
		conds = append(conds, querybuilder.Eq("br.cpu_model", *scope.CPUModel))
	}
	where, err := b.BuildWhere(conds)
	if err != nil {
		return "", nil, err
	}
	if where == "" {
		where = "WHERE bres.value IS NOT NULL"
	} else {
		where += " AND bres.value IS NOT NULL"
	}

	query := fmt.Sprintf(`
SELECT bres.id, br.cpu_model, br.architecture, br.dmi_info,
       bres.test_name, bres.test_category, bres.unit, bres.value
FROM benchmark_results bres
JOIN benchmark_runs br ON bres.run_id = br.id
%s
ORDER BY bres.id`, where)

	return query, b.Params(), nil
}

// LoadSamples returns the scope's measurements keyed for aggregation.
func (r *Repository) LoadSamples(ctx context.Context, scope Scope) ([]Sample, error) {
	query, args, err := buildSamplesQuery(scope)
	if err != nil {
		return nil, apperror.ErrInternal.WithInternal(err)
	}

	ctx, cancel := database.WithTimeout(ctx, r.refreshTimeout)
	defer cancel()

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, apperror.FromDB(err)
	}
	samples, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (Sample, error) {
		var s Sample
		var cpu *string
		var dmi []byte
		if err := row.Scan(&s.ResultID, &cpu, &s.Architecture, &dmi,
			&s.TestName, &s.TestCategory, &s.Unit, &s.Value); err != nil {
			return s, err
		}
		s.CPUModel = CPUKey(cpu)
		s.SystemType = SystemType(jsondoc.Decode(dmi))
		return s, nil
	})
	if err != nil {
		return nil, apperror.FromDB(err)
	}

	out := samples[:0]
	for _, s := range samples {
		if scope.Contains(Key{s.CPUModel, s.Architecture, s.SystemType, s.TestName}) {
			out = append(out, s)
		}
	}
	return out, nil
}

func applyScope(q *bun.SelectQuery, scope Scope) *bun.SelectQuery {
	if scope.CPUModel != nil {
		q = q.Where("bs.cpu_model = ?", *scope.CPUModel)
	}
	if scope.Architecture != nil {
		q = q.Where("bs.architecture = ?", *scope.Architecture)
	}
	if scope.SystemType != nil {
		q = q.Where("bs.system_type = ?", *scope.SystemType)
	}
	return q
}

// ReplaceScope upserts rows and deletes the scope's rows that were not
// produced, in one transaction.
func (r *Repository) ReplaceScope(ctx context.Context, scope Scope, rows []Stat) (ReplaceResult, error) {
	ctx, cancel := database.WithTimeout(ctx, r.refreshTimeout)
	defer cancel()

	tx, err := database.BeginSafeTx(ctx, r.db)
	if err != nil {
		return ReplaceResult{}, apperror.FromDB(err)
	}
	defer func() { _ = tx.Rollback() }()

	var existing []Stat
	if err := applyScope(tx.NewSelect().Model(&existing).
		Column("id", "cpu_model", "architecture", "system_type", "test_name"), scope).
		Scan(ctx); err != nil {
		return ReplaceResult{}, apperror.FromDB(fmt.Errorf("load existing stats: %w", err))
	}

	if len(rows) > 0 {
		if _, err := tx.NewInsert().
			Model(&rows).
			On("CONFLICT (cpu_model, architecture, system_type, test_name) DO UPDATE").
			Set("test_category = EXCLUDED.test_category").
			Set("unit = EXCLUDED.unit").
			Set("median_value = EXCLUDED.median_value").
			Set("mean_value = EXCLUDED.mean_value").
			Set("min_value = EXCLUDED.min_value").
			Set("max_value = EXCLUDED.max_value").
			Set("stddev_value = EXCLUDED.stddev_value").
			Set("sample_count = EXCLUDED.sample_count").
			Set("last_updated = EXCLUDED.last_updated").
			Returning("NULL").
			Exec(ctx); err != nil {
			return ReplaceResult{}, apperror.FromDB(fmt.Errorf("upsert stats: %w", err))
		}
	}

	stale := StaleIDs(existing, rows)
	if len(stale) > 0 {
		if _, err := tx.NewDelete().
			Model((*Stat)(nil)).
			Where("id IN (?)", bun.In(stale)).
			Exec(ctx); err != nil {
			return ReplaceResult{}, apperror.FromDB(fmt.Errorf("delete stale stats: %w", err))
		}
	}

	if err := tx.Commit(); err != nil {
		return ReplaceResult{}, apperror.FromDB(err)
	}
	return ReplaceResult{Upserted: len(rows), Deleted: len(stale)}, nil
}

// statOrder puts lower values first for time units and higher values first
// otherwise, with missing values last.
const statOrder = `CASE WHEN g.unit ILIKE '%second%' THEN g.median_value ELSE -g.median_value END ASC NULLS LAST, g.group_name ASC`

func buildByTestQuery(q ByTestQuery) (string, []any, error) {
	b := columns.NewBuilder()

	groupCol, err := b.Column(q.GroupBy.Column())
	if err != nil {
		return "", nil, err
	}

	conds := []querybuilder.Condition{querybuilder.Eq("bs.test_name", q.TestName)}
	if q.Architecture != "" {
		conds = append(conds, querybuilder.Eq("bs.architecture", q.Architecture))
	}
	where, err := b.BuildWhere(conds)
	if err != nil {
		return "", nil, err
	}

	query := fmt.Sprintf(`
SELECT g.group_name, g.test_name, g.test_category, g.unit, g.median_value,
       g.mean_value, g.min_value, g.max_value, g.sample_count, g.slice_count
FROM (
    SELECT
        %[1]s AS group_name,
        bs.test_name,
        MIN(bs.test_category) AS test_category,
        MIN(bs.unit) AS unit,
        percentile_cont(0.5) WITHIN GROUP (ORDER BY bs.median_value) AS median_value,
        SUM(bs.mean_value * bs.sample_count) / NULLIF(SUM(bs.sample_count), 0) AS mean_value,
        MIN(bs.min_value) AS min_value,
        MAX(bs.max_value) AS max_value,
        SUM(bs.sample_count) AS sample_count,
        COUNT(*) AS slice_count
    FROM benchmark_stats bs
    %[2]s
    GROUP BY %[1]s, bs.test_name
) g
ORDER BY %[3]s
LIMIT %[4]s`, groupCol, where, statOrder, b.AddParameter(q.Limit))

	return query, b.Params(), nil
}

// ByTest aggregates the cached rows of one test per group.
func (r *Repository) ByTest(ctx context.Context, q ByTestQuery) ([]GroupRow, error) {
	query, args, err := buildByTestQuery(q)
	if err != nil {
		return nil, apperror.ErrInternal.WithInternal(err)
	}

	ctx, cancel := database.WithTimeout(ctx, r.queryTimeout)
	defer cancel()

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		r.log.Error("failed to query stats by test", logger.Error(err))
		return nil, apperror.FromDB(err)
	}
	out, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (GroupRow, error) {
		var g GroupRow
		err := row.Scan(&g.GroupName, &g.TestName, &g.TestCategory, &g.Unit, &g.MedianValue,
			&g.MeanValue, &g.MinValue, &g.MaxValue, &g.SampleCount, &g.SliceCount)
		return g, err
	})
	if err != nil {
		return nil, apperror.FromDB(err)
	}
	return out, nil
}

// ByCPU returns every cached row of one CPU.
func (r *Repository) ByCPU(ctx context.Context, cpuModel, architecture string) ([]Stat, error) {
	ctx, cancel := database.WithTimeout(ctx, r.queryTimeout)
	defer cancel()

	out := []Stat{}
	q := r.db.NewSelect().Model(&out).Where("bs.cpu_model = ?", cpuModel)
	if architecture != "" {
		q = q.Where("bs.architecture = ?", architecture)
	}
	if err := q.Order("bs.test_category ASC", "bs.test_name ASC", "bs.system_type ASC", "bs.architecture ASC").
		Scan(ctx); err != nil {
		r.log.Error("failed to query stats by cpu", logger.Error(err))
		return nil, apperror.FromDB(err)
	}
	return out, nil
}

// AvailableCPUs lists the distinct (cpu_model, architecture) pairs with data.
func (r *Repository) AvailableCPUs(ctx context.Context) ([]CPUInfo, error) {
	ctx, cancel := database.WithTimeout(ctx, r.queryTimeout)
	defer cancel()

	out := []CPUInfo{}
	if err := r.db.NewSelect().
		Model((*Stat)(nil)).
		ColumnExpr("bs.cpu_model, bs.architecture").
		ColumnExpr("SUM(bs.sample_count) AS total_samples").
		ColumnExpr("COUNT(DISTINCT bs.test_name) AS test_count").
		Group("bs.cpu_model", "bs.architecture").
		Order("bs.cpu_model ASC", "bs.architecture ASC").
		Scan(ctx, &out); err != nil {
		return nil, apperror.FromDB(err)
	}
	return out, nil
}

// AvailableSystems lists the distinct system types with data.
func (r *Repository) AvailableSystems(ctx context.Context) ([]SystemInfo, error) {
	ctx, cancel := database.WithTimeout(ctx, r.queryTimeout)
	defer cancel()

	out := []SystemInfo{}
	if err := r.db.NewSelect().
		Model((*Stat)(nil)).
		ColumnExpr("bs.system_type").
		ColumnExpr("SUM(bs.sample_count) AS total_samples").
		ColumnExpr("COUNT(DISTINCT bs.cpu_model) AS cpu_count").
		Group("bs.system_type").
		Order("bs.system_type ASC").
		Scan(ctx, &out); err != nil {
		return nil, apperror.FromDB(err)
	}
	return out, nil
}

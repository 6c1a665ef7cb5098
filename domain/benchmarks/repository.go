package benchmarks

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/mkoskinen/benchcom/internal/config"
	"github.com/mkoskinen/benchcom/internal/database"
	"github.com/mkoskinen/benchcom/pkg/apperror"
	"github.com/mkoskinen/benchcom/pkg/jsondoc"
	"github.com/mkoskinen/benchcom/pkg/logger"
	"github.com/mkoskinen/benchcom/pkg/pgutils"
	"github.com/mkoskinen/benchcom/pkg/querybuilder"
)

// Store is the persistence surface the benchmarks service depends on.
type Store interface {
	CreateRun(ctx context.Context, run NewRun, results []ResultInput) (int64, error)
	ListRuns(ctx context.Context, f RunFilter, limit, offset int) ([]RunSummary, error)
	GetRun(ctx context.Context, id int64) (*RunDetail, error)
	GetRunRef(ctx context.Context, id int64) (*RunRef, error)
	DeleteRun(ctx context.Context, id int64) error
	ListResultsByTest(ctx context.Context, f ResultFilter, limit int) ([]ResultRow, error)
	ListTests(ctx context.Context) ([]TestInfo, error)
}

// columns is every column reference dynamic queries in this package may use.
var columns = querybuilder.NewWhitelist(
	[]string{
		"br.id", "br.hostname", "br.architecture", "br.cpu_model", "br.submitted_at",
		"bres.test_name", "bres.test_category", "bres.unit", "bres.value",
	},
	[]string{"br", "bres", "u"},
)

// Repository handles database operations for runs and results.
type Repository struct {
	db      database.TxBeginner
	timeout time.Duration
	log     *slog.Logger
}

// NewRepository creates a new benchmarks repository
func NewRepository(db database.TxBeginner, cfg *config.Config, log *slog.Logger) *Repository {
	return &Repository{
		db:      db,
		timeout: cfg.Database.QueryTimeout,
		log:     log.With(logger.Scope("benchmarks.repo")),
	}
}

const insertRunSQL = `
INSERT INTO benchmark_runs (
    hostname, architecture, cpu_model, cpu_cores, total_memory_mb,
    os_info, kernel_version, benchmark_started_at, benchmark_completed_at,
    user_id, is_anonymous, benchmark_version, run_type_version, labels,
    tags, notes, dmi_info, console_output, submitter_ip
)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15::jsonb, $16, $17::jsonb, $18, $19)
RETURNING id`

const insertResultSQL = `
INSERT INTO benchmark_results (run_id, test_name, test_category, value, unit, raw_output, metrics)
VALUES ($1, $2, $3, $4, $5, $6, $7::jsonb)`

// CreateRun inserts the run and its results in one transaction. Any
// failure rolls back both.
func (r *Repository) CreateRun(ctx context.Context, run NewRun, results []ResultInput) (int64, error) {
	ctx, cancel := database.WithTimeout(ctx, r.timeout)
	defer cancel()

	tags, err := jsondoc.Encode(run.Tags)
	if err != nil {
		return 0, apperror.NewValidation("tags", "tags is not a valid JSON object")
	}
	dmi, err := jsondoc.Encode(run.DMIInfo)
	if err != nil {
		return 0, apperror.NewValidation("dmi_info", "dmi_info is not a valid JSON object")
	}
	labels := run.Labels
	if labels == nil {
		labels = []string{}
	}

	var id int64
	err = database.InTx(ctx, r.db, func(tx pgx.Tx) error {
		if err := tx.QueryRow(ctx, insertRunSQL,
			run.Hostname, run.Architecture, run.CPUModel, run.CPUCores, run.TotalMemoryMB,
			run.OSInfo, run.KernelVersion, run.BenchmarkStartedAt, run.BenchmarkCompletedAt,
			run.UserID, run.IsAnonymous, run.BenchmarkVersion, run.RunTypeVersion, labels,
			tags, run.Notes, dmi, run.ConsoleOutput, run.SubmitterIP,
		).Scan(&id); err != nil {
			return fmt.Errorf("insert run: %w", err)
		}

		batch := &pgx.Batch{}
		for _, res := range results {
			metrics, err := jsondoc.Encode(res.Metrics)
			if err != nil {
				return fmt.Errorf("encode metrics: %w", err)
			}
			batch.Queue(insertResultSQL, id, res.TestName, res.TestCategory, res.Value, res.Unit, res.RawOutput, metrics)
		}
		if batch.Len() == 0 {
			return nil
		}
		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return fmt.Errorf("insert results: %w", err)
		}
		return nil
	})
	if err != nil {
		r.log.Error("failed to store submission", logger.Error(err))
		return 0, submissionError(err)
	}
	return id, nil
}

// submissionError maps a failed submission transaction to the error the
// client sees. Constraint violations are the client's fault, the rest is ours.
func submissionError(err error) error {
	switch {
	case apperror.IsUnavailable(err):
		return apperror.ErrStorageUnavailable.WithInternal(err)
	case pgutils.IsForeignKeyViolation(err):
		return apperror.ErrInvalidToken.WithMessage("Submitting account no longer exists").WithInternal(err)
	case pgutils.IsCheckViolation(err), pgutils.IsNotNullViolation(err):
		return apperror.ErrValidation.
			WithMessage("Submission violates a data constraint").
			WithDetails(map[string]any{"constraint": pgutils.ConstraintName(err)}).
			WithInternal(err)
	case pgutils.IsInvalidTextData(err):
		return apperror.ErrValidation.
			WithMessage("Submission contains text the database cannot store").
			WithInternal(err)
	default:
		return apperror.ErrSubmissionFailed.WithInternal(err)
	}
}

// buildListRunsQuery renders the run summary query. limit and offset must
// already be clamped.
func buildListRunsQuery(f RunFilter, limit, offset int) (string, []any, error) {
	b := columns.NewBuilder()

	var conds []querybuilder.Condition
	if f.Architecture != "" {
		conds = append(conds, querybuilder.Eq("br.architecture", f.Architecture))
	}
	if f.Hostname != "" {
		conds = append(conds, querybuilder.Eq("br.hostname", f.Hostname))
	}
	where, err := b.BuildWhere(conds)
	if err != nil {
		return "", nil, err
	}

	query := fmt.Sprintf(`
SELECT
    br.id, br.hostname, br.architecture, br.cpu_model, br.cpu_cores,
    br.total_memory_mb, br.submitted_at, br.is_anonymous, br.benchmark_version,
    br.labels, u.username, COUNT(bres.id) AS result_count, br.dmi_info
FROM benchmark_runs br
LEFT JOIN users u ON br.user_id = u.id
LEFT JOIN benchmark_results bres ON br.id = bres.run_id
%s
GROUP BY br.id, u.username
ORDER BY br.submitted_at DESC, br.id DESC
LIMIT %s OFFSET %s`, where, b.AddParameter(limit), b.AddParameter(offset))

	return query, b.Params(), nil
}

// ListRuns returns run summaries, newest first.
func (r *Repository) ListRuns(ctx context.Context, f RunFilter, limit, offset int) ([]RunSummary, error) {
	query, args, err := buildListRunsQuery(f, limit, offset)
	if err != nil {
		return nil, apperror.ErrInternal.WithInternal(err)
	}

	ctx, cancel := database.WithTimeout(ctx, r.timeout)
	defer cancel()

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		r.log.Error("failed to list runs", logger.Error(err))
		return nil, apperror.FromDB(err)
	}
	out, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (RunSummary, error) {
		var s RunSummary
		var dmi []byte
		err := row.Scan(&s.ID, &s.Hostname, &s.Architecture, &s.CPUModel, &s.CPUCores,
			&s.TotalMemoryMB, &s.SubmittedAt, &s.IsAnonymous, &s.BenchmarkVersion,
			&s.Labels, &s.Username, &s.ResultCount, &dmi)
		s.DMIInfo = jsondoc.Decode(dmi)
		return s, err
	})
	if err != nil {
		r.log.Error("failed to scan runs", logger.Error(err))
		return nil, apperror.FromDB(err)
	}
	return out, nil
}

const getRunSQL = `
SELECT
    br.id, br.hostname, br.architecture, br.cpu_model, br.cpu_cores, br.total_memory_mb,
    br.os_info, br.kernel_version, br.benchmark_started_at, br.benchmark_completed_at,
    br.submitted_at, br.is_anonymous, br.benchmark_version, br.run_type_version, br.labels,
    br.tags, br.notes, br.dmi_info, br.console_output, u.username, br.submitter_ip, br.user_id
FROM benchmark_runs br
LEFT JOIN users u ON br.user_id = u.id
WHERE br.id = $1`

const getRunResultsSQL = `
SELECT id, test_name, test_category, value, unit, metrics
FROM benchmark_results
WHERE run_id = $1
ORDER BY id`

// GetRun returns the full run with its results in insertion order.
func (r *Repository) GetRun(ctx context.Context, id int64) (*RunDetail, error) {
	ctx, cancel := database.WithTimeout(ctx, r.timeout)
	defer cancel()

	d := &RunDetail{}
	var tags, dmi []byte
	err := r.db.QueryRow(ctx, getRunSQL, id).Scan(
		&d.ID, &d.Hostname, &d.Architecture, &d.CPUModel, &d.CPUCores, &d.TotalMemoryMB,
		&d.OSInfo, &d.KernelVersion, &d.BenchmarkStartedAt, &d.BenchmarkCompletedAt,
		&d.SubmittedAt, &d.IsAnonymous, &d.BenchmarkVersion, &d.RunTypeVersion, &d.Labels,
		&tags, &d.Notes, &dmi, &d.ConsoleOutput, &d.Username, &d.SubmitterIP, &d.UserID,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, notFound(id)
		}
		r.log.Error("failed to load run", logger.Error(err))
		return nil, apperror.FromDB(err)
	}
	d.Tags = jsondoc.Decode(tags)
	d.DMIInfo = jsondoc.Decode(dmi)

	rows, err := r.db.Query(ctx, getRunResultsSQL, id)
	if err != nil {
		r.log.Error("failed to load results", logger.Error(err))
		return nil, apperror.FromDB(err)
	}
	d.Results, err = pgx.CollectRows(rows, func(row pgx.CollectableRow) (Result, error) {
		var res Result
		var metrics []byte
		err := row.Scan(&res.ID, &res.TestName, &res.TestCategory, &res.Value, &res.Unit, &metrics)
		res.Metrics = jsondoc.Decode(metrics)
		return res, err
	})
	if err != nil {
		r.log.Error("failed to scan results", logger.Error(err))
		return nil, apperror.FromDB(err)
	}
	return d, nil
}

// GetRunRef loads the owner and stats key of a run.
func (r *Repository) GetRunRef(ctx context.Context, id int64) (*RunRef, error) {
	ctx, cancel := database.WithTimeout(ctx, r.timeout)
	defer cancel()

	ref := &RunRef{}
	var dmi []byte
	err := r.db.QueryRow(ctx,
		`SELECT id, user_id, cpu_model, architecture, dmi_info FROM benchmark_runs WHERE id = $1`, id,
	).Scan(&ref.ID, &ref.UserID, &ref.CPUModel, &ref.Architecture, &dmi)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, notFound(id)
		}
		return nil, apperror.FromDB(err)
	}
	ref.DMIInfo = jsondoc.Decode(dmi)
	return ref, nil
}

// DeleteRun removes the results and then the run in one transaction.
func (r *Repository) DeleteRun(ctx context.Context, id int64) error {
	ctx, cancel := database.WithTimeout(ctx, r.timeout)
	defer cancel()

	err := database.InTx(ctx, r.db, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `DELETE FROM benchmark_results WHERE run_id = $1`, id); err != nil {
			return fmt.Errorf("delete results: %w", err)
		}
		tag, err := tx.Exec(ctx, `DELETE FROM benchmark_runs WHERE id = $1`, id)
		if err != nil {
			return fmt.Errorf("delete run: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return notFound(id)
		}
		return nil
	})
	if err != nil {
		if !errors.Is(err, apperror.ErrNotFound) {
			r.log.Error("failed to delete run", slog.Int64("run_id", id), logger.Error(err))
		}
		return apperror.FromDB(err)
	}
	return nil
}

// resultOrder puts lower values first for time units and higher values
// first otherwise, with missing values last.
const resultOrder = `CASE WHEN bres.unit ILIKE '%second%' THEN bres.value ELSE -bres.value END ASC NULLS LAST, bres.id ASC`

func buildResultsByTestQuery(f ResultFilter, limit int) (string, []any, error) {
	b := columns.NewBuilder()

	var conds []querybuilder.Condition
	if f.TestName != "" {
		conds = append(conds, querybuilder.Eq("bres.test_name", f.TestName))
	}
	if f.TestCategory != "" {
		conds = append(conds, querybuilder.Eq("bres.test_category", f.TestCategory))
	}
	where, err := b.BuildWhere(conds)
	if err != nil {
		return "", nil, err
	}

	query := fmt.Sprintf(`
SELECT
    bres.id, bres.test_name, bres.test_category, bres.value, bres.unit,
    br.id AS run_id, br.hostname, br.cpu_model, br.cpu_cores, br.architecture, br.submitted_at
FROM benchmark_results bres
JOIN benchmark_runs br ON bres.run_id = br.id
%s
ORDER BY %s
LIMIT %s`, where, resultOrder, b.AddParameter(limit))

	return query, b.Params(), nil
}

// ListResultsByTest returns result rows sorted best first.
func (r *Repository) ListResultsByTest(ctx context.Context, f ResultFilter, limit int) ([]ResultRow, error) {
	query, args, err := buildResultsByTestQuery(f, limit)
	if err != nil {
		return nil, apperror.ErrInternal.WithInternal(err)
	}

	ctx, cancel := database.WithTimeout(ctx, r.timeout)
	defer cancel()

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		r.log.Error("failed to list results", logger.Error(err))
		return nil, apperror.FromDB(err)
	}
	out, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (ResultRow, error) {
		var rr ResultRow
		err := row.Scan(&rr.ID, &rr.TestName, &rr.TestCategory, &rr.Value, &rr.Unit,
			&rr.RunID, &rr.Hostname, &rr.CPUModel, &rr.CPUCores, &rr.Architecture, &rr.SubmittedAt)
		return rr, err
	})
	if err != nil {
		return nil, apperror.FromDB(err)
	}
	return out, nil
}

const listTestsSQL = `
SELECT test_name, test_category, unit, COUNT(*) AS result_count
FROM benchmark_results
GROUP BY test_name, test_category, unit
ORDER BY test_category, test_name, unit NULLS FIRST`

// ListTests returns the distinct tests with their result counts.
func (r *Repository) ListTests(ctx context.Context) ([]TestInfo, error) {
	ctx, cancel := database.WithTimeout(ctx, r.timeout)
	defer cancel()

	rows, err := r.db.Query(ctx, listTestsSQL)
	if err != nil {
		r.log.Error("failed to list tests", logger.Error(err))
		return nil, apperror.FromDB(err)
	}
	out, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (TestInfo, error) {
		var t TestInfo
		err := row.Scan(&t.TestName, &t.TestCategory, &t.Unit, &t.ResultCount)
		return t, err
	})
	if err != nil {
		return nil, apperror.FromDB(err)
	}
	return out, nil
}

func notFound(id int64) error {
	return apperror.NewNotFound("benchmark", strconv.FormatInt(id, 10)).WithMessage("Benchmark not found")
}

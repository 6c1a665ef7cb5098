package benchmarks

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/mkoskinen/benchcom/domain/stats"
	"github.com/mkoskinen/benchcom/internal/config"
	"github.com/mkoskinen/benchcom/pkg/apperror"
	"github.com/mkoskinen/benchcom/pkg/auth"
)

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
}

func testConfig() *config.Config {
	return &config.Config{
		APIPrefix: "/api/v1",
		Auth: config.AuthConfig{
			SecretKey:                "test-secret",
			AccessTokenExpireMinutes: 30,
			BcryptCost:               4,
		},
		Access: config.AccessConfig{
			AllowAnonymousSubmissions: true,
			AllowAnonymousBrowsing:    true,
		},
		Limits: config.LimitsConfig{
			PageDefaultLimit:        50,
			PageMaxLimit:            500,
			MaxResultsPerSubmission: 500,
			MaxConsoleOutputBytes:   1 << 20,
			MaxRawOutputBytes:       64 << 10,
			MaxJSONDocumentBytes:    64 << 10,
			MaxNotesLength:          10000,
			MaxLabels:               32,
			MaxLabelLength:          64,
		},
		RateLimit: config.RateLimitConfig{SubmitPerMinute: 0},
		Stats:     config.StatsConfig{RefreshTimeout: time.Second},
	}
}

type storedRun struct {
	run       NewRun
	results   []ResultInput
	submitted time.Time
}

// fakeStore keeps runs in memory and mirrors the repository's ordering rules.
type fakeStore struct {
	mu        sync.Mutex
	nextID    int64
	runs      map[int64]*storedRun
	createErr error

	lastLimit  int
	lastOffset int
}

func newFakeStore() *fakeStore {
	return &fakeStore{runs: map[int64]*storedRun{}}
}

func (f *fakeStore) CreateRun(_ context.Context, run NewRun, results []ResultInput) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return 0, f.createErr
	}
	f.nextID++
	f.runs[f.nextID] = &storedRun{run: run, results: results, submitted: time.Now().Add(time.Duration(f.nextID) * time.Second)}
	return f.nextID, nil
}

func (f *fakeStore) ListRuns(_ context.Context, filter RunFilter, limit, offset int) ([]RunSummary, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastLimit, f.lastOffset = limit, offset

	out := []RunSummary{}
	for id, r := range f.runs {
		if filter.Architecture != "" && r.run.Architecture != filter.Architecture {
			continue
		}
		if filter.Hostname != "" && r.run.Hostname != filter.Hostname {
			continue
		}
		out = append(out, RunSummary{
			ID:           id,
			Hostname:     r.run.Hostname,
			Architecture: r.run.Architecture,
			CPUModel:     r.run.CPUModel,
			SubmittedAt:  r.submitted,
			IsAnonymous:  r.run.IsAnonymous,
			Labels:       r.run.Labels,
			ResultCount:  int64(len(r.results)),
			DMIInfo:      r.run.DMIInfo,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SubmittedAt.After(out[j].SubmittedAt) })
	if offset >= len(out) {
		return []RunSummary{}, nil
	}
	out = out[offset:]
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (f *fakeStore) GetRun(_ context.Context, id int64) (*RunDetail, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.runs[id]
	if !ok {
		return nil, notFound(id)
	}
	d := &RunDetail{
		ID:               id,
		Hostname:         r.run.Hostname,
		Architecture:     r.run.Architecture,
		CPUModel:         r.run.CPUModel,
		SubmittedAt:      r.submitted,
		IsAnonymous:      r.run.IsAnonymous,
		BenchmarkVersion: r.run.BenchmarkVersion,
		Labels:           r.run.Labels,
		DMIInfo:          r.run.DMIInfo,
		ConsoleOutput:    r.run.ConsoleOutput,
		SubmitterIP:      r.run.SubmitterIP,
		UserID:           r.run.UserID,
		Results:          []Result{},
	}
	for i, res := range r.results {
		d.Results = append(d.Results, Result{
			ID: int64(i + 1), TestName: res.TestName, TestCategory: res.TestCategory,
			Value: res.Value, Unit: res.Unit, Metrics: res.Metrics,
		})
	}
	return d, nil
}

func (f *fakeStore) GetRunRef(_ context.Context, id int64) (*RunRef, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.runs[id]
	if !ok {
		return nil, notFound(id)
	}
	return &RunRef{ID: id, UserID: r.run.UserID, CPUModel: r.run.CPUModel, Architecture: r.run.Architecture, DMIInfo: r.run.DMIInfo}, nil
}

func (f *fakeStore) DeleteRun(_ context.Context, id int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.runs[id]; !ok {
		return notFound(id)
	}
	delete(f.runs, id)
	return nil
}

func (f *fakeStore) ListResultsByTest(_ context.Context, filter ResultFilter, limit int) ([]ResultRow, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastLimit = limit

	out := []ResultRow{}
	for runID, r := range f.runs {
		for i, res := range r.results {
			if filter.TestName != "" && res.TestName != filter.TestName {
				continue
			}
			if filter.TestCategory != "" && res.TestCategory != filter.TestCategory {
				continue
			}
			out = append(out, ResultRow{
				ID: runID*1000 + int64(i), TestName: res.TestName, TestCategory: res.TestCategory,
				Value: res.Value, Unit: res.Unit, RunID: runID, Hostname: r.run.Hostname,
				Architecture: r.run.Architecture, SubmittedAt: r.submitted,
			})
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return betterResult(out[i], out[j]) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// betterResult is the in-memory form of the repository's result ordering.
func betterResult(a, b ResultRow) bool {
	if a.Value == nil || b.Value == nil {
		if a.Value != nil {
			return true
		}
		return false
	}
	ka, kb := *a.Value, *b.Value
	if !isTimeUnit(a.Unit) {
		ka = -ka
	}
	if !isTimeUnit(b.Unit) {
		kb = -kb
	}
	if ka != kb {
		return ka < kb
	}
	return a.ID < b.ID
}

func isTimeUnit(unit *string) bool {
	return unit != nil && strings.Contains(strings.ToLower(*unit), "second")
}

func (f *fakeStore) ListTests(_ context.Context) ([]TestInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	counts := map[string]*TestInfo{}
	for _, r := range f.runs {
		for _, res := range r.results {
			key := res.TestCategory + "\x00" + res.TestName
			if t, ok := counts[key]; ok {
				t.ResultCount++
				continue
			}
			counts[key] = &TestInfo{TestName: res.TestName, TestCategory: res.TestCategory, Unit: res.Unit, ResultCount: 1}
		}
	}
	out := []TestInfo{}
	for _, t := range counts {
		out = append(out, *t)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].TestCategory != out[j].TestCategory {
			return out[i].TestCategory < out[j].TestCategory
		}
		return out[i].TestName < out[j].TestName
	})
	return out, nil
}

type fakeRefresher struct {
	mu     sync.Mutex
	scopes []stats.Scope
	err    error
}

func (f *fakeRefresher) Refresh(ctx context.Context, scope stats.Scope) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if ctx.Err() != nil {
		return ctx.Err()
	}
	f.scopes = append(f.scopes, scope)
	return f.err
}

func (f *fakeRefresher) calls() []stats.Scope {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]stats.Scope(nil), f.scopes...)
}

type fakeAccounts map[int64]auth.Account

func (f fakeAccounts) LookupAccount(_ context.Context, id int64) (auth.Account, error) {
	acct, ok := f[id]
	if !ok {
		return auth.Account{}, apperror.NewNotFound("user", strconv.FormatInt(id, 10))
	}
	return acct, nil
}

var errBoom = errors.New("boom")

func ptr[T any](v T) *T { return &v }

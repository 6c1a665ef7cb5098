package benchmarks

import (
	"time"
)

// DefaultBenchmarkVersion is stored when a client omits benchmark_version.
const DefaultBenchmarkVersion = "1.0"

// ResultInput is one measurement in a submission.
type ResultInput struct {
	TestName     string         `json:"test_name"`
	TestCategory string         `json:"test_category"`
	Value        *float64       `json:"value"`
	Unit         *string        `json:"unit"`
	RawOutput    *string        `json:"raw_output"`
	Metrics      map[string]any `json:"metrics"`
}

// SubmitRequest is the body of POST /benchmarks.
type SubmitRequest struct {
	Hostname             string         `json:"hostname"`
	Architecture         string         `json:"architecture"`
	CPUModel             *string        `json:"cpu_model"`
	CPUCores             *int32         `json:"cpu_cores"`
	TotalMemoryMB        *int64         `json:"total_memory_mb"`
	OSInfo               *string        `json:"os_info"`
	KernelVersion        *string        `json:"kernel_version"`
	BenchmarkStartedAt   *string        `json:"benchmark_started_at"`
	BenchmarkCompletedAt *string        `json:"benchmark_completed_at"`
	BenchmarkVersion     string         `json:"benchmark_version"`
	RunTypeVersion       *string        `json:"run_type_version"`
	Labels               []string       `json:"labels"`
	Tags                 map[string]any `json:"tags"`
	Notes                *string        `json:"notes"`
	DMIInfo              map[string]any `json:"dmi_info"`
	ConsoleOutput        *string        `json:"console_output"`
	Results              []ResultInput  `json:"results"`
}

// SubmitResponse acknowledges a stored submission.
type SubmitResponse struct {
	ID      int64  `json:"id"`
	Message string `json:"message"`
}

// NewRun is a validated run ready for insertion. Server-derived fields
// (owner, anonymity, submitter address, parsed timestamps) are resolved.
type NewRun struct {
	Hostname             string
	Architecture         string
	CPUModel             *string
	CPUCores             *int32
	TotalMemoryMB        *int64
	OSInfo               *string
	KernelVersion        *string
	BenchmarkStartedAt   *time.Time
	BenchmarkCompletedAt *time.Time
	UserID               *int64
	IsAnonymous          bool
	BenchmarkVersion     string
	RunTypeVersion       *string
	Labels               []string
	Tags                 map[string]any
	Notes                *string
	DMIInfo              map[string]any
	ConsoleOutput        *string
	SubmitterIP          *string
}

// RunFilter narrows ListRuns. Empty fields do not filter.
type RunFilter struct {
	Architecture string
	Hostname     string
}

// RunSummary is a row of GET /benchmarks.
type RunSummary struct {
	ID               int64          `json:"id"`
	Hostname         string         `json:"hostname"`
	Architecture     string         `json:"architecture"`
	CPUModel         *string        `json:"cpu_model"`
	CPUCores         *int32         `json:"cpu_cores"`
	TotalMemoryMB    *int64         `json:"total_memory_mb"`
	SubmittedAt      time.Time      `json:"submitted_at"`
	IsAnonymous      bool           `json:"is_anonymous"`
	BenchmarkVersion string         `json:"benchmark_version"`
	Labels           []string       `json:"labels"`
	Username         *string        `json:"username"`
	ResultCount      int64          `json:"result_count"`
	DMIInfo          map[string]any `json:"dmi_info"`
}

// Result is a stored measurement as shown in a run detail.
type Result struct {
	ID           int64          `json:"id"`
	TestName     string         `json:"test_name"`
	TestCategory string         `json:"test_category"`
	Value        *float64       `json:"value"`
	Unit         *string        `json:"unit"`
	Metrics      map[string]any `json:"metrics"`
}

// RunDetail is the response of GET /benchmarks/{id}. SubmitterIP,
// ConsoleOutput and UserID are sensitive and removed by Redact.
type RunDetail struct {
	ID                   int64          `json:"id"`
	Hostname             string         `json:"hostname"`
	Architecture         string         `json:"architecture"`
	CPUModel             *string        `json:"cpu_model"`
	CPUCores             *int32         `json:"cpu_cores"`
	TotalMemoryMB        *int64         `json:"total_memory_mb"`
	OSInfo               *string        `json:"os_info"`
	KernelVersion        *string        `json:"kernel_version"`
	BenchmarkStartedAt   *time.Time     `json:"benchmark_started_at"`
	BenchmarkCompletedAt *time.Time     `json:"benchmark_completed_at"`
	SubmittedAt          time.Time      `json:"submitted_at"`
	IsAnonymous          bool           `json:"is_anonymous"`
	BenchmarkVersion     string         `json:"benchmark_version"`
	RunTypeVersion       *string        `json:"run_type_version"`
	Labels               []string       `json:"labels"`
	Tags                 map[string]any `json:"tags"`
	Notes                *string        `json:"notes"`
	DMIInfo              map[string]any `json:"dmi_info"`
	ConsoleOutput        *string        `json:"console_output"`
	Username             *string        `json:"username"`
	Results              []Result       `json:"results"`
	SubmitterIP          *string        `json:"submitter_ip"`
	UserID               *int64         `json:"user_id"`
}

// Redact clears the fields only the owner or an admin may read.
func (d *RunDetail) Redact() {
	d.SubmitterIP = nil
	d.ConsoleOutput = nil
	d.UserID = nil
}

// RunRef is the slice of a run needed to authorize a delete and to scope
// the stats refresh that follows it.
type RunRef struct {
	ID           int64
	UserID       *int64
	CPUModel     *string
	Architecture string
	DMIInfo      map[string]any
}

// ResultFilter narrows ListResultsByTest. Empty fields do not filter.
type ResultFilter struct {
	TestName     string
	TestCategory string
}

// ResultRow is a row of GET /results/by-test.
type ResultRow struct {
	ID           int64     `json:"id"`
	TestName     string    `json:"test_name"`
	TestCategory string    `json:"test_category"`
	Value        *float64  `json:"value"`
	Unit         *string   `json:"unit"`
	RunID        int64     `json:"run_id"`
	Hostname     string    `json:"hostname"`
	CPUModel     *string   `json:"cpu_model"`
	CPUCores     *int32    `json:"cpu_cores"`
	Architecture string    `json:"architecture"`
	SubmittedAt  time.Time `json:"submitted_at"`
}

// TestInfo is a row of GET /tests.
type TestInfo struct {
	TestName     string  `json:"test_name"`
	TestCategory string  `json:"test_category"`
	Unit         *string `json:"unit"`
	ResultCount  int64   `json:"result_count"`
}

package stats

import (
	"fmt"
	"time"

	"github.com/uptrace/bun"
)

// Stat is one cached aggregate row keyed by (cpu_model, architecture,
// system_type, test_name).
type Stat struct {
	bun.BaseModel `bun:"table:benchmark_stats,alias:bs"`

	ID           int64     `bun:"id,pk,autoincrement" json:"id"`
	CPUModel     string    `bun:"cpu_model,notnull" json:"cpu_model"`
	Architecture string    `bun:"architecture,notnull" json:"architecture"`
	SystemType   string    `bun:"system_type,notnull" json:"system_type"`
	TestName     string    `bun:"test_name,notnull" json:"test_name"`
	TestCategory string    `bun:"test_category,notnull" json:"test_category"`
	Unit         *string   `bun:"unit" json:"unit"`
	MedianValue  *float64  `bun:"median_value" json:"median_value"`
	MeanValue    *float64  `bun:"mean_value" json:"mean_value"`
	MinValue     *float64  `bun:"min_value" json:"min_value"`
	MaxValue     *float64  `bun:"max_value" json:"max_value"`
	StddevValue  *float64  `bun:"stddev_value" json:"stddev_value"`
	SampleCount  int       `bun:"sample_count,notnull" json:"sample_count"`
	LastUpdated  time.Time `bun:"last_updated,notnull" json:"last_updated"`
}

// Key identifies a stat row.
type Key struct {
	CPUModel     string
	Architecture string
	SystemType   string
	TestName     string
}

// Key returns the row's unique key.
func (s *Stat) Key() Key {
	return Key{s.CPUModel, s.Architecture, s.SystemType, s.TestName}
}

// Scope restricts a refresh. Nil fields match everything, so the zero
// Scope is a full recompute.
type Scope struct {
	CPUModel     *string
	Architecture *string
	SystemType   *string
}

// IsFull reports whether the scope covers all data.
func (s Scope) IsFull() bool {
	return s.CPUModel == nil && s.Architecture == nil && s.SystemType == nil
}

// Contains reports whether k falls inside the scope.
func (s Scope) Contains(k Key) bool {
	return matches(s.CPUModel, k.CPUModel) &&
		matches(s.Architecture, k.Architecture) &&
		matches(s.SystemType, k.SystemType)
}

// Label names the scope in metrics.
func (s Scope) Label() string {
	if s.IsFull() {
		return "full"
	}
	return "scoped"
}

func (s Scope) String() string {
	if s.IsFull() {
		return "all"
	}
	return fmt.Sprintf("cpu=%s arch=%s system=%s", orAny(s.CPUModel), orAny(s.Architecture), orAny(s.SystemType))
}

// ScopeFor builds the refresh scope of a single run.
func ScopeFor(cpuModel *string, architecture string, dmi map[string]any) Scope {
	cpu := CPUKey(cpuModel)
	system := SystemType(dmi)
	return Scope{CPUModel: &cpu, Architecture: &architecture, SystemType: &system}
}

func matches(want *string, got string) bool {
	return want == nil || *want == got
}

func orAny(s *string) string {
	if s == nil {
		return "*"
	}
	return *s
}

// GroupBy selects the grouping dimension of the by-test view.
type GroupBy string

const (
	GroupByCPU          GroupBy = "cpu"
	GroupBySystem       GroupBy = "system"
	GroupByArchitecture GroupBy = "architecture"
)

// ParseGroupBy maps a request value to a GroupBy. Empty means cpu.
func ParseGroupBy(s string) (GroupBy, bool) {
	switch GroupBy(s) {
	case "", GroupByCPU:
		return GroupByCPU, true
	case GroupBySystem:
		return GroupBySystem, true
	case GroupByArchitecture:
		return GroupByArchitecture, true
	}
	return "", false
}

// Column is the benchmark_stats column the group maps to.
func (g GroupBy) Column() string {
	switch g {
	case GroupBySystem:
		return "bs.system_type"
	case GroupByArchitecture:
		return "bs.architecture"
	default:
		return "bs.cpu_model"
	}
}

// Sample is one non-null measurement with its derived stats key.
type Sample struct {
	ResultID     int64
	CPUModel     string
	Architecture string
	SystemType   string
	TestName     string
	TestCategory string
	Unit         *string
	Value        float64
}

// GroupRow is one row of GET /stats/by-test.
type GroupRow struct {
	GroupName    string   `json:"group_name"`
	TestName     string   `json:"test_name"`
	TestCategory string   `json:"test_category"`
	Unit         *string  `json:"unit"`
	MedianValue  *float64 `json:"median_value"`
	MeanValue    *float64 `json:"mean_value"`
	MinValue     *float64 `json:"min_value"`
	MaxValue     *float64 `json:"max_value"`
	SampleCount  int64    `json:"sample_count"`
	SliceCount   int64    `json:"slice_count"`
}

// CPUInfo is one row of GET /stats/available-cpus.
type CPUInfo struct {
	CPUModel     string `bun:"cpu_model" json:"cpu_model"`
	Architecture string `bun:"architecture" json:"architecture"`
	TotalSamples int64  `bun:"total_samples" json:"total_samples"`
	TestCount    int64  `bun:"test_count" json:"test_count"`
}

// SystemInfo is one row of GET /stats/available-systems.
type SystemInfo struct {
	SystemType   string `bun:"system_type" json:"system_type"`
	TotalSamples int64  `bun:"total_samples" json:"total_samples"`
	CPUCount     int64  `bun:"cpu_count" json:"cpu_count"`
}

// RefreshResponse is returned by POST /stats/refresh.
type RefreshResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

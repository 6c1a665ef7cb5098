package stats

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildSamplesQuery(t *testing.T) {
	cpu, unknown, arch, sys := "i7", UnknownKey, "x86_64", "Lenovo T490"

	tests := []struct {
		name       string
		scope      Scope
		wantWhere  string
		wantParams []any
	}{
		{"full", Scope{}, "WHERE bres.value IS NOT NULL", nil},
		{
			"scoped",
			Scope{CPUModel: &cpu, Architecture: &arch, SystemType: &sys},
			"WHERE br.architecture = $1 AND br.cpu_model = $2 AND bres.value IS NOT NULL",
			[]any{"x86_64", "i7"},
		},
		{
			"unknown cpu is narrowed after loading",
			Scope{CPUModel: &unknown, Architecture: &arch},
			"WHERE br.architecture = $1 AND bres.value IS NOT NULL",
			[]any{"x86_64"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			query, params, err := buildSamplesQuery(tt.scope)
			require.NoError(t, err)
			assert.Contains(t, query, tt.wantWhere)
			assert.Contains(t, query, "ORDER BY bres.id")
			if tt.wantParams == nil {
				assert.Empty(t, params)
			} else {
				assert.Equal(t, tt.wantParams, params)
			}
		})
	}
}

func TestBuildByTestQuery(t *testing.T) {
	tests := []struct {
		name       string
		q          ByTestQuery
		wantGroup  string
		wantWhere  string
		wantParams []any
	}{
		{
			"cpu",
			ByTestQuery{TestName: "boot", GroupBy: GroupByCPU, Limit: 50},
			"bs.cpu_model AS group_name",
			"WHERE bs.test_name = $1",
			[]any{"boot", 50},
		},
		{
			"system with architecture",
			ByTestQuery{TestName: "boot", GroupBy: GroupBySystem, Architecture: "aarch64", Limit: 10},
			"bs.system_type AS group_name",
			"WHERE bs.test_name = $1 AND bs.architecture = $2",
			[]any{"boot", "aarch64", 10},
		},
		{
			"architecture",
			ByTestQuery{TestName: "boot", GroupBy: GroupByArchitecture, Limit: 5},
			"bs.architecture AS group_name",
			"WHERE bs.test_name = $1",
			[]any{"boot", 5},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			query, params, err := buildByTestQuery(tt.q)
			require.NoError(t, err)
			assert.Contains(t, query, tt.wantGroup)
			assert.Contains(t, query, tt.wantWhere)
			assert.Equal(t, tt.wantParams, params)
			assert.Contains(t, query, "percentile_cont(0.5) WITHIN GROUP (ORDER BY bs.median_value)")
			assert.Contains(t, query,
				"ORDER BY CASE WHEN g.unit ILIKE '%second%' THEN g.median_value ELSE -g.median_value END ASC NULLS LAST")
		})
	}
}

func TestBuildByTestQuery_UnmappedGroupFallsBackToCPU(t *testing.T) {
	query, _, err := buildByTestQuery(ByTestQuery{TestName: "x", GroupBy: GroupBy("nope"), Limit: 1})
	require.NoError(t, err)
	assert.Contains(t, query, "bs.cpu_model AS group_name")
}

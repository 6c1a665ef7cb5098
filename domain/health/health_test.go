package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/shirou/gopsutil/v3/load"
	"github.com/shirou/gopsutil/v3/mem"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mkoskinen/benchcom/internal/config"
	"github.com/mkoskinen/benchcom/pkg/auth"
)

type fakePinger struct{ err error }

func (f fakePinger) Ping(context.Context) error { return f.err }

func newTestEcho(db Pinger, cfg *config.Config) *echo.Echo {
	e := echo.New()
	RegisterRoutes(e, NewHandler(db, cfg, auth.NewPolicy(cfg)))
	return e
}

func get(e *echo.Echo, path string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func TestHealth(t *testing.T) {
	cfg := &config.Config{Access: config.AccessConfig{
		AllowAnonymousSubmissions: true,
		AllowAnonymousBrowsing:    false,
		AnonymousAdmin:            true,
	}}

	tests := []struct {
		name         string
		pingErr      error
		wantStatus   int
		wantHealth   string
		wantDatabase string
	}{
		{"database up", nil, http.StatusOK, "healthy", "connected"},
		{"database down", errors.New("dial tcp 127.0.0.1:5432: connect: connection refused"), http.StatusServiceUnavailable, "unhealthy", "unreachable"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := get(newTestEcho(fakePinger{tt.pingErr}, cfg), "/health")
			require.Equal(t, tt.wantStatus, rec.Code)

			var resp HealthResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
			assert.Equal(t, tt.wantHealth, resp.Status)
			assert.Equal(t, tt.wantDatabase, resp.Database)
			assert.NotEmpty(t, resp.Version)
			assert.True(t, resp.AllowAnonymousSubmissions)
			assert.False(t, resp.AllowAnonymousBrowsing)
			assert.True(t, resp.AnonymousAdmin)
			assert.NotContains(t, rec.Body.String(), "127.0.0.1", "driver errors stay internal")
		})
	}
}

func TestReadyAndLiveness(t *testing.T) {
	cfg := &config.Config{}

	assert.Equal(t, http.StatusOK, get(newTestEcho(fakePinger{}, cfg), "/ready").Code)
	assert.Equal(t, http.StatusServiceUnavailable, get(newTestEcho(fakePinger{errors.New("down")}, cfg), "/ready").Code)
	assert.Equal(t, http.StatusOK, get(newTestEcho(fakePinger{errors.New("down")}, cfg), "/healthz").Code)
}

func TestDebug_HiddenInProduction(t *testing.T) {
	assert.Equal(t, http.StatusOK, get(newTestEcho(fakePinger{}, &config.Config{Environment: "local"}), "/debug").Code)
	assert.Equal(t, http.StatusNotFound, get(newTestEcho(fakePinger{}, &config.Config{Environment: "production"}), "/debug").Code)
}

func TestDebug_HostInfo(t *testing.T) {
	cfg := &config.Config{Environment: "local"}
	h := NewHandler(fakePinger{}, cfg, auth.NewPolicy(cfg))
	h.host = hostProbe{
		loadAvg: func(context.Context) (*load.AvgStat, error) {
			return &load.AvgStat{Load1: 1.5, Load5: 1.0, Load15: 0.5}, nil
		},
		memStats: func(context.Context) (*mem.VirtualMemoryStat, error) {
			return nil, errors.New("not supported")
		},
		cpuCores: func() int { return 8 },
	}
	e := echo.New()
	RegisterRoutes(e, h)

	rec := get(e, "/debug")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Host HostInfo `json:"host"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 8, resp.Host.CPUCores)
	require.NotNil(t, resp.Host.Load1)
	assert.Equal(t, 1.5, *resp.Host.Load1)
	assert.Nil(t, resp.Host.MemoryTotalMB)
	assert.Equal(t, []string{"memory: not supported"}, resp.Host.CollectionErrors)
}

package benchmarks

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mkoskinen/benchcom/internal/config"
	"github.com/mkoskinen/benchcom/internal/server"
	"github.com/mkoskinen/benchcom/pkg/apperror"
	"github.com/mkoskinen/benchcom/pkg/auth"
)

type testAPI struct {
	e      *echo.Echo
	tokens *auth.TokenService
	store  *fakeStore
}

func newTestAPI(t *testing.T, mutate ...func(*config.Config)) *testAPI {
	t.Helper()
	cfg := testConfig()
	for _, m := range mutate {
		m(cfg)
	}

	store := newFakeStore()
	policy := auth.NewPolicy(cfg)
	tokens := auth.NewTokenService(cfg)
	accounts := fakeAccounts{
		1: {ID: 1, IsActive: true},
		2: {ID: 2, IsActive: true},
		9: {ID: 9, IsActive: true, IsAdmin: true},
	}
	authMw := auth.NewMiddleware(tokens, accounts, policy, newTestLogger())

	e := echo.New()
	e.HTTPErrorHandler = apperror.HTTPErrorHandler(newTestLogger())
	svc := NewService(store, &fakeRefresher{}, policy, cfg, newTestLogger())
	RegisterRoutes(server.NewAPIGroup(e, cfg, authMw), NewHandler(svc), authMw, NewSubmitRateLimiter(cfg))

	return &testAPI{e: e, tokens: tokens, store: store}
}

func (a *testAPI) do(t *testing.T, method, path, body string, userID int64) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	req.RemoteAddr = "192.0.2.1:40000"
	if userID != 0 {
		token, err := a.tokens.Issue(userID)
		require.NoError(t, err)
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	a.e.ServeHTTP(rec, req)
	return rec
}

const submission = `{
	"hostname": "thinkpad",
	"architecture": "x86_64",
	"cpu_model": "Intel(R) Core(TM) i7-8665U",
	"benchmark_started_at": "2024-03-01T10:00:00Z",
	"labels": ["laptop"],
	"dmi_info": {"manufacturer": "Lenovo", "product": "T490"},
	"console_output": "secret console",
	"results": [
		{"test_name": "openssl_sha256", "test_category": "crypto", "value": 1500000, "unit": "bytes/sec"},
		{"test_name": "compile_kernel", "test_category": "cpu", "value": 300, "unit": "seconds"}
	]
}`

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func TestHandler_SubmitThenRead(t *testing.T) {
	api := newTestAPI(t)

	rec := api.do(t, http.MethodPost, "/api/v1/benchmarks", submission, 0)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	resp := decode[SubmitResponse](t, rec)
	assert.Equal(t, "Benchmark submitted successfully", resp.Message)

	rec = api.do(t, http.MethodGet, "/api/v1/benchmarks/1", "", 0)
	require.Equal(t, http.StatusOK, rec.Code)
	detail := decode[map[string]any](t, rec)
	assert.Len(t, detail["results"], 2)
	assert.Nil(t, detail["submitter_ip"])
	assert.Nil(t, detail["console_output"])
	assert.Equal(t, map[string]any{"manufacturer": "Lenovo", "product": "T490"}, detail["dmi_info"])

	rec = api.do(t, http.MethodGet, "/api/v1/benchmarks", "", 0)
	require.Equal(t, http.StatusOK, rec.Code)
	runs := decode[[]RunSummary](t, rec)
	require.Len(t, runs, 1)
	assert.Equal(t, int64(2), runs[0].ResultCount)
	assert.Equal(t, []string{"laptop"}, runs[0].Labels)
}

func TestHandler_OwnerSeesSensitiveFields(t *testing.T) {
	api := newTestAPI(t)

	rec := api.do(t, http.MethodPost, "/api/v1/benchmarks", submission, 1)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = api.do(t, http.MethodGet, "/api/v1/benchmarks/1", "", 1)
	detail := decode[map[string]any](t, rec)
	assert.Equal(t, "192.0.2.1", detail["submitter_ip"])
	assert.Equal(t, "secret console", detail["console_output"])

	rec = api.do(t, http.MethodGet, "/api/v1/benchmarks/1", "", 2)
	detail = decode[map[string]any](t, rec)
	assert.Nil(t, detail["submitter_ip"])
}

func TestHandler_Delete(t *testing.T) {
	api := newTestAPI(t)
	require.Equal(t, http.StatusOK, api.do(t, http.MethodPost, "/api/v1/benchmarks", submission, 1).Code)

	assert.Equal(t, http.StatusUnauthorized, api.do(t, http.MethodDelete, "/api/v1/benchmarks/1", "", 0).Code)
	assert.Equal(t, http.StatusForbidden, api.do(t, http.MethodDelete, "/api/v1/benchmarks/1", "", 2).Code)
	assert.Equal(t, http.StatusNotFound, api.do(t, http.MethodDelete, "/api/v1/benchmarks/42", "", 2).Code)

	rec := api.do(t, http.MethodDelete, "/api/v1/benchmarks/1", "", 9)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Benchmark deleted", decode[map[string]string](t, rec)["message"])
	assert.Equal(t, http.StatusNotFound, api.do(t, http.MethodGet, "/api/v1/benchmarks/1", "", 0).Code)
}

func TestHandler_BrowsingPolicy(t *testing.T) {
	api := newTestAPI(t, func(c *config.Config) { c.Access.AllowAnonymousBrowsing = false })

	for _, path := range []string{"/api/v1/benchmarks", "/api/v1/benchmarks/1", "/api/v1/tests", "/api/v1/results/by-test"} {
		assert.Equal(t, http.StatusUnauthorized, api.do(t, http.MethodGet, path, "", 0).Code, path)
	}
	assert.Equal(t, http.StatusOK, api.do(t, http.MethodGet, "/api/v1/benchmarks", "", 1).Code)
	assert.Equal(t, http.StatusOK, api.do(t, http.MethodPost, "/api/v1/benchmarks", submission, 0).Code,
		"submission is governed by its own policy")
}

func TestHandler_InvalidInput(t *testing.T) {
	api := newTestAPI(t)

	tests := []struct {
		name   string
		method string
		path   string
		body   string
		want   int
	}{
		{"malformed body", http.MethodPost, "/api/v1/benchmarks", `{"hostname":`, http.StatusBadRequest},
		{"missing architecture", http.MethodPost, "/api/v1/benchmarks", `{"hostname":"h"}`, http.StatusBadRequest},
		{"non numeric id", http.MethodGet, "/api/v1/benchmarks/abc", "", http.StatusBadRequest},
		{"non numeric limit", http.MethodGet, "/api/v1/benchmarks?limit=lots", "", http.StatusBadRequest},
		{"garbage token", http.MethodGet, "/api/v1/benchmarks", "", http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var rec *httptest.ResponseRecorder
			if tt.name == "garbage token" {
				req := httptest.NewRequest(tt.method, tt.path, nil)
				req.Header.Set(echo.HeaderAuthorization, "Bearer not-a-token")
				rec = httptest.NewRecorder()
				api.e.ServeHTTP(rec, req)
			} else {
				rec = api.do(t, tt.method, tt.path, tt.body, 0)
			}
			assert.Equal(t, tt.want, rec.Code, rec.Body.String())
		})
	}
}

func TestHandler_ResultsByTestOrdering(t *testing.T) {
	api := newTestAPI(t)

	for _, body := range []string{
		`{"hostname":"a","architecture":"x86_64","results":[{"test_name":"boot","test_category":"sys","value":12.5,"unit":"seconds"}]}`,
		`{"hostname":"b","architecture":"x86_64","results":[{"test_name":"boot","test_category":"sys","value":4.0,"unit":"seconds"}]}`,
		`{"hostname":"c","architecture":"x86_64","results":[{"test_name":"boot","test_category":"sys","unit":"seconds"}]}`,
		`{"hostname":"d","architecture":"x86_64","results":[{"test_name":"iops","test_category":"disk","value":100,"unit":"ops"},{"test_name":"iops","test_category":"disk","value":900,"unit":"ops"}]}`,
	} {
		require.Equal(t, http.StatusOK, api.do(t, http.MethodPost, "/api/v1/benchmarks", body, 0).Code)
	}

	rec := api.do(t, http.MethodGet, "/api/v1/results/by-test?test_name=boot", "", 0)
	require.Equal(t, http.StatusOK, rec.Code)
	rows := decode[[]ResultRow](t, rec)
	require.Len(t, rows, 3)
	assert.Equal(t, "b", rows[0].Hostname)
	assert.Equal(t, "a", rows[1].Hostname)
	assert.Nil(t, rows[2].Value)

	rec = api.do(t, http.MethodGet, "/api/v1/results/by-test?test_name=iops", "", 0)
	rows = decode[[]ResultRow](t, rec)
	require.Len(t, rows, 2)
	assert.Equal(t, 900.0, *rows[0].Value)

	rec = api.do(t, http.MethodGet, "/api/v1/tests", "", 0)
	tests := decode[[]TestInfo](t, rec)
	require.Len(t, tests, 2)
	assert.Equal(t, "iops", tests[0].TestName)
	assert.Equal(t, int64(2), tests[0].ResultCount)
	assert.Equal(t, "boot", tests[1].TestName)
}

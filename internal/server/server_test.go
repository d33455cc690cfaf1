package server_test

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ogulcanaydogan/credit-monitor/internal/server"
	"github.com/ogulcanaydogan/credit-monitor/pkg/model"
	"github.com/ogulcanaydogan/credit-monitor/pkg/monitor"
	"github.com/ogulcanaydogan/credit-monitor/pkg/scheduler"
	"github.com/ogulcanaydogan/credit-monitor/pkg/storage"
)

type stubScheduler struct {
	inits  int
	delay  time.Duration
	result *model.CheckRecord
	err    error
}

func (s *stubScheduler) Init() { s.inits++ }

func (s *stubScheduler) ManualFetch(context.Context) (*model.CheckRecord, error) {
	time.Sleep(s.delay)
	return s.result, s.err
}

func (s *stubScheduler) State() scheduler.State { return scheduler.StateScheduled }

func setupServer(t *testing.T) (*server.Server, *storage.SQLite, *stubScheduler) {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	store, err := storage.NewSQLite(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
	sched := &stubScheduler{}
	svc := monitor.NewService(store, sched, logger)
	return server.NewServer(svc, logger), store, sched
}

func do(t *testing.T, srv *server.Server, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)
	return w
}

const setupBody = `{
	"fetchSnippet": "fetch(\"https://console.example.com/api/credits\")",
	"slackWebhook": "https://hooks.slack.com/services/T/B/X",
	"thresholds": [{"limit": 50, "interval": 60}, {"limit": 10, "interval": 15}],
	"defaultDuration": 120
}`

func TestServer_Health(t *testing.T) {
	srv, _, _ := setupServer(t)

	w := do(t, srv, http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, w.Code)

	var resp map[string]string
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	assert.Equal(t, "ok", resp["status"])
	assert.Equal(t, "scheduled", resp["scheduler"])
}

func TestServer_SetupAndConfig(t *testing.T) {
	srv, _, sched := setupServer(t)

	w := do(t, srv, http.MethodGet, "/config", "")
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = do(t, srv, http.MethodPost, "/setup", setupBody)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, 1, sched.inits)

	w = do(t, srv, http.MethodGet, "/config", "")
	require.Equal(t, http.StatusOK, w.Code)

	var cfg model.Configuration
	require.NoError(t, json.NewDecoder(w.Body).Decode(&cfg))
	assert.Equal(t, "https://hooks.slack.com/services/T/B/X", cfg.AlertChannel)
	assert.Equal(t, 120, cfg.DefaultInterval)
	require.Len(t, cfg.Thresholds, 2)
	assert.True(t, cfg.Thresholds[0].Limit.Equal(decimal.NewFromInt(10)))
}

func TestServer_SetupRejectsBadInput(t *testing.T) {
	srv, _, sched := setupServer(t)

	w := do(t, srv, http.MethodPost, "/setup", `{"fetchSnippet": ""}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(t, srv, http.MethodPost, "/setup", `not json`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(t, srv, http.MethodPost, "/setup", `{
		"fetchSnippet": "fetch(\"https://console.example.com/api/credits\")",
		"slackWebhook": "https://hooks.slack.com/services/T/B/X",
		"thresholds": [{"interval": 15}],
		"defaultDuration": 120
	}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "threshold limit is required")

	assert.Equal(t, 0, sched.inits)
}

func TestServer_ManualFetch(t *testing.T) {
	srv, _, sched := setupServer(t)

	b := decimal.RequireFromString("12.34")
	sched.result = &model.CheckRecord{ID: "abc", Balance: &b, Success: true, Attempts: 1, Trigger: model.TriggerManual}
	w := do(t, srv, http.MethodPost, "/manual-fetch", "")
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Message string            `json:"message"`
		Check   model.CheckRecord `json:"check"`
	}
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	assert.Equal(t, "abc", resp.Check.ID)
	require.NotNil(t, resp.Check.Balance)
	assert.True(t, resp.Check.Balance.Equal(b))
}

func TestServer_ManualFetchOutlastsWriteTimeout(t *testing.T) {
	srv, _, sched := setupServer(t)
	sched.delay = 300 * time.Millisecond
	sched.result = &model.CheckRecord{ID: "slow", Success: true, Trigger: model.TriggerManual}

	ts := httptest.NewUnstartedServer(srv.Handler())
	ts.Config.WriteTimeout = 100 * time.Millisecond
	ts.Start()
	defer ts.Close()

	resp, err := http.Post(ts.URL+"/manual-fetch", "application/json", nil)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body struct {
		Check model.CheckRecord `json:"check"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "slow", body.Check.ID)
}

func TestServer_ManualFetchErrors(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{name: "busy", err: scheduler.ErrBusy, want: http.StatusConflict},
		{name: "no config", err: scheduler.ErrNoConfig, want: http.StatusBadRequest},
		{name: "unexpected", err: assert.AnError, want: http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv, _, sched := setupServer(t)
			sched.err = tt.err

			w := do(t, srv, http.MethodPost, "/manual-fetch", "")
			assert.Equal(t, tt.want, w.Code)
		})
	}
}

func TestServer_Status(t *testing.T) {
	srv, store, _ := setupServer(t)

	w := do(t, srv, http.MethodGet, "/status", "")
	require.Equal(t, http.StatusOK, w.Code)
	var view model.StatusView
	require.NoError(t, json.NewDecoder(w.Body).Decode(&view))
	assert.Equal(t, "N/A", view.RemainingBalance)

	b := decimal.RequireFromString("7.5")
	require.NoError(t, store.WriteStatus(context.Background(), &model.StatusRecord{RemainingBalance: &b, NextFetchCountdown: 15}))

	w = do(t, srv, http.MethodGet, "/status", "")
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.NewDecoder(w.Body).Decode(&view))
	assert.Equal(t, "$7.50", view.RemainingBalance)
	assert.Equal(t, "15 minutes", view.NextFetchCountdown)
}

func TestServer_Checks(t *testing.T) {
	srv, store, _ := setupServer(t)

	w := do(t, srv, http.MethodGet, "/api/v1/checks", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `[]`, w.Body.String())

	for i := 0; i < 3; i++ {
		require.NoError(t, store.RecordCheck(context.Background(), &model.CheckRecord{Success: true, Trigger: model.TriggerScheduled}))
	}

	w = do(t, srv, http.MethodGet, "/api/v1/checks?limit=2", "")
	require.Equal(t, http.StatusOK, w.Code)
	var checks []model.CheckRecord
	require.NoError(t, json.NewDecoder(w.Body).Decode(&checks))
	assert.Len(t, checks, 2)

	w = do(t, srv, http.MethodGet, "/api/v1/checks?limit=abc", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestServer_CORS(t *testing.T) {
	srv, _, _ := setupServer(t)

	w := do(t, srv, http.MethodOptions, "/setup", "")
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))

	w = do(t, srv, http.MethodGet, "/status", "")
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
}

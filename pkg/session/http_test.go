package session_test

import (
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ogulcanaydogan/credit-monitor/pkg/session"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func snippetFor(url string) string {
	return `fetch("` + url + `/api/credits", {"headers": {"accept": "application/json", "cookie": "sessionKey=abc; org=7"}, "method": "GET"})`
}

func newBalanceServer(t *testing.T, warmUpStatus int, handler http.HandlerFunc) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/settings/billing", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(warmUpStatus)
	})
	mux.HandleFunc("/api/credits", handler)
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func newFetcher(srv *httptest.Server) *session.HTTPFetcher {
	return session.NewHTTPFetcher(session.HTTPConfig{
		SessionURL: srv.URL + "/settings/billing",
		UserAgent:  "test-agent/1.0",
		Timeout:    5 * time.Second,
	}, testLogger())
}

func TestHTTPFetcher_FetchReadsCents(t *testing.T) {
	var gotCookie, gotUA string
	srv := newBalanceServer(t, http.StatusOK, func(w http.ResponseWriter, r *http.Request) {
		if c, err := r.Cookie("sessionKey"); err == nil {
			gotCookie = c.Value
		}
		gotUA = r.Header.Get("User-Agent")
		_, _ = w.Write([]byte(`{"amount": 1234, "currency": "USD"}`))
	})

	f := newFetcher(srv)
	defer f.Close()
	desc := snippetFor(srv.URL)

	require.NoError(t, f.Setup(context.Background(), desc))
	balance, err := f.Fetch(context.Background(), desc)
	require.NoError(t, err)
	assert.Equal(t, "12.34", balance.String())
	assert.Equal(t, "abc", gotCookie)
	assert.Equal(t, "test-agent/1.0", gotUA)
}

func TestHTTPFetcher_SetupRejectedCredentials(t *testing.T) {
	srv := newBalanceServer(t, http.StatusForbidden, func(w http.ResponseWriter, r *http.Request) {})

	err := newFetcher(srv).Setup(context.Background(), snippetFor(srv.URL))
	assert.ErrorIs(t, err, session.ErrCredentialsRejected)
}

func TestHTTPFetcher_SetupUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	f := session.NewHTTPFetcher(session.HTTPConfig{
		SessionURL: url + "/settings/billing",
		Timeout:    2 * time.Second,
	}, testLogger())
	err := f.Setup(context.Background(), snippetFor(url))
	assert.ErrorIs(t, err, session.ErrUnreachable)
}

func TestHTTPFetcher_SetupInvalidSnippet(t *testing.T) {
	f := session.NewHTTPFetcher(session.HTTPConfig{}, testLogger())
	err := f.Setup(context.Background(), "not a snippet")
	assert.ErrorIs(t, err, session.ErrInvalidSnippet)
}

func TestHTTPFetcher_FetchErrors(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
		wantErr error
	}{
		{
			name: "non 2xx",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusInternalServerError)
			},
		},
		{
			name: "not json",
			handler: func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte("<html>login</html>"))
			},
		},
		{
			name: "missing amount",
			handler: func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte(`{"balance": 5}`))
			},
			wantErr: session.ErrMissingAmount,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newBalanceServer(t, http.StatusOK, tt.handler)
			f := newFetcher(srv)
			defer f.Close()
			desc := snippetFor(srv.URL)

			require.NoError(t, f.Setup(context.Background(), desc))
			_, err := f.Fetch(context.Background(), desc)
			require.Error(t, err)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			}
		})
	}
}

func TestHTTPFetcher_FetchWithoutSetup(t *testing.T) {
	f := session.NewHTTPFetcher(session.HTTPConfig{}, testLogger())
	_, err := f.Fetch(context.Background(), `fetch("https://x.test")`)
	assert.ErrorIs(t, err, session.ErrNotReady)
}

func TestHTTPFetcher_CloseThenSetupAgain(t *testing.T) {
	srv := newBalanceServer(t, http.StatusOK, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"amount": 500}`))
	})
	f := newFetcher(srv)
	desc := snippetFor(srv.URL)

	require.NoError(t, f.Setup(context.Background(), desc))
	require.NoError(t, f.Close())
	require.NoError(t, f.Close())

	_, err := f.Fetch(context.Background(), desc)
	assert.ErrorIs(t, err, session.ErrNotReady)

	require.NoError(t, f.Setup(context.Background(), desc))
	balance, err := f.Fetch(context.Background(), desc)
	require.NoError(t, err)
	assert.Equal(t, "5", balance.String())
}

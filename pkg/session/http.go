package session

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/ogulcanaydogan/credit-monitor/pkg/model"
)

const maxResponseBodySize = 1 << 20 // 1MB

const (
	defaultMaxIdleConns    = 10
	defaultIdleConnTimeout = 60 * time.Second
	defaultTimeout         = 60 * time.Second
)

// HTTPConfig configures an HTTPFetcher.
type HTTPConfig struct {
	// SessionURL is fetched once during Setup to confirm the cookies are
	// accepted. Empty skips the warm-up.
	SessionURL string

	// UserAgent is sent unless the snippet carries its own.
	UserAgent string

	// Timeout bounds every individual request.
	Timeout time.Duration
}

// HTTPFetcher replays a copied browser request with the browser's cookies.
type HTTPFetcher struct {
	cfg    HTTPConfig
	logger *slog.Logger

	mu     sync.Mutex
	client *http.Client
	req    *Request
	desc   string
}

// NewHTTPFetcher creates an HTTPFetcher. It holds no connection until Setup.
func NewHTTPFetcher(cfg HTTPConfig, logger *slog.Logger) *HTTPFetcher {
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	return &HTTPFetcher{cfg: cfg, logger: logger}
}

// Setup parses the snippet, seeds a cookie jar and performs the warm-up request.
func (f *HTTPFetcher) Setup(ctx context.Context, descriptor string) error {
	req, err := ParseSnippet(descriptor)
	if err != nil {
		return err
	}

	jar, err := cookiejar.New(nil)
	if err != nil {
		return fmt.Errorf("create cookie jar: %w", err)
	}
	for _, raw := range []string{req.URL, f.cfg.SessionURL} {
		if raw == "" {
			continue
		}
		u, err := url.Parse(raw)
		if err != nil {
			return fmt.Errorf("parse %q: %w", raw, err)
		}
		jar.SetCookies(u, req.Cookies)
	}

	client := &http.Client{
		Jar: jar,
		Transport: &http.Transport{
			Proxy:               http.ProxyFromEnvironment,
			MaxIdleConns:        defaultMaxIdleConns,
			MaxIdleConnsPerHost: defaultMaxIdleConns,
			IdleConnTimeout:     defaultIdleConnTimeout,
		},
	}

	if f.cfg.SessionURL != "" {
		if err := f.warmUp(ctx, client); err != nil {
			client.CloseIdleConnections()
			return err
		}
	}

	f.mu.Lock()
	old := f.client
	f.client, f.req, f.desc = client, req, descriptor
	f.mu.Unlock()
	if old != nil {
		old.CloseIdleConnections()
	}

	f.logger.Debug("session established", "url", req.URL, "cookies", len(req.Cookies))
	return nil
}

func (f *HTTPFetcher) warmUp(ctx context.Context, client *http.Client) error {
	ctx, cancel := context.WithTimeout(ctx, f.cfg.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.cfg.SessionURL, nil)
	if err != nil {
		return fmt.Errorf("create warm-up request: %w", err)
	}
	if f.cfg.UserAgent != "" {
		req.Header.Set("User-Agent", f.cfg.UserAgent)
	}

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnreachable, err)
	}
	defer func() { _ = resp.Body.Close() }()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxResponseBodySize))

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return fmt.Errorf("%w: status %d", ErrCredentialsRejected, resp.StatusCode)
	case resp.StatusCode >= 500:
		return fmt.Errorf("%w: status %d", ErrUnreachable, resp.StatusCode)
	}
	return nil
}

// Fetch replays the snippet request and returns the balance in dollars.
func (f *HTTPFetcher) Fetch(ctx context.Context, descriptor string) (decimal.Decimal, error) {
	f.mu.Lock()
	client, sreq, desc := f.client, f.req, f.desc
	f.mu.Unlock()
	if client == nil || desc != descriptor {
		return decimal.Zero, ErrNotReady
	}

	ctx, cancel := context.WithTimeout(ctx, f.cfg.Timeout)
	defer cancel()

	var body io.Reader
	if sreq.Body != "" {
		body = strings.NewReader(sreq.Body)
	}
	req, err := http.NewRequestWithContext(ctx, sreq.Method, sreq.URL, body)
	if err != nil {
		return decimal.Zero, fmt.Errorf("create request: %w", err)
	}
	for k, v := range sreq.Headers {
		req.Header.Set(k, v)
	}
	if req.Header.Get("User-Agent") == "" && f.cfg.UserAgent != "" {
		req.Header.Set("User-Agent", f.cfg.UserAgent)
	}

	resp, err := client.Do(req)
	if err != nil {
		return decimal.Zero, fmt.Errorf("request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return decimal.Zero, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	var payload struct {
		Amount *decimal.Decimal `json:"amount"`
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseBodySize)).Decode(&payload); err != nil {
		return decimal.Zero, fmt.Errorf("decode response: %w", err)
	}
	if payload.Amount == nil {
		return decimal.Zero, ErrMissingAmount
	}
	return model.CentsToDollars(*payload.Amount), nil
}

// Close drops the client and its idle connections. Setup may be called again.
func (f *HTTPFetcher) Close() error {
	f.mu.Lock()
	client := f.client
	f.client, f.req, f.desc = nil, nil, ""
	f.mu.Unlock()
	if client != nil {
		client.CloseIdleConnections()
	}
	return nil
}

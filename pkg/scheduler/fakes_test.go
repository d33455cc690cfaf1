package scheduler_test

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/ogulcanaydogan/credit-monitor/pkg/alerts"
	"github.com/ogulcanaydogan/credit-monitor/pkg/model"
	"github.com/ogulcanaydogan/credit-monitor/pkg/scheduler"
	"github.com/ogulcanaydogan/credit-monitor/pkg/storage"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

// fakeClock fires timers only when Advance is called.
type fakeClock struct {
	mu     sync.Mutex
	now    time.Time
	timers []*fakeTimer
}

type fakeTimer struct {
	clock   *fakeClock
	at      time.Time
	f       func()
	stopped bool
	fired   bool
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) AfterFunc(d time.Duration, f func()) scheduler.Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &fakeTimer{clock: c, at: c.now.Add(d), f: f}
	c.timers = append(c.timers, t)
	return t
}

func (t *fakeTimer) Stop() bool {
	t.clock.mu.Lock()
	defer t.clock.mu.Unlock()
	active := !t.stopped && !t.fired
	t.stopped = true
	return active
}

// Advance moves time forward and runs every due timer in order.
func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	var due []*fakeTimer
	for _, t := range c.timers {
		if !t.stopped && !t.fired && !t.at.After(c.now) {
			t.fired = true
			due = append(due, t)
		}
	}
	c.mu.Unlock()

	sort.SliceStable(due, func(i, j int) bool { return due[i].at.Before(due[j].at) })
	for _, t := range due {
		t.f()
	}
}

// Pending returns timers that are neither stopped nor fired.
func (c *fakeClock) Pending() []*fakeTimer {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []*fakeTimer
	for _, t := range c.timers {
		if !t.stopped && !t.fired {
			out = append(out, t)
		}
	}
	return out
}

// All returns every timer ever created.
func (c *fakeClock) All() []*fakeTimer {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]*fakeTimer(nil), c.timers...)
}

type fakeStore struct {
	mu        sync.Mutex
	cfg       *model.Configuration
	cfgErr    error
	cfgPanic  bool
	statuses  []model.StatusRecord
	checks    []model.CheckRecord
	statusErr error
}

func (s *fakeStore) GetConfig(context.Context) (*model.Configuration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cfgPanic {
		panic("corrupt configuration row")
	}
	if s.cfgErr != nil {
		return nil, s.cfgErr
	}
	if s.cfg == nil {
		return nil, storage.ErrNotFound
	}
	return s.cfg.Clone(), nil
}

func (s *fakeStore) SetConfig(cfg *model.Configuration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cfg = cfg
}

func (s *fakeStore) WriteStatus(_ context.Context, st *model.StatusRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.statusErr != nil {
		return s.statusErr
	}
	s.statuses = append(s.statuses, *st)
	return nil
}

func (s *fakeStore) RecordCheck(_ context.Context, rec *model.CheckRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.checks = append(s.checks, *rec)
	return nil
}

func (s *fakeStore) LastStatus() model.StatusRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.statuses[len(s.statuses)-1]
}

func (s *fakeStore) Checks() []model.CheckRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]model.CheckRecord(nil), s.checks...)
}

// fakeFetcher returns scripted balances. A nil entry is an exhausted fetch.
type fakeFetcher struct {
	mu       sync.Mutex
	script   []*decimal.Decimal
	calls    int
	panicOn  int
	entered  chan struct{}
	release  chan struct{}
	attempts int
}

func (f *fakeFetcher) PerformFetch(ctx context.Context, _ string) (decimal.Decimal, int, error) {
	if f.entered != nil {
		f.entered <- struct{}{}
		<-f.release
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.panicOn == f.calls {
		panic("fetcher exploded")
	}
	attempts := f.attempts
	if attempts == 0 {
		attempts = 1
	}
	if len(f.script) == 0 {
		return decimal.Zero, attempts, errors.New("no scripted balance")
	}
	next := f.script[0]
	f.script = f.script[1:]
	if next == nil {
		return decimal.Zero, attempts, errors.New("retries exhausted after 5 attempts")
	}
	if err := ctx.Err(); err != nil {
		return decimal.Zero, attempts, err
	}
	return *next, attempts, nil
}

func (f *fakeFetcher) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type fakeNotifier struct {
	mu   sync.Mutex
	sent []alerts.Alert
	err  error
}

func (n *fakeNotifier) Name() string { return "fake" }

func (n *fakeNotifier) Send(_ context.Context, _ string, a alerts.Alert) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, a)
	return n.err
}

func (n *fakeNotifier) Sent() []alerts.Alert {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]alerts.Alert(nil), n.sent...)
}

func bal(s string) *decimal.Decimal {
	d := decimal.RequireFromString(s)
	return &d
}

func monitorConfig() *model.Configuration {
	return &model.Configuration{
		FetchSnippet: `fetch("https://console.example.com/api/credits")`,
		AlertChannel: "https://hooks.example.com/alerts",
		Thresholds: []model.Threshold{
			{Limit: decimal.NewFromInt(50), Interval: 60},
			{Limit: decimal.NewFromInt(10), Interval: 15},
		},
		DefaultInterval: 120,
	}
}

// Package scheduler runs the balance check cycle on an adaptive, self re-arming
// timer.
//
// Exactly one cycle runs at a time. Automatic (timer), initialization and
// manual triggers share the same gate: a manual trigger that finds a cycle in
// flight is rejected with ErrBusy, and an initialization that finds one in
// flight is folded into an immediate re-run once it completes.
//
// Only one timer is ever pending. Arming replaces the previous timer and bumps
// a generation counter so a callback that fires after being replaced is a
// no-op.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"runtime/debug"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/ogulcanaydogan/credit-monitor/pkg/alerts"
	"github.com/ogulcanaydogan/credit-monitor/pkg/model"
	"github.com/ogulcanaydogan/credit-monitor/pkg/policy"
	"github.com/ogulcanaydogan/credit-monitor/pkg/storage"
)

// DefaultRecoveryInterval re-arms the timer when a cycle fails before a
// configuration could be read.
const DefaultRecoveryInterval = 5 * time.Minute

var (
	// ErrBusy is returned when a cycle is already in flight.
	ErrBusy = errors.New("a check is already in progress")

	// ErrNoConfig is returned when no configuration exists. The scheduler
	// stays dormant until Init is called.
	ErrNoConfig = errors.New("no configuration")
)

// Store is the persistence the scheduler reads and writes during a cycle.
type Store interface {
	GetConfig(ctx context.Context) (*model.Configuration, error)
	WriteStatus(ctx context.Context, status *model.StatusRecord) error
	RecordCheck(ctx context.Context, record *model.CheckRecord) error
}

// BalanceFetcher obtains one balance reading, retrying internally.
type BalanceFetcher interface {
	PerformFetch(ctx context.Context, descriptor string) (decimal.Decimal, int, error)
}

// State is the scheduler's externally visible state.
type State string

const (
	StateIdle      State = "idle"
	StateScheduled State = "scheduled"
	StateRunning   State = "running"
)

// Options tunes a Scheduler.
type Options struct {
	RecoveryInterval time.Duration
	Clock            Clock
}

// Scheduler owns the check cycle, the alert gate and the single pending timer.
type Scheduler struct {
	store    Store
	fetcher  BalanceFetcher
	notifier alerts.Notifier
	clock    Clock
	recovery time.Duration
	logger   *slog.Logger

	// gate is touched only by the goroutine holding the running flag.
	gate *policy.Gate

	mu        sync.Mutex
	baseCtx   context.Context
	running   bool
	rerun     bool
	resetGate bool
	stopped   bool
	timer     Timer
	gen       uint64
	nextAt    time.Time
	wg        sync.WaitGroup
}

// New creates a Scheduler. It arms nothing until Init, RunCycle or
// ScheduleFetch is called. notifier may be nil.
func New(store Store, fetcher BalanceFetcher, notifier alerts.Notifier, opts Options, logger *slog.Logger) *Scheduler {
	if opts.RecoveryInterval <= 0 {
		opts.RecoveryInterval = DefaultRecoveryInterval
	}
	if opts.Clock == nil {
		opts.Clock = RealClock()
	}
	return &Scheduler{
		store:    store,
		fetcher:  fetcher,
		notifier: notifier,
		clock:    opts.Clock,
		recovery: opts.RecoveryInterval,
		logger:   logger,
		gate:     policy.NewGate(),
		baseCtx:  context.Background(),
	}
}

// Start sets the context background cycles run under and re-enables arming
// after Stop. If ctx is nil, context.Background() is used.
func (s *Scheduler) Start(ctx context.Context) {
	if ctx == nil {
		ctx = context.Background()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.baseCtx = ctx
	s.stopped = false
}

// Stop cancels the pending timer. In-flight cycles complete but no longer
// arm a timer. Stop is idempotent.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return
	}
	s.stopped = true
	s.cancelTimerLocked()
	s.logger.Info("scheduler stopped")
}

// Wait blocks until background cycles started by Init or the timer return.
// Call it after Stop.
func (s *Scheduler) Wait() {
	s.wg.Wait()
}

// State reports whether a cycle is running, a timer is pending, or neither.
func (s *Scheduler) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch {
	case s.running:
		return StateRunning
	case s.timer != nil:
		return StateScheduled
	default:
		return StateIdle
	}
}

// NextFetchAt returns when the pending timer fires, or the zero time.
func (s *Scheduler) NextFetchAt() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.timer == nil {
		return time.Time{}
	}
	return s.nextAt
}

// Init cancels the pending timer and runs one cycle in the background. If a
// cycle is already running, it completes and the timer is re-armed with zero
// delay so the current configuration is picked up immediately.
//
// Init also clears alert suppression: the next cycle may alert for the tier
// the balance is already in.
func (s *Scheduler) Init() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.cancelTimerLocked()
	s.resetGate = true
	if s.running {
		s.rerun = true
		s.logger.Info("check in progress, re-run queued")
		return
	}
	s.running = true
	ctx := s.baseCtx
	s.wg.Add(1)

	go func() {
		defer s.wg.Done()
		_, err := s.run(ctx, model.TriggerInit)
		if err != nil && !errors.Is(err, ErrNoConfig) {
			s.logger.Error("initial check failed", "error", err)
		}
	}()
}

// RunCycle runs one cycle synchronously, replacing the pending timer with
// the one the cycle arms. It returns ErrBusy if a cycle is in flight and
// ErrNoConfig when there is nothing to check.
//
// A failed fetch is not an error: the returned record carries it.
func (s *Scheduler) RunCycle(ctx context.Context, trigger model.Trigger) (*model.CheckRecord, error) {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return nil, ErrBusy
	}
	s.running = true
	s.cancelTimerLocked()
	s.mu.Unlock()

	return s.run(ctx, trigger)
}

// ManualFetch runs an operator-requested cycle synchronously.
func (s *Scheduler) ManualFetch(ctx context.Context) (*model.CheckRecord, error) {
	return s.RunCycle(ctx, model.TriggerManual)
}

// ScheduleFetch replaces the pending timer with one firing in minutes.
func (s *Scheduler) ScheduleFetch(minutes int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.armLocked(minutesToDuration(minutes))
}

func (s *Scheduler) onTimer(gen uint64) {
	s.mu.Lock()
	if gen != s.gen || s.stopped {
		s.mu.Unlock()
		s.logger.Debug("ignoring stale timer", "generation", gen)
		return
	}
	s.timer = nil
	if s.running {
		s.mu.Unlock()
		s.logger.Warn("timer fired during a running check")
		return
	}
	s.running = true
	ctx := s.baseCtx
	s.wg.Add(1)
	s.mu.Unlock()

	defer s.wg.Done()
	if _, err := s.run(ctx, model.TriggerScheduled); err != nil && !errors.Is(err, ErrNoConfig) {
		s.logger.Error("scheduled check failed", "error", err)
	}
}

// run executes a cycle while holding the running flag and releases it.
func (s *Scheduler) run(ctx context.Context, trigger model.Trigger) (*model.CheckRecord, error) {
	rec, status, next, err := s.safeCycle(ctx, trigger)
	if status != nil {
		s.writeStatus(ctx, status, next)
	}
	s.release(next)
	return rec, err
}

// writeStatus persists status with the arm release is about to make, so the
// stored next fetch matches the real timer.
func (s *Scheduler) writeStatus(ctx context.Context, status *model.StatusRecord, next time.Duration) {
	s.mu.Lock()
	d, armed := s.nextArmLocked(next)
	s.mu.Unlock()

	if armed {
		status.NextFetchCountdown = int(math.Ceil(d.Minutes()))
		status.NextFetchAt = status.LastFetchAt.Add(d)
	}
	if err := s.store.WriteStatus(ctx, status); err != nil {
		s.logger.Error("write status", "error", err)
	}
}

// release clears the running flag and arms the next timer. A negative next
// leaves the scheduler dormant.
func (s *Scheduler) release(next time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.running = false

	d, armed := s.nextArmLocked(next)
	s.rerun = false
	if armed {
		s.armLocked(d)
	}
}

// nextArmLocked reports the delay the finishing cycle will arm, if any.
func (s *Scheduler) nextArmLocked(next time.Duration) (time.Duration, bool) {
	switch {
	case s.stopped:
		return 0, false
	case s.rerun:
		return 0, true
	case next >= 0:
		return next, true
	}
	return 0, false
}

func (s *Scheduler) safeCycle(ctx context.Context, trigger model.Trigger) (rec *model.CheckRecord, status *model.StatusRecord, next time.Duration, err error) {
	var cfg *model.Configuration
	defer func() {
		if r := recover(); r != nil {
			correlationID := uuid.NewString()
			s.logger.Error("check panic",
				"correlation_id", correlationID,
				"panic", fmt.Sprintf("%v", r),
				"stack", string(debug.Stack()),
			)
			next = s.recovery
			if cfg != nil {
				next = minutesToDuration(cfg.DefaultInterval)
			}
			rec = nil
			status = nil
			err = fmt.Errorf("check panic (correlation_id: %s)", correlationID)
		}
	}()

	loaded, err := s.store.GetConfig(ctx)
	if errors.Is(err, storage.ErrNotFound) {
		s.logger.Warn("no configuration found, skipping check", "trigger", trigger)
		return nil, nil, -1, ErrNoConfig
	}
	if err != nil {
		s.logger.Error("load configuration", "error", err)
		return nil, nil, s.recovery, fmt.Errorf("load configuration: %w", err)
	}
	cfg = loaded.Clone()

	rec, status = s.cycle(ctx, trigger, cfg)
	return rec, status, minutesToDuration(rec.Interval), nil
}

// check performs one retried fetch.
func (s *Scheduler) check(ctx context.Context, cfg *model.Configuration) model.CheckResult {
	balance, attempts, err := s.fetcher.PerformFetch(ctx, cfg.FetchSnippet)
	res := model.CheckResult{Timestamp: s.clock.Now(), Attempts: attempts, Err: err}
	if err == nil {
		res.Balance = &balance
	}
	return res
}

// cycle performs the fetch, alert evaluation and history write. It returns
// the record, whose Interval is the delay to arm in minutes, and the status
// to persist, which is nil when the cycle was cancelled.
func (s *Scheduler) cycle(ctx context.Context, trigger model.Trigger, cfg *model.Configuration) (*model.CheckRecord, *model.StatusRecord) {
	s.mu.Lock()
	reset := s.resetGate
	s.resetGate = false
	s.mu.Unlock()
	if reset {
		s.gate.Reset()
	}

	res := s.check(ctx, cfg)
	rec := &model.CheckRecord{
		ID:        uuid.NewString(),
		Balance:   res.Balance,
		Success:   res.OK(),
		Attempts:  res.Attempts,
		Trigger:   trigger,
		Interval:  cfg.DefaultInterval,
		Timestamp: res.Timestamp.UTC(),
	}

	if !res.OK() && ctx.Err() != nil {
		// Shutting down: no alert and no status change.
		rec.Error = res.Err.Error()
		s.logger.Info("check cancelled", "trigger", trigger, "error", ctx.Err())
		return rec, nil
	}

	status := &model.StatusRecord{LastFetchAt: res.Timestamp, RemainingBalance: res.Balance}
	d := s.gate.Evaluate(res.Balance, cfg.Thresholds)

	if !res.OK() {
		rec.Error = res.Err.Error()
		status.LastError = res.Err.Error()
		if d.Fire {
			rec.AlertFired = s.notify(ctx, cfg.AlertChannel, alerts.NewFetchFailureAlert(res.Attempts, res.Timestamp))
		}
		s.logger.Warn("check failed",
			"trigger", trigger,
			"attempts", res.Attempts,
			"interval_min", rec.Interval,
			"error", res.Err,
		)
	} else {
		balance := *res.Balance
		rec.Interval = policy.NextInterval(balance, cfg.Thresholds, cfg.DefaultInterval)

		if d.Fire {
			alert := alerts.NewThresholdAlert(balance, d.Threshold.Limit, d.TierIndex, res.Timestamp)
			rec.AlertFired = s.notify(ctx, cfg.AlertChannel, alert)
			s.logger.Info("threshold crossed",
				"balance", balance.String(),
				"limit", d.Threshold.Limit.String(),
				"tier", d.TierIndex,
			)
		}
		s.logger.Info("check complete",
			"trigger", trigger,
			"balance", balance.String(),
			"attempts", res.Attempts,
			"interval_min", rec.Interval,
		)
	}

	if err := s.store.RecordCheck(ctx, rec); err != nil {
		s.logger.Error("record check", "error", err)
	}
	return rec, status
}

// notify delivers an alert and reports whether it was sent. Failures are
// logged and never propagate.
func (s *Scheduler) notify(ctx context.Context, channel string, alert alerts.Alert) bool {
	if s.notifier == nil {
		return false
	}
	if err := s.notifier.Send(ctx, channel, alert); err != nil {
		s.logger.Error("alert notification failed",
			"notifier", s.notifier.Name(),
			"kind", alert.Kind,
			"error", err,
		)
		return false
	}
	return true
}

func (s *Scheduler) armLocked(d time.Duration) {
	if s.timer != nil {
		s.timer.Stop()
	}
	s.gen++
	gen := s.gen
	s.nextAt = s.clock.Now().Add(d)
	s.timer = s.clock.AfterFunc(d, func() { s.onTimer(gen) })
	s.logger.Info("next check scheduled", "in", d.String(), "at", s.nextAt.UTC().Format(time.RFC3339))
}

func (s *Scheduler) cancelTimerLocked() {
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	s.gen++
	s.nextAt = time.Time{}
}

func minutesToDuration(m int) time.Duration {
	return time.Duration(m) * time.Minute
}

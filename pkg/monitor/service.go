// Package monitor exposes the operations an operator performs against the
// credit monitor: configure it, trigger a check, and read status, config and
// history.
package monitor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/ogulcanaydogan/credit-monitor/pkg/model"
	"github.com/ogulcanaydogan/credit-monitor/pkg/scheduler"
	"github.com/ogulcanaydogan/credit-monitor/pkg/storage"
)

// ErrInvalidConfig wraps every validation failure returned by Setup.
var ErrInvalidConfig = errors.New("invalid configuration")

// Scheduler is the subset of scheduler.Scheduler the service drives.
type Scheduler interface {
	Init()
	ManualFetch(ctx context.Context) (*model.CheckRecord, error)
	State() scheduler.State
}

// Service ties persistence and the scheduler together.
type Service struct {
	store  storage.Storage
	sched  Scheduler
	logger *slog.Logger
}

// NewService creates a monitor service.
func NewService(store storage.Storage, sched Scheduler, logger *slog.Logger) *Service {
	return &Service{
		store:  store,
		sched:  sched,
		logger: logger,
	}
}

// Setup validates and persists cfg, then re-initializes the scheduler so the
// new configuration is checked right away.
func (s *Service) Setup(ctx context.Context, cfg *model.Configuration) error {
	if cfg == nil {
		return fmt.Errorf("%w: empty body", ErrInvalidConfig)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}

	sorted := cfg.Clone()
	if err := s.store.SaveConfig(ctx, sorted); err != nil {
		return fmt.Errorf("save configuration: %w", err)
	}

	s.logger.Info("configuration saved",
		"thresholds", len(sorted.Thresholds),
		"default_interval_min", sorted.DefaultInterval,
	)
	s.sched.Init()
	return nil
}

// Resume starts checking if a configuration was saved by a previous run. It
// reports whether one was found.
func (s *Service) Resume(ctx context.Context) (bool, error) {
	_, err := s.store.GetConfig(ctx)
	if errors.Is(err, storage.ErrNotFound) {
		s.logger.Info("no configuration yet, waiting for setup")
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("load configuration: %w", err)
	}
	s.sched.Init()
	return true, nil
}

// ManualFetch runs a check now. It returns scheduler.ErrBusy when a check is
// in flight and scheduler.ErrNoConfig before Setup.
func (s *Service) ManualFetch(ctx context.Context) (*model.CheckRecord, error) {
	return s.sched.ManualFetch(ctx)
}

// GetStatus returns the human-facing status. Before the first check every
// field is N/A.
func (s *Service) GetStatus(ctx context.Context) (model.StatusView, error) {
	rec, err := s.store.GetStatus(ctx)
	if errors.Is(err, storage.ErrNotFound) {
		return (*model.StatusRecord)(nil).View(), nil
	}
	if err != nil {
		return model.StatusView{}, fmt.Errorf("get status: %w", err)
	}
	return rec.View(), nil
}

// GetConfig returns the stored configuration or storage.ErrNotFound.
func (s *Service) GetConfig(ctx context.Context) (*model.Configuration, error) {
	return s.store.GetConfig(ctx)
}

// History returns up to limit recent checks, newest first.
func (s *Service) History(ctx context.Context, limit int) ([]model.CheckRecord, error) {
	return s.store.ListChecks(ctx, limit)
}

// SchedulerState reports the scheduler state for health checks.
func (s *Service) SchedulerState() scheduler.State {
	return s.sched.State()
}

// Package session owns the authenticated context used to read the balance.
//
// A Manager moves through Uninitialized, Ready, Fetching and Closed. Any failed
// read tears the session down so the next attempt sets it up again.
package session

import (
	"context"
	"log/slog"
	"sync"

	"github.com/shopspring/decimal"
)

// Fetcher is the capability that establishes a session from a descriptor and
// reads the balance through it.
type Fetcher interface {
	Setup(ctx context.Context, descriptor string) error
	Fetch(ctx context.Context, descriptor string) (decimal.Decimal, error)
	Close() error
}

// State is the lifecycle state of a Manager.
type State int

const (
	StateUninitialized State = iota
	StateReady
	StateFetching
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateReady:
		return "ready"
	case StateFetching:
		return "fetching"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Manager guards a Fetcher with the session state machine.
type Manager struct {
	fetcher Fetcher
	logger  *slog.Logger

	// op serializes EnsureReady and FetchOnce. Close only takes mu.
	op sync.Mutex

	mu         sync.Mutex
	state      State
	descriptor string
}

// NewManager creates a Manager in the Uninitialized state.
func NewManager(f Fetcher, logger *slog.Logger) *Manager {
	return &Manager{fetcher: f, logger: logger}
}

// State returns the current lifecycle state.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// EnsureReady establishes a session for descriptor unless one is already
// ready for it. A different descriptor forces a new setup.
func (m *Manager) EnsureReady(ctx context.Context, descriptor string) error {
	m.op.Lock()
	defer m.op.Unlock()

	m.mu.Lock()
	switch {
	case m.state == StateClosed:
		m.mu.Unlock()
		return ErrClosed
	case m.state == StateReady && m.descriptor == descriptor:
		m.mu.Unlock()
		return nil
	case m.state == StateReady:
		m.state = StateUninitialized
		m.mu.Unlock()
		m.logger.Info("descriptor changed, re-establishing session")
		_ = m.fetcher.Close()
	default:
		m.mu.Unlock()
	}

	err := m.fetcher.Setup(ctx, descriptor)

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state == StateClosed {
		_ = m.fetcher.Close()
		return ErrClosed
	}
	if err != nil {
		m.state = StateUninitialized
		return &SessionSetupError{Err: err}
	}
	m.state = StateReady
	m.descriptor = descriptor
	m.logger.Debug("session ready")
	return nil
}

// FetchOnce reads the balance through a ready session. On failure the session
// is torn down and the error is returned as a *FetchError.
func (m *Manager) FetchOnce(ctx context.Context, descriptor string) (decimal.Decimal, error) {
	m.op.Lock()
	defer m.op.Unlock()

	m.mu.Lock()
	if m.state == StateClosed {
		m.mu.Unlock()
		return decimal.Zero, ErrClosed
	}
	if m.state != StateReady || m.descriptor != descriptor {
		m.mu.Unlock()
		return decimal.Zero, &FetchError{Err: ErrNotReady}
	}
	m.state = StateFetching
	m.mu.Unlock()

	balance, err := m.fetcher.Fetch(ctx, descriptor)

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state == StateClosed {
		return decimal.Zero, ErrClosed
	}
	if err != nil {
		m.state = StateUninitialized
		m.descriptor = ""
		_ = m.fetcher.Close()
		m.logger.Debug("session torn down after failed fetch", "error", err)
		return decimal.Zero, &FetchError{Err: err}
	}
	m.state = StateReady
	return balance, nil
}

// Close releases the session. It is idempotent and safe from any state.
func (m *Manager) Close() error {
	m.mu.Lock()
	if m.state == StateClosed {
		m.mu.Unlock()
		return nil
	}
	m.state = StateClosed
	m.mu.Unlock()

	m.logger.Info("session closed")
	return m.fetcher.Close()
}

package storage

import (
	"context"
	"errors"

	"github.com/ogulcanaydogan/credit-monitor/pkg/model"
)

// ErrNotFound is returned when the requested record has never been written.
var ErrNotFound = errors.New("not found")

// Storage defines the persistence layer for the monitor configuration, the
// latest status and check history.
type Storage interface {
	// GetConfig returns the stored configuration or ErrNotFound.
	GetConfig(ctx context.Context) (*model.Configuration, error)

	// SaveConfig replaces the configuration and its thresholds atomically.
	SaveConfig(ctx context.Context, cfg *model.Configuration) error

	// WriteStatus replaces the latest status record.
	WriteStatus(ctx context.Context, status *model.StatusRecord) error

	// GetStatus returns the latest status record or ErrNotFound.
	GetStatus(ctx context.Context) (*model.StatusRecord, error)

	// RecordCheck appends one entry to the check history.
	RecordCheck(ctx context.Context, record *model.CheckRecord) error

	// ListChecks returns the most recent checks, newest first.
	ListChecks(ctx context.Context, limit int) ([]model.CheckRecord, error)

	// Close releases resources.
	Close() error
}

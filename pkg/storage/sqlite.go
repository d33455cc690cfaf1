package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/ogulcanaydogan/credit-monitor/pkg/model"

	_ "modernc.org/sqlite"
)

// DefaultListLimit caps ListChecks when no positive limit is given.
const DefaultListLimit = 50

// SQLite implements the Storage interface using an SQLite database.
type SQLite struct {
	db *sql.DB
}

// NewSQLite opens or creates an SQLite database at the given path.
func NewSQLite(dbPath string) (*SQLite, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// Enable WAL mode for concurrent reads
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}

	if err := runMigrations(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLite{db: db}, nil
}

func (s *SQLite) GetConfig(ctx context.Context) (*model.Configuration, error) {
	var cfg model.Configuration
	err := s.db.QueryRowContext(ctx,
		`SELECT fetch_snippet, alert_channel, default_interval FROM config WHERE id = 1`,
	).Scan(&cfg.FetchSnippet, &cfg.AlertChannel, &cfg.DefaultInterval)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("config: %w", ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get config: %w", err)
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT credit_limit, interval_min FROM thresholds ORDER BY position`)
	if err != nil {
		return nil, fmt.Errorf("query thresholds: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var th model.Threshold
		if err := rows.Scan(&th.Limit, &th.Interval); err != nil {
			return nil, fmt.Errorf("scan threshold: %w", err)
		}
		cfg.Thresholds = append(cfg.Thresholds, th)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate thresholds: %w", err)
	}
	return &cfg, nil
}

func (s *SQLite) SaveConfig(ctx context.Context, cfg *model.Configuration) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin save config: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO config (id, fetch_snippet, alert_channel, default_interval, updated_at)
		 VALUES (1, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
		   fetch_snippet = excluded.fetch_snippet,
		   alert_channel = excluded.alert_channel,
		   default_interval = excluded.default_interval,
		   updated_at = excluded.updated_at`,
		cfg.FetchSnippet, cfg.AlertChannel, cfg.DefaultInterval, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("upsert config: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM thresholds`); err != nil {
		return fmt.Errorf("clear thresholds: %w", err)
	}
	for i, th := range cfg.Thresholds {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO thresholds (credit_limit, interval_min, position) VALUES (?, ?, ?)`,
			th.Limit.String(), th.Interval, i,
		)
		if err != nil {
			return fmt.Errorf("insert threshold %d: %w", i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit config: %w", err)
	}
	return nil
}

func (s *SQLite) WriteStatus(ctx context.Context, status *model.StatusRecord) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO status (id, remaining_balance, last_fetch_at, next_fetch_countdown, next_fetch_at, last_error)
		 VALUES (1, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
		   remaining_balance = excluded.remaining_balance,
		   last_fetch_at = excluded.last_fetch_at,
		   next_fetch_countdown = excluded.next_fetch_countdown,
		   next_fetch_at = excluded.next_fetch_at,
		   last_error = excluded.last_error`,
		nullDecimal(status.RemainingBalance), nullTime(status.LastFetchAt),
		status.NextFetchCountdown, nullTime(status.NextFetchAt), status.LastError,
	)
	if err != nil {
		return fmt.Errorf("write status: %w", err)
	}
	return nil
}

func (s *SQLite) GetStatus(ctx context.Context) (*model.StatusRecord, error) {
	var (
		rec     model.StatusRecord
		balance decimal.NullDecimal
		last    sql.NullTime
		next    sql.NullTime
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT remaining_balance, last_fetch_at, next_fetch_countdown, next_fetch_at, last_error
		 FROM status WHERE id = 1`,
	).Scan(&balance, &last, &rec.NextFetchCountdown, &next, &rec.LastError)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("status: %w", ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get status: %w", err)
	}

	if balance.Valid {
		b := balance.Decimal
		rec.RemainingBalance = &b
	}
	if last.Valid {
		rec.LastFetchAt = last.Time
	}
	if next.Valid {
		rec.NextFetchAt = next.Time
	}
	return &rec, nil
}

func (s *SQLite) RecordCheck(ctx context.Context, record *model.CheckRecord) error {
	if record.ID == "" {
		record.ID = uuid.New().String()
	}
	if record.Timestamp.IsZero() {
		record.Timestamp = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO checks (id, balance, success, attempts, error, trigger_kind, interval_min, alert_fired, timestamp)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		record.ID, nullDecimal(record.Balance), record.Success, record.Attempts,
		record.Error, string(record.Trigger), record.Interval, record.AlertFired, record.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("insert check: %w", err)
	}
	return nil
}

func (s *SQLite) ListChecks(ctx context.Context, limit int) ([]model.CheckRecord, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, balance, success, attempts, error, trigger_kind, interval_min, alert_fired, timestamp
		 FROM checks ORDER BY timestamp DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query checks: %w", err)
	}
	defer rows.Close()

	var out []model.CheckRecord
	for rows.Next() {
		var (
			r       model.CheckRecord
			balance decimal.NullDecimal
			trigger string
		)
		if err := rows.Scan(&r.ID, &balance, &r.Success, &r.Attempts, &r.Error,
			&trigger, &r.Interval, &r.AlertFired, &r.Timestamp); err != nil {
			return nil, fmt.Errorf("scan check: %w", err)
		}
		if balance.Valid {
			b := balance.Decimal
			r.Balance = &b
		}
		r.Trigger = model.Trigger(trigger)
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *SQLite) Close() error {
	return s.db.Close()
}

func nullDecimal(d *decimal.Decimal) any {
	if d == nil {
		return nil
	}
	return d.String()
}

func nullTime(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t.UTC()
}

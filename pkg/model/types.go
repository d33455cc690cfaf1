package model

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Threshold is one alert tier: when the balance is at or below Limit the
// monitor polls every Interval minutes.
type Threshold struct {
	Limit    decimal.Decimal `json:"limit"`
	Interval int             `json:"interval"`
}

type thresholdJSON struct {
	Limit    *decimal.Decimal `json:"limit"`
	Interval int              `json:"interval"`
}

// MarshalJSON writes the limit as a JSON number.
func (t Threshold) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Limit    *json.Number `json:"limit"`
		Interval int          `json:"interval"`
	}{Limit: JSONNumber(&t.Limit), Interval: t.Interval})
}

// UnmarshalJSON rejects a threshold without a limit instead of reading it as zero.
func (t *Threshold) UnmarshalJSON(data []byte) error {
	var w thresholdJSON
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	if w.Limit == nil {
		return ErrMissingLimit
	}
	t.Limit = *w.Limit
	t.Interval = w.Interval
	return nil
}

// Configuration is the operator-supplied monitor setup.
type Configuration struct {
	FetchSnippet    string      `json:"fetchSnippet"`
	AlertChannel    string      `json:"slackWebhook"`
	Thresholds      []Threshold `json:"thresholds"`
	DefaultInterval int         `json:"defaultDuration"`
}

// Validation errors returned by Configuration.Validate.
var (
	ErrMissingSnippet  = errors.New("fetch snippet is required")
	ErrMissingChannel  = errors.New("alert channel is required")
	ErrInvalidChannel  = errors.New("alert channel must be an http(s) URL")
	ErrInvalidDefault  = errors.New("default interval must be positive")
	ErrMissingLimit    = errors.New("threshold limit is required")
	ErrInvalidLimit    = errors.New("threshold limit must not be negative")
	ErrInvalidInterval = errors.New("threshold interval must be positive")
)

// Validate rejects missing or out-of-range fields. It never rewrites values.
func (c *Configuration) Validate() error {
	if strings.TrimSpace(c.FetchSnippet) == "" {
		return ErrMissingSnippet
	}
	if strings.TrimSpace(c.AlertChannel) == "" {
		return ErrMissingChannel
	}
	u, err := url.Parse(c.AlertChannel)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return ErrInvalidChannel
	}
	if c.DefaultInterval <= 0 {
		return ErrInvalidDefault
	}
	for i, th := range c.Thresholds {
		if th.Limit.IsNegative() {
			return fmt.Errorf("threshold %d: %w", i, ErrInvalidLimit)
		}
		if th.Interval <= 0 {
			return fmt.Errorf("threshold %d: %w", i, ErrInvalidInterval)
		}
	}
	return nil
}

// Clone returns a deep copy with thresholds sorted ascending by limit.
func (c *Configuration) Clone() *Configuration {
	if c == nil {
		return nil
	}
	out := *c
	out.Thresholds = SortThresholds(c.Thresholds)
	return &out
}

// SortThresholds returns a copy of ts ordered ascending by limit. Ties keep
// their input order.
func SortThresholds(ts []Threshold) []Threshold {
	out := make([]Threshold, len(ts))
	copy(out, ts)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Limit.LessThan(out[j].Limit)
	})
	return out
}

// EqualThresholds reports whether a and b hold the same tiers in the same order.
func EqualThresholds(a, b []Threshold) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !a[i].Limit.Equal(b[i].Limit) || a[i].Interval != b[i].Interval {
			return false
		}
	}
	return true
}

// CheckResult is the outcome of one fetch. A nil Balance means every attempt failed.
type CheckResult struct {
	Balance   *decimal.Decimal
	Timestamp time.Time
	Attempts  int
	Err       error
}

// OK reports whether a balance was obtained.
func (r CheckResult) OK() bool { return r.Balance != nil }

// StatusRecord is the persisted projection of the latest check and the next arm.
type StatusRecord struct {
	RemainingBalance   *decimal.Decimal `json:"remaining_balance"`
	LastFetchAt        time.Time        `json:"last_fetch_at"`
	NextFetchCountdown int              `json:"next_fetch_countdown"`
	NextFetchAt        time.Time        `json:"next_fetch_at"`
	LastError          string           `json:"last_error,omitempty"`
}

// MarshalJSON writes the balance as a JSON number.
func (s StatusRecord) MarshalJSON() ([]byte, error) {
	type plain StatusRecord
	return json.Marshal(struct {
		plain
		RemainingBalance *json.Number `json:"remaining_balance"`
	}{plain: plain(s), RemainingBalance: JSONNumber(s.RemainingBalance)})
}

// Trigger identifies what started a check cycle.
type Trigger string

const (
	TriggerInit      Trigger = "init"
	TriggerScheduled Trigger = "scheduled"
	TriggerManual    Trigger = "manual"
)

// CheckRecord is one row of check history.
type CheckRecord struct {
	ID         string           `json:"id"`
	Balance    *decimal.Decimal `json:"balance,omitempty"`
	Success    bool             `json:"success"`
	Attempts   int              `json:"attempts"`
	Error      string           `json:"error,omitempty"`
	Trigger    Trigger          `json:"trigger"`
	Interval   int              `json:"interval"`
	AlertFired bool             `json:"alert_fired"`
	Timestamp  time.Time        `json:"timestamp"`
}

// MarshalJSON writes the balance as a JSON number.
func (r CheckRecord) MarshalJSON() ([]byte, error) {
	type plain CheckRecord
	return json.Marshal(struct {
		plain
		Balance *json.Number `json:"balance,omitempty"`
	}{plain: plain(r), Balance: JSONNumber(r.Balance)})
}

package alerts

import (
	"context"
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"

	"github.com/ogulcanaydogan/credit-monitor/pkg/model"
)

// AlertKind distinguishes threshold crossings from fetch failures.
type AlertKind string

const (
	AlertThreshold    AlertKind = "threshold"     // Balance descended into a tier
	AlertFetchFailure AlertKind = "fetch_failure" // Every fetch attempt in a cycle failed
)

// Alert is a single notification about the monitored balance.
type Alert struct {
	Kind      AlertKind        `json:"kind"`
	Balance   *decimal.Decimal `json:"balance,omitempty"`
	Limit     *decimal.Decimal `json:"limit,omitempty"`
	TierIndex int              `json:"tier_index"`
	Attempts  int              `json:"attempts,omitempty"`
	Time      time.Time        `json:"time"`
	Message   string           `json:"message"`
}

// MarshalJSON writes amounts as JSON numbers.
func (a Alert) MarshalJSON() ([]byte, error) {
	type plain Alert
	return json.Marshal(struct {
		plain
		Balance *json.Number `json:"balance,omitempty"`
		Limit   *json.Number `json:"limit,omitempty"`
	}{plain: plain(a), Balance: model.JSONNumber(a.Balance), Limit: model.JSONNumber(a.Limit)})
}

// Notifier delivers alerts to an external channel.
type Notifier interface {
	// Name returns the notifier identifier.
	Name() string

	// Send delivers an alert to channel. Implementations must be safe for concurrent use.
	Send(ctx context.Context, channel string, alert Alert) error
}

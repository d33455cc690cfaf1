// Package policy holds the pure threshold rules: how often to poll for a
// given balance and when a balance reading deserves an alert.
package policy

import (
	"github.com/shopspring/decimal"

	"github.com/ogulcanaydogan/credit-monitor/pkg/model"
)

// NextInterval returns the interval, in minutes, of the first threshold
// (ascending by limit) whose limit is at or above balance. If no threshold
// matches, or there are none, defaultInterval is returned.
func NextInterval(balance decimal.Decimal, thresholds []model.Threshold, defaultInterval int) int {
	if idx := matchTier(balance, thresholds); idx >= 0 {
		return thresholds[idx].Interval
	}
	return defaultInterval
}

// matchTier returns the index of the first tier with balance <= limit, or -1.
// thresholds must already be sorted ascending.
func matchTier(balance decimal.Decimal, thresholds []model.Threshold) int {
	for i, th := range thresholds {
		if balance.LessThanOrEqual(th.Limit) {
			return i
		}
	}
	return -1
}

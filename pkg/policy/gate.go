package policy

import (
	"github.com/shopspring/decimal"

	"github.com/ogulcanaydogan/credit-monitor/pkg/model"
)

// Kind classifies a gate decision.
type Kind string

const (
	KindNone         Kind = "none"
	KindThreshold    Kind = "threshold"
	KindFetchFailure Kind = "fetch_failure"
)

// Decision is the result of evaluating one check against the thresholds.
type Decision struct {
	Fire      bool
	Kind      Kind
	TierIndex int // -1 when no tier matched
	Threshold model.Threshold
}

// Gate is an edge-triggered alert filter. It fires once per descent into a
// tier. Climbing out of a tier re-arms it without firing the tier the balance
// climbed into, and climbing above every limit re-arms all tiers.
//
// Gate is not safe for concurrent use; the scheduler serializes access.
type Gate struct {
	lastFired int // -1 when nothing is suppressed
	recorded  []model.Threshold
}

// NewGate returns a gate with no suppressed tier.
func NewGate() *Gate {
	return &Gate{lastFired: -1}
}

// Evaluate decides whether a reading fires an alert and updates the
// suppression state. A nil balance is a failed fetch: it always fires and
// leaves suppression untouched.
func (g *Gate) Evaluate(balance *decimal.Decimal, thresholds []model.Threshold) Decision {
	if balance == nil {
		return Decision{Fire: true, Kind: KindFetchFailure, TierIndex: -1}
	}

	if !model.EqualThresholds(g.recorded, thresholds) {
		g.lastFired = -1
		g.recorded = append([]model.Threshold(nil), thresholds...)
	}

	idx := matchTier(*balance, thresholds)
	if idx < 0 {
		g.lastFired = -1
		return Decision{Kind: KindNone, TierIndex: -1}
	}

	d := Decision{Kind: KindThreshold, TierIndex: idx, Threshold: thresholds[idx]}
	switch {
	case g.lastFired < 0 || idx < g.lastFired:
		d.Fire = true
		g.lastFired = idx
	case idx > g.lastFired:
		// Recovered above the fired tier but still inside a shallower one.
		g.lastFired = idx
	}
	return d
}

// LastFired returns the suppressed tier index, or -1.
func (g *Gate) LastFired() int { return g.lastFired }

// Reset clears the suppression state so every tier can fire again.
func (g *Gate) Reset() {
	g.lastFired = -1
	g.recorded = nil
}

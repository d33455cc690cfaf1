package model

import (
	"fmt"
	"time"
)

// NotAvailable is rendered for status fields that have no value yet.
const NotAvailable = "N/A"

// StatusView is the human-facing rendering of a StatusRecord.
type StatusView struct {
	RemainingBalance   string `json:"remainingBalance"`
	LastFetch          string `json:"lastFetch"`
	NextFetchCountdown string `json:"nextFetchCountdown"`
	NextFetchAt        string `json:"nextFetchAt"`
	LastError          string `json:"lastError,omitempty"`
}

// View renders the record as currency, RFC3339 timestamps and "N minutes".
// A nil record renders every field as N/A.
func (s *StatusRecord) View() StatusView {
	v := StatusView{
		RemainingBalance:   NotAvailable,
		LastFetch:          NotAvailable,
		NextFetchCountdown: NotAvailable,
		NextFetchAt:        NotAvailable,
	}
	if s == nil {
		return v
	}
	if s.RemainingBalance != nil {
		v.RemainingBalance = FormatUSD(*s.RemainingBalance)
	}
	if !s.LastFetchAt.IsZero() {
		v.LastFetch = s.LastFetchAt.UTC().Format(time.RFC3339)
	}
	if s.NextFetchCountdown > 0 {
		v.NextFetchCountdown = fmt.Sprintf("%d minutes", s.NextFetchCountdown)
	}
	if !s.NextFetchAt.IsZero() {
		v.NextFetchAt = s.NextFetchAt.UTC().Format(time.RFC3339)
	}
	v.LastError = s.LastError
	return v
}

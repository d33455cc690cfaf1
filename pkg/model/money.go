package model

import (
	"encoding/json"

	"github.com/shopspring/decimal"
)

// FormatUSD renders an amount as dollars with two decimals, e.g. "$12.30".
func FormatUSD(d decimal.Decimal) string {
	return "$" + d.StringFixed(2)
}

// CentsToDollars converts an integer amount of cents into dollars.
func CentsToDollars(cents decimal.Decimal) decimal.Decimal {
	return cents.Shift(-2)
}

// JSONNumber renders an optional amount as a bare JSON number, or nil.
func JSONNumber(d *decimal.Decimal) *json.Number {
	if d == nil {
		return nil
	}
	n := json.Number(d.String())
	return &n
}

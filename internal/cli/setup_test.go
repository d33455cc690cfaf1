package cli

import (
	"bytes"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/ogulcanaydogan/credit-monitor/pkg/model"
)

func TestPrintSetup(t *testing.T) {
	cfg := &model.Configuration{
		Thresholds: []model.Threshold{
			{Limit: decimal.NewFromInt(10), Interval: 15},
			{Limit: decimal.NewFromInt(50), Interval: 60},
		},
		DefaultInterval: 120,
	}

	var buf bytes.Buffer
	printSetup(&buf, cfg, ":5000")
	out := buf.String()

	assert.Contains(t, out, "Default interval: 120 minutes")
	assert.Contains(t, out, "Below $10.00")
	assert.Contains(t, out, "every 60 minutes")
	assert.Contains(t, out, "http://localhost:5000/setup")
	assert.Contains(t, out, "monitor.file")
	assert.NotContains(t, out, "picks it up on its next check")
}

package alerts

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/ogulcanaydogan/credit-monitor/pkg/model"
)

const timeLayout = "2006-01-02 15:04:05 MST"

// NewThresholdAlert builds the alert sent when the balance falls into a tier.
func NewThresholdAlert(balance, limit decimal.Decimal, tier int, at time.Time) Alert {
	return Alert{
		Kind:      AlertThreshold,
		Balance:   &balance,
		Limit:     &limit,
		TierIndex: tier,
		Time:      at,
		Message: fmt.Sprintf(":rotating_light: *Credit Alert*\n\n"+
			"Your API credit balance has fallen below the threshold.\n\n"+
			"• Current Balance: `%s`\n"+
			"• Threshold Limit: `%s`\n"+
			"• Time: `%s`\n\n"+
			"_Please consider topping up your credits to avoid service interruptions._",
			model.FormatUSD(balance), model.FormatUSD(limit), at.Format(timeLayout)),
	}
}

// NewFetchFailureAlert builds the alert sent when a cycle exhausted its retries.
func NewFetchFailureAlert(attempts int, at time.Time) Alert {
	return Alert{
		Kind:      AlertFetchFailure,
		TierIndex: -1,
		Attempts:  attempts,
		Time:      at,
		Message: fmt.Sprintf(":warning: *Credit Monitor Error*\n\n"+
			"Failed to fetch or parse credit balance after %d attempts.\n"+
			"• Time: `%s`\n"+
			"• Please check your configuration or network connectivity.",
			attempts, at.Format(timeLayout)),
	}
}

package alerts

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/ogulcanaydogan/credit-monitor/pkg/model"
)

// SlackNotifier posts alerts to a Slack incoming webhook. The channel passed
// to Send is the webhook URL.
type SlackNotifier struct {
	client *http.Client
}

// NewSlackNotifier creates a Slack webhook notifier.
func NewSlackNotifier() *SlackNotifier {
	return &SlackNotifier{
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

func (s *SlackNotifier) Name() string { return "slack" }

func (s *SlackNotifier) Send(ctx context.Context, channel string, alert Alert) error {
	color := "#ff9900" // orange
	title := "Credit Monitor: threshold crossed"
	if alert.Kind == AlertFetchFailure {
		color = "#cc0000" // dark red
		title = "Credit Monitor: balance unavailable"
	}

	var fields []slackField
	if alert.Balance != nil {
		fields = append(fields, slackField{Title: "Balance", Value: model.FormatUSD(*alert.Balance), Short: true})
	}
	if alert.Limit != nil {
		fields = append(fields, slackField{Title: "Limit", Value: model.FormatUSD(*alert.Limit), Short: true})
	}
	if alert.Attempts > 0 {
		fields = append(fields, slackField{Title: "Attempts", Value: fmt.Sprintf("%d", alert.Attempts), Short: true})
	}

	payload := slackPayload{
		Text: alert.Message,
		Attachments: []slackAttachment{
			{
				Color:  color,
				Title:  title,
				Fields: fields,
				Footer: "Credit Monitor",
				Ts:     alert.Time.Unix(),
			},
		},
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal slack payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, channel, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create slack request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("send slack alert: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("slack returned status %d", resp.StatusCode)
	}
	return nil
}

type slackPayload struct {
	Text        string            `json:"text"`
	Attachments []slackAttachment `json:"attachments,omitempty"`
}

type slackAttachment struct {
	Color  string       `json:"color"`
	Title  string       `json:"title"`
	Fields []slackField `json:"fields,omitempty"`
	Footer string       `json:"footer"`
	Ts     int64        `json:"ts"`
}

type slackField struct {
	Title string `json:"title"`
	Value string `json:"value"`
	Short bool   `json:"short"`
}

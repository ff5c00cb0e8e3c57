package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/drawlytics/sentinel/internal/alerting"
)

// severityColors keys attachment colors by alert severity.
var severityColors = map[alerting.Severity]string{
	alerting.SeverityCritical: "#FF0000",
	alerting.SeverityHigh:     "#FF8C00",
	alerting.SeverityMedium:   "#FFD700",
	alerting.SeverityLow:      "#0080FF",
}

func severityColor(s alerting.Severity) string {
	if c, ok := severityColors[s]; ok {
		return c
	}
	return severityColors[alerting.SeverityLow]
}

// postJSON is shared by all webhook-style senders.
func postJSON(ctx context.Context, client *http.Client, url string, payload any) error {
	if url == "" {
		return fmt.Errorf("channel has no url configured")
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("endpoint returned status %d", resp.StatusCode)
	}
	return nil
}

// WebhookSender POSTs the generic JSON payload to the channel's url.
type WebhookSender struct {
	client *http.Client
	now    func() time.Time
}

func NewWebhookSender(client *http.Client) *WebhookSender {
	if client == nil {
		client = &http.Client{}
	}
	return &WebhookSender{client: client, now: time.Now}
}

func (s *WebhookSender) Type() ChannelType { return TypeWebhook }

func (s *WebhookSender) Deliver(ctx context.Context, alert alerting.Alert, msg Message, ch Channel) error {
	payload := map[string]any{
		"alert_id":     alert.ID,
		"severity":     alert.Severity,
		"rule_name":    alert.RuleName,
		"message":      alert.Message,
		"triggered_at": alert.TriggeredAt.Format(time.RFC3339),
		"subject":      msg.Subject,
		"body":         msg.Body,
		"timestamp":    s.now().Format(time.RFC3339),
	}
	return postJSON(ctx, s.client, ch.Config["url"], payload)
}

// SlackSender POSTs a Slack-style incoming-webhook payload with one
// attachment colored by severity.
type SlackSender struct {
	client *http.Client
	now    func() time.Time
}

func NewSlackSender(client *http.Client) *SlackSender {
	if client == nil {
		client = &http.Client{}
	}
	return &SlackSender{client: client, now: time.Now}
}

func (s *SlackSender) Type() ChannelType { return TypeSlack }

func (s *SlackSender) Deliver(ctx context.Context, alert alerting.Alert, msg Message, ch Channel) error {
	username := ch.Config["username"]
	if username == "" {
		username = "sentinel"
	}
	icon := ch.Config["icon"]
	if icon == "" {
		icon = ":rotating_light:"
	}

	payload := map[string]any{
		"channel":  ch.Config["channel"],
		"username": username,
		"icon":     icon,
		"attachments": []map[string]any{
			{
				"color": severityColor(alert.Severity),
				"title": msg.Subject,
				"text":  msg.Body,
				"fields": []map[string]any{
					{"title": "Severity", "value": string(alert.Severity), "short": true},
					{"title": "Metric", "value": alert.Metric, "short": true},
					{"title": "Value", "value": fmt.Sprintf("%.2f", alert.MetricValue), "short": true},
					{"title": "Threshold", "value": fmt.Sprintf("%.2f", alert.Threshold), "short": true},
				},
				"ts": alert.TriggeredAt.Unix(),
			},
		},
	}
	return postJSON(ctx, s.client, ch.Config["url"], payload)
}

// TeamsSender POSTs a MessageCard payload to a Teams incoming webhook.
type TeamsSender struct {
	client *http.Client
}

func NewTeamsSender(client *http.Client) *TeamsSender {
	if client == nil {
		client = &http.Client{}
	}
	return &TeamsSender{client: client}
}

func (s *TeamsSender) Type() ChannelType { return TypeTeams }

func (s *TeamsSender) Deliver(ctx context.Context, alert alerting.Alert, msg Message, ch Channel) error {
	payload := map[string]any{
		"@type":      "MessageCard",
		"themeColor": severityColor(alert.Severity),
		"summary":    msg.Subject,
		"sections": []map[string]any{
			{
				"activityTitle":    msg.Subject,
				"activitySubtitle": "Alert " + alert.ID,
				"text":             msg.Body,
				"facts": []map[string]string{
					{"name": "Severity", "value": string(alert.Severity)},
					{"name": "Metric", "value": alert.Metric},
					{"name": "Value", "value": fmt.Sprintf("%.2f", alert.MetricValue)},
					{"name": "Threshold", "value": fmt.Sprintf("%.2f", alert.Threshold)},
					{"name": "Triggered", "value": alert.TriggeredAt.Format(time.RFC3339)},
				},
			},
		},
	}
	return postJSON(ctx, s.client, ch.Config["url"], payload)
}

// DiscordSender POSTs a Discord webhook payload with one embed colored by
// severity. Discord wants the color as a decimal integer.
type DiscordSender struct {
	client *http.Client
}

func NewDiscordSender(client *http.Client) *DiscordSender {
	if client == nil {
		client = &http.Client{}
	}
	return &DiscordSender{client: client}
}

func (s *DiscordSender) Type() ChannelType { return TypeDiscord }

func (s *DiscordSender) Deliver(ctx context.Context, alert alerting.Alert, msg Message, ch Channel) error {
	var color int
	fmt.Sscanf(severityColor(alert.Severity), "#%06x", &color)

	payload := map[string]any{
		"username": "sentinel",
		"embeds": []map[string]any{
			{
				"title":       msg.Subject,
				"description": msg.Body,
				"color":       color,
				"timestamp":   alert.TriggeredAt.Format(time.RFC3339),
			},
		},
	}
	return postJSON(ctx, s.client, ch.Config["url"], payload)
}

package notify

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/drawlytics/sentinel/internal/alerting"
)

// capture records the last JSON body POSTed to the test server.
type capture struct {
	body        map[string]any
	contentType string
}

func captureServer(t *testing.T, status int) (*httptest.Server, *capture) {
	t.Helper()
	cap := &capture{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		cap.contentType = r.Header.Get("Content-Type")
		require.NoError(t, json.Unmarshal(raw, &cap.body))
		w.WriteHeader(status)
	}))
	t.Cleanup(srv.Close)
	return srv, cap
}

func webhookChannel(url string) Channel {
	return Channel{ID: "c1", Name: "ops", Type: TypeWebhook, Enabled: true, Config: map[string]string{"url": url}}
}

func TestWebhookPayloadShape(t *testing.T) {
	srv, cap := captureServer(t, http.StatusOK)
	sender := NewWebhookSender(srv.Client())
	sender.now = func() time.Time { return renderedAt.Add(time.Second) }

	alert := sampleAlert()
	msg := Message{Subject: "[high] high cpu", Body: "details"}

	require.NoError(t, sender.Deliver(context.Background(), alert, msg, webhookChannel(srv.URL)))

	assert.Equal(t, "application/json", cap.contentType)
	assert.Equal(t, "a-1", cap.body["alert_id"])
	assert.Equal(t, "high", cap.body["severity"])
	assert.Equal(t, "high cpu", cap.body["rule_name"])
	assert.Equal(t, "[high] high cpu", cap.body["subject"])
	assert.Equal(t, "details", cap.body["body"])
	assert.Equal(t, "2026-03-01T12:00:00Z", cap.body["triggered_at"])
	assert.Equal(t, "2026-03-01T12:00:01Z", cap.body["timestamp"])
}

func TestWebhookNon2xxIsAnError(t *testing.T) {
	srv, _ := captureServer(t, http.StatusBadGateway)
	sender := NewWebhookSender(srv.Client())

	err := sender.Deliver(context.Background(), sampleAlert(), Message{}, webhookChannel(srv.URL))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "502")
}

func TestWebhookMissingURL(t *testing.T) {
	sender := NewWebhookSender(nil)
	err := sender.Deliver(context.Background(), sampleAlert(), Message{}, Channel{Type: TypeWebhook, Config: map[string]string{}})
	assert.Error(t, err)
}

func TestSlackPayloadShape(t *testing.T) {
	srv, cap := captureServer(t, http.StatusOK)
	sender := NewSlackSender(srv.Client())

	alert := sampleAlert()
	ch := Channel{
		ID: "c2", Name: "slack ops", Type: TypeSlack, Enabled: true,
		Config: map[string]string{"url": srv.URL, "channel": "#alerts"},
	}
	require.NoError(t, sender.Deliver(context.Background(), alert, Message{Subject: "s", Body: "b"}, ch))

	assert.Equal(t, "#alerts", cap.body["channel"])
	assert.Equal(t, "sentinel", cap.body["username"], "default username")
	assert.Equal(t, ":rotating_light:", cap.body["icon"], "default icon")

	attachments, ok := cap.body["attachments"].([]any)
	require.True(t, ok)
	require.Len(t, attachments, 1)
	att := attachments[0].(map[string]any)
	assert.Equal(t, "#FF8C00", att["color"], "high severity color")
	assert.Equal(t, "s", att["title"])
	assert.Equal(t, float64(alert.TriggeredAt.Unix()), att["ts"])

	fields := att["fields"].([]any)
	require.Len(t, fields, 4)
	first := fields[0].(map[string]any)
	assert.Equal(t, "Severity", first["title"])
	assert.Equal(t, "high", first["value"])
	assert.Equal(t, true, first["short"])
}

func TestSeverityColors(t *testing.T) {
	assert.Equal(t, "#FF0000", severityColor(alerting.SeverityCritical))
	assert.Equal(t, "#FF8C00", severityColor(alerting.SeverityHigh))
	assert.Equal(t, "#FFD700", severityColor(alerting.SeverityMedium))
	assert.Equal(t, "#0080FF", severityColor(alerting.SeverityLow))
	assert.Equal(t, "#0080FF", severityColor("unknown"), "unknown severity falls back to low")
}

func TestTeamsPayloadShape(t *testing.T) {
	srv, cap := captureServer(t, http.StatusOK)
	sender := NewTeamsSender(srv.Client())

	ch := Channel{ID: "c3", Type: TypeTeams, Enabled: true, Config: map[string]string{"url": srv.URL}}
	require.NoError(t, sender.Deliver(context.Background(), sampleAlert(), Message{Subject: "s", Body: "b"}, ch))

	assert.Equal(t, "MessageCard", cap.body["@type"])
	assert.Equal(t, "#FF8C00", cap.body["themeColor"])
	assert.Equal(t, "s", cap.body["summary"])

	sections := cap.body["sections"].([]any)
	require.Len(t, sections, 1)
	section := sections[0].(map[string]any)
	assert.Equal(t, "s", section["activityTitle"])
	assert.Equal(t, "Alert a-1", section["activitySubtitle"])
	assert.Len(t, section["facts"].([]any), 5)
}

func TestDiscordColorIsDecimal(t *testing.T) {
	srv, cap := captureServer(t, http.StatusOK)
	sender := NewDiscordSender(srv.Client())

	alert := sampleAlert()
	alert.Severity = alerting.SeverityCritical
	ch := Channel{ID: "c4", Type: TypeDiscord, Enabled: true, Config: map[string]string{"url": srv.URL}}
	require.NoError(t, sender.Deliver(context.Background(), alert, Message{Subject: "s"}, ch))

	embeds := cap.body["embeds"].([]any)
	require.Len(t, embeds, 1)
	embed := embeds[0].(map[string]any)
	assert.Equal(t, float64(0xFF0000), embed["color"], "#FF0000 as decimal")
}

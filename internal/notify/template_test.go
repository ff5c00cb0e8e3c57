package notify

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/drawlytics/sentinel/internal/alerting"
)

var renderedAt = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func sampleAlert() alerting.Alert {
	return alerting.Alert{
		ID:          "a-1",
		RuleID:      "r-1",
		RuleName:    "high cpu",
		Metric:      "cpu_usage",
		Message:     "high cpu: cpu_usage gt 80 (current value 91.50)",
		Severity:    alerting.SeverityHigh,
		Status:      alerting.StatusActive,
		TriggeredAt: renderedAt,
		MetricValue: 91.5,
		Threshold:   80,
	}
}

func TestRenderSubstitutesVariables(t *testing.T) {
	out := Render("[{{severity}}] {{rule_name}}: {{metric}}={{metric_value}} (threshold {{threshold}})", sampleAlert())
	assert.Equal(t, "[high] high cpu: cpu_usage=91.5 (threshold 80)", out)
}

func TestRenderLeavesUnknownPlaceholdersVerbatim(t *testing.T) {
	out := Render("{{severity}} alert for {{datacenter}}", sampleAlert())
	assert.Equal(t, "high alert for {{datacenter}}", out)
}

func TestRenderTimestampsAndLifecycleFields(t *testing.T) {
	alert := sampleAlert()
	ackAt := renderedAt.Add(5 * time.Minute)
	alert.AcknowledgedAt = &ackAt
	alert.AcknowledgedBy = "admin"

	out := Render("at {{triggered_at}}, ack by {{acknowledged_by}} at {{acknowledged_at}}", alert)
	assert.Equal(t, "at 2026-03-01 12:00:00 UTC, ack by admin at 2026-03-01 12:05:00 UTC", out)
}

func TestRenderMetadataVariables(t *testing.T) {
	alert := sampleAlert()
	alert.Metadata = map[string]string{"host": "web-3"}

	assert.Equal(t, "on web-3", Render("on {{host}}", alert))
}

func TestRenderUnterminatedPlaceholder(t *testing.T) {
	assert.Equal(t, "broken {{severity", Render("broken {{severity", sampleAlert()))
}

func TestDefaultTemplateRenders(t *testing.T) {
	msg := RenderMessage(DefaultTemplate, sampleAlert())
	assert.Equal(t, "[high] high cpu", msg.Subject)
	assert.Contains(t, msg.Body, "Metric: cpu_usage = 91.5 (threshold 80)")
	assert.NotContains(t, msg.Body, "{{", "every default placeholder resolves")
}

func TestTemplateStoreFindFor(t *testing.T) {
	store := NewTemplateStore()

	_, err := store.Upsert(Template{})
	assert.Error(t, err, "empty template is rejected")

	slackTpl, err := store.Upsert(Template{
		ID:           "slack-short",
		Name:         "slack short",
		Body:         "{{rule_name}}: {{metric_value}}",
		ChannelTypes: []ChannelType{TypeSlack},
	})
	require.NoError(t, err)

	assert.Equal(t, slackTpl.ID, store.FindFor(TypeSlack).ID)
	assert.Equal(t, DefaultTemplate.ID, store.FindFor(TypeEmail).ID, "no match falls back to the default")

	require.NoError(t, store.Delete(slackTpl.ID))
	assert.Error(t, store.Delete(slackTpl.ID))
	assert.Equal(t, DefaultTemplate.ID, store.FindFor(TypeSlack).ID)
}

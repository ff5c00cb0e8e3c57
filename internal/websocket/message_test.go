package websocket

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/drawlytics/sentinel/internal/alerting"
	"github.com/drawlytics/sentinel/internal/health"
	"github.com/drawlytics/sentinel/internal/metrics"
)

func decodeFrame(t *testing.T, raw []byte) map[string]interface{} {
	t.Helper()
	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(raw, &decoded))
	return decoded
}

func TestToJSONStampsTimestamp(t *testing.T) {
	decoded := decodeFrame(t, Message{Type: "ping", Data: map[string]interface{}{}}.ToJSON())

	assert.Equal(t, "ping", decoded["type"])
	ts, err := time.Parse(time.RFC3339Nano, decoded["timestamp"].(string))
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now(), ts, 5*time.Second)
}

func TestToJSONKeepsExplicitTimestamp(t *testing.T) {
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	decoded := decodeFrame(t, Message{Type: "ping", Timestamp: at}.ToJSON())
	assert.Equal(t, "2026-03-01T12:00:00Z", decoded["timestamp"])
}

func TestAlertMessage(t *testing.T) {
	event := alerting.AlertEvent{
		Kind:  alerting.AlertCreated,
		Alert: alerting.Alert{ID: "a-1", Severity: alerting.SeverityHigh},
	}
	msg := AlertMessage(event)

	assert.Equal(t, "alert_created", msg.Type)
	assert.Equal(t, TopicAlerts, msg.Topic)

	decoded := decodeFrame(t, msg.ToJSON())
	alert := decoded["data"].(map[string]interface{})["alert"].(map[string]interface{})
	assert.Equal(t, "a-1", alert["id"])
}

func TestEscalationMessage(t *testing.T) {
	msg := EscalationMessage(alerting.EscalationEvent{
		Alert:       alerting.Alert{ID: "a-1"},
		Rule:        alerting.EscalationRule{ID: "esc-1"},
		AutoResolve: true,
	})

	assert.Equal(t, "alert_escalated", msg.Type)
	assert.Equal(t, TopicEscalations, msg.Topic)
	assert.Equal(t, true, msg.Data["auto_resolve"])
}

func TestHealthAndSnapshotMessages(t *testing.T) {
	hm := HealthMessage(health.Report{Status: health.StatusDegraded})
	assert.Equal(t, "health_report", hm.Type)
	assert.Equal(t, TopicHealth, hm.Topic)

	sm := SnapshotMessage(metrics.Snapshot{Fields: map[string]float64{metrics.FieldCPUUsage: 42}})
	assert.Equal(t, "metrics_snapshot", sm.Type)
	assert.Equal(t, TopicMetrics, sm.Topic)
}

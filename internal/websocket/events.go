package websocket

import (
	"github.com/drawlytics/sentinel/internal/alerting"
	"github.com/drawlytics/sentinel/internal/health"
	"github.com/drawlytics/sentinel/internal/metrics"
)

// AlertMessage builds the frame broadcast on alert lifecycle changes.
func AlertMessage(event alerting.AlertEvent) Message {
	return Message{
		Type:  "alert_" + string(event.Kind),
		Topic: TopicAlerts,
		Data: map[string]interface{}{
			"alert": event.Alert,
		},
	}
}

// EscalationMessage builds the frame broadcast when an alert escalates.
func EscalationMessage(event alerting.EscalationEvent) Message {
	return Message{
		Type:  "alert_escalated",
		Topic: TopicEscalations,
		Data: map[string]interface{}{
			"alert":           event.Alert,
			"escalation_rule": event.Rule,
			"auto_resolve":    event.AutoResolve,
		},
	}
}

// HealthMessage builds the frame broadcast after each health check cycle.
func HealthMessage(report health.Report) Message {
	return Message{
		Type:  "health_report",
		Topic: TopicHealth,
		Data: map[string]interface{}{
			"report": report,
		},
	}
}

// SnapshotMessage builds the frame broadcast after each collection cycle.
func SnapshotMessage(snap metrics.Snapshot) Message {
	return Message{
		Type:  "metrics_snapshot",
		Topic: TopicMetrics,
		Data: map[string]interface{}{
			"snapshot": snap,
		},
	}
}

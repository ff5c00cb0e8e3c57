package alerting

import (
	"context"
	"time"
)

// Severity ranks how urgent an alert is.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// ValidSeverity reports whether s is one of the known severities.
func ValidSeverity(s Severity) bool {
	switch s {
	case SeverityLow, SeverityMedium, SeverityHigh, SeverityCritical:
		return true
	}
	return false
}

// Operator compares a sampled value against a rule threshold.
type Operator string

const (
	OpGreaterThan    Operator = "gt"
	OpGreaterOrEqual Operator = "gte"
	OpLessThan       Operator = "lt"
	OpLessOrEqual    Operator = "lte"
	// OpEqual is exact float64 equality. Values that went through lossy
	// arithmetic may never compare equal; eq is meant for discrete metrics
	// like active_users.
	OpEqual Operator = "eq"
)

// Rule is a named threshold condition over one metric. Rules are created and
// edited by the operator surface and read-only to the engine during
// evaluation.
type Rule struct {
	ID              string        `json:"id" db:"id"`
	Name            string        `json:"name" db:"name"`
	Metric          string        `json:"metric" db:"metric"`
	Operator        Operator      `json:"operator" db:"operator"`
	Threshold       float64       `json:"threshold" db:"threshold"`
	Severity        Severity      `json:"severity" db:"severity"`
	Enabled         bool          `json:"enabled" db:"enabled"`
	Cooldown        time.Duration `json:"cooldown" db:"cooldown"`
	ChannelIDs      []string      `json:"channel_ids"`
	LastTriggeredAt time.Time     `json:"last_triggered_at" db:"last_triggered_at"`
	CreatedAt       time.Time     `json:"created_at" db:"created_at"`
	UpdatedAt       time.Time     `json:"updated_at" db:"updated_at"`
}

// AlertStatus is the lifecycle state of an alert. Transitions are monotonic:
// active -> acknowledged -> resolved, or active -> resolved. Resolved is
// terminal.
type AlertStatus string

const (
	StatusActive       AlertStatus = "active"
	StatusAcknowledged AlertStatus = "acknowledged"
	StatusResolved     AlertStatus = "resolved"
)

// Alert is a materialized rule breach with its own lifecycle.
type Alert struct {
	ID             string            `json:"id"`
	RuleID         string            `json:"rule_id"`
	RuleName       string            `json:"rule_name"`
	Metric         string            `json:"metric"`
	Message        string            `json:"message"`
	Severity       Severity          `json:"severity"`
	Status         AlertStatus       `json:"status"`
	TriggeredAt    time.Time         `json:"triggered_at"`
	AcknowledgedAt *time.Time        `json:"acknowledged_at,omitempty"`
	AcknowledgedBy string            `json:"acknowledged_by,omitempty"`
	ResolvedAt     *time.Time        `json:"resolved_at,omitempty"`
	MetricValue    float64           `json:"metric_value"`
	Threshold      float64           `json:"threshold"`
	Metadata       map[string]string `json:"metadata,omitempty"`
}

// EscalationRule describes when an unacknowledged alert gets escalated and
// what extra fan-out happens when it does.
type EscalationRule struct {
	ID            string        `json:"id"`
	Name          string        `json:"name"`
	Severities    []Severity    `json:"severities"`
	UnackedAfter  time.Duration `json:"unacked_after"`
	ChannelIDs    []string      `json:"channel_ids"`
	EscalateTo    []string      `json:"escalate_to,omitempty"`
	AutoResolve   bool          `json:"auto_resolve"`
	// RepeatAfter is the escalation window: zero means each (alert, rule)
	// pair escalates exactly once; otherwise it may fire again after this
	// much time has passed since the pair's last escalation.
	RepeatAfter time.Duration `json:"repeat_after"`
	Enabled     bool          `json:"enabled"`
}

// MatchesSeverity reports whether the rule applies to alerts of severity s.
// An empty severity set matches everything.
func (r EscalationRule) MatchesSeverity(s Severity) bool {
	if len(r.Severities) == 0 {
		return true
	}
	for _, sev := range r.Severities {
		if sev == s {
			return true
		}
	}
	return false
}

// EscalationEvent records one escalation of an alert by a rule.
type EscalationEvent struct {
	Alert       Alert          `json:"alert"`
	Rule        EscalationRule `json:"rule"`
	At          time.Time      `json:"at"`
	AutoResolve bool           `json:"auto_resolve"`
}

// AuditAction is the kind of event an audit entry records.
type AuditAction string

const (
	AuditSent         AuditAction = "sent"
	AuditFailed       AuditAction = "failed"
	AuditEscalated    AuditAction = "escalated"
	AuditResolved     AuditAction = "resolved"
	AuditAcknowledged AuditAction = "acknowledged"
)

// AuditEntry is an immutable record of a dispatch or lifecycle action.
type AuditEntry struct {
	ID        string      `json:"id"`
	Timestamp time.Time   `json:"timestamp"`
	Action    AuditAction `json:"action"`
	AlertID   string      `json:"alert_id"`
	ChannelID string      `json:"channel_id,omitempty"`
	Details   string      `json:"details,omitempty"`
}

// DeliveryResult is the per-channel outcome of one dispatch fan-out.
type DeliveryResult struct {
	ChannelID   string        `json:"channel_id"`
	ChannelType string        `json:"channel_type"`
	Success     bool          `json:"success"`
	Message     string        `json:"message,omitempty"`
	Elapsed     time.Duration `json:"elapsed"`
}

// Dispatcher fans an alert out to notification channels. Implemented by the
// notify package; the engine depends only on this capability.
type Dispatcher interface {
	Dispatch(ctx context.Context, alert Alert, channelIDs []string) []DeliveryResult
}

// Clock abstracts time.Now so cooldown and escalation behavior is testable
// with a fake clock.
type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

// SystemClock returns the wall clock.
func SystemClock() Clock { return realClock{} }

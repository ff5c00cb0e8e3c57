package alerting

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/drawlytics/sentinel/pkg/logger"
)

func newTestEscalation(clock Clock, dispatcher Dispatcher) (*EscalationManager, *AlertStore, *AuditLog) {
	store := testStore(clock)
	audit := NewAuditLog(0, clock)
	return NewEscalationManager(store, dispatcher, audit, clock, logger.NewNop()), store, audit
}

func criticalAlert(store *AlertStore) Alert {
	rule := Rule{
		ID:        "rule-critical",
		Name:      "db down",
		Metric:    "error_rate",
		Operator:  OpGreaterThan,
		Threshold: 0.5,
		Severity:  SeverityCritical,
	}
	return store.Create(rule, 0.9, "db down")
}

func TestEscalationRuleValidation(t *testing.T) {
	mgr, _, _ := newTestEscalation(newFakeClock(t0), newMockDispatcher())

	_, err := mgr.UpsertRule(EscalationRule{Name: "no window", Enabled: true})
	assert.Error(t, err, "unacked_after is required")

	_, err = mgr.UpsertRule(EscalationRule{
		Name:         "bad severity",
		UnackedAfter: time.Minute,
		Severities:   []Severity{"urgent"},
	})
	assert.Error(t, err)
}

func TestEscalationOncePerWindow(t *testing.T) {
	// Scenario: critical alerts unacknowledged for 10 minutes escalate. The
	// scan runs every 2 minutes; the alert must escalate exactly once, not
	// once per tick.
	clock := newFakeClock(t0)
	mgr, store, _ := newTestEscalation(clock, newMockDispatcher())

	_, err := mgr.UpsertRule(EscalationRule{
		ID:           "esc-1",
		Name:         "page on-call",
		Severities:   []Severity{SeverityCritical},
		UnackedAfter: 10 * time.Minute,
		ChannelIDs:   []string{"pager"},
		Enabled:      true,
	})
	require.NoError(t, err)

	alert := criticalAlert(store)

	clock.Advance(9 * time.Minute)
	assert.Empty(t, mgr.Scan(context.Background()), "not overdue yet")

	clock.Advance(2 * time.Minute)
	events := mgr.Scan(context.Background())
	require.Len(t, events, 1)
	assert.Equal(t, alert.ID, events[0].Alert.ID)

	for i := 0; i < 5; i++ {
		clock.Advance(2 * time.Minute)
		assert.Empty(t, mgr.Scan(context.Background()), "already escalated, scan %d must stay silent", i)
	}
}

func TestEscalationRepeatAfterWindow(t *testing.T) {
	clock := newFakeClock(t0)
	mgr, store, _ := newTestEscalation(clock, newMockDispatcher())

	_, err := mgr.UpsertRule(EscalationRule{
		ID:           "esc-repeat",
		Name:         "keep paging",
		UnackedAfter: 5 * time.Minute,
		RepeatAfter:  30 * time.Minute,
		ChannelIDs:   []string{"pager"},
		Enabled:      true,
	})
	require.NoError(t, err)

	criticalAlert(store)

	clock.Advance(6 * time.Minute)
	require.Len(t, mgr.Scan(context.Background()), 1, "first escalation")

	clock.Advance(10 * time.Minute)
	assert.Empty(t, mgr.Scan(context.Background()), "inside the repeat window")

	clock.Advance(25 * time.Minute)
	assert.Len(t, mgr.Scan(context.Background()), 1, "repeat window elapsed")
}

func TestEscalationSkipsAcknowledgedAlerts(t *testing.T) {
	clock := newFakeClock(t0)
	mgr, store, _ := newTestEscalation(clock, newMockDispatcher())

	_, err := mgr.UpsertRule(EscalationRule{
		ID:           "esc-ack",
		Name:         "page on-call",
		UnackedAfter: 5 * time.Minute,
		Enabled:      true,
	})
	require.NoError(t, err)

	alert := criticalAlert(store)
	_, _, err = store.Acknowledge(alert.ID, "oncall")
	require.NoError(t, err)

	clock.Advance(time.Hour)
	assert.Empty(t, mgr.Scan(context.Background()), "acknowledged alerts never escalate")
}

func TestEscalationSeverityFilter(t *testing.T) {
	clock := newFakeClock(t0)
	mgr, store, _ := newTestEscalation(clock, newMockDispatcher())

	_, err := mgr.UpsertRule(EscalationRule{
		ID:           "esc-critical-only",
		Name:         "critical only",
		Severities:   []Severity{SeverityCritical},
		UnackedAfter: 5 * time.Minute,
		Enabled:      true,
	})
	require.NoError(t, err)

	lowRule := Rule{ID: "rule-low", Name: "slow api", Metric: "response_time", Severity: SeverityLow}
	store.Create(lowRule, 900, "slow api")

	clock.Advance(time.Hour)
	assert.Empty(t, mgr.Scan(context.Background()), "low severity is outside the filter")
}

func TestEscalationDispatchesAndAudits(t *testing.T) {
	clock := newFakeClock(t0)
	dispatcher := newMockDispatcher("sms-oncall")
	mgr, store, audit := newTestEscalation(clock, dispatcher)

	_, err := mgr.UpsertRule(EscalationRule{
		ID:           "esc-fanout",
		Name:         "page both",
		UnackedAfter: 5 * time.Minute,
		ChannelIDs:   []string{"slack-ops"},
		EscalateTo:   []string{"sms-oncall"},
		Enabled:      true,
	})
	require.NoError(t, err)

	alert := criticalAlert(store)
	clock.Advance(6 * time.Minute)
	require.Len(t, mgr.Scan(context.Background()), 1)

	entries := audit.Query(0, alert.ID)
	// One escalated entry plus one entry per target channel.
	require.Len(t, entries, 3)

	byAction := make(map[AuditAction]int)
	for _, e := range entries {
		byAction[e.Action]++
	}
	assert.Equal(t, 1, byAction[AuditEscalated])
	assert.Equal(t, 1, byAction[AuditSent])
	assert.Equal(t, 1, byAction[AuditFailed])
	assert.Equal(t, 1, dispatcher.callCount())
}

func TestScanDropsTrackingForGoneAlerts(t *testing.T) {
	clock := newFakeClock(t0)
	mgr, store, _ := newTestEscalation(clock, newMockDispatcher())

	_, err := mgr.UpsertRule(EscalationRule{
		ID:           "esc-prune",
		Name:         "page on-call",
		UnackedAfter: 5 * time.Minute,
		Enabled:      true,
	})
	require.NoError(t, err)

	alert := criticalAlert(store)
	clock.Advance(6 * time.Minute)
	require.Len(t, mgr.Scan(context.Background()), 1)

	mgr.mu.Lock()
	tracked := len(mgr.lastEscalated)
	mgr.mu.Unlock()
	require.Equal(t, 1, tracked)

	_, _, err = store.Resolve(alert.ID)
	require.NoError(t, err)
	mgr.Scan(context.Background())

	mgr.mu.Lock()
	tracked = len(mgr.lastEscalated)
	mgr.mu.Unlock()
	assert.Zero(t, tracked, "resolved alerts leave no escalation bookkeeping behind")
}

func TestEscalationAutoResolve(t *testing.T) {
	clock := newFakeClock(t0)
	mgr, store, audit := newTestEscalation(clock, newMockDispatcher())

	_, err := mgr.UpsertRule(EscalationRule{
		ID:           "esc-auto",
		Name:         "give up",
		UnackedAfter: 5 * time.Minute,
		AutoResolve:  true,
		Enabled:      true,
	})
	require.NoError(t, err)

	alert := criticalAlert(store)
	clock.Advance(6 * time.Minute)
	require.Len(t, mgr.Scan(context.Background()), 1)

	resolved, err := store.Get(alert.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusResolved, resolved.Status)

	var resolvedAudits int
	for _, e := range audit.Query(0, alert.ID) {
		if e.Action == AuditResolved {
			resolvedAudits++
		}
	}
	assert.Equal(t, 1, resolvedAudits)
}

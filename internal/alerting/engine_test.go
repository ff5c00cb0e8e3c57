package alerting

import (
	"context"
	"testing"
	"time"

	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/drawlytics/sentinel/internal/health"
	"github.com/drawlytics/sentinel/internal/metrics"
	"github.com/drawlytics/sentinel/pkg/logger"
)

// stubSource reports a settable cpu_usage value.
type stubSource struct {
	value float64
}

func (s *stubSource) Name() string     { return "stub" }
func (s *stubSource) Fields() []string { return []string{"cpu_usage"} }
func (s *stubSource) Sample(ctx context.Context) (map[string]float64, error) {
	return map[string]float64{"cpu_usage": s.value}, nil
}

type engineFixture struct {
	engine     *Engine
	source     *stubSource
	clock      *fakeClock
	dispatcher *mockDispatcher
}

func newEngineFixture(t *testing.T, dispatcher *mockDispatcher) *engineFixture {
	t.Helper()

	clock := newFakeClock(t0)
	log := logger.NewNop()

	source := &stubSource{value: 10}
	collector := metrics.NewCollector(10, log)
	collector.SetNowFunc(clock.Now)
	collector.Register(source)

	checker := health.NewChecker(time.Second, log)
	store := testStore(clock)
	rules := NewRuleEngine(store, clock, log)
	audit := NewAuditLog(0, clock)
	escalation := NewEscalationManager(store, dispatcher, audit, clock, log)

	engine := NewEngine(EngineConfig{}, collector, checker, rules, store, audit, escalation, dispatcher, nil, log)
	return &engineFixture{engine: engine, source: source, clock: clock, dispatcher: dispatcher}
}

func TestCollectNowEvaluatesRules(t *testing.T) {
	f := newEngineFixture(t, newMockDispatcher())

	_, err := f.engine.Rules().UpsertRule(Rule{
		Name:      "high cpu",
		Metric:    "cpu_usage",
		Operator:  OpGreaterThan,
		Threshold: 80,
		Severity:  SeverityHigh,
		Enabled:   true,
	})
	require.NoError(t, err)

	f.source.value = 50
	f.engine.CollectNow(context.Background())
	assert.Equal(t, 0, f.engine.Store().ActiveCount())

	f.source.value = 95
	snap := f.engine.CollectNow(context.Background())
	assert.Equal(t, 95.0, snap.Fields["cpu_usage"])
	assert.Equal(t, 1, f.engine.Store().ActiveCount(), "on-demand collection evaluates rules too")
}

func TestFiredAlertFansOutToRuleChannels(t *testing.T) {
	dispatcher := newMockDispatcher()
	f := newEngineFixture(t, dispatcher)

	_, err := f.engine.Rules().UpsertRule(Rule{
		Name:       "high cpu",
		Metric:     "cpu_usage",
		Operator:   OpGreaterThan,
		Threshold:  80,
		Severity:   SeverityHigh,
		Enabled:    true,
		ChannelIDs: []string{"slack-ops", "mail-ops"},
	})
	require.NoError(t, err)

	f.source.value = 95
	f.engine.CollectNow(context.Background())

	assert.Eventually(t, func() bool {
		return dispatcher.callCount() == 1
	}, time.Second, 10*time.Millisecond, "dispatch happens off the evaluation path")

	assert.Eventually(t, func() bool {
		return len(f.engine.Audit().Query(0, "")) == 2
	}, time.Second, 10*time.Millisecond, "one audit entry per channel")
}

func TestDispatchAuditsEveryOutcome(t *testing.T) {
	// Two channels, one of them broken: the call returns normally with both
	// outcomes and the audit log holds exactly one entry per channel.
	dispatcher := newMockDispatcher("webhook-broken")
	f := newEngineFixture(t, dispatcher)

	store := f.engine.Store()
	alert := createAlert(store, "high cpu")

	results := f.engine.Dispatch(context.Background(), alert, []string{"webhook-ok", "webhook-broken"})
	require.Len(t, results, 2)
	assert.True(t, results[0].Success)
	assert.False(t, results[1].Success)

	entries := f.engine.Audit().Query(0, alert.ID)
	require.Len(t, entries, 2)

	byChannel := make(map[string]AuditAction)
	for _, e := range entries {
		byChannel[e.ChannelID] = e.Action
	}
	assert.Equal(t, AuditSent, byChannel["webhook-ok"])
	assert.Equal(t, AuditFailed, byChannel["webhook-broken"])
}

func TestAcknowledgeAuditsOnlyOnChange(t *testing.T) {
	f := newEngineFixture(t, newMockDispatcher())
	alert := createAlert(f.engine.Store(), "high cpu")

	_, err := f.engine.Acknowledge(alert.ID, "admin")
	require.NoError(t, err)
	_, err = f.engine.Acknowledge(alert.ID, "someone-else")
	require.NoError(t, err)

	var acks int
	for _, e := range f.engine.Audit().Query(0, alert.ID) {
		if e.Action == AuditAcknowledged {
			acks++
		}
	}
	assert.Equal(t, 1, acks, "repeat acknowledge is silent")
}

func TestResolveAuditsOnlyOnChange(t *testing.T) {
	f := newEngineFixture(t, newMockDispatcher())
	alert := createAlert(f.engine.Store(), "high cpu")

	_, err := f.engine.Resolve(alert.ID)
	require.NoError(t, err)
	_, err = f.engine.Resolve(alert.ID)
	require.NoError(t, err)

	var resolves int
	for _, e := range f.engine.Audit().Query(0, alert.ID) {
		if e.Action == AuditResolved {
			resolves++
		}
	}
	assert.Equal(t, 1, resolves)
}

func TestEngineStartStop(t *testing.T) {
	f := newEngineFixture(t, newMockDispatcher())

	require.NoError(t, f.engine.Start())
	assert.Error(t, f.engine.Start(), "double start is rejected")

	f.engine.Stop()
	f.engine.Stop() // stop is idempotent
}

func TestEscalationHookFires(t *testing.T) {
	f := newEngineFixture(t, newMockDispatcher())

	var events []EscalationEvent
	f.engine.SetEscalationHook(func(e EscalationEvent) { events = append(events, e) })

	_, err := f.engine.Escalation().UpsertRule(EscalationRule{
		Name:         "page on-call",
		UnackedAfter: 5 * time.Minute,
		Enabled:      true,
	})
	require.NoError(t, err)

	createAlert(f.engine.Store(), "high cpu")
	f.clock.Advance(6 * time.Minute)

	require.NoError(t, f.engine.Start())
	defer f.engine.Stop()
	f.engine.escalationTick()
	assert.Len(t, events, 1)
}

func TestDispatchObservesDuration(t *testing.T) {
	clock := newFakeClock(t0)
	log := logger.NewNop()
	dispatcher := newMockDispatcher()

	collector := metrics.NewCollector(10, log)
	checker := health.NewChecker(time.Second, log)
	store := testStore(clock)
	rules := NewRuleEngine(store, clock, log)
	audit := NewAuditLog(0, clock)
	escalation := NewEscalationManager(store, dispatcher, audit, clock, log)

	// Unique prefix: the engine metric set registers on the default
	// prometheus registry.
	em := metrics.NewEngineMetrics("sentinel_dispatch_test")
	engine := NewEngine(EngineConfig{}, collector, checker, rules, store, audit, escalation, dispatcher, em, log)

	alert := createAlert(store, "high cpu")
	engine.Dispatch(context.Background(), alert, []string{"webhook-ok"})

	var m dto.Metric
	require.NoError(t, em.DispatchDurations.Write(&m))
	assert.Equal(t, uint64(1), m.GetHistogram().GetSampleCount())
}

func TestRetentionHookFires(t *testing.T) {
	f := newEngineFixture(t, newMockDispatcher())

	var calls int
	f.engine.SetRetentionHook(func(ctx context.Context) { calls++ })

	f.engine.retentionTick() // engine not started, no base context yet

	require.NoError(t, f.engine.Start())
	defer f.engine.Stop()
	f.engine.retentionTick()
	assert.Equal(t, 1, calls)
}

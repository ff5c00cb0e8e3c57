package alerting

import (
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// AlertEventKind identifies a lifecycle notification emitted by the store.
type AlertEventKind string

const (
	AlertCreated      AlertEventKind = "created"
	AlertAcknowledged AlertEventKind = "acknowledged"
	AlertResolved     AlertEventKind = "resolved"
)

// AlertEvent is pushed to store subscribers on every lifecycle change.
type AlertEvent struct {
	Kind  AlertEventKind `json:"kind"`
	Alert Alert          `json:"alert"`
}

// AlertStore owns the alert lifecycle and retention. All mutations are
// serialized behind one mutex so a concurrent acknowledge cannot race an
// evaluation cycle.
type AlertStore struct {
	alerts []*Alert
	byID   map[string]*Alert
	cap    int
	clock  Clock
	logger *logrus.Logger
	subs   []func(AlertEvent)
	mu     sync.Mutex
}

// NewAlertStore creates a store retaining at most cap alerts. Active alerts
// are never evicted, even when that temporarily overshoots the cap.
func NewAlertStore(cap int, clock Clock, logger *logrus.Logger) *AlertStore {
	if cap <= 0 {
		cap = 500
	}
	return &AlertStore{
		byID:   make(map[string]*Alert),
		cap:    cap,
		clock:  clock,
		logger: logger,
	}
}

// Subscribe registers a lifecycle listener. Listeners are invoked outside
// the store lock, in registration order.
func (s *AlertStore) Subscribe(fn func(AlertEvent)) {
	s.mu.Lock()
	s.subs = append(s.subs, fn)
	s.mu.Unlock()
}

// Create materializes a new active alert for a rule breach and returns a
// copy of it.
func (s *AlertStore) Create(rule Rule, value float64, message string) Alert {
	alert := &Alert{
		ID:          uuid.NewString(),
		RuleID:      rule.ID,
		RuleName:    rule.Name,
		Metric:      rule.Metric,
		Message:     message,
		Severity:    rule.Severity,
		Status:      StatusActive,
		TriggeredAt: s.clock.Now(),
		MetricValue: value,
		Threshold:   rule.Threshold,
	}

	s.mu.Lock()
	s.alerts = append(s.alerts, alert)
	s.byID[alert.ID] = alert
	s.evictLocked()
	out := *alert
	s.mu.Unlock()

	s.publish(AlertEvent{Kind: AlertCreated, Alert: out})
	return out
}

// Acknowledge marks an active alert as acknowledged by actor. Acknowledging
// a resolved or already-acknowledged alert is a no-op that keeps the
// original record; the returned bool reports whether anything changed. An
// actor is required.
func (s *AlertStore) Acknowledge(id, actor string) (Alert, bool, error) {
	if actor == "" {
		return Alert{}, false, fmt.Errorf("acknowledge requires an actor")
	}

	s.mu.Lock()
	alert, ok := s.byID[id]
	if !ok {
		s.mu.Unlock()
		return Alert{}, false, fmt.Errorf("alert %s not found", id)
	}

	switch alert.Status {
	case StatusResolved, StatusAcknowledged:
		out := *alert
		s.mu.Unlock()
		return out, false, nil
	}

	now := s.clock.Now()
	alert.Status = StatusAcknowledged
	alert.AcknowledgedAt = &now
	alert.AcknowledgedBy = actor
	out := *alert
	s.mu.Unlock()

	s.publish(AlertEvent{Kind: AlertAcknowledged, Alert: out})
	return out, true, nil
}

// Resolve marks an alert resolved. Resolving an already-resolved alert is a
// no-op, not an error; the returned bool reports whether anything changed.
func (s *AlertStore) Resolve(id string) (Alert, bool, error) {
	s.mu.Lock()
	alert, ok := s.byID[id]
	if !ok {
		s.mu.Unlock()
		return Alert{}, false, fmt.Errorf("alert %s not found", id)
	}

	if alert.Status == StatusResolved {
		out := *alert
		s.mu.Unlock()
		return out, false, nil
	}

	now := s.clock.Now()
	alert.Status = StatusResolved
	alert.ResolvedAt = &now
	out := *alert
	s.mu.Unlock()

	s.publish(AlertEvent{Kind: AlertResolved, Alert: out})
	return out, true, nil
}

// Get returns a copy of one alert.
func (s *AlertStore) Get(id string) (Alert, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	alert, ok := s.byID[id]
	if !ok {
		return Alert{}, fmt.Errorf("alert %s not found", id)
	}
	return *alert, nil
}

// List returns alerts newest-first, optionally filtered by status. An empty
// filter returns everything retained.
func (s *AlertStore) List(statusFilter AlertStatus) []Alert {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]Alert, 0, len(s.alerts))
	for i := len(s.alerts) - 1; i >= 0; i-- {
		alert := s.alerts[i]
		if statusFilter != "" && alert.Status != statusFilter {
			continue
		}
		out = append(out, *alert)
	}
	return out
}

// ActiveCount returns the number of unresolved alerts.
func (s *AlertStore) ActiveCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for _, alert := range s.alerts {
		if alert.Status != StatusResolved {
			n++
		}
	}
	return n
}

// Import replaces the retained alert set. Used by configuration import.
func (s *AlertStore) Import(alerts []Alert) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.alerts = s.alerts[:0]
	s.byID = make(map[string]*Alert, len(alerts))
	for i := range alerts {
		a := alerts[i]
		s.alerts = append(s.alerts, &a)
		s.byID[a.ID] = &a
	}
	s.evictLocked()
}

// evictLocked drops the oldest non-active alerts once the cap is exceeded.
// Active alerts are never silently dropped; if everything retained is still
// active the store overshoots and logs it.
func (s *AlertStore) evictLocked() {
	if len(s.alerts) <= s.cap {
		return
	}

	kept := s.alerts[:0]
	over := len(s.alerts) - s.cap
	for _, alert := range s.alerts {
		if over > 0 && alert.Status != StatusActive {
			delete(s.byID, alert.ID)
			over--
			continue
		}
		kept = append(kept, alert)
	}
	s.alerts = kept

	if over > 0 {
		s.logger.WithFields(logrus.Fields{
			"cap":      s.cap,
			"retained": len(s.alerts),
		}).Warn("Alert retention cap exceeded by active alerts, keeping all of them")
	}
}

func (s *AlertStore) publish(event AlertEvent) {
	s.mu.Lock()
	subs := append([]func(AlertEvent){}, s.subs...)
	s.mu.Unlock()

	for _, fn := range subs {
		fn(event)
	}
}

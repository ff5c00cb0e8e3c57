package alerting

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// EscalationManager rescans active alerts for overdue acknowledgment and
// triggers the configured extra fan-out. Each (alert, rule) pair escalates
// at most once per escalation window, tracked by last-escalated timestamps,
// so a slow operator is not paged again on every scan tick.
type EscalationManager struct {
	rules         map[string]*EscalationRule
	store         *AlertStore
	dispatcher    Dispatcher
	audit         *AuditLog
	clock         Clock
	logger        *logrus.Logger
	lastEscalated map[string]time.Time
	mu            sync.Mutex
}

func NewEscalationManager(store *AlertStore, dispatcher Dispatcher, audit *AuditLog, clock Clock, logger *logrus.Logger) *EscalationManager {
	return &EscalationManager{
		rules:         make(map[string]*EscalationRule),
		store:         store,
		dispatcher:    dispatcher,
		audit:         audit,
		clock:         clock,
		logger:        logger,
		lastEscalated: make(map[string]time.Time),
	}
}

// UpsertRule adds or replaces an escalation rule.
func (m *EscalationManager) UpsertRule(rule EscalationRule) (EscalationRule, error) {
	if rule.UnackedAfter <= 0 {
		return EscalationRule{}, fmt.Errorf("unacked_after must be positive")
	}
	for _, sev := range rule.Severities {
		if !ValidSeverity(sev) {
			return EscalationRule{}, fmt.Errorf("unknown severity %q", sev)
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if rule.ID == "" {
		rule.ID = uuid.NewString()
	}
	stored := rule
	m.rules[rule.ID] = &stored
	return rule, nil
}

// DeleteRule removes an escalation rule.
func (m *EscalationManager) DeleteRule(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.rules[id]; !ok {
		return fmt.Errorf("escalation rule %s not found", id)
	}
	delete(m.rules, id)
	return nil
}

// ListRules returns all escalation rules sorted by ID.
func (m *EscalationManager) ListRules() []EscalationRule {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]EscalationRule, 0, len(m.rules))
	for _, rule := range m.rules {
		out = append(out, *rule)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Scan walks active, unacknowledged alerts and escalates the overdue ones.
// It returns the escalation events triggered by this scan.
func (m *EscalationManager) Scan(ctx context.Context) []EscalationEvent {
	now := m.clock.Now()
	active := m.store.List(StatusActive)
	activeIDs := make(map[string]bool, len(active))
	for _, alert := range active {
		activeIDs[alert.ID] = true
	}

	m.mu.Lock()
	// Escalation timestamps for alerts that resolved or were evicted are
	// never consulted again; drop them so the map stays bounded.
	for key := range m.lastEscalated {
		if id, _, ok := strings.Cut(key, "|"); ok && !activeIDs[id] {
			delete(m.lastEscalated, key)
		}
	}
	rules := make([]*EscalationRule, 0, len(m.rules))
	for _, rule := range m.rules {
		if rule.Enabled {
			rules = append(rules, rule)
		}
	}
	sort.Slice(rules, func(i, j int) bool { return rules[i].ID < rules[j].ID })

	var due []EscalationEvent
	for _, alert := range active {
		age := now.Sub(alert.TriggeredAt)
		for _, rule := range rules {
			if !rule.MatchesSeverity(alert.Severity) || age < rule.UnackedAfter {
				continue
			}

			key := alert.ID + "|" + rule.ID
			if last, ok := m.lastEscalated[key]; ok {
				if rule.RepeatAfter <= 0 || now.Sub(last) < rule.RepeatAfter {
					continue
				}
			}
			m.lastEscalated[key] = now

			due = append(due, EscalationEvent{
				Alert:       alert,
				Rule:        *rule,
				At:          now,
				AutoResolve: rule.AutoResolve,
			})
		}
	}
	m.mu.Unlock()

	for _, event := range due {
		m.escalate(ctx, event)
	}
	return due
}

func (m *EscalationManager) escalate(ctx context.Context, event EscalationEvent) {
	m.logger.WithFields(logrus.Fields{
		"alert":    event.Alert.ID,
		"rule":     event.Rule.ID,
		"severity": event.Alert.Severity,
	}).Warn("Escalating unacknowledged alert")

	m.audit.Record(AuditEntry{
		Action:  AuditEscalated,
		AlertID: event.Alert.ID,
		Details: fmt.Sprintf("unacknowledged for over %s (rule %s)", event.Rule.UnackedAfter, event.Rule.Name),
	})

	targets := append([]string(nil), event.Rule.ChannelIDs...)
	targets = append(targets, event.Rule.EscalateTo...)
	if len(targets) > 0 && m.dispatcher != nil {
		results := m.dispatcher.Dispatch(ctx, event.Alert, targets)
		for _, res := range results {
			action := AuditSent
			if !res.Success {
				action = AuditFailed
			}
			m.audit.Record(AuditEntry{
				Action:    action,
				AlertID:   event.Alert.ID,
				ChannelID: res.ChannelID,
				Details:   res.Message,
			})
		}
	}

	if event.AutoResolve {
		_, changed, err := m.store.Resolve(event.Alert.ID)
		if err != nil {
			m.logger.WithError(err).WithField("alert", event.Alert.ID).Warn("Auto-resolve failed")
		} else if changed {
			m.audit.Record(AuditEntry{
				Action:  AuditResolved,
				AlertID: event.Alert.ID,
				Details: "auto-resolved by escalation rule " + event.Rule.Name,
			})
		}
	}
}

// Import replaces the escalation rule set. Used by configuration import.
func (m *EscalationManager) Import(rules []EscalationRule) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.rules = make(map[string]*EscalationRule, len(rules))
	for i := range rules {
		r := rules[i]
		if r.ID == "" {
			r.ID = uuid.NewString()
		}
		m.rules[r.ID] = &r
	}
}

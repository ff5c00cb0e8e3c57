package alerting

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/drawlytics/sentinel/internal/metrics"
	errs "github.com/drawlytics/sentinel/pkg/errors"
)

// RuleEngine evaluates threshold rules against metric snapshots and creates
// alerts through the store. Rule mutations and evaluation share one mutex so
// cooldown bookkeeping cannot lose updates.
type RuleEngine struct {
	rules           map[string]*Rule
	store           *AlertStore
	clock           Clock
	logger          *logrus.Logger
	defaultCooldown time.Duration
	mu              sync.Mutex
}

func NewRuleEngine(store *AlertStore, clock Clock, logger *logrus.Logger) *RuleEngine {
	return &RuleEngine{
		rules:  make(map[string]*Rule),
		store:  store,
		clock:  clock,
		logger: logger,
	}
}

// SetDefaultCooldown sets the cooldown applied to rules upserted without
// one. Restored and imported rules keep their stored value either way.
func (e *RuleEngine) SetDefaultCooldown(d time.Duration) {
	e.mu.Lock()
	e.defaultCooldown = d
	e.mu.Unlock()
}

// UpsertRule adds or replaces a rule. A missing ID gets generated; triggers
// already recorded for an existing ID are preserved. A rule without a
// cooldown gets the engine's default.
func (e *RuleEngine) UpsertRule(rule Rule) (Rule, error) {
	if rule.Name == "" {
		return Rule{}, fmt.Errorf("rule name is required")
	}
	if rule.Metric == "" {
		return Rule{}, fmt.Errorf("rule metric is required")
	}
	if !validOperator(rule.Operator) {
		return Rule{}, fmt.Errorf("unknown operator %q", rule.Operator)
	}
	if !ValidSeverity(rule.Severity) {
		return Rule{}, fmt.Errorf("unknown severity %q", rule.Severity)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	now := e.clock.Now()
	if rule.ID == "" {
		rule.ID = uuid.NewString()
		rule.CreatedAt = now
	} else if existing, ok := e.rules[rule.ID]; ok {
		rule.CreatedAt = existing.CreatedAt
		rule.LastTriggeredAt = existing.LastTriggeredAt
	} else {
		rule.CreatedAt = now
	}
	rule.UpdatedAt = now
	if rule.Cooldown <= 0 {
		rule.Cooldown = e.defaultCooldown
	}

	stored := rule
	e.rules[rule.ID] = &stored
	return rule, nil
}

// DeleteRule removes a rule. Deleting an unknown rule is an error.
func (e *RuleEngine) DeleteRule(id string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if _, ok := e.rules[id]; !ok {
		return fmt.Errorf("rule %s not found", id)
	}
	delete(e.rules, id)
	return nil
}

// GetRule returns a copy of one rule.
func (e *RuleEngine) GetRule(id string) (Rule, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	rule, ok := e.rules[id]
	if !ok {
		return Rule{}, fmt.Errorf("rule %s not found", id)
	}
	return *rule, nil
}

// ListRules returns all rules sorted by ID.
func (e *RuleEngine) ListRules() []Rule {
	e.mu.Lock()
	defer e.mu.Unlock()

	out := make([]Rule, 0, len(e.rules))
	for _, rule := range e.rules {
		out = append(out, *rule)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Evaluate runs every enabled rule against the snapshot and returns only the
// alerts triggered by this call. Rules are evaluated in ID order so a cycle
// is deterministic. A malformed rule is skipped and logged; it never aborts
// the remaining rules. A rule in its cooldown window does not fire again no
// matter how long the breach persists.
func (e *RuleEngine) Evaluate(snap metrics.Snapshot) []Alert {
	e.mu.Lock()
	ordered := make([]*Rule, 0, len(e.rules))
	for _, rule := range e.rules {
		if rule.Enabled {
			ordered = append(ordered, rule)
		}
	}
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].ID < ordered[j].ID })

	now := e.clock.Now()
	degraded := make(map[string]bool, len(snap.Degraded))
	for _, field := range snap.Degraded {
		degraded[field] = true
	}

	type firing struct {
		rule  Rule
		value float64
	}
	var fired []firing

	for _, rule := range ordered {
		if rule.Metric == "" || !validOperator(rule.Operator) {
			e.logger.WithError(errs.New(errs.KindRuleEvaluation, rule.ID, "malformed rule")).WithFields(logrus.Fields{
				"rule": rule.ID,
				"name": rule.Name,
			}).Warn("Skipping malformed alert rule")
			continue
		}

		value, ok := snap.Value(rule.Metric)
		if !ok {
			continue
		}
		// A degraded reading is a probe failure, not a measurement; the
		// failure itself surfaces through error_rate.
		if degraded[rule.Metric] {
			continue
		}

		if !compare(value, rule.Operator, rule.Threshold) {
			continue
		}
		if !rule.LastTriggeredAt.IsZero() && now.Sub(rule.LastTriggeredAt) < rule.Cooldown {
			continue
		}

		rule.LastTriggeredAt = now
		fired = append(fired, firing{rule: *rule, value: value})
	}
	e.mu.Unlock()

	// Alerts are created outside the rule lock: store subscribers run on
	// create and must not be able to deadlock against rule mutations.
	alerts := make([]Alert, 0, len(fired))
	for _, f := range fired {
		message := fmt.Sprintf("%s: %s %s %g (current value %.2f)",
			f.rule.Name, f.rule.Metric, f.rule.Operator, f.rule.Threshold, f.value)
		alert := e.store.Create(f.rule, f.value, message)
		alerts = append(alerts, alert)

		e.logger.WithFields(logrus.Fields{
			"rule":     f.rule.ID,
			"alert":    alert.ID,
			"metric":   f.rule.Metric,
			"value":    f.value,
			"severity": f.rule.Severity,
		}).Warn("Alert rule triggered")
	}
	return alerts
}

// Import replaces the rule set wholesale, keeping stored timestamps as-is.
// Used when restoring persisted rules at startup and by configuration import.
func (e *RuleEngine) Import(rules []Rule) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.rules = make(map[string]*Rule, len(rules))
	for i := range rules {
		rule := rules[i]
		if rule.ID == "" {
			rule.ID = uuid.NewString()
		}
		e.rules[rule.ID] = &rule
	}
}

func validOperator(op Operator) bool {
	switch op {
	case OpGreaterThan, OpGreaterOrEqual, OpLessThan, OpLessOrEqual, OpEqual:
		return true
	}
	return false
}

func compare(value float64, op Operator, threshold float64) bool {
	switch op {
	case OpGreaterThan:
		return value > threshold
	case OpGreaterOrEqual:
		return value >= threshold
	case OpLessThan:
		return value < threshold
	case OpLessOrEqual:
		return value <= threshold
	case OpEqual:
		return value == threshold
	}
	return false
}

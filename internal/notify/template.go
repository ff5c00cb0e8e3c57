package notify

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/drawlytics/sentinel/internal/alerting"
)

// Template holds subject/body text with {{variable}} placeholders and the
// channel types it applies to. An empty ChannelTypes list applies to all.
type Template struct {
	ID           string        `json:"id"`
	Name         string        `json:"name"`
	Subject      string        `json:"subject"`
	Body         string        `json:"body"`
	Variables    []string      `json:"variables,omitempty"`
	ChannelTypes []ChannelType `json:"channel_types,omitempty"`
}

// AppliesTo reports whether the template serves the given channel type.
func (t Template) AppliesTo(ct ChannelType) bool {
	if len(t.ChannelTypes) == 0 {
		return true
	}
	for _, c := range t.ChannelTypes {
		if c == ct {
			return true
		}
	}
	return false
}

// timestampFormat is the human-readable form used for rendered time fields.
const timestampFormat = "2006-01-02 15:04:05 MST"

// DefaultTemplate is used when no stored template matches a channel type.
var DefaultTemplate = Template{
	ID:      "default",
	Name:    "default",
	Subject: "[{{severity}}] {{rule_name}}",
	Body: "{{message}}\n\n" +
		"Metric: {{metric}} = {{metric_value}} (threshold {{threshold}})\n" +
		"Severity: {{severity}}\n" +
		"Triggered at: {{triggered_at}}",
	Variables: []string{"severity", "rule_name", "message", "metric", "metric_value", "threshold", "triggered_at"},
}

// Render substitutes every known {{field}} placeholder with the matching
// alert value. A placeholder with no matching field is left verbatim; a
// missing variable can make the output ugly but never fails the render.
func Render(text string, alert alerting.Alert) string {
	vars := templateVars(alert)
	var b strings.Builder
	for {
		start := strings.Index(text, "{{")
		if start < 0 {
			b.WriteString(text)
			break
		}
		end := strings.Index(text[start:], "}}")
		if end < 0 {
			b.WriteString(text)
			break
		}
		end += start

		b.WriteString(text[:start])
		name := strings.TrimSpace(text[start+2 : end])
		if value, ok := vars[name]; ok {
			b.WriteString(value)
		} else {
			b.WriteString(text[start : end+2])
		}
		text = text[end+2:]
	}
	return b.String()
}

// RenderMessage renders a template's subject and body for one alert.
func RenderMessage(tpl Template, alert alerting.Alert) Message {
	return Message{
		Subject: Render(tpl.Subject, alert),
		Body:    Render(tpl.Body, alert),
	}
}

func templateVars(alert alerting.Alert) map[string]string {
	vars := map[string]string{
		"alert_id":     alert.ID,
		"rule_id":      alert.RuleID,
		"rule_name":    alert.RuleName,
		"metric":       alert.Metric,
		"message":      alert.Message,
		"severity":     string(alert.Severity),
		"status":       string(alert.Status),
		"metric_value": formatFloat(alert.MetricValue),
		"threshold":    formatFloat(alert.Threshold),
		"triggered_at": alert.TriggeredAt.Format(timestampFormat),
	}
	if alert.AcknowledgedAt != nil {
		vars["acknowledged_at"] = alert.AcknowledgedAt.Format(timestampFormat)
		vars["acknowledged_by"] = alert.AcknowledgedBy
	}
	if alert.ResolvedAt != nil {
		vars["resolved_at"] = alert.ResolvedAt.Format(timestampFormat)
	}
	for k, v := range alert.Metadata {
		vars[k] = v
	}
	return vars
}

func formatFloat(v float64) string {
	return strings.TrimRight(strings.TrimRight(fmt.Sprintf("%.2f", v), "0"), ".")
}

// TemplateStore holds notification templates.
type TemplateStore struct {
	templates map[string]*Template
	mu        sync.Mutex
}

func NewTemplateStore() *TemplateStore {
	return &TemplateStore{templates: make(map[string]*Template)}
}

// Upsert adds or replaces a template.
func (s *TemplateStore) Upsert(tpl Template) (Template, error) {
	if tpl.Subject == "" && tpl.Body == "" {
		return Template{}, fmt.Errorf("template needs a subject or a body")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if tpl.ID == "" {
		tpl.ID = uuid.NewString()
	}
	stored := tpl
	s.templates[tpl.ID] = &stored
	return tpl, nil
}

// Delete removes a template.
func (s *TemplateStore) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.templates[id]; !ok {
		return fmt.Errorf("template %s not found", id)
	}
	delete(s.templates, id)
	return nil
}

// List returns all templates sorted by ID.
func (s *TemplateStore) List() []Template {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]Template, 0, len(s.templates))
	for _, tpl := range s.templates {
		out = append(out, *tpl)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// FindFor returns the first template applicable to the channel type, or the
// default template.
func (s *TemplateStore) FindFor(ct ChannelType) Template {
	s.mu.Lock()
	defer s.mu.Unlock()

	ids := make([]string, 0, len(s.templates))
	for id := range s.templates {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	for _, id := range ids {
		if s.templates[id].AppliesTo(ct) {
			return *s.templates[id]
		}
	}
	return DefaultTemplate
}

// Import replaces the template set. Used by configuration import.
func (s *TemplateStore) Import(templates []Template) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.templates = make(map[string]*Template, len(templates))
	for i := range templates {
		tpl := templates[i]
		if tpl.ID == "" {
			tpl.ID = uuid.NewString()
		}
		s.templates[tpl.ID] = &tpl
	}
}

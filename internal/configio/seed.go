package configio

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/drawlytics/sentinel/internal/alerting"
	"github.com/drawlytics/sentinel/internal/notify"
)

// Seed is an operator-authored bootstrap file applied when the engine starts
// with no configuration of its own. Durations are strings like "5m".
type Seed struct {
	Channels        []SeedChannel        `yaml:"channels"`
	Templates       []SeedTemplate       `yaml:"templates"`
	AlertRules      []SeedRule           `yaml:"alert_rules"`
	EscalationRules []SeedEscalationRule `yaml:"escalation_rules"`
}

type SeedChannel struct {
	ID      string            `yaml:"id"`
	Name    string            `yaml:"name"`
	Type    string            `yaml:"type"`
	Enabled *bool             `yaml:"enabled"`
	Config  map[string]string `yaml:"config"`
}

type SeedTemplate struct {
	ID           string   `yaml:"id"`
	Name         string   `yaml:"name"`
	Subject      string   `yaml:"subject"`
	Body         string   `yaml:"body"`
	ChannelTypes []string `yaml:"channel_types"`
}

type SeedRule struct {
	ID         string   `yaml:"id"`
	Name       string   `yaml:"name"`
	Metric     string   `yaml:"metric"`
	Operator   string   `yaml:"operator"`
	Threshold  float64  `yaml:"threshold"`
	Severity   string   `yaml:"severity"`
	Enabled    *bool    `yaml:"enabled"`
	Cooldown   string   `yaml:"cooldown"`
	ChannelIDs []string `yaml:"channel_ids"`
}

type SeedEscalationRule struct {
	ID           string   `yaml:"id"`
	Name         string   `yaml:"name"`
	Severities   []string `yaml:"severities"`
	UnackedAfter string   `yaml:"unacked_after"`
	ChannelIDs   []string `yaml:"channel_ids"`
	EscalateTo   []string `yaml:"escalate_to"`
	AutoResolve  bool     `yaml:"auto_resolve"`
	RepeatAfter  string   `yaml:"repeat_after"`
	Enabled      *bool    `yaml:"enabled"`
}

// LoadSeed parses a seed file. A missing file is not an error, it just means
// there is nothing to seed.
func LoadSeed(path string) (*Seed, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading seed file: %w", err)
	}

	var seed Seed
	if err := yaml.Unmarshal(raw, &seed); err != nil {
		return nil, fmt.Errorf("parsing seed file: %w", err)
	}
	return &seed, nil
}

// Apply installs the seed into the in-memory components. It stops at the
// first invalid entry so a broken seed file is noticed, not half-applied
// silently.
func (s *Seed) Apply(e *Exporter) error {
	for _, sc := range s.Channels {
		_, err := e.Registry.UpsertChannel(notify.Channel{
			ID:      sc.ID,
			Name:    sc.Name,
			Type:    notify.ChannelType(sc.Type),
			Enabled: enabledOrTrue(sc.Enabled),
			Config:  sc.Config,
		})
		if err != nil {
			return fmt.Errorf("seed channel %q: %w", sc.Name, err)
		}
	}

	for _, st := range s.Templates {
		types := make([]notify.ChannelType, 0, len(st.ChannelTypes))
		for _, ct := range st.ChannelTypes {
			types = append(types, notify.ChannelType(ct))
		}
		_, err := e.Templates.Upsert(notify.Template{
			ID:           st.ID,
			Name:         st.Name,
			Subject:      st.Subject,
			Body:         st.Body,
			ChannelTypes: types,
		})
		if err != nil {
			return fmt.Errorf("seed template %q: %w", st.Name, err)
		}
	}

	for _, sr := range s.AlertRules {
		cooldown, err := seedDuration(sr.Cooldown)
		if err != nil {
			return fmt.Errorf("seed rule %q: %w", sr.Name, err)
		}
		_, err = e.Rules.UpsertRule(alerting.Rule{
			ID:         sr.ID,
			Name:       sr.Name,
			Metric:     sr.Metric,
			Operator:   alerting.Operator(sr.Operator),
			Threshold:  sr.Threshold,
			Severity:   alerting.Severity(sr.Severity),
			Enabled:    enabledOrTrue(sr.Enabled),
			Cooldown:   cooldown,
			ChannelIDs: sr.ChannelIDs,
		})
		if err != nil {
			return fmt.Errorf("seed rule %q: %w", sr.Name, err)
		}
	}

	for _, se := range s.EscalationRules {
		unacked, err := seedDuration(se.UnackedAfter)
		if err != nil {
			return fmt.Errorf("seed escalation rule %q: %w", se.Name, err)
		}
		repeat, err := seedDuration(se.RepeatAfter)
		if err != nil {
			return fmt.Errorf("seed escalation rule %q: %w", se.Name, err)
		}
		severities := make([]alerting.Severity, 0, len(se.Severities))
		for _, sev := range se.Severities {
			severities = append(severities, alerting.Severity(sev))
		}
		_, err = e.Escalation.UpsertRule(alerting.EscalationRule{
			ID:           se.ID,
			Name:         se.Name,
			Severities:   severities,
			UnackedAfter: unacked,
			ChannelIDs:   se.ChannelIDs,
			EscalateTo:   se.EscalateTo,
			AutoResolve:  se.AutoResolve,
			RepeatAfter:  repeat,
			Enabled:      enabledOrTrue(se.Enabled),
		})
		if err != nil {
			return fmt.Errorf("seed escalation rule %q: %w", se.Name, err)
		}
	}

	return nil
}

func seedDuration(value string) (time.Duration, error) {
	if value == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("invalid duration %q", value)
	}
	return d, nil
}

func enabledOrTrue(v *bool) bool {
	if v == nil {
		return true
	}
	return *v
}

package configio

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/drawlytics/sentinel/internal/alerting"
	"github.com/drawlytics/sentinel/internal/notify"
)

const seedDoc = `
channels:
  - id: ops-webhook
    name: ops webhook
    type: webhook
    config:
      url: https://example.com/hook

templates:
  - name: terse
    subject: "[{{severity}}] {{rule_name}}"
    body: "{{message}}"

alert_rules:
  - name: high cpu usage
    metric: cpu_usage
    operator: gt
    threshold: 90
    severity: high
    cooldown: 5m
    channel_ids: [ops-webhook]
  - name: disabled rule
    metric: memory_usage
    operator: gte
    threshold: 95
    severity: critical
    enabled: false

escalation_rules:
  - name: critical unacknowledged
    severities: [critical]
    unacked_after: 15m
    channel_ids: [ops-webhook]
    repeat_after: 1h
`

func writeSeed(t *testing.T, doc string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "seed.yaml")
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o644))
	return path
}

func TestLoadSeedMissingFile(t *testing.T) {
	seed, err := LoadSeed(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Nil(t, seed)
}

func TestLoadSeedMalformedYAML(t *testing.T) {
	_, err := LoadSeed(writeSeed(t, "channels: [broken"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parsing seed file")
}

func TestSeedApply(t *testing.T) {
	seed, err := LoadSeed(writeSeed(t, seedDoc))
	require.NoError(t, err)
	require.NotNil(t, seed)

	e := newTestExporter()
	require.NoError(t, seed.Apply(e))

	channels := e.Registry.ListChannels()
	require.Len(t, channels, 1)
	assert.Equal(t, "ops-webhook", channels[0].ID)
	assert.Equal(t, notify.TypeWebhook, channels[0].Type)
	assert.True(t, channels[0].Enabled)
	assert.Equal(t, "https://example.com/hook", channels[0].Config["url"])

	templates := e.Templates.List()
	require.Len(t, templates, 1)
	assert.Equal(t, "terse", templates[0].Name)

	rules := e.Rules.ListRules()
	require.Len(t, rules, 2)
	byName := map[string]alerting.Rule{}
	for _, r := range rules {
		byName[r.Name] = r
	}
	cpu := byName["high cpu usage"]
	assert.Equal(t, alerting.OpGreaterThan, cpu.Operator)
	assert.Equal(t, 5*time.Minute, cpu.Cooldown)
	assert.Equal(t, []string{"ops-webhook"}, cpu.ChannelIDs)
	assert.True(t, cpu.Enabled)
	assert.False(t, byName["disabled rule"].Enabled)

	escRules := e.Escalation.ListRules()
	require.Len(t, escRules, 1)
	assert.Equal(t, 15*time.Minute, escRules[0].UnackedAfter)
	assert.Equal(t, time.Hour, escRules[0].RepeatAfter)
	assert.Equal(t, []alerting.Severity{alerting.SeverityCritical}, escRules[0].Severities)
}

func TestSeedApplyRejectsBadDuration(t *testing.T) {
	seed := &Seed{
		AlertRules: []SeedRule{{
			Name: "bad", Metric: "cpu_usage", Operator: "gt",
			Severity: "high", Cooldown: "five minutes",
		}},
	}
	err := seed.Apply(newTestExporter())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid duration")
}

func TestSeedApplyRejectsUnknownChannelType(t *testing.T) {
	seed := &Seed{
		Channels: []SeedChannel{{Name: "bad", Type: "pigeon"}},
	}
	err := seed.Apply(newTestExporter())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown channel type")
}

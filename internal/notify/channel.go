package notify

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/drawlytics/sentinel/internal/alerting"
)

// ChannelType identifies a notification transport.
type ChannelType string

const (
	TypeEmail   ChannelType = "email"
	TypeSMS     ChannelType = "sms"
	TypeWebhook ChannelType = "webhook"
	TypeSlack   ChannelType = "slack"
	TypeTeams   ChannelType = "teams"
	TypeDiscord ChannelType = "discord"
)

// Channel is a configured notification target. Config keys are
// type-specific: webhook-style channels use "url", email/sms use
// "recipients" (comma separated), slack additionally honors "channel",
// "username" and "icon".
type Channel struct {
	ID         string            `json:"id"`
	Name       string            `json:"name"`
	Type       ChannelType       `json:"type"`
	Enabled    bool              `json:"enabled"`
	Config     map[string]string `json:"config"`
	LastTestOK *bool             `json:"last_test_ok,omitempty"`
	LastTestAt *time.Time        `json:"last_test_at,omitempty"`
	LastUsedAt *time.Time        `json:"last_used_at,omitempty"`
}

// Message is the rendered subject/body pair shared by every channel type;
// each sender owns its own payload shape around it.
type Message struct {
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

// Sender delivers a rendered message through one transport type.
type Sender interface {
	Type() ChannelType
	Deliver(ctx context.Context, alert alerting.Alert, msg Message, ch Channel) error
}

// Registry holds channel configurations and the senders that serve them.
// Channel mutations (including last-used bookkeeping) are serialized behind
// one mutex.
type Registry struct {
	channels map[string]*Channel
	senders  map[ChannelType]Sender
	now      func() time.Time
	mu       sync.Mutex
}

func NewRegistry() *Registry {
	return &Registry{
		channels: make(map[string]*Channel),
		senders:  make(map[ChannelType]Sender),
		now:      time.Now,
	}
}

// SetNowFunc overrides the clock for deterministic tests.
func (r *Registry) SetNowFunc(now func() time.Time) { r.now = now }

// RegisterSender installs the transport for a channel type.
func (r *Registry) RegisterSender(s Sender) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.senders[s.Type()] = s
}

// Sender returns the transport for a type.
func (r *Registry) Sender(t ChannelType) (Sender, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.senders[t]
	return s, ok
}

// UpsertChannel adds or replaces a channel configuration.
func (r *Registry) UpsertChannel(ch Channel) (Channel, error) {
	if ch.Name == "" {
		return Channel{}, fmt.Errorf("channel name is required")
	}
	switch ch.Type {
	case TypeEmail, TypeSMS, TypeWebhook, TypeSlack, TypeTeams, TypeDiscord:
	default:
		return Channel{}, fmt.Errorf("unknown channel type %q", ch.Type)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if ch.ID == "" {
		ch.ID = uuid.NewString()
	}
	if ch.Config == nil {
		ch.Config = make(map[string]string)
	}
	stored := ch
	r.channels[ch.ID] = &stored
	return ch, nil
}

// DeleteChannel removes a channel.
func (r *Registry) DeleteChannel(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.channels[id]; !ok {
		return fmt.Errorf("channel %s not found", id)
	}
	delete(r.channels, id)
	return nil
}

// GetChannel returns a copy of one channel.
func (r *Registry) GetChannel(id string) (Channel, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	ch, ok := r.channels[id]
	if !ok {
		return Channel{}, fmt.Errorf("channel %s not found", id)
	}
	return *ch, nil
}

// ListChannels returns all channels sorted by ID.
func (r *Registry) ListChannels() []Channel {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]Channel, 0, len(r.channels))
	for _, ch := range r.channels {
		out = append(out, *ch)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// MarkUsed stamps a channel's last-used timestamp after a delivery attempt.
func (r *Registry) MarkUsed(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if ch, ok := r.channels[id]; ok {
		now := r.now()
		ch.LastUsedAt = &now
	}
}

// MarkTested records the outcome of a test delivery.
func (r *Registry) MarkTested(id string, ok bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if ch, found := r.channels[id]; found {
		now := r.now()
		ch.LastTestOK = &ok
		ch.LastTestAt = &now
	}
}

// Import replaces the channel set. Used by configuration import.
func (r *Registry) Import(channels []Channel) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.channels = make(map[string]*Channel, len(channels))
	for i := range channels {
		ch := channels[i]
		if ch.ID == "" {
			ch.ID = uuid.NewString()
		}
		r.channels[ch.ID] = &ch
	}
}

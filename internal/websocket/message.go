package websocket

import (
	"encoding/json"
	"time"
)

// Topics a client can subscribe to. A client with no subscriptions receives
// everything.
const (
	TopicAlerts      = "alerts"
	TopicHealth      = "health"
	TopicMetrics     = "metrics"
	TopicEscalations = "escalations"
)

// Message is the wire envelope for every frame the hub sends.
type Message struct {
	Type      string                 `json:"type"`
	Topic     string                 `json:"topic,omitempty"`
	Data      map[string]interface{} `json:"data"`
	Timestamp time.Time              `json:"timestamp"`
}

// ToJSON serializes the message, stamping the timestamp if unset.
func (m Message) ToJSON() []byte {
	if m.Timestamp.IsZero() {
		m.Timestamp = time.Now().UTC()
	}
	data, err := json.Marshal(m)
	if err != nil {
		return []byte(`{"type":"error","data":{"error":"marshal failure"}}`)
	}
	return data
}

package metrics

import "time"

// Well-known snapshot fields. Sources may add more, rules reference any of
// them by name.
const (
	FieldCPUUsage      = "cpu_usage"
	FieldMemoryUsage   = "memory_usage"
	FieldResponseTime  = "response_time"
	FieldErrorRate     = "error_rate"
	FieldActiveUsers   = "active_users"
	FieldDBConnections = "db_connections"
	FieldAPICalls      = "api_calls"
)

// SentinelDegraded is stored for a field whose probe failed. The snapshot is
// still produced; consumers can tell a degraded reading from a real zero.
const SentinelDegraded float64 = -1

// Snapshot is one timestamped sample of all tracked metrics. It is never
// mutated after Collect returns it.
type Snapshot struct {
	Timestamp time.Time          `json:"timestamp"`
	Fields    map[string]float64 `json:"fields"`
	Degraded  []string           `json:"degraded,omitempty"`
}

// Value returns the named field and whether it was sampled at all.
func (s Snapshot) Value(name string) (float64, bool) {
	v, ok := s.Fields[name]
	return v, ok
}

// clone copies the snapshot so history entries stay immutable even if a
// caller holds on to the map.
func (s Snapshot) clone() Snapshot {
	fields := make(map[string]float64, len(s.Fields))
	for k, v := range s.Fields {
		fields[k] = v
	}
	out := Snapshot{Timestamp: s.Timestamp, Fields: fields}
	if len(s.Degraded) > 0 {
		out.Degraded = append([]string(nil), s.Degraded...)
	}
	return out
}

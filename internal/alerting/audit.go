package alerting

import (
	"sync"

	"github.com/google/uuid"
)

// AuditLog is an append-only, bounded record of dispatch and lifecycle
// actions. Entries are never mutated after Record; the oldest are dropped
// once the cap is exceeded.
type AuditLog struct {
	entries []AuditEntry
	cap     int
	clock   Clock
	sink    func(AuditEntry)
	mu      sync.Mutex
}

func NewAuditLog(cap int, clock Clock) *AuditLog {
	if cap <= 0 {
		cap = 1000
	}
	return &AuditLog{cap: cap, clock: clock}
}

// SetSink installs a callback invoked with every recorded entry, used to
// persist the trail beyond the in-memory cap.
func (l *AuditLog) SetSink(fn func(AuditEntry)) {
	l.mu.Lock()
	l.sink = fn
	l.mu.Unlock()
}

// Record appends an entry, stamping ID and timestamp if unset.
func (l *AuditLog) Record(entry AuditEntry) AuditEntry {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.Timestamp.IsZero() {
		entry.Timestamp = l.clock.Now()
	}

	l.mu.Lock()
	l.entries = append(l.entries, entry)
	if len(l.entries) > l.cap {
		l.entries = l.entries[len(l.entries)-l.cap:]
	}
	sink := l.sink
	l.mu.Unlock()

	if sink != nil {
		sink(entry)
	}
	return entry
}

// Query returns up to limit entries, newest first, optionally filtered by
// alert ID. limit <= 0 returns everything retained.
func (l *AuditLog) Query(limit int, alertID string) []AuditEntry {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := make([]AuditEntry, 0, len(l.entries))
	for i := len(l.entries) - 1; i >= 0; i-- {
		entry := l.entries[i]
		if alertID != "" && entry.AlertID != alertID {
			continue
		}
		out = append(out, entry)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out
}

// Import replaces the retained entries. Used by configuration import.
func (l *AuditLog) Import(entries []AuditEntry) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.entries = append(l.entries[:0], entries...)
	if len(l.entries) > l.cap {
		l.entries = l.entries[len(l.entries)-l.cap:]
	}
}

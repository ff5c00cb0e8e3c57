package metrics

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	errs "github.com/drawlytics/sentinel/pkg/errors"
)

// Source produces a group of related snapshot fields. A collector samples
// each source independently so one broken probe cannot poison the rest of
// the snapshot.
type Source interface {
	// Name identifies the source in logs.
	Name() string
	// Fields lists the snapshot fields this source is responsible for.
	Fields() []string
	// Sample returns current values for the source's fields.
	Sample(ctx context.Context) (map[string]float64, error)
}

// Subscriber receives every snapshot after it has been appended to history.
type Subscriber func(Snapshot)

// errorRatePenalty is added to error_rate for each failed probe, on top of
// whatever the sources themselves report.
const errorRatePenalty = 1.0

// Collector samples all registered sources on demand and keeps a bounded
// FIFO history of snapshots.
type Collector struct {
	sources    []Source
	subs       []Subscriber
	history    []Snapshot
	historyCap int
	logger     *logrus.Logger
	now        func() time.Time
	mu         sync.RWMutex
}

// NewCollector creates a collector with the given history capacity.
func NewCollector(historyCap int, logger *logrus.Logger) *Collector {
	if historyCap <= 0 {
		historyCap = 1000
	}
	return &Collector{
		historyCap: historyCap,
		logger:     logger,
		now:        time.Now,
	}
}

// SetNowFunc overrides the clock. Tests use this for deterministic
// timestamps.
func (c *Collector) SetNowFunc(now func() time.Time) {
	c.now = now
}

// Register adds a source. Not safe to call after collection has started.
func (c *Collector) Register(src Source) {
	c.sources = append(c.sources, src)
}

// Subscribe adds a subscriber that is called synchronously after each
// collected snapshot is appended to history.
func (c *Collector) Subscribe(sub Subscriber) {
	c.subs = append(c.subs, sub)
}

// Collect samples every source and returns one snapshot. A failing source
// never fails the call: its fields are written as SentinelDegraded and the
// snapshot's error_rate is raised instead.
func (c *Collector) Collect(ctx context.Context) Snapshot {
	snap := Snapshot{
		Timestamp: c.now(),
		Fields:    make(map[string]float64),
	}

	var penalty float64
	for _, src := range c.sources {
		values, err := src.Sample(ctx)
		if err != nil {
			c.logger.WithError(errs.Wrap(errs.KindCollection, src.Name(), err)).
				WithField("source", src.Name()).Warn("Metric probe failed, recording degraded values")
			for _, field := range src.Fields() {
				snap.Fields[field] = SentinelDegraded
				snap.Degraded = append(snap.Degraded, field)
			}
			penalty += errorRatePenalty
			continue
		}
		for k, v := range values {
			snap.Fields[k] = v
		}
	}

	if penalty > 0 {
		if base, ok := snap.Fields[FieldErrorRate]; ok && base != SentinelDegraded {
			snap.Fields[FieldErrorRate] = base + penalty
		} else {
			snap.Fields[FieldErrorRate] = penalty
		}
	}

	c.append(snap)

	for _, sub := range c.subs {
		sub(snap)
	}

	return snap
}

// CollectNow is the on-demand entry point exposed to the admin collaborator.
// It behaves exactly like a scheduled collection.
func (c *Collector) CollectNow(ctx context.Context) Snapshot {
	return c.Collect(ctx)
}

func (c *Collector) append(snap Snapshot) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.history = append(c.history, snap.clone())
	if len(c.history) > c.historyCap {
		c.history = c.history[len(c.history)-c.historyCap:]
	}
}

// Latest returns the most recent snapshot, if any.
func (c *Collector) Latest() (Snapshot, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if len(c.history) == 0 {
		return Snapshot{}, false
	}
	return c.history[len(c.history)-1].clone(), true
}

// History returns up to limit snapshots, newest last. limit <= 0 returns
// everything retained.
func (c *Collector) History(limit int) []Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()

	n := len(c.history)
	if limit > 0 && limit < n {
		n = limit
	}
	out := make([]Snapshot, 0, n)
	for _, snap := range c.history[len(c.history)-n:] {
		out = append(out, snap.clone())
	}
	return out
}

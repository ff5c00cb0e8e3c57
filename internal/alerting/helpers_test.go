package alerting

import (
	"context"
	"sync"
	"time"

	"github.com/drawlytics/sentinel/internal/metrics"
	"github.com/drawlytics/sentinel/pkg/logger"
)

// fakeClock lets tests move time deterministically.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock(start time.Time) *fakeClock {
	return &fakeClock{now: start}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

// mockDispatcher records every fan-out and fails the channels it is told to.
type mockDispatcher struct {
	mu    sync.Mutex
	calls [][]string
	fail  map[string]bool
}

func newMockDispatcher(failChannels ...string) *mockDispatcher {
	fail := make(map[string]bool, len(failChannels))
	for _, id := range failChannels {
		fail[id] = true
	}
	return &mockDispatcher{fail: fail}
}

func (m *mockDispatcher) Dispatch(ctx context.Context, alert Alert, channelIDs []string) []DeliveryResult {
	m.mu.Lock()
	m.calls = append(m.calls, append([]string(nil), channelIDs...))
	m.mu.Unlock()

	results := make([]DeliveryResult, 0, len(channelIDs))
	for _, id := range channelIDs {
		res := DeliveryResult{ChannelID: id, ChannelType: "webhook", Success: true}
		if m.fail[id] {
			res.Success = false
			res.Message = "delivery refused"
		}
		results = append(results, res)
	}
	return results
}

func (m *mockDispatcher) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.calls)
}

func snapshot(at time.Time, fields map[string]float64, degraded ...string) metrics.Snapshot {
	return metrics.Snapshot{Timestamp: at, Fields: fields, Degraded: degraded}
}

func testStore(clock Clock) *AlertStore {
	return NewAlertStore(0, clock, logger.NewNop())
}

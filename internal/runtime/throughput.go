package runtime

import (
	"sync"
	"time"

	"github.com/corehost/agentcore/internal/bus"
	"github.com/corehost/agentcore/internal/domain"
)

// throughputSampleWindow is how often a Throughput event is published
// while text is streaming, a rolling chars/sec observation rather than a
// per-delta one so the bus isn't flooded.
const throughputSampleWindow = 500 * time.Millisecond

// throughputTracker accumulates streamed character counts and periodically
// emits a Throughput event (supplemented, §9 design note: the turn state
// machine exposes a throughput observation without the Controller needing
// to instrument every delta itself).
type throughputTracker struct {
	mu       sync.Mutex
	b        *bus.Bus
	lastEmit time.Time
	chars    int
	start    time.Time
}

func newThroughputTracker(b *bus.Bus) *throughputTracker {
	now := time.Now()
	return &throughputTracker{b: b, lastEmit: now, start: now}
}

// observe records n characters and, if throughputSampleWindow has elapsed
// since the last sample, publishes a rolling rate and resets the window.
func (t *throughputTracker) observe(n int) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.chars += n
	now := time.Now()
	elapsed := now.Sub(t.lastEmit)
	if elapsed < throughputSampleWindow {
		return
	}

	rate := float64(t.chars) / elapsed.Seconds()
	t.b.Publish(domain.StreamEvent{Kind: domain.EventThroughput, CharsPerSec: rate})
	t.chars = 0
	t.lastEmit = now
}

// Package bus is the Message Bus (§4.6): a single-consumer, many-producer
// in-process channel carrying domain.StreamEvent. Producers publish without
// blocking while buffer space remains; once full, Publish blocks until the
// consumer drains — that's the backpressure contract. A closed bus makes
// Publish return ErrClosed immediately instead of blocking forever.
package bus

import (
	"errors"
	"sync"

	"github.com/corehost/agentcore/internal/domain"
	"github.com/corehost/agentcore/internal/metrics"
)

// ErrClosed is returned by Publish once the bus has been closed.
var ErrClosed = errors.New("bus: closed")

// Bus is a bounded single-consumer channel of StreamEvent.
type Bus struct {
	ch        chan domain.StreamEvent
	closeOnce sync.Once
	closed    chan struct{}
	metrics   *metrics.Registry
}

// SetMetrics attaches a metrics registry; instrumentation is a no-op until
// this is called.
func (b *Bus) SetMetrics(m *metrics.Registry) { b.metrics = m }

// New creates a Bus with the given buffer capacity.
func New(capacity int) *Bus {
	if capacity < 1 {
		capacity = 1
	}
	return &Bus{
		ch:     make(chan domain.StreamEvent, capacity),
		closed: make(chan struct{}),
	}
}

// Publish delivers ev to the consumer. Events from a single goroutine are
// delivered in the order Publish was called, because the channel itself
// preserves FIFO order for a single sender; callers that need
// cross-producer ordering guarantees must serialize their own publishes
// (the bus makes none beyond per-producer order, per §4.6).
func (b *Bus) Publish(ev domain.StreamEvent) error {
	select {
	case <-b.closed:
		return ErrClosed
	default:
	}
	select {
	case b.ch <- ev:
		if b.metrics != nil {
			b.metrics.BusQueueDepth.Set(float64(len(b.ch)))
		}
		return nil
	case <-b.closed:
		return ErrClosed
	}
}

// Events returns the channel the single consumer ranges over. The consumer
// should select on Events() and Done() together rather than `range`, since
// the bus never closes its event channel — only Done() signals shutdown, so
// a Publish racing with Close can never panic on a send to a closed channel.
func (b *Bus) Events() <-chan domain.StreamEvent {
	return b.ch
}

// Done returns a channel that is closed once Close has been called.
func (b *Bus) Done() <-chan struct{} {
	return b.closed
}

// Close stops accepting new events. Safe to call more than once.
func (b *Bus) Close() {
	b.closeOnce.Do(func() {
		close(b.closed)
	})
}

// Package batch coalesces high-frequency terminal output into periodic writes.
package batch

import (
	"strings"
	"sync"
	"time"

	"github.com/abdullathedruid/termdeck/internal/metrics"
)

// DefaultInterval is roughly one display frame.
const DefaultInterval = 16 * time.Millisecond

// Sink receives one concatenated batch.
type Sink func(data string)

// Batcher queues chunks and delivers them to a sink in one call per interval.
// The flush timer is armed only while idle: chunks arriving while a flush is
// scheduled join that flush instead of pushing it back.
type Batcher struct {
	interval time.Duration
	sink     Sink
	metrics  *metrics.Metrics

	mu       sync.Mutex
	queue    []string
	timer    *time.Timer
	disposed bool

	// deliver serializes sink calls so batches reach the sink in queue order.
	deliver sync.Mutex
}

// New creates a batcher writing to sink. A non-positive interval uses DefaultInterval.
func New(sink Sink, interval time.Duration, m *metrics.Metrics) *Batcher {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Batcher{interval: interval, sink: sink, metrics: m}
}

// Enqueue appends a chunk and schedules a flush if none is pending.
func (b *Batcher) Enqueue(chunk string) {
	if chunk == "" {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.disposed {
		return
	}
	b.queue = append(b.queue, chunk)
	if b.timer == nil {
		b.timer = time.AfterFunc(b.interval, b.flush)
	}
}

// FlushImmediately delivers everything queued without waiting for the timer.
func (b *Batcher) FlushImmediately() {
	b.flush()
}

// Pending returns the number of queued chunks.
func (b *Batcher) Pending() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.queue)
}

// Dispose stops the timer and drops anything queued. Later calls are no-ops.
func (b *Batcher) Dispose() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.disposed = true
	b.queue = nil
	if b.timer != nil {
		b.timer.Stop()
		b.timer = nil
	}
}

func (b *Batcher) flush() {
	b.deliver.Lock()
	defer b.deliver.Unlock()

	b.mu.Lock()
	if b.timer != nil {
		b.timer.Stop()
		b.timer = nil
	}
	if b.disposed || len(b.queue) == 0 {
		b.mu.Unlock()
		return
	}
	data := strings.Join(b.queue, "")
	b.queue = nil
	b.mu.Unlock()

	b.sink(data)
	b.metrics.Flush(len(data))
}

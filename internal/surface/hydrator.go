package surface

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/abdullathedruid/termdeck/internal/batch"
	"github.com/abdullathedruid/termdeck/internal/host"
	"github.com/abdullathedruid/termdeck/internal/logging"
	"github.com/abdullathedruid/termdeck/internal/metrics"
	"github.com/abdullathedruid/termdeck/internal/workspace"
)

// Phase is the hydration state of one mount.
type Phase int

const (
	// Buffering holds live output until the snapshot has been replayed.
	Buffering Phase = iota
	// Live forwards output straight to the batcher.
	Live
)

func (p Phase) String() string {
	if p == Live {
		return "live"
	}
	return "buffering"
}

// Hydrator replays a terminal's history into a batcher, then switches it to
// live output without losing or reordering chunks that arrive in between.
type Hydrator struct {
	id      workspace.ID
	backend host.Backend
	out     *batch.Batcher
	log     *zap.Logger
	metrics *metrics.Metrics
	onLive  func()

	mu          sync.Mutex
	phase       Phase
	pending     []string
	cancelled   bool
	unsubscribe func()
	done        chan struct{}
}

// HydratorOptions configures a Hydrator.
type HydratorOptions struct {
	Logger  *zap.Logger
	Metrics *metrics.Metrics
	// OnLive runs once, after the switch to Live, unless cancelled first.
	OnLive func()
}

// NewHydrator creates a hydrator for id writing into out.
func NewHydrator(id workspace.ID, backend host.Backend, out *batch.Batcher, opts HydratorOptions) *Hydrator {
	return &Hydrator{
		id:      id,
		backend: backend,
		out:     out,
		log:     logging.OrNop(opts.Logger).Named("hydrate").With(zap.String("terminal", string(id))),
		metrics: opts.Metrics,
		onLive:  opts.OnLive,
		done:    make(chan struct{}),
	}
}

// Start subscribes to output and fetches the snapshot in the background.
// The subscription is taken first so nothing produced during the fetch is
// missed. A failed subscription leaves the surface with the snapshot only.
func (h *Hydrator) Start(ctx context.Context) {
	unsub, err := h.backend.SubscribeOutput(h.id, h.receive)
	if err != nil {
		h.log.Warn("subscribe failed", zap.Error(err))
		unsub = nil
	}

	h.mu.Lock()
	if h.cancelled {
		h.mu.Unlock()
		if unsub != nil {
			unsub()
		}
		close(h.done)
		return
	}
	h.unsubscribe = unsub
	h.mu.Unlock()

	go h.hydrate(ctx)
}

func (h *Hydrator) receive(chunk string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.cancelled {
		return
	}
	if h.phase == Buffering {
		h.pending = append(h.pending, chunk)
		return
	}
	h.out.Enqueue(chunk)
}

func (h *Hydrator) hydrate(ctx context.Context) {
	defer close(h.done)

	snapshot, err := h.backend.GetTerminalBuffer(ctx, h.id)

	h.mu.Lock()
	if h.cancelled {
		h.mu.Unlock()
		return
	}
	if err != nil {
		h.log.Warn("snapshot failed, continuing live only", zap.Error(err))
		h.metrics.Hydration("degraded")
	} else {
		h.out.Enqueue(snapshot)
		h.metrics.Hydration("snapshot")
	}
	for _, chunk := range h.pending {
		h.out.Enqueue(chunk)
	}
	h.log.Debug("live", zap.Int("buffered", len(h.pending)))
	h.pending = nil
	h.phase = Live
	h.mu.Unlock()

	h.out.FlushImmediately()
	if h.onLive != nil {
		h.onLive()
	}
}

// Phase returns the current phase.
func (h *Hydrator) Phase() Phase {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.phase
}

// Pending returns the number of chunks held while buffering.
func (h *Hydrator) Pending() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.pending)
}

// Done is closed when the snapshot fetch has returned, applied or not.
func (h *Hydrator) Done() <-chan struct{} {
	return h.done
}

// Cancel drops the result of any in-flight snapshot and unsubscribes.
func (h *Hydrator) Cancel() {
	h.mu.Lock()
	h.cancelled = true
	h.pending = nil
	unsub := h.unsubscribe
	h.unsubscribe = nil
	h.mu.Unlock()

	if unsub != nil {
		unsub()
	}
}

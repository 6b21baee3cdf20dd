package host

import (
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/abdullathedruid/termdeck/internal/workspace"
)

// stream is one live output source for a terminal.
type stream interface {
	OutputChan() <-chan []byte
	Resize(cols, rows int) error
	Close() error
}

// openFunc attaches a new stream to a terminal.
type openFunc func(id workspace.ID) (stream, error)

// hub keeps at most one stream per terminal and fans its output out to every
// subscribed handler. The stream is opened by the first subscriber and closed
// after the last one leaves. A stream that ends while handlers remain is
// reopened, within reattachLimit.
type hub struct {
	open          openFunc
	log           *zap.Logger
	reattachDelay time.Duration
	reattachLimit rate.Limit
	reattachBurst int

	mu    sync.Mutex
	feeds map[workspace.ID]*feed
}

type feed struct {
	done chan struct{}

	mu       sync.Mutex
	stream   stream
	closed   bool
	handlers map[uint64]OutputHandler
	next     uint64
	cols     int
	rows     int
}

func newHub(open openFunc, log *zap.Logger) *hub {
	return &hub{
		open:          open,
		log:           log,
		reattachDelay: 200 * time.Millisecond,
		reattachLimit: rate.Every(10 * time.Second),
		reattachBurst: 3,
		feeds:         make(map[workspace.ID]*feed),
	}
}

// subscribe registers handler for id's output.
func (h *hub) subscribe(id workspace.ID, handler OutputHandler) (func(), error) {
	h.mu.Lock()
	f := h.feeds[id]
	if f == nil {
		s, err := h.open(id)
		if err != nil {
			h.mu.Unlock()
			return nil, err
		}
		f = &feed{stream: s, done: make(chan struct{}), handlers: make(map[uint64]OutputHandler)}
		h.feeds[id] = f
		go h.pump(id, f)
	}
	f.mu.Lock()
	key := f.next
	f.next++
	f.handlers[key] = handler
	f.mu.Unlock()
	h.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() { h.unsubscribe(id, f, key) })
	}, nil
}

func (h *hub) unsubscribe(id workspace.ID, f *feed, key uint64) {
	h.mu.Lock()
	defer h.mu.Unlock()

	f.mu.Lock()
	delete(f.handlers, key)
	empty := len(f.handlers) == 0
	f.mu.Unlock()

	if !empty {
		return
	}
	if h.feeds[id] == f {
		delete(h.feeds, id)
	}
	if err := f.shut().Close(); err != nil {
		h.log.Debug("close output stream", zap.String("terminal", string(id)), zap.Error(err))
	}
}

// pump delivers chunks to handlers sequentially, in arrival order, and
// reattaches when the stream ends under live subscribers.
func (h *hub) pump(id workspace.ID, f *feed) {
	limiter := rate.NewLimiter(h.reattachLimit, h.reattachBurst)
	s := f.current()
	for {
		for data := range s.OutputChan() {
			chunk := string(data)
			for _, handler := range f.snapshot() {
				handler(chunk)
			}
		}
		if f.isClosed() {
			break
		}
		if !limiter.Allow() {
			h.log.Warn("output stream keeps ending, giving up", zap.String("terminal", string(id)))
			break
		}
		next, ok := h.reattach(id, f)
		if !ok {
			break
		}
		s = next
	}

	h.mu.Lock()
	if h.feeds[id] == f {
		delete(h.feeds, id)
	}
	h.mu.Unlock()
	h.log.Debug("output stream ended", zap.String("terminal", string(id)))
}

// reattach opens a replacement stream for f after reattachDelay. It gives up
// when f is closed or the open fails.
func (h *hub) reattach(id workspace.ID, f *feed) (stream, bool) {
	timer := time.NewTimer(h.reattachDelay)
	defer timer.Stop()
	select {
	case <-f.done:
		return nil, false
	case <-timer.C:
	}

	s, err := h.open(id)
	if err != nil {
		h.log.Warn("reattach output stream", zap.String("terminal", string(id)), zap.Error(err))
		return nil, false
	}

	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		_ = s.Close()
		return nil, false
	}
	f.stream = s
	cols, rows := f.cols, f.rows
	f.mu.Unlock()

	if cols > 0 && rows > 0 {
		if err := s.Resize(cols, rows); err != nil {
			h.log.Debug("resize reattached stream", zap.String("terminal", string(id)), zap.Error(err))
		}
	}
	h.log.Info("output stream reattached", zap.String("terminal", string(id)))
	return s, true
}

func (f *feed) current() stream {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.stream
}

func (f *feed) isClosed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

// shut marks f closed and returns its stream for the caller to close.
func (f *feed) shut() stream {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.closed {
		f.closed = true
		close(f.done)
	}
	return f.stream
}

func (f *feed) snapshot() []OutputHandler {
	f.mu.Lock()
	defer f.mu.Unlock()
	keys := make([]uint64, 0, len(f.handlers))
	for k := range f.handlers {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	out := make([]OutputHandler, 0, len(keys))
	for _, k := range keys {
		out = append(out, f.handlers[k])
	}
	return out
}

// resize forwards a size change to an attached stream. It reports false when
// no stream is attached for id.
func (h *hub) resize(id workspace.ID, cols, rows int) (bool, error) {
	h.mu.Lock()
	f := h.feeds[id]
	h.mu.Unlock()
	if f == nil {
		return false, nil
	}
	f.mu.Lock()
	f.cols, f.rows = cols, rows
	s := f.stream
	f.mu.Unlock()
	return true, s.Resize(cols, rows)
}

// closeAll closes every stream.
func (h *hub) closeAll() {
	h.mu.Lock()
	feeds := h.feeds
	h.feeds = make(map[workspace.ID]*feed)
	h.mu.Unlock()

	for _, f := range feeds {
		_ = f.shut().Close()
	}
}

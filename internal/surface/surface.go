package surface

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jesseduffield/gocui"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/abdullathedruid/termdeck/internal/batch"
	"github.com/abdullathedruid/termdeck/internal/host"
	"github.com/abdullathedruid/termdeck/internal/logging"
	"github.com/abdullathedruid/termdeck/internal/metrics"
	"github.com/abdullathedruid/termdeck/internal/workspace"
)

const (
	// DefaultCols and DefaultRows size a widget before its container is measured.
	DefaultCols = 80
	DefaultRows = 24

	DefaultResizeDebounce = 150 * time.Millisecond
	DefaultFitPoll        = 16 * time.Millisecond

	inputQueue = 256
)

// ErrNotMeasurable is returned by a Measurer whose container has no layout yet.
var ErrNotMeasurable = errors.New("container not measurable")

// Measurer reports how many cells fit in a surface's container.
type Measurer interface {
	Measure() (cols, rows int, err error)
}

// MeasureFunc adapts a function to Measurer.
type MeasureFunc func() (cols, rows int, err error)

func (f MeasureFunc) Measure() (int, int, error) { return f() }

// Size is a terminal size in cells.
type Size struct {
	Cols, Rows int
}

// Options configures one mount.
type Options struct {
	ID       workspace.ID
	Slot     workspace.Slot
	Backend  host.Backend
	Measurer Measurer

	// NewWidget builds the emulation widget; NewEmulator by default.
	NewWidget func(cols, rows int) Widget

	// Chords are intercepted before the widget and passed to OnChord.
	Chords  []Chord
	OnChord func(c Chord, id workspace.ID)
	// OnLive runs when hydration completes.
	OnLive func(id workspace.ID)

	BatchInterval  time.Duration
	ResizeDebounce time.Duration
	FitPoll        time.Duration

	Logger  *zap.Logger
	Metrics *metrics.Metrics
}

// Surface binds one widget to one backend terminal for the lifetime of a mount.
// Unmounting never terminates the backend terminal.
type Surface struct {
	opts     Options
	mountID  string
	log      *zap.Logger
	widget   Widget
	batcher  *batch.Batcher
	hydrator *Hydrator

	ctx    context.Context
	cancel context.CancelFunc
	input  chan string
	warn   rate.Sometimes

	mu          sync.Mutex
	chords      []Chord
	lastSize    Size
	resizeTimer *time.Timer
	unmounted   bool

	fitMu sync.Mutex
}

// Mount creates a widget for opts.ID, starts hydration and begins fitting
// the widget to its container. ctx bounds every backend call of the mount.
func Mount(ctx context.Context, opts Options) *Surface {
	if opts.NewWidget == nil {
		opts.NewWidget = func(cols, rows int) Widget { return NewEmulator(cols, rows) }
	}
	if opts.ResizeDebounce <= 0 {
		opts.ResizeDebounce = DefaultResizeDebounce
	}
	if opts.FitPoll <= 0 {
		opts.FitPoll = DefaultFitPoll
	}

	mountID := uuid.NewString()
	ctx, cancel := context.WithCancel(ctx)
	s := &Surface{
		opts:    opts,
		mountID: mountID,
		log: logging.OrNop(opts.Logger).Named("surface").With(
			zap.String("terminal", string(opts.ID)),
			zap.String("slot", string(opts.Slot)),
			zap.String("mount", mountID),
		),
		ctx:    ctx,
		cancel: cancel,
		input:  make(chan string, inputQueue),
		warn:   rate.Sometimes{First: 3, Interval: 10 * time.Second},
		chords: opts.Chords,
	}

	s.widget = opts.NewWidget(DefaultCols, DefaultRows)
	s.widget.SetKeyHandler(s.intercept)
	s.widget.OnData(s.send)
	s.batcher = batch.New(s.widget.Write, opts.BatchInterval, opts.Metrics)
	s.hydrator = NewHydrator(opts.ID, opts.Backend, s.batcher, HydratorOptions{
		Logger:  s.log,
		Metrics: opts.Metrics,
		OnLive:  s.live,
	})

	go s.writeLoop()
	s.hydrator.Start(ctx)
	go s.initialFit()

	opts.Metrics.SurfaceMounted(1)
	s.log.Debug("mounted")
	return s
}

// ID returns the backend terminal id.
func (s *Surface) ID() workspace.ID { return s.opts.ID }

// Slot returns the slot the surface is mounted in.
func (s *Surface) Slot() workspace.Slot { return s.opts.Slot }

// MountID identifies this mount in logs.
func (s *Surface) MountID() string { return s.mountID }

// Widget returns the emulation widget.
func (s *Surface) Widget() Widget { return s.widget }

// Phase returns the hydration phase.
func (s *Surface) Phase() Phase { return s.hydrator.Phase() }

// Hydrated is closed once the snapshot fetch has returned.
func (s *Surface) Hydrated() <-chan struct{} { return s.hydrator.Done() }

// LastSize returns the size last sent to the backend.
func (s *Surface) LastSize() Size {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastSize
}

func (s *Surface) live() {
	if s.opts.OnLive != nil && s.ctx.Err() == nil {
		s.opts.OnLive(s.opts.ID)
	}
}

// SetChords replaces the intercepted chords.
func (s *Surface) SetChords(chords []Chord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.chords = chords
}

func (s *Surface) intercept(key gocui.Key, ch rune, mod gocui.Modifier) bool {
	s.mu.Lock()
	chords := s.chords
	s.mu.Unlock()
	for _, c := range chords {
		if c.Matches(key, ch, mod) {
			if s.opts.OnChord != nil {
				s.opts.OnChord(c, s.opts.ID)
			}
			return true
		}
	}
	return false
}

// send queues user input. Order is preserved by the single writer.
func (s *Surface) send(data string) {
	select {
	case s.input <- data:
	case <-s.ctx.Done():
	}
}

func (s *Surface) writeLoop() {
	for {
		select {
		case <-s.ctx.Done():
			return
		case data := <-s.input:
			if err := s.opts.Backend.WriteTerminal(s.ctx, s.opts.ID, data); err != nil && s.ctx.Err() == nil {
				s.warn.Do(func() { s.log.Warn("write failed", zap.Error(err)) })
			}
		}
	}
}

// initialFit waits for the container to have a size, then fits once.
func (s *Surface) initialFit() {
	ticker := time.NewTicker(s.opts.FitPoll)
	defer ticker.Stop()
	for {
		if s.fit() {
			return
		}
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// ObserveResize reports that the container may have changed size. Bursts
// are debounced into one fit.
func (s *Surface) ObserveResize() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.unmounted {
		return
	}
	if s.resizeTimer != nil {
		s.resizeTimer.Stop()
	}
	s.resizeTimer = time.AfterFunc(s.opts.ResizeDebounce, func() { s.fit() })
}

// fit measures the container and propagates a changed size. It reports
// whether the container had a usable size.
func (s *Surface) fit() bool {
	s.fitMu.Lock()
	defer s.fitMu.Unlock()

	if s.ctx.Err() != nil || s.opts.Measurer == nil {
		return false
	}
	cols, rows, err := s.opts.Measurer.Measure()
	if err != nil {
		s.log.Debug("fit skipped", zap.Error(err))
		return false
	}
	if cols <= 0 || rows <= 0 {
		return false
	}

	size := Size{Cols: cols, Rows: rows}
	s.mu.Lock()
	if size == s.lastSize {
		s.mu.Unlock()
		return true
	}
	prev := s.lastSize
	s.lastSize = size
	s.mu.Unlock()

	s.widget.Resize(cols, rows)
	if err := s.opts.Backend.ResizeTerminal(s.ctx, s.opts.ID, cols, rows); err != nil {
		// The backend is still at prev; let the next tick send size again.
		s.mu.Lock()
		if s.lastSize == size {
			s.lastSize = prev
		}
		s.mu.Unlock()
		if s.ctx.Err() == nil {
			s.warn.Do(func() { s.log.Warn("resize failed", zap.Error(err)) })
		}
		return true
	}
	s.opts.Metrics.ResizeSent()
	return true
}

// Unmount tears the surface down. The backend terminal keeps running so the
// same terminal can be mounted again later.
func (s *Surface) Unmount() {
	s.mu.Lock()
	if s.unmounted {
		s.mu.Unlock()
		return
	}
	s.unmounted = true
	if s.resizeTimer != nil {
		s.resizeTimer.Stop()
		s.resizeTimer = nil
	}
	s.mu.Unlock()

	s.cancel()
	s.hydrator.Cancel()
	s.batcher.Dispose()
	s.widget.Dispose()

	s.opts.Metrics.SurfaceMounted(-1)
	s.log.Debug("unmounted")
}

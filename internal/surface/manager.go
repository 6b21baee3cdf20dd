package surface

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/abdullathedruid/termdeck/internal/host"
	"github.com/abdullathedruid/termdeck/internal/logging"
	"github.com/abdullathedruid/termdeck/internal/metrics"
	"github.com/abdullathedruid/termdeck/internal/workspace"
)

// ManagerOptions configures the surfaces a Manager mounts.
type ManagerOptions struct {
	Backend host.Backend
	// Measurer returns the container measurer for a slot.
	Measurer  func(slot workspace.Slot) Measurer
	NewWidget func(cols, rows int) Widget

	Chords  []Chord
	OnChord func(c Chord, id workspace.ID)
	// OnLive runs when a mounted surface finishes hydrating, with the target
	// it was mounted for.
	OnLive func(id workspace.ID, target workspace.Target)
	// OnChange runs after Apply changed at least one slot.
	OnChange func()

	BatchInterval  time.Duration
	ResizeDebounce time.Duration
	FitPoll        time.Duration

	Logger  *zap.Logger
	Metrics *metrics.Metrics
}

// Manager keeps one surface mounted per slot for the displayed terminals and
// tracks which slot has keyboard focus.
type Manager struct {
	ctx  context.Context
	opts ManagerOptions
	log  *zap.Logger

	mu       sync.RWMutex
	surfaces map[workspace.Slot]*Surface
	focused  int
}

// NewManager creates a manager with nothing mounted. ctx bounds all mounts.
func NewManager(ctx context.Context, opts ManagerOptions) *Manager {
	return &Manager{
		ctx:      ctx,
		opts:     opts,
		log:      logging.OrNop(opts.Logger).Named("surfaces"),
		surfaces: make(map[workspace.Slot]*Surface),
	}
}

// Apply mounts the given terminals. Slots whose id is unchanged keep their
// surface; the rest are unmounted and mounted fresh.
func (m *Manager) Apply(terms workspace.Terminals, target workspace.Target) {
	m.mu.Lock()
	var stale []*Surface
	changed := false
	for _, slot := range workspace.Slots() {
		id := terms.Get(slot)
		cur := m.surfaces[slot]
		if cur != nil && cur.ID() == id {
			continue
		}
		changed = true
		if cur != nil {
			stale = append(stale, cur)
			delete(m.surfaces, slot)
		}
		if id == "" {
			continue
		}
		m.surfaces[slot] = Mount(m.ctx, m.surfaceOptions(id, slot, target))
	}
	m.mu.Unlock()

	for _, s := range stale {
		s.Unmount()
	}
	if changed {
		m.log.Debug("applied", zap.Stringer("target", target))
		if m.opts.OnChange != nil {
			m.opts.OnChange()
		}
	}
}

func (m *Manager) surfaceOptions(id workspace.ID, slot workspace.Slot, target workspace.Target) Options {
	var measurer Measurer
	if m.opts.Measurer != nil {
		measurer = m.opts.Measurer(slot)
	}
	opts := Options{
		ID:             id,
		Slot:           slot,
		Backend:        m.opts.Backend,
		Measurer:       measurer,
		NewWidget:      m.opts.NewWidget,
		Chords:         m.opts.Chords,
		OnChord:        m.opts.OnChord,
		BatchInterval:  m.opts.BatchInterval,
		ResizeDebounce: m.opts.ResizeDebounce,
		FitPoll:        m.opts.FitPoll,
		Logger:         m.opts.Logger,
		Metrics:        m.opts.Metrics,
	}
	if m.opts.OnLive != nil {
		opts.OnLive = func(id workspace.ID) { m.opts.OnLive(id, target) }
	}
	return opts
}

// Get returns the surface mounted in slot, or nil.
func (m *Manager) Get(slot workspace.Slot) *Surface {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.surfaces[slot]
}

// Displayed returns the ids currently mounted.
func (m *Manager) Displayed() workspace.Terminals {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var t workspace.Terminals
	if s := m.surfaces[workspace.SlotTop]; s != nil {
		t.Top = s.ID()
	}
	if s := m.surfaces[workspace.SlotBottom]; s != nil {
		t.Bottom = s.ID()
	}
	if s := m.surfaces[workspace.SlotRight]; s != nil {
		t.Right = s.ID()
	}
	return t
}

// ObserveResize forwards a layout change to every mounted surface.
func (m *Manager) ObserveResize() {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, s := range m.surfaces {
		s.ObserveResize()
	}
}

// FocusedSlot returns the slot with keyboard focus.
func (m *Manager) FocusedSlot() workspace.Slot {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return workspace.Slots()[m.focused]
}

// Focused returns the surface with keyboard focus, or nil.
func (m *Manager) Focused() *Surface {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.surfaces[workspace.Slots()[m.focused]]
}

// Focus moves keyboard focus to slot.
func (m *Manager) Focus(slot workspace.Slot) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, s := range workspace.Slots() {
		if s == slot {
			m.focused = i
		}
	}
}

// Next moves focus to the next slot (wraps around).
func (m *Manager) Next() {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := len(workspace.Slots())
	m.focused = (m.focused + 1) % n
}

// Prev moves focus to the previous slot (wraps around).
func (m *Manager) Prev() {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := len(workspace.Slots())
	m.focused = (m.focused - 1 + n) % n
}

// SetChords changes the chords intercepted by mounted and future surfaces.
func (m *Manager) SetChords(chords []Chord) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.opts.Chords = chords
	for _, s := range m.surfaces {
		s.SetChords(chords)
	}
}

// UnmountAll unmounts every surface. Backend terminals keep running.
func (m *Manager) UnmountAll() {
	m.mu.Lock()
	surfaces := m.surfaces
	m.surfaces = make(map[workspace.Slot]*Surface)
	m.mu.Unlock()

	for _, s := range surfaces {
		s.Unmount()
	}
}

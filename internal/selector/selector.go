// Package selector owns the mapping from the user's selection to the
// terminals on screen, and switches it safely under rapid re-selection.
//
// Every selection bumps a sequence number. Preparation (ensuring the three
// terminals exist) runs without locks and may finish out of order; only the
// preparation whose sequence number is still current is committed.
package selector

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/abdullathedruid/termdeck/internal/autostart"
	"github.com/abdullathedruid/termdeck/internal/host"
	"github.com/abdullathedruid/termdeck/internal/logging"
	"github.com/abdullathedruid/termdeck/internal/metrics"
	"github.com/abdullathedruid/termdeck/internal/registry"
	"github.com/abdullathedruid/termdeck/internal/workspace"
)

// ErrStale is returned when a newer selection superseded this one.
var ErrStale = errors.New("selection superseded")

// Starter issues the agent start for a top terminal.
type Starter interface {
	Trigger(ctx context.Context, id workspace.ID, target workspace.Target) (autostart.Outcome, error)
}

// Options configures a Selector.
type Options struct {
	// OnDisplay receives the terminals to show. Calls arrive in commit order.
	OnDisplay func(terms workspace.Terminals, target workspace.Target)
	// OnIndicator receives the committed selection for visual cues.
	OnIndicator func(sel workspace.Selection)

	Logger  *zap.Logger
	Metrics *metrics.Metrics
}

// Selector is the single writer of the displayed terminals.
type Selector struct {
	backend host.Backend
	reg     *registry.Registry
	starter Starter
	opts    Options
	log     *zap.Logger

	seq atomic.Uint64

	// commit serializes the staleness check with the commit and display.
	commit  sync.Mutex
	mu      sync.RWMutex
	current workspace.Selection
	terms   workspace.Terminals
	baseCwd string
}

// New creates a selector. starter may be nil to never start agents.
func New(backend host.Backend, reg *registry.Registry, starter Starter, opts Options) *Selector {
	return &Selector{
		backend: backend,
		reg:     reg,
		starter: starter,
		opts:    opts,
		log:     logging.OrNop(opts.Logger).Named("selector"),
		current: workspace.Orchestrator(),
	}
}

// Init seeds the orchestrator's working directory and prepares the
// orchestrator workspace before any user interaction.
func (s *Selector) Init(ctx context.Context) error {
	cwd, err := s.backend.GetCurrentWorkingDirectory(ctx)
	if err != nil {
		s.log.Warn("no working directory from host", zap.Error(err))
	}
	s.mu.Lock()
	s.baseCwd = cwd
	s.mu.Unlock()

	_, err = s.Select(ctx, workspace.Orchestrator())
	return err
}

// Current returns the committed selection and its terminals. The terminals
// are zero until the first selection commits.
func (s *Selector) Current() (workspace.Selection, workspace.Terminals) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current, s.terms
}

// Seq returns the latest issued sequence number.
func (s *Selector) Seq() uint64 {
	return s.seq.Load()
}

// Select switches to sel and returns its terminals. It returns ErrStale if a
// newer selection arrived while this one was being prepared; nothing is
// changed in that case.
func (s *Selector) Select(ctx context.Context, sel workspace.Selection) (workspace.Terminals, error) {
	if err := sel.Validate(); err != nil {
		return workspace.Terminals{}, err
	}
	return s.apply(ctx, sel, s.seq.Add(1))
}

// Run feeds selections from in until ctx is done or in is closed. Sequence
// numbers are taken in arrival order; preparation runs concurrently.
func (s *Selector) Run(ctx context.Context, in <-chan workspace.Selection) {
	var wg sync.WaitGroup
	defer wg.Wait()
	for {
		select {
		case <-ctx.Done():
			return
		case sel, ok := <-in:
			if !ok {
				return
			}
			if err := sel.Validate(); err != nil {
				s.log.Warn("ignoring invalid selection", zap.Error(err))
				continue
			}
			seq := s.seq.Add(1)
			wg.Add(1)
			go func() {
				defer wg.Done()
				if _, err := s.apply(ctx, sel, seq); err != nil && !errors.Is(err, ErrStale) {
					s.log.Error("selection failed", zap.Stringer("selection", sel), zap.Error(err))
				}
			}()
		}
	}
}

func (s *Selector) apply(ctx context.Context, sel workspace.Selection, seq uint64) (workspace.Terminals, error) {
	log := s.log.With(zap.Stringer("selection", sel), zap.Uint64("seq", seq))
	terms := workspace.ForSelection(sel)
	cwd := s.cwdFor(sel)

	var g errgroup.Group
	for _, id := range terms.All() {
		g.Go(func() error { return s.ensure(ctx, id, cwd) })
	}
	if err := g.Wait(); err != nil {
		log.Error("terminals not ready", zap.Error(err))
		s.opts.Metrics.Selection("failed")
		return workspace.Terminals{}, fmt.Errorf("prepare %s: %w", sel, err)
	}

	if !s.commitIfCurrent(seq, sel, terms) {
		log.Debug("discarding stale selection", zap.Uint64("current", s.seq.Load()))
		s.opts.Metrics.Selection("stale")
		return workspace.Terminals{}, ErrStale
	}
	log.Info("workspace switched")
	s.opts.Metrics.Selection("applied")

	s.startAgent(ctx, sel, terms.Top, seq, log)

	if s.seq.Load() == seq && s.opts.OnIndicator != nil {
		s.opts.OnIndicator(sel)
	}
	return terms, nil
}

func (s *Selector) cwdFor(sel workspace.Selection) string {
	if sel.Cwd != "" {
		return sel.Cwd
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.baseCwd
}

func (s *Selector) ensure(ctx context.Context, id workspace.ID, cwd string) error {
	created, err := s.reg.Ensure(ctx, id,
		func(ctx context.Context) (bool, error) { return s.backend.TerminalExists(ctx, id) },
		func(ctx context.Context) error { return s.backend.CreateTerminal(ctx, id, cwd) },
	)
	if err != nil {
		return err
	}
	if created {
		s.log.Debug("terminal created", zap.String("terminal", string(id)), zap.String("cwd", cwd))
		s.opts.Metrics.TerminalCreated()
	}
	return nil
}

func (s *Selector) commitIfCurrent(seq uint64, sel workspace.Selection, terms workspace.Terminals) bool {
	s.commit.Lock()
	defer s.commit.Unlock()
	if s.seq.Load() != seq {
		return false
	}
	s.mu.Lock()
	s.current = sel
	s.terms = terms
	s.mu.Unlock()

	if s.opts.OnDisplay != nil {
		s.opts.OnDisplay(terms, sel.Target())
	}
	return true
}

// startAgent confirms the top terminal still exists and asks for the agent.
// Failures are logged; the starter reports permission problems to the user.
func (s *Selector) startAgent(ctx context.Context, sel workspace.Selection, top workspace.ID, seq uint64, log *zap.Logger) {
	if s.starter == nil {
		return
	}
	ok, err := s.backend.TerminalExists(ctx, top)
	if err != nil || !ok {
		log.Warn("top terminal missing after switch", zap.String("terminal", string(top)), zap.Error(err))
		return
	}
	if s.seq.Load() != seq {
		return
	}
	if outcome, err := s.starter.Trigger(ctx, top, sel.Target()); err != nil {
		if outcome == autostart.Cancelled {
			return
		}
		if host.IsPermissionRequired(err) {
			log.Warn("agent needs permission", zap.Error(err), zap.String("stack", host.Stack(err)))
			return
		}
		log.Error("agent start failed", zap.Error(err))
	}
}

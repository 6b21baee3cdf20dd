// Package app wires the terminal workspace into a gocui application.
package app

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/jesseduffield/gocui"
	"go.uber.org/zap"

	"github.com/abdullathedruid/termdeck/internal/autostart"
	"github.com/abdullathedruid/termdeck/internal/catalog"
	"github.com/abdullathedruid/termdeck/internal/config"
	"github.com/abdullathedruid/termdeck/internal/host"
	"github.com/abdullathedruid/termdeck/internal/input"
	"github.com/abdullathedruid/termdeck/internal/logging"
	"github.com/abdullathedruid/termdeck/internal/metrics"
	"github.com/abdullathedruid/termdeck/internal/registry"
	"github.com/abdullathedruid/termdeck/internal/selector"
	"github.com/abdullathedruid/termdeck/internal/surface"
	"github.com/abdullathedruid/termdeck/internal/workspace"
)

// Options holds the collaborators of an App.
type Options struct {
	Config  *config.Config
	Backend host.Backend
	Catalog *catalog.Store
	Logger  *zap.Logger
	Metrics *metrics.Metrics
}

// App is the main application.
type App struct {
	ctx     context.Context
	cancel  context.CancelFunc
	gui     atomic.Pointer[gocui.Gui]
	backend host.Backend
	catalog *catalog.Store
	log     *zap.Logger
	metrics *metrics.Metrics

	reg        *registry.Registry
	starter    *autostart.Controller
	surfaces   *surface.Manager
	selector   *selector.Selector
	selections chan workspace.Selection
	input      *input.Handler

	mu            sync.RWMutex
	cfg           *config.Config
	keys          keymap
	screen        surface.Screen
	entries       []catalog.Entry
	cursor        int
	current       workspace.Selection
	message       string
	pendingDelete string
}

// New builds the workspace components. Nothing runs until Run.
func New(ctx context.Context, opts Options) (*App, error) {
	if opts.Config == nil || opts.Backend == nil || opts.Catalog == nil {
		return nil, errors.New("app: config, backend and catalog are required")
	}
	ctx, cancel := context.WithCancel(ctx)
	cfg := opts.Config

	a := &App{
		ctx:        ctx,
		cancel:     cancel,
		backend:    opts.Backend,
		catalog:    opts.Catalog,
		log:        logging.OrNop(opts.Logger).Named("app"),
		metrics:    opts.Metrics,
		reg:        registry.New(),
		selections: make(chan workspace.Selection, 16),
		input:      input.NewHandler(),
		cfg:        cfg,
		keys:       newKeymap(cfg.Keys),
		current:    workspace.Orchestrator(),
	}

	a.starter = autostart.New(opts.Backend, a.reg, autostart.Options{
		Policy: autostart.Policy{
			Delay:       cfg.Timing.StartRetryDelay,
			MaxAttempts: cfg.Timing.StartMaxAttempts,
		},
		Logger:       opts.Logger,
		Metrics:      opts.Metrics,
		OnPermission: a.onPermission,
	})
	a.surfaces = surface.NewManager(ctx, surface.ManagerOptions{
		Backend:        opts.Backend,
		Measurer:       a.measurer,
		NewWidget:      a.newWidget,
		Chords:         chordsFor(cfg.Keys),
		OnChord:        a.onChord,
		OnLive:         a.onLive,
		OnChange:       a.redraw,
		BatchInterval:  cfg.Timing.BatchInterval,
		ResizeDebounce: cfg.Timing.ResizeDebounce,
		FitPoll:        cfg.Timing.FitPollInterval,
		Logger:         opts.Logger,
		Metrics:        opts.Metrics,
	})
	a.selector = selector.New(opts.Backend, a.reg, a.starter, selector.Options{
		OnDisplay:   a.onDisplay,
		OnIndicator: a.onIndicator,
		Logger:      opts.Logger,
		Metrics:     opts.Metrics,
	})
	return a, nil
}

// Run starts the main event loop and blocks until the user quits or ctx is
// cancelled.
func (a *App) Run() error {
	g, err := gocui.NewGui(gocui.NewGuiOpts{
		OutputMode: gocui.OutputTrue,
	})
	if err != nil {
		return fmt.Errorf("initializing GUI: %w", err)
	}
	a.gui.Store(g)
	defer a.Close()

	g.SetManagerFunc(a.layout)
	g.Cursor = false

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		a.selector.Run(a.ctx, a.selections)
	}()
	go func() {
		if err := a.selector.Init(a.ctx); err != nil && !errors.Is(err, selector.ErrStale) {
			a.log.Error("orchestrator workspace failed", zap.Error(err))
			a.setMessage("orchestrator unavailable: " + err.Error())
		}
	}()
	go a.refreshEntries()
	if dir := a.config().DataDir; dir != "" {
		go func() {
			if err := config.Watch(a.ctx, dir, a.onConfig); err != nil {
				a.log.Warn("config watch stopped", zap.Error(err))
			}
		}()
	}
	go func() {
		<-a.ctx.Done()
		g.Update(func(*gocui.Gui) error { return gocui.ErrQuit })
	}()

	err = g.MainLoop()
	a.cancel()
	wg.Wait()
	if err != nil && !errors.Is(err, gocui.ErrQuit) && err.Error() != "quit" {
		return fmt.Errorf("main loop: %w", err)
	}
	return nil
}

// Close unmounts every surface and releases the GUI. Backend terminals are
// left to the backend's own shutdown.
func (a *App) Close() {
	a.cancel()
	a.surfaces.UnmountAll()
	if g := a.gui.Swap(nil); g != nil {
		g.Close()
	}
}

func (a *App) config() *config.Config {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.cfg
}

func (a *App) keymap() keymap {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.keys
}

func (a *App) setMessage(msg string) {
	a.mu.Lock()
	a.message = msg
	a.mu.Unlock()
	a.redraw()
}

// redraw schedules a layout pass.
func (a *App) redraw() {
	if g := a.gui.Load(); g != nil {
		g.Update(func(*gocui.Gui) error { return nil })
	}
}

// submit hands a selection to the selector in arrival order.
func (a *App) submit(sel workspace.Selection) {
	select {
	case a.selections <- sel:
	case <-a.ctx.Done():
	}
}

func (a *App) onDisplay(terms workspace.Terminals, target workspace.Target) {
	a.surfaces.Apply(terms, target)
}

func (a *App) onIndicator(sel workspace.Selection) {
	a.mu.Lock()
	a.current = sel
	a.mu.Unlock()
	a.redraw()
}

// onLive starts the agent once a top surface has hydrated.
func (a *App) onLive(id workspace.ID, target workspace.Target) {
	go func() {
		outcome, err := a.starter.Trigger(a.ctx, id, target)
		if err == nil || outcome == autostart.Cancelled || host.IsPermissionRequired(err) {
			return
		}
		a.log.Warn("agent start after hydration failed", zap.String("terminal", string(id)),
			zap.Stringer("outcome", outcome), zap.Error(err))
	}()
}

func (a *App) onPermission(target workspace.Target, err error) {
	a.log.Warn("agent needs permission", zap.Stringer("target", target), zap.Error(err), zap.String("stack", host.Stack(err)))
	a.setMessage(fmt.Sprintf("%s: agent needs permission", target))
}

// onConfig applies a reloaded configuration. Theme and key bindings take
// effect immediately; timing and backend settings need a restart.
func (a *App) onConfig(cfg *config.Config, err error) {
	if err != nil {
		a.log.Warn("config reload rejected", zap.Error(err))
		a.setMessage("config: " + err.Error())
		return
	}
	a.mu.Lock()
	a.cfg = cfg
	a.keys = newKeymap(cfg.Keys)
	a.mu.Unlock()
	a.surfaces.SetChords(chordsFor(cfg.Keys))
	a.log.Info("config reloaded")
	a.setMessage("config reloaded")
}

// Package autostart issues the agent start for top terminals, once per
// terminal id, after the terminal has been confirmed to exist.
package autostart

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/abdullathedruid/termdeck/internal/host"
	"github.com/abdullathedruid/termdeck/internal/logging"
	"github.com/abdullathedruid/termdeck/internal/metrics"
	"github.com/abdullathedruid/termdeck/internal/registry"
	"github.com/abdullathedruid/termdeck/internal/workspace"
)

var (
	// ErrTargetMismatch means the id is not the top terminal of the target.
	ErrTargetMismatch = errors.New("terminal id does not match target")
	// ErrGaveUp means the terminal never appeared within the retry bound.
	ErrGaveUp = errors.New("terminal did not appear")
)

// State is the start state of one terminal id.
type State int

const (
	NotStarted State = iota
	Waiting
	Starting
	Started
)

func (s State) String() string {
	switch s {
	case Waiting:
		return "waiting"
	case Starting:
		return "starting"
	case Started:
		return "started"
	default:
		return "not-started"
	}
}

// Outcome is the result of one Trigger call.
type Outcome int

const (
	// Skipped means nothing was attempted: not a top terminal, or a start
	// was already issued or is in flight.
	Skipped Outcome = iota
	// Issued means this call issued the start and it succeeded.
	Issued
	// Failed means the start call failed and the id may be retried.
	Failed
	// GaveUp means the terminal never appeared.
	GaveUp
	// Rejected means the id did not match the target.
	Rejected
	// Cancelled means the context ended before the start was confirmed.
	Cancelled
)

func (o Outcome) String() string {
	switch o {
	case Issued:
		return "issued"
	case Failed:
		return "failed"
	case GaveUp:
		return "gave-up"
	case Rejected:
		return "rejected"
	case Cancelled:
		return "cancelled"
	default:
		return "skipped"
	}
}

// Options configures a Controller.
type Options struct {
	Policy  Policy
	Logger  *zap.Logger
	Metrics *metrics.Metrics
	// OnPermission is called when the start needs the user to grant access.
	OnPermission func(target workspace.Target, err error)
}

// Controller runs auto-starts against a backend, using the registry as the
// only record of what has been started.
type Controller struct {
	backend host.Backend
	reg     *registry.Registry
	opts    Options
	log     *zap.Logger

	mu      sync.Mutex
	waiting map[workspace.ID]int // id -> failed probes in the current run
}

// New creates a controller.
func New(backend host.Backend, reg *registry.Registry, opts Options) *Controller {
	opts.Policy = opts.Policy.normalize()
	return &Controller{
		backend: backend,
		reg:     reg,
		opts:    opts,
		log:     logging.OrNop(opts.Logger).Named("autostart"),
		waiting: make(map[workspace.ID]int),
	}
}

// State returns the current start state of id.
func (c *Controller) State(id workspace.ID) State {
	c.mu.Lock()
	_, waiting := c.waiting[id]
	c.mu.Unlock()

	switch {
	case waiting:
		return Waiting
	case c.reg.IsStarting(id):
		return Starting
	case c.reg.IsStarted(id):
		return Started
	default:
		return NotStarted
	}
}

// Trigger starts the agent for target in terminal id if it has not been
// started yet. Only top terminals are started; other ids are skipped.
//
// Concurrent triggers for the same id issue at most one start call.
func (c *Controller) Trigger(ctx context.Context, id workspace.ID, target workspace.Target) (Outcome, error) {
	log := c.log.With(zap.String("terminal", string(id)), zap.Stringer("target", target))

	_, slot, err := workspace.ParseID(id)
	if err != nil || slot != workspace.SlotTop {
		return Skipped, nil
	}
	if want := workspace.TerminalID(target, workspace.SlotTop); id != want {
		log.Warn("refusing to start agent in mismatched terminal", zap.String("expected", string(want)))
		c.opts.Metrics.AgentStart("rejected")
		return Rejected, fmt.Errorf("start %s in %s: %w", target, id, ErrTargetMismatch)
	}

	if err := c.reg.BeginStart(id); err != nil {
		log.Debug("start skipped", zap.Error(err))
		return Skipped, nil
	}
	defer c.reg.EndStart(id)

	if err := c.waitForTerminal(ctx, id, log); err != nil {
		if ctx.Err() != nil {
			log.Debug("start cancelled while waiting", zap.Error(err))
			c.opts.Metrics.AgentStart("cancelled")
			return Cancelled, err
		}
		return GaveUp, err
	}

	c.reg.MarkStarted(id)
	if err := c.backend.StartAgent(ctx, target); err != nil {
		c.reg.RollbackStarted(id)
		if ctx.Err() != nil {
			log.Debug("start cancelled", zap.Error(err))
			c.opts.Metrics.AgentStart("cancelled")
			return Cancelled, fmt.Errorf("start agent for %s: %w", target, ctx.Err())
		}
		if host.IsPermissionRequired(err) {
			log.Warn("agent start needs permission", zap.Error(err))
			c.opts.Metrics.AgentStart("permission")
			if c.opts.OnPermission != nil {
				c.opts.OnPermission(target, err)
			}
		} else {
			log.Error("agent start failed", zap.Error(err))
			c.opts.Metrics.AgentStart("failed")
		}
		return Failed, fmt.Errorf("start agent for %s: %w", target, err)
	}

	log.Info("agent started")
	c.opts.Metrics.AgentStart("started")
	return Issued, nil
}

// waitForTerminal probes for id until it exists or the policy gives up.
// The attempt count lives only for this run.
func (c *Controller) waitForTerminal(ctx context.Context, id workspace.ID, log *zap.Logger) error {
	c.setWaiting(id, 0)
	defer c.clearWaiting(id)

	for attempts := 0; ; {
		ok, err := c.backend.TerminalExists(ctx, id)
		if err != nil {
			log.Debug("existence check failed", zap.Error(err))
		}
		if ok {
			return nil
		}
		attempts++
		c.setWaiting(id, attempts)

		delay, retry := c.opts.Policy.Retry(attempts)
		if !retry {
			log.Warn("giving up on agent start", zap.Int("attempt", attempts))
			c.opts.Metrics.AgentStart("gave_up")
			return fmt.Errorf("start in %s after %d attempts: %w", id, attempts, ErrGaveUp)
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

// Attempts returns the failed probes of the run in progress for id.
func (c *Controller) Attempts(id workspace.ID) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.waiting[id]
}

func (c *Controller) setWaiting(id workspace.ID, n int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.waiting[id] = n
}

func (c *Controller) clearWaiting(id workspace.ID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.waiting, id)
}

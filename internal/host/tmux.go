package host

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"os/exec"
	"strings"

	"go.uber.org/zap"

	"github.com/abdullathedruid/termdeck/internal/logging"
	"github.com/abdullathedruid/termdeck/internal/terminal"
	"github.com/abdullathedruid/termdeck/internal/tmux"
	"github.com/abdullathedruid/termdeck/internal/workspace"
)

// TmuxOptions configures the tmux-backed host.
type TmuxOptions struct {
	// Prefix is prepended to terminal ids to form tmux session names.
	Prefix string
	// Shell runs in every new terminal.
	Shell string
	// AgentCommand starts the agent in a top terminal.
	AgentCommand string
	// ResumeArgs are appended to AgentCommand for named sessions.
	ResumeArgs []string
	// SnapshotLines bounds the history returned by GetTerminalBuffer.
	SnapshotLines int
	// KillOnExit kills every prefixed tmux session on Close.
	KillOnExit bool
	Logger     *zap.Logger
}

// Tmux implements Backend with one detached tmux session per terminal.
type Tmux struct {
	client   tmux.Client
	opts     TmuxOptions
	log      *zap.Logger
	hub      *hub
	lookPath func(string) (string, error)
}

var _ Backend = (*Tmux)(nil)

// NewTmux creates a tmux-backed host.
func NewTmux(client tmux.Client, opts TmuxOptions) *Tmux {
	t := &Tmux{
		client:   client,
		opts:     opts,
		log:      logging.OrNop(opts.Logger).Named("host"),
		lookPath: exec.LookPath,
	}
	t.hub = newHub(t.openControlMode, t.log)
	return t
}

// SessionName returns the tmux session hosting id.
func (t *Tmux) SessionName(id workspace.ID) string {
	return t.opts.Prefix + string(id)
}

func (t *Tmux) openControlMode(id workspace.ID) (stream, error) {
	cm := terminal.NewControlMode(t.SessionName(id))
	if err := cm.Start(0, 0); err != nil {
		return nil, wrap(err)
	}
	return cm, nil
}

// TerminalExists reports whether the tmux session for id exists.
func (t *Tmux) TerminalExists(ctx context.Context, id workspace.ID) (bool, error) {
	ok, err := t.client.HasSession(ctx, t.SessionName(id))
	if err != nil {
		return false, wrap(err)
	}
	return ok, nil
}

// CreateTerminal starts a detached tmux session for id in cwd.
func (t *Tmux) CreateTerminal(ctx context.Context, id workspace.ID, cwd string) error {
	err := t.client.NewSession(ctx, t.SessionName(id), cwd, t.opts.Shell)
	if err != nil && !tmux.IsDuplicateSession(err) {
		return wrap(err)
	}
	t.log.Debug("terminal created", zap.String("terminal", string(id)), zap.String("cwd", cwd))
	return nil
}

// WriteTerminal sends user input to the terminal.
func (t *Tmux) WriteTerminal(ctx context.Context, id workspace.ID, data string) error {
	return wrap(t.client.SendBytes(ctx, t.SessionName(id), []byte(data)))
}

// ResizeTerminal resizes the attached control client if there is one, and the
// tmux window otherwise.
func (t *Tmux) ResizeTerminal(ctx context.Context, id workspace.ID, cols, rows int) error {
	if cols <= 0 || rows <= 0 {
		return fmt.Errorf("resize %s: invalid size %dx%d", id, cols, rows)
	}
	attached, err := t.hub.resize(id, cols, rows)
	if attached {
		return wrap(err)
	}
	return wrap(t.client.ResizeWindow(ctx, t.SessionName(id), cols, rows))
}

// GetTerminalBuffer returns the terminal's recent history with escape sequences.
func (t *Tmux) GetTerminalBuffer(ctx context.Context, id workspace.ID) (string, error) {
	out, err := t.client.CapturePane(ctx, t.SessionName(id), t.opts.SnapshotLines)
	if err != nil {
		return "", wrap(err)
	}
	// capture-pane ends lines with \n; the widget expects CRLF.
	return strings.ReplaceAll(strings.TrimRight(out, "\n"), "\n", "\r\n"), nil
}

// StartAgent types the agent command into the target's top terminal.
func (t *Tmux) StartAgent(ctx context.Context, target workspace.Target) error {
	line := t.agentCommandLine(target)
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return wrap(fmt.Errorf("start agent for %s: no agent command configured", target))
	}
	if _, err := t.lookPath(fields[0]); err != nil {
		if isPermission(err) {
			return wrap(fmt.Errorf("%w: %s: %v", ErrPermissionRequired, fields[0], err))
		}
		return wrap(fmt.Errorf("start agent for %s: %w", target, err))
	}

	top := workspace.TerminalID(target, workspace.SlotTop)
	if err := t.client.SendLine(ctx, t.SessionName(top), line); err != nil {
		if isPermission(err) {
			return wrap(fmt.Errorf("%w: %v", ErrPermissionRequired, err))
		}
		return wrap(err)
	}
	t.log.Info("agent started", zap.String("target", target.String()), zap.String("terminal", string(top)))
	return nil
}

func (t *Tmux) agentCommandLine(target workspace.Target) string {
	if target.IsOrchestrator() || len(t.opts.ResumeArgs) == 0 {
		return t.opts.AgentCommand
	}
	return t.opts.AgentCommand + " " + strings.Join(t.opts.ResumeArgs, " ")
}

func isPermission(err error) bool {
	if err == nil {
		return false
	}
	return errorsIs(err, fs.ErrPermission) || strings.Contains(strings.ToLower(err.Error()), "permission denied")
}

// SubscribeOutput attaches handler to the terminal's live output.
func (t *Tmux) SubscribeOutput(id workspace.ID, handler OutputHandler) (func(), error) {
	return t.hub.subscribe(id, handler)
}

// GetCurrentWorkingDirectory returns the process working directory.
func (t *Tmux) GetCurrentWorkingDirectory(context.Context) (string, error) {
	dir, err := os.Getwd()
	if err != nil {
		return "", wrap(err)
	}
	return dir, nil
}

// Close detaches every output stream and, if configured, kills all terminals
// this host owns. Surfaces never kill terminals; this is the only teardown.
func (t *Tmux) Close(ctx context.Context) error {
	t.hub.closeAll()
	if !t.opts.KillOnExit {
		return nil
	}

	sessions, err := t.client.ListSessions(ctx)
	if err != nil {
		return wrap(err)
	}
	var firstErr error
	for _, s := range tmux.FilterPrefix(sessions, t.opts.Prefix) {
		// Only sessions named after a terminal id belong to this host.
		if _, _, err := workspace.ParseID(workspace.ID(strings.TrimPrefix(s.Name, t.opts.Prefix))); err != nil {
			continue
		}
		if err := t.client.KillSession(ctx, s.Name); err != nil {
			t.log.Warn("kill terminal", zap.String("session", s.Name), zap.Error(err))
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return wrap(firstErr)
}

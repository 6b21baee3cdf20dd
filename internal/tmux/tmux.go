// Package tmux wraps the tmux commands used to host workspace terminals.
// Every terminal is a detached tmux session with a single window.
package tmux

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"
	"unicode/utf8"
)

// Session represents a tmux session.
type Session struct {
	Name        string
	Path        string
	Created     time.Time
	Attached    bool
	WindowCount int
}

// Client provides tmux operations.
type Client interface {
	// ListSessions returns all tmux sessions on the server.
	ListSessions(ctx context.Context) ([]Session, error)
	// HasSession checks if a session exists.
	HasSession(ctx context.Context, name string) (bool, error)
	// NewSession creates a detached session running shell in dir.
	NewSession(ctx context.Context, name, dir, shell string) error
	// KillSession kills the specified session.
	KillSession(ctx context.Context, name string) error
	// SendBytes delivers raw input bytes to the session's active pane.
	SendBytes(ctx context.Context, name string, data []byte) error
	// SendLine types line into the session and presses Enter.
	SendLine(ctx context.Context, name, line string) error
	// ResizeWindow sets the session window size.
	ResizeWindow(ctx context.Context, name string, cols, rows int) error
	// CapturePane returns the pane contents including up to lines of history,
	// with escape sequences preserved.
	CapturePane(ctx context.Context, name string, lines int) (string, error)
}

// runner executes tmux with args and returns stdout.
type runner func(ctx context.Context, args ...string) (string, error)

// RealClient implements Client using the tmux binary.
type RealClient struct {
	run runner
}

// NewClient creates a new tmux client.
func NewClient() *RealClient {
	return &RealClient{run: execTmux}
}

func execTmux(ctx context.Context, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, "tmux", args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return stdout.String(), &CommandError{Command: args[0], Err: err, Stderr: strings.TrimSpace(stderr.String())}
	}
	return stdout.String(), nil
}

// CommandError is a failed tmux invocation.
type CommandError struct {
	Command string
	Err     error
	Stderr  string
}

func (e *CommandError) Error() string {
	return fmt.Sprintf("tmux %s: %v: %s", e.Command, e.Err, e.Stderr)
}

func (e *CommandError) Unwrap() error { return e.Err }

// noServer reports whether the error only means no tmux server is running.
func noServer(err error) bool {
	ce, ok := err.(*CommandError)
	if !ok {
		return false
	}
	return strings.Contains(ce.Stderr, "no server running") ||
		strings.Contains(ce.Stderr, "no sessions") ||
		strings.Contains(ce.Stderr, "error connecting to")
}

// IsDuplicateSession reports whether err is tmux refusing to create an existing session.
func IsDuplicateSession(err error) bool {
	ce, ok := err.(*CommandError)
	return ok && strings.Contains(ce.Stderr, "duplicate session")
}

// exactTarget makes tmux match the session name exactly instead of by prefix.
func exactTarget(name string) string {
	return "=" + name
}

// ListSessions returns all tmux sessions.
func (c *RealClient) ListSessions(ctx context.Context) ([]Session, error) {
	out, err := c.run(ctx, "list-sessions", "-F", "#{session_name}\t#{session_path}\t#{session_created}\t#{session_attached}\t#{session_windows}")
	if err != nil {
		// No sessions is not an error
		if noServer(err) {
			return nil, nil
		}
		return nil, err
	}
	return parseSessions(out), nil
}

// parseSessions parses tmux list-sessions output.
func parseSessions(output string) []Session {
	var sessions []Session
	lines := strings.Split(strings.TrimSpace(output), "\n")

	for _, line := range lines {
		if line == "" {
			continue
		}
		parts := strings.Split(line, "\t")
		if len(parts) < 5 {
			continue
		}

		created := time.Now()
		if ts, err := time.Parse("2006-01-02T15:04:05", parts[2]); err == nil {
			created = ts
		} else if epoch, err := parseUnixTimestamp(parts[2]); err == nil {
			created = epoch
		}

		windowCount := 1
		if _, err := fmt.Sscanf(parts[4], "%d", &windowCount); err != nil {
			windowCount = 1
		}

		sessions = append(sessions, Session{
			Name:        parts[0],
			Path:        parts[1],
			Created:     created,
			Attached:    parts[3] == "1",
			WindowCount: windowCount,
		})
	}

	return sessions
}

func parseUnixTimestamp(s string) (time.Time, error) {
	var ts int64
	if _, err := fmt.Sscanf(s, "%d", &ts); err != nil {
		return time.Time{}, err
	}
	return time.Unix(ts, 0), nil
}

// FilterPrefix returns the sessions whose name starts with prefix.
func FilterPrefix(sessions []Session, prefix string) []Session {
	var out []Session
	for _, s := range sessions {
		if strings.HasPrefix(s.Name, prefix) {
			out = append(out, s)
		}
	}
	return out
}

// HasSession checks if a session exists.
func (c *RealClient) HasSession(ctx context.Context, name string) (bool, error) {
	_, err := c.run(ctx, "has-session", "-t", exactTarget(name))
	if err == nil {
		return true, nil
	}
	if ce, ok := err.(*CommandError); ok {
		if noServer(err) || strings.Contains(ce.Stderr, "can't find session") {
			return false, nil
		}
		if _, exit := ce.Err.(*exec.ExitError); exit {
			return false, nil
		}
	}
	return false, err
}

// NewSession creates a detached tmux session.
func (c *RealClient) NewSession(ctx context.Context, name, dir, shell string) error {
	args := []string{"new-session", "-d", "-s", name}
	if dir != "" {
		args = append(args, "-c", dir)
	}
	if shell != "" {
		args = append(args, shell)
	}
	_, err := c.run(ctx, args...)
	return err
}

// KillSession kills a tmux session.
func (c *RealClient) KillSession(ctx context.Context, name string) error {
	_, err := c.run(ctx, "kill-session", "-t", exactTarget(name))
	return err
}

// SendBytes delivers data verbatim. Printable text is sent literally and
// control bytes as hex keys, chained in one tmux invocation.
func (c *RealClient) SendBytes(ctx context.Context, name string, data []byte) error {
	if len(data) == 0 {
		return nil
	}
	_, err := c.run(ctx, sendKeysArgs(name, data)...)
	return err
}

// sendKeysArgs splits data into literal text runs and control bytes.
func sendKeysArgs(name string, data []byte) []string {
	target := exactTarget(name)
	var args []string
	appendCmd := func(cmd ...string) {
		if len(args) > 0 {
			args = append(args, ";")
		}
		args = append(args, cmd...)
	}

	for len(data) > 0 {
		if isControl(data[0]) {
			hex := []string{"send-keys", "-t", target, "-H"}
			for len(data) > 0 && isControl(data[0]) {
				hex = append(hex, fmt.Sprintf("%02x", data[0]))
				data = data[1:]
			}
			appendCmd(hex...)
			continue
		}

		end := 0
		for end < len(data) && !isControl(data[end]) {
			_, size := utf8.DecodeRune(data[end:])
			end += size
		}
		appendCmd("send-keys", "-t", target, "-l", string(data[:end]))
		data = data[end:]
	}
	return args
}

func isControl(b byte) bool {
	return b < 0x20 || b == 0x7f
}

// SendLine types line and presses Enter.
func (c *RealClient) SendLine(ctx context.Context, name, line string) error {
	_, err := c.run(ctx, "send-keys", "-t", exactTarget(name), "-l", line, ";", "send-keys", "-t", exactTarget(name), "Enter")
	return err
}

// ResizeWindow sets the window size of a session.
func (c *RealClient) ResizeWindow(ctx context.Context, name string, cols, rows int) error {
	_, err := c.run(ctx, "resize-window", "-t", exactTarget(name), "-x", fmt.Sprint(cols), "-y", fmt.Sprint(rows))
	return err
}

// CapturePane captures the pane output from a session.
func (c *RealClient) CapturePane(ctx context.Context, name string, lines int) (string, error) {
	args := []string{"capture-pane", "-t", exactTarget(name), "-p", "-e", "-J"}
	if lines > 0 {
		args = append(args, "-S", fmt.Sprintf("-%d", lines))
	}
	return c.run(ctx, args...)
}

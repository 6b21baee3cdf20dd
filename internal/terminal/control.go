// Package terminal streams the output of one tmux session through a control-mode client.
package terminal

import (
	"bufio"
	"fmt"
	"os"
	"os/exec"
	"regexp"
	"strconv"
	"strings"
	"sync"

	"github.com/creack/pty"
)

// outputPattern matches "%output %<pane-id> <data>" lines.
// The line may be prefixed with DCS escape sequences like \033P1000p
var outputPattern = regexp.MustCompile(`%output %(\d+) (.*)$`)

// ControlMode manages a tmux -CC (control mode) connection to a single session.
type ControlMode struct {
	session  string
	cmd      *exec.Cmd
	pty      *os.File
	outputCh chan []byte
	doneCh   chan struct{}
	exitedCh chan struct{}
	mu       sync.Mutex
	close    sync.Once
}

// NewControlMode creates a new control mode connection for the given session.
func NewControlMode(session string) *ControlMode {
	return &ControlMode{
		session:  session,
		outputCh: make(chan []byte, 256),
		doneCh:   make(chan struct{}),
		exitedCh: make(chan struct{}),
	}
}

// Start attaches to the session with the given client size.
func (c *ControlMode) Start(cols, rows int) error {
	c.cmd = exec.Command("tmux", "-CC", "attach-session", "-t", "="+c.session)

	// tmux needs a real terminal even in control mode
	ptmx, err := pty.StartWithSize(c.cmd, winsize(cols, rows))
	if err != nil {
		return fmt.Errorf("start control mode for %s: %w", c.session, err)
	}
	c.pty = ptmx

	go func() {
		_ = c.cmd.Wait()
		close(c.exitedCh)
	}()

	go c.readOutput()

	if cols > 0 && rows > 0 {
		return c.Resize(cols, rows)
	}
	return nil
}

func winsize(cols, rows int) *pty.Winsize {
	if cols <= 0 {
		cols = 80
	}
	if rows <= 0 {
		rows = 24
	}
	return &pty.Winsize{Rows: uint16(rows), Cols: uint16(cols)}
}

// Resize sets both the pty size and the control client size.
func (c *ControlMode) Resize(cols, rows int) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.pty == nil {
		return fmt.Errorf("control mode for %s not started", c.session)
	}
	if err := pty.Setsize(c.pty, winsize(cols, rows)); err != nil {
		return fmt.Errorf("set pty size: %w", err)
	}

	cmd := fmt.Sprintf("refresh-client -C %d,%d\n", cols, rows)
	_, err := c.pty.Write([]byte(cmd))
	return err
}

// readOutput reads lines from tmux control mode and forwards decoded output.
func (c *ControlMode) readOutput() {
	defer close(c.outputCh)

	scanner := bufio.NewScanner(c.pty)
	// Increase buffer size for large outputs
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)

	for scanner.Scan() {
		line := scanner.Text()

		if isExitLine(line) {
			return
		}
		if data, ok := parseOutputLine(line); ok {
			select {
			case c.outputCh <- data:
			case <-c.doneCh:
				return
			}
		}
	}
}

// isExitLine reports whether tmux is detaching the control client.
func isExitLine(line string) bool {
	return strings.HasPrefix(line, "%exit") || strings.Contains(line, "\x1bP1000p%exit")
}

// parseOutputLine parses a "%output %N <data>" line and returns decoded data.
func parseOutputLine(line string) ([]byte, bool) {
	matches := outputPattern.FindStringSubmatch(line)
	if matches == nil {
		return nil, false
	}

	// matches[2] contains the octal-encoded data
	return decodeOctal(matches[2]), true
}

// decodeOctal converts \NNN octal sequences and \\ to bytes.
func decodeOctal(s string) []byte {
	result := make([]byte, 0, len(s))
	for i := 0; i < len(s); {
		if s[i] == '\\' {
			if i+3 < len(s) &&
				isOctalDigit(s[i+1]) && isOctalDigit(s[i+2]) && isOctalDigit(s[i+3]) {
				val, _ := strconv.ParseUint(s[i+1:i+4], 8, 8)
				result = append(result, byte(val))
				i += 4
				continue
			}
			if i+1 < len(s) && s[i+1] == '\\' {
				result = append(result, '\\')
				i += 2
				continue
			}
		}
		result = append(result, s[i])
		i++
	}
	return result
}

func isOctalDigit(b byte) bool {
	return b >= '0' && b <= '7'
}

// OutputChan returns the channel that receives terminal output data.
// It is closed when the control client exits or is closed.
func (c *ControlMode) OutputChan() <-chan []byte {
	return c.outputCh
}

// Exited is closed once the tmux client process has exited.
func (c *ControlMode) Exited() <-chan struct{} {
	return c.exitedCh
}

// Session returns the tmux session name.
func (c *ControlMode) Session() string {
	return c.session
}

// Close detaches the control client. The session itself keeps running.
func (c *ControlMode) Close() error {
	c.close.Do(func() {
		close(c.doneCh)
		c.mu.Lock()
		if c.pty != nil {
			_, _ = c.pty.Write([]byte("detach-client\n"))
			c.pty.Close()
		}
		c.mu.Unlock()
		if c.cmd != nil && c.cmd.Process != nil {
			_ = c.cmd.Process.Kill()
		}
	})
	return nil
}

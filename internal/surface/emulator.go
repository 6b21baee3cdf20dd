// Package surface binds terminal-emulation widgets to backend terminals:
// hydration from a snapshot, batched live output, input, resize and the
// three-slot arrangement of a workspace.
package surface

import (
	"strings"
	"sync"

	"github.com/jesseduffield/gocui"
	"github.com/vito/midterm"
)

// KeyHandler sees a key before the widget does. Returning true marks the key
// as handled and the widget ignores it.
type KeyHandler func(key gocui.Key, ch rune, mod gocui.Modifier) bool

// Widget is the terminal-emulation widget a surface drives.
type Widget interface {
	Write(data string)
	Resize(cols, rows int)
	OnData(fn func(data string))
	SetKeyHandler(fn KeyHandler)
	Dispose()
}

// Emulator is a midterm-backed Widget. All access to the screen goes through
// its mutex since output and rendering run on different goroutines.
type Emulator struct {
	mu       sync.Mutex
	term     *midterm.Terminal
	onData   func(string)
	onKey    KeyHandler
	disposed bool
}

var _ Widget = (*Emulator)(nil)

// NewEmulator creates an emulator with the given size.
func NewEmulator(cols, rows int) *Emulator {
	if cols < 1 {
		cols = DefaultCols
	}
	if rows < 1 {
		rows = DefaultRows
	}
	return &Emulator{term: midterm.NewTerminal(rows, cols)}
}

// Write feeds output to the screen. Writes after Dispose are dropped.
func (e *Emulator) Write(data string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.disposed {
		return
	}
	_, _ = e.term.Write([]byte(data))
}

// Resize changes the screen size.
func (e *Emulator) Resize(cols, rows int) {
	if cols < 1 || rows < 1 {
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.disposed {
		return
	}
	e.term.Resize(rows, cols) // midterm uses (rows, cols)
	// Growing rows pads one row per cleared cell, so trim back to size.
	if e.term.Height != rows || len(e.term.Content) != rows {
		e.term.ResizeY(rows)
	}
}

// OnData registers the receiver of user input.
func (e *Emulator) OnData(fn func(string)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.onData = fn
}

// SetKeyHandler registers a handler that runs before key translation.
func (e *Emulator) SetKeyHandler(fn KeyHandler) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.onKey = fn
}

// HandleKey offers a key press to the key handler, then translates it to
// terminal input. It reports whether the key was consumed.
func (e *Emulator) HandleKey(key gocui.Key, ch rune, mod gocui.Modifier) bool {
	e.mu.Lock()
	onKey, onData, disposed := e.onKey, e.onData, e.disposed
	e.mu.Unlock()

	if disposed {
		return false
	}
	if onKey != nil && onKey(key, ch, mod) {
		return true
	}
	data, ok := KeyInput(key, ch, mod)
	if !ok {
		return false
	}
	if onData != nil {
		onData(data)
	}
	return true
}

// Render writes the screen contents with escape sequences to w.
func (e *Emulator) Render(w *strings.Builder) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.disposed || e.term.Height <= 0 || e.term.Width <= 0 {
		return nil
	}
	return e.term.Render(w)
}

// Cursor returns the cursor position.
func (e *Emulator) Cursor() (x, y int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.term.Cursor.X, e.term.Cursor.Y
}

// CursorVisible reports whether the running program shows the cursor.
func (e *Emulator) CursorVisible() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.term.CursorVisible
}

// Size returns the screen size.
func (e *Emulator) Size() (cols, rows int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.term.Width, e.term.Height
}

// Dispose detaches the emulator. Further writes and keys are ignored.
func (e *Emulator) Dispose() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.disposed = true
	e.onData = nil
	e.onKey = nil
}

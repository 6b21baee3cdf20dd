package input

import (
	"sync"
	"unicode/utf8"
)

// Handler manages mode state and input buffer for text input.
type Handler struct {
	mode        Mode
	purpose     Purpose
	inputBuffer string
	mu          sync.RWMutex
}

// NewHandler creates a new input handler in normal mode.
func NewHandler() *Handler {
	return &Handler{
		mode: ModeNormal,
	}
}

// Mode returns the current input mode.
func (h *Handler) Mode() Mode {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.mode
}

// SetMode changes the current input mode.
func (h *Handler) SetMode(mode Mode) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.mode = mode
}

// EnterTerminalMode switches to terminal mode.
func (h *Handler) EnterTerminalMode() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.mode = ModeTerminal
}

// EnterNormalMode switches to normal mode.
func (h *Handler) EnterNormalMode() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.mode = ModeNormal
}

// EnterInputMode switches to input mode for purpose and clears the buffer.
func (h *Handler) EnterInputMode(purpose Purpose) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.mode = ModeInput
	h.purpose = purpose
	h.inputBuffer = ""
}

// ExitInputMode exits input mode, returns to normal, and clears buffer.
func (h *Handler) ExitInputMode() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.mode = ModeNormal
	h.purpose = PurposeNone
	h.inputBuffer = ""
}

// Purpose returns what the open prompt collects.
func (h *Handler) Purpose() Purpose {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.purpose
}

// InputBuffer returns the current input buffer contents.
func (h *Handler) InputBuffer() string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.inputBuffer
}

// SetInputBuffer sets the input buffer contents.
func (h *Handler) SetInputBuffer(s string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.inputBuffer = s
}

// AppendToInputBuffer adds a character to the input buffer.
func (h *Handler) AppendToInputBuffer(ch rune) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.inputBuffer += string(ch)
}

// BackspaceInputBuffer removes the last character from the buffer.
func (h *Handler) BackspaceInputBuffer() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.inputBuffer) > 0 {
		_, size := utf8.DecodeLastRuneInString(h.inputBuffer)
		h.inputBuffer = h.inputBuffer[:len(h.inputBuffer)-size]
	}
}

// ConsumeInputBuffer returns the buffer and the prompt purpose, then
// returns to normal mode.
func (h *Handler) ConsumeInputBuffer() (string, Purpose) {
	h.mu.Lock()
	defer h.mu.Unlock()
	result, purpose := h.inputBuffer, h.purpose
	h.inputBuffer = ""
	h.purpose = PurposeNone
	h.mode = ModeNormal
	return result, purpose
}

// Package ui provides gocui view management and rendering utilities.
package ui

import (
	"fmt"
	"strings"

	"github.com/jesseduffield/gocui"

	"github.com/abdullathedruid/termdeck/internal/input"
	"github.com/abdullathedruid/termdeck/internal/surface"
	"github.com/abdullathedruid/termdeck/internal/workspace"
)

var (
	heavyFrame = []rune{'━', '┃', '┏', '┓', '┗', '┛'}
	lightFrame = []rune{'─', '│', '┌', '┐', '└', '┘'}
)

// RenderTerminal renders an emulator's screen to a gocui view.
// Recovers from panics that can occur during resize race conditions.
func RenderTerminal(v *gocui.View, term *surface.Emulator) {
	// Recover from panics during resize race conditions
	defer func() {
		if r := recover(); r != nil {
			// Silently ignore - will redraw on next update
		}
	}()

	var sb strings.Builder
	if err := term.Render(&sb); err != nil {
		return
	}
	fmt.Fprint(v, sb.String())
}

// ConfigureSlotView styles the view of one workspace slot. The focused slot
// gets a heavy frame in the ring color.
func ConfigureSlotView(v *gocui.View, slot workspace.Slot, id workspace.ID, focused bool, mode input.Mode, ring gocui.Attribute) {
	name := string(id)
	if name == "" {
		name = "…"
	}
	if focused {
		v.Title = fmt.Sprintf(" [%s] %s: %s ", mode.String(), slot, name)
		v.FrameRunes = heavyFrame
		v.FrameColor = ring
	} else {
		v.Title = fmt.Sprintf(" %s: %s ", slot, name)
		v.FrameRunes = lightFrame
		v.FrameColor = gocui.ColorDefault
	}
	v.Frame = true
	v.Wrap = false
	v.Editable = mode.IsTerminal() && focused
}

// ConfigureSidebarView styles the session list.
func ConfigureSidebarView(v *gocui.View, ring gocui.Attribute) {
	v.Title = " Sessions "
	v.Frame = true
	v.FrameRunes = lightFrame
	v.FrameColor = ring
	v.Wrap = false
	v.Editable = false
}

// ConfigureInputModal sets up the input modal view.
func ConfigureInputModal(v *gocui.View, purpose input.Purpose, inputBuffer string) {
	v.Title = fmt.Sprintf(" %s (Enter=confirm, Esc=cancel) ", purpose.Title())
	v.Frame = true
	v.FrameRunes = heavyFrame
	v.FrameColor = gocui.ColorYellow
	v.Editable = true
	v.Clear()
	fmt.Fprintf(v, " %s", inputBuffer)
}

// ModalDimensions calculates centered modal dimensions.
func ModalDimensions(maxX, maxY, width, height int) (x0, y0, x1, y1 int) {
	x0 = (maxX - width) / 2
	y0 = (maxY - height) / 2
	x1 = x0 + width
	y1 = y0 + height
	return
}

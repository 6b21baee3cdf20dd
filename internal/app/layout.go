package app

import (
	"errors"
	"fmt"

	"github.com/jesseduffield/gocui"
	"go.uber.org/zap"

	"github.com/abdullathedruid/termdeck/internal/catalog"
	"github.com/abdullathedruid/termdeck/internal/surface"
	"github.com/abdullathedruid/termdeck/internal/ui"
	"github.com/abdullathedruid/termdeck/internal/version"
	"github.com/abdullathedruid/termdeck/internal/workspace"
)

const (
	sidebarView    = "sidebar"
	statusView     = "status"
	inputModalView = "input-modal"
)

func slotView(slot workspace.Slot) string {
	return "slot-" + string(slot)
}

// termView is the widget mounted in a slot. Every write schedules a redraw.
type termView struct {
	*surface.Emulator
	redraw func()
}

func (t *termView) Write(data string) {
	t.Emulator.Write(data)
	t.redraw()
}

func (a *App) newWidget(cols, rows int) surface.Widget {
	return &termView{Emulator: surface.NewEmulator(cols, rows), redraw: a.redraw}
}

// emulatorOf returns the emulator behind a mounted surface, or nil.
func emulatorOf(s *surface.Surface) *surface.Emulator {
	if s == nil {
		return nil
	}
	switch w := s.Widget().(type) {
	case *termView:
		return w.Emulator
	case *surface.Emulator:
		return w
	}
	return nil
}

// measurer reports the interior size of a slot from the last layout pass.
func (a *App) measurer(slot workspace.Slot) surface.Measurer {
	return surface.MeasureFunc(func() (int, int, error) {
		a.mu.RLock()
		defer a.mu.RUnlock()
		l, ok := a.screen.Slots[slot]
		if !ok {
			return 0, 0, surface.ErrNotMeasurable
		}
		return l.Width(), l.Height(), nil
	})
}

func isUnknownView(err error) bool {
	return errors.Is(err, gocui.ErrUnknownView) || err.Error() == "unknown view"
}

// setView creates or moves a view, tolerating the creation error.
func setView(g *gocui.Gui, name string, l surface.Layout) (*gocui.View, error) {
	v, err := g.SetView(name, l.X0, l.Y0, l.X1, l.Y1, 0)
	if err != nil && !isUnknownView(err) {
		return nil, err
	}
	return v, nil
}

// layout is the gocui manager function that arranges views.
func (a *App) layout(g *gocui.Gui) error {
	maxX, maxY := g.Size()
	scr := surface.CalculateScreen(maxX, maxY)

	a.mu.Lock()
	resized := !sameScreen(a.screen, scr)
	if resized {
		a.screen = scr
	}
	cfg := a.cfg
	current := a.current
	entries := a.entries
	cursor := a.cursor
	message := a.message
	a.mu.Unlock()
	if resized {
		a.surfaces.ObserveResize()
	}

	mode := a.input.Mode()
	colors := cfg.Theme.Colors
	ring := ui.RingColor(current.Color, colors.FocusRing)
	focused := a.surfaces.FocusedSlot()

	// Sidebar
	v, err := setView(g, sidebarView, scr.Sidebar)
	if err != nil {
		return err
	}
	ui.ConfigureSidebarView(v, ring)
	v.Editable = mode.IsNormal()
	v.Editor = gocui.EditorFunc(a.normalEditor)
	v.Clear()
	for _, line := range ui.RenderSidebar(sidebarEntries(entries, current, cursor), scr.Sidebar.Width(), colors.Ready) {
		fmt.Fprintln(v, line)
	}

	// Slots
	for _, slot := range workspace.Slots() {
		v, err := setView(g, slotView(slot), scr.Slots[slot])
		if err != nil {
			return err
		}
		s := a.surfaces.Get(slot)
		var id workspace.ID
		if s != nil {
			id = s.ID()
		}
		ui.ConfigureSlotView(v, slot, id, slot == focused, mode, ring)
		v.Editor = gocui.EditorFunc(a.terminalEditor)
		v.Clear()
		if em := emulatorOf(s); em != nil {
			ui.RenderTerminal(v, em)
		}
	}

	// Status bar
	v, err = setView(g, statusView, scr.Status)
	if err != nil {
		return err
	}
	v.Frame = false
	v.BgColor = ui.ColorAttribute(colors.StatusBarBg, gocui.ColorBlue)
	v.FgColor = ui.ColorAttribute(colors.StatusBarFg, gocui.ColorWhite)
	v.Clear()
	fmt.Fprint(v, ui.RenderStatusBar(ui.StatusInfo{
		Mode:      mode.String(),
		Selection: current.String(),
		Focus:     string(focused),
		Sessions:  len(entries),
		Ready:     countReady(entries),
		Message:   message,
		Help:      a.helpLine(),
		Version:   version.Short(),
	}, maxX))

	// Input modal and keyboard focus
	if mode.IsInput() {
		x0, y0, x1, y1 := ui.ModalDimensions(maxX, maxY, 50, 3)
		v, err := g.SetView(inputModalView, x0, y0, x1, y1, 0)
		if err != nil && !isUnknownView(err) {
			return err
		}
		buf := a.input.InputBuffer()
		ui.ConfigureInputModal(v, a.input.Purpose(), buf)
		v.Editor = gocui.EditorFunc(a.inputEditor)
		if _, err := g.SetCurrentView(inputModalView); err != nil {
			return err
		}
		g.Cursor = true
		v.SetCursor(len([]rune(buf))+1, 0)
		return nil
	}

	g.DeleteView(inputModalView)
	if mode.IsTerminal() {
		em := emulatorOf(a.surfaces.Focused())
		if _, err := g.SetCurrentView(slotView(focused)); err != nil {
			return err
		}
		if em == nil {
			g.Cursor = false
			return nil
		}
		if v, err := g.View(slotView(focused)); err == nil {
			x, y := em.Cursor()
			v.SetCursor(x, y)
		}
		g.Cursor = em.CursorVisible()
		return nil
	}

	if _, err := g.SetCurrentView(sidebarView); err != nil {
		return err
	}
	g.Cursor = false
	return nil
}

func sameScreen(a, b surface.Screen) bool {
	if a.Sidebar != b.Sidebar || a.Status != b.Status || len(a.Slots) != len(b.Slots) {
		return false
	}
	for slot, l := range a.Slots {
		if b.Slots[slot] != l {
			return false
		}
	}
	return true
}

func (a *App) helpLine() string {
	km := a.keymap()
	return fmt.Sprintf("%s/%s:nav %s:open %s:orch %s:attach %s:detach %s:new %s:ready %s:quit",
		km.navDown, km.navUp, km.sel, km.orchestrator, km.attach, km.detach, km.newSession, km.markReady, km.quit)
}

// sidebarEntries lists the orchestrator followed by every catalog session.
func sidebarEntries(entries []catalog.Entry, current workspace.Selection, cursor int) []ui.SidebarEntry {
	out := make([]ui.SidebarEntry, 0, len(entries)+1)
	out = append(out, ui.SidebarEntry{
		Label:        "orchestrator",
		Orchestrator: true,
		Selected:     cursor == 0,
		Active:       current.IsOrchestrator(),
	})
	for i, e := range entries {
		out = append(out, ui.SidebarEntry{
			Label:    e.Name,
			Color:    e.Color,
			Ready:    e.Ready,
			Selected: cursor == i+1,
			Active:   !current.IsOrchestrator() && current.Name == e.Name,
		})
	}
	return out
}

func countReady(entries []catalog.Entry) int {
	n := 0
	for _, e := range entries {
		if e.Ready {
			n++
		}
	}
	return n
}

// moveCursor moves the sidebar cursor by delta, clamped to the rows.
func (a *App) moveCursor(delta int) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.cursor = clampCursor(a.cursor+delta, len(a.entries)+1)
}

func clampCursor(c, rows int) int {
	if c >= rows {
		c = rows - 1
	}
	if c < 0 {
		c = 0
	}
	return c
}

// cursorSelection returns the selection under the sidebar cursor.
func (a *App) cursorSelection() (workspace.Selection, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.cursor == 0 {
		return workspace.Orchestrator(), true
	}
	if a.cursor-1 < len(a.entries) {
		return a.entries[a.cursor-1].Selection(), true
	}
	return workspace.Selection{}, false
}

// cursorEntry returns the catalog entry under the cursor. The orchestrator
// row has none.
func (a *App) cursorEntry() (catalog.Entry, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.cursor == 0 || a.cursor-1 >= len(a.entries) {
		return catalog.Entry{}, false
	}
	return a.entries[a.cursor-1], true
}

// refreshEntries reloads the session list from the catalog.
func (a *App) refreshEntries() {
	entries, err := a.catalog.List(a.ctx)
	if err != nil {
		a.log.Warn("list sessions failed", zap.Error(err))
		return
	}
	a.mu.Lock()
	a.entries = entries
	a.cursor = clampCursor(a.cursor, len(entries)+1)
	a.mu.Unlock()
	a.redraw()
}

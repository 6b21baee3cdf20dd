package app

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/jesseduffield/gocui"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abdullathedruid/termdeck/internal/catalog"
	"github.com/abdullathedruid/termdeck/internal/config"
	"github.com/abdullathedruid/termdeck/internal/host/hosttest"
	"github.com/abdullathedruid/termdeck/internal/input"
	"github.com/abdullathedruid/termdeck/internal/surface"
	"github.com/abdullathedruid/termdeck/internal/workspace"
)

const waitFor = 2 * time.Second

func newTestApp(t *testing.T) (*App, *catalog.Store) {
	t.Helper()
	ctx := context.Background()
	store, err := catalog.Open(ctx, filepath.Join(t.TempDir(), "catalog.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	a, err := New(ctx, Options{
		Config:  config.Default(),
		Backend: hosttest.New(),
		Catalog: store,
	})
	require.NoError(t, err)
	t.Cleanup(a.Close)
	return a, store
}

func nextSelection(t *testing.T, a *App) workspace.Selection {
	t.Helper()
	select {
	case sel := <-a.selections:
		return sel
	case <-time.After(waitFor):
		t.Fatal("no selection submitted")
		return workspace.Selection{}
	}
}

func TestNewRequiresCollaborators(t *testing.T) {
	_, err := New(context.Background(), Options{Config: config.Default()})
	assert.Error(t, err)
}

func TestChordsFor(t *testing.T) {
	chords := chordsFor(config.DefaultKeyBindings())
	assert.Equal(t, []surface.Chord{
		{Name: chordNewSession, Key: gocui.KeyCtrlN},
		{Name: chordMarkReady, Key: gocui.KeyCtrlR},
		{Name: chordDetach, Key: gocui.KeyCtrlG},
	}, chords)

	kb := config.DefaultKeyBindings()
	kb.MarkReady = "bogus+key"
	kb.Detach = "D"
	chords = chordsFor(kb)
	require.Len(t, chords, 2)
	assert.Equal(t, surface.Chord{Name: chordDetach, Ch: 'D'}, chords[1])

	kb = config.DefaultKeyBindings()
	kb.MarkReady = "alt+r"
	chords = chordsFor(kb)
	require.Len(t, chords, 3)
	assert.Equal(t, surface.Chord{Name: chordMarkReady, Ch: 'r', Mod: gocui.ModAlt}, chords[1])
}

func TestHelpLineShowsBindings(t *testing.T) {
	a, _ := newTestApp(t)
	help := a.helpLine()
	assert.Contains(t, help, "enter:open")
	assert.Contains(t, help, "ctrl+g:detach")
	assert.Contains(t, help, "ctrl+n:new")

	cfg := config.Default()
	cfg.Keys.Detach = "Alt+D"
	cfg.Keys.Select = "Escape"
	a.onConfig(cfg, nil)
	help = a.helpLine()
	assert.Contains(t, help, "alt+D:detach")
	assert.Contains(t, help, "esc:open")
}

func TestSidebarEntries(t *testing.T) {
	entries := []catalog.Entry{
		{Name: "alpha", Color: "blue"},
		{Name: "beta", Ready: true},
	}

	rows := sidebarEntries(entries, workspace.Session("beta"), 1)
	require.Len(t, rows, 3)
	assert.True(t, rows[0].Orchestrator)
	assert.False(t, rows[0].Active)
	assert.True(t, rows[1].Selected)
	assert.Equal(t, "blue", rows[1].Color)
	assert.True(t, rows[2].Active)
	assert.True(t, rows[2].Ready)
	assert.Equal(t, 1, countReady(entries))

	rows = sidebarEntries(nil, workspace.Orchestrator(), 0)
	require.Len(t, rows, 1)
	assert.True(t, rows[0].Active)
	assert.True(t, rows[0].Selected)
}

func TestClampCursor(t *testing.T) {
	assert.Equal(t, 0, clampCursor(-1, 3))
	assert.Equal(t, 2, clampCursor(5, 3))
	assert.Equal(t, 1, clampCursor(1, 3))
	assert.Equal(t, 0, clampCursor(4, 1))
}

func TestSameScreen(t *testing.T) {
	a := surface.CalculateScreen(100, 50)
	assert.True(t, sameScreen(a, surface.CalculateScreen(100, 50)))
	assert.False(t, sameScreen(a, surface.CalculateScreen(120, 50)))
	assert.False(t, sameScreen(surface.Screen{}, a))
}

func TestMeasurerWaitsForLayout(t *testing.T) {
	a, _ := newTestApp(t)
	m := a.measurer(workspace.SlotTop)

	_, _, err := m.Measure()
	assert.ErrorIs(t, err, surface.ErrNotMeasurable)

	a.mu.Lock()
	a.screen = surface.CalculateScreen(100, 50)
	a.mu.Unlock()
	cols, rows, err := m.Measure()
	require.NoError(t, err)
	assert.Equal(t, 47, cols)
	assert.Equal(t, 26, rows)
}

func TestEmulatorOf(t *testing.T) {
	assert.Nil(t, emulatorOf(nil))

	a, _ := newTestApp(t)
	w := a.newWidget(80, 24)
	tv, ok := w.(*termView)
	require.True(t, ok)

	redraws := 0
	tv.redraw = func() { redraws++ }
	tv.Write("hi")
	assert.Equal(t, 1, redraws)
}

func TestNormalEditorNavigation(t *testing.T) {
	a, store := newTestApp(t)
	ctx := context.Background()
	require.NoError(t, store.Upsert(ctx, catalog.Entry{Name: "alpha", Color: "green"}))
	a.refreshEntries()

	assert.True(t, a.normalEditor(nil, 0, 'j', gocui.ModNone))
	assert.True(t, a.normalEditor(nil, 0, 'j', gocui.ModNone))
	sel, ok := a.cursorSelection()
	require.True(t, ok)
	assert.Equal(t, workspace.Session("alpha").WithColor("green"), sel)

	assert.True(t, a.normalEditor(nil, gocui.KeyEnter, 0, gocui.ModNone))
	assert.Equal(t, sel, nextSelection(t, a))

	assert.True(t, a.normalEditor(nil, 0, 'o', gocui.ModNone))
	assert.Equal(t, workspace.Orchestrator(), nextSelection(t, a))

	assert.True(t, a.normalEditor(nil, 0, 'k', gocui.ModNone))
	sel, _ = a.cursorSelection()
	assert.True(t, sel.IsOrchestrator())

	assert.False(t, a.normalEditor(nil, 0, 'z', gocui.ModNone))
}

func TestNormalEditorFocusAndAttach(t *testing.T) {
	a, _ := newTestApp(t)

	assert.Equal(t, workspace.SlotTop, a.surfaces.FocusedSlot())
	a.normalEditor(nil, 0, 'l', gocui.ModNone)
	assert.Equal(t, workspace.SlotBottom, a.surfaces.FocusedSlot())
	a.normalEditor(nil, 0, 'h', gocui.ModNone)
	a.normalEditor(nil, 0, 'h', gocui.ModNone)
	assert.Equal(t, workspace.SlotRight, a.surfaces.FocusedSlot())

	// Nothing mounted, so attaching is refused.
	a.normalEditor(nil, 0, 'i', gocui.ModNone)
	assert.Equal(t, input.ModeNormal, a.input.Mode())

	// Ignored outside normal mode.
	a.input.EnterTerminalMode()
	assert.False(t, a.normalEditor(nil, 0, 'j', gocui.ModNone))
}

func TestTerminalEditorDetachWithoutSurface(t *testing.T) {
	a, _ := newTestApp(t)
	a.input.EnterTerminalMode()

	assert.False(t, a.terminalEditor(nil, 0, 'x', gocui.ModNone))
	assert.True(t, a.terminalEditor(nil, gocui.KeyCtrlG, 0, gocui.ModNone))
	assert.Equal(t, input.ModeNormal, a.input.Mode())
}

func TestNewSessionPrompt(t *testing.T) {
	a, store := newTestApp(t)

	a.onChord(surface.Chord{Name: chordNewSession}, "orchestrator-top")
	require.Equal(t, input.ModeInput, a.input.Mode())
	require.Equal(t, input.PurposeNewSession, a.input.Purpose())

	for _, ch := range "feat-x" {
		a.inputEditor(nil, 0, ch, gocui.ModNone)
	}
	a.inputEditor(nil, 0, 'y', gocui.ModNone)
	a.inputEditor(nil, gocui.KeyBackspace2, 0, gocui.ModNone)
	a.inputEditor(nil, gocui.KeyEnter, 0, gocui.ModNone)
	assert.Equal(t, input.ModeNormal, a.input.Mode())

	sel := nextSelection(t, a)
	assert.Equal(t, "feat-x", sel.Name)
	assert.Equal(t, sessionColors[0], sel.Color)

	e, err := store.Get(context.Background(), "feat-x")
	require.NoError(t, err)
	assert.Equal(t, sessionColors[0], e.Color)
}

func TestNewSessionPromptRejectsInvalidName(t *testing.T) {
	a, store := newTestApp(t)

	a.input.EnterInputMode(input.PurposeNewSession)
	a.input.SetInputBuffer("bad:name")
	a.inputEditor(nil, gocui.KeyEnter, 0, gocui.ModNone)

	a.mu.RLock()
	msg := a.message
	a.mu.RUnlock()
	assert.NotEmpty(t, msg)
	entries, err := store.List(context.Background())
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestMarkReadyChord(t *testing.T) {
	a, store := newTestApp(t)
	ctx := context.Background()
	require.NoError(t, store.Upsert(ctx, catalog.Entry{Name: "alpha"}))

	a.onChord(surface.Chord{Name: chordMarkReady}, "session-alpha-bottom")
	require.Eventually(t, func() bool {
		e, err := store.Get(ctx, "alpha")
		return err == nil && e.Ready
	}, waitFor, time.Millisecond)

	// The orchestrator has no ready flag.
	a.onChord(surface.Chord{Name: chordMarkReady}, "orchestrator-top")
	a.onChord(surface.Chord{Name: chordDetach}, "orchestrator-top")
	assert.Equal(t, input.ModeNormal, a.input.Mode())
}

func TestDeleteConfirmation(t *testing.T) {
	a, store := newTestApp(t)
	ctx := context.Background()
	require.NoError(t, store.Upsert(ctx, catalog.Entry{Name: "alpha"}))
	a.refreshEntries()
	a.moveCursor(1)

	a.normalEditor(nil, 0, 'x', gocui.ModNone)
	require.Equal(t, input.PurposeConfirmDelete, a.input.Purpose())
	a.inputEditor(nil, 0, 'n', gocui.ModNone)
	assert.Equal(t, input.ModeNormal, a.input.Mode())
	_, err := store.Get(ctx, "alpha")
	require.NoError(t, err)

	a.normalEditor(nil, 0, 'x', gocui.ModNone)
	a.inputEditor(nil, 0, 'y', gocui.ModNone)
	require.Eventually(t, func() bool {
		_, err := store.Get(ctx, "alpha")
		return errors.Is(err, catalog.ErrNotFound)
	}, waitFor, time.Millisecond)
}

func TestOnConfigAppliesKeys(t *testing.T) {
	a, _ := newTestApp(t)

	cfg := config.Default()
	cfg.Keys.NavDown = "n"
	a.onConfig(cfg, nil)
	assert.True(t, a.keymap().navDown.Matches(0, 'n', gocui.ModNone))

	a.onConfig(nil, errors.New("broken yaml"))
	assert.True(t, a.keymap().navDown.Matches(0, 'n', gocui.ModNone))
	a.mu.RLock()
	defer a.mu.RUnlock()
	assert.Contains(t, a.message, "broken yaml")
}

package app

import (
	"errors"
	"fmt"
	"strings"

	"github.com/jesseduffield/gocui"
	"go.uber.org/zap"

	"github.com/abdullathedruid/termdeck/internal/catalog"
	"github.com/abdullathedruid/termdeck/internal/config"
	"github.com/abdullathedruid/termdeck/internal/input"
	"github.com/abdullathedruid/termdeck/internal/surface"
	"github.com/abdullathedruid/termdeck/internal/workspace"
)

// Chord names intercepted by terminal surfaces.
const (
	chordNewSession = "new-session"
	chordMarkReady  = "mark-ready"
	chordDetach     = "detach"
)

// keymap is the parsed form of config.KeyBindings. Unparseable bindings stay
// zero and never match.
type keymap struct {
	quit, navDown, navUp, sel, orchestrator config.Key
	attach, detach, focusNext, focusPrev    config.Key
	newSession, markReady, del              config.Key
}

func newKeymap(kb config.KeyBindings) keymap {
	parse := func(s string) config.Key {
		k, err := config.ParseKey(s)
		if err != nil {
			return config.Key{}
		}
		return k
	}
	return keymap{
		quit:         parse(kb.Quit),
		navDown:      parse(kb.NavDown),
		navUp:        parse(kb.NavUp),
		sel:          parse(kb.Select),
		orchestrator: parse(kb.Orchestrator),
		attach:       parse(kb.Attach),
		detach:       parse(kb.Detach),
		focusNext:    parse(kb.FocusNext),
		focusPrev:    parse(kb.FocusPrev),
		newSession:   parse(kb.NewSession),
		markReady:    parse(kb.MarkReady),
		del:          parse(kb.Delete),
	}
}

// chordsFor builds the chords terminal surfaces intercept.
func chordsFor(kb config.KeyBindings) []surface.Chord {
	var chords []surface.Chord
	for _, b := range []struct{ name, key string }{
		{chordNewSession, kb.NewSession},
		{chordMarkReady, kb.MarkReady},
		{chordDetach, kb.Detach},
	} {
		k, err := config.ParseKey(b.key)
		if err != nil {
			continue
		}
		chords = append(chords, surface.Chord{Name: b.name, Key: k.Code, Ch: k.Ch, Mod: k.Mod})
	}
	return chords
}

// onChord runs on the GUI goroutine when a focused surface intercepts a chord.
func (a *App) onChord(c surface.Chord, id workspace.ID) {
	switch c.Name {
	case chordDetach:
		a.input.EnterNormalMode()
	case chordNewSession:
		a.input.EnterInputMode(input.PurposeNewSession)
	case chordMarkReady:
		target, _, err := workspace.ParseID(id)
		if err != nil || target.IsOrchestrator() {
			return
		}
		go a.toggleReady(target.Name)
	}
	a.redraw()
}

// normalEditor handles navigation and commands while no terminal has input.
func (a *App) normalEditor(v *gocui.View, key gocui.Key, ch rune, mod gocui.Modifier) bool {
	if !a.input.Mode().IsNormal() {
		return false
	}
	km := a.keymap()
	switch {
	case km.quit.Matches(key, ch, mod):
		if g := a.gui.Load(); g != nil {
			g.Update(func(*gocui.Gui) error { return gocui.ErrQuit })
		}
	case km.navDown.Matches(key, ch, mod), key == gocui.KeyArrowDown && ch == 0:
		a.moveCursor(1)
	case km.navUp.Matches(key, ch, mod), key == gocui.KeyArrowUp && ch == 0:
		a.moveCursor(-1)
	case km.sel.Matches(key, ch, mod):
		if sel, ok := a.cursorSelection(); ok {
			go a.submit(sel)
		}
	case km.orchestrator.Matches(key, ch, mod):
		go a.submit(workspace.Orchestrator())
	case km.attach.Matches(key, ch, mod):
		if a.surfaces.Focused() != nil {
			a.input.EnterTerminalMode()
		}
	case km.focusNext.Matches(key, ch, mod), key == gocui.KeyArrowRight && ch == 0:
		a.surfaces.Next()
	case km.focusPrev.Matches(key, ch, mod), key == gocui.KeyArrowLeft && ch == 0:
		a.surfaces.Prev()
	case km.newSession.Matches(key, ch, mod):
		a.input.EnterInputMode(input.PurposeNewSession)
	case km.markReady.Matches(key, ch, mod):
		if e, ok := a.cursorEntry(); ok {
			go a.toggleReady(e.Name)
		}
	case km.del.Matches(key, ch, mod):
		if e, ok := a.cursorEntry(); ok {
			a.mu.Lock()
			a.pendingDelete = e.Name
			a.mu.Unlock()
			a.input.EnterInputMode(input.PurposeConfirmDelete)
		}
	default:
		return false
	}
	return true
}

// terminalEditor forwards key presses to the focused surface.
func (a *App) terminalEditor(v *gocui.View, key gocui.Key, ch rune, mod gocui.Modifier) bool {
	if !a.input.Mode().IsTerminal() {
		return false
	}
	em := emulatorOf(a.surfaces.Focused())
	if em == nil {
		if a.keymap().detach.Matches(key, ch, mod) {
			a.input.EnterNormalMode()
			return true
		}
		return false
	}
	return em.HandleKey(key, ch, mod)
}

// inputEditor edits the prompt buffer.
func (a *App) inputEditor(v *gocui.View, key gocui.Key, ch rune, mod gocui.Modifier) bool {
	if !a.input.Mode().IsInput() {
		return false
	}
	if a.input.Purpose() == input.PurposeConfirmDelete {
		switch {
		case ch == 'y' || ch == 'Y':
			a.input.SetInputBuffer("y")
			a.confirmPrompt()
		case ch == 'n' || ch == 'N' || key == gocui.KeyEsc:
			a.input.ExitInputMode()
		}
		return true
	}

	switch {
	case key == gocui.KeyEnter && ch == 0:
		a.confirmPrompt()
	case key == gocui.KeyEsc && ch == 0:
		a.input.ExitInputMode()
	case (key == gocui.KeyBackspace || key == gocui.KeyBackspace2) && ch == 0:
		a.input.BackspaceInputBuffer()
	case ch != 0 && mod == gocui.ModNone:
		a.input.AppendToInputBuffer(ch)
	case key == gocui.KeySpace:
		a.input.AppendToInputBuffer(' ')
	}
	return true
}

func (a *App) confirmPrompt() {
	text, purpose := a.input.ConsumeInputBuffer()
	switch purpose {
	case input.PurposeNewSession:
		name := strings.TrimSpace(text)
		if name == "" {
			return
		}
		if err := workspace.ValidateName(name); err != nil {
			a.setMessage(err.Error())
			return
		}
		go a.createSession(name)
	case input.PurposeConfirmDelete:
		a.mu.Lock()
		name := a.pendingDelete
		a.pendingDelete = ""
		a.mu.Unlock()
		if name != "" && text == "y" {
			go a.deleteSession(name)
		}
	}
}

// sessionColors are handed out to new sessions in turn.
var sessionColors = []string{"magenta", "yellow", "green", "blue", "red", "cyan"}

func (a *App) createSession(name string) {
	entry := catalog.Entry{Name: name}
	if existing, err := a.catalog.Get(a.ctx, name); err == nil {
		entry = existing
	} else {
		a.mu.RLock()
		entry.Color = sessionColors[len(a.entries)%len(sessionColors)]
		a.mu.RUnlock()
	}
	if err := a.catalog.Upsert(a.ctx, entry); err != nil {
		a.log.Error("store session failed", zap.String("session", name), zap.Error(err))
		a.setMessage("could not store session: " + err.Error())
		return
	}
	a.refreshEntries()
	a.submit(entry.Selection())
}

func (a *App) deleteSession(name string) {
	if err := a.catalog.Delete(a.ctx, name); err != nil && !errors.Is(err, catalog.ErrNotFound) {
		a.log.Error("delete session failed", zap.String("session", name), zap.Error(err))
		a.setMessage("could not delete session: " + err.Error())
		return
	}
	a.refreshEntries()
	a.setMessage(fmt.Sprintf("removed %s (terminals keep running)", name))
}

func (a *App) toggleReady(name string) {
	ready, err := a.catalog.ToggleReady(a.ctx, name)
	if err != nil {
		a.log.Warn("toggle ready failed", zap.String("session", name), zap.Error(err))
		a.setMessage("not in catalog: " + name)
		return
	}
	a.refreshEntries()
	state := "not ready"
	if ready {
		state = "ready"
	}
	a.setMessage(fmt.Sprintf("%s marked %s", name, state))
}

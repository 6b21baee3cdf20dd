package workspace

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidID is returned by ParseID for strings that are not terminal ids.
var ErrInvalidID = errors.New("invalid terminal id")

// Slot is one of the three fixed roles a workspace terminal plays.
type Slot string

const (
	// SlotTop hosts the interactive agent.
	SlotTop Slot = "top"
	// SlotBottom is a companion shell.
	SlotBottom Slot = "bottom"
	// SlotRight is a companion shell.
	SlotRight Slot = "right"
)

// Slots returns every slot in display order.
func Slots() []Slot {
	return []Slot{SlotTop, SlotBottom, SlotRight}
}

// Valid reports whether s is one of the known slots.
func (s Slot) Valid() bool {
	switch s {
	case SlotTop, SlotBottom, SlotRight:
		return true
	}
	return false
}

// ID is the opaque key of one backing terminal.
type ID string

const (
	orchestratorPrefix = "orchestrator-"
	sessionPrefix      = "session-"
)

// TerminalID derives the id of a target's terminal in the given slot.
func TerminalID(target Target, slot Slot) ID {
	if target.Kind == KindOrchestrator {
		return ID(orchestratorPrefix + string(slot))
	}
	return ID(sessionPrefix + target.Name + "-" + string(slot))
}

// ParseID inverts TerminalID.
func ParseID(id ID) (Target, Slot, error) {
	s := string(id)
	idx := strings.LastIndex(s, "-")
	if idx < 0 {
		return Target{}, "", fmt.Errorf("%w: %q", ErrInvalidID, s)
	}
	slot := Slot(s[idx+1:])
	if !slot.Valid() {
		return Target{}, "", fmt.Errorf("%w: %q has unknown slot", ErrInvalidID, s)
	}
	head := s[:idx+1]
	switch {
	case head == orchestratorPrefix:
		return Target{Kind: KindOrchestrator}, slot, nil
	case strings.HasPrefix(head, sessionPrefix) && len(head) > len(sessionPrefix)+1:
		name := head[len(sessionPrefix) : len(head)-1]
		return Target{Kind: KindSession, Name: name}, slot, nil
	}
	return Target{}, "", fmt.Errorf("%w: %q", ErrInvalidID, s)
}

// Terminals is the set of slot ids currently displayed.
type Terminals struct {
	Top    ID
	Bottom ID
	Right  ID
}

// ForSelection computes the terminal ids for a selection.
func ForSelection(sel Selection) Terminals {
	t := sel.Target()
	return Terminals{
		Top:    TerminalID(t, SlotTop),
		Bottom: TerminalID(t, SlotBottom),
		Right:  TerminalID(t, SlotRight),
	}
}

// Get returns the id in the given slot.
func (t Terminals) Get(slot Slot) ID {
	switch slot {
	case SlotTop:
		return t.Top
	case SlotBottom:
		return t.Bottom
	case SlotRight:
		return t.Right
	}
	return ""
}

// All returns the ids in slot order.
func (t Terminals) All() []ID {
	return []ID{t.Top, t.Bottom, t.Right}
}

// IsZero reports whether no terminals are set.
func (t Terminals) IsZero() bool {
	return t == Terminals{}
}

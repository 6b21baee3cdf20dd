// Package workspace defines the logical selection model and the terminal ids derived from it.
package workspace

import (
	"errors"
	"fmt"
	"strings"
	"unicode"
)

// ErrInvalidName is returned when a session name cannot be used to derive terminal ids.
var ErrInvalidName = errors.New("invalid session name")

// Kind distinguishes the orchestrator context from named sessions.
type Kind int

const (
	// KindOrchestrator is the main-repository context.
	KindOrchestrator Kind = iota
	// KindSession is a named session context.
	KindSession
)

// String returns the human-readable kind name.
func (k Kind) String() string {
	switch k {
	case KindOrchestrator:
		return "orchestrator"
	case KindSession:
		return "session"
	default:
		return "unknown"
	}
}

// Target identifies whose agent a start request is for.
// It is a Selection stripped of its display attributes.
type Target struct {
	Kind Kind
	Name string // empty for the orchestrator
}

// String renders the target for logs.
func (t Target) String() string {
	if t.Kind == KindOrchestrator {
		return "orchestrator"
	}
	return "session:" + t.Name
}

// IsOrchestrator reports whether the target is the orchestrator.
func (t Target) IsOrchestrator() bool {
	return t.Kind == KindOrchestrator
}

// Selection is the user's current logical choice. It is an immutable value,
// replaced wholesale on every user action.
type Selection struct {
	Kind  Kind
	Name  string
	Color string // optional display color for the focus ring
	Cwd   string // optional working-directory override
}

// Orchestrator returns the orchestrator selection.
func Orchestrator() Selection {
	return Selection{Kind: KindOrchestrator}
}

// Session returns a selection for the named session.
func Session(name string) Selection {
	return Selection{Kind: KindSession, Name: name}
}

// WithColor returns a copy of the selection carrying the given color.
func (s Selection) WithColor(color string) Selection {
	s.Color = color
	return s
}

// WithCwd returns a copy of the selection carrying a working-directory override.
func (s Selection) WithCwd(dir string) Selection {
	s.Cwd = dir
	return s
}

// IsOrchestrator reports whether the selection is the orchestrator.
func (s Selection) IsOrchestrator() bool {
	return s.Kind == KindOrchestrator
}

// Target returns the agent target for this selection.
func (s Selection) Target() Target {
	if s.Kind == KindOrchestrator {
		return Target{Kind: KindOrchestrator}
	}
	return Target{Kind: KindSession, Name: s.Name}
}

// String renders the selection for logs.
func (s Selection) String() string {
	return s.Target().String()
}

// Validate checks that the selection can be mapped to terminal ids.
func (s Selection) Validate() error {
	switch s.Kind {
	case KindOrchestrator:
		return nil
	case KindSession:
		return ValidateName(s.Name)
	default:
		return fmt.Errorf("unknown selection kind %d", s.Kind)
	}
}

// ValidateName checks a session name. Names become part of tmux session names,
// so they may not contain whitespace, control characters, '.' or ':'.
func ValidateName(name string) error {
	if name == "" {
		return fmt.Errorf("%w: empty", ErrInvalidName)
	}
	if strings.ContainsAny(name, ".:") {
		return fmt.Errorf("%w: %q contains '.' or ':'", ErrInvalidName, name)
	}
	for _, r := range name {
		if unicode.IsSpace(r) || unicode.IsControl(r) {
			return fmt.Errorf("%w: %q contains whitespace or control characters", ErrInvalidName, name)
		}
	}
	return nil
}

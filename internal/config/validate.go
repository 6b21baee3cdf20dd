package config

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"sort"
	"strings"

	"github.com/jesseduffield/gocui"
)

// Validate checks the whole configuration.
func (c *Config) Validate() error {
	var errs []error
	if strings.TrimSpace(c.AgentCommand) == "" {
		errs = append(errs, errors.New("agent_command must not be empty"))
	}
	if c.Timing.StartMaxAttempts < 1 {
		errs = append(errs, errors.New("timing.start_max_attempts must be at least 1"))
	}
	if err := ValidateKeys(&c.Keys); err != nil {
		errs = append(errs, err)
	}
	if err := ValidateChords(&c.Keys); err != nil {
		errs = append(errs, err)
	}
	for name, color := range map[string]string{
		"focus_ring":   c.Theme.Colors.FocusRing,
		"selection_bg": c.Theme.Colors.SelectionBg,
		"statusbar_bg": c.Theme.Colors.StatusBarBg,
	} {
		if color != "" && !ValidateColor(color) {
			errs = append(errs, fmt.Errorf("theme.colors.%s: unknown color %q", name, color))
		}
	}
	return errors.Join(errs...)
}

// ValidateKeys checks for duplicate keybindings and invalid key strings.
// Bindings are compared in canonical form, so "Ctrl+N" and "ctrl+n" collide.
func ValidateKeys(keys *KeyBindings) error {
	// Build a map of key -> action names for duplicate detection
	keyMap := make(map[string][]string)

	v := reflect.ValueOf(keys).Elem()
	t := v.Type()

	for i := 0; i < v.NumField(); i++ {
		field := v.Field(i)
		fieldName := t.Field(i).Name

		if field.Kind() != reflect.String {
			continue
		}

		keyStr := field.String()
		if keyStr == "" {
			continue
		}

		key, err := ParseKey(keyStr)
		if err != nil {
			return fmt.Errorf("invalid key for %s: %w", fieldName, err)
		}

		name := key.String()
		keyMap[name] = append(keyMap[name], fieldName)
	}

	var duplicates []string
	for key, actions := range keyMap {
		if len(actions) > 1 {
			duplicates = append(duplicates, fmt.Sprintf("key %q is used by: %s", key, strings.Join(actions, ", ")))
		}
	}
	sort.Strings(duplicates)

	if len(duplicates) > 0 {
		return fmt.Errorf("duplicate keybindings found:\n  %s", strings.Join(duplicates, "\n  "))
	}

	return nil
}

// ValidateChords checks that the keys intercepted while typing into a
// terminal are ctrl or alt combinations, so they never swallow ordinary text.
func ValidateChords(keys *KeyBindings) error {
	for _, c := range []struct{ name, key string }{
		{"new_session", keys.NewSession},
		{"mark_ready", keys.MarkReady},
		{"detach", keys.Detach},
	} {
		k, err := ParseKey(c.key)
		if err != nil {
			return fmt.Errorf("keys.%s: %w", c.name, err)
		}
		if !k.IsCtrl() && k.Mod != gocui.ModAlt {
			return fmt.Errorf("keys.%s must be a ctrl or alt combination, got %q", c.name, c.key)
		}
	}
	return nil
}

var hexColor = regexp.MustCompile(`^#[0-9a-fA-F]{6}$`)

// ValidateColor checks if a color string is a gocui color name or #rrggbb.
func ValidateColor(color string) bool {
	validColors := map[string]bool{
		"default": true,
		"black":   true,
		"red":     true,
		"green":   true,
		"yellow":  true,
		"blue":    true,
		"magenta": true,
		"cyan":    true,
		"white":   true,
	}
	return validColors[strings.ToLower(color)] || hexColor.MatchString(color)
}

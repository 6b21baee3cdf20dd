package config

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/jesseduffield/gocui"
)

// Key is a parsed key binding: either a rune (Ch) or a special key (Code),
// optionally with alt held.
type Key struct {
	Code gocui.Key
	Ch   rune
	Mod  gocui.Modifier
}

// ParseKey parses a binding such as "q", "N", "enter", "ctrl+n" or "alt+x".
// Names and the ctrl/alt prefixes are case insensitive; a single character
// keeps its case, so "N" is shift+n.
func ParseKey(s string) (Key, error) {
	trimmed := strings.TrimSpace(s)
	if trimmed == "" {
		return Key{}, fmt.Errorf("empty key string")
	}

	var mod gocui.Modifier
	if rest, ok := cutPrefixFold(trimmed, "alt+"); ok {
		mod = gocui.ModAlt
		trimmed = rest
	}

	if rest, ok := cutPrefixFold(trimmed, "ctrl+"); ok {
		code, ok := ctrlKey(strings.ToLower(rest))
		if !ok {
			return Key{}, fmt.Errorf("invalid ctrl combination: %s", s)
		}
		return Key{Code: code, Mod: mod}, nil
	}

	if code, ok := specialKeys[strings.ToLower(trimmed)]; ok {
		return Key{Code: code, Mod: mod}, nil
	}

	if r, size := utf8.DecodeRuneInString(trimmed); r != utf8.RuneError && size == len(trimmed) {
		return Key{Ch: r, Mod: mod}, nil
	}

	return Key{}, fmt.Errorf("unknown key: %s", s)
}

func cutPrefixFold(s, prefix string) (string, bool) {
	if len(s) > len(prefix) && strings.EqualFold(s[:len(prefix)], prefix) {
		return s[len(prefix):], true
	}
	return s, false
}

// ctrlKey maps the part after "ctrl+" to its gocui key.
func ctrlKey(s string) (gocui.Key, bool) {
	if s == "space" {
		return gocui.KeyCtrlSpace, true
	}
	if len(s) == 1 && s[0] >= 'a' && s[0] <= 'z' {
		return gocui.KeyCtrlA + gocui.Key(s[0]-'a'), true
	}
	return 0, false
}

// IsZero reports whether the key is unset.
func (k Key) IsZero() bool {
	return k.Code == 0 && k.Ch == 0
}

// IsRune reports whether the key is a character rather than a special key.
func (k Key) IsRune() bool {
	return k.Ch != 0
}

// IsCtrl reports whether the key is a ctrl combination.
func (k Key) IsCtrl() bool {
	return k.Ch == 0 && k.Code >= gocui.KeyCtrlSpace && k.Code <= gocui.KeyCtrlZ
}

// Matches reports whether a key press is this binding.
func (k Key) Matches(key gocui.Key, ch rune, mod gocui.Modifier) bool {
	if k.IsZero() || mod != k.Mod {
		return false
	}
	if k.IsRune() {
		return ch == k.Ch
	}
	return ch == 0 && key == k.Code
}

// String renders the key in the form ParseKey accepts. Unset keys render
// as "".
func (k Key) String() string {
	var name string
	switch {
	case k.IsRune():
		name = string(k.Ch)
	case k.Code == gocui.KeyCtrlSpace:
		name = "ctrl+space"
	case k.IsCtrl():
		name = "ctrl+" + string(rune('a'+k.Code-gocui.KeyCtrlA))
	default:
		name = specialNames[k.Code]
	}
	if name == "" {
		return ""
	}
	if k.Mod == gocui.ModAlt {
		name = "alt+" + name
	}
	return name
}

var specialKeys = map[string]gocui.Key{
	"enter":     gocui.KeyEnter,
	"space":     gocui.KeySpace,
	"esc":       gocui.KeyEsc,
	"escape":    gocui.KeyEsc,
	"tab":       gocui.KeyTab,
	"backspace": gocui.KeyBackspace2,
	"delete":    gocui.KeyDelete,
	"insert":    gocui.KeyInsert,
	"home":      gocui.KeyHome,
	"end":       gocui.KeyEnd,
	"pgup":      gocui.KeyPgup,
	"pageup":    gocui.KeyPgup,
	"pgdn":      gocui.KeyPgdn,
	"pagedown":  gocui.KeyPgdn,
	"up":        gocui.KeyArrowUp,
	"down":      gocui.KeyArrowDown,
	"left":      gocui.KeyArrowLeft,
	"right":     gocui.KeyArrowRight,
	"f1":        gocui.KeyF1,
	"f2":        gocui.KeyF2,
	"f3":        gocui.KeyF3,
	"f4":        gocui.KeyF4,
	"f5":        gocui.KeyF5,
	"f6":        gocui.KeyF6,
	"f7":        gocui.KeyF7,
	"f8":        gocui.KeyF8,
	"f9":        gocui.KeyF9,
	"f10":       gocui.KeyF10,
	"f11":       gocui.KeyF11,
	"f12":       gocui.KeyF12,
}

// specialNames is the canonical name of each special key. Aliases such as
// "escape" and "pageup" render as their short form.
var specialNames = func() map[gocui.Key]string {
	names := make(map[gocui.Key]string, len(specialKeys))
	for name, code := range specialKeys {
		if cur, ok := names[code]; !ok || len(name) < len(cur) {
			names[code] = name
		}
	}
	return names
}()

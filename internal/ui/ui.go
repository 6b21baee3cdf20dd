// Package ui provides shared UI components for termdeck.
package ui

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/jesseduffield/gocui"
	"github.com/mattn/go-runewidth"
)

// Colors and styles for the TUI
const (
	ColorReset   = "\033[0m"
	ColorBold    = "\033[1m"
	ColorDim     = "\033[2m"
	ColorRed     = "\033[31m"
	ColorGreen   = "\033[32m"
	ColorYellow  = "\033[33m"
	ColorBlue    = "\033[34m"
	ColorMagenta = "\033[35m"
	ColorCyan    = "\033[36m"
	ColorWhite   = "\033[37m"
)

var namedColors = map[string]struct {
	attr gocui.Attribute
	ansi string
}{
	"black":   {gocui.ColorBlack, "\033[30m"},
	"red":     {gocui.ColorRed, ColorRed},
	"green":   {gocui.ColorGreen, ColorGreen},
	"yellow":  {gocui.ColorYellow, ColorYellow},
	"blue":    {gocui.ColorBlue, ColorBlue},
	"magenta": {gocui.ColorMagenta, ColorMagenta},
	"cyan":    {gocui.ColorCyan, ColorCyan},
	"white":   {gocui.ColorWhite, ColorWhite},
}

// parseHex reads "#rrggbb".
func parseHex(s string) (r, g, b int32, ok bool) {
	if len(s) != 7 || s[0] != '#' {
		return 0, 0, 0, false
	}
	v, err := strconv.ParseUint(s[1:], 16, 32)
	if err != nil {
		return 0, 0, 0, false
	}
	return int32(v >> 16 & 0xff), int32(v >> 8 & 0xff), int32(v & 0xff), true
}

// ColorAttribute converts a color name or "#rrggbb" to a gocui attribute.
// Unknown colors fall back to def.
func ColorAttribute(name string, def gocui.Attribute) gocui.Attribute {
	name = strings.ToLower(strings.TrimSpace(name))
	if c, ok := namedColors[name]; ok {
		return c.attr
	}
	if r, g, b, ok := parseHex(name); ok {
		return gocui.NewRGBColor(r, g, b)
	}
	return def
}

// ANSIColor returns the escape sequence for a color name or "#rrggbb",
// or "" when the color is unknown.
func ANSIColor(name string) string {
	name = strings.ToLower(strings.TrimSpace(name))
	if c, ok := namedColors[name]; ok {
		return c.ansi
	}
	if r, g, b, ok := parseHex(name); ok {
		return fmt.Sprintf("\033[38;2;%d;%d;%dm", r, g, b)
	}
	return ""
}

// RingColor is the focus ring color for a selection. Sessions with a
// color of their own use it; everything else uses the theme color.
func RingColor(selectionColor, themeColor string) gocui.Attribute {
	theme := ColorAttribute(themeColor, gocui.ColorCyan)
	if selectionColor == "" {
		return theme
	}
	return ColorAttribute(selectionColor, theme)
}

// ReadyIcon returns the sidebar marker for a session's ready flag.
func ReadyIcon(ready bool) string {
	if ready {
		return "●"
	}
	return "○"
}

// SidebarEntry is one row of the session list.
type SidebarEntry struct {
	Label        string
	Color        string
	Ready        bool
	Orchestrator bool
	Selected     bool // row under the cursor
	Active       bool // row currently displayed
}

// RenderSidebar renders the session list, one string per row.
func RenderSidebar(entries []SidebarEntry, width int, readyColor string) []string {
	lines := make([]string, 0, len(entries))
	for _, e := range entries {
		icon := ReadyIcon(e.Ready)
		iconColor := ""
		if e.Orchestrator {
			icon = "◆"
		} else if e.Ready {
			iconColor = ANSIColor(readyColor)
		}

		cursor := " "
		if e.Selected {
			cursor = "›"
		}
		label := truncate(e.Label, max(1, width-4))

		var sb strings.Builder
		sb.WriteString(cursor)
		if iconColor != "" {
			sb.WriteString(iconColor + icon + ColorReset)
		} else {
			sb.WriteString(icon)
		}
		sb.WriteString(" ")
		if c := ANSIColor(e.Color); c != "" {
			sb.WriteString(c)
		}
		if e.Active {
			sb.WriteString(ColorBold)
		}
		sb.WriteString(label)
		if e.Active || ANSIColor(e.Color) != "" {
			sb.WriteString(ColorReset)
		}
		lines = append(lines, sb.String())
	}
	return lines
}

// StatusInfo is what the status bar shows.
type StatusInfo struct {
	Mode      string
	Selection string
	Focus     string
	Sessions  int
	Ready     int
	Message   string
	Help      string
	Version   string
}

// RenderStatusBar creates the bottom status bar content, fitted to width.
func RenderStatusBar(info StatusInfo, width int) string {
	left := fmt.Sprintf(" [%s] %s │ focus:%s │ %d sessions │ %d ready", info.Mode, info.Selection, info.Focus, info.Sessions, info.Ready)
	if info.Message != "" {
		left += " │ " + info.Message
	}
	right := info.Help
	if info.Version != "" {
		right += "  " + info.Version
	}

	if width <= 0 {
		return left
	}
	lw := runewidth.StringWidth(left)
	rw := runewidth.StringWidth(right)
	if lw+rw+2 > width {
		return PadRight(truncate(left, width), width)
	}
	return left + strings.Repeat(" ", width-lw-rw) + right
}

// Truncate shortens a string to fit in the given width.
func Truncate(s string, width int) string {
	return truncate(s, width)
}

// truncate is the internal version of Truncate.
func truncate(s string, width int) string {
	if runewidth.StringWidth(s) <= width {
		return s
	}
	if width <= 3 {
		return runewidth.Truncate(s, width, "")
	}
	return runewidth.Truncate(s, width, "...")
}

// PadRight pads a string to the right.
func PadRight(s string, width int) string {
	sw := runewidth.StringWidth(s)
	if sw >= width {
		return runewidth.Truncate(s, width, "")
	}
	return s + strings.Repeat(" ", width-sw)
}

// Center centers a string in the given width.
func Center(s string, width int) string {
	sw := runewidth.StringWidth(s)
	if sw >= width {
		return runewidth.Truncate(s, width, "")
	}
	padding := (width - sw) / 2
	return strings.Repeat(" ", padding) + s + strings.Repeat(" ", width-sw-padding)
}

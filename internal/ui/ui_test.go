package ui

import (
	"strings"
	"testing"

	"github.com/jesseduffield/gocui"
	"github.com/mattn/go-runewidth"
)

func TestTruncate(t *testing.T) {
	tests := []struct {
		s     string
		width int
		want  string
	}{
		{"short", 10, "short"},
		{"exactly10!", 10, "exactly10!"},
		{"this is too long", 10, "this is..."},
		{"ab", 3, "ab"},
		{"abcd", 3, "abc"},
		{"", 5, ""},
	}

	for _, tt := range tests {
		got := truncate(tt.s, tt.width)
		if got != tt.want {
			t.Errorf("truncate(%q, %d) = %q, want %q", tt.s, tt.width, got, tt.want)
		}
	}
}

func TestPadRight(t *testing.T) {
	tests := []struct {
		s     string
		width int
		want  string
	}{
		{"test", 8, "test    "},
		{"test", 4, "test"},
		{"test", 2, "te"},
		{"", 3, "   "},
	}

	for _, tt := range tests {
		got := PadRight(tt.s, tt.width)
		if got != tt.want {
			t.Errorf("PadRight(%q, %d) = %q, want %q", tt.s, tt.width, got, tt.want)
		}
	}
}

func TestCenter(t *testing.T) {
	tests := []struct {
		s     string
		width int
		want  string
	}{
		{"test", 8, "  test  "},
		{"test", 4, "test"},
		{"ab", 5, " ab  "},
		{"", 4, "    "},
	}

	for _, tt := range tests {
		got := Center(tt.s, tt.width)
		if got != tt.want {
			t.Errorf("Center(%q, %d) = %q, want %q", tt.s, tt.width, got, tt.want)
		}
	}
}

func TestColorAttribute(t *testing.T) {
	tests := []struct {
		name string
		want gocui.Attribute
	}{
		{"green", gocui.ColorGreen},
		{" Magenta ", gocui.ColorMagenta},
		{"#ff8800", gocui.NewRGBColor(0xff, 0x88, 0x00)},
		{"chartreuse", gocui.ColorDefault},
		{"#zzzzzz", gocui.ColorDefault},
		{"", gocui.ColorDefault},
	}

	for _, tt := range tests {
		if got := ColorAttribute(tt.name, gocui.ColorDefault); got != tt.want {
			t.Errorf("ColorAttribute(%q) = %v, want %v", tt.name, got, tt.want)
		}
	}
}

func TestANSIColor(t *testing.T) {
	if got := ANSIColor("red"); got != ColorRed {
		t.Errorf("ANSIColor(red) = %q", got)
	}
	if got := ANSIColor("#010203"); got != "\033[38;2;1;2;3m" {
		t.Errorf("ANSIColor(#010203) = %q", got)
	}
	if got := ANSIColor("nope"); got != "" {
		t.Errorf("ANSIColor(nope) = %q, want empty", got)
	}
}

func TestRingColor(t *testing.T) {
	if got := RingColor("", "cyan"); got != gocui.ColorCyan {
		t.Errorf("orchestrator ring = %v, want cyan", got)
	}
	if got := RingColor("magenta", "cyan"); got != gocui.ColorMagenta {
		t.Errorf("session ring = %v, want magenta", got)
	}
	if got := RingColor("not-a-color", "yellow"); got != gocui.ColorYellow {
		t.Errorf("unknown session color = %v, want theme yellow", got)
	}
}

func TestRenderSidebar(t *testing.T) {
	entries := []SidebarEntry{
		{Label: "orchestrator", Orchestrator: true, Active: true},
		{Label: "feature-a", Ready: true, Selected: true},
		{Label: "a-very-long-session-name-indeed", Color: "blue"},
	}

	lines := RenderSidebar(entries, 16, "green")
	if len(lines) != 3 {
		t.Fatalf("got %d lines, want 3", len(lines))
	}
	if !strings.Contains(lines[0], "◆") || !strings.Contains(lines[0], ColorBold) {
		t.Errorf("orchestrator row = %q", lines[0])
	}
	if !strings.HasPrefix(lines[1], "›") || !strings.Contains(lines[1], ColorGreen+"●") {
		t.Errorf("ready row = %q", lines[1])
	}
	if !strings.Contains(lines[2], "○") || !strings.Contains(lines[2], "...") {
		t.Errorf("long row = %q", lines[2])
	}
	if strings.Contains(lines[2], "indeed") {
		t.Errorf("long label not truncated: %q", lines[2])
	}
}

func TestRenderStatusBar(t *testing.T) {
	info := StatusInfo{
		Mode:      "NORMAL",
		Selection: "session:feature-a",
		Focus:     "top",
		Sessions:  3,
		Ready:     1,
		Help:      "q:quit",
		Version:   "abc123",
	}

	result := RenderStatusBar(info, 120)
	if runewidth.StringWidth(result) != 120 {
		t.Errorf("width = %d, want 120", runewidth.StringWidth(result))
	}
	for _, want := range []string{"[NORMAL]", "session:feature-a", "focus:top", "3 sessions", "1 ready", "q:quit", "abc123"} {
		if !strings.Contains(result, want) {
			t.Errorf("status bar missing %q: %q", want, result)
		}
	}

	narrow := RenderStatusBar(info, 20)
	if runewidth.StringWidth(narrow) != 20 {
		t.Errorf("narrow width = %d, want 20", runewidth.StringWidth(narrow))
	}
	if strings.Contains(narrow, "q:quit") {
		t.Errorf("narrow bar should drop help: %q", narrow)
	}
}

func TestModalDimensions(t *testing.T) {
	x0, y0, x1, y1 := ModalDimensions(100, 40, 50, 3)
	if x0 != 25 || y0 != 18 || x1 != 75 || y1 != 21 {
		t.Errorf("ModalDimensions = %d,%d,%d,%d", x0, y0, x1, y1)
	}
}

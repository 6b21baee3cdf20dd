package terminal

import (
	"testing"
)

func TestParseOutputLine(t *testing.T) {
	tests := []struct {
		line   string
		want   string
		wantOK bool
	}{
		{"%output %1 hello", "hello", true},
		{"%output %12 a\\015\\012b", "a\r\nb", true},
		{"\x1bP1000p%output %3 \\033[31mred", "\x1b[31mred", true},
		{"%output %1 back\\\\slash", "back\\slash", true},
		{"%begin 1 2 0", "", false},
		{"%session-changed $1 main", "", false},
	}

	for _, tt := range tests {
		got, ok := parseOutputLine(tt.line)
		if ok != tt.wantOK {
			t.Errorf("parseOutputLine(%q) ok = %v, want %v", tt.line, ok, tt.wantOK)
			continue
		}
		if string(got) != tt.want {
			t.Errorf("parseOutputLine(%q) = %q, want %q", tt.line, got, tt.want)
		}
	}
}

func TestDecodeOctal(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"plain", "plain"},
		{"\\033", "\x1b"},
		{"end\\012", "end\n"},
		{"\\08", "\\08"},
		{"trailing\\", "trailing\\"},
		{"\\342\\224\\200", "─"},
	}
	for _, tt := range tests {
		if got := string(decodeOctal(tt.in)); got != tt.want {
			t.Errorf("decodeOctal(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestIsExitLine(t *testing.T) {
	tests := []struct {
		line string
		want bool
	}{
		{"%exit", true},
		{"%exit detached", true},
		{"%output %1 %exit", false},
	}
	for _, tt := range tests {
		if got := isExitLine(tt.line); got != tt.want {
			t.Errorf("isExitLine(%q) = %v, want %v", tt.line, got, tt.want)
		}
	}
}

func TestNewControlModeNotStarted(t *testing.T) {
	c := NewControlMode("td-orchestrator-top")
	if c.Session() != "td-orchestrator-top" {
		t.Errorf("Session() = %q", c.Session())
	}
	if err := c.Resize(80, 24); err == nil {
		t.Error("Resize before Start should fail")
	}
	if err := c.Close(); err != nil {
		t.Errorf("Close() = %v", err)
	}
	// Close is idempotent
	if err := c.Close(); err != nil {
		t.Errorf("second Close() = %v", err)
	}
}

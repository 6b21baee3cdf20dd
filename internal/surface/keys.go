package surface

import "github.com/jesseduffield/gocui"

var specialKeys = map[gocui.Key]string{
	gocui.KeyArrowUp:    "\x1b[A",
	gocui.KeyArrowDown:  "\x1b[B",
	gocui.KeyArrowRight: "\x1b[C",
	gocui.KeyArrowLeft:  "\x1b[D",
	gocui.KeyHome:       "\x1b[H",
	gocui.KeyEnd:        "\x1b[F",
	gocui.KeyInsert:     "\x1b[2~",
	gocui.KeyDelete:     "\x1b[3~",
	gocui.KeyPgup:       "\x1b[5~",
	gocui.KeyPgdn:       "\x1b[6~",
	gocui.KeyF1:         "\x1bOP",
	gocui.KeyF2:         "\x1bOQ",
	gocui.KeyF3:         "\x1bOR",
	gocui.KeyF4:         "\x1bOS",
	gocui.KeyF5:         "\x1b[15~",
	gocui.KeyF6:         "\x1b[17~",
	gocui.KeyF7:         "\x1b[18~",
	gocui.KeyF8:         "\x1b[19~",
	gocui.KeyF9:         "\x1b[20~",
	gocui.KeyF10:        "\x1b[21~",
	gocui.KeyF11:        "\x1b[23~",
	gocui.KeyF12:        "\x1b[24~",
	gocui.KeyBacktab:    "\x1b[Z",
}

// KeyInput translates a key press into the bytes a terminal expects.
// Alt prefixes the sequence with ESC.
func KeyInput(key gocui.Key, ch rune, mod gocui.Modifier) (string, bool) {
	var s string
	switch {
	case ch != 0:
		s = string(ch)
	case key == gocui.KeySpace:
		s = " "
	case key == gocui.KeyEsc:
		s = "\x1b"
	case key == gocui.KeyEnter:
		s = "\r"
	case key == gocui.KeyTab:
		s = "\t"
	case key == gocui.KeyBackspace, key == gocui.KeyBackspace2:
		s = "\x7f"
	case key >= gocui.KeyCtrlSpace && key <= gocui.KeyCtrlUnderscore:
		// tcell numbers ctrl keys from 64, so Ctrl+Space is NUL and Ctrl+A is 0x01.
		s = string(rune(key - gocui.KeyCtrlSpace))
	default:
		seq, ok := specialKeys[key]
		if !ok {
			return "", false
		}
		s = seq
	}
	if mod&gocui.ModAlt != 0 {
		s = "\x1b" + s
	}
	return s, true
}

// Chord is a key combination a surface intercepts before its widget.
type Chord struct {
	Name string
	Key  gocui.Key
	Ch   rune
	Mod  gocui.Modifier
}

// Matches reports whether the key press is this chord.
func (c Chord) Matches(key gocui.Key, ch rune, mod gocui.Modifier) bool {
	if mod != c.Mod {
		return false
	}
	if c.Ch != 0 {
		return ch == c.Ch
	}
	return ch == 0 && key == c.Key
}

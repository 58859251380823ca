package wizard

// Key is a navigation key the engine reacts to.
type Key int

const (
	KeyOther Key = iota
	KeyLeft
	KeyRight
)

// Modifier is a bit set of held modifier keys.
type Modifier uint8

const (
	ModShift Modifier = 1 << iota
	ModAlt
	ModCtrl
	ModMeta
)

// KeyEvent is one key press. InTextField is true when the focused control
// consumes arrow keys itself.
type KeyEvent struct {
	Key         Key
	Modifiers   Modifier
	InTextField bool
}

// ParseKey decodes xterm arrow escape sequences such as "\x1b[1;5C"
// (Ctrl+Right).
func ParseKey(seq string) (KeyEvent, bool) {
	if len(seq) < 3 || seq[0] != 0x1b || seq[1] != '[' {
		return KeyEvent{}, false
	}
	var ev KeyEvent
	switch seq[len(seq)-1] {
	case 'C':
		ev.Key = KeyRight
	case 'D':
		ev.Key = KeyLeft
	default:
		return KeyEvent{}, false
	}

	params := seq[2 : len(seq)-1]
	switch {
	case params == "":
		return ev, true
	case len(params) == 3 && params[0] == '1' && params[1] == ';':
		code := params[2]
		if code < '2' || code > '9' {
			return KeyEvent{}, false
		}
		// xterm encodes modifiers as 1 + bits(shift=1, alt=2, ctrl=4, meta=8).
		bits := code - '1'
		if bits&1 != 0 {
			ev.Modifiers |= ModShift
		}
		if bits&2 != 0 {
			ev.Modifiers |= ModAlt
		}
		if bits&4 != 0 {
			ev.Modifiers |= ModCtrl
		}
		if bits&8 != 0 {
			ev.Modifiers |= ModMeta
		}
		return ev, true
	default:
		return KeyEvent{}, false
	}
}

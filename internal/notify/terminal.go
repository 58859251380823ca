package notify

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/mattn/go-isatty"
)

const (
	ansiReset  = "\x1b[0m"
	ansiRed    = "\x1b[31m"
	ansiGreen  = "\x1b[32m"
	ansiYellow = "\x1b[33m"
	ansiCyan   = "\x1b[36m"
)

// TerminalRenderer prints one line per message. Terminal lines are not
// dismissed, so the duration is ignored.
type TerminalRenderer struct {
	mu    sync.Mutex
	w     io.Writer
	color bool
}

// NewTerminalRenderer writes to f, coloring output when f is a terminal.
func NewTerminalRenderer(f *os.File) *TerminalRenderer {
	color := isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
	return &TerminalRenderer{w: f, color: color}
}

// NewWriterRenderer writes plain or colored lines to w.
func NewWriterRenderer(w io.Writer, color bool) *TerminalRenderer {
	return &TerminalRenderer{w: w, color: color}
}

func (r *TerminalRenderer) Render(msg Message, _ time.Duration) {
	var b strings.Builder
	label := "[" + string(msg.Type) + "]"
	if r.color {
		label = colorFor(msg.Type) + label + ansiReset
	}
	b.WriteString(label)
	if msg.Title != "" {
		b.WriteString(" ")
		b.WriteString(msg.Title)
		b.WriteString(":")
	}
	b.WriteString(" ")
	b.WriteString(msg.Text)
	if msg.HasAction() {
		fmt.Fprintf(&b, " (%s)", msg.ActionText)
	}
	b.WriteString("\n")

	r.mu.Lock()
	defer r.mu.Unlock()
	_, _ = io.WriteString(r.w, b.String())
}

func colorFor(t Type) string {
	switch t {
	case TypeSuccess:
		return ansiGreen
	case TypeWarning:
		return ansiYellow
	case TypeError:
		return ansiRed
	default:
		return ansiCyan
	}
}

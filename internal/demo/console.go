package demo

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/charmbracelet/x/ansi"
)

var (
	styleHeading = ansi.Style{}.Bold()
	styleIRQ     = ansi.Style{}.ForegroundColor(ansi.Yellow)
	styleOK      = ansi.Style{}.ForegroundColor(ansi.Green)
)

// Console is the debug channel programs print to. Styling is dropped when
// the destination is not a terminal.
type Console struct {
	mu    sync.Mutex
	w     io.Writer
	color bool
}

func NewConsole(w io.Writer, color bool) *Console {
	return &Console{w: w, color: color}
}

// Writer returns the underlying writer, for progress output.
func (c *Console) Writer() io.Writer { return c.w }

func (c *Console) write(s string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.color {
		s = ansi.Strip(s)
	}
	if !strings.HasSuffix(s, "\n") {
		s += "\n"
	}
	io.WriteString(c.w, s)
}

// Println prints one line.
func (c *Console) Println(format string, args ...any) {
	c.write(fmt.Sprintf(format, args...))
}

func (c *Console) styled(style ansi.Style, format string, args ...any) {
	c.write(style.Styled(fmt.Sprintf(format, args...)))
}

func (c *Console) Heading(format string, args ...any) { c.styled(styleHeading, format, args...) }
func (c *Console) IRQ(format string, args ...any)     { c.styled(styleIRQ, format, args...) }
func (c *Console) OK(format string, args ...any)      { c.styled(styleOK, format, args...) }

// Fields prints label/value pairs with the values aligned.
func (c *Console) Fields(pairs ...[2]string) {
	width := 0
	for _, p := range pairs {
		if w := ansi.StringWidth(p[0]); w > width {
			width = w
		}
	}
	for _, p := range pairs {
		pad := strings.Repeat(" ", width-ansi.StringWidth(p[0]))
		c.write(styleHeading.Styled(p[0]) + pad + "  " + p[1])
	}
}

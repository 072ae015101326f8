package display

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

const clearScreen = "\x1b[H\x1b[2J"

// Terminal is a Surface that prints the grid as a bordered panel.
type Terminal struct {
	*Grid
	out        io.Writer
	clear      bool
	panel      lipgloss.Style
	titleStyle lipgloss.Style
}

// NewTerminal writes to out. When clear is set every flush repaints the
// whole screen instead of appending.
func NewTerminal(out io.Writer, clear bool) *Terminal {
	return &Terminal{
		Grid:  NewGrid(Columns, Rows),
		out:   out,
		clear: clear,
		panel: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("63")).
			Padding(0, 1),
		titleStyle: lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("86")),
	}
}

func (t *Terminal) Flush() error {
	lines := t.Lines()
	if len(lines) > 0 {
		lines[0] = t.titleStyle.Render(lines[0])
	}
	panel := t.panel.Render(strings.Join(lines, "\n"))

	var prefix string
	if t.clear {
		prefix = clearScreen
	}
	if _, err := fmt.Fprint(t.out, prefix+panel+"\n"); err != nil {
		return fmt.Errorf("could not draw display: %w", err)
	}
	return nil
}

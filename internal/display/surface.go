// Package display draws the node's dual status screen. The screen is a
// small character grid; Surface is the only thing the renderer needs.
package display

import "strings"

const (
	Columns = 16
	Rows    = 8
)

type Surface interface {
	Clear()
	DrawText(x, y int, s string)
	Flush() error
}

// Grid is an in-memory character surface. Text that falls outside the
// grid is clipped.
type Grid struct {
	cells [][]rune
}

func NewGrid(columns, rows int) *Grid {
	g := &Grid{cells: make([][]rune, rows)}
	for i := range g.cells {
		g.cells[i] = make([]rune, columns)
	}
	g.Clear()
	return g
}

func (g *Grid) Clear() {
	for _, row := range g.cells {
		for i := range row {
			row[i] = ' '
		}
	}
}

func (g *Grid) DrawText(x, y int, s string) {
	if y < 0 || y >= len(g.cells) {
		return
	}
	row := g.cells[y]
	for i, r := range []rune(s) {
		col := x + i
		if col < 0 {
			continue
		}
		if col >= len(row) {
			return
		}
		row[col] = r
	}
}

func (g *Grid) Flush() error {
	return nil
}

// Lines returns every row padded to the grid width.
func (g *Grid) Lines() []string {
	lines := make([]string, len(g.cells))
	for i, row := range g.cells {
		lines[i] = string(row)
	}
	return lines
}

func (g *Grid) String() string {
	lines := g.Lines()
	for i := range lines {
		lines[i] = strings.TrimRight(lines[i], " ")
	}
	return strings.TrimRight(strings.Join(lines, "\n"), "\n")
}

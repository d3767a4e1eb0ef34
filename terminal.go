package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/bodul/lightsout/internal/lights"
)

// terminalView draws a replay on a text terminal.
type terminalView struct {
	w     io.Writer
	grid  *lights.Grid
	total int
	step  int
	last  lights.Coord
}

func newTerminalView(w io.Writer, grid *lights.Grid, total int) *terminalView {
	return &terminalView{w: w, grid: grid, total: total}
}

func (v *terminalView) Highlight(c lights.Coord, on bool) error {
	if !on {
		return nil
	}
	v.step++
	v.last = c
	_, err := fmt.Fprintf(v.w, "Étape %d/%d : clic sur %s\n", v.step, v.total, c)
	return err
}

func (v *terminalView) Changed(changes []lights.CellChange) error {
	state := v.grid.Snapshot()
	for _, ch := range changes {
		if ch.Row < 0 || ch.Row >= len(state) || ch.Col < 0 || ch.Col >= len(state[ch.Row]) {
			return fmt.Errorf("%w: no cell drawn at %s", lights.ErrPresentation, ch.Coord)
		}
	}
	_, err := io.WriteString(v.w, renderBoard(state, &v.last))
	return err
}

// renderBoard draws lit cells as '#' and unlit ones as '.', with the marked
// cell, if any, in brackets.
func renderBoard(state [][]bool, mark *lights.Coord) string {
	var sb strings.Builder
	for r, row := range state {
		for c, lit := range row {
			ch := '.'
			if lit {
				ch = '#'
			}
			if mark != nil && mark.Row == r && mark.Col == c {
				fmt.Fprintf(&sb, "[%c]", ch)
			} else {
				fmt.Fprintf(&sb, " %c ", ch)
			}
		}
		sb.WriteByte('\n')
	}
	sb.WriteByte('\n')
	return sb.String()
}

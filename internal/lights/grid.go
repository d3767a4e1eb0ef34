// Package lights models a Lights Out board: a square grid of lit cells where
// toggling a cell flips it and its orthogonal neighbors.
package lights

import (
	"errors"
	"fmt"
	"sync"
)

// DefaultSize is the side length of a standard board.
const DefaultSize = 5

var (
	// ErrInvalidConfiguration is returned for a board that cannot be built
	// or played, such as a non-positive size.
	ErrInvalidConfiguration = errors.New("lights: invalid configuration")
	// ErrOutOfBounds is returned for a coordinate outside the board.
	ErrOutOfBounds = errors.New("lights: coordinate out of bounds")
	// ErrPresentation is wrapped by observers that cannot find the element
	// rendering a cell.
	ErrPresentation = errors.New("lights: presentation lookup failed")
)

// Coord identifies one cell by row and column.
type Coord struct {
	Row int `json:"row"`
	Col int `json:"col"`
}

func (c Coord) String() string {
	return fmt.Sprintf("(%d,%d)", c.Row, c.Col)
}

// CellChange is the new lit state of a cell affected by a toggle.
type CellChange struct {
	Coord
	Lit bool `json:"lit"`
}

// neighbors lists the orthogonal offsets: up, down, left, right.
var neighbors = [4]Coord{{-1, 0}, {1, 0}, {0, -1}, {0, 1}}

// Affected returns the clicked cell followed by its in-bounds orthogonal
// neighbors on a board of the given size. The result is nil when c itself is
// outside the board.
func Affected(size int, c Coord) []Coord {
	if !inBounds(size, c) {
		return nil
	}
	out := make([]Coord, 0, len(neighbors)+1)
	out = append(out, c)
	for _, d := range neighbors {
		n := Coord{Row: c.Row + d.Row, Col: c.Col + d.Col}
		if inBounds(size, n) {
			out = append(out, n)
		}
	}
	return out
}

func inBounds(size int, c Coord) bool {
	return c.Row >= 0 && c.Row < size && c.Col >= 0 && c.Col < size
}

// Grid is the authoritative lit/unlit state of every cell on a board.
// All methods are safe for concurrent use; mutations are serialized.
type Grid struct {
	mu    sync.Mutex
	size  int
	cells [][]bool
}

// NewGrid creates a size×size board with every cell lit.
func NewGrid(size int) (*Grid, error) {
	if size <= 0 {
		return nil, fmt.Errorf("%w: grid size %d must be positive", ErrInvalidConfiguration, size)
	}
	cells := make([][]bool, size)
	for i := range cells {
		cells[i] = make([]bool, size)
	}
	g := &Grid{size: size, cells: cells}
	g.fill()
	return g, nil
}

// Size returns the side length of the board.
func (g *Grid) Size() int {
	return g.size
}

// Toggle flips c and each in-bounds orthogonal neighbor and returns their new
// states. An out-of-bounds coordinate leaves the board untouched.
func (g *Grid) Toggle(c Coord) ([]CellChange, error) {
	affected := Affected(g.size, c)
	if affected == nil {
		return nil, fmt.Errorf("%w: %s on %dx%d grid", ErrOutOfBounds, c, g.size, g.size)
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	changes := make([]CellChange, len(affected))
	for i, a := range affected {
		g.cells[a.Row][a.Col] = !g.cells[a.Row][a.Col]
		changes[i] = CellChange{Coord: a, Lit: g.cells[a.Row][a.Col]}
	}
	return changes, nil
}

// Reset lights every cell and returns the resulting snapshot.
func (g *Grid) Reset() [][]bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.fill()
	return g.copyCells()
}

// Snapshot returns a copy of the current state, indexed [row][col].
func (g *Grid) Snapshot() [][]bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.copyCells()
}

// Lit reports whether the cell at c is lit.
func (g *Grid) Lit(c Coord) (bool, error) {
	if !inBounds(g.size, c) {
		return false, fmt.Errorf("%w: %s on %dx%d grid", ErrOutOfBounds, c, g.size, g.size)
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.cells[c.Row][c.Col], nil
}

// LitCount returns the number of lit cells.
func (g *Grid) LitCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()

	n := 0
	for _, row := range g.cells {
		for _, lit := range row {
			if lit {
				n++
			}
		}
	}
	return n
}

// Solved reports whether every light is off.
func (g *Grid) Solved() bool {
	return g.LitCount() == 0
}

func (g *Grid) fill() {
	for _, row := range g.cells {
		for j := range row {
			row[j] = true
		}
	}
}

func (g *Grid) copyCells() [][]bool {
	cp := make([][]bool, len(g.cells))
	for i, row := range g.cells {
		cp[i] = make([]bool, len(row))
		copy(cp[i], row)
	}
	return cp
}

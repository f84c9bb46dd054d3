package grid

import (
	"fmt"
	"math/rand"
	"strings"
)

type cellState byte

const (
	cellEmpty cellState = '.'
	cellShip  cellState = 'S'
	cellHit   cellState = 'X'
	cellMiss  cellState = 'o'
)

// Outcome is the result of firing at a cell (spec §3 "Shot outcome").
type Outcome int

const (
	// OutcomeHit landed on a live ship cell. SunkName is set if that
	// shot removed the ship's last remaining cell.
	OutcomeHit Outcome = iota
	// OutcomeMiss landed on empty water.
	OutcomeMiss
	// OutcomeAlreadyShot targeted a cell already resolved; idempotent,
	// the grid is not mutated.
	OutcomeAlreadyShot
	// OutcomeError indicates a coordinate that could not be resolved
	// against this grid (out of range).
	OutcomeError
)

// View selects which rendering of the grid to produce.
type View int

const (
	// Public masks unhit ships; safe to show opponents and spectators.
	Public View = iota
	// Truth reveals unhit ships; shown only to the owning player.
	Truth
)

// Grid is a 10x10 Battleship board: a fixed-size value type holding
// placed ships and the cumulative shot history against them.
type Grid struct {
	cells [Size][Size]cellState
	ships []*Ship
}

// New returns an empty 10x10 grid with no ships placed.
func New() *Grid {
	g := &Grid{}
	for r := range g.cells {
		for c := range g.cells[r] {
			g.cells[r][c] = cellEmpty
		}
	}
	return g
}

// CanPlace reports whether a ship of the given length can be placed
// starting at start in the given orientation: in bounds, and every
// cell it would occupy is currently empty.
func (g *Grid) CanPlace(start Coordinate, o Orientation, length int) bool {
	cells, ok := footprintCells(start, o, length)
	if !ok {
		return false
	}
	for _, c := range cells {
		if g.cells[c.Row][c.Col] != cellEmpty {
			return false
		}
	}
	return true
}

func footprintCells(start Coordinate, o Orientation, length int) ([]Coordinate, bool) {
	cells := make([]Coordinate, length)
	for i := 0; i < length; i++ {
		c := start
		if o == Horizontal {
			c.Col += i
		} else {
			c.Row += i
		}
		if c.Row < 0 || c.Row >= Size || c.Col < 0 || c.Col >= Size {
			return nil, false
		}
		cells[i] = c
	}
	return cells, true
}

// PlaceManual places a single ship and returns an error describing why
// if it does not fit.
func (g *Grid) PlaceManual(spec ShipSpec, start Coordinate, o Orientation) error {
	if !g.CanPlace(start, o, spec.Length) {
		return fmt.Errorf("cannot place %s at %s facing %s: out of bounds or overlaps another ship", spec.Name, start, o)
	}
	cells, _ := footprintCells(start, o, spec.Length)
	for _, c := range cells {
		g.cells[c.Row][c.Col] = cellShip
	}
	g.ships = append(g.ships, newShip(spec, cells))
	return nil
}

// PlaceRandom places the entire fleet using rejection sampling against
// CanPlace, in declared fleet order. Deterministic given rng, per
// spec §4.1 ("must be deterministic given a seed to enable testing").
func (g *Grid) PlaceRandom(rng *rand.Rand, fleet []ShipSpec) error {
	for _, spec := range fleet {
		placed := false
		for tries := 0; tries < 500 && !placed; tries++ {
			o := Horizontal
			if rng.Intn(2) == 1 {
				o = Vertical
			}
			start := Coordinate{Row: rng.Intn(Size), Col: rng.Intn(Size)}
			if g.CanPlace(start, o, spec.Length) {
				if err := g.PlaceManual(spec, start, o); err != nil {
					return err
				}
				placed = true
			}
		}
		if !placed {
			return fmt.Errorf("could not place %s after repeated attempts", spec.Name)
		}
	}
	return nil
}

// FireAt resolves a shot at the given coordinate. Idempotent for
// already-resolved cells: repeated calls return OutcomeAlreadyShot and
// do not mutate. A ship is reported sunk only on the shot that removes
// its last remaining cell.
func (g *Grid) FireAt(c Coordinate) (Outcome, string) {
	if c.Row < 0 || c.Row >= Size || c.Col < 0 || c.Col >= Size {
		return OutcomeError, ""
	}

	switch g.cells[c.Row][c.Col] {
	case cellShip:
		g.cells[c.Row][c.Col] = cellHit
		for _, s := range g.ships {
			if s.occupies(c) {
				s.hit(c)
				if s.Sunk() {
					return OutcomeHit, s.Name
				}
				break
			}
		}
		return OutcomeHit, ""
	case cellEmpty:
		g.cells[c.Row][c.Col] = cellMiss
		return OutcomeMiss, ""
	case cellHit, cellMiss:
		return OutcomeAlreadyShot, ""
	default:
		return OutcomeError, ""
	}
}

// Finished reports whether every placed ship has been sunk. False if
// no ship has been placed yet.
func (g *Grid) Finished() bool {
	if len(g.ships) == 0 {
		return false
	}
	for _, s := range g.ships {
		if !s.Sunk() {
			return false
		}
	}
	return true
}

// Render produces the textual grid body (header + Size rows, no
// trailing blank line) for the requested view.
func (g *Grid) Render(v View) string {
	var b strings.Builder
	b.WriteString("  ")
	for i := 1; i <= Size; i++ {
		fmt.Fprintf(&b, "%2d", i)
	}
	for r := 0; r < Size; r++ {
		b.WriteByte('\n')
		fmt.Fprintf(&b, "%-2c", byte('A'+r))
		for c := 0; c < Size; c++ {
			state := g.cells[r][c]
			if v == Public && state == cellShip {
				state = cellEmpty
			}
			b.WriteByte(' ')
			b.WriteByte(byte(state))
		}
	}
	return b.String()
}

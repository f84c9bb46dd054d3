package grid

// ShipSpec names a ship class and its fixed length.
type ShipSpec struct {
	Name   string
	Length int
}

// Fleet is the canonical fleet, placed in this declared order. Order
// matters for random-placement reproducibility and for the
// manual-placement prompt sequence (spec §4.1).
var Fleet = []ShipSpec{
	{Name: "Carrier", Length: 5},
	{Name: "Battleship", Length: 4},
	{Name: "Cruiser", Length: 3},
	{Name: "Submarine", Length: 3},
	{Name: "Destroyer", Length: 2},
}

// Ship tracks a placed ship's original footprint and its remaining
// (unhit) cells.
type Ship struct {
	Name      string
	Footprint map[Coordinate]struct{}
	Remaining map[Coordinate]struct{}
}

func newShip(spec ShipSpec, cells []Coordinate) *Ship {
	footprint := make(map[Coordinate]struct{}, len(cells))
	remaining := make(map[Coordinate]struct{}, len(cells))
	for _, c := range cells {
		footprint[c] = struct{}{}
		remaining[c] = struct{}{}
	}
	return &Ship{Name: spec.Name, Footprint: footprint, Remaining: remaining}
}

// Sunk reports whether every cell of the ship has been hit.
func (s *Ship) Sunk() bool {
	return len(s.Remaining) == 0
}

func (s *Ship) hit(c Coordinate) {
	delete(s.Remaining, c)
}

func (s *Ship) occupies(c Coordinate) bool {
	_, ok := s.Footprint[c]
	return ok
}

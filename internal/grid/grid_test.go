package grid

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseCoordinate_RoundTrip(t *testing.T) {
	for _, s := range []string{"A1", "J10", "e5", "B10"} {
		c, err := ParseCoordinate(s)
		require.NoError(t, err)
		c2, err := ParseCoordinate(c.String())
		require.NoError(t, err)
		assert.Equal(t, c, c2)
	}
}

func TestParseCoordinate_Invalid(t *testing.T) {
	for _, s := range []string{"", "Z1", "A0", "A11", "AA", "A1B", "1A", "K5"} {
		_, err := ParseCoordinate(s)
		assert.Error(t, err, "expected %q to be rejected", s)
	}
}

func TestFireAt_IdempotentAlreadyShot(t *testing.T) {
	g := New()
	require.NoError(t, g.PlaceManual(ShipSpec{Name: "Destroyer", Length: 2}, Coordinate{0, 0}, Horizontal))

	outcome, sunk := g.FireAt(Coordinate{0, 0})
	assert.Equal(t, OutcomeHit, outcome)
	assert.Empty(t, sunk)

	outcome, sunk = g.FireAt(Coordinate{0, 0})
	assert.Equal(t, OutcomeAlreadyShot, outcome)
	assert.Empty(t, sunk)

	outcome, sunk = g.FireAt(Coordinate{5, 5})
	assert.Equal(t, OutcomeMiss, outcome)
	assert.Empty(t, sunk)

	outcome, sunk = g.FireAt(Coordinate{5, 5})
	assert.Equal(t, OutcomeAlreadyShot, outcome)
	assert.Empty(t, sunk)
}

func TestFireAt_SunkOnLastCell(t *testing.T) {
	g := New()
	require.NoError(t, g.PlaceManual(ShipSpec{Name: "Destroyer", Length: 2}, Coordinate{0, 0}, Horizontal))

	outcome, sunk := g.FireAt(Coordinate{0, 0})
	assert.Equal(t, OutcomeHit, outcome)
	assert.Empty(t, sunk, "ship not fully hit yet")

	outcome, sunk = g.FireAt(Coordinate{0, 1})
	assert.Equal(t, OutcomeHit, outcome)
	assert.Equal(t, "Destroyer", sunk)

	assert.True(t, g.Finished())
}

func TestCanPlace_RejectsOverlapAndOutOfBounds(t *testing.T) {
	g := New()
	require.NoError(t, g.PlaceManual(ShipSpec{Name: "Destroyer", Length: 2}, Coordinate{0, 0}, Horizontal))

	assert.False(t, g.CanPlace(Coordinate{0, 1}, Horizontal, 2), "overlaps existing ship")
	assert.False(t, g.CanPlace(Coordinate{0, 9}, Horizontal, 2), "runs off the right edge")
	assert.False(t, g.CanPlace(Coordinate{9, 0}, Vertical, 2), "runs off the bottom edge")
	assert.True(t, g.CanPlace(Coordinate{2, 2}, Vertical, 3))
}

func TestRender_PublicMasksUnhitShips(t *testing.T) {
	g := New()
	require.NoError(t, g.PlaceManual(ShipSpec{Name: "Destroyer", Length: 2}, Coordinate{0, 0}, Horizontal))

	truth := g.Render(Truth)
	public := g.Render(Public)
	assert.Contains(t, truth, "S")
	assert.NotContains(t, public, "S")

	g.FireAt(Coordinate{0, 0})
	public = g.Render(Public)
	assert.Contains(t, public, "X", "hits remain visible on the public view")
}

func TestPlaceRandom_Deterministic(t *testing.T) {
	g1 := New()
	require.NoError(t, g1.PlaceRandom(rand.New(rand.NewSource(42)), Fleet))

	g2 := New()
	require.NoError(t, g2.PlaceRandom(rand.New(rand.NewSource(42)), Fleet))

	assert.Equal(t, g1.Render(Truth), g2.Render(Truth))
	assert.Len(t, g1.ships, len(Fleet))
}

func TestPlaceRandom_NeverOverlaps(t *testing.T) {
	g := New()
	require.NoError(t, g.PlaceRandom(rand.New(rand.NewSource(7)), Fleet))

	total := 0
	for _, s := range Fleet {
		total += s.Length
	}

	occupied := 0
	for r := 0; r < Size; r++ {
		for c := 0; c < Size; c++ {
			if g.cells[r][c] == cellShip {
				occupied++
			}
		}
	}
	assert.Equal(t, total, occupied)
}

package match

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rdenton/battleshipd/internal/grid"
)

func TestRunPlacement_SucceedsWithValidInput(t *testing.T) {
	ctrl, _, _, _ := newTestController(t)
	ch := ctrl.inputs[0]

	go func() {
		for row := range grid.Fleet {
			ch <- grid.Coordinate{Row: row, Col: 0}.String()
			ch <- "H"
		}
	}()

	outcome := ctrl.runPlacement(context.Background(), 0)
	assert.True(t, outcome.ok)
	assert.True(t, ctrl.grids[0].Finished() == false, "a freshly placed fleet has not been fired on yet")
}

func TestRunPlacement_RetriesOnInvalidCoordinateWithoutPenalty(t *testing.T) {
	ctrl, _, _, _ := newTestController(t)
	ch := ctrl.inputs[0]

	go func() {
		ch <- "not-a-coordinate"
		for row := range grid.Fleet {
			ch <- grid.Coordinate{Row: row, Col: 0}.String()
			ch <- "H"
		}
	}()

	outcome := ctrl.runPlacement(context.Background(), 0)
	assert.True(t, outcome.ok, "an invalid first attempt must be retried, not fatal")
}

func TestRunPlacement_QuitAbortsPlacement(t *testing.T) {
	ctrl, _, _, _ := newTestController(t)
	ch := ctrl.inputs[0]

	go func() { ch <- "quit" }()

	outcome := ctrl.runPlacement(context.Background(), 0)
	assert.False(t, outcome.ok)
	assert.Equal(t, "quit", outcome.reason)
}

func TestRunPlacement_ChannelClosedIsTransportFailure(t *testing.T) {
	ctrl, _, _, _ := newTestController(t)
	close(ctrl.inputs[0])

	outcome := ctrl.runPlacement(context.Background(), 0)
	assert.False(t, outcome.ok)
}

func TestRunPlacement_TimesOutWhenNothingArrives(t *testing.T) {
	ctrl, _, _, _ := newTestController(t)
	ctrl.cfg.PlacementTimeoutSeconds = 1

	start := time.Now()
	outcome := ctrl.runPlacement(context.Background(), 0)
	assert.False(t, outcome.ok)
	assert.GreaterOrEqual(t, time.Since(start), 900*time.Millisecond)
}

func TestRunPlacementPhase_BothSucceedAdvancesToTurnPhase(t *testing.T) {
	ctrl, _, _, _ := newTestController(t)

	for _, idx := range []int{0, 1} {
		go func(idx int) {
			ch := ctrl.inputs[idx]
			for row := range grid.Fleet {
				ch <- grid.Coordinate{Row: row, Col: 0}.String()
				ch <- "H"
			}
		}(idx)
	}

	ok := ctrl.runPlacementPhase(context.Background())
	assert.True(t, ok)
}

func TestRunPlacementPhase_OneQuitsEndsMatchAsQuit(t *testing.T) {
	ctrl, _, q, store := newTestController(t)

	go func() { ctrl.inputs[0] <- "quit" }()
	go func(idx int) {
		ch := ctrl.inputs[idx]
		for row := range grid.Fleet {
			ch <- grid.Coordinate{Row: row, Col: 0}.String()
			ch <- "H"
		}
	}(1)

	ok := ctrl.runPlacementPhase(context.Background())
	assert.False(t, ok)
	assert.False(t, q.MatchLive())

	require.Len(t, store.records, 1)
	assert.Equal(t, string(ReasonQuit), store.records[0].Reason, "quitting during placement must be reported as a quit, not a disconnect forfeit")
	assert.Equal(t, ctrl.playerIDs[1], store.records[0].Winner)
}

func TestRunPlacementPhase_OneTimesOutEndsMatchAsTimeoutForfeit(t *testing.T) {
	ctrl, _, q, store := newTestController(t)
	ctrl.cfg.PlacementTimeoutSeconds = 1

	go func(idx int) {
		ch := ctrl.inputs[idx]
		for row := range grid.Fleet {
			ch <- grid.Coordinate{Row: row, Col: 0}.String()
			ch <- "H"
		}
	}(1)

	ok := ctrl.runPlacementPhase(context.Background())
	assert.False(t, ok)
	assert.False(t, q.MatchLive())

	require.Len(t, store.records, 1)
	assert.Equal(t, string(ReasonForfeitTimeout), store.records[0].Reason)
	assert.Equal(t, ctrl.playerIDs[1], store.records[0].Winner)
}

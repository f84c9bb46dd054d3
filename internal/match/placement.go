package match

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/rdenton/battleshipd/internal/grid"
	"github.com/rdenton/battleshipd/internal/history"
	"github.com/rdenton/battleshipd/internal/protocol"
	"github.com/rdenton/battleshipd/internal/session"
)

// placementOutcome is the result of one player's placement routine.
type placementOutcome struct {
	ok     bool
	reason string // matched by reasonForPlacementFailure to pick the end Reason
}

// runPlacementPhase drives both players' placement routines
// concurrently and returns true iff both succeeded (spec §4.7.1:
// "Both placement routines must complete successfully before the
// match proceeds"). On failure it notifies the other side and ends
// the match itself, so the caller need only stop.
func (c *Controller) runPlacementPhase(ctx context.Context) bool {
	results := make([]placementOutcome, 2)
	var wg sync.WaitGroup
	wg.Add(2)
	for i := 0; i < 2; i++ {
		go func(idx int) {
			defer wg.Done()
			results[idx] = c.runPlacement(ctx, idx)
		}(i)
	}
	wg.Wait()

	if results[0].ok && results[1].ok {
		return true
	}

	c.setPhase("ended")
	switch {
	case !results[0].ok && !results[1].ok:
		c.endNeutral(ctx, ReasonServerError)
	case !results[0].ok:
		c.endPlacementFailure(ctx, 1, results[0])
	case !results[1].ok:
		c.endPlacementFailure(ctx, 0, results[1])
	}
	return false
}

// endPlacementFailure reports and persists the outcome of a one-sided
// placement failure: survivor wins, the failing side's
// placementOutcome.reason is mapped back to the proper Reason so a
// voluntary quit during placement is never reported as a disconnect
// forfeit.
func (c *Controller) endPlacementFailure(ctx context.Context, survivor int, outcome placementOutcome) {
	reason := reasonForPlacementFailure(outcome)
	c.send(survivor, protocol.KindGameState, msgGameOver(c.playerIDs[survivor], reason))
	c.sendTruth(survivor)
	slog.Info("match ended during placement", "player_a", c.playerIDs[0], "player_b", c.playerIDs[1], "winner", c.playerIDs[survivor], "reason", reason)

	rec := history.MatchRecord{
		PlayerA:   c.playerIDs[0],
		PlayerB:   c.playerIDs[1],
		Winner:    c.playerIDs[survivor],
		Reason:    string(reason),
		ShotsA:    c.shots[0],
		ShotsB:    c.shots[1],
		StartedAt: c.startedAt,
		EndedAt:   time.Now(),
	}
	if err := c.store.Record(ctx, rec); err != nil {
		slog.Warn("failed to persist match history", "error", err)
	}

	c.queue.EndMatch()
}

// reasonForPlacementFailure maps a placementOutcome's human-readable
// reason back to the Reason enum a GAME OVER message and MatchRecord
// require, so a voluntary quit is never conflated with a forfeit.
func reasonForPlacementFailure(outcome placementOutcome) Reason {
	switch {
	case outcome.reason == "quit":
		return ReasonQuit
	case strings.HasPrefix(outcome.reason, "timeout placing "):
		return ReasonForfeitTimeout
	default:
		return ReasonForfeitDisconnect
	}
}

// runPlacement places the canonical fleet for one player, ship by
// ship, reading directly from that player's input channel (it is the
// sole reader during this phase; the turn-phase forwarders have not
// started yet).
func (c *Controller) runPlacement(ctx context.Context, idx int) placementOutcome {
	g := c.grids[idx]
	budget := c.cfg.PlacementTimeout()

	for _, spec := range grid.Fleet {
		for {
			c.send(idx, protocol.KindBoard, g.Render(grid.Truth))
			c.send(idx, protocol.KindSystem, msgPlacementPrompt(spec.Name, spec.Length))

			outcome, startText := waitOnChannel(ctx, c.inputs[idx], budget)
			if outcome != session.MoveValue {
				return placementFailure(outcome, spec.Name)
			}
			if isLiteralQuit(startText) {
				return placementOutcome{ok: false, reason: "quit"}
			}

			start, err := grid.ParseCoordinate(startText)
			if err != nil {
				c.send(idx, protocol.KindError, msgPlacementInvalid(err.Error()))
				continue
			}

			c.send(idx, protocol.KindSystem, msgOrientationPrompt(spec.Name))
			outcome, orientText := waitOnChannel(ctx, c.inputs[idx], budget)
			if outcome != session.MoveValue {
				return placementFailure(outcome, spec.Name)
			}
			if isLiteralQuit(orientText) {
				return placementOutcome{ok: false, reason: "quit"}
			}

			o, err := grid.ParseOrientation(orientText)
			if err != nil {
				c.send(idx, protocol.KindError, msgPlacementInvalid(err.Error()))
				continue
			}

			if !g.CanPlace(start, o, spec.Length) {
				c.send(idx, protocol.KindError, msgPlacementInvalid("out of bounds or overlaps another ship"))
				continue
			}
			if err := g.PlaceManual(spec, start, o); err != nil {
				c.send(idx, protocol.KindError, msgPlacementInvalid(err.Error()))
				continue
			}
			break
		}
	}

	c.send(idx, protocol.KindBoard, g.Render(grid.Truth))
	c.send(idx, protocol.KindSystem, msgOpponentPlacing())
	return placementOutcome{ok: true}
}

func placementFailure(outcome session.MoveOutcome, shipName string) placementOutcome {
	switch outcome {
	case session.MoveTimeout:
		return placementOutcome{ok: false, reason: "timeout placing " + shipName}
	default:
		return placementOutcome{ok: false, reason: "transport failure during placement"}
	}
}

func isLiteralQuit(s string) bool {
	return strings.EqualFold(strings.TrimSpace(s), "quit")
}

// waitOnChannel performs one deadline-bounded receive on ch, the
// primitive used throughout the placement phase (spec §9: "a single
// timed receive primitive; no watcher thread is needed").
func waitOnChannel(ctx context.Context, ch chan string, timeout time.Duration) (session.MoveOutcome, string) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case v, ok := <-ch:
		if !ok {
			return session.MoveClosed, ""
		}
		return session.MoveValue, v
	case <-timer.C:
		return session.MoveTimeout, ""
	case <-ctx.Done():
		return session.MoveClosed, ""
	}
}

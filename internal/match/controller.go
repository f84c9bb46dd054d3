package match

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rdenton/battleshipd/internal/config"
	"github.com/rdenton/battleshipd/internal/grid"
	"github.com/rdenton/battleshipd/internal/history"
	"github.com/rdenton/battleshipd/internal/protocol"
	"github.com/rdenton/battleshipd/internal/queue"
	"github.com/rdenton/battleshipd/internal/session"
)

// Controller runs exactly one match from placement through game over.
// It exclusively owns both grids, the turn pointer, the timeout
// counters, and the two input channels handed to it by the queue's
// promotion (spec §3 "Ownership", §4.7).
type Controller struct {
	cfg      config.Server
	registry *session.Registry
	queue    *queue.Queue
	store    history.Store
	rng      *rand.Rand

	playerIDs [2]string
	grids     [2]*grid.Grid
	inputs    [2]chan string
	shots     [2]int
	strikes   [2]int

	mu        sync.Mutex
	turn      int
	startedAt time.Time
	phase     string // "placement" | "turn" | "ended"

	inTurnPhase atomic.Bool
	events      chan ctrlEvent
	done        chan struct{}

	broker *reconnectBroker
}

// New constructs a Controller for a freshly promoted pair. rng is kept
// on the Controller but no code path draws from it: placement is manual
// only, so callers may pass nil.
func New(cfg config.Server, registry *session.Registry, q *queue.Queue, store history.Store, playerA, playerB string, chA, chB chan string, rng *rand.Rand) *Controller {
	if store == nil {
		store = history.NullStore{}
	}
	c := &Controller{
		cfg:       cfg,
		registry:  registry,
		queue:     q,
		store:     store,
		rng:       rng,
		playerIDs: [2]string{playerA, playerB},
		grids:     [2]*grid.Grid{grid.New(), grid.New()},
		inputs:    [2]chan string{chA, chB},
		phase:     "placement",
		events:    make(chan ctrlEvent, 8),
		done:      make(chan struct{}),
	}
	return c
}

func (c *Controller) idxOf(id string) (int, bool) {
	for i, pid := range c.playerIDs {
		if pid == id {
			return i, true
		}
	}
	return 0, false
}

func (c *Controller) client(idx int) *session.Client {
	return c.registry.Lookup(c.playerIDs[idx])
}

func (c *Controller) other(idx int) int { return 1 - idx }

// Snapshot returns a read-only view for CommandHandler's /status.
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	turnOwner := ""
	if c.phase == "turn" {
		turnOwner = c.playerIDs[c.turn]
	}
	return Snapshot{
		PlayerA:   c.playerIDs[0],
		PlayerB:   c.playerIDs[1],
		TurnOwner: turnOwner,
		Phase:     c.phase,
	}
}

// HasPlayer reports whether id is one of this match's two players.
func (c *Controller) HasPlayer(id string) bool {
	_, ok := c.idxOf(id)
	return ok
}

func (c *Controller) setPhase(p string) {
	c.mu.Lock()
	c.phase = p
	c.mu.Unlock()
	c.inTurnPhase.Store(p == "turn")
}

// InTurnPhase reports whether this match has left placement, i.e.
// whether a mid-game transport failure should go through the
// ReconnectBroker instead of an immediate hard removal (spec §4.7.1
// vs §4.8).
func (c *Controller) InTurnPhase() bool { return c.inTurnPhase.Load() }

func (c *Controller) send(idx int, kind protocol.Kind, text string) {
	if cl := c.client(idx); cl != nil {
		cl.Send(kind, text)
	}
}

func (c *Controller) sendBoth(kind protocol.Kind, text string) {
	c.send(0, kind, text)
	c.send(1, kind, text)
}

func (c *Controller) sendTruth(idx int) {
	c.send(idx, protocol.KindBoard, c.grids[idx].Render(grid.Truth))
}

func (c *Controller) sendPublicOf(idx, to int) {
	c.send(to, protocol.KindBoard, c.grids[idx].Render(grid.Public))
}

// broadcastPublic sends the combined public rendering of both grids to
// every active spectator (spec §4.7.3: "exactly one spectator
// broadcast of the combined public rendering").
func (c *Controller) broadcastPublic() {
	body := fmt.Sprintf("%s vs %s\n-- %s --\n%s\n-- %s --\n%s",
		c.playerIDs[0], c.playerIDs[1],
		c.playerIDs[0], c.grids[0].Render(grid.Public),
		c.playerIDs[1], c.grids[1].Render(grid.Public),
	)
	for _, cl := range c.registry.Snapshot() {
		if cl.Role() == session.RoleActiveSpectator {
			cl.Send(protocol.KindBoard, body)
		}
	}
}

// Run drives the match end to end: placement, then the turn loop,
// then cleanup. It returns once the match has fully ended and its
// players have been recycled into the queue.
func (c *Controller) Run(ctx context.Context) {
	c.startedAt = time.Now()
	c.send(0, protocol.KindGameState, msgWelcomeToMatch(c.playerIDs[1]))
	c.send(1, protocol.KindGameState, msgWelcomeToMatch(c.playerIDs[0]))
	slog.Info("match started", "player_a", c.playerIDs[0], "player_b", c.playerIDs[1])

	if d := c.cfg.GameStartCountdown(); d > 0 {
		c.sendBoth(protocol.KindSystem, msgGameStartCountdown(int(d.Seconds())))
		select {
		case <-time.After(d):
		case <-ctx.Done():
			c.endNeutral(ctx, ReasonServerError)
			return
		}
	}

	if !c.runPlacementPhase(ctx) {
		return
	}

	c.setPhase("turn")
	c.broker = newReconnectBroker(c)
	var wg sync.WaitGroup
	wg.Add(2)
	for i := 0; i < 2; i++ {
		go func(idx int) {
			defer wg.Done()
			c.forwardInputs(idx)
		}(i)
	}

	c.runTurnLoop(ctx)
	close(c.done)
	wg.Wait()
}

// forwardInputs is the sole reader of a player's input channel during
// the turn phase, relaying every line (and eventual channel closure)
// onto the controller's single event stream so the FSM logic lives in
// one place (spec §9 "model the MatchController as the sole owner").
// It must never block forever past the point the turn loop has
// already returned, so every send races against c.done.
func (c *Controller) forwardInputs(idx int) {
	for text := range c.inputs[idx] {
		select {
		case c.events <- ctrlEvent{kind: evMove, idx: idx, text: text}:
		case <-c.done:
			return
		}
	}
	select {
	case c.events <- ctrlEvent{kind: evChannelClosed, idx: idx}:
	case <-c.done:
	}
}

func (c *Controller) pushEvent(e ctrlEvent) {
	select {
	case c.events <- e:
	case <-c.done:
	default:
		slog.Warn("match event stream full, dropping event", "kind", e.kind)
	}
}

// NotifyTransportFailure is called by the server's per-connection
// dispatcher when an active player's transport fails while this match
// is in its turn phase (placement-phase failures are handled by a
// hard registry removal instead; see server.dispatch).
func (c *Controller) NotifyTransportFailure(id string) {
	idx, ok := c.idxOf(id)
	if !ok || !c.InTurnPhase() {
		return
	}
	c.broker.handleDisconnect(idx)
}

// NotifyReconnect is called by the server's accept loop once it has
// spliced a reconnecting player's new transport into their Client.
func (c *Controller) NotifyReconnect(id string) {
	idx, ok := c.idxOf(id)
	if !ok {
		return
	}
	c.broker.handleReconnect(idx)
}

func (c *Controller) runTurnLoop(ctx context.Context) {
	c.turn = 0
	timer := time.NewTimer(c.cfg.TurnTimeout())
	defer timer.Stop()
	c.promptTurn()

	for {
		select {
		case <-ctx.Done():
			c.endNeutral(ctx, ReasonServerError)
			return

		case ev := <-c.events:
			switch ev.kind {
			case evMove:
				if isLiteralQuit(ev.text) {
					// Either player may quit outright at any time, not
					// just on their own turn (spec: literal "quit" from
					// either player ends the match immediately).
					stopTimer(timer)
					winner := c.playerIDs[c.other(ev.idx)]
					c.endMatch(ctx, winner, ReasonQuit)
					return
				}
				if ev.idx != c.turn {
					// Stray input from the non-active player while they
					// are not being awaited (e.g. arrived just before a
					// turn swap); ignored, per spec only the active
					// player's channel is awaited each turn.
					continue
				}
				stopTimer(timer)
				if c.handleMove(ev.text) {
					return
				}
				timer.Reset(c.cfg.TurnTimeout())

			case evChannelClosed:
				// The player's Client was hard-removed from the
				// registry (e.g. an explicit /quit), which closed its
				// input channel.
				winner := c.playerIDs[c.other(ev.idx)]
				c.endMatch(ctx, winner, ReasonForfeitDisconnect)
				return

			case evDisconnected:
				stopTimer(timer)
				// Timer stays stopped; the ReconnectBroker now owns
				// pacing until evReconnected or evReconnectExpired.

			case evReconnected:
				c.send(ev.idx, protocol.KindSystem, msgReconnectResumedPrompt())
				c.sendPublicOf(c.other(ev.idx), ev.idx)
				timer.Reset(c.cfg.TurnTimeout())
				if ev.idx == c.turn {
					c.promptTurn()
				}

			case evReconnectExpired:
				winner := c.playerIDs[c.other(ev.idx)]
				c.endMatch(ctx, winner, ReasonForfeitDisconnect)
				return
			}

		case <-timer.C:
			if c.handleTimeout() {
				return
			}
			timer.Reset(c.cfg.TurnTimeout())
		}
	}
}

// stopTimer stops t, draining a pending fire so a later Reset does not
// observe a stale tick (standard time.Timer reuse idiom).
func stopTimer(t *time.Timer) {
	if !t.Stop() {
		select {
		case <-t.C:
		default:
		}
	}
}

func (c *Controller) promptTurn() {
	active, waiting := c.turn, c.other(c.turn)
	c.send(active, protocol.KindSystem, msgYourTurn())
	c.sendPublicOf(waiting, active)
	c.send(waiting, protocol.KindSystem, msgWaitingForOpponent(c.playerIDs[active]))
}

// handleMove processes one line read from the active player's input
// channel. It returns true if the match has ended.
func (c *Controller) handleMove(text string) bool {
	active := c.turn
	waiting := c.other(c.turn)

	if strings.EqualFold(strings.TrimSpace(text), "quit") {
		c.endMatch(context.Background(), c.playerIDs[waiting], ReasonQuit)
		return true
	}

	coord, err := grid.ParseCoordinate(text)
	if err != nil {
		c.send(active, protocol.KindError, msgCoordinateInvalid(err))
		return false
	}

	c.strikes[active] = 0
	outcome, sunk := c.grids[waiting].FireAt(coord)
	c.shots[active]++

	alreadyShot := outcome == grid.OutcomeAlreadyShot
	hit := outcome == grid.OutcomeHit
	result := msgShotResult(c.playerIDs[active], coord.String(), hit, sunk, alreadyShot)
	c.sendBoth(protocol.KindSystem, result)
	c.sendTruth(waiting)
	c.broadcastPublic()

	if c.grids[waiting].Finished() {
		c.endMatch(context.Background(), c.playerIDs[active], ReasonWin)
		return true
	}

	c.turn = waiting
	c.promptTurn()
	return false
}

// handleTimeout processes an elapsed turn-inactivity deadline. Returns
// true if the match has ended (forfeit).
func (c *Controller) handleTimeout() bool {
	active := c.turn
	waiting := c.other(c.turn)
	c.strikes[active]++

	if c.strikes[active] >= c.cfg.MaxTimeouts {
		c.endMatch(context.Background(), c.playerIDs[waiting], ReasonForfeitTimeout)
		return true
	}

	c.sendBoth(protocol.KindSystem, msgTimeoutStrike(c.playerIDs[active], c.strikes[active], c.cfg.MaxTimeouts))
	c.turn = waiting
	c.promptTurn()
	return false
}

// endMatch sends the GAME OVER message and final views to both sides,
// records history, and recycles the queue.
func (c *Controller) endMatch(ctx context.Context, winner string, reason Reason) {
	c.setPhase("ended")
	c.sendBoth(protocol.KindGameState, msgGameOver(winner, reason))
	c.sendTruth(0)
	c.sendTruth(1)
	slog.Info("match ended", "player_a", c.playerIDs[0], "player_b", c.playerIDs[1], "winner", winner, "reason", reason)

	rec := history.MatchRecord{
		PlayerA:   c.playerIDs[0],
		PlayerB:   c.playerIDs[1],
		Winner:    winner,
		Reason:    string(reason),
		ShotsA:    c.shots[0],
		ShotsB:    c.shots[1],
		StartedAt: c.startedAt,
		EndedAt:   time.Now(),
	}
	if err := c.store.Record(ctx, rec); err != nil {
		slog.Warn("failed to persist match history", "error", err)
	}

	for _, id := range c.playerIDs {
		if cl := c.registry.Lookup(id); cl != nil {
			cl.SetRole(session.RoleWaitingPlayer)
		}
	}
	c.queue.EndMatch()
}

// endNeutral ends the match with the spec's "server error" outcome
// (spec §7 "Internal controller fault").
func (c *Controller) endNeutral(ctx context.Context, reason Reason) {
	c.setPhase("ended")
	c.sendBoth(protocol.KindError, msgServerError())
	slog.Error("match ended due to internal fault", "player_a", c.playerIDs[0], "player_b", c.playerIDs[1])

	rec := history.MatchRecord{
		PlayerA:   c.playerIDs[0],
		PlayerB:   c.playerIDs[1],
		Reason:    string(reason),
		ShotsA:    c.shots[0],
		ShotsB:    c.shots[1],
		StartedAt: c.startedAt,
		EndedAt:   time.Now(),
	}
	if err := c.store.Record(ctx, rec); err != nil {
		slog.Warn("failed to persist match history", "error", err)
	}

	for _, id := range c.playerIDs {
		if cl := c.registry.Lookup(id); cl != nil {
			cl.SetRole(session.RoleWaitingPlayer)
		}
	}
	c.queue.EndMatch()
}

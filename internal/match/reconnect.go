package match

import (
	"log/slog"
	"time"

	"github.com/rdenton/battleshipd/internal/protocol"
)

// reconnectBroker tracks at most one in-flight disconnect per player
// for the match it's bound to, and feeds the controller's event
// stream on resolution — reconnected or expired (spec §4.8). It holds
// only a back-reference into the controller, never the grids
// themselves, keeping the FSM the sole owner of match state (spec §9).
type reconnectBroker struct {
	ctrl *Controller
}

func newReconnectBroker(ctrl *Controller) *reconnectBroker {
	return &reconnectBroker{ctrl: ctrl}
}

// handleDisconnect marks idx's player disconnected and starts the
// countdown goroutine, unless a window is already in flight for them
// (spec §4.8 "only one in-flight reconnect window per username").
func (b *reconnectBroker) handleDisconnect(idx int) {
	cl := b.ctrl.client(idx)
	if cl == nil {
		b.ctrl.pushEvent(ctrlEvent{kind: evReconnectExpired, idx: idx})
		return
	}

	window := b.ctrl.cfg.ReconnectWindow()
	deadline, already := cl.MarkDisconnected(window)
	if already {
		return
	}

	who := b.ctrl.playerIDs[idx]
	opponent := b.ctrl.other(idx)
	b.ctrl.pushEvent(ctrlEvent{kind: evDisconnected, idx: idx})
	b.ctrl.send(opponent, protocol.KindSystem, msgDisconnected(who, int(window.Seconds())))
	slog.Info("player disconnected mid-match, reconnect window opened", "id", who, "deadline", deadline)

	go b.runCountdown(idx, deadline)
}

func (b *reconnectBroker) runCountdown(idx int, deadline time.Time) {
	cl := b.ctrl.client(idx)
	if cl == nil {
		b.ctrl.pushEvent(ctrlEvent{kind: evReconnectExpired, idx: idx})
		return
	}

	who := b.ctrl.playerIDs[idx]
	opponent := b.ctrl.other(idx)
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case now := <-ticker.C:
			disconnected, _ := cl.IsDisconnected()
			if !disconnected {
				// Spliced back in by the accept loop between ticks.
				return
			}
			if !now.Before(deadline) {
				cl.ClearDisconnected()
				b.ctrl.send(opponent, protocol.KindGameState, msgForfeitDisconnect(who))
				b.ctrl.pushEvent(ctrlEvent{kind: evReconnectExpired, idx: idx})
				return
			}
			remaining := int(time.Until(deadline).Seconds())
			if remaining < 0 {
				remaining = 0
			}
			b.ctrl.send(opponent, protocol.KindSystem, msgReconnectCountdown(who, remaining))
			// Best-effort nudge to the disconnected player's own
			// transport; harmless if it's still broken.
			b.ctrl.send(idx, protocol.KindSystem, msgReconnectCountdown(who, remaining))
		}
	}
}

// handleReconnect resolves idx's disconnect after the accept loop has
// already spliced the new transport into the Client: it clears the
// Client's disconnected flag and notifies the opponent and the FSM.
func (b *reconnectBroker) handleReconnect(idx int) {
	if cl := b.ctrl.client(idx); cl != nil {
		cl.ClearDisconnected()
	}
	who := b.ctrl.playerIDs[idx]
	opponent := b.ctrl.other(idx)
	b.ctrl.send(opponent, protocol.KindSystem, msgReconnected(who))
	b.ctrl.pushEvent(ctrlEvent{kind: evReconnected, idx: idx})
	slog.Info("player reconnected mid-match", "id", who)
}

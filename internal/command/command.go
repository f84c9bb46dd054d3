// Package command implements CommandHandler: the always-available
// `/help`, `/status`, `/chat` commands, independent of match state
// (spec §4.9). Explicit `/quit` is intercepted earlier, at the reader
// level (session.Client.RunReader), and routed directly through the
// match FSM or a hard registry removal; it is not handled here.
package command

import (
	"fmt"
	"strings"

	"github.com/rdenton/battleshipd/internal/match"
	"github.com/rdenton/battleshipd/internal/protocol"
	"github.com/rdenton/battleshipd/internal/queue"
	"github.com/rdenton/battleshipd/internal/session"
)

// MatchLookup resolves the single live match a client belongs to, if
// any. The session model supports exactly one concurrent match (spec
// Non-goals: "lobby rooms beyond a single global queue"), so a simple
// getter suffices in place of a per-client match index.
type MatchLookup func() (snap match.Snapshot, ok bool)

// Handler dispatches slash commands and chat broadcasts.
type Handler struct {
	registry    *session.Registry
	queue       *queue.Queue
	currentMatch MatchLookup
}

// New builds a Handler bound to the shared registry, queue, and a
// lookup for the currently running match (if any).
func New(registry *session.Registry, q *queue.Queue, lookup MatchLookup) *Handler {
	return &Handler{registry: registry, queue: q, currentMatch: lookup}
}

// Handle interprets one leading-slash command line from sender.
func (h *Handler) Handle(sender *session.Client, text string) {
	fields := strings.Fields(text)
	if len(fields) == 0 {
		sender.Send(protocol.KindError, "empty command")
		return
	}

	cmd := strings.ToLower(fields[0])
	rest := strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(text), fields[0]))

	switch cmd {
	case "/help":
		sender.Send(protocol.KindSystem, h.helpText(sender.Role()))
	case "/status":
		sender.Send(protocol.KindSystem, h.statusText(sender))
	case "/chat":
		if rest == "" {
			sender.Send(protocol.KindError, "usage: /chat <text>")
			return
		}
		h.BroadcastChat(sender, rest)
	case "/quit":
		// Reached only when the reader's own interception did not fire
		// (it matches the bare "/quit" line only, so e.g. "/quit now"
		// lands here). This only sends a notice: it does not remove
		// the client or end a match.
		sender.Send(protocol.KindSystem, "quitting...")
	default:
		sender.Send(protocol.KindError, fmt.Sprintf("unknown command %q — try /help", fields[0]))
	}
}

// BroadcastChat sends a prefixed chat line to every other live
// client (spec §4.9 "[CHAT] <Role> <id>:"; Open Question resolved as
// "reaches everyone except the sender").
func (h *Handler) BroadcastChat(sender *session.Client, text string) {
	line := fmt.Sprintf("[CHAT] %s %s: %s", sender.Role(), sender.ID, text)
	for _, c := range h.registry.Snapshot() {
		if c.ID == sender.ID {
			continue
		}
		c.Send(protocol.KindChat, line)
	}
}

func (h *Handler) helpText(role session.Role) string {
	switch role {
	case session.RoleActivePlayer:
		return "commands: a coordinate (e.g. B7) to fire or place; /chat <text>; /status; /quit"
	default:
		return "commands: /chat <text>; /status; /quit — plain text is broadcast as chat while you are not an active player"
	}
}

func (h *Handler) statusText(c *session.Client) string {
	if snap, ok := h.currentMatch(); ok {
		switch {
		case snap.PlayerA == c.ID || snap.PlayerB == c.ID:
			opponent := snap.PlayerA
			if snap.PlayerA == c.ID {
				opponent = snap.PlayerB
			}
			if snap.Phase == "placement" {
				return fmt.Sprintf("you are placing your fleet against %s", opponent)
			}
			if snap.TurnOwner == c.ID {
				return fmt.Sprintf("you are playing against %s — it is your turn", opponent)
			}
			return fmt.Sprintf("you are playing against %s — waiting on their turn", opponent)
		default:
			if pos, total, ok := h.queue.Position(c.ID); ok {
				return fmt.Sprintf("spectating %s vs %s; you are #%d of %d in the queue", snap.PlayerA, snap.PlayerB, pos, total)
			}
			return fmt.Sprintf("spectating %s vs %s", snap.PlayerA, snap.PlayerB)
		}
	}

	if pos, total, ok := h.queue.Position(c.ID); ok {
		return fmt.Sprintf("you are #%d of %d in the queue", pos, total)
	}
	return "not currently queued"
}

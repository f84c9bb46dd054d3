// Package queue implements the MatchmakingQueue: an ordered waiting
// list with role tags and a promotion policy, mediating between the
// ClientRegistry and the match layer (spec §4.6).
package queue

import (
	"log/slog"

	"github.com/rdenton/battleshipd/internal/session"
)

// InputChannelCapacity bounds a promoted player's per-turn input
// channel (spec §3 "input_channel").
const InputChannelCapacity = 4

// Queue is the ordered waiting list. All mutation happens under the
// registry's single lock so role changes and queue membership stay
// atomic together (spec §5 "Registry mutations ... are serialized by
// a single registry lock").
type Queue struct {
	registry *session.Registry

	order      []string // waiting client ids, admission order
	activeIDs  [2]string
	matchLive  bool
}

// New creates an empty queue bound to registry.
func New(registry *session.Registry) *Queue {
	return &Queue{registry: registry}
}

// waitingPlayerCount reports how many ids currently at the front of
// order would be tagged waiting_player under the current policy: the
// first two, but only as many as aren't already covered by a live
// match. Must be called with the registry lock held.
func (q *Queue) waitingPlayerCount() int {
	n := 2 - q.seatedPlayers()
	if n < 0 {
		n = 0
	}
	if n > len(q.order) {
		n = len(q.order)
	}
	return n
}

func (q *Queue) seatedPlayers() int {
	if q.matchLive {
		return 2
	}
	return 0
}

// roleFor returns the role a client at position idx (0-based) in the
// waiting order should hold right now.
func (q *Queue) roleFor(idx int) session.Role {
	if idx < q.waitingPlayerCount() {
		return session.RoleWaitingPlayer
	}
	return session.RoleWaitingSpectator
}

// reassignRoles re-tags every id currently in order according to
// roleFor, and re-seats their Client.role fields. Must be called with
// the registry lock held.
func (q *Queue) reassignRoles() {
	clients := q.registry.ClientsLocked()
	for i, id := range q.order {
		if c, ok := clients[id]; ok {
			c.SetRole(q.roleFor(i))
		}
	}
}

// Join adds a newly admitted client to the back of the waiting order
// and returns its assigned role and 1-based queue position.
func (q *Queue) Join(id string) (session.Role, int) {
	q.registry.Lock()
	defer q.registry.Unlock()

	q.order = append(q.order, id)
	q.reassignRoles()

	pos := len(q.order)
	for i, oid := range q.order {
		if oid == id {
			pos = i + 1
			break
		}
	}

	role := q.roleFor(pos - 1)
	slog.Info("client joined queue", "id", id, "role", role, "position", pos, "queue_size", len(q.order))
	return role, pos
}

// Leave removes id from the waiting order, if present (active players
// are not tracked in order and are unaffected).
func (q *Queue) Leave(id string) {
	q.registry.Lock()
	defer q.registry.Unlock()
	q.removeLocked(id)
	q.reassignRoles()
}

func (q *Queue) removeLocked(id string) {
	for i, oid := range q.order {
		if oid == id {
			q.order = append(q.order[:i], q.order[i+1:]...)
			return
		}
	}
}

// TryPromote pops the front two eligible ids and flips them to
// active_player, creating a fresh bounded input channel for each, iff
// no match is currently live and at least two clients are waiting.
// Promotion is atomic under the registry lock (spec §4.6).
func (q *Queue) TryPromote() (idA, idB string, chA, chB chan string, ok bool) {
	q.registry.Lock()
	defer q.registry.Unlock()

	if q.matchLive || len(q.order) < 2 {
		return "", "", nil, nil, false
	}

	idA, idB = q.order[0], q.order[1]
	q.order = q.order[2:]

	clients := q.registry.ClientsLocked()
	ca, okA := clients[idA]
	cb, okB := clients[idB]
	if !okA || !okB {
		// One vanished between admission and promotion; put back
		// whichever is still live and let the next event retry.
		if okA {
			q.order = append([]string{idA}, q.order...)
		}
		if okB {
			q.order = append([]string{idB}, q.order...)
		}
		return "", "", nil, nil, false
	}

	ca.SetRole(session.RoleActivePlayer)
	cb.SetRole(session.RoleActivePlayer)
	chA = ca.AttachInputChannel(InputChannelCapacity)
	chB = cb.AttachInputChannel(InputChannelCapacity)

	q.matchLive = true
	q.activeIDs = [2]string{idA, idB}
	q.reassignRoles()

	slog.Info("match promoted", "player_a", idA, "player_b", idB)
	return idA, idB, chA, chB, true
}

// EndMatch clears the live-match flag and recycles both players to
// the back of the waiting order (spec §4.6 "Recycling", scenario 6).
// Players who already left the registry (hard disconnect, not
// reconnect) are skipped.
func (q *Queue) EndMatch() {
	q.registry.Lock()
	defer q.registry.Unlock()

	ids := q.activeIDs
	q.activeIDs = [2]string{}
	q.matchLive = false

	clients := q.registry.ClientsLocked()
	for _, id := range ids {
		if id == "" {
			continue
		}
		if _, ok := clients[id]; ok {
			q.order = append(q.order, id)
		}
	}
	q.reassignRoles()
	slog.Info("match ended, players recycled", "queue_size", len(q.order))
}

// Position reports id's 1-based position in the waiting order and the
// total waiting count. ok is false if id is not currently waiting
// (e.g. it is one of the two active players).
func (q *Queue) Position(id string) (pos int, total int, ok bool) {
	q.registry.Lock()
	defer q.registry.Unlock()
	for i, oid := range q.order {
		if oid == id {
			return i + 1, len(q.order), true
		}
	}
	return 0, len(q.order), false
}

// MatchLive reports whether a match is currently in progress.
func (q *Queue) MatchLive() bool {
	q.registry.Lock()
	defer q.registry.Unlock()
	return q.matchLive
}

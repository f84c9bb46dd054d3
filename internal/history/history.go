// Package history implements the optional match-history sink (spec
// §3, §4.11 expansion): a small repository interface so the server
// runs entirely in-memory when no database is configured, and a
// PostgreSQL-backed implementation grounded on the teacher's
// internal/db package when one is.
package history

import (
	"context"
	"time"

	"log/slog"
)

// MatchRecord summarizes one finished match: both player ids, the
// winner (empty for a neutral server-error end), the end reason, each
// player's shot count, and the match's start/end timestamps. Never
// includes credentials or transport details — persistent accounts
// remain out of scope (spec Non-goals).
type MatchRecord struct {
	PlayerA, PlayerB string
	Winner           string
	Reason           string
	ShotsA, ShotsB   int
	StartedAt        time.Time
	EndedAt          time.Time
}

// Store records completed matches.
type Store interface {
	Record(ctx context.Context, rec MatchRecord) error
	Close()
}

// NullStore is the default no-op sink used when no database is
// configured; it logs at debug level and otherwise discards.
type NullStore struct{}

func (NullStore) Record(_ context.Context, rec MatchRecord) error {
	slog.Debug("match history (in-memory only)",
		"player_a", rec.PlayerA, "player_b", rec.PlayerB,
		"winner", rec.Winner, "reason", rec.Reason,
	)
	return nil
}

func (NullStore) Close() {}

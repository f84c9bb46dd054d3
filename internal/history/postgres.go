package history

import (
	"context"
	"database/sql"
	"fmt"
	"sync"

	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"

	"github.com/rdenton/battleshipd/internal/history/migrations"
)

var gooseOnce sync.Once

// PostgresStore persists MatchRecords to a `match_history` table
// through a pgx pool, modeled directly on the teacher's DB/RunMigrations
// pair (internal/db/db.go, internal/db/migrate.go).
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore connects to dsn, runs pending goose migrations, and
// returns a ready Store.
func NewPostgresStore(ctx context.Context, dsn string) (*PostgresStore, error) {
	if err := runMigrations(ctx, dsn); err != nil {
		return nil, err
	}

	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("connecting to match history database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging match history database: %w", err)
	}
	return &PostgresStore{pool: pool}, nil
}

func runMigrations(ctx context.Context, dsn string) error {
	sqlDB, err := sql.Open("pgx", dsn)
	if err != nil {
		return fmt.Errorf("opening sql connection for migrations: %w", err)
	}
	defer sqlDB.Close()

	var dialectErr error
	gooseOnce.Do(func() {
		goose.SetBaseFS(migrations.FS)
		dialectErr = goose.SetDialect("postgres")
	})
	if dialectErr != nil {
		return fmt.Errorf("setting goose dialect: %w", dialectErr)
	}
	if err := goose.UpContext(ctx, sqlDB, "."); err != nil {
		return fmt.Errorf("running match history migrations: %w", err)
	}
	return nil
}

// Record inserts one completed match row.
func (s *PostgresStore) Record(ctx context.Context, rec MatchRecord) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO match_history
			(player_a, player_b, winner, reason, shots_a, shots_b, started_at, ended_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		rec.PlayerA, rec.PlayerB, nullable(rec.Winner), rec.Reason,
		rec.ShotsA, rec.ShotsB, rec.StartedAt, rec.EndedAt,
	)
	if err != nil {
		return fmt.Errorf("recording match history for %s vs %s: %w", rec.PlayerA, rec.PlayerB, err)
	}
	return nil
}

// Close closes the underlying connection pool.
func (s *PostgresStore) Close() {
	s.pool.Close()
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}

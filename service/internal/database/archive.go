// internal/database/archive.go
package database

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	log "github.com/sirupsen/logrus"
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS patchwork_results (
	game_id     UUID PRIMARY KEY,
	variant     TEXT NOT NULL,
	winners     TEXT[] NOT NULL,
	tie         BOOLEAN NOT NULL,
	turns       INTEGER NOT NULL,
	final_state JSONB NOT NULL,
	ended_at    TIMESTAMPTZ NOT NULL
)`

const upsertSQL = `
INSERT INTO patchwork_results (game_id, variant, winners, tie, turns, final_state, ended_at)
VALUES ($1, $2, $3, $4, $5, $6, $7)
ON CONFLICT (game_id) DO UPDATE SET
	variant = EXCLUDED.variant,
	winners = EXCLUDED.winners,
	tie = EXCLUDED.tie,
	turns = EXCLUDED.turns,
	final_state = EXCLUDED.final_state,
	ended_at = EXCLUDED.ended_at`

// FinalPlayerState is one player's standing when the game ended.
type FinalPlayerState struct {
	UserID   uuid.UUID `json:"user_id"`
	Name     string    `json:"name"`
	Score    int       `json:"score"`
	Money    int       `json:"money"`
	Income   int       `json:"income"`
	Empty    int       `json:"empty"`
	Position int       `json:"position"`
	Quilt    []string  `json:"quilt"`
}

// FinalGameState is the archived result of a finished game.
type FinalGameState struct {
	GameID       uuid.UUID          `json:"game_id"`
	Variant      string             `json:"variant"`
	Players      []FinalPlayerState `json:"players"`
	Winners      []uuid.UUID        `json:"winners"`
	Tie          bool               `json:"tie"`
	SpecialOwner *uuid.UUID         `json:"special_owner,omitempty"`
	Turns        int                `json:"turns"`
	EndedAt      time.Time          `json:"ended_at"`
}

type execer interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
}

// Archive writes finished games to Postgres.
type Archive struct {
	db   execer
	pool *pgxpool.Pool
}

// Connect opens a pool for dsn and pings it.
func Connect(ctx context.Context, dsn string) (*Archive, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	log.Info("connected to postgres")
	return &Archive{db: pool, pool: pool}, nil
}

// EnsureSchema creates the results table when missing.
func (a *Archive) EnsureSchema(ctx context.Context) error {
	if _, err := a.db.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("create patchwork_results: %w", err)
	}
	return nil
}

// StoreFinalGameState upserts the result row for state.GameID.
func (a *Archive) StoreFinalGameState(ctx context.Context, state FinalGameState) error {
	doc, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("marshal final state for game %s: %w", state.GameID, err)
	}
	winners := make([]string, len(state.Winners))
	for i, w := range state.Winners {
		winners[i] = w.String()
	}
	endedAt := state.EndedAt
	if endedAt.IsZero() {
		endedAt = time.Now().UTC()
	}
	tag, err := a.db.Exec(ctx, upsertSQL,
		state.GameID.String(), state.Variant, winners, state.Tie, state.Turns, doc, endedAt)
	if err != nil {
		return fmt.Errorf("store final state for game %s: %w", state.GameID, err)
	}
	log.WithFields(log.Fields{"game": state.GameID, "rows": tag.RowsAffected()}).Debug("stored final game state")
	return nil
}

// Close releases the pool.
func (a *Archive) Close() {
	if a.pool != nil {
		a.pool.Close()
	}
}

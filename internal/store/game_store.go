package store

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/avvvet/bingo-rooms/internal/models"
)

const gameResultsSchema = `
	CREATE TABLE IF NOT EXISTS game_results (
		id             BIGSERIAL PRIMARY KEY,
		room_id        TEXT        NOT NULL,
		instance_id    TEXT        NOT NULL,
		outcome        TEXT        NOT NULL,
		winner         TEXT,
		called_numbers JSONB       NOT NULL,
		participants   INT         NOT NULL,
		started_at     TIMESTAMPTZ NOT NULL,
		finished_at    TIMESTAMPTZ NOT NULL
	)`

type GameStore struct {
	db *pgxpool.Pool
}

func NewGameStore(db *pgxpool.Pool) *GameStore {
	return &GameStore{db: db}
}

func (s *GameStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, gameResultsSchema); err != nil {
		return fmt.Errorf("failed to create game_results: %w", err)
	}
	return nil
}

// SaveGame inserts one finished round.
func (s *GameStore) SaveGame(ctx context.Context, res models.GameResult) error {
	called, err := json.Marshal(res.CalledNumbers)
	if err != nil {
		return fmt.Errorf("failed to encode called numbers: %w", err)
	}

	query := `
		INSERT INTO game_results
			(room_id, instance_id, outcome, winner, called_numbers, participants, started_at, finished_at)
		VALUES ($1, $2, $3, NULLIF($4, ''), $5, $6, $7, $8)
	`

	_, err = s.db.Exec(ctx, query,
		res.RoomId,
		res.InstanceId,
		res.Outcome,
		res.Winner,
		called,
		res.Participants,
		res.StartedAt,
		res.FinishedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert game result: %w", err)
	}
	return nil
}

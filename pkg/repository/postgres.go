package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/tecu23/chess-relay/internal/color"
	"github.com/tecu23/chess-relay/pkg/game"
)

const postgresSchema = `
CREATE TABLE IF NOT EXISTS games (
	id         UUID PRIMARY KEY,
	room_id    TEXT NOT NULL,
	white      TEXT NOT NULL,
	black      TEXT NOT NULL,
	moves      TEXT[] NOT NULL,
	winner     TEXT NOT NULL DEFAULT '',
	reason     TEXT NOT NULL DEFAULT '',
	started_at TIMESTAMPTZ NOT NULL,
	ended_at   TIMESTAMPTZ NOT NULL
)`

// PostgresGameRepository keeps finished games in Postgres
type PostgresGameRepository struct {
	pool   *pgxpool.Pool
	logger *zap.Logger
}

// OpenPostgres connects to dsn and makes sure the games table exists
func OpenPostgres(ctx context.Context, dsn string, logger *zap.Logger) (*PostgresGameRepository, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to connect: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if _, err := pool.Exec(ctx, postgresSchema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("create postgres schema: %w", err)
	}

	logger.Info("connected to postgres game store")

	return &PostgresGameRepository{pool: pool, logger: logger}, nil
}

// SaveGame upserts a game
func (r *PostgresGameRepository) SaveGame(ctx context.Context, record *game.Record) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO games (
			id, room_id, white, black, moves, winner, reason, started_at, ended_at
		) VALUES ($1::uuid, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (id) DO UPDATE SET
			moves = EXCLUDED.moves,
			winner = EXCLUDED.winner,
			reason = EXCLUDED.reason,
			ended_at = EXCLUDED.ended_at`,
		record.ID.String(),
		record.RoomID,
		record.White,
		record.Black,
		movesOrEmpty(record.Moves),
		string(record.Winner),
		record.Reason,
		record.StartedAt,
		record.EndedAt,
	)
	if err != nil {
		return fmt.Errorf("insert game %s: %w", record.ID, err)
	}

	return nil
}

// GetGame retrieves a game by ID
func (r *PostgresGameRepository) GetGame(ctx context.Context, id uuid.UUID) (*game.Record, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id::text, room_id, white, black, moves, winner, reason, started_at, ended_at
		FROM games WHERE id = $1::uuid`, id.String())

	record, err := scanPostgresGame(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrGameNotFound
	}
	return record, err
}

// ListGames returns the most recently ended games first
func (r *PostgresGameRepository) ListGames(ctx context.Context, limit int) ([]*game.Record, error) {
	query := `
		SELECT id::text, room_id, white, black, moves, winner, reason, started_at, ended_at
		FROM games ORDER BY ended_at DESC`
	args := []any{}
	if limit > 0 {
		query += " LIMIT $1"
		args = append(args, limit)
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list games: %w", err)
	}
	defer rows.Close()

	var games []*game.Record
	for rows.Next() {
		record, err := scanPostgresGame(rows)
		if err != nil {
			return nil, err
		}
		games = append(games, record)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate games: %w", err)
	}
	return games, nil
}

// Close releases the pool
func (r *PostgresGameRepository) Close() error {
	r.pool.Close()
	return nil
}

func scanPostgresGame(row pgx.Row) (*game.Record, error) {
	var (
		id, winner string
		record     game.Record
	)

	err := row.Scan(&id, &record.RoomID, &record.White, &record.Black, &record.Moves, &winner,
		&record.Reason, &record.StartedAt, &record.EndedAt)
	if err != nil {
		return nil, err
	}

	if record.ID, err = uuid.Parse(id); err != nil {
		return nil, fmt.Errorf("parse game id: %w", err)
	}
	record.Winner = color.Color(winner)

	return &record, nil
}

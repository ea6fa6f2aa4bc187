package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/tecu23/chess-relay/internal/color"
	"github.com/tecu23/chess-relay/pkg/game"
)

// timeFormat is fixed width so ORDER BY on the text column sorts by time.
const timeFormat = "2006-01-02T15:04:05.000000000Z07:00"

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS games (
	id         TEXT PRIMARY KEY,
	room_id    TEXT NOT NULL,
	white      TEXT NOT NULL,
	black      TEXT NOT NULL,
	moves      TEXT NOT NULL,
	winner     TEXT NOT NULL DEFAULT '',
	reason     TEXT NOT NULL DEFAULT '',
	started_at TEXT NOT NULL,
	ended_at   TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS games_ended_at ON games (ended_at);
`

// SQLiteGameRepository keeps finished games in a SQLite file
type SQLiteGameRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// OpenSQLite opens (and creates if needed) the database at path
func OpenSQLite(ctx context.Context, path string, logger *zap.Logger) (*SQLiteGameRepository, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("sqlite path is required")
	}

	dsn := path + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}

	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create sqlite schema: %w", err)
	}

	logger.Info("opened sqlite game store", zap.String("path", path))

	return &SQLiteGameRepository{db: db, logger: logger}, nil
}

// SaveGame inserts or replaces a game
func (r *SQLiteGameRepository) SaveGame(ctx context.Context, record *game.Record) error {
	moves, err := json.Marshal(movesOrEmpty(record.Moves))
	if err != nil {
		return fmt.Errorf("encode moves: %w", err)
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO games (
			id, room_id, white, black, moves, winner, reason, started_at, ended_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		record.ID.String(),
		record.RoomID,
		record.White,
		record.Black,
		string(moves),
		string(record.Winner),
		record.Reason,
		record.StartedAt.UTC().Format(timeFormat),
		record.EndedAt.UTC().Format(timeFormat),
	)
	if err != nil {
		return fmt.Errorf("insert game %s: %w", record.ID, err)
	}

	return nil
}

// GetGame retrieves a game by ID
func (r *SQLiteGameRepository) GetGame(ctx context.Context, id uuid.UUID) (*game.Record, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, room_id, white, black, moves, winner, reason, started_at, ended_at
		FROM games WHERE id = ?`, id.String())

	record, err := scanSQLiteGame(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrGameNotFound
	}
	return record, err
}

// ListGames returns the most recently ended games first
func (r *SQLiteGameRepository) ListGames(ctx context.Context, limit int) ([]*game.Record, error) {
	if limit <= 0 {
		limit = -1
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT id, room_id, white, black, moves, winner, reason, started_at, ended_at
		FROM games ORDER BY ended_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list games: %w", err)
	}
	defer rows.Close()

	var games []*game.Record
	for rows.Next() {
		record, err := scanSQLiteGame(rows)
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

// Close closes the underlying database
func (r *SQLiteGameRepository) Close() error {
	if r == nil || r.db == nil {
		return nil
	}
	return r.db.Close()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSQLiteGame(row rowScanner) (*game.Record, error) {
	var (
		id, moves, winner  string
		startedAt, endedAt string
		record             game.Record
	)

	err := row.Scan(&id, &record.RoomID, &record.White, &record.Black, &moves, &winner,
		&record.Reason, &startedAt, &endedAt)
	if err != nil {
		return nil, err
	}

	if record.ID, err = uuid.Parse(id); err != nil {
		return nil, fmt.Errorf("parse game id: %w", err)
	}
	if err := json.Unmarshal([]byte(moves), &record.Moves); err != nil {
		return nil, fmt.Errorf("decode moves: %w", err)
	}
	if record.StartedAt, err = time.Parse(timeFormat, startedAt); err != nil {
		return nil, fmt.Errorf("parse started_at: %w", err)
	}
	if record.EndedAt, err = time.Parse(timeFormat, endedAt); err != nil {
		return nil, fmt.Errorf("parse ended_at: %w", err)
	}
	record.Winner = color.Color(winner)

	return &record, nil
}

func movesOrEmpty(moves []string) []string {
	if moves == nil {
		return []string{}
	}
	return moves
}

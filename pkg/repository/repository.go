// Package repository stores finished games.
package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/tecu23/chess-relay/pkg/game"
)

// Supported store drivers
const (
	DriverMemory   = "memory"
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

var (
	// ErrGameNotFound is returned by GetGame for unknown ids
	ErrGameNotFound = errors.New("game not found")
	// ErrUnknownDriver is returned by Open for unsupported drivers
	ErrUnknownDriver = errors.New("unknown store driver")
)

// GameRepository is the durable home of finished games
type GameRepository interface {
	SaveGame(ctx context.Context, record *game.Record) error
	GetGame(ctx context.Context, id uuid.UUID) (*game.Record, error)
	ListGames(ctx context.Context, limit int) ([]*game.Record, error)
	Close() error
}

// Open builds the repository for driver. dsn is ignored by the memory store.
func Open(ctx context.Context, driver, dsn string, logger *zap.Logger) (GameRepository, error) {
	switch driver {
	case "", DriverMemory:
		return NewInMemoryRepository(logger), nil
	case DriverSQLite:
		repo, err := OpenSQLite(ctx, dsn, logger)
		if err != nil {
			return nil, err
		}
		return repo, nil
	case DriverPostgres:
		repo, err := OpenPostgres(ctx, dsn, logger)
		if err != nil {
			return nil, err
		}
		return repo, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownDriver, driver)
	}
}

package repository

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/tecu23/chess-relay/pkg/game"
)

// InMemoryGameRepository in an in-memory implementation of GameRepository
type InMemoryGameRepository struct {
	games  map[uuid.UUID]*game.Record
	mu     sync.RWMutex
	logger *zap.Logger
}

// NewInMemoryRepository creates a new in-memory repository
func NewInMemoryRepository(logger *zap.Logger) *InMemoryGameRepository {
	return &InMemoryGameRepository{
		games:  make(map[uuid.UUID]*game.Record),
		logger: logger,
	}
}

// SaveGame saves a game to the repository
func (r *InMemoryGameRepository) SaveGame(_ context.Context, record *game.Record) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored := *record
	stored.Moves = append([]string(nil), record.Moves...)
	r.games[record.ID] = &stored

	r.logger.Debug("saved game", zap.String("game_id", record.ID.String()))
	return nil
}

// GetGame retrieves a game by ID
func (r *InMemoryGameRepository) GetGame(_ context.Context, id uuid.UUID) (*game.Record, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	record, ok := r.games[id]
	if !ok {
		return nil, ErrGameNotFound
	}

	out := *record
	return &out, nil
}

// ListGames returns the most recently ended games first
func (r *InMemoryGameRepository) ListGames(_ context.Context, limit int) ([]*game.Record, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	games := make([]*game.Record, 0, len(r.games))
	for _, g := range r.games {
		out := *g
		games = append(games, &out)
	}

	sort.Slice(games, func(i, j int) bool {
		return games[i].EndedAt.After(games[j].EndedAt)
	})

	if limit > 0 && len(games) > limit {
		games = games[:limit]
	}
	return games, nil
}

// Close is a no-op for the memory store
func (r *InMemoryGameRepository) Close() error {
	return nil
}

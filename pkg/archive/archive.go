// Package archive hands finished games to the game repository.
package archive

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/tecu23/chess-relay/pkg/events"
	"github.com/tecu23/chess-relay/pkg/game"
	"github.com/tecu23/chess-relay/pkg/repository"
)

const defaultSaveTimeout = 5 * time.Second

// Archiver listens for ended games and saves them
type Archiver struct {
	repo    repository.GameRepository
	timeout time.Duration
	logger  *zap.Logger

	wg sync.WaitGroup
}

// New creates an archiver writing to repo
func New(repo repository.GameRepository, logger *zap.Logger) *Archiver {
	return &Archiver{
		repo:    repo,
		timeout: defaultSaveTimeout,
		logger:  logger,
	}
}

// Attach subscribes the archiver to game ended events. The save is counted
// before Publish returns, so a later Wait covers it.
func (a *Archiver) Attach(p *events.Publisher) {
	p.SubscribeSync(events.EventGameEnded, a.handle)
}

func (a *Archiver) handle(event events.Event) {
	record, ok := event.Payload.(*game.Record)
	if !ok {
		a.logger.Error("Invalid game ended payload type", zap.String("room_id", event.RoomID))
		return
	}

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()

		if err := a.Archive(record); err != nil {
			a.logger.Error("failed to archive game",
				zap.String("game_id", record.ID.String()),
				zap.Error(err),
			)
		}
	}()
}

// Archive saves one record
func (a *Archiver) Archive(record *game.Record) error {
	ctx, cancel := context.WithTimeout(context.Background(), a.timeout)
	defer cancel()

	if err := a.repo.SaveGame(ctx, record); err != nil {
		return fmt.Errorf("save game: %w", err)
	}

	a.logger.Info("archived game",
		zap.String("game_id", record.ID.String()),
		zap.String("room_id", record.RoomID),
		zap.Int("moves", len(record.Moves)),
	)
	return nil
}

// Wait blocks until in-flight saves are done
func (a *Archiver) Wait() {
	a.wg.Wait()
}

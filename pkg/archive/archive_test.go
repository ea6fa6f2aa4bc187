package archive

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/tecu23/chess-relay/internal/color"
	"github.com/tecu23/chess-relay/pkg/events"
	"github.com/tecu23/chess-relay/pkg/game"
	"github.com/tecu23/chess-relay/pkg/repository"
)

type failingRepo struct {
	repository.GameRepository
}

func (failingRepo) SaveGame(context.Context, *game.Record) error {
	return errors.New("disk full")
}

type slowRepo struct {
	repository.GameRepository
	saved atomic.Int32
}

func (r *slowRepo) SaveGame(context.Context, *game.Record) error {
	time.Sleep(20 * time.Millisecond)
	r.saved.Add(1)
	return nil
}

func TestArchiver_WaitCoversPublishedGames(t *testing.T) {
	repo := &slowRepo{}
	publisher := events.NewPublisher()

	archiver := New(repo, zap.NewNop())
	archiver.Attach(publisher)

	for i := 0; i < 3; i++ {
		publisher.Publish(events.Event{
			Type:    events.EventGameEnded,
			RoomID:  "A",
			Payload: &game.Record{ID: uuid.New(), RoomID: "A"},
		})
	}
	archiver.Wait()

	assert.Equal(t, int32(3), repo.saved.Load())
}

func TestArchiver_SavesEndedGames(t *testing.T) {
	repo := repository.NewInMemoryRepository(zap.NewNop())
	publisher := events.NewPublisher()

	archiver := New(repo, zap.NewNop())
	archiver.Attach(publisher)

	record := &game.Record{
		ID:      uuid.New(),
		RoomID:  "A",
		White:   "w-conn",
		Black:   "b-conn",
		Moves:   []string{"e4", "e5"},
		Winner:  color.White,
		Reason:  "time",
		EndedAt: time.Now(),
	}
	publisher.Publish(events.Event{Type: events.EventGameEnded, RoomID: "A", Payload: record})

	assert.Eventually(t, func() bool {
		_, err := repo.GetGame(context.Background(), record.ID)
		return err == nil
	}, time.Second, 5*time.Millisecond)
}

func TestArchiver_IgnoresForeignPayload(t *testing.T) {
	repo := repository.NewInMemoryRepository(zap.NewNop())
	archiver := New(repo, zap.NewNop())

	archiver.handle(events.Event{Type: events.EventGameEnded, Payload: "nope"})

	games, err := repo.ListGames(context.Background(), 0)
	require.NoError(t, err)
	assert.Empty(t, games)
}

func TestArchiver_WrapsSaveErrors(t *testing.T) {
	archiver := New(failingRepo{}, zap.NewNop())

	err := archiver.Archive(&game.Record{ID: uuid.New()})
	assert.ErrorContains(t, err, "disk full")
	archiver.Wait()
}

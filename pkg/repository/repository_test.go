package repository

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/tecu23/chess-relay/internal/color"
	"github.com/tecu23/chess-relay/pkg/game"
)

func sampleRecord(endedAt time.Time, winner color.Color, moves ...string) *game.Record {
	return &game.Record{
		ID:        uuid.New(),
		RoomID:    "room-" + endedAt.Format("150405"),
		White:     uuid.NewString(),
		Black:     uuid.NewString(),
		Moves:     moves,
		Winner:    winner,
		Reason:    "time",
		StartedAt: endedAt.Add(-5 * time.Minute),
		EndedAt:   endedAt,
	}
}

// exerciseRepository runs the behaviour every store must share
func exerciseRepository(t *testing.T, repo GameRepository) {
	t.Helper()
	ctx := context.Background()
	base := time.Date(2026, 10, 18, 12, 0, 0, 0, time.UTC)

	first := sampleRecord(base, color.Black, "e4", "e5", "Nf3")
	second := sampleRecord(base.Add(time.Minute), "")
	second.Reason = "Fifty move rule"
	third := sampleRecord(base.Add(2*time.Minute), color.White, "d4")

	for _, r := range []*game.Record{first, second, third} {
		require.NoError(t, repo.SaveGame(ctx, r))
	}

	got, err := repo.GetGame(ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, first.ID, got.ID)
	assert.Equal(t, first.RoomID, got.RoomID)
	assert.Equal(t, first.White, got.White)
	assert.Equal(t, first.Black, got.Black)
	assert.Equal(t, []string{"e4", "e5", "Nf3"}, got.Moves)
	assert.Equal(t, color.Black, got.Winner)
	assert.True(t, first.EndedAt.Equal(got.EndedAt))

	drawn, err := repo.GetGame(ctx, second.ID)
	require.NoError(t, err)
	assert.True(t, drawn.IsDraw())
	assert.Empty(t, drawn.Moves)

	_, err = repo.GetGame(ctx, uuid.New())
	assert.ErrorIs(t, err, ErrGameNotFound)

	latest, err := repo.ListGames(ctx, 2)
	require.NoError(t, err)
	require.Len(t, latest, 2)
	assert.Equal(t, third.ID, latest[0].ID)
	assert.Equal(t, second.ID, latest[1].ID)

	all, err := repo.ListGames(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestInMemoryRepository(t *testing.T) {
	repo := NewInMemoryRepository(zap.NewNop())
	defer repo.Close()

	exerciseRepository(t, repo)
}

func TestInMemoryRepository_CopiesRecords(t *testing.T) {
	repo := NewInMemoryRepository(zap.NewNop())
	ctx := context.Background()

	record := sampleRecord(time.Now(), color.White, "e4")
	require.NoError(t, repo.SaveGame(ctx, record))
	record.Moves[0] = "changed"

	got, err := repo.GetGame(ctx, record.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"e4"}, got.Moves)
}

func TestSQLiteRepository(t *testing.T) {
	ctx := context.Background()
	repo, err := OpenSQLite(ctx, filepath.Join(t.TempDir(), "games.db"), zap.NewNop())
	require.NoError(t, err)
	defer repo.Close()

	exerciseRepository(t, repo)
}

func TestSQLiteRepository_RequiresPath(t *testing.T) {
	_, err := OpenSQLite(context.Background(), " ", zap.NewNop())
	assert.Error(t, err)
}

func TestPostgresRepository(t *testing.T) {
	dsn := os.Getenv("TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("TEST_POSTGRES_DSN not set")
	}

	ctx := context.Background()
	repo, err := OpenPostgres(ctx, dsn, zap.NewNop())
	require.NoError(t, err)
	defer repo.Close()

	_, err = repo.pool.Exec(ctx, "TRUNCATE games")
	require.NoError(t, err)

	exerciseRepository(t, repo)
}

func TestOpen(t *testing.T) {
	ctx := context.Background()

	repo, err := Open(ctx, "", "", zap.NewNop())
	require.NoError(t, err)
	assert.IsType(t, &InMemoryGameRepository{}, repo)

	repo, err = Open(ctx, DriverSQLite, filepath.Join(t.TempDir(), "open.db"), zap.NewNop())
	require.NoError(t, err)
	assert.IsType(t, &SQLiteGameRepository{}, repo)
	require.NoError(t, repo.Close())

	_, err = Open(ctx, "mongo", "", zap.NewNop())
	assert.ErrorIs(t, err, ErrUnknownDriver)
}

func TestSQLiteRepository_OrdersBySubSecondEndTime(t *testing.T) {
	ctx := context.Background()
	repo, err := OpenSQLite(ctx, filepath.Join(t.TempDir(), "order.db"), zap.NewNop())
	require.NoError(t, err)
	defer repo.Close()

	whole := time.Date(2026, 10, 18, 12, 0, 5, 0, time.UTC)
	half := whole.Add(500 * time.Millisecond)

	earlier := sampleRecord(whole, color.White)
	later := sampleRecord(half, color.Black)
	require.NoError(t, repo.SaveGame(ctx, later))
	require.NoError(t, repo.SaveGame(ctx, earlier))

	games, err := repo.ListGames(ctx, 0)
	require.NoError(t, err)
	require.Len(t, games, 2)
	assert.Equal(t, later.ID, games[0].ID)
	assert.Equal(t, earlier.ID, games[1].ID)
	assert.True(t, half.Equal(games[0].EndedAt))
}

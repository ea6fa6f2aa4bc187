package game

import (
	"encoding/json"
	"fmt"
	"sync"
	"testing"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap/zaptest"

	"github.com/tecu23/chess-relay/pkg/events"
	"github.com/tecu23/chess-relay/pkg/messages"
)

type fakePlayer struct {
	id string

	mu     sync.Mutex
	frames []any
}

func newFakePlayer(id string) *fakePlayer {
	return &fakePlayer{id: id}
}

func (p *fakePlayer) ID() string { return p.id }

func (p *fakePlayer) SendJSON(v any) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.frames = append(p.frames, v)
}

func (p *fakePlayer) Frames() []any {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]any(nil), p.frames...)
}

func (p *fakePlayer) Last() any {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.frames) == 0 {
		return nil
	}
	return p.frames[len(p.frames)-1]
}

func (p *fakePlayer) Clear() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.frames = nil
}

// framesOf returns the frames of type T a player received, in order
func framesOf[T any](p *fakePlayer) []T {
	var out []T
	for _, f := range p.Frames() {
		if v, ok := f.(T); ok {
			out = append(out, v)
		}
	}
	return out
}

type fixture struct {
	registry  *Registry
	clock     *clockwork.FakeClock
	publisher *events.Publisher
	white     *fakePlayer
	black     *fakePlayer
}

func newFixture(t *testing.T, settings Settings) *fixture {
	t.Helper()

	clock := clockwork.NewFakeClock()
	publisher := events.NewPublisher()
	registry := NewRegistry(settings, clock, publisher, zaptest.NewLogger(t))
	t.Cleanup(registry.Shutdown)

	return &fixture{
		registry:  registry,
		clock:     clock,
		publisher: publisher,
		white:     newFakePlayer("white-conn"),
		black:     newFakePlayer("black-conn"),
	}
}

// startGame seats both players in roomID and returns the active session
func (f *fixture) startGame(t *testing.T, roomID string) *Session {
	t.Helper()

	if _, err := f.registry.Join(roomID, f.white); err != nil {
		t.Fatalf("white join: %v", err)
	}
	if _, err := f.registry.Join(roomID, f.black); err != nil {
		t.Fatalf("black join: %v", err)
	}

	session, ok := f.registry.Route(roomID)
	if !ok {
		t.Fatalf("room %s not registered", roomID)
	}
	return session
}

func knightMove(i int) messages.MovePayload {
	return messages.MovePayload{
		Board:    json.RawMessage(fmt.Sprintf(`{"position":%d}`, i)),
		From:     "g1",
		To:       "f3",
		Notation: fmt.Sprintf("N%d", i),
		Piece:    "n",
	}
}

func boardMove(board string, piece string, capture bool) messages.MovePayload {
	return messages.MovePayload{
		Board:     json.RawMessage(fmt.Sprintf("%q", board)),
		From:      "a1",
		To:        "a2",
		Notation:  board,
		Piece:     piece,
		IsCapture: capture,
	}
}

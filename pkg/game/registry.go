// Package game pairs players into rooms and runs each room's session: turn
// order, the countdown clock and the draw rules.
package game

import (
	"errors"
	"sync"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"github.com/tecu23/chess-relay/internal/color"
	"github.com/tecu23/chess-relay/pkg/events"
)

// ErrEmptyRoomID is returned when a join names no room
var ErrEmptyRoomID = errors.New("room id is required")

// Registry maps room ids to their single live session
type Registry struct {
	sessions map[string]*Session
	mu       sync.RWMutex

	settings  Settings
	clock     clockwork.Clock
	publisher *events.Publisher
	logger    *zap.Logger
}

// NewRegistry creates an empty registry. Sessions it creates use settings and
// take their time from clock.
func NewRegistry(
	settings Settings,
	clock clockwork.Clock,
	publisher *events.Publisher,
	logger *zap.Logger,
) *Registry {
	return &Registry{
		sessions:  make(map[string]*Session),
		settings:  settings,
		clock:     clock,
		publisher: publisher,
		logger:    logger,
	}
}

// Join seats p in roomID, creating the room on first use. A rejected join
// returns an error for logging; nothing is sent to the player in that case.
func (r *Registry) Join(roomID string, p Player) (color.Color, error) {
	if roomID == "" {
		return "", ErrEmptyRoomID
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	session, ok := r.sessions[roomID]
	if ok && session.State() == StateTerminal {
		// Ended but not yet released; its later release finds a different
		// session under roomID and leaves it alone.
		ok = false
		r.destroyed(roomID)
	}
	if !ok {
		session = newSession(roomID, r.settings, r.clock, r.publisher, r.logger, r.remove)
		r.sessions[roomID] = session

		r.logger.Info("created room", zap.String("room_id", roomID))
		r.publisher.Publish(events.Event{Type: events.EventSessionCreated, RoomID: roomID})
	}

	return session.seat(p)
}

// Route returns the live session of roomID
func (r *Registry) Route(roomID string) (*Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	session, ok := r.sessions[roomID]
	return session, ok
}

// Destroy stops the session of roomID and forgets it. Unknown rooms are
// ignored.
func (r *Registry) Destroy(roomID string) {
	r.mu.Lock()
	session, ok := r.sessions[roomID]
	if ok {
		delete(r.sessions, roomID)
	}
	r.mu.Unlock()

	if !ok {
		return
	}

	session.Close()
	r.destroyed(roomID)
}

// Disconnect destroys every room p is seated in
func (r *Registry) Disconnect(p Player) {
	r.mu.Lock()
	var affected []*Session
	for roomID, session := range r.sessions {
		if session.Seated(p) {
			affected = append(affected, session)
			delete(r.sessions, roomID)
		}
	}
	r.mu.Unlock()

	for _, session := range affected {
		session.Abandon(p)
		r.destroyed(session.RoomID)
	}
}

// Len returns the number of live rooms
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// Shutdown destroys every room
func (r *Registry) Shutdown() {
	r.mu.Lock()
	sessions := r.sessions
	r.sessions = make(map[string]*Session)
	r.mu.Unlock()

	for roomID, session := range sessions {
		session.Close()
		r.destroyed(roomID)
	}

	r.logger.Info("registry shut down", zap.Int("rooms", len(sessions)))
}

// remove is handed to sessions and called once they reach the terminal state
func (r *Registry) remove(session *Session) {
	r.mu.Lock()
	current, ok := r.sessions[session.RoomID]
	if ok && current == session {
		delete(r.sessions, session.RoomID)
	}
	r.mu.Unlock()

	if ok && current == session {
		r.destroyed(session.RoomID)
	}
}

func (r *Registry) destroyed(roomID string) {
	r.logger.Info("removed room", zap.String("room_id", roomID))
	r.publisher.Publish(events.Event{Type: events.EventSessionDestroyed, RoomID: roomID})
}

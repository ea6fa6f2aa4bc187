package game

import (
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"github.com/tecu23/chess-relay/internal/color"
	"github.com/tecu23/chess-relay/pkg/chess"
	"github.com/tecu23/chess-relay/pkg/events"
	"github.com/tecu23/chess-relay/pkg/messages"
)

// Reasons attached to results the server decides on its own
const (
	ReasonTime       = "time"
	ReasonAgreement  = "agreement"
	ReasonDisconnect = "disconnect"
	ReasonAborted    = "aborted"
)

var (
	ErrRoomFull       = errors.New("room is full")
	ErrAlreadySeated  = errors.New("player already seated in this room")
	ErrSessionClosed  = errors.New("session is closed")
	ErrNotActive      = errors.New("game has not started")
	ErrNotSeated      = errors.New("player is not seated in this room")
	ErrNotYourTurn    = errors.New("not your turn")
	ErrInvalidColor   = errors.New("invalid color")
	ErrOpponentAbsent = errors.New("opponent seat is empty")
)

// State is the lifecycle stage of a session
type State int

const (
	StateWaiting State = iota
	StateActive
	StateTerminal
)

func (s State) String() string {
	switch s {
	case StateWaiting:
		return "waiting"
	case StateActive:
		return "active"
	default:
		return "terminal"
	}
}

// Player is one seat's connection as seen by a session
type Player interface {
	ID() string
	SendJSON(v any)
}

// Settings control the clock and draw rules of new sessions
type Settings struct {
	InitialSeconds int64
	TickInterval   time.Duration
	Rules          chess.DrawRules
}

// DefaultSettings returns five minutes per side, one second ticks and the
// standard draw thresholds
func DefaultSettings() Settings {
	return Settings{
		InitialSeconds: chess.DefaultInitialSeconds,
		TickInterval:   time.Second,
		Rules:          chess.DefaultDrawRules(),
	}
}

// Session is the state machine for one room: seats, turn, clock and the draw
// bookkeeping. All fields below mu are guarded by it.
type Session struct {
	RoomID string

	rules     chess.DrawRules
	now       clockwork.Clock
	ticker    *Ticker
	publisher *events.Publisher
	logger    *zap.Logger
	release   func(*Session)

	mu sync.Mutex

	gameID    uuid.UUID
	state     State
	white     Player
	black     Player
	turn      color.Color
	clock     *chess.Clock
	draws     chess.DrawTracker
	moves     []string
	startedAt time.Time
}

func newSession(
	roomID string,
	settings Settings,
	clock clockwork.Clock,
	publisher *events.Publisher,
	logger *zap.Logger,
	release func(*Session),
) *Session {
	s := &Session{
		RoomID:    roomID,
		rules:     settings.Rules,
		now:       clock,
		publisher: publisher,
		logger:    logger.With(zap.String("room_id", roomID)),
		release:   release,
		state:     StateWaiting,
		turn:      color.White,
		clock:     chess.NewClock(settings.InitialSeconds),
	}
	s.ticker = NewTicker(clock, settings.TickInterval, s.onTick)

	return s
}

// State returns the current lifecycle stage
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Turn returns the side to move
func (s *Session) Turn() color.Color {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.turn
}

// Remaining returns the seconds left on side's clock
func (s *Session) Remaining(side color.Color) int64 {
	return s.clock.Remaining(side)
}

// Seated reports whether p holds one of the seats
func (s *Session) Seated(p Player) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.colorOf(p) != ""
}

// seat places p in the first free seat. Filling the second seat starts the game.
func (s *Session) seat(p Player) (color.Color, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch {
	case s.state == StateTerminal:
		return "", ErrSessionClosed
	case s.colorOf(p) != "":
		return "", ErrAlreadySeated
	case s.white == nil:
		s.white = p
	case s.black == nil:
		s.black = p
	default:
		return "", ErrRoomFull
	}

	c := s.colorOf(p)
	p.SendJSON(messages.NewJoinAck(c, s.RoomID))
	s.logger.Info("player joined", zap.String("player_id", p.ID()), zap.String("color", string(c)))

	if s.white != nil && s.black != nil {
		s.activateLocked()
	}

	return c, nil
}

func (s *Session) activateLocked() {
	s.state = StateActive
	s.gameID = uuid.New()
	s.turn = color.White
	s.clock.Reset()
	s.draws.Reset()
	s.moves = nil
	s.startedAt = s.now.Now()

	s.broadcast(messages.NewStart())
	s.ticker.Reset()

	s.logger.Info("game started", zap.String("game_id", s.gameID.String()))

	s.publisher.Publish(events.Event{
		Type:   events.EventGameStarted,
		RoomID: s.RoomID,
		Payload: map[string]string{
			"game_id": s.gameID.String(),
			"white":   s.white.ID(),
			"black":   s.black.ID(),
		},
	})
}

// Move accepts a move from the player on turn, relays it and runs the draw
// rules. Legality is the clients' business.
func (s *Session) Move(from Player, move messages.MovePayload) error {
	s.mu.Lock()
	ended, err := s.moveLocked(from, move)
	s.mu.Unlock()

	if ended {
		s.release(s)
	}
	return err
}

func (s *Session) moveLocked(from Player, move messages.MovePayload) (bool, error) {
	if s.state != StateActive {
		return false, ErrNotActive
	}

	mover := s.colorOf(from)
	if mover == "" {
		return false, ErrNotSeated
	}
	if mover != s.turn {
		return false, ErrNotYourTurn
	}

	opponent := mover.Opp()

	// The mover already has the notation locally.
	s.send(mover, messages.NewMove(move, opponent, ""))
	s.send(opponent, messages.NewMove(move, opponent, move.Notation))

	s.moves = append(s.moves, move.Notation)
	s.draws.Record(chess.Snapshot(move.Board))

	s.publisher.Publish(events.Event{
		Type:   events.EventMovePlayed,
		RoomID: s.RoomID,
		Payload: map[string]any{
			"game_id":  s.gameID.String(),
			"color":    mover,
			"from":     move.From,
			"to":       move.To,
			"notation": move.Notation,
		},
	})

	if reason, drawn := s.rules.Check(&s.draws, move.Piece, move.IsCapture); drawn {
		s.broadcast(messages.NewDraw(reason))
		s.endLocked("", reason)
		return true, nil
	}

	s.ticker.Reset()
	s.turn = opponent

	return false, nil
}

func (s *Session) onTick(generation uint64) {
	s.mu.Lock()
	ended := s.tickLocked(generation)
	s.mu.Unlock()

	if ended {
		s.release(s)
	}
}

func (s *Session) tickLocked(generation uint64) bool {
	// A tick queued before a move or the end of the game is stale.
	if s.state != StateActive || !s.ticker.Live(generation) {
		return false
	}

	tick := s.clock.Tick(s.turn)
	remaining := s.clock.Remaining(s.turn)

	s.broadcast(messages.NewTime(remaining, s.turn))
	s.publisher.Publish(events.Event{
		Type:   events.EventClockUpdated,
		RoomID: s.RoomID,
		Payload: map[string]any{
			"white":  tick.White,
			"black":  tick.Black,
			"active": tick.ActiveColor,
		},
	})

	if remaining > 0 {
		return false
	}

	winner := s.turn.Opp()
	s.logger.Info("player time expired",
		zap.String("color", string(s.turn)),
		zap.String("clock", chess.FormatClockTime(remaining)),
	)
	s.broadcast(messages.NewEnd(winner, ReasonTime))
	s.endLocked(winner, ReasonTime)

	return true
}

// DeclareDraw ends an active game as a draw for the given reason
func (s *Session) DeclareDraw(from Player, reason string) error {
	if reason == "" {
		reason = ReasonAgreement
	}

	s.mu.Lock()
	err := s.checkActiveSeat(from)
	if err == nil {
		s.broadcast(messages.NewDraw(reason))
		s.endLocked("", reason)
	}
	s.mu.Unlock()

	if err != nil {
		return err
	}
	s.release(s)
	return nil
}

// DeclareEnd ends an active game with an explicit winner
func (s *Session) DeclareEnd(from Player, winner color.Color, reason string) error {
	if !winner.Valid() {
		return ErrInvalidColor
	}

	s.mu.Lock()
	err := s.checkActiveSeat(from)
	if err == nil {
		s.broadcast(messages.NewEnd(winner, reason))
		s.endLocked(winner, reason)
	}
	s.mu.Unlock()

	if err != nil {
		return err
	}
	s.release(s)
	return nil
}

// EnPassant forwards an en passant notice to the opponent of side
func (s *Session) EnPassant(from Player, side color.Color, point json.RawMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.relayLocked(from, side, messages.NewEnPassant(point))
}

// Chat forwards a line to the opponent of side, prefixed with side's name
func (s *Session) Chat(from Player, side color.Color, text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.relayLocked(from, side, messages.NewChat(side.Name()+": "+text))
}

func (s *Session) relayLocked(from Player, side color.Color, v any) error {
	if s.state == StateTerminal {
		return ErrSessionClosed
	}
	if !side.Valid() {
		return ErrInvalidColor
	}
	if s.colorOf(from) == "" {
		return ErrNotSeated
	}
	if s.player(side.Opp()) == nil {
		return ErrOpponentAbsent
	}

	s.send(side.Opp(), v)
	return nil
}

// Abandon tears the session down after p's connection went away. The other
// player, if the game was running, is told it won.
func (s *Session) Abandon(p Player) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == StateTerminal {
		return
	}

	left := s.colorOf(p)
	if s.state == StateActive && left != "" {
		winner := left.Opp()
		s.send(winner, messages.NewEnd(winner, ReasonDisconnect))
		s.endLocked(winner, ReasonDisconnect)
		return
	}

	s.endLocked("", ReasonAborted)
}

// Close ends the session without telling the players. Used on destroy and
// shutdown; calling it on a finished session does nothing.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == StateTerminal {
		return
	}
	s.endLocked("", ReasonAborted)
}

// endLocked moves to the terminal state, stops the clock and hands the game to
// whoever archives it
func (s *Session) endLocked(winner color.Color, reason string) {
	wasActive := s.state == StateActive

	s.state = StateTerminal
	s.ticker.Cancel()

	if !wasActive {
		s.logger.Debug("session closed before start")
		return
	}

	record := &Record{
		ID:        s.gameID,
		RoomID:    s.RoomID,
		White:     s.white.ID(),
		Black:     s.black.ID(),
		Moves:     append([]string(nil), s.moves...),
		Winner:    winner,
		Reason:    reason,
		StartedAt: s.startedAt,
		EndedAt:   s.now.Now(),
	}

	s.logger.Info("game ended",
		zap.String("game_id", s.gameID.String()),
		zap.String("winner", string(winner)),
		zap.String("reason", reason),
		zap.Int("moves", len(s.moves)),
	)

	s.publisher.Publish(events.Event{
		Type:    events.EventGameEnded,
		RoomID:  s.RoomID,
		Payload: record,
	})
}

func (s *Session) checkActiveSeat(p Player) error {
	if s.state != StateActive {
		return ErrNotActive
	}
	if s.colorOf(p) == "" {
		return ErrNotSeated
	}
	return nil
}

func (s *Session) colorOf(p Player) color.Color {
	switch {
	case s.white != nil && s.white.ID() == p.ID():
		return color.White
	case s.black != nil && s.black.ID() == p.ID():
		return color.Black
	default:
		return ""
	}
}

func (s *Session) player(c color.Color) Player {
	if c == color.White {
		return s.white
	}
	return s.black
}

func (s *Session) send(c color.Color, v any) {
	if p := s.player(c); p != nil {
		p.SendJSON(v)
	}
}

func (s *Session) broadcast(v any) {
	s.send(color.White, v)
	s.send(color.Black, v)
}

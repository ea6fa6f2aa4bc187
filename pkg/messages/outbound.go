package messages

import (
	"encoding/json"

	"github.com/tecu23/chess-relay/internal/color"
)

// Outbound message types
const (
	TypeData  = "data"
	TypeStart = "start"
	TypeTime  = "time"
)

// JoinAckMessage tells a player which seat it got
type JoinAckMessage struct {
	Type   string      `json:"type"`
	Color  color.Color `json:"color"`
	RoomID string      `json:"roomId"`
}

// StartMessage is sent to both seats once the room is full
type StartMessage struct {
	Type string `json:"type"`
}

// MoveMessage relays an accepted move. Turn is the side to move next.
type MoveMessage struct {
	Type     string          `json:"type"`
	Board    json.RawMessage `json:"board"`
	From     string          `json:"from"`
	To       string          `json:"to"`
	Turn     color.Color     `json:"turn"`
	Notation string          `json:"notation"`
}

// EnPassantMessage forwards the point untouched
type EnPassantMessage struct {
	Type  string          `json:"type"`
	Point json.RawMessage `json:"point"`
}

// TimeMessage reports the remaining seconds of the side on turn
type TimeMessage struct {
	Type  string      `json:"type"`
	Time  int64       `json:"time"`
	Color color.Color `json:"color"`
}

// EndMessage announces a decisive result
type EndMessage struct {
	Type   string      `json:"type"`
	Winner color.Color `json:"winner"`
	Reason string      `json:"reason"`
}

// DrawMessage announces a drawn result
type DrawMessage struct {
	Type   string `json:"type"`
	Reason string `json:"reason"`
}

// ChatMessage carries a prefixed chat line
type ChatMessage struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

func NewJoinAck(c color.Color, roomID string) JoinAckMessage {
	return JoinAckMessage{Type: TypeData, Color: c, RoomID: roomID}
}

func NewStart() StartMessage {
	return StartMessage{Type: TypeStart}
}

func NewMove(m MovePayload, turn color.Color, notation string) MoveMessage {
	return MoveMessage{
		Type:     TypeMove,
		Board:    m.Board,
		From:     m.From,
		To:       m.To,
		Turn:     turn,
		Notation: notation,
	}
}

func NewEnPassant(point json.RawMessage) EnPassantMessage {
	return EnPassantMessage{Type: TypeEnPassant, Point: point}
}

func NewTime(seconds int64, c color.Color) TimeMessage {
	return TimeMessage{Type: TypeTime, Time: seconds, Color: c}
}

func NewEnd(winner color.Color, reason string) EndMessage {
	return EndMessage{Type: TypeEnd, Winner: winner, Reason: reason}
}

func NewDraw(reason string) DrawMessage {
	return DrawMessage{Type: TypeDraw, Reason: reason}
}

func NewChat(text string) ChatMessage {
	return ChatMessage{Type: TypeChat, Message: text}
}

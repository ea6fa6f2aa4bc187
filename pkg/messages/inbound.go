// Package messages defines the JSON frames exchanged with clients.
package messages

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/tecu23/chess-relay/internal/color"
)

// Inbound message types
const (
	TypeJoin      = "join"
	TypeMove      = "move"
	TypeEnPassant = "enpassant"
	TypeDraw      = "draw"
	TypeEnd       = "end"
	TypeChat      = "chat"
)

// ErrUnknownType is returned by Decode for envelopes with an unsupported type
var ErrUnknownType = errors.New("unknown message type")

// InboundMessage is the flat envelope every client frame arrives in.
// The "type" field tells us the action; the remaining fields are filled
// depending on it.
type InboundMessage struct {
	Type   string `json:"type"`
	RoomID string `json:"roomId"`

	// move
	Board     json.RawMessage `json:"board,omitempty"`
	From      string          `json:"from,omitempty"`
	To        string          `json:"to,omitempty"`
	Notation  string          `json:"notation,omitempty"`
	Piece     string          `json:"piece,omitempty"`
	IsCapture bool            `json:"isCapture,omitempty"`

	// enpassant
	Point json.RawMessage `json:"point,omitempty"`

	// draw, end
	Reason string `json:"reason,omitempty"`
	Winner string `json:"winner,omitempty"`

	// chat
	Message string `json:"message,omitempty"`
	Color   string `json:"color,omitempty"`
}

// Decode parses a raw frame and rejects unknown types
func Decode(data []byte) (InboundMessage, error) {
	var msg InboundMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return InboundMessage{}, fmt.Errorf("decode envelope: %w", err)
	}

	switch msg.Type {
	case TypeJoin, TypeMove, TypeEnPassant, TypeDraw, TypeEnd, TypeChat:
		return msg, nil
	default:
		return InboundMessage{}, fmt.Errorf("%w: %q", ErrUnknownType, msg.Type)
	}
}

// MovePayload is the part of a move envelope the session acts on
type MovePayload struct {
	Board     json.RawMessage
	From      string
	To        string
	Notation  string
	Piece     string
	IsCapture bool
}

// Move extracts the move fields
func (m InboundMessage) Move() MovePayload {
	return MovePayload{
		Board:     m.Board,
		From:      m.From,
		To:        m.To,
		Notation:  m.Notation,
		Piece:     m.Piece,
		IsCapture: m.IsCapture,
	}
}

// PointColor reads the color named inside an en passant point
func (m InboundMessage) PointColor() (color.Color, error) {
	var point struct {
		Color color.Color `json:"color"`
	}
	if err := json.Unmarshal(m.Point, &point); err != nil {
		return "", fmt.Errorf("decode point: %w", err)
	}
	if !point.Color.Valid() {
		return "", fmt.Errorf("invalid point color %q", point.Color)
	}

	return point.Color, nil
}

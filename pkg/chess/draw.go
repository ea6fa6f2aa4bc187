package chess

import (
	"bytes"
	"encoding/json"
	"strings"
)

// Draw reasons announced to both players.
const (
	ReasonFiftyMove  = "Fifty move rule"
	ReasonRepetition = "Threefold repetition"
)

// Default thresholds for the draw rules.
const (
	DefaultFiftyMoveLimit  = 50
	DefaultRepetitionLimit = 3
)

// DrawRules holds the thresholds used by the detector
type DrawRules struct {
	FiftyMoveLimit  int // half-moves without a pawn move or capture
	RepetitionLimit int // identical snapshots since the last irreversible move
}

// DefaultDrawRules returns the standard thresholds
func DefaultDrawRules() DrawRules {
	return DrawRules{
		FiftyMoveLimit:  DefaultFiftyMoveLimit,
		RepetitionLimit: DefaultRepetitionLimit,
	}
}

// DrawTracker is the per-session state the detector works on. History only
// holds snapshots recorded since the last pawn move or capture, so it never
// grows past the fifty-move limit.
type DrawTracker struct {
	History      []string
	Irreversible int
}

// Reset zeroes the counter and clears the history
func (t *DrawTracker) Reset() {
	t.Irreversible = 0
	t.History = t.History[:0]
}

// Record appends a board snapshot to the history
func (t *DrawTracker) Record(snapshot string) {
	t.History = append(t.History, snapshot)
}

// Check runs the rules for one accepted move. It returns the draw reason and
// true when the game must end in a draw.
func (r DrawRules) Check(t *DrawTracker, piece string, capture bool) (string, bool) {
	if capture || IsPawn(piece) {
		t.Reset()
		return "", false
	}

	t.Irreversible++
	if t.Irreversible == r.FiftyMoveLimit {
		return ReasonFiftyMove, true
	}

	// Quadratic on purpose: history is capped by the fifty-move limit.
	for _, snapshot := range t.History {
		count := 0
		for _, other := range t.History {
			if other == snapshot {
				count++
			}
		}
		if count >= r.RepetitionLimit {
			return ReasonRepetition, true
		}
	}

	return "", false
}

// IsPawn reports whether a piece identifier names a pawn. Accepted forms are
// "p", "P", "pawn" and the colored "wp"/"bP" style.
func IsPawn(piece string) bool {
	p := strings.ToLower(strings.TrimSpace(piece))
	switch {
	case p == "p", p == "pawn":
		return true
	case len(p) == 2 && (p[0] == 'w' || p[0] == 'b') && p[1] == 'p':
		return true
	default:
		return false
	}
}

// Snapshot turns a raw board into the canonical form used for repetition
// checks. JSON boards are re-encoded so whitespace and key order do not
// matter; anything else is compared byte for byte.
func Snapshot(board json.RawMessage) string {
	trimmed := bytes.TrimSpace(board)

	// Numbers keep their literal text so distinct large values stay distinct.
	dec := json.NewDecoder(bytes.NewReader(trimmed))
	dec.UseNumber()

	var v any
	if err := dec.Decode(&v); err != nil || dec.More() {
		return string(trimmed)
	}

	canonical, err := json.Marshal(v)
	if err != nil {
		return string(trimmed)
	}

	return string(canonical)
}

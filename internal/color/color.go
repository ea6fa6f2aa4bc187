// Package color provides basic color definitions for a chess game
package color

// Color represent a chess color
type Color string

// Possible color variations in a chess game
const (
	White Color = "w"
	Black Color = "b"
)

// Opp returns the opposite color for the given color.
func (c Color) Opp() Color {
	if c == White {
		return Black
	}

	return White
}

// Valid reports whether c is one of the two seat colors.
func (c Color) Valid() bool {
	return c == White || c == Black
}

// Name returns the display name used when prefixing chat lines.
func (c Color) Name() string {
	switch c {
	case White:
		return "White"
	case Black:
		return "Black"
	default:
		return "Unknown"
	}
}

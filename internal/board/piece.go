package board

// Color is a side in the game.
type Color uint8

const (
	Red Color = iota
	Blue
	NoColor
)

// Other returns the opposing color.
func (c Color) Other() Color {
	return c ^ 1
}

// String returns the color name.
func (c Color) String() string {
	switch c {
	case Red:
		return "red"
	case Blue:
		return "blue"
	}
	return "none"
}

// Char returns the FEN side character.
func (c Color) Char() byte {
	if c == Blue {
		return 'b'
	}
	return 'r'
}

// MaxHeight is the tallest tower possible: every piece of one side stacked.
const MaxHeight = 7

// Castle returns the color's home square, where its guard starts.
func Castle(c Color) Square {
	if c == Red {
		return D7
	}
	return D1
}

// Goal returns the square the color's guard has to reach to win: the opponent's castle.
func Goal(c Color) Square {
	return Castle(c.Other())
}

// PieceKind distinguishes guards from towers.
type PieceKind uint8

const (
	NoPiece PieceKind = iota
	Guard
	Tower
)

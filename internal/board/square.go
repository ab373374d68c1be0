// Package board implements the Guard & Towers board representation using bitboards.
package board

import "fmt"

// Board dimensions.
const (
	Files      = 7
	Ranks      = 7
	NumSquares = Files * Ranks
)

// Square represents a square on the 7x7 board (0-48).
// Rank-major mapping: A1=0, G1=6, A7=42, G7=48.
type Square uint8

// Named squares used by the rules.
const (
	A1 Square = 0
	D1 Square = 3
	G1 Square = 6
	A7 Square = 42
	D7 Square = 45
	G7 Square = 48

	NoSquare Square = 64
)

// NewSquare creates a square from file (0-6) and rank (0-6).
func NewSquare(file, rank int) Square {
	return Square(rank*Files + file)
}

// File returns the file (0-6) of the square.
func (sq Square) File() int {
	return int(sq) % Files
}

// Rank returns the rank (0-6) of the square.
func (sq Square) Rank() int {
	return int(sq) / Files
}

// Valid reports whether the square lies on the board.
func (sq Square) Valid() bool {
	return sq < NumSquares
}

// String returns the square in algebraic notation (e.g. "D4").
func (sq Square) String() string {
	if !sq.Valid() {
		return "-"
	}
	return string(rune('A'+sq.File())) + string(rune('1'+sq.Rank()))
}

// ParseSquare parses a square in algebraic notation. Both cases are accepted.
func ParseSquare(s string) (Square, error) {
	if len(s) != 2 {
		return NoSquare, fmt.Errorf("invalid square: %q", s)
	}
	f := s[0]
	if f >= 'a' && f <= 'g' {
		f -= 'a' - 'A'
	}
	r := s[1]
	if f < 'A' || f > 'G' || r < '1' || r > '7' {
		return NoSquare, fmt.Errorf("invalid square: %q", s)
	}
	return NewSquare(int(f-'A'), int(r-'1')), nil
}

// Distance returns the Manhattan distance between two squares.
func Distance(a, b Square) int {
	return abs(a.File()-b.File()) + abs(a.Rank()-b.Rank())
}

// Direction is an orthogonal step on the board.
type Direction int

const (
	North Direction = iota
	East
	South
	West
)

// Directions lists the four orthogonal directions.
var Directions = [4]Direction{North, East, South, West}

var dirDelta = [4][2]int{
	North: {0, 1},
	East:  {1, 0},
	South: {0, -1},
	West:  {-1, 0},
}

// Step returns the square k steps away in direction d, or NoSquare when off the board.
func (sq Square) Step(d Direction, k int) Square {
	f := sq.File() + dirDelta[d][0]*k
	r := sq.Rank() + dirDelta[d][1]*k
	if f < 0 || f >= Files || r < 0 || r >= Ranks {
		return NoSquare
	}
	return NewSquare(f, r)
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}

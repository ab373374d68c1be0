package board

import (
	"fmt"
	"strconv"
	"strings"
)

// Move encodes a move in 16 bits:
// bits 0-5:   from square (0-48)
// bits 6-11:  to square (0-48)
// bits 12-14: magnitude, the number of pieces moved (1-7)
type Move uint16

// NoMove represents an invalid or null move.
const NoMove Move = 0

// MaxMoves bounds the number of legal moves in any position.
const MaxMoves = 256

// NewMove creates a move of n pieces from one square to another.
func NewMove(from, to Square, n int) Move {
	return Move(from) | Move(to)<<6 | Move(n)<<12
}

// From returns the origin square.
func (m Move) From() Square {
	return Square(m & 0x3F)
}

// To returns the destination square.
func (m Move) To() Square {
	return Square((m >> 6) & 0x3F)
}

// Magnitude returns the number of pieces moved, which is also the distance travelled.
func (m Move) Magnitude() int {
	return int((m >> 12) & 0x7)
}

// IsCapture reports whether the move lands on an enemy piece.
func (m Move) IsCapture(pos *Position) bool {
	return pos.Occupied(pos.SideToMove.Other()).IsSet(m.To())
}

// String returns the move as "A7-A6-1".
func (m Move) String() string {
	if m == NoMove {
		return "0000"
	}
	return m.From().String() + "-" + m.To().String() + "-" + strconv.Itoa(m.Magnitude())
}

// ParseMove parses "A7-A6-1" (or "A7-A6", magnitude 1) and checks it against the legal moves.
func ParseMove(s string, pos *Position) (Move, error) {
	parts := strings.Split(strings.TrimSpace(s), "-")
	if len(parts) < 2 || len(parts) > 3 {
		return NoMove, fmt.Errorf("invalid move string: %s", s)
	}
	from, err := ParseSquare(parts[0])
	if err != nil {
		return NoMove, err
	}
	to, err := ParseSquare(parts[1])
	if err != nil {
		return NoMove, err
	}
	n := 1
	if len(parts) == 3 {
		n, err = strconv.Atoi(parts[2])
		if err != nil || n < 1 || n > MaxHeight {
			return NoMove, fmt.Errorf("invalid magnitude in move: %s", s)
		}
	}
	want := NewMove(from, to, n)
	moves := pos.GenerateLegalMoves()
	for i := 0; i < moves.Len(); i++ {
		if moves.Get(i) == want {
			return want, nil
		}
	}
	return NoMove, fmt.Errorf("illegal move: %s", s)
}

// MoveList is a fixed-capacity list of moves.
type MoveList struct {
	moves [MaxMoves]Move
	count int
}

// NewMoveList returns an empty list.
func NewMoveList() *MoveList {
	return &MoveList{}
}

// Add appends a move.
func (ml *MoveList) Add(m Move) {
	ml.moves[ml.count] = m
	ml.count++
}

// Len returns the number of moves.
func (ml *MoveList) Len() int {
	return ml.count
}

// Get returns the i-th move.
func (ml *MoveList) Get(i int) Move {
	return ml.moves[i]
}

// Set replaces the i-th move.
func (ml *MoveList) Set(i int, m Move) {
	ml.moves[i] = m
}

// Swap exchanges two moves.
func (ml *MoveList) Swap(i, j int) {
	ml.moves[i], ml.moves[j] = ml.moves[j], ml.moves[i]
}

// Clear empties the list.
func (ml *MoveList) Clear() {
	ml.count = 0
}

// Contains reports whether m is in the list.
func (ml *MoveList) Contains(m Move) bool {
	for i := 0; i < ml.count; i++ {
		if ml.moves[i] == m {
			return true
		}
	}
	return false
}

// Slice returns the moves as a slice backed by the list.
func (ml *MoveList) Slice() []Move {
	return ml.moves[:ml.count]
}

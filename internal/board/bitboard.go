package board

import (
	"math/bits"
	"strings"
)

// Bitboard is a set of squares. Bit i corresponds to Square(i); only the low 49 bits are used.
type Bitboard uint64

const (
	Empty    Bitboard = 0
	Universe Bitboard = 1<<NumSquares - 1

	FileA Bitboard = 0x0000040810204081
	FileG Bitboard = FileA << 6

	Rank1 Bitboard = 0x7F
	Rank7 Bitboard = Rank1 << 42

	// Center is the 3x3 block C3-E5.
	Center Bitboard = (0x7 << 16) | (0x7 << 23) | (0x7 << 30)
)

// SquareBB returns a bitboard with only the given square set.
func SquareBB(sq Square) Bitboard {
	return 1 << sq
}

// Set returns b with sq added.
func (b Bitboard) Set(sq Square) Bitboard {
	return b | SquareBB(sq)
}

// Clear returns b with sq removed.
func (b Bitboard) Clear(sq Square) Bitboard {
	return b &^ SquareBB(sq)
}

// IsSet reports whether sq is in b.
func (b Bitboard) IsSet(sq Square) bool {
	return b&SquareBB(sq) != 0
}

// PopCount returns the number of squares in b.
func (b Bitboard) PopCount() int {
	return bits.OnesCount64(uint64(b))
}

// LSB returns the lowest square in b, or NoSquare if b is empty.
func (b Bitboard) LSB() Square {
	if b == 0 {
		return NoSquare
	}
	return Square(bits.TrailingZeros64(uint64(b)))
}

// PopLSB removes and returns the lowest square in b.
func (b *Bitboard) PopLSB() Square {
	sq := b.LSB()
	*b &= *b - 1
	return sq
}

// Empty reports whether b has no squares.
func (b Bitboard) Empty() bool {
	return b == 0
}

// North shifts every square one rank up.
func (b Bitboard) North() Bitboard {
	return (b << Files) & Universe
}

// South shifts every square one rank down.
func (b Bitboard) South() Bitboard {
	return b >> Files
}

// East shifts every square one file right.
func (b Bitboard) East() Bitboard {
	return (b &^ FileG) << 1
}

// West shifts every square one file left.
func (b Bitboard) West() Bitboard {
	return (b &^ FileA) >> 1
}

// Neighbors returns the orthogonally adjacent squares of every square in b.
func (b Bitboard) Neighbors() Bitboard {
	return b.North() | b.South() | b.East() | b.West()
}

// String renders the bitboard with rank 7 on top.
func (b Bitboard) String() string {
	var sb strings.Builder
	for r := Ranks - 1; r >= 0; r-- {
		for f := 0; f < Files; f++ {
			if b.IsSet(NewSquare(f, r)) {
				sb.WriteByte('X')
			} else {
				sb.WriteByte('.')
			}
		}
		sb.WriteByte('\n')
	}
	return sb.String()
}

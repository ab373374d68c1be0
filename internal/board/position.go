package board

import "strings"

// Position represents a complete Guard & Towers position.
//
// Position is a plain value: copying the struct yields an independent position, which is
// what the search relies on when it explores sibling branches.
type Position struct {
	// Guard bitboards, at most one square set per side.
	Guards [2]Bitboard

	// Tower bitboards per side.
	Towers [2]Bitboard

	// Heights holds the tower height for every square with a tower bit set, 0 elsewhere.
	Heights [NumSquares]uint8

	SideToMove Color

	// Ply counts half-moves made since the position was set up.
	Ply int

	// Zobrist hash for the transposition table.
	Hash uint64
}

// NewPosition creates the starting position.
func NewPosition() *Position {
	pos, _ := ParseFEN(StartFEN)
	return pos
}

// Copy creates a deep copy of the position.
func (p *Position) Copy() *Position {
	newPos := *p
	return &newPos
}

// Occupied returns every square holding a piece of color c.
func (p *Position) Occupied(c Color) Bitboard {
	return p.Guards[c] | p.Towers[c]
}

// AllOccupied returns every occupied square.
func (p *Position) AllOccupied() Bitboard {
	return p.Guards[Red] | p.Guards[Blue] | p.Towers[Red] | p.Towers[Blue]
}

// IsEmpty reports whether sq holds no piece.
func (p *Position) IsEmpty(sq Square) bool {
	return !p.AllOccupied().IsSet(sq)
}

// PieceAt returns the kind and color of the piece on sq.
func (p *Position) PieceAt(sq Square) (PieceKind, Color) {
	for _, c := range [2]Color{Red, Blue} {
		if p.Guards[c].IsSet(sq) {
			return Guard, c
		}
		if p.Towers[c].IsSet(sq) {
			return Tower, c
		}
	}
	return NoPiece, NoColor
}

// Height returns the tower height on sq (0 when there is no tower).
func (p *Position) Height(sq Square) int {
	return int(p.Heights[sq])
}

// HasGuard reports whether color c still has its guard.
func (p *Position) HasGuard(c Color) bool {
	return p.Guards[c] != 0
}

// GuardSquare returns the square of c's guard, or NoSquare if it was captured.
func (p *Position) GuardSquare(c Color) Square {
	return p.Guards[c].LSB()
}

// Material returns the number of tower pieces color c has on the board.
func (p *Position) Material(c Color) int {
	total := 0
	towers := p.Towers[c]
	for towers != 0 {
		total += int(p.Heights[towers.PopLSB()])
	}
	return total
}

// TowerCount returns the number of tower stacks color c has.
func (p *Position) TowerCount(c Color) int {
	return p.Towers[c].PopCount()
}

// Winner returns the color that has won, or NoColor while the game is running.
func (p *Position) Winner() Color {
	if !p.HasGuard(Red) {
		return Blue
	}
	if !p.HasGuard(Blue) {
		return Red
	}
	if p.Guards[Red].IsSet(Goal(Red)) {
		return Red
	}
	if p.Guards[Blue].IsSet(Goal(Blue)) {
		return Blue
	}
	return NoColor
}

// IsGameOver reports whether a guard was captured or reached the opposing castle.
func (p *Position) IsGameOver() bool {
	return p.Winner() != NoColor
}

// MakeMove applies m for the side to move. The move is assumed to be legal.
func (p *Position) MakeMove(m Move) {
	us := p.SideToMove
	them := us.Other()
	from, to, n := m.From(), m.To(), m.Magnitude()

	p.removeEnemy(them, to)

	if p.Guards[us].IsSet(from) {
		p.Guards[us] = p.Guards[us].Clear(from).Set(to)
		p.Hash ^= zobristGuard[us][from] ^ zobristGuard[us][to]
	} else {
		p.liftTower(us, from, n)
		p.dropTower(us, to, n)
	}

	p.SideToMove = them
	p.Hash ^= zobristSideToMove
	p.Ply++
}

func (p *Position) removeEnemy(them Color, sq Square) {
	if p.Guards[them].IsSet(sq) {
		p.Guards[them] = p.Guards[them].Clear(sq)
		p.Hash ^= zobristGuard[them][sq]
		return
	}
	if p.Towers[them].IsSet(sq) {
		p.Hash ^= zobristTower[them][p.Heights[sq]][sq]
		p.Towers[them] = p.Towers[them].Clear(sq)
		p.Heights[sq] = 0
	}
}

func (p *Position) liftTower(c Color, sq Square, n int) {
	h := p.Heights[sq]
	p.Hash ^= zobristTower[c][h][sq]
	h -= uint8(n)
	p.Heights[sq] = h
	if h == 0 {
		p.Towers[c] = p.Towers[c].Clear(sq)
		return
	}
	p.Hash ^= zobristTower[c][h][sq]
}

func (p *Position) dropTower(c Color, sq Square, n int) {
	h := p.Heights[sq]
	if h > 0 {
		p.Hash ^= zobristTower[c][h][sq]
	}
	h += uint8(n)
	p.Heights[sq] = h
	p.Towers[c] = p.Towers[c].Set(sq)
	p.Hash ^= zobristTower[c][h][sq]
}

// String renders the board with rank 7 on top.
func (p *Position) String() string {
	var sb strings.Builder
	for r := Ranks - 1; r >= 0; r-- {
		sb.WriteByte(byte('1' + r))
		sb.WriteString(" ")
		for f := 0; f < Files; f++ {
			sq := NewSquare(f, r)
			kind, c := p.PieceAt(sq)
			switch kind {
			case Guard:
				if c == Red {
					sb.WriteString(" RG")
				} else {
					sb.WriteString(" BG")
				}
			case Tower:
				sb.WriteByte(' ')
				sb.WriteByte(c.Char())
				sb.WriteByte(byte('0' + p.Heights[sq]))
				sb.WriteByte(' ')
			default:
				sb.WriteString(" .  ")
			}
			if kind == Guard {
				sb.WriteByte(' ')
			}
		}
		sb.WriteByte('\n')
	}
	sb.WriteString("   ")
	for f := 0; f < Files; f++ {
		sb.WriteString("  ")
		sb.WriteByte(byte('A' + f))
		sb.WriteByte(' ')
	}
	sb.WriteString("\n")
	sb.WriteString(p.SideToMove.String())
	sb.WriteString(" to move\n")
	return sb.String()
}

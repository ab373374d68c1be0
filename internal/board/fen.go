package board

import (
	"fmt"
	"strings"
)

// StartFEN is the position string for the starting position.
const StartFEN = "r1r11RG1r1r1/2r11r12/3r13/7/3b13/2b11b12/b1b11BG1b1b1 r"

// ParseFEN parses a position string: seven '/'-separated ranks from rank 7 down to rank 1,
// then the side to move ("r" or "b"). Towers are a color letter followed by the height
// ("r3"), guards are "RG"/"BG", digits are runs of empty squares.
func ParseFEN(fen string) (*Position, error) {
	parts := strings.Fields(fen)
	if len(parts) == 0 || len(parts) > 2 {
		return nil, fmt.Errorf("invalid FEN: need 1 or 2 fields, got %d", len(parts))
	}

	pos := &Position{}
	if err := parsePlacement(pos, parts[0]); err != nil {
		return nil, err
	}

	pos.SideToMove = Red
	if len(parts) == 2 {
		switch parts[1] {
		case "r":
			pos.SideToMove = Red
		case "b":
			pos.SideToMove = Blue
		default:
			return nil, fmt.Errorf("invalid side to move: %s", parts[1])
		}
	}

	for c := Red; c <= Blue; c++ {
		if pos.Guards[c].PopCount() > 1 {
			return nil, fmt.Errorf("invalid FEN: %s has more than one guard", c)
		}
		if pos.Material(c) > MaxHeight {
			return nil, fmt.Errorf("invalid FEN: %s has more than %d tower pieces", c, MaxHeight)
		}
	}

	pos.Hash = pos.ComputeHash()
	return pos, nil
}

func parsePlacement(pos *Position, placement string) error {
	ranks := strings.Split(placement, "/")
	if len(ranks) != Ranks {
		return fmt.Errorf("invalid FEN: need %d ranks, got %d", Ranks, len(ranks))
	}

	for i, row := range ranks {
		rank := Ranks - 1 - i
		file := 0
		for j := 0; j < len(row); j++ {
			ch := row[j]
			switch {
			case ch >= '1' && ch <= '7':
				file += int(ch - '0')
			case ch == 'r' || ch == 'b':
				if j+1 >= len(row) || row[j+1] < '1' || row[j+1] > '7' {
					return fmt.Errorf("invalid FEN: tower without height in rank %d", rank+1)
				}
				if file >= Files {
					return fmt.Errorf("invalid FEN: rank %d too long", rank+1)
				}
				c := colorFromChar(ch)
				sq := NewSquare(file, rank)
				pos.Towers[c] = pos.Towers[c].Set(sq)
				pos.Heights[sq] = row[j+1] - '0'
				j++
				file++
			case ch == 'R' || ch == 'B':
				if j+1 >= len(row) || row[j+1] != 'G' {
					return fmt.Errorf("invalid FEN: expected guard in rank %d", rank+1)
				}
				if file >= Files {
					return fmt.Errorf("invalid FEN: rank %d too long", rank+1)
				}
				c := colorFromChar(ch + ('a' - 'A'))
				pos.Guards[c] = pos.Guards[c].Set(NewSquare(file, rank))
				j++
				file++
			default:
				return fmt.Errorf("invalid FEN: unexpected character %q", ch)
			}
		}
		if file != Files {
			return fmt.Errorf("invalid FEN: rank %d has %d squares", rank+1, file)
		}
	}
	return nil
}

func colorFromChar(ch byte) Color {
	if ch == 'b' {
		return Blue
	}
	return Red
}

// ToFEN returns the position string.
func (p *Position) ToFEN() string {
	var sb strings.Builder
	for r := Ranks - 1; r >= 0; r-- {
		empty := 0
		for f := 0; f < Files; f++ {
			sq := NewSquare(f, r)
			kind, c := p.PieceAt(sq)
			if kind == NoPiece {
				empty++
				continue
			}
			if empty > 0 {
				sb.WriteByte(byte('0' + empty))
				empty = 0
			}
			if kind == Guard {
				sb.WriteByte(c.Char() - ('a' - 'A'))
				sb.WriteByte('G')
			} else {
				sb.WriteByte(c.Char())
				sb.WriteByte(byte('0' + p.Heights[sq]))
			}
		}
		if empty > 0 {
			sb.WriteByte(byte('0' + empty))
		}
		if r > 0 {
			sb.WriteByte('/')
		}
	}
	sb.WriteByte(' ')
	sb.WriteByte(p.SideToMove.Char())
	return sb.String()
}

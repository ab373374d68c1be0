package board

// GenerateLegalMoves generates all legal moves for the side to move.
// A finished game has no legal moves.
func (p *Position) GenerateLegalMoves() *MoveList {
	ml := NewMoveList()
	p.generate(ml, false)
	return ml
}

// GenerateCaptures generates only the moves that land on an enemy piece.
func (p *Position) GenerateCaptures() *MoveList {
	ml := NewMoveList()
	p.generate(ml, true)
	return ml
}

// GenerateTactical generates the noisy moves used past the search horizon: captures, guard
// moves onto the goal square, and quiet moves after which the mover attacks the enemy guard.
func (p *Position) GenerateTactical() *MoveList {
	all := p.GenerateLegalMoves()
	ml := NewMoveList()
	for i := 0; i < all.Len(); i++ {
		m := all.Get(i)
		if m.IsCapture(p) || p.IsWinningMove(m) || p.GivesGuardThreat(m) {
			ml.Add(m)
		}
	}
	return ml
}

func (p *Position) generate(ml *MoveList, capturesOnly bool) {
	if p.IsGameOver() {
		return
	}
	us := p.SideToMove
	them := us.Other()
	enemy := p.Occupied(them)

	if g := p.GuardSquare(us); g != NoSquare {
		for _, d := range Directions {
			to := g.Step(d, 1)
			if to == NoSquare || p.Towers[us].IsSet(to) {
				continue
			}
			if capturesOnly && !enemy.IsSet(to) {
				continue
			}
			ml.Add(NewMove(g, to, 1))
		}
	}

	towers := p.Towers[us]
	for towers != 0 {
		from := towers.PopLSB()
		h := int(p.Heights[from])
		for _, d := range Directions {
			for k := 1; k <= h; k++ {
				to := from.Step(d, k)
				if to == NoSquare {
					break
				}
				switch {
				case p.IsEmpty(to):
					if !capturesOnly {
						ml.Add(NewMove(from, to, k))
					}
					continue
				case p.Towers[us].IsSet(to):
					if !capturesOnly {
						ml.Add(NewMove(from, to, k))
					}
				case p.Guards[them].IsSet(to):
					ml.Add(NewMove(from, to, k))
				case p.Towers[them].IsSet(to) && int(p.Heights[to]) <= k:
					ml.Add(NewMove(from, to, k))
				}
				// Occupied squares block the line.
				break
			}
		}
	}
}

// CanCapture reports whether color c has a move that captures the enemy piece on sq.
func (p *Position) CanCapture(c Color, sq Square) bool {
	kind, owner := p.PieceAt(sq)
	if kind == NoPiece || owner == c {
		return false
	}
	need := 1
	if kind == Tower {
		need = int(p.Heights[sq])
	}

	if p.Guards[c].Neighbors()&SquareBB(sq) != 0 {
		return true
	}

	for _, d := range Directions {
		for k := 1; k < Files; k++ {
			s := sq.Step(d, k)
			if s == NoSquare {
				break
			}
			if p.IsEmpty(s) {
				continue
			}
			if p.Towers[c].IsSet(s) && int(p.Heights[s]) >= k && k >= need {
				return true
			}
			break
		}
	}
	return false
}

// GuardAttacked reports whether c's guard can be captured by the opponent's next move.
func (p *Position) GuardAttacked(c Color) bool {
	g := p.GuardSquare(c)
	if g == NoSquare {
		return false
	}
	return p.CanCapture(c.Other(), g)
}

// IsWinningMove reports whether m ends the game in favor of the side to move.
func (p *Position) IsWinningMove(m Move) bool {
	us := p.SideToMove
	if p.Guards[us.Other()].IsSet(m.To()) {
		return true
	}
	return p.Guards[us].IsSet(m.From()) && m.To() == Goal(us)
}

// GivesGuardThreat reports whether, after m, the mover could capture the enemy guard.
func (p *Position) GivesGuardThreat(m Move) bool {
	us := p.SideToMove
	child := *p
	child.MakeMove(m)
	if child.IsGameOver() {
		return false
	}
	return child.GuardAttacked(us.Other())
}

// WinningMove returns a move that wins immediately, or NoMove.
func (p *Position) WinningMove() Move {
	moves := p.GenerateLegalMoves()
	for i := 0; i < moves.Len(); i++ {
		if p.IsWinningMove(moves.Get(i)) {
			return moves.Get(i)
		}
	}
	return NoMove
}

// Perft counts the leaf nodes of the legal move tree to the given depth.
func (p *Position) Perft(depth int) uint64 {
	if depth <= 0 {
		return 1
	}
	moves := p.GenerateLegalMoves()
	if depth == 1 {
		return uint64(moves.Len())
	}
	var nodes uint64
	for i := 0; i < moves.Len(); i++ {
		child := *p
		child.MakeMove(moves.Get(i))
		nodes += child.Perft(depth - 1)
	}
	return nodes
}

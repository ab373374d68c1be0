package engine

import (
	"github.com/hailam/guardtowers/internal/board"
)

// Move ordering priorities
const (
	TTMoveScore  = 10000000 // TT move gets highest priority
	CaptureBase  = 1000000  // Base score for captures
	KillerScore1 = 900000   // First killer move
	KillerScore2 = 800000   // Second killer move
)

// Victim values for capture ordering. Towers are worth their height.
const (
	guardVictim = 100
	towerVictim = 1
)

// Quiet move bonuses
const (
	guardAdvanceBonus = 200
	centerBonus       = 10
)

// MoveOrderer handles move ordering for the search.
type MoveOrderer struct {
	// Killer moves (quiet moves that caused beta cutoffs), two per ply
	killers [MaxPly][2]board.Move

	scores [board.MaxMoves]int
}

// NewMoveOrderer creates a new move orderer.
func NewMoveOrderer() *MoveOrderer {
	return &MoveOrderer{}
}

// ResetKillers forgets all killer moves. Called once per top-level search.
func (mo *MoveOrderer) ResetKillers() {
	for i := range mo.killers {
		mo.killers[i][0] = board.NoMove
		mo.killers[i][1] = board.NoMove
	}
}

// Order sorts moves in place, best first. Ties keep generation order.
func (mo *MoveOrderer) Order(pos *board.Position, moves *board.MoveList, ply int, ttMove board.Move) {
	n := moves.Len()
	for i := 0; i < n; i++ {
		mo.scores[i] = mo.scoreMove(pos, moves.Get(i), ply, ttMove)
	}
	SortMoves(moves, mo.scores[:n])
}

// scoreMove returns the ordering score for a single move.
func (mo *MoveOrderer) scoreMove(pos *board.Position, m board.Move, ply int, ttMove board.Move) int {
	if m == ttMove {
		return TTMoveScore
	}

	from := m.From()
	to := m.To()
	us := pos.SideToMove

	// Captures: most valuable victim first, then the smallest attacking stack
	if kind, c := pos.PieceAt(to); kind != board.NoPiece && c != us {
		victim := guardVictim
		if kind == board.Tower {
			victim = towerVictim * pos.Height(to)
		}
		return CaptureBase + victim*1000 - m.Magnitude()
	}

	guardMove := pos.Guards[us].IsSet(from)

	// Stepping onto the goal wins just like capturing the guard.
	if guardMove && to == board.Goal(us) {
		return CaptureBase + guardVictim*1000
	}

	if ply < MaxPly {
		if m == mo.killers[ply][0] {
			return KillerScore1
		}
		if m == mo.killers[ply][1] {
			return KillerScore2
		}
	}

	score := 0
	if guardMove && board.Distance(to, board.Goal(us)) < board.Distance(from, board.Goal(us)) {
		score += guardAdvanceBonus
	}
	if board.Center.IsSet(to) {
		score += centerBonus
	}
	return score
}

// SortMoves sorts moves by their scores (descending). Insertion sort keeps equal
// scores in their original order.
func SortMoves(moves *board.MoveList, scores []int) {
	for i := 1; i < len(scores); i++ {
		m, s := moves.Get(i), scores[i]
		j := i - 1
		for j >= 0 && scores[j] < s {
			moves.Set(j+1, moves.Get(j))
			scores[j+1] = scores[j]
			j--
		}
		moves.Set(j+1, m)
		scores[j+1] = s
	}
}

// RecordKiller adds a killer move at the given ply.
func (mo *MoveOrderer) RecordKiller(m board.Move, ply int) {
	if ply >= MaxPly {
		return
	}

	// Don't store if it's already the first killer
	if mo.killers[ply][0] == m {
		return
	}

	mo.killers[ply][1] = mo.killers[ply][0]
	mo.killers[ply][0] = m
}

// Killers returns the killer moves at ply.
func (mo *MoveOrderer) Killers(ply int) [2]board.Move {
	if ply >= MaxPly {
		return [2]board.Move{}
	}
	return mo.killers[ply]
}

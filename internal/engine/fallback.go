package engine

import (
	"github.com/hailam/guardtowers/internal/board"
	"github.com/rs/zerolog/log"
	"github.com/samber/lo"
)

// Scores used by the emergency selector.
const (
	emergencyWin          = 100000
	emergencyPerHeight    = 100
	emergencyAdvance      = 20
	emergencyThreat       = 150
	emergencyHangingGuard = 500
)

type scoredMove struct {
	move  board.Move
	score int
}

// generateSafely asks gen for the legal moves. If gen panics, the rules in package
// board are used instead so a move can still be produced.
func generateSafely(gen MoveGenerator, pos *board.Position) (moves *board.MoveList) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Msg("move-generator-failed")
			moves = pos.GenerateLegalMoves()
		}
	}()
	return gen.Generate(pos)
}

// emergencyMove picks a move without searching: it looks at what each move captures,
// how far it brings the guard and whether it threatens the enemy guard. A move whose
// scoring panics is skipped, but the first legal move is always available as a last resort.
func emergencyMove(pos *board.Position, moves *board.MoveList) board.Move {
	if moves.Len() == 0 {
		return board.NoMove
	}

	scored := make([]scoredMove, 0, moves.Len())
	for _, m := range moves.Slice() {
		if score, ok := scoreEmergency(pos, m); ok {
			scored = append(scored, scoredMove{move: m, score: score})
		}
	}
	if len(scored) == 0 {
		return moves.Get(0)
	}

	best := lo.MaxBy(scored, func(a, b scoredMove) bool {
		return a.score > b.score
	})
	return best.move
}

func scoreEmergency(pos *board.Position, m board.Move) (score int, ok bool) {
	defer func() {
		if r := recover(); r != nil {
			log.Warn().Interface("panic", r).Str("move", m.String()).Msg("emergency-move-scoring-failed")
			ok = false
		}
	}()

	us := pos.SideToMove
	if pos.IsWinningMove(m) {
		return emergencyWin, true
	}

	if kind, c := pos.PieceAt(m.To()); kind == board.Tower && c != us {
		score += emergencyPerHeight * pos.Height(m.To())
	}

	if pos.Guards[us].IsSet(m.From()) {
		goal := board.Goal(us)
		score += emergencyAdvance * (board.Distance(m.From(), goal) - board.Distance(m.To(), goal))
	}

	child := *pos
	child.MakeMove(m)
	if child.GuardAttacked(us.Other()) {
		score += emergencyThreat
	}
	if child.GuardAttacked(us) {
		score -= emergencyHangingGuard
	}
	return score, true
}

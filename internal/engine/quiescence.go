package engine

import (
	"github.com/hailam/guardtowers/internal/board"
)

// quiesce searches tactical moves past the horizon until the position is quiet.
// Results are fail-hard: the returned score always lies within [alpha, beta].
// The transposition table is neither probed nor written here.
func (s *searcher) quiesce(pos *board.Position, alpha, beta, qply, ply int) int {
	if s.stopped() {
		return alpha
	}
	s.stats.qnodes.Add(1)

	// Stand pat
	standPat := s.eval.Evaluate(pos, 0)
	if pos.IsGameOver() || qply >= s.cfg.QuiescenceMaxPly {
		return clamp(standPat, alpha, beta)
	}

	if standPat >= beta {
		return beta
	}
	if standPat > alpha {
		alpha = standPat
	}

	moves := s.gen.GenerateTactical(pos)
	s.orderer.Order(pos, moves, ply, board.NoMove)

	for i := 0; i < moves.Len(); i++ {
		child := *pos
		child.MakeMove(moves.Get(i))

		score := -s.quiesce(&child, -beta, -alpha, qply+1, ply+1)
		if s.aborted {
			return alpha
		}

		if score >= beta {
			s.stats.cutoffs.Add(1)
			return beta
		}
		if score > alpha {
			alpha = score
		}
	}

	return alpha
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

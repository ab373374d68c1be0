package engine

import (
	"fmt"
	"time"

	"github.com/hailam/guardtowers/internal/board"
	"github.com/rs/zerolog/log"
)

// iterationStatus is the outcome of one root search.
type iterationStatus int

const (
	iterationCompleted  iterationStatus = iota
	iterationFailedLow                  // score <= alpha, window too high
	iterationFailedHigh                 // score >= beta, window too low
	iterationAborted                    // stop flag, deadline or context
	iterationFailed                     // a collaborator panicked
)

func (s iterationStatus) String() string {
	switch s {
	case iterationCompleted:
		return "completed"
	case iterationFailedLow:
		return "failed-low"
	case iterationFailedHigh:
		return "failed-high"
	case iterationAborted:
		return "aborted"
	default:
		return "failed"
	}
}

type iterationResult struct {
	status iterationStatus
	move   board.Move
	score  int
	err    error
}

// rootOutcome is what the deepening loop keeps from the last completed iteration.
type rootOutcome struct {
	move      board.Move
	score     int
	depth     int
	pv        []board.Move
	completed bool
}

// deepen runs iterative deepening from depth 1 to maxDepth. Only completed
// iterations update the outcome; an aborted or failed iteration ends the loop.
func (s *searcher) deepen(root *board.Position, moves *board.MoveList, maxDepth int, report func(SearchInfo)) rootOutcome {
	var out rootOutcome

	for depth := 1; depth <= maxDepth; depth++ {
		iterStart := time.Now()
		res := s.aspirate(root, moves, depth, out)

		switch res.status {
		case iterationAborted:
			log.Debug().Int("depth", depth).Msg("iteration-aborted")
			return out
		case iterationFailed:
			log.Error().Err(res.err).Int("depth", depth).Int("last-completed", out.depth).Msg("iteration-failed")
			return out
		}

		out = rootOutcome{
			move:      res.move,
			score:     res.score,
			depth:     depth,
			pv:        s.pv.line(),
			completed: true,
		}
		if len(out.pv) == 0 || out.pv[0] != out.move {
			out.pv = []board.Move{out.move}
		}
		s.stats.depth.Store(int32(depth))

		stats := s.stats.snapshot()
		log.Debug().Int("depth", depth).Int("score", res.score).Str("move", res.move.String()).
			Uint64("nodes", stats.TotalNodes()).Dur("elapsed", stats.Elapsed).Msg("iteration-complete")
		report(SearchInfo{
			Depth:    depth,
			Score:    res.score,
			Move:     res.move,
			Nodes:    stats.TotalNodes(),
			Time:     stats.Elapsed,
			PV:       out.pv,
			HashFull: s.tt.HashFull(),
		})

		if abs(res.score) >= DecisiveScore {
			log.Debug().Int("depth", depth).Int("score", res.score).Msg("decisive-score")
			return out
		}

		if !s.deadline.IsZero() {
			iterTime := time.Since(iterStart)
			remaining := time.Until(s.deadline)
			estimate := float64(iterTime) * s.cfg.branchingFactor(depth)
			if estimate > float64(remaining)*s.cfg.SafetyMargin {
				log.Debug().Int("depth", depth).Dur("last-iteration", iterTime).Dur("remaining", remaining).
					Msg("not-enough-time-for-next-iteration")
				return out
			}
		}
	}
	return out
}

// aspirate searches one depth, starting from a narrow window around the previous
// score and widening it on failure.
func (s *searcher) aspirate(root *board.Position, moves *board.MoveList, depth int, prev rootOutcome) iterationResult {
	alpha, beta := -Infinity, Infinity
	delta := s.cfg.AspirationDelta
	if prev.completed && depth >= s.cfg.AspirationMinDepth && abs(prev.score) < DecisiveScore {
		alpha = max(prev.score-delta, -Infinity)
		beta = min(prev.score+delta, Infinity)
	}
	hint := prev.move

	failures := 0
	for {
		res := s.searchRoot(root, moves, depth, alpha, beta, hint)
		if res.status != iterationFailedLow && res.status != iterationFailedHigh {
			return res
		}

		failures++
		s.stats.researches.Add(1)
		log.Debug().Int("depth", depth).Int("alpha", alpha).Int("beta", beta).Int("score", res.score).
			Stringer("status", res.status).Int("failures", failures).Msg("aspiration-research")

		if res.status == iterationFailedHigh {
			hint = res.move
		}
		if failures >= s.cfg.AspirationMaxFailures {
			alpha, beta = -Infinity, Infinity
			continue
		}
		delta *= s.cfg.AspirationGrowth
		if res.status == iterationFailedLow {
			alpha = max(prev.score-delta, -Infinity)
		} else {
			beta = min(prev.score+delta, Infinity)
		}
	}
}

// searchRoot searches every root move at depth with the window [alpha, beta].
// A panic anywhere below is turned into iterationFailed.
func (s *searcher) searchRoot(root *board.Position, moves *board.MoveList, depth, alpha, beta int, hint board.Move) (res iterationResult) {
	defer func() {
		if r := recover(); r != nil {
			res = iterationResult{status: iterationFailed, err: fmt.Errorf("depth %d: %v", depth, r)}
		}
	}()

	fullWindow := alpha <= -Infinity && beta >= Infinity
	alphaOrig := alpha
	s.pv.length[0] = 0

	if hint == board.NoMove && s.cfg.UseTranspositionTable {
		s.stats.ttProbes.Add(1)
		if entry, found := s.tt.Probe(root.Hash); found {
			s.stats.ttHits.Add(1)
			hint = entry.BestMove
		}
	}
	s.orderer.Order(root, moves, 0, hint)

	bestScore := -Infinity
	bestMove := board.NoMove

	for i := 0; i < moves.Len(); i++ {
		if s.checkClock() || s.stopped() {
			return iterationResult{status: iterationAborted}
		}

		move := moves.Get(i)
		child := *root
		child.MakeMove(move)

		score := s.searchChild(&child, depth-1, 1, alpha, beta, i == 0)
		if s.aborted {
			return iterationResult{status: iterationAborted}
		}

		if score > bestScore {
			bestScore = score
			bestMove = move
			if score > alpha {
				alpha = score
				s.pv.update(0, move)
			}
		}
		if alpha >= beta {
			s.stats.cutoffs.Add(1)
			break
		}
	}

	if s.cfg.UseTranspositionTable {
		s.tt.Store(root.Hash, depth, bestScore, boundFlag(bestScore, alphaOrig, beta), bestMove)
	}

	res = iterationResult{status: iterationCompleted, move: bestMove, score: bestScore}
	switch {
	case fullWindow:
	case bestScore <= alphaOrig:
		res.status = iterationFailedLow
	case bestScore >= beta:
		res.status = iterationFailedHigh
	}
	return res
}

package engine

import (
	"context"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/hailam/guardtowers/internal/board"
)

// Search constants
const (
	Infinity = 30000
	MaxPly   = 128

	// DecisiveScore marks scores that can only come from a decided game.
	DecisiveScore = WinScore - 1000
)

// Strategy selects how non-first children are searched.
type Strategy int

const (
	AlphaBeta Strategy = iota // full window for every child
	PVS                       // null window probe, re-search on fail high
)

func (s Strategy) String() string {
	switch s {
	case AlphaBeta:
		return "ab"
	case PVS:
		return "pvs"
	}
	return fmt.Sprintf("strategy(%d)", int(s))
}

// ParseStrategy parses "ab", "alphabeta" or "pvs".
func ParseStrategy(s string) (Strategy, error) {
	switch strings.ToLower(s) {
	case "ab", "alphabeta", "alpha-beta":
		return AlphaBeta, nil
	case "pvs":
		return PVS, nil
	}
	return AlphaBeta, fmt.Errorf("unknown strategy %q", s)
}

// PVTable stores the principal variation.
type PVTable struct {
	length [MaxPly]int
	moves  [MaxPly][MaxPly]board.Move
}

func (pv *PVTable) update(ply int, m board.Move) {
	pv.moves[ply][ply] = m
	for i := ply + 1; i < pv.length[ply+1]; i++ {
		pv.moves[ply][i] = pv.moves[ply+1][i]
	}
	pv.length[ply] = pv.length[ply+1]
	if pv.length[ply] < ply+1 {
		pv.length[ply] = ply + 1
	}
}

func (pv *PVTable) line() []board.Move {
	out := make([]board.Move, pv.length[0])
	copy(out, pv.moves[0][:pv.length[0]])
	return out
}

// searcher holds the state of one top-level search. The tables it points to belong
// to the Engine and outlive it.
type searcher struct {
	cfg      *Config
	gen      MoveGenerator
	eval     Evaluator
	tt       *TranspositionTable
	orderer  *MoveOrderer
	stats    *searchCounters
	stopFlag *atomic.Bool
	strategy Strategy

	ctx      context.Context
	deadline time.Time // zero = none

	aborted bool
	polls   uint64
	pv      PVTable
}

// stopped reports whether the search must unwind. The stop flag is read on every
// call; the clock and the context only every PollInterval calls.
func (s *searcher) stopped() bool {
	if s.aborted {
		return true
	}
	if s.stopFlag.Load() {
		s.aborted = true
		return true
	}
	s.polls++
	if s.polls%s.cfg.PollInterval == 0 {
		return s.checkClock()
	}
	return false
}

// checkClock tests the deadline and the context right away.
func (s *searcher) checkClock() bool {
	if s.aborted {
		return true
	}
	if !s.deadline.IsZero() && !time.Now().Before(s.deadline) {
		s.aborted = true
	} else if s.ctx != nil && s.ctx.Err() != nil {
		s.aborted = true
	}
	return s.aborted
}

// search implements negamax alpha-beta. Scores are fail-soft and relative to the side
// to move at pos. An aborted search returns 0 and stores nothing.
func (s *searcher) search(pos *board.Position, depth, ply, alpha, beta int) int {
	if s.stopped() {
		return 0
	}
	s.stats.nodes.Add(1)
	s.pv.length[ply] = ply

	if pos.IsGameOver() || depth <= 0 || ply >= MaxPly-1 {
		if depth <= 0 && s.cfg.UseQuiescence && !pos.IsGameOver() {
			return s.quiesce(pos, alpha, beta, 0, ply)
		}
		return s.eval.Evaluate(pos, max(depth, 0))
	}

	// Probe transposition table
	var ttMove board.Move
	if s.cfg.UseTranspositionTable {
		s.stats.ttProbes.Add(1)
		if entry, found := s.tt.Probe(pos.Hash); found {
			s.stats.ttHits.Add(1)
			ttMove = entry.BestMove
			if int(entry.Depth) >= depth {
				score := int(entry.Score)
				switch entry.Flag {
				case TTExact:
					return score
				case TTLowerBound:
					alpha = max(alpha, score)
				case TTUpperBound:
					beta = min(beta, score)
				}
				if alpha >= beta {
					return score
				}
			}
		}
	}

	moves := s.gen.Generate(pos)
	if moves.Len() == 0 {
		return s.eval.Evaluate(pos, depth)
	}
	s.orderer.Order(pos, moves, ply, ttMove)

	alphaOrig := alpha
	bestScore := -Infinity
	bestMove := board.NoMove

	for i := 0; i < moves.Len(); i++ {
		move := moves.Get(i)
		child := *pos
		child.MakeMove(move)

		score := s.searchChild(&child, depth-1, ply+1, alpha, beta, i == 0)
		if s.aborted {
			return 0
		}

		if score > bestScore {
			bestScore = score
			bestMove = move
			if score > alpha {
				alpha = score
				s.pv.update(ply, move)
			}
		}

		if alpha >= beta {
			s.stats.cutoffs.Add(1)
			if s.cfg.UseKillers && !move.IsCapture(pos) {
				s.orderer.RecordKiller(move, ply)
			}
			break
		}
	}

	if s.cfg.UseTranspositionTable {
		s.tt.Store(pos.Hash, depth, bestScore, boundFlag(bestScore, alphaOrig, beta), bestMove)
	}
	return bestScore
}

// searchChild searches one child and returns its score from the parent's side.
// Under PVS every child but the first is probed with a null window first.
func (s *searcher) searchChild(child *board.Position, depth, ply, alpha, beta int, first bool) int {
	if s.strategy == PVS && !first {
		score := -s.search(child, depth, ply, -alpha-1, -alpha)
		if s.aborted || score <= alpha || score >= beta {
			return score
		}
	}
	return -s.search(child, depth, ply, -beta, -alpha)
}

// boundFlag classifies a fail-soft result against the window it was searched with.
func boundFlag(score, alpha, beta int) TTFlag {
	switch {
	case score <= alpha:
		return TTUpperBound
	case score >= beta:
		return TTLowerBound
	default:
		return TTExact
	}
}

package engine

import (
	"fmt"
	"testing"

	"github.com/hailam/guardtowers/internal/board"
	"github.com/matryer/is"
)

// minimax is an unpruned reference search. Leaf scores are taken from the root
// mover's point of view.
func minimax(pos *board.Position, depth int, maximizing bool, ev Evaluator) int {
	leaf := func() int {
		score := ev.Evaluate(pos, depth)
		if !maximizing {
			score = -score
		}
		return score
	}
	if pos.IsGameOver() || depth == 0 {
		return leaf()
	}
	moves := pos.GenerateLegalMoves()
	if moves.Len() == 0 {
		return leaf()
	}

	best := Infinity
	if maximizing {
		best = -Infinity
	}
	for i := 0; i < moves.Len(); i++ {
		child := *pos
		child.MakeMove(moves.Get(i))
		score := minimax(&child, depth-1, !maximizing, ev)
		if maximizing {
			best = max(best, score)
		} else {
			best = min(best, score)
		}
	}
	return best
}

// plainConfig disables everything that makes a fixed-depth result depend on
// earlier searches or extend past the horizon.
func plainConfig() Config {
	cfg := DefaultConfig()
	cfg.HashMB = 1
	cfg.UseTranspositionTable = false
	cfg.UseQuiescence = false
	return cfg
}

// playout returns the position after n deterministic plies from the start.
// Moves that end the game are skipped, so the result is still in play.
func playout(n int) *board.Position {
	pos := board.NewPosition()
	for i := 0; i < n; i++ {
		moves := pos.GenerateLegalMoves()
		for k := 0; k < moves.Len(); k++ {
			m := moves.Get((i*5 + 3 + k) % moves.Len())
			if !pos.IsWinningMove(m) {
				pos.MakeMove(m)
				break
			}
		}
	}
	return pos
}

type searchCase struct {
	name  string
	pos   *board.Position
	depth int
}

func equivalenceCases(t *testing.T) []searchCase {
	sparse := mustFEN(t, "3RG3/7/2r21b12/7/2b11r12/7/3BG3 r")
	capture := mustFEN(t, "7/7/7/3RGb12/3BG3/7/7 r")
	cases := []searchCase{
		{"capture-d1", capture, 1},
		{"capture-d3", capture, 3},
		{"sparse-d4", sparse, 4},
	}
	for d := 1; d <= 3; d++ {
		cases = append(cases,
			searchCase{fmt.Sprintf("start-d%d", d), board.NewPosition(), d},
			searchCase{fmt.Sprintf("midgame-d%d", d), playout(8), d},
		)
	}
	return cases
}

func TestAlphaBetaMatchesMinimax(t *testing.T) {
	for _, tc := range equivalenceCases(t) {
		t.Run(tc.name, func(t *testing.T) {
			is := is.New(t)
			e := New(plainConfig())
			want := minimax(tc.pos, tc.depth, true, NewClassicalEvaluator())
			got := e.Search(tc.pos, tc.depth, -Infinity, Infinity, AlphaBeta)
			is.Equal(got, want)
		})
	}
}

func TestPVSMatchesAlphaBeta(t *testing.T) {
	for _, tc := range equivalenceCases(t) {
		t.Run(tc.name, func(t *testing.T) {
			is := is.New(t)
			ab := New(plainConfig()).Search(tc.pos, tc.depth, -Infinity, Infinity, AlphaBeta)
			pvs := New(plainConfig()).Search(tc.pos, tc.depth, -Infinity, Infinity, PVS)
			is.Equal(pvs, ab)
		})
	}
}

func TestPVSMatchesAlphaBetaWithQuiescence(t *testing.T) {
	is := is.New(t)
	cfg := plainConfig()
	cfg.UseQuiescence = true
	for _, pos := range []*board.Position{board.NewPosition(), playout(8), playout(14)} {
		ab := New(cfg).Search(pos, 2, -Infinity, Infinity, AlphaBeta)
		pvs := New(cfg).Search(pos, 2, -Infinity, Infinity, PVS)
		is.Equal(pvs, ab)
	}
}

func TestSearchDoesNotMutatePosition(t *testing.T) {
	is := is.New(t)
	pos := playout(6)
	fen, hash := pos.ToFEN(), pos.Hash

	New(DefaultConfig()).Search(pos, 3, -Infinity, Infinity, PVS)
	is.Equal(pos.ToFEN(), fen)
	is.Equal(pos.Hash, hash)
}

func TestQuiescenceStaysInWindow(t *testing.T) {
	windows := [][2]int{
		{-Infinity, Infinity},
		{-50, 50},
		{0, 1},
		{200, 300},
		{-1000, -900},
		{WinScore - 10, Infinity},
	}
	positions := []*board.Position{
		board.NewPosition(),
		playout(8),
		playout(16),
		mustFEN(t, "7/7/7/3RGb12/3BG3/7/7 r"),
		mustFEN(t, "3RG3/7/7/7/r16/7/BG6 r"),
	}

	e := New(DefaultConfig())
	for pi, pos := range positions {
		for _, w := range windows {
			score := e.Quiesce(pos, w[0], w[1])
			if score < w[0] || score > w[1] {
				t.Errorf("position %d: quiesce in [%d, %d] returned %d", pi, w[0], w[1], score)
			}
		}
	}
}

func TestQuiescenceSeesGuardCapture(t *testing.T) {
	is := is.New(t)
	pos := mustFEN(t, "7/7/7/3RG3/3BG3/7/7 r")
	e := New(DefaultConfig())
	is.Equal(e.Quiesce(pos, -Infinity, Infinity), WinScore)
}

func TestQuiescencePlyCap(t *testing.T) {
	is := is.New(t)
	cfg := DefaultConfig()
	cfg.QuiescenceMaxPly = 0
	e := New(cfg)
	pos := mustFEN(t, "7/7/7/3RG3/3BG3/7/7 r")

	// With no room to extend, quiescence is the clamped static evaluation.
	want := NewClassicalEvaluator().Evaluate(pos, 0)
	is.Equal(e.Quiesce(pos, -Infinity, Infinity), want)
}

func TestSearchCountsNodes(t *testing.T) {
	is := is.New(t)
	e := New(DefaultConfig())
	e.Search(board.NewPosition(), 2, -Infinity, Infinity, AlphaBeta)
	stats := e.Stats()
	is.True(stats.Nodes > 25)
	is.True(stats.QNodes > 0)
	is.True(stats.TTProbes > 0)
}

func TestBoundFlag(t *testing.T) {
	is := is.New(t)
	is.Equal(boundFlag(-10, -10, 10), TTUpperBound)
	is.Equal(boundFlag(10, -10, 10), TTLowerBound)
	is.Equal(boundFlag(0, -10, 10), TTExact)
}

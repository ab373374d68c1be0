// Package engine implements the Guard & Towers search engine.
package engine

import (
	"sync/atomic"
	"time"

	"github.com/hailam/guardtowers/internal/board"
)

// Evaluation constants
const (
	TowerPieceValue = 100

	// WinScore is the score of a decided game, before the depth bonus.
	WinScore = 29000
)

const (
	guardAdvanceWeight = 8   // per square closer to the goal
	guardEscortBonus   = 15  // own tower next to the guard
	guardHangingBonus  = 800 // side to move can take the enemy guard
	guardThreatPenalty = 50  // own guard attacked, must react
	centerTowerBonus   = 5
	mobilityWeight     = 2

	// Below this much clock time the mobility term is skipped.
	mobilityTimeCutoff = time.Second
)

// maxGuardDistance is the largest Manhattan distance on the board.
const maxGuardDistance = (board.Files - 1) + (board.Ranks - 1)

// ClassicalEvaluator is a hand-tuned evaluator. Scores are relative to the side to move.
type ClassicalEvaluator struct {
	remaining atomic.Int64 // nanoseconds, 0 = unknown
}

// NewClassicalEvaluator creates an evaluator with no clock hint.
func NewClassicalEvaluator() *ClassicalEvaluator {
	return &ClassicalEvaluator{}
}

// SetRemainingTime implements Evaluator.
func (ev *ClassicalEvaluator) SetRemainingTime(remaining time.Duration) {
	ev.remaining.Store(int64(remaining))
}

func (ev *ClassicalEvaluator) fullDetail() bool {
	r := time.Duration(ev.remaining.Load())
	return r == 0 || r >= mobilityTimeCutoff
}

// Evaluate implements Evaluator. Decided games score WinScore plus the remaining depth,
// so quicker wins score higher.
func (ev *ClassicalEvaluator) Evaluate(pos *board.Position, depthRemaining int) int {
	if depthRemaining < 0 {
		depthRemaining = 0
	}
	us := pos.SideToMove
	if w := pos.Winner(); w != board.NoColor {
		if w == us {
			return WinScore + depthRemaining
		}
		return -(WinScore + depthRemaining)
	}

	score := evaluateSide(pos, us) - evaluateSide(pos, us.Other())

	if pos.GuardAttacked(us.Other()) {
		score += guardHangingBonus
	} else if pos.GuardAttacked(us) {
		score -= guardThreatPenalty
	}

	if ev.fullDetail() {
		score += mobilityWeight * (mobility(pos, us) - mobility(pos, us.Other()))
	}
	return score
}

// EvaluateMaterial returns the material balance for the side to move.
func EvaluateMaterial(pos *board.Position) int {
	us := pos.SideToMove
	return TowerPieceValue * (pos.Material(us) - pos.Material(us.Other()))
}

func evaluateSide(pos *board.Position, c board.Color) int {
	score := TowerPieceValue * pos.Material(c)

	if g := pos.GuardSquare(c); g != board.NoSquare {
		score += guardAdvanceWeight * (maxGuardDistance - board.Distance(g, board.Goal(c)))
		escort := pos.Towers[c] & board.SquareBB(g).Neighbors()
		score += guardEscortBonus * escort.PopCount()
	}

	score += centerTowerBonus * (pos.Towers[c] & board.Center).PopCount()
	return score
}

// mobility counts empty squares next to c's towers.
func mobility(pos *board.Position, c board.Color) int {
	empty := board.Universe &^ pos.AllOccupied()
	return (pos.Towers[c].Neighbors() & empty).PopCount()
}

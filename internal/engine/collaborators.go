package engine

import (
	"time"

	"github.com/hailam/guardtowers/internal/board"
)

// MoveGenerator enumerates moves for a position. An empty list means the side to move
// has no legal moves.
type MoveGenerator interface {
	Generate(pos *board.Position) *board.MoveList
	// GenerateTactical returns the noisy subset searched past the horizon.
	GenerateTactical(pos *board.Position) *board.MoveList
}

// Evaluator scores a position from the point of view of the side to move.
type Evaluator interface {
	Evaluate(pos *board.Position, depthRemaining int) int
	// SetRemainingTime passes the clock time left to the evaluator. It may use it to
	// skip expensive terms; it must not change which positions are wins or losses.
	SetRemainingTime(remaining time.Duration)
}

// RulesGenerator generates moves with the rules implemented in package board.
type RulesGenerator struct{}

// Generate returns all legal moves.
func (RulesGenerator) Generate(pos *board.Position) *board.MoveList {
	return pos.GenerateLegalMoves()
}

// GenerateTactical returns captures, winning moves and guard threats.
func (RulesGenerator) GenerateTactical(pos *board.Position) *board.MoveList {
	return pos.GenerateTactical()
}

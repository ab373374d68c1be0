package engine

import (
	"time"

	"github.com/hailam/guardtowers/internal/board"
)

// Phase is the game phase used by time allocation.
type Phase int

const (
	Opening Phase = iota
	Middlegame
	Endgame
)

func (p Phase) String() string {
	switch p {
	case Opening:
		return "opening"
	case Middlegame:
		return "middlegame"
	default:
		return "endgame"
	}
}

// TimeBudget is the clock state of one side. The caller updates it with CompleteMove
// between searches; the search only reads it.
type TimeBudget struct {
	Remaining time.Duration
	MovesLeft int

	// Filled in by the last allocation.
	Phase     Phase
	Allocated time.Duration
}

// NewTimeBudget creates a budget for a clock with remaining time and an estimate of
// the moves still to play.
func NewTimeBudget(remaining time.Duration, movesLeft int) *TimeBudget {
	return &TimeBudget{Remaining: remaining, MovesLeft: movesLeft}
}

// CompleteMove charges used to the clock and counts one move as played.
func (b *TimeBudget) CompleteMove(used time.Duration) {
	b.Remaining -= used
	if b.Remaining < 0 {
		b.Remaining = 0
	}
	if b.MovesLeft > 1 {
		b.MovesLeft--
	}
}

// Allocation explains how a move time was chosen.
type Allocation struct {
	Time     time.Duration
	Phase    Phase
	Panic    bool
	Critical bool
}

// TimeManager converts clock state into a per-move search time.
type TimeManager struct {
	cfg TimeConfig
}

// NewTimeManager creates a time manager with the given policy.
func NewTimeManager(cfg TimeConfig) *TimeManager {
	return &TimeManager{cfg: cfg}
}

// Allocate returns the time to spend on the next move.
func (tm *TimeManager) Allocate(pos *board.Position, remaining time.Duration, movesLeft int) time.Duration {
	return tm.Plan(pos, remaining, movesLeft).Time
}

// Plan is Allocate with the reasoning attached.
func (tm *TimeManager) Plan(pos *board.Position, remaining time.Duration, movesLeft int) Allocation {
	cfg := &tm.cfg
	phase := tm.DetectPhase(pos)
	if remaining <= 0 {
		return Allocation{Phase: phase, Panic: true}
	}

	// Panic tiers bypass everything else.
	for _, tier := range cfg.PanicTiers {
		if remaining < tier.Below {
			alloc := max(scale(remaining, tier.Fraction), tier.Floor)
			return Allocation{Time: min(alloc, remaining/2), Phase: phase, Panic: true}
		}
	}

	// Baseline
	movesLeft = max(movesLeft, cfg.MinMovesLeft)
	base := remaining / time.Duration(movesLeft)

	mult := cfg.OpeningMultiplier
	switch phase {
	case Middlegame:
		mult = cfg.MiddlegameMultiplier
	case Endgame:
		mult = cfg.EndgameMultiplier
	}
	if pos.Material(board.Red)+pos.Material(board.Blue) <= cfg.LowMaterial {
		mult *= cfg.LowMaterialMultiplier
	}
	mult = min(mult, cfg.MaxMultiplier)
	alloc := scale(base, mult)

	critical := tm.IsCritical(pos)
	if critical {
		alloc = max(alloc, scale(remaining, cfg.CriticalFraction))
	}

	// Bounds
	lower := max(cfg.MinTime, scale(remaining, cfg.MinFraction))
	upper := scale(remaining, tm.maxFraction(remaining))
	alloc = max(alloc, lower)
	alloc = min(alloc, upper)

	return Allocation{Time: alloc, Phase: phase, Critical: critical}
}

func (tm *TimeManager) maxFraction(remaining time.Duration) float64 {
	switch {
	case remaining > tm.cfg.HighTime:
		return tm.cfg.MaxFractionHigh
	case remaining > tm.cfg.MidTime:
		return tm.cfg.MaxFractionMid
	default:
		return tm.cfg.MaxFractionLow
	}
}

// DetectPhase classifies the position by ply and total material.
func (tm *TimeManager) DetectPhase(pos *board.Position) Phase {
	material := pos.Material(board.Red) + pos.Material(board.Blue)
	switch {
	case material <= tm.cfg.EndgameMaterial:
		return Endgame
	case pos.Ply < tm.cfg.OpeningPlies && material >= tm.cfg.OpeningMaterial:
		return Opening
	default:
		return Middlegame
	}
}

// IsCritical reports whether the position deserves extra time: a large material
// imbalance, our guard can be taken, we have a winning move, or many tactical options.
func (tm *TimeManager) IsCritical(pos *board.Position) bool {
	us := pos.SideToMove
	diff := pos.Material(us) - pos.Material(us.Other())
	if abs(diff) >= tm.cfg.ImbalanceThreshold {
		return true
	}
	if pos.GuardAttacked(us) {
		return true
	}
	if pos.WinningMove() != board.NoMove {
		return true
	}
	return tm.Complexity(pos) > tm.cfg.ComplexityThreshold
}

// Complexity is the number of legal moves plus a weighted count of captures and
// guard threats.
func (tm *TimeManager) Complexity(pos *board.Position) int {
	moves := pos.GenerateLegalMoves()
	tactical := 0
	for i := 0; i < moves.Len(); i++ {
		m := moves.Get(i)
		if m.IsCapture(pos) || pos.GivesGuardThreat(m) {
			tactical++
		}
	}
	return moves.Len() + tm.cfg.TacticalWeight*tactical
}

func scale(d time.Duration, f float64) time.Duration {
	return time.Duration(float64(d) * f)
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}

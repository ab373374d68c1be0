package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/hailam/guardtowers/internal/board"
	"github.com/rs/zerolog/log"
)

var (
	ErrNilPosition       = errors.New("nil position")
	ErrInvalidTimeBudget = errors.New("time budget must be positive")
	ErrInvalidDepth      = errors.New("search depth must be positive")
)

// SearchInfo contains information about the current search.
type SearchInfo struct {
	Depth    int
	Score    int
	Move     board.Move
	Nodes    uint64
	Time     time.Duration
	PV       []board.Move
	HashFull int // Permille of hash table used
}

// Result is the outcome of a top-level search.
type Result struct {
	Move  board.Move
	Score int // positive favors the side to move at the root
	Depth int // last completed iteration, 0 if none completed
	PV    []board.Move

	// Terminal is set when the root position has no legal moves.
	Terminal bool
	// Fallback is set when no iteration completed and the move was picked
	// without searching.
	Fallback bool

	Stats SearchStats
}

// SearchLimits specifies constraints on the search.
type SearchLimits struct {
	Depth    int           // Maximum depth (0 = engine maximum)
	MoveTime time.Duration // Time for this move
}

// Difficulty represents the AI difficulty level.
type Difficulty int

const (
	Easy   Difficulty = iota // 3 ply, 500ms
	Medium                   // 5 ply, 2s
	Hard                     // 7 ply, 5s
)

// DifficultySettings maps difficulty to search limits.
var DifficultySettings = map[Difficulty]SearchLimits{
	Easy:   {Depth: 3, MoveTime: 500 * time.Millisecond},
	Medium: {Depth: 5, MoveTime: 2 * time.Second},
	Hard:   {Depth: 7, MoveTime: 5 * time.Second},
}

func (d Difficulty) String() string {
	switch d {
	case Easy:
		return "easy"
	case Medium:
		return "medium"
	case Hard:
		return "hard"
	}
	return fmt.Sprintf("difficulty(%d)", int(d))
}

// ParseDifficulty parses "easy", "medium" or "hard".
func ParseDifficulty(s string) (Difficulty, error) {
	for d := Easy; d <= Hard; d++ {
		if d.String() == s {
			return d, nil
		}
	}
	return Medium, fmt.Errorf("unknown difficulty %q", s)
}

// Engine is the Guard & Towers AI engine. It owns the transposition table, killer
// moves and statistics; one search runs at a time.
type Engine struct {
	cfg        Config
	gen        MoveGenerator
	eval       Evaluator
	tt         *TranspositionTable
	orderer    *MoveOrderer
	tm         *TimeManager
	stats      searchCounters
	stopFlag   atomic.Bool
	mu         sync.Mutex
	difficulty Difficulty

	// Callbacks
	OnInfo func(SearchInfo)
}

// Option customizes an Engine.
type Option func(*Engine)

// WithEvaluator replaces the built-in evaluator.
func WithEvaluator(ev Evaluator) Option {
	return func(e *Engine) { e.eval = ev }
}

// WithMoveGenerator replaces the built-in move generator.
func WithMoveGenerator(gen MoveGenerator) Option {
	return func(e *Engine) { e.gen = gen }
}

// New creates an engine from cfg.
func New(cfg Config, opts ...Option) *Engine {
	if cfg.PollInterval == 0 {
		cfg.PollInterval = 256
	}
	if cfg.MaxDepth < 1 || cfg.MaxDepth > MaxPly-1 {
		cfg.MaxDepth = MaxPly - 1
	}

	var tt *TranspositionTable
	if cfg.HashMemoryFraction > 0 {
		tt = NewTranspositionTableFromMemory(cfg.HashMemoryFraction)
	} else {
		tt = NewTranspositionTable(cfg.HashMB)
	}
	tt.SetHighWater(cfg.HashHighWater)

	e := &Engine{
		cfg:        cfg,
		gen:        RulesGenerator{},
		eval:       NewClassicalEvaluator(),
		tt:         tt,
		orderer:    NewMoveOrderer(),
		tm:         NewTimeManager(cfg.Time),
		difficulty: Medium,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// NewEngine creates an engine with default settings and the given transposition
// table size in MB.
func NewEngine(ttSizeMB int) *Engine {
	cfg := DefaultConfig()
	cfg.HashMB = ttSizeMB
	return New(cfg)
}

// Config returns the engine configuration.
func (e *Engine) Config() Config {
	return e.cfg
}

// SetDifficulty sets the engine difficulty.
func (e *Engine) SetDifficulty(d Difficulty) {
	e.difficulty = d
}

// Difficulty returns the engine difficulty.
func (e *Engine) Difficulty() Difficulty {
	return e.difficulty
}

// TimeManager returns the engine's time policy.
func (e *Engine) TimeManager() *TimeManager {
	return e.tm
}

// Think searches with the limits of the current difficulty.
func (e *Engine) Think(ctx context.Context, pos *board.Position, strategy Strategy) (Result, error) {
	limits := DifficultySettings[e.difficulty]
	return e.FindBestMove(ctx, pos, limits.Depth, limits.MoveTime, strategy)
}

// FindBestMove searches pos by iterative deepening up to maxDepth plies and within
// timeBudget. A position without legal moves yields a terminal result with
// board.NoMove. Errors are returned only for invalid arguments.
func (e *Engine) FindBestMove(ctx context.Context, pos *board.Position, maxDepth int, timeBudget time.Duration, strategy Strategy) (Result, error) {
	return e.findBestMove(ctx, pos, maxDepth, timeBudget, timeBudget, strategy)
}

// SearchClock lets the time manager pick the move time from the clock state, then
// searches. The budget is not modified; call CompleteMove once the move is played.
func (e *Engine) SearchClock(ctx context.Context, pos *board.Position, budget *TimeBudget, strategy Strategy) (Result, error) {
	if pos == nil {
		return Result{}, ErrNilPosition
	}
	if budget == nil || budget.Remaining <= 0 {
		return Result{}, fmt.Errorf("clock: %w", ErrInvalidTimeBudget)
	}

	plan := e.tm.Plan(pos, budget.Remaining, budget.MovesLeft)
	budget.Phase = plan.Phase
	budget.Allocated = plan.Time
	log.Debug().Dur("remaining", budget.Remaining).Int("moves-left", budget.MovesLeft).
		Stringer("phase", plan.Phase).Bool("panic", plan.Panic).Bool("critical", plan.Critical).
		Dur("allocated", plan.Time).Msg("time-allocated")

	if plan.Time <= 0 {
		plan.Time = time.Millisecond
	}
	return e.findBestMove(ctx, pos, e.cfg.MaxDepth, plan.Time, budget.Remaining, strategy)
}

func (e *Engine) findBestMove(ctx context.Context, pos *board.Position, maxDepth int, moveTime, clock time.Duration, strategy Strategy) (Result, error) {
	if pos == nil {
		return Result{}, ErrNilPosition
	}
	if moveTime <= 0 {
		return Result{}, fmt.Errorf("move time %v: %w", moveTime, ErrInvalidTimeBudget)
	}
	if maxDepth < 1 {
		return Result{}, fmt.Errorf("depth %d: %w", maxDepth, ErrInvalidDepth)
	}
	maxDepth = min(maxDepth, e.cfg.MaxDepth)
	if ctx == nil {
		ctx = context.Background()
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	start := time.Now()
	e.stats.reset(start)
	defer e.stats.finish()
	defer e.stopFlag.Store(false)
	e.orderer.ResetKillers()
	if e.cfg.UseTranspositionTable {
		e.tt.NewSearch()
	}
	e.setRemainingTime(clock)

	root := pos.Copy()
	moves := generateSafely(e.gen, root)
	if moves.Len() == 0 {
		log.Debug().Str("fen", root.ToFEN()).Msg("no-legal-moves")
		return Result{Terminal: true, Score: e.safeEvaluate(root), Stats: e.stats.snapshot()}, nil
	}

	s := e.newSearcher(ctx, strategy, start.Add(moveTime))
	out := s.deepen(root, moves, maxDepth, func(info SearchInfo) {
		if e.OnInfo != nil {
			e.OnInfo(info)
		}
	})

	res := Result{
		Move:  out.move,
		Score: out.score,
		Depth: out.depth,
		PV:    out.pv,
	}
	if !out.completed {
		res.Move = emergencyMove(root, moves)
		res.Score = 0
		res.PV = []board.Move{res.Move}
		res.Fallback = true
		log.Warn().Str("move", res.Move.String()).Dur("budget", moveTime).Msg("emergency-move")
	}

	e.stats.finish()
	res.Stats = e.stats.snapshot()
	log.Debug().Str("move", res.Move.String()).Int("score", res.Score).Int("depth", res.Depth).
		Uint64("nodes", res.Stats.TotalNodes()).Dur("elapsed", res.Stats.Elapsed).
		Stringer("strategy", strategy).Msg("search-complete")
	return res, nil
}

func (e *Engine) newSearcher(ctx context.Context, strategy Strategy, deadline time.Time) *searcher {
	return &searcher{
		cfg:      &e.cfg,
		gen:      e.gen,
		eval:     e.eval,
		tt:       e.tt,
		orderer:  e.orderer,
		stats:    &e.stats,
		stopFlag: &e.stopFlag,
		strategy: strategy,
		ctx:      ctx,
		deadline: deadline,
	}
}

// Search runs a single fixed-depth search with the given window and no deadline.
// The score is relative to the side to move.
func (e *Engine) Search(pos *board.Position, depth, alpha, beta int, strategy Strategy) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	s := e.newSearcher(context.Background(), strategy, time.Time{})
	return s.search(pos.Copy(), depth, 0, alpha, beta)
}

// Quiesce runs the quiescence search alone.
func (e *Engine) Quiesce(pos *board.Position, alpha, beta int) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	s := e.newSearcher(context.Background(), AlphaBeta, time.Time{})
	return s.quiesce(pos.Copy(), alpha, beta, 0, 0)
}

func (e *Engine) setRemainingTime(d time.Duration) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Msg("evaluator-set-remaining-time-failed")
		}
	}()
	e.eval.SetRemainingTime(d)
}

func (e *Engine) safeEvaluate(pos *board.Position) (score int) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Msg("evaluator-failed")
			score = 0
		}
	}()
	return e.eval.Evaluate(pos, 0)
}

// Stop stops the current search. A Stop issued while no search runs applies to
// the next one; the flag is cleared when a search returns and by NewGame.
func (e *Engine) Stop() {
	e.stopFlag.Store(true)
}

// Stats returns the counters of the running or last search.
func (e *Engine) Stats() SearchStats {
	return e.stats.snapshot()
}

// Clear clears the transposition table and killer moves.
func (e *Engine) Clear() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.tt.Clear()
	e.orderer.ResetKillers()
}

// NewGame prepares the engine for an unrelated game.
func (e *Engine) NewGame() {
	e.Clear()
	e.stopFlag.Store(false)
}

// HashFull returns the permille of the transposition table in use.
func (e *Engine) HashFull() int {
	return e.tt.HashFull()
}

// HashSize returns the number of transposition table entries.
func (e *Engine) HashSize() uint64 {
	return e.tt.Size()
}

// Perft performs a perft test (for debugging move generation). A depth below one
// counts the position itself.
func (e *Engine) Perft(pos *board.Position, depth int) uint64 {
	if depth <= 0 {
		return 1
	}

	moves := e.gen.Generate(pos)
	if depth == 1 {
		return uint64(moves.Len())
	}

	var nodes uint64
	for i := 0; i < moves.Len(); i++ {
		child := *pos
		child.MakeMove(moves.Get(i))
		nodes += e.Perft(&child, depth-1)
	}

	return nodes
}

// Evaluate returns the static evaluation of a position.
func (e *Engine) Evaluate(pos *board.Position) int {
	return e.eval.Evaluate(pos, 0)
}

// ScoreToString converts a score to a human-readable string.
func ScoreToString(score int) string {
	if score >= DecisiveScore {
		return "win"
	}
	if score <= -DecisiveScore {
		return "loss"
	}
	sign := ""
	if score < 0 {
		sign = "-"
		score = -score
	}
	return fmt.Sprintf("%s%d.%02d", sign, score/TowerPieceValue, score%TowerPieceValue)
}

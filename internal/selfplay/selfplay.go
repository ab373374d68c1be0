// Package selfplay runs engine-versus-engine games under a game clock.
package selfplay

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
	"lukechampine.com/frand"

	"github.com/hailam/guardtowers/internal/board"
	"github.com/hailam/guardtowers/internal/engine"
	"github.com/hailam/guardtowers/internal/storage"
)

// Game end reasons.
const (
	ReasonGuardCaptured = "guard-captured"
	ReasonCastleReached = "castle-reached"
	ReasonNoMoves       = "no-moves"
	ReasonTimeForfeit   = "time-forfeit"
	ReasonMoveLimit     = "move-limit"
)

// movesLeftEstimate is the clock's initial guess of the moves each side will play.
const movesLeftEstimate = 40

// Options configures a batch of games.
type Options struct {
	Games       int
	Concurrency int
	// Clock is the total thinking time of each side.
	Clock time.Duration
	// OpeningPlies random moves are played before the engines take over.
	OpeningPlies int
	// Games reaching MaxPlies are drawn.
	MaxPlies int

	// First and Second alternate colors: First plays Red in even games.
	First, Second engine.Strategy

	Engine engine.Config
}

// Runner plays self-play batches and optionally records them.
type Runner struct {
	opts  Options
	store *storage.Store
}

// NewRunner creates a runner. store may be nil.
func NewRunner(opts Options, store *storage.Store) (*Runner, error) {
	switch {
	case opts.Games < 1:
		return nil, fmt.Errorf("games must be positive, got %d", opts.Games)
	case opts.Clock <= 0:
		return nil, fmt.Errorf("clock: %w", engine.ErrInvalidTimeBudget)
	case opts.MaxPlies < 1:
		return nil, fmt.Errorf("max plies must be positive, got %d", opts.MaxPlies)
	case opts.OpeningPlies < 0:
		return nil, fmt.Errorf("opening plies must not be negative, got %d", opts.OpeningPlies)
	}
	opts.Concurrency = max(opts.Concurrency, 1)
	return &Runner{opts: opts, store: store}, nil
}

// Run plays all games and returns their records in game order. The first game
// error cancels the remaining games.
func (r *Runner) Run(ctx context.Context) ([]*storage.MatchRecord, error) {
	records := make([]*storage.MatchRecord, r.opts.Games)

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(r.opts.Concurrency)
	for i := range r.opts.Games {
		g.Go(func() error {
			rec, err := r.playGame(ctx, i)
			if err != nil {
				return fmt.Errorf("game %d: %w", i, err)
			}
			records[i] = rec
			if r.store == nil {
				return nil
			}
			err = r.store.SaveMatch(rec)
			if errors.Is(err, storage.ErrDuplicateMatch) {
				log.Info().Int("game", i).Msg("duplicate-game-not-saved")
				return nil
			}
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return records, nil
}

type player struct {
	eng      *engine.Engine
	strategy engine.Strategy
	clock    *engine.TimeBudget
}

func (r *Runner) playGame(ctx context.Context, game int) (*storage.MatchRecord, error) {
	red, blue := r.opts.First, r.opts.Second
	if game%2 == 1 {
		red, blue = blue, red
	}
	players := [2]*player{
		board.Red:  {eng: engine.New(r.opts.Engine), strategy: red, clock: engine.NewTimeBudget(r.opts.Clock, movesLeftEstimate)},
		board.Blue: {eng: engine.New(r.opts.Engine), strategy: blue, clock: engine.NewTimeBudget(r.opts.Clock, movesLeftEstimate)},
	}

	pos := board.NewPosition()
	rec := &storage.MatchRecord{
		StartFEN: pos.ToFEN(),
		Red:      storage.PlayerInfo{Strategy: red.String(), Clock: r.opts.Clock},
		Blue:     storage.PlayerInfo{Strategy: blue.String(), Clock: r.opts.Clock},
	}
	start := time.Now()

	rec.OpeningPlies = playOpening(pos, rec, r.opts.OpeningPlies)

	for !pos.IsGameOver() && len(rec.Plies) < r.opts.MaxPlies {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		us := pos.SideToMove
		p := players[us]
		res, err := p.eng.SearchClock(ctx, pos, p.clock, p.strategy)
		if err != nil {
			return nil, err
		}
		if res.Terminal {
			finish(rec, us.Other(), ReasonNoMoves)
			break
		}

		rec.Plies = append(rec.Plies, storage.PlyRecord{
			Move:     res.Move.String(),
			Score:    res.Score,
			Depth:    res.Depth,
			Nodes:    res.Stats.TotalNodes(),
			Time:     res.Stats.Elapsed,
			Fallback: res.Fallback,
		})
		p.clock.CompleteMove(res.Stats.Elapsed)
		pos.MakeMove(res.Move)

		if p.clock.Remaining <= 0 && !pos.IsGameOver() {
			finish(rec, us.Other(), ReasonTimeForfeit)
			break
		}
	}

	if rec.Reason == "" {
		switch {
		case pos.IsGameOver():
			finish(rec, pos.Winner(), endReason(pos))
		default:
			finish(rec, board.NoColor, ReasonMoveLimit)
		}
	}
	rec.Duration = time.Since(start)

	log.Info().Int("game", game).Str("red", rec.Red.Strategy).Str("blue", rec.Blue.Strategy).
		Str("winner", rec.Winner).Str("reason", rec.Reason).Int("plies", len(rec.Plies)).
		Dur("duration", rec.Duration).Msg("selfplay-game-finished")
	return rec, nil
}

// playOpening plays up to n random moves that do not end the game and returns how
// many were played.
func playOpening(pos *board.Position, rec *storage.MatchRecord, n int) int {
	played := 0
	for ; played < n; played++ {
		moves := pos.GenerateLegalMoves()
		var candidates []board.Move
		for _, m := range moves.Slice() {
			if !pos.IsWinningMove(m) {
				candidates = append(candidates, m)
			}
		}
		if len(candidates) == 0 {
			break
		}
		m := candidates[frand.Intn(len(candidates))]
		rec.Plies = append(rec.Plies, storage.PlyRecord{Move: m.String()})
		pos.MakeMove(m)
	}
	return played
}

func finish(rec *storage.MatchRecord, winner board.Color, reason string) {
	rec.Reason = reason
	if winner != board.NoColor {
		rec.Winner = winner.String()
	}
}

func endReason(pos *board.Position) string {
	if pos.HasGuard(board.Red) && pos.HasGuard(board.Blue) {
		return ReasonCastleReached
	}
	return ReasonGuardCaptured
}

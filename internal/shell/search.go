package shell

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/hailam/guardtowers/internal/board"
	"github.com/hailam/guardtowers/internal/config"
	"github.com/hailam/guardtowers/internal/engine"
)

// goOptions holds parsed "go" command options.
type goOptions struct {
	depth      int
	moveTime   time.Duration
	clock      time.Duration
	movesLeft  int
	strategy   engine.Strategy
	difficulty *engine.Difficulty
}

// handleGo starts a search with the given parameters. The result is printed as a
// bestmove line when the search ends.
func (s *Shell) handleGo(ctx context.Context, args []string) error {
	opts := goOptions{
		depth:     s.cfg.GetInt(config.ConfigDefaultDepth),
		moveTime:  s.moveTime,
		movesLeft: 30,
		strategy:  s.strategy,
	}
	err := parseOptions(args, map[string]func(string) error{
		"depth":     intOption(&opts.depth),
		"movetime":  msOption(&opts.moveTime),
		"clock":     msOption(&opts.clock),
		"movesleft": intOption(&opts.movesLeft),
		"strategy": func(v string) (err error) {
			opts.strategy, err = engine.ParseStrategy(v)
			return err
		},
		"difficulty": func(v string) error {
			d, err := engine.ParseDifficulty(v)
			opts.difficulty = &d
			return err
		},
	})
	if err != nil {
		return err
	}

	s.searchMu.Lock()
	if s.searchDone != nil {
		s.searchMu.Unlock()
		return errSearching
	}
	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	s.searchDone, s.cancel = done, cancel
	s.searchMu.Unlock()

	if opts.difficulty != nil {
		s.eng.SetDifficulty(*opts.difficulty)
	}
	pos := s.position.Copy()

	go func() {
		defer func() {
			cancel()
			s.searchMu.Lock()
			s.searchDone, s.cancel = nil, nil
			s.searchMu.Unlock()
			close(done)
		}()

		var (
			res engine.Result
			err error
		)
		switch {
		case opts.clock > 0:
			budget := engine.NewTimeBudget(opts.clock, opts.movesLeft)
			res, err = s.eng.SearchClock(ctx, pos, budget, opts.strategy)
			if err == nil {
				s.printf("info string allocated %v phase %s\n", budget.Allocated, budget.Phase)
			}
		case opts.difficulty != nil:
			res, err = s.eng.Think(ctx, pos, opts.strategy)
		default:
			res, err = s.eng.FindBestMove(ctx, pos, opts.depth, opts.moveTime, opts.strategy)
		}
		if err != nil {
			s.printf("info string search failed: %v\n", err)
			return
		}
		s.sendResult(pos, res)
	}()
	return nil
}

func (s *Shell) sendResult(pos *board.Position, res engine.Result) {
	if res.Terminal {
		s.printf("info string no legal moves\nbestmove 0000\n")
		return
	}
	if !pos.GenerateLegalMoves().Contains(res.Move) {
		// Should never happen; report it rather than send an illegal move.
		log.Error().Str("move", res.Move.String()).Str("fen", pos.ToFEN()).Msg("search-returned-illegal-move")
	}
	if res.Fallback {
		s.printf("info string no iteration completed, heuristic move\n")
	}
	s.printf("info string score %s depth %d nodes %d time %d\n", formatScore(res.Score),
		res.Depth, res.Stats.TotalNodes(), res.Stats.Elapsed.Milliseconds())
	s.printf("bestmove %s\n", res.Move)
}

// sendInfo outputs one completed iteration.
func (s *Shell) sendInfo(info engine.SearchInfo) {
	parts := []string{
		fmt.Sprintf("depth %d", info.Depth),
		"score " + formatScore(info.Score),
		fmt.Sprintf("nodes %d", info.Nodes),
		fmt.Sprintf("time %d", info.Time.Milliseconds()),
	}
	if info.Time > 0 {
		parts = append(parts, fmt.Sprintf("nps %d", uint64(float64(info.Nodes)/info.Time.Seconds())))
	}
	if info.HashFull > 0 {
		parts = append(parts, fmt.Sprintf("hashfull %d", info.HashFull))
	}
	if len(info.PV) > 0 {
		pv := make([]string, len(info.PV))
		for i, m := range info.PV {
			pv[i] = m.String()
		}
		parts = append(parts, "pv "+strings.Join(pv, " "))
	}
	s.printf("info %s\n", strings.Join(parts, " "))
}

func formatScore(score int) string {
	switch {
	case score >= engine.DecisiveScore:
		return "win"
	case score <= -engine.DecisiveScore:
		return "loss"
	}
	return fmt.Sprintf("cp %d", score)
}

func (s *Shell) isSearching() bool {
	s.searchMu.Lock()
	defer s.searchMu.Unlock()
	return s.searchDone != nil
}

// Wait blocks until the running search, if any, has printed its result.
func (s *Shell) Wait() {
	s.searchMu.Lock()
	done := s.searchDone
	s.searchMu.Unlock()
	if done != nil {
		<-done
	}
}

// stopSearch stops the current search and waits for its result.
func (s *Shell) stopSearch() {
	s.searchMu.Lock()
	done, cancel := s.searchDone, s.cancel
	s.searchMu.Unlock()
	if done == nil {
		return
	}
	// The engine's stop flag would outlive a search that already returned.
	cancel()
	<-done
}

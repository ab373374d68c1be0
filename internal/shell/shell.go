// Package shell implements the interactive command line of the engine.
package shell

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/chzyer/readline"
	"github.com/kballard/go-shellquote"
	"github.com/rs/zerolog/log"

	"github.com/hailam/guardtowers/internal/board"
	"github.com/hailam/guardtowers/internal/config"
	"github.com/hailam/guardtowers/internal/engine"
	"github.com/hailam/guardtowers/internal/selfplay"
	"github.com/hailam/guardtowers/internal/storage"
)

// ErrQuit is returned by Execute for the quit command.
var ErrQuit = errors.New("quit")

var errSearching = errors.New("a search is running, use stop first")

const helpText = `commands:
  newgame                                  clear the engine and set the start position
  position startpos|fen <fen> [moves ...]  set up a position
  play <move>                              make a move on the current position
  go [depth N] [movetime MS] [clock MS] [movesleft N] [strategy ab|pvs] [difficulty D]
                                           search the current position in the background
  stop                                     stop the running search
  wait                                     wait for the running search to finish
  d                                        show the position
  moves                                    list legal moves
  perft N                                  count leaf nodes at depth N
  eval                                     static evaluation
  selfplay [games N] [concurrency N] [clock MS]
                                           play engine games and record them
  matches                                  list recorded games
  export FILE                              write recorded games as YAML
  prefs [difficulty D] [strategy S] [hash MB] [movetime MS]
                                           show or change saved preferences
  quit`

// Shell holds the position and engine driven by text commands.
type Shell struct {
	cfg   *config.Config
	eng   *engine.Engine
	store *storage.Store // nil without a database

	position *board.Position
	played   []string
	strategy engine.Strategy
	moveTime time.Duration // for go without depth or movetime limits

	outMu sync.Mutex
	out   io.Writer

	searchMu   sync.Mutex
	searchDone chan struct{}
	cancel     context.CancelFunc
}

// New creates a shell. store may be nil; saved preferences are applied when present.
func New(cfg *config.Config, eng *engine.Engine, store *storage.Store, out io.Writer) (*Shell, error) {
	strategy, err := cfg.DefaultStrategy()
	if err != nil {
		return nil, err
	}
	s := &Shell{
		cfg:      cfg,
		eng:      eng,
		store:    store,
		position: board.NewPosition(),
		strategy: strategy,
		moveTime: cfg.GetDuration(config.ConfigDefaultMoveTime),
		out:      out,
	}
	if store != nil {
		prefs, err := store.LoadPreferences()
		if err != nil {
			return nil, fmt.Errorf("load preferences: %w", err)
		}
		if err := s.applyPreferences(prefs); err != nil {
			log.Warn().Err(err).Msg("ignoring-saved-preferences")
		}
		// An explicit flag or variable beats the saved move time.
		if cfg.IsSet(config.ConfigDefaultMoveTime) {
			s.moveTime = cfg.GetDuration(config.ConfigDefaultMoveTime)
		}
	}
	eng.OnInfo = s.sendInfo
	return s, nil
}

func filterInput(r rune) (rune, bool) {
	switch r {
	// block CtrlZ feature
	case readline.CharCtrlZ:
		return r, false
	}
	return r, true
}

// Loop reads commands until quit, EOF or an interrupt on an empty line.
func (s *Shell) Loop(ctx context.Context) error {
	l, err := readline.NewEx(&readline.Config{
		Prompt:          "\033[31mguardtowers>\033[0m ",
		HistoryFile:     filepath.Join(os.TempDir(), "guardtowers_history"),
		EOFPrompt:       "quit",
		InterruptPrompt: "^C",

		HistorySearchFold:   true,
		FuncFilterInputRune: filterInput,
	})
	if err != nil {
		return err
	}
	defer l.Close()

	s.outMu.Lock()
	s.out = l.Stdout()
	s.outMu.Unlock()

	for {
		line, err := l.Readline()
		if errors.Is(err, readline.ErrInterrupt) {
			if len(line) == 0 {
				break
			}
			continue
		} else if errors.Is(err, io.EOF) {
			break
		}

		err = s.Execute(ctx, line)
		if errors.Is(err, ErrQuit) {
			break
		}
		if err != nil {
			fmt.Fprintln(l.Stderr(), "error:", err)
		}
	}
	s.stopSearch()
	log.Debug().Msg("exiting-readline-loop")
	return nil
}

// Execute runs one command line.
func (s *Shell) Execute(ctx context.Context, line string) error {
	fields, err := shellquote.Split(line)
	if err != nil {
		return err
	}
	if len(fields) == 0 {
		return nil
	}
	cmd, args := strings.ToLower(fields[0]), fields[1:]

	switch cmd {
	case "help", "?":
		s.println(helpText)
	case "newgame":
		if s.isSearching() {
			return errSearching
		}
		s.eng.NewGame()
		s.position = board.NewPosition()
		s.played = nil
	case "position":
		if s.isSearching() {
			return errSearching
		}
		return s.handlePosition(args)
	case "play":
		if s.isSearching() {
			return errSearching
		}
		return s.handlePlay(args)
	case "go":
		return s.handleGo(ctx, args)
	case "stop":
		s.stopSearch()
	case "wait":
		s.Wait()
	case "d":
		s.printf("%s\nfen %s\nside %s  ply %d  hash %016x\n", s.position, s.position.ToFEN(),
			s.position.SideToMove, s.position.Ply, s.position.Hash)
	case "moves":
		moves := s.position.GenerateLegalMoves()
		out := make([]string, 0, moves.Len())
		for _, m := range moves.Slice() {
			out = append(out, m.String())
		}
		s.printf("%d moves: %s\n", len(out), strings.Join(out, " "))
	case "perft":
		return s.handlePerft(args)
	case "eval":
		score := s.eng.Evaluate(s.position)
		s.printf("eval %d (%s) for %s\n", score, engine.ScoreToString(score), s.position.SideToMove)
	case "selfplay":
		if s.isSearching() {
			return errSearching
		}
		return s.handleSelfPlay(ctx, args)
	case "matches":
		return s.handleMatches()
	case "export":
		return s.handleExport(args)
	case "prefs":
		return s.handlePrefs(args)
	case "quit", "exit":
		return ErrQuit
	default:
		return fmt.Errorf("unknown command %q, try help", cmd)
	}
	return nil
}

// handlePosition parses and sets up a position.
// Formats:
//   - position startpos
//   - position startpos moves D7-D6-1 D1-D2-1
//   - position fen <fen>
//   - position fen <fen> moves D7-D6-1
func (s *Shell) handlePosition(args []string) error {
	if len(args) == 0 {
		return errors.New("position needs startpos or fen")
	}

	setupEnd := len(args)
	var moveArgs []string
	for i, arg := range args {
		if arg == "moves" {
			setupEnd = i
			moveArgs = args[i+1:]
			break
		}
	}

	var pos *board.Position
	switch args[0] {
	case "startpos":
		pos = board.NewPosition()
	case "fen":
		fen := strings.Join(args[1:setupEnd], " ")
		var err error
		pos, err = board.ParseFEN(fen)
		if err != nil {
			return err
		}
	default:
		return fmt.Errorf("unknown position type %q", args[0])
	}

	var played []string
	for _, moveStr := range moveArgs {
		m, err := board.ParseMove(moveStr, pos)
		if err != nil {
			return err
		}
		pos.MakeMove(m)
		played = append(played, m.String())
	}

	s.position = pos
	s.played = played
	return nil
}

func (s *Shell) handlePlay(args []string) error {
	if len(args) != 1 {
		return errors.New("play needs one move")
	}
	if s.position.IsGameOver() {
		return errors.New("game is over")
	}
	m, err := board.ParseMove(args[0], s.position)
	if err != nil {
		return err
	}
	s.position.MakeMove(m)
	s.played = append(s.played, m.String())
	if w := s.position.Winner(); w != board.NoColor {
		s.printf("%s wins\n", w)
	}
	return nil
}

func (s *Shell) handlePerft(args []string) error {
	depth := 3
	if len(args) > 0 {
		var err error
		if depth, err = strconv.Atoi(args[0]); err != nil {
			return err
		}
		if depth < 0 {
			return fmt.Errorf("perft depth must not be negative, got %d", depth)
		}
	}

	start := time.Now()
	nodes := s.eng.Perft(s.position, depth)
	elapsed := time.Since(start)

	s.printf("nodes %d\ntime %v\n", nodes, elapsed)
	if elapsed > 0 {
		s.printf("nps %.0f\n", float64(nodes)/elapsed.Seconds())
	}
	return nil
}

func (s *Shell) handleSelfPlay(ctx context.Context, args []string) error {
	opts := selfplay.Options{
		Games:        2,
		Concurrency:  s.cfg.GetInt(config.ConfigSelfPlayConcurrency),
		Clock:        s.cfg.GetDuration(config.ConfigSelfPlayClock),
		OpeningPlies: s.cfg.GetInt(config.ConfigSelfPlayOpeningPlies),
		MaxPlies:     s.cfg.GetInt(config.ConfigSelfPlayMaxPlies),
		First:        engine.PVS,
		Second:       engine.AlphaBeta,
		Engine:       s.eng.Config(),
	}
	err := parseOptions(args, map[string]func(string) error{
		"games":       intOption(&opts.Games),
		"concurrency": intOption(&opts.Concurrency),
		"clock":       msOption(&opts.Clock),
		"opening":     intOption(&opts.OpeningPlies),
		"maxplies":    intOption(&opts.MaxPlies),
	})
	if err != nil {
		return err
	}

	runner, err := selfplay.NewRunner(opts, s.store)
	if err != nil {
		return err
	}
	records, err := runner.Run(ctx)
	if err != nil {
		return err
	}
	s.outMu.Lock()
	selfplay.Summarize(records).Write(s.out)
	s.outMu.Unlock()
	return nil
}

func (s *Shell) handleMatches() error {
	if s.store == nil {
		return errors.New("no database")
	}
	records, err := s.store.Matches()
	if err != nil {
		return err
	}
	for _, rec := range records {
		winner := rec.Winner
		if winner == "" {
			winner = "draw"
		}
		s.printf("%s  %s  %-4s vs %-4s  %-5s %-15s %d plies\n", rec.ID, rec.Played.Format(time.DateTime),
			rec.Red.Strategy, rec.Blue.Strategy, winner, rec.Reason, len(rec.Plies))
	}
	tally, err := s.store.LoadTally()
	if err != nil {
		return err
	}
	s.printf("%d games, red %.1f%%, blue %.1f%%, draws %d\n", tally.Games,
		tally.WinRate("red"), tally.WinRate("blue"), tally.Draws)
	return nil
}

func (s *Shell) handleExport(args []string) error {
	if s.store == nil {
		return errors.New("no database")
	}
	if len(args) != 1 {
		return errors.New("export needs a file name")
	}
	records, err := s.store.Matches()
	if err != nil {
		return err
	}

	f, err := os.Create(args[0])
	if err != nil {
		return err
	}
	if err := storage.ExportYAML(f, records); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	s.printf("exported %d games to %s\n", len(records), args[0])
	return nil
}

func (s *Shell) handlePrefs(args []string) error {
	if s.store == nil {
		return errors.New("no database")
	}
	prefs, err := s.store.LoadPreferences()
	if err != nil {
		return err
	}
	if len(args) > 0 {
		savedHash := prefs.HashMB
		err := parseOptions(args, map[string]func(string) error{
			"difficulty": func(v string) error { prefs.Difficulty = v; return nil },
			"strategy":   func(v string) error { prefs.Strategy = v; return nil },
			"hash":       intOption(&prefs.HashMB),
			"movetime":   msOption(&prefs.MoveTime),
		})
		if err != nil {
			return err
		}
		if err := s.applyPreferences(prefs); err != nil {
			return err
		}
		if err := s.store.SavePreferences(prefs); err != nil {
			return err
		}
		if prefs.HashMB > 0 && prefs.HashMB != savedHash {
			s.printf("hash %dMB takes effect on the next start\n", prefs.HashMB)
		}
	}
	s.printf("difficulty %s  strategy %s  hash %dMB  movetime %v\n",
		prefs.Difficulty, prefs.Strategy, prefs.HashMB, prefs.MoveTime)
	return nil
}

func (s *Shell) applyPreferences(prefs *storage.Preferences) error {
	d, err := engine.ParseDifficulty(prefs.Difficulty)
	if err != nil {
		return err
	}
	strategy, err := engine.ParseStrategy(prefs.Strategy)
	if err != nil {
		return err
	}
	if prefs.HashMB < 0 || prefs.MoveTime < 0 {
		return errors.New("hash and movetime must not be negative")
	}
	s.eng.SetDifficulty(d)
	s.strategy = strategy
	if prefs.MoveTime > 0 {
		s.moveTime = prefs.MoveTime
	}
	return nil
}

// parseOptions reads "key value" pairs.
func parseOptions(args []string, setters map[string]func(string) error) error {
	for i := 0; i < len(args); i++ {
		set, ok := setters[strings.ToLower(args[i])]
		if !ok {
			return fmt.Errorf("unknown option %q", args[i])
		}
		if i+1 >= len(args) {
			return fmt.Errorf("option %s needs a value", args[i])
		}
		if err := set(args[i+1]); err != nil {
			return fmt.Errorf("%s: %w", args[i], err)
		}
		i++
	}
	return nil
}

func intOption(dst *int) func(string) error {
	return func(v string) error {
		n, err := strconv.Atoi(v)
		if err != nil {
			return err
		}
		*dst = n
		return nil
	}
}

func msOption(dst *time.Duration) func(string) error {
	return func(v string) error {
		ms, err := strconv.Atoi(v)
		if err != nil {
			return err
		}
		*dst = time.Duration(ms) * time.Millisecond
		return nil
	}
}

func (s *Shell) printf(format string, a ...any) {
	s.outMu.Lock()
	defer s.outMu.Unlock()
	fmt.Fprintf(s.out, format, a...)
}

func (s *Shell) println(a ...any) {
	s.outMu.Lock()
	defer s.outMu.Unlock()
	fmt.Fprintln(s.out, a...)
}

package shell

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/matryer/is"
	"github.com/rs/zerolog"

	"github.com/hailam/guardtowers/internal/config"
	"github.com/hailam/guardtowers/internal/engine"
	"github.com/hailam/guardtowers/internal/storage"
)

func TestMain(m *testing.M) {
	zerolog.SetGlobalLevel(zerolog.Disabled)
	os.Exit(m.Run())
}

type testShell struct {
	*Shell
	buf *bytes.Buffer
}

func newTestShell(t *testing.T, store *storage.Store) *testShell {
	t.Helper()
	return newTestShellDepth(t, store, 4)
}

func newTestShellDepth(t *testing.T, store *storage.Store, maxDepth int) *testShell {
	t.Helper()
	cfg := &config.Config{}
	if err := cfg.Load(nil); err != nil {
		t.Fatalf("config: %v", err)
	}
	ec := engine.DefaultConfig()
	ec.HashMB = 1
	ec.MaxDepth = maxDepth

	buf := &bytes.Buffer{}
	sh, err := New(cfg, engine.New(ec), store, buf)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(sh.stopSearch)
	return &testShell{Shell: sh, buf: buf}
}

func (ts *testShell) run(t *testing.T, lines ...string) {
	t.Helper()
	for _, line := range lines {
		if err := ts.Execute(context.Background(), line); err != nil {
			t.Fatalf("%q: %v", line, err)
		}
	}
}

// output returns and clears what the shell printed so far.
func (ts *testShell) output() string {
	ts.outMu.Lock()
	defer ts.outMu.Unlock()
	s := ts.buf.String()
	ts.buf.Reset()
	return s
}

func memStore(t *testing.T) *storage.Store {
	t.Helper()
	store, err := storage.OpenInMemory()
	if err != nil {
		t.Fatalf("OpenInMemory: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestPositionCommands(t *testing.T) {
	is := is.New(t)
	sh := newTestShell(t, nil)

	sh.run(t, "position startpos moves D7-D6-1 D1-D2-1", "d")
	out := sh.output()
	is.True(strings.Contains(out, "fen r1r13r1r1/2r1RGr12/3r13/7/3b13/2b1BGb12/b1b13b1b1 r"))
	is.True(strings.Contains(out, "ply 2"))
	is.Equal(sh.played, []string{"D7-D6-1", "D1-D2-1"})

	sh.run(t, `position fen "7/7/7/3RG3/3BG3/7/7 r"`, "moves")
	is.True(strings.HasPrefix(sh.output(), "4 moves:"))

	sh.run(t, "position fen 7/7/7/3RG3/3BG3/7/7 r moves D4-D3-1")
	is.True(sh.position.IsGameOver())

	err := sh.Execute(context.Background(), "position fen 7/7 r")
	is.True(err != nil)
	err = sh.Execute(context.Background(), "position startpos moves A1-A2-1")
	is.True(err != nil)
	err = sh.Execute(context.Background(), "position somewhere")
	is.True(err != nil)
}

func TestPlay(t *testing.T) {
	is := is.New(t)
	sh := newTestShell(t, nil)

	sh.run(t, `position fen "7/7/7/3RG3/3BG3/7/7 r"`, "play D4-D3-1")
	is.True(strings.Contains(sh.output(), "red wins"))

	err := sh.Execute(context.Background(), "play D3-D2-1")
	is.True(err != nil) // game over

	sh.run(t, "newgame")
	is.True(sh.Execute(context.Background(), "play D7-D5-1") != nil)
	is.True(sh.Execute(context.Background(), "play") != nil)
	sh.run(t, "play D7-D6-1")
	is.Equal(sh.played, []string{"D7-D6-1"})
}

func TestGoDepth(t *testing.T) {
	is := is.New(t)
	sh := newTestShell(t, nil)

	sh.run(t, "go depth 3 movetime 10000", "wait")
	out := sh.output()
	is.True(strings.Contains(out, "info depth 1 "))
	is.True(strings.Contains(out, "info depth 3 "))
	is.True(strings.Contains(out, "\nbestmove "))
	is.True(!sh.isSearching())
}

func TestGoFindsWin(t *testing.T) {
	is := is.New(t)
	sh := newTestShell(t, nil)

	sh.run(t, `position fen "7/7/7/3RGb12/3BG3/7/7 r"`, "go depth 4 strategy ab", "wait")
	out := sh.output()
	is.True(strings.Contains(out, "score win"))
	is.True(strings.Contains(out, "bestmove D4-D3-1"))
}

func TestGoClockAndDifficulty(t *testing.T) {
	is := is.New(t)
	sh := newTestShell(t, nil)

	sh.run(t, "go clock 2000 movesleft 20", "wait")
	out := sh.output()
	is.True(strings.Contains(out, "info string allocated 600ms phase opening"))
	is.True(strings.Contains(out, "bestmove "))

	sh.run(t, "go difficulty easy", "wait")
	is.Equal(sh.eng.Difficulty(), engine.Easy)
	is.True(strings.Contains(sh.output(), "bestmove "))
}

func TestGoTerminal(t *testing.T) {
	is := is.New(t)
	sh := newTestShell(t, nil)

	sh.run(t, "position fen 7/7/7/7/7/7/3RG3 b", "go depth 2", "wait")
	is.True(strings.Contains(sh.output(), "bestmove 0000"))
}

func TestStopAndBusy(t *testing.T) {
	is := is.New(t)
	sh := newTestShellDepth(t, nil, 64)

	sh.run(t, "go depth 64 movetime 30000")
	if sh.isSearching() {
		err := sh.Execute(context.Background(), "go")
		is.True(errors.Is(err, errSearching))
		err = sh.Execute(context.Background(), "position startpos")
		is.True(errors.Is(err, errSearching))
	}

	start := time.Now()
	sh.run(t, "stop")
	is.True(time.Since(start) < 5*time.Second)
	is.True(!sh.isSearching())
	is.True(strings.Contains(sh.output(), "bestmove "))

	sh.run(t, "stop") // no search running
}

func TestGoBadOptions(t *testing.T) {
	is := is.New(t)
	sh := newTestShell(t, nil)
	for _, line := range []string{"go depth", "go depth x", "go strategy mcts", "go difficulty insane", "go nodes 5"} {
		is.True(sh.Execute(context.Background(), line) != nil)
	}
	is.True(!sh.isSearching())
}

func TestInfoCommands(t *testing.T) {
	is := is.New(t)
	sh := newTestShell(t, nil)

	sh.run(t, "perft 2")
	is.True(strings.Contains(sh.output(), "nodes 625"))
	sh.run(t, "perft 0")
	is.True(strings.Contains(sh.output(), "nodes 1\n"))
	is.True(sh.Execute(context.Background(), "perft -1") != nil)
	is.True(sh.Execute(context.Background(), "perft x") != nil)

	sh.run(t, "eval")
	is.True(strings.HasPrefix(sh.output(), "eval 0 (0.00) for red"))

	sh.run(t, "help", "")
	is.True(strings.Contains(sh.output(), "position startpos|fen"))

	is.True(errors.Is(sh.Execute(context.Background(), "quit"), ErrQuit))
	is.True(sh.Execute(context.Background(), "frobnicate") != nil)
	is.True(sh.Execute(context.Background(), `position fen "unterminated`) != nil)
}

func TestCommandsNeedStore(t *testing.T) {
	is := is.New(t)
	sh := newTestShell(t, nil)
	for _, line := range []string{"matches", "export out.yaml", "prefs"} {
		is.True(sh.Execute(context.Background(), line) != nil)
	}
}

func TestPrefs(t *testing.T) {
	is := is.New(t)
	store := memStore(t)
	sh := newTestShell(t, store)

	sh.run(t, "prefs")
	is.True(strings.Contains(sh.output(), "difficulty medium  strategy pvs"))

	sh.run(t, "prefs difficulty hard strategy ab movetime 1500")
	is.True(strings.Contains(sh.output(), "difficulty hard  strategy ab"))
	is.Equal(sh.strategy, engine.AlphaBeta)
	is.Equal(sh.eng.Difficulty(), engine.Hard)

	is.True(sh.Execute(context.Background(), "prefs strategy mcts") != nil)

	// A new shell on the same store starts from the saved preferences.
	again := newTestShell(t, store)
	is.Equal(again.strategy, engine.AlphaBeta)
	is.Equal(again.eng.Difficulty(), engine.Hard)

	prefs, err := store.LoadPreferences()
	is.NoErr(err)
	is.Equal(prefs.MoveTime, 1500*time.Millisecond)
}

func TestPrefsMoveTimeUsedByGo(t *testing.T) {
	is := is.New(t)
	store := memStore(t)
	sh := newTestShellDepth(t, store, 64)
	is.Equal(sh.moveTime, 2*time.Second)

	sh.run(t, "prefs movetime 300 hash 8")
	out := sh.output()
	is.True(strings.Contains(out, "movetime 300ms"))
	is.True(strings.Contains(out, "hash 8MB takes effect on the next start"))
	is.Equal(sh.moveTime, 300*time.Millisecond)

	start := time.Now()
	sh.run(t, "go", "wait")
	is.True(time.Since(start) < 1500*time.Millisecond)
	is.True(strings.Contains(sh.output(), "bestmove "))

	again := newTestShell(t, store)
	is.Equal(again.moveTime, 300*time.Millisecond)
}

func TestSelfPlayMatchesExport(t *testing.T) {
	is := is.New(t)
	store := memStore(t)
	sh := newTestShell(t, store)

	sh.run(t, "selfplay games 2 clock 20000 maxplies 12 opening 4")
	out := sh.output()
	is.True(strings.Contains(out, "games 2"))

	sh.run(t, "matches")
	out = sh.output()
	is.True(strings.Contains(out, "plies"))
	is.True(strings.Contains(out, "games, red"))

	path := filepath.Join(t.TempDir(), "matches.yaml")
	sh.run(t, "export "+path)
	is.True(strings.Contains(sh.output(), "to "+path))
	data, err := os.ReadFile(path)
	is.NoErr(err)
	is.True(strings.Contains(string(data), "start_fen"))

	is.True(sh.Execute(context.Background(), "selfplay games 0") != nil)
	is.True(sh.Execute(context.Background(), "export") != nil)
}

package storage

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/matryer/is"
	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"
)

func TestMain(m *testing.M) {
	zerolog.SetGlobalLevel(zerolog.Disabled)
	os.Exit(m.Run())
}

func openTest(t *testing.T) *Store {
	t.Helper()
	s, err := OpenInMemory()
	if err != nil {
		t.Fatalf("OpenInMemory: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func sampleMatch(moves ...string) *MatchRecord {
	rec := &MatchRecord{
		StartFEN: "r1r11RG1r1r1/2r11r12/3r13/7/3b13/2b11b12/b1b11BG1b1b1 r",
		Red:      PlayerInfo{Strategy: "pvs", Clock: time.Minute},
		Blue:     PlayerInfo{Strategy: "alphabeta", Clock: time.Minute},
		Winner:   "red",
		Reason:   "guard-captured",
		Duration: 3 * time.Second,
	}
	for i, m := range moves {
		rec.Plies = append(rec.Plies, PlyRecord{Move: m, Depth: 4, Nodes: uint64(1000 * (i + 1)), Time: 100 * time.Millisecond})
	}
	return rec
}

func TestPreferences(t *testing.T) {
	is := is.New(t)
	s := openTest(t)

	prefs, err := s.LoadPreferences()
	is.NoErr(err)
	is.Equal(prefs.Difficulty, "medium")
	is.Equal(prefs.Strategy, "pvs")
	is.Equal(prefs.HashMB, 64)

	prefs.Difficulty = "hard"
	prefs.HashMB = 16
	is.NoErr(s.SavePreferences(prefs))
	is.True(!prefs.LastPlayed.IsZero())

	loaded, err := s.LoadPreferences()
	is.NoErr(err)
	is.Equal(loaded.Difficulty, "hard")
	is.Equal(loaded.HashMB, 16)
	is.Equal(loaded.MoveTime, 2*time.Second)
}

func TestSaveAndLoadMatch(t *testing.T) {
	is := is.New(t)
	s := openTest(t)

	rec := sampleMatch("D7-D6-1", "D1-D2-1", "D6-D5-1")
	is.NoErr(s.SaveMatch(rec))
	is.True(rec.ID != uuid.Nil)
	is.True(!rec.Played.IsZero())

	loaded, err := s.Match(rec.ID)
	is.NoErr(err)
	is.Equal(loaded.Moves(), []string{"D7-D6-1", "D1-D2-1", "D6-D5-1"})
	is.Equal(loaded.Red, rec.Red)
	is.Equal(loaded.Plies[2].Nodes, uint64(3000))
	is.Equal(loaded.Winner, "red")

	_, err = s.Match(uuid.New())
	is.True(errors.Is(err, ErrMatchNotFound))
}

func TestDuplicateMatchRejected(t *testing.T) {
	is := is.New(t)
	s := openTest(t)

	is.NoErr(s.SaveMatch(sampleMatch("D7-D6-1", "D1-D2-1")))
	err := s.SaveMatch(sampleMatch("D7-D6-1", "D1-D2-1"))
	is.True(errors.Is(err, ErrDuplicateMatch))

	// Same moves from another start position is a different game.
	other := sampleMatch("D7-D6-1", "D1-D2-1")
	other.StartFEN = "3RG3/7/7/7/7/7/3BG3 r"
	is.NoErr(s.SaveMatch(other))

	matches, err := s.Matches()
	is.NoErr(err)
	is.Equal(len(matches), 2)

	tally, err := s.LoadTally()
	is.NoErr(err)
	is.Equal(tally.Games, 2)
}

func TestConcurrentSaves(t *testing.T) {
	is := is.New(t)
	s := openTest(t)

	const games = 32
	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		dups int
		errs []error
	)
	// Every game is saved twice so duplicates race with the first save.
	for i := range 2 * games {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := s.SaveMatch(sampleMatch("D7-D6-1", strings.Repeat("x", i%games+1)))
			mu.Lock()
			defer mu.Unlock()
			switch {
			case errors.Is(err, ErrDuplicateMatch):
				dups++
			case err != nil:
				errs = append(errs, err)
			}
		}()
	}
	wg.Wait()

	is.Equal(len(errs), 0)
	is.Equal(dups, games)

	matches, err := s.Matches()
	is.NoErr(err)
	is.Equal(len(matches), games)

	tally, err := s.LoadTally()
	is.NoErr(err)
	is.Equal(tally.Games, games)
	is.Equal(tally.RedWins, games)
	is.Equal(tally.TotalPlayTime, games*3*time.Second)
}

func TestMatchesOrderedAndTallied(t *testing.T) {
	is := is.New(t)
	s := openTest(t)

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	for i, winner := range []string{"blue", "red", "", "red"} {
		rec := sampleMatch("D7-D6-1", strings.Repeat("x", i+1))
		rec.Winner = winner
		rec.Played = base.Add(time.Duration(3-i) * time.Hour)
		is.NoErr(s.SaveMatch(rec))
	}

	matches, err := s.Matches()
	is.NoErr(err)
	is.Equal(len(matches), 4)
	for i := 1; i < len(matches); i++ {
		is.True(!matches[i].Played.Before(matches[i-1].Played))
	}
	is.Equal(matches[0].Winner, "red") // played last in the loop, earliest timestamp

	tally, err := s.LoadTally()
	is.NoErr(err)
	is.Equal(tally.Games, 4)
	is.Equal(tally.RedWins, 2)
	is.Equal(tally.BlueWins, 1)
	is.Equal(tally.Draws, 1)
	is.Equal(tally.TotalPlayTime, 12*time.Second)
	is.Equal(tally.WinRate("red"), 50.0)
	is.Equal(tally.WinRate("blue"), 25.0)
}

func TestFingerprint(t *testing.T) {
	is := is.New(t)
	a := sampleMatch("D7-D6-1", "D1-D2-1")
	b := sampleMatch("D7-D6-1", "D1-D2-1")
	b.Winner = "blue"
	is.Equal(a.Fingerprint(), b.Fingerprint())

	c := sampleMatch("D1-D2-1", "D7-D6-1")
	is.True(a.Fingerprint() != c.Fingerprint())
}

func TestExportYAML(t *testing.T) {
	is := is.New(t)
	rec := sampleMatch("D7-D6-1", "D1-D2-1")
	rec.ID = uuid.MustParse("6ba7b810-9dad-11d1-80b4-00c04fd430c8")

	var buf bytes.Buffer
	is.NoErr(ExportYAML(&buf, []*MatchRecord{rec}))
	out := buf.String()
	is.True(strings.Contains(out, "6ba7b810-9dad-11d1-80b4-00c04fd430c8"))
	is.True(strings.Contains(out, "D1-D2-1"))
	is.True(strings.Contains(out, "guard-captured"))

	var back []map[string]any
	is.NoErr(yaml.Unmarshal(buf.Bytes(), &back))
	is.Equal(len(back), 1)
	is.Equal(back[0]["winner"], "red")
}

func TestWinRateEmpty(t *testing.T) {
	is := is.New(t)
	is.Equal((&Tally{}).WinRate("red"), 0.0)
}

func TestDataDirOverride(t *testing.T) {
	is := is.New(t)
	dir := filepath.Join(t.TempDir(), "nested", "data")

	got, err := DataDir(dir)
	is.NoErr(err)
	is.Equal(got, dir)
	_, err = os.Stat(dir)
	is.NoErr(err)

	dbDir, err := DatabaseDir(dir)
	is.NoErr(err)
	is.Equal(dbDir, filepath.Join(dir, "db"))
}

func TestOpenOnDisk(t *testing.T) {
	is := is.New(t)
	dir := t.TempDir()

	s, err := Open(dir)
	is.NoErr(err)
	is.NoErr(s.SaveMatch(sampleMatch("D7-D6-1")))
	is.NoErr(s.Close())

	s, err = Open(dir)
	is.NoErr(err)
	defer s.Close()
	matches, err := s.Matches()
	is.NoErr(err)
	is.Equal(len(matches), 1)
}

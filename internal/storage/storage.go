package storage

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"slices"
	"strings"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/cespare/xxhash/v2"
	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"
)

// Storage keys
const (
	keyPreferences = "preferences"
	keyTally       = "tally"
	prefixMatch    = "match/"
	prefixIndex    = "matchidx/"
)

// Concurrent saves contend on the tally key; badger rejects all but one of them with
// ErrConflict and the rest are retried.
const (
	saveAttempts = 50
	saveDelay    = time.Millisecond
	saveJitter   = 20 * time.Millisecond
)

var (
	ErrDuplicateMatch = errors.New("match already recorded")
	ErrMatchNotFound  = errors.New("match not found")
)

// Preferences stores engine settings chosen by the user.
type Preferences struct {
	Difficulty string        `json:"difficulty" yaml:"difficulty"`
	Strategy   string        `json:"strategy" yaml:"strategy"`
	HashMB     int           `json:"hash_mb" yaml:"hash_mb"`
	MoveTime   time.Duration `json:"move_time" yaml:"move_time"`
	LastPlayed time.Time     `json:"last_played" yaml:"last_played"`
}

// DefaultPreferences returns default preferences.
func DefaultPreferences() *Preferences {
	return &Preferences{
		Difficulty: "medium",
		Strategy:   "pvs",
		HashMB:     64,
		MoveTime:   2 * time.Second,
	}
}

// PlayerInfo describes one side of a recorded match.
type PlayerInfo struct {
	Strategy string        `json:"strategy" yaml:"strategy"`
	Clock    time.Duration `json:"clock" yaml:"clock"`
}

// PlyRecord is one move of a match together with the search that produced it.
type PlyRecord struct {
	Move     string        `json:"move" yaml:"move"`
	Score    int           `json:"score" yaml:"score"`
	Depth    int           `json:"depth" yaml:"depth"`
	Nodes    uint64        `json:"nodes" yaml:"nodes"`
	Time     time.Duration `json:"time" yaml:"time"`
	Fallback bool          `json:"fallback,omitempty" yaml:"fallback,omitempty"`
}

// MatchRecord is a finished (or abandoned) engine game.
type MatchRecord struct {
	ID           uuid.UUID     `json:"id" yaml:"id"`
	Played       time.Time     `json:"played" yaml:"played"`
	StartFEN     string        `json:"start_fen" yaml:"start_fen"`
	OpeningPlies int           `json:"opening_plies" yaml:"opening_plies"`
	Red          PlayerInfo    `json:"red" yaml:"red"`
	Blue         PlayerInfo    `json:"blue" yaml:"blue"`
	Plies        []PlyRecord   `json:"plies" yaml:"plies"`
	Winner       string        `json:"winner" yaml:"winner"` // "red", "blue" or "" for a draw
	Reason       string        `json:"reason" yaml:"reason"`
	Duration     time.Duration `json:"duration" yaml:"duration"`
}

// Moves returns the move strings of the match in order.
func (r *MatchRecord) Moves() []string {
	moves := make([]string, len(r.Plies))
	for i, p := range r.Plies {
		moves[i] = p.Move
	}
	return moves
}

// Fingerprint identifies the game by its start position and move sequence.
func (r *MatchRecord) Fingerprint() uint64 {
	d := xxhash.New()
	d.WriteString(r.StartFEN)
	d.WriteString("|")
	d.WriteString(strings.Join(r.Moves(), " "))
	return d.Sum64()
}

// Tally counts recorded matches.
type Tally struct {
	Games         int           `json:"games"`
	RedWins       int           `json:"red_wins"`
	BlueWins      int           `json:"blue_wins"`
	Draws         int           `json:"draws"`
	TotalPlayTime time.Duration `json:"total_play_time"`
}

// WinRate returns the share of games won by side ("red" or "blue") as a percentage.
func (t *Tally) WinRate(side string) float64 {
	if t.Games == 0 {
		return 0
	}
	wins := t.RedWins
	if side == "blue" {
		wins = t.BlueWins
	}
	return float64(wins) / float64(t.Games) * 100
}

func (t *Tally) add(r *MatchRecord) {
	t.Games++
	t.TotalPlayTime += r.Duration
	switch r.Winner {
	case "red":
		t.RedWins++
	case "blue":
		t.BlueWins++
	default:
		t.Draws++
	}
}

// Store wraps BadgerDB for persistent storage.
type Store struct {
	db *badger.DB
}

// Open opens (or creates) the database under dataDir. An empty dataDir selects the
// platform default.
func Open(dataDir string) (*Store, error) {
	dataDir, err := DataDir(dataDir)
	if err != nil {
		return nil, fmt.Errorf("data dir: %w", err)
	}
	dbDir, err := DatabaseDir(dataDir)
	if err != nil {
		return nil, fmt.Errorf("database dir: %w", err)
	}
	return open(badger.DefaultOptions(dbDir))
}

// OpenInMemory opens a database that lives only as long as the Store.
func OpenInMemory() (*Store, error) {
	return open(badger.DefaultOptions("").WithInMemory(true))
}

func open(opts badger.Options) (*Store, error) {
	opts.Logger = nil // Disable logging

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the database
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// SavePreferences saves user preferences
func (s *Store) SavePreferences(prefs *Preferences) error {
	prefs.LastPlayed = time.Now()

	data, err := json.Marshal(prefs)
	if err != nil {
		return err
	}

	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(keyPreferences), data)
	})
}

// LoadPreferences loads user preferences, returns defaults if not found
func (s *Store) LoadPreferences() (*Preferences, error) {
	prefs := DefaultPreferences()
	err := s.db.View(func(txn *badger.Txn) error {
		return getJSON(txn, []byte(keyPreferences), prefs)
	})
	return prefs, err
}

// LoadTally loads the match counters, returns zero counters if not found
func (s *Store) LoadTally() (*Tally, error) {
	tally := &Tally{}
	err := s.db.View(func(txn *badger.Txn) error {
		return getJSON(txn, []byte(keyTally), tally)
	})
	return tally, err
}

// SaveMatch stores rec and updates the tally in one transaction. A missing ID or
// timestamp is filled in. A game with the same start position and moves as a stored
// one is rejected with ErrDuplicateMatch. SaveMatch is safe for concurrent use.
func (s *Store) SaveMatch(rec *MatchRecord) error {
	if rec.ID == uuid.Nil {
		rec.ID = uuid.New()
	}
	if rec.Played.IsZero() {
		rec.Played = time.Now()
	}

	data, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	idxKey := indexKey(rec.Fingerprint())

	update := func(txn *badger.Txn) error {
		_, err := txn.Get(idxKey)
		if err == nil {
			return ErrDuplicateMatch
		}
		if !errors.Is(err, badger.ErrKeyNotFound) {
			return err
		}

		tally := &Tally{}
		if err := getJSON(txn, []byte(keyTally), tally); err != nil {
			return err
		}
		tally.add(rec)
		tallyData, err := json.Marshal(tally)
		if err != nil {
			return err
		}

		if err := txn.Set(matchKey(rec.ID), data); err != nil {
			return err
		}
		if err := txn.Set(idxKey, rec.ID[:]); err != nil {
			return err
		}
		return txn.Set([]byte(keyTally), tallyData)
	}

	err = retry.Do(
		func() error { return s.db.Update(update) },
		retry.Attempts(saveAttempts),
		retry.Delay(saveDelay),
		retry.MaxJitter(saveJitter),
		retry.DelayType(retry.CombineDelay(retry.FixedDelay, retry.RandomDelay)),
		retry.RetryIf(func(err error) bool { return errors.Is(err, badger.ErrConflict) }),
		retry.OnRetry(func(n uint, err error) {
			log.Debug().Uint("attempt", n+1).Str("id", rec.ID.String()).Msg("match-save-conflict")
		}),
		retry.LastErrorOnly(true),
	)
	if err != nil {
		return err
	}

	log.Debug().Str("id", rec.ID.String()).Int("plies", len(rec.Plies)).Str("winner", rec.Winner).Msg("match-saved")
	return nil
}

// Match loads a single match by ID.
func (s *Store) Match(id uuid.UUID) (*MatchRecord, error) {
	rec := &MatchRecord{}
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(matchKey(id))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return fmt.Errorf("%s: %w", id, ErrMatchNotFound)
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, rec)
		})
	})
	if err != nil {
		return nil, err
	}
	return rec, nil
}

// Matches returns all stored matches, oldest first.
func (s *Store) Matches() ([]*MatchRecord, error) {
	var out []*MatchRecord
	err := s.db.View(func(txn *badger.Txn) error {
		prefix := []byte(prefixMatch)
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			rec := &MatchRecord{}
			err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, rec)
			})
			if err != nil {
				return err
			}
			out = append(out, rec)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	slices.SortStableFunc(out, func(a, b *MatchRecord) int {
		return a.Played.Compare(b.Played)
	})
	return out, nil
}

// ExportYAML writes records as a YAML sequence.
func ExportYAML(w io.Writer, records []*MatchRecord) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(records); err != nil {
		return fmt.Errorf("encode matches: %w", err)
	}
	return enc.Close()
}

func getJSON(txn *badger.Txn, key []byte, v any) error {
	item, err := txn.Get(key)
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil // keep defaults
	}
	if err != nil {
		return err
	}
	return item.Value(func(val []byte) error {
		return json.Unmarshal(val, v)
	})
}

func matchKey(id uuid.UUID) []byte {
	return append([]byte(prefixMatch), id[:]...)
}

func indexKey(fp uint64) []byte {
	return binary.BigEndian.AppendUint64([]byte(prefixIndex), fp)
}

package engine

import (
	"math"
	"sync"
	"sync/atomic"

	"github.com/hailam/guardtowers/internal/board"
	"github.com/pbnjay/memory"
	"github.com/rs/zerolog/log"
)

// TTFlag indicates the type of bound stored in the transposition table.
type TTFlag uint8

const (
	TTExact      TTFlag = iota // Exact score
	TTLowerBound               // Failed high (beta cutoff)
	TTUpperBound               // Failed low
)

func (f TTFlag) String() string {
	switch f {
	case TTExact:
		return "exact"
	case TTLowerBound:
		return "lower"
	case TTUpperBound:
		return "upper"
	}
	return "unknown"
}

// Number of shards for TT locking (power of 2 for fast modulo)
const ttShardCount = 256
const ttShardMask = ttShardCount - 1

const ttEntrySize = 16

// Smallest table we allocate, in entries.
const minTTEntries = 1 << 10

// TTEntry represents an entry in the transposition table.
type TTEntry struct {
	Key      uint64     // Full 64-bit Zobrist hash for verification
	BestMove board.Move // Best move found
	Score    int16      // Score (bounded by flag)
	Depth    int8       // Search depth, 0 marks an empty slot
	Flag     TTFlag     // Type of bound
	Age      uint8      // Generation for replacement
}

// TranspositionTable is a fixed-size hash table for storing search results.
// Locking is sharded so a probe never sees a half-written entry.
type TranspositionTable struct {
	entries   []TTEntry
	shards    [ttShardCount]sync.RWMutex
	size      uint64
	mask      uint64
	age       atomic.Uint32
	used      atomic.Uint64
	highWater float64

	hits   atomic.Uint64
	probes atomic.Uint64
}

// NewTranspositionTable creates a transposition table with the given size in MB.
func NewTranspositionTable(sizeMB int) *TranspositionTable {
	numEntries := (uint64(sizeMB) * 1024 * 1024) / ttEntrySize
	return newTableWithEntries(numEntries)
}

// NewTranspositionTableFromMemory sizes the table as a fraction of system memory.
func NewTranspositionTableFromMemory(fraction float64) *TranspositionTable {
	totalMem := memory.TotalMemory()
	desired := fraction * float64(totalMem) / ttEntrySize
	if desired < minTTEntries {
		desired = minTTEntries
	}
	log.Debug().Uint64("total-mem", totalMem).Float64("fraction", fraction).
		Int("size-pow2", int(math.Log2(desired))).Msg("tt-sizing")
	return newTableWithEntries(uint64(desired))
}

func newTableWithEntries(numEntries uint64) *TranspositionTable {
	// Round down to power of 2 for fast modulo
	numEntries = roundDownToPowerOf2(numEntries)
	if numEntries < minTTEntries {
		numEntries = minTTEntries
	}
	return &TranspositionTable{
		entries:   make([]TTEntry, numEntries),
		size:      numEntries,
		mask:      numEntries - 1,
		highWater: 1,
	}
}

// roundDownToPowerOf2 rounds n down to the nearest power of 2.
func roundDownToPowerOf2(n uint64) uint64 {
	n |= n >> 1
	n |= n >> 2
	n |= n >> 4
	n |= n >> 8
	n |= n >> 16
	n |= n >> 32
	return (n + 1) >> 1
}

// SetHighWater sets the occupancy ratio at which NewSearch clears the table.
// A ratio of 1 or more disables the automatic clear.
func (tt *TranspositionTable) SetHighWater(ratio float64) {
	if ratio <= 0 {
		ratio = 1
	}
	tt.highWater = ratio
}

func (tt *TranspositionTable) shardIndex(idx uint64) int {
	return int(idx & ttShardMask)
}

// Probe looks up a position in the transposition table.
// Returns a copy of the entry and true if found.
func (tt *TranspositionTable) Probe(hash uint64) (TTEntry, bool) {
	tt.probes.Add(1)

	idx := hash & tt.mask
	shard := tt.shardIndex(idx)

	tt.shards[shard].RLock()
	entry := tt.entries[idx]
	tt.shards[shard].RUnlock()

	if entry.Key == hash && entry.Depth > 0 {
		tt.hits.Add(1)
		return entry, true
	}

	return TTEntry{}, false
}

// Store saves a search result. Results with depth below 1 are not stored.
//
// An entry is replaced when it belongs to an older search, or when the new result is
// at least as deep.
func (tt *TranspositionTable) Store(hash uint64, depth int, score int, flag TTFlag, bestMove board.Move) {
	if depth < 1 {
		return
	}
	if depth > math.MaxInt8 {
		depth = math.MaxInt8
	}

	idx := hash & tt.mask
	shard := tt.shardIndex(idx)

	tt.shards[shard].Lock()
	entry := &tt.entries[idx]

	currentAge := uint8(tt.age.Load())
	if entry.Depth == 0 {
		tt.used.Add(1)
	}
	if entry.Depth == 0 || entry.Age != currentAge || depth >= int(entry.Depth) {
		entry.Key = hash
		entry.BestMove = bestMove
		entry.Score = int16(score)
		entry.Depth = int8(depth)
		entry.Flag = flag
		entry.Age = currentAge
	}
	tt.shards[shard].Unlock()
}

// NewSearch starts a new generation. When occupancy has crossed the high-water mark
// the table is cleared first.
func (tt *TranspositionTable) NewSearch() {
	if tt.Occupancy() >= tt.highWater {
		log.Debug().Uint64("used", tt.used.Load()).Uint64("size", tt.size).Msg("tt-high-water-clear")
		tt.Clear()
	}
	tt.age.Add(1)
}

// Clear empties the table.
func (tt *TranspositionTable) Clear() {
	for s := range tt.shards {
		tt.shards[s].Lock()
	}
	clear(tt.entries)
	for s := range tt.shards {
		tt.shards[s].Unlock()
	}
	tt.used.Store(0)
	tt.age.Store(0)
	tt.hits.Store(0)
	tt.probes.Store(0)
}

// ApproximateSize returns the number of occupied entries.
func (tt *TranspositionTable) ApproximateSize() int {
	return int(tt.used.Load())
}

// Occupancy returns the fraction of slots in use.
func (tt *TranspositionTable) Occupancy() float64 {
	return float64(tt.used.Load()) / float64(tt.size)
}

// HashFull returns the permille (parts per thousand) of the table that is used.
func (tt *TranspositionTable) HashFull() int {
	return int(tt.used.Load() * 1000 / tt.size)
}

// HitRate returns the cache hit rate as a percentage.
func (tt *TranspositionTable) HitRate() float64 {
	probes := tt.probes.Load()
	if probes == 0 {
		return 0
	}
	return float64(tt.hits.Load()) / float64(probes) * 100
}

// Size returns the number of entries in the table.
func (tt *TranspositionTable) Size() uint64 {
	return tt.size
}

package engine

import "time"

// Config holds the search tunables. The zero value is not useful; start from
// DefaultConfig and override fields.
type Config struct {
	// Transposition table size in MB. Ignored when HashMemoryFraction is set.
	HashMB int
	// Fraction of system memory given to the transposition table (0 disables).
	HashMemoryFraction float64
	// Occupancy ratio at which the table is cleared before the next search.
	HashHighWater float64

	// Upper bound for the iterative deepening loop.
	MaxDepth int

	UseTranspositionTable bool
	UseQuiescence         bool
	UseKillers            bool

	// Quiescence stops extending after this many plies.
	QuiescenceMaxPly int

	AspirationMinDepth    int
	AspirationDelta       int
	AspirationGrowth      int
	AspirationMaxFailures int

	// Another iteration is started only if its estimated cost fits into
	// the remaining time multiplied by SafetyMargin.
	SafetyMargin float64
	// Estimated growth of the iteration time per extra ply, for depths
	// below 4, below 8 and the rest.
	BranchingFactors [3]float64

	// Node interval between deadline checks.
	PollInterval uint64

	Time TimeConfig
}

// DefaultConfig returns the tuned defaults.
func DefaultConfig() Config {
	return Config{
		HashMB:                64,
		HashHighWater:         0.90,
		MaxDepth:              64,
		UseTranspositionTable: true,
		UseQuiescence:         true,
		UseKillers:            true,
		QuiescenceMaxPly:      24,
		AspirationMinDepth:    3,
		AspirationDelta:       50,
		AspirationGrowth:      4,
		AspirationMaxFailures: 3,
		SafetyMargin:          0.7,
		BranchingFactors:      [3]float64{3.5, 2.5, 2.0},
		PollInterval:          256,
		Time:                  DefaultTimeConfig(),
	}
}

// branchingFactor returns the expected time growth of the next iteration after depth.
func (c *Config) branchingFactor(depth int) float64 {
	switch {
	case depth < 4:
		return c.BranchingFactors[0]
	case depth < 8:
		return c.BranchingFactors[1]
	default:
		return c.BranchingFactors[2]
	}
}

// TimeConfig holds the time allocation policy constants.
type TimeConfig struct {
	// Panic tiers, checked in order. The first tier whose Below exceeds the remaining
	// time decides the allocation.
	PanicTiers []PanicTier

	// Moves-left estimates never drop below this.
	MinMovesLeft int

	OpeningMultiplier    float64
	MiddlegameMultiplier float64
	EndgameMultiplier    float64
	// Applied when both sides together have at most LowMaterial tower pieces.
	LowMaterial           int
	LowMaterialMultiplier float64
	// Cap for the combined baseline multiplier.
	MaxMultiplier float64

	// Phase boundaries: opening until OpeningPlies while total material is at least
	// OpeningMaterial, endgame once total material drops to EndgameMaterial.
	OpeningPlies    int
	OpeningMaterial int
	EndgameMaterial int

	// Criticality detection.
	ImbalanceThreshold  int
	ComplexityThreshold int
	TacticalWeight      int
	CriticalFraction    float64

	// Bounds.
	MinTime         time.Duration
	MinFraction     float64
	MaxFractionHigh float64 // remaining above HighTime
	MaxFractionMid  float64 // remaining above MidTime
	MaxFractionLow  float64
	HighTime        time.Duration
	MidTime         time.Duration
}

// PanicTier allocates Fraction of the remaining time, at least Floor, when less than
// Below is left on the clock.
type PanicTier struct {
	Below    time.Duration
	Fraction float64
	Floor    time.Duration
}

// DefaultTimeConfig returns the default time policy.
func DefaultTimeConfig() TimeConfig {
	return TimeConfig{
		PanicTiers: []PanicTier{
			{Below: time.Second, Fraction: 0.20, Floor: 20 * time.Millisecond},
			{Below: 3 * time.Second, Fraction: 0.30, Floor: 100 * time.Millisecond},
			{Below: 5 * time.Second, Fraction: 0.40, Floor: 250 * time.Millisecond},
		},
		MinMovesLeft:          10,
		OpeningMultiplier:     1.0,
		MiddlegameMultiplier:  1.5,
		EndgameMultiplier:     2.0,
		LowMaterial:           4,
		LowMaterialMultiplier: 1.25,
		MaxMultiplier:         2.5,
		OpeningPlies:          10,
		OpeningMaterial:       12,
		EndgameMaterial:       6,
		ImbalanceThreshold:    3,
		ComplexityThreshold:   40,
		TacticalWeight:        3,
		CriticalFraction:      0.4,
		MinTime:               10 * time.Millisecond,
		MinFraction:           0.01,
		MaxFractionHigh:       0.5,
		MaxFractionMid:        0.3,
		MaxFractionLow:        0.2,
		HighTime:              60 * time.Second,
		MidTime:               10 * time.Second,
	}
}

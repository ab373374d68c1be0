package engine

import (
	"sync/atomic"
	"time"
)

// SearchStats is a snapshot of the counters of the current or last search.
type SearchStats struct {
	Nodes      uint64
	QNodes     uint64
	Cutoffs    uint64
	TTProbes   uint64
	TTHits     uint64
	Researches uint64 // aspiration window re-searches
	Depth      int    // deepest completed iteration
	Elapsed    time.Duration
}

// TotalNodes returns main search plus quiescence nodes.
func (s SearchStats) TotalNodes() uint64 {
	return s.Nodes + s.QNodes
}

// NPS returns nodes per second.
func (s SearchStats) NPS() uint64 {
	if s.Elapsed <= 0 {
		return 0
	}
	return uint64(float64(s.TotalNodes()) / s.Elapsed.Seconds())
}

// searchCounters are updated by the search thread and may be read from another
// goroutine while the search runs.
type searchCounters struct {
	nodes      atomic.Uint64
	qnodes     atomic.Uint64
	cutoffs    atomic.Uint64
	ttProbes   atomic.Uint64
	ttHits     atomic.Uint64
	researches atomic.Uint64
	depth      atomic.Int32
	start      atomic.Int64 // unix nanos
	elapsed    atomic.Int64 // set when the search finishes
}

func (c *searchCounters) reset(start time.Time) {
	c.nodes.Store(0)
	c.qnodes.Store(0)
	c.cutoffs.Store(0)
	c.ttProbes.Store(0)
	c.ttHits.Store(0)
	c.researches.Store(0)
	c.depth.Store(0)
	c.elapsed.Store(0)
	c.start.Store(start.UnixNano())
}

func (c *searchCounters) finish() {
	c.elapsed.Store(int64(c.sinceStart()))
}

func (c *searchCounters) sinceStart() time.Duration {
	start := c.start.Load()
	if start == 0 {
		return 0
	}
	return time.Since(time.Unix(0, start))
}

func (c *searchCounters) snapshot() SearchStats {
	elapsed := time.Duration(c.elapsed.Load())
	if elapsed == 0 {
		elapsed = c.sinceStart()
	}
	return SearchStats{
		Nodes:      c.nodes.Load(),
		QNodes:     c.qnodes.Load(),
		Cutoffs:    c.cutoffs.Load(),
		TTProbes:   c.ttProbes.Load(),
		TTHits:     c.ttHits.Load(),
		Researches: c.researches.Load(),
		Depth:      int(c.depth.Load()),
		Elapsed:    elapsed,
	}
}

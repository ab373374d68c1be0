package selfplay

import (
	"fmt"
	"io"
	"slices"
	"time"

	"github.com/samber/lo"
	"gonum.org/v1/gonum/stat"

	"github.com/hailam/guardtowers/internal/storage"
)

// Summary aggregates a batch of matches.
type Summary struct {
	Games    int
	RedWins  int
	BlueWins int
	Draws    int
	// Wins by strategy name.
	Wins map[string]int

	MeanPlies float64

	// Over searched moves only; random opening moves are excluded.
	SearchedMoves int
	MeanDepth     float64
	MeanNodes     float64
	StdDevNodes   float64
	MeanMoveTime  time.Duration
	StdDevTime    time.Duration
	Fallbacks     int
}

// Summarize computes the statistics of records.
func Summarize(records []*storage.MatchRecord) Summary {
	s := Summary{Games: len(records), Wins: map[string]int{}}
	if len(records) == 0 {
		return s
	}

	for _, rec := range records {
		switch rec.Winner {
		case "red":
			s.RedWins++
			s.Wins[rec.Red.Strategy]++
		case "blue":
			s.BlueWins++
			s.Wins[rec.Blue.Strategy]++
		default:
			s.Draws++
		}
	}
	s.MeanPlies = stat.Mean(lo.Map(records, func(r *storage.MatchRecord, _ int) float64 {
		return float64(len(r.Plies))
	}), nil)

	searched := lo.FlatMap(records, func(r *storage.MatchRecord, _ int) []storage.PlyRecord {
		return r.Plies[min(r.OpeningPlies, len(r.Plies)):]
	})
	s.SearchedMoves = len(searched)
	s.Fallbacks = lo.CountBy(searched, func(p storage.PlyRecord) bool { return p.Fallback })
	if len(searched) == 0 {
		return s
	}

	s.MeanDepth = stat.Mean(lo.Map(searched, func(p storage.PlyRecord, _ int) float64 {
		return float64(p.Depth)
	}), nil)
	s.MeanNodes, s.StdDevNodes = meanStdDev(lo.Map(searched, func(p storage.PlyRecord, _ int) float64 {
		return float64(p.Nodes)
	}))
	meanTime, stdTime := meanStdDev(lo.Map(searched, func(p storage.PlyRecord, _ int) float64 {
		return float64(p.Time)
	}))
	s.MeanMoveTime, s.StdDevTime = time.Duration(meanTime), time.Duration(stdTime)
	return s
}

// meanStdDev is stat.MeanStdDev with a zero deviation for a single sample.
func meanStdDev(x []float64) (mean, std float64) {
	if len(x) < 2 {
		return stat.Mean(x, nil), 0
	}
	return stat.MeanStdDev(x, nil)
}

// Write prints the summary as a short report.
func (s Summary) Write(w io.Writer) {
	fmt.Fprintf(w, "games %d  red %d  blue %d  draws %d\n", s.Games, s.RedWins, s.BlueWins, s.Draws)
	names := lo.Keys(s.Wins)
	slices.Sort(names)
	for _, name := range names {
		fmt.Fprintf(w, "  %-4s wins %d\n", name, s.Wins[name])
	}
	fmt.Fprintf(w, "mean plies %.1f  searched moves %d  fallbacks %d\n", s.MeanPlies, s.SearchedMoves, s.Fallbacks)
	fmt.Fprintf(w, "depth %.2f  nodes %.0f ± %.0f  time %v ± %v\n",
		s.MeanDepth, s.MeanNodes, s.StdDevNodes, s.MeanMoveTime.Round(time.Microsecond), s.StdDevTime.Round(time.Microsecond))
}

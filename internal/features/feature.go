// Package features measures entities against channel images and emits the
// results as tables.
package features

import (
	"fmt"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Statistic is a deterministic per-entity measure over the channel
// intensities under the entity mask. Values are never empty.
type Statistic struct {
	Name string
	Fn   func(values []float64) float64
}

var (
	Mean   = Statistic{Name: "mean", Fn: func(v []float64) float64 { return stat.Mean(v, nil) }}
	Median = Statistic{Name: "median", Fn: median}
	Std    = Statistic{Name: "std", Fn: func(v []float64) float64 { return stat.PopStdDev(v, nil) }}
	Min    = Statistic{Name: "min", Fn: floats.Min}
	Max    = Statistic{Name: "max", Fn: floats.Max}
	Sum    = Statistic{Name: "sum", Fn: floats.Sum}
	Area   = Statistic{Name: "area", Fn: func(v []float64) float64 { return float64(len(v)) }}
)

// DefaultStatistics are computed when an Extractor names none.
var DefaultStatistics = []Statistic{Mean, Median}

var statistics = map[string]Statistic{
	Mean.Name:   Mean,
	Median.Name: Median,
	Std.Name:    Std,
	Min.Name:    Min,
	Max.Name:    Max,
	Sum.Name:    Sum,
	Area.Name:   Area,
}

// StatisticByName looks up a built-in statistic.
func StatisticByName(name string) (Statistic, error) {
	s, ok := statistics[name]
	if !ok {
		return Statistic{}, fmt.Errorf("unknown statistic %q (have %v)", name, StatisticNames())
	}
	return s, nil
}

// StatisticsByName resolves a list of names in order.
func StatisticsByName(names []string) ([]Statistic, error) {
	out := make([]Statistic, 0, len(names))
	for _, n := range names {
		s, err := StatisticByName(n)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, nil
}

// StatisticNames returns the built-in statistic names, sorted.
func StatisticNames() []string {
	names := make([]string, 0, len(statistics))
	for n := range statistics {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// median averages the two middle values of an even-length sample.
func median(v []float64) float64 {
	s := make([]float64, len(v))
	copy(s, v)
	sort.Float64s(s)
	n := len(s)
	if n%2 == 1 {
		return s[n/2]
	}
	return (s[n/2-1] + s[n/2]) / 2
}

package ml

import (
	"math"

	"gonum.org/v1/gonum/stat"
)

// normEpsilon floors the standard deviation used in scoring so a degenerate
// feature can never divide by zero.
const normEpsilon = 1e-6

// normClip bounds normalized values to [-normClip, +normClip]. Clipping
// bounds the influence of extreme telemetry on reconstruction error and
// keeps the model input distribution bounded regardless of anomaly severity.
const normClip = 5.0

// FeatureStats holds the normalization statistics for one feature.
type FeatureStats struct {
	Mean float64 `json:"mean"`
	Std  float64 `json:"std"`
	Min  float64 `json:"min"`
	Max  float64 `json:"max"`
}

// defaultStats are the built-in per-feature statistics, indexed by schema
// position. They describe the synthetic "normal traffic" distribution and
// back every feature for which no external override is supplied.
var defaultStats = [FeatureCount]FeatureStats{
	// flow
	{Mean: 120, Std: 45, Min: 0, Max: 480},
	{Mean: 95000, Std: 32000, Min: 0, Max: 351000},
	{Mean: 70, Std: 28, Min: 0, Max: 294},
	{Mean: 55, Std: 22, Min: 0, Max: 231},
	{Mean: 58000, Std: 21000, Min: 0, Max: 226000},
	{Mean: 41000, Std: 16500, Min: 0, Max: 173000},
	{Mean: 45, Std: 18, Min: 0, Max: 189},
	{Mean: 0.008, Std: 0.004, Min: 0, Max: 0.04},
	{Mean: 0.003, Std: 0.0015, Min: 0, Max: 0.015},
	{Mean: 1.3, Std: 0.4, Min: 0, Max: 4.5},
	// protocol
	{Mean: 0.72, Std: 0.12, Min: 0, Max: 1},
	{Mean: 0.22, Std: 0.10, Min: 0, Max: 1},
	{Mean: 0.02, Std: 0.015, Min: 0, Max: 1},
	{Mean: 18, Std: 8, Min: 0, Max: 82},
	{Mean: 95, Std: 35, Min: 0, Max: 375},
	{Mean: 2, Std: 1.5, Min: 0, Max: 14},
	{Mean: 14, Std: 6, Min: 0, Max: 62},
	{Mean: 1.8, Std: 0.4, Min: 0, Max: 5},
	// payload
	{Mean: 4.2, Std: 0.9, Min: 0, Max: 8},
	{Mean: 480, Std: 160, Min: 0, Max: 1460},
	{Mean: 210, Std: 80, Min: 0, Max: 850},
	{Mean: 40, Std: 18, Min: 0, Max: 184},
	{Mean: 1380, Std: 120, Min: 0, Max: 1500},
	{Mean: 52000, Std: 19000, Min: 0, Max: 204000},
	{Mean: 64000, Std: 23000, Min: 0, Max: 248000},
	{Mean: 0.62, Std: 0.14, Min: 0, Max: 1},
	// connection
	{Mean: 14, Std: 6, Min: 0, Max: 62},
	{Mean: 9, Std: 4, Min: 0, Max: 41},
	{Mean: 11, Std: 5, Min: 0, Max: 51},
	{Mean: 32, Std: 14, Min: 0, Max: 144},
	{Mean: 11, Std: 5, Min: 0, Max: 51},
	{Mean: 1.5, Std: 1.2, Min: 0, Max: 11},
	{Mean: 22, Std: 9, Min: 0, Max: 94},
	{Mean: 6, Std: 2.5, Min: 0, Max: 26},
	// temporal
	{Mean: 0.5, Std: 0.28, Min: 0, Max: 1},
	{Mean: 0.5, Std: 0.30, Min: 0, Max: 1},
	{Mean: 0.28, Std: 0.45, Min: 0, Max: 1},
	{Mean: 0.35, Std: 0.15, Min: 0, Max: 1},
	{Mean: 0.20, Std: 0.12, Min: 0, Max: 1},
	{Mean: 2.4, Std: 1.1, Min: 0, Max: 11},
	// behavioral
	{Mean: 0.04, Std: 0.03, Min: 0, Max: 1},
	{Mean: 3.5, Std: 1.6, Min: 0, Max: 16},
	{Mean: 0.96, Std: 0.05, Min: 0, Max: 1},
	{Mean: 8, Std: 4, Min: 0, Max: 40},
	{Mean: 0.30, Std: 0.12, Min: 0, Max: 1},
	{Mean: 0.22, Std: 0.10, Min: 0, Max: 1},
}

// StatsStore resolves per-feature normalization statistics. Built-in
// defaults back every feature; an externally supplied document overrides
// only the features it covers. The store is immutable after construction,
// so reads need no locking.
type StatsStore struct {
	stats [FeatureCount]FeatureStats
}

// NewStatsStore returns a store holding only the built-in defaults.
func NewStatsStore() *StatsStore {
	return &StatsStore{stats: defaultStats}
}

// NewStatsStoreWithOverrides merges an external statistics map over the
// defaults. Entries with unknown names or a non-positive std are skipped;
// a missing entry silently falls back to the built-in default.
func NewStatsStoreWithOverrides(overrides map[string]FeatureStats) *StatsStore {
	s := NewStatsStore()
	for name, fs := range overrides {
		i, ok := featureIndex[name]
		if !ok {
			continue
		}
		if math.IsNaN(fs.Mean) || fs.Std <= 0 || math.IsNaN(fs.Std) {
			continue
		}
		s.stats[i] = fs
	}
	return s
}

// FitFromSamples derives a store from a training corpus. Features whose
// sample std collapses keep the default std so scoring never degenerates.
func FitFromSamples(samples []FeatureVector) *StatsStore {
	if len(samples) == 0 {
		return NewStatsStore()
	}
	s := NewStatsStore()
	col := make([]float64, len(samples))
	for i := 0; i < FeatureCount; i++ {
		for j, v := range samples {
			col[j] = v[i]
		}
		mean, std := stat.MeanStdDev(col, nil)
		fs := FeatureStats{
			Mean: mean,
			Std:  std,
			Min:  col[argMin(col)],
			Max:  col[argMax(col)],
		}
		if fs.Std <= normEpsilon || math.IsNaN(fs.Std) {
			fs.Std = defaultStats[i].Std
		}
		s.stats[i] = fs
	}
	return s
}

// RunningStats accumulates per-feature statistics incrementally with
// Welford's algorithm, so a baseline can adapt to live telemetry without
// retaining the corpus.
type RunningStats struct {
	n    int
	mean [FeatureCount]float64
	m2   [FeatureCount]float64
	min  [FeatureCount]float64
	max  [FeatureCount]float64
}

// NewRunningStats returns an empty accumulator.
func NewRunningStats() *RunningStats {
	return &RunningStats{}
}

// Add folds one sample into the accumulator.
func (r *RunningStats) Add(v FeatureVector) {
	r.n++
	for i := 0; i < FeatureCount; i++ {
		x := v[i]
		if r.n == 1 {
			r.min[i], r.max[i] = x, x
		} else {
			if x < r.min[i] {
				r.min[i] = x
			}
			if x > r.max[i] {
				r.max[i] = x
			}
		}
		delta := x - r.mean[i]
		r.mean[i] += delta / float64(r.n)
		r.m2[i] += delta * (x - r.mean[i])
	}
}

// Count returns the number of accumulated samples.
func (r *RunningStats) Count() int { return r.n }

// Snapshot materializes the accumulated statistics as a store. Features
// whose accumulated std collapses keep the default std, matching
// FitFromSamples; with fewer than two samples the defaults are returned
// unchanged.
func (r *RunningStats) Snapshot() *StatsStore {
	s := NewStatsStore()
	if r.n < 2 {
		return s
	}
	for i := 0; i < FeatureCount; i++ {
		fs := FeatureStats{
			Mean: r.mean[i],
			Std:  math.Sqrt(r.m2[i] / float64(r.n-1)),
			Min:  r.min[i],
			Max:  r.max[i],
		}
		if fs.Std <= normEpsilon || math.IsNaN(fs.Std) {
			fs.Std = defaultStats[i].Std
		}
		s.stats[i] = fs
	}
	return s
}

// StatsFor returns the (mean, std) in effect for a feature index. The std
// is floored at normEpsilon.
func (s *StatsStore) StatsFor(i int) (mean, std float64) {
	fs := s.stats[i]
	return fs.Mean, math.Max(fs.Std, normEpsilon)
}

// Stats returns the full record for a feature index.
func (s *StatsStore) Stats(i int) FeatureStats {
	return s.stats[i]
}

// Normalize z-scores every feature and clips the result to
// [-normClip, +normClip].
func (s *StatsStore) Normalize(v FeatureVector) [FeatureCount]float64 {
	var out [FeatureCount]float64
	for i := 0; i < FeatureCount; i++ {
		mean, std := s.StatsFor(i)
		out[i] = clamp((v[i]-mean)/std, -normClip, normClip)
	}
	return out
}

// ZScores returns the unclipped absolute z-score of every feature. Used by
// the statistical fallback, which deliberately does not clip: extreme
// telemetry should produce an extreme score there.
func (s *StatsStore) ZScores(v FeatureVector) [FeatureCount]float64 {
	var out [FeatureCount]float64
	for i := 0; i < FeatureCount; i++ {
		mean, std := s.StatsFor(i)
		out[i] = math.Abs(v[i]-mean) / std
	}
	return out
}

func argMin(xs []float64) int {
	best := 0
	for i, x := range xs {
		if x < xs[best] {
			best = i
		}
	}
	return best
}

func argMax(xs []float64) int {
	best := 0
	for i, x := range xs {
		if x > xs[best] {
			best = i
		}
	}
	return best
}

package ml

import (
	"math"
	"testing"
)

func TestNormalize_MeansToZero(t *testing.T) {
	s := NewStatsStore()
	normalized := s.Normalize(meanVector())
	for i, z := range normalized {
		if z != 0 {
			t.Errorf("feature %q at its mean normalized to %f, want 0", FeatureNames[i], z)
		}
	}
}

func TestNormalize_Clips(t *testing.T) {
	s := NewStatsStore()

	v := meanVector()
	v[idxPacketRate] = 1e9
	v[idxByteRate] = -1e9

	normalized := s.Normalize(v)
	if normalized[idxPacketRate] != normClip {
		t.Errorf("extreme high value normalized to %f, want %f", normalized[idxPacketRate], normClip)
	}
	if normalized[idxByteRate] != -normClip {
		t.Errorf("extreme low value normalized to %f, want %f", normalized[idxByteRate], -normClip)
	}
}

func TestZScores_Unclipped(t *testing.T) {
	s := NewStatsStore()

	v := meanVector()
	v[idxPacketRate] = 1e6

	z := s.ZScores(v)
	if z[idxPacketRate] <= normClip {
		t.Errorf("fallback z-score must not clip, got %f", z[idxPacketRate])
	}
	for i, x := range z {
		if x < 0 {
			t.Errorf("z-score for %q is negative: %f", FeatureNames[i], x)
		}
	}
}

func TestStatsFor_FloorsStd(t *testing.T) {
	overrides := map[string]FeatureStats{
		"packet_rate": {Mean: 100, Std: 0},
	}
	// A zero std is rejected at merge time, so the default survives.
	s := NewStatsStoreWithOverrides(overrides)
	_, std := s.StatsFor(idxPacketRate)
	if std != defaultStats[idxPacketRate].Std {
		t.Errorf("zero-std override should be skipped, got std %f", std)
	}
}

func TestNewStatsStoreWithOverrides(t *testing.T) {
	overrides := map[string]FeatureStats{
		"packet_rate":     {Mean: 500, Std: 90, Min: 0, Max: 2000},
		"bogus_feature":   {Mean: 1, Std: 1},
		"dns_query_rate":  {Mean: 10, Std: math.NaN()},
		"payload_entropy": {Mean: math.NaN(), Std: 1},
	}
	s := NewStatsStoreWithOverrides(overrides)

	if got := s.Stats(idxPacketRate); got.Mean != 500 || got.Std != 90 {
		t.Errorf("override not applied: %+v", got)
	}
	if got := s.Stats(idxDNSQueryRate); got != defaultStats[idxDNSQueryRate] {
		t.Errorf("NaN-std override should be skipped, got %+v", got)
	}
	if got := s.Stats(idxPayloadEntropy); got != defaultStats[idxPayloadEntropy] {
		t.Errorf("NaN-mean override should be skipped, got %+v", got)
	}
}

func TestFitFromSamples(t *testing.T) {
	samples := make([]FeatureVector, 100)
	for i := range samples {
		samples[i] = meanVector()
		// Alternate packet_rate between 100 and 200: mean 150.
		if i%2 == 0 {
			samples[i][idxPacketRate] = 100
		} else {
			samples[i][idxPacketRate] = 200
		}
	}

	s := FitFromSamples(samples)

	fs := s.Stats(idxPacketRate)
	if math.Abs(fs.Mean-150) > 1e-9 {
		t.Errorf("fitted mean = %f, want 150", fs.Mean)
	}
	if fs.Min != 100 || fs.Max != 200 {
		t.Errorf("fitted min/max = %f/%f, want 100/200", fs.Min, fs.Max)
	}

	// Constant columns collapse to zero std and must keep the default.
	fs = s.Stats(idxDNSQueryRate)
	if fs.Std != defaultStats[idxDNSQueryRate].Std {
		t.Errorf("degenerate column std = %f, want default %f", fs.Std, defaultStats[idxDNSQueryRate].Std)
	}
}

func TestRunningStats(t *testing.T) {
	r := NewRunningStats()

	samples := make([]FeatureVector, 100)
	for i := range samples {
		samples[i] = meanVector()
		if i%2 == 0 {
			samples[i][idxPacketRate] = 100
		} else {
			samples[i][idxPacketRate] = 200
		}
		r.Add(samples[i])
	}

	if r.Count() != 100 {
		t.Fatalf("count = %d, want 100", r.Count())
	}

	// Incremental accumulation must agree with the batch fit.
	got := r.Snapshot().Stats(idxPacketRate)
	want := FitFromSamples(samples).Stats(idxPacketRate)
	if math.Abs(got.Mean-want.Mean) > 1e-9 || math.Abs(got.Std-want.Std) > 1e-9 {
		t.Errorf("running stats %+v disagree with batch fit %+v", got, want)
	}
	if got.Min != 100 || got.Max != 200 {
		t.Errorf("min/max = %f/%f, want 100/200", got.Min, got.Max)
	}

	// Degenerate columns keep the default std.
	if std := r.Snapshot().Stats(idxDNSQueryRate).Std; std != defaultStats[idxDNSQueryRate].Std {
		t.Errorf("degenerate column std = %f, want default", std)
	}
}

func TestRunningStats_TooFewSamples(t *testing.T) {
	r := NewRunningStats()
	r.Add(meanVector())
	if r.Snapshot().Stats(0) != defaultStats[0] {
		t.Error("single-sample snapshot must fall back to defaults")
	}
}

func TestFitFromSamples_Empty(t *testing.T) {
	s := FitFromSamples(nil)
	if s.Stats(0) != defaultStats[0] {
		t.Error("empty corpus must yield the default store")
	}
}

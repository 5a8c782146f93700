package ml

import (
	"math"
	"testing"
)

func TestFeatureSchema(t *testing.T) {
	if len(FeatureNames) != FeatureCount {
		t.Fatalf("expected %d feature names, got %d", FeatureCount, len(FeatureNames))
	}

	seen := map[string]bool{}
	for i, name := range FeatureNames {
		if name == "" {
			t.Errorf("feature %d has empty name", i)
		}
		if seen[name] {
			t.Errorf("duplicate feature name %q", name)
		}
		seen[name] = true
		if featureIndex[name] != i {
			t.Errorf("featureIndex[%q] = %d, want %d", name, featureIndex[name], i)
		}
	}

	// The six group ranges must tile [0, 45] contiguously.
	next := 0
	for _, r := range GroupRanges {
		if r.Start != next {
			t.Errorf("group %s starts at %d, expected %d", r.Group, r.Start, next)
		}
		next = r.End + 1
	}
	if next != FeatureCount {
		t.Errorf("group ranges end at %d, expected %d", next, FeatureCount)
	}
}

func TestGroupOf(t *testing.T) {
	tests := []struct {
		index int
		want  FeatureGroup
	}{
		{0, GroupFlow},
		{9, GroupFlow},
		{10, GroupProtocol},
		{17, GroupProtocol},
		{18, GroupPayload},
		{25, GroupPayload},
		{26, GroupConnection},
		{33, GroupConnection},
		{34, GroupTemporal},
		{39, GroupTemporal},
		{40, GroupBehavioral},
		{45, GroupBehavioral},
	}
	for _, tt := range tests {
		if got := GroupOf(tt.index); got != tt.want {
			t.Errorf("GroupOf(%d) = %s, want %s", tt.index, got, tt.want)
		}
	}
}

func TestNewFeatureVector(t *testing.T) {
	values := make([]float64, FeatureCount)
	if _, err := NewFeatureVector(values); err != nil {
		t.Errorf("valid slice rejected: %v", err)
	}

	if _, err := NewFeatureVector(values[:10]); err == nil {
		t.Error("expected error for short slice")
	}

	bad := make([]float64, FeatureCount)
	bad[3] = math.NaN()
	if _, err := NewFeatureVector(bad); err == nil {
		t.Error("expected error for NaN feature")
	}

	bad[3] = math.Inf(1)
	if _, err := NewFeatureVector(bad); err == nil {
		t.Error("expected error for infinite feature")
	}
}

func TestFeatureVector_GetSet(t *testing.T) {
	var v FeatureVector
	v.Set("packet_rate", 42)
	if got, ok := v.Get("packet_rate"); !ok || got != 42 {
		t.Errorf("Get(packet_rate) = %f, %v", got, ok)
	}
	if _, ok := v.Get("no_such_feature"); ok {
		t.Error("unknown name must not resolve")
	}
	v.Set("no_such_feature", 7) // must be a no-op
	for i, x := range v {
		if i != idxPacketRate && x != 0 {
			t.Errorf("unexpected write at index %d", i)
		}
	}
}

func TestLegacyExpand_Deterministic(t *testing.T) {
	l := LegacyFeatures{
		PacketRate:      150,
		ByteVolume:      200000,
		UniqueDstCount:  20,
		ProtocolEntropy: 2.1,
		TimeOfDayFactor: 0.6,
		ConnDuration:    40,
	}
	if l.Expand() != l.Expand() {
		t.Error("expansion must be deterministic")
	}
}

func TestLegacyExpand_Mapping(t *testing.T) {
	l := LegacyFeatures{
		PacketRate:      100,
		ByteVolume:      50000,
		UniqueDstCount:  10,
		ProtocolEntropy: 1.7,
		TimeOfDayFactor: 0.25,
		ConnDuration:    25,
	}
	v := l.Expand()

	if v[idxPacketRate] != 100 {
		t.Errorf("packet_rate = %f, want 100", v[idxPacketRate])
	}
	if v[idxFwdPackets] != 60 || v[idxBwdPackets] != 40 {
		t.Errorf("packet split = %f/%f, want 60/40", v[idxFwdPackets], v[idxBwdPackets])
	}
	if v[idxFwdBytes] != 27500 || v[idxBwdBytes] != 22500 {
		t.Errorf("byte split = %f/%f, want 27500/22500", v[idxFwdBytes], v[idxBwdBytes])
	}
	if v[idxMeanIAT] != 0.01 {
		t.Errorf("mean_iat = %f, want reciprocal 0.01", v[idxMeanIAT])
	}
	if v[idxProtocolEntropy] != 1.7 {
		t.Errorf("protocol_entropy = %f, want 1.7", v[idxProtocolEntropy])
	}
	if v[idxUniqueDstIPs] != 10 {
		t.Errorf("unique_dst_ips = %f, want 10", v[idxUniqueDstIPs])
	}
	if v[idxTimeOfDay] != 0.25 {
		t.Errorf("time_of_day = %f, want 0.25", v[idxTimeOfDay])
	}

	// Features the legacy schema says nothing about stay at their means.
	if v[idxDNSQueryRate] != defaultStats[idxDNSQueryRate].Mean {
		t.Errorf("dns_query_rate = %f, want baseline mean", v[idxDNSQueryRate])
	}
	if v[idxBurstiness] != defaultStats[idxBurstiness].Mean {
		t.Errorf("burstiness = %f, want baseline mean", v[idxBurstiness])
	}
}

func TestLegacyExpand_ZeroInputsStayFinite(t *testing.T) {
	// All-zero legacy input exercises every reciprocal-derived field.
	v := LegacyFeatures{}.Expand()
	for i, x := range v {
		if math.IsNaN(x) || math.IsInf(x, 0) {
			t.Errorf("feature %q is not finite: %v", FeatureNames[i], x)
		}
	}
}

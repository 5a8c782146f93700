// Package ml implements the anomaly detection engine: a fixed 46-feature
// telemetry schema, a normalization store, an autoencoder reconstruction
// model with a statistical fallback, and heuristic attack-type attribution.
package ml

import (
	"fmt"
	"math"
)

// FeatureCount is the dimensionality of the full feature schema.
const FeatureCount = 46

// FeatureGroup names one of the six contiguous feature ranges.
type FeatureGroup string

const (
	GroupFlow       FeatureGroup = "flow"
	GroupProtocol   FeatureGroup = "protocol"
	GroupPayload    FeatureGroup = "payload"
	GroupConnection FeatureGroup = "connection"
	GroupTemporal   FeatureGroup = "temporal"
	GroupBehavioral FeatureGroup = "behavioral"
)

// GroupRange is an inclusive index range [Start, End] within the schema.
type GroupRange struct {
	Group FeatureGroup
	Start int
	End   int
}

// GroupRanges lists the six feature groups in schema order. The ranges are
// part of the schema contract and never change.
var GroupRanges = []GroupRange{
	{GroupFlow, 0, 9},
	{GroupProtocol, 10, 17},
	{GroupPayload, 18, 25},
	{GroupConnection, 26, 33},
	{GroupTemporal, 34, 39},
	{GroupBehavioral, 40, 45},
}

// FeatureNames is the canonical ordered list of the 46 feature names.
// Index positions are invariant; the detector, the normalization store and
// the attack rule table all address features by these indices.
var FeatureNames = [FeatureCount]string{
	// flow 0-9
	"packet_rate",
	"byte_rate",
	"fwd_packets",
	"bwd_packets",
	"fwd_bytes",
	"bwd_bytes",
	"flow_duration",
	"mean_iat",
	"std_iat",
	"fwd_bwd_ratio",
	// protocol 10-17
	"tcp_ratio",
	"udp_ratio",
	"icmp_ratio",
	"syn_count",
	"ack_count",
	"rst_count",
	"fin_count",
	"protocol_entropy",
	// payload 18-25
	"payload_entropy",
	"mean_payload_len",
	"std_payload_len",
	"min_payload_len",
	"max_payload_len",
	"outbound_bytes",
	"inbound_bytes",
	"compression_ratio",
	// connection 26-33
	"unique_dst_ips",
	"unique_dst_ports",
	"unique_src_ports",
	"conn_duration_mean",
	"conn_duration_std",
	"half_open_count",
	"concurrent_conns",
	"new_conn_rate",
	// temporal 34-39
	"time_of_day",
	"day_of_week",
	"is_weekend",
	"burstiness",
	"periodicity_score",
	"idle_time_mean",
	// behavioral 40-45
	"failed_conn_ratio",
	"dns_query_rate",
	"dns_response_ratio",
	"ttl_variance",
	"small_packet_ratio",
	"large_packet_ratio",
}

// Feature indices used by the attack rule table and the legacy adapter.
// Kept as named constants so rules read as intent, not magic offsets.
const (
	idxPacketRate       = 0
	idxByteRate         = 1
	idxFwdPackets       = 2
	idxBwdPackets       = 3
	idxFwdBytes         = 4
	idxBwdBytes         = 5
	idxFlowDuration     = 6
	idxMeanIAT          = 7
	idxStdIAT           = 8
	idxFwdBwdRatio      = 9
	idxTCPRatio         = 10
	idxUDPRatio         = 11
	idxSYNCount         = 13
	idxACKCount         = 14
	idxRSTCount         = 15
	idxFINCount         = 16
	idxProtocolEntropy  = 17
	idxPayloadEntropy   = 18
	idxMeanPayloadLen   = 19
	idxStdPayloadLen    = 20
	idxMinPayloadLen    = 21
	idxMaxPayloadLen    = 22
	idxOutboundBytes    = 23
	idxInboundBytes     = 24
	idxCompressionRatio = 25
	idxUniqueDstIPs     = 26
	idxUniqueDstPorts   = 27
	idxUniqueSrcPorts   = 28
	idxConnDurationMean = 29
	idxConnDurationStd  = 30
	idxHalfOpenCount    = 31
	idxConcurrentConns  = 32
	idxNewConnRate      = 33
	idxTimeOfDay        = 34
	idxDayOfWeek        = 35
	idxIsWeekend        = 36
	idxBurstiness       = 37
	idxPeriodicityScore = 38
	idxIdleTimeMean     = 39
	idxFailedConnRatio  = 40
	idxDNSQueryRate     = 41
	idxDNSResponseRatio = 42
	idxTTLVariance      = 43
	idxSmallPacketRatio = 44
	idxLargePacketRatio = 45
)

// featureIndex maps feature names back to schema positions.
var featureIndex = func() map[string]int {
	m := make(map[string]int, FeatureCount)
	for i, name := range FeatureNames {
		m[name] = i
	}
	return m
}()

// FeatureVector is one telemetry sample: an ordered, fixed-length vector
// addressed by the canonical feature names.
type FeatureVector [FeatureCount]float64

// NewFeatureVector validates and wraps a raw slice. Every value must be
// finite; the slice must be exactly FeatureCount long.
func NewFeatureVector(values []float64) (FeatureVector, error) {
	var v FeatureVector
	if len(values) != FeatureCount {
		return v, fmt.Errorf("feature count mismatch: expected %d, got %d", FeatureCount, len(values))
	}
	for i, x := range values {
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return v, fmt.Errorf("feature %q is not finite: %v", FeatureNames[i], x)
		}
		v[i] = x
	}
	return v, nil
}

// Get returns the value of a named feature.
func (v FeatureVector) Get(name string) (float64, bool) {
	i, ok := featureIndex[name]
	if !ok {
		return 0, false
	}
	return v[i], true
}

// Set assigns a named feature, ignoring unknown names.
func (v *FeatureVector) Set(name string, value float64) {
	if i, ok := featureIndex[name]; ok {
		v[i] = value
	}
}

// Slice returns a copy of the vector as a plain slice.
func (v FeatureVector) Slice() []float64 {
	out := make([]float64, FeatureCount)
	copy(out, v[:])
	return out
}

// GroupOf returns the feature group containing index i.
func GroupOf(i int) FeatureGroup {
	for _, r := range GroupRanges {
		if i >= r.Start && i <= r.End {
			return r.Group
		}
	}
	return ""
}

// LegacyFeatures is the retired 6-field schema still emitted by older
// telemetry agents.
type LegacyFeatures struct {
	PacketRate      float64 `json:"packetRate"`
	ByteVolume      float64 `json:"byteVolume"`
	UniqueDstCount  float64 `json:"uniqueDstCount"`
	ProtocolEntropy float64 `json:"protocolEntropy"`
	TimeOfDayFactor float64 `json:"timeOfDayFactor"`
	ConnDuration    float64 `json:"connDuration"`
}

// Expand maps the legacy schema onto the full 46-feature schema using fixed
// arithmetic relationships. The expansion is a lossy approximation: the
// legacy schema discards information the full schema carries (protocol
// flags, DNS behavior, TTL), so the derived fields are plausible defaults
// scaled by the legacy values, not a reconstruction of real traffic.
// Deterministic and pure; reciprocal-derived fields guard against zero.
func (l LegacyFeatures) Expand() FeatureVector {
	var v FeatureVector
	d := defaultStats

	// Unrelated features sit at their baseline means.
	for i := range v {
		v[i] = d[i].Mean
	}

	// Flow group: fixed 60/40 forward/backward packet split, 55/45 byte
	// split, inter-arrival time as the reciprocal of packet rate.
	v[idxPacketRate] = l.PacketRate
	v[idxByteRate] = safeDiv(l.ByteVolume, math.Max(l.ConnDuration, 1))
	v[idxFwdPackets] = l.PacketRate * 0.6
	v[idxBwdPackets] = l.PacketRate * 0.4
	v[idxFwdBytes] = l.ByteVolume * 0.55
	v[idxBwdBytes] = l.ByteVolume * 0.45
	v[idxFlowDuration] = l.ConnDuration
	v[idxMeanIAT] = safeDiv(1, l.PacketRate)
	v[idxStdIAT] = safeDiv(1, l.PacketRate) * 0.4
	v[idxFwdBwdRatio] = 1.5

	v[idxProtocolEntropy] = l.ProtocolEntropy
	v[idxSYNCount] = l.PacketRate * 0.15
	v[idxACKCount] = l.PacketRate * 0.8

	// Payload statistics scale with the mean packet size.
	meanPkt := safeDiv(l.ByteVolume, math.Max(l.PacketRate*math.Max(l.ConnDuration, 1), 1))
	v[idxMeanPayloadLen] = meanPkt
	v[idxStdPayloadLen] = meanPkt * 0.45
	v[idxMinPayloadLen] = math.Min(meanPkt*0.1, d[idxMinPayloadLen].Mean)
	v[idxMaxPayloadLen] = math.Max(meanPkt*2.5, d[idxMaxPayloadLen].Mean)
	v[idxOutboundBytes] = l.ByteVolume * 0.55
	v[idxInboundBytes] = l.ByteVolume * 0.45

	v[idxUniqueDstIPs] = l.UniqueDstCount
	v[idxUniqueDstPorts] = math.Max(l.UniqueDstCount*0.6, 1)
	v[idxConnDurationMean] = l.ConnDuration
	v[idxConnDurationStd] = l.ConnDuration * 0.35
	v[idxNewConnRate] = safeDiv(l.UniqueDstCount, math.Max(l.ConnDuration, 1))

	v[idxTimeOfDay] = clamp(l.TimeOfDayFactor, 0, 1)

	return v
}

// safeDiv divides a by b, returning 0 when b is 0 rather than Inf.
func safeDiv(a, b float64) float64 {
	if b == 0 {
		return 0
	}
	return a / b
}

func clamp(x, lo, hi float64) float64 {
	if x < lo {
		return lo
	}
	if x > hi {
		return hi
	}
	return x
}

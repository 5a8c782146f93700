// Package telemetry produces synthetic network telemetry: normal traffic
// sampled from the engine's default distribution, plus seven hand-authored
// attack archetypes. The generator serves both as a demo data source and as
// the training corpus when no pretrained model is available.
package telemetry

import (
	"math/rand"
	"time"

	"github.com/sentinelgrid/anomaly-engine/internal/ml"
)

// ArchetypeNames lists the seven attack archetypes in a fixed order.
var ArchetypeNames = []string{
	"ddos",
	"data_exfiltration",
	"port_scan",
	"c2_beacon",
	"dns_tunnel",
	"brute_force",
	"botnet",
}

// archetypes holds, per attack, the features that deviate from the normal
// distribution. Each vector is internally consistent and implausible for
// normal traffic; untouched features keep their sampled-normal values.
var archetypes = map[string]map[string]float64{
	"ddos": {
		"packet_rate":        52000,
		"byte_rate":          4.6e6,
		"fwd_packets":        48000,
		"fwd_bwd_ratio":      38,
		"syn_count":          4200,
		"half_open_count":    340,
		"concurrent_conns":   900,
		"small_packet_ratio": 0.95,
		"mean_iat":           0.00002,
	},
	"data_exfiltration": {
		"outbound_bytes":     9.2e6,
		"fwd_bytes":          8.8e6,
		"fwd_bwd_ratio":      26,
		"payload_entropy":    7.8,
		"compression_ratio":  0.97,
		"large_packet_ratio": 0.92,
		"mean_payload_len":   1380,
	},
	"port_scan": {
		"unique_dst_ports":  1350,
		"unique_dst_ips":    310,
		"new_conn_rate":     460,
		"half_open_count":   230,
		"rst_count":         410,
		"failed_conn_ratio": 0.91,
		"mean_payload_len":  2,
		"conn_duration_mean": 0.05,
	},
	"c2_beacon": {
		"periodicity_score": 0.97,
		"burstiness":        0.04,
		"std_iat":           0.00005,
		"idle_time_mean":    58,
		"mean_payload_len":  64,
		"new_conn_rate":     0.4,
	},
	"dns_tunnel": {
		"dns_query_rate":     240,
		"dns_response_ratio": 0.34,
		"payload_entropy":    7.5,
		"udp_ratio":          0.96,
		"tcp_ratio":          0.03,
		"mean_payload_len":   185,
	},
	"brute_force": {
		"failed_conn_ratio":  0.97,
		"new_conn_rate":      130,
		"syn_count":          820,
		"rst_count":          610,
		"unique_dst_ports":   1,
		"conn_duration_mean": 0.4,
	},
	"botnet": {
		"burstiness":        0.92,
		"periodicity_score": 0.6,
		"unique_dst_ips":    180,
		"concurrent_conns":  310,
		"dns_query_rate":    45,
	},
}

// Config holds generator configuration.
type Config struct {
	// Seed for the sampling RNG; 0 means time-derived
	Seed int64
	// Jitter scales the Gaussian noise applied to normal samples relative
	// to each feature's default std
	Jitter float64
	// Clock supplies wall-clock time for the temporal features; nil means
	// time.Now
	Clock func() time.Time
}

// DefaultConfig returns default generator configuration.
func DefaultConfig() *Config {
	return &Config{Jitter: 0.5}
}

// Generator produces synthetic feature vectors.
type Generator struct {
	config *Config
	rng    *rand.Rand
	now    func() time.Time
	stats  *ml.StatsStore
}

// NewGenerator creates a generator.
func NewGenerator(config *Config) *Generator {
	if config == nil {
		config = DefaultConfig()
	}
	if config.Jitter <= 0 {
		config.Jitter = 0.5
	}
	seed := config.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	now := config.Clock
	if now == nil {
		now = time.Now
	}
	return &Generator{
		config: config,
		rng:    rand.New(rand.NewSource(seed)),
		now:    now,
		stats:  ml.NewStatsStore(),
	}
}

// Generate produces one feature vector. With injectAnomaly set, a random
// attack archetype is chosen; otherwise the sample is drawn from the normal
// distribution. Temporal features come from the wall clock either way.
func (g *Generator) Generate(injectAnomaly bool) ml.FeatureVector {
	v := g.sampleNormal()
	if injectAnomaly {
		name := ArchetypeNames[g.rng.Intn(len(ArchetypeNames))]
		g.applyArchetype(&v, name)
	}
	g.applyClock(&v)
	return v
}

// GenerateAttack produces a vector for a named archetype. Unknown names
// yield a plain normal sample.
func (g *Generator) GenerateAttack(name string) ml.FeatureVector {
	v := g.sampleNormal()
	g.applyArchetype(&v, name)
	g.applyClock(&v)
	return v
}

// GenerateTrainingSet produces n normal vectors for the fit path.
func (g *Generator) GenerateTrainingSet(n int) []ml.FeatureVector {
	out := make([]ml.FeatureVector, n)
	for i := range out {
		v := g.sampleNormal()
		g.applyClock(&v)
		out[i] = v
	}
	return out
}

func (g *Generator) sampleNormal() ml.FeatureVector {
	var v ml.FeatureVector
	for i := 0; i < ml.FeatureCount; i++ {
		fs := g.stats.Stats(i)
		x := fs.Mean + g.rng.NormFloat64()*fs.Std*g.config.Jitter
		if x < fs.Min {
			x = fs.Min
		}
		if fs.Max > fs.Min && x > fs.Max {
			x = fs.Max
		}
		v[i] = x
	}
	return v
}

func (g *Generator) applyArchetype(v *ml.FeatureVector, name string) {
	overrides, ok := archetypes[name]
	if !ok {
		return
	}
	for feature, value := range overrides {
		v.Set(feature, value)
	}
}

// applyClock derives the temporal identity features from wall-clock time.
// These are never randomized: a sample generated at 03:00 on a Sunday must
// look like 03:00 on a Sunday.
func (g *Generator) applyClock(v *ml.FeatureVector) {
	now := g.now()
	v.Set("time_of_day", float64(now.Hour())/23.0)
	v.Set("day_of_week", float64(now.Weekday())/6.0)
	weekend := 0.0
	if wd := now.Weekday(); wd == time.Saturday || wd == time.Sunday {
		weekend = 1.0
	}
	v.Set("is_weekend", weekend)
}

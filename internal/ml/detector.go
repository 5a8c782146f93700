package ml

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/sentinelgrid/anomaly-engine/internal/metrics"
)

// DefaultThreshold is the reconstruction-error detection threshold used
// when no metadata document supplies an override. Error equal to the
// threshold yields score 50.
const DefaultThreshold = 0.35

// contributionEpsilon: below this total error, contributions are
// distributed uniformly instead of divided by a near-zero sum.
const contributionEpsilon = 1e-9

// Model-path confidence constants.
const (
	modelConfidenceBase  = 0.5
	modelConfidenceSlope = 0.5
	modelConfidenceCap   = 0.99
)

// reconstructor is the slice of the model runtime the detector needs.
type reconstructor interface {
	Ready() bool
	Reconstruct(normalized [FeatureCount]float64) ([FeatureCount]float64, error)
}

// trainable is implemented by model runtimes that support in-place fitting.
type trainable interface {
	Fit(ctx context.Context, samples [][FeatureCount]float64, epochs int) error
}

// provenancer exposes training provenance for the metrics snapshot.
type provenancer interface {
	Provenance() (samples, epochs int, trained time.Time)
}

// DetectorConfig holds detector configuration.
type DetectorConfig struct {
	// Threshold is the reconstruction-error detection threshold; 0 means
	// DefaultThreshold
	Threshold float64
}

// DefaultDetectorConfig returns default detector configuration.
func DefaultDetectorConfig() *DetectorConfig {
	return &DetectorConfig{Threshold: DefaultThreshold}
}

// Detector is the engine's single entry point. It normalizes incoming
// vectors, runs the reconstruction model when one is ready, and otherwise
// delegates to the statistical fallback. Inference is synchronous and
// side-effect-free apart from reading the current model weights.
type Detector struct {
	config *DetectorConfig
	stats  *StatsStore
	model  reconstructor

	// Reported evaluation metrics of a loaded pretrained model, if any.
	loadedEval map[string]EvaluationMetrics
}

// NewDetector creates a detector over the given normalization store and
// model runtime. A nil stats store falls back to built-in defaults; a nil
// model pins the detector to the statistical path.
func NewDetector(config *DetectorConfig, stats *StatsStore, model reconstructor) *Detector {
	if config == nil {
		config = DefaultDetectorConfig()
	}
	if config.Threshold <= 0 {
		config.Threshold = DefaultThreshold
	}
	if stats == nil {
		stats = NewStatsStore()
	}
	return &Detector{
		config: config,
		stats:  stats,
		model:  model,
	}
}

// ApplyMetadata adopts the threshold override and evaluation metrics of a
// pretrained model's metadata document. A nil document is a no-op.
func (d *Detector) ApplyMetadata(meta *ModelMetadataDocument) {
	if meta == nil {
		return
	}
	if meta.DetectionThreshold > 0 {
		d.config.Threshold = meta.DetectionThreshold
	}
	if len(meta.Evaluation) > 0 {
		d.loadedEval = meta.Evaluation
	}
}

// Detect scores a single telemetry sample.
func (d *Detector) Detect(v FeatureVector) AnomalyResult {
	start := time.Now()
	result := d.detect(v)
	metrics.ObserveDetection(string(result.DetectionMethod), string(result.Classification), result.IsAnomaly, time.Since(start))
	return result
}

func (d *Detector) detect(v FeatureVector) AnomalyResult {
	if d.model == nil || !d.model.Ready() {
		return d.detectStatistical(v)
	}

	normalized := d.stats.Normalize(v)
	recon, err := d.model.Reconstruct(normalized)
	if err != nil {
		// Model was disposed or swapped out between the readiness check and
		// the inference; the fallback keeps detection failure-free.
		return d.detectStatistical(v)
	}

	var errs [FeatureCount]float64
	var sumSq, sumAbs float64
	for i := 0; i < FeatureCount; i++ {
		e := math.Abs(normalized[i] - recon[i])
		errs[i] = e
		sumSq += e * e
		sumAbs += e
	}
	reconErr := math.Sqrt(sumSq / FeatureCount)

	threshold := d.config.Threshold
	score := minF(100, (reconErr/threshold)*50)

	contributions := make(map[string]float64, FeatureCount)
	if sumAbs < contributionEpsilon {
		for _, name := range FeatureNames {
			contributions[name] = 1.0 / FeatureCount
		}
	} else {
		for i, name := range FeatureNames {
			contributions[name] = errs[i] / sumAbs
		}
	}

	result := AnomalyResult{
		ID:                   uuid.NewString(),
		Score:                score,
		IsAnomaly:            reconErr > threshold,
		Confidence:           minF(modelConfidenceCap, modelConfidenceBase+reconErr*modelConfidenceSlope),
		ReconstructionError:  reconErr,
		FeatureContributions: contributions,
		Timestamp:            time.Now(),
		Classification:       Classify(score),
		DetectionMethod:      MethodModel,
	}

	if score > scoreSuspicious {
		result.AttackType = attributeAttack(contributions, v)
	}

	return result
}

// DetectBatch scores vectors independently, preserving input order and
// returning exactly one result per input.
func (d *Detector) DetectBatch(vs []FeatureVector) []AnomalyResult {
	results := make([]AnomalyResult, len(vs))
	for i, v := range vs {
		results[i] = d.Detect(v)
	}
	return results
}

// DetectLegacy expands a legacy 6-feature sample through the adapter and
// scores it. The result is stamped MethodLegacy regardless of which path
// ran underneath: adapter output is lower-confidence than native input and
// consumers should treat it as such.
func (d *Detector) DetectLegacy(l LegacyFeatures) AnomalyResult {
	result := d.Detect(l.Expand())
	result.DetectionMethod = MethodLegacy
	return result
}

// Fit normalizes a training corpus and trains the model runtime in place.
// Returns an error when the runtime does not support training or training
// itself fails; the detector remains in its previous state in that case.
func (d *Detector) Fit(ctx context.Context, vectors []FeatureVector, epochs int) error {
	t, ok := d.model.(trainable)
	if !ok {
		return fmt.Errorf("model runtime does not support training")
	}
	samples := make([][FeatureCount]float64, len(vectors))
	for i, v := range vectors {
		samples[i] = d.stats.Normalize(v)
	}
	if err := t.Fit(ctx, samples, epochs); err != nil {
		return fmt.Errorf("training failed: %w", err)
	}
	m := d.Metrics()
	metrics.SetModelState(m.IsReady, m.TrainingSamples)
	return nil
}

// Metrics returns the engine readiness and provenance snapshot.
func (d *Detector) Metrics() ModelMetrics {
	m := ModelMetrics{
		Threshold:  d.config.Threshold,
		Evaluation: d.loadedEval,
	}
	if d.model != nil {
		m.IsReady = d.model.Ready()
		if p, ok := d.model.(provenancer); ok {
			m.TrainingSamples, m.TrainingEpochs, m.LastTrained = p.Provenance()
		}
	}
	return m
}

package ml

import (
	"time"

	"github.com/google/uuid"
)

// Statistical fallback constants. The fallback is a pure z-score scorer
// used whenever the reconstruction model is unavailable or untrained.
const (
	fallbackScoreScale      = 25.0
	fallbackAnomalyZ        = 2.0
	fallbackConfidenceBase  = 0.3
	fallbackConfidenceSlope = 0.15
	fallbackConfidenceCap   = 0.8
)

// detectStatistical scores a vector against the normalization store alone:
// the average absolute z-score across all features drives score, anomaly
// flag and confidence. This path never attributes attack types.
func (d *Detector) detectStatistical(v FeatureVector) AnomalyResult {
	z := d.stats.ZScores(v)

	var sumZ float64
	for i := 0; i < FeatureCount; i++ {
		sumZ += z[i]
	}
	avgZ := sumZ / FeatureCount

	score := minF(100, avgZ*fallbackScoreScale)

	contributions := make(map[string]float64, FeatureCount)
	if sumZ < contributionEpsilon {
		for _, name := range FeatureNames {
			contributions[name] = 1.0 / FeatureCount
		}
	} else {
		for i, name := range FeatureNames {
			contributions[name] = z[i] / sumZ
		}
	}

	return AnomalyResult{
		ID:                   uuid.NewString(),
		Score:                score,
		IsAnomaly:            avgZ > fallbackAnomalyZ,
		Confidence:           minF(fallbackConfidenceCap, fallbackConfidenceBase+avgZ*fallbackConfidenceSlope),
		ReconstructionError:  avgZ,
		FeatureContributions: contributions,
		Timestamp:            time.Now(),
		Classification:       Classify(score),
		DetectionMethod:      MethodStatistical,
	}
}

func minF(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}

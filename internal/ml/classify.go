package ml

import "time"

// Classification is the severity bucket assigned to a detection score.
type Classification string

const (
	ClassNormal     Classification = "NORMAL"
	ClassSuspicious Classification = "SUSPICIOUS"
	ClassAnomalous  Classification = "ANOMALOUS"
	ClassCritical   Classification = "CRITICAL"
)

// DetectionMethod identifies which strategy produced a result.
type DetectionMethod string

const (
	MethodModel       DetectionMethod = "MODEL"
	MethodStatistical DetectionMethod = "STATISTICAL"
	// MethodLegacy marks results derived from the lossy 6-feature adapter.
	// They carry lower confidence than native 46-feature input regardless of
	// which scoring path ran underneath.
	MethodLegacy DetectionMethod = "LEGACY"
)

// Severity thresholds shared by the model and fallback paths, so the
// severity vocabulary is consistent regardless of detection method.
const (
	scoreCritical   = 80.0
	scoreAnomalous  = 50.0
	scoreSuspicious = 25.0
)

// Classify maps a score in [0,100] to its severity bucket.
func Classify(score float64) Classification {
	switch {
	case score >= scoreCritical:
		return ClassCritical
	case score >= scoreAnomalous:
		return ClassAnomalous
	case score >= scoreSuspicious:
		return ClassSuspicious
	default:
		return ClassNormal
	}
}

// AnomalyResult is the output of one detection call.
type AnomalyResult struct {
	ID                   string             `json:"id"`
	Score                float64            `json:"score"`
	IsAnomaly            bool               `json:"isAnomaly"`
	Confidence           float64            `json:"confidence"`
	ReconstructionError  float64            `json:"reconstructionError"`
	FeatureContributions map[string]float64 `json:"featureContributions"`
	Timestamp            time.Time          `json:"timestamp"`
	Classification       Classification     `json:"classification"`
	DetectionMethod      DetectionMethod    `json:"detectionMethod"`
	AttackType           string             `json:"attackType,omitempty"`
}

// ModelMetrics is a readiness and provenance snapshot of the engine.
type ModelMetrics struct {
	IsReady         bool       `json:"isReady"`
	Threshold       float64    `json:"threshold"`
	TrainingSamples int        `json:"trainingSamples"`
	TrainingEpochs  int        `json:"trainingEpochs"`
	LastTrained     time.Time  `json:"lastTrained,omitempty"`
	// Evaluation holds the pretrained model's reported metrics when one was
	// loaded; nil for self-trained models.
	Evaluation map[string]EvaluationMetrics `json:"evaluation,omitempty"`
}

// EvaluationMetrics are the per-method evaluation figures reported by a
// pretrained model's metadata document.
type EvaluationMetrics struct {
	Accuracy  float64 `json:"accuracy"`
	Precision float64 `json:"precision"`
	Recall    float64 `json:"recall"`
	F1Macro   float64 `json:"f1Macro"`
	F1Binary  float64 `json:"f1Binary"`
	ROCAUC    float64 `json:"rocAuc"`
}

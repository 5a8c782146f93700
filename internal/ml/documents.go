package ml

// Externally supplied asset documents. Both are optional: absence or
// malformed content never blocks the engine, it only means defaults apply
// and the detector starts in the fallback-capable state.

// ArchitectureInfo describes the reconstruction model's shape.
type ArchitectureInfo struct {
	Type           string `json:"type"`
	InputDim       int    `json:"inputDim"`
	BottleneckDim  int    `json:"bottleneckDim"`
	HiddenDims     []int  `json:"hiddenDims"`
	ParameterCount int    `json:"parameterCount"`
}

// TrainingInfo is the pretrained model's training provenance.
type TrainingInfo struct {
	SampleCount       int     `json:"sampleCount"`
	ValidationSamples int     `json:"validationSamples"`
	BestEpoch         int     `json:"bestEpoch"`
	CrossValLoss      float64 `json:"crossValLoss"`
}

// FeatureGroupInfo lists one group's inclusive index range as published by
// the metadata document.
type FeatureGroupInfo struct {
	Name  string `json:"name"`
	Start int    `json:"start"`
	End   int    `json:"end"`
}

// ModelMetadataDocument is the optional model metadata asset.
type ModelMetadataDocument struct {
	Version            string                       `json:"version"`
	Name               string                       `json:"name"`
	Architecture       ArchitectureInfo             `json:"architecture"`
	Training           TrainingInfo                 `json:"training"`
	Evaluation         map[string]EvaluationMetrics `json:"evaluation"`
	DetectionThreshold float64                      `json:"detectionThreshold"`
	FeatureGroups      []FeatureGroupInfo           `json:"featureGroups"`
}

// NormalizationDocument is the optional normalization statistics asset:
// per-feature statistics plus the canonical ordered feature name list.
type NormalizationDocument struct {
	FeatureNames []string                `json:"featureNames"`
	Stats        map[string]FeatureStats `json:"stats"`
	Groups       []FeatureGroupInfo      `json:"groups"`
}

// WeightsDocument carries dense layer parameters for the reconstruction
// model. Weights[i] is a row-major OutDim x InDim matrix for layer i,
// Biases[i] its OutDim bias vector.
type WeightsDocument struct {
	LayerDims []int         `json:"layerDims"`
	Weights   [][][]float64 `json:"weights"`
	Biases    [][]float64   `json:"biases"`
}

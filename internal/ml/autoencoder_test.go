package ml

import (
	"context"
	"math"
	"testing"
)

// zeroWeightsDocument builds a structurally valid document with all-zero
// parameters: every input reconstructs to the zero vector.
func zeroWeightsDocument() *WeightsDocument {
	doc := &WeightsDocument{LayerDims: append([]int{}, layerDims...)}
	for l := 0; l < len(layerDims)-1; l++ {
		in, out := layerDims[l], layerDims[l+1]
		weights := make([][]float64, out)
		for i := range weights {
			weights[i] = make([]float64, in)
		}
		doc.Weights = append(doc.Weights, weights)
		doc.Biases = append(doc.Biases, make([]float64, out))
	}
	return doc
}

func trainingCorpus(n int) [][FeatureCount]float64 {
	samples := make([][FeatureCount]float64, n)
	for i := range samples {
		for j := range samples[i] {
			samples[i][j] = 0.1 * float64((i+j)%5)
		}
	}
	return samples
}

func TestAutoencoder_NotReadyBeforeTraining(t *testing.T) {
	a := NewAutoencoder(nil)
	defer a.Dispose()

	if a.Ready() {
		t.Error("fresh runtime must not be ready")
	}
	if _, err := a.Reconstruct([FeatureCount]float64{}); err == nil {
		t.Error("expected error reconstructing before training")
	}
}

func TestAutoencoder_FitMarksReady(t *testing.T) {
	a := NewAutoencoder(&AutoencoderConfig{LearningRate: 0.01, LearningRateDecay: 0.97, Seed: 42})
	defer a.Dispose()

	if err := a.Fit(context.Background(), trainingCorpus(24), 3); err != nil {
		t.Fatalf("fit failed: %v", err)
	}

	if !a.Ready() {
		t.Error("fitted runtime must be ready")
	}
	samples, epochs, trained := a.Provenance()
	if samples != 24 || epochs != 3 {
		t.Errorf("provenance = %d samples, %d epochs", samples, epochs)
	}
	if trained.IsZero() {
		t.Error("expected training timestamp")
	}
	if a.LastLoss() < 0 {
		t.Errorf("loss must be non-negative, got %f", a.LastLoss())
	}
}

func TestAutoencoder_FitRejectsEmptyCorpus(t *testing.T) {
	a := NewAutoencoder(nil)
	defer a.Dispose()
	if err := a.Fit(context.Background(), nil, 5); err == nil {
		t.Error("expected error for empty corpus")
	}
}

func TestAutoencoder_FitHonorsCancellation(t *testing.T) {
	a := NewAutoencoder(&AutoencoderConfig{LearningRate: 0.01, LearningRateDecay: 0.97, Seed: 1})
	defer a.Dispose()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := a.Fit(ctx, trainingCorpus(8), 10); err == nil {
		t.Error("expected context error from cancelled fit")
	}
	if a.Ready() {
		t.Error("cancelled fit must not mark the runtime ready")
	}
}

func TestAutoencoder_ReconstructDeterministic(t *testing.T) {
	a := NewAutoencoder(&AutoencoderConfig{LearningRate: 0.01, LearningRateDecay: 0.97, Seed: 7})
	defer a.Dispose()

	if err := a.Fit(context.Background(), trainingCorpus(16), 2); err != nil {
		t.Fatalf("fit failed: %v", err)
	}

	var in [FeatureCount]float64
	for i := range in {
		in[i] = 0.5
	}
	first, err := a.Reconstruct(in)
	if err != nil {
		t.Fatalf("reconstruct failed: %v", err)
	}
	second, err := a.Reconstruct(in)
	if err != nil {
		t.Fatalf("reconstruct failed: %v", err)
	}
	if first != second {
		t.Error("reconstruction must be deterministic for fixed weights")
	}
}

func TestAutoencoder_LoadValidDocument(t *testing.T) {
	a := NewAutoencoder(nil)
	defer a.Dispose()

	meta := &ModelMetadataDocument{
		Training: TrainingInfo{SampleCount: 50000, BestEpoch: 87, CrossValLoss: 0.021},
	}
	if !a.Load(zeroWeightsDocument(), meta) {
		t.Fatal("valid document rejected")
	}
	if !a.Ready() {
		t.Error("loaded runtime must be ready")
	}

	samples, epochs, _ := a.Provenance()
	if samples != 50000 || epochs != 87 {
		t.Errorf("metadata provenance not adopted: %d samples, %d epochs", samples, epochs)
	}

	var in [FeatureCount]float64
	in[0] = 3
	out, err := a.Reconstruct(in)
	if err != nil {
		t.Fatalf("reconstruct failed: %v", err)
	}
	if out != ([FeatureCount]float64{}) {
		t.Error("all-zero parameters must reconstruct to the zero vector")
	}
}

func TestAutoencoder_LoadRejectsMalformed(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*WeightsDocument)
	}{
		{"wrong topology", func(d *WeightsDocument) { d.LayerDims[1] = 64 }},
		{"missing layer", func(d *WeightsDocument) { d.Weights = d.Weights[:len(d.Weights)-1] }},
		{"short row", func(d *WeightsDocument) { d.Weights[0][0] = d.Weights[0][0][:10] }},
		{"short bias", func(d *WeightsDocument) { d.Biases[2] = d.Biases[2][:5] }},
		{"nan weight", func(d *WeightsDocument) { d.Weights[0][0][0] = math.NaN() }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := NewAutoencoder(nil)
			defer a.Dispose()

			doc := zeroWeightsDocument()
			tt.mutate(doc)
			if a.Load(doc, nil) {
				t.Error("malformed document accepted")
			}
			if a.Ready() {
				t.Error("rejected load must not mark the runtime ready")
			}
		})
	}

	a := NewAutoencoder(nil)
	defer a.Dispose()
	if a.Load(nil, nil) {
		t.Error("nil document accepted")
	}
}

func TestAutoencoder_DisposeIdempotent(t *testing.T) {
	a := NewAutoencoder(nil)
	if !a.Load(zeroWeightsDocument(), nil) {
		t.Fatal("load failed")
	}

	a.Dispose()
	a.Dispose() // second call must be a no-op

	if a.Ready() {
		t.Error("disposed runtime must not be ready")
	}
	if _, err := a.Reconstruct([FeatureCount]float64{}); err == nil {
		t.Error("expected error reconstructing after dispose")
	}
	if a.Load(zeroWeightsDocument(), nil) {
		t.Error("load must fail after dispose")
	}
	if err := a.Fit(context.Background(), trainingCorpus(4), 1); err == nil {
		t.Error("fit must fail after dispose")
	}
}

func TestAutoencoder_DisposeBeforeInit(t *testing.T) {
	a := NewAutoencoder(nil)
	a.Dispose() // never trained or loaded
	if a.Ready() {
		t.Error("disposed runtime must not be ready")
	}
}

package ml

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"sync"
	"time"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// layerDims is the fixed symmetric encoder/decoder topology:
// dense 46 -> 128 -> 64 -> 16 (bottleneck) -> 64 -> 128 -> 46.
var layerDims = []int{FeatureCount, 128, 64, 16, 64, 128, FeatureCount}

// BottleneckDim is the smallest intermediate representation width.
const BottleneckDim = 16

// AutoencoderConfig holds training hyperparameters for the reconstruction
// model.
type AutoencoderConfig struct {
	// LearningRate for SGD updates
	LearningRate float64
	// LearningRateDecay applied per epoch (multiplicative)
	LearningRateDecay float64
	// Seed for weight initialization and sample shuffling; 0 means
	// time-derived
	Seed int64
}

// DefaultAutoencoderConfig returns default training hyperparameters.
func DefaultAutoencoderConfig() *AutoencoderConfig {
	return &AutoencoderConfig{
		LearningRate:      0.01,
		LearningRateDecay: 0.97,
	}
}

// denseLayer is one fully connected layer: out = act(W*in + b).
type denseLayer struct {
	w *mat.Dense    // outDim x inDim
	b *mat.VecDense // outDim
}

// Autoencoder is the reconstruction model runtime. It maps a normalized
// 46-dimensional vector through the bottleneck and back; input the model
// has seen (normal traffic) reconstructs well, anomalous input does not.
//
// Weights are replaced wholesale by Load or Fit under the write lock, so a
// concurrent Reconstruct can never observe a half-swapped model. The weight
// buffers are a scoped resource: Dispose releases them explicitly and is
// idempotent, including after a failed initialization.
type Autoencoder struct {
	mu     sync.RWMutex
	config *AutoencoderConfig
	rng    *rand.Rand

	layers   []denseLayer
	ready    bool
	disposed bool

	// Training provenance
	trainingSamples int
	trainingEpochs  int
	lastTrained     time.Time
	lastLoss        float64
}

// NewAutoencoder creates an untrained model runtime. The model is not ready
// until Load succeeds or Fit completes.
func NewAutoencoder(config *AutoencoderConfig) *Autoencoder {
	if config == nil {
		config = DefaultAutoencoderConfig()
	}
	seed := config.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &Autoencoder{
		config: config,
		rng:    rand.New(rand.NewSource(seed)),
	}
}

// initWeights builds Xavier-initialized layers for the fixed topology.
func (a *Autoencoder) initWeights() {
	layers := make([]denseLayer, len(layerDims)-1)
	for l := 0; l < len(layers); l++ {
		in, out := layerDims[l], layerDims[l+1]
		scale := math.Sqrt(2.0 / float64(in+out))
		data := make([]float64, out*in)
		for i := range data {
			data[i] = (a.rng.Float64()*2 - 1) * scale
		}
		layers[l] = denseLayer{
			w: mat.NewDense(out, in, data),
			b: mat.NewVecDense(out, nil),
		}
	}
	a.layers = layers
}

// Ready reports whether the model can serve reconstructions.
func (a *Autoencoder) Ready() bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.ready && !a.disposed
}

// Provenance returns the recorded training provenance.
func (a *Autoencoder) Provenance() (samples, epochs int, trained time.Time) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.trainingSamples, a.trainingEpochs, a.lastTrained
}

// LastLoss returns the mean reconstruction loss of the final training epoch.
func (a *Autoencoder) LastLoss() float64 {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.lastLoss
}

// Load replaces the model weights with externally supplied parameters.
// It returns false, never an error, on any mismatch or malformed content:
// the caller falls back to fitting on synthetic data or to the statistical
// path, per the engine's asset-unavailable policy.
func (a *Autoencoder) Load(doc *WeightsDocument, meta *ModelMetadataDocument) bool {
	if doc == nil {
		return false
	}
	if len(doc.LayerDims) != len(layerDims) {
		return false
	}
	for i, d := range doc.LayerDims {
		if d != layerDims[i] {
			return false
		}
	}
	if len(doc.Weights) != len(layerDims)-1 || len(doc.Biases) != len(layerDims)-1 {
		return false
	}

	layers := make([]denseLayer, len(layerDims)-1)
	for l := range layers {
		in, out := layerDims[l], layerDims[l+1]
		if len(doc.Weights[l]) != out || len(doc.Biases[l]) != out {
			return false
		}
		data := make([]float64, 0, out*in)
		for _, row := range doc.Weights[l] {
			if len(row) != in {
				return false
			}
			for _, x := range row {
				if math.IsNaN(x) || math.IsInf(x, 0) {
					return false
				}
			}
			data = append(data, row...)
		}
		bias := make([]float64, out)
		copy(bias, doc.Biases[l])
		layers[l] = denseLayer{
			w: mat.NewDense(out, in, data),
			b: mat.NewVecDense(out, bias),
		}
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if a.disposed {
		return false
	}
	a.layers = layers
	a.ready = true
	if meta != nil {
		a.trainingSamples = meta.Training.SampleCount
		a.trainingEpochs = meta.Training.BestEpoch
		a.lastLoss = meta.Training.CrossValLoss
	}
	a.lastTrained = time.Now()
	return true
}

// Fit trains the model in place with SGD on mean-squared reconstruction
// error against identity targets. Samples must already be normalized.
// Used when no pretrained model is available; marks the model ready and
// records training provenance on completion.
func (a *Autoencoder) Fit(ctx context.Context, samples [][FeatureCount]float64, epochs int) error {
	if len(samples) == 0 {
		return fmt.Errorf("fit requires at least one training sample")
	}
	if epochs <= 0 {
		epochs = 1
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if a.disposed {
		return fmt.Errorf("model runtime is disposed")
	}
	if a.layers == nil {
		a.initWeights()
	}

	lr := a.config.LearningRate
	order := a.rng.Perm(len(samples))
	losses := make([]float64, 0, len(samples))

	for epoch := 0; epoch < epochs; epoch++ {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		// Reshuffle per epoch
		a.rng.Shuffle(len(order), func(i, j int) { order[i], order[j] = order[j], order[i] })

		losses = losses[:0]
		for _, si := range order {
			loss := a.sgdStep(samples[si][:], lr)
			losses = append(losses, loss)
		}
		a.lastLoss = floats.Sum(losses) / float64(len(losses))
		lr *= a.config.LearningRateDecay
	}

	a.ready = true
	a.trainingSamples = len(samples)
	a.trainingEpochs = epochs
	a.lastTrained = time.Now()
	return nil
}

// sgdStep runs one forward/backward pass for a single sample and applies
// the gradient. Returns the sample's mean-squared reconstruction error.
// Caller holds the write lock.
func (a *Autoencoder) sgdStep(x []float64, lr float64) float64 {
	n := len(a.layers)

	// Forward pass, keeping activations and pre-activation signs.
	acts := make([]*mat.VecDense, n+1)
	acts[0] = mat.NewVecDense(FeatureCount, x)
	for l, layer := range a.layers {
		out := mat.NewVecDense(layer.b.Len(), nil)
		out.MulVec(layer.w, acts[l])
		out.AddVec(out, layer.b)
		if l < n-1 {
			reluInPlace(out)
		}
		acts[l+1] = out
	}

	// Output delta: linear output layer, MSE loss => delta = (out - target).
	outVec := acts[n]
	delta := mat.NewVecDense(FeatureCount, nil)
	delta.SubVec(outVec, acts[0])
	var loss float64
	for i := 0; i < FeatureCount; i++ {
		d := delta.AtVec(i)
		loss += d * d
	}
	loss /= FeatureCount

	// Backward pass with immediate updates.
	for l := n - 1; l >= 0; l-- {
		layer := a.layers[l]

		// Propagate before mutating this layer's weights.
		var prev *mat.VecDense
		if l > 0 {
			prev = mat.NewVecDense(layer.w.RawMatrix().Cols, nil)
			prev.MulVec(layer.w.T(), delta)
			// ReLU derivative of the previous layer's activation.
			for i := 0; i < prev.Len(); i++ {
				if acts[l].AtVec(i) <= 0 {
					prev.SetVec(i, 0)
				}
			}
		}

		grad := mat.NewDense(layer.b.Len(), layer.w.RawMatrix().Cols, nil)
		grad.Outer(lr, delta, acts[l])
		layer.w.Sub(layer.w, grad)

		scaled := mat.NewVecDense(delta.Len(), nil)
		scaled.ScaleVec(lr, delta)
		layer.b.SubVec(layer.b, scaled)

		delta = prev
	}

	return loss
}

// Reconstruct maps a normalized vector to its reconstruction. Pure for
// fixed weights and deterministic; returns an error when the model is not
// ready or has been disposed.
func (a *Autoencoder) Reconstruct(normalized [FeatureCount]float64) ([FeatureCount]float64, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	var out [FeatureCount]float64
	if a.disposed {
		return out, fmt.Errorf("model runtime is disposed")
	}
	if !a.ready || a.layers == nil {
		return out, fmt.Errorf("model not ready")
	}

	h := mat.NewVecDense(FeatureCount, normalized[:])
	n := len(a.layers)
	for l, layer := range a.layers {
		next := mat.NewVecDense(layer.b.Len(), nil)
		next.MulVec(layer.w, h)
		next.AddVec(next, layer.b)
		if l < n-1 {
			reluInPlace(next)
		}
		h = next
	}

	for i := 0; i < FeatureCount; i++ {
		out[i] = h.AtVec(i)
	}
	return out, nil
}

// Dispose releases the weight buffers. Safe to call multiple times and
// after a failed initialization; all subsequent Reconstruct calls fail,
// which routes the detector to the statistical fallback.
func (a *Autoencoder) Dispose() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.disposed {
		return
	}
	a.layers = nil
	a.ready = false
	a.disposed = true
}

func reluInPlace(v *mat.VecDense) {
	for i := 0; i < v.Len(); i++ {
		if v.AtVec(i) < 0 {
			v.SetVec(i, 0)
		}
	}
}

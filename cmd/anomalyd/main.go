// Command anomalyd runs the anomaly detection engine against synthetic
// telemetry. It owns the single detector instance: assets are loaded (or the
// model is fitted on generated normal traffic) before the detection loop
// starts, and the model runtime is disposed on shutdown.
package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sentinelgrid/anomaly-engine/internal/assets"
	"github.com/sentinelgrid/anomaly-engine/internal/logging"
	"github.com/sentinelgrid/anomaly-engine/internal/metrics"
	"github.com/sentinelgrid/anomaly-engine/internal/ml"
	"github.com/sentinelgrid/anomaly-engine/internal/telemetry"
)

func main() {
	var (
		assetPath   = flag.String("assets", "", "base path or URL for pretrained model assets (empty: train on synthetic data)")
		listenAddr  = flag.String("listen", ":9209", "address for the /metrics endpoint")
		interval    = flag.Duration("interval", 2*time.Second, "delay between generated samples")
		anomalyRate = flag.Float64("anomaly-rate", 0.15, "probability of injecting an attack archetype per sample")
		trainSize   = flag.Int("train-samples", 2000, "synthetic training corpus size when no pretrained model loads")
		trainEpochs = flag.Int("train-epochs", 30, "training epochs when fitting on synthetic data")
		logJSON     = flag.Bool("log-json", false, "emit JSON logs")
	)
	flag.Parse()

	logCfg := logging.DefaultConfig()
	if *logJSON {
		logCfg.Format = "json"
	}
	logging.Init(logCfg)
	log := logging.EngineLogger()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	model := ml.NewAutoencoder(nil)
	defer model.Dispose()

	stats, meta := loadAssets(ctx, *assetPath, model)

	detector := ml.NewDetector(nil, stats, model)
	detector.ApplyMetadata(meta)

	gen := telemetry.NewGenerator(nil)

	if !model.Ready() {
		log.Info("no pretrained model, fitting on synthetic corpus",
			"samples", *trainSize, "epochs", *trainEpochs)
		corpus := gen.GenerateTrainingSet(*trainSize)
		if err := detector.Fit(ctx, corpus, *trainEpochs); err != nil {
			log.Warn("training failed, continuing on statistical fallback", "error", err)
		}
	}

	m := detector.Metrics()
	metrics.SetModelState(m.IsReady, m.TrainingSamples)
	log.Info("detector initialized",
		"ready", m.IsReady, "threshold", m.Threshold,
		"trainingSamples", m.TrainingSamples)

	go serveMetrics(*listenAddr, log)

	runLoop(ctx, detector, gen, *interval, *anomalyRate, log)
	log.Info("shutting down")
}

// loadAssets fetches pretrained assets when a base path is configured.
// Every failure is soft: the engine continues with defaults.
func loadAssets(ctx context.Context, basePath string, model *ml.Autoencoder) (*ml.StatsStore, *ml.ModelMetadataDocument) {
	log := logging.AssetLogger()
	if basePath == "" {
		return ml.NewStatsStore(), nil
	}

	store := assets.NewStore(assets.DefaultConfig(basePath))
	bundle, err := store.Load(ctx)
	if err != nil {
		log.Warn("asset load aborted", "error", err)
		return ml.NewStatsStore(), nil
	}

	stats := ml.NewStatsStore()
	if bundle.Normalization != nil {
		stats = ml.NewStatsStoreWithOverrides(bundle.Normalization.Stats)
	}

	if bundle.Weights != nil {
		if model.Load(bundle.Weights, bundle.Metadata) {
			log.Info("pretrained model loaded")
		} else {
			log.Warn("pretrained weights rejected, model will be fitted")
		}
	}

	return stats, bundle.Metadata
}

func serveMetrics(addr string, log *logging.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	log.Info("metrics endpoint listening", "addr", addr)
	if err := http.ListenAndServe(addr, mux); err != nil {
		log.Error("metrics endpoint failed", "error", err)
	}
}

func runLoop(ctx context.Context, detector *ml.Detector, gen *telemetry.Generator, interval time.Duration, anomalyRate float64, log *logging.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	sampled := 0
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		inject := float64(sampled%100)/100.0 < anomalyRate
		sampled++

		v := gen.Generate(inject)
		result := detector.Detect(v)

		if result.IsAnomaly {
			log.Warn("anomaly detected",
				"score", result.Score,
				"classification", result.Classification,
				"method", result.DetectionMethod,
				"attackType", result.AttackType,
				"reconstructionError", result.ReconstructionError,
				"confidence", result.Confidence)
		} else {
			log.Debug("sample scored",
				"score", result.Score,
				"classification", result.Classification,
				"method", result.DetectionMethod)
		}
	}
}

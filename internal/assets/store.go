// Package assets fetches the optional pretrained model assets: the model
// metadata document, the normalization statistics document, and the weights
// document. Assets may live on the filesystem or behind an HTTP endpoint.
//
// Every fetch is bounded by a timeout and a small number of retries with
// exponential backoff; a timeout is treated identically to any other fetch
// failure. Failures are never fatal to the engine: callers substitute
// built-in defaults and continue in the fallback-capable state.
package assets

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/sentinelgrid/anomaly-engine/internal/logging"
	"github.com/sentinelgrid/anomaly-engine/internal/metrics"
	"github.com/sentinelgrid/anomaly-engine/internal/ml"
)

// Canonical asset file names under the base path.
const (
	MetadataAsset      = "model_metadata.json"
	NormalizationAsset = "normalization_stats.json"
	WeightsAsset       = "model_weights.json"
)

// Config holds asset store configuration.
type Config struct {
	// BasePath is a directory or an HTTP(S) base URL holding the assets
	BasePath string
	// FetchTimeout bounds a single fetch attempt
	FetchTimeout time.Duration
	// MaxRetries is the number of retries after the first attempt
	MaxRetries int
	// InitialBackoff is the delay before the first retry
	InitialBackoff time.Duration
	// MaxBackoff caps the exponential backoff
	MaxBackoff time.Duration
	// BackoffFactor multiplies the backoff after each retry
	BackoffFactor float64
}

// DefaultConfig returns sensible defaults.
func DefaultConfig(basePath string) *Config {
	return &Config{
		BasePath:       basePath,
		FetchTimeout:   10 * time.Second,
		MaxRetries:     3,
		InitialBackoff: 250 * time.Millisecond,
		MaxBackoff:     2 * time.Second,
		BackoffFactor:  2.0,
	}
}

// FetchError is a detailed asset fetch failure.
type FetchError struct {
	Asset     string
	Location  string
	Cause     error
	Retryable bool
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch %s from %s failed: %v", e.Asset, e.Location, e.Cause)
}

func (e *FetchError) Unwrap() error { return e.Cause }

// Bundle is the set of assets a load attempt produced. Any field may be
// nil when the corresponding document was unavailable or malformed.
type Bundle struct {
	Metadata      *ml.ModelMetadataDocument
	Normalization *ml.NormalizationDocument
	Weights       *ml.WeightsDocument
}

// Store fetches model assets from a base path.
type Store struct {
	config *Config
	client *http.Client
	log    *logging.Logger
}

// NewStore creates an asset store.
func NewStore(config *Config) *Store {
	if config == nil {
		config = DefaultConfig("")
	}
	return &Store{
		config: config,
		client: &http.Client{Timeout: config.FetchTimeout},
		log:    logging.AssetLogger(),
	}
}

// Load fetches all three asset documents. Missing or malformed documents
// are logged and returned as nil fields; Load itself only fails when the
// context is cancelled.
func (s *Store) Load(ctx context.Context) (*Bundle, error) {
	bundle := &Bundle{}

	var meta ml.ModelMetadataDocument
	if err := s.fetchJSON(ctx, MetadataAsset, &meta); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		s.log.Warn("model metadata unavailable, defaults apply", "error", err)
	} else {
		bundle.Metadata = &meta
	}

	var norm ml.NormalizationDocument
	if err := s.fetchJSON(ctx, NormalizationAsset, &norm); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		s.log.Warn("normalization statistics unavailable, defaults apply", "error", err)
	} else {
		bundle.Normalization = &norm
	}

	var weights ml.WeightsDocument
	if err := s.fetchJSON(ctx, WeightsAsset, &weights); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		s.log.Warn("pretrained weights unavailable", "error", err)
	} else {
		bundle.Weights = &weights
	}

	return bundle, nil
}

// fetchJSON retrieves and decodes one asset with retries and backoff.
func (s *Store) fetchJSON(ctx context.Context, name string, out any) error {
	if s.config.BasePath == "" {
		return &FetchError{Asset: name, Location: "(unset)", Cause: errors.New("no base path configured")}
	}

	backoff := s.config.InitialBackoff
	var lastErr error

	for attempt := 0; attempt <= s.config.MaxRetries; attempt++ {
		data, err := s.fetchOnce(ctx, name)
		if err == nil {
			if err := json.Unmarshal(data, out); err != nil {
				// Malformed content will not improve on retry.
				return &FetchError{Asset: name, Location: s.config.BasePath, Cause: err}
			}
			return nil
		}
		lastErr = err

		var fe *FetchError
		if errors.As(err, &fe) && !fe.Retryable {
			break
		}
		if attempt == s.config.MaxRetries {
			break
		}

		select {
		case <-time.After(backoff):
			backoff = time.Duration(float64(backoff) * s.config.BackoffFactor)
			if backoff > s.config.MaxBackoff {
				backoff = s.config.MaxBackoff
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	metrics.RecordAssetFetchFailure(name)
	return lastErr
}

func (s *Store) fetchOnce(ctx context.Context, name string) ([]byte, error) {
	if isHTTP(s.config.BasePath) {
		return s.fetchHTTP(ctx, name)
	}
	return s.fetchFile(name)
}

func (s *Store) fetchFile(name string) ([]byte, error) {
	path := filepath.Join(s.config.BasePath, name)
	data, err := os.ReadFile(path)
	if err != nil {
		// A missing file stays missing; do not retry.
		return nil, &FetchError{Asset: name, Location: path, Cause: err, Retryable: false}
	}
	return data, nil
}

func (s *Store) fetchHTTP(ctx context.Context, name string) ([]byte, error) {
	url := strings.TrimSuffix(s.config.BasePath, "/") + "/" + name

	reqCtx, cancel := context.WithTimeout(ctx, s.config.FetchTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, url, nil)
	if err != nil {
		return nil, &FetchError{Asset: name, Location: url, Cause: err, Retryable: false}
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, &FetchError{Asset: name, Location: url, Cause: err, Retryable: true}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &FetchError{
			Asset:     name,
			Location:  url,
			Cause:     fmt.Errorf("unexpected status %d", resp.StatusCode),
			Retryable: resp.StatusCode >= 500,
		}
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &FetchError{Asset: name, Location: url, Cause: err, Retryable: true}
	}
	return data, nil
}

func isHTTP(base string) bool {
	return strings.HasPrefix(base, "http://") || strings.HasPrefix(base, "https://")
}

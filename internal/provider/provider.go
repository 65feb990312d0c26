// Package provider holds one adapter per remote backend. Each generation
// adapter knows how to build its backend's positional job payload, run the
// two-phase submit/result exchange and normalize the backend-specific
// response into a Result. Differences between backends are confined to
// endpoint paths, payload ordering, default step counts and seed mapping.
package provider

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/pyiy/zimage/internal/apierr"
	"github.com/pyiy/zimage/internal/model"
)

// Result is the normalized outcome of a generation job.
type Result struct {
	URL           string
	Seed          int64
	Steps         int
	GuidanceScale float64
	Provider      string
}

// Generator is implemented by every generation backend adapter.
type Generator interface {
	// Name is the logical model identifier the dispatch facade maps on.
	Name() string
	// SeedManagedByBackend reports whether the backend draws its own seed
	// when the request leaves it unset and reports the realized value back.
	SeedManagedByBackend() bool
	Generate(ctx context.Context, credential string, req model.GenerationRequest) (*Result, error)
}

// urlPayload is the first element of every backend's complete payload.
type urlPayload struct {
	URL string `json:"url"`
}

// resultURL extracts the artifact URL from the first positional element of a
// complete payload.
func resultURL(result []json.RawMessage) (string, error) {
	if len(result) == 0 {
		return "", apierr.New(apierr.KindInvalidResponse, "complete payload is empty")
	}
	var first urlPayload
	if err := json.Unmarshal(result[0], &first); err != nil {
		return "", apierr.Wrap(apierr.KindInvalidResponse, "complete payload has no url object", err)
	}
	if first.URL == "" {
		return "", apierr.New(apierr.KindInvalidResponse, "complete payload carried an empty url")
	}
	return first.URL, nil
}

// seedValue dereferences an optional request seed.
func seedValue(seed *int64) int64 {
	if seed == nil {
		return 0
	}
	return *seed
}

// guidanceOrDefault picks the request's guidance scale or the backend default.
func guidanceOrDefault(guidance *float64, fallback float64) float64 {
	if guidance == nil {
		return fallback
	}
	return *guidance
}

// stepsOrDefault picks the request's step count or the backend default.
func stepsOrDefault(steps, fallback int) int {
	if steps <= 0 {
		return fallback
	}
	return steps
}

// dimensionsFor resolves the pixel size for a request.
func dimensionsFor(req model.GenerationRequest) (model.Dimensions, error) {
	dims, err := model.ResolveDimensions(req.AspectRatio, req.EnableHD)
	if err != nil {
		return model.Dimensions{}, fmt.Errorf("cannot size request: %w", err)
	}
	return dims, nil
}

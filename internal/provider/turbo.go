package provider

import (
	"context"
	"encoding/json"
	"log/slog"
	"strconv"
	"strings"

	"github.com/pyiy/zimage/internal/gradio"
	"github.com/pyiy/zimage/internal/model"
)

const (
	defaultTurboEndpoint = "https://z-image-turbo.hf.space/call/generate"
	turboDefaultSteps    = 8
	turboDefaultGuidance = 3.5

	// realizedSeedPrefix is the fixed prefix of the human-readable seed
	// string in the turbo backend's second result element, e.g. "Seed: 42".
	realizedSeedPrefix = "Seed: "
)

// TurboAdapter is the default backend. It is the one adapter that lets the
// backend draw the seed when the caller omits one, reporting the realized
// value back inside a human-readable string.
type TurboAdapter struct {
	client   *gradio.Client
	endpoint string
	logger   *slog.Logger
}

// NewTurboAdapter creates the turbo adapter. An empty endpoint keeps the
// built-in default.
func NewTurboAdapter(client *gradio.Client, endpoint string, logger *slog.Logger) *TurboAdapter {
	if endpoint == "" {
		endpoint = defaultTurboEndpoint
	}
	return &TurboAdapter{
		client:   client,
		endpoint: endpoint,
		logger:   logger.With("component", "provider", "backend", "z-image-turbo"),
	}
}

func (a *TurboAdapter) Name() string { return "z-image-turbo" }

func (a *TurboAdapter) SeedManagedByBackend() bool { return true }

func (a *TurboAdapter) Generate(ctx context.Context, credential string, req model.GenerationRequest) (*Result, error) {
	dims, err := dimensionsFor(req)
	if err != nil {
		return nil, err
	}

	steps := stepsOrDefault(req.Steps, turboDefaultSteps)
	guidance := guidanceOrDefault(req.GuidanceScale, turboDefaultGuidance)
	randomizeSeed := req.Seed == nil

	// Positional ordering is the turbo backend's contract: prompt, height,
	// width, steps, guidance, seed, randomize flag.
	data := []any{req.Prompt, dims.Height, dims.Width, steps, guidance, seedValue(req.Seed), randomizeSeed}

	eventID, err := a.client.Submit(ctx, a.endpoint, credential, data)
	if err != nil {
		return nil, err
	}
	result, err := a.client.Result(ctx, a.endpoint, credential, eventID)
	if err != nil {
		return nil, err
	}

	url, err := resultURL(result)
	if err != nil {
		return nil, err
	}

	seed := seedValue(req.Seed)
	if realized, ok := a.realizedSeed(result); ok {
		seed = realized
	}

	return &Result{
		URL:           url,
		Seed:          seed,
		Steps:         steps,
		GuidanceScale: guidance,
		Provider:      a.Name(),
	}, nil
}

// realizedSeed recovers the backend-chosen seed from the second result
// element by stripping the fixed prefix from its human-readable string.
func (a *TurboAdapter) realizedSeed(result []json.RawMessage) (int64, bool) {
	if len(result) < 2 {
		return 0, false
	}
	var text string
	if err := json.Unmarshal(result[1], &text); err != nil {
		return 0, false
	}
	trimmed := strings.TrimSpace(strings.TrimPrefix(text, realizedSeedPrefix))
	seed, err := strconv.ParseInt(trimmed, 10, 64)
	if err != nil {
		a.logger.Warn("Could not parse realized seed from backend string", "value", text)
		return 0, false
	}
	return seed, true
}

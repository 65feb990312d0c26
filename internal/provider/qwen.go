package provider

import (
	"context"
	"log/slog"

	"github.com/pyiy/zimage/internal/gradio"
	"github.com/pyiy/zimage/internal/model"
)

const (
	defaultQwenEndpoint = "https://qwen-image.hf.space/call/generate"
	qwenDefaultSteps    = 30
	qwenDefaultGuidance = 4.0
)

// QwenAdapter drives the Qwen image backend.
type QwenAdapter struct {
	client   *gradio.Client
	endpoint string
	logger   *slog.Logger
}

func NewQwenAdapter(client *gradio.Client, endpoint string, logger *slog.Logger) *QwenAdapter {
	if endpoint == "" {
		endpoint = defaultQwenEndpoint
	}
	return &QwenAdapter{
		client:   client,
		endpoint: endpoint,
		logger:   logger.With("component", "provider", "backend", "qwen-image"),
	}
}

func (a *QwenAdapter) Name() string { return "qwen-image" }

func (a *QwenAdapter) SeedManagedByBackend() bool { return false }

func (a *QwenAdapter) Generate(ctx context.Context, credential string, req model.GenerationRequest) (*Result, error) {
	dims, err := dimensionsFor(req)
	if err != nil {
		return nil, err
	}

	steps := stepsOrDefault(req.Steps, qwenDefaultSteps)
	guidance := guidanceOrDefault(req.GuidanceScale, qwenDefaultGuidance)
	seed := seedValue(req.Seed)

	// Positional ordering: prompt, width, height, steps, guidance, seed.
	data := []any{req.Prompt, dims.Width, dims.Height, steps, guidance, seed}

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

	return &Result{
		URL:           url,
		Seed:          seed,
		Steps:         steps,
		GuidanceScale: guidance,
		Provider:      a.Name(),
	}, nil
}

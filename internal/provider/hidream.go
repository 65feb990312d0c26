package provider

import (
	"context"
	"log/slog"

	"github.com/pyiy/zimage/internal/gradio"
	"github.com/pyiy/zimage/internal/model"
)

const (
	defaultHiDreamEndpoint = "https://hidream-full.hf.space/call/generate"
	hiDreamDefaultSteps    = 28
)

// HiDreamAdapter drives the HiDream backend.
type HiDreamAdapter struct {
	client   *gradio.Client
	endpoint string
	logger   *slog.Logger
}

func NewHiDreamAdapter(client *gradio.Client, endpoint string, logger *slog.Logger) *HiDreamAdapter {
	if endpoint == "" {
		endpoint = defaultHiDreamEndpoint
	}
	return &HiDreamAdapter{
		client:   client,
		endpoint: endpoint,
		logger:   logger.With("component", "provider", "backend", "hidream"),
	}
}

func (a *HiDreamAdapter) Name() string { return "hidream" }

func (a *HiDreamAdapter) SeedManagedByBackend() bool { return false }

func (a *HiDreamAdapter) Generate(ctx context.Context, credential string, req model.GenerationRequest) (*Result, error) {
	dims, err := dimensionsFor(req)
	if err != nil {
		return nil, err
	}

	steps := stepsOrDefault(req.Steps, hiDreamDefaultSteps)
	seed := seedValue(req.Seed)

	// Positional ordering: prompt, seed, width, height, steps.
	data := []any{req.Prompt, seed, dims.Width, dims.Height, steps}

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
		URL:      url,
		Seed:     seed,
		Steps:    steps,
		Provider: a.Name(),
	}, nil
}

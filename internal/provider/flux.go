package provider

import (
	"context"
	"log/slog"

	"github.com/pyiy/zimage/internal/gradio"
	"github.com/pyiy/zimage/internal/model"
)

const (
	defaultFluxEndpoint = "https://flux-1-schnell.hf.space/call/infer"
	fluxDefaultSteps    = 4
)

// FluxAdapter drives the distilled few-step backend. The seed sent at
// submission time is the seed of the artifact; the backend does not report
// one back.
type FluxAdapter struct {
	client   *gradio.Client
	endpoint string
	logger   *slog.Logger
}

func NewFluxAdapter(client *gradio.Client, endpoint string, logger *slog.Logger) *FluxAdapter {
	if endpoint == "" {
		endpoint = defaultFluxEndpoint
	}
	return &FluxAdapter{
		client:   client,
		endpoint: endpoint,
		logger:   logger.With("component", "provider", "backend", "flux-schnell"),
	}
}

func (a *FluxAdapter) Name() string { return "flux-schnell" }

func (a *FluxAdapter) SeedManagedByBackend() bool { return false }

func (a *FluxAdapter) Generate(ctx context.Context, credential string, req model.GenerationRequest) (*Result, error) {
	dims, err := dimensionsFor(req)
	if err != nil {
		return nil, err
	}

	steps := stepsOrDefault(req.Steps, fluxDefaultSteps)
	seed := seedValue(req.Seed)

	// Positional ordering: prompt, seed, randomize flag, width, height, steps.
	data := []any{req.Prompt, seed, false, dims.Width, dims.Height, steps}

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

package provider

import (
	"context"
	"log/slog"

	"github.com/pyiy/zimage/internal/apierr"
	"github.com/pyiy/zimage/internal/gradio"
)

const (
	defaultUpscaleEndpoint = "https://real-esrgan-upscale.hf.space/call/predict"
	upscaleModelName       = "RealESRGAN_x4plus"
	upscaleScaleFactor     = 4
	upscaleFaceEnhance     = false
	upscaleTileSize        = 0
)

// Upscaler drives the upscale backend. It follows the same two-phase job
// protocol as the generation adapters; every internal failure is surfaced as
// upscale-failed, while quota signals stay classifiable through the wrap.
type Upscaler struct {
	client   *gradio.Client
	endpoint string
	logger   *slog.Logger
}

func NewUpscaler(client *gradio.Client, endpoint string, logger *slog.Logger) *Upscaler {
	if endpoint == "" {
		endpoint = defaultUpscaleEndpoint
	}
	return &Upscaler{
		client:   client,
		endpoint: endpoint,
		logger:   logger.With("component", "provider", "backend", "upscale"),
	}
}

// Upscale submits the source image URL and returns the URL of the upscaled
// artifact.
func (u *Upscaler) Upscale(ctx context.Context, credential, sourceURL string) (string, error) {
	data := []any{sourceURL, upscaleModelName, upscaleScaleFactor, upscaleFaceEnhance, upscaleTileSize}

	eventID, err := u.client.Submit(ctx, u.endpoint, credential, data)
	if err != nil {
		return "", apierr.Wrap(apierr.KindUpscaleFailed, "job submission", err)
	}
	result, err := u.client.Result(ctx, u.endpoint, credential, eventID)
	if err != nil {
		return "", apierr.Wrap(apierr.KindUpscaleFailed, "job result", err)
	}
	url, err := resultURL(result)
	if err != nil {
		return "", apierr.Wrap(apierr.KindUpscaleFailed, "result parse", err)
	}
	return url, nil
}

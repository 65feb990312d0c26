// Package dispatch is the facade the API layer calls. It resolves a logical
// model identifier to exactly one provider adapter and runs it through the
// retry orchestrator, stamping every artifact with a fresh identifier and a
// capture timestamp.
package dispatch

import (
	"context"
	"log/slog"
	"math/rand"
	"time"

	"github.com/google/uuid"

	"github.com/pyiy/zimage/internal/ledger"
	"github.com/pyiy/zimage/internal/model"
	"github.com/pyiy/zimage/internal/provider"
	"github.com/pyiy/zimage/internal/retry"
)

// Service wires the adapters, the credential ledger and the retry loop.
type Service struct {
	ledger         *ledger.Ledger
	adapters       map[string]provider.Generator
	defaultAdapter provider.Generator
	upscaler       *provider.Upscaler
	optimizer      *provider.Optimizer
	logger         *slog.Logger
	now            func() time.Time
	randomSeed     func() int64
}

// New creates the dispatch service. The first generator is the default
// adapter used when a model matches none of the named ones.
func New(lg *ledger.Ledger, generators []provider.Generator, upscaler *provider.Upscaler, optimizer *provider.Optimizer, logger *slog.Logger) *Service {
	adapters := make(map[string]provider.Generator, len(generators))
	for _, g := range generators {
		adapters[g.Name()] = g
	}
	var defaultAdapter provider.Generator
	if len(generators) > 0 {
		defaultAdapter = generators[0]
	}
	return &Service{
		ledger:         lg,
		adapters:       adapters,
		defaultAdapter: defaultAdapter,
		upscaler:       upscaler,
		optimizer:      optimizer,
		logger:         logger.With("component", "dispatch"),
		now:            time.Now,
		// Seeds are 31-bit unsigned values, matching what the backends accept.
		randomSeed: func() int64 { return rand.Int63n(1 << 31) },
	}
}

// adapterFor resolves a model identifier, falling back to the default.
func (s *Service) adapterFor(modelID string) provider.Generator {
	if adapter, ok := s.adapters[modelID]; ok {
		return adapter
	}
	return s.defaultAdapter
}

// Generate runs one generation job end to end.
func (s *Service) Generate(ctx context.Context, req model.GenerationRequest) (*model.GeneratedImage, error) {
	adapter := s.adapterFor(req.Model)

	// Draw the seed up front so every retry attempt submits the same one.
	// The backend-managed adapter picks its own instead.
	if req.Seed == nil && !adapter.SeedManagedByBackend() {
		seed := s.randomSeed()
		req.Seed = &seed
	}

	started := s.now()
	s.logger.Info("Dispatching generation", "model", adapter.Name(), "aspect_ratio", req.AspectRatio, "hd", req.EnableHD)

	result, err := retry.Do(ctx, s.ledger, s.logger, func(ctx context.Context, credential string) (*provider.Result, error) {
		return adapter.Generate(ctx, credential, req)
	})
	if err != nil {
		return nil, err
	}

	img := &model.GeneratedImage{
		ID:            uuid.NewString(),
		URL:           result.URL,
		Model:         adapter.Name(),
		Prompt:        req.Prompt,
		AspectRatio:   req.AspectRatio,
		Timestamp:     s.now(),
		Seed:          result.Seed,
		Steps:         result.Steps,
		Duration:      s.now().Sub(started).Seconds(),
		Provider:      result.Provider,
		GuidanceScale: result.GuidanceScale,
	}
	s.logger.Info("Generation complete", "id", img.ID, "model", img.Model, "duration_s", img.Duration)
	return img, nil
}

// Upscale produces an upscaled artifact URL for an existing image.
func (s *Service) Upscale(ctx context.Context, sourceURL string) (string, error) {
	s.logger.Info("Dispatching upscale", "source", sourceURL)
	return retry.Do(ctx, s.ledger, s.logger, func(ctx context.Context, credential string) (string, error) {
		return s.upscaler.Upscale(ctx, credential, sourceURL)
	})
}

// OptimizePrompt rewrites a prompt through the optimization backend.
func (s *Service) OptimizePrompt(ctx context.Context, prompt, language string) (string, error) {
	return retry.Do(ctx, s.ledger, s.logger, func(ctx context.Context, credential string) (string, error) {
		return s.optimizer.Optimize(ctx, credential, prompt, language)
	})
}

package dispatch

import (
	"context"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pyiy/zimage/internal/apierr"
	"github.com/pyiy/zimage/internal/ledger"
	"github.com/pyiy/zimage/internal/model"
	"github.com/pyiy/zimage/internal/provider"
	"github.com/pyiy/zimage/internal/store"
)

// stubGenerator records the requests it receives.
type stubGenerator struct {
	name        string
	backendSeed bool
	lastReq     model.GenerationRequest
	lastCred    string
	result      *provider.Result
	err         error
}

func (g *stubGenerator) Name() string               { return g.name }
func (g *stubGenerator) SeedManagedByBackend() bool { return g.backendSeed }
func (g *stubGenerator) Generate(_ context.Context, credential string, req model.GenerationRequest) (*provider.Result, error) {
	g.lastReq = req
	g.lastCred = credential
	if g.err != nil {
		return nil, g.err
	}
	return g.result, nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, nil))
}

func newService(t *testing.T, credentials string, generators ...provider.Generator) (*Service, *ledger.Ledger) {
	t.Helper()
	lg := ledger.New(store.NewMemoryStore(), testLogger())
	if credentials != "" {
		require.NoError(t, lg.SetCredentials(credentials))
	}
	return New(lg, generators, nil, nil, testLogger()), lg
}

func TestGenerate(t *testing.T) {
	t.Run("stamps id and timestamp", func(t *testing.T) {
		turbo := &stubGenerator{
			name:        "z-image-turbo",
			backendSeed: true,
			result:      &provider.Result{URL: "https://cdn/x.png", Seed: 11, Steps: 8, Provider: "z-image-turbo"},
		}
		svc, _ := newService(t, "tok_a", turbo)
		fixed := time.Date(2026, 8, 26, 10, 0, 0, 0, time.UTC)
		svc.now = func() time.Time { return fixed }

		img, err := svc.Generate(context.Background(), model.GenerationRequest{
			Model:       "z-image-turbo",
			Prompt:      "a fox",
			AspectRatio: "16:9",
		})
		require.NoError(t, err)
		assert.NoError(t, uuid.Validate(img.ID))
		assert.Equal(t, fixed, img.Timestamp)
		assert.Equal(t, "https://cdn/x.png", img.URL)
		assert.Equal(t, int64(11), img.Seed)
		assert.Equal(t, "tok_a", turbo.lastCred)
	})

	t.Run("unknown model falls back to the default adapter", func(t *testing.T) {
		turbo := &stubGenerator{name: "z-image-turbo", backendSeed: true, result: &provider.Result{URL: "u", Provider: "z-image-turbo"}}
		flux := &stubGenerator{name: "flux-schnell", result: &provider.Result{URL: "u", Provider: "flux-schnell"}}
		svc, _ := newService(t, "", turbo, flux)

		img, err := svc.Generate(context.Background(), model.GenerationRequest{
			Model:       "some-future-model",
			Prompt:      "p",
			AspectRatio: "1:1",
		})
		require.NoError(t, err)
		assert.Equal(t, "z-image-turbo", img.Model)
	})

	t.Run("draws a 31-bit seed when unset", func(t *testing.T) {
		flux := &stubGenerator{name: "flux-schnell", result: &provider.Result{URL: "u", Seed: 77, Provider: "flux-schnell"}}
		svc, _ := newService(t, "", flux)
		svc.randomSeed = func() int64 { return 77 }

		_, err := svc.Generate(context.Background(), model.GenerationRequest{
			Model:       "flux-schnell",
			Prompt:      "p",
			AspectRatio: "1:1",
		})
		require.NoError(t, err)
		require.NotNil(t, flux.lastReq.Seed)
		assert.Equal(t, int64(77), *flux.lastReq.Seed)
	})

	t.Run("backend-managed adapter receives no seed", func(t *testing.T) {
		turbo := &stubGenerator{name: "z-image-turbo", backendSeed: true, result: &provider.Result{URL: "u", Provider: "z-image-turbo"}}
		svc, _ := newService(t, "", turbo)

		_, err := svc.Generate(context.Background(), model.GenerationRequest{
			Model:       "z-image-turbo",
			Prompt:      "p",
			AspectRatio: "1:1",
		})
		require.NoError(t, err)
		assert.Nil(t, turbo.lastReq.Seed)
	})

	t.Run("caller seed is preserved", func(t *testing.T) {
		seed := int64(424242)
		flux := &stubGenerator{name: "flux-schnell", result: &provider.Result{URL: "u", Seed: seed, Provider: "flux-schnell"}}
		svc, _ := newService(t, "", flux)

		_, err := svc.Generate(context.Background(), model.GenerationRequest{
			Model:       "flux-schnell",
			Prompt:      "p",
			AspectRatio: "1:1",
			Seed:        &seed,
		})
		require.NoError(t, err)
		require.NotNil(t, flux.lastReq.Seed)
		assert.Equal(t, seed, *flux.lastReq.Seed)
	})

	t.Run("quota error rotates credentials", func(t *testing.T) {
		// First credential quota-fails, second succeeds.
		calls := 0
		rotating := &countingGenerator{name: "z-image-turbo", succeedOn: 2, calls: &calls}
		svc, lg := newService(t, "tok_a,tok_b", rotating)

		img, err := svc.Generate(context.Background(), model.GenerationRequest{
			Model:       "z-image-turbo",
			Prompt:      "p",
			AspectRatio: "1:1",
		})
		require.NoError(t, err)
		assert.Equal(t, 2, calls)
		assert.NotEmpty(t, img.ID)

		stats, err := lg.Stats()
		require.NoError(t, err)
		assert.Equal(t, 1, stats.Exhausted)
	})
}

// countingGenerator fails with quota until the succeedOn-th call.
type countingGenerator struct {
	name      string
	succeedOn int
	calls     *int
}

func (g *countingGenerator) Name() string               { return g.name }
func (g *countingGenerator) SeedManagedByBackend() bool { return true }
func (g *countingGenerator) Generate(ctx context.Context, credential string, req model.GenerationRequest) (*provider.Result, error) {
	*g.calls++
	if *g.calls < g.succeedOn {
		return nil, apierr.New(apierr.KindQuotaExhausted, "429")
	}
	return &provider.Result{URL: "https://cdn/ok.png", Provider: g.name}, nil
}

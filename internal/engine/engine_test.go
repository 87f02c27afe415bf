package engine

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"studio/internal/domain"
	"studio/internal/infra"
)

type lookupFunc func(ctx context.Context, provider string) (string, error)

func (f lookupFunc) Token(ctx context.Context, provider string) (string, error) {
	return f(ctx, provider)
}

func offlineConfig(t *testing.T) *infra.Config {
	t.Helper()
	return &infra.Config{
		Storage: infra.StorageConfig{
			Driver:  infra.StorageFilesystem,
			Path:    t.TempDir(),
			BaseURL: "http://localhost:8080/static",
		},
		Providers: infra.ProvidersConfig{Text: infra.TextProviderGemini, Image: infra.ImageProviderGemini},
		Pipeline: infra.PipelineConfig{
			Budget:           5 * time.Second,
			AttemptTimeout:   time.Second,
			RetryAttempts:    2,
			RetryBaseDelay:   time.Millisecond,
			RetryMaxDelay:    2 * time.Millisecond,
			BreakerThreshold: 5,
			BreakerCooldown:  time.Minute,
			QueueCapacity:    2,
		},
	}
}

func TestNewFallsBackToSyntheticAdapters(t *testing.T) {
	cfg := offlineConfig(t)
	var asked []string
	keys := lookupFunc(func(ctx context.Context, provider string) (string, error) {
		asked = append(asked, provider)
		if provider == "tts" {
			return "", errors.New("db down")
		}
		return "", nil
	})

	e, err := New(context.Background(), cfg, keys, zerolog.Nop())
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	defer e.Close()

	if got := e.Adapters.Enhancer.Name(); got != "static-text" {
		t.Fatalf("enhancer = %q, want static-text", got)
	}
	if got := e.Adapters.Image.Name(); got != "synthetic-image" {
		t.Fatalf("image = %q, want synthetic-image", got)
	}
	if got := e.Adapters.Store.Name(); got != "filesystem" {
		t.Fatalf("store = %q", got)
	}
	if e.StaticDir != cfg.Storage.Path {
		t.Fatalf("StaticDir = %q, want %q", e.StaticDir, cfg.Storage.Path)
	}
	if len(asked) != 4 {
		t.Fatalf("expected a lookup per provider, got %v", asked)
	}
	if e.Sequencer.Stats().Capacity != 2 {
		t.Fatalf("capacity = %d", e.Sequencer.Stats().Capacity)
	}
}

func TestOfflineEngineCompletesAGeneration(t *testing.T) {
	e, err := New(context.Background(), offlineConfig(t), nil, zerolog.Nop())
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	defer e.Close()

	req := domain.NewGenerationRequest(domain.RequestInput{
		Category:       "tea-stall",
		RawMessage:     "Masala chai 10 rupees, open 6am to 10pm near the bus stand",
		TargetLanguage: "hindi",
	}, time.Now())

	res, err := e.Sequencer.Submit(context.Background(), req, nil)
	if err != nil {
		t.Fatalf("Submit returned error: %v", err)
	}
	if res.Status != domain.StatusCompleted {
		t.Fatalf("status = %s, errors = %+v", res.Status, res.Errors)
	}
	if len(res.MediaAssets) != 3 {
		t.Fatalf("expected 3 assets, got %d", len(res.MediaAssets))
	}
}

func TestPolicyConversion(t *testing.T) {
	p := Policy(infra.PipelineConfig{RetryAttempts: 4, RetryBaseDelay: time.Second, RetryMaxDelay: 8 * time.Second, AttemptTimeout: 30 * time.Second})
	if p.MaxAttempts != 4 || p.BaseDelay != time.Second || p.MaxDelay != 8*time.Second || p.AttemptTimeout != 30*time.Second {
		t.Fatalf("unexpected policy %+v", p)
	}
	if p.Multiplier != 2 {
		t.Fatalf("multiplier = %v", p.Multiplier)
	}
	b := BreakerConfig(infra.PipelineConfig{BreakerThreshold: 3, BreakerCooldown: time.Minute})
	if b.FailureThreshold != 3 || b.Cooldown != time.Minute {
		t.Fatalf("unexpected breaker config %+v", b)
	}
}

// Package engine assembles the generation pipeline from configuration. Both
// the API server and the one-shot CLI build their engine here.
package engine

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"

	"studio/internal/infra"
	"studio/internal/infra/credentials"
	"studio/internal/orchestrator"
	"studio/internal/providers/gemini"
	"studio/internal/providers/image"
	"studio/internal/providers/qwen"
	"studio/internal/providers/speech"
	"studio/internal/providers/text"
	"studio/internal/providers/video"
	"studio/internal/resilience"
	"studio/internal/storage"
)

// Engine owns the process-wide pieces of the generation stack.
type Engine struct {
	Pipeline  *orchestrator.Pipeline
	Sequencer *orchestrator.Sequencer
	Breakers  *resilience.Registry
	Adapters  orchestrator.Adapters
	// StaticDir is the asset directory when the filesystem store is used.
	StaticDir string
	// Assets reads stored objects back for bundle downloads.
	Assets storage.Reader

	closers []func() error
}

// New builds every adapter named by cfg. Providers without an API key fall
// back to their synthetic implementation so the engine always runs. keys may
// be nil.
func New(ctx context.Context, cfg *infra.Config, keys credentials.Lookup, logger zerolog.Logger) (*Engine, error) {
	e := &Engine{}
	log := logger.With().Str("component", "engine").Logger()

	store, err := e.buildStore(ctx, cfg.Storage)
	if err != nil {
		return nil, err
	}

	k := keyring{ctx: ctx, lookup: keys, log: log}
	p := cfg.Providers
	geminiKey := k.get(credentials.ProviderGemini, p.GeminiAPIKey)
	httpClient := &http.Client{Timeout: 2 * cfg.Pipeline.AttemptTimeout}

	enhancer, translator, err := buildText(ctx, p, geminiKey, k.get(credentials.ProviderAnthropic, p.AnthropicAPIKey), httpClient)
	if err != nil {
		e.Close()
		return nil, err
	}

	var gem *gemini.Client
	if geminiKey != "" {
		gem = gemini.NewClient(gemini.Options{
			APIKey:     geminiKey,
			BaseURL:    p.GeminiBaseURL,
			ImageModel: p.GeminiImageModel,
			VideoModel: p.GeminiVideoModel,
			HTTPClient: httpClient,
			Logger:     logger,
		})
	}

	img, err := buildImage(p, gem, k.get(credentials.ProviderQwen, p.QwenAPIKey), httpClient, logger)
	if err != nil {
		e.Close()
		return nil, err
	}

	var vid video.Generator = video.NewSyntheticGenerator()
	if gem != nil {
		vid = video.NewGeminiGenerator(gem)
	}

	var voice speech.Synthesizer = speech.NewSyntheticSynthesizer()
	if ttsKey := k.get(credentials.ProviderTTS, p.TTSAPIKey); ttsKey != "" {
		tts, err := speech.NewCloudTTS(speech.CloudTTSOptions{
			APIKey:     ttsKey,
			BaseURL:    p.TTSBaseURL,
			Gender:     p.TTSGender,
			HTTPClient: httpClient,
			Logger:     logger,
		})
		if err != nil {
			e.Close()
			return nil, fmt.Errorf("engine: speech: %w", err)
		}
		voice = tts
	}

	e.Adapters = orchestrator.Adapters{
		Enhancer:   enhancer,
		Translator: translator,
		Speech:     voice,
		Image:      img,
		Video:      vid,
		Store:      store,
	}
	log.Info().
		Str("enhancer", enhancer.Name()).
		Str("translator", translator.Name()).
		Str("speech", voice.Name()).
		Str("image", img.Name()).
		Str("video", vid.Name()).
		Str("store", store.Name()).
		Msg("adapters configured")

	e.Breakers = resilience.NewRegistry(BreakerConfig(cfg.Pipeline), logger)
	pipeline, err := orchestrator.NewPipeline(orchestrator.PipelineOptions{
		Adapters: e.Adapters,
		Caller:   resilience.NewCaller(e.Breakers, Policy(cfg.Pipeline), logger),
		Budget:   cfg.Pipeline.Budget,
		Logger:   logger,
	})
	if err != nil {
		e.Close()
		return nil, err
	}
	e.Pipeline = pipeline
	e.Sequencer = orchestrator.NewSequencer(pipeline, cfg.Pipeline.QueueCapacity, logger)
	return e, nil
}

// Close releases storage clients.
func (e *Engine) Close() error {
	var errs []error
	for i := len(e.closers) - 1; i >= 0; i-- {
		errs = append(errs, e.closers[i]())
	}
	e.closers = nil
	return errors.Join(errs...)
}

// Policy converts the configured retry settings.
func Policy(p infra.PipelineConfig) resilience.Policy {
	policy := resilience.DefaultPolicy()
	policy.MaxAttempts = p.RetryAttempts
	policy.BaseDelay = p.RetryBaseDelay
	policy.MaxDelay = p.RetryMaxDelay
	policy.AttemptTimeout = p.AttemptTimeout
	return policy
}

// BreakerConfig converts the configured breaker settings.
func BreakerConfig(p infra.PipelineConfig) resilience.BreakerConfig {
	return resilience.BreakerConfig{FailureThreshold: p.BreakerThreshold, Cooldown: p.BreakerCooldown}
}

func (e *Engine) buildStore(ctx context.Context, cfg infra.StorageConfig) (storage.ObjectStore, error) {
	switch cfg.Driver {
	case infra.StorageGCS:
		gcs, err := storage.NewGCSStore(ctx, storage.GCSOptions{
			Bucket:          cfg.Bucket,
			PublicBaseURL:   cfg.BaseURL,
			CredentialsFile: cfg.CredentialsFile,
		})
		if err != nil {
			return nil, fmt.Errorf("engine: storage: %w", err)
		}
		e.closers = append(e.closers, gcs.Close)
		e.Assets = gcs
		return gcs, nil
	default:
		path := cfg.Path
		if abs, err := filepath.Abs(path); err == nil {
			path = abs
		}
		fs, err := storage.NewFileStore(path, cfg.BaseURL)
		if err != nil {
			return nil, fmt.Errorf("engine: storage: %w", err)
		}
		e.StaticDir = fs.BasePath()
		e.Assets = fs
		return fs, nil
	}
}

func buildText(ctx context.Context, p infra.ProvidersConfig, geminiKey, anthropicKey string, hc *http.Client) (text.Enhancer, text.Translator, error) {
	switch {
	case p.Text == infra.TextProviderGemini && geminiKey != "":
		c, err := text.NewGeminiClient(ctx, text.GeminiOptions{
			APIKey:     geminiKey,
			Model:      p.GeminiTextModel,
			BaseURL:    strings.TrimSuffix(strings.TrimSuffix(p.GeminiBaseURL, "/"), "/v1beta"),
			HTTPClient: hc,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("engine: text: %w", err)
		}
		return c, c, nil
	case p.Text == infra.TextProviderAnthropic && anthropicKey != "":
		c, err := text.NewAnthropicClient(text.AnthropicOptions{
			APIKey:     anthropicKey,
			Model:      p.AnthropicModel,
			BaseURL:    p.AnthropicBaseURL,
			HTTPClient: hc,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("engine: text: %w", err)
		}
		return c, c, nil
	}
	return text.NewStaticEnhancer(), text.NewStaticTranslator(), nil
}

func buildImage(p infra.ProvidersConfig, gem *gemini.Client, qwenKey string, hc *http.Client, logger zerolog.Logger) (image.Generator, error) {
	switch {
	case p.Image == infra.ImageProviderQwen && qwenKey != "":
		c, err := qwen.NewClient(qwen.Options{
			APIKey:     qwenKey,
			BaseURL:    p.QwenBaseURL,
			Model:      p.QwenModel,
			HTTPClient: hc,
			Logger:     logger,
		})
		if err != nil {
			return nil, fmt.Errorf("engine: image: %w", err)
		}
		return image.NewQwenGenerator(c), nil
	case gem != nil:
		return image.NewGeminiGenerator(gem), nil
	}
	return image.NewSyntheticGenerator(), nil
}

// keyring resolves provider keys from config first, then the credential
// store. Lookup failures are logged and treated as a missing key.
type keyring struct {
	ctx    context.Context
	lookup credentials.Lookup
	log    zerolog.Logger
}

func (k keyring) get(provider, configured string) string {
	key, err := credentials.Resolve(k.ctx, k.lookup, provider, configured)
	if err != nil {
		k.log.Warn().Err(err).Str("provider", provider).Msg("provider key lookup failed, using synthetic adapter")
		return ""
	}
	return key
}

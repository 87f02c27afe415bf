// Package orchestrator drives one generation request through its stages and
// assembles the outcome into a GenerationResult.
package orchestrator

import (
	"errors"
	"time"

	"studio/internal/providers/image"
	"studio/internal/providers/speech"
	"studio/internal/providers/text"
	"studio/internal/providers/video"
	"studio/internal/resilience"
	"studio/internal/storage"
)

// Adapters bundles the external collaborators of a pipeline.
type Adapters struct {
	Enhancer   text.Enhancer
	Translator text.Translator
	Speech     speech.Synthesizer
	Image      image.Generator
	Video      video.Generator
	Store      storage.ObjectStore
}

// Validate reports the first missing adapter.
func (a Adapters) Validate() error {
	switch {
	case a.Enhancer == nil:
		return errors.New("orchestrator: enhancer is required")
	case a.Translator == nil:
		return errors.New("orchestrator: translator is required")
	case a.Speech == nil:
		return errors.New("orchestrator: speech synthesizer is required")
	case a.Image == nil:
		return errors.New("orchestrator: image generator is required")
	case a.Video == nil:
		return errors.New("orchestrator: video generator is required")
	case a.Store == nil:
		return errors.New("orchestrator: object store is required")
	}
	return nil
}

// Config holds the engine limits.
type Config struct {
	// Budget bounds one workflow from validation to aggregation.
	Budget        time.Duration
	Retry         resilience.Policy
	Breaker       resilience.BreakerConfig
	QueueCapacity int
}

// DefaultConfig keeps a workflow under two minutes end to end.
func DefaultConfig() Config {
	return Config{
		Budget:        110 * time.Second,
		Retry:         resilience.DefaultPolicy(),
		Breaker:       resilience.DefaultBreakerConfig(),
		QueueCapacity: 16,
	}
}

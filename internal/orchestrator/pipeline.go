package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"studio/internal/domain"
	"studio/internal/providers"
	"studio/internal/providers/text"
	"studio/internal/resilience"
)

// PipelineOptions wires a Pipeline. Caller carries the process-wide breaker
// registry; it must outlive individual requests.
type PipelineOptions struct {
	Adapters Adapters
	Caller   *resilience.Caller
	Budget   time.Duration
	Logger   zerolog.Logger
}

// Pipeline runs the generation state machine for one request at a time.
type Pipeline struct {
	adapters   Adapters
	caller     *resilience.Caller
	budget     time.Duration
	aggregator *Aggregator
	log        zerolog.Logger
	now        func() time.Time
}

func NewPipeline(opts PipelineOptions) (*Pipeline, error) {
	if err := opts.Adapters.Validate(); err != nil {
		return nil, err
	}
	if opts.Caller == nil {
		return nil, errors.New("orchestrator: caller is required")
	}
	budget := opts.Budget
	if budget <= 0 {
		budget = DefaultConfig().Budget
	}
	return &Pipeline{
		adapters:   opts.Adapters,
		caller:     opts.Caller,
		budget:     budget,
		aggregator: NewAggregator(),
		log:        opts.Logger,
		now:        time.Now,
	}, nil
}

// Run drives req through validation, enhancement, optional translation and
// the concurrent media stages, then aggregates. It always returns a result;
// failures are reported inside it. The whole run is bounded by the budget:
// stages still pending when it runs out are recorded as timeouts while
// finished stages keep their output.
func (p *Pipeline) Run(ctx context.Context, req domain.GenerationRequest, obs ProgressObserver) *domain.GenerationResult {
	ctx, cancel := context.WithTimeout(ctx, p.budget)
	defer cancel()

	log := p.log.With().Str("request_id", req.ID).Logger()
	em := newEmitter(req.ID, obs, p.now)
	exec := NewStageExecutor(p.caller, log)
	exec.now = p.now

	out := p.execute(ctx, req, exec, em)

	em.emit(StateAggregating, domain.StageAggregation, EventStarted, "assembling result")
	result, err := p.aggregator.Build(req, exec.Steps(), out)
	if err != nil {
		log.Error().Err(err).Msg("aggregation failed")
		result = p.aggregator.Failed(req, exec.Steps(), err)
	}

	final := StateCompleted
	switch result.Status {
	case domain.StatusPartial:
		final = StatePartial
	case domain.StatusFailed:
		final = StateFailed
	}
	em.emit(final, "", EventSucceeded, summarize(result))
	log.Info().
		Str("status", string(result.Status)).
		Int("assets", len(result.MediaAssets)).
		Int("errors", len(result.Errors)).
		Dur("elapsed", result.CompletedAt.Sub(req.CreatedAt)).
		Msg("generation finished")
	return result
}

func (p *Pipeline) execute(ctx context.Context, req domain.GenerationRequest, exec *StageExecutor, em *emitter) Outcome {
	out := Outcome{Content: domain.ProcessedContent{OriginalMessage: req.RawMessage}}

	em.emit(StateValidating, domain.StageValidation, EventStarted, "checking request")
	if err := req.Validate(); err != nil {
		exec.record(domain.StageValidation, validatorName, req.RawMessage, err.Error(), domain.StepFailed)
		em.emit(StateValidating, domain.StageValidation, EventFailed, err.Error())
		out.Validation = err
		return out
	}
	exec.record(domain.StageValidation, validatorName, req.RawMessage, "ok", domain.StepSucceeded)
	em.emit(StateValidating, domain.StageValidation, EventSucceeded, "request accepted")

	enhanced, enh := p.enhance(ctx, req, exec, em)
	out.Enhancement = &enh
	if !enh.OK() {
		return out
	}
	out.Content.EnhancedMessage = enhanced.Text
	caption, voice := enhanced.Text, domain.WorkingLanguage

	if req.NeedsTranslation() {
		translated, tr := p.translate(ctx, req, enhanced.Text, exec, em)
		out.Translation = &tr
		if tr.OK() {
			out.Content.TranslatedMessage = translated.Text
			caption, voice = translated.Text, req.TargetLanguage
		}
	} else {
		em.emit(StateTranslating, domain.StageTranslation, EventSkipped, "target language is English")
	}
	out.Content.FinalCaption = caption

	em.emit(StateGeneratingMedia, "", EventStarted, "generating audio, image and video")
	jobs := p.mediaJobs(req, caption, voice)
	media := make([]MediaOutcome, len(jobs))
	var g errgroup.Group
	for i, job := range jobs {
		g.Go(func() error {
			media[i] = p.runMedia(ctx, exec, em, req, job)
			return nil
		})
	}
	_ = g.Wait()
	out.Media = media
	return out
}

func (p *Pipeline) enhance(ctx context.Context, req domain.GenerationRequest, exec *StageExecutor, em *emitter) (*text.Enhanced, StageResult) {
	enhancer := p.adapters.Enhancer
	em.emit(StateEnhancing, domain.StageEnhancement, EventStarted, "writing marketing copy")

	e, res := runStage(ctx, exec, domain.StageEnhancement, enhancer.Name(), req.RawMessage, func(actx context.Context) (*text.Enhanced, error) {
		e, err := enhancer.Enhance(actx, text.EnhanceRequest{Message: req.RawMessage, Category: req.Category})
		if err != nil {
			return nil, err
		}
		if e == nil || strings.TrimSpace(e.Text) == "" {
			return nil, providers.BadResponse(enhancer.Name(), "empty enhanced text")
		}
		return e, nil
	}, func(e *text.Enhanced) string { return e.Text })
	if !res.OK() {
		em.emit(StateEnhancing, domain.StageEnhancement, EventFailed, res.Err.Message)
		return nil, res
	}
	em.emit(StateEnhancing, domain.StageEnhancement, EventSucceeded, "copy ready")
	return e, res
}

func (p *Pipeline) translate(ctx context.Context, req domain.GenerationRequest, source string, exec *StageExecutor, em *emitter) (*text.Translated, StageResult) {
	translator := p.adapters.Translator
	em.emit(StateTranslating, domain.StageTranslation, EventStarted, fmt.Sprintf("translating to %s", req.TargetLanguage))

	t, res := runStage(ctx, exec, domain.StageTranslation, translator.Name(), source, func(actx context.Context) (*text.Translated, error) {
		t, err := translator.Translate(actx, text.TranslateRequest{Text: source, Language: req.TargetLanguage})
		if err != nil {
			return nil, err
		}
		if t == nil || strings.TrimSpace(t.Text) == "" {
			return nil, providers.BadResponse(translator.Name(), "empty translation")
		}
		return t, nil
	}, func(t *text.Translated) string { return t.Text })
	if !res.OK() {
		em.emit(StateTranslating, domain.StageTranslation, EventFailed, "translation failed, continuing in English: "+res.Err.Message)
		return nil, res
	}
	em.emit(StateTranslating, domain.StageTranslation, EventSucceeded, "translation ready")
	return t, res
}

func summarize(r *domain.GenerationResult) string {
	switch r.Status {
	case domain.StatusCompleted:
		return "all content generated"
	case domain.StatusPartial:
		failed := make([]string, 0, len(r.Errors))
		for _, e := range r.Errors {
			failed = append(failed, e.Stage)
		}
		return "generated with failures in " + strings.Join(failed, ", ")
	default:
		if len(r.Errors) > 0 {
			return "generation failed: " + r.Errors[0].Message
		}
		return "generation failed"
	}
}

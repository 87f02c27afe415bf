package orchestrator

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"studio/internal/domain"
	"studio/internal/resilience"
)

// StageResult is the typed outcome of one stage.
type StageResult struct {
	Stage    string
	Adapter  string
	Output   string
	Attempts int
	Err      *domain.ServiceError
}

// OK reports whether the stage succeeded.
func (r StageResult) OK() bool { return r.Err == nil }

// StageExecutor runs the stages of a single request and owns its step
// history. Steps are appended in completion order.
type StageExecutor struct {
	caller *resilience.Caller
	log    zerolog.Logger
	now    func() time.Time

	mu    sync.Mutex
	steps []domain.ProcessingStep
}

func NewStageExecutor(caller *resilience.Caller, log zerolog.Logger) *StageExecutor {
	return &StageExecutor{caller: caller, log: log, now: time.Now}
}

// Run executes call through the retry policy and the adapter's breaker. It
// appends exactly one step whatever the outcome and, on terminal failure,
// returns exactly one error attributed to stage. call returns the text kept
// as the step's output snippet.
func (e *StageExecutor) Run(ctx context.Context, stage, adapter, input string, call func(context.Context) (string, error)) StageResult {
	_, res := runStage(ctx, e, stage, adapter, input, call, func(s string) string { return s })
	return res
}

// runStage is Run for stages that produce a typed value. The value is the
// one returned by the attempt that succeeded; describe renders it for the
// step history.
func runStage[T any](ctx context.Context, e *StageExecutor, stage, adapter, input string, call func(context.Context) (T, error), describe func(T) string) (T, StageResult) {
	start := e.now()
	v, outcome := resilience.Call(ctx, e.caller, adapter, call)

	res := StageResult{Stage: stage, Adapter: adapter, Attempts: outcome.Attempts}
	step := domain.ProcessingStep{
		Stage:    stage,
		Adapter:  adapter,
		Input:    domain.Snippet(input),
		Attempts: outcome.Attempts,
	}
	if outcome.OK() {
		res.Output = describe(v)
		step.Status = domain.StepSucceeded
		step.Output = domain.Snippet(res.Output)
	} else {
		res.Err = outcome.Err.WithStage(stage)
		step.Status = domain.StepFailed
		step.Output = res.Err.Message
	}
	step.Duration = e.now().Sub(start).Milliseconds()
	e.append(step)

	evt := e.log.Info()
	if !res.OK() {
		evt = e.log.Warn().Str("code", res.Err.Code).Str("error", res.Err.Message)
	}
	evt.Str("stage", stage).
		Str("adapter", adapter).
		Int("attempts", res.Attempts).
		Int64("duration_ms", step.Duration).
		Msg("stage finished")
	return v, res
}

// record appends a step for work that does not go through an adapter.
func (e *StageExecutor) record(stage, adapter, input, output string, status domain.StepStatus) {
	e.append(domain.ProcessingStep{
		Stage:   stage,
		Adapter: adapter,
		Status:  status,
		Input:   domain.Snippet(input),
		Output:  domain.Snippet(output),
	})
}

func (e *StageExecutor) append(step domain.ProcessingStep) {
	e.mu.Lock()
	defer e.mu.Unlock()
	step.Timestamp = e.now().UTC()
	if n := len(e.steps); n > 0 && step.Timestamp.Before(e.steps[n-1].Timestamp) {
		step.Timestamp = e.steps[n-1].Timestamp
	}
	e.steps = append(e.steps, step)
}

// Steps returns a copy of the history recorded so far.
func (e *StageExecutor) Steps() []domain.ProcessingStep {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]domain.ProcessingStep(nil), e.steps...)
}

// latch carries work between attempts of one stage. Values produced after
// their attempt's context ended are discarded.
type latch[T any] struct {
	mu  sync.Mutex
	v   T
	set bool
}

func (l *latch[T]) store(ctx context.Context, v T) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if ctx.Err() == nil {
		l.v = v
		l.set = true
	}
}

func (l *latch[T]) load() (T, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.v, l.set
}

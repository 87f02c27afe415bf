package resilience

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"studio/internal/domain"
)

// Outcome is the terminal result of one guarded call.
type Outcome struct {
	Attempts int
	Err      *domain.ServiceError
}

// OK reports whether the call eventually succeeded.
func (o Outcome) OK() bool { return o.Err == nil }

// Caller decorates adapter calls with the retry policy and the adapter's
// circuit breaker.
type Caller struct {
	registry *Registry
	policy   Policy
	log      zerolog.Logger
}

func NewCaller(registry *Registry, policy Policy, log zerolog.Logger) *Caller {
	return &Caller{registry: registry, policy: policy.normalized(), log: log}
}

// Registry exposes the breakers shared by every call made through c.
func (c *Caller) Registry() *Registry { return c.registry }

// Policy returns the effective retry policy.
func (c *Caller) Policy() Policy { return c.policy }

// Do invokes fn until it succeeds, fails with a non-retryable error or the
// attempts run out. A terminal failure is counted once against the adapter's
// breaker. Calls abandoned because ctx ended are not counted.
func (c *Caller) Do(ctx context.Context, adapter string, fn func(context.Context) error) Outcome {
	_, out := Call(ctx, c, adapter, func(actx context.Context) (struct{}, error) {
		return struct{}{}, fn(actx)
	})
	return out
}

// Call is Do for adapters that produce a value. The value returned is the one
// from the attempt the outcome was decided on: it is set exactly when the
// outcome is OK, even if ctx ends the moment that attempt completes.
func Call[T any](ctx context.Context, c *Caller, adapter string, fn func(context.Context) (T, error)) (T, Outcome) {
	var zero T
	if err := ctx.Err(); err != nil {
		return zero, Outcome{Err: abandoned(adapter, err)}
	}
	br := c.registry.Breaker(adapter)
	if openErr := br.Allow(); openErr != nil {
		c.log.Warn().Str("adapter", adapter).Msg("call rejected, circuit open")
		return zero, Outcome{Err: openErr}
	}

	var last *domain.ServiceError
	attempts := 0
	for attempts < c.policy.MaxAttempts {
		attempts++
		v, err := attempt(ctx, c.policy.AttemptTimeout, fn)
		if err == nil {
			br.Success()
			return v, Outcome{Attempts: attempts}
		}
		if ctx.Err() != nil {
			br.Release()
			return zero, Outcome{Attempts: attempts, Err: abandoned(adapter, ctx.Err())}
		}
		last = Classify(adapter, err)
		if !last.Retryable || attempts == c.policy.MaxAttempts {
			break
		}
		c.log.Warn().
			Str("adapter", adapter).
			Int("attempt", attempts).
			Str("code", last.Code).
			Dur("backoff", c.policy.Delay(attempts)).
			Msg("adapter call failed, retrying")
		if werr := c.policy.wait(ctx, attempts); werr != nil {
			br.Release()
			return zero, Outcome{Attempts: attempts, Err: abandoned(adapter, werr)}
		}
	}
	br.Failure()
	return zero, Outcome{Attempts: attempts, Err: last}
}

type attemptResult[T any] struct {
	v   T
	err error
}

// attempt runs fn on its own goroutine so that an adapter ignoring its
// context cannot hold the caller past the attempt deadline. Whichever of
// completion and deadline is selected decides both the value and the error.
func attempt[T any](ctx context.Context, timeout time.Duration, fn func(context.Context) (T, error)) (T, error) {
	actx, cancel := ctx, context.CancelFunc(func() {})
	if timeout > 0 {
		actx, cancel = context.WithTimeout(ctx, timeout)
	}
	defer cancel()

	done := make(chan attemptResult[T], 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- attemptResult[T]{err: fmt.Errorf("adapter panicked: %v", r)}
			}
		}()
		v, err := fn(actx)
		done <- attemptResult[T]{v: v, err: err}
	}()

	select {
	case r := <-done:
		return r.v, r.err
	case <-actx.Done():
		var zero T
		return zero, actx.Err()
	}
}

// Classify maps an arbitrary adapter error onto a ServiceError. Errors that
// already carry a classification keep it.
func Classify(adapter string, err error) *domain.ServiceError {
	if svcErr, ok := domain.AsServiceError(err); ok {
		cp := *svcErr
		if cp.Adapter == "" {
			cp.Adapter = adapter
		}
		return &cp
	}
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return domain.NewServiceError(adapter, domain.CodeTimeout, "adapter attempt timed out", true)
	case errors.Is(err, context.Canceled):
		return domain.NewServiceError(adapter, domain.CodeCanceled, "adapter call canceled", false)
	default:
		return domain.NewServiceError(adapter, domain.CodeInternal, err.Error(), false)
	}
}

func abandoned(adapter string, err error) *domain.ServiceError {
	if errors.Is(err, context.DeadlineExceeded) {
		return domain.NewTimeoutError(adapter, "")
	}
	return domain.NewServiceError(adapter, domain.CodeCanceled, "generation canceled", false)
}

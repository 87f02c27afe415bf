package orchestrator

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"studio/internal/domain"
	"studio/internal/providers"
	"studio/internal/resilience"
)

func newTestExecutor(policy resilience.Policy, threshold int) *StageExecutor {
	reg := resilience.NewRegistry(resilience.BreakerConfig{FailureThreshold: threshold, Cooldown: time.Minute}, zerolog.Nop())
	return NewStageExecutor(resilience.NewCaller(reg, policy, zerolog.Nop()), zerolog.Nop())
}

func TestStageExecutor_RecordsOneStepOnSuccess(t *testing.T) {
	exec := newTestExecutor(fastPolicy(), 5)
	var calls atomic.Int32

	res := exec.Run(context.Background(), domain.StageEnhancement, "fake", strings.Repeat("a", 400), func(ctx context.Context) (string, error) {
		if calls.Add(1) == 1 {
			return "", providers.BadResponse("fake", "not json")
		}
		return "Hot chai", nil
	})

	require.True(t, res.OK())
	assert.Equal(t, "Hot chai", res.Output)
	assert.Equal(t, 2, res.Attempts)

	steps := exec.Steps()
	require.Len(t, steps, 1)
	assert.Equal(t, domain.StepSucceeded, steps[0].Status)
	assert.Equal(t, 2, steps[0].Attempts)
	assert.Equal(t, "Hot chai", steps[0].Output)
	assert.Equal(t, 161, len([]rune(steps[0].Input)), "input is truncated to a snippet")
	assert.False(t, steps[0].Timestamp.IsZero())
}

func TestStageExecutor_RecordsOneErrorOnFailure(t *testing.T) {
	exec := newTestExecutor(fastPolicy(), 5)

	res := exec.Run(context.Background(), domain.StageImage, "fake-image", "caption", func(ctx context.Context) (string, error) {
		return "", errors.New("boom")
	})

	require.False(t, res.OK())
	assert.Equal(t, domain.StageImage, res.Err.Stage)
	assert.Equal(t, "fake-image", res.Err.Adapter)
	assert.Equal(t, domain.CodeInternal, res.Err.Code)
	assert.Equal(t, 1, res.Attempts)

	steps := exec.Steps()
	require.Len(t, steps, 1)
	assert.Equal(t, domain.StepFailed, steps[0].Status)
	assert.Equal(t, "boom", steps[0].Output)
}

func TestStageExecutor_OpenBreakerStillRecordsStep(t *testing.T) {
	exec := newTestExecutor(fastPolicy(), 1)
	fail := func(ctx context.Context) (string, error) {
		return "", providers.ContractViolation("fake-video", "bad")
	}
	exec.Run(context.Background(), domain.StageVideo, "fake-video", "c", fail)

	var invoked bool
	res := exec.Run(context.Background(), domain.StageVideo, "fake-video", "c", func(ctx context.Context) (string, error) {
		invoked = true
		return "ok", nil
	})

	assert.False(t, invoked)
	require.False(t, res.OK())
	assert.Equal(t, domain.CodeCircuitOpen, res.Err.Code)
	assert.Equal(t, domain.StageVideo, res.Err.Stage)
	assert.Len(t, exec.Steps(), 2)
}

func TestStageExecutor_DiscardsAbandonedOutput(t *testing.T) {
	policy := fastPolicy()
	policy.AttemptTimeout = 10 * time.Millisecond
	exec := newTestExecutor(policy, 5)
	var calls atomic.Int32

	res := exec.Run(context.Background(), domain.StageTranslation, "slow", "hi", func(ctx context.Context) (string, error) {
		if calls.Add(1) == 1 {
			<-ctx.Done()
			return "stale", nil
		}
		return "fresh", nil
	})

	require.True(t, res.OK())
	assert.Equal(t, "fresh", res.Output)
}

func TestLatchIgnoresEndedContext(t *testing.T) {
	var l latch[string]
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	l.store(ctx, "late")
	_, ok := l.load()
	assert.False(t, ok)

	l.store(context.Background(), "on time")
	v, ok := l.load()
	assert.True(t, ok)
	assert.Equal(t, "on time", v)
}

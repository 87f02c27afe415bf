package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"studio/internal/domain"
	"studio/internal/orchestrator"
	"studio/internal/resilience"
)

type runnerFunc func(ctx context.Context, req domain.GenerationRequest, obs orchestrator.ProgressObserver) *domain.GenerationResult

func (f runnerFunc) Run(ctx context.Context, req domain.GenerationRequest, obs orchestrator.ProgressObserver) *domain.GenerationResult {
	return f(ctx, req, obs)
}

// validatingRunner mimics the pipeline's outer contract: invalid requests
// fail at validation, valid ones complete after two progress events.
func validatingRunner(gate <-chan struct{}) runnerFunc {
	return func(ctx context.Context, req domain.GenerationRequest, obs orchestrator.ProgressObserver) *domain.GenerationResult {
		obs.OnProgress(orchestrator.ProgressEvent{RequestID: req.ID, Sequence: 1, State: orchestrator.StateValidating, Stage: domain.StageValidation, Status: orchestrator.EventStarted})
		if gate != nil {
			<-gate
		}
		res := &domain.GenerationResult{Request: req, CreatedAt: req.CreatedAt, CompletedAt: time.Now()}
		if err := req.Validate(); err != nil {
			res.Status = domain.StatusFailed
			res.Errors = []domain.ServiceError{{Stage: domain.StageValidation, Code: domain.CodeValidation, Message: err.Error()}}
			return res
		}
		obs.OnProgress(orchestrator.ProgressEvent{RequestID: req.ID, Sequence: 2, State: orchestrator.StateCompleted, Status: orchestrator.EventSucceeded})
		res.Status = domain.StatusCompleted
		res.Content = domain.ProcessedContent{OriginalMessage: req.RawMessage, FinalCaption: "Fresh masala chai"}
		return res
	}
}

func newTestApp(t *testing.T, runner orchestrator.Runner, capacity int) *App {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	seq := orchestrator.NewSequencer(runner, capacity, zerolog.Nop())
	reg := resilience.NewRegistry(resilience.DefaultBreakerConfig(), zerolog.Nop())
	return NewApp(ctx, seq, reg, NewTracker(time.Minute), zerolog.Nop())
}

func testRouter(app *App) http.Handler {
	r := chi.NewRouter()
	r.Post("/v1/generations", app.CreateGeneration)
	r.Get("/v1/generations/{id}", app.GetGeneration)
	r.Get("/v1/generations/{id}/events", app.GenerationEvents)
	r.Get("/v1/generations/{id}/bundle", app.GenerationBundle)
	r.Get("/v1/breakers", app.ListBreakers)
	r.Get("/v1/healthz", app.Health)
	return r
}

const validBody = `{"category":"tea-stall","rawMessage":"chai 10 rs near bus stand","targetLanguage":"hindi"}`

func do(t *testing.T, h http.Handler, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(method, target, strings.NewReader(body)))
	return rec
}

func TestCreateGeneration_AsyncThenPoll(t *testing.T) {
	app := newTestApp(t, validatingRunner(nil), 4)
	h := testRouter(app)

	rec := do(t, h, http.MethodPost, "/v1/generations", validBody)
	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())

	var accepted acceptedResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &accepted))
	require.NotEmpty(t, accepted.ID)
	assert.Equal(t, "/v1/generations/"+accepted.ID, rec.Header().Get("Location"))
	assert.Equal(t, accepted.ResultURL+"/events", accepted.EventsURL)

	var res domain.GenerationResult
	require.Eventually(t, func() bool {
		poll := do(t, h, http.MethodGet, accepted.ResultURL, "")
		if poll.Code != http.StatusOK {
			return false
		}
		return json.Unmarshal(poll.Body.Bytes(), &res) == nil
	}, time.Second, 5*time.Millisecond)

	assert.Equal(t, domain.StatusCompleted, res.Status)
	assert.Equal(t, accepted.ID, res.Request.ID)
	assert.Equal(t, domain.LanguageHindi, res.Request.TargetLanguage)
}

func TestCreateGeneration_WaitReturnsResult(t *testing.T) {
	app := newTestApp(t, validatingRunner(nil), 4)
	h := testRouter(app)

	rec := do(t, h, http.MethodPost, "/v1/generations?wait=true", validBody)
	require.Equal(t, http.StatusOK, rec.Code)

	var res domain.GenerationResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	assert.Equal(t, domain.StatusCompleted, res.Status)
	assert.Equal(t, "Fresh masala chai", res.Content.FinalCaption)
}

func TestCreateGeneration_WaitValidationFailureIs422(t *testing.T) {
	app := newTestApp(t, validatingRunner(nil), 4)
	h := testRouter(app)

	rec := do(t, h, http.MethodPost, "/v1/generations?wait=1", `{"category":"tea-stall","rawMessage":"  ","targetLanguage":"hindi"}`)
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	var res domain.GenerationResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	assert.Equal(t, domain.StatusFailed, res.Status)
	_, ok := res.ErrorFor(domain.StageValidation)
	assert.True(t, ok)
}

func TestCreateGeneration_BadJSON(t *testing.T) {
	app := newTestApp(t, validatingRunner(nil), 4)
	rec := do(t, testRouter(app), http.MethodPost, "/v1/generations", `{"category":`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), `"code":"bad_request"`)
	assert.Zero(t, app.Tracker.Len())
}

func TestCreateGeneration_QueueFullIs429(t *testing.T) {
	gate := make(chan struct{})
	defer close(gate)
	app := newTestApp(t, validatingRunner(gate), 0)
	h := testRouter(app)

	first := do(t, h, http.MethodPost, "/v1/generations", validBody)
	require.Equal(t, http.StatusAccepted, first.Code)
	require.Eventually(t, func() bool { return app.Sequencer.Stats().Running == 1 }, time.Second, time.Millisecond)

	second := do(t, h, http.MethodPost, "/v1/generations", validBody)
	assert.Equal(t, http.StatusTooManyRequests, second.Code)
	assert.Equal(t, "30", second.Header().Get("Retry-After"))
	assert.Contains(t, second.Body.String(), `"code":"capacity"`)
	assert.Equal(t, 1, app.Tracker.Len(), "rejected generation is not tracked")
}

func TestGetGeneration_PendingAndUnknown(t *testing.T) {
	gate := make(chan struct{})
	app := newTestApp(t, validatingRunner(gate), 4)
	h := testRouter(app)

	rec := do(t, h, http.MethodPost, "/v1/generations", validBody)
	require.Equal(t, http.StatusAccepted, rec.Code)
	var accepted acceptedResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &accepted))

	require.Eventually(t, func() bool {
		return app.Tracker.Get(accepted.ID).Phase() == "running"
	}, time.Second, time.Millisecond)

	pending := do(t, h, http.MethodGet, accepted.ResultURL, "")
	require.Equal(t, http.StatusAccepted, pending.Code)
	var body pendingResponse
	require.NoError(t, json.Unmarshal(pending.Body.Bytes(), &body))
	assert.Equal(t, "running", body.Status)
	require.Len(t, body.Progress, 1)
	assert.Equal(t, orchestrator.StateValidating, body.Progress[0].State)

	close(gate)
	assert.Equal(t, http.StatusNotFound, do(t, h, http.MethodGet, "/v1/generations/nope", "").Code)
}

func TestGenerationEvents_StreamsLiveThenResult(t *testing.T) {
	gate := make(chan struct{})
	app := newTestApp(t, validatingRunner(gate), 4)
	h := testRouter(app)

	rec := do(t, h, http.MethodPost, "/v1/generations", validBody)
	var accepted acceptedResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &accepted))
	require.Eventually(t, func() bool {
		return app.Tracker.Get(accepted.ID).Phase() == "running"
	}, time.Second, time.Millisecond)

	stream := httptest.NewRecorder()
	done := make(chan struct{})
	go func() {
		defer close(done)
		h.ServeHTTP(stream, httptest.NewRequest(http.MethodGet, accepted.EventsURL, nil))
	}()
	close(gate)

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("event stream did not end after the result")
	}

	body := stream.Body.String()
	assert.Equal(t, "text/event-stream", stream.Header().Get("Content-Type"))
	assert.Equal(t, 2, strings.Count(body, "event: progress\n"))
	assert.Contains(t, body, "id: 1\nevent: progress\n")
	assert.Contains(t, body, "id: 2\nevent: progress\n")
	require.Contains(t, body, "event: result\ndata: ")
	assert.Less(t, strings.Index(body, "id: 2\n"), strings.Index(body, "event: result"))
}

func TestGenerationEvents_ReplaysFinishedGeneration(t *testing.T) {
	app := newTestApp(t, validatingRunner(nil), 4)
	h := testRouter(app)

	rec := do(t, h, http.MethodPost, "/v1/generations?wait=true", validBody)
	require.Equal(t, http.StatusOK, rec.Code)
	var res domain.GenerationResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))

	stream := do(t, h, http.MethodGet, "/v1/generations/"+res.Request.ID+"/events", "")
	require.Equal(t, http.StatusOK, stream.Code)
	assert.Equal(t, 2, strings.Count(stream.Body.String(), "event: progress\n"))
	assert.Contains(t, stream.Body.String(), "event: result\n")
}

func TestHealthAndBreakers(t *testing.T) {
	app := newTestApp(t, validatingRunner(nil), 7)
	app.Breakers.Breaker("fake-image").Failure()
	h := testRouter(app)

	health := do(t, h, http.MethodGet, "/v1/healthz", "")
	require.Equal(t, http.StatusOK, health.Code)
	assert.JSONEq(t, `{"status":"ok","running":0,"queued":0,"capacity":7}`, health.Body.String())

	rec := do(t, h, http.MethodGet, "/v1/breakers", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Breakers []resilience.Snapshot `json:"breakers"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Breakers, 1)
	assert.Equal(t, "fake-image", body.Breakers[0].Adapter)
	assert.Equal(t, 1, body.Breakers[0].ConsecutiveFailures)
	assert.Equal(t, resilience.StateClosed, body.Breakers[0].State)
}

package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"studio/internal/domain"
	"studio/internal/middleware"
	"studio/internal/orchestrator"
)

const maxBodyBytes = 16 << 10

type generationRequest struct {
	Category       string `json:"category"`
	CategoryOther  string `json:"categoryOther"`
	RawMessage     string `json:"rawMessage"`
	TargetLanguage string `json:"targetLanguage"`
}

type acceptedResponse struct {
	ID        string `json:"id"`
	Status    string `json:"status"`
	ResultURL string `json:"resultUrl"`
	EventsURL string `json:"eventsUrl"`
}

type pendingResponse struct {
	ID       string                       `json:"id"`
	Status   string                       `json:"status"`
	Progress []orchestrator.ProgressEvent `json:"progress"`
}

// CreateGeneration admits a workflow. By default it answers 202 and runs in
// the background; ?wait=true blocks until the result is ready.
func (a *App) CreateGeneration(w http.ResponseWriter, r *http.Request) {
	var body generationRequest
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	if err := dec.Decode(&body); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid payload")
		return
	}
	if strings.TrimSpace(body.TargetLanguage) == "" {
		body.TargetLanguage = string(middleware.LanguageFromContext(r.Context()))
	}
	req := domain.NewGenerationRequest(domain.RequestInput{
		Category:       body.Category,
		CategoryOther:  body.CategoryOther,
		RawMessage:     body.RawMessage,
		TargetLanguage: body.TargetLanguage,
	}, a.now())

	log := a.Logger.With().Str("request_id", req.ID).Str("http_request_id", middleware.RequestIDFromContext(r.Context())).Logger()
	gen := a.Tracker.Track(req)

	if wait, _ := strconv.ParseBool(r.URL.Query().Get("wait")); wait {
		res, err := a.Sequencer.Submit(r.Context(), req, gen)
		gen.Finish(res, err)
		if err != nil {
			a.submitError(w, req.ID, err)
			return
		}
		log.Info().Str("status", string(res.Status)).Msg("generation served synchronously")
		a.json(w, resultStatusCode(res), res)
		return
	}

	if err := a.Sequencer.Enqueue(a.base, req, gen, gen.Finish); err != nil {
		a.submitError(w, req.ID, err)
		return
	}
	log.Info().Msg("generation accepted")

	resultURL := "/v1/generations/" + req.ID
	w.Header().Set("Location", resultURL)
	a.json(w, http.StatusAccepted, acceptedResponse{
		ID:        req.ID,
		Status:    gen.Phase(),
		ResultURL: resultURL,
		EventsURL: resultURL + "/events",
	})
}

func (a *App) submitError(w http.ResponseWriter, id string, err error) {
	a.Tracker.Forget(id)
	switch {
	case errors.Is(err, domain.ErrCapacity):
		w.Header().Set("Retry-After", "30")
		a.error(w, http.StatusTooManyRequests, "capacity", "generation queue is full, try again shortly")
	default:
		a.Logger.Warn().Err(err).Str("request_id", id).Msg("generation abandoned while queued")
		a.error(w, http.StatusServiceUnavailable, "canceled", "generation was canceled before it started")
	}
}

// resultStatusCode maps a terminal result to an HTTP status. Validation
// failures are the caller's fault; every other outcome is a 200 whose body
// carries the status.
func resultStatusCode(res *domain.GenerationResult) int {
	if res.Status == domain.StatusFailed {
		if _, ok := res.ErrorFor(domain.StageValidation); ok {
			return http.StatusUnprocessableEntity
		}
	}
	return http.StatusOK
}

// GetGeneration returns the result, or the progress so far while pending.
func (a *App) GetGeneration(w http.ResponseWriter, r *http.Request) {
	gen := a.Tracker.Get(chi.URLParam(r, "id"))
	if gen == nil {
		a.error(w, http.StatusNotFound, "not_found", "generation not found")
		return
	}
	snap := gen.Snapshot()
	switch {
	case snap.Done && snap.Err != nil:
		a.error(w, http.StatusServiceUnavailable, "canceled", snap.Err.Error())
	case snap.Done:
		a.json(w, http.StatusOK, snap.Result)
	default:
		a.json(w, http.StatusAccepted, pendingResponse{ID: gen.ID(), Status: gen.Phase(), Progress: snap.Events})
	}
}

// GenerationEvents streams progress as server-sent events: one "progress"
// event per transition, then a single "result" (or "error") event.
func (a *App) GenerationEvents(w http.ResponseWriter, r *http.Request) {
	gen := a.Tracker.Get(chi.URLParam(r, "id"))
	if gen == nil {
		a.error(w, http.StatusNotFound, "not_found", "generation not found")
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		a.error(w, http.StatusInternalServerError, "internal", "streaming unsupported")
		return
	}

	history, live, cancel := gen.Subscribe()
	defer cancel()
	// Queue wait plus the pipeline budget can outlast the server WriteTimeout.
	_ = http.NewResponseController(w).SetWriteDeadline(time.Time{})

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	for _, ev := range history {
		writeEvent(w, "progress", strconv.Itoa(ev.Sequence), ev)
	}
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			return
		case ev, open := <-live:
			if !open {
				snap := gen.Snapshot()
				if snap.Err != nil {
					writeEvent(w, "error", "", errorDetail{Code: "canceled", Message: snap.Err.Error()})
				} else {
					writeEvent(w, "result", "", snap.Result)
				}
				flusher.Flush()
				return
			}
			writeEvent(w, "progress", strconv.Itoa(ev.Sequence), ev)
			flusher.Flush()
		}
	}
}

func writeEvent(w io.Writer, name, id string, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		return
	}
	if id != "" {
		fmt.Fprintf(w, "id: %s\n", id)
	}
	fmt.Fprintf(w, "event: %s\ndata: %s\n\n", name, data)
}

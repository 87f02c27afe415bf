// Package handlers exposes the generation engine over HTTP.
package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"studio/internal/orchestrator"
	"studio/internal/resilience"
	"studio/internal/storage"
)

type App struct {
	Sequencer *orchestrator.Sequencer
	Breakers  *resilience.Registry
	Tracker   *Tracker
	Logger    zerolog.Logger
	// Assets is optional; without it bundles carry metadata only.
	Assets storage.Reader

	// base outlives individual HTTP requests so async generations keep
	// running after 202 is sent; it is canceled on shutdown.
	base context.Context
	now  func() time.Time
}

func NewApp(base context.Context, seq *orchestrator.Sequencer, breakers *resilience.Registry, tracker *Tracker, logger zerolog.Logger) *App {
	return &App{
		Sequencer: seq,
		Breakers:  breakers,
		Tracker:   tracker,
		Logger:    logger,
		base:      base,
		now:       time.Now,
	}
}

type errorBody struct {
	Error errorDetail `json:"error"`
}

type errorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (a *App) json(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func (a *App) error(w http.ResponseWriter, code int, errCode, message string) {
	a.json(w, code, errorBody{Error: errorDetail{Code: errCode, Message: message}})
}

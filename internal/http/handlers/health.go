package handlers

import (
	"net/http"
)

func (a *App) Health(w http.ResponseWriter, r *http.Request) {
	stats := a.Sequencer.Stats()
	a.json(w, http.StatusOK, map[string]any{
		"status":   "ok",
		"running":  stats.Running,
		"queued":   stats.Queued,
		"capacity": stats.Capacity,
	})
}

// ListBreakers lists the circuit state of every adapter seen so far.
func (a *App) ListBreakers(w http.ResponseWriter, r *http.Request) {
	a.json(w, http.StatusOK, map[string]any{"breakers": a.Breakers.Snapshot()})
}

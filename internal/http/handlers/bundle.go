package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"studio/internal/domain"
	"studio/pkg/zip"
)

// GenerationBundle downloads a finished generation as a zip holding
// result.json, caption.txt and every stored asset. Assets are skipped when
// the store cannot read objects back.
func (a *App) GenerationBundle(w http.ResponseWriter, r *http.Request) {
	gen := a.Tracker.Get(chi.URLParam(r, "id"))
	if gen == nil {
		a.error(w, http.StatusNotFound, "not_found", "generation not found")
		return
	}
	snap := gen.Snapshot()
	switch {
	case !snap.Done:
		a.error(w, http.StatusConflict, "pending", "generation has not finished")
		return
	case snap.Err != nil:
		a.error(w, http.StatusServiceUnavailable, "canceled", snap.Err.Error())
		return
	}

	entries, err := a.bundleEntries(r, snap.Result)
	if err != nil {
		a.Logger.Error().Err(err).Str("request_id", gen.ID()).Msg("bundle assemble failed")
		a.error(w, http.StatusInternalServerError, "internal", "failed to assemble bundle")
		return
	}
	data, err := zip.Archive(entries)
	if err != nil {
		a.Logger.Error().Err(err).Str("request_id", gen.ID()).Msg("bundle archive failed")
		a.error(w, http.StatusInternalServerError, "internal", "failed to assemble bundle")
		return
	}

	w.Header().Set("Content-Type", "application/zip")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", "generation-"+gen.ID()+".zip"))
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

func (a *App) bundleEntries(r *http.Request, res *domain.GenerationResult) ([]zip.Entry, error) {
	meta, err := json.MarshalIndent(res, "", "  ")
	if err != nil {
		return nil, err
	}
	entries := []zip.Entry{{Name: "result.json", Data: meta, Modified: res.CompletedAt}}
	if res.Content.FinalCaption != "" {
		entries = append(entries, zip.Entry{Name: "caption.txt", Data: []byte(res.Content.FinalCaption), Modified: res.CompletedAt})
	}
	if a.Assets == nil {
		return entries, nil
	}
	for _, asset := range res.MediaAssets {
		if asset.Key == "" {
			continue
		}
		data, err := a.Assets.Get(r.Context(), asset.Key)
		if err != nil {
			a.Logger.Warn().Err(err).Str("key", asset.Key).Msg("bundle asset unavailable")
			continue
		}
		entries = append(entries, zip.Entry{Name: "assets/" + asset.Filename, Data: data, Modified: asset.GeneratedAt})
	}
	return entries, nil
}

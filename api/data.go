package api

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/sweater-ventures/psph/app"
)

func init() {
	registerRoute(func(site *app.Application, router *http.ServeMux) {
		router.Handle("GET /data/{list}", routeHandler(site, getListHandler))
		router.Handle("GET /suggest/{list}", routeHandler(site, suggestHandler))
	})
}

type SuggestResponse struct {
	Query       string   `json:"query"`
	Suggestions []string `json:"suggestions"`
}

// listFromPath accepts "districts", "districts.json" and the singular forms.
func listFromPath(r *http.Request) (app.ListID, error) {
	return app.ParseListID(strings.TrimSuffix(r.PathValue("list"), ".json"))
}

func getListHandler(site *app.Application, w http.ResponseWriter, r *http.Request) {
	id, err := listFromPath(r)
	if err != nil {
		writeJsonError(w, http.StatusNotFound, "Unknown list")
		return
	}

	list, err := site.RefData.Get(r.Context(), id)
	if err != nil {
		log(r.Context()).Error("Failed to load reference list", "list", id, "error", err)
		writeJsonError(w, http.StatusServiceUnavailable, "Reference data unavailable")
		return
	}

	w.Header().Set("Cache-Control", "public, max-age=3600")
	writeJsonResponse(w, http.StatusOK, list)
}

func suggestHandler(site *app.Application, w http.ResponseWriter, r *http.Request) {
	id, err := listFromPath(r)
	if err != nil {
		writeJsonError(w, http.StatusNotFound, "Unknown list")
		return
	}

	limit := site.MaxFor(id)
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			writeJsonError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = min(n, app.ProviderLimit)
	}

	query := strings.TrimSpace(r.URL.Query().Get("q"))
	resp := SuggestResponse{Query: query, Suggestions: []string{}}
	if query == "" {
		writeJsonResponse(w, http.StatusOK, resp)
		return
	}

	items, err := site.Provider(id)(r.Context(), query)
	if err != nil {
		if errors.Is(err, r.Context().Err()) {
			return
		}
		log(r.Context()).Error("Suggestion lookup failed", "list", id, "error", err)
		writeJsonError(w, http.StatusServiceUnavailable, "Reference data unavailable")
		return
	}
	resp.Suggestions = app.Dedupe(items, limit)
	writeJsonResponse(w, http.StatusOK, resp)
}

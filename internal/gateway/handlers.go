package gateway

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"searchrelay/internal/dispatch"
	"searchrelay/pkg/middleware"
	"searchrelay/pkg/problems"
)

// Router mounts the public gateway surface. The endpoint middleware must run
// before these handlers so dispatch knows which tenant host was addressed.
func Router(svc *Service) http.Handler {
	r := chi.NewRouter()
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"ok":true}`))
	})
	r.Post("/mcp/search", handleSearch(svc))
	r.Post("/mcp/fetch", handleFetch(svc))
	r.Get("/api/v1/checks", handleChecks(svc))
	return r
}

func handleSearch(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		start := time.Now()
		var body struct {
			Query string `json:"query"`
			Limit int    `json:"limit"`
		}
		if err := json.NewDecoder(req.Body).Decode(&body); err != nil || strings.TrimSpace(body.Query) == "" {
			requestsTotal.WithLabelValues("search", "bad_request").Inc()
			problems.Write(w, http.StatusBadRequest, "invalid-request", "Invalid request", "body must be JSON with a non-empty query")
			return
		}
		endpoint := middleware.EndpointFrom(req.Context())
		results, err := svc.Search(req.Context(), endpoint, body.Query, body.Limit)
		if err != nil {
			requestsTotal.WithLabelValues("search", "error").Inc()
			problems.Write(w, http.StatusInternalServerError, "search-failed", "Search failed", err.Error())
			return
		}
		if results == nil {
			results = []dispatch.Result{}
		}
		requestsTotal.WithLabelValues("search", "ok").Inc()
		requestSeconds.WithLabelValues("search").Observe(time.Since(start).Seconds())
		resultsReturned.WithLabelValues("search").Observe(float64(len(results)))
		writeJSON(w, map[string]any{"results": results})
	}
}

func handleFetch(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		start := time.Now()
		var body struct {
			ID string `json:"id"`
		}
		if err := json.NewDecoder(req.Body).Decode(&body); err != nil || body.ID == "" {
			requestsTotal.WithLabelValues("fetch", "bad_request").Inc()
			problems.Write(w, http.StatusBadRequest, "invalid-request", "Invalid request", "body must be JSON with a non-empty id")
			return
		}
		endpoint := middleware.EndpointFrom(req.Context())
		rec, err := svc.Fetch(req.Context(), endpoint, body.ID)
		switch {
		case errors.Is(err, dispatch.ErrInvalidIdentifier):
			requestsTotal.WithLabelValues("fetch", "bad_request").Inc()
			problems.Write(w, http.StatusBadRequest, "invalid-identifier", "Invalid identifier", err.Error())
			return
		case errors.Is(err, dispatch.ErrUnknownPrefix):
			requestsTotal.WithLabelValues("fetch", "not_found").Inc()
			problems.Write(w, http.StatusNotFound, "unknown-prefix", "No handler for identifier", err.Error())
			return
		case err != nil:
			requestsTotal.WithLabelValues("fetch", "error").Inc()
			problems.Write(w, http.StatusInternalServerError, "fetch-failed", "Fetch failed", err.Error())
			return
		}
		requestsTotal.WithLabelValues("fetch", "ok").Inc()
		requestSeconds.WithLabelValues("fetch").Observe(time.Since(start).Seconds())
		writeJSON(w, rec)
	}
}

func handleChecks(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		endpoint := middleware.EndpointFrom(req.Context())
		counts, err := svc.Checks(req.Context(), endpoint)
		if err != nil {
			problems.Write(w, http.StatusInternalServerError, "checks-failed", "Checks failed", err.Error())
			return
		}
		writeJSON(w, map[string]any{"endpoint": endpoint, "handlers": counts})
	}
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

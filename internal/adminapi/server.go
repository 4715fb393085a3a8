package adminapi

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
)

// Handler builds the HTTP handler with routes and middleware.
func (a *App) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RequestID, chimw.RealIP, chimw.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"ok":true}`))
	})

	r.Route("/api/v1", func(ar chi.Router) {
		ar.Post("/signup", a.signup)
		ar.Post("/signin", a.signin)
		ar.Post("/signout", a.signout)

		ar.Group(func(pr chi.Router) {
			pr.Use(a.sessionAuth)
			pr.Get("/me", a.me)

			pr.Post("/sources", a.createSource)
			pr.Get("/sources", a.listSources)
			pr.Get("/sources/{id}", a.getSource)
			pr.Put("/sources/{id}", a.updateSource)
			pr.Delete("/sources/{id}", a.deleteSource)

			pr.Post("/servers", a.createServer)
			pr.Get("/servers", a.listServers)
			pr.Get("/servers/{id}", a.getServer)
			pr.Put("/servers/{id}", a.updateServer)
			pr.Delete("/servers/{id}", a.deleteServer)
			pr.Post("/servers/{id}/restore", a.restoreServer)

			pr.Get("/logs", a.listLogs)
		})
	})

	return r
}

func writeJSON(w http.ResponseWriter, v any, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

package adminapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"searchrelay/internal/oplog"
	"searchrelay/pkg/catalog"
	"searchrelay/pkg/problems"
)

type serverBody struct {
	Name      string   `json:"name"`
	SourceIDs []string `json:"source_ids"`
}

type serverView struct {
	ID        string     `json:"id"`
	Name      string     `json:"name"`
	Endpoint  string     `json:"endpoint"`
	SourceIDs []string   `json:"source_ids"`
	DeletedAt *time.Time `json:"deleted_at,omitempty"`
}

func viewServer(s catalog.Server) serverView {
	return serverView{ID: s.ID, Name: s.Name, Endpoint: s.Endpoint, SourceIDs: s.SourceIDs, DeletedAt: s.DeletedAt}
}

func (a *App) createServer(w http.ResponseWriter, r *http.Request) {
	t := a.ops.Start(r.Context(), oplog.OpCRUD, "CreateServer")
	var body serverBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || strings.TrimSpace(body.Name) == "" {
		t.Failed(errors.New("malformed body"))
		problems.Write(w, http.StatusBadRequest, "invalid-request", "Invalid request", "body must carry a name")
		return
	}
	userID := userIDFrom(r.Context())
	if !a.sourcesOwned(w, r, body.SourceIDs, userID) {
		t.Failed(errors.New("foreign source"))
		return
	}
	srv, err := a.store.CreateServer(r.Context(), userID, body.Name, body.SourceIDs)
	switch {
	case errors.Is(err, catalog.ErrEndpointExhausted):
		t.Failed(err)
		problems.Write(w, http.StatusServiceUnavailable, "endpoint-pool-exhausted", "Endpoint pool exhausted", "no endpoints remain; delete a server or grow the pool")
		return
	case err != nil:
		t.Failed(err)
		problems.Write(w, http.StatusInternalServerError, "create-failed", "Create failed", err.Error())
		return
	}
	t.Success("server_id", srv.ID, "endpoint", srv.Endpoint)
	writeJSON(w, viewServer(srv), http.StatusCreated)
}

func (a *App) listServers(w http.ResponseWriter, r *http.Request) {
	servers, err := a.store.ServersByUser(r.Context(), userIDFrom(r.Context()))
	if err != nil {
		problems.Write(w, http.StatusInternalServerError, "list-failed", "List failed", err.Error())
		return
	}
	views := make([]serverView, 0, len(servers))
	for _, s := range servers {
		views = append(views, viewServer(s))
	}
	writeJSON(w, views, http.StatusOK)
}

func (a *App) getServer(w http.ResponseWriter, r *http.Request) {
	srv, ok := a.ownedServer(w, r)
	if !ok {
		return
	}
	writeJSON(w, viewServer(srv), http.StatusOK)
}

func (a *App) updateServer(w http.ResponseWriter, r *http.Request) {
	t := a.ops.Start(r.Context(), oplog.OpCRUD, "UpdateServer")
	srv, ok := a.ownedServer(w, r)
	if !ok {
		t.Failed(errors.New("not found"))
		return
	}
	var body serverBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		t.Failed(err)
		problems.Write(w, http.StatusBadRequest, "invalid-request", "Invalid request", "malformed body")
		return
	}
	var namePtr *string
	if strings.TrimSpace(body.Name) != "" {
		namePtr = &body.Name
	}
	if body.SourceIDs != nil && !a.sourcesOwned(w, r, body.SourceIDs, userIDFrom(r.Context())) {
		t.Failed(errors.New("foreign source"))
		return
	}
	if err := a.store.UpdateServer(r.Context(), srv.ID, namePtr, body.SourceIDs); err != nil {
		t.Failed(err)
		problems.Write(w, http.StatusInternalServerError, "update-failed", "Update failed", err.Error())
		return
	}
	updated, err := a.store.ServerByID(r.Context(), srv.ID)
	if err != nil {
		t.Failed(err)
		problems.Write(w, http.StatusInternalServerError, "update-failed", "Update failed", err.Error())
		return
	}
	t.Success("server_id", srv.ID)
	writeJSON(w, viewServer(updated), http.StatusOK)
}

func (a *App) deleteServer(w http.ResponseWriter, r *http.Request) {
	t := a.ops.Start(r.Context(), oplog.OpCRUD, "DeleteServer")
	srv, ok := a.ownedServer(w, r)
	if !ok {
		t.Failed(errors.New("not found"))
		return
	}
	if err := a.store.DeleteServer(r.Context(), srv.ID); err != nil {
		t.Failed(err)
		problems.Write(w, http.StatusInternalServerError, "delete-failed", "Delete failed", err.Error())
		return
	}
	t.Success("server_id", srv.ID)
	writeJSON(w, map[string]any{"ok": true}, http.StatusOK)
}

// restoreServer clears a tombstone. It cannot go through ownedServer since
// ServerByID hides deleted rows; ownership is checked directly instead.
func (a *App) restoreServer(w http.ResponseWriter, r *http.Request) {
	t := a.ops.Start(r.Context(), oplog.OpCRUD, "RestoreServer")
	id := chi.URLParam(r, "id")
	owned, err := a.store.ServerBelongsToUser(r.Context(), id, userIDFrom(r.Context()))
	if err != nil {
		t.Failed(err)
		problems.Write(w, http.StatusInternalServerError, "restore-failed", "Restore failed", err.Error())
		return
	}
	if !owned {
		t.Failed(errors.New("not found"))
		problems.Write(w, http.StatusNotFound, "not-found", "Not found", "no such server")
		return
	}
	if err := a.store.RestoreServer(r.Context(), id); err != nil {
		t.Failed(err)
		problems.Write(w, http.StatusNotFound, "not-deleted", "Not deleted", "server is not deleted")
		return
	}
	restored, err := a.store.ServerByID(r.Context(), id)
	if err != nil {
		t.Failed(err)
		problems.Write(w, http.StatusInternalServerError, "restore-failed", "Restore failed", err.Error())
		return
	}
	t.Success("server_id", id)
	writeJSON(w, viewServer(restored), http.StatusOK)
}

func (a *App) ownedServer(w http.ResponseWriter, r *http.Request) (catalog.Server, bool) {
	id := chi.URLParam(r, "id")
	srv, err := a.store.ServerByID(r.Context(), id)
	if err != nil || srv.UserID != userIDFrom(r.Context()) {
		problems.Write(w, http.StatusNotFound, "not-found", "Not found", "no such server")
		return catalog.Server{}, false
	}
	return srv, true
}

// sourcesOwned rejects server bodies referencing another user's sources.
func (a *App) sourcesOwned(w http.ResponseWriter, r *http.Request, sourceIDs []string, userID string) bool {
	for _, id := range sourceIDs {
		ok, err := a.store.SourceBelongsToUser(r.Context(), id, userID)
		if err != nil {
			problems.Write(w, http.StatusInternalServerError, "lookup-failed", "Lookup failed", err.Error())
			return false
		}
		if !ok {
			problems.Write(w, http.StatusBadRequest, "foreign-source", "Source not owned", "source "+id+" does not belong to you")
			return false
		}
	}
	return true
}

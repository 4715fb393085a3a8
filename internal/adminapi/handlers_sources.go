package adminapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"searchrelay/internal/oplog"
	"searchrelay/pkg/catalog"
	"searchrelay/pkg/problems"
)

type sourceBody struct {
	Type     string            `json:"type"`
	Metadata map[string]string `json:"metadata"`
}

type sourceView struct {
	ID       string            `json:"id"`
	Type     string            `json:"type"`
	Metadata map[string]string `json:"metadata"`
}

func viewSource(s catalog.Source) sourceView {
	return sourceView{ID: s.ID, Type: string(s.Kind), Metadata: redactMetadata(s.Kind, s.Metadata)}
}

// redactMetadata blanks secret-bearing fields on the way out.
func redactMetadata(kind catalog.SourceKind, metadata map[string]string) map[string]string {
	secret := map[string]bool{
		"graph_client_secret": true,
		"snowflake_pat":       true,
		"box_client_secret":   true,
	}
	out := make(map[string]string, len(metadata))
	for k, v := range metadata {
		if secret[k] {
			out[k] = "********"
			continue
		}
		out[k] = v
	}
	return out
}

func (a *App) createSource(w http.ResponseWriter, r *http.Request) {
	t := a.ops.Start(r.Context(), oplog.OpCRUD, "CreateSource")
	var body sourceBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		t.Failed(err)
		problems.Write(w, http.StatusBadRequest, "invalid-request", "Invalid request", "malformed body")
		return
	}
	kind := catalog.SourceKind(body.Type)
	if !kind.Valid() {
		t.Failed(errors.New("unknown source type"))
		problems.Write(w, http.StatusBadRequest, "unknown-source-type", "Unknown source type", body.Type)
		return
	}
	if err := catalog.ValidateMetadata(kind, body.Metadata); err != nil {
		t.Failed(err)
		problems.Write(w, http.StatusBadRequest, "invalid-metadata", "Invalid metadata", err.Error())
		return
	}
	src, err := a.store.CreateSource(r.Context(), userIDFrom(r.Context()), kind, body.Metadata)
	if err != nil {
		t.Failed(err)
		problems.Write(w, http.StatusInternalServerError, "create-failed", "Create failed", err.Error())
		return
	}
	t.Success("source_id", src.ID, "type", src.Kind)
	writeJSON(w, viewSource(src), http.StatusCreated)
}

func (a *App) listSources(w http.ResponseWriter, r *http.Request) {
	sources, err := a.store.SourcesByUser(r.Context(), userIDFrom(r.Context()))
	if err != nil {
		problems.Write(w, http.StatusInternalServerError, "list-failed", "List failed", err.Error())
		return
	}
	views := make([]sourceView, 0, len(sources))
	for _, s := range sources {
		views = append(views, viewSource(s))
	}
	writeJSON(w, views, http.StatusOK)
}

func (a *App) getSource(w http.ResponseWriter, r *http.Request) {
	src, ok := a.ownedSource(w, r)
	if !ok {
		return
	}
	writeJSON(w, viewSource(src), http.StatusOK)
}

func (a *App) updateSource(w http.ResponseWriter, r *http.Request) {
	t := a.ops.Start(r.Context(), oplog.OpCRUD, "UpdateSource")
	src, ok := a.ownedSource(w, r)
	if !ok {
		t.Failed(errors.New("not found"))
		return
	}
	var body sourceBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		t.Failed(err)
		problems.Write(w, http.StatusBadRequest, "invalid-request", "Invalid request", "malformed body")
		return
	}
	kind := src.Kind
	var kindPtr *catalog.SourceKind
	if body.Type != "" && body.Type != string(src.Kind) {
		kind = catalog.SourceKind(body.Type)
		if !kind.Valid() {
			t.Failed(errors.New("unknown source type"))
			problems.Write(w, http.StatusBadRequest, "unknown-source-type", "Unknown source type", body.Type)
			return
		}
		kindPtr = &kind
	}
	if body.Metadata != nil {
		if err := catalog.ValidateMetadata(kind, body.Metadata); err != nil {
			t.Failed(err)
			problems.Write(w, http.StatusBadRequest, "invalid-metadata", "Invalid metadata", err.Error())
			return
		}
	} else if kindPtr != nil {
		// A type change without fresh metadata cannot satisfy the new
		// type's required fields.
		t.Failed(errors.New("metadata required on type change"))
		problems.Write(w, http.StatusBadRequest, "invalid-metadata", "Invalid metadata", "metadata is required when changing type")
		return
	}
	if err := a.store.UpdateSource(r.Context(), src.ID, kindPtr, body.Metadata); err != nil {
		t.Failed(err)
		problems.Write(w, http.StatusInternalServerError, "update-failed", "Update failed", err.Error())
		return
	}
	updated, err := a.store.SourceByID(r.Context(), src.ID)
	if err != nil {
		t.Failed(err)
		problems.Write(w, http.StatusInternalServerError, "update-failed", "Update failed", err.Error())
		return
	}
	t.Success("source_id", src.ID)
	writeJSON(w, viewSource(updated), http.StatusOK)
}

func (a *App) deleteSource(w http.ResponseWriter, r *http.Request) {
	t := a.ops.Start(r.Context(), oplog.OpCRUD, "DeleteSource")
	src, ok := a.ownedSource(w, r)
	if !ok {
		t.Failed(errors.New("not found"))
		return
	}
	if err := a.store.DeleteSource(r.Context(), src.ID); err != nil {
		t.Failed(err)
		problems.Write(w, http.StatusInternalServerError, "delete-failed", "Delete failed", err.Error())
		return
	}
	t.Success("source_id", src.ID)
	writeJSON(w, map[string]any{"ok": true}, http.StatusOK)
}

// ownedSource loads the path source and enforces ownership. Cross-user reads
// get a 404, not a 403, so ids are not probeable.
func (a *App) ownedSource(w http.ResponseWriter, r *http.Request) (catalog.Source, bool) {
	id := chi.URLParam(r, "id")
	src, err := a.store.SourceByID(r.Context(), id)
	if err != nil {
		problems.Write(w, http.StatusNotFound, "not-found", "Not found", "no such source")
		return catalog.Source{}, false
	}
	if src.UserID != userIDFrom(r.Context()) {
		problems.Write(w, http.StatusNotFound, "not-found", "Not found", "no such source")
		return catalog.Source{}, false
	}
	return src, true
}

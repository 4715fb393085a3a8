package adminapi

import (
	"net/http"
	"strconv"

	"searchrelay/internal/oplog"
	"searchrelay/pkg/problems"
)

func (a *App) listLogs(w http.ResponseWriter, r *http.Request) {
	if a.logs == nil {
		problems.Write(w, http.StatusNotImplemented, "logs-unavailable", "Logs unavailable", "no log store is configured")
		return
	}
	q := r.URL.Query()
	limit, _ := strconv.Atoi(q.Get("limit"))
	entries, err := a.logs.Recent(r.Context(), oplog.Filter{
		Operation:     q.Get("operation"),
		Level:         q.Get("level"),
		CorrelationID: q.Get("correlation_id"),
		Limit:         limit,
	})
	if err != nil {
		problems.Write(w, http.StatusInternalServerError, "logs-failed", "Logs failed", err.Error())
		return
	}
	writeJSON(w, map[string]any{"logs": entries, "count": len(entries)}, http.StatusOK)
}

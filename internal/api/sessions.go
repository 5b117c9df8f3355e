package api

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/ruslano69/tdtp-migrator/pkg/quarantine"
	"github.com/ruslano69/tdtp-migrator/pkg/session"
)

const defaultFailedLimit = 100

type createSessionRequest struct {
	Profile string `json:"profile"`
	SQL     string `json:"sql"`
	MaxRows *int   `json:"maxRows,omitempty"`
}

// POST /api/sessions
func (h *handler) createSession(w http.ResponseWriter, r *http.Request) {
	var req createSessionRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	profile := strings.TrimSpace(req.Profile)
	if profile == "" {
		profile = h.deps.SourceProfile
	}
	if profile == "" {
		writeError(w, http.StatusBadRequest, "profile is required")
		return
	}

	st, err := h.deps.Sessions.Create(r.Context(), profile, req.SQL, req.MaxRows)
	if err != nil {
		writeFailure(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, st)
}

// GET /api/sessions?logLimit=
func (h *handler) listSessions(w http.ResponseWriter, r *http.Request) {
	logLimit, err := queryIntDefault(r, "logLimit", session.DefaultLogLimit)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	list, err := h.deps.Sessions.Statuses(logLimit)
	if err != nil {
		writeFailure(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

// DELETE /api/sessions
func (h *handler) deleteSessions(w http.ResponseWriter, r *http.Request) {
	n, err := h.deps.Sessions.DeleteAll()
	if err != nil {
		writeFailure(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"deleted": n})
}

// GET /api/sessions/{id}?logLimit=
func (h *handler) getSession(w http.ResponseWriter, r *http.Request) {
	id, ok := sessionID(w, r)
	if !ok {
		return
	}
	logLimit, err := queryIntDefault(r, "logLimit", session.DefaultLogLimit)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	st, err := h.deps.Sessions.Status(id, logLimit)
	if err != nil {
		writeFailure(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

// DELETE /api/sessions/{id}
func (h *handler) deleteSession(w http.ResponseWriter, r *http.Request) {
	id, ok := sessionID(w, r)
	if !ok {
		return
	}
	found, err := h.deps.Sessions.Delete(id)
	if err != nil {
		writeFailure(w, r, err)
		return
	}
	if !found {
		writeError(w, http.StatusNotFound, session.ErrSessionNotFound.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// POST /api/sessions/{id}/next?dryRun=
func (h *handler) runNext(w http.ResponseWriter, r *http.Request) {
	id, ok := sessionID(w, r)
	if !ok {
		return
	}
	dryRun, err := queryBool(r, "dryRun")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	// отключение клиента не должно обрывать запись на середине
	st, err := h.deps.Sessions.RunNext(context.WithoutCancel(r.Context()), id, dryRun)
	if err != nil {
		writeFailure(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

// POST /api/sessions/{id}/all?dryRun=&maxItems=
func (h *handler) runAll(w http.ResponseWriter, r *http.Request) {
	id, ok := sessionID(w, r)
	if !ok {
		return
	}
	dryRun, err := queryBool(r, "dryRun")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	maxItems, err := queryInt(r, "maxItems")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	st, err := h.deps.Sessions.RunAll(context.WithoutCancel(r.Context()), id, dryRun, maxItems)
	if err != nil {
		writeFailure(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

// GET /api/sessions/{id}/failed?max=
func (h *handler) failedRows(w http.ResponseWriter, r *http.Request) {
	id, ok := sessionID(w, r)
	if !ok {
		return
	}
	limit, err := queryIntDefault(r, "max", defaultFailedLimit)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	rows, err := h.deps.Sessions.Failed(id, limit)
	if err != nil {
		writeFailure(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rows)
}

// POST /api/sessions/{id}/failed/export?format=xlsx|jsonl.zst
//
// Файл отдается телом ответа; копии уходят в каталог экспорта
// и в S3, если они настроены.
func (h *handler) exportFailed(w http.ResponseWriter, r *http.Request) {
	id, ok := sessionID(w, r)
	if !ok {
		return
	}
	if h.deps.Exporter == nil {
		writeError(w, http.StatusNotImplemented, "quarantine export is not configured")
		return
	}
	format, err := quarantine.ParseFormat(r.URL.Query().Get("format"))
	if err != nil {
		writeFailure(w, r, err)
		return
	}
	rows, err := h.deps.Sessions.Failed(id, session.MaxFailedRows)
	if err != nil {
		writeFailure(w, r, err)
		return
	}
	a, err := h.deps.Exporter.Export(r.Context(), id, format, rows)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	w.Header().Set("Content-Type", a.ContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", a.Name))
	w.Header().Set("X-Quarantine-Rows", strconv.Itoa(a.Count))
	if a.Location != "" {
		w.Header().Set("X-Quarantine-Location", a.Location)
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(a.Data)
}

func sessionID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid session id")
		return uuid.Nil, false
	}
	return id, true
}

package api

import (
	"context"
	"net/http"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/ruslano69/tdtp-migrator/pkg/adapters"
	"github.com/ruslano69/tdtp-migrator/pkg/extract"
	"github.com/ruslano69/tdtp-migrator/pkg/runner"
	"github.com/ruslano69/tdtp-migrator/pkg/schema"
	"github.com/ruslano69/tdtp-migrator/pkg/security"
)

const (
	defaultPreviewLimit = 20
	maxPreviewLimit     = 200
)

// POST /api/jobs/run
func (h *handler) runJob(w http.ResponseWriter, r *http.Request) {
	var job runner.Job
	if !decodeJSON(w, r, &job) {
		return
	}
	sum, err := h.deps.Runner.Run(context.WithoutCancel(r.Context()), job)
	if err != nil {
		writeFailure(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sum)
}

// GET /api/logs?limit=
func (h *handler) getLogs(w http.ResponseWriter, r *http.Request) {
	limit, err := queryIntDefault(r, "limit", 0)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, h.deps.Runner.Log().Snapshot(limit))
}

// DELETE /api/logs
func (h *handler) clearLogs(w http.ResponseWriter, _ *http.Request) {
	h.deps.Runner.Log().Clear()
	w.WriteHeader(http.StatusNoContent)
}

type previewRequest struct {
	Profile string `json:"profile"`
	SQL     string `json:"sql"`
	Limit   int    `json:"limit"`
}

type previewResponse struct {
	Columns []string      `json:"columns"`
	Rows    []extract.Row `json:"rows"`
}

// POST /api/preview - проверенный SELECT с небольшим лимитом строк
func (h *handler) preview(w http.ResponseWriter, r *http.Request) {
	var req previewRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := security.ValidateSelectOnly(req.SQL); err != nil {
		writeFailure(w, r, err)
		return
	}
	limit := req.Limit
	if limit <= 0 {
		limit = defaultPreviewLimit
	}
	limit = min(limit, maxPreviewLimit)

	profile := strings.TrimSpace(req.Profile)
	if profile == "" {
		profile = h.deps.SourceProfile
	}
	src, err := h.deps.Connections.Get(r.Context(), profile)
	if err != nil {
		writeFailure(w, r, err)
		return
	}
	rows, err := extract.Extract(r.Context(), src.DB(), src.Dialect().LimitRows(strings.TrimSpace(req.SQL), limit))
	if err != nil {
		writeFailure(w, r, err)
		return
	}

	resp := previewResponse{Columns: []string{}, Rows: rows}
	if len(rows) > 0 {
		resp.Columns = rows[0].Columns()
	}
	writeJSON(w, http.StatusOK, resp)
}

type connectionTestRequest struct {
	Source      string `json:"source"`
	Destination string `json:"destination"`
}

type connectionStatus struct {
	Profile string `json:"profile"`
	OK      bool   `json:"ok"`
	Type    string `json:"type,omitempty"`
	Version string `json:"version,omitempty"`
	Error   string `json:"error,omitempty"`
}

// POST /api/connections/test - версия сервера по каждому профилю.
// Недоступная база попадает в тело ответа, а не в HTTP-ошибку.
func (h *handler) testConnections(w http.ResponseWriter, r *http.Request) {
	var req connectionTestRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Source == "" {
		req.Source = h.deps.SourceProfile
	}
	if req.Destination == "" {
		req.Destination = h.deps.DestinationProfile
	}

	out := make(map[string]connectionStatus, 2)
	if req.Source != "" {
		out["source"] = h.probe(r.Context(), req.Source)
	}
	if req.Destination != "" {
		out["destination"] = h.probe(r.Context(), req.Destination)
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *handler) probe(ctx context.Context, profile string) connectionStatus {
	st := connectionStatus{Profile: profile}
	a, err := h.deps.Connections.Get(ctx, profile)
	if err == nil {
		st.Type = a.GetDatabaseType()
		st.Version, err = a.GetDatabaseVersion(ctx)
	}
	if err != nil {
		st.Error = err.Error()
		log.Warn().Err(err).Str("profile", profile).Msg("connection test failed")
		return st
	}
	st.OK = true
	return st
}

// GET /api/destination/tables?schema=
func (h *handler) destinationTables(w http.ResponseWriter, r *http.Request) {
	in, ok := h.destinationIntrospector(w, r)
	if !ok {
		return
	}
	tables, err := in.ListTables(r.Context(), h.schemaParam(r))
	if err != nil {
		writeFailure(w, r, err)
		return
	}
	if tables == nil {
		tables = []string{}
	}
	writeJSON(w, http.StatusOK, tables)
}

// GET /api/destination/columns?schema=&table=
func (h *handler) destinationColumns(w http.ResponseWriter, r *http.Request) {
	table := strings.TrimSpace(r.URL.Query().Get("table"))
	if table == "" {
		writeError(w, http.StatusBadRequest, "table is required")
		return
	}
	in, ok := h.destinationIntrospector(w, r)
	if !ok {
		return
	}
	cols, err := in.DescribeColumns(r.Context(), h.schemaParam(r), table)
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, cols)
}

func (h *handler) schemaParam(r *http.Request) string {
	if s := strings.TrimSpace(r.URL.Query().Get("schema")); s != "" {
		return s
	}
	return h.deps.DestinationSchema
}

func (h *handler) destinationIntrospector(w http.ResponseWriter, r *http.Request) (*schema.Introspector, bool) {
	if h.deps.DestinationProfile == "" {
		writeError(w, http.StatusNotImplemented, "no destination profile configured")
		return nil, false
	}
	dest, err := h.deps.Connections.Get(r.Context(), h.deps.DestinationProfile)
	if err != nil {
		writeFailure(w, r, err)
		return nil, false
	}
	return schema.NewIntrospector(dest.DB(), dest.Dialect()), true
}

var _ Connections = (*adapters.Registry)(nil)

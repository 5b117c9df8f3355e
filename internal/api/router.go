// Package api - HTTP API сессий миграции, пакетных заданий
// и метаданных назначения.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ruslano69/tdtp-migrator/pkg/adapters"
	"github.com/ruslano69/tdtp-migrator/pkg/quarantine"
	"github.com/ruslano69/tdtp-migrator/pkg/runner"
	"github.com/ruslano69/tdtp-migrator/pkg/session"
)

// Connections выдает подключения по имени профиля (adapters.Registry)
type Connections interface {
	Get(ctx context.Context, profile string) (adapters.Adapter, error)
}

// Deps - сервисы за API
type Deps struct {
	Sessions    *session.Service
	Runner      *runner.Runner
	Connections Connections
	Exporter    *quarantine.Exporter

	// SourceProfile - профиль по умолчанию для создания сессии
	SourceProfile string
	// DestinationProfile и DestinationSchema обслуживают /api/destination
	DestinationProfile string
	DestinationSchema  string

	// RequestTimeout ограничивает все запросы, кроме RunAll и пакетных заданий
	RequestTimeout time.Duration
}

// NewRouter собирает chi-роутер со всеми обработчиками
func NewRouter(d Deps) http.Handler {
	if d.RequestTimeout <= 0 {
		d.RequestTimeout = 60 * time.Second
	}
	h := &handler{deps: d}

	r := chi.NewRouter()
	r.Use(zerologMiddleware)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", handleHealthz)
	r.Handle("/metrics", promhttp.Handler())

	// RunAll и пакетные задания обрабатывают тысячи строк, таймаут к ним не применяется
	timeout := middleware.Timeout(d.RequestTimeout)

	r.Route("/api", func(r chi.Router) {
		r.With(timeout).Post("/connections/test", h.testConnections)
		r.With(timeout).Post("/preview", h.preview)
		r.Post("/jobs/run", h.runJob)

		r.With(timeout).Get("/logs", h.getLogs)
		r.With(timeout).Delete("/logs", h.clearLogs)

		r.Route("/sessions", func(r chi.Router) {
			r.With(timeout).Post("/", h.createSession)
			r.With(timeout).Get("/", h.listSessions)
			r.With(timeout).Delete("/", h.deleteSessions)
			r.With(timeout).Get("/{id}", h.getSession)
			r.With(timeout).Delete("/{id}", h.deleteSession)
			r.With(timeout).Post("/{id}/next", h.runNext)
			r.Post("/{id}/all", h.runAll)
			r.With(timeout).Get("/{id}/failed", h.failedRows)
			r.With(timeout).Post("/{id}/failed/export", h.exportFailed)
		})

		r.With(timeout).Get("/destination/tables", h.destinationTables)
		r.With(timeout).Get("/destination/columns", h.destinationColumns)
	})

	return r
}

type handler struct {
	deps Deps
}

func handleHealthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Package metrics - Prometheus-метрики мигратора
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// rowsProcessed - строки, обработанные путем записи (session|batch), по итогу
	rowsProcessed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tdtp_migrator_rows_processed_total",
			Help: "Rows written to the destination, by execution path and outcome",
		},
		[]string{"path", "outcome"},
	)

	// loadDuration - время записи одной строки в назначение
	loadDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "tdtp_migrator_row_load_seconds",
			Help:    "Latency of a single destination write",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"contract"},
	)

	// sessionsLive - количество сессий в памяти
	sessionsLive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "tdtp_migrator_sessions_live",
			Help: "Migration sessions currently held in memory",
		},
	)

	// quarantinedRows - строки, исчерпавшие попытки
	quarantinedRows = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "tdtp_migrator_quarantined_rows_total",
			Help: "Rows moved to the failed list after exhausting their attempts",
		},
	)
)

// Пути выполнения
const (
	PathSession = "session"
	PathBatch   = "batch"
)

// ObserveRow учитывает одну запись строки
func ObserveRow(path, contract, outcome string, d time.Duration) {
	rowsProcessed.WithLabelValues(path, outcome).Inc()
	loadDuration.WithLabelValues(contract).Observe(d.Seconds())
}

// SetSessionsLive обновляет количество живых сессий
func SetSessionsLive(n int) {
	sessionsLive.Set(float64(n))
}

// RowQuarantined учитывает строку, ушедшую в failed
func RowQuarantined() {
	quarantinedRows.Inc()
}

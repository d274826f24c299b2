// Package metrics exposes optional Prometheus gauges for the Coordinator,
// an enrichment beyond the distilled spec grounded on prometheus/client_golang
// (the one pack repo with a real Prometheus integration to learn the
// registration/Handler idiom from).
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	WorkersTotal = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "klauss_workers_total",
			Help: "Total number of workers by status",
		},
		[]string{"status"},
	)

	TasksTotal = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "klauss_tasks_total",
			Help: "Total number of tasks by status",
		},
		[]string{"status"},
	)

	TasksClaimedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "klauss_tasks_claimed_total",
			Help: "Total number of tasks claimed across all workers",
		},
	)

	TasksCompletedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "klauss_tasks_completed_total",
			Help: "Total number of tasks completed successfully",
		},
	)

	TasksFailedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "klauss_tasks_failed_total",
			Help: "Total number of tasks that terminated failed",
		},
	)

	TasksRecoveredTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "klauss_tasks_recovered_total",
			Help: "Total number of stale tasks recovered back to pending",
		},
	)

	TaskDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "klauss_task_duration_seconds",
			Help:    "Time from claim to terminal state for a task",
			Buckets: []float64{1, 5, 15, 30, 60, 300, 900, 1800, 3600},
		},
	)
)

func init() {
	prometheus.MustRegister(WorkersTotal)
	prometheus.MustRegister(TasksTotal)
	prometheus.MustRegister(TasksClaimedTotal)
	prometheus.MustRegister(TasksCompletedTotal)
	prometheus.MustRegister(TasksFailedTotal)
	prometheus.MustRegister(TasksRecoveredTotal)
	prometheus.MustRegister(TaskDuration)
}

// Handler returns the Prometheus scrape handler for --metrics-port.
func Handler() http.Handler {
	return promhttp.Handler()
}

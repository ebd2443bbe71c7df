package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	renderTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "selectsql_render_total",
			Help: "Total number of render calls by outcome and message kind.",
		},
		[]string{"outcome", "kind"},
	)
	renderDurationSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "selectsql_render_duration_seconds",
			Help:    "Render latency including load, query and materialization.",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
	)
	renderOutputRows = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "selectsql_render_output_rows",
			Help:    "Rows in successful render results.",
			Buckets: prometheus.ExponentialBuckets(1, 10, 8),
		},
	)
	stepRunsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "selectsql_step_runs_total",
			Help: "Total number of object store step runs by result.",
		},
		[]string{"result"},
	)
)

func init() {
	prometheus.MustRegister(
		renderTotal,
		renderDurationSeconds,
		renderOutputRows,
		stepRunsTotal,
	)
}

// ObserveRender records one finished render. kind is empty on success.
func ObserveRender(outcome, kind string, rows int, elapsed time.Duration) {
	renderTotal.WithLabelValues(outcome, kind).Inc()
	renderDurationSeconds.Observe(elapsed.Seconds())
	if outcome == "success" {
		renderOutputRows.Observe(float64(rows))
	}
}

func IncrementStepRun(result string) {
	stepRunsTotal.WithLabelValues(result).Inc()
}

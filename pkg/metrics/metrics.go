// Package metrics exposes Prometheus metrics for the sync core.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	operationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scratchpad_operations_total",
			Help: "Total number of workspace operations",
		},
		[]string{"op", "result"},
	)

	treeLoadsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scratchpad_tree_loads_total",
			Help: "Total number of file tree loads",
		},
		[]string{"result"},
	)

	treeLoadDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "scratchpad_tree_load_duration_seconds",
			Help:    "Time to walk the runtime filesystem",
			Buckets: prometheus.DefBuckets,
		},
	)

	treeSize = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "scratchpad_tree_size",
			Help: "Number of files and directories in the file tree",
		},
	)

	bootsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scratchpad_boots_total",
			Help: "Total number of runtime boots",
		},
		[]string{"result"},
	)

	resetsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "scratchpad_resets_total",
			Help: "Total number of workspace resets",
		},
	)

	openSessions = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "scratchpad_open_sessions",
			Help: "Number of files open for editing",
		},
	)
)

// Handler returns the HTTP handler for scraping.
func Handler() http.Handler {
	return promhttp.Handler()
}

func result(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}

// RecordOperation counts a completed workspace operation.
func RecordOperation(op string, err error) {
	operationsTotal.WithLabelValues(op, result(err)).Inc()
}

// RecordTreeLoad records the outcome of a tree load. `res` is one of
// "success", "error", or "timeout".
func RecordTreeLoad(res string, duration time.Duration, size int) {
	treeLoadsTotal.WithLabelValues(res).Inc()
	treeLoadDuration.Observe(duration.Seconds())
	treeSize.Set(float64(size))
}

// RecordBoot counts a runtime boot attempt.
func RecordBoot(err error) {
	bootsTotal.WithLabelValues(result(err)).Inc()
}

// RecordReset counts a workspace reset.
func RecordReset() {
	resetsTotal.Inc()
}

// SetOpenSessions records the number of open editor sessions.
func SetOpenSessions(count int) {
	openSessions.Set(float64(count))
}

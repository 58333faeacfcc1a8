package server

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"
)

var (
	requestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "scratchpad_http_requests_total",
		Help: "A counter of total requests",
	}, []string{"code", "method"})

	requestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "scratchpad_http_request_duration_seconds",
		Help:    "A histogram of request duration",
		Buckets: []float64{.005, .025, .1, .25, 1, 5, 15},
	}, []string{"code", "method"})

	requestsInFlight = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "scratchpad_http_requests_in_flight",
		Help: "A gauge of requests currently in flight",
	})

	responseSize = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "scratchpad_http_response_size_bytes",
		Help:    "A histogram of response size",
		Buckets: prometheus.ExponentialBuckets(64, 4, 8),
	}, []string{})
)

func instrument(next http.Handler) http.Handler {
	return promhttp.InstrumentHandlerInFlight(requestsInFlight,
		promhttp.InstrumentHandlerDuration(requestDuration,
			promhttp.InstrumentHandlerCounter(requestsTotal,
				promhttp.InstrumentHandlerResponseSize(responseSize, next))))
}

func logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		log.WithFields(log.Fields{
			"method":   r.Method,
			"path":     r.URL.Path,
			"status":   ww.Status(),
			"duration": time.Since(start),
		}).Debug("Handled request")
	})
}

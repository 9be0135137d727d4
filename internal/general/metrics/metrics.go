// Package metrics exposes Prometheus counters for the dispatch flow and an
// HTTP middleware for request accounting.
package metrics

import (
	"bufio"
	"errors"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dispatch_http_requests_total",
		Help: "Total number of HTTP requests.",
	}, []string{"method", "path", "status"})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "dispatch_http_request_duration_seconds",
		Help:    "HTTP request latency.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path"})

	RidesCreated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "dispatch_rides_created_total",
		Help: "Total number of rides created.",
	})

	RideStatusChanges = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dispatch_ride_status_changes_total",
		Help: "Ride status transitions by resulting status.",
	}, []string{"status"})

	OffersCreated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "dispatch_offers_created_total",
		Help: "Total number of offers sent to drivers.",
	})

	OffersAccepted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "dispatch_offers_accepted_total",
		Help: "Total number of offers accepted by drivers.",
	})

	OffersExpired = promauto.NewCounter(prometheus.CounterOpts{
		Name: "dispatch_offers_expired_total",
		Help: "Total number of offers that expired unanswered.",
	})

	DispatchPhases = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dispatch_phases_total",
		Help: "Dispatch phases run, by phase number.",
	}, []string{"phase"})
)

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (rec *statusRecorder) WriteHeader(code int) {
	rec.status = code
	rec.ResponseWriter.WriteHeader(code)
}

// Hijack keeps WebSocket upgrades working behind the middleware.
func (rec *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hj, ok := rec.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("response writer does not support hijacking")
	}
	return hj.Hijack()
}

// HTTPMiddleware records request counts and latency per route pattern.
func HTTPMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(rec, r)

		path := r.Pattern
		if path == "" {
			path = "unmatched"
		}
		HTTPRequestsTotal.WithLabelValues(r.Method, path, strconv.Itoa(rec.status)).Inc()
		HTTPRequestDuration.WithLabelValues(r.Method, path).Observe(time.Since(start).Seconds())
	})
}

// Copyright (c) 2025 Darren Soothill
// Licensed under the MIT License

package daemon

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/time/rate"

	"github.com/ImaSet/laptop-smart-power-manager/pkg/logger"
)

const (
	shutdownTimeout = 5 * time.Second

	healthRateLimit = 10
	healthRateBurst = 20
)

// runningReporter reports whether monitoring is still alive.
type runningReporter interface {
	IsRunning() bool
}

// newServer builds the HTTP server exposing Prometheus metrics and the
// health endpoints. The listen address defaults to loopback; exposing it
// further is a deliberate configuration choice.
func newServer(addr string, controller runningReporter) *http.Server {
	healthLimiter := rate.NewLimiter(healthRateLimit, healthRateBurst)
	readyLimiter := rate.NewLimiter(healthRateLimit, healthRateBurst)

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/health", rateLimitMiddleware(healthLimiter, healthCheckHandler))
	mux.HandleFunc("/ready", rateLimitMiddleware(readyLimiter, func(w http.ResponseWriter, r *http.Request) {
		readinessCheckHandler(w, r, controller)
	}))

	return &http.Server{
		Addr:    addr,
		Handler: mux,
	}
}

// rateLimitMiddleware wraps an HTTP handler with rate limiting
func rateLimitMiddleware(limiter *rate.Limiter, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !limiter.Allow() {
			logger.Warn().
				Str("path", r.URL.Path).
				Str("remote_addr", r.RemoteAddr).
				Msg("Rate limit exceeded for health endpoint")
			http.Error(w, "Rate limit exceeded", http.StatusTooManyRequests)
			return
		}
		next(w, r)
	}
}

// healthCheckHandler handles health check requests
func healthCheckHandler(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	if _, writeErr := w.Write([]byte("OK")); writeErr != nil {
		logger.Error().Err(writeErr).Msg("Failed to write health check response")
	}
}

// readinessCheckHandler reports NOT READY once the monitoring loop ended,
// so a supervisor can tell a live process from a dead controller.
func readinessCheckHandler(w http.ResponseWriter, _ *http.Request, controller runningReporter) {
	if !controller.IsRunning() {
		w.WriteHeader(http.StatusServiceUnavailable)
		if _, writeErr := w.Write([]byte("NOT READY: monitoring stopped")); writeErr != nil {
			logger.Error().Err(writeErr).Msg("Failed to write readiness check response")
		}
		return
	}

	w.WriteHeader(http.StatusOK)
	if _, writeErr := w.Write([]byte("READY")); writeErr != nil {
		logger.Error().Err(writeErr).Msg("Failed to write readiness check response")
	}
}

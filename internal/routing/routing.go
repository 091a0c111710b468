// Package routing wires the demo application handlers into a router.
package routing

import (
	"log/slog"
	"net/http"
	"time"

	"git.sr.ht/~jakintosh/fbclient/internal/app"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// BuildRouter routes the demo pages. A non-nil gatherer is exposed at
// /metrics.
func BuildRouter(
	s *app.Server,
	gatherer prometheus.Gatherer,
	logger *slog.Logger,
) *mux.Router {
	if logger == nil {
		logger = slog.Default()
	}
	r := mux.NewRouter()
	r.Use(logRequests(logger))

	// pages; canvas loads POST the signed request to /
	r.HandleFunc("/", s.Home).Methods("GET", "POST")
	r.HandleFunc("/login", s.Login).Methods("GET")
	r.HandleFunc("/logout", s.Logout).Methods("GET", "POST")

	// json
	r.HandleFunc("/me", s.Me).Methods("GET")
	r.HandleFunc("/photo", s.Photo).Methods("GET")

	if gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})).Methods("GET")
	}
	return r
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (w *statusRecorder) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

func logRequests(logger *slog.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(rec, r)
			logger.Debug("request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", rec.status,
				"duration", time.Since(start),
			)
		})
	}
}

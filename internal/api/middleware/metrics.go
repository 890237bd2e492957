// metrics.go — Prometheus HTTP метрики:
// uc_http_requests_total, uc_http_request_duration_seconds.
package middleware

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "uc_http_requests_total",
			Help: "Общее количество HTTP-запросов",
		},
		[]string{"method", "path", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "uc_http_request_duration_seconds",
			Help:    "Длительность HTTP-запросов в секундах",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)
)

// MetricsMiddleware собирает количество и длительность запросов по endpoint.
func MetricsMiddleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			path := normalizePath(r.URL.Path)

			rec := recordStatus(w)
			next.ServeHTTP(rec, r)

			status := strconv.Itoa(rec.status)
			httpRequestsTotal.WithLabelValues(r.Method, path, status).Inc()
			httpRequestDuration.WithLabelValues(r.Method, path).Observe(time.Since(start).Seconds())
		})
	}
}

// Префиксы маршрутов с id загрузки.
var idPrefixes = []string{"/api/v1/uploads/", "/files/"}

// normalizePath заменяет id загрузки на {id}, чтобы ограничить кардинальность.
// /api/v1/uploads/file_1712345678901_abc123def/download → /api/v1/uploads/{id}/download
func normalizePath(path string) string {
	switch path {
	case "/", "/upload", "/set-language", "/health/live", "/health/ready", "/metrics",
		"/api/v1/uploads", "/api/v1/uploads/progress":
		return path
	}
	if strings.HasPrefix(path, "/static/") {
		return "/static/*"
	}
	for _, prefix := range idPrefixes {
		rest, ok := strings.CutPrefix(path, prefix)
		if !ok || rest == "" {
			continue
		}
		if _, suffix, found := strings.Cut(rest, "/"); found {
			return prefix + "{id}/" + suffix
		}
		return prefix + "{id}"
	}
	return "other"
}

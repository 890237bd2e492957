// logging.go — журнал HTTP-запросов Upload Coordinator через slog.
package middleware

import (
	"log/slog"
	"net/http"
	"time"
)

// statusRecorder запоминает статус и число байт ответа для журнала и метрик.
type statusRecorder struct {
	http.ResponseWriter
	status int
	bytes  int64
}

func recordStatus(w http.ResponseWriter) *statusRecorder {
	return &statusRecorder{ResponseWriter: w, status: http.StatusOK}
}

func (sr *statusRecorder) WriteHeader(code int) {
	sr.status = code
	sr.ResponseWriter.WriteHeader(code)
}

func (sr *statusRecorder) Write(b []byte) (int, error) {
	n, err := sr.ResponseWriter.Write(b)
	sr.bytes += int64(n)
	return n, err
}

// Unwrap нужен http.ResponseController (Flush, SetWriteDeadline).
func (sr *statusRecorder) Unwrap() http.ResponseWriter {
	return sr.ResponseWriter
}

// RequestLogger пишет строку журнала на каждый запрос.
// Пробы /health/* и /metrics идут на DEBUG, остальные запросы по статусу:
// INFO до 4xx, WARN для 4xx, ERROR для 5xx. Для загрузок дополнительно
// пишется объявленный размер тела и предмет.
func RequestLogger(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := recordStatus(w)

			next.ServeHTTP(rec, r)

			path := normalizePath(r.URL.Path)
			attrs := []slog.Attr{
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.Int("status", rec.status),
				slog.Duration("duration", time.Since(start)),
				slog.Int64("bytes", rec.bytes),
				slog.String("remote_addr", r.RemoteAddr),
			}
			if r.Method == http.MethodPost && (path == "/upload" || path == "/api/v1/uploads") {
				attrs = append(attrs, slog.Int64("content_length", r.ContentLength))
			}
			if subject := r.URL.Query().Get("subject"); subject != "" {
				attrs = append(attrs, slog.String("subject", subject))
			}

			logger.LogAttrs(r.Context(), logLevel(path, rec.status), "HTTP запрос", attrs...)
		})
	}
}

func logLevel(path string, status int) slog.Level {
	switch {
	case status >= http.StatusInternalServerError:
		return slog.LevelError
	case status >= http.StatusBadRequest:
		return slog.LevelWarn
	case path == "/health/live" || path == "/health/ready" || path == "/metrics":
		return slog.LevelDebug
	default:
		return slog.LevelInfo
	}
}

package middleware

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/bigkaa/coursehub-uploads/internal/api/openapi"
)

func TestNormalizePath(t *testing.T) {
	tests := []struct {
		path string
		want string
	}{
		{"/", "/"},
		{"/health/ready", "/health/ready"},
		{"/api/v1/uploads", "/api/v1/uploads"},
		{"/api/v1/uploads/progress", "/api/v1/uploads/progress"},
		{"/api/v1/uploads/file_1712345678901_abc123def", "/api/v1/uploads/{id}"},
		{"/api/v1/uploads/file_1712345678901_abc123def/download", "/api/v1/uploads/{id}/download"},
		{"/static/app.css", "/static/*"},
		{"/upload", "/upload"},
		{"/files/file_1712345678901_abc123def/download", "/files/{id}/download"},
		{"/files/file_1712345678901_abc123def/remove", "/files/{id}/remove"},
		{"/wp-admin", "other"},
	}
	for _, tt := range tests {
		if got := normalizePath(tt.path); got != tt.want {
			t.Errorf("normalizePath(%q) = %q, ожидалось %q", tt.path, got, tt.want)
		}
	}
}

func TestRequestLogger_PassesStatus(t *testing.T) {
	handler := RequestLogger(testLogger())(MetricsMiddleware()(
		http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusTeapot)
		}),
	))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/uploads", nil))
	if rec.Code != http.StatusTeapot {
		t.Errorf("статус = %d", rec.Code)
	}
}

func newValidatedHandler(t *testing.T) http.Handler {
	t.Helper()
	doc, err := openapi.Load(context.Background())
	if err != nil {
		t.Fatalf("openapi.Load: %v", err)
	}
	mw, err := OpenAPIValidator(doc, testLogger())
	if err != nil {
		t.Fatalf("OpenAPIValidator: %v", err)
	}
	return mw(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
}

func TestLogLevel(t *testing.T) {
	tests := []struct {
		path   string
		status int
		want   slog.Level
	}{
		{"/health/ready", http.StatusOK, slog.LevelDebug},
		{"/health/ready", http.StatusServiceUnavailable, slog.LevelError},
		{"/api/v1/uploads", http.StatusCreated, slog.LevelInfo},
		{"/api/v1/uploads", http.StatusRequestEntityTooLarge, slog.LevelWarn},
		{"/upload", http.StatusSeeOther, slog.LevelInfo},
	}
	for _, tt := range tests {
		if got := logLevel(tt.path, tt.status); got != tt.want {
			t.Errorf("logLevel(%q, %d) = %v, ожидалось %v", tt.path, tt.status, got, tt.want)
		}
	}
}

func TestOpenAPIValidator(t *testing.T) {
	handler := newValidatedHandler(t)

	tests := []struct {
		name   string
		method string
		path   string
		want   int
	}{
		{"список", http.MethodGet, "/api/v1/uploads", http.StatusOK},
		{"список по предмету", http.MethodGet, "/api/v1/uploads?subject=math", http.StatusOK},
		{"прогресс", http.MethodGet, "/api/v1/uploads/progress", http.StatusOK},
		{"скачивание", http.MethodGet, "/api/v1/uploads/file_1712345678901_abc123def/download", http.StatusOK},
		{"удаление", http.MethodDelete, "/api/v1/uploads/file_1712345678901_abc123def", http.StatusOK},
		{"неверный id", http.MethodDelete, "/api/v1/uploads/not-an-id", http.StatusBadRequest},
		{"неизвестный маршрут", http.MethodGet, "/api/v1/unknown", http.StatusNotFound},
		{"метод не поддерживается", http.MethodPut, "/api/v1/uploads", http.StatusMethodNotAllowed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, httptest.NewRequest(tt.method, tt.path, nil))
			if rec.Code != tt.want {
				t.Fatalf("статус = %d, ожидался %d (%s)", rec.Code, tt.want, rec.Body.String())
			}
			if tt.want >= 400 {
				var body map[string]map[string]string
				if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
					t.Fatalf("тело ответа: %v", err)
				}
				if body["error"]["code"] == "" {
					t.Error("пустой код ошибки")
				}
			}
		})
	}
}

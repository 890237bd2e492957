// dephealth_test.go — unit-тесты сборки зависимостей для мониторинга.
package service

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// TestHealthPath проверяет выбор пути проверки из URL.
func TestHealthPath(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "JWKS endpoint realm",
			input:    "https://idp.example.com/realms/course/protocol/openid-connect/certs",
			expected: "/realms/course/protocol/openid-connect/certs",
		},
		{
			name:     "без path — fallback",
			input:    "https://idp.example.com",
			expected: "/health",
		},
		{
			name:     "корневой path — fallback",
			input:    "http://idp:8080/",
			expected: "/health",
		},
		{
			name:     "некорректный URL — fallback",
			input:    "://bad",
			expected: "/health",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := healthPath(tt.input, "/health"); got != tt.expected {
				t.Errorf("healthPath(%q) = %q, ожидалось %q", tt.input, got, tt.expected)
			}
		})
	}
}

func TestDependencyOptions(t *testing.T) {
	if opts := dependencyOptions(DephealthConfig{}); len(opts) != 0 {
		t.Errorf("пустая конфигурация: %d зависимостей", len(opts))
	}
	opts := dependencyOptions(DephealthConfig{
		JWKSURL:       "https://idp.example.com/certs",
		S3Endpoint:    "http://minio:9000",
		CheckInterval: 15 * time.Second,
	})
	if len(opts) != 2 {
		t.Errorf("ожидалось 2 зависимости, получено %d", len(opts))
	}
}

// TestDephealthService_Disabled — без зависимостей сервис не создаётся,
// а методы нулевого указателя безопасны.
func TestDephealthService_Disabled(t *testing.T) {
	ds, err := NewDephealthServiceWithRegisterer(DephealthConfig{ServiceID: "upload-coordinator"}, testLogger(), prometheus.NewRegistry())
	if err != nil {
		t.Fatalf("NewDephealthService: %v", err)
	}
	if ds != nil {
		t.Fatal("ожидался nil без зависимостей")
	}
	if err := ds.Start(context.Background()); err != nil {
		t.Errorf("Start: %v", err)
	}
	ds.Stop()
	if h := ds.Health(); len(h) != 0 {
		t.Errorf("Health = %v", h)
	}
}

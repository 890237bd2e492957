package handlers

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

type pingerFunc func(ctx context.Context) error

func (f pingerFunc) Ping(ctx context.Context) error { return f(ctx) }

type staticDeps map[string]bool

func (d staticDeps) Health() map[string]bool { return d }

var (
	pingOK   = pingerFunc(func(context.Context) error { return nil })
	pingFail = pingerFunc(func(context.Context) error { return errors.New("недоступно") })
)

func TestHealthLive(t *testing.T) {
	h := NewHealthHandler(nil, nil)
	rec := httptest.NewRecorder()
	h.HealthLive(rec, httptest.NewRequest(http.MethodGet, "/health/live", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("статус = %d", rec.Code)
	}
	body := decode[map[string]any](t, rec)
	if body["status"] != "ok" || body["service"] != "upload-coordinator" {
		t.Errorf("ответ = %v", body)
	}
}

func TestHealthReady(t *testing.T) {
	tests := []struct {
		name       string
		checks     []Check
		wantCode   int
		wantStatus string
	}{
		{"всё доступно", []Check{
			{Name: "local_store", Pinger: pingOK, Critical: true},
			{Name: "remote_store", Pinger: pingOK},
		}, http.StatusOK, "ok"},
		{"удалённое недоступно", []Check{
			{Name: "local_store", Pinger: pingOK, Critical: true},
			{Name: "remote_store", Pinger: pingFail},
		}, http.StatusOK, "degraded"},
		{"локальное недоступно", []Check{
			{Name: "local_store", Pinger: pingFail, Critical: true},
			{Name: "remote_store", Pinger: pingOK},
		}, http.StatusServiceUnavailable, "fail"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewHealthHandler(tt.checks, staticDeps{"postgresql": true})
			rec := httptest.NewRecorder()
			h.HealthReady(rec, httptest.NewRequest(http.MethodGet, "/health/ready", nil))

			if rec.Code != tt.wantCode {
				t.Fatalf("статус = %d, ожидался %d", rec.Code, tt.wantCode)
			}
			body := decode[map[string]any](t, rec)
			if body["status"] != tt.wantStatus {
				t.Errorf("status = %v, ожидался %s", body["status"], tt.wantStatus)
			}
			if _, ok := body["dependencies"]; !ok {
				t.Error("нет секции dependencies")
			}
		})
	}
}

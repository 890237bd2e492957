// Пакет server — HTTP-сервер Upload Coordinator с graceful shutdown.
// Без TLS: TLS termination выполняется на ingress.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	apihandlers "github.com/bigkaa/coursehub-uploads/internal/api/handlers"
	"github.com/bigkaa/coursehub-uploads/internal/api/middleware"
	"github.com/bigkaa/coursehub-uploads/internal/config"
	uihandlers "github.com/bigkaa/coursehub-uploads/internal/ui/handlers"
	"github.com/bigkaa/coursehub-uploads/internal/ui/i18n"
	"github.com/bigkaa/coursehub-uploads/internal/ui/static"
)

// Handlers — обработчики, из которых собирается роутер.
type Handlers struct {
	Uploads *apihandlers.UploadsHandler
	Health  *apihandlers.HealthHandler
	Page    *uihandlers.UploadsPageHandler
	Bundle  *i18n.Bundle
	// Contract — OpenAPI контракт для проверки запросов /api/v1
	Contract *openapi3.T
	// JWTAuth — nil, если аутентификация выключена
	JWTAuth *middleware.JWTAuth
}

// NewRouter создаёт chi-роутер со всеми маршрутами.
//
//	/health/*, /metrics       — без аутентификации и локализации
//	/, /upload, /files/*      — страница загрузок
//	/api/v1/uploads*          — API (JWT, если включён; проверка по контракту)
func NewRouter(h Handlers, logger *slog.Logger) (http.Handler, error) {
	router := chi.NewRouter()

	router.Use(middleware.MetricsMiddleware())
	router.Use(middleware.RequestLogger(logger))

	router.Get("/health/live", h.Health.HealthLive)
	router.Get("/health/ready", h.Health.HealthReady)
	router.Handle("/metrics", promhttp.Handler())

	validator, err := middleware.OpenAPIValidator(h.Contract, logger)
	if err != nil {
		return nil, fmt.Errorf("создание проверки OpenAPI: %w", err)
	}

	router.Group(func(r chi.Router) {
		r.Use(h.Bundle.Middleware())

		r.Get("/", h.Page.HandlePage)
		r.Post("/upload", h.Page.HandleUpload)
		r.Get("/files/{id}/download", h.Page.HandleDownload)
		r.Post("/files/{id}/remove", h.Page.HandleRemove)
		r.Post("/set-language", uihandlers.HandleSetLanguage)
		r.Handle("/static/*", http.StripPrefix("/static/", http.FileServer(static.FileSystem())))

		r.Route("/api/v1", func(r chi.Router) {
			if h.JWTAuth != nil {
				r.Use(h.JWTAuth.Middleware())
			}
			r.Use(validator)

			r.Get("/uploads", h.Uploads.ListUploads)
			r.Post("/uploads", h.Uploads.CreateUploads)
			r.Get("/uploads/progress", h.Uploads.GetProgress)
			r.Get("/uploads/{id}/download", h.Uploads.DownloadUpload)
			r.Delete("/uploads/{id}", h.Uploads.DeleteUpload)
		})
	})

	return router, nil
}

// Server — HTTP-сервер Upload Coordinator.
type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
	cfg        *config.Config
}

// New создаёт HTTP-сервер с таймаутами из конфигурации.
func New(cfg *config.Config, logger *slog.Logger, handler http.Handler) *Server {
	return &Server{
		httpServer: &http.Server{
			Addr:         fmt.Sprintf(":%d", cfg.Port),
			Handler:      handler,
			ReadTimeout:  cfg.HTTPReadTimeout,
			WriteTimeout: cfg.HTTPWriteTimeout,
			IdleTimeout:  cfg.HTTPIdleTimeout,
		},
		logger: logger,
		cfg:    cfg,
	}
}

// Run запускает сервер и ожидает сигнала завершения (SIGINT, SIGTERM).
// При получении сигнала выполняется graceful shutdown.
func (s *Server) Run() error {
	errCh := make(chan error, 1)

	go func() {
		s.logger.Info("HTTP-сервер запущен", slog.String("addr", s.httpServer.Addr))

		err := s.httpServer.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	select {
	case sig := <-quit:
		s.logger.Info("Получен сигнал завершения", slog.String("signal", sig.String()))
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("ошибка HTTP-сервера: %w", err)
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()

	s.logger.Info("Выполняется graceful shutdown...")
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("ошибка при graceful shutdown: %w", err)
	}

	s.logger.Info("HTTP-сервер остановлен")
	return nil
}

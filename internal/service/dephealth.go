// dephealth.go — интеграция с topologymetrics SDK для мониторинга зависимостей.
//
// Координатор мониторит зависимости, которые включены в конфигурации:
//   - PostgreSQL — SQL checker через существующий pgxpool (connection pool mode, critical)
//   - JWKS endpoint провайдера идентификации (critical), если включена аутентификация
//   - S3-совместимое хранилище с собственным endpoint (MinIO), не critical:
//     при его недоступности работает откат на локальное хранилище
//
// Метрики доступны на /metrics вместе с остальными Prometheus-метриками.
package service

import (
	"context"
	"database/sql"
	"log/slog"
	"net/url"
	"time"

	"github.com/BigKAA/topologymetrics/sdk-go/dephealth"
	_ "github.com/BigKAA/topologymetrics/sdk-go/dephealth/checks/httpcheck" // HTTP checker для JWKS и S3
	"github.com/BigKAA/topologymetrics/sdk-go/dephealth/checks/pgcheck"     // PostgreSQL checker (pool mode)
	"github.com/prometheus/client_golang/prometheus"
)

// s3HealthPath — liveness endpoint MinIO.
const s3HealthPath = "/minio/health/live"

// DephealthConfig — параметры мониторинга зависимостей.
type DephealthConfig struct {
	// ServiceID — имя вершины графа текущего приложения
	ServiceID string
	// Group — имя группы в метриках (UC_DEPHEALTH_GROUP)
	Group string
	// DB — *sql.DB из pgxpool (stdlib.OpenDBFromPool); nil — PostgreSQL не используется
	DB *sql.DB
	// PGURL — URL PostgreSQL (для лейблов, не для подключения)
	PGURL string
	// JWKSURL — URL JWKS; пустой — аутентификация выключена
	JWKSURL string
	// S3Endpoint — собственный endpoint S3; пустой — AWS S3, не проверяется
	S3Endpoint string
	// CheckInterval — интервал проверки (UC_DEPHEALTH_CHECK_INTERVAL)
	CheckInterval time.Duration
}

// DephealthService — сервис мониторинга зависимостей через topologymetrics.
// Нулевой указатель допустим: все методы ничего не делают.
type DephealthService struct {
	dh     *dephealth.DepHealth
	logger *slog.Logger
}

// NewDephealthService создаёт сервис мониторинга зависимостей.
// Метрики регистрируются в глобальном Prometheus registry.
// Возвращает nil, если отслеживать нечего.
func NewDephealthService(cfg DephealthConfig, logger *slog.Logger) (*DephealthService, error) {
	return newDephealthService(cfg, logger)
}

// NewDephealthServiceWithRegisterer создаёт сервис с указанным Prometheus registerer.
// Используется в тестах для изоляции метрик.
func NewDephealthServiceWithRegisterer(
	cfg DephealthConfig,
	logger *slog.Logger,
	registerer prometheus.Registerer,
) (*DephealthService, error) {
	return newDephealthService(cfg, logger, dephealth.WithRegisterer(registerer))
}

func newDephealthService(cfg DephealthConfig, logger *slog.Logger, extraOpts ...dephealth.Option) (*DephealthService, error) {
	deps := dependencyOptions(cfg)
	if len(deps) == 0 {
		return nil, nil
	}

	opts := make([]dephealth.Option, 0, 1+len(deps)+len(extraOpts))
	opts = append(opts, dephealth.WithLogger(logger))
	opts = append(opts, deps...)
	opts = append(opts, extraOpts...)

	dh, err := dephealth.New(cfg.ServiceID, cfg.Group, opts...)
	if err != nil {
		return nil, err
	}

	return &DephealthService{
		dh:     dh,
		logger: logger.With(slog.String("component", "dephealth")),
	}, nil
}

// dependencyOptions собирает зависимости, включённые в конфигурации.
func dependencyOptions(cfg DephealthConfig) []dephealth.Option {
	var opts []dephealth.Option

	if cfg.DB != nil {
		opts = append(opts, dephealth.AddDependency("postgresql", dephealth.TypePostgres,
			pgcheck.New(pgcheck.WithDB(cfg.DB)),
			dephealth.FromURL(cfg.PGURL),
			dephealth.CheckInterval(cfg.CheckInterval),
			dephealth.Critical(true),
		))
	}

	if cfg.JWKSURL != "" {
		jwksOpts := []dephealth.DependencyOption{
			dephealth.FromURL(cfg.JWKSURL),
			dephealth.WithHTTPHealthPath(healthPath(cfg.JWKSURL, "/health")),
			dephealth.CheckInterval(cfg.CheckInterval),
			dephealth.Critical(true),
		}
		if isHTTPS(cfg.JWKSURL) {
			jwksOpts = append(jwksOpts, dephealth.WithHTTPTLSSkipVerify(false))
		}
		opts = append(opts, dephealth.HTTP("idp-jwks", jwksOpts...))
	}

	if cfg.S3Endpoint != "" {
		opts = append(opts, dephealth.HTTP("object-store",
			dephealth.FromURL(cfg.S3Endpoint),
			dephealth.WithHTTPHealthPath(s3HealthPath),
			dephealth.CheckInterval(cfg.CheckInterval),
			dephealth.Critical(false),
		))
	}

	return opts
}

// healthPath возвращает path из URL или fallback, если его нет.
// Для JWKS проверяется сам endpoint ключей.
func healthPath(rawURL, fallback string) string {
	parsed, err := url.Parse(rawURL)
	if err != nil || parsed.Path == "" || parsed.Path == "/" {
		return fallback
	}
	return parsed.Path
}

func isHTTPS(rawURL string) bool {
	parsed, err := url.Parse(rawURL)
	return err == nil && parsed.Scheme == "https"
}

// Start запускает периодическую проверку зависимостей.
func (ds *DephealthService) Start(ctx context.Context) error {
	if ds == nil {
		return nil
	}
	ds.logger.Info("Мониторинг зависимостей запущен")
	return ds.dh.Start(ctx)
}

// Stop останавливает мониторинг зависимостей.
func (ds *DephealthService) Stop() {
	if ds == nil {
		return
	}
	ds.dh.Stop()
	ds.logger.Info("Мониторинг зависимостей остановлен")
}

// Health возвращает текущее состояние зависимостей.
// Ключ — имя зависимости, значение — true если ok.
func (ds *DephealthService) Health() map[string]bool {
	if ds == nil {
		return map[string]bool{}
	}
	return ds.dh.Health()
}

// Пакет database — пул PostgreSQL для таблицы метаданных uploaded_files
// и её схема (встроенные миграции golang-migrate).
package database

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/bigkaa/coursehub-uploads/internal/config"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Параметры пула. Запросы к метаданным короткие, а параллельных
// записей не больше, чем одновременных загрузок.
const (
	poolMaxConns          = 8
	poolMinConns          = 1
	poolMaxConnIdleTime   = 5 * time.Minute
	poolHealthCheckPeriod = 30 * time.Second

	// migrateLockTimeout — ожидание advisory lock, пока миграции
	// применяет другая реплика.
	migrateLockTimeout = 30 * time.Second
)

// ErrDirtySchema — предыдущая миграция прервалась, нужна ручная правка.
var ErrDirtySchema = errors.New("схема uploaded_files в состоянии dirty")

// Connect открывает пул к базе метаданных и дожидается успешного ping.
func Connect(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*pgxpool.Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.DatabaseDSN())
	if err != nil {
		return nil, fmt.Errorf("некорректные параметры PostgreSQL: %w", err)
	}
	poolCfg.MaxConns = poolMaxConns
	poolCfg.MinConns = poolMinConns
	poolCfg.MaxConnIdleTime = poolMaxConnIdleTime
	poolCfg.HealthCheckPeriod = poolHealthCheckPeriod

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("ошибка создания пула PostgreSQL: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("PostgreSQL %s:%d недоступен: %w", cfg.DBHost, cfg.DBPort, err)
	}

	logger.Info("Пул метаданных PostgreSQL открыт",
		slog.String("host", cfg.DBHost),
		slog.Int("port", cfg.DBPort),
		slog.String("database", cfg.DBName),
		slog.Int("max_conns", poolMaxConns),
	)
	return pool, nil
}

// Migrate приводит схему uploaded_files к последней версии.
// Отсутствие новых миграций не ошибка; схема в состоянии dirty возвращает ErrDirtySchema.
func Migrate(cfg *config.Config, logger *slog.Logger) error {
	source, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("встроенные миграции не читаются: %w", err)
	}

	m, err := migrate.NewWithSourceInstance("iofs", source, cfg.DatabaseURL("pgx5"))
	if err != nil {
		return fmt.Errorf("ошибка подключения golang-migrate: %w", err)
	}
	defer m.Close()
	m.LockTimeout = migrateLockTimeout

	if _, dirty, err := m.Version(); err == nil && dirty {
		return ErrDirtySchema
	}

	err = m.Up()
	switch {
	case errors.Is(err, migrate.ErrNoChange):
		logger.Debug("Схема uploaded_files актуальна")
	case err != nil:
		return fmt.Errorf("ошибка применения миграций uploaded_files: %w", err)
	}

	version, _, err := m.Version()
	if err != nil && !errors.Is(err, migrate.ErrNilVersion) {
		return fmt.Errorf("не удалось прочитать версию схемы: %w", err)
	}
	logger.Info("Схема метаданных готова", slog.Uint64("version", uint64(version)))
	return nil
}

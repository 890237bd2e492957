// Пакет config — загрузка и валидация конфигурации Upload Coordinator
// из переменных окружения (префикс UC_).
// В среде разработки переменные дополнительно читаются из .env.
package config

import (
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	// Автозагрузка .env (без ошибки, если файла нет)
	_ "github.com/joho/godotenv/autoload"
)

// Версия приложения, задаётся при сборке через -ldflags.
var Version = "dev"

// Допустимые значения перечислимых параметров.
const (
	LocalStoreFile  = "file"
	LocalStoreRedis = "redis"

	MetadataPostgres = "postgres"
	MetadataDynamoDB = "dynamodb"
)

// Config содержит все параметры конфигурации Upload Coordinator.
type Config struct {
	// Порт HTTP-сервера
	Port int
	// Уровень логирования (debug, info, warn, error)
	LogLevel slog.Level
	// Формат логов (json, text)
	LogFormat string
	// Максимальный размер файла в байтах (по умолчанию 10 MiB)
	MaxFileSize int64

	// --- Локальное хранилище ---

	// Реализация локального хранилища: file или redis
	LocalStore string
	// Директория файлового хранилища
	LocalDataDir string
	// Ключ коллекции записей в локальном хранилище
	LocalNamespaceKey string
	// Адрес Redis (host:port)
	RedisAddr string
	// Пароль Redis
	RedisPassword string
	// Номер базы Redis
	RedisDB int

	// --- Удалённое хранилище ---

	// Включено ли удалённое хранилище (объекты + таблица метаданных)
	RemoteEnabled bool
	// Бакет S3
	S3Bucket string
	// Регион AWS
	S3Region string
	// Нестандартный endpoint S3 (MinIO, LocalStack, Supabase)
	S3Endpoint string
	// Базовый публичный URL объектов
	S3PublicBaseURL string
	// Path-style адресация бакета
	S3ForcePathStyle bool
	// Значение Cache-Control для загружаемых объектов
	S3CacheControl string
	// Драйвер таблицы метаданных: postgres или dynamodb
	MetadataDriver string

	// Хост PostgreSQL
	DBHost string
	// Порт PostgreSQL
	DBPort int
	// Имя базы данных
	DBName string
	// Пользователь PostgreSQL
	DBUser string
	// Пароль PostgreSQL
	DBPassword string
	// Режим SSL (disable, require, verify-ca, verify-full)
	DBSSLMode string

	// Таблица DynamoDB
	DynamoDBTable string
	// Глобальный вторичный индекс по предмету
	DynamoDBSubjectIndex string

	// URL очереди SQS для уведомлений (опционально)
	SQSQueueURL string

	// --- Сервисные параметры ---

	// Размер LRU-кэша списков
	ListCacheSize int
	// TTL записей LRU-кэша списков
	ListCacheTTL time.Duration
	// Интервал фоновой сверки отложенных удалений
	ReconcileInterval time.Duration

	// URL JWKS endpoint (пусто — аутентификация выключена)
	JWKSUrl string
	// Путь к CA-сертификату для JWKS endpoint (опционально)
	JWKSCACert string

	// Интервал проверки зависимостей topologymetrics
	DephealthCheckInterval time.Duration
	// Имя группы в метриках topologymetrics
	DephealthGroup string

	// Таймаут graceful shutdown HTTP-сервера
	ShutdownTimeout time.Duration
	// Таймауты HTTP-сервера
	HTTPReadTimeout  time.Duration
	HTTPWriteTimeout time.Duration
	HTTPIdleTimeout  time.Duration

	// Язык интерфейса по умолчанию (en, fr)
	DefaultLang string
}

// Load загружает конфигурацию из переменных окружения, валидирует
// значения и возвращает Config или ошибку.
func Load() (*Config, error) {
	cfg := &Config{}
	var err error

	// UC_PORT — порт HTTP-сервера (по умолчанию 8080)
	cfg.Port, err = getEnvInt("UC_PORT", 8080)
	if err != nil {
		return nil, fmt.Errorf("UC_PORT: %w", err)
	}
	if cfg.Port < 1 || cfg.Port > 65535 {
		return nil, fmt.Errorf("UC_PORT: значение %d вне допустимого диапазона 1-65535", cfg.Port)
	}

	// UC_LOG_LEVEL — уровень логирования (по умолчанию info)
	cfg.LogLevel, err = parseLogLevel(getEnvDefault("UC_LOG_LEVEL", "info"))
	if err != nil {
		return nil, fmt.Errorf("UC_LOG_LEVEL: %w", err)
	}

	// UC_LOG_FORMAT — формат логов (по умолчанию json)
	cfg.LogFormat = getEnvDefault("UC_LOG_FORMAT", "json")
	if cfg.LogFormat != "json" && cfg.LogFormat != "text" {
		return nil, fmt.Errorf("UC_LOG_FORMAT: недопустимое значение %q, допустимые: json, text", cfg.LogFormat)
	}

	// UC_MAX_FILE_SIZE — максимальный размер файла (по умолчанию 10 MiB)
	cfg.MaxFileSize, err = getEnvInt64("UC_MAX_FILE_SIZE", 10*1024*1024)
	if err != nil {
		return nil, fmt.Errorf("UC_MAX_FILE_SIZE: %w", err)
	}
	if cfg.MaxFileSize <= 0 {
		return nil, fmt.Errorf("UC_MAX_FILE_SIZE: значение должно быть положительным")
	}

	if err := cfg.loadLocal(); err != nil {
		return nil, err
	}
	if err := cfg.loadRemote(); err != nil {
		return nil, err
	}

	// UC_LIST_CACHE_SIZE — размер LRU-кэша списков (по умолчанию 256)
	cfg.ListCacheSize, err = getEnvInt("UC_LIST_CACHE_SIZE", 256)
	if err != nil {
		return nil, fmt.Errorf("UC_LIST_CACHE_SIZE: %w", err)
	}
	if cfg.ListCacheSize <= 0 {
		return nil, fmt.Errorf("UC_LIST_CACHE_SIZE: значение должно быть положительным")
	}

	// UC_LIST_CACHE_TTL — TTL кэша списков (по умолчанию 30s)
	cfg.ListCacheTTL, err = getEnvDuration("UC_LIST_CACHE_TTL", 30*time.Second)
	if err != nil {
		return nil, fmt.Errorf("UC_LIST_CACHE_TTL: %w", err)
	}

	// UC_RECONCILE_INTERVAL — интервал сверки отложенных удалений (по умолчанию 5m)
	cfg.ReconcileInterval, err = getEnvDuration("UC_RECONCILE_INTERVAL", 5*time.Minute)
	if err != nil {
		return nil, fmt.Errorf("UC_RECONCILE_INTERVAL: %w", err)
	}
	if cfg.ReconcileInterval <= 0 {
		return nil, fmt.Errorf("UC_RECONCILE_INTERVAL: значение должно быть положительным")
	}

	// UC_JWKS_URL — опционально; пустое значение выключает проверку JWT
	cfg.JWKSUrl = getEnvDefault("UC_JWKS_URL", "")
	if cfg.JWKSUrl != "" {
		if _, err := url.ParseRequestURI(cfg.JWKSUrl); err != nil {
			return nil, fmt.Errorf("UC_JWKS_URL: некорректный URL %q", cfg.JWKSUrl)
		}
	}
	cfg.JWKSCACert = getEnvDefault("UC_JWKS_CA_CERT", "")

	// UC_DEPHEALTH_CHECK_INTERVAL — интервал проверки зависимостей (по умолчанию 15s)
	cfg.DephealthCheckInterval, err = getEnvDuration("UC_DEPHEALTH_CHECK_INTERVAL", 15*time.Second)
	if err != nil {
		return nil, fmt.Errorf("UC_DEPHEALTH_CHECK_INTERVAL: %w", err)
	}
	cfg.DephealthGroup = getEnvDefault("UC_DEPHEALTH_GROUP", "coursehub")

	// UC_SHUTDOWN_TIMEOUT — таймаут graceful shutdown (по умолчанию 10s)
	cfg.ShutdownTimeout, err = getEnvDuration("UC_SHUTDOWN_TIMEOUT", 10*time.Second)
	if err != nil {
		return nil, fmt.Errorf("UC_SHUTDOWN_TIMEOUT: %w", err)
	}

	cfg.HTTPReadTimeout, err = getEnvDuration("UC_HTTP_READ_TIMEOUT", 30*time.Second)
	if err != nil {
		return nil, fmt.Errorf("UC_HTTP_READ_TIMEOUT: %w", err)
	}
	cfg.HTTPWriteTimeout, err = getEnvDuration("UC_HTTP_WRITE_TIMEOUT", 60*time.Second)
	if err != nil {
		return nil, fmt.Errorf("UC_HTTP_WRITE_TIMEOUT: %w", err)
	}
	cfg.HTTPIdleTimeout, err = getEnvDuration("UC_HTTP_IDLE_TIMEOUT", 120*time.Second)
	if err != nil {
		return nil, fmt.Errorf("UC_HTTP_IDLE_TIMEOUT: %w", err)
	}

	// UC_DEFAULT_LANG — язык интерфейса по умолчанию
	cfg.DefaultLang = getEnvDefault("UC_DEFAULT_LANG", "en")
	if cfg.DefaultLang != "en" && cfg.DefaultLang != "fr" {
		return nil, fmt.Errorf("UC_DEFAULT_LANG: недопустимое значение %q, допустимые: en, fr", cfg.DefaultLang)
	}

	return cfg, nil
}

// loadLocal читает параметры локального хранилища.
func (c *Config) loadLocal() error {
	var err error

	c.LocalStore = getEnvDefault("UC_LOCAL_STORE", LocalStoreFile)
	if c.LocalStore != LocalStoreFile && c.LocalStore != LocalStoreRedis {
		return fmt.Errorf("UC_LOCAL_STORE: недопустимое значение %q, допустимые: file, redis", c.LocalStore)
	}
	c.LocalDataDir = getEnvDefault("UC_LOCAL_DATA_DIR", "./data")
	c.LocalNamespaceKey = getEnvDefault("UC_LOCAL_NAMESPACE_KEY", "student_uploads")

	if c.LocalStore == LocalStoreRedis {
		c.RedisAddr, err = getEnvRequired("UC_REDIS_ADDR")
		if err != nil {
			return err
		}
	}
	c.RedisPassword = getEnvDefault("UC_REDIS_PASSWORD", "")
	c.RedisDB, err = getEnvInt("UC_REDIS_DB", 0)
	if err != nil {
		return fmt.Errorf("UC_REDIS_DB: %w", err)
	}
	return nil
}

// loadRemote читает параметры удалённого хранилища.
// Обязательные поля проверяются только при UC_REMOTE_ENABLED=true.
func (c *Config) loadRemote() error {
	var err error

	c.RemoteEnabled, err = getEnvBool("UC_REMOTE_ENABLED", false)
	if err != nil {
		return fmt.Errorf("UC_REMOTE_ENABLED: %w", err)
	}

	c.S3Bucket = getEnvDefault("UC_S3_BUCKET", "student-uploads")
	c.S3Region = getEnvDefault("UC_S3_REGION", "us-east-1")
	c.S3Endpoint = getEnvDefault("UC_S3_ENDPOINT", "")
	c.S3PublicBaseURL = getEnvDefault("UC_S3_PUBLIC_BASE_URL", "")
	c.S3ForcePathStyle, err = getEnvBool("UC_S3_FORCE_PATH_STYLE", false)
	if err != nil {
		return fmt.Errorf("UC_S3_FORCE_PATH_STYLE: %w", err)
	}
	c.S3CacheControl = getEnvDefault("UC_S3_CACHE_CONTROL", "max-age=3600")

	c.MetadataDriver = getEnvDefault("UC_METADATA_DRIVER", MetadataPostgres)
	if c.MetadataDriver != MetadataPostgres && c.MetadataDriver != MetadataDynamoDB {
		return fmt.Errorf("UC_METADATA_DRIVER: недопустимое значение %q, допустимые: postgres, dynamodb", c.MetadataDriver)
	}

	c.DBHost = getEnvDefault("UC_DB_HOST", "")
	c.DBPort, err = getEnvInt("UC_DB_PORT", 5432)
	if err != nil {
		return fmt.Errorf("UC_DB_PORT: %w", err)
	}
	c.DBName = getEnvDefault("UC_DB_NAME", "coursehub")
	c.DBUser = getEnvDefault("UC_DB_USER", "")
	c.DBPassword = getEnvDefault("UC_DB_PASSWORD", "")
	c.DBSSLMode = getEnvDefault("UC_DB_SSL_MODE", "disable")
	validSSL := map[string]bool{"disable": true, "require": true, "verify-ca": true, "verify-full": true}
	if !validSSL[c.DBSSLMode] {
		return fmt.Errorf("UC_DB_SSL_MODE: недопустимое значение %q", c.DBSSLMode)
	}

	c.DynamoDBTable = getEnvDefault("UC_DYNAMODB_TABLE", "uploaded_files")
	c.DynamoDBSubjectIndex = getEnvDefault("UC_DYNAMODB_SUBJECT_INDEX", "subject-upload_date-index")
	c.SQSQueueURL = getEnvDefault("UC_SQS_QUEUE_URL", "")

	if !c.RemoteEnabled {
		return nil
	}
	if c.S3Bucket == "" {
		return fmt.Errorf("UC_S3_BUCKET: обязательна при UC_REMOTE_ENABLED=true")
	}
	if c.MetadataDriver == MetadataPostgres {
		for key, val := range map[string]string{
			"UC_DB_HOST": c.DBHost,
			"UC_DB_USER": c.DBUser,
		} {
			if val == "" {
				return fmt.Errorf("%s: обязательная переменная окружения не задана", key)
			}
		}
	}
	return nil
}

// DatabaseDSN возвращает строку подключения к PostgreSQL.
func (c *Config) DatabaseDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d dbname=%s user=%s password=%s sslmode=%s",
		c.DBHost, c.DBPort, c.DBName, c.DBUser, c.DBPassword, c.DBSSLMode,
	)
}

// DatabaseURL возвращает URL PostgreSQL (для dephealth и golang-migrate).
func (c *Config) DatabaseURL(scheme string) string {
	u := url.URL{
		Scheme:   scheme,
		User:     url.UserPassword(c.DBUser, c.DBPassword),
		Host:     fmt.Sprintf("%s:%d", c.DBHost, c.DBPort),
		Path:     "/" + c.DBName,
		RawQuery: "sslmode=" + c.DBSSLMode,
	}
	return u.String()
}

// SetupLogger настраивает глобальный slog-логгер на основе конфигурации.
func SetupLogger(cfg *Config) *slog.Logger {
	opts := &slog.HandlerOptions{
		Level: cfg.LogLevel,
	}

	var handler slog.Handler
	if cfg.LogFormat == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger
}

// --- Вспомогательные функции ---

// getEnvRequired возвращает значение переменной окружения или ошибку, если она не задана.
func getEnvRequired(key string) (string, error) {
	val := os.Getenv(key)
	if val == "" {
		return "", fmt.Errorf("%s: обязательная переменная окружения не задана", key)
	}
	return val, nil
}

// getEnvDefault возвращает значение переменной окружения или значение по умолчанию.
func getEnvDefault(key, defaultVal string) string {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	return val
}

// getEnvInt возвращает целочисленное значение переменной окружения или значение по умолчанию.
func getEnvInt(key string, defaultVal int) (int, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return 0, fmt.Errorf("некорректное целое число: %q", val)
	}
	return n, nil
}

// getEnvInt64 возвращает int64 значение переменной окружения или значение по умолчанию.
func getEnvInt64(key string, defaultVal int64) (int64, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	n, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("некорректное целое число: %q", val)
	}
	return n, nil
}

// getEnvBool возвращает bool из переменной окружения или значение по умолчанию.
func getEnvBool(key string, defaultVal bool) (bool, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	b, err := strconv.ParseBool(val)
	if err != nil {
		return false, fmt.Errorf("некорректное логическое значение: %q", val)
	}
	return b, nil
}

// getEnvDuration возвращает time.Duration из переменной окружения или значение по умолчанию.
func getEnvDuration(key string, defaultVal time.Duration) (time.Duration, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	d, err := time.ParseDuration(val)
	if err != nil {
		return 0, fmt.Errorf("некорректная длительность: %q (используйте формат Go: 30s, 5m, 1h)", val)
	}
	return d, nil
}

// parseLogLevel преобразует строку уровня логирования в slog.Level.
func parseLogLevel(level string) (slog.Level, error) {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("недопустимый уровень %q, допустимые: debug, info, warn, error", level)
	}
}

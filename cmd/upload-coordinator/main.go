// Точка входа Upload Coordinator — сервиса загрузки учебных файлов.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"

	"github.com/bigkaa/coursehub-uploads/internal/api/handlers"
	"github.com/bigkaa/coursehub-uploads/internal/api/middleware"
	"github.com/bigkaa/coursehub-uploads/internal/api/openapi"
	"github.com/bigkaa/coursehub-uploads/internal/config"
	"github.com/bigkaa/coursehub-uploads/internal/database"
	"github.com/bigkaa/coursehub-uploads/internal/domain/validation"
	"github.com/bigkaa/coursehub-uploads/internal/server"
	"github.com/bigkaa/coursehub-uploads/internal/service"
	"github.com/bigkaa/coursehub-uploads/internal/storage/backend"
	"github.com/bigkaa/coursehub-uploads/internal/storage/kv"
	"github.com/bigkaa/coursehub-uploads/internal/storage/metadata"
	"github.com/bigkaa/coursehub-uploads/internal/storage/objectstore"
	"github.com/bigkaa/coursehub-uploads/internal/storage/pending"
	uihandlers "github.com/bigkaa/coursehub-uploads/internal/ui/handlers"
	"github.com/bigkaa/coursehub-uploads/internal/ui/i18n"
	"github.com/bigkaa/coursehub-uploads/internal/ui/listview"
)

// startupTimeout — предел подключения к внешним хранилищам при старте.
const startupTimeout = 30 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Ошибка конфигурации: %v\n", err)
		os.Exit(1)
	}

	logger := config.SetupLogger(cfg)
	logger.Info("Upload Coordinator запускается",
		slog.String("version", config.Version),
		slog.Int("port", cfg.Port),
		slog.String("local_store", cfg.LocalStore),
		slog.Bool("remote_enabled", cfg.RemoteEnabled),
		slog.String("metadata_driver", cfg.MetadataDriver),
	)

	if err := run(cfg, logger); err != nil {
		logger.Error("Ошибка сервера", slog.String("error", err.Error()))
		os.Exit(1)
	}
	logger.Info("Upload Coordinator остановлен")
}

func run(cfg *config.Config, logger *slog.Logger) error {
	ctx := context.Background()
	startCtx, cancel := context.WithTimeout(ctx, startupTimeout)
	defer cancel()

	// 1. Локальное хранилище
	store, closeStore, err := newLocalStore(startCtx, cfg)
	if err != nil {
		return err
	}
	defer closeStore()
	queue := pending.New(store, "")

	// 2. Удалённое хранилище (опционально)
	var (
		remote *backend.RemoteBackend
		pool   *pgxpool.Pool
		awsCfg aws.Config
	)
	if cfg.RemoteEnabled {
		awsCfg, err = awsconfig.LoadDefaultConfig(startCtx, awsconfig.WithRegion(cfg.S3Region))
		if err != nil {
			return fmt.Errorf("ошибка загрузки конфигурации AWS: %w", err)
		}

		var table metadata.Table
		table, pool, err = newMetadataTable(startCtx, cfg, awsCfg, logger)
		if err != nil {
			return err
		}
		if pool != nil {
			defer pool.Close()
		}

		objects := objectstore.NewS3Store(newS3Client(cfg, awsCfg), objectstore.S3Config{
			Bucket:        cfg.S3Bucket,
			Region:        cfg.S3Region,
			Endpoint:      cfg.S3Endpoint,
			PublicBaseURL: cfg.S3PublicBaseURL,
		}, logger)
		remote = backend.NewRemoteBackend(objects, table, queue, cfg.S3CacheControl, logger)
	}

	// 3. Цепочка хранилищ и координатор
	backends := []backend.StorageBackend{}
	if remote != nil {
		backends = append(backends, remote)
	}
	backends = append(backends, backend.NewEmbeddedBackend(store, cfg.LocalNamespaceKey))
	chain := backend.NewChain(logger, backends...)

	cache := service.NewListCache(cfg.ListCacheSize, cfg.ListCacheTTL)
	coord := service.NewCoordinator(validation.New(cfg.MaxFileSize), chain, queue, cache, logger)

	view := listview.New()
	coord.Subscribe(view)

	// 4. Фоновые процессы
	var notifier *service.Notifier
	if cfg.RemoteEnabled && cfg.SQSQueueURL != "" {
		notifier = service.NewNotifier(sqs.NewFromConfig(awsCfg), cfg.SQSQueueURL, logger)
		coord.Subscribe(notifier)
		notifier.Start(ctx)
	}

	reconcileSvc := service.NewReconcileService(chain, queue, cache, cfg.ReconcileInterval, logger)
	reconcileSvc.Start(ctx)

	dephealthSvc := startDephealth(ctx, cfg, pool, logger)

	// 5. HTTP
	bundle, err := i18n.Load(cfg.DefaultLang, logger)
	if err != nil {
		return fmt.Errorf("ошибка загрузки переводов: %w", err)
	}
	contract, err := openapi.Load(startCtx)
	if err != nil {
		return err
	}

	var jwtAuth *middleware.JWTAuth
	if cfg.JWKSUrl != "" {
		jwtAuth, err = middleware.NewJWTAuth(cfg.JWKSUrl, cfg.JWKSCACert, logger)
		if err != nil {
			return fmt.Errorf("ошибка инициализации JWT: %w", err)
		}
		logger.Info("JWT аутентификация настроена", slog.String("jwks_url", cfg.JWKSUrl))
	} else {
		logger.Warn("UC_JWKS_URL не задан, API работает без аутентификации")
	}

	checks := []handlers.Check{{Name: "local_store", Pinger: store, Critical: true}}
	if remote != nil {
		checks = append(checks, handlers.Check{Name: "remote_store", Pinger: remote})
	}

	router, err := server.NewRouter(server.Handlers{
		Uploads:  handlers.NewUploadsHandler(coord, view, bundle, logger),
		Health:   handlers.NewHealthHandler(checks, dephealthSvc),
		Page:     uihandlers.NewUploadsPageHandler(coord, view, bundle, logger),
		Bundle:   bundle,
		Contract: contract,
		JWTAuth:  jwtAuth,
	}, logger)
	if err != nil {
		return err
	}

	srvErr := server.New(cfg, logger, router).Run()

	// --- Graceful shutdown фоновых процессов ---
	logger.Info("Остановка фоновых процессов...")
	reconcileSvc.Stop()
	dephealthSvc.Stop()
	if notifier != nil {
		shutdownCtx, cancelShutdown := context.WithTimeout(ctx, cfg.ShutdownTimeout)
		defer cancelShutdown()
		if err := notifier.Shutdown(shutdownCtx); err != nil {
			logger.Warn("Уведомления отправлены не полностью", slog.String("error", err.Error()))
		}
	}
	return srvErr
}

// newLocalStore создаёт локальное хранилище: файловое или Redis.
func newLocalStore(ctx context.Context, cfg *config.Config) (kv.Store, func(), error) {
	if cfg.LocalStore == config.LocalStoreRedis {
		client := kv.NewRedisClient(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		store := kv.NewRedisStore(client, "coursehub:")
		if err := store.Ping(ctx); err != nil {
			_ = client.Close()
			return nil, nil, fmt.Errorf("ошибка подключения к Redis %s: %w", cfg.RedisAddr, err)
		}
		return store, func() { _ = client.Close() }, nil
	}

	store, err := kv.NewFileStore(cfg.LocalDataDir)
	if err != nil {
		return nil, nil, fmt.Errorf("ошибка инициализации файлового хранилища: %w", err)
	}
	return store, func() {}, nil
}

// newMetadataTable создаёт таблицу метаданных выбранного драйвера.
// Для PostgreSQL применяются миграции и возвращается пул.
func newMetadataTable(
	ctx context.Context,
	cfg *config.Config,
	awsCfg aws.Config,
	logger *slog.Logger,
) (metadata.Table, *pgxpool.Pool, error) {
	if cfg.MetadataDriver == config.MetadataDynamoDB {
		client := dynamodb.NewFromConfig(awsCfg, func(o *dynamodb.Options) {
			if cfg.S3Endpoint != "" {
				o.BaseEndpoint = aws.String(cfg.S3Endpoint)
			}
		})
		return metadata.NewDynamoTable(client, cfg.DynamoDBTable, cfg.DynamoDBSubjectIndex), nil, nil
	}

	if err := database.Migrate(cfg, logger); err != nil {
		return nil, nil, fmt.Errorf("ошибка миграций: %w", err)
	}
	pool, err := database.Connect(ctx, cfg, logger)
	if err != nil {
		return nil, nil, err
	}
	return metadata.NewPostgresTable(pool, pool), pool, nil
}

// newS3Client создаёт клиента S3; для MinIO/LocalStack задаётся endpoint
// и path-style адресация.
func newS3Client(cfg *config.Config, awsCfg aws.Config) *s3.Client {
	return s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.S3Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.S3Endpoint)
		}
		o.UsePathStyle = cfg.S3ForcePathStyle
	})
}

// startDephealth запускает мониторинг зависимостей. Ошибка не критична:
// сервис работает без него.
func startDephealth(ctx context.Context, cfg *config.Config, pool *pgxpool.Pool, logger *slog.Logger) *service.DephealthService {
	dhCfg := service.DephealthConfig{
		ServiceID:     serviceID(),
		Group:         cfg.DephealthGroup,
		JWKSURL:       cfg.JWKSUrl,
		CheckInterval: cfg.DephealthCheckInterval,
	}
	if cfg.RemoteEnabled {
		dhCfg.S3Endpoint = cfg.S3Endpoint
	}
	if pool != nil {
		dhCfg.DB = stdlib.OpenDBFromPool(pool)
		dhCfg.PGURL = cfg.DatabaseURL("postgres")
	}

	svc, err := service.NewDephealthService(dhCfg, logger)
	if err != nil {
		logger.Warn("topologymetrics недоступен, запуск без мониторинга зависимостей",
			slog.String("error", err.Error()),
		)
		return nil
	}
	if err := svc.Start(ctx); err != nil {
		logger.Warn("Ошибка запуска topologymetrics", slog.String("error", err.Error()))
		return nil
	}
	if svc != nil {
		logger.Info("topologymetrics запущен",
			slog.String("service_id", dhCfg.ServiceID),
			slog.String("check_interval", cfg.DephealthCheckInterval.String()),
		)
	}
	return svc
}

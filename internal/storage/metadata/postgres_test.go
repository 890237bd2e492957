package metadata

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"strconv"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/bigkaa/coursehub-uploads/internal/config"
	"github.com/bigkaa/coursehub-uploads/internal/database"
)

// setupTestDB запускает PostgreSQL контейнер и применяет миграции.
func setupTestDB(t *testing.T) *pgxpool.Pool {
	t.Helper()

	if os.Getenv("TEST_INTEGRATION") == "" {
		t.Skip("Пропуск интеграционного теста: TEST_INTEGRATION не установлена")
	}

	ctx := context.Background()
	container, err := postgres.Run(ctx,
		"docker.io/postgres:17-alpine",
		postgres.WithDatabase("coursehub_test"),
		postgres.WithUsername("coursehub"),
		postgres.WithPassword("test-password"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	if err != nil {
		t.Fatalf("Не удалось запустить PostgreSQL контейнер: %v", err)
	}
	t.Cleanup(func() {
		if err := container.Terminate(ctx); err != nil {
			t.Logf("Ошибка остановки контейнера: %v", err)
		}
	})

	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("Не удалось получить host контейнера: %v", err)
	}
	port, err := container.MappedPort(ctx, "5432")
	if err != nil {
		t.Fatalf("Не удалось получить port контейнера: %v", err)
	}
	portNum, _ := strconv.Atoi(port.Port())

	cfg := &config.Config{
		DBHost: host, DBPort: portNum, DBName: "coursehub_test",
		DBUser: "coursehub", DBPassword: "test-password", DBSSLMode: "disable",
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))

	if err := database.Migrate(cfg, logger); err != nil {
		t.Fatalf("Ошибка миграций: %v", err)
	}
	pool, err := database.Connect(ctx, cfg, logger)
	if err != nil {
		t.Fatalf("Ошибка подключения: %v", err)
	}
	t.Cleanup(pool.Close)
	return pool
}

func TestPostgresTable_Integration(t *testing.T) {
	pool := setupTestDB(t)
	ctx := context.Background()
	table := NewPostgresTable(pool, pool)

	if err := table.Ping(ctx); err != nil {
		t.Fatalf("Ping: %v", err)
	}

	base := time.Date(2026, 2, 1, 9, 0, 0, 0, time.UTC)
	for i, subj := range []string{"math", "physics", "math"} {
		id := "file_" + strconv.Itoa(i)
		if err := table.Insert(ctx, remoteRecord(id, subj, base.Add(time.Duration(i)*time.Minute))); err != nil {
			t.Fatalf("Insert %s: %v", id, err)
		}
	}
	if err := table.Insert(ctx, remoteRecord("file_0", "math", base)); !errors.Is(err, ErrConflict) {
		t.Fatalf("ожидалась ErrConflict, получено %v", err)
	}

	math, err := table.Query(ctx, Filter{Subject: "math"})
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(math) != 2 || math[0].ID != "file_2" || math[1].ID != "file_0" {
		t.Fatalf("Query(math) вернул неожиданный результат: %d записей", len(math))
	}

	rec, err := table.Get(ctx, "file_1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if rec.SubjectTag != "physics" || !rec.UploadedAt.Equal(base.Add(time.Minute)) {
		t.Errorf("Get вернул %+v", rec)
	}

	if err := table.DeleteByID(ctx, "file_1"); err != nil {
		t.Fatalf("DeleteByID: %v", err)
	}
	if err := table.DeleteByID(ctx, "file_1"); !errors.Is(err, ErrNotFound) {
		t.Errorf("ожидалась ErrNotFound, получено %v", err)
	}
	if _, err := table.Get(ctx, "file_1"); !errors.Is(err, ErrNotFound) {
		t.Errorf("ожидалась ErrNotFound, получено %v", err)
	}
}

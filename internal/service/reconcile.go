// reconcile.go — фоновая сверка отложенных удалённых удалений.
//
// Элементы очереди pending появляются, когда удаление объекта или строки
// метаданных не удалось (Remove), либо объект остался без метаданных после
// неудачной записи. Сверка повторяет удаление, пока оно не пройдёт.
//
// Запускается как горутина с периодическим тикером (UC_RECONCILE_INTERVAL).
package service

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/bigkaa/coursehub-uploads/internal/storage/backend"
	"github.com/bigkaa/coursehub-uploads/internal/storage/pending"
)

// Prometheus метрики сверки
var (
	reconcileRunsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "uc_reconcile_runs_total",
		Help: "Общее количество запусков сверки",
	})

	reconcileCompletedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "uc_reconcile_completed_total",
		Help: "Общее количество завершённых отложенных удалений",
	})

	reconcileErrorsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "uc_reconcile_errors_total",
		Help: "Общее количество неудачных попыток отложенного удаления",
	})

	reconcilePending = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "uc_reconcile_pending",
		Help: "Размер очереди отложенных удалений после последней сверки",
	})

	reconcileDurationSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "uc_reconcile_duration_seconds",
		Help:    "Длительность сверки в секундах",
		Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30, 60},
	})
)

// ReconcileResult — результат одного запуска сверки.
type ReconcileResult struct {
	// Completed — удаления, завершённые в этом запуске
	Completed int
	// Errors — неудачные попытки
	Errors int
	// Skipped — true, если удалённое хранилище не настроено
	Skipped bool
	// Duration — длительность выполнения
	Duration time.Duration
}

// ReconcileService — сервис фоновой сверки удалений.
type ReconcileService struct {
	chain    *backend.Chain
	queue    *pending.Queue
	cache    *ListCache
	interval time.Duration
	logger   *slog.Logger

	mu     sync.Mutex // защита от параллельного запуска RunOnce
	cancel context.CancelFunc
	done   chan struct{}
}

// NewReconcileService создаёт сервис сверки. cache может быть nil.
func NewReconcileService(
	chain *backend.Chain,
	queue *pending.Queue,
	cache *ListCache,
	interval time.Duration,
	logger *slog.Logger,
) *ReconcileService {
	return &ReconcileService{
		chain:    chain,
		queue:    queue,
		cache:    cache,
		interval: interval,
		logger:   logger.With(slog.String("component", "reconcile")),
	}
}

// Start запускает фоновую горутину сверки.
func (s *ReconcileService) Start(ctx context.Context) {
	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.done = make(chan struct{})

	go s.run(runCtx)

	s.logger.Info("Сверка удалений запущена",
		slog.String("interval", s.interval.String()),
	)
}

// Stop останавливает сверку и ждёт завершения текущего цикла.
func (s *ReconcileService) Stop() {
	if s.cancel == nil {
		return
	}
	s.cancel()
	<-s.done
	s.logger.Info("Сверка удалений остановлена")
}

func (s *ReconcileService) run(ctx context.Context) {
	defer close(s.done)

	s.RunOnce(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.RunOnce(ctx)
		}
	}
}

// RunOnce обрабатывает всю очередь один раз.
// Потокобезопасен: использует mutex для защиты от параллельного запуска.
func (s *ReconcileService) RunOnce(ctx context.Context) *ReconcileResult {
	s.mu.Lock()
	defer s.mu.Unlock()

	start := time.Now()
	result := &ReconcileResult{}

	remote, ok := s.chain.Remote()
	if !ok {
		result.Skipped = true
		return result
	}

	items, err := s.queue.List(ctx)
	if err != nil {
		s.logger.Error("Сверка: ошибка чтения очереди", slog.String("error", err.Error()))
		result.Errors++
		reconcileErrorsTotal.Inc()
		return result
	}

	for _, it := range items {
		if ctx.Err() != nil {
			break
		}
		if err := s.process(ctx, remote, it); err != nil {
			result.Errors++
			s.logger.Warn("Сверка: удаление снова не удалось",
				slog.String("id", it.ID),
				slog.String("path", it.Path),
				slog.Int("attempts", it.Attempts+1),
				slog.String("error", err.Error()),
			)
			if qErr := s.queue.Failed(ctx, it.ID); qErr != nil {
				s.logger.Error("Сверка: ошибка обновления очереди", slog.String("error", qErr.Error()))
			}
			continue
		}
		if err := s.queue.Done(ctx, it.ID); err != nil {
			s.logger.Error("Сверка: ошибка обновления очереди", slog.String("error", err.Error()))
			result.Errors++
			continue
		}
		result.Completed++
		s.logger.Debug("Сверка: удаление завершено", slog.String("id", it.ID))
	}

	if result.Completed > 0 && s.cache != nil {
		s.cache.Purge()
	}

	result.Duration = time.Since(start)

	reconcileRunsTotal.Inc()
	reconcileCompletedTotal.Add(float64(result.Completed))
	reconcileErrorsTotal.Add(float64(result.Errors))
	reconcilePending.Set(float64(len(items) - result.Completed))
	reconcileDurationSeconds.Observe(result.Duration.Seconds())

	if len(items) > 0 {
		s.logger.Info("Сверка завершена",
			slog.Int("queued", len(items)),
			slog.Int("completed", result.Completed),
			slog.Int("errors", result.Errors),
			slog.Duration("duration", result.Duration),
		)
	}
	return result
}

// process повторяет удаление одного элемента.
// Без пути объекта запись сначала ищется в таблице метаданных.
func (s *ReconcileService) process(ctx context.Context, remote *backend.RemoteBackend, it pending.Item) error {
	if it.Path == "" {
		return remote.Remove(ctx, it.ID)
	}
	return remote.Purge(ctx, it.ID, it.Path)
}

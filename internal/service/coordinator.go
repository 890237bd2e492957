// coordinator.go — координатор загрузок: проверка, запись с откатом
// на локальное хранилище, список и удаление файлов.
//
// Координатор не зависит от HTTP: возвращает записи и типизированные ошибки,
// а изменения состояния публикует событиями подписчикам (ListView, уведомления).
package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"golang.org/x/sync/errgroup"

	"github.com/bigkaa/coursehub-uploads/internal/domain/model"
	"github.com/bigkaa/coursehub-uploads/internal/domain/validation"
	"github.com/bigkaa/coursehub-uploads/internal/storage/backend"
	"github.com/bigkaa/coursehub-uploads/internal/storage/pending"
)

// maxConcurrentSubmits — предел параллельных записей в SubmitAll.
const maxConcurrentSubmits = 4

// idAlphabet — символы случайного суффикса id.
const idAlphabet = "0123456789abcdefghijklmnopqrstuvwxyz"

// Prometheus-метрики координатора.
var (
	uploadsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "uc_uploads_total",
		Help: "Количество загрузок по результату (remote, embedded, rejected, failed)",
	}, []string{"result"})

	uploadBytes = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "uc_upload_size_bytes",
		Help:    "Размер сохранённых файлов в байтах",
		Buckets: prometheus.ExponentialBuckets(1024, 4, 8),
	})

	listsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "uc_lists_total",
		Help: "Количество запросов списка по источнику",
	}, []string{"source"})

	removalsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "uc_removals_total",
		Help: "Количество удалений по результату (ok, pending)",
	}, []string{"result"})
)

// ListResult — результат List.
type ListResult struct {
	// Records — записи, новые первыми
	Records []*model.UploadRecord
	// Source — backend.SourceRemote или backend.SourceLocal
	Source string
}

// Empty сообщает, что нужно показать пустое состояние.
func (r *ListResult) Empty() bool {
	return len(r.Records) == 0
}

// RemoveOutcome — результат Remove.
type RemoveOutcome struct {
	ID string
	// Pending — удалённое удаление не завершено и поставлено в очередь сверки
	Pending bool
}

// SubmitResult — результат одной записи в SubmitAll.
type SubmitResult struct {
	Name   string
	Record *model.UploadRecord
	Err    error
}

// Coordinator — координатор загрузок.
type Coordinator struct {
	validator *validation.Validator
	chain     *backend.Chain
	queue     *pending.Queue
	cache     *ListCache
	events    dispatcher
	logger    *slog.Logger

	now func() time.Time
}

// NewCoordinator создаёт координатор. cache может быть nil.
func NewCoordinator(
	validator *validation.Validator,
	chain *backend.Chain,
	queue *pending.Queue,
	cache *ListCache,
	logger *slog.Logger,
) *Coordinator {
	return &Coordinator{
		validator: validator,
		chain:     chain,
		queue:     queue,
		cache:     cache,
		logger:    logger.With(slog.String("component", "coordinator")),
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Subscribe добавляет подписчика событий.
func (c *Coordinator) Subscribe(l Listener) {
	c.events.subscribe(l)
}

// MaxFileSize возвращает действующий максимум размера файла.
func (c *Coordinator) MaxFileSize() int64 {
	return c.validator.MaxSize()
}

// Validate проверяет кандидата без побочных эффектов.
func (c *Coordinator) Validate(file model.CandidateFile) error {
	return c.validator.Validate(file)
}

// Submit проверяет и сохраняет файл.
//
// Ошибка валидации возвращается до публикации каких-либо событий.
// Дальше публикуется EventProgressStarted, содержимое читается один раз
// (не больше максимума), запись идёт через цепочку хранилищ.
// Успех: EventProgressSettled + EventRecordAdded. Ошибка: EventProgressFailed.
func (c *Coordinator) Submit(ctx context.Context, file model.CandidateFile, subject string) (*model.UploadRecord, error) {
	if err := c.validator.Validate(file); err != nil {
		uploadsTotal.WithLabelValues("rejected").Inc()
		return nil, err
	}

	startedAt := c.now()
	id := newUploadID(startedAt)
	c.events.publish(Event{Kind: EventProgressStarted, UploadID: id, Name: file.Name})

	data, err := c.readContent(file)
	if err != nil {
		key := MsgUploadError
		if validation.IsKind(err, validation.KindTooLarge) {
			key = MsgFileTooLarge
			uploadsTotal.WithLabelValues("rejected").Inc()
		} else {
			uploadsTotal.WithLabelValues("failed").Inc()
			err = &UploadFailedError{ID: id, Name: file.Name, MessageKey: key, Err: err}
		}
		c.events.publish(Event{Kind: EventProgressFailed, UploadID: id, Name: file.Name, MessageKey: key, Err: err})
		return nil, err
	}

	rec, err := c.chain.Save(ctx, backend.SaveRequest{
		ID:         id,
		Name:       file.Name,
		MimeType:   file.MimeType,
		Subject:    subject,
		UploadedAt: startedAt,
		Data:       data,
	})
	if err != nil {
		uploadsTotal.WithLabelValues("failed").Inc()
		failErr := &UploadFailedError{ID: id, Name: file.Name, MessageKey: MsgUploadError, Err: err}
		c.logger.Error("Загрузка не удалась",
			slog.String("id", id),
			slog.String("name", file.Name),
			slog.String("error", err.Error()),
		)
		c.events.publish(Event{Kind: EventProgressFailed, UploadID: id, Name: file.Name, MessageKey: MsgUploadError, Err: failErr})
		return nil, failErr
	}

	if c.cache != nil {
		c.cache.Purge()
	}
	uploadsTotal.WithLabelValues(string(rec.Location.Kind())).Inc()
	uploadBytes.Observe(float64(rec.SizeBytes))

	c.logger.Info("Файл загружен",
		slog.String("id", rec.ID),
		slog.String("name", rec.Name),
		slog.Int64("size", rec.SizeBytes),
		slog.String("location", string(rec.Location.Kind())),
	)

	c.events.publish(Event{Kind: EventProgressSettled, UploadID: id, Name: file.Name, Record: rec})
	c.events.publish(Event{Kind: EventRecordAdded, UploadID: id, Name: file.Name, Record: rec})
	return rec, nil
}

// SubmitAll сохраняет несколько файлов, не более maxConcurrentSubmits одновременно.
// Результаты возвращаются в порядке files.
func (c *Coordinator) SubmitAll(ctx context.Context, files []model.CandidateFile, subject string) []SubmitResult {
	results := make([]SubmitResult, len(files))
	var g errgroup.Group
	g.SetLimit(maxConcurrentSubmits)
	for i, f := range files {
		g.Go(func() error {
			rec, err := c.Submit(ctx, f, subject)
			results[i] = SubmitResult{Name: f.Name, Record: rec, Err: err}
			return nil
		})
	}
	_ = g.Wait()
	return results
}

// readContent читает содержимое целиком, не больше максимума.
func (c *Coordinator) readContent(file model.CandidateFile) ([]byte, error) {
	if file.Content == nil {
		return []byte{}, nil
	}
	limit := c.validator.MaxSize()
	data, err := io.ReadAll(io.LimitReader(file.Content, limit+1))
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения содержимого: %w", err)
	}
	if err := c.validator.CheckSize(file.Name, int64(len(data))); err != nil {
		return nil, err
	}
	return data, nil
}

// List возвращает видимые записи: удалённый список (с кэшем) или,
// при ошибке удалённого запроса, локальную коллекцию.
// Записи, ожидающие удаления, скрыты.
func (c *Coordinator) List(ctx context.Context, subject string) (*ListResult, error) {
	var records []*model.UploadRecord
	source := ""

	if c.cache != nil {
		if cached, ok := c.cache.Get(subject); ok {
			records, source = cached, backend.SourceRemote
		}
	}
	if source == "" {
		var gen uint64
		if c.cache != nil {
			gen = c.cache.Generation()
		}
		var err error
		records, source, err = c.chain.List(ctx, subject)
		if err != nil {
			return nil, fmt.Errorf("не удалось получить список файлов: %w", err)
		}
		if source == backend.SourceRemote && c.cache != nil {
			c.cache.SetIfCurrent(subject, records, gen)
		}
	}

	result := &ListResult{Records: c.withoutPending(ctx, records), Source: source}
	listsTotal.WithLabelValues(source).Inc()

	c.events.publish(Event{Kind: EventListed, Records: result.Records, Source: source})
	return result, nil
}

// withoutPending убирает записи из очереди отложенных удалений.
func (c *Coordinator) withoutPending(ctx context.Context, records []*model.UploadRecord) []*model.UploadRecord {
	ids, err := c.queue.IDs(ctx)
	if err != nil {
		c.logger.Warn("Не удалось прочитать очередь отложенных удалений",
			slog.String("error", err.Error()),
		)
		return records
	}
	visible := make([]*model.UploadRecord, 0, len(records))
	for _, r := range records {
		if !ids[r.ID] {
			visible = append(visible, r)
		}
	}
	return visible
}

// Get возвращает запись для скачивания.
func (c *Coordinator) Get(ctx context.Context, id string) (*model.UploadRecord, error) {
	if ids, err := c.queue.IDs(ctx); err == nil && ids[id] {
		return nil, ErrNotFound
	}
	rec, err := c.chain.Get(ctx, id)
	if errors.Is(err, backend.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("ошибка получения записи %s: %w", id, err)
	}
	return rec, nil
}

// Remove удаляет запись во всех хранилищах.
//
// Незавершённое удалённое удаление ставится в очередь сверки
// (RemoveOutcome.Pending). Локальная запись удаляется всегда,
// EventRecordRemoved публикуется всегда.
func (c *Coordinator) Remove(ctx context.Context, id string) (*RemoveOutcome, error) {
	outcome := &RemoveOutcome{ID: id}

	var localErr error
	for _, err := range splitErrors(c.chain.Remove(ctx, id)) {
		var re *backend.RemoveError
		if !errors.As(err, &re) {
			localErr = errors.Join(localErr, err)
			continue
		}
		item := pending.Item{ID: id, Path: re.Path, Reason: re.Stage}
		if qErr := c.queue.Enqueue(ctx, item); qErr != nil {
			localErr = errors.Join(localErr, fmt.Errorf("не удалось поставить удаление в очередь: %w", qErr))
			continue
		}
		outcome.Pending = true
		c.logger.Warn("Удалённое удаление отложено",
			slog.String("id", id),
			slog.String("stage", re.Stage),
			slog.String("error", re.Err.Error()),
		)
	}

	if remote, ok := c.chain.Remote(); ok && !outcome.Pending && localErr == nil {
		c.settleQueued(ctx, remote, id)
	}

	if c.cache != nil {
		c.cache.Purge()
	}
	c.events.publish(Event{Kind: EventRecordRemoved, UploadID: id})

	if outcome.Pending {
		removalsTotal.WithLabelValues("pending").Inc()
	} else {
		removalsTotal.WithLabelValues("ok").Inc()
	}

	if localErr != nil {
		c.logger.Error("Ошибка удаления записи",
			slog.String("id", id),
			slog.String("error", localErr.Error()),
		)
		return outcome, localErr
	}
	c.logger.Info("Запись удалена", slog.String("id", id), slog.Bool("pending", outcome.Pending))
	return outcome, nil
}

// settleQueued закрывает элемент очереди после успешного удалённого удаления.
// Для объекта без метаданных (Orphan) строки нет, поэтому Remove его не трогает:
// объект удаляется здесь, а при ошибке элемент остаётся для сверки.
func (c *Coordinator) settleQueued(ctx context.Context, remote *backend.RemoteBackend, id string) {
	item, queued, err := c.queue.Get(ctx, id)
	if err != nil {
		c.logger.Warn("Не удалось прочитать очередь отложенных удалений",
			slog.String("id", id),
			slog.String("error", err.Error()),
		)
		return
	}
	if !queued {
		return
	}
	if item.Orphan {
		if err := remote.Purge(ctx, id, item.Path); err != nil {
			c.logger.Warn("Объект без метаданных остаётся в очереди сверки",
				slog.String("id", id),
				slog.String("path", item.Path),
				slog.String("error", err.Error()),
			)
			return
		}
	}
	if err := c.queue.Done(ctx, id); err != nil {
		c.logger.Warn("Не удалось обновить очередь отложенных удалений",
			slog.String("id", id),
			slog.String("error", err.Error()),
		)
	}
}

// splitErrors раскрывает ошибку errors.Join в список.
func splitErrors(err error) []error {
	if err == nil {
		return nil
	}
	if joined, ok := err.(interface{ Unwrap() []error }); ok {
		return joined.Unwrap()
	}
	return []error{err}
}

// newUploadID формирует id вида file_<unix ms>_<9 символов [0-9a-z]>.
// Случайные байты берутся из UUIDv4.
func newUploadID(at time.Time) string {
	u := uuid.New()
	suffix := make([]byte, 9)
	for i := range suffix {
		suffix[i] = idAlphabet[int(u[i])%len(idAlphabet)]
	}
	return "file_" + strconv.FormatInt(at.UnixMilli(), 10) + "_" + string(suffix)
}

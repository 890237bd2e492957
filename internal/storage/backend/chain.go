package backend

import (
	"context"
	"errors"
	"log/slog"
	"sort"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/bigkaa/coursehub-uploads/internal/domain/model"
)

// fallbackTotal — переходы к следующему хранилищу после ошибки.
var fallbackTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "uc_storage_fallback_total",
	Help: "Количество переходов к следующему хранилищу после ошибки",
}, []string{"operation", "from"})

// Chain — упорядоченный набор хранилищ с откатом.
type Chain struct {
	backends []StorageBackend
	logger   *slog.Logger
}

// NewChain создаёт цепочку. Порядок backends — порядок приоритета.
func NewChain(logger *slog.Logger, backends ...StorageBackend) *Chain {
	return &Chain{
		backends: backends,
		logger:   logger.With(slog.String("component", "storage_chain")),
	}
}

// available возвращает доступные хранилища в порядке приоритета.
func (c *Chain) available() []StorageBackend {
	var result []StorageBackend
	for _, b := range c.backends {
		if b.Available() {
			result = append(result, b)
		}
	}
	return result
}

// Remote возвращает удалённое хранилище цепочки, если оно доступно.
func (c *Chain) Remote() (*RemoteBackend, bool) {
	for _, b := range c.available() {
		if rb, ok := b.(*RemoteBackend); ok {
			return rb, true
		}
	}
	return nil, false
}

// Save сохраняет в первое хранилище, завершившее запись без ошибки.
// Возвращает ошибку последнего хранилища, если не удалось ни одно.
func (c *Chain) Save(ctx context.Context, req SaveRequest) (*model.UploadRecord, error) {
	var errs []error
	for _, b := range c.available() {
		rec, err := b.Save(ctx, req)
		if err == nil {
			return rec, nil
		}
		errs = append(errs, err)
		fallbackTotal.WithLabelValues("save", b.Name()).Inc()
		c.logger.Warn("Запись не удалась, переход к следующему хранилищу",
			slog.String("backend", b.Name()),
			slog.String("id", req.ID),
			slog.String("error", err.Error()),
		)
	}
	if len(errs) == 0 {
		return nil, ErrUnavailable
	}
	return nil, errors.Join(errs...)
}

// List возвращает записи первого хранилища, ответившего без ошибки, и его имя.
// Записи остальных доступных хранилищ (сохранённые при откате записи)
// добавляются к результату: без дублей по id, с фильтром по предмету,
// новые первыми. Ошибка чтения дополнительного хранилища только логируется.
func (c *Chain) List(ctx context.Context, subject string) ([]*model.UploadRecord, string, error) {
	backends := c.available()
	var errs []error
	for i, b := range backends {
		records, err := b.List(ctx, subject)
		if err == nil {
			return c.merge(ctx, records, backends[i+1:], subject), b.Name(), nil
		}
		errs = append(errs, err)
		fallbackTotal.WithLabelValues("list", b.Name()).Inc()
		c.logger.Warn("Чтение списка не удалось, переход к следующему хранилищу",
			slog.String("backend", b.Name()),
			slog.String("error", err.Error()),
		)
	}
	if len(errs) == 0 {
		return nil, "", ErrUnavailable
	}
	return nil, "", errors.Join(errs...)
}

// merge дополняет основной список записями из rest.
func (c *Chain) merge(
	ctx context.Context,
	primary []*model.UploadRecord,
	rest []StorageBackend,
	subject string,
) []*model.UploadRecord {
	if len(rest) == 0 {
		return primary
	}
	seen := make(map[string]bool, len(primary))
	for _, r := range primary {
		seen[r.ID] = true
	}
	merged := primary
	for _, b := range rest {
		records, err := b.List(ctx, subject)
		if err != nil {
			c.logger.Warn("Дополнительный список не прочитан",
				slog.String("backend", b.Name()),
				slog.String("error", err.Error()),
			)
			continue
		}
		for _, r := range records {
			if seen[r.ID] || (subject != "" && r.SubjectTag != subject) {
				continue
			}
			seen[r.ID] = true
			merged = append(merged, r)
		}
	}
	if len(merged) == len(primary) {
		return primary
	}
	sort.SliceStable(merged, func(i, j int) bool {
		return merged[i].UploadedAt.After(merged[j].UploadedAt)
	})
	return merged
}

// Get ищет запись во всех доступных хранилищах по порядку.
func (c *Chain) Get(ctx context.Context, id string) (*model.UploadRecord, error) {
	var errs []error
	for _, b := range c.available() {
		rec, err := b.Get(ctx, id)
		if err == nil {
			return rec, nil
		}
		if !errors.Is(err, ErrNotFound) {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return nil, ErrNotFound
}

// Remove выполняет удаление во всех доступных хранилищах.
// Ошибки объединяются; удаление в остальных хранилищах продолжается.
func (c *Chain) Remove(ctx context.Context, id string) error {
	var errs []error
	for _, b := range c.available() {
		if err := b.Remove(ctx, id); err != nil {
			errs = append(errs, err)
			c.logger.Warn("Удаление не выполнено",
				slog.String("backend", b.Name()),
				slog.String("id", id),
				slog.String("error", err.Error()),
			)
		}
	}
	return errors.Join(errs...)
}

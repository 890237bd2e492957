package backend

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/bigkaa/coursehub-uploads/internal/domain/model"
	"github.com/bigkaa/coursehub-uploads/internal/domain/validation"
	"github.com/bigkaa/coursehub-uploads/internal/storage/metadata"
	"github.com/bigkaa/coursehub-uploads/internal/storage/objectstore"
	"github.com/bigkaa/coursehub-uploads/internal/storage/pending"
)

// objectPrefix — префикс путей объектов в бакете.
const objectPrefix = "uploads/"

// OrphanSink принимает объекты, оставшиеся без строки метаданных.
type OrphanSink interface {
	Enqueue(ctx context.Context, item pending.Item) error
}

// RemoteBackend — объектное хранилище + таблица метаданных.
type RemoteBackend struct {
	objects      objectstore.Store
	table        metadata.Table
	orphans      OrphanSink
	cacheControl string
	logger       *slog.Logger
}

// NewRemoteBackend создаёт удалённое хранилище. orphans может быть nil.
func NewRemoteBackend(
	objects objectstore.Store,
	table metadata.Table,
	orphans OrphanSink,
	cacheControl string,
	logger *slog.Logger,
) *RemoteBackend {
	return &RemoteBackend{
		objects:      objects,
		table:        table,
		orphans:      orphans,
		cacheControl: cacheControl,
		logger:       logger.With(slog.String("component", "remote_backend")),
	}
}

// ObjectPath возвращает путь объекта: uploads/<id>.<исходное расширение>.
func ObjectPath(id, name string) string {
	ext := validation.RawExtension(name)
	if ext == "" {
		return objectPrefix + id
	}
	return objectPrefix + id + "." + ext
}

func (b *RemoteBackend) Name() string { return SourceRemote }

func (b *RemoteBackend) Available() bool {
	return b != nil && b.objects != nil && b.table != nil
}

// Save: запись объекта без перезаписи → публичный URL → строка метаданных.
// Если строку вставить не удалось, объект удаляется; при неудаче удаления
// объект ставится в очередь сверки.
func (b *RemoteBackend) Save(ctx context.Context, req SaveRequest) (*model.UploadRecord, error) {
	path := ObjectPath(req.ID, req.Name)

	url, err := b.objects.Put(ctx, path, req.Data, objectstore.PutOptions{
		ContentType:  req.MimeType,
		CacheControl: b.cacheControl,
		NoOverwrite:  true,
	})
	if err != nil {
		return nil, &RemoteWriteError{Stage: StageObject, Err: err}
	}

	rec := &model.UploadRecord{
		ID:         req.ID,
		Name:       req.Name,
		MimeType:   req.MimeType,
		SizeBytes:  int64(len(req.Data)),
		UploadedAt: req.UploadedAt,
		SubjectTag: req.Subject,
		Location:   model.RemoteLocation(url, path),
	}

	if err := b.table.Insert(ctx, rec); err != nil {
		b.compensate(ctx, req.ID, path)
		return nil, &RemoteWriteError{Stage: StageMetadata, Err: err}
	}
	return rec, nil
}

// compensate удаляет объект, для которого не удалось создать метаданные.
func (b *RemoteBackend) compensate(ctx context.Context, id, path string) {
	delErr := b.objects.Delete(ctx, path)
	if delErr == nil {
		return
	}
	b.logger.Warn("Не удалось удалить объект без метаданных",
		slog.String("id", id),
		slog.String("path", path),
		slog.String("error", delErr.Error()),
	)
	if b.orphans == nil {
		return
	}
	if err := b.orphans.Enqueue(ctx, pending.Item{ID: id, Path: path, Reason: StageObject, Orphan: true}); err != nil {
		b.logger.Error("Не удалось поставить объект в очередь сверки",
			slog.String("id", id),
			slog.String("error", err.Error()),
		)
	}
}

func (b *RemoteBackend) List(ctx context.Context, subject string) ([]*model.UploadRecord, error) {
	records, err := b.table.Query(ctx, metadata.Filter{Subject: subject})
	if err != nil {
		return nil, &RemoteQueryError{Err: err}
	}
	return records, nil
}

func (b *RemoteBackend) Get(ctx context.Context, id string) (*model.UploadRecord, error) {
	rec, err := b.table.Get(ctx, id)
	if errors.Is(err, metadata.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, &RemoteQueryError{Err: err}
	}
	return rec, nil
}

// Remove: поиск пути по id → удаление объекта → удаление строки.
// Отсутствующая строка означает, что удалять нечего.
func (b *RemoteBackend) Remove(ctx context.Context, id string) error {
	rec, err := b.table.Get(ctx, id)
	if errors.Is(err, metadata.ErrNotFound) {
		return nil
	}
	if err != nil {
		return &RemoveError{Stage: StageLookup, ID: id, Err: err}
	}
	_, path, _ := rec.Location.Remote()
	return b.Purge(ctx, id, path)
}

// Purge удаляет объект и строку, не требуя строки для поиска пути.
// Отсутствие объекта или строки считается успехом.
func (b *RemoteBackend) Purge(ctx context.Context, id, path string) error {
	if path != "" {
		if err := b.objects.Delete(ctx, path); err != nil {
			return &RemoveError{Stage: StageObject, ID: id, Path: path, Err: err}
		}
	}
	if err := b.table.DeleteByID(ctx, id); err != nil && !errors.Is(err, metadata.ErrNotFound) {
		return &RemoveError{Stage: StageMetadata, ID: id, Path: path, Err: err}
	}
	return nil
}

// Ping проверяет таблицу метаданных и бакет.
func (b *RemoteBackend) Ping(ctx context.Context) error {
	if err := b.table.Ping(ctx); err != nil {
		return fmt.Errorf("метаданные: %w", err)
	}
	if err := b.objects.Ping(ctx); err != nil {
		return fmt.Errorf("объектное хранилище: %w", err)
	}
	return nil
}

// Пакет backend — хранилища записей о загрузках и цепочка отката между ними.
//
// RemoteBackend — объектное хранилище + таблица метаданных.
// EmbeddedBackend — локальная коллекция в kv-хранилище, байты в data URI.
// Chain перебирает доступные хранилища по порядку: Save и List
// откатываются к следующему при ошибке, Remove выполняется во всех.
package backend

import (
	"context"
	"time"

	"github.com/bigkaa/coursehub-uploads/internal/domain/model"
)

// Источники данных.
const (
	SourceRemote = "remote"
	SourceLocal  = "local"
)

// SaveRequest — прочитанный и проверенный файл, готовый к записи.
type SaveRequest struct {
	ID         string
	Name       string
	MimeType   string
	Subject    string
	UploadedAt time.Time
	Data       []byte
}

// StorageBackend — хранилище записей.
type StorageBackend interface {
	// Name возвращает источник: SourceRemote или SourceLocal.
	Name() string
	// Available сообщает, настроено ли хранилище для использования.
	Available() bool
	// Save сохраняет файл и возвращает запись.
	Save(ctx context.Context, req SaveRequest) (*model.UploadRecord, error)
	// List возвращает записи (новые первыми). subject может игнорироваться.
	List(ctx context.Context, subject string) ([]*model.UploadRecord, error)
	// Get возвращает запись или ErrNotFound.
	Get(ctx context.Context, id string) (*model.UploadRecord, error)
	// Remove удаляет запись. Отсутствующая запись — не ошибка.
	Remove(ctx context.Context, id string) error
}

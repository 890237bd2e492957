// Пакет metadata — таблица метаданных файлов, загруженных в объектное хранилище.
// Реализации: PostgreSQL (pgx) и DynamoDB.
package metadata

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bigkaa/coursehub-uploads/internal/domain/model"
)

// Ошибки слоя метаданных.
var (
	// ErrNotFound — запись не найдена.
	ErrNotFound = errors.New("запись не найдена")
	// ErrConflict — запись с таким id уже существует.
	ErrConflict = errors.New("конфликт — запись уже существует")
)

// Filter — параметры выборки.
type Filter struct {
	// Subject — фильтр по предмету (пусто — без фильтра)
	Subject string
	// Limit — максимум записей (0 — без ограничения)
	Limit int
}

// Table — таблица метаданных. Query возвращает записи по upload_date (новые первыми).
type Table interface {
	Insert(ctx context.Context, rec *model.UploadRecord) error
	Query(ctx context.Context, f Filter) ([]*model.UploadRecord, error)
	Get(ctx context.Context, id string) (*model.UploadRecord, error)
	DeleteByID(ctx context.Context, id string) error
	Ping(ctx context.Context) error
}

// Row — плоское представление строки таблицы uploaded_files.
type Row struct {
	ID         string
	Name       string
	Type       string
	Size       int64
	UploadDate time.Time
	FilePath   string
	FileURL    string
	Subject    string
}

// RowFromRecord преобразует запись в строку. Допускаются только удалённые записи.
func RowFromRecord(rec *model.UploadRecord) (Row, error) {
	url, path, ok := rec.Location.Remote()
	if !ok {
		return Row{}, fmt.Errorf("запись %s: в таблицу метаданных пишутся только удалённые записи", rec.ID)
	}
	return Row{
		ID:         rec.ID,
		Name:       rec.Name,
		Type:       rec.MimeType,
		Size:       rec.SizeBytes,
		UploadDate: rec.UploadedAt.UTC(),
		FilePath:   path,
		FileURL:    url,
		Subject:    rec.SubjectTag,
	}, nil
}

// Record преобразует строку в доменную запись.
func (r Row) Record() *model.UploadRecord {
	return &model.UploadRecord{
		ID:         r.ID,
		Name:       r.Name,
		MimeType:   r.Type,
		SizeBytes:  r.Size,
		UploadedAt: r.UploadDate.UTC(),
		SubjectTag: r.Subject,
		Location:   model.RemoteLocation(r.FileURL, r.FilePath),
	}
}

// Пакет objectstore — удалённое хранилище байтов файлов.
// Реализация — S3-совместимое хранилище (AWS S3, MinIO, S3-шлюз Supabase).
package objectstore

import (
	"context"
	"errors"
)

// ErrAlreadyExists — объект по этому пути уже существует (запись без перезаписи).
var ErrAlreadyExists = errors.New("объект уже существует")

// PutOptions — параметры записи объекта.
type PutOptions struct {
	// ContentType — MIME-тип объекта
	ContentType string
	// CacheControl — значение заголовка Cache-Control (например, "max-age=3600")
	CacheControl string
	// NoOverwrite — запрет перезаписи существующего объекта
	NoOverwrite bool
}

// Store — удалённое объектное хранилище.
type Store interface {
	// Put записывает объект и возвращает его публичный URL.
	Put(ctx context.Context, path string, data []byte, opts PutOptions) (string, error)
	// Delete удаляет объект. Отсутствующий объект не считается ошибкой.
	Delete(ctx context.Context, path string) error
	// Ping проверяет доступность бакета.
	Ping(ctx context.Context) error
}

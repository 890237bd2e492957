// errors.go — ошибки сервисного слоя.
package service

import (
	"errors"
	"fmt"

	"github.com/bigkaa/coursehub-uploads/internal/domain/validation"
)

// Ключи локализованных сообщений, которые получает интерфейс.
const (
	MsgUploadError  = "resources.uploadError"
	MsgFileTooLarge = "resources.fileTooLarge"
	MsgUnsupported  = "resources.unsupportedType"
)

// ErrNotFound — запись не найдена (или ожидает удаления).
var ErrNotFound = errors.New("запись не найдена")

// UploadFailedError — файл не удалось сохранить ни в одно хранилище.
type UploadFailedError struct {
	// ID — идентификатор попытки загрузки
	ID string
	// Name — имя файла
	Name string
	// MessageKey — ключ локализованного сообщения для пользователя
	MessageKey string
	Err        error
}

func (e *UploadFailedError) Error() string {
	return fmt.Sprintf("загрузка %s (%s) не удалась: %v", e.Name, e.ID, e.Err)
}

func (e *UploadFailedError) Unwrap() error { return e.Err }

// MessageKey возвращает ключ локализованного сообщения для ошибки загрузки.
func MessageKey(err error) string {
	var ferr *UploadFailedError
	switch {
	case validation.IsKind(err, validation.KindTooLarge):
		return MsgFileTooLarge
	case validation.IsKind(err, validation.KindUnsupportedType):
		return MsgUnsupported
	case errors.As(err, &ferr) && ferr.MessageKey != "":
		return ferr.MessageKey
	default:
		return MsgUploadError
	}
}

package backend

import (
	"errors"
	"fmt"
)

// ErrNotFound — запись не найдена ни в одном хранилище.
var ErrNotFound = errors.New("запись не найдена")

// ErrUnavailable — ни одно хранилище не доступно.
var ErrUnavailable = errors.New("нет доступных хранилищ")

// Этапы операций с удалённым хранилищем.
const (
	StageObject   = "object"
	StageMetadata = "metadata"
	StageLookup   = "lookup"
)

// RemoteWriteError — ошибка записи в удалённое хранилище (объект или метаданные).
// Вызывает переход к локальному хранилищу.
type RemoteWriteError struct {
	Stage string
	Err   error
}

func (e *RemoteWriteError) Error() string {
	return fmt.Sprintf("ошибка удалённой записи (%s): %v", e.Stage, e.Err)
}

func (e *RemoteWriteError) Unwrap() error { return e.Err }

// RemoteQueryError — ошибка чтения списка из удалённого хранилища.
type RemoteQueryError struct {
	Err error
}

func (e *RemoteQueryError) Error() string {
	return fmt.Sprintf("ошибка удалённого запроса: %v", e.Err)
}

func (e *RemoteQueryError) Unwrap() error { return e.Err }

// RemoveError — удалённое удаление не завершено.
// Path заполнен, если путь объекта известен.
type RemoveError struct {
	Stage string
	ID    string
	Path  string
	Err   error
}

func (e *RemoveError) Error() string {
	return fmt.Sprintf("ошибка удаления %s (%s): %v", e.ID, e.Stage, e.Err)
}

func (e *RemoveError) Unwrap() error { return e.Err }

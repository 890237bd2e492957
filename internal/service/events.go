// events.go — события координатора загрузок и подписка на них.
package service

import (
	"sync"
	"time"

	"github.com/bigkaa/coursehub-uploads/internal/domain/model"
)

// EventKind — вид события.
type EventKind string

const (
	// EventProgressStarted — загрузка начата, появился элемент прогресса
	EventProgressStarted EventKind = "progress_started"
	// EventProgressSettled — загрузка завершена успешно
	EventProgressSettled EventKind = "progress_settled"
	// EventProgressFailed — загрузка завершена с ошибкой
	EventProgressFailed EventKind = "progress_failed"
	// EventRecordAdded — запись добавлена в список файлов
	EventRecordAdded EventKind = "record_added"
	// EventRecordRemoved — запись убрана из списка файлов
	EventRecordRemoved EventKind = "record_removed"
	// EventListed — получен актуальный список файлов
	EventListed EventKind = "listed"
)

// Event — событие координатора.
type Event struct {
	Kind EventKind
	// UploadID — id загрузки или записи
	UploadID string
	// Name — имя файла (для событий прогресса)
	Name string
	// Record — добавленная запись (EventRecordAdded, EventProgressSettled)
	Record *model.UploadRecord
	// Records — полный список (EventListed)
	Records []*model.UploadRecord
	// Source — источник списка (EventListed)
	Source string
	// MessageKey — ключ локализованного сообщения (EventProgressFailed)
	MessageKey string
	// Err — причина ошибки (EventProgressFailed)
	Err error
	// At — время события
	At time.Time
}

// Listener получает события. Вызывается синхронно в горутине операции,
// поэтому не должен блокироваться.
type Listener interface {
	HandleEvent(Event)
}

// ListenerFunc — адаптер функции к Listener.
type ListenerFunc func(Event)

// HandleEvent вызывает f(e).
func (f ListenerFunc) HandleEvent(e Event) { f(e) }

// dispatcher — потокобезопасный список подписчиков.
type dispatcher struct {
	mu        sync.RWMutex
	listeners []Listener
}

func (d *dispatcher) subscribe(l Listener) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.listeners = append(d.listeners, l)
}

func (d *dispatcher) publish(e Event) {
	if e.At.IsZero() {
		e.At = time.Now().UTC()
	}
	d.mu.RLock()
	listeners := d.listeners
	d.mu.RUnlock()
	for _, l := range listeners {
		l.HandleEvent(e)
	}
}

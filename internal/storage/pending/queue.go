// Пакет pending — персистентная очередь удалённых удалений, которые не удалось
// выполнить сразу. Хранится в локальном kv-хранилище под одним ключом.
// Очередь обрабатывается фоновой сверкой; пока элемент в очереди,
// запись скрыта из списков.
package pending

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/bigkaa/coursehub-uploads/internal/storage/kv"
)

// DefaultKey — ключ очереди в kv-хранилище.
const DefaultKey = "pending_removals"

// Item — отложенное удаление.
type Item struct {
	// ID — идентификатор записи
	ID string `json:"id"`
	// Path — путь объекта в удалённом хранилище (может быть пустым)
	Path string `json:"path,omitempty"`
	// Reason — этап, на котором удаление не удалось
	Reason string `json:"reason,omitempty"`
	// QueuedAt — время постановки в очередь
	QueuedAt time.Time `json:"queued_at"`
	// Attempts — число неудачных попыток сверки
	Attempts int `json:"attempts"`
	// Orphan — объект без строки метаданных, оставшийся после неудачной записи.
	// Такие элементы не скрывают записи из списков.
	Orphan bool `json:"orphan,omitempty"`
}

// Queue — очередь поверх kv.Store.
type Queue struct {
	store kv.Store
	key   string
}

// New создаёт очередь. Пустой key означает DefaultKey.
func New(store kv.Store, key string) *Queue {
	if key == "" {
		key = DefaultKey
	}
	return &Queue{store: store, key: key}
}

// Enqueue добавляет элемент. Повторная постановка того же id обновляет путь,
// сохраняя время первой постановки.
func (q *Queue) Enqueue(ctx context.Context, item Item) error {
	if item.QueuedAt.IsZero() {
		item.QueuedAt = time.Now().UTC()
	}
	return q.update(ctx, func(items map[string]Item) {
		if prev, ok := items[item.ID]; ok {
			item.QueuedAt = prev.QueuedAt
			item.Attempts = prev.Attempts
			item.Orphan = item.Orphan && prev.Orphan
			if item.Path == "" {
				item.Path = prev.Path
			}
		}
		items[item.ID] = item
	})
}

// Done удаляет элемент из очереди (отсутствие — не ошибка).
func (q *Queue) Done(ctx context.Context, id string) error {
	return q.update(ctx, func(items map[string]Item) {
		delete(items, id)
	})
}

// Failed увеличивает счётчик попыток элемента.
func (q *Queue) Failed(ctx context.Context, id string) error {
	return q.update(ctx, func(items map[string]Item) {
		if it, ok := items[id]; ok {
			it.Attempts++
			items[id] = it
		}
	})
}

// Get возвращает элемент очереди по id.
func (q *Queue) Get(ctx context.Context, id string) (Item, bool, error) {
	items, err := q.load(ctx)
	if err != nil {
		return Item{}, false, err
	}
	it, ok := items[id]
	return it, ok, nil
}

// List возвращает элементы в порядке постановки.
func (q *Queue) List(ctx context.Context) ([]Item, error) {
	items, err := q.load(ctx)
	if err != nil {
		return nil, err
	}
	result := make([]Item, 0, len(items))
	for _, it := range items {
		result = append(result, it)
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].QueuedAt.Equal(result[j].QueuedAt) {
			return result[i].ID < result[j].ID
		}
		return result[i].QueuedAt.Before(result[j].QueuedAt)
	})
	return result, nil
}

// IDs возвращает множество id записей, ожидающих удаления (без Orphan).
func (q *Queue) IDs(ctx context.Context) (map[string]bool, error) {
	items, err := q.load(ctx)
	if err != nil {
		return nil, err
	}
	ids := make(map[string]bool, len(items))
	for id, it := range items {
		if !it.Orphan {
			ids[id] = true
		}
	}
	return ids, nil
}

func (q *Queue) load(ctx context.Context) (map[string]Item, error) {
	data, err := q.store.Get(ctx, q.key)
	if errors.Is(err, kv.ErrNotFound) {
		return map[string]Item{}, nil
	}
	if err != nil {
		return nil, err
	}
	return decode(data)
}

func (q *Queue) update(ctx context.Context, fn func(map[string]Item)) error {
	return q.store.Update(ctx, q.key, func(cur []byte) ([]byte, error) {
		items := map[string]Item{}
		if cur != nil {
			var err error
			if items, err = decode(cur); err != nil {
				return nil, err
			}
		}
		fn(items)
		return json.Marshal(items)
	})
}

func decode(data []byte) (map[string]Item, error) {
	var items map[string]Item
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, fmt.Errorf("повреждена очередь отложенных удалений: %w", err)
	}
	// JSON null даёт nil map
	if items == nil {
		items = map[string]Item{}
	}
	return items, nil
}

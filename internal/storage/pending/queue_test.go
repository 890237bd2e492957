package pending

import (
	"context"
	"testing"
	"time"

	"github.com/bigkaa/coursehub-uploads/internal/storage/kv"
)

func TestQueue(t *testing.T) {
	ctx := context.Background()
	store, err := kv.NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}
	q := New(store, "")

	items, err := q.List(ctx)
	if err != nil || len(items) != 0 {
		t.Fatalf("пустая очередь: %v, %d элементов", err, len(items))
	}

	t0 := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	if err := q.Enqueue(ctx, Item{ID: "file_b", Path: "uploads/file_b.txt", QueuedAt: t0.Add(time.Second)}); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	if err := q.Enqueue(ctx, Item{ID: "file_a", Path: "uploads/file_a.txt", QueuedAt: t0}); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	if err := q.Failed(ctx, "file_a"); err != nil {
		t.Fatalf("Failed: %v", err)
	}
	// Повторная постановка сохраняет время и счётчик попыток
	if err := q.Enqueue(ctx, Item{ID: "file_a", Reason: "object"}); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}

	items, err = q.List(ctx)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(items) != 2 || items[0].ID != "file_a" || items[1].ID != "file_b" {
		t.Fatalf("порядок элементов: %+v", items)
	}
	if items[0].Attempts != 1 || items[0].Path != "uploads/file_a.txt" || !items[0].QueuedAt.Equal(t0) {
		t.Errorf("элемент после повторной постановки: %+v", items[0])
	}

	ids, _ := q.IDs(ctx)
	if !ids["file_a"] || !ids["file_b"] {
		t.Errorf("IDs = %v", ids)
	}

	if err := q.Done(ctx, "file_a"); err != nil {
		t.Fatalf("Done: %v", err)
	}
	if err := q.Done(ctx, "missing"); err != nil {
		t.Fatalf("Done для отсутствующего: %v", err)
	}
	ids, _ = q.IDs(ctx)
	if ids["file_a"] || len(ids) != 1 {
		t.Errorf("после Done: %v", ids)
	}
}

func TestQueue_OrphanNotHidden(t *testing.T) {
	ctx := context.Background()
	store, _ := kv.NewFileStore(t.TempDir())
	q := New(store, "")

	if err := q.Enqueue(ctx, Item{ID: "file_o", Path: "uploads/file_o.txt", Orphan: true}); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	ids, _ := q.IDs(ctx)
	if ids["file_o"] {
		t.Error("объект-сирота не должен скрывать запись")
	}

	// Явное удаление той же записи снимает признак
	if err := q.Enqueue(ctx, Item{ID: "file_o", Reason: "metadata"}); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	ids, _ = q.IDs(ctx)
	if !ids["file_o"] {
		t.Error("запись, ожидающая удаления, должна скрываться")
	}
	items, _ := q.List(ctx)
	if len(items) != 1 || items[0].Path != "uploads/file_o.txt" {
		t.Errorf("элементы: %+v", items)
	}
}

func TestQueue_StoredNull(t *testing.T) {
	ctx := context.Background()
	store, err := kv.NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}
	if err := store.Set(ctx, DefaultKey, []byte("null")); err != nil {
		t.Fatalf("Set: %v", err)
	}
	q := New(store, "")

	if err := q.Enqueue(ctx, Item{ID: "file_a", Path: "uploads/file_a.txt"}); err != nil {
		t.Fatalf("Enqueue поверх null: %v", err)
	}
	it, ok, err := q.Get(ctx, "file_a")
	if err != nil || !ok || it.Path != "uploads/file_a.txt" {
		t.Errorf("Get = %+v, %v, %v", it, ok, err)
	}
	if _, ok, _ := q.Get(ctx, "file_missing"); ok {
		t.Error("отсутствующий id не должен находиться")
	}
}

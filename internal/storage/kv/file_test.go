package kv

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"testing"
)

func TestFileStore_GetSet(t *testing.T) {
	ctx := context.Background()
	s, err := NewFileStore(filepath.Join(t.TempDir(), "kv"))
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}

	if _, err := s.Get(ctx, "student_uploads"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("ожидалась ErrNotFound, получено %v", err)
	}

	if err := s.Set(ctx, "student_uploads", []byte(`[]`)); err != nil {
		t.Fatalf("Set: %v", err)
	}
	got, err := s.Get(ctx, "student_uploads")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if string(got) != "[]" {
		t.Errorf("Get = %q, ожидалось []", got)
	}

	// Временный файл не должен оставаться после записи
	if _, err := os.Stat(filepath.Join(s.Dir(), "student_uploads.json.tmp")); !os.IsNotExist(err) {
		t.Errorf("временный файл не удалён: %v", err)
	}
}

func TestFileStore_InvalidKey(t *testing.T) {
	s, err := NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}
	for _, key := range []string{"", "../etc/passwd", "a/b", "ключ"} {
		if err := s.Set(context.Background(), key, nil); !errors.Is(err, ErrInvalidKey) {
			t.Errorf("ключ %q: ожидалась ErrInvalidKey, получено %v", key, err)
		}
	}
}

func TestFileStore_UpdateConcurrent(t *testing.T) {
	ctx := context.Background()
	s, err := NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}

	const n = 50
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := s.Update(ctx, "counter", func(cur []byte) ([]byte, error) {
				v := 0
				if cur != nil {
					v, _ = strconv.Atoi(string(cur))
				}
				return []byte(strconv.Itoa(v + 1)), nil
			})
			if err != nil {
				t.Errorf("Update: %v", err)
			}
		}()
	}
	wg.Wait()

	got, err := s.Get(ctx, "counter")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if string(got) != strconv.Itoa(n) {
		t.Errorf("counter = %s, ожидалось %d (потеряны обновления)", got, n)
	}
}

func TestFileStore_UpdateAbort(t *testing.T) {
	ctx := context.Background()
	s, _ := NewFileStore(t.TempDir())
	_ = s.Set(ctx, "k", []byte("old"))

	boom := errors.New("boom")
	err := s.Update(ctx, "k", func([]byte) ([]byte, error) { return nil, boom })
	if !errors.Is(err, boom) {
		t.Fatalf("ожидалась ошибка fn, получено %v", err)
	}
	got, _ := s.Get(ctx, "k")
	if string(got) != "old" {
		t.Errorf("значение изменилось после отмены: %q", got)
	}
}

func TestFileStore_Ping(t *testing.T) {
	s, _ := NewFileStore(t.TempDir())
	if err := s.Ping(context.Background()); err != nil {
		t.Errorf("Ping: %v", err)
	}
}

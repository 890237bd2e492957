package kv

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// pingKey — служебный ключ для проверки записи.
const pingKey = "_ping"

// FileStore — хранилище на файловой системе: один файл <dir>/<key>.json на ключ.
// Запись атомарная: temp → fsync → rename. Мьютекс сериализует изменения
// внутри процесса.
type FileStore struct {
	dir string
	mu  sync.Mutex
}

// NewFileStore создаёт хранилище и директорию dir, если её нет.
func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("не удалось создать директорию %s: %w", dir, err)
	}
	return &FileStore{dir: dir}, nil
}

// Dir возвращает директорию хранилища.
func (s *FileStore) Dir() string {
	return s.dir
}

func (s *FileStore) path(key string) string {
	return filepath.Join(s.dir, key+".json")
}

// Get читает значение ключа.
func (s *FileStore) Get(_ context.Context, key string) ([]byte, error) {
	if err := ValidateKey(key); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.read(key)
}

// Set атомарно записывает значение.
func (s *FileStore) Set(_ context.Context, key string, value []byte) error {
	if err := ValidateKey(key); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.write(key, value)
}

// Update выполняет read-modify-write под мьютексом.
func (s *FileStore) Update(_ context.Context, key string, fn UpdateFunc) error {
	if err := ValidateKey(key); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	cur, err := s.read(key)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return err
	}
	next, err := fn(cur)
	if err != nil {
		return err
	}
	return s.write(key, next)
}

// Ping проверяет, что директория доступна на запись.
func (s *FileStore) Ping(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.write(pingKey, []byte("{}")); err != nil {
		return err
	}
	return os.Remove(s.path(pingKey))
}

func (s *FileStore) read(key string) ([]byte, error) {
	data, err := os.ReadFile(s.path(key))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("ошибка чтения ключа %s: %w", key, err)
	}
	return data, nil
}

// write — атомарная запись: temp → fsync → rename.
func (s *FileStore) write(key string, data []byte) error {
	path := s.path(key)
	tmpPath := path + ".tmp"

	f, err := os.Create(tmpPath)
	if err != nil {
		return fmt.Errorf("ошибка создания временного файла: %w", err)
	}

	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("ошибка записи: %w", err)
	}

	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("ошибка fsync: %w", err)
	}

	if err := f.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("ошибка закрытия файла: %w", err)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("ошибка атомарного переименования: %w", err)
	}
	return nil
}

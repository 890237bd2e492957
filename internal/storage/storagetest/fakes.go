// Пакет storagetest — in-memory реализации удалённых хранилищ для тестов
// с управляемым внедрением ошибок.
package storagetest

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/bigkaa/coursehub-uploads/internal/domain/model"
	"github.com/bigkaa/coursehub-uploads/internal/storage/metadata"
	"github.com/bigkaa/coursehub-uploads/internal/storage/objectstore"
)

// ErrInjected — ошибка, внедрённая тестом.
var ErrInjected = errors.New("внедрённая ошибка")

// ObjectStore — in-memory objectstore.Store.
type ObjectStore struct {
	mu      sync.Mutex
	Objects map[string][]byte
	Options map[string]objectstore.PutOptions

	PutErr    error
	DeleteErr error
	PingErr   error
	Deletes   int
}

// NewObjectStore создаёт пустое хранилище.
func NewObjectStore() *ObjectStore {
	return &ObjectStore{
		Objects: make(map[string][]byte),
		Options: make(map[string]objectstore.PutOptions),
	}
}

func (s *ObjectStore) Put(_ context.Context, path string, data []byte, opts objectstore.PutOptions) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.PutErr != nil {
		return "", s.PutErr
	}
	if _, ok := s.Objects[path]; ok && opts.NoOverwrite {
		return "", objectstore.ErrAlreadyExists
	}
	s.Objects[path] = append([]byte(nil), data...)
	s.Options[path] = opts
	return "https://objects.test/" + path, nil
}

func (s *ObjectStore) Delete(_ context.Context, path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Deletes++
	if s.DeleteErr != nil {
		return s.DeleteErr
	}
	delete(s.Objects, path)
	return nil
}

func (s *ObjectStore) Ping(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.PingErr
}

// Has сообщает, есть ли объект по пути.
func (s *ObjectStore) Has(path string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.Objects[path]
	return ok
}

// SetDeleteErr меняет ошибку удаления под мьютексом.
func (s *ObjectStore) SetDeleteErr(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.DeleteErr = err
}

// Table — in-memory metadata.Table.
type Table struct {
	mu   sync.Mutex
	Rows map[string]*model.UploadRecord

	InsertErr error
	QueryErr  error
	GetErr    error
	DeleteErr error
	PingErr   error
	Queries   int

	// queryHook вызывается после снятия среза строк, до возврата из Query
	queryHook func()
}

// NewTable создаёт пустую таблицу.
func NewTable() *Table {
	return &Table{Rows: make(map[string]*model.UploadRecord)}
}

func (t *Table) Insert(_ context.Context, rec *model.UploadRecord) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.InsertErr != nil {
		return t.InsertErr
	}
	if _, err := metadata.RowFromRecord(rec); err != nil {
		return err
	}
	if _, ok := t.Rows[rec.ID]; ok {
		return metadata.ErrConflict
	}
	cp := *rec
	t.Rows[rec.ID] = &cp
	return nil
}

func (t *Table) Query(_ context.Context, f metadata.Filter) ([]*model.UploadRecord, error) {
	result, hook, err := t.query(f)
	if hook != nil {
		hook()
	}
	return result, err
}

func (t *Table) query(f metadata.Filter) ([]*model.UploadRecord, func(), error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.Queries++
	if t.QueryErr != nil {
		return nil, t.queryHook, t.QueryErr
	}
	var result []*model.UploadRecord
	for _, r := range t.Rows {
		if f.Subject != "" && r.SubjectTag != f.Subject {
			continue
		}
		cp := *r
		result = append(result, &cp)
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].UploadedAt.Equal(result[j].UploadedAt) {
			return result[i].ID > result[j].ID
		}
		return result[i].UploadedAt.After(result[j].UploadedAt)
	})
	if f.Limit > 0 && len(result) > f.Limit {
		result = result[:f.Limit]
	}
	return result, t.queryHook, nil
}

func (t *Table) Get(_ context.Context, id string) (*model.UploadRecord, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.GetErr != nil {
		return nil, t.GetErr
	}
	r, ok := t.Rows[id]
	if !ok {
		return nil, metadata.ErrNotFound
	}
	cp := *r
	return &cp, nil
}

func (t *Table) DeleteByID(_ context.Context, id string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.DeleteErr != nil {
		return t.DeleteErr
	}
	if _, ok := t.Rows[id]; !ok {
		return metadata.ErrNotFound
	}
	delete(t.Rows, id)
	return nil
}

func (t *Table) Ping(context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.PingErr
}

// Has сообщает, есть ли строка с id.
func (t *Table) Has(id string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, ok := t.Rows[id]
	return ok
}

// SetQueryErr меняет ошибку Query под мьютексом.
func (t *Table) SetQueryErr(err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.QueryErr = err
}

// SetInsertErr меняет ошибку Insert под мьютексом.
func (t *Table) SetInsertErr(err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.InsertErr = err
}

// SetQueryHook задаёт функцию, которую Query вызывает с уже снятым результатом.
// Позволяет задержать чтение списка, пока идёт параллельная запись.
func (t *Table) SetQueryHook(fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.queryHook = fn
}

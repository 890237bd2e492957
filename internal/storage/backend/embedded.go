package backend

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/bigkaa/coursehub-uploads/internal/domain/model"
	"github.com/bigkaa/coursehub-uploads/internal/storage/kv"
)

// defaultMimeType — тип для data URI, если клиент не передал Content-Type.
const defaultMimeType = "application/octet-stream"

// EmbeddedBackend — коллекция записей под одним ключом kv-хранилища.
type EmbeddedBackend struct {
	store kv.Store
	key   string
}

// NewEmbeddedBackend создаёт локальное хранилище для коллекции key.
func NewEmbeddedBackend(store kv.Store, key string) *EmbeddedBackend {
	return &EmbeddedBackend{store: store, key: key}
}

// DataURI кодирует байты в data:<mime>;base64,<payload>.
func DataURI(mimeType string, data []byte) string {
	if mimeType == "" {
		mimeType = defaultMimeType
	}
	return "data:" + mimeType + ";base64," + base64.StdEncoding.EncodeToString(data)
}

// ErrInvalidDataURI — строка не является base64 data URI.
var ErrInvalidDataURI = errors.New("некорректный data URI")

// ParseDataURI разбирает data:<mime>;base64,<payload>.
func ParseDataURI(uri string) (mimeType string, data []byte, err error) {
	rest, ok := strings.CutPrefix(uri, "data:")
	if !ok {
		return "", nil, ErrInvalidDataURI
	}
	header, payload, ok := strings.Cut(rest, ",")
	if !ok {
		return "", nil, ErrInvalidDataURI
	}
	mimeType, ok = strings.CutSuffix(header, ";base64")
	if !ok {
		return "", nil, ErrInvalidDataURI
	}
	if mimeType == "" {
		mimeType = defaultMimeType
	}
	data, err = base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return "", nil, fmt.Errorf("%w: %v", ErrInvalidDataURI, err)
	}
	return mimeType, data, nil
}

func (b *EmbeddedBackend) Name() string { return SourceLocal }

func (b *EmbeddedBackend) Available() bool { return b != nil && b.store != nil }

// Save добавляет запись в конец коллекции атомарной операцией Update.
func (b *EmbeddedBackend) Save(ctx context.Context, req SaveRequest) (*model.UploadRecord, error) {
	rec := &model.UploadRecord{
		ID:         req.ID,
		Name:       req.Name,
		MimeType:   req.MimeType,
		SizeBytes:  int64(len(req.Data)),
		UploadedAt: req.UploadedAt,
		SubjectTag: req.Subject,
		Location:   model.EmbeddedLocation(DataURI(req.MimeType, req.Data)),
	}

	err := b.store.Update(ctx, b.key, func(cur []byte) ([]byte, error) {
		records, err := decodeCollection(cur)
		if err != nil {
			return nil, err
		}
		return json.Marshal(append(records, rec))
	})
	if err != nil {
		return nil, fmt.Errorf("ошибка записи в локальное хранилище: %w", err)
	}
	return rec, nil
}

// List возвращает всю коллекцию (предмет не учитывается), новые первыми.
func (b *EmbeddedBackend) List(ctx context.Context, _ string) ([]*model.UploadRecord, error) {
	records, err := b.load(ctx)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(records, func(i, j int) bool {
		return records[i].UploadedAt.After(records[j].UploadedAt)
	})
	return records, nil
}

func (b *EmbeddedBackend) Get(ctx context.Context, id string) (*model.UploadRecord, error) {
	records, err := b.load(ctx)
	if err != nil {
		return nil, err
	}
	for _, r := range records {
		if r.ID == id {
			return r, nil
		}
	}
	return nil, ErrNotFound
}

// Remove исключает запись из коллекции. Отсутствующая запись — не ошибка.
func (b *EmbeddedBackend) Remove(ctx context.Context, id string) error {
	err := b.store.Update(ctx, b.key, func(cur []byte) ([]byte, error) {
		if cur == nil {
			return []byte("[]"), nil
		}
		records, err := decodeCollection(cur)
		if err != nil {
			return nil, err
		}
		kept := records[:0]
		for _, r := range records {
			if r.ID != id {
				kept = append(kept, r)
			}
		}
		return json.Marshal(kept)
	})
	if err != nil {
		return fmt.Errorf("ошибка удаления из локального хранилища: %w", err)
	}
	return nil
}

func (b *EmbeddedBackend) load(ctx context.Context) ([]*model.UploadRecord, error) {
	data, err := b.store.Get(ctx, b.key)
	if errors.Is(err, kv.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения локального хранилища: %w", err)
	}
	return decodeCollection(data)
}

// decodeCollection разбирает JSON-массив записей; nil означает пустую коллекцию.
func decodeCollection(data []byte) ([]*model.UploadRecord, error) {
	if len(data) == 0 {
		return []*model.UploadRecord{}, nil
	}
	var records []*model.UploadRecord
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("повреждена локальная коллекция: %w", err)
	}
	if records == nil {
		records = []*model.UploadRecord{}
	}
	return records, nil
}

// Пакет listview — представление загрузок в памяти, обновляемое событиями
// координатора: элементы прогресса, итоговый список файлов и уведомления.
package listview

import (
	"sort"
	"sync"
	"time"

	"github.com/bigkaa/coursehub-uploads/internal/domain/model"
	"github.com/bigkaa/coursehub-uploads/internal/service"
)

// maxNotices — сколько последних уведомлений хранится.
const maxNotices = 20

// NoticeKind — вид уведомления.
type NoticeKind string

const (
	NoticeSuccess NoticeKind = "success"
	NoticeError   NoticeKind = "error"
)

// ProgressItem — файл, загрузка которого ещё идёт.
type ProgressItem struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	StartedAt time.Time `json:"started_at"`
}

// Notice — результат завершённой загрузки для показа пользователю.
type Notice struct {
	Kind       NoticeKind `json:"kind"`
	UploadID   string     `json:"upload_id"`
	Name       string     `json:"name"`
	MessageKey string     `json:"message_key"`
	At         time.Time  `json:"at"`
}

// ListView — потокобезопасное представление.
// Реализует service.Listener; обработка событий не блокируется.
type ListView struct {
	mu       sync.RWMutex
	progress []ProgressItem
	files    []*model.UploadRecord
	notices  []Notice
}

// New создаёт пустое представление.
func New() *ListView {
	return &ListView{}
}

// HandleEvent применяет событие координатора.
func (v *ListView) HandleEvent(e service.Event) {
	v.mu.Lock()
	defer v.mu.Unlock()

	switch e.Kind {
	case service.EventProgressStarted:
		v.progress = append(v.progress, ProgressItem{ID: e.UploadID, Name: e.Name, StartedAt: e.At})
	case service.EventProgressSettled:
		v.dropProgress(e.UploadID)
		v.notify(Notice{Kind: NoticeSuccess, UploadID: e.UploadID, Name: e.Name, MessageKey: "resources.uploadSuccess", At: e.At})
	case service.EventProgressFailed:
		v.dropProgress(e.UploadID)
		v.notify(Notice{Kind: NoticeError, UploadID: e.UploadID, Name: e.Name, MessageKey: e.MessageKey, At: e.At})
	case service.EventRecordAdded:
		if e.Record != nil {
			v.addFile(e.Record)
		}
	case service.EventRecordRemoved:
		v.dropFile(e.UploadID)
	case service.EventListed:
		v.files = append([]*model.UploadRecord(nil), e.Records...)
		sortNewestFirst(v.files)
	}
}

func (v *ListView) dropProgress(id string) {
	for i, p := range v.progress {
		if p.ID == id {
			v.progress = append(v.progress[:i], v.progress[i+1:]...)
			return
		}
	}
}

func (v *ListView) notify(n Notice) {
	v.notices = append(v.notices, n)
	if len(v.notices) > maxNotices {
		v.notices = v.notices[len(v.notices)-maxNotices:]
	}
}

func (v *ListView) addFile(rec *model.UploadRecord) {
	v.dropFile(rec.ID)
	v.files = append(v.files, rec)
	sortNewestFirst(v.files)
}

func (v *ListView) dropFile(id string) {
	for i, f := range v.files {
		if f.ID == id {
			v.files = append(v.files[:i], v.files[i+1:]...)
			return
		}
	}
}

func sortNewestFirst(records []*model.UploadRecord) {
	sort.SliceStable(records, func(i, j int) bool {
		return records[i].UploadedAt.After(records[j].UploadedAt)
	})
}

// Progress возвращает загрузки в процессе, в порядке начала.
func (v *ListView) Progress() []ProgressItem {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return append([]ProgressItem{}, v.progress...)
}

// Files возвращает итоговый список, новые первыми.
func (v *ListView) Files() []*model.UploadRecord {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return append([]*model.UploadRecord{}, v.files...)
}

// Empty сообщает, что итоговый список пуст.
func (v *ListView) Empty() bool {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return len(v.files) == 0
}

// Notices возвращает последние уведомления, старые первыми.
func (v *ListView) Notices() []Notice {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return append([]Notice{}, v.notices...)
}

// Пакет model — доменные модели сервиса загрузки учебных файлов.
// UploadRecord — запись о загруженном файле, общая для удалённого
// хранилища (объект + строка метаданных) и локального (data URI).
package model

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"
)

// LocationKind — вид хранения файла.
type LocationKind string

const (
	// LocationRemote — байты в объектном хранилище, метаданные в таблице
	LocationRemote LocationKind = "remote"
	// LocationEmbedded — байты встроены в запись в виде data URI
	LocationEmbedded LocationKind = "embedded"
)

// ErrInvalidLocation — запись без представления или с обоими представлениями.
var ErrInvalidLocation = errors.New("запись должна иметь ровно одно представление хранения")

// Location — дискриминированный вариант места хранения.
// Нулевое значение невалидно: создавать через RemoteLocation или EmbeddedLocation.
type Location struct {
	kind       LocationKind
	remoteURL  string
	remotePath string
	dataURI    string
}

// RemoteLocation создаёт представление для объекта в удалённом хранилище.
func RemoteLocation(url, path string) Location {
	return Location{kind: LocationRemote, remoteURL: url, remotePath: path}
}

// EmbeddedLocation создаёт представление со встроенным data URI.
func EmbeddedLocation(dataURI string) Location {
	return Location{kind: LocationEmbedded, dataURI: dataURI}
}

// Kind возвращает вид хранения ("" для нулевого значения).
func (l Location) Kind() LocationKind {
	return l.kind
}

// Remote возвращает URL и путь объекта, если запись хранится удалённо.
func (l Location) Remote() (url, path string, ok bool) {
	if l.kind != LocationRemote {
		return "", "", false
	}
	return l.remoteURL, l.remotePath, true
}

// Embedded возвращает data URI, если запись хранится локально.
func (l Location) Embedded() (string, bool) {
	if l.kind != LocationEmbedded {
		return "", false
	}
	return l.dataURI, true
}

// Validate проверяет, что заполнено ровно одно представление.
func (l Location) Validate() error {
	switch l.kind {
	case LocationRemote:
		if l.remotePath == "" || l.remoteURL == "" {
			return ErrInvalidLocation
		}
	case LocationEmbedded:
		if l.dataURI == "" {
			return ErrInvalidLocation
		}
	default:
		return ErrInvalidLocation
	}
	return nil
}

// UploadRecord — загруженный пользователем файл.
type UploadRecord struct {
	// ID — file_<unix ms>_<9 символов>, генерируется при отправке
	ID string
	// Name — оригинальное имя файла (без санитизации)
	Name string
	// MimeType — тип содержимого, переданный клиентом
	MimeType string
	// SizeBytes — размер в байтах, не больше установленного максимума
	SizeBytes int64
	// UploadedAt — время отправки (UTC)
	UploadedAt time.Time
	// SubjectTag — учебный предмет (опционально, не меняется после создания)
	SubjectTag string
	// Location — место хранения (удалённое или встроенное)
	Location Location
}

// DownloadURL возвращает ссылку для скачивания: URL объекта или data URI.
func (r *UploadRecord) DownloadURL() string {
	if url, _, ok := r.Location.Remote(); ok {
		return url
	}
	uri, _ := r.Location.Embedded()
	return uri
}

// recordJSON — формат записи в локальной коллекции.
// Совместим с форматом, который сохранял сайт в localStorage.
type recordJSON struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	Type       string    `json:"type"`
	Size       int64     `json:"size"`
	UploadDate time.Time `json:"uploadDate"`
	Subject    string    `json:"subject,omitempty"`
	Data       string    `json:"data,omitempty"`
	FileURL    string    `json:"file_url,omitempty"`
	FilePath   string    `json:"file_path,omitempty"`
}

// MarshalJSON сериализует запись в плоский формат локальной коллекции.
func (r UploadRecord) MarshalJSON() ([]byte, error) {
	if err := r.Location.Validate(); err != nil {
		return nil, fmt.Errorf("запись %s: %w", r.ID, err)
	}
	w := recordJSON{
		ID:         r.ID,
		Name:       r.Name,
		Type:       r.MimeType,
		Size:       r.SizeBytes,
		UploadDate: r.UploadedAt,
		Subject:    r.SubjectTag,
	}
	if url, path, ok := r.Location.Remote(); ok {
		w.FileURL, w.FilePath = url, path
	} else {
		w.Data, _ = r.Location.Embedded()
	}
	return json.Marshal(w)
}

// UnmarshalJSON восстанавливает запись и проверяет единственность представления.
func (r *UploadRecord) UnmarshalJSON(data []byte) error {
	var w recordJSON
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}

	hasRemote := w.FilePath != "" || w.FileURL != ""
	switch {
	case hasRemote && w.Data != "":
		return fmt.Errorf("запись %s: %w", w.ID, ErrInvalidLocation)
	case hasRemote:
		r.Location = RemoteLocation(w.FileURL, w.FilePath)
	default:
		r.Location = EmbeddedLocation(w.Data)
	}
	if err := r.Location.Validate(); err != nil {
		return fmt.Errorf("запись %s: %w", w.ID, err)
	}

	r.ID = w.ID
	r.Name = w.Name
	r.MimeType = w.Type
	r.SizeBytes = w.Size
	r.UploadedAt = w.UploadDate
	r.SubjectTag = w.Subject
	return nil
}

// CandidateFile — файл, выбранный пользователем, до валидации и записи.
type CandidateFile struct {
	// Name — имя файла из формы
	Name string
	// MimeType — заявленный Content-Type (рекомендательный)
	MimeType string
	// SizeBytes — заявленный размер
	SizeBytes int64
	// Content — поток байтов файла, читается не более одного раза
	Content io.Reader
}

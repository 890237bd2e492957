package model

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"
)

func TestLocation_Validate(t *testing.T) {
	if err := (Location{}).Validate(); !errors.Is(err, ErrInvalidLocation) {
		t.Errorf("нулевое значение должно быть невалидным, получено %v", err)
	}
	if err := RemoteLocation("", "uploads/a.txt").Validate(); !errors.Is(err, ErrInvalidLocation) {
		t.Errorf("remote без URL должен быть невалидным, получено %v", err)
	}
	if err := EmbeddedLocation("data:text/plain;base64,aGk=").Validate(); err != nil {
		t.Errorf("embedded должен быть валидным: %v", err)
	}
}

func TestUploadRecord_JSONEmbedded(t *testing.T) {
	rec := UploadRecord{
		ID:         "file_1700000000000_abc123xyz",
		Name:       "notes.txt",
		MimeType:   "text/plain",
		SizeBytes:  2,
		UploadedAt: time.Date(2026, 10, 1, 12, 0, 0, 0, time.UTC),
		Location:   EmbeddedLocation("data:text/plain;base64,aGk="),
	}

	data, err := json.Marshal(rec)
	if err != nil {
		t.Fatalf("ошибка сериализации: %v", err)
	}
	s := string(data)
	for _, key := range []string{`"uploadDate"`, `"data"`, `"type":"text/plain"`} {
		if !strings.Contains(s, key) {
			t.Errorf("ожидалось %s в %s", key, s)
		}
	}
	if strings.Contains(s, "file_url") {
		t.Errorf("embedded запись не должна содержать file_url: %s", s)
	}

	var back UploadRecord
	if err := json.Unmarshal(data, &back); err != nil {
		t.Fatalf("ошибка десериализации: %v", err)
	}
	uri, ok := back.Location.Embedded()
	if !ok || uri != "data:text/plain;base64,aGk=" {
		t.Errorf("Location после чтения: %q, %v", uri, ok)
	}
	if !back.UploadedAt.Equal(rec.UploadedAt) {
		t.Errorf("UploadedAt = %v, ожидалось %v", back.UploadedAt, rec.UploadedAt)
	}
}

func TestUploadRecord_UnmarshalRejectsAmbiguous(t *testing.T) {
	both := `{"id":"f1","name":"a.txt","type":"text/plain","size":1,"uploadDate":"2026-01-01T00:00:00Z","data":"data:,x","file_url":"http://x","file_path":"uploads/f1.txt"}`
	var rec UploadRecord
	if err := json.Unmarshal([]byte(both), &rec); !errors.Is(err, ErrInvalidLocation) {
		t.Errorf("ожидалась ErrInvalidLocation для двух представлений, получено %v", err)
	}

	neither := `{"id":"f2","name":"a.txt","type":"text/plain","size":1,"uploadDate":"2026-01-01T00:00:00Z"}`
	if err := json.Unmarshal([]byte(neither), &rec); !errors.Is(err, ErrInvalidLocation) {
		t.Errorf("ожидалась ErrInvalidLocation без представления, получено %v", err)
	}
}

func TestUploadRecord_MarshalRejectsZeroLocation(t *testing.T) {
	_, err := json.Marshal(UploadRecord{ID: "f3"})
	if err == nil {
		t.Fatal("ожидалась ошибка сериализации записи без Location")
	}
}

func TestUploadRecord_DownloadURL(t *testing.T) {
	r := UploadRecord{Location: RemoteLocation("https://cdn/uploads/a.pdf", "uploads/a.pdf")}
	if got := r.DownloadURL(); got != "https://cdn/uploads/a.pdf" {
		t.Errorf("DownloadURL = %q", got)
	}
}

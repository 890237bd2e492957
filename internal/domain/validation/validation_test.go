package validation

import (
	"testing"

	"github.com/bigkaa/coursehub-uploads/internal/domain/model"
)

func TestValidate(t *testing.T) {
	v := New(0)

	tests := []struct {
		name    string
		file    model.CandidateFile
		wantErr bool
		kind    Kind
	}{
		{"notes.txt 2 КБ", model.CandidateFile{Name: "notes.txt", SizeBytes: 2048}, false, ""},
		{"ровно 10 MiB", model.CandidateFile{Name: "slides.pdf", SizeBytes: 10 * 1024 * 1024}, false, ""},
		{"верхний регистр", model.CandidateFile{Name: "SCAN.JPG", SizeBytes: 10}, false, ""},
		{"несколько точек", model.CandidateFile{Name: "lab.v2.final.docx", SizeBytes: 10}, false, ""},
		{"10 MiB + 1", model.CandidateFile{Name: "video.zip", SizeBytes: 10*1024*1024 + 1}, true, KindTooLarge},
		{"12 MiB", model.CandidateFile{Name: "video.zip", SizeBytes: 12 * 1024 * 1024}, true, KindTooLarge},
		{"bmp", model.CandidateFile{Name: "photo.bmp", SizeBytes: 100}, true, KindUnsupportedType},
		{"без расширения", model.CandidateFile{Name: "README", SizeBytes: 100}, true, KindUnsupportedType},
		{"точка в конце", model.CandidateFile{Name: "report.", SizeBytes: 100}, true, KindUnsupportedType},
		{"оба нарушения", model.CandidateFile{Name: "movie.mkv", SizeBytes: 20 * 1024 * 1024}, true, KindTooLarge},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := v.Validate(tt.file)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() ошибка = %v, ожидалась ошибка: %v", err, tt.wantErr)
			}
			if tt.wantErr && !IsKind(err, tt.kind) {
				t.Errorf("вид ошибки: ожидался %s, получена %v", tt.kind, err)
			}
		})
	}
}

func TestValidate_MimeTypeIgnored(t *testing.T) {
	v := New(0)
	err := v.Validate(model.CandidateFile{Name: "notes.txt", MimeType: "image/bmp", SizeBytes: 1})
	if err != nil {
		t.Fatalf("MIME-тип не должен влиять на проверку: %v", err)
	}
}

func TestValidate_CustomMax(t *testing.T) {
	v := New(100)
	if v.MaxSize() != 100 {
		t.Fatalf("MaxSize = %d, ожидалось 100", v.MaxSize())
	}
	if err := v.Validate(model.CandidateFile{Name: "a.txt", SizeBytes: 101}); !IsKind(err, KindTooLarge) {
		t.Errorf("ожидался too_large, получено %v", err)
	}
}

func TestExtension(t *testing.T) {
	tests := map[string]string{
		"notes.txt":   "txt",
		"Photo.PNG":   "png",
		"archive.tar": "tar",
		"README":      "",
		"a.b.Zip":     "zip",
	}
	for name, want := range tests {
		if got := Extension(name); got != want {
			t.Errorf("Extension(%q) = %q, ожидалось %q", name, got, want)
		}
	}
	if got := RawExtension("Photo.PNG"); got != "PNG" {
		t.Errorf("RawExtension = %q, ожидалось PNG", got)
	}
}

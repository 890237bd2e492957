package handlers

import (
	"bytes"
	"context"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/bigkaa/coursehub-uploads/internal/domain/model"
	"github.com/bigkaa/coursehub-uploads/internal/domain/validation"
	"github.com/bigkaa/coursehub-uploads/internal/service"
	"github.com/bigkaa/coursehub-uploads/internal/storage/backend"
	"github.com/bigkaa/coursehub-uploads/internal/storage/kv"
	"github.com/bigkaa/coursehub-uploads/internal/storage/pending"
	"github.com/bigkaa/coursehub-uploads/internal/ui/i18n"
	"github.com/bigkaa/coursehub-uploads/internal/ui/listview"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

type fixture struct {
	coord  *service.Coordinator
	router http.Handler
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store, err := kv.NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}
	chain := backend.NewChain(testLogger(), backend.NewEmbeddedBackend(store, "student_uploads"))
	coord := service.NewCoordinator(validation.New(0), chain, pending.New(store, ""),
		service.NewListCache(16, time.Minute), testLogger())
	view := listview.New()
	coord.Subscribe(view)

	bundle, err := i18n.Load("en", testLogger())
	if err != nil {
		t.Fatalf("i18n.Load: %v", err)
	}
	h := NewUploadsPageHandler(coord, view, bundle, testLogger())

	r := chi.NewRouter()
	r.Use(bundle.Middleware())
	r.Get("/", h.HandlePage)
	r.Post("/upload", h.HandleUpload)
	r.Get("/files/{id}/download", h.HandleDownload)
	r.Post("/files/{id}/remove", h.HandleRemove)
	r.Post("/set-language", HandleSetLanguage)
	return &fixture{coord: coord, router: r}
}

func (f *fixture) do(req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func uploadForm(t *testing.T, subject string, names ...string) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for _, name := range names {
		w, err := mw.CreateFormFile("file", name)
		if err != nil {
			t.Fatal(err)
		}
		_, _ = w.Write([]byte("content of " + name))
	}
	_ = mw.WriteField("subject", subject)
	_ = mw.Close()
	req := httptest.NewRequest(http.MethodPost, "/upload", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func TestHandlePage_Empty(t *testing.T) {
	f := newFixture(t)

	rec := f.do(httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("статус = %d", rec.Code)
	}
	body := rec.Body.String()
	for _, want := range []string{"Upload Files", "No files uploaded yet", "Max 10MB per file"} {
		if !strings.Contains(body, want) {
			t.Errorf("страница не содержит %q", want)
		}
	}
}

func TestHandlePage_French(t *testing.T) {
	f := newFixture(t)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Accept-Language", "fr-FR,fr;q=0.9")
	rec := f.do(req)
	if !strings.Contains(rec.Body.String(), `lang="fr"`) {
		t.Error("страница не на французском")
	}
	if strings.Contains(rec.Body.String(), "No files uploaded yet") {
		t.Error("английский текст на французской странице")
	}
}

func TestHandleUpload_RedirectsAndLists(t *testing.T) {
	f := newFixture(t)

	rec := f.do(uploadForm(t, "math", "notes.txt", "slides.pdf"))
	if rec.Code != http.StatusSeeOther {
		t.Fatalf("статус = %d", rec.Code)
	}
	if loc := rec.Header().Get("Location"); loc != "/?subject=math" {
		t.Errorf("Location = %q", loc)
	}

	page := f.do(httptest.NewRequest(http.MethodGet, "/", nil)).Body.String()
	for _, want := range []string{"notes.txt", "slides.pdf", "Uploaded successfully!"} {
		if !strings.Contains(page, want) {
			t.Errorf("страница не содержит %q", want)
		}
	}
}

func TestHandleUpload_Rejected(t *testing.T) {
	f := newFixture(t)

	rec := f.do(uploadForm(t, "", "photo.bmp"))
	if rec.Code != http.StatusOK {
		t.Fatalf("статус = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "File type is not supported") {
		t.Error("нет сообщения об отклонении")
	}
}

func TestHandleDownloadAndRemove(t *testing.T) {
	f := newFixture(t)
	stored, err := f.coord.Submit(context.Background(), model.CandidateFile{
		Name:      "notes.txt",
		MimeType:  "text/plain",
		SizeBytes: 5,
		Content:   strings.NewReader("hello"),
	}, "")
	if err != nil {
		t.Fatal(err)
	}

	rec := f.do(httptest.NewRequest(http.MethodGet, "/files/"+stored.ID+"/download", nil))
	if rec.Code != http.StatusOK || rec.Body.String() != "hello" {
		t.Fatalf("скачивание: %d %q", rec.Code, rec.Body.String())
	}

	rec = f.do(httptest.NewRequest(http.MethodPost, "/files/"+stored.ID+"/remove", nil))
	if rec.Code != http.StatusSeeOther {
		t.Fatalf("удаление: статус = %d", rec.Code)
	}

	rec = f.do(httptest.NewRequest(http.MethodGet, "/files/"+stored.ID+"/download", nil))
	if rec.Code != http.StatusNotFound {
		t.Errorf("после удаления: статус = %d", rec.Code)
	}
}

func TestHandleSetLanguage(t *testing.T) {
	tests := []struct {
		name     string
		lang     string
		referer  string
		wantLang string
		wantLoc  string
	}{
		{"французский", "fr", "http://example.com/?subject=math", "fr", "/?subject=math"},
		{"неподдерживаемый", "ru", "", "en", "/"},
		{"чужой referer", "en", "http://evil.test/phish", "en", "/"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			form := url.Values{"lang": {tt.lang}}
			req := httptest.NewRequest(http.MethodPost, "/set-language", strings.NewReader(form.Encode()))
			req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
			if tt.referer != "" {
				req.Header.Set("Referer", tt.referer)
			}
			rec := httptest.NewRecorder()
			HandleSetLanguage(rec, req)

			if rec.Code != http.StatusSeeOther {
				t.Fatalf("статус = %d", rec.Code)
			}
			if loc := rec.Header().Get("Location"); loc != tt.wantLoc {
				t.Errorf("Location = %q, ожидался %q", loc, tt.wantLoc)
			}
			cookies := rec.Result().Cookies()
			if len(cookies) != 1 || cookies[0].Name != i18n.LangCookieName || cookies[0].Value != tt.wantLang {
				t.Errorf("cookies = %+v", cookies)
			}
		})
	}
}

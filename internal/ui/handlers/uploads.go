// Пакет handlers — HTTP-обработчики страницы загрузок.
// Страница работает без JavaScript: формы отправляются на сервер,
// после изменения выполняется redirect на GET /.
package handlers

import (
	"context"
	"errors"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/url"

	"github.com/go-chi/chi/v5"

	apihandlers "github.com/bigkaa/coursehub-uploads/internal/api/handlers"
	"github.com/bigkaa/coursehub-uploads/internal/domain/model"
	"github.com/bigkaa/coursehub-uploads/internal/service"
	"github.com/bigkaa/coursehub-uploads/internal/ui/i18n"
	"github.com/bigkaa/coursehub-uploads/internal/ui/listview"
	"github.com/bigkaa/coursehub-uploads/internal/ui/pages"
)

const (
	multipartMemory = 32 << 20
	maxFormFiles    = 10
	// maxPageNotices — сколько последних уведомлений показывает страница
	maxPageNotices = 5
)

// UploadsPageHandler — обработчик страницы загрузок.
type UploadsPageHandler struct {
	coord  *service.Coordinator
	view   *listview.ListView
	bundle *i18n.Bundle
	logger *slog.Logger
}

// NewUploadsPageHandler создаёт обработчик страницы.
func NewUploadsPageHandler(
	coord *service.Coordinator,
	view *listview.ListView,
	bundle *i18n.Bundle,
	logger *slog.Logger,
) *UploadsPageHandler {
	return &UploadsPageHandler{
		coord:  coord,
		view:   view,
		bundle: bundle,
		logger: logger.With(slog.String("component", "ui.uploads")),
	}
}

// HandlePage обрабатывает GET / — страница загрузок.
func (h *UploadsPageHandler) HandlePage(w http.ResponseWriter, r *http.Request) {
	h.renderPage(w, r, r.URL.Query().Get("subject"), nil)
}

// HandleUpload обрабатывает POST /upload — отправка формы с файлами.
// Если все файлы приняты — redirect на страницу, иначе страница
// рендерится сразу с уведомлениями об отклонённых файлах.
func (h *UploadsPageHandler) HandleUpload(w http.ResponseWriter, r *http.Request) {
	limit := int64(maxFormFiles)*(h.coord.MaxFileSize()+1) + multipartMemory
	r.Body = http.MaxBytesReader(w, r.Body, limit)

	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		h.logger.Warn("Некорректная форма загрузки", slog.String("error", err.Error()))
		h.renderPage(w, r, "", []pages.NoticeRow{{Error: true, Message: h.bundle.T(r.Context(), service.MsgUploadError)}})
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	subject := r.FormValue("subject")
	headers := r.MultipartForm.File["file"]
	if len(headers) > maxFormFiles {
		headers = headers[:maxFormFiles]
	}

	files, closeAll, err := openForm(headers)
	if err != nil {
		h.logger.Error("Ошибка чтения файла из формы", slog.String("error", err.Error()))
		h.renderPage(w, r, subject, []pages.NoticeRow{{Error: true, Message: h.bundle.T(r.Context(), service.MsgUploadError)}})
		return
	}
	defer closeAll()

	var rejected []pages.NoticeRow
	for _, res := range h.coord.SubmitAll(r.Context(), files, subject) {
		if res.Err == nil {
			continue
		}
		var ferr *service.UploadFailedError
		if errors.As(res.Err, &ferr) {
			// Уведомление уже добавлено событием EventProgressFailed
			continue
		}
		rejected = append(rejected, pages.NoticeRow{
			Error:   true,
			Name:    res.Name,
			Message: h.message(r.Context(), service.MessageKey(res.Err)),
		})
	}

	if len(rejected) > 0 {
		h.renderPage(w, r, subject, rejected)
		return
	}
	http.Redirect(w, r, pageURL(subject), http.StatusSeeOther)
}

// HandleDownload обрабатывает GET /files/{id}/download.
func (h *UploadsPageHandler) HandleDownload(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	rec, err := h.coord.Get(r.Context(), id)
	if errors.Is(err, service.ErrNotFound) {
		http.NotFound(w, r)
		return
	}
	if err != nil {
		h.logger.Error("Ошибка получения записи", slog.String("id", id), slog.String("error", err.Error()))
		http.Error(w, "Ошибка получения файла", http.StatusInternalServerError)
		return
	}
	if err := apihandlers.WriteDownload(w, r, rec); err != nil {
		h.logger.Error("Повреждённая встроенная запись", slog.String("id", id), slog.String("error", err.Error()))
		http.Error(w, "Повреждённые данные файла", http.StatusInternalServerError)
	}
}

// HandleRemove обрабатывает POST /files/{id}/remove.
func (h *UploadsPageHandler) HandleRemove(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if _, err := h.coord.Remove(r.Context(), id); err != nil {
		h.logger.Error("Ошибка удаления", slog.String("id", id), slog.String("error", err.Error()))
	}
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (h *UploadsPageHandler) renderPage(w http.ResponseWriter, r *http.Request, subject string, extra []pages.NoticeRow) {
	ctx := r.Context()
	data := pages.UploadsData{
		Lang:    langOf(ctx, h.bundle),
		Labels:  h.labels(ctx),
		Accept:  pages.AcceptAttr(),
		Subject: subject,
	}

	result, err := h.coord.List(ctx, subject)
	if err != nil {
		h.logger.Error("Ошибка получения списка", slog.String("error", err.Error()))
		data.Unavailable = true
		extra = append(extra, pages.NoticeRow{Error: true, Message: h.bundle.T(ctx, service.MsgUploadError)})
	} else {
		for _, rec := range result.Records {
			data.Files = append(data.Files, fileRow(rec))
		}
	}

	for _, p := range h.view.Progress() {
		data.Progress = append(data.Progress, pages.ProgressRow{Name: p.Name})
	}

	notices := h.view.Notices()
	if len(notices) > maxPageNotices {
		notices = notices[len(notices)-maxPageNotices:]
	}
	for _, n := range notices {
		data.Notices = append(data.Notices, pages.NoticeRow{
			Error:   n.Kind == listview.NoticeError,
			Name:    n.Name,
			Message: h.message(ctx, n.MessageKey),
		})
	}
	data.Notices = append(data.Notices, extra...)

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := pages.Uploads(data).Render(ctx, w); err != nil {
		h.logger.Error("Ошибка рендеринга страницы", slog.String("error", err.Error()))
		http.Error(w, "Ошибка рендеринга страницы", http.StatusInternalServerError)
	}
}

func (h *UploadsPageHandler) labels(ctx context.Context) pages.Labels {
	t := func(key string) string { return h.bundle.T(ctx, key) }
	return pages.Labels{
		Title:            t("resources.uploadFiles"),
		Description:      t("resources.uploadFilesDesc"),
		DragDrop:         t("resources.dragDrop"),
		OrClickToBrowse:  t("resources.orClickToBrowse"),
		SupportedFormats: h.bundle.Tf(ctx, "resources.supportedFormats", h.maxMB()),
		UploadedFiles:    t("resources.uploadedFiles"),
		Uploading:        t("resources.uploading"),
		NoFilesUploaded:  t("resources.noFilesUploaded"),
		Download:         t("common.download"),
		Remove:           t("resources.removeFile"),
		Subject:          t("resources.subject"),
		Language:         t("common.language"),
	}
}

// message переводит ключ; fileTooLarge получает максимум в мегабайтах.
func (h *UploadsPageHandler) message(ctx context.Context, key string) string {
	if key == service.MsgFileTooLarge {
		return h.bundle.Tf(ctx, key, h.maxMB())
	}
	return h.bundle.T(ctx, key)
}

func (h *UploadsPageHandler) maxMB() int64 {
	return h.coord.MaxFileSize() / (1024 * 1024)
}

func fileRow(rec *model.UploadRecord) pages.FileRow {
	return pages.FileRow{
		ID:          rec.ID,
		Name:        rec.Name,
		Size:        rec.SizeBytes,
		UploadedAt:  rec.UploadedAt,
		Subject:     rec.SubjectTag,
		DownloadURL: "/files/" + url.PathEscape(rec.ID) + "/download",
		RemoveURL:   "/files/" + url.PathEscape(rec.ID) + "/remove",
	}
}

func openForm(headers []*multipart.FileHeader) ([]model.CandidateFile, func(), error) {
	var opened []multipart.File
	closeAll := func() {
		for _, f := range opened {
			_ = f.Close()
		}
	}
	files := make([]model.CandidateFile, 0, len(headers))
	for _, fh := range headers {
		f, err := fh.Open()
		if err != nil {
			closeAll()
			return nil, func() {}, err
		}
		opened = append(opened, f)
		files = append(files, model.CandidateFile{
			Name:      fh.Filename,
			MimeType:  fh.Header.Get("Content-Type"),
			SizeBytes: fh.Size,
			Content:   f,
		})
	}
	return files, closeAll, nil
}

func pageURL(subject string) string {
	if subject == "" {
		return "/"
	}
	return "/?" + url.Values{"subject": {subject}}.Encode()
}

func langOf(ctx context.Context, b *i18n.Bundle) string {
	if lang := i18n.LangFromContext(ctx); lang != "" {
		return lang
	}
	return b.DefaultLang()
}

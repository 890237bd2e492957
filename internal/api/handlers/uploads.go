// uploads.go — обработчики API загрузок: приём файлов, список, прогресс,
// скачивание и удаление.
package handlers

import (
	"errors"
	"log/slog"
	"mime"
	"mime/multipart"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/oapi-codegen/runtime"

	apierrors "github.com/bigkaa/coursehub-uploads/internal/api/errors"
	"github.com/bigkaa/coursehub-uploads/internal/api/middleware"
	"github.com/bigkaa/coursehub-uploads/internal/domain/model"
	"github.com/bigkaa/coursehub-uploads/internal/domain/validation"
	"github.com/bigkaa/coursehub-uploads/internal/service"
	"github.com/bigkaa/coursehub-uploads/internal/storage/backend"
	"github.com/bigkaa/coursehub-uploads/internal/ui/i18n"
	"github.com/bigkaa/coursehub-uploads/internal/ui/listview"
)

const (
	// maxFilesPerRequest — предел файлов в одном multipart-запросе.
	maxFilesPerRequest = 10
	// multipartMemory — часть формы, которая держится в памяти; остальное во временных файлах.
	multipartMemory = 32 << 20
	// maxSubjectLen — предел длины предмета.
	maxSubjectLen = 128
)

// UploadsHandler — обработчик /api/v1/uploads.
type UploadsHandler struct {
	coord  *service.Coordinator
	view   *listview.ListView
	bundle *i18n.Bundle
	logger *slog.Logger
}

// NewUploadsHandler создаёт обработчик загрузок.
func NewUploadsHandler(
	coord *service.Coordinator,
	view *listview.ListView,
	bundle *i18n.Bundle,
	logger *slog.Logger,
) *UploadsHandler {
	return &UploadsHandler{
		coord:  coord,
		view:   view,
		bundle: bundle,
		logger: logger.With(slog.String("component", "uploads_handler")),
	}
}

// uploadDTO — запись в ответах API.
type uploadDTO struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Type        string    `json:"type"`
	Size        int64     `json:"size"`
	UploadDate  time.Time `json:"uploadDate"`
	Subject     string    `json:"subject,omitempty"`
	Location    string    `json:"location"`
	DownloadURL string    `json:"download_url"`
}

func toUploadDTO(rec *model.UploadRecord) uploadDTO {
	return uploadDTO{
		ID:          rec.ID,
		Name:        rec.Name,
		Type:        rec.MimeType,
		Size:        rec.SizeBytes,
		UploadDate:  rec.UploadedAt,
		Subject:     rec.SubjectTag,
		Location:    string(rec.Location.Kind()),
		DownloadURL: DownloadPath(rec.ID),
	}
}

// DownloadPath возвращает путь API для скачивания записи.
func DownloadPath(id string) string {
	return "/api/v1/uploads/" + id + "/download"
}

type listResponse struct {
	Items  []uploadDTO `json:"items"`
	Total  int         `json:"total"`
	Empty  bool        `json:"empty"`
	Source string      `json:"source"`
}

type outcomeError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type submitOutcome struct {
	Name   string        `json:"name"`
	Status int           `json:"status"`
	Upload *uploadDTO    `json:"upload,omitempty"`
	Error  *outcomeError `json:"error,omitempty"`
}

type submitResponse struct {
	Results []submitOutcome `json:"results"`
}

type progressNotice struct {
	Kind     string `json:"kind"`
	UploadID string `json:"upload_id"`
	Name     string `json:"name"`
	Message  string `json:"message"`
}

type progressResponse struct {
	Items   []listview.ProgressItem `json:"items"`
	Notices []progressNotice        `json:"notices"`
}

// CreateUploads — POST /api/v1/uploads (multipart: file[], subject).
// 201, если сохранён хотя бы один файл; иначе статус первой ошибки.
func (h *UploadsHandler) CreateUploads(w http.ResponseWriter, r *http.Request) {
	limit := int64(maxFilesPerRequest)*(h.coord.MaxFileSize()+1) + multipartMemory
	r.Body = http.MaxBytesReader(w, r.Body, limit)

	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			apierrors.FileTooLarge(w, h.tooLargeMessage(r))
			return
		}
		apierrors.ValidationError(w, "Ожидается multipart/form-data с полем file")
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	headers := r.MultipartForm.File["file"]
	if len(headers) == 0 {
		apierrors.ValidationError(w, "Не передано ни одного файла")
		return
	}
	if len(headers) > maxFilesPerRequest {
		apierrors.ValidationError(w, "Слишком много файлов в одном запросе: максимум "+strconv.Itoa(maxFilesPerRequest))
		return
	}

	subject := r.FormValue("subject")
	if len(subject) > maxSubjectLen {
		apierrors.ValidationError(w, "Слишком длинное значение subject")
		return
	}

	files, closeAll, err := openParts(headers)
	if err != nil {
		h.logger.Error("Ошибка чтения multipart", slog.String("error", err.Error()))
		apierrors.ValidationError(w, "Не удалось прочитать файл из запроса")
		return
	}
	defer closeAll()

	results := h.coord.SubmitAll(r.Context(), files, subject)

	resp := submitResponse{Results: make([]submitOutcome, 0, len(results))}
	var firstErr *submitOutcome
	succeeded := 0
	for _, res := range results {
		if res.Err == nil {
			dto := toUploadDTO(res.Record)
			resp.Results = append(resp.Results, submitOutcome{Name: res.Name, Status: http.StatusCreated, Upload: &dto})
			succeeded++
			continue
		}
		status, code, msg := h.describeError(r, res.Err)
		resp.Results = append(resp.Results, submitOutcome{
			Name:   res.Name,
			Status: status,
			Error:  &outcomeError{Code: code, Message: msg},
		})
		if firstErr == nil {
			firstErr = &resp.Results[len(resp.Results)-1]
		}
	}

	h.logger.Info("Загрузка файлов обработана",
		slog.String("actor", middleware.SubjectFromContext(r.Context())),
		slog.String("subject", subject),
		slog.Int("accepted", succeeded),
		slog.Int("rejected", len(results)-succeeded),
	)

	if succeeded == 0 && firstErr != nil {
		apierrors.WriteError(w, firstErr.Status, firstErr.Error.Code, firstErr.Error.Message)
		return
	}
	writeJSON(w, http.StatusCreated, resp)
}

// openParts открывает части формы как CandidateFile.
func openParts(headers []*multipart.FileHeader) ([]model.CandidateFile, func(), error) {
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

// describeError сопоставляет ошибку загрузки со статусом, кодом и
// локализованным сообщением.
func (h *UploadsHandler) describeError(r *http.Request, err error) (int, string, string) {
	var verr *validation.ValidationError
	var ferr *service.UploadFailedError
	switch {
	case errors.As(err, &verr) && verr.Kind == validation.KindTooLarge:
		return http.StatusRequestEntityTooLarge, apierrors.CodeFileTooLarge, h.tooLargeMessage(r)
	case errors.As(err, &verr) && verr.Kind == validation.KindUnsupportedType:
		return http.StatusUnsupportedMediaType, apierrors.CodeUnsupportedType, h.bundle.T(r.Context(), service.MsgUnsupported)
	case errors.As(err, &ferr):
		return http.StatusInternalServerError, apierrors.CodeUploadFailed, h.bundle.T(r.Context(), ferr.MessageKey)
	default:
		return http.StatusInternalServerError, apierrors.CodeInternalError, h.bundle.T(r.Context(), service.MsgUploadError)
	}
}

func (h *UploadsHandler) tooLargeMessage(r *http.Request) string {
	return h.bundle.Tf(r.Context(), service.MsgFileTooLarge, h.coord.MaxFileSize()/(1024*1024))
}

// ListUploads — GET /api/v1/uploads?subject=.
func (h *UploadsHandler) ListUploads(w http.ResponseWriter, r *http.Request) {
	var subject *string
	if err := runtime.BindQueryParameter("form", true, false, "subject", r.URL.Query(), &subject); err != nil {
		apierrors.ValidationError(w, "Некорректный параметр subject")
		return
	}
	tag := ""
	if subject != nil {
		tag = *subject
	}

	result, err := h.coord.List(r.Context(), tag)
	if err != nil {
		h.logger.Error("Ошибка получения списка", slog.String("error", err.Error()))
		apierrors.ServiceUnavailable(w, "Хранилища файлов недоступны")
		return
	}

	items := make([]uploadDTO, 0, len(result.Records))
	for _, rec := range result.Records {
		items = append(items, toUploadDTO(rec))
	}
	writeJSON(w, http.StatusOK, listResponse{
		Items:  items,
		Total:  len(items),
		Empty:  result.Empty(),
		Source: result.Source,
	})
}

// GetProgress — GET /api/v1/uploads/progress.
func (h *UploadsHandler) GetProgress(w http.ResponseWriter, r *http.Request) {
	notices := h.view.Notices()
	resp := progressResponse{
		Items:   h.view.Progress(),
		Notices: make([]progressNotice, 0, len(notices)),
	}
	for _, n := range notices {
		msg := h.bundle.T(r.Context(), n.MessageKey)
		if n.MessageKey == service.MsgFileTooLarge {
			msg = h.tooLargeMessage(r)
		}
		resp.Notices = append(resp.Notices, progressNotice{
			Kind:     string(n.Kind),
			UploadID: n.UploadID,
			Name:     n.Name,
			Message:  msg,
		})
	}
	writeJSON(w, http.StatusOK, resp)
}

// bindID извлекает и проверяет path-параметр id.
func bindID(w http.ResponseWriter, r *http.Request) (string, bool) {
	var id string
	err := runtime.BindStyledParameterWithOptions("simple", "id", chi.URLParam(r, "id"), &id,
		runtime.BindStyledParameterOptions{ParamLocation: runtime.ParamLocationPath, Explode: false, Required: true})
	if err != nil || id == "" {
		apierrors.ValidationError(w, "Некорректный id загрузки")
		return "", false
	}
	return id, true
}

// DownloadUpload — GET /api/v1/uploads/{id}/download.
// Удалённая запись: 302 на публичный URL. Встроенная: содержимое data URI.
func (h *UploadsHandler) DownloadUpload(w http.ResponseWriter, r *http.Request) {
	id, ok := bindID(w, r)
	if !ok {
		return
	}

	rec, err := h.coord.Get(r.Context(), id)
	if errors.Is(err, service.ErrNotFound) {
		apierrors.NotFound(w, "Файл не найден")
		return
	}
	if err != nil {
		h.logger.Error("Ошибка получения записи", slog.String("id", id), slog.String("error", err.Error()))
		apierrors.InternalError(w, "Ошибка получения файла")
		return
	}

	if err := WriteDownload(w, r, rec); err != nil {
		h.logger.Error("Повреждённая встроенная запись", slog.String("id", id), slog.String("error", err.Error()))
		apierrors.InternalError(w, "Повреждённые данные файла")
	}
}

// WriteDownload отдаёт содержимое записи: 302 на URL объекта для
// удалённой записи, байты data URI для встроенной.
// Ошибка возвращается до записи ответа.
func WriteDownload(w http.ResponseWriter, r *http.Request, rec *model.UploadRecord) error {
	if url, _, remote := rec.Location.Remote(); remote {
		http.Redirect(w, r, url, http.StatusFound)
		return nil
	}

	uri, _ := rec.Location.Embedded()
	mimeType, data, err := backend.ParseDataURI(uri)
	if err != nil {
		return err
	}

	w.Header().Set("Content-Type", mimeType)
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": rec.Name}))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
	return nil
}

// DeleteUpload — DELETE /api/v1/uploads/{id}.
// 204 — удалено; 202 — скрыто, удалённое удаление завершит сверка.
func (h *UploadsHandler) DeleteUpload(w http.ResponseWriter, r *http.Request) {
	id, ok := bindID(w, r)
	if !ok {
		return
	}

	outcome, err := h.coord.Remove(r.Context(), id)
	if err != nil {
		h.logger.Error("Ошибка удаления", slog.String("id", id), slog.String("error", err.Error()))
		apierrors.InternalError(w, "Ошибка удаления файла")
		return
	}
	h.logger.Info("Файл удалён",
		slog.String("id", id),
		slog.String("actor", middleware.SubjectFromContext(r.Context())),
		slog.Bool("pending", outcome.Pending),
	)
	if outcome.Pending {
		writeJSON(w, http.StatusAccepted, map[string]any{
			"id":      id,
			"pending": true,
			"message": h.bundle.T(r.Context(), "resources.removePending"),
		})
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

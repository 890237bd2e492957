// Пакет errors — конструкторы ошибок API.
// Единый формат: {"error": {"code": "...", "message": "..."}}.
// Все HTTP-ответы с ошибками должны использовать WriteError.
package errors

import (
	"encoding/json"
	"net/http"
)

// Коды ошибок, определённые в OpenAPI контракте.
const (
	CodeValidationError    = "VALIDATION_ERROR"
	CodeFileTooLarge       = "FILE_TOO_LARGE"
	CodeUnsupportedType    = "UNSUPPORTED_TYPE"
	CodeUploadFailed       = "UPLOAD_FAILED"
	CodeNotFound           = "NOT_FOUND"
	CodeUnauthorized       = "UNAUTHORIZED"
	CodeServiceUnavailable = "SERVICE_UNAVAILABLE"
	CodeInternalError      = "INTERNAL_ERROR"
)

// ErrorBody — тело ответа ошибки.
type ErrorBody struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail — детали ошибки.
type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// WriteError записывает ответ ошибки в стандартном формате.
func WriteError(w http.ResponseWriter, statusCode int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(ErrorBody{
		Error: ErrorDetail{
			Code:    code,
			Message: message,
		},
	})
}

// ValidationError — 400 некорректные входные данные.
func ValidationError(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusBadRequest, CodeValidationError, message)
}

// FileTooLarge — 413 файл больше допустимого размера.
func FileTooLarge(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusRequestEntityTooLarge, CodeFileTooLarge, message)
}

// UnsupportedType — 415 недопустимое расширение файла.
func UnsupportedType(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusUnsupportedMediaType, CodeUnsupportedType, message)
}

// UploadFailed — 500 файл не сохранён ни в одно хранилище.
func UploadFailed(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusInternalServerError, CodeUploadFailed, message)
}

// NotFound — 404 ресурс не найден.
func NotFound(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusNotFound, CodeNotFound, message)
}

// Unauthorized — 401 требуется аутентификация.
func Unauthorized(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusUnauthorized, CodeUnauthorized, message)
}

// ServiceUnavailable — 503 хранилища недоступны.
func ServiceUnavailable(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusServiceUnavailable, CodeServiceUnavailable, message)
}

// InternalError — 500 внутренняя ошибка.
func InternalError(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusInternalServerError, CodeInternalError, message)
}

// Пакет validation — проверка кандидата на загрузку перед любой записью.
// Проверяются только размер и расширение имени; MIME-тип рекомендательный.
package validation

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/bigkaa/coursehub-uploads/internal/domain/model"
)

// DefaultMaxFileSize — максимальный размер файла по умолчанию (10 MiB).
const DefaultMaxFileSize int64 = 10 * 1024 * 1024

// Kind — вид ошибки валидации.
type Kind string

const (
	// KindTooLarge — размер превышает максимум
	KindTooLarge Kind = "too_large"
	// KindUnsupportedType — расширение не входит в разрешённый набор
	KindUnsupportedType Kind = "unsupported_type"
)

// allowedExtensions — допустимые расширения (в нижнем регистре, без точки).
var allowedExtensions = map[string]bool{
	"pdf":  true,
	"doc":  true,
	"docx": true,
	"jpg":  true,
	"jpeg": true,
	"png":  true,
	"gif":  true,
	"zip":  true,
	"txt":  true,
}

// ValidationError — кандидат отклонён до какой-либо записи.
type ValidationError struct {
	Kind Kind
	// Name — имя файла-кандидата
	Name string
	// Size — заявленный или фактический размер
	Size int64
	// Max — действующий максимум
	Max int64
}

func (e *ValidationError) Error() string {
	switch e.Kind {
	case KindTooLarge:
		return fmt.Sprintf("файл %q слишком большой: %d байт (максимум %d)", e.Name, e.Size, e.Max)
	case KindUnsupportedType:
		return fmt.Sprintf("тип файла %q не поддерживается", e.Name)
	default:
		return fmt.Sprintf("файл %q не прошёл проверку", e.Name)
	}
}

// IsKind проверяет, что err содержит ValidationError указанного вида.
func IsKind(err error, kind Kind) bool {
	var ve *ValidationError
	return errors.As(err, &ve) && ve.Kind == kind
}

// Validator проверяет кандидатов с заданным максимальным размером.
type Validator struct {
	maxSize int64
}

// New создаёт Validator. maxSize <= 0 означает DefaultMaxFileSize.
func New(maxSize int64) *Validator {
	if maxSize <= 0 {
		maxSize = DefaultMaxFileSize
	}
	return &Validator{maxSize: maxSize}
}

// MaxSize возвращает действующий максимум в байтах.
func (v *Validator) MaxSize() int64 {
	return v.maxSize
}

// Validate проверяет размер (строго больше максимума — ошибка) и расширение.
// Размер проверяется первым: файл, нарушающий оба правила, получает KindTooLarge.
func (v *Validator) Validate(file model.CandidateFile) error {
	if file.SizeBytes > v.maxSize {
		return &ValidationError{Kind: KindTooLarge, Name: file.Name, Size: file.SizeBytes, Max: v.maxSize}
	}
	if !IsAllowedExtension(Extension(file.Name)) {
		return &ValidationError{Kind: KindUnsupportedType, Name: file.Name, Size: file.SizeBytes, Max: v.maxSize}
	}
	return nil
}

// CheckSize проверяет фактически прочитанный размер.
func (v *Validator) CheckSize(name string, size int64) error {
	if size > v.maxSize {
		return &ValidationError{Kind: KindTooLarge, Name: name, Size: size, Max: v.maxSize}
	}
	return nil
}

// Extension возвращает подстроку после последней точки в нижнем регистре.
// Имя без точки не имеет расширения ("").
func Extension(name string) string {
	idx := strings.LastIndex(name, ".")
	if idx < 0 {
		return ""
	}
	return strings.ToLower(name[idx+1:])
}

// RawExtension возвращает расширение в исходном регистре (для пути объекта).
func RawExtension(name string) string {
	idx := strings.LastIndex(name, ".")
	if idx < 0 {
		return ""
	}
	return name[idx+1:]
}

// AllowedExtensions возвращает разрешённые расширения в алфавитном порядке.
func AllowedExtensions() []string {
	exts := make([]string, 0, len(allowedExtensions))
	for ext := range allowedExtensions {
		exts = append(exts, ext)
	}
	sort.Strings(exts)
	return exts
}

// IsAllowedExtension проверяет расширение по разрешённому набору.
func IsAllowedExtension(ext string) bool {
	return allowedExtensions[ext]
}

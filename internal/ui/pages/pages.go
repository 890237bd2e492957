// Пакет pages — HTML-страницы интерфейса загрузок.
// Компоненты реализуют templ.Component и рендерятся из встроенных шаблонов.
package pages

import (
	"context"
	"embed"
	"html/template"
	"io"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/a-h/templ"

	"github.com/bigkaa/coursehub-uploads/internal/domain/validation"
)

//go:embed templates/*.html
var templateFS embed.FS

var templates = template.Must(
	template.New("").Funcs(template.FuncMap{
		"fileSize": FormatFileSize,
		"fileIcon": FileIcon,
		"date":     func(t time.Time) string { return t.UTC().Format("2006-01-02") },
	}).ParseFS(templateFS, "templates/*.html"),
)

// FileRow — строка списка загруженных файлов.
type FileRow struct {
	ID          string
	Name        string
	Size        int64
	UploadedAt  time.Time
	Subject     string
	DownloadURL string
	RemoveURL   string
}

// ProgressRow — файл, который ещё загружается.
type ProgressRow struct {
	Name string
}

// NoticeRow — результат завершённой загрузки.
type NoticeRow struct {
	Error   bool
	Name    string
	Message string
}

// Labels — локализованные подписи страницы.
type Labels struct {
	Title            string
	Description      string
	DragDrop         string
	OrClickToBrowse  string
	SupportedFormats string
	UploadedFiles    string
	Uploading        string
	NoFilesUploaded  string
	Download         string
	Remove           string
	Subject          string
	Language         string
}

// UploadsData — данные страницы загрузок.
type UploadsData struct {
	Lang     string
	Labels   Labels
	Accept   string
	Subject  string
	Progress []ProgressRow
	Notices  []NoticeRow
	Files    []FileRow
	// Unavailable — список не удалось получить ни из одного хранилища
	Unavailable bool
}

// Uploads — страница загрузок: форма, прогресс, уведомления, список.
func Uploads(data UploadsData) templ.Component {
	return render("uploads.html", data)
}

// FileList — фрагмент со списком файлов (для частичного обновления).
func FileList(data UploadsData) templ.Component {
	return render("file_list", data)
}

func render(name string, data any) templ.Component {
	return templ.ComponentFunc(func(_ context.Context, w io.Writer) error {
		return templates.ExecuteTemplate(w, name, data)
	})
}

// AcceptAttr возвращает значение атрибута accept для поля выбора файлов.
func AcceptAttr() string {
	exts := validation.AllowedExtensions()
	for i, ext := range exts {
		exts[i] = "." + ext
	}
	return strings.Join(exts, ",")
}

// FormatFileSize форматирует размер: "0 Bytes", "2 KB", "1.5 MB".
// Округление до двух знаков после запятой.
func FormatFileSize(bytes int64) string {
	if bytes <= 0 {
		return "0 Bytes"
	}
	units := []string{"Bytes", "KB", "MB"}
	i := 0
	for n := bytes; n >= 1024 && i < len(units)-1; n /= 1024 {
		i++
	}
	v := math.Round(float64(bytes)/math.Pow(1024, float64(i))*100) / 100
	return strconv.FormatFloat(v, 'f', -1, 64) + " " + units[i]
}

// FileIcon возвращает CSS-класс иконки по расширению имени.
func FileIcon(name string) string {
	switch validation.Extension(name) {
	case "pdf":
		return "icon-pdf"
	case "doc", "docx":
		return "icon-doc"
	case "jpg", "jpeg", "png", "gif":
		return "icon-image"
	case "zip":
		return "icon-archive"
	case "txt":
		return "icon-text"
	default:
		return "icon-file"
	}
}

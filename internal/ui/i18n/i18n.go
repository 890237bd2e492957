// Пакет i18n — интернационализация страницы загрузок.
// Поддерживаемые языки: English (en), Français (fr).
// Язык определяется middleware: cookie "lang" → Accept-Language → язык по умолчанию.
package i18n

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"golang.org/x/text/language"
)

// Поддерживаемые языки. Первый тег — fallback matcher'а.
var (
	SupportedLanguages = []language.Tag{
		language.English,
		language.French,
	}

	matcher = language.NewMatcher(SupportedLanguages)
)

type contextKey string

const contextKeyLang contextKey = "i18n_lang"

// Bundle — хранилище переводов для всех языков.
// Загружается один раз при старте приложения.
type Bundle struct {
	mu          sync.RWMutex
	catalogs    map[string]map[string]string // lang → key → translation
	defaultLang string
	logger      *slog.Logger
}

// NewBundle создаёт пустой Bundle. Неподдерживаемый defaultLang заменяется на "en".
func NewBundle(defaultLang string, logger *slog.Logger) *Bundle {
	if !IsSupported(defaultLang) {
		defaultLang = "en"
	}
	return &Bundle{
		catalogs:    make(map[string]map[string]string),
		defaultLang: defaultLang,
		logger:      logger,
	}
}

// DefaultLang возвращает язык по умолчанию.
func (b *Bundle) DefaultLang() string {
	return b.defaultLang
}

// LoadMessages загружает плоский JSON-каталог {"key": "translation"} для языка.
func (b *Bundle) LoadMessages(lang string, data []byte) error {
	var messages map[string]string
	if err := json.Unmarshal(data, &messages); err != nil {
		return fmt.Errorf("i18n: ошибка парсинга каталога %s: %w", lang, err)
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	b.catalogs[lang] = messages

	if b.logger != nil {
		b.logger.Debug("i18n каталог загружен",
			slog.String("lang", lang),
			slog.Int("keys", len(messages)),
		)
	}
	return nil
}

// Translate возвращает перевод по ключу.
// Порядок поиска: lang → английский каталог → сам ключ.
func (b *Bundle) Translate(lang, key string) string {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if catalog, ok := b.catalogs[lang]; ok {
		if msg, ok := catalog[key]; ok {
			return msg
		}
	}
	if lang != "en" {
		if msg, ok := b.catalogs["en"][key]; ok {
			return msg
		}
	}
	return key
}

// Translatef — Translate с подстановкой аргументов.
func (b *Bundle) Translatef(lang, key string, args ...any) string {
	template := b.Translate(lang, key)
	if len(args) == 0 {
		return template
	}
	return formatFunc(template, args...)
}

// T переводит ключ на язык из контекста запроса.
func (b *Bundle) T(ctx context.Context, key string) string {
	return b.Translate(b.langFrom(ctx), key)
}

// Tf — T с подстановкой аргументов.
func (b *Bundle) Tf(ctx context.Context, key string, args ...any) string {
	return b.Translatef(b.langFrom(ctx), key, args...)
}

func (b *Bundle) langFrom(ctx context.Context) string {
	if lang := LangFromContext(ctx); lang != "" {
		return lang
	}
	return b.defaultLang
}

// Формат-строки приходят из JSON-каталогов, статическая проверка go vet невозможна.
//
//nolint:govet // обход go vet printf-анализатора
var formatFunc = fmt.Sprintf

// WithLang помещает язык в контекст.
func WithLang(ctx context.Context, lang string) context.Context {
	return context.WithValue(ctx, contextKeyLang, lang)
}

// LangFromContext извлекает язык из контекста ("" — не задан).
func LangFromContext(ctx context.Context) string {
	lang, _ := ctx.Value(contextKeyLang).(string)
	return lang
}

// IsSupported сообщает, поддерживается ли язык.
func IsSupported(lang string) bool {
	return lang == "en" || lang == "fr"
}

// MatchLanguage определяет лучший язык из заголовка Accept-Language.
// Возвращает "en" или "fr".
func MatchLanguage(acceptLanguage string) string {
	tag, _ := language.MatchStrings(matcher, acceptLanguage)
	base, _ := tag.Base()
	if base.String() == "fr" {
		return "fr"
	}
	return "en"
}

// middleware.go — HTTP middleware для определения языка пользователя.
package i18n

import (
	"net/http"
)

// LangCookieName — имя cookie для хранения выбранного языка.
const LangCookieName = "lang"

// Middleware определяет язык запроса и помещает его в контекст.
// Приоритет: cookie "lang" → Accept-Language → язык по умолчанию.
func (b *Bundle) Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := WithLang(r.Context(), b.detectLanguage(r))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func (b *Bundle) detectLanguage(r *http.Request) string {
	if cookie, err := r.Cookie(LangCookieName); err == nil && IsSupported(cookie.Value) {
		return cookie.Value
	}
	if accept := r.Header.Get("Accept-Language"); accept != "" {
		return MatchLanguage(accept)
	}
	return b.defaultLang
}

// language.go — переключение языка интерфейса.
package handlers

import (
	"net/http"
	"net/url"
	"time"

	"github.com/bigkaa/coursehub-uploads/internal/ui/i18n"
)

// langCookieMaxAge — срок жизни cookie языка (1 год).
const langCookieMaxAge = 365 * 24 * time.Hour

// HandleSetLanguage обрабатывает POST /set-language.
// Устанавливает cookie "lang" и возвращает на предыдущую страницу.
// Неподдерживаемый язык заменяется на en.
func HandleSetLanguage(w http.ResponseWriter, r *http.Request) {
	lang := r.FormValue("lang")
	if !i18n.IsSupported(lang) {
		lang = "en"
	}

	http.SetCookie(w, &http.Cookie{
		Name:     i18n.LangCookieName,
		Value:    lang,
		Path:     "/",
		MaxAge:   int(langCookieMaxAge.Seconds()),
		Expires:  time.Now().Add(langCookieMaxAge),
		SameSite: http.SameSiteLaxMode,
	})

	http.Redirect(w, r, sameOriginReferer(r), http.StatusSeeOther)
}

// sameOriginReferer возвращает путь из Referer того же хоста или "/".
func sameOriginReferer(r *http.Request) string {
	ref, err := url.Parse(r.Header.Get("Referer"))
	if err != nil || ref.Path == "" || (ref.Host != "" && ref.Host != r.Host) {
		return "/"
	}
	if ref.RawQuery != "" {
		return ref.Path + "?" + ref.RawQuery
	}
	return ref.Path
}

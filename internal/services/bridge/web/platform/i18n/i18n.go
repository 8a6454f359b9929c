// Package i18n resolves the viewer language for a request and prints
// localized copy.
package i18n

import (
	"net/http"
	"strings"
	"time"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/voluntarios/learnbridge/internal/platform/i18n/catalog"
)

const (
	// LangParam is the query parameter used to select a language.
	LangParam = "lang"
	// LangCookieName stores the user's language preference.
	LangCookieName = "learnbridge_lang"
)

var (
	supported = catalog.Default().Tags()
	matcher   = language.NewMatcher(supported)
)

// Supported returns the supported language tags, default first.
func Supported() []language.Tag {
	return append([]language.Tag(nil), supported...)
}

// Default returns the default language tag.
func Default() language.Tag {
	return supported[0]
}

// Printer returns a message printer for tag.
func Printer(tag language.Tag) *message.Printer {
	return message.NewPrinter(tag)
}

// ResolveTag picks the language for r from the lang query parameter, then
// the preference cookie, then Accept-Language. The bool reports whether the
// query parameter chose it and should be persisted.
func ResolveTag(r *http.Request) (language.Tag, bool) {
	if r == nil {
		return Default(), false
	}
	if value := strings.TrimSpace(r.URL.Query().Get(LangParam)); value != "" {
		if tag, ok := parseSupported(value); ok {
			return tag, true
		}
	}
	if cookie, err := r.Cookie(LangCookieName); err == nil {
		if tag, ok := parseSupported(cookie.Value); ok {
			return tag, false
		}
	}
	if accept := strings.TrimSpace(r.Header.Get("Accept-Language")); accept != "" {
		if tags, _, err := language.ParseAcceptLanguage(accept); err == nil && len(tags) > 0 {
			_, index, confidence := matcher.Match(tags...)
			if confidence != language.No {
				return supported[index], false
			}
		}
	}
	return Default(), false
}

// SetLanguageCookie persists the selected language on the response.
func SetLanguageCookie(w http.ResponseWriter, tag language.Tag) {
	if w == nil {
		return
	}
	http.SetCookie(w, &http.Cookie{
		Name:     LangCookieName,
		Value:    tag.String(),
		Path:     "/",
		MaxAge:   int((365 * 24 * time.Hour).Seconds()),
		SameSite: http.SameSiteLaxMode,
	})
}

func parseSupported(value string) (language.Tag, bool) {
	tag, err := language.Parse(strings.TrimSpace(value))
	if err != nil {
		return language.Tag{}, false
	}
	_, index, confidence := matcher.Match(tag)
	if confidence == language.No {
		return language.Tag{}, false
	}
	return supported[index], true
}

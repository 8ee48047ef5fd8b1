package middleware

import (
	"context"
	"net/http"

	"golang.org/x/text/language"
)

type localeContextKey struct{}

var LocaleKey = localeContextKey{}

var supportedLocales = language.NewMatcher([]language.Tag{
	language.English,
	language.Korean,
})

// I18N resolves the request locale from the X-Locale header or
// Accept-Language negotiation and stores it in the request context. The
// service ships English and Korean step labels; everything else maps to
// English.
func I18N(defaultLocale string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			locale := detectLocale(r, defaultLocale)
			ctx := context.WithValue(r.Context(), LocaleKey, locale)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func detectLocale(r *http.Request, fallback string) string {
	if fallback == "" {
		fallback = "en"
	}
	tag, _ := language.MatchStrings(supportedLocales, r.Header.Get("X-Locale"), r.Header.Get("Accept-Language"), fallback)
	base, _ := tag.Base()
	switch base.String() {
	case "ko":
		return "ko"
	default:
		return "en"
	}
}

func LocaleFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(LocaleKey).(string); ok {
		return v
	}
	return "en"
}

package middleware

import (
	"context"
	"net"
	"net/http"
	"strings"

	"golang.org/x/text/language"

	"studio/internal/domain"
)

type languageContextKey struct{}
type countryContextKey struct{}

// CountryLookup resolves ISO country codes for an IP address.
type CountryLookup func(ip string) (string, error)

// TargetLanguage picks the language a generation should default to when the
// request body does not name one. Explicit headers win over Accept-Language,
// which wins over the caller's country.
func TargetLanguage(fallback domain.Language, lookup CountryLookup) func(http.Handler) http.Handler {
	if !fallback.Valid() {
		fallback = domain.LanguageEnglish
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			country := ResolveCountry(r, lookup)
			lang := detectLanguage(r, fallback, country)
			ctx := context.WithValue(r.Context(), languageContextKey{}, lang)
			if country != "" {
				ctx = context.WithValue(ctx, countryContextKey{}, country)
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func detectLanguage(r *http.Request, fallback domain.Language, country string) domain.Language {
	if v := domain.ParseLanguage(r.Header.Get("X-Target-Language")); v.Valid() {
		return v
	}
	if v := acceptedLanguage(r.Header.Get("Accept-Language")); v != "" {
		return v
	}
	switch {
	case strings.EqualFold(country, "IN"):
		return domain.LanguageHindi
	case country != "":
		return domain.LanguageEnglish
	}
	return fallback
}

// acceptedLanguage returns the highest-weighted supported language in an
// Accept-Language header. English is only returned when it outranks every
// Indian language, so "en-IN, hi;q=0.9" resolves to english.
func acceptedLanguage(header string) domain.Language {
	if strings.TrimSpace(header) == "" {
		return ""
	}
	tags, _, err := language.ParseAcceptLanguage(header)
	if err != nil {
		return ""
	}
	for _, tag := range tags {
		if lang := domain.ParseLanguage(tag.String()); lang.Valid() {
			return lang
		}
	}
	return ""
}

// ClientIP returns the best-effort client IP address for the request.
func ClientIP(r *http.Request) string {
	if r == nil {
		return ""
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// LanguageFromContext returns the language chosen by TargetLanguage, or
// english when the middleware did not run.
func LanguageFromContext(ctx context.Context) domain.Language {
	if v, ok := ctx.Value(languageContextKey{}).(domain.Language); ok {
		return v
	}
	return domain.LanguageEnglish
}

// CountryFromContext returns the ISO country code stored in the request context.
func CountryFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(countryContextKey{}).(string); ok {
		return v
	}
	return ""
}

// ResolveCountry resolves a best-effort ISO country code for the given request.
func ResolveCountry(r *http.Request, lookup CountryLookup) string {
	if r == nil {
		return ""
	}
	for _, key := range []string{"X-Country-Code", "CF-IPCountry", "X-Appengine-Country"} {
		if val := strings.TrimSpace(r.Header.Get(key)); val != "" && !strings.EqualFold(val, "XX") {
			return strings.ToUpper(val)
		}
	}
	if region := acceptRegion(r.Header.Get("Accept-Language")); region != "" {
		return region
	}
	if lookup != nil {
		if ip := ClientIP(r); ip != "" {
			if country, err := lookup(ip); err == nil && country != "" {
				return strings.ToUpper(country)
			}
		}
	}
	return ""
}

func acceptRegion(header string) string {
	for _, part := range strings.Split(header, ",") {
		token, _, _ := strings.Cut(part, ";")
		token = strings.TrimSpace(token)
		if idx := strings.IndexAny(token, "-_"); idx > 0 && idx < len(token)-1 {
			return strings.ToUpper(token[idx+1:])
		}
	}
	return ""
}

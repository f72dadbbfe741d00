package middleware

import (
	"context"
	"net"
	"net/http"
	"strings"

	"golang.org/x/text/language"
)

type localeContextKey struct{}
type countryContextKey struct{}

var (
	LocaleKey  = localeContextKey{}
	CountryKey = countryContextKey{}
)

// CountryLookup resolves ISO country codes for an IP address.
type CountryLookup func(ip string) (string, error)

// SupportedLocales are the display locales offered besides the configured
// default, which always wins ties.
var SupportedLocales = []language.Tag{
	language.MustParse("en-IN"),
	language.AmericanEnglish,
	language.BritishEnglish,
	language.MustParse("ta-IN"),
	language.MustParse("hi-IN"),
	language.MustParse("ml-IN"),
}

// Locales negotiates the display locale of a request.
type Locales struct {
	tags    []language.Tag
	matcher language.Matcher
}

// NewLocales builds a matcher preferring defaultLocale. An unparsable
// default falls back to en-IN.
func NewLocales(defaultLocale string) *Locales {
	fallback, err := language.Parse(defaultLocale)
	if err != nil {
		fallback = SupportedLocales[0]
	}
	tags := []language.Tag{fallback}
	for _, t := range SupportedLocales {
		if t != fallback {
			tags = append(tags, t)
		}
	}
	return &Locales{tags: tags, matcher: language.NewMatcher(tags)}
}

// Match picks a supported locale. Explicit preferences come first, then a
// country hint, then the default.
func (l *Locales) Match(explicit, acceptLanguage, country string) string {
	var prefs []language.Tag
	if explicit != "" {
		if t, err := language.Parse(explicit); err == nil {
			prefs = append(prefs, t)
		}
	}
	if acceptLanguage != "" {
		if tags, _, err := language.ParseAcceptLanguage(acceptLanguage); err == nil {
			prefs = append(prefs, tags...)
		}
	}
	if len(prefs) == 0 && country != "" {
		if region, err := language.ParseRegion(country); err == nil {
			if t, err := language.Compose(language.Und, region); err == nil {
				prefs = append(prefs, t)
			}
		}
	}
	if len(prefs) == 0 {
		return l.tags[0].String()
	}
	_, idx, conf := l.matcher.Match(prefs...)
	if conf == language.No {
		return l.tags[0].String()
	}
	return l.tags[idx].String()
}

// I18N stores the negotiated locale and any country hint in the request
// context and echoes the locale as Content-Language.
func I18N(locales *Locales, lookup CountryLookup) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			country := ResolveCountry(r, lookup)
			locale := locales.Match(r.Header.Get("X-Locale"), r.Header.Get("Accept-Language"), country)
			ctx := context.WithValue(r.Context(), LocaleKey, locale)
			if country != "" {
				ctx = context.WithValue(ctx, CountryKey, country)
			}
			w.Header().Set("Content-Language", locale)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// ClientIP returns the best-effort client IP address for the request. The
// first well-formed X-Forwarded-For entry wins over the socket address.
func ClientIP(r *http.Request) string {
	if r == nil {
		return ""
	}
	if xf := r.Header.Get("X-Forwarded-For"); xf != "" {
		for _, part := range strings.Split(xf, ",") {
			ip := strings.TrimSpace(part)
			if ip != "" && net.ParseIP(ip) != nil {
				return ip
			}
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err == nil && net.ParseIP(host) != nil {
		return host
	}
	return r.RemoteAddr
}

func LocaleFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(LocaleKey).(string); ok {
		return v
	}
	return SupportedLocales[0].String()
}

// CountryFromContext returns the ISO country code stored in the request context.
func CountryFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(CountryKey).(string); ok {
		return v
	}
	return ""
}

// ResolveCountry resolves a best-effort ISO country code from proxy headers
// and, failing those, the GeoIP lookup.
func ResolveCountry(r *http.Request, lookup CountryLookup) string {
	if r == nil {
		return ""
	}
	for _, key := range []string{"X-Country-Code", "CF-IPCountry", "X-Appengine-Country"} {
		if val := strings.TrimSpace(r.Header.Get(key)); val != "" && !strings.EqualFold(val, "XX") {
			return strings.ToUpper(val)
		}
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

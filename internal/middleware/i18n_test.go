package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

type assertError string

func (e assertError) Error() string { return string(e) }

func TestLocalesMatch(t *testing.T) {
	locales := NewLocales("en-IN")
	tests := []struct {
		name     string
		explicit string
		accept   string
		country  string
		want     string
	}{
		{name: "x-locale overrides", explicit: "en-US", accept: "ta-IN", want: "en-US"},
		{name: "accept-language used", accept: "ta-IN,en;q=0.5", want: "ta-IN"},
		{name: "unsupported language falls back", accept: "fr-FR", want: "en-IN"},
		{name: "country hint", country: "GB", want: "en-GB"},
		{name: "garbage ignored", explicit: "!!", accept: ";;", want: "en-IN"},
		{name: "default", want: "en-IN"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := locales.Match(tc.explicit, tc.accept, tc.country); got != tc.want {
				t.Fatalf("Match() = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestNewLocalesInvalidDefault(t *testing.T) {
	if got := NewLocales("not a locale").Match("", "", ""); got != "en-IN" {
		t.Fatalf("Match() = %q, want en-IN", got)
	}
	if got := NewLocales("en-US").Match("", "", ""); got != "en-US" {
		t.Fatalf("Match() = %q, want en-US", got)
	}
}

func TestI18NMiddleware(t *testing.T) {
	var got string
	h := I18N(NewLocales("en-IN"), nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = LocaleFromContext(r.Context())
	}))
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Accept-Language", "ta-IN")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if got != "ta-IN" || rec.Header().Get("Content-Language") != "ta-IN" {
		t.Fatalf("locale = %q, Content-Language = %q", got, rec.Header().Get("Content-Language"))
	}
}

func TestResolveCountry(t *testing.T) {
	tests := []struct {
		name     string
		setup    func(r *http.Request)
		resolver CountryLookup
		want     string
	}{
		{
			name: "header precedence",
			setup: func(r *http.Request) {
				r.Header.Set("X-Country-Code", "us")
				r.Header.Set("CF-IPCountry", "in")
			},
			want: "US",
		},
		{
			name: "unknown cloudflare country skipped",
			setup: func(r *http.Request) {
				r.Header.Set("CF-IPCountry", "XX")
			},
			want: "",
		},
		{
			name: "resolver fallback",
			resolver: func(ip string) (string, error) {
				if ip != "203.0.113.4" {
					t.Fatalf("unexpected ip: %s", ip)
				}
				return "in", nil
			},
			want: "IN",
		},
		{
			name: "resolver error returns empty",
			resolver: func(ip string) (string, error) {
				return "", assertError("boom")
			},
			want: "",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = "203.0.113.4:80"
			if tc.setup != nil {
				tc.setup(req)
			}
			got := ResolveCountry(req, tc.resolver)
			if got != tc.want {
				t.Fatalf("ResolveCountry() = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestLocaleFromContext(t *testing.T) {
	ctx := context.Background()
	if got := LocaleFromContext(ctx); got != "en-IN" {
		t.Fatalf("LocaleFromContext() default = %q, want %q", got, "en-IN")
	}
	ctx = context.WithValue(ctx, LocaleKey, "ta-IN")
	if got := LocaleFromContext(ctx); got != "ta-IN" {
		t.Fatalf("LocaleFromContext() with value = %q, want %q", got, "ta-IN")
	}
}

package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestCORS(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})

	tests := []struct {
		name       string
		origins    []string
		method     string
		origin     string
		preflight  bool
		wantStatus int
		wantAllow  string
	}{
		{name: "listed origin", origins: []string{"https://church.example/"}, method: http.MethodGet, origin: "https://church.example", wantStatus: http.StatusTeapot, wantAllow: "https://church.example"},
		{name: "unlisted origin", origins: []string{"https://church.example"}, method: http.MethodGet, origin: "https://evil.example", wantStatus: http.StatusTeapot},
		{name: "wildcard", origins: []string{"*"}, method: http.MethodGet, origin: "https://any.example", wantStatus: http.StatusTeapot, wantAllow: "https://any.example"},
		{name: "preflight", origins: []string{"https://church.example"}, method: http.MethodOptions, origin: "https://church.example", preflight: true, wantStatus: http.StatusNoContent, wantAllow: "https://church.example"},
		{name: "plain options reaches handler", origins: []string{"https://church.example"}, method: http.MethodOptions, origin: "https://church.example", wantStatus: http.StatusTeapot, wantAllow: "https://church.example"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, "/v1/events", nil)
			req.Header.Set("Origin", tt.origin)
			if tt.preflight {
				req.Header.Set("Access-Control-Request-Method", http.MethodPut)
			}
			rec := httptest.NewRecorder()
			CORS(tt.origins)(next).ServeHTTP(rec, req)

			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			if got := rec.Header().Get("Access-Control-Allow-Origin"); got != tt.wantAllow {
				t.Fatalf("allow origin = %q, want %q", got, tt.wantAllow)
			}
			if tt.preflight && rec.Header().Get("Access-Control-Max-Age") == "" {
				t.Fatalf("preflight without max age")
			}
		})
	}
}

func TestRequestID(t *testing.T) {
	var seen string
	h := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = RequestIDFromContext(r.Context())
	}))

	tests := []struct {
		name   string
		header string
		keep   bool
	}{
		{name: "caller id kept", header: "import-2024.12_01", keep: true},
		{name: "missing", header: ""},
		{name: "bad characters", header: "id with spaces"},
		{name: "too long", header: strings.Repeat("a", maxRequestIDLen+1)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.header != "" {
				req.Header.Set("X-Request-ID", tt.header)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			if seen == "" || rec.Header().Get("X-Request-ID") != seen {
				t.Fatalf("context id %q, header %q", seen, rec.Header().Get("X-Request-ID"))
			}
			if (seen == tt.header) != tt.keep {
				t.Fatalf("id = %q, keep = %v", seen, tt.keep)
			}
		})
	}
}

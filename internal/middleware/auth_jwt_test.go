package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/24981a0558-joel/manna-contribution/internal/domain"
)

const testSecret = "s3cret"

func TestSignVerifyJWT(t *testing.T) {
	now := time.Date(2024, 12, 5, 9, 0, 0, 0, time.UTC)
	claims := NewSession(domain.Identity{Email: "Pastor@Church.org", DisplayName: "Pastor"}, "en-IN", now, time.Hour)
	token, err := SignJWT(testSecret, claims)
	if err != nil {
		t.Fatalf("SignJWT() error = %v", err)
	}

	got, err := VerifyJWT(testSecret, token, now.Add(30*time.Minute))
	if err != nil {
		t.Fatalf("VerifyJWT() error = %v", err)
	}
	if got.Sub != "pastor@church,org" || got.Email != "Pastor@Church.org" || got.Name != "Pastor" {
		t.Fatalf("claims = %+v", got)
	}

	if _, err := VerifyJWT(testSecret, token, now.Add(2*time.Hour)); !errors.Is(err, errExpiredToken) {
		t.Fatalf("VerifyJWT() after expiry error = %v", err)
	}
	if _, err := VerifyJWT("other", token, now); err == nil {
		t.Fatal("VerifyJWT() accepted a foreign signature")
	}
	claims.Issuer = "someone-else"
	foreign, _ := SignJWT(testSecret, claims)
	if _, err := VerifyJWT(testSecret, foreign, now); !errors.Is(err, errInvalidToken) {
		t.Fatalf("VerifyJWT() foreign issuer error = %v", err)
	}
}

func TestAuthJWT(t *testing.T) {
	token, _ := SignJWT(testSecret, NewSession(domain.Identity{Email: "clerk@church.org"}, "", time.Now(), time.Hour))
	var seen domain.Identity
	h := AuthJWT(testSecret)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = IdentityFromContext(r.Context())
	}))

	tests := []struct {
		name   string
		setup  func(r *http.Request)
		status int
	}{
		{name: "missing", status: http.StatusUnauthorized},
		{name: "wrong scheme", setup: func(r *http.Request) { r.Header.Set("Authorization", "Basic abc") }, status: http.StatusUnauthorized},
		{name: "garbage", setup: func(r *http.Request) { r.Header.Set("Authorization", "Bearer abc") }, status: http.StatusUnauthorized},
		{name: "header", setup: func(r *http.Request) { r.Header.Set("Authorization", "Bearer "+token) }, status: http.StatusOK},
		{name: "query", setup: func(r *http.Request) { r.URL.RawQuery = "access_token=" + token }, status: http.StatusOK},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			seen = domain.Identity{}
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tc.setup != nil {
				tc.setup(req)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			if rec.Code != tc.status {
				t.Fatalf("status = %d, want %d", rec.Code, tc.status)
			}
			if tc.status == http.StatusOK && seen.Email != "clerk@church.org" {
				t.Fatalf("identity = %+v", seen)
			}
		})
	}
}

type resolverFunc func(ctx context.Context, id domain.Identity) (domain.Actor, error)

func (f resolverFunc) Resolve(ctx context.Context, id domain.Identity) (domain.Actor, error) {
	return f(ctx, id)
}

func TestResolveActor(t *testing.T) {
	resolver := resolverFunc(func(ctx context.Context, id domain.Identity) (domain.Actor, error) {
		switch id.Email {
		case "down@church.org":
			return domain.Actor{}, errors.New("connection refused")
		case "":
			return domain.Actor{}, domain.ErrUnauthorized
		}
		return domain.Actor{Identity: id, Role: domain.UserRoleEditor}, nil
	})
	var role domain.UserRole
	h := ResolveActor(resolver, zerolog.Nop())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		a, _ := ActorFromContext(r.Context())
		role = a.Role
	}))

	tests := []struct {
		name   string
		email  string
		status int
	}{
		{name: "no session", status: http.StatusUnauthorized},
		{name: "store down", email: "down@church.org", status: http.StatusServiceUnavailable},
		{name: "resolved", email: "clerk@church.org", status: http.StatusOK},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			role = ""
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req = req.WithContext(ContextWithIdentity(req.Context(), domain.Identity{Email: tc.email}))
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			if rec.Code != tc.status {
				t.Fatalf("status = %d, want %d", rec.Code, tc.status)
			}
			if tc.status == http.StatusOK && role != domain.UserRoleEditor {
				t.Fatalf("role = %q", role)
			}
		})
	}
}

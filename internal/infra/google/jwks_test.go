package google

import (
	"context"
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"math/big"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestAudienceMatches(t *testing.T) {
	cases := []struct {
		name     string
		aud      any
		clientID string
		want     bool
	}{
		{name: "string match", aud: "client", clientID: "client", want: true},
		{name: "string mismatch", aud: "client", clientID: "other", want: false},
		{name: "slice any match", aud: []any{"other", "client"}, clientID: "client", want: true},
		{name: "slice any mismatch", aud: []any{"other", 1}, clientID: "client", want: false},
		{name: "slice string match", aud: []string{"client", "alt"}, clientID: "client", want: true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := audienceMatches(tc.aud, tc.clientID); got != tc.want {
				t.Fatalf("audienceMatches(%v, %q) = %v, want %v", tc.aud, tc.clientID, got, tc.want)
			}
		})
	}
}

func TestVerifierIdentity(t *testing.T) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}
	mux := http.NewServeMux()
	srv := httptest.NewServer(mux)
	defer srv.Close()
	mux.HandleFunc("/.well-known/openid-configuration", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]string{"jwks_uri": srv.URL + "/certs"})
	})
	mux.HandleFunc("/certs", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(jwks{Keys: []jwk{{
			Kid: "k1",
			Kty: "RSA",
			Alg: "RS256",
			N:   base64.RawURLEncoding.EncodeToString(key.N.Bytes()),
			E:   base64.RawURLEncoding.EncodeToString(big.NewInt(int64(key.E)).Bytes()),
		}}})
	})

	now := time.Date(2024, 12, 5, 9, 0, 0, 0, time.UTC)
	sign := func(claims map[string]any) string {
		header, _ := json.Marshal(map[string]string{"alg": "RS256", "kid": "k1", "typ": "JWT"})
		payload, _ := json.Marshal(claims)
		input := base64.RawURLEncoding.EncodeToString(header) + "." + base64.RawURLEncoding.EncodeToString(payload)
		hashed := sha256.Sum256([]byte(input))
		sig, err := rsa.SignPKCS1v15(rand.Reader, key, crypto.SHA256, hashed[:])
		if err != nil {
			t.Fatalf("SignPKCS1v15: %v", err)
		}
		return input + "." + base64.RawURLEncoding.EncodeToString(sig)
	}
	claims := func(mod func(map[string]any)) map[string]any {
		c := map[string]any{
			"iss":            srv.URL,
			"aud":            "client-1",
			"exp":            now.Add(time.Hour).Unix(),
			"email":          "pastor@church.org",
			"email_verified": true,
			"name":           "Pastor",
		}
		if mod != nil {
			mod(c)
		}
		return c
	}

	v := NewVerifier(srv.URL, "client-1")
	v.now = func() time.Time { return now }

	id, err := v.Identity(context.Background(), sign(claims(nil)))
	if err != nil {
		t.Fatalf("Identity() error = %v", err)
	}
	if id.Email != "pastor@church.org" || id.DisplayName != "Pastor" {
		t.Fatalf("Identity() = %+v", id)
	}

	rejects := map[string]func(map[string]any){
		"wrong audience": func(c map[string]any) { c["aud"] = "client-2" },
		"wrong issuer":   func(c map[string]any) { c["iss"] = "https://evil.example" },
		"expired":        func(c map[string]any) { c["exp"] = now.Add(-time.Minute).Unix() },
		"unverified":     func(c map[string]any) { c["email_verified"] = false },
		"no email":       func(c map[string]any) { delete(c, "email") },
	}
	for name, mod := range rejects {
		t.Run(name, func(t *testing.T) {
			if _, err := v.Identity(context.Background(), sign(claims(mod))); !errors.Is(err, ErrInvalidToken) {
				t.Fatalf("Identity() error = %v, want ErrInvalidToken", err)
			}
		})
	}

	tampered := sign(claims(nil))
	tampered = tampered[:len(tampered)-4] + "AAAA"
	if _, err := v.Identity(context.Background(), tampered); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("Identity(tampered) error = %v, want ErrInvalidToken", err)
	}
}

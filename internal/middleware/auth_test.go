package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const testSecret = "test-secret"

func signToken(t *testing.T, secret string, claims jwt.MapClaims) string {
	t.Helper()
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("failed to sign token: %v", err)
	}
	return signed
}

func TestVerifyToken(t *testing.T) {
	t.Run("missing header", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		if _, err := VerifyToken(req, testSecret); err != ErrMissingAuthHeader {
			t.Fatalf("expected ErrMissingAuthHeader, got %v", err)
		}
	})

	t.Run("malformed header", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Token abc")
		if _, err := VerifyToken(req, testSecret); err != ErrMissingAuthHeader {
			t.Fatalf("expected ErrMissingAuthHeader, got %v", err)
		}
	})

	t.Run("wrong secret", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Bearer "+signToken(t, "other", jwt.MapClaims{"sub": "u1"}))
		if _, err := VerifyToken(req, testSecret); err != ErrInvalidToken {
			t.Fatalf("expected ErrInvalidToken, got %v", err)
		}
	})

	t.Run("expired", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Bearer "+signToken(t, testSecret, jwt.MapClaims{
			"sub": "u1",
			"exp": time.Now().Add(-time.Hour).Unix(),
		}))
		if _, err := VerifyToken(req, testSecret); err != ErrInvalidToken {
			t.Fatalf("expected ErrInvalidToken, got %v", err)
		}
	})

	t.Run("valid", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Bearer "+signToken(t, testSecret, jwt.MapClaims{
			"sub": float64(42),
			"exp": time.Now().Add(time.Hour).Unix(),
		}))
		claims, err := VerifyToken(req, testSecret)
		if err != nil {
			t.Fatalf("VerifyToken: %v", err)
		}
		if id, err := UserIDFromClaims(claims); err != nil || id != "42" {
			t.Fatalf("expected user 42, got %q (%v)", id, err)
		}
	})
}

func TestUserIDFromClaims(t *testing.T) {
	if _, err := UserIDFromClaims(jwt.MapClaims{}); err == nil {
		t.Fatal("expected error for missing sub")
	}
	if _, err := UserIDFromClaims(jwt.MapClaims{"sub": true}); err == nil {
		t.Fatal("expected error for non-string sub")
	}
}

func TestAuthenticate(t *testing.T) {
	var seen string
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = UserID(r.Context())
		w.WriteHeader(http.StatusNoContent)
	})

	tests := []struct {
		name     string
		secret   string
		required bool
		header   string
		code     int
		user     string
	}{
		{"disabled", "", true, "", http.StatusNoContent, ""},
		{"anonymous allowed", testSecret, false, "", http.StatusNoContent, ""},
		{"anonymous rejected", testSecret, true, "", http.StatusUnauthorized, ""},
		{"bad token", testSecret, false, "Bearer nope", http.StatusUnauthorized, ""},
		{"valid token", testSecret, true, "Bearer " + signToken(t, testSecret, jwt.MapClaims{"sub": "u1"}), http.StatusNoContent, "u1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			seen = ""
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			Authenticate(tt.secret, tt.required)(next).ServeHTTP(rec, req)

			if rec.Code != tt.code {
				t.Fatalf("expected %d, got %d", tt.code, rec.Code)
			}
			if seen != tt.user {
				t.Fatalf("expected user %q, got %q", tt.user, seen)
			}
		})
	}
}

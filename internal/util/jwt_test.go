package util

import (
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func TestJWTRoundTrip(t *testing.T) {
	token, err := GenerateJWT(42, "secret", time.Hour)
	if err != nil {
		t.Fatalf("GenerateJWT: %v", err)
	}
	id, err := ParseJWT(token, "secret")
	if err != nil {
		t.Fatalf("ParseJWT: %v", err)
	}
	if id != 42 {
		t.Fatalf("user id mismatch: got %d", id)
	}
}

func TestParseJWTRejectsWrongSecretAndExpiry(t *testing.T) {
	token, _ := GenerateJWT(1, "secret", time.Hour)
	if _, err := ParseJWT(token, "other"); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken for wrong secret, got %v", err)
	}

	expired := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"user_id": 1,
		"exp":     time.Now().Add(-time.Minute).Unix(),
	})
	signed, _ := expired.SignedString([]byte("secret"))
	if _, err := ParseJWT(signed, "secret"); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken for expired token, got %v", err)
	}

	noExp := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"user_id": 1})
	signed, _ = noExp.SignedString([]byte("secret"))
	if _, err := ParseJWT(signed, "secret"); err == nil {
		t.Fatal("token without exp must be rejected")
	}
}

func TestExtractBearer(t *testing.T) {
	tests := map[string]string{
		"Bearer abc":  "abc",
		"bearer  xyz": "xyz",
		"Basic abc":   "",
		"":            "",
		"Bearer":      "",
	}
	for header, want := range tests {
		if got := ExtractBearer(header); got != want {
			t.Errorf("ExtractBearer(%q) = %q, want %q", header, got, want)
		}
	}
}

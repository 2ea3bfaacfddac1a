package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestHTTPStatus(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{Validation("bad"), http.StatusBadRequest},
		{NotFound("missing"), http.StatusNotFound},
		{Authentication("who"), http.StatusUnauthorized},
		{Authorization("no"), http.StatusForbidden},
		{Conflict("dup"), http.StatusConflict},
		{Payment("declined", nil), http.StatusPaymentRequired},
		{Persistence("db", errors.New("x"), 9), http.StatusInternalServerError},
		{errors.New("plain"), http.StatusInternalServerError},
		{fmt.Errorf("wrapped: %w", NotFound("project not found")), http.StatusNotFound},
	}
	for _, tt := range tests {
		if got := HTTPStatus(tt.err); got != tt.want {
			t.Errorf("HTTPStatus(%v) = %d, want %d", tt.err, got, tt.want)
		}
	}
}

func TestPublicMessageHidesInternalErrors(t *testing.T) {
	if got := PublicMessage(errors.New("pq: password authentication failed")); got != "internal server error" {
		t.Fatalf("internal detail leaked: %q", got)
	}
	cause := errors.New("connection reset")
	err := Persistence("failed to record donation", cause, 12)
	if got := PublicMessage(err); got != "failed to record donation" {
		t.Fatalf("unexpected message %q", got)
	}
	if !errors.Is(err, cause) {
		t.Fatal("cause must be unwrappable")
	}
	var e *Error
	if !errors.As(err, &e) || e.ReconciliationID != 12 {
		t.Fatalf("reconciliation id not preserved: %+v", e)
	}
}

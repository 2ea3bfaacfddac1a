package util

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

func TestIsRetryableError(t *testing.T) {
	var syntaxErr *json.SyntaxError
	jsonErr := json.Unmarshal([]byte("{"), &struct{}{})
	if !errors.As(jsonErr, &syntaxErr) {
		t.Fatalf("expected json syntax error, got %T", jsonErr)
	}

	tests := []struct {
		name      string
		err       error
		retryable bool
		errType   string
	}{
		{"nil", nil, false, ""},
		{"permanent", Permanent("bad_payload", errors.New("missing email")), false, "bad_payload"},
		{"wrapped permanent", fmt.Errorf("handle: %w", Permanent("user_missing", nil)), false, "user_missing"},
		{"json", fmt.Errorf("decode: %w", jsonErr), false, "json_decode_error"},
		{"no rows", fmt.Errorf("load: %w", pgx.ErrNoRows), false, "record_not_found"},
		{"unique violation", &pgconn.PgError{Code: "23505"}, false, "duplicate_key"},
		{"serialization failure", &pgconn.PgError{Code: "40001"}, true, "db_transient_error"},
		{"connection exception", &pgconn.PgError{Code: "08006"}, true, "db_transient_error"},
		{"deadline", fmt.Errorf("send: %w", context.DeadlineExceeded), true, "timeout"},
		{"canceled", context.Canceled, false, "context_canceled"},
		{"refused", errors.New("dial tcp: connection refused"), true, "connection_error"},
		{"smtp", errors.New("smtp: 421 service not available"), true, "mail_delivery_error"},
		{"unknown", errors.New("boom"), false, "unknown_error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			retryable, errType := IsRetryableError(tt.err)
			if retryable != tt.retryable || errType != tt.errType {
				t.Fatalf("got (%v, %q) want (%v, %q)", retryable, errType, tt.retryable, tt.errType)
			}
		})
	}
}

func TestShouldRetry(t *testing.T) {
	if ShouldRetry(1, 3, false) {
		t.Fatal("non-retryable errors must not be retried")
	}
	if !ShouldRetry(3, 3, true) {
		t.Fatal("attempt equal to max should still retry")
	}
	if ShouldRetry(4, 3, true) {
		t.Fatal("attempt beyond max must not retry")
	}
}

func TestKeyFormats(t *testing.T) {
	if got := FormatRetryKey("propel.donation.completed", "m-1"); got != "retry:propel.donation.completed:m-1" {
		t.Fatalf("retry key mismatch: %q", got)
	}
	if got := FormatDedupKey("donation_receipt", "42"); got != "dedup:donation_receipt:42" {
		t.Fatalf("dedup key mismatch: %q", got)
	}
}

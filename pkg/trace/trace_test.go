package trace

import (
	"context"
	"testing"
)

func TestContextRoundTrip(t *testing.T) {
	ctx := WithContext(context.Background(), "abc")
	if got := FromContext(ctx); got != "abc" {
		t.Fatalf("FromContext mismatch: got %q want %q", got, "abc")
	}
	if got := FromContext(context.Background()); got != "" {
		t.Fatalf("expected empty trace id, got %q", got)
	}
}

func TestGenerateTraceID(t *testing.T) {
	a, b := GenerateTraceID(), GenerateTraceID()
	if len(a) != 32 {
		t.Fatalf("expected 32 hex chars, got %d (%q)", len(a), a)
	}
	if a == b {
		t.Fatal("expected distinct trace ids")
	}
}

func TestFromHeaders(t *testing.T) {
	if got := FromHeaders("", "req-1"); got != "req-1" {
		t.Fatalf("fallback mismatch: got %q", got)
	}
	if got := FromHeaders("trace-1", "req-1"); got != "trace-1" {
		t.Fatalf("precedence mismatch: got %q", got)
	}
}

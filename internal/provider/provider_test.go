package provider

import (
	"context"
	"errors"
	"fmt"
	"testing"
)

func TestErrorMatchesSentinel(t *testing.T) {
	err := fmt.Errorf("call: %w", Errorf(40501, "Invalid Field: '%s'", "keyword"))
	if !errors.Is(err, ErrProvider) {
		t.Fatalf("expected errors.Is ErrProvider")
	}
	if got := Message(err); got != "Invalid Field: 'keyword'" {
		t.Fatalf("unexpected message %q", got)
	}
}

func TestMessageFallsBackToErrorText(t *testing.T) {
	if got := Message(errors.New("plain")); got != "plain" {
		t.Fatalf("unexpected message %q", got)
	}
	if got := Message(nil); got != "" {
		t.Fatalf("expected empty message for nil, got %q", got)
	}
}

func TestPlaceholderFailsAsProviderError(t *testing.T) {
	_, err := Placeholder{}.CallSync(context.Background(), "x", nil)
	if !errors.Is(err, ErrProvider) || Message(err) != "data provider is not configured" {
		t.Fatalf("unexpected placeholder error %v", err)
	}
}

func TestIsTransient(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want bool
	}{
		{"http 503", Errorf(503, "provider http status 503"), true},
		{"http 429", Errorf(429, "provider http status 429"), true},
		{"wrapped unavailable", fmt.Errorf("dial: %w", ErrUnavailable), true},
		{"http 400", Errorf(400, "provider http status 400"), false},
		{"task error code", Errorf(50000, "Internal Error."), false},
		{"envelope error", Errorf(40501, "Invalid Field"), false},
		{"plain", errors.New("boom"), false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := IsTransient(tc.err); got != tc.want {
				t.Fatalf("IsTransient(%v) = %v, want %v", tc.err, got, tc.want)
			}
		})
	}
}

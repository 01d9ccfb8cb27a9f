package calendar

import (
	"context"
	"errors"
	"testing"
	"time"

	"google.golang.org/api/googleapi"
)

func TestIsRateLimited(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want bool
	}{
		{"too many requests", &googleapi.Error{Code: 429}, true},
		{"quota reason", &googleapi.Error{Code: 403, Errors: []googleapi.ErrorItem{{Reason: "rateLimitExceeded"}}}, true},
		{"user quota reason", &googleapi.Error{Code: 403, Errors: []googleapi.ErrorItem{{Reason: "userRateLimitExceeded"}}}, true},
		{"plain forbidden", &googleapi.Error{Code: 403, Errors: []googleapi.ErrorItem{{Reason: "forbidden"}}}, false},
		{"not found", &googleapi.Error{Code: 404}, false},
		{"unstructured", errors.New("rate limit exceeded"), false},
	}
	for _, tc := range cases {
		if got := isRateLimited(tc.err); got != tc.want {
			t.Errorf("%s: isRateLimited = %v, want %v", tc.name, got, tc.want)
		}
	}
}

func TestFixedBackoff_Schedule(t *testing.T) {
	b := &fixedBackoff{delays: writeDelays}
	want := []time.Duration{500 * time.Millisecond, 1500 * time.Millisecond, 3 * time.Second}
	for i, w := range want {
		d, stop := b.Next()
		if stop || d != w {
			t.Fatalf("step %d: got (%v, %v), want (%v, false)", i, d, stop, w)
		}
	}
	if _, stop := b.Next(); !stop {
		t.Fatalf("backoff must stop after %d attempts", len(want))
	}
}

func TestWithRetry_NonRetryableFailsFast(t *testing.T) {
	calls := 0
	err := withRetry(context.Background(), func() error {
		calls++
		return &googleapi.Error{Code: 400}
	})
	if err == nil {
		t.Fatalf("expected error")
	}
	if calls != 1 {
		t.Fatalf("non-retryable errors must not be retried, got %d calls", calls)
	}
}

func TestWithRetry_RetriesRateLimit(t *testing.T) {
	calls := 0
	err := withRetry(context.Background(), func() error {
		calls++
		if calls == 1 {
			return &googleapi.Error{Code: 429}
		}
		return nil
	})
	if err != nil {
		t.Fatalf("expected eventual success, got %v", err)
	}
	if calls != 2 {
		t.Fatalf("expected 2 attempts, got %d", calls)
	}
}

package calendar

import (
	"context"
	"errors"
	"time"

	"github.com/sethvargo/go-retry"
	"google.golang.org/api/googleapi"
)

// Calendar writes are retried on rate limiting with a short fixed
// schedule. Anything slower than this and the caller has already hung up.
var writeDelays = []time.Duration{500 * time.Millisecond, 1500 * time.Millisecond, 3 * time.Second}

// fixedBackoff walks a fixed delay schedule and then stops.
type fixedBackoff struct {
	delays []time.Duration
	next   int
}

func (b *fixedBackoff) Next() (time.Duration, bool) {
	if b.next >= len(b.delays) {
		return 0, true
	}
	d := b.delays[b.next]
	b.next++
	return d, false
}

// withRetry runs fn, retrying only rate-limit failures.
func withRetry(ctx context.Context, fn func() error) error {
	b := &fixedBackoff{delays: writeDelays}
	return retry.Do(ctx, b, func(ctx context.Context) error {
		err := fn()
		if err != nil && isRateLimited(err) {
			return retry.RetryableError(err)
		}
		return err
	})
}

// isRateLimited inspects the structured API error rather than matching
// message text. 403 is only a rate limit when the reason says so.
func isRateLimited(err error) bool {
	var gerr *googleapi.Error
	if !errors.As(err, &gerr) {
		return false
	}
	if gerr.Code == 429 {
		return true
	}
	if gerr.Code == 403 {
		for _, item := range gerr.Errors {
			if item.Reason == "rateLimitExceeded" || item.Reason == "userRateLimitExceeded" {
				return true
			}
		}
	}
	return false
}

// Package engine executes plans: ordered synchronous step dispatch, a
// deterministic retry policy, best-effort OnFailure compensation, and
// redacted event emission.
package engine

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"math"
	"time"

	"github.com/idle-engine/idle/pkg/schema"
)

// Hard limits for retry parameters. Settings are validated against these
// before any execution begins.
const (
	RetryMaxAttemptsLimit  = 10
	RetryMaxInitialDelayMs = 60000
	RetryMaxDelayMsLimit   = 300000
	RetryMinBackoffFactor  = 1.0
)

// ValidateRetrySettings checks settings against the hard limits.
func ValidateRetrySettings(name string, s schema.RetrySettings) error {
	if s.MaxAttempts < 0 || s.MaxAttempts > RetryMaxAttemptsLimit {
		return schema.NewErrorf(schema.ErrCodeRetry,
			"retry profile %q: MaxAttempts must be in [0,%d], got %d", name, RetryMaxAttemptsLimit, s.MaxAttempts)
	}
	if s.InitialDelayMilliseconds < 0 || s.InitialDelayMilliseconds > RetryMaxInitialDelayMs {
		return schema.NewErrorf(schema.ErrCodeRetry,
			"retry profile %q: InitialDelayMilliseconds must be in [0,%d], got %d",
			name, RetryMaxInitialDelayMs, s.InitialDelayMilliseconds)
	}
	if s.BackoffFactor < RetryMinBackoffFactor {
		return schema.NewErrorf(schema.ErrCodeRetry,
			"retry profile %q: BackoffFactor must be >= %.1f, got %g", name, RetryMinBackoffFactor, s.BackoffFactor)
	}
	if s.MaxDelayMilliseconds < 0 || s.MaxDelayMilliseconds > RetryMaxDelayMsLimit {
		return schema.NewErrorf(schema.ErrCodeRetry,
			"retry profile %q: MaxDelayMilliseconds must be in [0,%d], got %d",
			name, RetryMaxDelayMsLimit, s.MaxDelayMilliseconds)
	}
	if s.MaxDelayMilliseconds < s.InitialDelayMilliseconds {
		return schema.NewErrorf(schema.ErrCodeRetry,
			"retry profile %q: MaxDelayMilliseconds (%d) must be >= InitialDelayMilliseconds (%d)",
			name, s.MaxDelayMilliseconds, s.InitialDelayMilliseconds)
	}
	if s.JitterRatio < 0 || s.JitterRatio > 1 {
		return schema.NewErrorf(schema.ErrCodeRetry,
			"retry profile %q: JitterRatio must be in [0.0,1.0], got %g", name, s.JitterRatio)
	}
	return nil
}

// RetrySeed builds the deterministic jitter seed for one attempt.
func RetrySeed(operation, step string, attempt int) string {
	return fmt.Sprintf("%s|%s|%d", operation, step, attempt)
}

// ComputeDelay returns the inter-attempt delay for the given attempt
// (1-based). Identical inputs always reproduce identical delays: jitter is
// derived from a cryptographic hash of the seed, not from a PRNG, so delay
// sequences are reproducible in tests and predictable for load shaping.
func ComputeDelay(s schema.RetrySettings, seed string, attempt int) time.Duration {
	base := float64(s.InitialDelayMilliseconds) * math.Pow(s.BackoffFactor, float64(attempt-1))
	base = math.Round(base)
	if maxDelay := float64(s.MaxDelayMilliseconds); base > maxDelay {
		base = maxDelay
	}

	if s.JitterRatio > 0 {
		base += base * jitterUnit(seed) * s.JitterRatio
	}
	ms := math.Round(base)
	if ms < 0 {
		ms = 0
	}
	return time.Duration(ms) * time.Millisecond
}

// jitterUnit maps the seed hash onto the signed unit interval [-1,1).
func jitterUnit(seed string) float64 {
	sum := sha256.Sum256([]byte(seed))
	u := binary.BigEndian.Uint64(sum[:8])
	// 53 bits of mantissa keep the conversion exact.
	return (float64(u>>11)/float64(1<<53))*2 - 1
}

// waitDelay blocks until the delay elapses or the context is done. The next
// attempt never begins before the computed delay has passed.
func waitDelay(ctx context.Context, delay time.Duration) error {
	if delay <= 0 {
		return nil
	}
	select {
	case <-time.After(delay):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

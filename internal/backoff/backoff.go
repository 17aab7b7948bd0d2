package backoff

import (
	"context"
	"math"
	"math/rand"
	"time"
)

// Policy names how the delay grows with each attempt.
type Policy string

const (
	Fixed          Policy = "fixed"
	Linear         Policy = "linear"
	Exponential    Policy = "exponential"
	ExpEqualJitter Policy = "exp_equal_jitter"
	ExpFullJitter  Policy = "exp_full_jitter"
)

// Delay returns the wait before retry number attempt (0-based). Unknown
// policies behave like ExpFullJitter.
func Delay(policy Policy, base, max time.Duration, attempt int, rng *rand.Rand) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	if base <= 0 {
		base = time.Millisecond
	}
	if max <= 0 {
		max = base
	}
	if rng == nil {
		rng = rand.New(rand.NewSource(1))
	}
	exp := func() time.Duration {
		d := float64(base) * math.Pow(2, float64(attempt))
		if d > float64(max) {
			return max
		}
		return time.Duration(d)
	}
	switch policy {
	case Fixed:
		return minDur(base, max)
	case Linear:
		return minDur(base*time.Duration(maxInt(1, attempt)), max)
	case Exponential:
		return exp()
	case ExpEqualJitter:
		half := exp() / 2
		return half + time.Duration(rng.Int63n(int64(half)+1))
	default:
		return time.Duration(rng.Int63n(int64(exp()) + 1))
	}
}

// Retry calls fn up to attempts times, sleeping per policy between failures.
// It returns the last error, or ctx.Err() if the context ends while waiting.
func Retry(ctx context.Context, attempts int, policy Policy, base, max time.Duration, fn func() error) error {
	if attempts < 1 {
		attempts = 1
	}
	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	var err error
	for i := 0; i < attempts; i++ {
		if err = fn(); err == nil {
			return nil
		}
		if i == attempts-1 {
			break
		}
		t := time.NewTimer(Delay(policy, base, max, i, rng))
		select {
		case <-ctx.Done():
			t.Stop()
			return ctx.Err()
		case <-t.C:
		}
	}
	return err
}

func minDur(a, b time.Duration) time.Duration {
	if a < b {
		return a
	}
	return b
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

package worker

import (
	"math/rand"
	"time"
)

// BackoffConfig bounds the retry schedule for failed notification sends.
type BackoffConfig struct {
	BaseDelay time.Duration
	MaxDelay  time.Duration
}

// DefaultBackoff suits an SMTP relay that is usually back within minutes.
func DefaultBackoff() BackoffConfig {
	return BackoffConfig{
		BaseDelay: 30 * time.Second,
		MaxDelay:  30 * time.Minute,
	}
}

// NextRetryAt computes the next retry time using exponential backoff with
// full jitter. attempt is 1-based (1 => BaseDelay).
func NextRetryAt(now time.Time, attempt int, cfg BackoffConfig, rng *rand.Rand) time.Time {
	if attempt < 1 {
		attempt = 1
	}
	if cfg.BaseDelay <= 0 {
		cfg.BaseDelay = 30 * time.Second
	}
	if cfg.MaxDelay <= 0 {
		cfg.MaxDelay = 30 * time.Minute
	}

	delay := cfg.BaseDelay
	for i := 1; i < attempt && delay < cfg.MaxDelay; i++ {
		delay *= 2
	}
	if delay > cfg.MaxDelay {
		delay = cfg.MaxDelay
	}

	// full jitter: random in [0, delay]
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	jitter := time.Duration(rng.Int63n(int64(delay) + 1))

	return now.Add(jitter).UTC()
}

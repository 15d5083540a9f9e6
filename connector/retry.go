package connector

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
)

// retry calls fn until it succeeds, opts.MaxRetries retries are spent or ctx
// is done. The delay grows by opts.Backoff per attempt, capped at MaxDelay.
func retry[T any](ctx context.Context, opts RetryConfig, op string, fn func(context.Context) (T, error)) (T, error) {
	delay := opts.BaseDelay
	if delay <= 0 {
		delay = 100 * time.Millisecond
	}
	backoff := opts.Backoff
	if backoff < 1 {
		backoff = 2
	}

	var (
		v   T
		err error
	)
	for attempt := 0; ; attempt++ {
		v, err = fn(ctx)
		if err == nil || attempt >= opts.MaxRetries {
			return v, err
		}

		log.Warn().
			Err(err).
			Str("op", op).
			Int("attempt", attempt+1).
			Dur("delay", delay).
			Msg("database operation failed, retrying")

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			var zero T
			return zero, ctx.Err()
		case <-timer.C:
		}

		delay = time.Duration(float64(delay) * backoff)
		if opts.MaxDelay > 0 && delay > opts.MaxDelay {
			delay = opts.MaxDelay
		}
	}
}

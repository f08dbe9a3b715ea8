package closure

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/ppiankov/wikiner/internal/errors"
	"github.com/ppiankov/wikiner/internal/model"
)

// retrySleepFunc is the sleep function used between retries (injectable for tests)
var retrySleepFunc = sleepContext

const maxBackoff = 30 * time.Second

// RetryingSource retries transient lookup failures with exponential backoff
type RetryingSource struct {
	source      EdgeSource
	maxAttempts int
	backoff     time.Duration
	log         *zap.SugaredLogger
}

// RetryOption configures a RetryingSource
type RetryOption func(*RetryingSource)

// WithBackoff sets the first retry delay. Later delays double up to 30s.
func WithBackoff(d time.Duration) RetryOption {
	return func(r *RetryingSource) {
		if d > 0 {
			r.backoff = d
		}
	}
}

// NewRetryingSource wraps source. maxAttempts counts the first try.
func NewRetryingSource(source EdgeSource, maxAttempts int, log *zap.SugaredLogger, opts ...RetryOption) *RetryingSource {
	if maxAttempts <= 0 {
		maxAttempts = 1
	}
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	r := &RetryingSource{source: source, maxAttempts: maxAttempts, backoff: time.Second, log: log}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// LookupEdges calls the wrapped source until it succeeds, fails with a
// non-transient error, or runs out of attempts.
func (r *RetryingSource) LookupEdges(ctx context.Context, ids []model.ClassID, dir Direction) ([]model.ClassID, error) {
	var lastErr error
	for attempt := 0; attempt < r.maxAttempts; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(1<<uint(attempt-1)) * r.backoff
			if backoff > maxBackoff {
				backoff = maxBackoff
			}
			r.log.Warnw("edge lookup failed, retrying",
				"attempt", attempt, "max_attempts", r.maxAttempts, "backoff", backoff, "ids", len(ids), "error", lastErr)
			if err := retrySleepFunc(ctx, backoff); err != nil {
				return nil, errors.Wrap(err, "edge lookup cancelled")
			}
		}

		related, err := r.source.LookupEdges(ctx, ids, dir)
		if err == nil {
			return related, nil
		}
		if !errors.IsTransient(err) || ctx.Err() != nil {
			return nil, err
		}
		lastErr = err
	}
	return nil, errors.Wrapf(lastErr, "edge lookup failed after %d attempts", r.maxAttempts)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

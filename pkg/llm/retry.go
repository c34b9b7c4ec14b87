package llm

import (
	"context"
	"log/slog"
	"math/rand/v2"
	"net/http"
	"time"
)

// backoff returns the delay before retry number n (1-based).
func (c RetryConfig) backoff(n int) time.Duration {
	d, limit := float64(c.InitialBackoff), float64(c.MaxBackoff)
	for i := 1; i < n; i++ {
		d *= c.BackoffFactor
		if limit > 0 && d >= limit {
			break
		}
	}
	if limit > 0 {
		d = min(d, limit)
	}
	return time.Duration(d * (1 + c.JitterFraction*rand.Float64()))
}

// sleep waits for d or until ctx ends.
func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// doWithRetry sends via send, retrying network failures and retryable
// statuses. Any other non-200 response, or the response of the final
// attempt, is handed back unread for the caller to classify.
func doWithRetry(ctx context.Context, cfg RetryConfig, log *slog.Logger, send func(ctx context.Context) (*http.Response, error)) (*http.Response, error) {
	var (
		status  int
		netErr  error
		attempt int
	)
	last := max(cfg.MaxRetries, 0)
	for ; attempt <= last; attempt++ {
		if attempt > 0 {
			d := cfg.backoff(attempt)
			log.Debug("retrying request", "attempt", attempt, "last_status", status, "backoff", d)
			if err := sleep(ctx, d); err != nil {
				return nil, err
			}
		}

		resp, err := send(ctx)
		switch {
		case err != nil && ctx.Err() != nil:
			return nil, ctx.Err()
		case err != nil:
			netErr = err
			continue
		case resp.StatusCode == http.StatusOK:
			return resp, nil
		}

		status = resp.StatusCode
		if attempt == last || !isRetryable(status, cfg.RetryableStatuses) {
			return resp, nil
		}
		wait := parseRetryAfter(resp.Header.Get("Retry-After"))
		resp.Body.Close()
		if err := sleep(ctx, wait); err != nil {
			return nil, err
		}
	}

	if status == 0 {
		return nil, netErr
	}
	return nil, &ErrMaxRetriesExceeded{Attempts: attempt, LastStatus: status}
}

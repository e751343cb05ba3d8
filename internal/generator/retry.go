package generator

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/time/rate"

	"github.com/coursemate/coursemate/internal/log"
)

// retryDelay is the pause before the single retry of a failed completion.
const retryDelay = 500 * time.Millisecond

// completer serializes backend access through a rate limiter and retries a
// failed completion exactly once. A second failure surfaces as
// ErrBackendUnavailable wrapping the backend's error.
type completer struct {
	backend Backend
	limiter *rate.Limiter
	logger  log.Logger
}

func (c *completer) complete(ctx context.Context, req *Request) (*Response, error) {
	var lastErr error
	for attempt := 0; attempt < 2; attempt++ {
		if attempt > 0 {
			c.logger.Warn("completion failed, retrying", "error", lastErr)
			select {
			case <-time.After(retryDelay):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}
		if c.limiter != nil {
			if err := c.limiter.Wait(ctx); err != nil {
				return nil, err
			}
		}

		resp, err := c.backend.Complete(ctx, req)
		if err == nil {
			return resp, nil
		}
		if ctx.Err() != nil {
			return nil, err
		}
		lastErr = err
	}
	return nil, fmt.Errorf("%w: %w", ErrBackendUnavailable, lastErr)
}

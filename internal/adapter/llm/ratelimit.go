package llm

import (
	"context"
	"fmt"

	"golang.org/x/time/rate"

	"github.com/shreeramdrao/Cysinfo-AI/internal/domain"
	"github.com/shreeramdrao/Cysinfo-AI/internal/infra/config"
)

// requestLimiter throttles outgoing requests with a token bucket.
// A nil *requestLimiter never blocks.
type requestLimiter struct {
	limiter *rate.Limiter
}

func newRequestLimiter(cfg config.RateLimitConfig) *requestLimiter {
	if cfg.RequestsPerSecond <= 0 {
		return nil
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = 1
	}
	return &requestLimiter{limiter: rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), burst)}
}

// wait blocks until a request may be sent or ctx is done. A wait that could
// never finish before the deadline fails immediately with ErrRateLimit.
func (l *requestLimiter) wait(ctx context.Context) error {
	if l == nil {
		return nil
	}
	if err := l.limiter.Wait(ctx); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("%w: %w", domain.ErrRateLimit, err)
	}
	return nil
}

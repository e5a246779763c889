package pipeline

import (
	"context"
	"time"

	"golang.org/x/time/rate"
)

// Pacer spaces out deliveries. Wait blocks until the next delivery may start.
type Pacer interface {
	Wait(ctx context.Context) error
}

// RatePacer allows one delivery per interval. The first delivery is not delayed.
type RatePacer struct {
	limiter *rate.Limiter
}

func NewRatePacer(interval time.Duration) *RatePacer {
	limit := rate.Inf
	if interval > 0 {
		limit = rate.Every(interval)
	}
	return &RatePacer{limiter: rate.NewLimiter(limit, 1)}
}

func (p *RatePacer) Wait(ctx context.Context) error {
	return p.limiter.Wait(ctx)
}

package utils

import (
	"context"
	"math/rand"
	"time"

	"golang.org/x/time/rate"
)

// Pacer spaces out requests: at least min apart, plus a random extra
// delay of up to max-min before every request.
type Pacer struct {
	limiter *rate.Limiter
	jitter  time.Duration
}

// NewPacer creates a Pacer. A non-positive min disables the spacing floor,
// and max below min disables the jitter.
func NewPacer(min, max time.Duration) *Pacer {
	limit := rate.Inf
	if min > 0 {
		limit = rate.Every(min)
	}

	var jitter time.Duration
	if max > min {
		jitter = max - min
	}

	return &Pacer{
		limiter: rate.NewLimiter(limit, 1),
		jitter:  jitter,
	}
}

// Wait blocks until the next request may be sent or ctx is done.
func (p *Pacer) Wait(ctx context.Context) error {
	if err := p.limiter.Wait(ctx); err != nil {
		return err
	}
	if p.jitter <= 0 {
		return nil
	}

	delay := time.Duration(rand.Int63n(int64(p.jitter) + 1))
	timer := time.NewTimer(delay)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

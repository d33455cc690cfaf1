package alerts

import (
	"context"
	"fmt"

	"golang.org/x/time/rate"
)

// Limited wraps a Notifier with a token bucket so a flapping balance cannot
// flood the channel.
type Limited struct {
	next    Notifier
	limiter *rate.Limiter
}

// NewLimited allows perMinute sends per minute with a burst of burst.
// A non-positive perMinute disables limiting.
func NewLimited(next Notifier, perMinute, burst int) *Limited {
	lim := rate.NewLimiter(rate.Inf, 0)
	if perMinute > 0 {
		if burst <= 0 {
			burst = 1
		}
		lim = rate.NewLimiter(rate.Limit(float64(perMinute)/60.0), burst)
	}
	return &Limited{next: next, limiter: lim}
}

func (l *Limited) Name() string { return l.next.Name() }

// Send waits for a token, bounded by ctx, then delegates.
func (l *Limited) Send(ctx context.Context, channel string, alert Alert) error {
	if err := l.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("%s rate limit: %w", l.next.Name(), err)
	}
	return l.next.Send(ctx, channel, alert)
}

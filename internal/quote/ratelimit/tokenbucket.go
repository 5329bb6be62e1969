package ratelimit

import (
	"context"
	"errors"
	"time"

	"golang.org/x/time/rate"

	"tapeingest/internal/quote"
)

// TokenBucket allows bursts of up to burst calls, refilled at a steady rate.
type TokenBucket struct {
	lim *rate.Limiter
}

func NewTokenBucket(tokensPerSecond float64, burst int) *TokenBucket {
	if tokensPerSecond <= 0 {
		tokensPerSecond = 0.0000001
	}
	if burst <= 0 {
		burst = 1
	}
	// The bucket starts full.
	return &TokenBucket{lim: rate.NewLimiter(rate.Limit(tokensPerSecond), burst)}
}

// PerMinute builds a bucket from a requests-per-minute budget, the unit
// provider plans are sold in.
func PerMinute(rpm, burst int) *TokenBucket {
	return NewTokenBucket(float64(rpm)/60.0, burst)
}

// Wait blocks until one token is available or ctx is done. A canceled wait
// returns its token.
func (tb *TokenBucket) Wait(ctx context.Context) error {
	r := tb.lim.Reserve()
	if !r.OK() {
		return errors.New("ratelimit: burst is zero")
	}
	d := r.Delay()
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		r.Cancel()
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// TokenBucketSource wraps a Source and gates calls using a token bucket.
type TokenBucketSource struct {
	S  quote.Source
	TB *TokenBucket
}

func (t *TokenBucketSource) Name() string { return t.S.Name() }

func (t *TokenBucketSource) TimeSeries(ctx context.Context, req quote.Request) (quote.Series, error) {
	if t.TB != nil {
		if err := t.TB.Wait(ctx); err != nil {
			return quote.Series{}, err
		}
	}
	return t.S.TimeSeries(ctx, req)
}

// Wrap applies the limiter the settings ask for: a token bucket when rpm is
// set, otherwise a minimum interval, otherwise s unchanged.
func Wrap(s quote.Source, rpm, burst int, minInterval time.Duration) quote.Source {
	switch {
	case rpm > 0:
		if burst <= 0 {
			burst = 1
		}
		return &TokenBucketSource{S: s, TB: PerMinute(rpm, burst)}
	case minInterval > 0:
		return &MinInterval{S: s, Interval: minInterval}
	default:
		return s
	}
}

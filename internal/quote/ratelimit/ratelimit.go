package ratelimit

import (
	"context"
	"sync"
	"time"

	"tapeingest/internal/quote"
)

// MinInterval wraps a source and enforces a minimum time between request starts.
// Concurrent calls each reserve the next free slot, or return early if the
// context is canceled.
type MinInterval struct {
	S        quote.Source
	Interval time.Duration

	mu   sync.Mutex
	next time.Time
}

func (m *MinInterval) Name() string { return m.S.Name() }

func (m *MinInterval) TimeSeries(ctx context.Context, req quote.Request) (quote.Series, error) {
	if m.Interval > 0 {
		m.mu.Lock()
		now := time.Now()
		slot := m.next
		if slot.Before(now) {
			slot = now
		}
		m.next = slot.Add(m.Interval)
		m.mu.Unlock()

		if wait := time.Until(slot); wait > 0 {
			t := time.NewTimer(wait)
			defer t.Stop()
			select {
			case <-ctx.Done():
				return quote.Series{}, ctx.Err()
			case <-t.C:
			}
		}
	}
	return m.S.TimeSeries(ctx, req)
}

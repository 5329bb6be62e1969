package cache

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"tapeingest/internal/quote"
)

// entry stores one cached series with expiry.
type entry struct {
	expiresAt time.Time
	series    quote.Series
}

// defaultFetchTimeout bounds a shared upstream call when FetchTimeout is unset.
const defaultFetchTimeout = 2 * time.Minute

// Source caches series per request for a TTL.
// Concurrent identical requests share one upstream call. The shared call is
// detached from any single caller's cancellation; each caller stops waiting
// when its own context ends.
type Source struct {
	S        quote.Source
	TTL      time.Duration
	MaxItems int
	// ServeStale returns an expired entry when the upstream call fails.
	ServeStale bool
	// FetchTimeout bounds a shared upstream call. Zero means two minutes.
	FetchTimeout time.Duration

	mu    sync.RWMutex
	items map[quote.Request]entry
	sf    singleflight.Group

	now func() time.Time
}

func (c *Source) Name() string { return c.S.Name() }

// TimeSeries returns the cached series for req when valid, otherwise fetches it.
func (c *Source) TimeSeries(ctx context.Context, req quote.Request) (quote.Series, error) {
	if c.TTL <= 0 {
		return c.S.TimeSeries(ctx, req)
	}

	now := c.clock()
	c.mu.RLock()
	e, ok := c.items[req]
	c.mu.RUnlock()
	if ok && now.Before(e.expiresAt) {
		return cloneSeries(e.series), nil
	}

	key := fmt.Sprintf("%s|%s|%d", req.Ticker, req.Interval, req.OutputSize)
	ch := c.sf.DoChan(key, func() (any, error) {
		return c.fetch(ctx, req)
	})

	var res singleflight.Result
	select {
	case <-ctx.Done():
		return quote.Series{}, ctx.Err()
	case res = <-ch:
	}
	if res.Err != nil {
		if c.ServeStale && ok {
			return cloneSeries(e.series), nil
		}
		return quote.Series{}, res.Err
	}
	return cloneSeries(res.Val.(quote.Series)), nil
}

// fetch calls upstream on a context that keeps ctx's values but not its
// cancellation, and stores a successful result.
func (c *Source) fetch(ctx context.Context, req quote.Request) (quote.Series, error) {
	timeout := c.FetchTimeout
	if timeout <= 0 {
		timeout = defaultFetchTimeout
	}
	fctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), timeout)
	defer cancel()

	series, err := c.S.TimeSeries(fctx, req)
	if err != nil {
		return quote.Series{}, err
	}

	c.mu.Lock()
	if c.items == nil {
		c.items = make(map[quote.Request]entry)
	}
	c.items[req] = entry{expiresAt: c.clock().Add(c.TTL), series: series}
	c.evictLocked()
	c.mu.Unlock()

	return series, nil
}

// evictLocked caps the cache size: expired entries go first, then arbitrary ones.
func (c *Source) evictLocked() {
	if c.MaxItems <= 0 || len(c.items) <= c.MaxItems {
		return
	}
	now := c.clock()
	for k, v := range c.items {
		if len(c.items) <= c.MaxItems {
			return
		}
		if now.After(v.expiresAt) {
			delete(c.items, k)
		}
	}
	for k := range c.items {
		if len(c.items) <= c.MaxItems {
			return
		}
		delete(c.items, k)
	}
}

// Len reports the number of cached series, expired ones included.
func (c *Source) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}

func (c *Source) clock() time.Time {
	if c.now != nil {
		return c.now()
	}
	return time.Now()
}

// cloneSeries copies the record slice so callers may reorder it in place.
func cloneSeries(s quote.Series) quote.Series {
	out := s
	out.Records = append([]quote.Record(nil), s.Records...)
	return out
}

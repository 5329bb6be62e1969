package pipeline

import (
	"fmt"
	"time"

	"tapeingest/internal/config"
	"tapeingest/internal/loader"
	"tapeingest/internal/quote"
	"tapeingest/internal/quote/cache"
	"tapeingest/internal/quote/ratelimit"
	"tapeingest/internal/quote/twelvedata"
	"tapeingest/internal/quote/twelvedataadapter"
	"tapeingest/internal/timestamp"
)

// NewSource builds the provider stack: client, adapter, rate limiter and,
// when a TTL is configured, the cache in front of everything.
func NewSource(p config.Provider, hc twelvedata.HTTPClient) (quote.Source, error) {
	opts := []twelvedata.ClientOption{twelvedata.WithHTTPClient(hc)}
	if p.Endpoint != "" {
		opts = append(opts, twelvedata.WithBaseURL(p.Endpoint))
	}
	client, err := twelvedata.NewClient(p.APIKey, opts...)
	if err != nil {
		return nil, fmt.Errorf("twelvedata client: %w", err)
	}

	var src quote.Source = twelvedataadapter.New(twelvedataadapter.Config{
		Name:     p.Name,
		Timezone: p.Timezone,
		Order:    p.Order,
	}, client)
	src = ratelimit.Wrap(src, p.MaxRequestsPerMinute, p.Burst, time.Duration(p.MinRequestIntervalSec)*time.Second)
	if p.CacheTTLSeconds > 0 {
		src = &cache.Source{
			S:            src,
			TTL:          time.Duration(p.CacheTTLSeconds) * time.Second,
			MaxItems:     p.CacheMaxItems,
			ServeStale:   true,
			FetchTimeout: time.Duration(p.RequestTimeoutSec)*time.Second + time.Minute,
		}
	}
	return src, nil
}

// LoaderConfig maps provider settings onto the loader.
func LoaderConfig(p config.Provider) (loader.Config, error) {
	loc, err := p.LoadLocation()
	if err != nil {
		return loader.Config{}, err
	}
	return loader.Config{
		Interval:       p.Interval,
		OutputSize:     p.OutputSize,
		MaxConcurrency: p.MaxConcurrency,
		Normalizer:     timestamp.Normalizer{Location: loc},
	}, nil
}

package twelvedataadapter

import (
	"context"
	"strings"

	"tapeingest/internal/quote"
	"tapeingest/internal/quote/twelvedata"
)

// TimeSeriesGetter is the part of the Twelve Data client the adapter needs.
type TimeSeriesGetter interface {
	GetTimeSeries(ctx context.Context, params twelvedata.TimeSeriesParams, opts ...twelvedata.ClientOption) (*twelvedata.TimeSeries, error)
}

type Config struct {
	Name string // display name, default: TwelveData
	// Timezone is forwarded to the provider; empty keeps exchange-local time.
	Timezone string
	// Order is "asc" or "desc". Empty means the provider default, newest first.
	Order string
}

// Adapter exposes the Twelve Data client as a quote.Source.
type Adapter struct {
	cfg    Config
	client TimeSeriesGetter
}

func New(cfg Config, client TimeSeriesGetter) *Adapter {
	if cfg.Name == "" {
		cfg.Name = "TwelveData"
	}
	cfg.Order = strings.ToLower(strings.TrimSpace(cfg.Order))
	return &Adapter{cfg: cfg, client: client}
}

func (a *Adapter) Name() string { return a.cfg.Name }

// TimeSeries fetches one series and declares the order the provider used.
func (a *Adapter) TimeSeries(ctx context.Context, req quote.Request) (quote.Series, error) {
	ts, err := a.client.GetTimeSeries(ctx, twelvedata.TimeSeriesParams{
		Symbol:     req.Ticker,
		Interval:   req.Interval,
		OutputSize: req.OutputSize,
		Timezone:   a.cfg.Timezone,
		Order:      a.cfg.Order,
	})
	if err != nil {
		return quote.Series{}, err
	}

	order := quote.NewestFirst
	if a.cfg.Order == "asc" {
		order = quote.OldestFirst
	}

	records := make([]quote.Record, 0, len(ts.Values))
	for _, v := range ts.Values {
		records = append(records, quote.Record{
			DateTime: v.Datetime,
			Close:    v.Close,
			Volume:   v.Volume,
		})
	}
	return quote.Series{Ticker: req.Ticker, Order: order, Records: records}, nil
}

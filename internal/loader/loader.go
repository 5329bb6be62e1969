// Package loader turns provider series into ascending, normalized tick streams.
package loader

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"tapeingest/internal/errs"
	"tapeingest/internal/logging"
	"tapeingest/internal/quote"
	"tapeingest/internal/tape"
	"tapeingest/internal/timestamp"
)

//go:generate mockgen -package=loader_test -destination=mock_source_test.go tapeingest/internal/quote Source

// Config controls what is requested per instrument and how fetches are scheduled.
type Config struct {
	Interval   string
	OutputSize int
	// MaxConcurrency bounds in-flight fetches; <= 0 means one per instrument.
	MaxConcurrency int
	// Normalizer converts provider datetimes; the zero value reads them as UTC.
	Normalizer timestamp.Normalizer
}

type Loader struct {
	src quote.Source
	cfg Config
	log *slog.Logger
}

func New(src quote.Source, cfg Config, log *slog.Logger) *Loader {
	return &Loader{src: src, cfg: cfg, log: logging.Nop(log)}
}

// Load fetches every instrument and returns one stream per instrument in rank
// order, rank being the instrument's index. The first failure cancels the
// remaining fetches and is returned.
func (l *Loader) Load(ctx context.Context, instruments []quote.Instrument) ([]tape.Stream, error) {
	streams := make([]tape.Stream, len(instruments))

	g, gctx := errgroup.WithContext(ctx)
	if l.cfg.MaxConcurrency > 0 {
		g.SetLimit(l.cfg.MaxConcurrency)
	}
	for i, inst := range instruments {
		g.Go(func() error {
			s, err := l.LoadOne(gctx, inst, i)
			if err != nil {
				return err
			}
			streams[i] = s
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return streams, nil
}

// LoadOne fetches and normalizes a single instrument.
func (l *Loader) LoadOne(ctx context.Context, inst quote.Instrument, rank int) (tape.Stream, error) {
	start := time.Now()
	series, err := l.src.TimeSeries(ctx, quote.Request{
		Ticker:     inst.Ticker,
		Interval:   l.cfg.Interval,
		OutputSize: l.cfg.OutputSize,
	})
	if err != nil {
		fe := &errs.FetchError{Instrument: describe(inst), Err: err}
		var raw interface{ RawPayload() string }
		if errors.As(err, &raw) {
			fe.Payload = raw.RawPayload()
		}
		return tape.Stream{}, fe
	}

	ticks, err := l.normalize(inst, series)
	if err != nil {
		return tape.Stream{}, fmt.Errorf("instrument %s: %w", describe(inst), err)
	}
	if err := tape.CheckAscending(inst.Label, ticks); err != nil {
		return tape.Stream{}, err
	}

	l.log.Info("instrument loaded",
		"label", inst.Label,
		"ticker", inst.Ticker,
		"rank", rank,
		"source", l.src.Name(),
		"order", series.Order.String(),
		"ticks", len(ticks),
		"elapsed", time.Since(start),
	)
	return tape.Stream{Label: inst.Label, Rank: rank, Ticks: ticks}, nil
}

// normalize converts records to ticks, oldest first. A newest-first series is
// reversed here; the caller still verifies the result is ascending, since the
// declared order is only the provider's convention.
func (l *Loader) normalize(inst quote.Instrument, series quote.Series) ([]tape.Tick, error) {
	n := len(series.Records)
	ticks := make([]tape.Tick, n)
	for i, rec := range series.Records {
		ts, err := l.cfg.Normalizer.Normalize(rec.DateTime)
		if err != nil {
			return nil, err
		}
		price, err := parsePrice(rec.Close)
		if err != nil {
			return nil, err
		}
		vol, err := parseVolume(rec.Volume)
		if err != nil {
			return nil, err
		}

		j := i
		if series.Order == quote.NewestFirst {
			j = n - 1 - i
		}
		ticks[j] = tape.Tick{Timestamp: ts, Label: inst.Label, Price: price, Volume: vol}
	}
	return ticks, nil
}

func parsePrice(n quote.Number) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(n.String())
	if err != nil {
		return decimal.Decimal{}, &errs.ParseError{Field: "close", Input: n.String(), Err: err}
	}
	return d, nil
}

// parseVolume accepts integer text. An empty value is zero: the provider omits
// volume for FX pairs and indices.
func parseVolume(n quote.Number) (int64, error) {
	s := n.String()
	if s == "" {
		return 0, nil
	}
	if v, err := strconv.ParseInt(s, 10, 64); err == nil {
		return v, nil
	}
	d, err := decimal.NewFromString(s)
	if err != nil || !d.IsInteger() || !d.BigInt().IsInt64() {
		return 0, &errs.ParseError{Field: "volume", Input: s, Err: err}
	}
	return d.IntPart(), nil
}

func describe(inst quote.Instrument) string {
	if inst.Ticker == "" || inst.Ticker == inst.Label {
		return inst.Label
	}
	return fmt.Sprintf("%s (%s)", inst.Label, inst.Ticker)
}

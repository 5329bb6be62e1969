// Package pipeline wires loading, merging and writing into one run.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"tapeingest/internal/aggregate"
	"tapeingest/internal/config"
	"tapeingest/internal/loader"
	"tapeingest/internal/logging"
	"tapeingest/internal/quote"
	"tapeingest/internal/quote/twelvedata"
	"tapeingest/internal/tape"
)

// StreamLoader produces one ascending stream per instrument, in rank order.
//
//go:generate mockgen -package=pipeline_test -destination=mock_stream_loader_test.go -source=pipeline.go StreamLoader
type StreamLoader interface {
	Load(ctx context.Context, instruments []quote.Instrument) ([]tape.Stream, error)
}

type Config struct {
	Instruments []quote.Instrument
	Strategy    tape.Strategy
	// Output is the tape destination; it is replaced only by a complete run.
	Output string
}

type Pipeline struct {
	loader StreamLoader
	cfg    Config
	log    *slog.Logger
}

// Result describes a completed run.
type Result struct {
	Path      string
	Ticks     int
	Summaries []aggregate.Summary
	Elapsed   time.Duration
}

func New(l StreamLoader, cfg Config, log *slog.Logger) *Pipeline {
	return &Pipeline{loader: l, cfg: cfg, log: logging.Nop(log)}
}

// FromConfig assembles the provider stack and loader for cfg.
func FromConfig(cfg config.Config, hc twelvedata.HTTPClient, log *slog.Logger) (*Pipeline, error) {
	strategy, err := tape.ParseStrategy(cfg.Output.Strategy)
	if err != nil {
		return nil, err
	}
	src, err := NewSource(cfg.Provider, hc)
	if err != nil {
		return nil, err
	}
	lcfg, err := LoaderConfig(cfg.Provider)
	if err != nil {
		return nil, err
	}
	l := loader.New(src, lcfg, log)
	return New(l, Config{
		Instruments: cfg.Instruments,
		Strategy:    strategy,
		Output:      cfg.Output.Path,
	}, log), nil
}

// Build loads every instrument and merges them in memory.
func (p *Pipeline) Build(ctx context.Context, instruments []quote.Instrument) (tape.Tape, error) {
	streams, err := p.loader.Load(ctx, instruments)
	if err != nil {
		return nil, fmt.Errorf("load: %w", err)
	}
	merged, err := tape.Merge(streams, p.cfg.Strategy)
	if err != nil {
		return nil, fmt.Errorf("merge: %w", err)
	}
	return merged, nil
}

// Run builds the tape for the configured instruments and writes it to Output.
// On any error the destination is left as it was.
func (p *Pipeline) Run(ctx context.Context) (Result, error) {
	start := time.Now()

	merged, err := p.Build(ctx, p.cfg.Instruments)
	if err != nil {
		return Result{}, err
	}
	n, err := tape.WriteFile(p.cfg.Output, merged.All())
	if err != nil {
		return Result{}, fmt.Errorf("write: %w", err)
	}

	labels := make([]string, len(p.cfg.Instruments))
	for i, inst := range p.cfg.Instruments {
		labels[i] = inst.Label
	}
	res := Result{
		Path:      p.cfg.Output,
		Ticks:     n,
		Summaries: aggregate.Ordered(aggregate.ByLabel(merged.All()), labels),
		Elapsed:   time.Since(start),
	}
	p.log.Info("tape written",
		slog.String("path", res.Path),
		slog.Int("ticks", res.Ticks),
		slog.Int("instruments", len(p.cfg.Instruments)),
		slog.String("strategy", p.cfg.Strategy.String()),
		slog.Duration("elapsed", res.Elapsed),
	)
	return res, nil
}

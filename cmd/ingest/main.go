package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"tapeingest/internal/config"
	"tapeingest/internal/httpx"
	"tapeingest/internal/logging"
	"tapeingest/internal/pipeline"
)

func main() {
	os.Exit(run())
}

func run() int {
	var (
		configPath  string
		out         string
		instruments string
		interval    string
		outputSize  int
		strategy    string
		timeout     int
	)
	flag.StringVar(&configPath, "config", os.Getenv("CONFIG_FILE"), "path to config.json (optional)")
	flag.StringVar(&out, "out", "", "tape destination (overrides output.path)")
	flag.StringVar(&instruments, "instruments", "", "TICKER:LABEL,... in rank order (overrides instruments)")
	flag.StringVar(&interval, "interval", "", "bar interval, e.g. 1min (overrides provider.interval)")
	flag.IntVar(&outputSize, "outputsize", 0, "rows per instrument (overrides provider.output_size)")
	flag.StringVar(&strategy, "strategy", "", "merge strategy: heap or sort (overrides output.strategy)")
	flag.IntVar(&timeout, "timeout", 0, "whole-run timeout in seconds; 0 disables")
	flag.Parse()

	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		return 2
	}
	if err := applyFlags(&cfg, out, instruments, interval, outputSize, strategy); err != nil {
		fmt.Fprintf(os.Stderr, "flags: %v\n", err)
		return 2
	}

	log, sync, err := logging.New(cfg.Log.Production, cfg.Log.Level)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		return 2
	}
	defer func() { _ = sync() }()

	if cfg.Provider.APIKey == "" {
		log.Warn("no provider API key set; requests will likely be rejected")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, time.Duration(timeout)*time.Second)
		defer cancel()
	}

	hc := httpx.New(time.Duration(cfg.Provider.RequestTimeoutSec) * time.Second)
	p, err := pipeline.FromConfig(cfg, hc, log)
	if err != nil {
		log.Error("setup failed", slog.Any("error", err))
		return 1
	}

	res, err := p.Run(ctx)
	if err != nil {
		log.Error("ingest failed", slog.Any("error", err))
		return 1
	}

	b, _ := json.MarshalIndent(struct {
		Path      string `json:"path"`
		Ticks     int    `json:"ticks"`
		Summaries any    `json:"instruments"`
	}{res.Path, res.Ticks, res.Summaries}, "", "  ")
	fmt.Println(string(b))
	return 0
}

func applyFlags(cfg *config.Config, out, instruments, interval string, outputSize int, strategy string) error {
	if out != "" {
		cfg.Output.Path = out
	}
	if instruments != "" {
		parsed, err := config.ParseInstruments(instruments)
		if err != nil {
			return err
		}
		cfg.Instruments = parsed
	}
	if interval != "" {
		cfg.Provider.Interval = interval
	}
	if outputSize != 0 {
		cfg.Provider.OutputSize = outputSize
	}
	if strategy != "" {
		cfg.Output.Strategy = strategy
	}
	return cfg.Validate()
}

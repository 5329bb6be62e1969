package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"

	"tapeingest/internal/logging"
	"tapeingest/internal/synth"
	"tapeingest/internal/tape"
)

func main() {
	def := synth.Default()
	var (
		out        string
		production bool
		cfg        = def
	)
	flag.StringVar(&out, "out", "data/tick_data.csv", "tape destination")
	flag.IntVar(&cfg.Pairs, "pairs", def.Pairs, "ticks per instrument")
	flag.Uint64Var(&cfg.Seed, "seed", def.Seed, "random seed")
	flag.Int64Var(&cfg.Start, "start", def.Start, "first timestamp in ns since epoch")
	flag.StringVar(&cfg.LabelA, "label-a", def.LabelA, "first instrument label")
	flag.StringVar(&cfg.LabelB, "label-b", def.LabelB, "second instrument label")
	flag.Float64Var(&cfg.PriceA, "price-a", def.PriceA, "opening price of the first instrument")
	flag.Float64Var(&cfg.PriceB, "price-b", def.PriceB, "opening price of the second instrument")
	flag.BoolVar(&production, "json-log", false, "log as JSON")
	flag.Parse()

	log, sync, err := logging.New(production, "info")
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(2)
	}
	defer func() { _ = sync() }()

	if err := generate(out, cfg); err != nil {
		log.Error("generate failed", slog.Any("error", err))
		_ = sync()
		os.Exit(1)
	}
	log.Info("synthetic tape written", slog.String("path", out), slog.Int("ticks", 2*cfg.Pairs), slog.Uint64("seed", cfg.Seed))
}

func generate(out string, cfg synth.Config) error {
	streams, err := synth.Generate(cfg)
	if err != nil {
		return err
	}
	m, err := tape.NewMerger(streams)
	if err != nil {
		return err
	}
	_, err = tape.WriteFile(out, m.All())
	return err
}

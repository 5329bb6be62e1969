// Package synth generates a deterministic, mean-reverting two-instrument tape
// for exercising downstream consumers without a provider.
package synth

import (
	"errors"
	"math/rand/v2"

	"github.com/shopspring/decimal"

	"tapeingest/internal/tape"
)

// DefaultStart is 2022-10-07 16:00:00 UTC in nanoseconds.
const DefaultStart int64 = 1665158400000000000

const (
	meanReversion = 0.995
	priceFloor    = 50.0
	priceCeiling  = 150.0
	pricePlaces   = 4
)

type Config struct {
	Pairs  int
	Seed   uint64
	Start  int64
	LabelA string
	LabelB string
	// PriceA and PriceB are the opening prices; their difference is the spread mean.
	PriceA float64
	PriceB float64
}

func Default() Config {
	return Config{
		Pairs:  100_000,
		Seed:   42,
		Start:  DefaultStart,
		LabelA: "SYM_A",
		LabelB: "SYM_B",
		PriceA: 100.0,
		PriceB: 120.0,
	}
}

// Generate returns two streams of cfg.Pairs ticks each. Pair i puts A at
// Start+2i and B one nanosecond later, so the merged tape alternates A, B.
func Generate(cfg Config) ([]tape.Stream, error) {
	if cfg.Pairs < 0 {
		return nil, errors.New("synth: pairs must be non-negative")
	}
	if cfg.LabelA == "" || cfg.LabelB == "" || cfg.LabelA == cfg.LabelB {
		return nil, errors.New("synth: two distinct labels are required")
	}

	rng := rand.New(rand.NewPCG(cfg.Seed, cfg.Seed^0x9e3779b97f4a7c15))
	a := tape.Stream{Label: cfg.LabelA, Rank: 0, Ticks: make([]tape.Tick, 0, cfg.Pairs)}
	b := tape.Stream{Label: cfg.LabelB, Rank: 1, Ticks: make([]tape.Tick, 0, cfg.Pairs)}

	priceB := cfg.PriceB
	spreadMean := cfg.PriceA - cfg.PriceB
	spread := spreadMean
	ts := cfg.Start

	for i := range cfg.Pairs {
		spread = spread*meanReversion + spreadMean*(1-meanReversion)
		spread += rng.NormFloat64() * 0.08
		if rng.Float64() < 0.1 {
			spread += (rng.Float64() - 0.5) * 0.5
		}

		priceB += rng.NormFloat64() * 0.01
		priceA := priceB + spread + rng.NormFloat64()*0.01*0.5

		priceA = clamp(priceA)
		priceB = clamp(priceB)

		a.Ticks = append(a.Ticks, tape.Tick{
			Timestamp: ts,
			Label:     cfg.LabelA,
			Price:     decimal.NewFromFloat(priceA).Round(pricePlaces),
			Volume:    int64(50 + (i*17+13)%150),
		})
		b.Ticks = append(b.Ticks, tape.Tick{
			Timestamp: ts + 1,
			Label:     cfg.LabelB,
			Price:     decimal.NewFromFloat(priceB).Round(pricePlaces),
			Volume:    int64(50 + (i*23+7)%150),
		})
		ts += 2
	}
	return []tape.Stream{a, b}, nil
}

func clamp(p float64) float64 {
	return min(max(p, priceFloor), priceCeiling)
}

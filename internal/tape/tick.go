// Package tape holds the merged, globally time-ordered tick sequence and its
// on-disk CSV form.
package tape

import (
	"fmt"
	"iter"
	"slices"
	"strings"

	"github.com/shopspring/decimal"
)

// Tick is one normalized observation for one instrument.
type Tick struct {
	// Timestamp is nanoseconds since the Unix epoch.
	Timestamp int64
	Label     string
	Price     decimal.Decimal
	Volume    int64
}

// Stream is one instrument's ticks, ascending by Timestamp.
// Rank is the instrument's configuration position and breaks timestamp ties.
type Stream struct {
	Label string
	Rank  int
	Ticks []Tick
}

// Tape is ordered by Timestamp, then by the rank of each tick's instrument.
type Tape []Tick

// All yields the ticks in order.
func (t Tape) All() iter.Seq[Tick] { return slices.Values(t) }

// Strategy selects a merge implementation. Both produce identical tapes.
type Strategy int

const (
	// StrategyHeap is the streaming K-way merge.
	StrategyHeap Strategy = iota
	// StrategySort concatenates every stream and sorts stably.
	StrategySort
)

func (s Strategy) String() string {
	switch s {
	case StrategyHeap:
		return "heap"
	case StrategySort:
		return "sort"
	default:
		return fmt.Sprintf("Strategy(%d)", int(s))
	}
}

// ParseStrategy accepts "heap" or "sort"; empty means heap.
func ParseStrategy(s string) (Strategy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "heap":
		return StrategyHeap, nil
	case "sort":
		return StrategySort, nil
	default:
		return 0, fmt.Errorf("unknown merge strategy %q", s)
	}
}

package tape

import (
	"cmp"
	"container/heap"
	"fmt"
	"iter"
	"slices"

	"tapeingest/internal/errs"
)

// Merge combines streams into one tape using the given strategy.
// Streams must be ascending and carry distinct ranks; violations are rejected
// with a PreconditionError rather than re-sorted.
func Merge(streams []Stream, s Strategy) (Tape, error) {
	switch s {
	case StrategyHeap:
		return MergeHeap(streams)
	case StrategySort:
		return MergeSort(streams)
	default:
		return nil, fmt.Errorf("unknown merge strategy %v", s)
	}
}

// CheckAscending reports the first index where ticks go back in time.
// Equal timestamps are allowed and keep their order.
func CheckAscending(label string, ticks []Tick) error {
	for i := 1; i < len(ticks); i++ {
		if ticks[i].Timestamp < ticks[i-1].Timestamp {
			return &errs.PreconditionError{
				Instrument: label,
				Index:      i,
				Reason:     fmt.Sprintf("timestamp %d is before previous %d", ticks[i].Timestamp, ticks[i-1].Timestamp),
			}
		}
	}
	return nil
}

func validate(streams []Stream) (int, error) {
	total := 0
	byRank := make(map[int]string, len(streams))
	for _, s := range streams {
		if other, dup := byRank[s.Rank]; dup {
			return 0, &errs.PreconditionError{
				Instrument: s.Label,
				Index:      -1,
				Reason:     fmt.Sprintf("rank %d already used by %s", s.Rank, other),
			}
		}
		byRank[s.Rank] = s.Label
		if err := CheckAscending(s.Label, s.Ticks); err != nil {
			return 0, err
		}
		total += len(s.Ticks)
	}
	return total, nil
}

// MergeSort materializes every tick and sorts by (timestamp, rank). The sort is
// stable, so ticks of one instrument sharing a timestamp keep arrival order.
func MergeSort(streams []Stream) (Tape, error) {
	total, err := validate(streams)
	if err != nil {
		return nil, err
	}

	type ranked struct {
		tick Tick
		rank int
	}
	all := make([]ranked, 0, total)
	for _, s := range streams {
		for _, t := range s.Ticks {
			all = append(all, ranked{tick: t, rank: s.Rank})
		}
	}
	slices.SortStableFunc(all, func(a, b ranked) int {
		if c := cmp.Compare(a.tick.Timestamp, b.tick.Timestamp); c != 0 {
			return c
		}
		return cmp.Compare(a.rank, b.rank)
	})

	out := make(Tape, len(all))
	for i, r := range all {
		out[i] = r.tick
	}
	return out, nil
}

// MergeHeap drains a Merger into a tape.
func MergeHeap(streams []Stream) (Tape, error) {
	m, err := NewMerger(streams)
	if err != nil {
		return nil, err
	}
	out := make(Tape, 0, m.Len())
	for t := range m.All() {
		out = append(out, t)
	}
	return out, nil
}

// Merger is a streaming K-way merge keyed by the head of each stream.
// It costs O(log K) per tick and holds one cursor per non-empty stream.
type Merger struct {
	h         cursorHeap
	remaining int
}

// NewMerger validates streams and positions a cursor on each.
func NewMerger(streams []Stream) (*Merger, error) {
	total, err := validate(streams)
	if err != nil {
		return nil, err
	}
	m := &Merger{h: make(cursorHeap, 0, len(streams)), remaining: total}
	for _, s := range streams {
		if len(s.Ticks) > 0 {
			m.h = append(m.h, &cursor{ticks: s.Ticks, rank: s.Rank})
		}
	}
	heap.Init(&m.h)
	return m, nil
}

// Len is the number of ticks not yet returned.
func (m *Merger) Len() int { return m.remaining }

// Next returns the next tick in tape order.
func (m *Merger) Next() (Tick, bool) {
	if len(m.h) == 0 {
		return Tick{}, false
	}
	c := m.h[0]
	t := c.ticks[c.pos]
	c.pos++
	if c.pos == len(c.ticks) {
		heap.Pop(&m.h)
	} else {
		heap.Fix(&m.h, 0)
	}
	m.remaining--
	return t, true
}

// All yields the remaining ticks.
func (m *Merger) All() iter.Seq[Tick] {
	return func(yield func(Tick) bool) {
		for {
			t, ok := m.Next()
			if !ok || !yield(t) {
				return
			}
		}
	}
}

type cursor struct {
	ticks []Tick
	pos   int
	rank  int
}

type cursorHeap []*cursor

func (h cursorHeap) Len() int { return len(h) }

func (h cursorHeap) Less(i, j int) bool {
	a, b := h[i].ticks[h[i].pos].Timestamp, h[j].ticks[h[j].pos].Timestamp
	if a != b {
		return a < b
	}
	return h[i].rank < h[j].rank
}

func (h cursorHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *cursorHeap) Push(x any) { *h = append(*h, x.(*cursor)) }

func (h *cursorHeap) Pop() any {
	old := *h
	n := len(old)
	c := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return c
}

package tape

import (
	"fmt"

	"tapeingest/internal/errs"
)

// Verify checks that ticks are non-decreasing in time and, when ranks is
// non-nil, that equal timestamps are ordered by ascending instrument rank.
func Verify(ticks []Tick, ranks map[string]int) error {
	for i := range ticks {
		if ranks != nil {
			if _, ok := ranks[ticks[i].Label]; !ok {
				return &errs.PreconditionError{Instrument: ticks[i].Label, Index: i, Reason: "label has no rank"}
			}
		}
		if i == 0 {
			continue
		}
		prev, cur := ticks[i-1], ticks[i]
		if cur.Timestamp < prev.Timestamp {
			return &errs.PreconditionError{
				Instrument: cur.Label,
				Index:      i,
				Reason:     fmt.Sprintf("timestamp %d is before previous %d", cur.Timestamp, prev.Timestamp),
			}
		}
		if ranks != nil && cur.Timestamp == prev.Timestamp && ranks[cur.Label] < ranks[prev.Label] {
			return &errs.PreconditionError{
				Instrument: cur.Label,
				Index:      i,
				Reason:     fmt.Sprintf("rank %d follows rank %d (%s) at timestamp %d", ranks[cur.Label], ranks[prev.Label], prev.Label, cur.Timestamp),
			}
		}
	}
	return nil
}

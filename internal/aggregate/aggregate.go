package aggregate

import (
	"iter"
	"slices"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"tapeingest/internal/tape"
	"tapeingest/internal/timestamp"
)

// Summary describes one instrument's ticks within a tape.
type Summary struct {
	Label     string          `json:"label"`
	Ticks     int             `json:"ticks"`
	FirstNS   int64           `json:"first_ns"`
	LastNS    int64           `json:"last_ns"`
	First     time.Time       `json:"first"`
	Last      time.Time       `json:"last"`
	OpenPrice decimal.Decimal `json:"open_price"`
	LastPrice decimal.Decimal `json:"last_price"`
	High      decimal.Decimal `json:"high"`
	Low       decimal.Decimal `json:"low"`
	Volume    int64           `json:"volume"`
}

// ByLabel collapses ticks into one Summary per label, sorted by label.
// The newest tick sets LastPrice; for equal timestamps the later input wins.
func ByLabel(ticks iter.Seq[tape.Tick]) []Summary {
	byLabel := make(map[string]*Summary)
	for t := range ticks {
		s, ok := byLabel[t.Label]
		if !ok {
			byLabel[t.Label] = &Summary{
				Label:     t.Label,
				Ticks:     1,
				FirstNS:   t.Timestamp,
				LastNS:    t.Timestamp,
				OpenPrice: t.Price,
				LastPrice: t.Price,
				High:      t.Price,
				Low:       t.Price,
				Volume:    t.Volume,
			}
			continue
		}
		s.Ticks++
		s.Volume += t.Volume
		if t.Timestamp < s.FirstNS {
			s.FirstNS, s.OpenPrice = t.Timestamp, t.Price
		}
		if t.Timestamp >= s.LastNS {
			s.LastNS, s.LastPrice = t.Timestamp, t.Price
		}
		if t.Price.GreaterThan(s.High) {
			s.High = t.Price
		}
		if t.Price.LessThan(s.Low) {
			s.Low = t.Price
		}
	}

	out := make([]Summary, 0, len(byLabel))
	for _, s := range byLabel {
		s.First, s.Last = timestamp.Time(s.FirstNS), timestamp.Time(s.LastNS)
		out = append(out, *s)
	}
	slices.SortFunc(out, func(a, b Summary) int { return strings.Compare(a.Label, b.Label) })
	return out
}

// Ordered reorders summaries to follow labels; labels without a summary are
// skipped and summaries for unlisted labels go last, by label.
func Ordered(summaries []Summary, labels []string) []Summary {
	pos := make(map[string]int, len(labels))
	for i, l := range labels {
		pos[l] = i
	}
	out := slices.Clone(summaries)
	slices.SortStableFunc(out, func(a, b Summary) int {
		pa, oka := pos[a.Label]
		pb, okb := pos[b.Label]
		switch {
		case oka && okb:
			return pa - pb
		case oka:
			return -1
		case okb:
			return 1
		default:
			return strings.Compare(a.Label, b.Label)
		}
	})
	return out
}

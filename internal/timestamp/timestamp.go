package timestamp

import (
	"errors"
	"math"
	"strings"
	"time"

	"tapeingest/internal/errs"
)

const (
	// DateTimeLayout is the provider's intraday format, e.g. "2023-11-20 15:30:00".
	DateTimeLayout = "2006-01-02 15:04:05"
	// DateLayout is used by daily and coarser intervals.
	DateLayout = "2006-01-02"

	nanosPerSecond = int64(1_000_000_000)
)

var errOutOfRange = errors.New("outside int64 nanosecond range")

// Normalizer converts provider date/time text into nanoseconds since the Unix epoch.
// A nil Location means UTC: the text carries no zone, so it is read naively.
type Normalizer struct {
	Location *time.Location
}

// Normalize parses text in UTC. See Normalizer.Normalize.
func Normalize(text string) (int64, error) {
	return Normalizer{}.Normalize(text)
}

// Normalize returns whole seconds scaled by 1e9 using integer math only.
func (n Normalizer) Normalize(text string) (int64, error) {
	loc := n.Location
	if loc == nil {
		loc = time.UTC
	}

	var layout string
	switch len(text) {
	case len(DateTimeLayout):
		layout = DateTimeLayout
	case len(DateLayout):
		layout = DateLayout
	default:
		return 0, &errs.ParseError{Field: "datetime", Input: text}
	}
	if strings.TrimSpace(text) != text {
		return 0, &errs.ParseError{Field: "datetime", Input: text}
	}

	t, err := time.ParseInLocation(layout, text, loc)
	if err != nil {
		return 0, &errs.ParseError{Field: "datetime", Input: text, Err: err}
	}

	sec := t.Unix()
	if sec > math.MaxInt64/nanosPerSecond || sec < math.MinInt64/nanosPerSecond {
		return 0, &errs.ParseError{Field: "datetime", Input: text, Err: errOutOfRange}
	}
	return sec * nanosPerSecond, nil
}

// Time converts a nanosecond epoch value back to a UTC time.
func Time(ns int64) time.Time {
	return time.Unix(0, ns).UTC()
}

package quote

import (
	"context"
	"encoding/json"
	"strings"
)

// Instrument pairs a provider ticker with the stable label written to the tape.
// An instrument's position in the configured list is its rank.
type Instrument struct {
	Ticker string `json:"ticker"`
	Label  string `json:"label"`
}

// Request identifies one time series at the provider.
type Request struct {
	Ticker     string
	Interval   string
	OutputSize int
}

// Order is the time direction a source delivers records in.
type Order int

const (
	// NewestFirst is the provider's native convention for time_series.
	NewestFirst Order = iota
	OldestFirst
)

func (o Order) String() string {
	if o == OldestFirst {
		return "oldest-first"
	}
	return "newest-first"
}

// Record is one sample as received from the provider.
// Close and Volume keep the provider's text so nothing is rounded before parsing.
type Record struct {
	DateTime string `json:"datetime"`
	Close    Number `json:"close"`
	Volume   Number `json:"volume"`
}

// Series is the raw result of one request.
type Series struct {
	Ticker  string
	Order   Order
	Records []Record
}

// Source fetches raw series from a quote provider.
type Source interface {
	Name() string
	TimeSeries(ctx context.Context, req Request) (Series, error)
}

// Number holds a numeric field that providers send either as a JSON string or a JSON number.
type Number string

func (n *Number) UnmarshalJSON(b []byte) error {
	s := strings.TrimSpace(string(b))
	if s == "null" {
		*n = ""
		return nil
	}
	if strings.HasPrefix(s, `"`) {
		var v string
		if err := json.Unmarshal(b, &v); err != nil {
			return err
		}
		*n = Number(strings.TrimSpace(v))
		return nil
	}
	var v json.Number
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	*n = Number(v.String())
	return nil
}

func (n Number) String() string { return string(n) }

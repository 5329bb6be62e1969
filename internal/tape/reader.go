package tape

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"iter"
	"os"
	"strconv"

	"github.com/shopspring/decimal"

	"tapeingest/internal/errs"
)

// Reader parses the CSV form written by Encode.
type Reader struct {
	r    *csv.Reader
	line int
}

func NewReader(r io.Reader) *Reader {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = 4
	cr.ReuseRecord = true
	return &Reader{r: cr}
}

// Read returns the next tick, or io.EOF when the input is exhausted.
func (r *Reader) Read() (Tick, error) {
	rec, err := r.r.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return Tick{}, io.EOF
		}
		return Tick{}, &errs.ParseError{Field: "record", Input: fmt.Sprintf("line %d", r.line+1), Err: err}
	}
	r.line++

	ts, err := strconv.ParseInt(rec[0], 10, 64)
	if err != nil {
		return Tick{}, &errs.ParseError{Field: "timestamp_ns", Input: rec[0], Err: err}
	}
	if rec[1] == "" {
		return Tick{}, &errs.ParseError{Field: "instrument_label", Input: fmt.Sprintf("line %d", r.line)}
	}
	price, err := decimal.NewFromString(rec[2])
	if err != nil {
		return Tick{}, &errs.ParseError{Field: "price", Input: rec[2], Err: err}
	}
	vol, err := strconv.ParseInt(rec[3], 10, 64)
	if err != nil {
		return Tick{}, &errs.ParseError{Field: "volume", Input: rec[3], Err: err}
	}
	return Tick{Timestamp: ts, Label: rec[1], Price: price, Volume: vol}, nil
}

// All yields ticks until EOF or the first error.
func (r *Reader) All() iter.Seq2[Tick, error] {
	return func(yield func(Tick, error) bool) {
		for {
			t, err := r.Read()
			if errors.Is(err, io.EOF) {
				return
			}
			if !yield(t, err) || err != nil {
				return
			}
		}
	}
}

// ReadFile loads a whole tape file.
func ReadFile(path string) (Tape, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &errs.IOError{Op: "open", Path: path, Err: err}
	}
	defer f.Close()

	var out Tape
	for t, err := range NewReader(f).All() {
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", path, err)
		}
		out = append(out, t)
	}
	return out, nil
}

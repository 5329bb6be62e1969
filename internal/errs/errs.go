package errs

import (
	"errors"
	"fmt"
)

// Sentinels matched by the typed errors below through errors.Is.
var (
	ErrFetch        = errors.New("fetch failed")
	ErrParse        = errors.New("parse failed")
	ErrPrecondition = errors.New("precondition violated")
	ErrIO           = errors.New("io failed")
)

// FetchError reports that the provider returned no usable data for an instrument.
type FetchError struct {
	Instrument string
	// Payload is the raw provider response, if one was received.
	Payload string
	Err     error
}

func (e *FetchError) Error() string {
	msg := fmt.Sprintf("fetch %s", e.Instrument)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	if e.Payload != "" {
		msg += " (payload: " + e.Payload + ")"
	}
	return msg
}

func (e *FetchError) Unwrap() error        { return e.Err }
func (e *FetchError) Is(target error) bool { return target == ErrFetch }

// ParseError reports a malformed timestamp or numeric field.
type ParseError struct {
	Field string
	Input string
	Err   error
}

func (e *ParseError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("parse %s %q", e.Field, e.Input)
	}
	return fmt.Sprintf("parse %s %q: %v", e.Field, e.Input, e.Err)
}

func (e *ParseError) Unwrap() error        { return e.Err }
func (e *ParseError) Is(target error) bool { return target == ErrParse }

// PreconditionError reports a stream that is not ascending by time, or a
// malformed merge input such as a repeated rank.
type PreconditionError struct {
	Instrument string
	Index      int
	Reason     string
}

func (e *PreconditionError) Error() string {
	if e.Index < 0 {
		return fmt.Sprintf("stream %s: %s", e.Instrument, e.Reason)
	}
	return fmt.Sprintf("stream %s at index %d: %s", e.Instrument, e.Index, e.Reason)
}

func (e *PreconditionError) Is(target error) bool { return target == ErrPrecondition }

// IOError reports a destination that could not be opened, written or replaced.
type IOError struct {
	Op   string
	Path string
	Err  error
}

func (e *IOError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
}

func (e *IOError) Unwrap() error        { return e.Err }
func (e *IOError) Is(target error) bool { return target == ErrIO }

package main

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"tapeingest/internal/aggregate"
	"tapeingest/internal/config"
	"tapeingest/internal/errs"
	"tapeingest/internal/quote"
	"tapeingest/internal/tape"
)

// maxInstruments caps one request's fan-out to the provider.
const maxInstruments = 64

type tapeBuilder interface {
	Build(ctx context.Context, instruments []quote.Instrument) (tape.Tape, error)
}

type server struct {
	builder  tapeBuilder
	defaults config.Instruments
	timeout  time.Duration
	log      *slog.Logger
}

type summaryResponse struct {
	Ticks       int                 `json:"ticks"`
	Instruments []aggregate.Summary `json:"instruments"`
}

type postBody struct {
	Instruments []quote.Instrument `json:"instruments"`
}

func (s *server) routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	mux.HandleFunc("GET /api/tape", s.handleTape)
	mux.HandleFunc("POST /api/tape", s.handleTape)
	mux.HandleFunc("GET /api/summary", s.handleSummary)
	mux.HandleFunc("POST /api/summary", s.handleSummary)
	return mux
}

func (s *server) handleTape(w http.ResponseWriter, r *http.Request) {
	instruments, ok := s.instruments(w, r)
	if !ok {
		return
	}
	merged, ok := s.build(w, r, instruments)
	if !ok {
		return
	}
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	if _, err := tape.Encode(w, merged.All()); err != nil {
		s.log.Warn("tape response aborted", slog.Any("error", err))
	}
}

func (s *server) handleSummary(w http.ResponseWriter, r *http.Request) {
	instruments, ok := s.instruments(w, r)
	if !ok {
		return
	}
	merged, ok := s.build(w, r, instruments)
	if !ok {
		return
	}
	labels := make([]string, len(instruments))
	for i, inst := range instruments {
		labels[i] = inst.Label
	}
	writeJSON(w, http.StatusOK, summaryResponse{
		Ticks:       len(merged),
		Instruments: aggregate.Ordered(aggregate.ByLabel(merged.All()), labels),
	})
}

// instruments reads the request's instrument list: a JSON body on POST, the
// "instruments" query parameter on GET, or the configured defaults.
func (s *server) instruments(w http.ResponseWriter, r *http.Request) (config.Instruments, bool) {
	var list config.Instruments
	switch r.Method {
	case http.MethodPost:
		var b postBody
		dec := json.NewDecoder(r.Body)
		dec.DisallowUnknownFields()
		if err := dec.Decode(&b); err != nil {
			http.Error(w, "invalid JSON body", http.StatusBadRequest)
			return nil, false
		}
		list = b.Instruments
	default:
		if q := strings.TrimSpace(r.URL.Query().Get("instruments")); q != "" {
			parsed, err := config.ParseInstruments(q)
			if err != nil {
				http.Error(w, err.Error(), http.StatusBadRequest)
				return nil, false
			}
			list = parsed
		}
	}
	if len(list) == 0 {
		list = s.defaults
	}
	if len(list) > maxInstruments {
		http.Error(w, "too many instruments", http.StatusBadRequest)
		return nil, false
	}
	if err := list.Validate(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return nil, false
	}
	return list, true
}

func (s *server) build(w http.ResponseWriter, r *http.Request, instruments []quote.Instrument) (tape.Tape, bool) {
	ctx := r.Context()
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}
	merged, err := s.builder.Build(ctx, instruments)
	if err != nil {
		status := statusFor(err)
		s.log.Warn("build failed", slog.Int("status", status), slog.Any("error", err))
		http.Error(w, err.Error(), status)
		return nil, false
	}
	return merged, true
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.Is(err, errs.ErrFetch),
		errors.Is(err, errs.ErrParse),
		errors.Is(err, errs.ErrPrecondition):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(v)
}

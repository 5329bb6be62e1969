package main

import (
	"bytes"
	"compress/gzip"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"tapeingest/internal/config"
	"tapeingest/internal/errs"
	"tapeingest/internal/quote"
	"tapeingest/internal/tape"
)

// fakeBuilder returns canned ticks for the requested labels.
type fakeBuilder struct {
	ticks map[string][]tape.Tick
	err   error
	got   []quote.Instrument
}

func (f *fakeBuilder) Build(_ context.Context, instruments []quote.Instrument) (tape.Tape, error) {
	f.got = instruments
	if f.err != nil {
		return nil, f.err
	}
	streams := make([]tape.Stream, len(instruments))
	for i, inst := range instruments {
		streams[i] = tape.Stream{Label: inst.Label, Rank: i, Ticks: f.ticks[inst.Label]}
	}
	return tape.Merge(streams, tape.StrategyHeap)
}

const t1000 = int64(1700474400000000000)

func newTestServer(b *fakeBuilder) http.Handler {
	s := &server{
		builder:  b,
		defaults: config.Instruments{{Ticker: "PEP", Label: "SYM_A"}, {Ticker: "PG", Label: "SYM_B"}},
		log:      slog.New(slog.DiscardHandler),
	}
	return withCORS(withGzip(recoverPanic(s.log, limitBody(s.routes()))))
}

func sampleBuilder() *fakeBuilder {
	return &fakeBuilder{ticks: map[string][]tape.Tick{
		"SYM_A": {
			{Timestamp: t1000, Label: "SYM_A", Price: decimal.RequireFromString("100.0"), Volume: 5},
			{Timestamp: t1000 + 60_000_000_000, Label: "SYM_A", Price: decimal.RequireFromString("100.5"), Volume: 3},
		},
		"SYM_B": {
			{Timestamp: t1000, Label: "SYM_B", Price: decimal.RequireFromString("50.0"), Volume: 10},
		},
	}}
}

func TestTape_DefaultInstruments(t *testing.T) {
	t.Parallel()

	// Arrange
	h := newTestServer(sampleBuilder())
	rr := httptest.NewRecorder()

	// Act
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/tape", nil))

	// Assert
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	require.Equal(t, "text/csv; charset=utf-8", rr.Header().Get("Content-Type"))
	require.Equal(t, fmt.Sprintf("%d,SYM_A,100.0,5\n%d,SYM_B,50.0,10\n%d,SYM_A,100.5,3\n",
		t1000, t1000, t1000+60_000_000_000), rr.Body.String())
}

func TestTape_QueryRanksFollowParameterOrder(t *testing.T) {
	t.Parallel()

	b := sampleBuilder()
	rr := httptest.NewRecorder()
	newTestServer(b).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/tape?instruments=PG:SYM_B,PEP:SYM_A", nil))

	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	require.Equal(t, []quote.Instrument{{Ticker: "PG", Label: "SYM_B"}, {Ticker: "PEP", Label: "SYM_A"}}, b.got)
	lines := strings.Split(strings.TrimSpace(rr.Body.String()), "\n")
	require.Len(t, lines, 3)
	require.Contains(t, lines[0], ",SYM_B,")
	require.Contains(t, lines[1], ",SYM_A,")
}

func TestTape_Gzip(t *testing.T) {
	t.Parallel()

	req := httptest.NewRequest(http.MethodGet, "/api/tape", nil)
	req.Header.Set("Accept-Encoding", "gzip")
	rr := httptest.NewRecorder()
	newTestServer(sampleBuilder()).ServeHTTP(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)
	require.Equal(t, "gzip", rr.Header().Get("Content-Encoding"))
	zr, err := gzip.NewReader(bytes.NewReader(rr.Body.Bytes()))
	require.NoError(t, err)
	body, err := io.ReadAll(zr)
	require.NoError(t, err)
	require.Equal(t, 3, strings.Count(string(body), "\n"))
}

func TestSummary_PostBody(t *testing.T) {
	t.Parallel()

	// Arrange
	b := sampleBuilder()
	body := `{"instruments":[{"ticker":"PEP","label":"SYM_A"}]}`
	rr := httptest.NewRecorder()

	// Act
	newTestServer(b).ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/api/summary", strings.NewReader(body)))

	// Assert
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	var resp summaryResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	require.Equal(t, 2, resp.Ticks)
	require.Len(t, resp.Instruments, 1)
	require.Equal(t, "SYM_A", resp.Instruments[0].Label)
	require.Equal(t, "100.5", resp.Instruments[0].LastPrice.String())
}

func TestRequests_BadInput(t *testing.T) {
	t.Parallel()

	cases := map[string]*http.Request{
		"duplicate labels": httptest.NewRequest(http.MethodGet, "/api/tape?instruments=PEP:X,PG:X", nil),
		"bad label":        httptest.NewRequest(http.MethodGet, "/api/summary?instruments=PEP:a%20b", nil),
		"empty ticker":     httptest.NewRequest(http.MethodGet, "/api/tape?instruments=:X", nil),
		"unknown field":    httptest.NewRequest(http.MethodPost, "/api/tape", strings.NewReader(`{"symbols":["PEP"]}`)),
		"not json":         httptest.NewRequest(http.MethodPost, "/api/summary", strings.NewReader(`nope`)),
	}
	for name, req := range cases {
		rr := httptest.NewRecorder()
		newTestServer(sampleBuilder()).ServeHTTP(rr, req)
		require.Equalf(t, http.StatusBadRequest, rr.Code, "case %s: %s", name, rr.Body.String())
	}
}

func TestBuildErrors_MapToStatus(t *testing.T) {
	t.Parallel()

	cases := []struct {
		err  error
		want int
	}{
		{&errs.FetchError{Instrument: "SYM_B", Payload: `{"code":400}`}, http.StatusBadGateway},
		{fmt.Errorf("load: %w", &errs.ParseError{Field: "close", Input: "x"}), http.StatusBadGateway},
		{&errs.PreconditionError{Instrument: "SYM_A", Index: 1, Reason: "timestamp decreases"}, http.StatusBadGateway},
		{context.DeadlineExceeded, http.StatusGatewayTimeout},
		{io.ErrUnexpectedEOF, http.StatusInternalServerError},
	}
	for _, tc := range cases {
		rr := httptest.NewRecorder()
		newTestServer(&fakeBuilder{err: tc.err}).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/tape", nil))
		require.Equalf(t, tc.want, rr.Code, "error %v", tc.err)
	}
}

func TestHealthzAndOptions(t *testing.T) {
	t.Parallel()

	h := newTestServer(sampleBuilder())

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	require.Equal(t, "ok", rr.Body.String())

	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodOptions, "/api/tape", nil))
	require.Equal(t, http.StatusNoContent, rr.Code)
	require.Equal(t, "*", rr.Header().Get("Access-Control-Allow-Origin"))
}

func TestRecoverPanic(t *testing.T) {
	t.Parallel()

	h := recoverPanic(slog.New(slog.DiscardHandler), http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, http.StatusInternalServerError, rr.Code)
}

package twelvedata

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"maps"
	"net/http"
	"strconv"

	"tapeingest/internal/quote"
)

// maxBodyBytes caps how much of a response is read. A full 5000-row series is well under 1 MiB.
const maxBodyBytes = 32 << 20

// TimeSeriesParams are the query parameters of /time_series.
type TimeSeriesParams struct {
	Symbol     string
	Interval   string
	OutputSize int
	// Timezone is passed through when set, e.g. "UTC" or "Exchange".
	Timezone string
	// Order is "asc" or "desc"; empty keeps the provider default (desc).
	Order string
}

// Meta describes the returned series.
type Meta struct {
	Symbol           string `json:"symbol"`
	Interval         string `json:"interval"`
	Currency         string `json:"currency"`
	ExchangeTimezone string `json:"exchange_timezone"`
	Exchange         string `json:"exchange"`
	Type             string `json:"type"`
}

// Value is one bar of the series.
type Value struct {
	Datetime string       `json:"datetime"`
	Open     quote.Number `json:"open"`
	High     quote.Number `json:"high"`
	Low      quote.Number `json:"low"`
	Close    quote.Number `json:"close"`
	Volume   quote.Number `json:"volume"`
}

// TimeSeries is a decoded /time_series response.
type TimeSeries struct {
	Meta   Meta    `json:"meta"`
	Values []Value `json:"values"`
	Status string  `json:"status"`
}

// APIError is returned when the provider answers without usable values.
// Body holds the raw response for diagnostics.
type APIError struct {
	StatusCode int
	Code       int    `json:"code"`
	Message    string `json:"message"`
	Status     string `json:"status"`
	Body       string `json:"-"`
}

func (e *APIError) Error() string {
	switch {
	case e.StatusCode == http.StatusUnauthorized || e.StatusCode == http.StatusForbidden || e.Code == http.StatusUnauthorized:
		return fmt.Sprintf("unauthorized: %s", e.Message)
	case e.StatusCode == http.StatusTooManyRequests || e.Code == http.StatusTooManyRequests:
		return fmt.Sprintf("rate limited: %s", e.Message)
	case e.Message != "":
		return fmt.Sprintf("provider error: code=%d message=%q", e.Code, e.Message)
	default:
		return fmt.Sprintf("unexpected status code: %d", e.StatusCode)
	}
}

// RawPayload returns the undecoded response body.
func (e *APIError) RawPayload() string { return e.Body }

// GetTimeSeries retrieves one series. Values are returned in the provider's order.
func (c *Client) GetTimeSeries(ctx context.Context, params TimeSeriesParams, opts ...ClientOption) (*TimeSeries, error) {
	var override = &Client{
		baseURL:    c.baseURL,
		httpClient: c.httpClient,
		header:     c.header.Clone(),
		query:      c.query,
	}
	for _, opt := range opts {
		opt(override)
	}

	query := maps.Clone(override.query)
	query.Set("symbol", params.Symbol)
	query.Set("interval", params.Interval)
	if params.OutputSize > 0 {
		query.Set("outputsize", strconv.Itoa(params.OutputSize))
	}
	if params.Timezone != "" {
		query.Set("timezone", params.Timezone)
	}
	if params.Order != "" {
		query.Set("order", params.Order)
	}

	url := fmt.Sprintf("%s/time_series?%s", override.baseURL, query.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header = override.header

	res, err := override.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("performing request: %w", err)
	}
	defer res.Body.Close()

	body, err := io.ReadAll(io.LimitReader(res.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}

	switch res.StatusCode {
	case http.StatusOK:
		break

	default:
		apiErr := &APIError{StatusCode: res.StatusCode, Body: string(body)}
		// Error bodies are JSON when the provider produced them; ignore anything else.
		_ = json.Unmarshal(body, apiErr)
		apiErr.StatusCode = res.StatusCode
		return nil, apiErr
	}

	// The provider reports most failures with HTTP 200 and a JSON error object,
	// so the absence of "values" is the signal.
	var raw struct {
		TimeSeries
		Values *[]Value `json:"values"`
		Code    int     `json:"code"`
		Message string  `json:"message"`
	}
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("decoding time series response: %w with %s", err, truncate(body, 512))
	}
	if raw.Values == nil {
		return nil, &APIError{
			StatusCode: res.StatusCode,
			Code:       raw.Code,
			Message:    raw.Message,
			Status:     raw.Status,
			Body:       string(body),
		}
	}

	out := raw.TimeSeries
	out.Values = *raw.Values
	return &out, nil
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}

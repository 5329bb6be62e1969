package httpx

import (
	"net"
	"net/http"
	"time"
)

// DefaultUserAgent is sent when a request carries none.
const DefaultUserAgent = "tape-ingest/1.0"

// Client wraps http.Client with pooled transport defaults and header injection.
type Client struct {
	HTTP      *http.Client
	UserAgent string
	Headers   map[string]string
}

// New returns a client whose whole exchange, body included, is bounded by timeout.
func New(timeout time.Duration) *Client {
	transport := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           (&net.Dialer{Timeout: 5 * time.Second, KeepAlive: 30 * time.Second}).DialContext,
		MaxIdleConns:          32,
		MaxIdleConnsPerHost:   8,
		ForceAttemptHTTP2:     true,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   5 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		// Full-history series can take a while to start streaming.
		ResponseHeaderTimeout: 20 * time.Second,
	}
	return &Client{HTTP: &http.Client{Timeout: timeout, Transport: transport}, UserAgent: DefaultUserAgent}
}

// Do sets the User-Agent and any configured headers the request lacks, then
// sends it. Cancellation follows the request's context.
func (c *Client) Do(req *http.Request) (*http.Response, error) {
	if c.UserAgent != "" && req.Header.Get("User-Agent") == "" {
		req.Header.Set("User-Agent", c.UserAgent)
	}
	for k, v := range c.Headers {
		if req.Header.Get(k) == "" {
			req.Header.Set(k, v)
		}
	}
	return c.HTTP.Do(req)
}

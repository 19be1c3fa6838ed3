// Package upstreamclient implements the pooled HTTP/1.1 client contract
// from spec.md §4.5 (C8): per-request overall timeout distinct from the
// connect timeout, a streamed request body and a fully buffered response
// body, and a three-way
// error classification (connection error / timeout / other) that the
// pipeline maps onto retry decisions and canonical status codes.
//
// The transport construction mirrors the teacher's
// internal/proxy.NewReverseProxy transport (same pooling knobs); the
// timeout split is new, grounded on spec.md §9's resolution of the
// "connectionTimeoutMillis semantics" open question.
package upstreamclient

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// ErrorKind classifies a failed upstream attempt.
type ErrorKind int

const (
	// ErrorKindOther covers any transport failure that is neither a
	// connect failure nor a timeout (malformed request, etc).
	ErrorKindOther ErrorKind = iota
	ErrorKindConnect
	ErrorKindTimeout
)

// Error wraps a failed upstream attempt with its classification.
type Error struct {
	Kind ErrorKind
	Err  error
}

func (e *Error) Error() string { return e.Err.Error() }
func (e *Error) Unwrap() error { return e.Err }

// Response is the result of a successful round trip: the client itself
// never treats any status code as an error, so a 4xx/5xx is a Response,
// not an Error.
type Response struct {
	StatusCode    int
	StatusMessage string
	Header        http.Header
	Body          []byte
}

// Client is a pooled HTTP/1.1 client with a configurable overall request
// timeout, separate from the connect timeout applied only during
// TCP/handshake.
type Client struct {
	transport      *http.Transport
	overallTimeout time.Duration
}

// Config controls pool sizing and timeouts.
type Config struct {
	// OverallTimeout aborts the exchange if no response body is fully
	// received within this duration from request initiation.
	OverallTimeout time.Duration
	// ConnectTimeout bounds TCP connect + TLS handshake only. Derived by
	// the caller as min(OverallTimeout, 2s) per SPEC_FULL.md §11, but any
	// value may be supplied directly.
	ConnectTimeout  time.Duration
	MaxIdleConns    int
	IdleConnTimeout time.Duration
}

// New builds a Client from cfg, filling in the teacher's pooling
// defaults for any zero field.
func New(cfg Config) *Client {
	if cfg.MaxIdleConns <= 0 {
		cfg.MaxIdleConns = 100
	}
	if cfg.IdleConnTimeout <= 0 {
		cfg.IdleConnTimeout = 90 * time.Second
	}
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = 2 * time.Second
	}
	if cfg.OverallTimeout <= 0 {
		cfg.OverallTimeout = 2 * time.Second
	}
	transport := &http.Transport{
		Proxy:                 nil,
		DialContext:           (&net.Dialer{Timeout: cfg.ConnectTimeout, KeepAlive: 30 * time.Second}).DialContext,
		ForceAttemptHTTP2:     false,
		MaxIdleConns:          cfg.MaxIdleConns,
		IdleConnTimeout:       cfg.IdleConnTimeout,
		ExpectContinueTimeout: 1 * time.Second,
	}
	return &Client{transport: transport, overallTimeout: cfg.OverallTimeout}
}

// Send forwards method/path/headers/body to target, streaming the
// inbound body upstream without buffering and returning the fully
// buffered upstream response. No upstream status code is itself an
// error; failures to connect, a blown overall timeout, or any other
// transport failure are all returned as *Error.
func (c *Client) Send(ctx context.Context, base *url.URL, method, forwardedPath string, header http.Header, body io.Reader, hostHeader string) (*Response, error) {
	ctx, cancel := context.WithTimeout(ctx, c.overallTimeout)
	defer cancel()

	rawPath, rawQuery, _ := strings.Cut(forwardedPath, "?")
	target := *base
	target.Path = rawPath
	target.RawPath = ""
	target.RawQuery = rawQuery

	req, err := http.NewRequestWithContext(ctx, method, target.String(), body)
	if err != nil {
		return nil, &Error{Kind: ErrorKindOther, Err: err}
	}
	req.Header = header
	if hostHeader != "" {
		req.Host = hostHeader
	}

	resp, err := c.transport.RoundTrip(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, &Error{Kind: ErrorKindTimeout, Err: fmt.Errorf("upstream request timed out: %w", err)}
		}
		return nil, &Error{Kind: ErrorKindConnect, Err: err}
	}
	defer resp.Body.Close()

	buf, readErr := io.ReadAll(resp.Body)
	if readErr != nil {
		if ctx.Err() != nil {
			return nil, &Error{Kind: ErrorKindTimeout, Err: fmt.Errorf("reading upstream body timed out: %w", readErr)}
		}
		return nil, &Error{Kind: ErrorKindOther, Err: readErr}
	}

	return &Response{
		StatusCode:    resp.StatusCode,
		StatusMessage: resp.Status,
		Header:        resp.Header,
		Body:          buf,
	}, nil
}

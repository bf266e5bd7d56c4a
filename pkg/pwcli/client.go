// Package pwcli is the client side of the daemon's JSON-RPC endpoint.
// The CLI and the native messaging host use it to reach the daemon.
package pwcli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/creachadair/jrpc2"
	"github.com/creachadair/jrpc2/jhttp"
)

// DefaultTimeout bounds each HTTP round trip. Checks wait on the queue,
// so it is generous.
const DefaultTimeout = 2 * time.Minute

type Client struct {
	endpoint string
	cli      *jrpc2.Client
}

// Option configures a Client.
type Option func(*http.Client)

// WithHTTPClient replaces the transport and timeout of the client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *http.Client) {
		c.Transport = hc.Transport
		c.Timeout = hc.Timeout
	}
}

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *http.Client) { c.Timeout = d }
}

// bearer adds the Authorization header to every request.
type bearer struct {
	secret string
	next   http.RoundTripper
}

func (b *bearer) RoundTrip(r *http.Request) (*http.Response, error) {
	r = r.Clone(r.Context())
	r.Header.Set("Authorization", "Bearer "+b.secret)
	return b.next.RoundTrip(r)
}

// NewClient returns a client for the JSON-RPC endpoint at endpoint
// (http://host:port/jsonrpc) authenticating with secret.
func NewClient(endpoint, secret string, opts ...Option) *Client {
	hc := &http.Client{Timeout: DefaultTimeout}
	for _, opt := range opts {
		opt(hc)
	}
	next := hc.Transport
	if next == nil {
		next = http.DefaultTransport
	}
	hc.Transport = &bearer{secret: secret, next: next}
	ch := jhttp.NewChannel(endpoint, &jhttp.ChannelOptions{Client: hc})
	return &Client{endpoint: endpoint, cli: jrpc2.NewClient(ch, nil)}
}

// Endpoint returns the URL the client talks to.
func (c *Client) Endpoint() string {
	return c.endpoint
}

// Call invokes method with raw JSON params and returns the raw result.
// A nil params sends no params.
func (c *Client) Call(ctx context.Context, method string, params json.RawMessage) (json.RawMessage, error) {
	var p any
	if len(params) > 0 && string(params) != "null" {
		p = params
	}
	var out json.RawMessage
	if err := c.cli.CallResult(ctx, method, p, &out); err != nil {
		return nil, wrapErr(method, err)
	}
	return out, nil
}

func invoke[T any](ctx context.Context, c *Client, method string, params any) (*T, error) {
	var d T
	if err := c.cli.CallResult(ctx, method, params, &d); err != nil {
		return nil, wrapErr(method, err)
	}
	return &d, nil
}

// Close releases the client.
func (c *Client) Close() error {
	return c.cli.Close()
}

// ErrorCode returns the JSON-RPC error code of err, or 0.
func ErrorCode(err error) int {
	var je *jrpc2.Error
	if errors.As(err, &je) {
		return int(je.Code)
	}
	return 0
}

func wrapErr(method string, err error) error {
	return fmt.Errorf("failed to invoke %s: %w", method, err)
}

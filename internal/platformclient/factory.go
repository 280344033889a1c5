package platformclient

import (
	"context"
	"net/http"
	"time"

	"github.com/keithlinneman/go-microservice-template/internal/headers"
	"github.com/keithlinneman/go-microservice-template/internal/log"
)

// Factory holds what is fixed at startup so building a client per request
// only captures that request's headers.
type Factory struct {
	allow     []string
	transport http.RoundTripper
	timeout   time.Duration
	observer  Observer
}

type FactoryOptions struct {
	// AllowList is the normalized list of header names to forward.
	AllowList []string
	// Transport defaults to the package's shared traced transport.
	Transport http.RoundTripper
	Timeout   time.Duration
	Observer  Observer
}

func NewFactory(opts FactoryOptions) *Factory {
	rt := opts.Transport
	if rt == nil {
		rt = defaultTransport
	}
	return &Factory{
		allow:     append([]string(nil), opts.AllowList...),
		transport: rt,
		timeout:   opts.Timeout,
		observer:  opts.Observer,
	}
}

// AllowList returns a copy of the configured header names.
func (f *Factory) AllowList() []string { return append([]string(nil), f.allow...) }

// New builds a client for one inbound request.
func (f *Factory) New(set headers.Set, logger log.Logger) *Client {
	opts := []Option{WithTransport(f.transport), WithDefaultTimeout(f.timeout)}
	if f.observer != nil {
		opts = append(opts, WithObserver(f.observer))
	}
	return New(set, logger, f.allow, opts...)
}

type ctxKey struct{}

func WithContext(ctx context.Context, c *Client) context.Context {
	return context.WithValue(ctx, ctxKey{}, c)
}

// FromContext returns the request's client, or nil when the attachment
// middleware did not run.
func FromContext(ctx context.Context) *Client {
	c, _ := ctx.Value(ctxKey{}).(*Client)
	return c
}

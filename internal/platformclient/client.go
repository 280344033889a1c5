package platformclient

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/keithlinneman/go-microservice-template/internal/headers"
	"github.com/keithlinneman/go-microservice-template/internal/log"
	"github.com/keithlinneman/go-microservice-template/internal/xerrors"
)

// Verbs as they appear in logs, errors and metrics.
const (
	VerbGet        = "GET"
	VerbGetByID    = "GET BY ID"
	VerbCount      = "COUNT"
	VerbPost       = "POST"
	VerbPut        = "PUT"
	VerbPatch      = "PATCH"
	VerbDelete     = "DELETE"
	VerbDeleteByID = "DELETE BY ID"
)

// Observer receives one callback per completed call. status is 0 when no
// response was received.
type Observer interface {
	ObservePlatformCall(verb string, status int, elapsed time.Duration)
}

// defaultTransport is shared by clients built without WithTransport so the
// per-request clients reuse one connection pool.
var defaultTransport http.RoundTripper = otelhttp.NewTransport(http.DefaultTransport)

type options struct {
	transport http.RoundTripper
	timeout   time.Duration
	observer  Observer
}

type Option func(*options)

// WithTransport sets the round tripper. It is used as given; wrap it with
// otelhttp.NewTransport for tracing.
func WithTransport(rt http.RoundTripper) Option {
	return func(o *options) { o.transport = rt }
}

// WithDefaultTimeout bounds every call made by the client, body read
// included. Zero means no client-level timeout.
func WithDefaultTimeout(d time.Duration) Option {
	return func(o *options) { o.timeout = d }
}

func WithObserver(obs Observer) Option {
	return func(o *options) { o.observer = obs }
}

// Client forwards a fixed header subset on every call. It is not meant to
// outlive the inbound request it was built from.
type Client struct {
	http     *http.Client
	forward  [][2]string
	logger   log.Logger
	observer Observer
}

// New builds a client whose forwarded headers are allow ∩ set. allow is
// expected to be normalized (see headers.ParseAllowList). Absent keys are
// noted at debug and skipped.
func New(set headers.Set, logger log.Logger, allow []string, opts ...Option) *Client {
	o := options{transport: defaultTransport}
	for _, fn := range opts {
		fn(&o)
	}
	if logger == nil {
		logger = log.Nop()
	}

	present, missing := set.Subset(allow)
	for _, k := range missing {
		logger.Debug(context.Background(), "header missing from inbound request", "header", k)
	}

	return &Client{
		http:     &http.Client{Transport: o.transport, Timeout: o.timeout},
		forward:  present,
		logger:   logger,
		observer: o.observer,
	}
}

// NewFromEnv reads the comma separated allow-list from envVar now. An unset
// variable, or one that names no headers, is an error, the same rule
// cfg.Validate applies to HEADER_KEYS_TO_PROXY at startup.
func NewFromEnv(set headers.Set, logger log.Logger, envVar string, opts ...Option) (*Client, error) {
	raw, ok := os.LookupEnv(envVar)
	if !ok {
		return nil, xerrors.Wrapf(ErrAllowListUnset, "%s", envVar)
	}
	allow := headers.ParseAllowList(raw)
	if len(allow) == 0 {
		return nil, xerrors.Wrapf(ErrAllowListEmpty, "%s=%q", envVar, raw)
	}
	return New(set, logger, allow, opts...), nil
}

// Forwarded returns a copy of the header pairs sent on every call.
func (c *Client) Forwarded() map[string]string {
	out := make(map[string]string, len(c.forward))
	for _, kv := range c.forward {
		out[kv[0]] = kv[1]
	}
	return out
}

type callOptions struct {
	header  map[string]string
	query   url.Values
	timeout time.Duration
}

type CallOption func(*callOptions)

// WithHeaders layers extra headers over the forwarded ones; the last write
// for a name wins.
func WithHeaders(h map[string]string) CallOption {
	return func(o *callOptions) {
		if o.header == nil {
			o.header = make(map[string]string, len(h))
		}
		for k, v := range h {
			o.header[k] = v
		}
	}
}

// WithQuery appends q to the request URL's query string.
func WithQuery(q url.Values) CallOption {
	return func(o *callOptions) { o.query = q }
}

// WithTimeout bounds this call until the response body is closed.
func WithTimeout(d time.Duration) CallOption {
	return func(o *callOptions) { o.timeout = d }
}

// joinID appends id as one escaped path segment. Empty and dot segments
// are rejected: "items/.." would address the parent of the collection.
func joinID(base, id string) (string, error) {
	if id == "" || id == "." || id == ".." {
		return "", xerrors.Wrapf(ErrInvalidID, "%q", id)
	}
	return strings.TrimRight(base, "/") + "/" + url.PathEscape(id), nil
}

func (c *Client) doID(ctx context.Context, verb, method, collectionURL, id string, body any, opts []CallOption) (*http.Response, error) {
	target, err := joinID(collectionURL, id)
	if err != nil {
		c.logger.Error(ctx, err, "platform client call failed", "verb", verb, "url", collectionURL)
		return nil, err
	}
	return c.do(ctx, verb, method, target, body, opts)
}

func encodeBody(body any) (io.Reader, string, error) {
	switch b := body.(type) {
	case nil:
		return nil, "", nil
	case io.Reader:
		return b, "", nil
	case []byte:
		return bytes.NewReader(b), "", nil
	case string:
		return strings.NewReader(b), "", nil
	default:
		raw, err := json.Marshal(b)
		if err != nil {
			return nil, "", xerrors.Wrap(err, "encode request body")
		}
		return bytes.NewReader(raw), "application/json", nil
	}
}

func (c *Client) do(ctx context.Context, verb, method, target string, body any, opts []CallOption) (*http.Response, error) {
	var co callOptions
	for _, fn := range opts {
		fn(&co)
	}

	if len(co.query) > 0 {
		sep := "?"
		if strings.Contains(target, "?") {
			sep = "&"
		}
		target += sep + co.query.Encode()
	}

	lg := c.logger.With("verb", verb, "url", target)
	lg.Debug(ctx, "platform client call started")

	rdr, contentType, err := encodeBody(body)
	if err != nil {
		lg.Error(ctx, err, "platform client call failed")
		return nil, err
	}

	cancel := context.CancelFunc(func() {})
	if co.timeout > 0 {
		ctx, cancel = context.WithTimeout(ctx, co.timeout)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, rdr)
	if err != nil {
		cancel()
		err = xerrors.Wrapf(err, "platform client %s %s", verb, target)
		lg.Error(ctx, err, "platform client call failed")
		return nil, err
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	for _, kv := range c.forward {
		req.Header.Set(kv[0], kv[1])
	}
	for k, v := range co.header {
		req.Header.Set(k, v)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	elapsed := time.Since(start)
	if err != nil {
		cancel()
		c.observe(verb, 0, elapsed)
		err = xerrors.Wrapf(err, "platform client %s %s", verb, target)
		lg.Error(ctx, err, "platform client call failed")
		return nil, err
	}
	c.observe(verb, resp.StatusCode, elapsed)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
		_ = resp.Body.Close()
		cancel()
		err := xerrors.WithStack(&StatusError{Verb: verb, URL: target, StatusCode: resp.StatusCode})
		lg.Error(ctx, err, "platform client call failed", "status", resp.StatusCode)
		return nil, err
	}

	lg.Debug(ctx, "platform client call finished", "status", resp.StatusCode, "duration", elapsed)
	if co.timeout > 0 {
		resp.Body = &cancelOnClose{ReadCloser: resp.Body, cancel: cancel}
	}
	return resp, nil
}

func (c *Client) observe(verb string, status int, elapsed time.Duration) {
	if c.observer != nil {
		c.observer.ObservePlatformCall(verb, status, elapsed)
	}
}

// cancelOnClose releases a per-call deadline once the caller is done with
// the body.
type cancelOnClose struct {
	io.ReadCloser
	cancel context.CancelFunc
}

func (b *cancelOnClose) Close() error {
	err := b.ReadCloser.Close()
	b.cancel()
	return err
}

package platformclient

import (
	"context"
	"net/http"
)

func (c *Client) Get(ctx context.Context, url string, opts ...CallOption) (*http.Response, error) {
	return c.do(ctx, VerbGet, http.MethodGet, url, nil, opts)
}

// GetByID fetches {collectionURL}/{id}.
func (c *Client) GetByID(ctx context.Context, collectionURL, id string, opts ...CallOption) (*http.Response, error) {
	return c.doID(ctx, VerbGetByID, http.MethodGet, collectionURL, id, nil, opts)
}

// Count fetches {collectionURL}/count.
func (c *Client) Count(ctx context.Context, collectionURL string, opts ...CallOption) (*http.Response, error) {
	return c.doID(ctx, VerbCount, http.MethodGet, collectionURL, "count", nil, opts)
}

// Post sends body to url. nil, io.Reader, []byte and string bodies are sent
// as is; other values are encoded as JSON.
func (c *Client) Post(ctx context.Context, url string, body any, opts ...CallOption) (*http.Response, error) {
	return c.do(ctx, VerbPost, http.MethodPost, url, body, opts)
}

func (c *Client) Put(ctx context.Context, url string, body any, opts ...CallOption) (*http.Response, error) {
	return c.do(ctx, VerbPut, http.MethodPut, url, body, opts)
}

// Patch sends body to {collectionURL}/{id}.
func (c *Client) Patch(ctx context.Context, collectionURL, id string, body any, opts ...CallOption) (*http.Response, error) {
	return c.doID(ctx, VerbPatch, http.MethodPatch, collectionURL, id, body, opts)
}

func (c *Client) Delete(ctx context.Context, url string, opts ...CallOption) (*http.Response, error) {
	return c.do(ctx, VerbDelete, http.MethodDelete, url, nil, opts)
}

// DeleteByID deletes {collectionURL}/{id}.
func (c *Client) DeleteByID(ctx context.Context, collectionURL, id string, opts ...CallOption) (*http.Response, error) {
	return c.doID(ctx, VerbDeleteByID, http.MethodDelete, collectionURL, id, nil, opts)
}

// Probe returns a check that GETs url and fails on transport errors or a
// non-2xx status. The result fits health.CheckFunc.
func (c *Client) Probe(url string) func(context.Context) error {
	return func(ctx context.Context) error {
		resp, err := c.Get(ctx, url)
		if err != nil {
			return err
		}
		return resp.Body.Close()
	}
}

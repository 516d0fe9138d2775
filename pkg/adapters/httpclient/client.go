// Package httpclient performs outbound requests on behalf of scripts.
package httpclient

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/aretw0/glacier/pkg/domain"
)

// Client implements ports.HTTPClient on net/http.
type Client struct {
	http    *http.Client
	maxBody int64
}

type Option func(*Client)

// WithHTTPClient replaces the underlying client.
func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) {
		cl.http = c
	}
}

// WithMaxBody limits how many response bytes are read.
func WithMaxBody(n int64) Option {
	return func(cl *Client) {
		cl.maxBody = n
	}
}

// New creates a client with the given timeout per request.
func New(timeout time.Duration, opts ...Option) *Client {
	c := &Client{
		http:    &http.Client{Timeout: timeout},
		maxBody: 10 << 20,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Do sends req. Response header names are lower-cased.
func (c *Client) Do(ctx context.Context, req domain.Request) (domain.Response, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	u, err := url.Parse(req.URI)
	if err != nil {
		return domain.Response{}, fmt.Errorf("invalid url %q: %w", req.URI, err)
	}
	if !u.IsAbs() {
		return domain.Response{}, fmt.Errorf("url %q must be absolute", req.URI)
	}

	var body io.Reader
	if req.HasBody {
		body = bytes.NewReader(req.Body)
	}
	hreq, err := http.NewRequestWithContext(ctx, req.Method.String(), u.String(), body)
	if err != nil {
		return domain.Response{}, err
	}
	for _, h := range req.Headers {
		hreq.Header.Add(h.Name, h.Value)
	}

	resp, err := c.http.Do(hreq)
	if err != nil {
		return domain.Response{}, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, c.maxBody))
	if err != nil {
		return domain.Response{}, fmt.Errorf("failed to read response body: %w", err)
	}

	return domain.Response{
		Status:  resp.StatusCode,
		Headers: flatten(resp.Header),
		Body:    data,
		HasBody: true,
	}, nil
}

func flatten(h http.Header) []domain.Header {
	names := make([]string, 0, len(h))
	for name := range h {
		names = append(names, name)
	}
	sort.Strings(names)

	var out []domain.Header
	for _, name := range names {
		for _, v := range h[name] {
			out = append(out, domain.Header{Name: strings.ToLower(name), Value: v})
		}
	}
	return out
}

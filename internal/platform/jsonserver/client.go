// Package jsonserver talks to a JSON-Server style REST collaborator.
package jsonserver

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/odyssey-erp/approvisionnement/internal/shared"
)

const (
	defaultTimeout  = 10 * time.Second
	maxErrorPayload = 512
)

// Client issues CRUD requests against <base>/<resource>[/<id>].
type Client struct {
	baseURL    *url.URL
	httpClient *http.Client
}

// Option customises a Client.
type Option func(*Client)

// WithHTTPClient overrides the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// WithTimeout sets the per request timeout on the default HTTP client.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		if timeout > 0 {
			c.httpClient = &http.Client{Timeout: timeout}
		}
	}
}

// New constructs a client for the collaborator rooted at endpoint.
func New(endpoint string, opts ...Option) (*Client, error) {
	endpoint = strings.TrimSpace(endpoint)
	if endpoint == "" {
		return nil, errors.New("jsonserver: endpoint required")
	}
	base, err := url.Parse(strings.TrimRight(endpoint, "/"))
	if err != nil {
		return nil, fmt.Errorf("jsonserver: parse endpoint: %w", err)
	}
	if base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("jsonserver: endpoint %q must be absolute", endpoint)
	}
	c := &Client{baseURL: base, httpClient: &http.Client{Timeout: defaultTimeout}}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// List performs GET /<resource>?<params> and decodes the JSON array into dest.
func (c *Client) List(ctx context.Context, resource string, params Params, dest any) error {
	return c.do(ctx, http.MethodGet, c.resourceURL(resource, "", params.Values()), nil, dest)
}

// Get performs GET /<resource>/<id>.
func (c *Client) Get(ctx context.Context, resource, id string, dest any) error {
	return c.do(ctx, http.MethodGet, c.resourceURL(resource, id, nil), nil, dest)
}

// Create performs POST /<resource> with body and decodes the created entity.
func (c *Client) Create(ctx context.Context, resource string, body, dest any) error {
	return c.do(ctx, http.MethodPost, c.resourceURL(resource, "", nil), body, dest)
}

// Patch performs PATCH /<resource>/<id> with a partial body.
func (c *Client) Patch(ctx context.Context, resource, id string, body, dest any) error {
	return c.do(ctx, http.MethodPatch, c.resourceURL(resource, id, nil), body, dest)
}

// Delete performs DELETE /<resource>/<id>.
func (c *Client) Delete(ctx context.Context, resource, id string) error {
	return c.do(ctx, http.MethodDelete, c.resourceURL(resource, id, nil), nil, nil)
}

func (c *Client) resourceURL(resource, id string, query url.Values) string {
	u := *c.baseURL
	u.Path = strings.TrimRight(u.Path, "/") + "/" + url.PathEscape(resource)
	if id != "" {
		u.Path += "/" + url.PathEscape(id)
	}
	if len(query) > 0 {
		u.RawQuery = query.Encode()
	}
	return u.String()
}

func (c *Client) do(ctx context.Context, method, target string, body, dest any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("jsonserver: encode %s %s: %w", method, target, err)
		}
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return fmt.Errorf("jsonserver: build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return fmt.Errorf("%w: %s %s: %v", shared.ErrTransport, method, target, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		_, _ = io.Copy(io.Discard, resp.Body)
		return fmt.Errorf("%w: %s %s", shared.ErrNotFound, method, target)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorPayload))
		return fmt.Errorf("%w: %s %s: status %d: %s", shared.ErrTransport, method, target, resp.StatusCode, strings.TrimSpace(string(snippet)))
	}
	if dest == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(dest); err != nil {
		return fmt.Errorf("%w: decode %s %s: %v", shared.ErrTransport, method, target, err)
	}
	return nil
}

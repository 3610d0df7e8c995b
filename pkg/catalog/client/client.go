// Package client is a small HTTP client for the product API.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/tendant/simple-product/pkg/catalog"
	"github.com/tendant/simple-product/pkg/catalog/api"
)

// ProductInput is the body sent on create and update. Nil fields are omitted.
type ProductInput struct {
	Title   *string      `json:"title,omitempty"`
	Content *string      `json:"content,omitempty"`
	Price   *json.Number `json:"price,omitempty"`
	Public  *bool        `json:"public,omitempty"`
}

// APIError is returned for any non-2xx response
type APIError struct {
	StatusCode int
	Detail     string
	Fields     map[string][]string
}

func (e *APIError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("api error %d: %s", e.StatusCode, e.Detail)
	}
	if len(e.Fields) > 0 {
		names := make([]string, 0, len(e.Fields))
		for name := range e.Fields {
			names = append(names, name)
		}
		sort.Strings(names)
		parts := make([]string, 0, len(names))
		for _, name := range names {
			parts = append(parts, name+": "+strings.Join(e.Fields[name], " "))
		}
		return fmt.Sprintf("api error %d: %s", e.StatusCode, strings.Join(parts, "; "))
	}
	return fmt.Sprintf("api error %d", e.StatusCode)
}

// Client talks to a product server
type Client struct {
	baseURL string
	token   string
	http    *http.Client
}

// Option configures a Client
type Option func(*Client)

// WithToken authenticates every request with a bearer token
func WithToken(token string) Option {
	return func(c *Client) {
		c.token = token
	}
}

// WithHTTPClient replaces the default http.Client
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.http = hc
	}
}

// New creates a client for the server at baseURL (e.g. http://localhost:8080).
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		http:    &http.Client{Timeout: 30 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Login exchanges credentials for a token. The client keeps using it afterwards.
func (c *Client) Login(ctx context.Context, username, password string) (string, error) {
	var resp api.LoginResponse
	if err := c.do(ctx, http.MethodPost, "/api/auth/", api.LoginRequest{Username: username, Password: password}, &resp); err != nil {
		return "", err
	}
	c.token = resp.Token
	return resp.Token, nil
}

// List returns one page of products.
func (c *Client) List(ctx context.Context, limit, offset int) (*api.PageResponse, error) {
	q := url.Values{}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	if offset > 0 {
		q.Set("offset", strconv.Itoa(offset))
	}
	path := "/api/products/"
	if len(q) > 0 {
		path += "?" + q.Encode()
	}

	var page api.PageResponse
	if err := c.do(ctx, http.MethodGet, path, nil, &page); err != nil {
		return nil, err
	}
	return &page, nil
}

// ListAll follows next links until every product has been fetched.
func (c *Client) ListAll(ctx context.Context) ([]api.ProductResponse, error) {
	var all []api.ProductResponse
	offset := 0
	for {
		page, err := c.List(ctx, catalog.MaxPageSize, offset)
		if err != nil {
			return nil, err
		}
		all = append(all, page.Results...)
		if page.Next == nil || len(page.Results) == 0 {
			return all, nil
		}
		offset += len(page.Results)
	}
}

// Get returns a single product.
func (c *Client) Get(ctx context.Context, id int64) (*api.ProductResponse, error) {
	var p api.ProductResponse
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("/api/products/%d/", id), nil, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// Create creates a product.
func (c *Client) Create(ctx context.Context, in ProductInput) (*api.ProductResponse, error) {
	var p api.ProductResponse
	if err := c.do(ctx, http.MethodPost, "/api/products/", in, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// Update replaces a product, or patches the supplied fields when partial is set.
func (c *Client) Update(ctx context.Context, id int64, in ProductInput, partial bool) (*api.ProductResponse, error) {
	method := http.MethodPut
	if partial {
		method = http.MethodPatch
	}
	var p api.ProductResponse
	if err := c.do(ctx, method, fmt.Sprintf("/api/products/%d/update/", id), in, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// Delete removes a product.
func (c *Client) Delete(ctx context.Context, id int64) error {
	return c.do(ctx, http.MethodDelete, fmt.Sprintf("/api/products/%d/delete/", id), nil, nil)
}

// Search queries the search index. params carries extra query parameters such as tags.
func (c *Client) Search(ctx context.Context, query, index string, params map[string]string) (*catalog.SearchResult, error) {
	q := url.Values{}
	q.Set("q", query)
	if index != "" {
		q.Set("index", index)
	}
	for k, v := range params {
		q.Set(k, v)
	}

	var result catalog.SearchResult
	if err := c.do(ctx, http.MethodGet, "/api/search/?"+q.Encode(), nil, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func (c *Client) do(ctx context.Context, method, path string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		reader = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", uuid.New().String())
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return decodeError(resp.StatusCode, data)
	}
	if out == nil || len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

func decodeError(status int, data []byte) error {
	apiErr := &APIError{StatusCode: status}

	var detail api.ErrorResponse
	if err := json.Unmarshal(data, &detail); err == nil && detail.Detail != "" {
		apiErr.Detail = detail.Detail
		return apiErr
	}

	var fields map[string][]string
	if err := json.Unmarshal(data, &fields); err == nil {
		apiErr.Fields = fields
		return apiErr
	}

	apiErr.Detail = strings.TrimSpace(string(data))
	return apiErr
}

package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/pbaille/flux/internal/domain"
	"github.com/pbaille/flux/internal/store"
)

// Client is a store.ThoughtStore backed by a remote flux server
type Client struct {
	baseURL string
	http    *http.Client
}

var _ store.ThoughtStore = (*Client)(nil)

// NewClient creates a client for the server at baseURL
func NewClient(baseURL string, timeout time.Duration) (*Client, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parse store url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("parse store url: unsupported scheme %q", u.Scheme)
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
	}, nil
}

// StatusError is returned for unexpected HTTP responses
type StatusError struct {
	Status  int
	Message string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("server returned %d", e.Status)
	}
	return fmt.Sprintf("server returned %d: %s", e.Status, e.Message)
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return store.ErrNotFound
	}
	if resp.StatusCode >= 300 {
		var e struct {
			Error string `json:"error"`
		}
		json.NewDecoder(resp.Body).Decode(&e)
		return &StatusError{Status: resp.StatusCode, Message: e.Error}
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func thoughtPath(id string) string {
	return "/thoughts/" + url.PathEscape(id)
}

func (c *Client) ListThoughts(ctx context.Context) ([]domain.Thought, error) {
	var resp ThoughtsResponse
	if err := c.do(ctx, http.MethodGet, "/thoughts", nil, &resp); err != nil {
		return nil, fmt.Errorf("list thoughts: %w", err)
	}
	return resp.Thoughts, nil
}

func (c *Client) CreateThought(ctx context.Context, t domain.Thought) (domain.Thought, error) {
	var created domain.Thought
	if err := c.do(ctx, http.MethodPost, "/thoughts", t, &created); err != nil {
		return domain.Thought{}, fmt.Errorf("create thought: %w", err)
	}
	return created, nil
}

func (c *Client) UpdateThought(ctx context.Context, id string, p domain.Patch) error {
	if err := c.do(ctx, http.MethodPatch, thoughtPath(id), p, nil); err != nil {
		return fmt.Errorf("update thought: %w", err)
	}
	return nil
}

func (c *Client) DeleteThought(ctx context.Context, id string) error {
	if err := c.do(ctx, http.MethodDelete, thoughtPath(id), nil, nil); err != nil {
		return fmt.Errorf("delete thought: %w", err)
	}
	return nil
}

func (c *Client) DeleteAllThoughts(ctx context.Context) error {
	if err := c.do(ctx, http.MethodDelete, "/thoughts", nil, nil); err != nil {
		return fmt.Errorf("clear thoughts: %w", err)
	}
	return nil
}

func (c *Client) GetCounter(ctx context.Context) (int, error) {
	var body CounterBody
	if err := c.do(ctx, http.MethodGet, "/counter", nil, &body); err != nil {
		return 0, fmt.Errorf("get counter: %w", err)
	}
	return body.Value, nil
}

func (c *Client) SetCounter(ctx context.Context, value int) error {
	if err := c.do(ctx, http.MethodPut, "/counter", CounterBody{Value: value}, nil); err != nil {
		return fmt.Errorf("set counter: %w", err)
	}
	return nil
}

func (c *Client) CompareAndSwapCounter(ctx context.Context, old, new int) (bool, error) {
	var resp CASResponse
	if err := c.do(ctx, http.MethodPost, "/counter/cas", CASRequest{Old: old, New: new}, &resp); err != nil {
		return false, fmt.Errorf("swap counter: %w", err)
	}
	return resp.Swapped, nil
}

// Close releases idle connections
func (c *Client) Close() error {
	c.http.CloseIdleConnections()
	return nil
}

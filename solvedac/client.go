// Package solvedac reads a user's solved-problem history from solved.ac.
package solvedac

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"golang.org/x/time/rate"
)

// DefaultBaseURL is the public solved.ac API host.
const DefaultBaseURL = "https://solved.ac"

// ErrUserNotFound is returned when solved.ac has no such handle.
var ErrUserNotFound = errors.New("solved.ac user not found")

// Problem is one entry of a user's top-100 list.
type Problem struct {
	ID    int    `json:"problemId"`
	Title string `json:"titleKo"`
	Level int    `json:"level"`
}

type top100Response struct {
	Count int       `json:"count"`
	Items []Problem `json:"items"`
}

// Client is a rate-limited solved.ac API client.
type Client struct {
	baseURL string
	http    *http.Client
	limiter *rate.Limiter
}

// Option configures a Client.
type Option func(*Client)

// WithBaseURL overrides the API host.
func WithBaseURL(u string) Option {
	return func(c *Client) {
		if u != "" {
			c.baseURL = u
		}
	}
}

// WithHTTPClient sets the underlying HTTP client.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) {
		if h != nil {
			c.http = h
		}
	}
}

// WithRateLimit bounds outgoing requests per second. Non-positive disables limiting.
func WithRateLimit(perSecond float64, burst int) Option {
	return func(c *Client) {
		if perSecond <= 0 {
			c.limiter = rate.NewLimiter(rate.Inf, 0)
			return
		}
		c.limiter = rate.NewLimiter(rate.Limit(perSecond), max(burst, 1))
	}
}

// New creates a client.
func New(opts ...Option) *Client {
	c := &Client{
		baseURL: DefaultBaseURL,
		http:    &http.Client{Timeout: 10 * time.Second},
		limiter: rate.NewLimiter(rate.Limit(5), 5),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// TopProblems returns the user's 100 highest-rated solved problems.
func (c *Client) TopProblems(ctx context.Context, handle string) ([]Problem, error) {
	if handle == "" {
		return nil, errors.New("handle is required")
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	endpoint := c.baseURL + "/api/v3/user/top_100?" + url.Values{"handle": {handle}}.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("solved.ac request failed: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, fmt.Errorf("%w: %s", ErrUserNotFound, handle)
	case resp.StatusCode != http.StatusOK:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("solved.ac returned %d: %s", resp.StatusCode, body)
	}

	var out top100Response
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode solved.ac response: %w", err)
	}
	if out.Items == nil {
		out.Items = []Problem{}
	}
	return out.Items, nil
}

// Solved returns the IDs of the user's top solved problems.
func (c *Client) Solved(ctx context.Context, handle string) ([]string, error) {
	problems, err := c.TopProblems(ctx, handle)
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(problems))
	for _, p := range problems {
		ids = append(ids, strconv.Itoa(p.ID))
	}
	return ids, nil
}

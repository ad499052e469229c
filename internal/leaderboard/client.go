package leaderboard

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"clicky-game/internal/model"
)

// Remote is the leaderboard store the synchronizer pushes to.
type Remote interface {
	// List returns every entry ordered by score descending.
	List(ctx context.Context) ([]model.LeaderboardEntry, error)
	// Submit inserts name or raises its score.
	Submit(ctx context.Context, name string, score int64) error
	// Reset replaces the whole leaderboard with a freshly generated seed.
	Reset(ctx context.Context) error
}

// StatusError is returned when the leaderboard service answers with a non-2xx status.
type StatusError struct {
	Code    int
	Message string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("leaderboard service returned %d", e.Code)
	}
	return fmt.Sprintf("leaderboard service returned %d: %s", e.Code, e.Message)
}

// Client talks to the leaderboard HTTP API.
type Client struct {
	baseURL    string
	httpClient *http.Client
	resetToken string
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithHTTPClient replaces the underlying http.Client.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) { c.httpClient = hc }
}

// WithResetToken sets the bearer token sent with reset requests.
func WithResetToken(token string) ClientOption {
	return func(c *Client) { c.resetToken = token }
}

// NewClient creates a Client for the service at baseURL.
func NewClient(baseURL string, timeout time.Duration, opts ...ClientOption) *Client {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type submitRequest struct {
	Name  string `json:"name"`
	Score int64  `json:"score"`
}

// List implements Remote.
func (c *Client) List(ctx context.Context) ([]model.LeaderboardEntry, error) {
	var entries []model.LeaderboardEntry
	if err := c.do(ctx, http.MethodGet, "/api/leaderboard", nil, "", &entries); err != nil {
		return nil, fmt.Errorf("failed to list leaderboard: %w", err)
	}
	return entries, nil
}

// Submit implements Remote.
func (c *Client) Submit(ctx context.Context, name string, score int64) error {
	body := submitRequest{Name: name, Score: score}
	if err := c.do(ctx, http.MethodPost, "/api/leaderboard", body, "", nil); err != nil {
		return fmt.Errorf("failed to submit score: %w", err)
	}
	return nil
}

// Reset implements Remote.
func (c *Client) Reset(ctx context.Context) error {
	if err := c.do(ctx, http.MethodPost, "/api/leaderboard/reset", nil, c.resetToken, nil); err != nil {
		return fmt.Errorf("failed to reset leaderboard: %w", err)
	}
	return nil
}

func (c *Client) do(ctx context.Context, method, path string, body any, token string, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var payload struct {
			Error string `json:"error"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&payload)
		return &StatusError{Code: resp.StatusCode, Message: payload.Error}
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// IsStatus reports whether err is a StatusError with the given code.
func IsStatus(err error, code int) bool {
	var se *StatusError
	return errors.As(err, &se) && se.Code == code
}

// Package msgapi is the HTTP client for the message service.
package msgapi

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

	"github.com/rs/zerolog"

	"github.com/tOgg1/pitchline/internal/logging"
	"github.com/tOgg1/pitchline/internal/models"
)

const (
	conversationPath = "/msg/conversation"
	sendPath         = "/msg/send"

	defaultTimeout = 10 * time.Second
	maxErrorBody   = 4 << 10
)

// StatusError is returned for any non-2xx response.
type StatusError struct {
	Method string
	Path   string
	Code   int
	Body   string
}

func (e *StatusError) Error() string {
	body := strings.TrimSpace(e.Body)
	if body == "" {
		return fmt.Sprintf("%s %s: status %d", e.Method, e.Path, e.Code)
	}
	return fmt.Sprintf("%s %s: status %d: %s", e.Method, e.Path, e.Code, body)
}

// Temporary reports whether retrying the same request could succeed.
func (e *StatusError) Temporary() bool {
	return e.Code == http.StatusTooManyRequests || e.Code >= 500
}

// Client talks to the message service.
type Client struct {
	BaseURL   string
	HTTP      *http.Client
	UserAgent string

	logger zerolog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.HTTP = hc
		}
	}
}

// WithTimeout sets the per-request timeout of the default HTTP client.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.HTTP.Timeout = d
		}
	}
}

// WithUserAgent sets the User-Agent header.
func WithUserAgent(ua string) Option {
	return func(c *Client) { c.UserAgent = ua }
}

// NewClient creates a client for the service at baseURL.
func NewClient(baseURL string, opts ...Option) *Client {
	c := &Client{
		BaseURL:   strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		HTTP:      &http.Client{Timeout: defaultTimeout},
		UserAgent: "pitchline",
		logger:    logging.Component("msgapi"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// wireMessage accepts both "_id" and "id".
type wireMessage struct {
	MongoID   string    `json:"_id"`
	ID        string    `json:"id"`
	Sender    string    `json:"sender"`
	Receiver  string    `json:"receiver"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"createdAt"`
}

type conversationResponse struct {
	Messages []wireMessage `json:"messages"`
}

// SendRequest is the body of POST /msg/send.
type SendRequest struct {
	Sender   string `json:"sender"`
	Receiver string `json:"receiver"`
	Msg      string `json:"msg"`
}

// Conversation fetches the full history between sender and receiver, in the
// order the service returned it.
func (c *Client) Conversation(ctx context.Context, sender, receiver string) ([]models.Message, error) {
	q := url.Values{}
	q.Set("sender", sender)
	q.Set("receiver", receiver)

	var out conversationResponse
	if err := c.do(ctx, http.MethodGet, conversationPath+"?"+q.Encode(), nil, &out); err != nil {
		return nil, err
	}

	msgs := make([]models.Message, 0, len(out.Messages))
	for _, w := range out.Messages {
		id := w.MongoID
		if id == "" {
			id = w.ID
		}
		msgs = append(msgs, models.Message{
			ID:        id,
			Sender:    w.Sender,
			Receiver:  w.Receiver,
			Content:   w.Content,
			CreatedAt: w.CreatedAt,
		})
	}
	return msgs, nil
}

// Send persists one message. Any 2xx response is success; the body is ignored.
func (c *Client) Send(ctx context.Context, sender, receiver, content string) error {
	return c.do(ctx, http.MethodPost, sendPath, SendRequest{Sender: sender, Receiver: receiver, Msg: content}, nil)
}

// Health probes GET /health.
func (c *Client) Health(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, "/health", nil, nil)
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode %s %s: %w", method, path, err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, body)
	if err != nil {
		return fmt.Errorf("build %s %s: %w", method, path, err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.UserAgent != "" {
		req.Header.Set("User-Agent", c.UserAgent)
	}

	start := time.Now()
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	c.logger.Debug().
		Str("method", method).
		Str("url", logging.RedactURL(req.URL.String())).
		Int("status", resp.StatusCode).
		Dur("took", time.Since(start)).
		Msg("request")

	routePath := path
	if i := strings.IndexByte(routePath, '?'); i >= 0 {
		routePath = routePath[:i]
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return &StatusError{Method: method, Path: routePath, Code: resp.StatusCode, Body: string(data)}
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s %s: %w", method, routePath, err)
	}
	return nil
}

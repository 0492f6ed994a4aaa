// Package api is the authenticated client of the cartrack backend.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/autopeer-io/cartrack/internal/pkg/metrics"
	"github.com/autopeer-io/cartrack/pkg/log"
)

const (
	headerAccept        = "Accept"
	headerAuthorization = "Authorization"
	headerContentType   = "Content-Type"
	headerRequestedWith = "X-Requested-With"
	headerToken         = "X-Token"
	headerUserAgent     = "User-Agent"

	// maxBodySize bounds how much of a response is read.
	maxBodySize = 4 << 20
)

// TokenSource yields the identity token sent as the bearer credential.
// An empty token with a nil error means no user is signed in.
type TokenSource interface {
	FetchToken(ctx context.Context) (string, error)
}

// TokenSourceFunc adapts a function to TokenSource.
type TokenSourceFunc func(ctx context.Context) (string, error)

func (f TokenSourceFunc) FetchToken(ctx context.Context) (string, error) { return f(ctx) }

// Config describes the backend endpoint.
type Config struct {
	BaseURL   string
	Timeout   time.Duration
	UserAgent string
	MediaType string
}

// Client issues backend requests with the identity token attached. The
// token is fetched once and reused until the backend reports it expired.
type Client struct {
	baseURL   string
	userAgent string
	mediaType string
	hc        *http.Client
	tokens    TokenSource
	logger    log.Logger

	mu    sync.Mutex
	token string
	// gen counts invalidations; a fetch that raced one is not cached.
	gen uint64
}

// Option customizes a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying *http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.hc = hc }
}

// NewClient builds a Client for cfg. tokens may be nil for anonymous use.
func NewClient(cfg Config, tokens TokenSource, opts ...Option) *Client {
	if tokens == nil {
		tokens = TokenSourceFunc(func(context.Context) (string, error) { return "", nil })
	}
	c := &Client{
		baseURL:   strings.TrimSuffix(cfg.BaseURL, "/"),
		userAgent: cfg.UserAgent,
		mediaType: cfg.MediaType,
		hc:        &http.Client{Timeout: cfg.Timeout},
		tokens:    tokens,
		logger:    log.WithName("api"),
	}
	if c.mediaType == "" {
		c.mediaType = "application/json"
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// InvalidateToken drops the cached identity token; the next request fetches
// a new one. Called whenever the signed-in identity changes.
func (c *Client) InvalidateToken() {
	c.mu.Lock()
	c.token = ""
	c.gen++
	c.mu.Unlock()
}

// Get decodes the response of GET path into T.
func Get[T any](ctx context.Context, c *Client, path, capToken string) (T, error) {
	var out T
	err := c.do(ctx, http.MethodGet, path, capToken, nil, &out)
	return out, err
}

// Post encodes body, sends it to path and decodes the response into T.
func Post[T any](ctx context.Context, c *Client, path, capToken string, body any) (T, error) {
	var out T
	payload, err := json.Marshal(body)
	if err != nil {
		return out, fmt.Errorf("encode request body: %w", err)
	}
	err = c.do(ctx, http.MethodPost, path, capToken, payload, &out)
	return out, err
}

// do sends the request and, on an expired identity token, refreshes it and
// retries exactly once.
func (c *Client) do(ctx context.Context, method, path, capToken string, payload []byte, out any) error {
	token := c.identityToken(ctx)
	err := c.roundTrip(ctx, method, path, token, capToken, payload, out)
	if !errors.Is(err, ErrAuthExpired) {
		return err
	}

	c.InvalidateToken()
	fresh := c.identityToken(ctx)
	if fresh == "" {
		metrics.TokenRefreshTotal.WithLabelValues("unavailable").Inc()
		return err
	}
	metrics.TokenRefreshTotal.WithLabelValues("refreshed").Inc()

	c.logger.Info("Identity token expired, retrying with a refreshed token", "method", method, "path", path)
	return c.roundTrip(ctx, method, path, fresh, capToken, payload, out)
}

// identityToken returns the cached token, fetching it when absent. A fetch
// failure is logged and treated as no token.
func (c *Client) identityToken(ctx context.Context) string {
	c.mu.Lock()
	token, gen := c.token, c.gen
	c.mu.Unlock()
	if token != "" {
		return token
	}

	token, err := c.tokens.FetchToken(ctx)
	if err != nil {
		c.logger.Warn("Could not obtain identity token", "error", err)
		return ""
	}

	c.mu.Lock()
	if c.gen == gen {
		c.token = token
	}
	c.mu.Unlock()
	return token
}

func (c *Client) roundTrip(ctx context.Context, method, path, token, capToken string, payload []byte, out any) (err error) {
	defer func() {
		metrics.APIRequestsTotal.WithLabelValues(method, path, resultLabel(err)).Inc()
	}()

	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set(headerAccept, c.mediaType)
	req.Header.Set(headerRequestedWith, "XMLHttpRequest")
	if c.userAgent != "" {
		req.Header.Set(headerUserAgent, c.userAgent)
	}
	if token != "" {
		req.Header.Set(headerAuthorization, "Bearer "+token)
	}
	if capToken != "" {
		req.Header.Set(headerToken, capToken)
	}
	if payload != nil {
		req.Header.Set(headerContentType, c.mediaType)
	}

	resp, err := c.hc.Do(req)
	if err != nil {
		return &NetworkError{Err: err}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return &NetworkError{Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return parseError(resp.StatusCode, data)
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return &DecodeError{Err: err}
	}
	return nil
}

func parseError(status int, data []byte) error {
	var envelope struct {
		Errors []ErrorEntry `json:"errors"`
	}
	if json.Unmarshal(data, &envelope) == nil && len(envelope.Errors) > 0 {
		return &APIError{Status: status, Errors: envelope.Errors}
	}
	return &StatusError{Code: status}
}

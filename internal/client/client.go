// Package client talks to the rental backend over its REST API. It implements
// the gate's Backend, the synced clock's TimeSource and the monitor's poller
// source.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"rentalshop-trusted/internal/domain"
	"rentalshop-trusted/internal/logger"
)

// ErrNotAuthenticated is returned before any request when no session token
// is available for an endpoint that needs one.
var ErrNotAuthenticated = errors.New("not signed in")

// APIError is a non-2xx answer from the backend.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("backend returned %d", e.StatusCode)
	}
	return fmt.Sprintf("backend returned %d: %s", e.StatusCode, e.Message)
}

// TokenSource supplies the bearer token of the current session.
type TokenSource interface {
	Token() string
}

type staticToken string

func (s staticToken) Token() string { return string(s) }

// StaticToken wraps a fixed token, mostly for tests and scripts.
func StaticToken(token string) TokenSource { return staticToken(token) }

type Client struct {
	baseURL string
	tokens  TokenSource
	read    *http.Client
	write   *http.Client
	log     *slog.Logger
}

type Option func(*config)

type config struct {
	transport http.RoundTripper
	timeout   time.Duration
	retry     retryOptions
}

func WithTransport(t http.RoundTripper) Option {
	return func(c *config) { c.transport = t }
}

// WithTimeout bounds each HTTP attempt.
func WithTimeout(d time.Duration) Option {
	return func(c *config) { c.timeout = d }
}

func WithRetries(maxRetries int, waitMin, waitMax time.Duration) Option {
	return func(c *config) {
		c.retry = retryOptions{maxRetries: maxRetries, waitMin: waitMin, waitMax: waitMax}
	}
}

func New(baseURL string, tokens TokenSource, opts ...Option) *Client {
	cfg := config{
		timeout: 15 * time.Second,
		retry:   retryOptions{maxRetries: 3, waitMin: time.Second, waitMax: 10 * time.Second},
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.transport == nil {
		cfg.transport = defaultTransport()
	}
	if tokens == nil {
		tokens = staticToken("")
	}

	log := logger.WithComponent("backend-client")
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		tokens:  tokens,
		read:    newReadClient(cfg.transport, cfg.timeout, cfg.retry, log),
		write:   newWriteClient(cfg.transport, cfg.timeout),
		log:     log,
	}
}

// envelope is the backend's {success, message, data} response shape.
type envelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
}

func (c *Client) do(ctx context.Context, method, path string, body any, auth bool) (*envelope, error) {
	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if auth {
		token := c.tokens.Token()
		if token == "" {
			return nil, ErrNotAuthenticated
		}
		req.Header.Set("Authorization", "Bearer "+token)
	}

	hc := c.write
	if method == http.MethodGet {
		hc = c.read
	}

	logger.ExternalServiceCall("backend", method+" "+path)
	resp, err := hc.Do(req)
	if err != nil {
		logger.ExternalServiceResult("backend", method+" "+path, err)
		return nil, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	var env envelope
	decodeErr := json.Unmarshal(raw, &env)
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &APIError{StatusCode: resp.StatusCode, Message: env.Message}
		if decodeErr != nil {
			apiErr.Message = strings.TrimSpace(string(raw))
		}
		logger.ExternalServiceResult("backend", method+" "+path, apiErr)
		return nil, apiErr
	}
	if decodeErr != nil {
		return nil, fmt.Errorf("decode response: %w", decodeErr)
	}
	if !env.Success {
		apiErr := &APIError{StatusCode: resp.StatusCode, Message: env.Message}
		logger.ExternalServiceResult("backend", method+" "+path, apiErr)
		return nil, apiErr
	}
	logger.ExternalServiceResult("backend", method+" "+path, nil)
	return &env, nil
}

// LoginResult is what a successful sign-in hands back.
type LoginResult struct {
	AccessToken string `json:"access_token"`
	User        struct {
		ID       int64  `json:"id"`
		Username string `json:"username"`
		Name     string `json:"name"`
		Role     string `json:"role"`
		BranchID int64  `json:"branch_id"`
	} `json:"user"`
}

func (c *Client) Login(ctx context.Context, username, password string) (*LoginResult, error) {
	env, err := c.do(ctx, http.MethodPost, "/api/auth/login", map[string]string{
		"username": username,
		"password": password,
	}, false)
	if err != nil {
		return nil, err
	}
	var res LoginResult
	if err := json.Unmarshal(env.Data, &res); err != nil {
		return nil, fmt.Errorf("decode login: %w", err)
	}
	return &res, nil
}

// ServerTime reads the backend clock. The endpoint is public and answers a
// bare {"serverTime": <unix ms>}. It is sent once through the write client:
// a retried request would fold the backoff into the caller's round trip.
func (c *Client) ServerTime(ctx context.Context) (time.Time, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/time", nil)
	if err != nil {
		return time.Time{}, err
	}
	resp, err := c.write.Do(req)
	if err != nil {
		return time.Time{}, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return time.Time{}, &APIError{StatusCode: resp.StatusCode}
	}

	var body struct {
		ServerTime *int64 `json:"serverTime"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return time.Time{}, fmt.Errorf("decode server time: %w", err)
	}
	if body.ServerTime == nil {
		return time.Time{}, errors.New("server time missing from response")
	}
	return time.UnixMilli(*body.ServerTime), nil
}

// ListActiveRentals returns the open rentals of a branch, or of every branch
// the caller may see when branchID is zero.
func (c *Client) ListActiveRentals(ctx context.Context, branchID int64) ([]domain.Rental, error) {
	path := "/api/rentals/active"
	if branchID != 0 {
		path += "?" + url.Values{"branch_id": {strconv.FormatInt(branchID, 10)}}.Encode()
	}
	env, err := c.do(ctx, http.MethodGet, path, nil, true)
	if err != nil {
		return nil, err
	}
	var payloads []rentalPayload
	if err := json.Unmarshal(env.Data, &payloads); err != nil {
		return nil, fmt.Errorf("decode rentals: %w", err)
	}
	out := make([]domain.Rental, 0, len(payloads))
	for _, p := range payloads {
		out = append(out, p.toDomain(c.log))
	}
	return out, nil
}

func (c *Client) GetRental(ctx context.Context, id int64) (*domain.Rental, error) {
	env, err := c.do(ctx, http.MethodGet, fmt.Sprintf("/api/rentals/%d", id), nil, true)
	if err != nil {
		return nil, err
	}
	return c.decodeRental(env)
}

func (c *Client) CancelRental(ctx context.Context, rentalID int64, reason string) (*domain.Rental, error) {
	env, err := c.do(ctx, http.MethodPost, fmt.Sprintf("/api/rentals/%d/cancel", rentalID), map[string]string{
		"reason": reason,
	}, true)
	if err != nil {
		return nil, err
	}
	return c.decodeRental(env)
}

func (c *Client) ExtendRental(ctx context.Context, rentalID int64, extraMinutes int32) (*domain.Rental, error) {
	env, err := c.do(ctx, http.MethodPost, fmt.Sprintf("/api/rentals/%d/extend", rentalID), map[string]int32{
		"extra_minutes": extraMinutes,
	}, true)
	if err != nil {
		return nil, err
	}
	return c.decodeRental(env)
}

func (c *Client) CompleteRental(ctx context.Context, rentalID int64, payment domain.PaymentInfo) (*domain.Rental, error) {
	env, err := c.do(ctx, http.MethodPost, fmt.Sprintf("/api/rentals/%d/complete", rentalID), payment, true)
	if err != nil {
		return nil, err
	}
	return c.decodeRental(env)
}

// decodeRental returns nil without error when the backend confirmed the
// action but sent no record back.
func (c *Client) decodeRental(env *envelope) (*domain.Rental, error) {
	if len(env.Data) == 0 || string(env.Data) == "null" {
		return nil, nil
	}
	var p rentalPayload
	if err := json.Unmarshal(env.Data, &p); err != nil {
		return nil, fmt.Errorf("decode rental: %w", err)
	}
	r := p.toDomain(c.log)
	return &r, nil
}

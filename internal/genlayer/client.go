// Package genlayer provides a Go client for the GenLayer JSON-RPC API.
//
// The client covers the small surface a game front-end needs: read-only
// contract calls (gen_call), contract writes (eth_sendTransaction) and
// transaction status polling. Transactions are signed by the endpoint or the
// connected wallet; this package never handles private keys.
//
// # Usage
//
//	client := genlayer.NewClient(genlayer.Config{
//	    Endpoint: genlayer.StudioNetEndpoint,
//	    Account:  "0x...",
//	})
//
//	count, err := client.ReadContract(ctx, genlayer.ReadRequest{
//	    Address:  contract,
//	    Function: "get_room_count",
//	})
package genlayer

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"
)

// StudioNetEndpoint is the public GenLayer Studio RPC endpoint.
const StudioNetEndpoint = "https://studio.genlayer.com/api"

// Config holds configuration for the GenLayer client.
type Config struct {
	// Endpoint is the JSON-RPC URL. Defaults to StudioNetEndpoint.
	Endpoint string

	// Account is the address used as "from" for reads and writes.
	// Writes fail with ErrNoAccount when empty.
	Account string

	// APIKey is sent as a bearer token when set. Optional.
	APIKey string

	// MaxRetries is the maximum number of retry attempts for retryable errors.
	// Defaults to 3 if zero.
	MaxRetries int

	// BaseRetryDelay is the initial delay before the first retry.
	// Defaults to 2 seconds if zero.
	BaseRetryDelay time.Duration

	// MaxRetryDelay caps the exponential backoff delay.
	// Defaults to 10 seconds if zero.
	MaxRetryDelay time.Duration

	// RequestsPerSecond throttles outgoing calls. Zero disables throttling.
	RequestsPerSecond float64

	// HTTPClient allows injecting a custom HTTP client (useful for testing).
	// Defaults to a client with 30s timeout.
	HTTPClient *http.Client

	// UserAgent overrides the User-Agent header. Optional.
	UserAgent string

	// Observer receives per-call outcomes. Optional.
	Observer Observer
}

// Observer is notified after every JSON-RPC call completes.
type Observer interface {
	ObserveCall(method string, dur time.Duration, err error)
}

// Client is a GenLayer JSON-RPC client. It is safe for concurrent use.
type Client struct {
	config  Config
	http    *http.Client
	limiter *rate.Limiter
	nextID  atomic.Uint64

	mu      sync.RWMutex
	account string
	apiKey  string
}

// NewClient creates a new GenLayer client with the given configuration.
func NewClient(cfg Config) *Client {
	if cfg.Endpoint == "" {
		cfg.Endpoint = StudioNetEndpoint
	}
	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = 3
	}
	if cfg.BaseRetryDelay == 0 {
		cfg.BaseRetryDelay = 2 * time.Second
	}
	if cfg.MaxRetryDelay == 0 {
		cfg.MaxRetryDelay = 10 * time.Second
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}

	var limiter *rate.Limiter
	if cfg.RequestsPerSecond > 0 {
		burst := int(math.Ceil(cfg.RequestsPerSecond))
		limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), burst)
	}

	return &Client{
		config:  cfg,
		http:    httpClient,
		limiter: limiter,
		account: strings.TrimSpace(cfg.Account),
		apiKey:  strings.TrimSpace(cfg.APIKey),
	}
}

// Endpoint returns the configured RPC URL.
func (c *Client) Endpoint() string {
	return c.config.Endpoint
}

// Account returns the current sender address (thread-safe).
func (c *Client) Account() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.account
}

// SetAccount replaces the sender address (thread-safe).
// Call this when the user connects a different wallet.
func (c *Client) SetAccount(address string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.account = strings.TrimSpace(address)
}

// SetAPIKey replaces the bearer token sent with every call ("" disables it).
func (c *Client) SetAPIKey(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.apiKey = strings.TrimSpace(key)
}

func (c *Client) bearer() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.apiKey
}

// --- Core request methods ---

// call sends a single JSON-RPC request and decodes the result into out.
func (c *Client) call(ctx context.Context, method string, params any, out any) error {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return err
		}
	}

	reqBody := rpcRequest{
		JSONRPC: "2.0",
		ID:      c.nextID.Add(1),
		Method:  method,
		Params:  params,
	}
	jsonBody, err := json.Marshal(reqBody)
	if err != nil {
		return fmt.Errorf("genlayer: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.Endpoint, bytes.NewReader(jsonBody))
	if err != nil {
		return fmt.Errorf("genlayer: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if key := c.bearer(); key != "" {
		req.Header.Set("Authorization", "Bearer "+key)
	}
	if c.config.UserAgent != "" {
		req.Header.Set("User-Agent", c.config.UserAgent)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return &TransportError{Err: err}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return &TransportError{Err: fmt.Errorf("read response: %w", err)}
	}

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return &AuthError{StatusCode: resp.StatusCode, Message: strings.TrimSpace(string(respBody))}
	}
	if resp.StatusCode != http.StatusOK {
		return &HTTPError{StatusCode: resp.StatusCode, Body: string(respBody)}
	}

	var envelope rpcResponse
	if err := json.Unmarshal(respBody, &envelope); err != nil {
		return fmt.Errorf("genlayer: invalid response JSON: %w", err)
	}
	if envelope.Error != nil {
		return envelope.Error
	}
	if out == nil {
		return nil
	}
	if len(envelope.Result) == 0 || string(envelope.Result) == "null" {
		return ErrEmptyResult
	}
	if err := json.Unmarshal(envelope.Result, out); err != nil {
		return fmt.Errorf("genlayer: decode %s result: %w", method, err)
	}
	return nil
}

// callWithRetry sends a request with automatic retry on retryable errors.
func (c *Client) callWithRetry(ctx context.Context, method string, params any, out any) error {
	start := time.Now()
	err := c.retry(ctx, method, params, out)
	if c.config.Observer != nil {
		c.config.Observer.ObserveCall(method, time.Since(start), err)
	}
	return err
}

func (c *Client) retry(ctx context.Context, method string, params any, out any) error {
	var lastErr error

	for attempt := 0; attempt <= c.config.MaxRetries; attempt++ {
		if attempt > 0 {
			delay := c.retryDelay(attempt)
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return ctx.Err()
			}
		}

		err := c.call(ctx, method, params, out)
		if err == nil {
			return nil
		}
		lastErr = err

		if ctx.Err() != nil {
			return ctx.Err()
		}
		if !isRetryable(err) {
			return err
		}
	}

	return fmt.Errorf("genlayer: max retries exceeded: %w", lastErr)
}

// retryDelay calculates the backoff delay for a given attempt number.
func (c *Client) retryDelay(attempt int) time.Duration {
	delay := c.config.BaseRetryDelay * time.Duration(math.Pow(2, float64(attempt-1)))
	if delay > c.config.MaxRetryDelay {
		delay = c.config.MaxRetryDelay
	}
	return delay
}

func isRetryable(err error) bool {
	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		return httpErr.IsRetryable()
	}
	var transportErr *TransportError
	return errors.As(err, &transportErr)
}

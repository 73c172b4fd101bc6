package genlayer

import (
	"errors"
	"fmt"
)

var (
	// ErrNoAccount is returned by writes when no sender address is configured.
	ErrNoAccount = errors.New("genlayer: no account configured for write")

	// ErrEmptyResult means the node answered with a null result.
	ErrEmptyResult = errors.New("genlayer: empty result")

	// ErrReceiptTimeout means the transaction did not reach the requested
	// status within the configured number of polls.
	ErrReceiptTimeout = errors.New("genlayer: timed out waiting for transaction receipt")

	// ErrTransactionFailed means the transaction reached a terminal failure
	// status (canceled or undetermined consensus).
	ErrTransactionFailed = errors.New("genlayer: transaction failed")
)

// RPCError is a JSON-RPC error object returned by the node.
type RPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

func (e *RPCError) Error() string {
	return fmt.Sprintf("genlayer: rpc error %d: %s", e.Code, e.Message)
}

// JSON-RPC reserved error codes.
const (
	CodeParseError     = -32700
	CodeInvalidRequest = -32600
	CodeMethodNotFound = -32601
	CodeInvalidParams  = -32602
	CodeInternalError  = -32603
)

// IsMethodNotFound reports whether the node does not implement the method.
func (e *RPCError) IsMethodNotFound() bool {
	return e.Code == CodeMethodNotFound
}

// HTTPError represents a non-200 HTTP response from the node.
type HTTPError struct {
	StatusCode int
	Body       string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("genlayer: HTTP %d: %s", e.StatusCode, e.Body)
}

// IsRateLimited returns true if the status indicates rate limiting (429).
func (e *HTTPError) IsRateLimited() bool {
	return e.StatusCode == 429
}

// IsRetryable returns true for rate limits (429) and server errors (5xx).
func (e *HTTPError) IsRetryable() bool {
	return e.StatusCode == 429 || e.StatusCode >= 500
}

// AuthError indicates the endpoint rejected the API key.
type AuthError struct {
	StatusCode int
	Message    string
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("genlayer: authentication failed (HTTP %d): %s", e.StatusCode, e.Message)
}

// TransportError wraps network-level failures (dial, reset, read).
type TransportError struct {
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("genlayer: transport: %v", e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

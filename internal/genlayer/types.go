package genlayer

import (
	"encoding/json"
	"fmt"
	"strings"
)

// --- JSON-RPC envelope ---

type rpcRequest struct {
	JSONRPC string `json:"jsonrpc"`
	ID      uint64 `json:"id"`
	Method  string `json:"method"`
	Params  any    `json:"params"`
}

type rpcResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *RPCError       `json:"error,omitempty"`
}

// --- Contract call types ---

// ReadRequest describes a read-only contract call.
type ReadRequest struct {
	Address  string
	Function string
	Args     []any
}

// WriteRequest describes a state-changing contract call.
type WriteRequest struct {
	Address  string
	Function string
	Args     []any
	// Value is the native token amount in wei. Zero for every game call.
	Value uint64
}

type callParams struct {
	Type        string `json:"type"`
	To          string `json:"to"`
	From        string `json:"from"`
	Data        string `json:"data"`
	HashVariant string `json:"transaction_hash_variant"`
}

type sendParams struct {
	From  string `json:"from"`
	To    string `json:"to"`
	Data  string `json:"data"`
	Value string `json:"value"`
}

// --- Transaction status ---

// TransactionStatus is a consensus stage of a GenLayer transaction.
type TransactionStatus string

const (
	StatusUninitialized TransactionStatus = "UNINITIALIZED"
	StatusPending       TransactionStatus = "PENDING"
	StatusProposing     TransactionStatus = "PROPOSING"
	StatusCommitting    TransactionStatus = "COMMITTING"
	StatusRevealing     TransactionStatus = "REVEALING"
	StatusAccepted      TransactionStatus = "ACCEPTED"
	StatusUndetermined  TransactionStatus = "UNDETERMINED"
	StatusFinalized     TransactionStatus = "FINALIZED"
	StatusCanceled      TransactionStatus = "CANCELED"
)

// numeric status codes as reported by nodes that do not send names.
var statusByCode = []TransactionStatus{
	StatusUninitialized,
	StatusPending,
	StatusProposing,
	StatusCommitting,
	StatusRevealing,
	StatusAccepted,
	StatusUndetermined,
	StatusFinalized,
	StatusCanceled,
}

// UnmarshalJSON accepts both names ("ACCEPTED") and numeric codes (5).
func (s *TransactionStatus) UnmarshalJSON(data []byte) error {
	var name string
	if err := json.Unmarshal(data, &name); err == nil {
		*s = TransactionStatus(strings.ToUpper(strings.TrimSpace(name)))
		return nil
	}
	var code int
	if err := json.Unmarshal(data, &code); err != nil {
		return fmt.Errorf("genlayer: invalid transaction status %s", string(data))
	}
	if code < 0 || code >= len(statusByCode) {
		return fmt.Errorf("genlayer: unknown transaction status code %d", code)
	}
	*s = statusByCode[code]
	return nil
}

// IsFailed reports whether the transaction can no longer be accepted.
func (s TransactionStatus) IsFailed() bool {
	return s == StatusCanceled || s == StatusUndetermined
}

// Satisfies reports whether s is at least as final as want.
// FINALIZED satisfies any wait; ACCEPTED satisfies a wait for ACCEPTED.
func (s TransactionStatus) Satisfies(want TransactionStatus) bool {
	if s == want {
		return true
	}
	return s == StatusFinalized && want == StatusAccepted
}

// TransactionReceipt is the node's view of a submitted transaction.
type TransactionReceipt struct {
	Hash   string            `json:"hash"`
	Status TransactionStatus `json:"status"`
	From   string            `json:"from_address,omitempty"`
	To     string            `json:"to_address,omitempty"`
	// Raw keeps every field the node returned, for display/debugging.
	Raw map[string]any `json:"-"`
}

// UnmarshalJSON keeps the raw object next to the typed fields.
func (r *TransactionReceipt) UnmarshalJSON(data []byte) error {
	type plain TransactionReceipt
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*r = TransactionReceipt(p)
	r.Raw = raw
	return nil
}

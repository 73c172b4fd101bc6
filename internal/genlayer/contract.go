package genlayer

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/oraclegame/oracle-game/internal/calldata"
)

const zeroAddress = "0x0000000000000000000000000000000000000000"

// ReadContract calls a view method and returns the decoded calldata value.
func (c *Client) ReadContract(ctx context.Context, req ReadRequest) (any, error) {
	data, err := encodeCall(req.Function, req.Args)
	if err != nil {
		return nil, err
	}

	from := c.Account()
	if from == "" {
		from = zeroAddress
	}

	var resultHex string
	err = c.callWithRetry(ctx, "gen_call", []any{callParams{
		Type:        "read",
		To:          req.Address,
		From:        from,
		Data:        data,
		HashVariant: "latest-nonfinal",
	}}, &resultHex)
	if err != nil {
		return nil, err
	}

	raw, err := decodeHex(resultHex)
	if err != nil {
		return nil, fmt.Errorf("genlayer: %s result: %w", req.Function, err)
	}
	if len(raw) == 0 {
		return nil, nil
	}
	val, err := calldata.Decode(raw)
	if err != nil {
		return nil, fmt.Errorf("genlayer: %s result: %w", req.Function, err)
	}
	return val, nil
}

// WriteContract submits a transaction and returns its hash. The endpoint (or
// the wallet behind it) signs on behalf of the configured account.
func (c *Client) WriteContract(ctx context.Context, req WriteRequest) (string, error) {
	from := c.Account()
	if from == "" {
		return "", ErrNoAccount
	}

	data, err := encodeCall(req.Function, req.Args)
	if err != nil {
		return "", err
	}

	var hash string
	err = c.callWithRetry(ctx, "eth_sendTransaction", []any{sendParams{
		From:  from,
		To:    req.Address,
		Data:  data,
		Value: "0x" + strconv.FormatUint(req.Value, 16),
	}}, &hash)
	if err != nil {
		return "", err
	}
	return hash, nil
}

// WaitOptions controls receipt polling.
type WaitOptions struct {
	// Status is the stage to wait for. Defaults to ACCEPTED.
	Status TransactionStatus
	// Retries is the number of polls before giving up. Defaults to 24.
	Retries int
	// Interval is the delay between polls. Defaults to 5s.
	Interval time.Duration
}

// GetTransaction fetches the current state of a transaction.
func (c *Client) GetTransaction(ctx context.Context, hash string) (*TransactionReceipt, error) {
	var receipt TransactionReceipt
	if err := c.callWithRetry(ctx, "eth_getTransactionByHash", []any{hash}, &receipt); err != nil {
		return nil, err
	}
	if receipt.Hash == "" {
		receipt.Hash = hash
	}
	return &receipt, nil
}

// WaitForTransactionReceipt polls until the transaction reaches opts.Status.
// A not-yet-indexed transaction (empty result) counts as still pending.
func (c *Client) WaitForTransactionReceipt(ctx context.Context, hash string, opts WaitOptions) (*TransactionReceipt, error) {
	if opts.Status == "" {
		opts.Status = StatusAccepted
	}
	if opts.Retries <= 0 {
		opts.Retries = 24
	}
	if opts.Interval <= 0 {
		opts.Interval = 5 * time.Second
	}

	var last *TransactionReceipt
	for attempt := 0; attempt < opts.Retries; attempt++ {
		if attempt > 0 {
			select {
			case <-time.After(opts.Interval):
			case <-ctx.Done():
				return last, ctx.Err()
			}
		}

		receipt, err := c.GetTransaction(ctx, hash)
		switch {
		case errors.Is(err, ErrEmptyResult):
			continue
		case err != nil:
			return last, err
		}
		last = receipt

		if receipt.Status.Satisfies(opts.Status) {
			return receipt, nil
		}
		if receipt.Status.IsFailed() {
			return receipt, fmt.Errorf("%w: %s is %s", ErrTransactionFailed, hash, receipt.Status)
		}
	}
	return last, fmt.Errorf("%w: %s after %d polls", ErrReceiptTimeout, hash, opts.Retries)
}

func encodeCall(function string, args []any) (string, error) {
	if strings.TrimSpace(function) == "" {
		return "", fmt.Errorf("genlayer: function name is required")
	}
	data, err := calldata.Encode(calldata.MethodCall(function, args))
	if err != nil {
		return "", fmt.Errorf("genlayer: encode %s: %w", function, err)
	}
	return "0x" + hex.EncodeToString(data), nil
}

func decodeHex(s string) ([]byte, error) {
	s = strings.TrimPrefix(strings.TrimPrefix(strings.TrimSpace(s), "0x"), "0X")
	return hex.DecodeString(s)
}

// Package oraclegame binds the OracleGame intelligent contract.
//
// Each method maps one-to-one onto a contract method:
//
//	get_room_count()                 -> GetRoomCount
//	get_room_leaderboard(room_id)    -> GetRoomLeaderboard
//	create_room(prompt)              -> CreateRoom
//	submit_answer(room_id, answer)   -> SubmitAnswer
//	finalize_game(room_id)           -> FinalizeGame
//
// Reads are single calls; writes submit a transaction and wait until it is
// ACCEPTED by consensus.
package oraclegame

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"math/big"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/oraclegame/oracle-game/internal/calldata"
	"github.com/oraclegame/oracle-game/internal/genlayer"
)

// Chain is the subset of the GenLayer client the binding needs.
type Chain interface {
	ReadContract(ctx context.Context, req genlayer.ReadRequest) (any, error)
	WriteContract(ctx context.Context, req genlayer.WriteRequest) (string, error)
	WaitForTransactionReceipt(ctx context.Context, hash string, opts genlayer.WaitOptions) (*genlayer.TransactionReceipt, error)
	SetAccount(address string)
}

var (
	ErrRoomCount      = errors.New("failed to fetch room count from contract")
	ErrCreateRoom     = errors.New("failed to create room")
	ErrSubmitAnswer   = errors.New("failed to submit answer")
	ErrFinalizeGame   = errors.New("failed to finalize game")
	ErrInvalidAddress = errors.New("invalid contract address")
)

// WaitPolicy is the receipt polling budget for one kind of write.
type WaitPolicy struct {
	Retries  int
	Interval time.Duration
}

// Timings holds receipt polling budgets. Finalization waits longer because
// the jury consensus takes longer to resolve than a plain write.
type Timings struct {
	Write    WaitPolicy
	Finalize WaitPolicy
}

// DefaultTimings matches the studionet defaults: 24×5s for writes,
// 60×5s for finalization.
var DefaultTimings = Timings{
	Write:    WaitPolicy{Retries: 24, Interval: 5 * time.Second},
	Finalize: WaitPolicy{Retries: 60, Interval: 5 * time.Second},
}

// Contract is a typed binding to one deployed OracleGame contract.
type Contract struct {
	address string
	chain   Chain
	timings Timings
	logger  *log.Logger
}

// New creates a binding for the contract at address.
func New(address string, chain Chain) (*Contract, error) {
	address = strings.TrimSpace(address)
	if !calldata.IsAddress(address) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidAddress, address)
	}
	return &Contract{
		address: address,
		chain:   chain,
		timings: DefaultTimings,
		logger:  log.New(os.Stdout, "[OracleGame] ", log.LstdFlags),
	}, nil
}

// SetTimings overrides receipt polling budgets.
func (c *Contract) SetTimings(t Timings) {
	c.timings = t
}

// Address returns the contract address.
func (c *Contract) Address() string {
	return c.address
}

// UpdateAccount changes the address used for write transactions.
func (c *Contract) UpdateAccount(address string) {
	c.chain.SetAccount(address)
}

// ─── Reads ───

// GetRoomCount returns the total number of rooms created.
// Non-numeric results count as zero.
func (c *Contract) GetRoomCount(ctx context.Context) (int, error) {
	raw, err := c.chain.ReadContract(ctx, genlayer.ReadRequest{
		Address:  c.address,
		Function: "get_room_count",
	})
	if err != nil {
		c.logger.Printf("Error fetching room count: %v", err)
		return 0, fmt.Errorf("%w: %w", ErrRoomCount, err)
	}
	return toInt(raw), nil
}

// GetRoomLeaderboard returns the leaderboard of a finalized room. The contract
// returns a JSON string; an already-decoded array is accepted too. Any failure
// yields an empty leaderboard because the room may simply not be finalized yet.
func (c *Contract) GetRoomLeaderboard(ctx context.Context, roomID int) ([]RoomLeaderboardEntry, error) {
	raw, err := c.chain.ReadContract(ctx, genlayer.ReadRequest{
		Address:  c.address,
		Function: "get_room_leaderboard",
		Args:     []any{roomID},
	})
	if err != nil {
		c.logger.Printf("Error fetching room leaderboard for room %d: %v", roomID, err)
		return []RoomLeaderboardEntry{}, nil
	}

	entries, skipped, err := ParseLeaderboard(raw)
	if err != nil {
		c.logger.Printf("Error parsing room leaderboard for room %d: %v", roomID, err)
		return []RoomLeaderboardEntry{}, nil
	}
	for _, bad := range skipped {
		c.logger.Printf("Skipping leaderboard entry for room %d: %v", roomID, bad)
	}
	return entries, nil
}

// ─── Writes ───

// CreateRoom creates a new game room with the given prompt.
func (c *Contract) CreateRoom(ctx context.Context, prompt string) (*genlayer.TransactionReceipt, error) {
	receipt, err := c.write(ctx, "create_room", []any{prompt}, c.timings.Write)
	if err != nil {
		c.logger.Printf("Error creating room: %v", err)
		return receipt, fmt.Errorf("%w: %w", ErrCreateRoom, err)
	}
	return receipt, nil
}

// SubmitAnswer submits an answer to a room.
func (c *Contract) SubmitAnswer(ctx context.Context, roomID int, answer string) (*genlayer.TransactionReceipt, error) {
	receipt, err := c.write(ctx, "submit_answer", []any{roomID, answer}, c.timings.Write)
	if err != nil {
		c.logger.Printf("Error submitting answer to room %d: %v", roomID, err)
		return receipt, fmt.Errorf("%w: %w", ErrSubmitAnswer, err)
	}
	return receipt, nil
}

// FinalizeGame triggers the AI jury for a room.
func (c *Contract) FinalizeGame(ctx context.Context, roomID int) (*genlayer.TransactionReceipt, error) {
	receipt, err := c.write(ctx, "finalize_game", []any{roomID}, c.timings.Finalize)
	if err != nil {
		c.logger.Printf("Error finalizing room %d: %v", roomID, err)
		return receipt, fmt.Errorf("%w: %w", ErrFinalizeGame, err)
	}
	return receipt, nil
}

func (c *Contract) write(ctx context.Context, function string, args []any, policy WaitPolicy) (*genlayer.TransactionReceipt, error) {
	hash, err := c.chain.WriteContract(ctx, genlayer.WriteRequest{
		Address:  c.address,
		Function: function,
		Args:     args,
	})
	if err != nil {
		return nil, err
	}
	receipt, err := c.chain.WaitForTransactionReceipt(ctx, hash, genlayer.WaitOptions{
		Status:   genlayer.StatusAccepted,
		Retries:  policy.Retries,
		Interval: policy.Interval,
	})
	if receipt == nil && err != nil {
		// sent but never seen by the node
		receipt = &genlayer.TransactionReceipt{Hash: hash, Status: genlayer.StatusPending}
	}
	return receipt, err
}

// ─── Decoding helpers ───

type rawEntry struct {
	Player string          `json:"player"`
	Score  json.RawMessage `json:"score"`
}

// ParseLeaderboard converts a get_room_leaderboard result into entries.
// raw may be a JSON string, JSON bytes or a decoded calldata array. Rows
// whose score is not a number are dropped and reported in skipped.
func ParseLeaderboard(raw any) (entries []RoomLeaderboardEntry, skipped []error, err error) {
	var data []byte
	switch v := raw.(type) {
	case nil:
		return []RoomLeaderboardEntry{}, nil, nil
	case string:
		if strings.TrimSpace(v) == "" {
			return []RoomLeaderboardEntry{}, nil, nil
		}
		data = []byte(v)
	case []byte:
		data = v
	case []any:
		normalized, err := json.Marshal(normalizeJSON(v))
		if err != nil {
			return nil, nil, fmt.Errorf("oraclegame: re-encode leaderboard: %w", err)
		}
		data = normalized
	default:
		return nil, nil, fmt.Errorf("oraclegame: unexpected leaderboard type %T", raw)
	}

	var rows []json.RawMessage
	if err := json.Unmarshal(data, &rows); err != nil {
		return nil, nil, fmt.Errorf("oraclegame: decode leaderboard: %w", err)
	}

	entries = make([]RoomLeaderboardEntry, 0, len(rows))
	for i, row := range rows {
		e, err := parseEntry(row)
		if err != nil {
			skipped = append(skipped, fmt.Errorf("row %d: %w", i, err))
			continue
		}
		entries = append(entries, e)
	}
	return entries, skipped, nil
}

func parseEntry(row json.RawMessage) (RoomLeaderboardEntry, error) {
	var e rawEntry
	if err := json.Unmarshal(row, &e); err != nil {
		return RoomLeaderboardEntry{}, err
	}
	text := strings.TrimSpace(string(e.Score))
	if unquoted, err := strconv.Unquote(text); err == nil {
		text = strings.TrimSpace(unquoted)
	}
	score, err := decimal.NewFromString(text)
	if err != nil {
		return RoomLeaderboardEntry{}, fmt.Errorf("score %s: %w", e.Score, err)
	}
	return RoomLeaderboardEntry{Player: e.Player, Score: score}, nil
}

// normalizeJSON rewrites calldata-only types into JSON-friendly values.
func normalizeJSON(v any) any {
	switch val := v.(type) {
	case calldata.Address:
		return val.String()
	case *big.Int:
		return json.Number(val.String())
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = normalizeJSON(item)
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, item := range val {
			out[k] = normalizeJSON(item)
		}
		return out
	}
	return v
}

func toInt(raw any) int {
	switch v := raw.(type) {
	case int64:
		return int(v)
	case int:
		return v
	case float64:
		return int(v)
	case *big.Int:
		if v.IsInt64() {
			return int(v.Int64())
		}
	case string:
		if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
			return n
		}
	}
	return 0
}

package game

import (
	"errors"
	"strings"
)

var (
	ErrContractNotConfigured = errors.New("contract not configured")
	ErrWalletNotConnected    = errors.New("wallet not connected")
	ErrAlreadySubmitted      = errors.New("answer already submitted for this room")
	ErrInFlight              = errors.New("operation already in progress")
	ErrInvalidPrompt         = errors.New("invalid prompt")
	ErrInvalidAnswer         = errors.New("invalid answer")
	ErrRoomNotFound          = errors.New("room not found")
	ErrNotAcceptingAnswers   = errors.New("room is not accepting answers")
)

// ValidationError carries a user-facing reason for a rejected input.
type ValidationError struct {
	Kind   error
	Reason string
}

func (e *ValidationError) Error() string {
	return e.Reason
}

func (e *ValidationError) Unwrap() error {
	return e.Kind
}

// Actions as phrased in user-facing messages.
const (
	actionCreate   = "create a room"
	actionSubmit   = "submit an answer"
	actionFinalize = "finalize the game"
)

const contractSetupHint = "Please set ORACLE_CONTRACT_ADDRESS in your config file or environment."

// Describe turns an error into the description shown under a failure toast.
func Describe(err error, action string) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrContractNotConfigured):
		return "Contract not configured. " + contractSetupHint
	case errors.Is(err, ErrWalletNotConnected):
		return "Wallet not connected. Please connect your wallet to " + action + "."
	}
	msg := strings.TrimSpace(err.Error())
	if msg == "" {
		return "Please try again."
	}
	return msg
}

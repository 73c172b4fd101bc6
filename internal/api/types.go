package api

import (
	"github.com/oraclegame/oracle-game/internal/game"
	"github.com/oraclegame/oracle-game/internal/oraclegame"
	"github.com/oraclegame/oracle-game/internal/scripting"
)

// APIError is the JSON body of every error response.
type APIError struct {
	Type      string         `json:"type"`
	Message   string         `json:"message"`
	Context   map[string]any `json:"context,omitempty"`
	RequestID string         `json:"request_id,omitempty"`
	Timestamp string         `json:"timestamp,omitempty"`
}

func (e APIError) Error() string {
	return e.Message
}

// Error types
const (
	ErrTypeValidation         = "validation_error"
	ErrTypeInvalidParams      = "invalid_params"
	ErrTypeNotFound           = "not_found"
	ErrTypeUnauthorized       = "unauthorized"
	ErrTypeWalletNotConnected = "wallet_not_connected"
	ErrTypeAlreadySubmitted   = "already_submitted"
	ErrTypeConflict           = "conflict"
	ErrTypeNotConfigured      = "contract_not_configured"
	ErrTypeUpstream           = "upstream_error"
	ErrTypeTimeout            = "timeout"
	ErrTypeInternal           = "internal_error"
)

// ErrorCategory groups error types for logging and headers.
type ErrorCategory string

const (
	CategoryValidation ErrorCategory = "validation"
	CategoryAuth       ErrorCategory = "auth"
	CategoryGame       ErrorCategory = "game"
	CategoryUpstream   ErrorCategory = "upstream"
	CategorySystem     ErrorCategory = "system"
)

// GetErrorCategory returns the category for an error type.
func GetErrorCategory(errType string) ErrorCategory {
	switch errType {
	case ErrTypeValidation, ErrTypeInvalidParams:
		return CategoryValidation
	case ErrTypeUnauthorized, ErrTypeWalletNotConnected:
		return CategoryAuth
	case ErrTypeNotFound, ErrTypeAlreadySubmitted, ErrTypeConflict:
		return CategoryGame
	case ErrTypeUpstream, ErrTypeNotConfigured, ErrTypeTimeout:
		return CategoryUpstream
	default:
		return CategorySystem
	}
}

// VersionInfo contains build version information.
type VersionInfo struct {
	Version   string `json:"version"`
	GitCommit string `json:"git_commit,omitempty"`
	BuildTime string `json:"build_time,omitempty"`
}

type RoomsResponse struct {
	Rooms []oraclegame.Room `json:"rooms"`
	Stats game.Stats        `json:"stats"`
}

type CreateRoomRequest struct {
	Prompt string `json:"prompt"`
}

type SubmitAnswerRequest struct {
	Answer string `json:"answer"`
}

type DraftRequest struct {
	Source   string `json:"source"`
	ScriptID string `json:"script_id,omitempty"`
}

type DraftResponse struct {
	RoomID int             `json:"room_id"`
	Draft  scripting.Draft `json:"draft"`
}

// TxResponse reports a mutation's transaction.
type TxResponse struct {
	Hash   string `json:"hash"`
	Status string `json:"status"`
	RoomID int    `json:"room_id,omitempty"`
}

type LeaderboardResponse struct {
	Leaderboard []oraclegame.GlobalLeaderboardEntry `json:"leaderboard"`
}

type RoomLeaderboardResponse struct {
	RoomID      int                               `json:"room_id"`
	Leaderboard []oraclegame.RoomLeaderboardEntry `json:"leaderboard"`
}

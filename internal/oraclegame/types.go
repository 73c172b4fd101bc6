package oraclegame

import (
	"github.com/shopspring/decimal"
)

// Scores and XP travel as JSON numbers, as the contract returns them.
func init() {
	decimal.MarshalJSONWithoutQuotes = true
}

// GamePhase tracks where a room is in its lifecycle.
type GamePhase string

const (
	// PhaseWaiting: room created, waiting for players or the host to start.
	PhaseWaiting GamePhase = "waiting"
	// PhaseActive: prompt is live, players are submitting answers.
	PhaseActive GamePhase = "active"
	// PhaseJudging: timer ended, AI jury consensus is running.
	PhaseJudging GamePhase = "judging"
	// PhaseFinished: scores committed on-chain, leaderboard available.
	PhaseFinished GamePhase = "finished"
)

func (p GamePhase) String() string {
	return string(p)
}

// CanTransitionTo checks if a move from p to target is allowed.
func (p GamePhase) CanTransitionTo(target GamePhase) bool {
	validTransitions := map[GamePhase][]GamePhase{
		PhaseWaiting: {PhaseActive},
		PhaseActive:  {PhaseJudging},
		PhaseJudging: {PhaseFinished},
	}

	for _, phase := range validTransitions[p] {
		if phase == target {
			return true
		}
	}
	return false
}

// Room is the lightweight shape listed in the lobby.
type Room struct {
	ID          int       `json:"id"`
	Prompt      string    `json:"prompt"`
	Phase       GamePhase `json:"phase"`
	IsFinished  bool      `json:"isFinished"`
	PlayerCount int       `json:"playerCount"`
}

// RoomDetail is the full room state used inside a game view.
type RoomDetail struct {
	Room
	// HasSubmitted is whether the connected wallet already submitted.
	HasSubmitted bool `json:"hasSubmitted"`
	// MyAnswer is the connected wallet's answer (empty if not submitted).
	MyAnswer string `json:"myAnswer"`
}

// RoomLeaderboardEntry is one row returned by get_room_leaderboard after a
// game finishes. Score is 0–100 as awarded by the AI jury.
type RoomLeaderboardEntry struct {
	Player string          `json:"player"`
	Score  decimal.Decimal `json:"score"`
}

// GlobalLeaderboardEntry is one row of the cumulative XP leaderboard.
type GlobalLeaderboardEntry struct {
	Player string          `json:"player"`
	XP     decimal.Decimal `json:"xp"`
}

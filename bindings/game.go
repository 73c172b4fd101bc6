package bindings

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	wruntime "github.com/wailsapp/wails/v2/pkg/runtime"

	"github.com/oraclegame/oracle-game/internal/game"
	"github.com/oraclegame/oracle-game/internal/genlayer"
	"github.com/oraclegame/oracle-game/internal/oraclegame"
	"github.com/oraclegame/oracle-game/internal/store"
)

// TxResult is the frontend-facing outcome of a contract write.
type TxResult struct {
	Hash   string `json:"hash"`
	Status string `json:"status"`
	RoomID int    `json:"roomId,omitempty"`
}

// MutationState mirrors the pending flags buttons are disabled on.
type MutationState struct {
	Creating   bool `json:"creating"`
	Submitting bool `json:"submitting"`
	Finalizing bool `json:"finalizing"`
}

// userError renders as the toast description while keeping the cause.
type userError struct {
	msg string
	err error
}

func (e *userError) Error() string { return e.msg }
func (e *userError) Unwrap() error { return e.err }

func describe(err error, action string) error {
	if err == nil {
		return nil
	}
	return &userError{msg: game.Describe(err, action), err: err}
}

func txResult(r *genlayer.TransactionReceipt, roomID int) TxResult {
	out := TxResult{RoomID: roomID}
	if r != nil {
		out.Hash = r.Hash
		out.Status = string(r.Status)
	}
	return out
}

// IsConfigured reports whether a contract address is set.
func (a *App) IsConfigured() bool {
	return a.svc.Configured()
}

func (a *App) GetRooms() ([]oraclegame.Room, error) {
	rooms, err := a.svc.Rooms(a.ctx)
	return rooms, describe(err, "load rooms")
}

func (a *App) GetRoom(roomID int) (oraclegame.RoomDetail, error) {
	detail, err := a.svc.RoomDetail(a.ctx, roomID)
	return detail, describe(err, "load the room")
}

func (a *App) GetRoomLeaderboard(roomID int) ([]oraclegame.RoomLeaderboardEntry, error) {
	lb, err := a.svc.RoomLeaderboard(a.ctx, roomID)
	return lb, describe(err, "load the leaderboard")
}

func (a *App) GetGlobalLeaderboard() ([]oraclegame.GlobalLeaderboardEntry, error) {
	lb, err := a.svc.GlobalLeaderboard(a.ctx)
	return lb, describe(err, "load the leaderboard")
}

func (a *App) GetArchivedLeaderboard(limit int) ([]store.PlayerXP, error) {
	if limit <= 0 {
		limit = game.GlobalLeaderboardSize
	}
	return a.svc.ArchivedLeaderboard(a.ctx, limit)
}

func (a *App) GetStats() (game.Stats, error) {
	st, err := a.svc.Stats(a.ctx)
	return st, describe(err, "load rooms")
}

func (a *App) GetSubmissions() ([]store.Submission, error) {
	subs, err := a.svc.Submissions(a.ctx)
	return subs, describe(err, "view your answers")
}

func (a *App) GetPromptSuggestions() []string {
	return game.PromptSuggestions
}

func (a *App) GetMutationState(roomID int) MutationState {
	return MutationState{
		Creating:   a.svc.IsCreating(),
		Submitting: a.svc.IsSubmitting(roomID),
		Finalizing: a.svc.IsFinalizing(roomID),
	}
}

func (a *App) CreateRoom(prompt string) (TxResult, error) {
	r, err := a.svc.CreateRoom(a.ctx, prompt)
	if err != nil {
		return TxResult{}, describe(err, "create a room")
	}
	return txResult(r, 0), nil
}

// SubmitAnswer goes through the room's session when one is running so the
// countdown phase is enforced.
func (a *App) SubmitAnswer(roomID int, answer string) (TxResult, error) {
	if rs := a.sessionFor(roomID); rs != nil {
		r, err := rs.Submit(a.ctx, answer)
		if err != nil {
			return TxResult{}, describe(err, "submit an answer")
		}
		return txResult(r, roomID), nil
	}
	r, err := a.svc.SubmitAnswer(a.ctx, roomID, answer)
	if err != nil {
		return TxResult{}, describe(err, "submit an answer")
	}
	return txResult(r, roomID), nil
}

func (a *App) FinalizeGame(roomID int) (TxResult, error) {
	r, err := a.svc.FinalizeGame(a.ctx, roomID)
	if err != nil {
		return TxResult{}, describe(err, "finalize the game")
	}
	return txResult(r, roomID), nil
}

// Refresh drops cached reads so the next call hits the contract.
func (a *App) Refresh() {
	a.svc.Invalidate()
}

// ExportResults asks for a destination and writes archived results as CSV.
// It returns the chosen path, or "" if the dialog was cancelled.
func (a *App) ExportResults() (string, error) {
	path, err := wruntime.SaveFileDialog(a.ctx, wruntime.SaveDialogOptions{
		Title:           "Export results",
		DefaultFilename: fmt.Sprintf("oracle_results_%s.csv", time.Now().Format("20060102_150405")),
		Filters:         []wruntime.FileFilter{{DisplayName: "CSV (*.csv)", Pattern: "*.csv"}},
	})
	if err != nil || path == "" {
		return "", err
	}
	return path, a.exportResultsTo(path)
}

func (a *App) exportResultsTo(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := a.svc.ExportResults(a.ctx, f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

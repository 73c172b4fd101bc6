package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Submission statuses.
const (
	SubmissionPending  = "pending"
	SubmissionAccepted = "accepted"
	SubmissionFailed   = "failed"
)

// ErrDuplicateSubmission is returned when the wallet already has a live
// submission for the room.
var ErrDuplicateSubmission = errors.New("store: answer already submitted for this room")

// Submission is one answer sent by a local wallet.
type Submission struct {
	ID          int64     `json:"id"`
	Wallet      string    `json:"wallet"`
	RoomID      int       `json:"roomId"`
	Answer      string    `json:"answer"`
	TxHash      string    `json:"txHash"`
	Status      string    `json:"status"`
	SubmittedAt time.Time `json:"submittedAt"`
}

// BeginSubmission records a pending submission. A previous failed attempt for
// the same (wallet, room) is replaced; a pending or accepted one is not.
func (s *Store) BeginSubmission(ctx context.Context, wallet string, roomID int, answer string) (int64, error) {
	key := walletKey(wallet)
	if key == "" {
		return 0, fmt.Errorf("store: wallet is required")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("store: begin submission: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM submissions WHERE contract=? AND wallet=? AND room_id=? AND status=?`,
		s.contract, key, roomID, SubmissionFailed); err != nil {
		return 0, fmt.Errorf("store: clear failed submission: %w", err)
	}

	res, err := tx.ExecContext(ctx, `
		INSERT INTO submissions(contract, wallet, room_id, answer, status, submitted_at)
		VALUES(?, ?, ?, ?, ?, ?)`,
		s.contract, key, roomID, answer, SubmissionPending, time.Now().UTC())
	if err != nil {
		if isConstraintErr(err) {
			return 0, ErrDuplicateSubmission
		}
		return 0, fmt.Errorf("store: insert submission: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("store: submission id: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("store: commit submission: %w", err)
	}
	return id, nil
}

// CompleteSubmission sets the outcome of a pending submission.
func (s *Store) CompleteSubmission(ctx context.Context, id int64, txHash, status string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE submissions SET tx_hash=?, status=? WHERE id=?`, txHash, status, id)
	if err != nil {
		return fmt.Errorf("store: complete submission: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// GetSubmission returns the wallet's submission for a room.
func (s *Store) GetSubmission(ctx context.Context, wallet string, roomID int) (Submission, error) {
	var sub Submission
	err := s.db.QueryRowContext(ctx, `
		SELECT id, wallet, room_id, answer, tx_hash, status, submitted_at
		FROM submissions WHERE contract=? AND wallet=? AND room_id=?`,
		s.contract, walletKey(wallet), roomID,
	).Scan(&sub.ID, &sub.Wallet, &sub.RoomID, &sub.Answer, &sub.TxHash, &sub.Status, &sub.SubmittedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Submission{}, ErrNotFound
	}
	if err != nil {
		return Submission{}, fmt.Errorf("store: get submission: %w", err)
	}
	return sub, nil
}

// ListSubmissions returns the wallet's submissions, newest first.
func (s *Store) ListSubmissions(ctx context.Context, wallet string, limit int) ([]Submission, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, wallet, room_id, answer, tx_hash, status, submitted_at
		FROM submissions WHERE contract=? AND wallet=?
		ORDER BY submitted_at DESC, id DESC
		LIMIT ?`, s.contract, walletKey(wallet), limit)
	if err != nil {
		return nil, fmt.Errorf("store: list submissions: %w", err)
	}
	defer rows.Close()

	out := []Submission{}
	for rows.Next() {
		var sub Submission
		if err := rows.Scan(&sub.ID, &sub.Wallet, &sub.RoomID, &sub.Answer, &sub.TxHash, &sub.Status, &sub.SubmittedAt); err != nil {
			return nil, fmt.Errorf("store: scan submission: %w", err)
		}
		out = append(out, sub)
	}
	return out, rows.Err()
}

// HasSubmitted reports whether the wallet has a pending or accepted answer.
func (s *Store) HasSubmitted(ctx context.Context, wallet string, roomID int) (bool, error) {
	sub, err := s.GetSubmission(ctx, wallet, roomID)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return !strings.EqualFold(sub.Status, SubmissionFailed), nil
}

package game

import (
	"context"
	"errors"
	"strings"

	"github.com/oraclegame/oracle-game/internal/genlayer"
	"github.com/oraclegame/oracle-game/internal/store"
)

// guard checks, in order, that a contract is bound and a wallet is connected.
// It returns the connected address.
func (s *Service) guard() (string, error) {
	if !s.Configured() {
		return "", ErrContractNotConfigured
	}
	addr := s.activeAddress()
	if addr == "" {
		return "", ErrWalletNotConnected
	}
	return addr, nil
}

func (s *Service) fail(title, action string, err error) error {
	s.logger.Printf("%s: %v", title, err)
	s.notify.Error(title, Describe(err, action))
	return err
}

// IsCreating reports whether a create-room transaction is in flight.
func (s *Service) IsCreating() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.creating
}

// IsSubmitting reports whether the connected wallet's answer for roomID is in
// flight.
func (s *Service) IsSubmitting(roomID int) bool {
	key := newSubmissionKey(s.activeAddress(), roomID)
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.submitting[key]
}

// IsFinalizing reports whether finalization of roomID is in flight.
func (s *Service) IsFinalizing(roomID int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.finalizing[roomID]
}

// CreateRoom validates the prompt and creates a room. On success the prompt is
// cached as pending until the next rooms poll reveals the new room's id.
func (s *Service) CreateRoom(ctx context.Context, prompt string) (*genlayer.TransactionReceipt, error) {
	prompt, err := ValidatePrompt(prompt)
	if err != nil {
		return nil, err
	}
	if _, err := s.guard(); err != nil {
		return nil, s.fail("Failed to create room", actionCreate, err)
	}

	s.mu.Lock()
	if s.creating {
		s.mu.Unlock()
		return nil, ErrInFlight
	}
	s.creating = true
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		s.creating = false
		s.mu.Unlock()
	}()

	receipt, err := s.contract.CreateRoom(context.WithoutCancel(ctx), prompt)
	if err != nil {
		return nil, s.fail("Failed to create room", actionCreate, err)
	}

	// A poll already running may have counted rooms before this one existed.
	s.prompts.setPending(ctx, prompt, s.cache.generation()+1)
	s.cache.invalidate(roomsKey())
	s.notify.Success("Room created!", "Your game room is live. Share the link or wait for players to join.")
	return receipt, nil
}

// SubmitAnswer sends the connected wallet's answer to a room. Each wallet gets
// one submission per room; a failed attempt may be retried. Writes are not
// tied to ctx cancellation: once sent, a transaction runs to its own receipt
// budget.
func (s *Service) SubmitAnswer(ctx context.Context, roomID int, answer string) (*genlayer.TransactionReceipt, error) {
	answer, err := ValidateAnswer(answer)
	if err != nil {
		return nil, err
	}
	addr, err := s.guard()
	if err != nil {
		return nil, s.fail("Failed to submit answer", actionSubmit, err)
	}

	key := newSubmissionKey(addr, roomID)
	s.mu.Lock()
	if s.submitting[key] || s.submitted[key] {
		s.mu.Unlock()
		return nil, ErrAlreadySubmitted
	}
	s.submitting[key] = true
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		delete(s.submitting, key)
		s.mu.Unlock()
	}()

	var subID int64
	if s.db != nil {
		subID, err = s.db.BeginSubmission(ctx, addr, roomID, answer)
		if errors.Is(err, store.ErrDuplicateSubmission) {
			return nil, ErrAlreadySubmitted
		}
		if err != nil {
			return nil, s.fail("Failed to submit answer", actionSubmit, err)
		}
	}

	writeCtx := context.WithoutCancel(ctx)
	receipt, err := s.contract.SubmitAnswer(writeCtx, roomID, answer)
	status := submissionStatus(receipt, err)
	if status != store.SubmissionFailed {
		s.mu.Lock()
		s.submitted[key] = true
		s.mu.Unlock()
	}
	if s.db != nil {
		hash := ""
		if receipt != nil {
			hash = receipt.Hash
		}
		if cerr := s.db.CompleteSubmission(writeCtx, subID, hash, status); cerr != nil {
			s.logger.Printf("record submission for room %d: %v", roomID, cerr)
		}
	}
	if err != nil {
		return nil, s.fail("Failed to submit answer", actionSubmit, err)
	}

	s.cache.invalidate(roomLeaderboardKey(roomID))
	s.notify.Success("Answer submitted!", "Your answer has been locked in. Good luck with the AI jury!")
	return receipt, nil
}

// submissionStatus classifies a submit outcome. A transaction that was sent
// but not confirmed in time may still land, so it stays pending and blocks
// a second submission.
func submissionStatus(receipt *genlayer.TransactionReceipt, err error) string {
	switch {
	case err == nil:
		return store.SubmissionAccepted
	case receipt == nil || receipt.Hash == "" || errors.Is(err, genlayer.ErrTransactionFailed):
		return store.SubmissionFailed
	case errors.Is(err, genlayer.ErrReceiptTimeout),
		errors.Is(err, context.Canceled),
		errors.Is(err, context.DeadlineExceeded):
		return store.SubmissionPending
	}
	return store.SubmissionFailed
}

type submissionKey struct {
	wallet string
	roomID int
}

func newSubmissionKey(addr string, roomID int) submissionKey {
	return submissionKey{wallet: strings.ToLower(strings.TrimSpace(addr)), roomID: roomID}
}

// FinalizeGame asks the AI jury to score a room.
func (s *Service) FinalizeGame(ctx context.Context, roomID int) (*genlayer.TransactionReceipt, error) {
	if _, err := s.guard(); err != nil {
		return nil, s.fail("Failed to finalize game", actionFinalize, err)
	}

	s.mu.Lock()
	if s.finalizing[roomID] {
		s.mu.Unlock()
		return nil, ErrInFlight
	}
	s.finalizing[roomID] = true
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		delete(s.finalizing, roomID)
		s.mu.Unlock()
	}()

	receipt, err := s.contract.FinalizeGame(context.WithoutCancel(ctx), roomID)
	if err != nil {
		return nil, s.fail("Failed to finalize game", actionFinalize, err)
	}

	s.cache.invalidate(roomLeaderboardKey(roomID), roomsKey(), globalLeaderboardKey())
	s.notify.Success("Game finalized!", "The AI jury has reached consensus. Check the leaderboard for results!")
	return receipt, nil
}

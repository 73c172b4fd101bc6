package game

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/oraclegame/oracle-game/internal/genlayer"
	"github.com/oraclegame/oracle-game/internal/oraclegame"
	"github.com/oraclegame/oracle-game/internal/store"
)

const testWallet = "0x1111111111111111111111111111111111111111"

type fakeContract struct {
	mu         sync.Mutex
	count      int
	boards     map[int][]oraclegame.RoomLeaderboardEntry
	countCalls int
	boardCalls map[int]int
	writes     []string
	writeErr   error
	// failReceipt is returned with writeErr, e.g. a sent but unconfirmed tx.
	failReceipt *genlayer.TransactionReceipt
	block       chan struct{}
	// boardHook runs at the start of every leaderboard read.
	boardHook func()
}

func newFakeContract() *fakeContract {
	return &fakeContract{
		boards:     map[int][]oraclegame.RoomLeaderboardEntry{},
		boardCalls: map[int]int{},
	}
}

func (f *fakeContract) GetRoomCount(ctx context.Context) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.countCalls++
	return f.count, nil
}

func (f *fakeContract) GetRoomLeaderboard(ctx context.Context, roomID int) ([]oraclegame.RoomLeaderboardEntry, error) {
	if f.boardHook != nil {
		f.boardHook()
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.boardCalls[roomID]++
	if lb, ok := f.boards[roomID]; ok {
		return lb, nil
	}
	return []oraclegame.RoomLeaderboardEntry{}, nil
}

func (f *fakeContract) write(ctx context.Context, name string) (*genlayer.TransactionReceipt, error) {
	if f.block != nil {
		select {
		case <-f.block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.writes = append(f.writes, name)
	if f.writeErr != nil {
		return f.failReceipt, f.writeErr
	}
	return &genlayer.TransactionReceipt{Hash: "0x" + name, Status: genlayer.StatusAccepted}, nil
}

func (f *fakeContract) CreateRoom(ctx context.Context, prompt string) (*genlayer.TransactionReceipt, error) {
	r, err := f.write(ctx, "create_room")
	if err == nil {
		f.mu.Lock()
		f.count++
		f.mu.Unlock()
	}
	return r, err
}

func (f *fakeContract) SubmitAnswer(ctx context.Context, roomID int, answer string) (*genlayer.TransactionReceipt, error) {
	return f.write(ctx, "submit_answer")
}

func (f *fakeContract) FinalizeGame(ctx context.Context, roomID int) (*genlayer.TransactionReceipt, error) {
	return f.write(ctx, "finalize_game")
}

func (f *fakeContract) setBoard(roomID int, entries ...oraclegame.RoomLeaderboardEntry) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.boards[roomID] = entries
}

type staticWallet struct{ addr string }

func (w *staticWallet) ActiveAddress() string { return w.addr }

type recordingNotifier struct {
	mu    sync.Mutex
	items []Notification
}

func (r *recordingNotifier) add(kind, title, desc string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items = append(r.items, Notification{Kind: kind, Title: title, Description: desc})
}

func (r *recordingNotifier) Success(title, desc string)     { r.add(KindSuccess, title, desc) }
func (r *recordingNotifier) Error(title, desc string)       { r.add(KindError, title, desc) }
func (r *recordingNotifier) ConfigError(title, desc string) { r.add(KindConfigError, title, desc) }

func (r *recordingNotifier) last() Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.items) == 0 {
		return Notification{}
	}
	return r.items[len(r.items)-1]
}

func entry(player string, score int64) oraclegame.RoomLeaderboardEntry {
	return oraclegame.RoomLeaderboardEntry{Player: player, Score: decimal.NewFromInt(score)}
}

type fixture struct {
	svc      *Service
	contract *fakeContract
	wallet   *staticWallet
	notes    *recordingNotifier
	db       *store.Store
	now      *time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db, err := store.New(":memory:")
	if err != nil {
		t.Fatalf("store: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	f := &fixture{
		contract: newFakeContract(),
		wallet:   &staticWallet{addr: testWallet},
		notes:    &recordingNotifier{},
		db:       db,
		now:      &now,
	}
	f.svc = NewService(context.Background(), Options{
		Contract: f.contract,
		Wallet:   f.wallet,
		Store:    db,
		Notifier: f.notes,
		Logger:   log.New(io.Discard, "", 0),
		Now:      func() time.Time { return *f.now },
	})
	return f
}

func (f *fixture) advance(d time.Duration) {
	*f.now = f.now.Add(d)
}

func TestRoomsDerivePhaseFromLeaderboard(t *testing.T) {
	f := newFixture(t)
	f.contract.count = 3
	f.contract.setBoard(2, entry("0xA", 50), entry("0xB", 70))

	rooms, err := f.svc.Rooms(context.Background())
	if err != nil {
		t.Fatalf("Rooms: %v", err)
	}
	if len(rooms) != 3 {
		t.Fatalf("Expected 3 rooms, got %d", len(rooms))
	}
	for i, r := range rooms {
		if r.ID != i+1 {
			t.Errorf("Room %d has id %d", i, r.ID)
		}
	}
	if rooms[0].Phase != oraclegame.PhaseWaiting || rooms[0].IsFinished || rooms[0].PlayerCount != 0 {
		t.Errorf("Room 1 should be waiting: %+v", rooms[0])
	}
	if rooms[1].Phase != oraclegame.PhaseFinished || !rooms[1].IsFinished || rooms[1].PlayerCount != 2 {
		t.Errorf("Room 2 should be finished with 2 players: %+v", rooms[1])
	}
}

func TestRoomsEmptyContract(t *testing.T) {
	f := newFixture(t)
	rooms, err := f.svc.Rooms(context.Background())
	if err != nil {
		t.Fatalf("Rooms: %v", err)
	}
	if rooms == nil || len(rooms) != 0 {
		t.Errorf("Expected empty non-nil list, got %#v", rooms)
	}
}

func TestRoomsCachedUntilStale(t *testing.T) {
	f := newFixture(t)
	f.contract.count = 1
	ctx := context.Background()

	f.svc.Rooms(ctx)
	f.svc.Rooms(ctx)
	if f.contract.countCalls != 1 {
		t.Errorf("Expected cached second read, got %d count calls", f.contract.countCalls)
	}

	f.advance(DefaultStaleTimes.Rooms)
	f.svc.Rooms(ctx)
	if f.contract.countCalls != 2 {
		t.Errorf("Expected refetch after stale time, got %d count calls", f.contract.countCalls)
	}
}

func TestRoomsSeedRoomLeaderboardCache(t *testing.T) {
	f := newFixture(t)
	f.contract.count = 1
	f.contract.setBoard(1, entry("0xA", 10))
	ctx := context.Background()

	f.svc.Rooms(ctx)
	lb, err := f.svc.RoomLeaderboard(ctx, 1)
	if err != nil || len(lb) != 1 {
		t.Fatalf("RoomLeaderboard: %v %v", lb, err)
	}
	if f.contract.boardCalls[1] != 1 {
		t.Errorf("Expected leaderboard served from seeded cache, got %d calls", f.contract.boardCalls[1])
	}
}

func TestNotConfigured(t *testing.T) {
	notes := &recordingNotifier{}
	svc := NewService(context.Background(), Options{
		Wallet:   &staticWallet{addr: testWallet},
		Notifier: notes,
		Logger:   log.New(io.Discard, "", 0),
	})

	if n := notes.last(); n.Kind != KindConfigError || n.Title != "Setup Required" {
		t.Errorf("Expected setup notification, got %+v", n)
	}

	ctx := context.Background()
	if _, err := svc.Rooms(ctx); !errors.Is(err, ErrContractNotConfigured) {
		t.Errorf("Rooms: expected ErrContractNotConfigured, got %v", err)
	}
	if _, err := svc.GlobalLeaderboard(ctx); !errors.Is(err, ErrContractNotConfigured) {
		t.Errorf("GlobalLeaderboard: expected ErrContractNotConfigured, got %v", err)
	}
	if _, err := svc.CreateRoom(ctx, "A perfectly valid prompt"); !errors.Is(err, ErrContractNotConfigured) {
		t.Errorf("CreateRoom: expected ErrContractNotConfigured, got %v", err)
	}
	n := notes.last()
	if n.Title != "Failed to create room" || !strings.HasPrefix(n.Description, "Contract not configured.") {
		t.Errorf("Unexpected failure notification %+v", n)
	}
}

func TestMutationGuardOrder(t *testing.T) {
	// Both missing: contract is reported first.
	svc := NewService(context.Background(), Options{
		Wallet:   &staticWallet{},
		Notifier: &recordingNotifier{},
		Logger:   log.New(io.Discard, "", 0),
	})
	if _, err := svc.FinalizeGame(context.Background(), 1); !errors.Is(err, ErrContractNotConfigured) {
		t.Errorf("Expected contract error first, got %v", err)
	}

	f := newFixture(t)
	f.wallet.addr = ""
	ctx := context.Background()

	cases := []struct {
		name string
		run  func() error
		desc string
	}{
		{"create", func() error { _, err := f.svc.CreateRoom(ctx, "Describe a cat's dream job."); return err },
			"Wallet not connected. Please connect your wallet to create a room."},
		{"submit", func() error { _, err := f.svc.SubmitAnswer(ctx, 1, "my answer"); return err },
			"Wallet not connected. Please connect your wallet to submit an answer."},
		{"finalize", func() error { _, err := f.svc.FinalizeGame(ctx, 1); return err },
			"Wallet not connected. Please connect your wallet to finalize the game."},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if err := tc.run(); !errors.Is(err, ErrWalletNotConnected) {
				t.Fatalf("Expected ErrWalletNotConnected, got %v", err)
			}
			if got := f.notes.last().Description; got != tc.desc {
				t.Errorf("Expected %q, got %q", tc.desc, got)
			}
		})
	}
	if len(f.contract.writes) != 0 {
		t.Errorf("No write should reach the contract, got %v", f.contract.writes)
	}
}

func TestCreateRoomValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	for _, prompt := range []string{"", "   ", "too short", strings.Repeat("x", MaxPromptLength+1)} {
		_, err := f.svc.CreateRoom(ctx, prompt)
		if !errors.Is(err, ErrInvalidPrompt) {
			t.Errorf("Prompt %q: expected ErrInvalidPrompt, got %v", prompt, err)
		}
	}
	if len(f.contract.writes) != 0 {
		t.Errorf("Invalid prompts should not be sent, got %v", f.contract.writes)
	}
}

func TestCreateRoomAssignsPendingPrompt(t *testing.T) {
	f := newFixture(t)
	f.contract.count = 2
	ctx := context.Background()

	f.svc.Rooms(ctx) // populate cache

	if _, err := f.svc.CreateRoom(ctx, "  Describe a sunrise on Mars.  "); err != nil {
		t.Fatalf("CreateRoom: %v", err)
	}
	n := f.notes.last()
	if n.Kind != KindSuccess || n.Title != "Room created!" {
		t.Errorf("Unexpected notification %+v", n)
	}
	if f.svc.RoomPrompt(3) != PromptPlaceholder {
		t.Error("Prompt should stay pending until rooms are refetched")
	}

	// Cache was invalidated, so this hits the contract and sees room 3.
	rooms, err := f.svc.Rooms(ctx)
	if err != nil {
		t.Fatalf("Rooms: %v", err)
	}
	if len(rooms) != 3 || rooms[2].Prompt != "Describe a sunrise on Mars." {
		t.Fatalf("Expected newest room to carry the prompt, got %+v", rooms)
	}
	if f.svc.RoomPrompt(3) != "Describe a sunrise on Mars." {
		t.Errorf("RoomPrompt(3) = %q", f.svc.RoomPrompt(3))
	}

	// Only once: a later poll with a new room does not move it again.
	f.contract.count = 4
	f.advance(time.Minute)
	rooms, _ = f.svc.Rooms(ctx)
	if rooms[3].Prompt != "" {
		t.Errorf("Room 4 should have no prompt, got %q", rooms[3].Prompt)
	}

	// Persisted across a restart.
	reloaded := NewService(ctx, Options{Contract: f.contract, Store: f.db, Notifier: f.notes, Logger: log.New(io.Discard, "", 0)})
	if reloaded.RoomPrompt(3) != "Describe a sunrise on Mars." {
		t.Errorf("Prompt not persisted, got %q", reloaded.RoomPrompt(3))
	}
}

func TestStalePollDoesNotClaimNewPrompt(t *testing.T) {
	f := newFixture(t)
	f.contract.count = 1
	ctx := context.Background()

	entered := make(chan struct{})
	release := make(chan struct{})
	var once sync.Once
	f.contract.boardHook = func() {
		once.Do(func() {
			close(entered)
			<-release
		})
	}

	// A poll that read count=1 is still fetching leaderboards.
	stale := make(chan []oraclegame.Room, 1)
	go func() {
		rooms, err := f.svc.Rooms(ctx)
		if err != nil {
			t.Errorf("Rooms: %v", err)
		}
		stale <- rooms
	}()
	<-entered

	if _, err := f.svc.CreateRoom(ctx, "My brand new prompt text"); err != nil {
		t.Fatalf("CreateRoom: %v", err)
	}
	close(release)

	rooms := <-stale
	if len(rooms) != 1 || rooms[0].Prompt != "" {
		t.Errorf("Stale poll should not claim the new prompt, got %+v", rooms)
	}
	if f.svc.RoomPrompt(1) != PromptPlaceholder {
		t.Errorf("Room 1 took the new prompt: %q", f.svc.RoomPrompt(1))
	}

	rooms, err := f.svc.Rooms(ctx)
	if err != nil {
		t.Fatalf("Rooms: %v", err)
	}
	if len(rooms) != 2 || rooms[1].Prompt != "My brand new prompt text" || rooms[0].Prompt != "" {
		t.Errorf("Expected room 2 to carry the prompt, got %+v", rooms)
	}
}

func TestSubmitAnswerOnceWithoutStore(t *testing.T) {
	contract := newFakeContract()
	contract.count = 1
	w := &staticWallet{addr: "0xabcdef0000000000000000000000000000000001"}
	svc := NewService(context.Background(), Options{
		Contract: contract,
		Wallet:   w,
		Notifier: &recordingNotifier{},
		Logger:   log.New(io.Discard, "", 0),
	})
	ctx := context.Background()

	if _, err := svc.SubmitAnswer(ctx, 1, "first"); err != nil {
		t.Fatalf("SubmitAnswer: %v", err)
	}
	if _, err := svc.SubmitAnswer(ctx, 1, "second"); !errors.Is(err, ErrAlreadySubmitted) {
		t.Errorf("Expected ErrAlreadySubmitted, got %v", err)
	}
	// Address case does not matter.
	w.addr = "0xABCDEF0000000000000000000000000000000001"
	if _, err := svc.SubmitAnswer(ctx, 1, "third"); !errors.Is(err, ErrAlreadySubmitted) {
		t.Errorf("Expected ErrAlreadySubmitted for the same wallet, got %v", err)
	}
	if len(contract.writes) != 1 {
		t.Errorf("Expected one contract write, got %v", contract.writes)
	}

	detail, err := svc.RoomDetail(ctx, 1)
	if err != nil {
		t.Fatalf("RoomDetail: %v", err)
	}
	if !detail.HasSubmitted {
		t.Error("RoomDetail should report the submission")
	}

	w.addr = "0x2222222222222222222222222222222222222222"
	if _, err := svc.SubmitAnswer(ctx, 1, "another player"); err != nil {
		t.Errorf("Another wallet should be able to submit: %v", err)
	}
}

func TestSubmitAnswerInFlightIsPerWallet(t *testing.T) {
	f := newFixture(t)
	f.contract.block = make(chan struct{})
	ctx := context.Background()

	errc := make(chan error, 1)
	go func() {
		_, err := f.svc.SubmitAnswer(ctx, 1, "first")
		errc <- err
	}()
	deadline := time.Now().Add(2 * time.Second)
	for !f.svc.IsSubmitting(1) {
		if time.Now().After(deadline) {
			t.Fatal("Submission never went in flight")
		}
		time.Sleep(time.Millisecond)
	}

	other := "0x2222222222222222222222222222222222222222"
	f.wallet.addr = other
	if f.svc.IsSubmitting(1) {
		t.Error("Another wallet should not see the in-flight flag")
	}
	second := make(chan error, 1)
	go func() {
		_, err := f.svc.SubmitAnswer(ctx, 1, "second")
		second <- err
	}()
	close(f.contract.block)
	if err := <-errc; err != nil {
		t.Errorf("First wallet: %v", err)
	}
	if err := <-second; err != nil {
		t.Errorf("Second wallet should not be blocked by the first: %v", err)
	}
}

func TestSubmitAnswerUnconfirmedStaysPending(t *testing.T) {
	f := newFixture(t)
	f.contract.writeErr = fmt.Errorf("%w: %w", oraclegame.ErrSubmitAnswer, genlayer.ErrReceiptTimeout)
	f.contract.failReceipt = &genlayer.TransactionReceipt{Hash: "0xsent", Status: genlayer.StatusPending}
	ctx := context.Background()

	if _, err := f.svc.SubmitAnswer(ctx, 1, "first"); !errors.Is(err, genlayer.ErrReceiptTimeout) {
		t.Fatalf("Expected receipt timeout, got %v", err)
	}
	sub, err := f.db.GetSubmission(ctx, testWallet, 1)
	if err != nil {
		t.Fatalf("GetSubmission: %v", err)
	}
	if sub.Status != store.SubmissionPending || sub.TxHash != "0xsent" {
		t.Errorf("Unconfirmed submission should stay pending, got %+v", sub)
	}

	f.contract.writeErr = nil
	if _, err := f.svc.SubmitAnswer(ctx, 1, "second"); !errors.Is(err, ErrAlreadySubmitted) {
		t.Errorf("Expected ErrAlreadySubmitted while unconfirmed, got %v", err)
	}
}

func TestWritesOutliveCallerCancel(t *testing.T) {
	f := newFixture(t)
	f.contract.block = make(chan struct{})
	ctx, cancel := context.WithCancel(context.Background())

	errc := make(chan error, 1)
	go func() {
		_, err := f.svc.SubmitAnswer(ctx, 1, "first")
		errc <- err
	}()
	// wait for the pending row, i.e. the contract write has started
	deadline := time.Now().Add(2 * time.Second)
	for {
		if _, err := f.db.GetSubmission(context.Background(), testWallet, 1); err == nil {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("Submission never went in flight")
		}
		time.Sleep(time.Millisecond)
	}
	cancel()
	close(f.contract.block)

	if err := <-errc; err != nil {
		t.Fatalf("Submission should finish after caller cancel: %v", err)
	}
	sub, err := f.db.GetSubmission(context.Background(), testWallet, 1)
	if err != nil || sub.Status != store.SubmissionAccepted {
		t.Errorf("Expected accepted submission, got %+v (%v)", sub, err)
	}
}

func TestSubmitAnswerOnce(t *testing.T) {
	f := newFixture(t)
	f.contract.count = 1
	ctx := context.Background()

	if _, err := f.svc.SubmitAnswer(ctx, 1, "  The answer is 42.  "); err != nil {
		t.Fatalf("SubmitAnswer: %v", err)
	}
	if n := f.notes.last(); n.Title != "Answer submitted!" {
		t.Errorf("Unexpected notification %+v", n)
	}

	if _, err := f.svc.SubmitAnswer(ctx, 1, "Second thoughts"); !errors.Is(err, ErrAlreadySubmitted) {
		t.Errorf("Expected ErrAlreadySubmitted, got %v", err)
	}

	detail, err := f.svc.RoomDetail(ctx, 1)
	if err != nil {
		t.Fatalf("RoomDetail: %v", err)
	}
	if !detail.HasSubmitted || detail.MyAnswer != "The answer is 42." {
		t.Errorf("Unexpected detail %+v", detail)
	}
	if detail.Prompt != PromptPlaceholder {
		t.Errorf("Expected placeholder prompt, got %q", detail.Prompt)
	}
}

func TestSubmitAnswerConcurrentRejected(t *testing.T) {
	f := newFixture(t)
	f.contract.block = make(chan struct{})
	ctx := context.Background()

	errc := make(chan error, 1)
	go func() {
		_, err := f.svc.SubmitAnswer(ctx, 1, "first")
		errc <- err
	}()

	deadline := time.Now().Add(2 * time.Second)
	for !f.svc.IsSubmitting(1) {
		if time.Now().After(deadline) {
			t.Fatal("Submission never went in flight")
		}
		time.Sleep(time.Millisecond)
	}

	if _, err := f.svc.SubmitAnswer(ctx, 1, "second"); !errors.Is(err, ErrAlreadySubmitted) {
		t.Errorf("Expected ErrAlreadySubmitted while in flight, got %v", err)
	}
	close(f.contract.block)
	if err := <-errc; err != nil {
		t.Fatalf("First submission failed: %v", err)
	}
	if f.svc.IsSubmitting(1) {
		t.Error("In-flight flag should clear")
	}
}

func TestSubmitAnswerFailureAllowsRetry(t *testing.T) {
	f := newFixture(t)
	f.contract.writeErr = oraclegame.ErrSubmitAnswer
	ctx := context.Background()

	_, err := f.svc.SubmitAnswer(ctx, 1, "first")
	if !errors.Is(err, oraclegame.ErrSubmitAnswer) {
		t.Fatalf("Expected contract error, got %v", err)
	}
	n := f.notes.last()
	if n.Kind != KindError || n.Title != "Failed to submit answer" || n.Description != "failed to submit answer" {
		t.Errorf("Unexpected notification %+v", n)
	}

	f.contract.writeErr = nil
	if _, err := f.svc.SubmitAnswer(ctx, 1, "second"); err != nil {
		t.Errorf("Retry after failure should succeed: %v", err)
	}
}

func TestFinalizeInvalidatesEverything(t *testing.T) {
	f := newFixture(t)
	f.contract.count = 1
	ctx := context.Background()

	board, _ := f.svc.GlobalLeaderboard(ctx)
	if len(board) != 0 {
		t.Fatalf("Expected empty global leaderboard, got %v", board)
	}

	f.contract.setBoard(1, entry("0xA", 90))
	if _, err := f.svc.FinalizeGame(ctx, 1); err != nil {
		t.Fatalf("FinalizeGame: %v", err)
	}
	if n := f.notes.last(); n.Title != "Game finalized!" {
		t.Errorf("Unexpected notification %+v", n)
	}

	// No time has passed, but caches were invalidated.
	board, err := f.svc.GlobalLeaderboard(ctx)
	if err != nil {
		t.Fatalf("GlobalLeaderboard: %v", err)
	}
	if len(board) != 1 || board[0].Player != "0xa" {
		t.Errorf("Expected fresh leaderboard, got %v", board)
	}
	stats, _ := f.svc.Stats(ctx)
	if stats.FinishedRooms != 1 || stats.ActiveRooms != 0 {
		t.Errorf("Unexpected stats %+v", stats)
	}

	archived, _ := f.db.IsArchived(ctx, 1)
	if !archived {
		t.Error("Finalized results should be archived locally")
	}
}

func TestGlobalLeaderboardAggregation(t *testing.T) {
	f := newFixture(t)
	f.contract.count = 4
	f.contract.setBoard(1, entry("0xAbC", 50), entry("0xdef", 80))
	f.contract.setBoard(2, entry("0xabc", 40))
	// room 3 unfinished
	var many []oraclegame.RoomLeaderboardEntry
	for i := 0; i < 12; i++ {
		many = append(many, entry("0x"+strings.Repeat(string(rune('a'+i)), 3)+"1", int64(i)))
	}
	f.contract.setBoard(4, many...)

	board, err := f.svc.GlobalLeaderboard(context.Background())
	if err != nil {
		t.Fatalf("GlobalLeaderboard: %v", err)
	}
	if len(board) != GlobalLeaderboardSize {
		t.Fatalf("Expected %d entries, got %d", GlobalLeaderboardSize, len(board))
	}
	if board[0].Player != "0xabc" || !board[0].XP.Equal(decimal.NewFromInt(90)) {
		t.Errorf("Expected 0xabc with 90 XP first, got %+v", board[0])
	}
	if board[1].Player != "0xdef" {
		t.Errorf("Expected 0xdef second, got %+v", board[1])
	}
	for i := 1; i < len(board); i++ {
		if board[i].XP.GreaterThan(board[i-1].XP) {
			t.Errorf("Leaderboard not sorted at %d: %v", i, board)
		}
	}
}

func TestRoomDetailNotFound(t *testing.T) {
	f := newFixture(t)
	f.contract.count = 2
	for _, id := range []int{0, 3, -1} {
		if _, err := f.svc.RoomDetail(context.Background(), id); !errors.Is(err, ErrRoomNotFound) {
			t.Errorf("RoomDetail(%d): expected ErrRoomNotFound, got %v", id, err)
		}
	}
}

func TestExportResultsAndArchivedLeaderboard(t *testing.T) {
	f := newFixture(t)
	f.contract.count = 1
	f.contract.setBoard(1, entry("0xAAA", 77))
	ctx := context.Background()

	f.svc.Rooms(ctx)

	top, err := f.svc.ArchivedLeaderboard(ctx, 10)
	if err != nil || len(top) != 1 || top[0].Player != "0xaaa" {
		t.Fatalf("ArchivedLeaderboard: %v %v", top, err)
	}

	var buf bytes.Buffer
	if err := f.svc.ExportResults(ctx, &buf); err != nil {
		t.Fatalf("ExportResults: %v", err)
	}
	if !strings.Contains(buf.String(), "1,0xAAA,77,") {
		t.Errorf("Unexpected CSV %q", buf.String())
	}
}

func TestDescribe(t *testing.T) {
	if got := Describe(errors.New(""), actionCreate); got != "Please try again." {
		t.Errorf("Expected fallback text, got %q", got)
	}
	if got := Describe(errors.New("node unreachable"), actionCreate); got != "node unreachable" {
		t.Errorf("Expected error text, got %q", got)
	}
}

package game

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/oraclegame/oracle-game/internal/genlayer"
	"github.com/oraclegame/oracle-game/internal/oraclegame"
)

type fakeBackend struct {
	submits   atomic.Int32
	finalizes atomic.Int32
	polls     atomic.Int32
	readyAt   int32
}

func (b *fakeBackend) SubmitAnswer(ctx context.Context, roomID int, answer string) (*genlayer.TransactionReceipt, error) {
	b.submits.Add(1)
	return &genlayer.TransactionReceipt{Hash: "0xsubmit"}, nil
}

func (b *fakeBackend) FinalizeGame(ctx context.Context, roomID int) (*genlayer.TransactionReceipt, error) {
	b.finalizes.Add(1)
	return &genlayer.TransactionReceipt{Hash: "0xfinal"}, nil
}

func (b *fakeBackend) RoomLeaderboard(ctx context.Context, roomID int) ([]oraclegame.RoomLeaderboardEntry, error) {
	if b.polls.Add(1) < b.readyAt {
		return []oraclegame.RoomLeaderboardEntry{}, nil
	}
	return []oraclegame.RoomLeaderboardEntry{entry("0xA", 60)}, nil
}

func fastSession(backend SessionBackend) *RoomSession {
	return NewRoomSession(7, backend, SessionConfig{
		AnswerSeconds: 3,
		Tick:          time.Millisecond,
		PollInterval:  time.Millisecond,
	})
}

func waitDone(t *testing.T, rs *RoomSession) {
	t.Helper()
	select {
	case <-rs.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("session did not finish")
	}
}

func TestSessionDefaults(t *testing.T) {
	rs := NewRoomSession(1, &fakeBackend{}, SessionConfig{})
	st := rs.State()
	if st.Phase != oraclegame.PhaseActive || st.SecondsLeft != AnswerTimeSeconds || st.TotalSeconds != AnswerTimeSeconds {
		t.Errorf("Unexpected initial state %+v", st)
	}
}

func TestSessionRunsToFinished(t *testing.T) {
	backend := &fakeBackend{readyAt: 3}
	rs := fastSession(backend)

	var (
		mu     sync.Mutex
		phases []oraclegame.GamePhase
		ticks  []int
	)
	rs.OnPhaseChange(func(from, to oraclegame.GamePhase) {
		mu.Lock()
		defer mu.Unlock()
		if !from.CanTransitionTo(to) {
			t.Errorf("invalid transition %s -> %s", from, to)
		}
		phases = append(phases, to)
	})
	rs.OnTick(func(st SessionState) {
		mu.Lock()
		defer mu.Unlock()
		ticks = append(ticks, st.SecondsLeft)
	})

	rs.Start(context.Background())
	waitDone(t, rs)

	mu.Lock()
	defer mu.Unlock()
	if len(phases) != 2 || phases[0] != oraclegame.PhaseJudging || phases[1] != oraclegame.PhaseFinished {
		t.Errorf("Expected judging then finished, got %v", phases)
	}
	if len(ticks) != 3 || ticks[2] != 0 {
		t.Errorf("Expected countdown 2,1,0, got %v", ticks)
	}
	if rs.State().Phase != oraclegame.PhaseFinished {
		t.Errorf("Expected finished, got %s", rs.State().Phase)
	}
	if backend.polls.Load() < 3 {
		t.Errorf("Expected at least 3 leaderboard polls, got %d", backend.polls.Load())
	}

	deadline := time.Now().Add(time.Second)
	for backend.finalizes.Load() == 0 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	if backend.finalizes.Load() != 1 {
		t.Errorf("Expected exactly one finalize, got %d", backend.finalizes.Load())
	}
}

func TestSessionSubmitOnce(t *testing.T) {
	backend := &fakeBackend{}
	rs := NewRoomSession(1, backend, SessionConfig{})
	ctx := context.Background()

	if _, err := rs.Submit(ctx, "   "); !errors.Is(err, ErrInvalidAnswer) {
		t.Errorf("Expected ErrInvalidAnswer, got %v", err)
	}
	if _, err := rs.Submit(ctx, " My answer "); err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if _, err := rs.Submit(ctx, "Another"); !errors.Is(err, ErrAlreadySubmitted) {
		t.Errorf("Expected ErrAlreadySubmitted, got %v", err)
	}
	st := rs.State()
	if !st.HasSubmitted || st.Answer != "My answer" {
		t.Errorf("Unexpected state %+v", st)
	}
	if backend.submits.Load() != 1 {
		t.Errorf("Expected one submission, got %d", backend.submits.Load())
	}
}

func TestSessionRejectsLateAnswers(t *testing.T) {
	backend := &fakeBackend{readyAt: 1 << 30}
	rs := fastSession(backend)
	rs.Start(context.Background())

	deadline := time.Now().Add(5 * time.Second)
	for rs.State().Phase == oraclegame.PhaseActive {
		if time.Now().After(deadline) {
			t.Fatal("countdown never ended")
		}
		time.Sleep(time.Millisecond)
	}

	if _, err := rs.Submit(context.Background(), "too late"); !errors.Is(err, ErrNotAcceptingAnswers) {
		t.Errorf("Expected ErrNotAcceptingAnswers, got %v", err)
	}
	rs.Stop()
	if rs.State().Phase != oraclegame.PhaseJudging {
		t.Errorf("Expected judging after stop, got %s", rs.State().Phase)
	}
}

func TestSessionStopDuringCountdown(t *testing.T) {
	rs := NewRoomSession(1, &fakeBackend{}, SessionConfig{Tick: time.Hour})
	rs.Start(context.Background())
	rs.Stop()
	if rs.State().Phase != oraclegame.PhaseActive {
		t.Errorf("Expected active after early stop, got %s", rs.State().Phase)
	}
	rs.Stop() // second stop is a no-op
}

func TestSessionRejectsBackwardTransition(t *testing.T) {
	rs := NewRoomSession(1, &fakeBackend{}, SessionConfig{})
	if err := rs.transition(oraclegame.PhaseFinished); err == nil {
		t.Error("active -> finished should be rejected")
	}
	if err := rs.transition(oraclegame.PhaseJudging); err != nil {
		t.Errorf("active -> judging: %v", err)
	}
	if err := rs.transition(oraclegame.PhaseActive); err == nil {
		t.Error("judging -> active should be rejected")
	}
}

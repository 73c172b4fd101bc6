package game

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/oraclegame/oracle-game/internal/genlayer"
	"github.com/oraclegame/oracle-game/internal/oraclegame"
)

// AnswerTimeSeconds is the writing window of a room.
const AnswerTimeSeconds = 120

// SessionBackend is what a RoomSession drives. *Service implements it.
type SessionBackend interface {
	SubmitAnswer(ctx context.Context, roomID int, answer string) (*genlayer.TransactionReceipt, error)
	FinalizeGame(ctx context.Context, roomID int) (*genlayer.TransactionReceipt, error)
	RoomLeaderboard(ctx context.Context, roomID int) ([]oraclegame.RoomLeaderboardEntry, error)
}

// SessionConfig tunes the timer. Zero values take the defaults.
type SessionConfig struct {
	AnswerSeconds int
	Tick          time.Duration
	PollInterval  time.Duration
	Logger        *log.Logger
}

func (c SessionConfig) withDefaults() SessionConfig {
	if c.AnswerSeconds <= 0 {
		c.AnswerSeconds = AnswerTimeSeconds
	}
	if c.Tick <= 0 {
		c.Tick = time.Second
	}
	if c.PollInterval <= 0 {
		c.PollInterval = 2 * time.Second
	}
	return c
}

// SessionState is a snapshot for rendering.
type SessionState struct {
	RoomID       int                  `json:"roomId"`
	Phase        oraclegame.GamePhase `json:"phase"`
	SecondsLeft  int                  `json:"secondsLeft"`
	TotalSeconds int                  `json:"totalSeconds"`
	HasSubmitted bool                 `json:"hasSubmitted"`
	Answer       string               `json:"answer,omitempty"`
}

// RoomSession runs one player's view of a room: an answer countdown, then
// finalization by the AI jury, then results. The phase only moves forward:
// active -> judging -> finished.
type RoomSession struct {
	roomID  int
	backend SessionBackend
	cfg     SessionConfig

	mu          sync.Mutex
	phase       oraclegame.GamePhase
	secondsLeft int
	submitted   bool
	answer      string
	onTick      func(SessionState)
	onPhase     func(from, to oraclegame.GamePhase)
	cancel      context.CancelFunc
	done        chan struct{}
}

func NewRoomSession(roomID int, backend SessionBackend, cfg SessionConfig) *RoomSession {
	cfg = cfg.withDefaults()
	return &RoomSession{
		roomID:      roomID,
		backend:     backend,
		cfg:         cfg,
		phase:       oraclegame.PhaseActive,
		secondsLeft: cfg.AnswerSeconds,
	}
}

// OnTick registers a callback fired every countdown second.
func (rs *RoomSession) OnTick(fn func(SessionState)) {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	rs.onTick = fn
}

// OnPhaseChange registers a callback fired after each transition.
func (rs *RoomSession) OnPhaseChange(fn func(from, to oraclegame.GamePhase)) {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	rs.onPhase = fn
}

// State returns the current snapshot.
func (rs *RoomSession) State() SessionState {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	return rs.stateLocked()
}

func (rs *RoomSession) stateLocked() SessionState {
	return SessionState{
		RoomID:       rs.roomID,
		Phase:        rs.phase,
		SecondsLeft:  rs.secondsLeft,
		TotalSeconds: rs.cfg.AnswerSeconds,
		HasSubmitted: rs.submitted,
		Answer:       rs.answer,
	}
}

// Start runs the session in the background until it finishes, ctx ends or
// Stop is called.
func (rs *RoomSession) Start(ctx context.Context) {
	rs.mu.Lock()
	if rs.done != nil {
		rs.mu.Unlock()
		return
	}
	ctx, rs.cancel = context.WithCancel(ctx)
	rs.done = make(chan struct{})
	done := rs.done
	rs.mu.Unlock()

	go func() {
		defer close(done)
		rs.run(ctx)
	}()
}

// Stop cancels the session and waits for it to exit.
func (rs *RoomSession) Stop() {
	rs.mu.Lock()
	cancel, done := rs.cancel, rs.done
	rs.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	<-done
}

// Done is closed when the session goroutine exits.
func (rs *RoomSession) Done() <-chan struct{} {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	return rs.done
}

// Submit sends an answer. Only the first submission is accepted, even if the
// transaction later fails.
func (rs *RoomSession) Submit(ctx context.Context, answer string) (*genlayer.TransactionReceipt, error) {
	answer, err := ValidateAnswer(answer)
	if err != nil {
		return nil, err
	}

	rs.mu.Lock()
	switch {
	case rs.phase != oraclegame.PhaseActive:
		rs.mu.Unlock()
		return nil, ErrNotAcceptingAnswers
	case rs.submitted:
		rs.mu.Unlock()
		return nil, ErrAlreadySubmitted
	}
	rs.submitted = true
	rs.answer = answer
	rs.mu.Unlock()

	return rs.backend.SubmitAnswer(ctx, rs.roomID, answer)
}

func (rs *RoomSession) run(ctx context.Context) {
	if !rs.countdown(ctx) {
		return
	}
	if err := rs.transition(oraclegame.PhaseJudging); err != nil {
		rs.logf("%v", err)
		return
	}

	// Finalization can take minutes; poll for results alongside it.
	go func() {
		if _, err := rs.backend.FinalizeGame(ctx, rs.roomID); err != nil {
			rs.logf("room %d finalize: %v", rs.roomID, err)
		}
	}()

	ticker := time.NewTicker(rs.cfg.PollInterval)
	defer ticker.Stop()
	for {
		lb, err := rs.backend.RoomLeaderboard(ctx, rs.roomID)
		if err == nil && len(lb) > 0 {
			if err := rs.transition(oraclegame.PhaseFinished); err != nil {
				rs.logf("%v", err)
			}
			return
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// countdown ticks until zero. It reports false if ctx ended first.
func (rs *RoomSession) countdown(ctx context.Context) bool {
	ticker := time.NewTicker(rs.cfg.Tick)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return false
		case <-ticker.C:
		}

		rs.mu.Lock()
		if rs.secondsLeft > 0 {
			rs.secondsLeft--
		}
		state := rs.stateLocked()
		onTick := rs.onTick
		rs.mu.Unlock()

		if onTick != nil {
			onTick(state)
		}
		if state.SecondsLeft == 0 {
			return true
		}
	}
}

func (rs *RoomSession) transition(to oraclegame.GamePhase) error {
	rs.mu.Lock()
	from := rs.phase
	if !from.CanTransitionTo(to) {
		rs.mu.Unlock()
		return fmt.Errorf("game: room %d: invalid phase transition %s -> %s", rs.roomID, from, to)
	}
	rs.phase = to
	onPhase := rs.onPhase
	rs.mu.Unlock()

	if onPhase != nil {
		onPhase(from, to)
	}
	return nil
}

func (rs *RoomSession) logf(format string, args ...any) {
	if rs.cfg.Logger != nil {
		rs.cfg.Logger.Printf(format, args...)
		return
	}
	log.Printf("[Session] "+format, args...)
}

package bindings

import (
	"errors"
	"fmt"

	"github.com/oraclegame/oracle-game/internal/game"
	"github.com/oraclegame/oracle-game/internal/oraclegame"
)

var errNoSession = errors.New("no session running for this room")

// PhaseChange is emitted as EventRoomPhase.
type PhaseChange struct {
	RoomID int                  `json:"roomId"`
	From   oraclegame.GamePhase `json:"from"`
	To     oraclegame.GamePhase `json:"to"`
}

// StartRoomSession begins the answer countdown for a room. Starting a room
// that already has a session returns its current state.
func (a *App) StartRoomSession(roomID int) (game.SessionState, error) {
	detail, err := a.svc.RoomDetail(a.ctx, roomID)
	if err != nil {
		return game.SessionState{}, describe(err, "join the room")
	}
	if detail.IsFinished {
		return game.SessionState{}, fmt.Errorf("room %d is already finished", roomID)
	}

	a.sessionsMu.Lock()
	if rs, ok := a.sessions[roomID]; ok {
		a.sessionsMu.Unlock()
		return rs.State(), nil
	}
	rs := game.NewRoomSession(roomID, a.svc, a.session)
	a.sessions[roomID] = rs
	a.sessionsMu.Unlock()

	rs.OnTick(func(st game.SessionState) { a.emit(EventRoomTick, st) })
	rs.OnPhaseChange(func(from, to oraclegame.GamePhase) {
		a.logger.Printf("room %d: %s -> %s", roomID, from, to)
		a.emit(EventRoomPhase, PhaseChange{RoomID: roomID, From: from, To: to})
	})
	rs.Start(a.ctx)

	go func() {
		<-rs.Done()
		a.sessionsMu.Lock()
		if a.sessions[roomID] == rs {
			delete(a.sessions, roomID)
		}
		a.sessionsMu.Unlock()
	}()
	return rs.State(), nil
}

func (a *App) GetSessionState(roomID int) (game.SessionState, error) {
	rs := a.sessionFor(roomID)
	if rs == nil {
		return game.SessionState{}, errNoSession
	}
	return rs.State(), nil
}

// StopRoomSession leaves a room. It is a no-op without a session.
func (a *App) StopRoomSession(roomID int) {
	if rs := a.sessionFor(roomID); rs != nil {
		rs.Stop()
	}
}

func (a *App) sessionFor(roomID int) *game.RoomSession {
	a.sessionsMu.Lock()
	defer a.sessionsMu.Unlock()
	return a.sessions[roomID]
}

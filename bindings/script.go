package bindings

import (
	"github.com/oraclegame/oracle-game/internal/scripting"
	"github.com/oraclegame/oracle-game/internal/store"
)

func (a *App) ListScripts() ([]store.Script, error) {
	return a.db.ListScripts(a.ctx)
}

func (a *App) SaveScript(sc store.Script) (store.Script, error) {
	return a.db.SaveScript(a.ctx, sc)
}

func (a *App) DeleteScript(id string) error {
	return a.db.DeleteScript(a.ctx, id)
}

// RunDraft evaluates source against a room's prompt. The answer is only a
// suggestion; nothing is submitted.
func (a *App) RunDraft(roomID int, source string) (scripting.Draft, error) {
	detail, err := a.svc.RoomDetail(a.ctx, roomID)
	if err != nil {
		return scripting.Draft{}, describe(err, "draft an answer")
	}
	return a.drafter.Draft(a.ctx, source, roomID, detail.Prompt)
}

// RunSavedDraft is RunDraft with a stored script.
func (a *App) RunSavedDraft(roomID int, scriptID string) (scripting.Draft, error) {
	sc, err := a.db.GetScript(a.ctx, scriptID)
	if err != nil {
		return scripting.Draft{}, err
	}
	return a.RunDraft(roomID, sc.Source)
}

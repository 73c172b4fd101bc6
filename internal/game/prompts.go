package game

import (
	"context"
	"log"
	"sync"

	"github.com/oraclegame/oracle-game/internal/store"
)

// PromptPlaceholder is shown for rooms whose prompt this client never saw.
const PromptPlaceholder = "The prompt will be revealed when the game starts. Stay ready!"

// The contract has no view for a room's prompt, so prompts are remembered
// locally. A freshly created room is stored under store.PendingPromptID until
// a rooms poll that started after the creation learns its id.
type promptCache struct {
	mu      sync.RWMutex
	prompts map[int]string
	// pendingGen is the cache generation the pending prompt was created in.
	// A poll begun earlier may have read a room count without the new room.
	pendingGen uint64
	db         *store.Store
	logger     *log.Logger
}

func newPromptCache(ctx context.Context, db *store.Store, logger *log.Logger) *promptCache {
	pc := &promptCache{prompts: map[int]string{}, db: db, logger: logger}
	if db == nil {
		return pc
	}
	saved, err := db.Prompts(ctx)
	if err != nil {
		logger.Printf("load cached prompts: %v", err)
		return pc
	}
	pc.prompts = saved
	return pc
}

func (pc *promptCache) get(roomID int) string {
	pc.mu.RLock()
	defer pc.mu.RUnlock()
	return pc.prompts[roomID]
}

func (pc *promptCache) set(ctx context.Context, roomID int, prompt string) {
	pc.mu.Lock()
	pc.prompts[roomID] = prompt
	pc.mu.Unlock()

	if pc.db != nil {
		if err := pc.db.SavePrompt(ctx, roomID, prompt); err != nil {
			pc.logger.Printf("persist prompt for room %d: %v", roomID, err)
		}
	}
}

// setPending remembers the prompt of a just-created room. Only polls started
// in generation gen or later may claim it.
func (pc *promptCache) setPending(ctx context.Context, prompt string, gen uint64) {
	pc.mu.Lock()
	pc.prompts[store.PendingPromptID] = prompt
	pc.pendingGen = gen
	pc.mu.Unlock()

	if pc.db != nil {
		if err := pc.db.SavePrompt(ctx, store.PendingPromptID, prompt); err != nil {
			pc.logger.Printf("persist pending prompt: %v", err)
		}
	}
}

// claimPending assigns the pending prompt to newestID, as seen by a poll that
// started in generation pollGen. It returns the prompt and whether it was
// claimed.
func (pc *promptCache) claimPending(ctx context.Context, newestID int, pollGen uint64) (string, bool) {
	if newestID <= 0 {
		return "", false
	}

	pc.mu.Lock()
	prompt, ok := pc.prompts[store.PendingPromptID]
	ok = ok && prompt != "" && pollGen >= pc.pendingGen
	if ok {
		pc.prompts[newestID] = prompt
		delete(pc.prompts, store.PendingPromptID)
	}
	pc.mu.Unlock()

	if !ok {
		return "", false
	}
	if pc.db != nil {
		if _, err := pc.db.ClaimPendingPrompt(ctx, newestID); err != nil {
			pc.logger.Printf("persist prompt claim for room %d: %v", newestID, err)
		}
	}
	return prompt, true
}

// Package bindings holds the structs bound to the Wails frontend.
package bindings

import (
	"context"
	"log"
	"os"
	"sync"

	"github.com/oraclegame/oracle-game/internal/game"
	"github.com/oraclegame/oracle-game/internal/scripting"
	"github.com/oraclegame/oracle-game/internal/store"
)

// Deps are the long-lived services the App exposes. Watcher, Notifier and
// Drafter are optional.
type Deps struct {
	Service  *game.Service
	Store    *store.Store
	Watcher  *game.Watcher
	Notifier *game.FanoutNotifier
	Drafter  *scripting.Drafter
	Session  game.SessionConfig
	Logger   *log.Logger
}

// App is the main Wails-bound struct: rooms, leaderboards, mutations, room
// sessions and draft scripts.
type App struct {
	ctx     context.Context
	cancel  context.CancelFunc
	svc     *game.Service
	db      *store.Store
	watcher *game.Watcher
	notify  *game.FanoutNotifier
	drafter *scripting.Drafter
	session game.SessionConfig
	logger  *log.Logger

	emitMu  sync.RWMutex
	emitter Emitter

	sessionsMu sync.Mutex
	sessions   map[int]*game.RoomSession
}

func New(deps Deps) *App {
	logger := deps.Logger
	if logger == nil {
		logger = log.New(os.Stdout, "[App] ", log.LstdFlags)
	}
	drafter := deps.Drafter
	if drafter == nil {
		drafter = scripting.NewDrafter(nil)
	}
	if deps.Session.Logger == nil {
		deps.Session.Logger = logger
	}
	return &App{
		ctx:      context.Background(),
		svc:      deps.Service,
		db:       deps.Store,
		watcher:  deps.Watcher,
		notify:   deps.Notifier,
		drafter:  drafter,
		session:  deps.Session,
		logger:   logger,
		sessions: make(map[int]*game.RoomSession),
	}
}

// Startup is called by Wails on application startup.
func (a *App) Startup(ctx context.Context) {
	a.start(ctx, &wailsEmitter{ctx: ctx})
}

func (a *App) start(ctx context.Context, emitter Emitter) {
	a.ctx, a.cancel = context.WithCancel(ctx)
	a.emitMu.Lock()
	a.emitter = emitter
	a.emitMu.Unlock()

	if a.notify != nil {
		a.notify.Add(func(n game.Notification) { a.emit(EventToast, n) })
	}
	// The service raised its setup toast before any UI was attached.
	if a.svc != nil && !a.svc.Configured() {
		a.emit(EventToast, game.Notification{
			Kind:        game.KindConfigError,
			Title:       "Setup Required",
			Description: game.Describe(game.ErrContractNotConfigured, ""),
		})
	}

	if a.watcher != nil {
		events, unsubscribe := a.watcher.Subscribe(32)
		go func() {
			defer unsubscribe()
			for {
				select {
				case <-a.ctx.Done():
					return
				case ev, ok := <-events:
					if !ok {
						return
					}
					a.emit(ev.Type, ev)
				}
			}
		}()
	}
}

// Shutdown stops every running room session.
func (a *App) Shutdown() {
	a.sessionsMu.Lock()
	running := make([]*game.RoomSession, 0, len(a.sessions))
	for _, rs := range a.sessions {
		running = append(running, rs)
	}
	a.sessionsMu.Unlock()
	for _, rs := range running {
		rs.Stop()
	}
	if a.cancel != nil {
		a.cancel()
	}
}

func (a *App) emit(event string, data any) {
	a.emitMu.RLock()
	e := a.emitter
	a.emitMu.RUnlock()
	if e != nil {
		e.Emit(event, data)
	}
}

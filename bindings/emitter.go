package bindings

import (
	"context"

	wruntime "github.com/wailsapp/wails/v2/pkg/runtime"
)

// Frontend event names.
const (
	EventToast         = "toast"
	EventRoomTick      = "room:tick"
	EventRoomPhase     = "room:phase"
	EventWalletChanged = "wallet:changed"
)

// Emitter pushes named events to the frontend.
type Emitter interface {
	Emit(event string, data any)
}

// wailsEmitter bridges events to the Wails runtime.
type wailsEmitter struct {
	ctx context.Context
}

func (e *wailsEmitter) Emit(event string, data any) {
	if e.ctx == nil {
		return
	}
	wruntime.EventsEmit(e.ctx, event, data)
}

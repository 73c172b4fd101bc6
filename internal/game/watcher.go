package game

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/oraclegame/oracle-game/internal/oraclegame"
)

// Event types published by the Watcher.
const (
	EventRooms       = "rooms:update"
	EventLeaderboard = "leaderboard:update"
)

// Event is a change pushed to subscribers.
type Event struct {
	Type        string                              `json:"type"`
	Rooms       []oraclegame.Room                   `json:"rooms,omitempty"`
	Stats       *Stats                              `json:"stats,omitempty"`
	Leaderboard []oraclegame.GlobalLeaderboardEntry `json:"leaderboard,omitempty"`
	At          time.Time                           `json:"at"`
}

// Watcher polls rooms and the global leaderboard and publishes an Event to
// subscribers whenever either changes.
type Watcher struct {
	svc      *Service
	interval time.Duration
	logger   *log.Logger

	mu        sync.Mutex
	subs      map[int]chan Event
	nextID    int
	lastRooms []byte
	lastBoard []byte
}

func NewWatcher(svc *Service, interval time.Duration, logger *log.Logger) *Watcher {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	if logger == nil {
		logger = svc.logger
	}
	return &Watcher{svc: svc, interval: interval, logger: logger, subs: map[int]chan Event{}}
}

// Subscribe returns a buffered event channel and a cancel func. Slow
// subscribers miss events rather than block the poller.
func (w *Watcher) Subscribe(buffer int) (<-chan Event, func()) {
	if buffer <= 0 {
		buffer = 16
	}
	ch := make(chan Event, buffer)

	w.mu.Lock()
	id := w.nextID
	w.nextID++
	w.subs[id] = ch
	w.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			w.mu.Lock()
			delete(w.subs, id)
			w.mu.Unlock()
			close(ch)
		})
	}
}

func (w *Watcher) publish(ev Event) {
	w.mu.Lock()
	defer w.mu.Unlock()
	for _, ch := range w.subs {
		select {
		case ch <- ev:
		default:
		}
	}
}

// Run polls until ctx is cancelled.
func (w *Watcher) Run(ctx context.Context) error {
	w.logger.Printf("watcher started (interval %s)", w.interval)
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		if err := w.Poll(ctx); err != nil && !errors.Is(err, ErrContractNotConfigured) {
			w.logger.Printf("poll: %v", err)
		}
		select {
		case <-ctx.Done():
			w.logger.Printf("watcher stopped")
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// Poll refreshes once and publishes what changed.
func (w *Watcher) Poll(ctx context.Context) error {
	if !w.svc.Configured() {
		return ErrContractNotConfigured
	}

	rooms, err := w.svc.Rooms(ctx)
	if err != nil {
		return err
	}
	if w.changed(&w.lastRooms, rooms) {
		st := statsOf(rooms)
		w.publish(Event{Type: EventRooms, Rooms: rooms, Stats: &st, At: time.Now().UTC()})
	}

	board, err := w.svc.GlobalLeaderboard(ctx)
	if err != nil {
		return err
	}
	if w.changed(&w.lastBoard, board) {
		w.publish(Event{Type: EventLeaderboard, Leaderboard: board, At: time.Now().UTC()})
	}
	return nil
}

func (w *Watcher) changed(last *[]byte, v any) bool {
	data, err := json.Marshal(v)
	if err != nil {
		return true
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if *last != nil && bytes.Equal(*last, data) {
		return false
	}
	*last = data
	return true
}

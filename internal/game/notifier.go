package game

import (
	"log"
	"sync"
)

// Notifier shows transient user notifications (toasts).
type Notifier interface {
	Success(title, description string)
	Error(title, description string)
	ConfigError(title, description string)
}

// LogNotifier writes notifications to a logger. Used when no UI is attached.
type LogNotifier struct {
	logger *log.Logger
}

func NewLogNotifier(logger *log.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

func (n *LogNotifier) Success(title, description string) {
	n.logger.Printf("✓ %s: %s", title, description)
}

func (n *LogNotifier) Error(title, description string) {
	n.logger.Printf("✗ %s: %s", title, description)
}

func (n *LogNotifier) ConfigError(title, description string) {
	n.logger.Printf("! %s: %s", title, description)
}

// Notification is one recorded notification.
type Notification struct {
	Kind        string `json:"kind"`
	Title       string `json:"title"`
	Description string `json:"description"`
}

// Notification kinds.
const (
	KindSuccess     = "success"
	KindError       = "error"
	KindConfigError = "config"
)

// FanoutNotifier forwards notifications to every registered sink.
type FanoutNotifier struct {
	mu    sync.RWMutex
	sinks []func(Notification)
}

func (f *FanoutNotifier) Add(sink func(Notification)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sinks = append(f.sinks, sink)
}

func (f *FanoutNotifier) emit(n Notification) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	for _, sink := range f.sinks {
		sink(n)
	}
}

func (f *FanoutNotifier) Success(title, description string) {
	f.emit(Notification{Kind: KindSuccess, Title: title, Description: description})
}

func (f *FanoutNotifier) Error(title, description string) {
	f.emit(Notification{Kind: KindError, Title: title, Description: description})
}

func (f *FanoutNotifier) ConfigError(title, description string) {
	f.emit(Notification{Kind: KindConfigError, Title: title, Description: description})
}

package scripting

import (
	"context"
	"fmt"
	"log"
	"os"
	"strings"
	"time"
	"unicode/utf8"
)

// MaxDraftLength caps the runes a draft may return.
const MaxDraftLength = 2000

// Draft is the outcome of one script run.
type Draft struct {
	Answer    string     `json:"answer"`
	Truncated bool       `json:"truncated"`
	Logs      []LogEntry `json:"logs"`
	Elapsed   string     `json:"elapsed"`
}

// Drafter evaluates draft scripts, each in a fresh VM.
type Drafter struct {
	logger *log.Logger
}

// NewDrafter returns a Drafter logging with the given logger, or a default one.
func NewDrafter(logger *log.Logger) *Drafter {
	if logger == nil {
		logger = log.New(os.Stdout, "[Draft] ", log.LstdFlags)
	}
	return &Drafter{logger: logger}
}

// Draft runs source against the room's prompt and returns the trimmed answer.
// Logs are returned even when the script fails.
func (d *Drafter) Draft(ctx context.Context, source string, roomID int, prompt string) (Draft, error) {
	if strings.TrimSpace(source) == "" {
		return Draft{}, fmt.Errorf("script is empty")
	}
	start := time.Now()
	vm := NewVM()
	stop := context.AfterFunc(ctx, func() {
		vm.runtime.Interrupt("draft cancelled")
	})
	defer stop()

	out := Draft{}
	finish := func(err error) (Draft, error) {
		out.Logs = vm.GetLogs()
		out.Elapsed = time.Since(start).Round(time.Millisecond).String()
		if err != nil {
			d.logger.Printf("room %d: %v", roomID, err)
		}
		return out, err
	}

	if err := vm.Execute(source); err != nil {
		return finish(err)
	}
	answer, err := vm.CallDraft(prompt, map[string]any{
		"id":     roomID,
		"prompt": prompt,
	})
	if err != nil {
		return finish(err)
	}

	out.Answer, out.Truncated = capRunes(strings.TrimSpace(answer), MaxDraftLength)
	return finish(nil)
}

func capRunes(s string, limit int) (string, bool) {
	if utf8.RuneCountInString(s) <= limit {
		return s, false
	}
	r := []rune(s)
	return strings.TrimSpace(string(r[:limit])), true
}

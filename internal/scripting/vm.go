// Package scripting runs user-supplied answer draft scripts in a sandboxed
// goja runtime. A script defines draft(prompt, room) and returns the text that
// should be pre-filled into the answer box.
package scripting

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/dop251/goja"
)

// LogEntry represents a single log message from the script.
type LogEntry struct {
	Time    time.Time `json:"time"`
	Message string    `json:"message"`
}

// ErrNoDraftFunc is returned when the script does not define draft().
var ErrNoDraftFunc = errors.New("draft() function is not defined")

// VM wraps a goja runtime with sandbox restrictions and global function injection.
type VM struct {
	runtime *goja.Runtime
	mu      sync.Mutex

	logs    []LogEntry
	logsMu  sync.Mutex
	maxLogs int

	initTimeout time.Duration
	callTimeout time.Duration
}

const (
	scriptInitTimeout = 2 * time.Second
	scriptCallTimeout = 1 * time.Second
)

// NewVM creates a sandboxed goja runtime with global functions injected.
func NewVM() *VM {
	vm := &VM{
		runtime:     goja.New(),
		maxLogs:     200,
		initTimeout: scriptInitTimeout,
		callTimeout: scriptCallTimeout,
	}
	vm.injectGlobalFunctions()
	return vm
}

func (vm *VM) injectGlobalFunctions() {
	vm.runtime.Set("log", func(call goja.FunctionCall) goja.Value {
		parts := make([]string, len(call.Arguments))
		for i, arg := range call.Arguments {
			parts[i] = arg.String()
		}
		vm.appendLog(strings.Join(parts, " "))
		return goja.Undefined()
	})

	console := vm.runtime.NewObject()
	console.Set("log", vm.runtime.Get("log"))
	vm.runtime.Set("console", console)

	// words(text) splits on whitespace, handy for length budgets.
	vm.runtime.Set("words", func(call goja.FunctionCall) goja.Value {
		if len(call.Arguments) == 0 {
			return vm.runtime.ToValue([]string{})
		}
		return vm.runtime.ToValue(strings.Fields(call.Arguments[0].String()))
	})

	vm.runtime.Set("MAX_ANSWER_LENGTH", MaxDraftLength)

	vm.runtime.Set("require", goja.Undefined())
	vm.runtime.Set("fetch", goja.Undefined())
	vm.runtime.Set("XMLHttpRequest", goja.Undefined())
	vm.runtime.Set("eval", goja.Undefined())
	vm.runtime.Set("Function", goja.Undefined())
}

func (vm *VM) appendLog(msg string) {
	vm.logsMu.Lock()
	defer vm.logsMu.Unlock()
	if len(vm.logs) >= vm.maxLogs {
		vm.logs = vm.logs[1:]
	}
	vm.logs = append(vm.logs, LogEntry{Time: time.Now(), Message: msg})
}

// Execute runs the script source once so it can register draft().
func (vm *VM) Execute(source string) error {
	return vm.runWithTimeout(vm.initTimeout, func() error {
		vm.mu.Lock()
		defer vm.mu.Unlock()
		if _, err := vm.runtime.RunString(source); err != nil {
			return fmt.Errorf("script execution error: %w", err)
		}
		return nil
	})
}

// HasDraftFunc reports whether the script defined draft().
func (vm *VM) HasDraftFunc() bool {
	vm.mu.Lock()
	defer vm.mu.Unlock()
	_, ok := vm.draftFunc()
	return ok
}

func (vm *VM) draftFunc() (goja.Callable, bool) {
	fn := vm.runtime.Get("draft")
	if fn == nil || goja.IsUndefined(fn) || goja.IsNull(fn) {
		return nil, false
	}
	return goja.AssertFunction(fn)
}

// CallDraft calls draft(prompt, room) and returns its result as a string.
// A null or undefined result yields "".
func (vm *VM) CallDraft(prompt string, room map[string]any) (string, error) {
	var out string
	err := vm.runWithTimeout(vm.callTimeout, func() error {
		vm.mu.Lock()
		defer vm.mu.Unlock()

		callable, ok := vm.draftFunc()
		if !ok {
			return ErrNoDraftFunc
		}
		result, err := callable(goja.Undefined(), vm.runtime.ToValue(prompt), vm.runtime.ToValue(room))
		if err != nil {
			return fmt.Errorf("draft() error: %w", err)
		}
		if result == nil || goja.IsUndefined(result) || goja.IsNull(result) {
			return nil
		}
		out = result.String()
		return nil
	})
	if err != nil {
		return "", err
	}
	return out, nil
}

// GetLogs returns a copy of the current log buffer.
func (vm *VM) GetLogs() []LogEntry {
	vm.logsMu.Lock()
	defer vm.logsMu.Unlock()
	out := make([]LogEntry, len(vm.logs))
	copy(out, vm.logs)
	return out
}

// ClearLogs clears the log buffer.
func (vm *VM) ClearLogs() {
	vm.logsMu.Lock()
	defer vm.logsMu.Unlock()
	vm.logs = vm.logs[:0]
}

func (vm *VM) runWithTimeout(timeout time.Duration, fn func() error) error {
	done := make(chan error, 1)
	go func() {
		done <- fn()
	}()

	select {
	case err := <-done:
		return err
	case <-time.After(timeout):
		vm.runtime.Interrupt("script execution timeout")
		select {
		case err := <-done:
			if err != nil {
				return fmt.Errorf("script timed out: %w", err)
			}
			return fmt.Errorf("script timed out")
		case <-time.After(200 * time.Millisecond):
			return fmt.Errorf("script timed out")
		}
	}
}

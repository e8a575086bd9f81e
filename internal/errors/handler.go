// Package errors provides error-handling strategies for task faults
// raised at the worker boundary.
package errors

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/jchen17/webpool/internal/logger"
	"github.com/jchen17/webpool/pkg/types"
)

// FaultContext describes a single task fault.
type FaultContext struct {
	// Err is the error the task returned or panicked with.
	Err error

	// TaskID identifies the failed task, when known.
	TaskID string

	// WorkerID identifies the worker that ran the task, when known.
	WorkerID int

	// Stack is the stack trace captured for panics, empty otherwise.
	Stack string

	// Timestamp is when the fault was observed.
	Timestamp time.Time
}

// newFaultContext extracts structured fault details from err. Worker
// panics arrive as *types.TaskError with worker id and stack trace in
// their context map.
func newFaultContext(err error) *FaultContext {
	fc := &FaultContext{
		Err:       err,
		WorkerID:  -1,
		Timestamp: time.Now(),
	}

	var taskErr *types.TaskError
	if errors.As(err, &taskErr) {
		fc.TaskID = taskErr.TaskID
		if id, ok := taskErr.Context["worker_id"].(int); ok {
			fc.WorkerID = id
		}
		if stack, ok := taskErr.Context["stack_trace"].(string); ok {
			fc.Stack = stack
		}
	}
	return fc
}

// LogAndContinue returns a handler that logs the fault and reports it as
// handled, keeping the worker alive. This is the default strategy.
func LogAndContinue(log *logger.Logger) types.ErrorHandler {
	if log == nil {
		log = logger.Default
	}
	return func(err error) error {
		fc := newFaultContext(err)
		if fc.TaskID != "" {
			log.Error("task %s failed on worker %d: %v", fc.TaskID, fc.WorkerID, fc.Err)
		} else {
			log.Error("task failed: %v", fc.Err)
		}
		if fc.Stack != "" {
			log.Debug("task %s stack trace:\n%s", fc.TaskID, fc.Stack)
		}
		return nil
	}
}

// FailFast returns a handler that reports every fault as unhandled. The
// worker still survives; the fault only surfaces in the pool statistics.
func FailFast() types.ErrorHandler {
	return func(err error) error {
		return err
	}
}

// Registry maps strategy names to handlers.
type Registry struct {
	mu             sync.RWMutex
	handlers       map[string]types.ErrorHandler
	defaultHandler types.ErrorHandler
}

// NewRegistry creates a registry preloaded with the built-in strategies,
// defaulting to log-and-continue.
func NewRegistry(log *logger.Logger) *Registry {
	logAndContinue := LogAndContinue(log)
	return &Registry{
		handlers: map[string]types.ErrorHandler{
			"log-and-continue": logAndContinue,
			"fail-fast":        FailFast(),
		},
		defaultHandler: logAndContinue,
	}
}

// Register adds a named handler.
func (r *Registry) Register(name string, handler types.ErrorHandler) error {
	if handler == nil {
		return fmt.Errorf("cannot register nil handler")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.handlers[name]; exists {
		return fmt.Errorf("handler %q already exists", name)
	}
	r.handlers[name] = handler
	return nil
}

// Get returns a handler by name.
func (r *Registry) Get(name string) (types.ErrorHandler, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	handler, exists := r.handlers[name]
	if !exists {
		return nil, fmt.Errorf("handler %q not found", name)
	}
	return handler, nil
}

// Default returns the default handler.
func (r *Registry) Default() types.ErrorHandler {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.defaultHandler
}

// SetDefault sets the default handler.
func (r *Registry) SetDefault(handler types.ErrorHandler) error {
	if handler == nil {
		return fmt.Errorf("cannot set nil as default handler")
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.defaultHandler = handler
	return nil
}

package actions

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"github.com/hydromis/wfengine/pkg/models"
)

var (
	ErrEmptyActionType   = errors.New("action type is empty")
	ErrActionRegistered  = errors.New("action type already registered")
	ErrNilActionHandler  = errors.New("action handler is nil")
	ErrMissingActionArgs = errors.New("action requires arguments")
)

// Invocation carries everything a handler needs to run one action.
type Invocation struct {
	Reference Reference
	Instance  *models.WorkflowInstance
	Payload   map[string]any
}

// Handler runs one side-effecting action.
type Handler func(ctx context.Context, invocation Invocation) error

// Registry maps action types to handlers. Unknown types resolve to a no-op.
type Registry struct {
	logger   *slog.Logger
	mu       sync.RWMutex
	handlers map[string]Handler
}

func NewRegistry(logger *slog.Logger) *Registry {
	return &Registry{
		logger:   logger,
		handlers: make(map[string]Handler),
	}
}

func (r *Registry) Register(actionType string, handler Handler) error {
	if actionType == "" {
		return ErrEmptyActionType
	}

	if handler == nil {
		return fmt.Errorf("%w: %s", ErrNilActionHandler, actionType)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.handlers[actionType]; exists {
		return fmt.Errorf("%w: %s", ErrActionRegistered, actionType)
	}

	r.handlers[actionType] = handler

	return nil
}

func (r *Registry) Lookup(actionType string) (Handler, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	handler, ok := r.handlers[actionType]

	return handler, ok
}

// Resolve returns the handler for actionType, or a no-op handler when none is registered.
func (r *Registry) Resolve(actionType string) Handler {
	if handler, ok := r.Lookup(actionType); ok {
		return handler
	}

	return r.noop
}

// Types lists the registered action types in sorted order.
func (r *Registry) Types() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	types := make([]string, 0, len(r.handlers))
	for actionType := range r.handlers {
		types = append(types, actionType)
	}

	slices.Sort(types)

	return types
}

func (r *Registry) noop(ctx context.Context, invocation Invocation) error {
	r.logger.DebugContext(ctx, "Ignoring unknown action", "action", invocation.Reference.Type)

	return nil
}

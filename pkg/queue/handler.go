package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
)

type (
	// Handler processes one kind of task, identified by Name.
	Handler interface {
		Name() string
		Handle(ctx context.Context, payload json.RawMessage) error
	}

	TaskHandlerFunc[T any] func(ctx context.Context, payload T) error
)

// TaskNameFor derives the task name from a payload type, so enqueuer and
// worker agree on the name without spelling it twice.
func TaskNameFor(payload any) string {
	return strings.TrimLeft(fmt.Sprintf("%T", payload), "*")
}

// NewTaskHandler wraps a typed function into a Handler. The task name is
// derived from the payload type.
func NewTaskHandler[T any](handler TaskHandlerFunc[T]) Handler {
	var payload T
	return &taskHandler[T]{
		name:    TaskNameFor(payload),
		handler: handler,
	}
}

type taskHandler[T any] struct {
	name    string
	handler TaskHandlerFunc[T]
}

func (h *taskHandler[T]) Name() string {
	return h.name
}

func (h *taskHandler[T]) Handle(ctx context.Context, payload json.RawMessage) error {
	var t T
	if err := json.Unmarshal(payload, &t); err != nil {
		return fmt.Errorf("failed to unmarshal %s payload: %w", h.name, err)
	}
	return h.handler(ctx, t)
}

// Package workflow hosts the incident-resolution workflows that run when a
// failure task is acted on or abandoned.
package workflow

import (
	"context"
	"fmt"
	"sync"

	"github.com/rmorley/dqcheck/internal/domain"
)

// TaskType names a kind of workflow task. Tasks are dispatched to their
// handler by type, so each type must have exactly one registered handler.
type TaskType string

// TaskTypeFailureResolution asks an assignee to resolve a check failure.
const TaskTypeFailureResolution TaskType = "RequestCheckFailureResolution"

// Task is one actionable work item attached to a check failure.
type Task struct {
	Type     TaskType             `json:"type"`
	CheckFQN string               `json:"checkFQN"`
	Reason   domain.FailureReason `json:"reason,omitempty"`
	Comment  string               `json:"comment,omitempty"`
}

// Handler performs or abandons tasks of one type.
type Handler interface {
	// Perform acts on the task, returning the check it concerns.
	Perform(ctx context.Context, task Task, actor domain.User) (domain.Check, error)
	// Close abandons the task without a resolution.
	Close(ctx context.Context, task Task, actor domain.User) error
}

// Registry maps task types to their handlers.
type Registry struct {
	mu       sync.RWMutex
	handlers map[TaskType]Handler
}

// NewRegistry builds an empty registry.
func NewRegistry() *Registry {
	return &Registry{handlers: map[TaskType]Handler{}}
}

// Register binds a handler to a task type, replacing any previous binding.
func (r *Registry) Register(taskType TaskType, handler Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[taskType] = handler
}

// For returns the handler bound to the task type.
func (r *Registry) For(taskType TaskType) (Handler, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	handler, ok := r.handlers[taskType]
	if !ok {
		return nil, fmt.Errorf("no workflow registered for task type %q", taskType)
	}
	return handler, nil
}

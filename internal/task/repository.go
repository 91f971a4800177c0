package task

import (
	"context"
	"errors"
)

// ErrTaskNotFound is returned when a task cannot be found by ID.
var ErrTaskNotFound = errors.New("task not found")

// Repository defines the interface for task persistence.
type Repository interface {
	// Save persists a task, replacing any stored task with the same ID.
	Save(ctx context.Context, task *Task) error

	// FindByID retrieves a task by its unique identifier.
	// Returns ErrTaskNotFound if the task does not exist.
	FindByID(ctx context.Context, id string) (*Task, error)

	// List returns all tasks, newest first.
	List(ctx context.Context) ([]*Task, error)

	// ListBySession returns the tasks of one session, newest first.
	ListBySession(ctx context.Context, sessionID string) ([]*Task, error)

	// Delete removes a task from storage.
	// Returns ErrTaskNotFound if the task does not exist.
	Delete(ctx context.Context, id string) error
}

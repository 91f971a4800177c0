// Package task provides the Task aggregate for long-running editor
// operations (batch edits, previews, video assembly) executed in the
// background, with a state machine and repository ports for persistence.
package task

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Kind identifies the editor operation a task runs.
type Kind string

const (
	// KindBatchEdit runs a batch edit over a frame range.
	KindBatchEdit Kind = "batch_edit"
	// KindAssemble assembles a video.
	KindAssemble Kind = "assemble"
	// KindPreviews generates sequence preview thumbnails.
	KindPreviews Kind = "previews"
)

// IsValid returns true if the kind is known.
func (k Kind) IsValid() bool {
	return k == KindBatchEdit || k == KindAssemble || k == KindPreviews
}

// Status represents the current state of a Task.
type Status string

const (
	// StatusQueued indicates the task has been accepted but not started.
	StatusQueued Status = "QUEUED"
	// StatusRunning indicates the task is executing.
	StatusRunning Status = "RUNNING"
	// StatusCompleted indicates the task finished successfully.
	StatusCompleted Status = "COMPLETED"
	// StatusFailed indicates the task ended with an error.
	StatusFailed Status = "FAILED"
	// StatusCancelled indicates the task was stopped before finishing.
	StatusCancelled Status = "CANCELLED"
)

// ErrInvalidTransition is returned when an invalid state transition is attempted.
var ErrInvalidTransition = errors.New("invalid state transition")

var validTransitions = map[Status][]Status{
	StatusQueued:    {StatusRunning, StatusCancelled},
	StatusRunning:   {StatusCompleted, StatusFailed, StatusCancelled},
	StatusCompleted: {},
	StatusFailed:    {},
	StatusCancelled: {},
}

func canTransition(from, to Status) bool {
	for _, s := range validTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// Task is a background editor operation bound to a session.
type Task struct {
	mu sync.RWMutex

	// ID is a random UUID.
	ID string
	// SessionID is the editor session the task operates on.
	SessionID string
	Kind      Kind
	Status    Status
	// Progress is the percentage of completion (0-100).
	Progress int
	// OutputPath is the edited frames directory, preview directory or video file.
	OutputPath string
	// VideoURL is set when an assembled video was uploaded.
	VideoURL string
	// Processed counts frames written.
	Processed int
	// Skipped lists the indices of frames that failed and were skipped.
	Skipped []int
	// Error contains the error message if the task failed.
	Error       string
	CreatedAt   time.Time
	UpdatedAt   time.Time
	StartedAt   time.Time
	CompletedAt time.Time
}

// New creates a queued task with a generated ID.
func New(sessionID string, kind Kind) *Task {
	return NewWithID(uuid.NewString(), sessionID, kind)
}

// NewWithID creates a queued task with the specified ID.
func NewWithID(taskID, sessionID string, kind Kind) *Task {
	now := time.Now()
	return &Task{
		ID:        taskID,
		SessionID: sessionID,
		Kind:      kind,
		Status:    StatusQueued,
		Skipped:   make([]int, 0),
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// TransitionTo attempts to change the task status.
// Returns ErrInvalidTransition if the transition is not allowed.
func (t *Task) TransitionTo(status Status) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !canTransition(t.Status, status) {
		return ErrInvalidTransition
	}

	t.Status = status
	t.UpdatedAt = time.Now()

	switch status {
	case StatusRunning:
		t.StartedAt = t.UpdatedAt
	case StatusCompleted:
		t.Progress = 100
		t.CompletedAt = t.UpdatedAt
	case StatusFailed, StatusCancelled:
		t.CompletedAt = t.UpdatedAt
	}

	return nil
}

// Start transitions the task from QUEUED to RUNNING.
func (t *Task) Start() error {
	return t.TransitionTo(StatusRunning)
}

// Complete transitions the task to COMPLETED.
func (t *Task) Complete() error {
	return t.TransitionTo(StatusCompleted)
}

// Fail transitions the task to FAILED with an error message.
func (t *Task) Fail(errMsg string) error {
	t.mu.Lock()
	t.Error = errMsg
	t.mu.Unlock()
	return t.TransitionTo(StatusFailed)
}

// Cancel transitions the task to CANCELLED.
func (t *Task) Cancel() error {
	return t.TransitionTo(StatusCancelled)
}

// GetStatus returns the current status (thread-safe).
func (t *Task) GetStatus() Status {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.Status
}

// UpdateProgress sets the progress percentage, clamped to 0-100.
func (t *Task) UpdateProgress(progress int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.Progress = min(max(progress, 0), 100)
	t.UpdatedAt = time.Now()
}

// SetResult records the output of a finished operation.
func (t *Task) SetResult(r Result) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.OutputPath = r.OutputPath
	t.VideoURL = r.VideoURL
	t.Processed = r.Processed
	t.Skipped = append(make([]int, 0, len(r.Skipped)), r.Skipped...)
	t.UpdatedAt = time.Now()
}

// IsTerminal returns true if the task is in a terminal state.
func (t *Task) IsTerminal() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.Status == StatusCompleted ||
		t.Status == StatusFailed ||
		t.Status == StatusCancelled
}

// Clone creates a deep copy of the task for safe reads.
func (t *Task) Clone() *Task {
	t.mu.RLock()
	defer t.mu.RUnlock()

	skipped := make([]int, len(t.Skipped))
	copy(skipped, t.Skipped)

	return &Task{
		ID:          t.ID,
		SessionID:   t.SessionID,
		Kind:        t.Kind,
		Status:      t.Status,
		Progress:    t.Progress,
		OutputPath:  t.OutputPath,
		VideoURL:    t.VideoURL,
		Processed:   t.Processed,
		Skipped:     skipped,
		Error:       t.Error,
		CreatedAt:   t.CreatedAt,
		UpdatedAt:   t.UpdatedAt,
		StartedAt:   t.StartedAt,
		CompletedAt: t.CompletedAt,
	}
}

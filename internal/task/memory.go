package task

import (
	"context"
	"sort"
	"sync"
)

// Compile-time check that MemoryRepository implements Repository.
var _ Repository = (*MemoryRepository)(nil)

// MemoryRepository keeps tasks in a map. Tasks do not survive a restart;
// set TASK_DB_PATH to use SQLiteRepository instead.
type MemoryRepository struct {
	mu    sync.RWMutex
	tasks map[string]*Task
}

// NewMemoryRepository creates a new in-memory task repository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		tasks: make(map[string]*Task),
	}
}

// Save stores a clone of the task to avoid external mutations.
func (r *MemoryRepository) Save(_ context.Context, task *Task) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tasks[task.ID] = task.Clone()
	return nil
}

// FindByID retrieves a clone of the task.
func (r *MemoryRepository) FindByID(_ context.Context, id string) (*Task, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	task, ok := r.tasks[id]
	if !ok {
		return nil, ErrTaskNotFound
	}
	return task.Clone(), nil
}

// List returns clones of all tasks, newest first.
func (r *MemoryRepository) List(_ context.Context) ([]*Task, error) {
	return r.collect(func(*Task) bool { return true }), nil
}

// ListBySession returns clones of the session's tasks, newest first.
func (r *MemoryRepository) ListBySession(_ context.Context, sessionID string) ([]*Task, error) {
	return r.collect(func(t *Task) bool { return t.SessionID == sessionID }), nil
}

func (r *MemoryRepository) collect(keep func(*Task) bool) []*Task {
	r.mu.RLock()
	defer r.mu.RUnlock()
	result := make([]*Task, 0, len(r.tasks))
	for _, task := range r.tasks {
		if keep(task) {
			result = append(result, task.Clone())
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})
	return result
}

// Delete removes a task from storage.
func (r *MemoryRepository) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.tasks[id]; !ok {
		return ErrTaskNotFound
	}
	delete(r.tasks, id)
	return nil
}

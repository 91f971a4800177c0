package task

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"
)

func newTestSQLite(t *testing.T) (*SQLiteRepository, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "db", "tasks.db")
	repo, err := NewSQLiteRepository(path, nil)
	if err != nil {
		t.Fatalf("open repository: %v", err)
	}
	t.Cleanup(func() { _ = repo.Close() })
	return repo, path
}

func TestSQLiteRepository_SaveAndFind(t *testing.T) {
	repo, _ := newTestSQLite(t)
	ctx := context.Background()

	task := New("sess-1", KindBatchEdit)
	if err := repo.Save(ctx, task); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	_ = task.Start()
	task.UpdateProgress(60)
	task.SetResult(Result{OutputPath: "/data/seq_edited", Processed: 3, Skipped: []int{1, 4}})
	_ = task.Complete()
	if err := repo.Save(ctx, task); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got, err := repo.FindByID(ctx, task.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Status != StatusCompleted {
		t.Errorf("expected status %s, got %s", StatusCompleted, got.Status)
	}
	if got.Kind != KindBatchEdit || got.SessionID != "sess-1" {
		t.Errorf("unexpected identity %s/%s", got.Kind, got.SessionID)
	}
	if got.Progress != 100 || got.Processed != 3 || got.OutputPath != "/data/seq_edited" {
		t.Errorf("unexpected result %+v", got)
	}
	if len(got.Skipped) != 2 || got.Skipped[1] != 4 {
		t.Errorf("expected skipped [1 4], got %v", got.Skipped)
	}
	if !got.CreatedAt.Equal(task.CreatedAt) {
		t.Errorf("expected CreatedAt %v, got %v", task.CreatedAt, got.CreatedAt)
	}
	if got.CompletedAt.IsZero() {
		t.Error("expected CompletedAt to be set")
	}
}

func TestSQLiteRepository_FindByID_NotFound(t *testing.T) {
	repo, _ := newTestSQLite(t)

	_, err := repo.FindByID(context.Background(), "nonexistent")
	if !errors.Is(err, ErrTaskNotFound) {
		t.Errorf("expected ErrTaskNotFound, got %v", err)
	}
}

func TestSQLiteRepository_List_NewestFirst(t *testing.T) {
	repo, _ := newTestSQLite(t)
	ctx := context.Background()

	older := New("sess-1", KindPreviews)
	older.CreatedAt = time.Now().Add(-time.Hour)
	newer := New("sess-1", KindAssemble)

	_ = repo.Save(ctx, older)
	_ = repo.Save(ctx, newer)

	tasks, err := repo.List(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(tasks) != 2 {
		t.Fatalf("expected 2 tasks, got %d", len(tasks))
	}
	if tasks[0].ID != newer.ID {
		t.Errorf("expected newest task first, got %s", tasks[0].ID)
	}
}

func TestSQLiteRepository_ListBySession(t *testing.T) {
	repo, _ := newTestSQLite(t)
	ctx := context.Background()

	_ = repo.Save(ctx, New("sess-1", KindPreviews))
	_ = repo.Save(ctx, New("sess-2", KindAssemble))
	_ = repo.Save(ctx, New("sess-1", KindBatchEdit))

	tasks, err := repo.ListBySession(ctx, "sess-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(tasks) != 2 {
		t.Fatalf("expected 2 tasks, got %d", len(tasks))
	}
	for _, task := range tasks {
		if task.SessionID != "sess-1" {
			t.Errorf("unexpected session %s", task.SessionID)
		}
	}

	tasks, err = repo.ListBySession(ctx, "sess-3")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(tasks) != 0 {
		t.Errorf("expected no tasks, got %d", len(tasks))
	}
}

func TestSQLiteRepository_Delete(t *testing.T) {
	repo, _ := newTestSQLite(t)
	ctx := context.Background()
	task := New("sess-1", KindBatchEdit)
	_ = repo.Save(ctx, task)

	if err := repo.Delete(ctx, task.ID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := repo.FindByID(ctx, task.ID); !errors.Is(err, ErrTaskNotFound) {
		t.Errorf("expected ErrTaskNotFound, got %v", err)
	}
	if err := repo.Delete(ctx, task.ID); !errors.Is(err, ErrTaskNotFound) {
		t.Errorf("expected ErrTaskNotFound on second delete, got %v", err)
	}
}

func TestSQLiteRepository_MarksInterruptedOnReopen(t *testing.T) {
	repo, path := newTestSQLite(t)
	ctx := context.Background()

	running := New("sess-1", KindAssemble)
	_ = running.Start()
	queued := New("sess-1", KindBatchEdit)
	done := New("sess-1", KindPreviews)
	_ = done.Start()
	_ = done.Complete()

	for _, task := range []*Task{running, queued, done} {
		if err := repo.Save(ctx, task); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	_ = repo.Close()

	reopened, err := NewSQLiteRepository(path, nil)
	if err != nil {
		t.Fatalf("reopen repository: %v", err)
	}
	defer func() { _ = reopened.Close() }()

	for _, id := range []string{running.ID, queued.ID} {
		got, err := reopened.FindByID(ctx, id)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got.Status != StatusFailed {
			t.Errorf("expected interrupted task %s to be FAILED, got %s", id, got.Status)
		}
		if got.Error != "interrupted by restart" {
			t.Errorf("unexpected error message %q", got.Error)
		}
	}

	got, _ := reopened.FindByID(ctx, done.ID)
	if got.Status != StatusCompleted {
		t.Errorf("expected completed task to stay COMPLETED, got %s", got.Status)
	}
}

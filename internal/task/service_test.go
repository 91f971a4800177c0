package task

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"testing"
	"time"
)

func newTestService(t *testing.T) (*Service, *MemoryRepository) {
	t.Helper()
	repo := NewMemoryRepository()
	svc := NewService(repo, slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError})))
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = svc.Shutdown(ctx)
	})
	return svc, repo
}

func TestNewService(t *testing.T) {
	repo := NewMemoryRepository()

	svc := NewService(repo, nil)
	if svc == nil {
		t.Fatal("expected non-nil service")
	}
	if svc.repo != repo {
		t.Error("expected repo to be set")
	}
	if svc.logger == nil {
		t.Error("expected default logger")
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	svc2 := NewService(repo, logger)
	if svc2.logger != logger {
		t.Error("expected custom logger to be set")
	}
}

func TestService_Submit_Completes(t *testing.T) {
	svc, repo := newTestService(t)
	ctx := context.Background()

	submitted, err := svc.Submit(ctx, "sess-1", KindBatchEdit, func(ctx context.Context, report func(int)) (Result, error) {
		report(25)
		report(75)
		return Result{OutputPath: "/tmp/seq_edited", Processed: 4, Skipped: []int{2}}, nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if submitted.ID == "" {
		t.Fatal("expected task ID")
	}
	if submitted.Kind != KindBatchEdit || submitted.SessionID != "sess-1" {
		t.Errorf("unexpected task %+v", submitted)
	}

	svc.Wait()

	saved, err := repo.FindByID(ctx, submitted.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if saved.Status != StatusCompleted {
		t.Errorf("expected status %s, got %s", StatusCompleted, saved.Status)
	}
	if saved.Progress != 100 {
		t.Errorf("expected progress 100, got %d", saved.Progress)
	}
	if saved.OutputPath != "/tmp/seq_edited" || saved.Processed != 4 {
		t.Errorf("unexpected result %+v", saved)
	}
	if len(saved.Skipped) != 1 || saved.Skipped[0] != 2 {
		t.Errorf("expected skipped [2], got %v", saved.Skipped)
	}
	if saved.StartedAt.IsZero() || saved.CompletedAt.IsZero() {
		t.Error("expected StartedAt and CompletedAt to be set")
	}
}

func TestService_Submit_Fails(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	submitted, err := svc.Submit(ctx, "sess-1", KindAssemble, func(ctx context.Context, report func(int)) (Result, error) {
		return Result{}, errors.New("ffmpeg exited with status 1")
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	svc.Wait()

	got, err := svc.Get(ctx, submitted.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Status != StatusFailed {
		t.Errorf("expected status %s, got %s", StatusFailed, got.Status)
	}
	if got.Error != "ffmpeg exited with status 1" {
		t.Errorf("unexpected error message %q", got.Error)
	}
}

func TestService_Submit_RecoversPanic(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	submitted, err := svc.Submit(ctx, "sess-1", KindPreviews, func(ctx context.Context, report func(int)) (Result, error) {
		panic("decoder blew up")
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	svc.Wait()

	got, _ := svc.Get(ctx, submitted.ID)
	if got.Status != StatusFailed {
		t.Errorf("expected status %s, got %s", StatusFailed, got.Status)
	}
	if got.Error == "" {
		t.Error("expected panic to be recorded as error")
	}
}

func TestService_Submit_SurvivesRequestContext(t *testing.T) {
	svc, _ := newTestService(t)
	reqCtx, cancel := context.WithCancel(context.Background())

	release := make(chan struct{})
	submitted, err := svc.Submit(reqCtx, "sess-1", KindBatchEdit, func(ctx context.Context, report func(int)) (Result, error) {
		<-release
		return Result{}, ctx.Err()
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	cancel()
	close(release)
	svc.Wait()

	got, _ := svc.Get(context.Background(), submitted.ID)
	if got.Status != StatusCompleted {
		t.Errorf("expected status %s, got %s", StatusCompleted, got.Status)
	}
}

func TestService_Shutdown_CancelsRunning(t *testing.T) {
	repo := NewMemoryRepository()
	svc := NewService(repo, nil)
	ctx := context.Background()

	started := make(chan struct{})
	submitted, err := svc.Submit(ctx, "sess-1", KindAssemble, func(ctx context.Context, report func(int)) (Result, error) {
		close(started)
		<-ctx.Done()
		return Result{}, ctx.Err()
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	<-started

	shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := svc.Shutdown(shutdownCtx); err != nil {
		t.Fatalf("unexpected shutdown error: %v", err)
	}

	got, _ := repo.FindByID(ctx, submitted.ID)
	if got.Status != StatusCancelled {
		t.Errorf("expected status %s, got %s", StatusCancelled, got.Status)
	}
}

func TestService_Shutdown_Timeout(t *testing.T) {
	svc := NewService(NewMemoryRepository(), nil)

	release := make(chan struct{})
	defer close(release)
	_, err := svc.Submit(context.Background(), "sess-1", KindAssemble, func(ctx context.Context, report func(int)) (Result, error) {
		<-release
		return Result{}, nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	if err := svc.Shutdown(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected deadline exceeded, got %v", err)
	}
}

func TestService_List(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	noop := func(ctx context.Context, report func(int)) (Result, error) { return Result{}, nil }
	for i := 0; i < 3; i++ {
		if _, err := svc.Submit(ctx, "sess-1", KindPreviews, noop); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if _, err := svc.Submit(ctx, "sess-2", KindAssemble, noop); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	svc.Wait()

	tasks, err := svc.List(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(tasks) != 4 {
		t.Errorf("expected 4 tasks, got %d", len(tasks))
	}

	tasks, err = svc.ListBySession(ctx, "sess-2")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(tasks) != 1 || tasks[0].Kind != KindAssemble {
		t.Errorf("expected the single sess-2 assemble task, got %+v", tasks)
	}
}

func TestService_Get_NotFound(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.Get(context.Background(), "missing")
	if !errors.Is(err, ErrTaskNotFound) {
		t.Errorf("expected ErrTaskNotFound, got %v", err)
	}
}

type failingRepository struct {
	*MemoryRepository
}

func (failingRepository) Save(context.Context, *Task) error {
	return errors.New("disk full")
}

func TestService_Submit_SaveError(t *testing.T) {
	svc := NewService(failingRepository{NewMemoryRepository()}, nil)

	called := false
	_, err := svc.Submit(context.Background(), "sess-1", KindAssemble, func(ctx context.Context, report func(int)) (Result, error) {
		called = true
		return Result{}, nil
	})
	if err == nil {
		t.Fatal("expected error when the task cannot be saved")
	}
	svc.Wait()
	if called {
		t.Error("work should not run when the task was not saved")
	}
}

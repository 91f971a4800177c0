package task

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
)

// Result is what a finished operation reports back to its task.
type Result struct {
	OutputPath string
	VideoURL   string
	Processed  int
	Skipped    []int
}

// Work runs one editor operation. report publishes progress as a percentage.
type Work func(ctx context.Context, report func(percent int)) (Result, error)

// Service runs editor operations in the background and tracks them as tasks.
type Service struct {
	repo   Repository
	logger *slog.Logger

	base   context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewService creates a new Service.
func NewService(repo Repository, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	base, cancel := context.WithCancel(context.Background())
	return &Service{
		repo:   repo,
		logger: logger,
		base:   base,
		cancel: cancel,
	}
}

// Submit persists a queued task and starts work in a new goroutine.
// The work outlives ctx; it is only cancelled by Shutdown.
func (s *Service) Submit(ctx context.Context, sessionID string, kind Kind, work Work) (*Task, error) {
	t := New(sessionID, kind)

	s.logger.Info("creating new task",
		slog.String("task_id", t.ID),
		slog.String("session_id", sessionID),
		slog.String("kind", string(kind)),
	)

	if err := s.repo.Save(ctx, t); err != nil {
		s.logger.Error("failed to save task",
			slog.String("task_id", t.ID),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("save task: %w", err)
	}

	s.wg.Add(1)
	go s.run(t, work)

	return t.Clone(), nil
}

// Get retrieves a task by ID.
func (s *Service) Get(ctx context.Context, id string) (*Task, error) {
	return s.repo.FindByID(ctx, id)
}

// List returns all tasks, newest first.
func (s *Service) List(ctx context.Context) ([]*Task, error) {
	return s.repo.List(ctx)
}

// ListBySession returns the tasks of one session, newest first.
func (s *Service) ListBySession(ctx context.Context, sessionID string) ([]*Task, error) {
	return s.repo.ListBySession(ctx, sessionID)
}

// Wait blocks until every submitted task has finished.
func (s *Service) Wait() {
	s.wg.Wait()
}

// Shutdown cancels running tasks and waits for them to stop or for ctx to expire.
func (s *Service) Shutdown(ctx context.Context) error {
	s.cancel()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("wait for tasks: %w", ctx.Err())
	}
}

func (s *Service) run(t *Task, work Work) {
	defer s.wg.Done()

	logger := s.logger.With(slog.String("task_id", t.ID), slog.String("kind", string(t.Kind)))
	saveCtx := context.WithoutCancel(s.base)

	if err := t.Start(); err != nil {
		logger.Error("failed to start task", slog.String("error", err.Error()))
		return
	}
	s.save(saveCtx, t, logger)

	last := -1
	report := func(percent int) {
		if percent == last {
			return
		}
		last = percent
		t.UpdateProgress(percent)
		s.save(saveCtx, t, logger)
	}

	res, err := s.execute(work, report)
	switch {
	case err != nil && errors.Is(err, context.Canceled) && s.base.Err() != nil:
		logger.Warn("task cancelled", slog.String("error", err.Error()))
		t.SetResult(res)
		_ = t.Cancel()
	case err != nil:
		logger.Error("task failed", slog.String("error", err.Error()))
		t.SetResult(res)
		_ = t.Fail(err.Error())
	default:
		logger.Info("task completed",
			slog.String("output", res.OutputPath),
			slog.Int("processed", res.Processed),
			slog.Int("skipped", len(res.Skipped)),
		)
		t.SetResult(res)
		_ = t.Complete()
	}
	s.save(saveCtx, t, logger)
}

// execute calls work, converting a panic into an error.
func (s *Service) execute(work Work, report func(int)) (res Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("panic in task",
				slog.Any("panic", r),
				slog.String("stack", string(debug.Stack())),
			)
			err = fmt.Errorf("task panicked: %v", r)
		}
	}()
	return work(s.base, report)
}

func (s *Service) save(ctx context.Context, t *Task, logger *slog.Logger) {
	if err := s.repo.Save(ctx, t); err != nil {
		logger.Error("failed to save task", slog.String("error", err.Error()))
	}
}

// Package bootstrap provides dependency initialization for the timelapse editor.
package bootstrap

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/maauso/timelapse-editor/internal/config"
	"github.com/maauso/timelapse-editor/internal/imageops"
	"github.com/maauso/timelapse-editor/internal/media"
	"github.com/maauso/timelapse-editor/internal/sequence"
	"github.com/maauso/timelapse-editor/internal/session"
	"github.com/maauso/timelapse-editor/internal/storage"
	"github.com/maauso/timelapse-editor/internal/task"
)

// Dependencies holds all initialized dependencies for the HTTP server.
type Dependencies struct {
	Storage  storage.Storage
	Sessions *session.Registry
	Tasks    *task.Service
	// Uploader is nil unless S3 is configured.
	Uploader storage.Storage
	// EditorOptions are applied to every editor the server opens.
	EditorOptions []sequence.Option

	closeRepo func() error
}

// NewDependencies creates and initializes all dependencies for the application.
func NewDependencies(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Dependencies, error) {
	// Initialize storage
	store, s3Enabled, err := initStorage(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}

	// Staging directories left behind by a crashed process
	if n, err := store.PurgeStale(ctx, cfg.StagingMaxAge); err != nil {
		logger.Warn("failed to purge stale staging directories", slog.String("error", err.Error()))
	} else if n > 0 {
		logger.Info("purged stale staging directories", slog.Int("count", n))
	}

	// Initialize task repository
	repo, closeRepo, err := initTaskRepository(cfg, logger)
	if err != nil {
		return nil, err
	}

	deps := &Dependencies{
		Storage:       store,
		Sessions:      session.NewRegistry(cfg.SessionTTL, cfg.SessionMax, session.WithLogger(logger)),
		Tasks:         task.NewService(repo, logger),
		EditorOptions: EditorOptions(cfg, logger, store),
		closeRepo:     closeRepo,
	}
	if s3Enabled {
		deps.Uploader = store
	}
	return deps, nil
}

// Close releases resources that outlive the server, such as the task database.
func (d *Dependencies) Close() error {
	if d.closeRepo == nil {
		return nil
	}
	return d.closeRepo()
}

// EditorOptions builds the editor wiring for the configured external tools.
func EditorOptions(cfg *config.Config, logger *slog.Logger, stager sequence.Stager) []sequence.Option {
	return []sequence.Option{
		sequence.WithLogger(logger),
		sequence.WithImageProcessor(imageops.NewProcessor(cfg.DcrawPath, nil)),
		sequence.WithEncoder(media.NewFFmpegEncoder(cfg.FFmpegPath, nil)),
		sequence.WithStager(stager),
	}
}

// initStorage creates the appropriate storage backend based on configuration.
func initStorage(ctx context.Context, cfg *config.Config, logger *slog.Logger) (storage.Storage, bool, error) {
	if cfg.S3Enabled() {
		s3Cfg := storage.S3Config{
			Bucket:          cfg.S3Bucket,
			Region:          cfg.S3Region,
			Endpoint:        cfg.S3Endpoint,
			AccessKeyID:     cfg.AWSAccessKeyID,
			SecretAccessKey: cfg.AWSSecretAccessKey,
		}
		s3Store, err := storage.NewS3Storage(ctx, cfg.TempDir, s3Cfg)
		if err != nil {
			return nil, false, fmt.Errorf("create S3 storage: %w", err)
		}
		logger.Info("S3 storage configured",
			slog.String("bucket", cfg.S3Bucket),
			slog.String("region", cfg.S3Region),
		)
		return s3Store, true, nil
	}

	localStore, err := storage.NewLocalStorage(cfg.TempDir)
	if err != nil {
		return nil, false, fmt.Errorf("create local storage: %w", err)
	}
	logger.Info("local storage configured",
		slog.String("temp_dir", localStore.TempDir()),
	)
	return localStore, false, nil
}

// initTaskRepository opens the SQLite task store, or keeps tasks in memory
// when no database path is configured.
func initTaskRepository(cfg *config.Config, logger *slog.Logger) (task.Repository, func() error, error) {
	if cfg.TaskDBPath == "" {
		logger.Info("task repository configured", slog.String("backend", "memory"))
		return task.NewMemoryRepository(), nil, nil
	}

	repo, err := task.NewSQLiteRepository(cfg.TaskDBPath, logger)
	if err != nil {
		return nil, nil, fmt.Errorf("open task database: %w", err)
	}
	logger.Info("task repository configured",
		slog.String("backend", "sqlite"),
		slog.String("path", cfg.TaskDBPath),
	)
	return repo, repo.Close, nil
}

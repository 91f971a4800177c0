package sequence

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"os"
	"path/filepath"
)

// PreviewQuality is the JPEG quality of generated thumbnails.
const PreviewQuality = 80

var (
	// ErrInvalidInterval is returned when a sampling interval is below 1.
	ErrInvalidInterval = errors.New("invalid interval: must be at least 1")
	// ErrInvalidPreviewSize is returned when a preview bound is not positive.
	ErrInvalidPreviewSize = errors.New("invalid preview size: must be positive")
)

// Skipped records a frame that could not be processed.
type Skipped struct {
	Index  int    `json:"index"`
	Path   string `json:"path"`
	Reason string `json:"reason"`
}

// PreviewResult lists the thumbnails written by GenerateSequencePreview in
// ascending source index order.
type PreviewResult struct {
	OutputDir string    `json:"output_dir"`
	Paths     []string  `json:"paths"`
	Indices   []int     `json:"indices"`
	Skipped   []Skipped `json:"skipped,omitempty"`
}

// RenderFramePreview loads frame index and returns a copy whose longest
// side is at most maxSize. Decode failures are logged and returned.
func (e *Editor) RenderFramePreview(ctx context.Context, index, maxSize int) (image.Image, error) {
	path, ok := e.index.FramePath(index)
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrFrameNotFound, index)
	}

	img, err := e.images.Load(ctx, path)
	if err != nil {
		e.logger.Error("failed to load frame",
			slog.Int("index", index),
			slog.String("path", path),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("load frame %d: %w", index, err)
	}

	preview, err := e.images.Preview(img, maxSize)
	if err != nil {
		e.logger.Error("failed to render frame preview",
			slog.Int("index", index),
			slog.String("path", path),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("render preview of frame %d: %w", index, err)
	}
	return preview, nil
}

// GenerateSequencePreview writes a thumbnail for every sampleInterval-th
// frame to outputDir as preview_<index>.jpg. Frames that fail to render or
// save are reported in Skipped; the run continues past them.
func (e *Editor) GenerateSequencePreview(ctx context.Context, outputDir string, sampleInterval, maxSize int) (*PreviewResult, error) {
	if sampleInterval < 1 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidInterval, sampleInterval)
	}
	if maxSize <= 0 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidPreviewSize, maxSize)
	}

	if err := os.MkdirAll(outputDir, 0750); err != nil {
		return nil, fmt.Errorf("create preview directory: %w", err)
	}
	e.previewPath = outputDir

	result := &PreviewResult{OutputDir: outputDir, Paths: []string{}, Indices: []int{}}
	n := e.index.Len()
	if n == 0 {
		e.logger.Warn("no frames to preview")
		return result, nil
	}

	width := IndexWidth(n)
	total := (n-1)/sampleInterval + 1
	done := 0
	for i := 0; i < n; i += sampleInterval {
		if err := ctx.Err(); err != nil {
			return result, fmt.Errorf("generate previews: %w", err)
		}

		out := filepath.Join(outputDir, frameFileName("preview", i, width, ".jpg"))
		if err := e.writePreview(ctx, i, maxSize, out); err != nil {
			src, _ := e.index.FramePath(i)
			result.Skipped = append(result.Skipped, Skipped{Index: i, Path: src, Reason: err.Error()})
		} else {
			result.Paths = append(result.Paths, out)
			result.Indices = append(result.Indices, i)
		}

		done++
		e.reportProgress(done, total)
	}

	e.logger.Info("generated sequence previews",
		slog.String("output_dir", outputDir),
		slog.Int("written", len(result.Paths)),
		slog.Int("skipped", len(result.Skipped)),
	)
	return result, nil
}

func (e *Editor) writePreview(ctx context.Context, index, maxSize int, out string) error {
	img, err := e.RenderFramePreview(ctx, index, maxSize)
	if err != nil {
		return err
	}
	if err := e.images.Save(img, out, PreviewQuality); err != nil {
		e.logger.Error("failed to save preview",
			slog.Int("index", index),
			slog.String("path", out),
			slog.String("error", err.Error()),
		)
		return err
	}
	return nil
}

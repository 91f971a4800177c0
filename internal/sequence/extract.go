package sequence

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/maauso/timelapse-editor/internal/imageops"
)

// ExtractFrame writes frame index to outputPath as a standalone file and
// returns the written path. An empty outputPath derives
// <sequence>_extracted/frame_<index>.<ext> next to the sequence directory.
// JPEG and PNG frames are byte-copied; other formats are re-encoded as JPEG.
func (e *Editor) ExtractFrame(ctx context.Context, index int, outputPath string) (string, error) {
	src, ok := e.index.FramePath(index)
	if !ok {
		return "", fmt.Errorf("%w: %d", ErrFrameNotFound, index)
	}

	copyable := imageops.IsCopyable(src)
	if outputPath == "" {
		ext := ".jpg"
		if copyable {
			ext = strings.ToLower(filepath.Ext(src))
		}
		dir := filepath.Join(filepath.Dir(e.index.Root()), e.index.Name()+"_extracted")
		outputPath = filepath.Join(dir, frameFileName("frame", index, IndexWidth(e.index.Len()), ext))
	}

	if err := os.MkdirAll(filepath.Dir(outputPath), 0750); err != nil {
		e.logger.Error("failed to create extract directory",
			slog.String("path", outputPath),
			slog.String("error", err.Error()),
		)
		return "", fmt.Errorf("create output directory: %w", err)
	}

	if copyable {
		if err := copyFile(src, outputPath); err != nil {
			e.logger.Error("failed to copy frame",
				slog.Int("index", index),
				slog.String("path", src),
				slog.String("error", err.Error()),
			)
			return "", fmt.Errorf("extract frame %d: %w", index, err)
		}
	} else {
		img, err := e.images.Load(ctx, src)
		if err == nil {
			err = e.images.Save(img, outputPath, imageops.DefaultJPEGQuality)
		}
		if err != nil {
			e.logger.Error("failed to convert frame",
				slog.Int("index", index),
				slog.String("path", src),
				slog.String("error", err.Error()),
			)
			return "", fmt.Errorf("extract frame %d: %w", index, err)
		}
	}

	e.logger.Info("extracted frame",
		slog.Int("index", index),
		slog.String("output", outputPath),
	)
	return outputPath, nil
}

// copyFile copies src to dst byte for byte, keeping the permission bits and
// modification time of src.
func copyFile(src, dst string) error {
	in, err := os.Open(src) // #nosec G304 - path comes from the frame index
	if err != nil {
		return fmt.Errorf("open source: %w", err)
	}
	defer func() { _ = in.Close() }()

	info, err := in.Stat()
	if err != nil {
		return fmt.Errorf("stat source: %w", err)
	}

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, info.Mode().Perm()) // #nosec G304
	if err != nil {
		return fmt.Errorf("create destination: %w", err)
	}
	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		return fmt.Errorf("copy data: %w", err)
	}
	if err := out.Close(); err != nil {
		return fmt.Errorf("close destination: %w", err)
	}

	if err := os.Chtimes(dst, info.ModTime(), info.ModTime()); err != nil {
		return fmt.Errorf("preserve modification time: %w", err)
	}
	return nil
}

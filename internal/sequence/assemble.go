package sequence

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"runtime/debug"
	"sort"
	"strconv"
	"strings"

	"github.com/maauso/timelapse-editor/internal/geom"
	"github.com/maauso/timelapse-editor/internal/imageops"
	"github.com/maauso/timelapse-editor/internal/media"
)

var (
	// ErrNoStaging is returned when frames must be staged but no Stager is configured.
	ErrNoStaging = errors.New("no staging storage configured")
	// ErrAssemblyPanic wraps a panic recovered during assembly.
	ErrAssemblyPanic = errors.New("video assembly panicked")
)

var editedFrameName = regexp.MustCompile(`^frame_(\d+)\.jpg$`)

// AssembleRequest describes one video assembly.
type AssembleRequest struct {
	OutputPath string
	FPS        int
	// Format is the container extension appended when OutputPath has none.
	Format    string
	Quality   media.Quality
	UseEdited bool
	Resize    *geom.Size
	Crop      *geom.Rect
}

// AssembleVideo encodes the sequence into a video and returns the output path.
//
// With UseEdited and an existing edited-frames directory whose frames are
// numbered contiguously from 0, that directory is the encoder input. Any
// other source is first staged into a temporary directory under the
// canonical frame_<index> pattern; only that staging directory is removed
// afterwards.
func (e *Editor) AssembleVideo(ctx context.Context, req AssembleRequest) (output string, err error) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("panic during video assembly",
				slog.Any("panic", r),
				slog.String("stack", string(debug.Stack())),
			)
			output, err = "", fmt.Errorf("%w: %v", ErrAssemblyPanic, r)
		}
	}()

	if req.FPS <= 0 {
		return "", fmt.Errorf("%w: got %d", media.ErrInvalidFrameRate, req.FPS)
	}
	output = req.OutputPath
	if output == "" {
		return "", media.ErrOutputRequired
	}
	if filepath.Ext(output) == "" && req.Format != "" {
		output += "." + strings.TrimPrefix(req.Format, ".")
	}
	if err := os.MkdirAll(filepath.Dir(output), 0750); err != nil {
		return "", fmt.Errorf("create output directory: %w", err)
	}

	pattern, staging, err := e.resolveSource(ctx, req.UseEdited)
	if err != nil {
		return "", err
	}
	if staging != "" {
		defer func() {
			if rmErr := e.stager.RemoveStagingDir(context.WithoutCancel(ctx), staging); rmErr != nil {
				e.logger.Warn("failed to remove staging directory",
					slog.String("path", staging),
					slog.String("error", rmErr.Error()),
				)
			}
		}()
	}

	encReq := media.EncodeRequest{
		Pattern: pattern,
		FPS:     req.FPS,
		Quality: req.Quality,
		Crop:    req.Crop,
		Resize:  req.Resize,
		Output:  output,
	}
	e.logger.Info("assembling video",
		slog.String("pattern", pattern),
		slog.String("output", output),
		slog.Int("fps", req.FPS),
		slog.String("preset", req.Quality.Preset().Name),
	)

	if err := e.encoder.EncodeSequence(ctx, encReq); err != nil {
		attrs := []any{slog.String("output", output), slog.String("error", err.Error())}
		var ffErr *media.FFmpegError
		if errors.As(err, &ffErr) {
			attrs = append(attrs, slog.Int("exit_code", ffErr.ExitCode), slog.String("stderr", ffErr.Stderr))
		}
		e.logger.Error("video encoding failed", attrs...)
		return "", fmt.Errorf("assemble video: %w", err)
	}

	e.logger.Info("video assembled", slog.String("output", output))
	return output, nil
}

// resolveSource returns the encoder input pattern and, when frames were
// staged, the staging directory to remove afterwards.
func (e *Editor) resolveSource(ctx context.Context, useEdited bool) (pattern, staging string, err error) {
	if useEdited {
		dir := e.editedFramesPath
		if dir != "" && isDir(dir) {
			names, width, contiguous := scanEditedFrames(dir)
			if contiguous {
				return filepath.Join(dir, framePattern("frame", width, ".jpg")), "", nil
			}
			if len(names) > 0 {
				e.logger.Info("edited frames are not contiguous, staging them", slog.String("path", dir))
				sources := make([]string, len(names))
				for i, name := range names {
					sources[i] = filepath.Join(dir, name)
				}
				return e.stageFrames(ctx, sources)
			}
		}
		e.logger.Info("no edited frames available, using original frames")
	}

	if e.index.Len() == 0 {
		return "", "", ErrEmptySequence
	}
	return e.stageFrames(ctx, e.index.Frames())
}

// stageFrames copies or converts sources into a new staging directory as
// frame_<n> files numbered from 0 in the given order.
func (e *Editor) stageFrames(ctx context.Context, sources []string) (pattern, staging string, err error) {
	if e.stager == nil {
		return "", "", ErrNoStaging
	}
	staging, err = e.stager.CreateStagingDir(ctx, e.index.Name())
	if err != nil {
		return "", "", fmt.Errorf("create staging directory: %w", err)
	}

	ext := stagingExt(sources)
	width := IndexWidth(len(sources))
	for i, src := range sources {
		if err := ctx.Err(); err != nil {
			e.discardStaging(ctx, staging)
			return "", "", fmt.Errorf("stage frames: %w", err)
		}

		dst := filepath.Join(staging, frameFileName("frame", i, width, ext))
		if err := e.stageFrame(ctx, src, dst, ext); err != nil {
			e.logger.Error("failed to stage frame",
				slog.Int("index", i),
				slog.String("path", src),
				slog.String("error", err.Error()),
				slog.String("stack", string(debug.Stack())),
			)
			e.discardStaging(ctx, staging)
			return "", "", fmt.Errorf("stage frame %d: %w", i, err)
		}
	}

	e.logger.Debug("staged frames",
		slog.String("path", staging),
		slog.Int("count", len(sources)),
	)
	return filepath.Join(staging, framePattern("frame", width, ext)), staging, nil
}

func (e *Editor) stageFrame(ctx context.Context, src, dst, ext string) error {
	if sameFormat(src, ext) {
		return copyFile(src, dst)
	}
	img, err := e.images.Load(ctx, src)
	if err != nil {
		return err
	}
	return e.images.Save(img, dst, imageops.DefaultJPEGQuality)
}

func (e *Editor) discardStaging(ctx context.Context, dir string) {
	if err := e.stager.RemoveStagingDir(context.WithoutCancel(ctx), dir); err != nil {
		e.logger.Warn("failed to remove staging directory",
			slog.String("path", dir),
			slog.String("error", err.Error()),
		)
	}
}

// stagingExt is .png when every source is PNG and .jpg otherwise, so the
// encoder sees one image format.
func stagingExt(sources []string) string {
	if len(sources) == 0 {
		return ".jpg"
	}
	for _, s := range sources {
		if strings.ToLower(filepath.Ext(s)) != ".png" {
			return ".jpg"
		}
	}
	return ".png"
}

func sameFormat(src, ext string) bool {
	switch strings.ToLower(filepath.Ext(src)) {
	case ".jpg", ".jpeg":
		return ext == ".jpg"
	case ".png":
		return ext == ".png"
	default:
		return false
	}
}

// scanEditedFrames lists frame_<n>.jpg files in dir in name order. contiguous
// is true when they share one index width and are numbered 0..len-1.
func scanEditedFrames(dir string) (names []string, width int, contiguous bool) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, 0, false
	}

	type numbered struct {
		name  string
		index int
	}
	var frames []numbered
	contiguous = true
	for _, entry := range entries {
		if !entry.Type().IsRegular() {
			continue
		}
		m := editedFrameName.FindStringSubmatch(entry.Name())
		if m == nil {
			continue
		}
		idx, err := strconv.Atoi(m[1])
		if err != nil {
			continue
		}
		if width == 0 {
			width = len(m[1])
		} else if len(m[1]) != width {
			contiguous = false
		}
		frames = append(frames, numbered{name: entry.Name(), index: idx})
	}
	if len(frames) == 0 {
		return nil, 0, false
	}

	sort.Slice(frames, func(i, j int) bool { return frames[i].index < frames[j].index })
	names = make([]string, len(frames))
	for i, f := range frames {
		names[i] = f.name
		if f.index != i {
			contiguous = false
		}
	}
	return names, width, contiguous
}

func isDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}

package sequence

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/maauso/timelapse-editor/internal/geom"
	"github.com/maauso/timelapse-editor/internal/imageops"
)

// ErrInvalidRange is returned for batch ranges with a negative start, a start
// beyond the end, or a step below 1.
var ErrInvalidRange = errors.New("invalid frame range")

// EditSpec is one parametrized edit. Nil fields are not applied. Non-nil
// fields are applied in the order crop, brightness, contrast, saturation,
// rotate, resize, filter.
type EditSpec struct {
	Crop       *geom.Rect `json:"crop,omitempty"`
	Brightness *float64   `json:"brightness,omitempty"`
	Contrast   *float64   `json:"contrast,omitempty"`
	Saturation *float64   `json:"saturation,omitempty"`
	Rotate     *float64   `json:"rotate,omitempty"`
	Resize     *geom.Size `json:"resize,omitempty"`
	Filter     *string    `json:"filter,omitempty"`
}

// Validate checks geometry and the filter name without touching any frame.
func (s EditSpec) Validate() error {
	if s.Crop != nil {
		if err := s.Crop.Validate(); err != nil {
			return fmt.Errorf("crop: %w", err)
		}
	}
	if s.Resize != nil {
		if err := s.Resize.Validate(); err != nil {
			return fmt.Errorf("resize: %w", err)
		}
	}
	if s.Filter != nil && !imageops.IsKnownFilter(*s.Filter) {
		return fmt.Errorf("%w: %q", imageops.ErrUnknownFilter, *s.Filter)
	}
	return nil
}

// IsEmpty reports whether no transform is set.
func (s EditSpec) IsEmpty() bool {
	return s == EditSpec{}
}

// BatchOptions selects the frames a batch edit touches.
type BatchOptions struct {
	// OutputDir defaults to <sequence>_edited next to the sequence directory.
	OutputDir string
	Start     int
	// End is inclusive. Nil, or a value past the last frame, means the last frame.
	End *int
	// Interval defaults to 1 when zero.
	Interval int
}

// BatchResult is the itemized outcome of a batch edit.
type BatchResult struct {
	OutputDir string    `json:"output_dir"`
	Processed []int     `json:"processed"`
	Paths     []string  `json:"paths"`
	Skipped   []Skipped `json:"skipped,omitempty"`
}

// ProcessedCount returns the number of frames written.
func (r *BatchResult) ProcessedCount() int { return len(r.Processed) }

// SkippedIndices returns the indices of frames that failed to load or transform.
func (r *BatchResult) SkippedIndices() []int {
	out := make([]int, len(r.Skipped))
	for i, s := range r.Skipped {
		out[i] = s.Index
	}
	return out
}

// BatchEdit applies spec to every Interval-th frame in [Start, End] and writes
// frame_<index>.jpg files to the output directory in ascending index order.
//
// A frame that fails to load or transform is skipped and reported. A write
// failure aborts the run, returning the partial result with the error; the
// output directory then holds every frame written before the failure and the
// run can be repeated with the same arguments.
func (e *Editor) BatchEdit(ctx context.Context, spec EditSpec, opts BatchOptions) (*BatchResult, error) {
	n := e.index.Len()
	if n == 0 {
		e.logger.Warn("batch edit on empty sequence")
		return nil, ErrEmptySequence
	}
	if err := spec.Validate(); err != nil {
		return nil, fmt.Errorf("validate edit: %w", err)
	}

	start, end, interval, err := resolveRange(opts, n)
	if err != nil {
		return nil, err
	}

	outputDir := opts.OutputDir
	if outputDir == "" {
		outputDir = filepath.Join(filepath.Dir(e.index.Root()), e.index.Name()+"_edited")
	}
	if err := os.MkdirAll(outputDir, 0750); err != nil {
		return nil, fmt.Errorf("create edited frames directory: %w", err)
	}

	e.logger.Info("starting batch edit",
		slog.String("output_dir", outputDir),
		slog.Int("start", start),
		slog.Int("end", end),
		slog.Int("interval", interval),
	)

	result := &BatchResult{OutputDir: outputDir, Processed: []int{}, Paths: []string{}}
	width := IndexWidth(n)
	total := (end-start)/interval + 1
	done := 0
	for i := start; i <= end; i += interval {
		if err := ctx.Err(); err != nil {
			return result, fmt.Errorf("batch edit: %w", err)
		}

		src, _ := e.index.FramePath(i)
		img, err := e.editFrame(ctx, src, spec)
		if err != nil {
			e.logger.Warn("skipping frame",
				slog.Int("index", i),
				slog.String("path", src),
				slog.String("error", err.Error()),
			)
			result.Skipped = append(result.Skipped, Skipped{Index: i, Path: src, Reason: err.Error()})
		} else {
			out := filepath.Join(outputDir, frameFileName("frame", i, width, ".jpg"))
			if err := e.images.Save(img, out, imageops.DefaultJPEGQuality); err != nil {
				e.logger.Error("failed to write edited frame",
					slog.Int("index", i),
					slog.String("path", out),
					slog.String("error", err.Error()),
				)
				return result, fmt.Errorf("write edited frame %d: %w", i, err)
			}
			result.Processed = append(result.Processed, i)
			result.Paths = append(result.Paths, out)
		}

		done++
		e.reportProgress(done, total)
	}

	e.editedFramesPath = outputDir
	e.logger.Info("batch edit complete",
		slog.String("output_dir", outputDir),
		slog.Int("processed", len(result.Processed)),
		slog.Int("skipped", len(result.Skipped)),
	)
	return result, nil
}

func resolveRange(opts BatchOptions, n int) (start, end, interval int, err error) {
	start = opts.Start
	end = n - 1
	if opts.End != nil && *opts.End < end {
		end = *opts.End
	}
	interval = opts.Interval
	if interval == 0 {
		interval = 1
	}

	switch {
	case interval < 1:
		return 0, 0, 0, fmt.Errorf("%w: interval %d", ErrInvalidRange, interval)
	case start < 0:
		return 0, 0, 0, fmt.Errorf("%w: start %d", ErrInvalidRange, start)
	case start > end:
		return 0, 0, 0, fmt.Errorf("%w: start %d after end %d", ErrInvalidRange, start, end)
	}
	return start, end, interval, nil
}

// editFrame loads src and applies spec in the fixed transform order.
func (e *Editor) editFrame(ctx context.Context, src string, spec EditSpec) (image.Image, error) {
	img, err := e.images.Load(ctx, src)
	if err != nil {
		return nil, err
	}

	if spec.Crop != nil {
		if img, err = e.images.Crop(img, *spec.Crop); err != nil {
			return nil, err
		}
	}
	if spec.Brightness != nil {
		img = e.images.Brightness(img, *spec.Brightness)
	}
	if spec.Contrast != nil {
		img = e.images.Contrast(img, *spec.Contrast)
	}
	if spec.Saturation != nil {
		img = e.images.Saturation(img, *spec.Saturation)
	}
	if spec.Rotate != nil {
		img = e.images.Rotate(img, *spec.Rotate)
	}
	if spec.Resize != nil {
		if img, err = e.images.Resize(img, *spec.Resize); err != nil {
			return nil, err
		}
	}
	if spec.Filter != nil {
		if img, err = e.images.Filter(img, *spec.Filter); err != nil {
			return nil, err
		}
	}
	return img, nil
}

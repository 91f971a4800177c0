package media

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/maauso/timelapse-editor/internal/geom"
)

// Static errors for encoder requests.
var (
	// ErrInvalidFrameRate is returned when the frame rate is not positive.
	ErrInvalidFrameRate = errors.New("invalid frame rate: must be positive")
	// ErrPatternRequired is returned when no input pattern is provided.
	ErrPatternRequired = errors.New("input frame pattern is required")
	// ErrOutputRequired is returned when no output path is provided.
	ErrOutputRequired = errors.New("output path is required")
)

const (
	// videoCodec is the H.264 encoder used for every assembly.
	videoCodec = "libx264"
	// pixelFormat forces 4:2:0 chroma subsampling for player compatibility.
	pixelFormat = "yuv420p"
)

// EncodeRequest describes one image-sequence-to-video encode.
type EncodeRequest struct {
	// Pattern is the printf style input pattern, e.g. /tmp/x/frame_%04d.jpg.
	Pattern string
	// FPS is the input frame rate.
	FPS int
	// Quality selects the preset/CRF pair.
	Quality Quality
	// Crop is an optional crop rectangle applied before Resize.
	Crop *geom.Rect
	// Resize is an optional output size.
	Resize *geom.Size
	// Output is the destination video path.
	Output string
}

// Validate checks the request fields that ffmpeg cannot recover from.
func (r EncodeRequest) Validate() error {
	if r.Pattern == "" {
		return ErrPatternRequired
	}
	if r.Output == "" {
		return ErrOutputRequired
	}
	if r.FPS <= 0 {
		return fmt.Errorf("%w: got %d", ErrInvalidFrameRate, r.FPS)
	}
	if r.Crop != nil {
		if err := r.Crop.Validate(); err != nil {
			return err
		}
	}
	if r.Resize != nil {
		if err := r.Resize.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// Compile-time check that FFmpegEncoder implements Encoder.
var _ Encoder = (*FFmpegEncoder)(nil)

// FFmpegEncoder implements Encoder using the ffmpeg CLI.
type FFmpegEncoder struct {
	// ffmpegPath is the path to the ffmpeg binary. Defaults to "ffmpeg".
	ffmpegPath string
	runner     Runner
}

// NewFFmpegEncoder creates a new FFmpegEncoder.
// If ffmpegPath is empty, it defaults to "ffmpeg" (found via PATH).
// If runner is nil, commands are executed with ExecRunner.
func NewFFmpegEncoder(ffmpegPath string, runner Runner) *FFmpegEncoder {
	if ffmpegPath == "" {
		ffmpegPath = "ffmpeg"
	}
	if runner == nil {
		runner = ExecRunner{}
	}
	return &FFmpegEncoder{ffmpegPath: ffmpegPath, runner: runner}
}

// BuildArgs returns the ffmpeg argument list for req.
func (e *FFmpegEncoder) BuildArgs(req EncodeRequest) []string {
	preset := req.Quality.Preset()

	args := []string{
		"-y", // Overwrite output file without asking
		"-framerate", strconv.Itoa(req.FPS),
		"-i", req.Pattern,
		"-c:v", videoCodec,
		"-preset", preset.Name,
		"-crf", strconv.Itoa(preset.CRF),
		"-pix_fmt", pixelFormat,
	}

	if filter := BuildFilter(req.Crop, req.Resize); filter != "" {
		args = append(args, "-vf", filter)
	}

	return append(args, req.Output)
}

// EncodeSequence runs ffmpeg for req and blocks until it exits.
func (e *FFmpegEncoder) EncodeSequence(ctx context.Context, req EncodeRequest) error {
	if err := req.Validate(); err != nil {
		return err
	}

	args := e.BuildArgs(req)
	res, err := e.runner.Run(ctx, e.ffmpegPath, args)
	if err != nil {
		return err
	}
	if res.ExitCode != 0 {
		return &FFmpegError{
			Args:     args,
			ExitCode: res.ExitCode,
			Stderr:   res.Stderr,
			Err:      fmt.Errorf("exit status %d", res.ExitCode),
		}
	}
	return nil
}

// FFmpegError represents an error from running ffmpeg, including the stderr output.
type FFmpegError struct {
	Args     []string
	ExitCode int
	Stderr   string
	Err      error
}

func (e *FFmpegError) Error() string {
	return fmt.Sprintf("ffmpeg error: %v\nargs: %v\nstderr: %s", e.Err, e.Args, e.Stderr)
}

func (e *FFmpegError) Unwrap() error {
	return e.Err
}

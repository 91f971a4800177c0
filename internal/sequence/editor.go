package sequence

import (
	"context"
	"image"
	"log/slog"

	"github.com/maauso/timelapse-editor/internal/geom"
	"github.com/maauso/timelapse-editor/internal/imageops"
	"github.com/maauso/timelapse-editor/internal/media"
	"github.com/maauso/timelapse-editor/internal/storage"
)

// ImageProcessor is the single-image transform capability the editor drives.
// imageops.Processor is the production implementation.
type ImageProcessor interface {
	Load(ctx context.Context, path string) (image.Image, error)
	Preview(img image.Image, maxSize int) (image.Image, error)
	Crop(img image.Image, r geom.Rect) (image.Image, error)
	Brightness(img image.Image, factor float64) image.Image
	Contrast(img image.Image, factor float64) image.Image
	Saturation(img image.Image, factor float64) image.Image
	Rotate(img image.Image, degrees float64) image.Image
	Resize(img image.Image, s geom.Size) (image.Image, error)
	Filter(img image.Image, name string) (image.Image, error)
	Save(img image.Image, path string, quality int) error
}

// Stager creates and removes the temporary directories used to normalize
// frames before encoding.
type Stager interface {
	CreateStagingDir(ctx context.Context, prefix string) (string, error)
	RemoveStagingDir(ctx context.Context, dir string) error
}

// ProgressFunc is called after each frame of a batch edit or preview run.
// done counts frames handled so far, including skipped ones.
type ProgressFunc func(done, total int)

// Editor operates on one sequence directory. It is not safe for concurrent
// use; callers serialize operations per sequence.
type Editor struct {
	index    *Index
	images   ImageProcessor
	encoder  media.Encoder
	stager   Stager
	logger   *slog.Logger
	progress ProgressFunc

	previewPath      string
	editedFramesPath string
}

// Option configures an Editor.
type Option func(*Editor)

// WithLogger sets the logger for the editor.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Editor) {
		e.logger = logger
	}
}

// WithImageProcessor sets the single-image transform capability.
func WithImageProcessor(p ImageProcessor) Option {
	return func(e *Editor) {
		e.images = p
	}
}

// WithEncoder sets the video encoder used by AssembleVideo.
func WithEncoder(enc media.Encoder) Option {
	return func(e *Editor) {
		e.encoder = enc
	}
}

// WithStager sets where staging directories are created.
func WithStager(s Stager) Option {
	return func(e *Editor) {
		e.stager = s
	}
}

// WithProgress registers a per-frame progress callback.
func WithProgress(fn ProgressFunc) Option {
	return func(e *Editor) {
		e.progress = fn
	}
}

// WithEditedFramesPath points the editor at the output of an earlier batch
// edit, so AssembleVideo can encode it when UseEdited is set.
func WithEditedFramesPath(dir string) Option {
	return func(e *Editor) {
		e.editedFramesPath = dir
	}
}

// NewEditor creates an editor for the sequence at path and scans it.
// A missing directory yields an editor with zero frames.
func NewEditor(path string, opts ...Option) *Editor {
	e := configure(opts)
	e.index = NewIndex(path, e.logger.With(slog.String("sequence", path)))
	return e
}

// configure applies opts once and fills in defaults. The index is left unset.
func configure(opts []Option) *Editor {
	e := &Editor{}
	for _, opt := range opts {
		opt(e)
	}

	if e.logger == nil {
		e.logger = slog.Default()
	}
	if e.images == nil {
		e.images = imageops.NewProcessor("", nil)
	}
	if e.encoder == nil {
		e.encoder = media.NewFFmpegEncoder("", nil)
	}
	if e.stager == nil {
		st, err := storage.NewLocalStorage("")
		if err != nil {
			e.logger.Warn("no staging storage available", slog.String("error", err.Error()))
		} else {
			e.stager = st
		}
	}
	return e
}

// Index returns the frame index.
func (e *Editor) Index() *Index { return e.index }

// Path returns the sequence directory.
func (e *Editor) Path() string { return e.index.Root() }

// FrameCount returns the number of frames in the sequence.
func (e *Editor) FrameCount() int { return e.index.Len() }

// Metadata returns the sequence metadata.
func (e *Editor) Metadata() Metadata { return e.index.Metadata() }

// FramePath returns the path of frame i, or ok == false when out of range.
func (e *Editor) FramePath(i int) (string, bool) { return e.index.FramePath(i) }

// PreviewPath returns the last directory written by GenerateSequencePreview.
func (e *Editor) PreviewPath() string { return e.previewPath }

// EditedFramesPath returns the directory written by the last BatchEdit.
func (e *Editor) EditedFramesPath() string { return e.editedFramesPath }

// SetProgress replaces the progress callback. It must not be called while an
// operation on the editor is running.
func (e *Editor) SetProgress(fn ProgressFunc) { e.progress = fn }

func (e *Editor) reportProgress(done, total int) {
	if e.progress != nil {
		e.progress(done, total)
	}
}

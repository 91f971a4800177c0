package sequence

import (
	"context"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/maauso/timelapse-editor/internal/geom"
	"github.com/maauso/timelapse-editor/internal/media"
)

func TestAssembleVideo_StagesOriginalFrames(t *testing.T) {
	ctx := context.Background()
	dir := makeSequence(t, t.TempDir(), "seq_20240101_120000", 12)
	e, enc, st := newTestEditor(t, dir)
	output := filepath.Join(t.TempDir(), "videos", "seq.mp4")

	var staged []string
	var stagingDir string
	enc.On("EncodeSequence", ctx, mock.AnythingOfType("media.EncodeRequest")).
		Run(func(args mock.Arguments) {
			req := args.Get(1).(media.EncodeRequest)
			stagingDir = filepath.Dir(req.Pattern)
			staged = listNames(t, stagingDir)
		}).
		Return(nil).Once()

	got, err := e.AssembleVideo(ctx, AssembleRequest{
		OutputPath: output,
		FPS:        24,
		Format:     "mp4",
		Quality:    media.QualityHigh,
		Crop:       &geom.Rect{Left: 10, Top: 10, Right: 110, Bottom: 110},
		Resize:     &geom.Size{Width: 640, Height: 480},
	})
	require.NoError(t, err)
	assert.Equal(t, output, got)
	enc.AssertExpectations(t)

	req := enc.Calls[0].Arguments.Get(1).(media.EncodeRequest)
	assert.Equal(t, 24, req.FPS)
	assert.Equal(t, media.QualityHigh, req.Quality)
	assert.Equal(t, output, req.Output)
	assert.Equal(t, "frame_%04d.jpg", filepath.Base(req.Pattern))
	assert.Equal(t, "crop=100:100:10:10,scale=640:480", media.BuildFilter(req.Crop, req.Resize))

	assert.Equal(t, st.TempDir(), filepath.Dir(stagingDir))
	require.Len(t, staged, 12)
	assert.True(t, sort.StringsAreSorted(staged))
	assert.Equal(t, "frame_0000.jpg", staged[0])
	assert.Equal(t, "frame_0011.jpg", staged[11])

	assert.NoDirExists(t, stagingDir)
	assert.DirExists(t, filepath.Dir(output))
}

func TestAssembleVideo_StagedOrderMatchesCapture(t *testing.T) {
	ctx := context.Background()
	dir := makeSequence(t, t.TempDir(), "seq", 5)
	e, enc, _ := newTestEditor(t, dir)

	var stagedBytes [][]byte
	enc.On("EncodeSequence", ctx, mock.Anything).
		Run(func(args mock.Arguments) {
			stagingDir := filepath.Dir(args.Get(1).(media.EncodeRequest).Pattern)
			for _, name := range listNames(t, stagingDir) {
				data, err := os.ReadFile(filepath.Join(stagingDir, name))
				require.NoError(t, err)
				stagedBytes = append(stagedBytes, data)
			}
		}).
		Return(nil).Once()

	_, err := e.AssembleVideo(ctx, AssembleRequest{OutputPath: filepath.Join(t.TempDir(), "v.mp4"), FPS: 10})
	require.NoError(t, err)

	for i, frame := range e.Index().Frames() {
		want, err := os.ReadFile(frame)
		require.NoError(t, err)
		assert.Equal(t, want, stagedBytes[i], "frame %d", i)
	}
}

func TestAssembleVideo_FrameSources(t *testing.T) {
	ctx := context.Background()

	t.Run("contiguous edited frames are used directly", func(t *testing.T) {
		dir := makeSequence(t, t.TempDir(), "seq", 6)
		e, enc, _ := newTestEditor(t, dir)
		_, err := e.BatchEdit(ctx, EditSpec{Brightness: ptr(1.2)}, BatchOptions{})
		require.NoError(t, err)
		edited := e.EditedFramesPath()

		enc.On("EncodeSequence", ctx, mock.Anything).Return(nil).Once()

		_, err = e.AssembleVideo(ctx, AssembleRequest{OutputPath: filepath.Join(t.TempDir(), "v.mp4"), FPS: 24, UseEdited: true})
		require.NoError(t, err)

		req := enc.Calls[0].Arguments.Get(1).(media.EncodeRequest)
		assert.Equal(t, filepath.Join(edited, "frame_%04d.jpg"), req.Pattern)
		assert.Len(t, listNames(t, edited), 6)
	})

	t.Run("edited directory given as an option", func(t *testing.T) {
		dir := makeSequence(t, t.TempDir(), "seq", 4)
		first, _, _ := newTestEditor(t, dir)
		_, err := first.BatchEdit(ctx, EditSpec{Contrast: ptr(1.1)}, BatchOptions{})
		require.NoError(t, err)
		edited := first.EditedFramesPath()

		e, enc, _ := newTestEditor(t, dir, WithEditedFramesPath(edited))
		assert.Equal(t, edited, e.EditedFramesPath())
		enc.On("EncodeSequence", ctx, mock.Anything).Return(nil).Once()

		_, err = e.AssembleVideo(ctx, AssembleRequest{OutputPath: filepath.Join(t.TempDir(), "v.mp4"), FPS: 24, UseEdited: true})
		require.NoError(t, err)

		req := enc.Calls[0].Arguments.Get(1).(media.EncodeRequest)
		assert.Equal(t, filepath.Join(edited, "frame_%04d.jpg"), req.Pattern)
	})

	t.Run("sparse edited frames are staged and renumbered", func(t *testing.T) {
		dir := makeSequence(t, t.TempDir(), "seq", 10)
		e, enc, _ := newTestEditor(t, dir)
		_, err := e.BatchEdit(ctx, EditSpec{Brightness: ptr(1.2)}, BatchOptions{Start: 1, Interval: 3})
		require.NoError(t, err)
		edited := e.EditedFramesPath()

		var staged []string
		enc.On("EncodeSequence", ctx, mock.Anything).
			Run(func(args mock.Arguments) {
				staged = listNames(t, filepath.Dir(args.Get(1).(media.EncodeRequest).Pattern))
			}).
			Return(nil).Once()

		_, err = e.AssembleVideo(ctx, AssembleRequest{OutputPath: filepath.Join(t.TempDir(), "v.mp4"), FPS: 24, UseEdited: true})
		require.NoError(t, err)

		req := enc.Calls[0].Arguments.Get(1).(media.EncodeRequest)
		assert.NotEqual(t, edited, filepath.Dir(req.Pattern))
		assert.Equal(t, []string{"frame_0000.jpg", "frame_0001.jpg", "frame_0002.jpg"}, staged)
		assert.Len(t, listNames(t, edited), 3)
	})

	t.Run("falls back to originals without edited frames", func(t *testing.T) {
		dir := makeSequence(t, t.TempDir(), "seq", 3)
		e, enc, st := newTestEditor(t, dir)
		enc.On("EncodeSequence", ctx, mock.Anything).Return(nil).Once()

		_, err := e.AssembleVideo(ctx, AssembleRequest{OutputPath: filepath.Join(t.TempDir(), "v.mp4"), FPS: 24, UseEdited: true})
		require.NoError(t, err)

		req := enc.Calls[0].Arguments.Get(1).(media.EncodeRequest)
		assert.Equal(t, st.TempDir(), filepath.Dir(filepath.Dir(req.Pattern)))
	})

	t.Run("all png sequence is staged as png", func(t *testing.T) {
		dir := filepath.Join(t.TempDir(), "seq")
		require.NoError(t, os.MkdirAll(dir, 0750))
		for i, name := range []string{"a.png", "b.png"} {
			writePNGFile(t, filepath.Join(dir, name), frameImage(i))
		}
		e, enc, _ := newTestEditor(t, dir)
		enc.On("EncodeSequence", ctx, mock.Anything).Return(nil).Once()

		_, err := e.AssembleVideo(ctx, AssembleRequest{OutputPath: filepath.Join(t.TempDir(), "v.mp4"), FPS: 24})
		require.NoError(t, err)

		req := enc.Calls[0].Arguments.Get(1).(media.EncodeRequest)
		assert.Equal(t, "frame_%04d.png", filepath.Base(req.Pattern))
	})

	t.Run("mixed formats are normalized to jpeg", func(t *testing.T) {
		dir := filepath.Join(t.TempDir(), "seq")
		require.NoError(t, os.MkdirAll(dir, 0750))
		writeJPEG(t, filepath.Join(dir, "0000.jpg"), frameImage(0))
		writePNGFile(t, filepath.Join(dir, "0001.png"), frameImage(1))
		e, enc, _ := newTestEditor(t, dir)

		var header []byte
		enc.On("EncodeSequence", ctx, mock.Anything).
			Run(func(args mock.Arguments) {
				data, err := os.ReadFile(filepath.Join(filepath.Dir(args.Get(1).(media.EncodeRequest).Pattern), "frame_0001.jpg"))
				require.NoError(t, err)
				header = data[:2]
			}).
			Return(nil).Once()

		_, err := e.AssembleVideo(ctx, AssembleRequest{OutputPath: filepath.Join(t.TempDir(), "v.mp4"), FPS: 24})
		require.NoError(t, err)
		assert.Equal(t, []byte{0xFF, 0xD8}, header)
	})
}

func TestAssembleVideo_Failures(t *testing.T) {
	ctx := context.Background()

	t.Run("encoder failure cleans up staging", func(t *testing.T) {
		dir := makeSequence(t, t.TempDir(), "seq", 3)
		e, enc, st := newTestEditor(t, dir)
		enc.On("EncodeSequence", ctx, mock.Anything).
			Return(&media.FFmpegError{ExitCode: 1, Stderr: "Invalid data found", Err: errors.New("exit status 1")}).Once()

		_, err := e.AssembleVideo(ctx, AssembleRequest{OutputPath: filepath.Join(t.TempDir(), "v.mp4"), FPS: 24})
		var ffErr *media.FFmpegError
		require.True(t, errors.As(err, &ffErr))
		assert.Equal(t, "Invalid data found", ffErr.Stderr)
		assert.Empty(t, listNames(t, st.TempDir()))
	})

	t.Run("encoder panic is recovered", func(t *testing.T) {
		dir := makeSequence(t, t.TempDir(), "seq", 2)
		e, enc, st := newTestEditor(t, dir)
		enc.On("EncodeSequence", ctx, mock.Anything).
			Run(func(mock.Arguments) { panic("boom") }).
			Return(nil).Once()

		_, err := e.AssembleVideo(ctx, AssembleRequest{OutputPath: filepath.Join(t.TempDir(), "v.mp4"), FPS: 24})
		assert.ErrorIs(t, err, ErrAssemblyPanic)
		assert.Empty(t, listNames(t, st.TempDir()))
	})

	t.Run("undecodable frame aborts staging", func(t *testing.T) {
		dir := makeSequence(t, t.TempDir(), "seq", 3)
		require.NoError(t, os.WriteFile(filepath.Join(dir, "0001.tif"), []byte("garbage"), 0600))
		e, enc, st := newTestEditor(t, dir)

		_, err := e.AssembleVideo(ctx, AssembleRequest{OutputPath: filepath.Join(t.TempDir(), "v.mp4"), FPS: 24})
		assert.Error(t, err)
		enc.AssertNotCalled(t, "EncodeSequence", mock.Anything, mock.Anything)
		assert.Empty(t, listNames(t, st.TempDir()))
	})

	t.Run("empty sequence", func(t *testing.T) {
		e, enc, _ := newTestEditor(t, t.TempDir())

		_, err := e.AssembleVideo(ctx, AssembleRequest{OutputPath: filepath.Join(t.TempDir(), "v.mp4"), FPS: 24})
		assert.ErrorIs(t, err, ErrEmptySequence)
		enc.AssertNotCalled(t, "EncodeSequence", mock.Anything, mock.Anything)
	})

	t.Run("invalid frame rate", func(t *testing.T) {
		dir := makeSequence(t, t.TempDir(), "seq", 1)
		e, _, _ := newTestEditor(t, dir)

		_, err := e.AssembleVideo(ctx, AssembleRequest{OutputPath: "v.mp4", FPS: 0})
		assert.ErrorIs(t, err, media.ErrInvalidFrameRate)
	})

	t.Run("missing output path", func(t *testing.T) {
		dir := makeSequence(t, t.TempDir(), "seq", 1)
		e, _, _ := newTestEditor(t, dir)

		_, err := e.AssembleVideo(ctx, AssembleRequest{FPS: 24})
		assert.ErrorIs(t, err, media.ErrOutputRequired)
	})

	t.Run("no stager configured", func(t *testing.T) {
		dir := makeSequence(t, t.TempDir(), "seq", 1)
		e, _, _ := newTestEditor(t, dir)
		e.stager = nil

		_, err := e.AssembleVideo(ctx, AssembleRequest{OutputPath: filepath.Join(t.TempDir(), "v.mp4"), FPS: 24})
		assert.ErrorIs(t, err, ErrNoStaging)
	})
}

func TestAssembleVideo_FormatExtension(t *testing.T) {
	ctx := context.Background()
	dir := makeSequence(t, t.TempDir(), "seq", 1)
	e, enc, _ := newTestEditor(t, dir)
	enc.On("EncodeSequence", ctx, mock.Anything).Return(nil)

	base := filepath.Join(t.TempDir(), "video")
	got, err := e.AssembleVideo(ctx, AssembleRequest{OutputPath: base, FPS: 24, Format: "mov"})
	require.NoError(t, err)
	assert.Equal(t, base+".mov", got)

	got, err = e.AssembleVideo(ctx, AssembleRequest{OutputPath: base + ".mp4", FPS: 24, Format: "mov"})
	require.NoError(t, err)
	assert.Equal(t, base+".mp4", got)
}

func TestAssembleVideo_FFmpeg(t *testing.T) {
	if _, err := exec.LookPath("ffmpeg"); err != nil {
		t.Skip("ffmpeg not found in PATH, skipping test")
	}

	ctx := context.Background()
	dir := makeSequence(t, t.TempDir(), "seq", 6)
	e, _, _ := newTestEditor(t, dir, WithEncoder(media.NewFFmpegEncoder("", nil)))
	output := filepath.Join(t.TempDir(), "out.mp4")

	got, err := e.AssembleVideo(ctx, AssembleRequest{
		OutputPath: output,
		FPS:        6,
		Quality:    media.QualityLow,
		Crop:       &geom.Rect{Left: 0, Top: 0, Right: 32, Bottom: 32},
		Resize:     &geom.Size{Width: 16, Height: 16},
	})
	require.NoError(t, err)

	info, err := os.Stat(got)
	require.NoError(t, err)
	assert.Greater(t, info.Size(), int64(0))
}

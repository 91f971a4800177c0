package sequence

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/maauso/timelapse-editor/internal/media"
	"github.com/maauso/timelapse-editor/internal/storage"
)

// mockEncoder implements media.Encoder for testing.
type mockEncoder struct {
	mock.Mock
}

func (m *mockEncoder) EncodeSequence(ctx context.Context, req media.EncodeRequest) error {
	return m.Called(ctx, req).Error(0)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func bufferLogger(buf *bytes.Buffer) *slog.Logger {
	return slog.New(slog.NewTextHandler(buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

// frameImage returns a small frame whose color depends on i.
func frameImage(i int) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, 64, 32))
	c := color.NRGBA{R: uint8(i * 10 % 256), G: 100, B: uint8(255 - i*7%256), A: 255}
	for y := 0; y < 32; y++ {
		for x := 0; x < 64; x++ {
			img.SetNRGBA(x, y, c)
		}
	}
	return img
}

func writeJPEG(t *testing.T, path string, img image.Image) {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, img, &jpeg.Options{Quality: 90}))
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0600))
}

func writePNGFile(t *testing.T, path string, img image.Image) {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0600))
}

// makeSequence creates parent/name holding n frames named 0000.jpg, 0001.jpg, ...
func makeSequence(t *testing.T, parent, name string, n int) string {
	t.Helper()
	dir := filepath.Join(parent, name)
	require.NoError(t, os.MkdirAll(dir, 0750))
	for i := 0; i < n; i++ {
		writeJPEG(t, filepath.Join(dir, fmt.Sprintf("%04d.jpg", i)), frameImage(i))
	}
	return dir
}

// newTestEditor builds an editor with a discarded log, a mock encoder and
// staging under a test temp directory.
func newTestEditor(t *testing.T, path string, opts ...Option) (*Editor, *mockEncoder, *storage.LocalStorage) {
	t.Helper()
	enc := &mockEncoder{}
	st, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)

	base := []Option{WithLogger(discardLogger()), WithEncoder(enc), WithStager(st)}
	return NewEditor(path, append(base, opts...)...), enc, st
}

func listNames(t *testing.T, dir string) []string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names
}

func ptr[T any](v T) *T { return &v }

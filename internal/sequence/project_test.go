package sequence

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProject_RoundTrip(t *testing.T) {
	ctx := context.Background()
	dir := makeSequence(t, t.TempDir(), "seq_20240101_120000", 4)
	e, _, _ := newTestEditor(t, dir)

	_, err := e.GenerateSequencePreview(ctx, filepath.Join(t.TempDir(), "previews"), 2, 16)
	require.NoError(t, err)
	_, err = e.BatchEdit(ctx, EditSpec{Brightness: ptr(1.1)}, BatchOptions{OutputDir: filepath.Join(t.TempDir(), "edited")})
	require.NoError(t, err)

	projectPath := filepath.Join(t.TempDir(), "projects", "seq_project.json")
	require.NoError(t, e.SaveProject(projectPath))

	loaded, err := LoadProject(projectPath, WithLogger(discardLogger()))
	require.NoError(t, err)
	assert.Equal(t, e.FrameCount(), loaded.FrameCount())
	assert.Equal(t, e.Metadata(), loaded.Metadata())
	assert.Equal(t, e.PreviewPath(), loaded.PreviewPath())
	assert.Equal(t, e.EditedFramesPath(), loaded.EditedFramesPath())
	assert.Equal(t, dir, loaded.Path())
}

func TestProject_FileFormat(t *testing.T) {
	dir := makeSequence(t, t.TempDir(), "seq", 2)
	e, _, _ := newTestEditor(t, dir)
	projectPath := filepath.Join(t.TempDir(), "p.json")

	before := time.Now().Add(-time.Second)
	require.NoError(t, e.SaveProject(projectPath))

	data, err := os.ReadFile(projectPath)
	require.NoError(t, err)

	var raw map[string]any
	require.NoError(t, json.Unmarshal(data, &raw))
	for _, key := range []string{"sequence_path", "frame_count", "metadata", "preview_path", "edited_frames_path", "timestamp"} {
		assert.Contains(t, raw, key)
	}
	assert.Nil(t, raw["preview_path"])
	assert.Nil(t, raw["edited_frames_path"])
	assert.Equal(t, float64(2), raw["frame_count"])

	ts, err := time.Parse(time.RFC3339Nano, raw["timestamp"].(string))
	require.NoError(t, err)
	assert.True(t, ts.After(before))

	meta := raw["metadata"].(map[string]any)
	assert.Equal(t, "seq", meta["name"])
}

func TestLoadProject(t *testing.T) {
	t.Run("unknown keys are ignored and optional keys may be missing", func(t *testing.T) {
		dir := makeSequence(t, t.TempDir(), "seq", 3)
		projectPath := filepath.Join(t.TempDir(), "p.json")
		doc := map[string]any{
			"sequence_path": dir,
			"frame_count":   3,
			"metadata":      map[string]any{"name": "seq"},
			"timestamp":     "2024-01-01T12:00:00Z",
			"ui_zoom":       2.5,
		}
		data, err := json.Marshal(doc)
		require.NoError(t, err)
		require.NoError(t, os.WriteFile(projectPath, data, 0600))

		e, err := LoadProject(projectPath, WithLogger(discardLogger()))
		require.NoError(t, err)
		assert.Equal(t, 3, e.FrameCount())
		assert.Empty(t, e.PreviewPath())
		assert.Empty(t, e.EditedFramesPath())
	})

	t.Run("timestamps without a zone offset", func(t *testing.T) {
		dir := makeSequence(t, t.TempDir(), "seq", 2)
		for _, ts := range []string{`"2024-01-01T12:00:00.123456"`, `"2024-01-01T12:00:00"`, `""`, `null`, `"yesterday"`} {
			projectPath := filepath.Join(t.TempDir(), "p.json")
			doc := fmt.Sprintf(`{"sequence_path": %q, "frame_count": 2, "metadata": {"name": "seq"}, "timestamp": %s}`, dir, ts)
			require.NoError(t, os.WriteFile(projectPath, []byte(doc), 0600))

			e, err := LoadProject(projectPath, WithLogger(discardLogger()))
			require.NoError(t, err, ts)
			assert.Equal(t, 2, e.FrameCount(), ts)
		}
	})

	t.Run("options are applied once", func(t *testing.T) {
		dir := makeSequence(t, t.TempDir(), "seq", 1)
		e, _, _ := newTestEditor(t, dir)
		projectPath := filepath.Join(t.TempDir(), "p.json")
		require.NoError(t, e.SaveProject(projectPath))

		calls := 0
		counting := func(*Editor) { calls++ }

		_, err := LoadProject(projectPath, WithLogger(discardLogger()), counting)
		require.NoError(t, err)
		assert.Equal(t, 1, calls)

		require.NoError(t, os.RemoveAll(dir))
		calls = 0
		_, err = LoadProject(projectPath, WithLogger(discardLogger()), counting)
		assert.ErrorIs(t, err, ErrSequenceNotFound)
		assert.Equal(t, 1, calls)
	})

	t.Run("stale sequence path", func(t *testing.T) {
		parent := t.TempDir()
		dir := makeSequence(t, parent, "seq", 1)
		e, _, _ := newTestEditor(t, dir)
		projectPath := filepath.Join(t.TempDir(), "p.json")
		require.NoError(t, e.SaveProject(projectPath))
		require.NoError(t, os.RemoveAll(dir))

		var logs bytes.Buffer
		loaded, err := LoadProject(projectPath, WithLogger(bufferLogger(&logs)))
		assert.ErrorIs(t, err, ErrSequenceNotFound)
		assert.Nil(t, loaded)
		assert.Contains(t, logs.String(), "project references a missing sequence")
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := LoadProject(filepath.Join(t.TempDir(), "none.json"))
		assert.Error(t, err)
	})

	t.Run("malformed json", func(t *testing.T) {
		projectPath := filepath.Join(t.TempDir(), "p.json")
		require.NoError(t, os.WriteFile(projectPath, []byte("{not json"), 0600))

		_, err := LoadProject(projectPath)
		assert.Error(t, err)
	})
}

func TestSaveProject_WriteFailure(t *testing.T) {
	dir := makeSequence(t, t.TempDir(), "seq", 1)
	e, _, _ := newTestEditor(t, dir)

	target := filepath.Join(t.TempDir(), "taken")
	require.NoError(t, os.Mkdir(target, 0750))

	assert.Error(t, e.SaveProject(target))
}

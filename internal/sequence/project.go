package sequence

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"
)

// projectFile is the on-disk project format. Unknown keys are ignored on load.
type projectFile struct {
	SequencePath     string    `json:"sequence_path"`
	FrameCount       int       `json:"frame_count"`
	Metadata         Metadata  `json:"metadata"`
	PreviewPath      *string   `json:"preview_path"`
	EditedFramesPath *string   `json:"edited_frames_path"`
	Timestamp        timestamp `json:"timestamp"`
}

// timestamp is written as RFC 3339. On load it also accepts ISO-8601 without
// a zone offset; anything unparseable, "" or null decodes to the zero time,
// since the value is informational only.
type timestamp struct {
	time.Time
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
}

func (t timestamp) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.Format(time.RFC3339Nano))
}

func (t *timestamp) UnmarshalJSON(data []byte) error {
	t.Time = time.Time{}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return nil
	}
	for _, layout := range timestampLayouts {
		if parsed, err := time.Parse(layout, s); err == nil {
			t.Time = parsed
			return nil
		}
	}
	return nil
}

// SaveProject writes the editor state to outputPath as JSON.
func (e *Editor) SaveProject(outputPath string) error {
	p := projectFile{
		SequencePath:     e.index.Root(),
		FrameCount:       e.index.Len(),
		Metadata:         e.index.Metadata(),
		PreviewPath:      optional(e.previewPath),
		EditedFramesPath: optional(e.editedFramesPath),
		Timestamp:        timestamp{time.Now()},
	}

	data, err := json.MarshalIndent(p, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal project: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(outputPath), 0750); err != nil {
		e.logger.Error("failed to create project directory",
			slog.String("path", outputPath),
			slog.String("error", err.Error()),
		)
		return fmt.Errorf("create project directory: %w", err)
	}
	if err := os.WriteFile(outputPath, data, 0600); err != nil {
		e.logger.Error("failed to save project",
			slog.String("path", outputPath),
			slog.String("error", err.Error()),
		)
		return fmt.Errorf("write project: %w", err)
	}

	e.logger.Info("saved project", slog.String("path", outputPath))
	return nil
}

// LoadProject restores an editor from a project file. The referenced
// sequence is re-scanned; the recorded preview and edited-frames paths are
// carried over. A project whose sequence directory no longer exists fails
// with ErrSequenceNotFound.
func LoadProject(projectPath string, opts ...Option) (*Editor, error) {
	data, err := os.ReadFile(projectPath) // #nosec G304 - path is provided by trusted caller
	if err != nil {
		return nil, fmt.Errorf("read project: %w", err)
	}

	var p projectFile
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("parse project: %w", err)
	}

	e := configure(opts)
	if p.SequencePath == "" || !isDir(p.SequencePath) {
		e.logger.Error("project references a missing sequence",
			slog.String("project", projectPath),
			slog.String("sequence_path", p.SequencePath),
		)
		return nil, fmt.Errorf("%w: %s", ErrSequenceNotFound, p.SequencePath)
	}

	e.index = NewIndex(p.SequencePath, e.logger.With(slog.String("sequence", p.SequencePath)))
	if p.PreviewPath != nil {
		e.previewPath = *p.PreviewPath
	}
	if p.EditedFramesPath != nil {
		e.editedFramesPath = *p.EditedFramesPath
	}
	return e, nil
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

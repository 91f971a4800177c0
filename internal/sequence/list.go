package sequence

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"
)

// Summary describes one sequence directory under a timelapse root.
type Summary struct {
	Name         string    `json:"name"`
	Path         string    `json:"path"`
	DateCaptured string    `json:"date_captured,omitempty"`
	Modified     time.Time `json:"modified"`
}

// ListSequences returns the sub-directories of root, most recently modified
// first. Frames are not counted; open an Editor for that.
func ListSequences(root string) ([]Summary, error) {
	entries, err := os.ReadDir(root)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrSequenceNotFound, root, err)
	}

	out := make([]Summary, 0, len(entries))
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		out = append(out, Summary{
			Name:         entry.Name(),
			Path:         filepath.Join(root, entry.Name()),
			DateCaptured: ParseCaptureDate(entry.Name()),
			Modified:     info.ModTime(),
		})
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Modified.Equal(out[j].Modified) {
			return out[i].Name > out[j].Name
		}
		return out[i].Modified.After(out[j].Modified)
	})
	return out, nil
}

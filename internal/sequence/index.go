// Package sequence implements the timelapse sequence editor: a directory
// backed frame index with preview rendering, frame extraction, batch edits,
// video assembly and project save/restore.
package sequence

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"
)

// Static errors for sequence operations.
var (
	// ErrSequenceNotFound is returned when the sequence root is missing or not a directory.
	ErrSequenceNotFound = errors.New("sequence directory not found")
	// ErrFrameNotFound is returned for frame indices outside [0, frame count).
	ErrFrameNotFound = errors.New("frame index out of range")
	// ErrEmptySequence is returned when an operation needs at least one frame.
	ErrEmptySequence = errors.New("sequence has no frames")
)

// frameExtensions is the allow-list of frame file extensions, compared lower-cased.
var frameExtensions = map[string]bool{
	".jpg": true, ".jpeg": true, ".png": true, ".tif": true, ".tiff": true,
	".arw": true, ".cr2": true, ".nef": true,
}

// DateFormat is the layout of Metadata.DateCaptured.
const DateFormat = "2006-01-02 15:04:05"

const folderDateLayout = "20060102_150405"

var (
	// <prefix>_<YYYYMMDD_HHMMSS>
	suffixDatePattern = regexp.MustCompile(`^.+_(\d{8}_\d{6})$`)
	// <YYYYMMDD_HHMMSS>_<suffix>, the capture daemon's naming.
	prefixDatePattern = regexp.MustCompile(`^(\d{8}_\d{6})(?:_.*)?$`)
)

// Metadata describes a scanned sequence.
type Metadata struct {
	Name         string `json:"name"`
	Path         string `json:"path"`
	FrameCount   int    `json:"frame_count"`
	DateCaptured string `json:"date_captured,omitempty"`
	FirstFrame   string `json:"first_frame,omitempty"`
	LastFrame    string `json:"last_frame,omitempty"`
}

// CapturedAt parses DateCaptured. ok is false when the date is absent.
func (m Metadata) CapturedAt() (t time.Time, ok bool) {
	if m.DateCaptured == "" {
		return time.Time{}, false
	}
	t, err := time.ParseInLocation(DateFormat, m.DateCaptured, time.Local)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// Index is an ordered snapshot of the frame files in a sequence directory.
// The frame list is sorted by file name and is only replaced by Scan.
type Index struct {
	root   string
	frames []string
	meta   Metadata
	logger *slog.Logger
}

// NewIndex creates an index for root and scans it immediately.
// A missing directory yields an empty index; the failure is logged.
func NewIndex(root string, logger *slog.Logger) *Index {
	if logger == nil {
		logger = slog.Default()
	}
	idx := &Index{root: root, logger: logger}
	_ = idx.Scan()
	return idx
}

// Scan rebuilds the frame list from disk. When root is missing or not a
// directory the index is left empty and ErrSequenceNotFound is returned.
func (x *Index) Scan() error {
	name := filepath.Base(x.root)
	x.frames = nil
	x.meta = Metadata{Name: name, Path: x.root}

	info, err := os.Stat(x.root)
	if err != nil || !info.IsDir() {
		x.logger.Error("sequence path not found or not a directory",
			slog.String("path", x.root),
		)
		return fmt.Errorf("%w: %s", ErrSequenceNotFound, x.root)
	}

	entries, err := os.ReadDir(x.root)
	if err != nil {
		x.logger.Error("failed to read sequence directory",
			slog.String("path", x.root),
			slog.String("error", err.Error()),
		)
		return fmt.Errorf("read sequence directory: %w", err)
	}

	frames := make([]string, 0, len(entries))
	for _, entry := range entries {
		if !entry.Type().IsRegular() {
			continue
		}
		if !frameExtensions[strings.ToLower(filepath.Ext(entry.Name()))] {
			continue
		}
		frames = append(frames, filepath.Join(x.root, entry.Name()))
	}
	sort.Strings(frames)

	x.frames = frames
	x.meta = Metadata{
		Name:         name,
		Path:         x.root,
		FrameCount:   len(frames),
		DateCaptured: ParseCaptureDate(name),
	}
	if len(frames) > 0 {
		x.meta.FirstFrame = frames[0]
		x.meta.LastFrame = frames[len(frames)-1]
	}

	x.logger.Info("scanned sequence",
		slog.String("name", name),
		slog.Int("frame_count", len(frames)),
	)
	return nil
}

// Root returns the sequence directory.
func (x *Index) Root() string { return x.root }

// Name returns the base name of the sequence directory.
func (x *Index) Name() string { return x.meta.Name }

// Len returns the number of frames.
func (x *Index) Len() int { return len(x.frames) }

// Frames returns a copy of the ordered frame paths.
func (x *Index) Frames() []string {
	out := make([]string, len(x.frames))
	copy(out, x.frames)
	return out
}

// Metadata returns the sequence metadata.
func (x *Index) Metadata() Metadata { return x.meta }

// FramePath returns the path of frame i. Out of range requests are logged
// and reported with ok == false.
func (x *Index) FramePath(i int) (path string, ok bool) {
	if i < 0 || i >= len(x.frames) {
		x.logger.Warn("requested invalid frame index",
			slog.Int("index", i),
			slog.Int("frame_count", len(x.frames)),
		)
		return "", false
	}
	return x.frames[i], true
}

// ParseCaptureDate derives the capture date from a sequence directory name.
// It returns "" when the name does not follow either naming convention.
func ParseCaptureDate(name string) string {
	for _, re := range []*regexp.Regexp{suffixDatePattern, prefixDatePattern} {
		m := re.FindStringSubmatch(name)
		if m == nil {
			continue
		}
		t, err := time.Parse(folderDateLayout, m[1])
		if err != nil {
			continue
		}
		return t.Format(DateFormat)
	}
	return ""
}

// IndexWidth is the zero padding used for frame numbers in derived file
// names. It is at least 4 and wide enough for the last index of a sequence
// of n frames, so lexicographic order matches numeric order.
func IndexWidth(n int) int {
	w := len(strconv.Itoa(max(n-1, 0)))
	return max(w, 4)
}

// frameFileName returns e.g. frame_0007.jpg for prefix "frame", index 7, width 4.
func frameFileName(prefix string, index, width int, ext string) string {
	return fmt.Sprintf("%s_%0*d%s", prefix, width, index, ext)
}

// framePattern returns the printf pattern matching frameFileName.
func framePattern(prefix string, width int, ext string) string {
	return fmt.Sprintf("%s_%%0%dd%s", prefix, width, ext)
}

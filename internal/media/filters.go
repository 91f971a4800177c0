package media

import (
	"fmt"
	"strings"

	"github.com/maauso/timelapse-editor/internal/geom"
)

// FilterBuilder constructs a comma separated ffmpeg video filter chain.
type FilterBuilder struct {
	filters []string
}

// NewFilterBuilder creates an empty filter builder.
func NewFilterBuilder() *FilterBuilder {
	return &FilterBuilder{filters: make([]string, 0, 2)}
}

// Crop adds a crop filter for the given rectangle.
func (fb *FilterBuilder) Crop(r geom.Rect) *FilterBuilder {
	fb.filters = append(fb.filters, fmt.Sprintf("crop=%d:%d:%d:%d", r.Width(), r.Height(), r.Left, r.Top))
	return fb
}

// Scale adds a scale filter.
func (fb *FilterBuilder) Scale(s geom.Size) *FilterBuilder {
	fb.filters = append(fb.filters, fmt.Sprintf("scale=%d:%d", s.Width, s.Height))
	return fb
}

// Build returns the filter chain, or "" when no filter was added.
func (fb *FilterBuilder) Build() string {
	return strings.Join(fb.filters, ",")
}

// BuildFilter composes the optional crop and resize into a single chain.
// Crop always precedes scale.
func BuildFilter(crop *geom.Rect, resize *geom.Size) string {
	fb := NewFilterBuilder()
	if crop != nil {
		fb.Crop(*crop)
	}
	if resize != nil {
		fb.Scale(*resize)
	}
	return fb.Build()
}

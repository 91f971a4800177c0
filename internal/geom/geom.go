// Package geom provides the rectangle and size types shared by the image
// transforms, the batch editor and the video encoder filter chain.
package geom

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Static errors for geometry validation.
var (
	// ErrInvalidRect is returned when a rectangle has a negative origin or no area.
	ErrInvalidRect = errors.New("invalid rectangle: origin must be non-negative and right/bottom must exceed left/top")
	// ErrInvalidSize is returned when a size has a non-positive dimension.
	ErrInvalidSize = errors.New("invalid size: width and height must be positive")
)

// Rect is a crop rectangle expressed by its edges, in pixels.
// It is encoded in JSON as [left, top, right, bottom].
type Rect struct {
	Left   int
	Top    int
	Right  int
	Bottom int
}

// Width returns Right-Left.
func (r Rect) Width() int { return r.Right - r.Left }

// Height returns Bottom-Top.
func (r Rect) Height() int { return r.Bottom - r.Top }

// Validate checks that the rectangle has a non-negative origin and a positive area.
func (r Rect) Validate() error {
	if r.Left < 0 || r.Top < 0 || r.Width() <= 0 || r.Height() <= 0 {
		return fmt.Errorf("%w: %v", ErrInvalidRect, r)
	}
	return nil
}

func (r Rect) String() string {
	return fmt.Sprintf("(%d,%d,%d,%d)", r.Left, r.Top, r.Right, r.Bottom)
}

// MarshalJSON encodes the rectangle as a four element array.
func (r Rect) MarshalJSON() ([]byte, error) {
	return json.Marshal([4]int{r.Left, r.Top, r.Right, r.Bottom})
}

// UnmarshalJSON decodes a four element array.
func (r *Rect) UnmarshalJSON(data []byte) error {
	var v []int
	if err := json.Unmarshal(data, &v); err != nil {
		return fmt.Errorf("rect: %w", err)
	}
	if len(v) != 4 {
		return fmt.Errorf("rect: expected 4 values [left, top, right, bottom], got %d", len(v))
	}
	*r = Rect{Left: v[0], Top: v[1], Right: v[2], Bottom: v[3]}
	return nil
}

// Size is a width/height pair in pixels, encoded in JSON as [width, height].
type Size struct {
	Width  int
	Height int
}

// Validate checks that both dimensions are positive.
func (s Size) Validate() error {
	if s.Width <= 0 || s.Height <= 0 {
		return fmt.Errorf("%w: width=%d, height=%d", ErrInvalidSize, s.Width, s.Height)
	}
	return nil
}

// MarshalJSON encodes the size as a two element array.
func (s Size) MarshalJSON() ([]byte, error) {
	return json.Marshal([2]int{s.Width, s.Height})
}

// UnmarshalJSON decodes a two element array.
func (s *Size) UnmarshalJSON(data []byte) error {
	var v []int
	if err := json.Unmarshal(data, &v); err != nil {
		return fmt.Errorf("size: %w", err)
	}
	if len(v) != 2 {
		return fmt.Errorf("size: expected 2 values [width, height], got %d", len(v))
	}
	*s = Size{Width: v[0], Height: v[1]}
	return nil
}

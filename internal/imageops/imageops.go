// Package imageops provides the single-image operations the sequence editor
// drives: decoding (including camera RAW), bounded previews, crop, tone
// adjustments, rotation, resizing, named filters and saving.
package imageops

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"io"
	"math"
	"os"
	"path/filepath"
	"strings"

	"github.com/disintegration/imaging"
	"golang.org/x/image/tiff"

	"github.com/maauso/timelapse-editor/internal/geom"
	"github.com/maauso/timelapse-editor/internal/media"
)

// Static errors for image operations.
var (
	// ErrUnknownFilter is returned for filter names outside the supported set.
	ErrUnknownFilter = errors.New("unknown filter")
	// ErrCropOutOfBounds is returned when a crop rectangle does not overlap the image.
	ErrCropOutOfBounds = errors.New("crop rectangle outside image bounds")
	// ErrInvalidMaxSize is returned when a preview bound is not positive.
	ErrInvalidMaxSize = errors.New("invalid max size: must be positive")
	// ErrRawDecode is returned when the RAW converter fails.
	ErrRawDecode = errors.New("raw decode failed")
)

// DefaultJPEGQuality is used when saving edited or converted frames.
const DefaultJPEGQuality = 95

var rawExtensions = map[string]bool{
	".arw": true, ".cr2": true, ".crw": true, ".dng": true, ".nef": true, ".orf": true,
	".pef": true, ".raf": true, ".raw": true, ".rw2": true, ".srw": true,
}

var copyableExtensions = map[string]bool{
	".jpg": true, ".jpeg": true, ".png": true,
}

// IsRaw reports whether path has a camera RAW extension.
func IsRaw(path string) bool {
	return rawExtensions[strings.ToLower(filepath.Ext(path))]
}

// IsCopyable reports whether path is a common raster format that can be
// byte-copied instead of decoded and re-encoded.
func IsCopyable(path string) bool {
	return copyableExtensions[strings.ToLower(filepath.Ext(path))]
}

// Processor implements the image operations on top of the imaging package.
// RAW files are converted to TIFF by dcraw and decoded from its stdout.
type Processor struct {
	dcrawPath string
	runner    media.Runner
}

// NewProcessor creates a new Processor.
// If dcrawPath is empty, it defaults to "dcraw" (found via PATH).
// If runner is nil, commands are executed with media.ExecRunner.
func NewProcessor(dcrawPath string, runner media.Runner) *Processor {
	if dcrawPath == "" {
		dcrawPath = "dcraw"
	}
	if runner == nil {
		runner = media.ExecRunner{}
	}
	return &Processor{dcrawPath: dcrawPath, runner: runner}
}

// Load decodes the image at path.
func (p *Processor) Load(ctx context.Context, path string) (image.Image, error) {
	if IsRaw(path) {
		return p.loadRaw(ctx, path)
	}

	img, err := imaging.Open(path, imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("open image %s: %w", path, err)
	}
	return img, nil
}

// loadRaw develops a RAW file with camera white balance and decodes the TIFF output.
func (p *Processor) loadRaw(ctx context.Context, path string) (image.Image, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("open raw %s: %w", path, err)
	}

	args := []string{
		"-c", // Write to stdout
		"-w", // Use camera white balance
		"-T", // TIFF output
		path,
	}
	res, err := p.runner.Run(ctx, p.dcrawPath, args)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrRawDecode, path, err)
	}
	if res.ExitCode != 0 {
		return nil, fmt.Errorf("%w: %s: exit status %d: %s", ErrRawDecode, path, res.ExitCode, strings.TrimSpace(res.Stderr))
	}

	img, err := tiff.Decode(bytes.NewReader(res.Stdout))
	if err != nil {
		return nil, fmt.Errorf("%w: %s: decode tiff: %w", ErrRawDecode, path, err)
	}
	return img, nil
}

// Preview returns a copy of img whose longest side is at most maxSize.
// The aspect ratio is preserved and smaller images are never upscaled.
func (p *Processor) Preview(img image.Image, maxSize int) (image.Image, error) {
	if maxSize <= 0 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidMaxSize, maxSize)
	}
	return imaging.Fit(img, maxSize, maxSize, imaging.Lanczos), nil
}

// Crop returns the part of img inside r. Coordinates are relative to the image origin.
func (p *Processor) Crop(img image.Image, r geom.Rect) (image.Image, error) {
	if err := r.Validate(); err != nil {
		return nil, err
	}
	b := img.Bounds()
	rect := image.Rect(r.Left, r.Top, r.Right, r.Bottom).Add(b.Min)
	if rect.Intersect(b).Empty() {
		return nil, fmt.Errorf("%w: %v not within %dx%d", ErrCropOutOfBounds, r, b.Dx(), b.Dy())
	}
	return imaging.Crop(img, rect), nil
}

// Brightness scales every channel by factor. 1.0 keeps the image, 0 yields black.
func (p *Processor) Brightness(img image.Image, factor float64) image.Image {
	return imaging.AdjustFunc(img, func(c color.NRGBA) color.NRGBA {
		return color.NRGBA{
			R: clamp(float64(c.R) * factor),
			G: clamp(float64(c.G) * factor),
			B: clamp(float64(c.B) * factor),
			A: c.A,
		}
	})
}

// Contrast blends the image with its mean luminance. 1.0 keeps the image,
// 0 yields a flat gray.
func (p *Processor) Contrast(img image.Image, factor float64) image.Image {
	mean := meanLuminance(img)
	return imaging.AdjustFunc(img, func(c color.NRGBA) color.NRGBA {
		return color.NRGBA{
			R: clamp(mean + factor*(float64(c.R)-mean)),
			G: clamp(mean + factor*(float64(c.G)-mean)),
			B: clamp(mean + factor*(float64(c.B)-mean)),
			A: c.A,
		}
	})
}

// Saturation blends each pixel with its own luminance. 1.0 keeps the image,
// 0 yields grayscale.
func (p *Processor) Saturation(img image.Image, factor float64) image.Image {
	return imaging.AdjustFunc(img, func(c color.NRGBA) color.NRGBA {
		l := luminance(c)
		return color.NRGBA{
			R: clamp(l + factor*(float64(c.R)-l)),
			G: clamp(l + factor*(float64(c.G)-l)),
			B: clamp(l + factor*(float64(c.B)-l)),
			A: c.A,
		}
	})
}

// Rotate rotates img counter-clockwise by degrees, expanding the canvas to fit.
func (p *Processor) Rotate(img image.Image, degrees float64) image.Image {
	return imaging.Rotate(img, degrees, color.Black)
}

// Resize scales img to fit inside s, preserving the aspect ratio.
func (p *Processor) Resize(img image.Image, s geom.Size) (image.Image, error) {
	if err := s.Validate(); err != nil {
		return nil, err
	}
	b := img.Bounds()
	if b.Dx() == 0 || b.Dy() == 0 {
		return imaging.Clone(img), nil
	}
	ratio := math.Min(float64(s.Width)/float64(b.Dx()), float64(s.Height)/float64(b.Dy()))
	w := max(1, int(float64(b.Dx())*ratio))
	h := max(1, int(float64(b.Dy())*ratio))
	return imaging.Resize(img, w, h, imaging.Lanczos), nil
}

// Filter applies a named filter.
func (p *Processor) Filter(img image.Image, name string) (image.Image, error) {
	f, ok := filters[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownFilter, name)
	}
	return f(img), nil
}

// Save writes img to path, choosing the format from the extension.
// quality only affects JPEG output. The parent directory is created.
func (p *Processor) Save(img image.Image, path string, quality int) error {
	if err := os.MkdirAll(filepath.Dir(path), 0750); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}
	if err := imaging.Save(img, path, imaging.JPEGQuality(quality)); err != nil {
		return fmt.Errorf("save image %s: %w", path, err)
	}
	return nil
}

// EncodeJPEG writes img to w as a JPEG.
func (p *Processor) EncodeJPEG(w io.Writer, img image.Image, quality int) error {
	return imaging.Encode(w, img, imaging.JPEG, imaging.JPEGQuality(quality))
}

// luminance returns the ITU-R 601-2 luma of c.
func luminance(c color.NRGBA) float64 {
	return float64(c.R)*299/1000 + float64(c.G)*587/1000 + float64(c.B)*114/1000
}

func meanLuminance(img image.Image) float64 {
	nrgba := imaging.Clone(img)
	n := len(nrgba.Pix) / 4
	if n == 0 {
		return 0
	}
	var sum float64
	for i := 0; i < len(nrgba.Pix); i += 4 {
		sum += luminance(color.NRGBA{R: nrgba.Pix[i], G: nrgba.Pix[i+1], B: nrgba.Pix[i+2]})
	}
	return math.Round(sum / float64(n))
}

func clamp(v float64) uint8 {
	switch {
	case v <= 0:
		return 0
	case v >= 255:
		return 255
	default:
		return uint8(v + 0.5)
	}
}

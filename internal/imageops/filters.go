package imageops

import (
	"image"
	"sort"

	"github.com/disintegration/imaging"
)

// Kernels follow the classic 3x3 enhancement filters.
var filters = map[string]func(image.Image) image.Image{
	"blur": func(img image.Image) image.Image {
		return imaging.Blur(img, 1.5)
	},
	"sharpen": func(img image.Image) image.Image {
		return imaging.Convolve3x3(img, [9]float64{
			-2, -2, -2,
			-2, 32, -2,
			-2, -2, -2,
		}, &imaging.ConvolveOptions{Normalize: true})
	},
	"contour": func(img image.Image) image.Image {
		return imaging.Convolve3x3(img, [9]float64{
			-1, -1, -1,
			-1, 8, -1,
			-1, -1, -1,
		}, &imaging.ConvolveOptions{Bias: 255})
	},
	"edge_enhance": func(img image.Image) image.Image {
		return imaging.Convolve3x3(img, [9]float64{
			-1, -1, -1,
			-1, 10, -1,
			-1, -1, -1,
		}, &imaging.ConvolveOptions{Normalize: true})
	},
	"emboss": func(img image.Image) image.Image {
		return imaging.Convolve3x3(img, [9]float64{
			-1, 0, 0,
			0, 1, 0,
			0, 0, 0,
		}, &imaging.ConvolveOptions{Bias: 128})
	},
	"smooth": func(img image.Image) image.Image {
		return imaging.Convolve3x3(img, [9]float64{
			1, 1, 1,
			1, 5, 1,
			1, 1, 1,
		}, &imaging.ConvolveOptions{Normalize: true})
	},
	"detail": func(img image.Image) image.Image {
		return imaging.Convolve3x3(img, [9]float64{
			0, -1, 0,
			-1, 10, -1,
			0, -1, 0,
		}, &imaging.ConvolveOptions{Normalize: true})
	},
}

// Filters returns the supported filter names in sorted order.
func Filters() []string {
	names := make([]string, 0, len(filters))
	for name := range filters {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// IsKnownFilter reports whether name is a supported filter.
func IsKnownFilter(name string) bool {
	_, ok := filters[name]
	return ok
}

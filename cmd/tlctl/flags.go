package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/urfave/cli"

	"github.com/maauso/timelapse-editor/internal/geom"
	"github.com/maauso/timelapse-editor/internal/sequence"
)

// parseRect reads "left,top,right,bottom".
func parseRect(s string) (geom.Rect, error) {
	v, err := parseInts(s, ",", 4)
	if err != nil {
		return geom.Rect{}, fmt.Errorf("crop %q: %w", s, err)
	}
	r := geom.Rect{Left: v[0], Top: v[1], Right: v[2], Bottom: v[3]}
	return r, r.Validate()
}

// parseSize reads "WIDTHxHEIGHT".
func parseSize(s string) (geom.Size, error) {
	v, err := parseInts(strings.ToLower(s), "x", 2)
	if err != nil {
		return geom.Size{}, fmt.Errorf("resize %q: %w", s, err)
	}
	size := geom.Size{Width: v[0], Height: v[1]}
	return size, size.Validate()
}

func parseInts(s, sep string, n int) ([]int, error) {
	parts := strings.Split(s, sep)
	if len(parts) != n {
		return nil, fmt.Errorf("expected %d values separated by %q", n, sep)
	}
	out := make([]int, n)
	for i, p := range parts {
		v, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

// flagSource is the part of *cli.Context editSpec needs.
type flagSource interface {
	IsSet(name string) bool
	String(name string) string
	Float64(name string) float64
}

func editSpecFromFlags(c *cli.Context) (sequence.EditSpec, error) {
	return editSpec(c)
}

func editSpec(f flagSource) (sequence.EditSpec, error) {
	var spec sequence.EditSpec

	if f.IsSet("crop") {
		r, err := parseRect(f.String("crop"))
		if err != nil {
			return spec, err
		}
		spec.Crop = &r
	}
	for name, dst := range map[string]**float64{
		"brightness": &spec.Brightness,
		"contrast":   &spec.Contrast,
		"saturation": &spec.Saturation,
		"rotate":     &spec.Rotate,
	} {
		if f.IsSet(name) {
			v := f.Float64(name)
			*dst = &v
		}
	}
	if f.IsSet("resize") {
		size, err := parseSize(f.String("resize"))
		if err != nil {
			return spec, err
		}
		spec.Resize = &size
	}
	if f.IsSet("filter") {
		name := f.String("filter")
		spec.Filter = &name
	}

	return spec, spec.Validate()
}

// editedFramesDir returns explicit when set, otherwise the <sequence>_edited
// sibling that batch-edit writes by default, or "" when it does not exist.
func editedFramesDir(seqDir, explicit string) string {
	if explicit != "" {
		return explicit
	}
	dir := filepath.Join(filepath.Dir(seqDir), filepath.Base(seqDir)+"_edited")
	if info, err := os.Stat(dir); err == nil && info.IsDir() {
		return dir
	}
	return ""
}

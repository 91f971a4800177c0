package media

import "strings"

// Quality is a named encoder parameter bundle.
type Quality string

const (
	// QualityHigh encodes slowly at visually lossless quality.
	QualityHigh Quality = "high"
	// QualityMedium is the libx264 default trade-off.
	QualityMedium Quality = "medium"
	// QualityLow favors speed and size.
	QualityLow Quality = "low"
)

// Preset is the libx264 speed preset and constant rate factor for a Quality.
type Preset struct {
	Name string
	CRF  int
}

var presets = map[Quality]Preset{
	QualityHigh:   {Name: "slow", CRF: 18},
	QualityMedium: {Name: "medium", CRF: 23},
	QualityLow:    {Name: "fast", CRF: 28},
}

// ParseQuality maps a user supplied string to a Quality.
// Unknown values fall back to QualityMedium.
func ParseQuality(s string) Quality {
	q := Quality(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := presets[q]; ok {
		return q
	}
	return QualityMedium
}

// Preset returns the encoder preset for q, using the medium preset for unknown values.
func (q Quality) Preset() Preset {
	if p, ok := presets[q]; ok {
		return p
	}
	return presets[QualityMedium]
}

package wheel

import (
	"bytes"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Preset is a wheel configuration stored as YAML.
type Preset struct {
	Name      string        `yaml:"name"`
	Size      Size          `yaml:"size"`
	Rotations int           `yaml:"rotations"`
	Duration  time.Duration `yaml:"duration"`
	Segments  []Segment     `yaml:"segments"`
}

// SpinOptions returns the spin tuning carried by the preset.
func (p Preset) SpinOptions() SpinOptions {
	return SpinOptions{Rotations: p.Rotations, Duration: p.Duration}
}

// ParsePreset decodes and validates a YAML preset. Segments without an id
// get one, and a missing size falls back to DefaultSize.
func ParsePreset(data []byte) (Preset, error) {
	var p Preset
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&p); err != nil {
		return Preset{}, fmt.Errorf("wheel: decode preset: %w", err)
	}
	if p.Size == (Size{}) {
		p.Size = DefaultSize()
	}
	if !p.Size.Valid() {
		return Preset{}, fmt.Errorf("wheel: preset %q: size %dx%d too small", p.Name, p.Size.Width, p.Size.Height)
	}
	for i := range p.Segments {
		if p.Segments[i].ID == "" {
			p.Segments[i].ID = NewSegmentID()
		}
		if p.Segments[i].TextColor == "" {
			p.Segments[i].TextColor = DefaultLabelColor
		}
	}
	if err := Validate(p.Segments); err != nil {
		return Preset{}, fmt.Errorf("wheel: preset %q: %w", p.Name, err)
	}
	if err := p.SpinOptions().Validate(); err != nil {
		return Preset{}, fmt.Errorf("wheel: preset %q: %w", p.Name, err)
	}
	return p, nil
}

// LoadPreset reads a preset file.
func LoadPreset(path string) (Preset, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Preset{}, fmt.Errorf("wheel: read preset: %w", err)
	}
	return ParsePreset(data)
}

// DefaultPreset wraps DefaultSegments.
func DefaultPreset() Preset {
	return Preset{
		Name:      "default",
		Size:      DefaultSize(),
		Rotations: DefaultRotations,
		Duration:  DefaultDuration,
		Segments:  DefaultSegments(),
	}
}

// NewPreset captures a running wheel configuration. Zero spin options are
// written out as their defaults.
func NewPreset(name string, segments []Segment, size Size, o SpinOptions) Preset {
	o = o.withDefaults()
	return Preset{
		Name:      name,
		Size:      size,
		Rotations: o.Rotations,
		Duration:  o.Duration,
		Segments:  Clone(segments),
	}
}

// MarshalPreset encodes a preset back to YAML.
func MarshalPreset(p Preset) ([]byte, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(p); err != nil {
		return nil, fmt.Errorf("wheel: encode preset: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("wheel: encode preset: %w", err)
	}
	return buf.Bytes(), nil
}

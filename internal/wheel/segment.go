// Package wheel implements the weighted prize wheel: angle-to-segment resolution,
// the eased spin animation and the drawing geometry.
package wheel

import (
	"errors"
	"fmt"
	"math"

	"github.com/google/uuid"
)

// Segment is one wedge of the wheel.
type Segment struct {
	ID        string  `json:"id" yaml:"id"`
	Label     string  `json:"label" yaml:"label"`
	Color     string  `json:"color" yaml:"color"`
	Weight    float64 `json:"weight" yaml:"weight"`
	TextColor string  `json:"textColor,omitempty" yaml:"text_color,omitempty"`
}

// ConfigError reports an unusable wheel configuration.
type ConfigError struct {
	Index  int // -1 when the error is not tied to one segment
	Reason string
	Err    error
}

func (e *ConfigError) Error() string {
	reason := e.Reason
	if reason == "" && e.Err != nil {
		reason = e.Err.Error()
	}
	if e.Index < 0 {
		return "wheel: invalid configuration: " + reason
	}
	return fmt.Sprintf("wheel: invalid segment %d: %s", e.Index, reason)
}

func (e *ConfigError) Unwrap() error { return e.Err }

// ErrNoSegments is wrapped by the ConfigError returned for an empty wheel.
var ErrNoSegments = errors.New("wheel has no segments")

// IsConfigError reports whether err is (or wraps) a ConfigError.
func IsConfigError(err error) bool {
	var ce *ConfigError
	return errors.As(err, &ce)
}

// Validate checks the wheel invariants: at least one segment and every
// weight positive and finite.
func Validate(segments []Segment) error {
	if len(segments) == 0 {
		return &ConfigError{Index: -1, Err: ErrNoSegments}
	}
	for i, s := range segments {
		if math.IsNaN(s.Weight) || math.IsInf(s.Weight, 0) {
			return &ConfigError{Index: i, Reason: "weight must be finite"}
		}
		if s.Weight <= 0 {
			return &ConfigError{Index: i, Reason: fmt.Sprintf("weight must be > 0, got %g", s.Weight)}
		}
	}
	return nil
}

// TotalWeight sums the segment weights.
func TotalWeight(segments []Segment) float64 {
	total := 0.0
	for _, s := range segments {
		total += s.Weight
	}
	return total
}

// Span returns the angular width of a segment of the given weight.
func Span(weight, total float64) float64 {
	if total <= 0 {
		return 0
	}
	return 2 * math.Pi * weight / total
}

// Clone copies a segment list so callers cannot alias wheel state.
func Clone(segments []Segment) []Segment {
	if segments == nil {
		return nil
	}
	out := make([]Segment, len(segments))
	copy(out, segments)
	return out
}

// NewSegmentID returns a fresh segment identifier.
func NewSegmentID() string {
	return uuid.NewString()
}

// DefaultSegments is the configuration used when nothing has been saved yet.
func DefaultSegments() []Segment {
	return []Segment{
		{ID: "1", Label: "100x", Color: "#FF6B6B", Weight: 1, TextColor: "#FFFFFF"},
		{ID: "2", Label: "50x", Color: "#4ECDC4", Weight: 2, TextColor: "#FFFFFF"},
		{ID: "3", Label: "25x", Color: "#45B7D1", Weight: 3, TextColor: "#FFFFFF"},
		{ID: "4", Label: "10x", Color: "#96CEB4", Weight: 4, TextColor: "#FFFFFF"},
	}
}

package wheel

import (
	"errors"
	"math"
	"testing"
)

func TestValidate(t *testing.T) {
	tests := []struct {
		name      string
		segments  []Segment
		wantErr   bool
		wantIndex int
	}{
		{"defaults", DefaultSegments(), false, 0},
		{"fractional weight", []Segment{{Weight: 0.25}}, false, 0},
		{"empty", nil, true, -1},
		{"zero weight", []Segment{{Weight: 1}, {Weight: 0}}, true, 1},
		{"negative weight", []Segment{{Weight: -3}}, true, 0},
		{"NaN weight", []Segment{{Weight: 1}, {Weight: 2}, {Weight: math.NaN()}}, true, 2},
		{"infinite weight", []Segment{{Weight: math.Inf(1)}}, true, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate(tt.segments)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err == nil {
				return
			}
			var ce *ConfigError
			if !errors.As(err, &ce) {
				t.Fatalf("error %T is not a ConfigError", err)
			}
			if ce.Index != tt.wantIndex {
				t.Errorf("Index = %d, want %d", ce.Index, tt.wantIndex)
			}
		})
	}
}

func TestSpan(t *testing.T) {
	if got := Span(1, 4); got != math.Pi/2 {
		t.Errorf("Span(1,4) = %v, want π/2", got)
	}
	if got := Span(1, 0); got != 0 {
		t.Errorf("Span with zero total = %v, want 0", got)
	}
}

func TestCloneDoesNotAlias(t *testing.T) {
	orig := DefaultSegments()
	cp := Clone(orig)
	cp[0].Label = "changed"
	if orig[0].Label == "changed" {
		t.Error("Clone shares backing array")
	}
	if Clone(nil) != nil {
		t.Error("Clone(nil) should be nil")
	}
}

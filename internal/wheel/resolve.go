package wheel

import "math"

const (
	fullTurn = 2 * math.Pi

	// PointerOffset rotates the lookup so the pointer drawn at the top of the
	// wheel lines up with the zero-angle reference.
	PointerOffset = math.Pi / 2
)

// NormalizeAngle maps any angle into [0, 2π).
func NormalizeAngle(angle float64) float64 {
	n := math.Mod(math.Mod(angle, fullTurn)+fullTurn, fullTurn)
	if n >= fullTurn {
		return 0
	}
	return n
}

// AdjustedAngle is the normalised angle shifted by the pointer offset.
func AdjustedAngle(angle float64) float64 {
	return NormalizeAngle(NormalizeAngle(angle) + PointerOffset)
}

// ResolveIndex returns the index of the segment under the pointer at the
// given rotation. It returns -1 only when segments is empty.
func ResolveIndex(angle float64, segments []Segment) int {
	return indexAtAdjusted(AdjustedAngle(angle), segments)
}

// ResolveSegment returns the segment under the pointer at the given rotation.
// The result depends only on its inputs. An empty list yields the zero Segment.
func ResolveSegment(angle float64, segments []Segment) Segment {
	i := ResolveIndex(angle, segments)
	if i < 0 {
		return Segment{}
	}
	return segments[i]
}

// indexAtAdjusted walks the segments in order; each owns the half-open
// interval [start, start+span).
func indexAtAdjusted(adjusted float64, segments []Segment) int {
	if len(segments) == 0 {
		return -1
	}
	total := TotalWeight(segments)
	current := 0.0
	for i, s := range segments {
		next := current + Span(s.Weight, total)
		if adjusted >= current && adjusted < next {
			return i
		}
		current = next
	}
	// Rounding can leave a sliver just below 2π uncovered.
	return 0
}

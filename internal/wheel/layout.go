package wheel

import "math"

// Drawing constants shared with the browser canvas.
const (
	DefaultWidth  = 500
	DefaultHeight = 500

	rimMargin   = 20
	labelInset  = 30
	pointerTop  = 40
	pointerSize = 20

	LabelFont         = "bold 24px Arial"
	StrokeColor       = "#FFFFFF"
	StrokeWidth       = 2
	PointerColor      = "#FF0000"
	PointerShade      = "#CC0000"
	DefaultLabelColor = "#FFFFFF"
)

// Size is the drawing surface in pixels.
type Size struct {
	Width  int `json:"width" yaml:"width"`
	Height int `json:"height" yaml:"height"`
}

// DefaultSize is used until a size has been saved.
func DefaultSize() Size {
	return Size{Width: DefaultWidth, Height: DefaultHeight}
}

// Valid reports whether the surface can hold a wheel.
func (s Size) Valid() bool {
	return s.Width > 2*rimMargin && s.Height > 2*rimMargin
}

// Point is a canvas coordinate.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Wedge is the geometry of one segment at a given rotation.
type Wedge struct {
	Segment    Segment `json:"segment"`
	StartAngle float64 `json:"startAngle"`
	EndAngle   float64 `json:"endAngle"`
	MidAngle   float64 `json:"midAngle"`
	// LabelFlipped means the label is rotated a further 180° so it reads
	// upright on the left half of the wheel.
	LabelFlipped bool    `json:"labelFlipped"`
	LabelAlign   string  `json:"labelAlign"`
	LabelX       float64 `json:"labelX"`
	LabelColor   string  `json:"labelColor"`
}

// Style is the paint used for wedge outlines and the pointer.
type Style struct {
	StrokeColor  string  `json:"strokeColor"`
	StrokeWidth  float64 `json:"strokeWidth"`
	PointerColor string  `json:"pointerColor"`
	PointerShade string  `json:"pointerShade"`
}

// DefaultStyle is the paint of every layout.
func DefaultStyle() Style {
	return Style{
		StrokeColor:  StrokeColor,
		StrokeWidth:  StrokeWidth,
		PointerColor: PointerColor,
		PointerShade: PointerShade,
	}
}

// Layout is everything needed to draw one frame.
type Layout struct {
	Size     Size     `json:"size"`
	Center   Point    `json:"center"`
	Radius   float64  `json:"radius"`
	Rotation float64  `json:"rotation"`
	Wedges   []Wedge  `json:"wedges"`
	Pointer  [3]Point `json:"pointer"`
	Font     string   `json:"font"`
	Style    Style    `json:"style"`
}

// ComputeLayout lays the segments out as pie wedges starting at
// rotation+π/2. Label positions are along the wedge's own rotated x axis.
func ComputeLayout(segments []Segment, rotation float64, size Size) Layout {
	cx := float64(size.Width) / 2
	cy := float64(size.Height) / 2
	radius := math.Max(math.Min(cx, cy)-rimMargin, 0)

	l := Layout{
		Size:     size,
		Center:   Point{X: cx, Y: cy},
		Radius:   radius,
		Rotation: rotation,
		Wedges:   make([]Wedge, 0, len(segments)),
		Pointer: [3]Point{
			{X: cx - pointerSize, Y: pointerTop},
			{X: cx, Y: pointerTop + pointerSize*1.5},
			{X: cx + pointerSize, Y: pointerTop},
		},
		Font:  LabelFont,
		Style: DefaultStyle(),
	}

	total := TotalWeight(segments)
	start := rotation + PointerOffset
	for _, s := range segments {
		span := Span(s.Weight, total)
		mid := start + span/2
		w := Wedge{
			Segment:    s,
			StartAngle: start,
			EndAngle:   start + span,
			MidAngle:   mid,
			LabelAlign: "right",
			LabelX:     radius - labelInset,
			LabelColor: s.TextColor,
		}
		if w.LabelColor == "" {
			w.LabelColor = DefaultLabelColor
		}
		if m := NormalizeAngle(mid); m > math.Pi/2 && m < 3*math.Pi/2 {
			w.LabelFlipped = true
			w.LabelAlign = "left"
			w.LabelX = -radius + labelInset
		}
		l.Wedges = append(l.Wedges, w)
		start += span
	}
	return l
}

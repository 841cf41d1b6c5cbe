package wheel

import (
	"errors"
	"fmt"
	"math"
	"time"
)

const (
	// DefaultRotations is the number of full turns added to every spin.
	DefaultRotations = 8
	// MinRotations keeps a spin from settling after only a short sweep.
	MinRotations = 5
	// DefaultDuration is how long the eased animation runs.
	DefaultDuration = 5 * time.Second
)

// ErrSpinning is returned when a spin or an edit is requested mid-spin.
var ErrSpinning = errors.New("wheel: spin in progress")

// State is the explicitly owned wheel state. It is passed and returned by
// value; the segment slice is replaced on edit, never mutated in place.
type State struct {
	Segments []Segment `json:"segments"`
	Rotation float64   `json:"rotation"`
	Spinning bool      `json:"spinning"`
	Plan     *Plan     `json:"plan,omitempty"`
}

// Plan describes the spin currently in flight.
type Plan struct {
	StartRotation  float64       `json:"startRotation"`
	TargetRotation float64       `json:"targetRotation"`
	Fraction       float64       `json:"fraction"`
	Rotations      int           `json:"rotations"`
	StartedAt      time.Time     `json:"startedAt"`
	Duration       time.Duration `json:"duration"`
}

// SpinOptions tunes a single spin. Zero values fall back to the defaults.
type SpinOptions struct {
	Rotations int
	Duration  time.Duration
}

func (o SpinOptions) withDefaults() SpinOptions {
	if o.Rotations == 0 {
		o.Rotations = DefaultRotations
	}
	if o.Duration == 0 {
		o.Duration = DefaultDuration
	}
	return o
}

// Validate rejects options that would produce a visibly short spin.
func (o SpinOptions) Validate() error {
	o = o.withDefaults()
	if o.Rotations < MinRotations {
		return fmt.Errorf("wheel: rotations must be >= %d, got %d", MinRotations, o.Rotations)
	}
	if o.Duration < 0 {
		return fmt.Errorf("wheel: duration must not be negative, got %s", o.Duration)
	}
	return nil
}

// Frame is one animation sample handed to the renderer.
type Frame struct {
	Rotation float64  `json:"rotation"`
	Progress float64  `json:"progress"`
	Done     bool     `json:"done"`
	Result   *Segment `json:"result,omitempty"`
}

// NewState validates segments and returns an idle wheel at rotation zero.
func NewState(segments []Segment) (State, error) {
	if err := Validate(segments); err != nil {
		return State{}, err
	}
	return State{Segments: Clone(segments)}, nil
}

// WithSegments replaces the configuration. Edits are refused while spinning.
func WithSegments(st State, segments []Segment) (State, error) {
	if st.Spinning {
		return st, ErrSpinning
	}
	if err := Validate(segments); err != nil {
		return st, err
	}
	st.Segments = Clone(segments)
	return st, nil
}

// Start moves an idle wheel into the spinning state. fraction is a uniform
// draw from [0, 1) that becomes the random landing offset fraction·2π.
// A wheel that is already spinning is returned unchanged with ErrSpinning.
func Start(st State, now time.Time, fraction float64, opts SpinOptions) (State, error) {
	if st.Spinning {
		return st, ErrSpinning
	}
	if err := Validate(st.Segments); err != nil {
		return st, err
	}
	if err := opts.Validate(); err != nil {
		return st, err
	}
	opts = opts.withDefaults()
	fraction = foldFraction(fraction)

	st.Spinning = true
	st.Plan = &Plan{
		StartRotation:  st.Rotation,
		TargetRotation: TargetRotation(st.Rotation, fraction, opts.Rotations),
		Fraction:       fraction,
		Rotations:      opts.Rotations,
		StartedAt:      now,
		Duration:       opts.Duration,
	}
	return st, nil
}

// Advance samples the animation at now. It returns the next state, whether
// the spin finished on this sample and, when it did, the winning segment
// resolved from the final rotation. Idle wheels are returned unchanged.
func Advance(st State, now time.Time) (State, bool, *Segment) {
	if !st.Spinning || st.Plan == nil {
		return st, false, nil
	}
	plan := st.Plan
	p := plan.progress(now)
	st.Rotation = plan.StartRotation + (plan.TargetRotation-plan.StartRotation)*EaseOutCubic(p)
	if p < 1 {
		return st, false, nil
	}

	st.Spinning = false
	st.Plan = nil
	won := ResolveSegment(st.Rotation, st.Segments)
	return st, true, &won
}

// Sample is Advance packaged as a Frame.
func Sample(st State, now time.Time) (State, Frame) {
	progress := Progress(st, now)
	next, done, won := Advance(st, now)
	if done {
		progress = 1
	}
	return next, Frame{Rotation: next.Rotation, Progress: progress, Done: done, Result: won}
}

// Progress reports the linear progress of the spin in [0, 1]. Idle wheels
// report zero.
func Progress(st State, now time.Time) float64 {
	if !st.Spinning || st.Plan == nil {
		return 0
	}
	return st.Plan.progress(now)
}

func (p *Plan) progress(now time.Time) float64 {
	if p.Duration <= 0 {
		return 1
	}
	elapsed := now.Sub(p.StartedAt)
	if elapsed <= 0 {
		return 0
	}
	return math.Min(float64(elapsed)/float64(p.Duration), 1)
}

// EaseOutCubic is 1-(1-t)^3, clamped to [0, 1].
func EaseOutCubic(t float64) float64 {
	if t <= 0 {
		return 0
	}
	if t >= 1 {
		return 1
	}
	u := 1 - t
	return 1 - u*u*u
}

// TargetRotation is where a spin starting at start comes to rest.
func TargetRotation(start, fraction float64, rotations int) float64 {
	return start + float64(rotations)*fullTurn + foldFraction(fraction)*fullTurn
}

// Replay recomputes the resting rotation and winner of a finished spin from
// its recorded inputs, using the same arithmetic as Advance.
func Replay(segments []Segment, start, fraction float64, rotations int) (float64, Segment) {
	target := TargetRotation(start, fraction, rotations)
	final := start + (target-start)*EaseOutCubic(1)
	return final, ResolveSegment(final, segments)
}

func foldFraction(f float64) float64 {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}
	f = math.Mod(f, 1)
	if f < 0 {
		f += 1
	}
	if f >= 1 {
		return 0
	}
	return f
}

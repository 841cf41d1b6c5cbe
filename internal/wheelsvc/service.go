// Package wheelsvc owns the live prize wheel: its persisted configuration,
// the spin in flight, frame broadcasting and the spin history.
package wheelsvc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"
	"golang.org/x/exp/slog"

	"github.com/MJE43/slot-tracker-go/internal/lib/logger"
	"github.com/MJE43/slot-tracker-go/internal/lib/logger/sl"
	"github.com/MJE43/slot-tracker-go/internal/rng"
	"github.com/MJE43/slot-tracker-go/internal/store"
	"github.com/MJE43/slot-tracker-go/internal/wheel"
)

// Key-value slots used by the service.
const (
	KeySegments = "wheel-segments"
	KeySize     = "wheel-size"
	KeySound    = "wheel-sound"
	KeyNonce    = "wheel-nonce"
)

var (
	ErrSegmentNotFound = errors.New("wheelsvc: segment not found")
	ErrNotSeeded       = errors.New("wheelsvc: spin was not seeded")
	ErrNoStore         = errors.New("wheelsvc: no store configured")
	ErrInvalidSize     = errors.New("wheelsvc: invalid canvas size")
)

// Store is the persistence the service needs.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Put(ctx context.Context, key string, value []byte) error
	InsertSpins(ctx context.Context, spins []store.SpinRecord) error
	GetSpin(ctx context.Context, id string) (*store.SpinRecord, error)
	ListSpins(ctx context.Context, page, perPage int) (*store.SpinPage, error)
	ClearSpins(ctx context.Context) (int64, error)
}

// Options configures a Service. Only Store may be nil, which keeps
// everything in memory and disables history.
type Options struct {
	Store     Store
	Source    rng.Source
	Cues      CuePlayer
	Logger    *slog.Logger
	Clock     func() time.Time
	Spin      wheel.SpinOptions
	Sound     bool
	FlushSize int
	// Preset seeds segments and size when nothing is stored yet.
	Preset *wheel.Preset
}

// resumable is a seeded source whose position survives restarts.
type resumable interface {
	ServerSeedHash() string
	ClientSeed() string
	Resume(nonce uint64)
}

// nonceMark is the next unused nonce for one seed pair.
type nonceMark struct {
	ServerSeedHash string `json:"serverSeedHash"`
	ClientSeed     string `json:"clientSeed"`
	Next           uint64 `json:"next"`
}

// SpinResult describes a finished spin.
type SpinResult struct {
	ID            string        `json:"id"`
	Winner        wheel.Segment `json:"winner"`
	FinalRotation float64       `json:"finalRotation"`
	Fraction      float64       `json:"fraction"`
	Rotations     int           `json:"rotations"`
	Proof         *rng.Proof    `json:"proof,omitempty"`
	StartedAt     time.Time     `json:"startedAt"`
	FinishedAt    time.Time     `json:"finishedAt"`
}

// View is a snapshot for the presentation layer.
type View struct {
	Segments []wheel.Segment `json:"segments"`
	Rotation float64         `json:"rotation"`
	Spinning bool            `json:"spinning"`
	Progress float64         `json:"progress"`
	Plan     *wheel.Plan     `json:"plan,omitempty"`
	Size     wheel.Size      `json:"size"`
	Sound    bool            `json:"sound"`
	Last     *SpinResult     `json:"last,omitempty"`
}

// Started is returned when a spin begins.
type Started struct {
	Plan  wheel.Plan `json:"plan"`
	Proof *rng.Proof `json:"proof,omitempty"`
}

type Service struct {
	store  Store
	source rng.Source
	cues   CuePlayer
	log    *slog.Logger
	now    func() time.Time
	opts   wheel.SpinOptions
	rec    *recorder

	mu    sync.Mutex
	st    wheel.State
	size  wheel.Size
	sound bool
	proof *rng.Proof
	last  *SpinResult

	subMu   sync.Mutex
	subs    map[int]chan Event
	nextSub int
}

// New builds the service and loads the stored configuration.
func New(ctx context.Context, o Options) (*Service, error) {
	const op = "wheelsvc.New"

	if o.Source == nil {
		o.Source = rng.CryptoSource{}
	}
	if o.Logger == nil {
		o.Logger = logger.Discard()
	}
	if o.Clock == nil {
		o.Clock = time.Now
	}
	if err := o.Spin.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	s := &Service{
		store:  o.Store,
		source: o.Source,
		cues:   o.Cues,
		log:    o.Logger.With(sl.Op(op)),
		now:    o.Clock,
		opts:   o.Spin,
		size:   wheel.DefaultSize(),
		sound:  o.Sound,
		subs:   make(map[int]chan Event),
	}
	if o.Store != nil {
		s.rec = newRecorder(o.Store, s.log, o.FlushSize)
	}

	segments := wheel.DefaultSegments()
	if o.Preset != nil {
		segments = wheel.Clone(o.Preset.Segments)
		if o.Preset.Size.Valid() {
			s.size = o.Preset.Size
		}
	}

	if o.Store != nil {
		if stored, ok := s.loadSegments(ctx); ok {
			segments = stored
		}
		var size wheel.Size
		if s.loadJSON(ctx, KeySize, &size) && size.Valid() {
			s.size = size
		}
		var sound bool
		if s.loadJSON(ctx, KeySound, &sound) {
			s.sound = sound
		}
		s.resumeNonce(ctx)
	}

	st, err := wheel.NewState(segments)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	s.st = st
	return s, nil
}

// resumeNonce skips the seeded source past nonces a previous run already
// used. A mark left by another seed pair is ignored.
func (s *Service) resumeNonce(ctx context.Context) {
	src, ok := s.source.(resumable)
	if !ok {
		return
	}
	var mark nonceMark
	if !s.loadJSON(ctx, KeyNonce, &mark) {
		return
	}
	if mark.ServerSeedHash != src.ServerSeedHash() || mark.ClientSeed != src.ClientSeed() {
		return
	}
	src.Resume(mark.Next)
	s.log.Info("seeded nonce resumed", slog.Uint64("next", mark.Next))
}

func (s *Service) loadSegments(ctx context.Context) ([]wheel.Segment, bool) {
	var segments []wheel.Segment
	if !s.loadJSON(ctx, KeySegments, &segments) {
		return nil, false
	}
	if err := wheel.Validate(segments); err != nil {
		s.log.Warn("stored wheel segments invalid, using defaults", sl.Err(err))
		return nil, false
	}
	return segments, true
}

// loadJSON reports whether key existed and decoded cleanly.
func (s *Service) loadJSON(ctx context.Context, key string, v any) bool {
	data, err := s.store.Get(ctx, key)
	if errors.Is(err, store.ErrNotFound) {
		return false
	}
	if err != nil {
		s.log.Warn("load wheel setting", slog.String("key", key), sl.Err(err))
		return false
	}
	if err := json.Unmarshal(data, v); err != nil {
		s.log.Warn("decode wheel setting", slog.String("key", key), sl.Err(err))
		return false
	}
	return true
}

func (s *Service) save(ctx context.Context, key string, v any) error {
	if s.store == nil {
		return nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("wheelsvc: encode %s: %w", key, err)
	}
	if err := s.store.Put(ctx, key, data); err != nil {
		return fmt.Errorf("wheelsvc: save %s: %w", key, err)
	}
	return nil
}

// View returns the current snapshot.
func (s *Service) View() View {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.viewLocked()
}

func (s *Service) viewLocked() View {
	v := View{
		Segments: wheel.Clone(s.st.Segments),
		Rotation: s.st.Rotation,
		Spinning: s.st.Spinning,
		Progress: wheel.Progress(s.st, s.now()),
		Size:     s.size,
		Sound:    s.sound,
	}
	if s.st.Plan != nil {
		p := *s.st.Plan
		v.Plan = &p
	}
	if s.last != nil {
		r := *s.last
		v.Last = &r
	}
	return v
}

// SetSegments replaces the whole configuration.
func (s *Service) SetSegments(ctx context.Context, segments []wheel.Segment) (View, error) {
	return s.edit(ctx, func(cur []wheel.Segment) ([]wheel.Segment, error) {
		next := wheel.Clone(segments)
		for i := range next {
			if next[i].ID == "" {
				next[i].ID = wheel.NewSegmentID()
			}
		}
		return next, nil
	})
}

// AddSegment appends a weight-1 segment labelled "New" in a random color.
func (s *Service) AddSegment(ctx context.Context) (wheel.Segment, error) {
	seg := wheel.Segment{
		ID:        wheel.NewSegmentID(),
		Label:     "New",
		Color:     randomColor(),
		Weight:    1,
		TextColor: wheel.DefaultLabelColor,
	}
	_, err := s.edit(ctx, func(cur []wheel.Segment) ([]wheel.Segment, error) {
		return append(cur, seg), nil
	})
	if err != nil {
		return wheel.Segment{}, err
	}
	return seg, nil
}

// SegmentUpdate carries segment edits. Nil fields are unchanged.
type SegmentUpdate struct {
	Label     *string
	Color     *string
	Weight    *float64
	TextColor *string
}

// UpdateSegment edits one segment in place.
func (s *Service) UpdateSegment(ctx context.Context, id string, u SegmentUpdate) (wheel.Segment, error) {
	var out wheel.Segment
	_, err := s.edit(ctx, func(cur []wheel.Segment) ([]wheel.Segment, error) {
		for i := range cur {
			if cur[i].ID != id {
				continue
			}
			if u.Label != nil {
				cur[i].Label = *u.Label
			}
			if u.Color != nil {
				cur[i].Color = *u.Color
			}
			if u.Weight != nil {
				cur[i].Weight = *u.Weight
			}
			if u.TextColor != nil {
				cur[i].TextColor = *u.TextColor
			}
			out = cur[i]
			return cur, nil
		}
		return nil, fmt.Errorf("%w: %s", ErrSegmentNotFound, id)
	})
	return out, err
}

// DeleteSegment removes one segment. Removing the last one is a
// configuration error.
func (s *Service) DeleteSegment(ctx context.Context, id string) error {
	_, err := s.edit(ctx, func(cur []wheel.Segment) ([]wheel.Segment, error) {
		for i := range cur {
			if cur[i].ID == id {
				return append(cur[:i], cur[i+1:]...), nil
			}
		}
		return nil, fmt.Errorf("%w: %s", ErrSegmentNotFound, id)
	})
	return err
}

// edit runs fn on a copy of the segments and commits the result if it
// validates and the wheel is idle.
func (s *Service) edit(ctx context.Context, fn func([]wheel.Segment) ([]wheel.Segment, error)) (View, error) {
	s.mu.Lock()
	if s.st.Spinning {
		s.mu.Unlock()
		return View{}, wheel.ErrSpinning
	}
	next, err := fn(wheel.Clone(s.st.Segments))
	if err != nil {
		s.mu.Unlock()
		return View{}, err
	}
	st, err := wheel.WithSegments(s.st, next)
	if err != nil {
		s.mu.Unlock()
		return View{}, err
	}
	if err := s.save(ctx, KeySegments, st.Segments); err != nil {
		s.mu.Unlock()
		return View{}, err
	}
	s.st = st
	v := s.viewLocked()
	s.mu.Unlock()

	s.broadcast(Event{Type: EventConfig, View: &v})
	return v, nil
}

// SetSize changes the canvas size.
func (s *Service) SetSize(ctx context.Context, size wheel.Size) (View, error) {
	if !size.Valid() {
		return View{}, fmt.Errorf("%w: %dx%d", ErrInvalidSize, size.Width, size.Height)
	}
	s.mu.Lock()
	if err := s.save(ctx, KeySize, size); err != nil {
		s.mu.Unlock()
		return View{}, err
	}
	s.size = size
	v := s.viewLocked()
	s.mu.Unlock()

	s.broadcast(Event{Type: EventConfig, View: &v})
	return v, nil
}

// SetSound toggles the audio cues.
func (s *Service) SetSound(ctx context.Context, on bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.save(ctx, KeySound, on); err != nil {
		return err
	}
	s.sound = on
	return nil
}

// Spin starts a spin. Calling it while a spin is in flight returns
// wheel.ErrSpinning and changes nothing.
func (s *Service) Spin(ctx context.Context) (Started, error) {
	s.mu.Lock()
	if s.st.Spinning {
		s.mu.Unlock()
		return Started{}, wheel.ErrSpinning
	}
	draw, err := s.source.Next()
	if err != nil {
		s.mu.Unlock()
		return Started{}, fmt.Errorf("wheelsvc: draw offset: %w", err)
	}
	if p := draw.Proof; p != nil {
		mark := nonceMark{ServerSeedHash: p.ServerSeedHash, ClientSeed: p.ClientSeed, Next: p.Nonce + 1}
		if err := s.save(ctx, KeyNonce, mark); err != nil {
			s.mu.Unlock()
			return Started{}, err
		}
	}
	now := s.now()
	st, err := wheel.Start(s.st, now, draw.Value, s.opts)
	if err != nil {
		s.mu.Unlock()
		return Started{}, err
	}
	s.st = st
	s.proof = draw.Proof
	out := Started{Plan: *st.Plan, Proof: draw.Proof}
	sound := s.sound
	frame := wheel.Frame{Rotation: st.Rotation}
	s.mu.Unlock()

	s.log.Info("spin started",
		slog.Float64("fraction", out.Plan.Fraction),
		slog.Float64("target", out.Plan.TargetRotation),
	)
	s.cue(ctx, CueSpinStart, sound)
	s.broadcast(Event{Type: EventFrame, Frame: &frame})
	return out, nil
}

// Advance samples the animation at the service clock and broadcasts the
// frame. The sample that completes a spin also records and broadcasts the
// result.
func (s *Service) Advance(ctx context.Context) wheel.Frame {
	s.mu.Lock()
	if !s.st.Spinning {
		f := wheel.Frame{Rotation: s.st.Rotation}
		s.mu.Unlock()
		return f
	}
	plan := *s.st.Plan
	now := s.now()
	st, frame := wheel.Sample(s.st, now)
	s.st = st

	var result *SpinResult
	if frame.Done {
		result = &SpinResult{
			ID:            uuid.NewString(),
			Winner:        *frame.Result,
			FinalRotation: frame.Rotation,
			Fraction:      plan.Fraction,
			Rotations:     plan.Rotations,
			Proof:         s.proof,
			StartedAt:     plan.StartedAt,
			FinishedAt:    now,
		}
		s.last = result
		s.proof = nil
		s.recordLocked(plan, st.Segments, result)
	}
	sound := s.sound
	s.mu.Unlock()

	s.broadcast(Event{Type: EventFrame, Frame: &frame})
	if result != nil {
		r := *result
		s.log.Info("spin finished", slog.String("id", r.ID), slog.String("winner", r.Winner.Label))
		s.broadcast(Event{Type: EventResult, Result: &r})
		s.cue(ctx, CueSpinEnd, sound)
	}
	return frame
}

func (s *Service) recordLocked(plan wheel.Plan, segments []wheel.Segment, r *SpinResult) {
	if s.rec == nil {
		return
	}
	segJSON, err := json.Marshal(segments)
	if err != nil {
		s.log.Error("encode spin segments", sl.Err(err))
		return
	}
	rec := store.SpinRecord{
		ID:            r.ID,
		Segments:      segJSON,
		StartRotation: plan.StartRotation,
		Fraction:      plan.Fraction,
		Rotations:     plan.Rotations,
		FinalRotation: r.FinalRotation,
		WinnerID:      r.Winner.ID,
		WinnerLabel:   r.Winner.Label,
		StartedAt:     r.StartedAt,
		FinishedAt:    r.FinishedAt,
	}
	if r.Proof != nil {
		nonce := r.Proof.Nonce
		rec.ServerSeedHash = r.Proof.ServerSeedHash
		rec.ClientSeed = r.Proof.ClientSeed
		rec.Nonce = &nonce
	}
	s.rec.record(rec)
}

// Layout returns the drawing geometry at the current rotation.
func (s *Service) Layout() wheel.Layout {
	s.mu.Lock()
	defer s.mu.Unlock()
	return wheel.ComputeLayout(s.st.Segments, s.st.Rotation, s.size)
}

// Preset snapshots the current segments, size and spin tuning.
func (s *Service) Preset(name string) wheel.Preset {
	s.mu.Lock()
	defer s.mu.Unlock()
	return wheel.NewPreset(name, s.st.Segments, s.size, s.opts)
}

// Run drives Advance every interval until ctx is done.
func (s *Service) Run(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		interval = 16 * time.Millisecond
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			s.mu.Lock()
			spinning := s.st.Spinning
			s.mu.Unlock()
			if spinning {
				s.Advance(ctx)
			}
		}
	}
}

// History lists recorded spins, newest first.
func (s *Service) History(ctx context.Context, page, perPage int) (*store.SpinPage, error) {
	if s.store == nil {
		return nil, ErrNoStore
	}
	if err := s.rec.flush(); err != nil {
		s.log.Warn("flush before history", sl.Err(err))
	}
	return s.store.ListSpins(ctx, page, perPage)
}

// ClearHistory deletes every recorded spin, including ones still buffered.
func (s *Service) ClearHistory(ctx context.Context) (int64, error) {
	if s.store == nil {
		return 0, ErrNoStore
	}
	if err := s.rec.flush(); err != nil {
		s.log.Warn("flush before clear", sl.Err(err))
	}
	n, err := s.store.ClearSpins(ctx)
	if err != nil {
		return 0, err
	}
	s.log.Info("spin history cleared", slog.Int64("deleted", n))
	return n, nil
}

// Verification is the outcome of replaying a seeded spin.
type Verification struct {
	SpinID        string        `json:"spinId"`
	Fraction      float64       `json:"fraction"`
	FinalRotation float64       `json:"finalRotation"`
	Winner        wheel.Segment `json:"winner"`
	Recorded      string        `json:"recordedWinnerId"`
	Valid         bool          `json:"valid"`
}

// Verify recomputes a recorded spin from the revealed server seed.
func (s *Service) Verify(ctx context.Context, spinID, serverSeed string) (Verification, error) {
	if s.store == nil {
		return Verification{}, ErrNoStore
	}
	if err := s.rec.flush(); err != nil {
		s.log.Warn("flush before verify", sl.Err(err))
	}
	rec, err := s.store.GetSpin(ctx, spinID)
	if err != nil {
		return Verification{}, err
	}
	if rec.Nonce == nil || rec.ServerSeedHash == "" {
		return Verification{}, fmt.Errorf("%w: %s", ErrNotSeeded, spinID)
	}
	fraction, err := rng.VerifyDraw(serverSeed, rng.Proof{
		ServerSeedHash: rec.ServerSeedHash,
		ClientSeed:     rec.ClientSeed,
		Nonce:          *rec.Nonce,
	})
	if err != nil {
		return Verification{}, err
	}
	var segments []wheel.Segment
	if err := json.Unmarshal(rec.Segments, &segments); err != nil {
		return Verification{}, fmt.Errorf("wheelsvc: decode spin segments: %w", err)
	}
	final, winner := wheel.Replay(segments, rec.StartRotation, fraction, rec.Rotations)
	return Verification{
		SpinID:        rec.ID,
		Fraction:      fraction,
		FinalRotation: final,
		Winner:        winner,
		Recorded:      rec.WinnerID,
		Valid:         winner.ID == rec.WinnerID && math.Abs(fraction-rec.Fraction) < 1e-12,
	}, nil
}

// Close flushes pending history and disconnects subscribers.
func (s *Service) Close() error {
	var err error
	if s.rec != nil {
		err = multierr.Append(err, s.rec.flush())
	}
	s.closeSubscribers()
	return err
}

func randomColor() string {
	return fmt.Sprintf("#%06X", rand.IntN(0x1000000))
}

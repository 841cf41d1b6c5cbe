package wheelsvc

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/MJE43/slot-tracker-go/internal/rng"
	"github.com/MJE43/slot-tracker-go/internal/store"
	"github.com/MJE43/slot-tracker-go/internal/wheel"
)

var t0 = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Set(t time.Time) {
	c.mu.Lock()
	c.now = t
	c.mu.Unlock()
}

type fixedSource float64

func (f fixedSource) Next() (rng.Draw, error) { return rng.Draw{Value: float64(f)}, nil }

type failingSource struct{}

func (failingSource) Next() (rng.Draw, error) { return rng.Draw{}, errors.New("no entropy") }

type cueLog struct {
	mu   sync.Mutex
	cues []Cue
	err  error
}

func (c *cueLog) Play(_ context.Context, cue Cue) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cues = append(c.cues, cue)
	return c.err
}

func testStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.Open(filepath.Join(t.TempDir(), "wheel.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := s.Migrate(context.Background()); err != nil {
		t.Fatalf("Migrate: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func newService(t *testing.T, o Options) (*Service, *fakeClock) {
	t.Helper()
	clk := &fakeClock{now: t0}
	o.Clock = clk.Now
	if o.Source == nil {
		o.Source = fixedSource(0.25)
	}
	svc, err := New(context.Background(), o)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { svc.Close() })
	return svc, clk
}

func TestNewDefaults(t *testing.T) {
	svc, _ := newService(t, Options{})
	v := svc.View()
	if len(v.Segments) != 4 || v.Size != wheel.DefaultSize() || v.Spinning {
		t.Errorf("view = %+v", v)
	}
	if _, err := svc.History(context.Background(), 1, 10); !errors.Is(err, ErrNoStore) {
		t.Errorf("History without store err = %v", err)
	}
}

func TestNewFromPreset(t *testing.T) {
	p := wheel.Preset{
		Size:     wheel.Size{Width: 300, Height: 200},
		Segments: []wheel.Segment{{ID: "a", Label: "A", Weight: 1}},
	}
	svc, _ := newService(t, Options{Preset: &p})
	v := svc.View()
	if len(v.Segments) != 1 || v.Size.Width != 300 {
		t.Errorf("view = %+v", v)
	}
}

func TestSpinLifecycle(t *testing.T) {
	ctx := context.Background()
	cues := &cueLog{}
	svc, clk := newService(t, Options{Cues: cues, Sound: true})
	events, cancel := svc.Subscribe(64)
	defer cancel()

	started, err := svc.Spin(ctx)
	if err != nil {
		t.Fatalf("Spin: %v", err)
	}
	if started.Plan.Fraction != 0.25 || started.Plan.Rotations != wheel.DefaultRotations {
		t.Errorf("plan = %+v", started.Plan)
	}

	before := svc.View()
	if _, err := svc.Spin(ctx); !errors.Is(err, wheel.ErrSpinning) {
		t.Errorf("second Spin err = %v", err)
	}
	if after := svc.View(); after.Plan.TargetRotation != before.Plan.TargetRotation {
		t.Error("rejected spin changed the plan")
	}
	if _, err := svc.AddSegment(ctx); !errors.Is(err, wheel.ErrSpinning) {
		t.Errorf("edit while spinning err = %v", err)
	}

	clk.Set(t0.Add(wheel.DefaultDuration / 2))
	mid := svc.Advance(ctx)
	if mid.Done || mid.Progress != 0.5 {
		t.Errorf("mid frame = %+v", mid)
	}
	if mid.Rotation <= 0 || mid.Rotation >= started.Plan.TargetRotation {
		t.Errorf("mid rotation %v outside (0, %v)", mid.Rotation, started.Plan.TargetRotation)
	}

	clk.Set(t0.Add(wheel.DefaultDuration))
	end := svc.Advance(ctx)
	if !end.Done || end.Result == nil {
		t.Fatalf("end frame = %+v", end)
	}
	wantRot, wantSeg := wheel.Replay(wheel.DefaultSegments(), 0, 0.25, wheel.DefaultRotations)
	if end.Rotation != wantRot || end.Result.ID != wantSeg.ID {
		t.Errorf("end = %v/%s, want %v/%s", end.Rotation, end.Result.ID, wantRot, wantSeg.ID)
	}

	v := svc.View()
	if v.Spinning || v.Last == nil || v.Last.Winner.ID != wantSeg.ID {
		t.Errorf("view after spin = %+v", v)
	}

	var frames, results int
	var gotCues []Cue
	for len(events) > 0 {
		ev := <-events
		switch ev.Type {
		case EventFrame:
			frames++
		case EventResult:
			results++
		case EventCue:
			gotCues = append(gotCues, ev.Cue)
		}
	}
	if frames != 3 || results != 1 {
		t.Errorf("frames=%d results=%d", frames, results)
	}
	if len(gotCues) != 2 || gotCues[0] != CueSpinStart || gotCues[1] != CueSpinEnd {
		t.Errorf("cue events = %v", gotCues)
	}
	if len(cues.cues) != 2 {
		t.Errorf("played cues = %v", cues.cues)
	}

	// idle advance is a no-op
	if f := svc.Advance(ctx); f.Done || f.Rotation != wantRot {
		t.Errorf("idle frame = %+v", f)
	}
}

func TestCueFailureIgnoredAndSoundOff(t *testing.T) {
	ctx := context.Background()
	cues := &cueLog{err: errors.New("no audio device")}
	svc, clk := newService(t, Options{Cues: cues, Sound: true})

	if _, err := svc.Spin(ctx); err != nil {
		t.Fatalf("Spin with failing cue: %v", err)
	}
	clk.Set(t0.Add(time.Minute))
	if f := svc.Advance(ctx); !f.Done {
		t.Fatal("spin did not finish")
	}

	if err := svc.SetSound(ctx, false); err != nil {
		t.Fatalf("SetSound: %v", err)
	}
	clk.Set(t0.Add(2 * time.Minute))
	svc.Spin(ctx)
	clk.Set(t0.Add(3 * time.Minute))
	svc.Advance(ctx)
	if len(cues.cues) != 2 {
		t.Errorf("cues with sound off = %v", cues.cues)
	}
}

func TestSpinDrawError(t *testing.T) {
	svc, _ := newService(t, Options{Source: failingSource{}})
	if _, err := svc.Spin(context.Background()); err == nil {
		t.Fatal("expected draw error")
	}
	if svc.View().Spinning {
		t.Error("failed draw left the wheel spinning")
	}
}

func TestSegmentEditsPersist(t *testing.T) {
	ctx := context.Background()
	st := testStore(t)
	svc, _ := newService(t, Options{Store: st})

	seg, err := svc.AddSegment(ctx)
	if err != nil {
		t.Fatalf("AddSegment: %v", err)
	}
	if seg.Label != "New" || seg.Weight != 1 || len(seg.Color) != 7 {
		t.Errorf("new segment = %+v", seg)
	}
	label, weight := "Jackpot", 0.5
	if _, err := svc.UpdateSegment(ctx, seg.ID, SegmentUpdate{Label: &label, Weight: &weight}); err != nil {
		t.Fatalf("UpdateSegment: %v", err)
	}
	bad := -1.0
	if _, err := svc.UpdateSegment(ctx, seg.ID, SegmentUpdate{Weight: &bad}); !wheel.IsConfigError(err) {
		t.Errorf("negative weight err = %v", err)
	}
	if _, err := svc.UpdateSegment(ctx, "nope", SegmentUpdate{}); !errors.Is(err, ErrSegmentNotFound) {
		t.Errorf("missing segment err = %v", err)
	}
	if _, err := svc.SetSize(ctx, wheel.Size{Width: 640, Height: 480}); err != nil {
		t.Fatalf("SetSize: %v", err)
	}
	if _, err := svc.SetSize(ctx, wheel.Size{Width: 10, Height: 10}); !errors.Is(err, ErrInvalidSize) {
		t.Errorf("tiny size err = %v", err)
	}
	if err := svc.SetSound(ctx, true); err != nil {
		t.Fatalf("SetSound: %v", err)
	}

	reopened, _ := newService(t, Options{Store: st})
	v := reopened.View()
	if len(v.Segments) != 5 || v.Segments[4].Label != "Jackpot" || v.Segments[4].Weight != 0.5 {
		t.Errorf("reloaded segments = %+v", v.Segments)
	}
	if v.Size.Width != 640 || !v.Sound {
		t.Errorf("reloaded view = %+v", v)
	}
}

func TestDeleteLastSegmentRejected(t *testing.T) {
	ctx := context.Background()
	svc, _ := newService(t, Options{})
	for _, seg := range svc.View().Segments[1:] {
		if err := svc.DeleteSegment(ctx, seg.ID); err != nil {
			t.Fatalf("DeleteSegment: %v", err)
		}
	}
	last := svc.View().Segments[0]
	err := svc.DeleteSegment(ctx, last.ID)
	if !wheel.IsConfigError(err) || !errors.Is(err, wheel.ErrNoSegments) {
		t.Fatalf("delete last err = %v", err)
	}
	if len(svc.View().Segments) != 1 {
		t.Error("last segment removed")
	}
	if err := svc.DeleteSegment(ctx, "ghost"); !errors.Is(err, ErrSegmentNotFound) {
		t.Errorf("missing delete err = %v", err)
	}
}

func TestSetSegmentsAssignsIDs(t *testing.T) {
	svc, _ := newService(t, Options{})
	v, err := svc.SetSegments(context.Background(), []wheel.Segment{
		{Label: "a", Weight: 1}, {ID: "keep", Label: "b", Weight: 2},
	})
	if err != nil {
		t.Fatalf("SetSegments: %v", err)
	}
	if v.Segments[0].ID == "" || v.Segments[1].ID != "keep" {
		t.Errorf("segments = %+v", v.Segments)
	}
	if _, err := svc.SetSegments(context.Background(), nil); !wheel.IsConfigError(err) {
		t.Errorf("empty SetSegments err = %v", err)
	}
}

func TestHistoryAndVerify(t *testing.T) {
	ctx := context.Background()
	st := testStore(t)
	src := rng.NewSeededSource("server-secret", "player", 7)
	svc, clk := newService(t, Options{Store: st, Source: src, FlushSize: 10})

	var ids []string
	for i := 0; i < 3; i++ {
		start := t0.Add(time.Duration(i) * time.Minute)
		clk.Set(start)
		if _, err := svc.Spin(ctx); err != nil {
			t.Fatalf("Spin %d: %v", i, err)
		}
		clk.Set(start.Add(wheel.DefaultDuration))
		f := svc.Advance(ctx)
		if !f.Done {
			t.Fatalf("spin %d not finished", i)
		}
		ids = append(ids, svc.View().Last.ID)
	}

	page, err := svc.History(ctx, 1, 10)
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if page.TotalCount != 3 || page.Spins[0].ID != ids[2] {
		t.Fatalf("history = %+v", page)
	}
	if page.Spins[2].Nonce == nil || *page.Spins[2].Nonce != 7 {
		t.Errorf("first spin nonce = %v", page.Spins[2].Nonce)
	}

	for _, id := range ids {
		res, err := svc.Verify(ctx, id, "server-secret")
		if err != nil {
			t.Fatalf("Verify %s: %v", id, err)
		}
		if !res.Valid {
			t.Errorf("spin %s did not verify: %+v", id, res)
		}
	}
	if _, err := svc.Verify(ctx, ids[0], "wrong-seed"); err == nil {
		t.Error("expected mismatched seed error")
	}
	if _, err := svc.Verify(ctx, "missing", "server-secret"); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("missing spin err = %v", err)
	}
}

func TestSeededNonceSurvivesRestart(t *testing.T) {
	ctx := context.Background()
	st := testStore(t)

	// each lifetime gets a fresh source, as a restarted process would
	spinOnce := func(src *rng.SeededSource) uint64 {
		t.Helper()
		svc, clk := newService(t, Options{Store: st, Source: src})
		started, err := svc.Spin(ctx)
		if err != nil {
			t.Fatalf("Spin: %v", err)
		}
		clk.Set(t0.Add(wheel.DefaultDuration))
		if f := svc.Advance(ctx); !f.Done {
			t.Fatal("spin not finished")
		}
		if err := svc.Close(); err != nil {
			t.Fatalf("Close: %v", err)
		}
		return started.Proof.Nonce
	}

	var got []uint64
	for i := 0; i < 2; i++ {
		got = append(got, spinOnce(rng.NewSeededSource("server", "client", 0)))
	}
	if got[0] != 0 || got[1] != 1 {
		t.Fatalf("nonces across restarts = %v, want [0 1]", got)
	}

	page, err := historyOf(t, st)
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if page.TotalCount != 2 || *page.Spins[0].Nonce == *page.Spins[1].Nonce {
		t.Errorf("history nonces repeat: %+v", page.Spins)
	}

	if n := spinOnce(rng.NewSeededSource("server", "client", 10)); n != 10 {
		t.Errorf("configured nonce ahead of stored: got %d, want 10", n)
	}
	if n := spinOnce(rng.NewSeededSource("server", "client", 0)); n != 11 {
		t.Errorf("after configured jump: got %d, want 11", n)
	}
	if n := spinOnce(rng.NewSeededSource("rotated", "client", 0)); n != 0 {
		t.Errorf("new server seed: got %d, want 0", n)
	}
}

func historyOf(t *testing.T, st Store) (*store.SpinPage, error) {
	t.Helper()
	svc, _ := newService(t, Options{Store: st})
	return svc.History(context.Background(), 1, 10)
}

func TestVerifyUnseededSpin(t *testing.T) {
	ctx := context.Background()
	svc, clk := newService(t, Options{Store: testStore(t)})
	svc.Spin(ctx)
	clk.Set(t0.Add(time.Hour))
	svc.Advance(ctx)
	id := svc.View().Last.ID
	if _, err := svc.Verify(ctx, id, "x"); !errors.Is(err, ErrNotSeeded) {
		t.Errorf("unseeded verify err = %v", err)
	}
}

func TestSlowSubscriberDropped(t *testing.T) {
	svc, _ := newService(t, Options{})
	slow, _ := svc.Subscribe(1)
	fast, cancel := svc.Subscribe(8)
	defer cancel()

	for i := 0; i < 3; i++ {
		svc.broadcast(Event{Type: EventFrame, Frame: &wheel.Frame{}})
	}

	if _, ok := <-slow; !ok {
		t.Fatal("slow subscriber lost its buffered event")
	}
	if _, ok := <-slow; ok {
		t.Error("slow subscriber still open")
	}
	if len(fast) != 3 {
		t.Errorf("fast subscriber got %d events", len(fast))
	}
}

func TestCloseDisconnectsSubscribers(t *testing.T) {
	svc, _ := newService(t, Options{Store: testStore(t)})
	ch, cancel := svc.Subscribe(4)
	if err := svc.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if _, ok := <-ch; ok {
		t.Error("channel open after Close")
	}
	cancel()
}

func TestRunDrivesSpin(t *testing.T) {
	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	svc, clk := newService(t, Options{})
	events, cancel := svc.Subscribe(256)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- svc.Run(ctx, time.Millisecond) }()

	if _, err := svc.Spin(context.Background()); err != nil {
		t.Fatalf("Spin: %v", err)
	}
	clk.Set(t0.Add(wheel.DefaultDuration))

	timeout := time.After(2 * time.Second)
	for {
		select {
		case ev := <-events:
			if ev.Type == EventResult {
				stop()
				if err := <-done; err != nil {
					t.Errorf("Run: %v", err)
				}
				return
			}
		case <-timeout:
			t.Fatal("driver never finished the spin")
		}
	}
}

func TestLayoutFollowsRotation(t *testing.T) {
	svc, _ := newService(t, Options{})
	l := svc.Layout()
	if len(l.Wedges) != 4 {
		t.Fatalf("wedges = %d", len(l.Wedges))
	}
}

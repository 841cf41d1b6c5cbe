package wheelsvc

import (
	"context"

	"golang.org/x/exp/slog"

	"github.com/MJE43/slot-tracker-go/internal/lib/logger/sl"
	"github.com/MJE43/slot-tracker-go/internal/wheel"
)

type EventType string

const (
	EventFrame  EventType = "frame"
	EventCue    EventType = "cue"
	EventResult EventType = "result"
	EventConfig EventType = "config"
)

// Cue names a sound the presentation layer may play.
type Cue string

const (
	CueSpinStart Cue = "spin-start"
	CueSpinEnd   Cue = "spin-end"
)

// CuePlayer plays audio cues. Failures never affect the spin.
type CuePlayer interface {
	Play(ctx context.Context, cue Cue) error
}

// Event is what subscribers receive. Exactly one payload field is set.
type Event struct {
	Type   EventType    `json:"type"`
	Frame  *wheel.Frame `json:"frame,omitempty"`
	Cue    Cue          `json:"cue,omitempty"`
	Result *SpinResult  `json:"result,omitempty"`
	View   *View        `json:"view,omitempty"`
}

// Subscribe registers a listener. The channel is closed when the listener
// falls behind by more than buffer events, when cancel is called or when
// the service closes.
func (s *Service) Subscribe(buffer int) (<-chan Event, func()) {
	if buffer <= 0 {
		buffer = 64
	}
	ch := make(chan Event, buffer)

	s.subMu.Lock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = ch
	s.subMu.Unlock()

	cancel := func() {
		s.subMu.Lock()
		defer s.subMu.Unlock()
		if c, ok := s.subs[id]; ok {
			close(c)
			delete(s.subs, id)
		}
	}
	return ch, cancel
}

func (s *Service) broadcast(ev Event) {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	for id, ch := range s.subs {
		select {
		case ch <- ev:
		default:
			// slow reader
			close(ch)
			delete(s.subs, id)
			s.log.Debug("dropped wheel subscriber", slog.Int("subscriber", id))
		}
	}
}

func (s *Service) closeSubscribers() {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	for id, ch := range s.subs {
		close(ch)
		delete(s.subs, id)
	}
}

func (s *Service) cue(ctx context.Context, c Cue, enabled bool) {
	if !enabled {
		return
	}
	s.broadcast(Event{Type: EventCue, Cue: c})
	if s.cues == nil {
		return
	}
	if err := s.cues.Play(ctx, c); err != nil {
		s.log.Debug("cue failed", slog.String("cue", string(c)), sl.Err(err))
	}
}

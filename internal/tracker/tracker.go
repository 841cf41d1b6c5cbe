// Package tracker holds the session ledger and tournaments in memory and
// keeps them saved in the key-value store.
package tracker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/bep/debounce"
	"go.uber.org/multierr"
	"golang.org/x/exp/slog"

	"github.com/MJE43/slot-tracker-go/internal/ledger"
	"github.com/MJE43/slot-tracker-go/internal/lib/logger"
	"github.com/MJE43/slot-tracker-go/internal/lib/logger/sl"
	"github.com/MJE43/slot-tracker-go/internal/store"
	"github.com/MJE43/slot-tracker-go/internal/tournament"
)

const DefaultSaveDebounce = time.Second

// ErrClosed is returned by updates after Close.
var ErrClosed = errors.New("tracker: closed")

// KV is the storage the tracker writes its documents to.
type KV interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Put(ctx context.Context, key string, value []byte) error
}

type Options struct {
	SaveDebounce time.Duration
	Logger       *slog.Logger
	Clock        func() time.Time
}

type Tracker struct {
	kv   KV
	log  *slog.Logger
	now  func() time.Time
	save func(func())

	mu         sync.Mutex
	ledger     *ledger.Ledger
	book       *tournament.Book
	gamesDirty bool
	toursDirty bool
	closed     bool
}

// New loads both documents. Unreadable games are dropped with a warning;
// a missing tournament list yields one default tournament.
func New(ctx context.Context, kv KV, o Options) (*Tracker, error) {
	const op = "tracker.New"

	if o.Logger == nil {
		o.Logger = logger.Discard()
	}
	if o.Clock == nil {
		o.Clock = time.Now
	}
	if o.SaveDebounce <= 0 {
		o.SaveDebounce = DefaultSaveDebounce
	}
	log := o.Logger.With(sl.Op(op))

	t := &Tracker{
		kv:   kv,
		log:  log,
		now:  o.Clock,
		save: debounce.New(o.SaveDebounce),
	}

	games, err := t.loadGames(ctx)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	t.ledger = ledger.New(games, ledger.WithClock(o.Clock))

	items, err := t.loadTournaments(ctx)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	t.book = tournament.New(items, o.Clock)

	log.Debug("tracker loaded", slog.Int("games", len(games)), slog.Int("tournaments", len(items)))
	return t, nil
}

func (t *Tracker) loadGames(ctx context.Context) ([]ledger.Game, error) {
	data, err := t.kv.Get(ctx, ledger.StorageKey)
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	res, err := ledger.Decode(data)
	if err != nil {
		// The bad value stays until the next save overwrites it.
		t.log.Error("stored ledger unreadable, starting empty", sl.Err(err))
		return nil, nil
	}
	if res.Dropped > 0 {
		t.log.Warn("dropped invalid games from stored ledger", slog.Int("dropped", res.Dropped))
	}
	if res.Legacy {
		t.log.Info("migrating legacy ledger format")
		t.gamesDirty = true
	}
	return res.Games, nil
}

func (t *Tracker) loadTournaments(ctx context.Context) ([]tournament.Tournament, error) {
	data, err := t.kv.Get(ctx, tournament.StorageKey)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return nil, err
	}
	items, err := tournament.Decode(data, t.now())
	if err != nil {
		t.log.Error("stored tournaments unreadable, using default", sl.Err(err))
		return tournament.Decode(nil, t.now())
	}
	return items, nil
}

// Games returns a copy of the ledger rows.
func (t *Tracker) Games() []ledger.Game {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.ledger.Games()
}

// ViewLedger runs fn with the ledger locked. fn must not mutate it.
func (t *Tracker) ViewLedger(fn func(*ledger.Ledger)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	fn(t.ledger)
}

// UpdateLedger runs fn with the ledger locked and schedules a save when fn
// succeeds.
func (t *Tracker) UpdateLedger(fn func(*ledger.Ledger) error) error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return ErrClosed
	}
	if err := fn(t.ledger); err != nil {
		t.mu.Unlock()
		return err
	}
	t.gamesDirty = true
	t.mu.Unlock()

	t.schedule()
	return nil
}

// Tournaments returns a copy of the tournament list.
func (t *Tracker) Tournaments() []tournament.Tournament {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.book.List()
}

// Tournament returns one tournament.
func (t *Tracker) Tournament(id string) (tournament.Tournament, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.book.Get(id)
}

// UpdateTournaments is UpdateLedger for the tournament list.
func (t *Tracker) UpdateTournaments(fn func(*tournament.Book) error) error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return ErrClosed
	}
	if err := fn(t.book); err != nil {
		t.mu.Unlock()
		return err
	}
	t.toursDirty = true
	t.mu.Unlock()

	t.schedule()
	return nil
}

// Export returns the indented backup document and its file name.
func (t *Tracker) Export() ([]byte, string, error) {
	t.mu.Lock()
	games := t.ledger.Games()
	t.mu.Unlock()

	now := t.now()
	data, err := ledger.EncodeExport(games, now)
	if err != nil {
		return nil, "", err
	}
	return data, ledger.ExportFilename(now), nil
}

// Import replaces every game with the contents of a backup file and saves
// immediately.
func (t *Tracker) Import(ctx context.Context, data []byte) (ledger.LoadResult, error) {
	res, err := ledger.DecodeImport(data)
	if err != nil {
		return ledger.LoadResult{}, err
	}
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return ledger.LoadResult{}, ErrClosed
	}
	t.ledger.Replace(res.Games)
	t.gamesDirty = true
	t.mu.Unlock()

	if res.Dropped > 0 {
		t.log.Warn("dropped invalid games from import", slog.Int("dropped", res.Dropped))
	}
	return res, t.Flush(ctx)
}

func (t *Tracker) schedule() {
	t.save(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := t.Flush(ctx); err != nil {
			t.log.Error("autosave failed", sl.Err(err))
		}
	})
}

// Flush writes whichever documents changed since the last save.
func (t *Tracker) Flush(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return nil
	}
	return t.flushLocked(ctx)
}

func (t *Tracker) flushLocked(ctx context.Context) error {
	var errs error
	if t.gamesDirty {
		data, err := ledger.Encode(t.ledger.Games(), t.now())
		if err == nil {
			err = t.kv.Put(ctx, ledger.StorageKey, data)
		}
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("tracker: save ledger: %w", err))
		} else {
			t.gamesDirty = false
		}
	}
	if t.toursDirty {
		data, err := tournament.Encode(t.book.List())
		if err == nil {
			err = t.kv.Put(ctx, tournament.StorageKey, data)
		}
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("tracker: save tournaments: %w", err))
		} else {
			t.toursDirty = false
		}
	}
	return errs
}

// Close saves pending changes. Later autosaves become no-ops.
func (t *Tracker) Close(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return nil
	}
	t.closed = true
	return t.flushLocked(ctx)
}

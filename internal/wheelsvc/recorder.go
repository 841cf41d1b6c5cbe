package wheelsvc

import (
	"context"
	"sync"
	"time"

	"go.uber.org/multierr"
	"golang.org/x/exp/slog"

	"github.com/MJE43/slot-tracker-go/internal/lib/logger/sl"
	"github.com/MJE43/slot-tracker-go/internal/store"
)

const defaultFlushSize = 20

type spinWriter interface {
	InsertSpins(ctx context.Context, spins []store.SpinRecord) error
}

// recorder buffers finished spins and writes them in batches so the frame
// loop never waits on SQLite.
type recorder struct {
	w         spinWriter
	log       *slog.Logger
	flushSize int

	mu     sync.Mutex
	buffer []store.SpinRecord
	wg     sync.WaitGroup

	errMu sync.Mutex
	errs  error
}

func newRecorder(w spinWriter, log *slog.Logger, flushSize int) *recorder {
	if flushSize <= 0 {
		flushSize = defaultFlushSize
	}
	return &recorder{
		w:         w,
		log:       log,
		flushSize: flushSize,
		buffer:    make([]store.SpinRecord, 0, flushSize),
	}
}

func (r *recorder) record(rec store.SpinRecord) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.buffer = append(r.buffer, rec)
	if len(r.buffer) >= r.flushSize {
		r.flushLocked()
	}
}

// flush writes whatever is buffered and waits for every pending batch.
// Errors from earlier background batches are returned once.
func (r *recorder) flush() error {
	r.mu.Lock()
	r.flushLocked()
	r.mu.Unlock()

	r.wg.Wait()

	r.errMu.Lock()
	defer r.errMu.Unlock()
	err := r.errs
	r.errs = nil
	return err
}

func (r *recorder) flushLocked() {
	if len(r.buffer) == 0 {
		return
	}
	batch := make([]store.SpinRecord, len(r.buffer))
	copy(batch, r.buffer)
	r.buffer = r.buffer[:0]

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := r.w.InsertSpins(ctx, batch); err != nil {
			r.log.Error("flush spins", sl.Err(err), slog.Int("count", len(batch)))
			r.errMu.Lock()
			r.errs = multierr.Append(r.errs, err)
			r.errMu.Unlock()
		}
	}()
}

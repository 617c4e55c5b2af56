package framecounter

import (
	"context"
	"sync"

	"github.com/pkg/errors"

	"github.com/weedscan/weedpipe/logging"
)

// Allocator hands out the start index of a batch and records where the next batch begins.
// A batch calls Next once, extracts its streams from that index, then calls Commit with
// start plus the number of RGB frames written.
type Allocator struct {
	store  Store
	logger logging.Logger

	mu    sync.Mutex
	start int
	read  bool
}

// NewAllocator returns an allocator over store.
func NewAllocator(store Store, logger logging.Logger) *Allocator {
	return &Allocator{store: store, logger: logger}
}

// Next reads the persisted counter. Unreadable or corrupt state wraps ErrCounterState and
// must stop the batch.
func (a *Allocator) Next(ctx context.Context) (int, error) {
	state, err := a.store.Load(ctx)
	if err != nil {
		if !errors.Is(err, ErrCounterState) && ctx.Err() == nil {
			err = errors.Wrap(ErrCounterState, err.Error())
		}
		return 0, err
	}
	a.mu.Lock()
	a.start = state.NextFrame
	a.read = true
	a.mu.Unlock()
	a.logger.Debugw("reserved frame index", "frame", state.NextFrame)
	return state.NextFrame, nil
}

// Commit persists next as the first index of the following batch. It refuses to move the
// counter below the value returned by the last Next.
func (a *Allocator) Commit(ctx context.Context, next int) error {
	a.mu.Lock()
	start, read := a.start, a.read
	a.mu.Unlock()
	if read && next < start {
		return errors.Wrapf(ErrCounterState, "refusing to move counter back from %d to %d", start, next)
	}
	if err := a.store.Save(ctx, State{NextFrame: next}); err != nil {
		return err
	}
	a.logger.Infow("committed frame counter", "frame", next, "reserved", next-start)
	a.mu.Lock()
	a.start = next
	a.mu.Unlock()
	return nil
}

// Reset overwrites the persisted counter without the monotonic check. It is the explicit
// recovery path for corrupt state and risks reusing indices of earlier batches.
func (a *Allocator) Reset(ctx context.Context, value int) error {
	if err := a.store.Save(ctx, State{NextFrame: value}); err != nil {
		return err
	}
	a.logger.Warnw("frame counter reset", "frame", value)
	a.mu.Lock()
	a.start = value
	a.read = true
	a.mu.Unlock()
	return nil
}

package duty

import (
	"context"
	"sync"

	"github.com/alpenvertex/vertex-node/internal/logging"
)

// Worker executes one duty to completion (or failure). Workers run on their
// own goroutine and must not share mutable state with each other or with
// the dispatcher, per spec.md §5's concurrency model.
type Worker func(ctx context.Context, d Duty) error

// Dispatcher ensures at most one worker runs per duty ID at a time. Each
// worker removes its ID from the running set as it returns, so a later
// call to Dispatch spawns a fresh worker for every duty in its batch that
// isn't still in flight (spec.md §5's scheduling rule).
type Dispatcher struct {
	worker Worker
	log    *logging.Logger

	mu      sync.Mutex
	running map[ID]struct{}
	wg      sync.WaitGroup
}

func NewDispatcher(worker Worker, log *logging.Logger) *Dispatcher {
	return &Dispatcher{worker: worker, log: log, running: make(map[ID]struct{})}
}

// Dispatch spawns a worker for every duty in the batch not already running.
// It returns immediately; workers run asynchronously.
func (d *Dispatcher) Dispatch(ctx context.Context, duties []Duty) {
	d.mu.Lock()
	defer d.mu.Unlock()

	for _, duty := range duties {
		id := duty.Id()
		if _, running := d.running[id]; running {
			continue
		}
		d.running[id] = struct{}{}
		d.wg.Add(1)
		go d.run(ctx, id, duty)
	}
}

func (d *Dispatcher) run(ctx context.Context, id ID, duty Duty) {
	defer d.wg.Done()
	defer func() {
		d.mu.Lock()
		delete(d.running, id)
		d.mu.Unlock()
	}()

	if err := d.worker(ctx, duty); err != nil {
		if d.log != nil {
			d.log.Errorf("duty %s (kind %d) failed: %v", id, duty.Kind, err)
		}
	}
}

// IsRunning reports whether a worker for id is currently in flight.
func (d *Dispatcher) IsRunning(id ID) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	_, ok := d.running[id]
	return ok
}

// Wait blocks until every dispatched worker has returned. Intended for
// graceful shutdown's grace-window join (spec.md §5), where the caller
// races this against a timeout.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}

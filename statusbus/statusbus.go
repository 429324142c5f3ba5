// Package statusbus publishes the three status bundles every RPC status
// query reads from — L1 reader status, the CSM driver's internal view, and
// the externally-facing client status spec.md §6's get_client_status
// returns — as independently updatable watch slots, grounded on
// original_source/crates/status/src/status_manager.rs's
// StatusTx/StatusRx(csm, cl, l1) watch-channel triple (spec.md §5
// suspension point (5): "watch-channel updates for status").
//
// Go has no tokio::sync::watch equivalent in the standard library, so Watch
// is built directly on sync.Mutex plus a replaced-on-write channel, the
// same close-to-broadcast idiom the teacher uses for its own shutdown
// signaling (node/main.go's done channel).
package statusbus

import (
	"context"
	"sync"

	"github.com/alpenvertex/vertex-node/primitives"
)

// L1Status reflects the L1 reader's view of the Bitcoin chain, per spec.md
// §6's get_l1_status/get_l1_connection_status.
type L1Status struct {
	TipHeight    uint64
	TipBlockId   primitives.L1BlockId
	Connected    bool
	BuriedHeight uint64
}

// CsmStatus is the CSM driver's own internal bookkeeping view, distinct
// from the externally-facing ClientStatus the way original_source keeps
// CsmStatus and ClientState separate.
type CsmStatus struct {
	LastSyncEventIdx uint64
	ChainTipHeight   uint64
	ChainTipBlkId    primitives.L2BlockId
}

// ClientStatus is the externally-facing summary spec.md §6's
// get_client_status returns verbatim.
type ClientStatus struct {
	ChainTip       primitives.L2BlockId
	ChainTipSlot   uint64
	FinalizedBlkId primitives.L2BlockId
	LastL1Block    primitives.L1BlockId
	BuriedL1Height uint64
}

// Watch holds the latest value of one status field, with a single
// designated writer (spec.md §5: "each field has a single designated
// writer") and any number of readers. Get is non-blocking and always
// returns the latest value; Changed blocks until the value is updated past
// the snapshot the caller last observed, or ctx is done.
type Watch[T any] struct {
	mu      sync.Mutex
	val     T
	version uint64
	changed chan struct{}
}

func NewWatch[T any](initial T) *Watch[T] {
	return &Watch[T]{val: initial, changed: make(chan struct{})}
}

// Get returns the latest value and its version.
func (w *Watch[T]) Get() (T, uint64) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.val, w.version
}

// Set publishes a new value, waking every caller blocked in Changed.
func (w *Watch[T]) Set(v T) {
	w.mu.Lock()
	w.val = v
	w.version++
	closing := w.changed
	w.changed = make(chan struct{})
	w.mu.Unlock()
	close(closing)
}

// Changed blocks until the value's version advances past lastSeen, then
// returns the new value and version. If lastSeen is already stale (a Set
// happened between the caller's last Get and this call), it returns
// immediately.
func (w *Watch[T]) Changed(ctx context.Context, lastSeen uint64) (T, uint64, error) {
	for {
		w.mu.Lock()
		if w.version != lastSeen {
			v, ver := w.val, w.version
			w.mu.Unlock()
			return v, ver, nil
		}
		ch := w.changed
		w.mu.Unlock()

		select {
		case <-ch:
			continue
		case <-ctx.Done():
			var zero T
			return zero, lastSeen, ctx.Err()
		}
	}
}

// Bus bundles the three status watches a node publishes, one per RPC
// status surface.
type Bus struct {
	L1     *Watch[L1Status]
	Csm    *Watch[CsmStatus]
	Client *Watch[ClientStatus]
}

// New creates a Bus with each watch seeded at its zero value, the way
// original_source's create_status_channel seeds every watch::channel at
// construction time.
func New() *Bus {
	return &Bus{
		L1:     NewWatch(L1Status{}),
		Csm:    NewWatch(CsmStatus{}),
		Client: NewWatch(ClientStatus{}),
	}
}

// Package l1reader streams Bitcoin blocks, detects reorgs against the
// reader's own view of recently seen blocks, and emits SyncEvents for the
// CSM driver to consume (spec.md §4.C). It also extracts deposit-request
// intents from transactions (depositreq.go).
package l1reader

import (
	"fmt"

	"github.com/alpenvertex/vertex-node/primitives"
	"github.com/alpenvertex/vertex-node/syncevent"
)

type blockMeta struct {
	Height uint64
	PrevId primitives.L1BlockId
}

// Tracker maintains the reader's view of the recently observed L1 chain
// (parent pointers keyed by block id) and turns each newly observed block
// into the SyncEvents implied by it: a plain L1Block on a direct extension,
// or an L1Revert followed by a run of L1Blocks replaying the new branch on
// a reorg. Grounded on the teacher's node/store/reorg.go
// findForkPoint/pathFromAncestor walk-back-to-common-ancestor algorithm,
// adapted from "reorg a persisted UTXO chainstate" to "derive the SyncEvent
// sequence a reorg implies," since this package owns no chain state of its
// own — it only watches.
type Tracker struct {
	index     map[primitives.L1BlockId]blockMeta
	tipId     primitives.L1BlockId
	tipHeight uint64
	hasTip    bool
}

func NewTracker() *Tracker {
	return &Tracker{index: make(map[primitives.L1BlockId]blockMeta)}
}

// OnBlock records a newly observed block (id, height, parent) and returns
// the SyncEvents it implies. Bootstrap (the tracker's first block) and
// direct extensions of the current tip both produce a single L1Block event.
func (t *Tracker) OnBlock(id primitives.L1BlockId, height uint64, prevId primitives.L1BlockId) ([]syncevent.Event, error) {
	t.index[id] = blockMeta{Height: height, PrevId: prevId}

	if !t.hasTip || prevId == t.tipId {
		t.tipId, t.tipHeight, t.hasTip = id, height, true
		return []syncevent.Event{syncevent.NewL1Block(height, id)}, nil
	}

	oldPath, newPath, err := t.forkPaths(id, height)
	if err != nil {
		return nil, err
	}
	if len(oldPath) == 0 {
		// Already-known block re-announced, or a direct extension we
		// didn't detect above; nothing to do.
		t.tipId, t.tipHeight = id, height
		return nil, nil
	}

	events := make([]syncevent.Event, 0, 1+len(newPath))
	forkHeight := t.index[oldPath[0]].Height - 1
	events = append(events, syncevent.NewL1Revert(forkHeight+1, oldPath[0]))
	for _, nid := range newPath {
		events = append(events, syncevent.NewL1Block(t.index[nid].Height, nid))
	}
	t.tipId, t.tipHeight = id, height
	return events, nil
}

// forkPaths walks back from the current tip and from newTip to their common
// ancestor, returning the now-abandoned old-chain path (ancestor-exclusive,
// oldest first) and the newly-adopted path (ancestor-exclusive, oldest
// first, ending at newTip).
func (t *Tracker) forkPaths(newTip primitives.L1BlockId, newTipHeight uint64) (oldPath, newPath []primitives.L1BlockId, err error) {
	a, aHeight := t.tipId, t.tipHeight
	b, bHeight := newTip, newTipHeight

	var aPath, bPath []primitives.L1BlockId
	for aHeight > bHeight {
		aPath = append(aPath, a)
		meta, ok := t.index[a]
		if !ok || meta.Height == 0 {
			return nil, nil, fmt.Errorf("l1reader: reached genesis without finding fork point for %s", a)
		}
		a, aHeight = meta.PrevId, meta.Height-1
	}
	for bHeight > aHeight {
		bPath = append(bPath, b)
		meta, ok := t.index[b]
		if !ok || meta.Height == 0 {
			return nil, nil, fmt.Errorf("l1reader: reached genesis without finding fork point for %s", b)
		}
		b, bHeight = meta.PrevId, meta.Height-1
	}
	for a != b {
		aPath = append(aPath, a)
		bPath = append(bPath, b)
		metaA, ok := t.index[a]
		if !ok || metaA.Height == 0 {
			return nil, nil, fmt.Errorf("l1reader: reached genesis without finding fork point for %s", a)
		}
		metaB, ok := t.index[b]
		if !ok || metaB.Height == 0 {
			return nil, nil, fmt.Errorf("l1reader: reached genesis without finding fork point for %s", b)
		}
		a = metaA.PrevId
		b = metaB.PrevId
	}

	reverse(aPath)
	reverse(bPath)
	return aPath, bPath, nil
}

func reverse(ids []primitives.L1BlockId) {
	for i, j := 0, len(ids)-1; i < j; i, j = i+1, j-1 {
		ids[i], ids[j] = ids[j], ids[i]
	}
}

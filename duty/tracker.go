package duty

import (
	"github.com/alpenvertex/vertex-node/params"
	"github.com/alpenvertex/vertex-node/state"
)

// Tracker holds the set of currently outstanding duties, keyed by their
// stable ID so the same piece of work re-extracted across ticks collapses
// onto the entry already known, rather than spawning a second worker for
// it. Grounded on original_source's DutyTracker (duty_id -> duty map with
// insertion-order iteration), adapted to Go's lack of an ordered map by
// keeping a parallel order slice.
type Tracker struct {
	duties map[ID]Duty
	order  []ID

	nextCheckpointIdx uint64
}

func NewTracker() *Tracker {
	return &Tracker{duties: make(map[ID]Duty)}
}

// ExtractDuties derives the duties implied by the current consensus state:
// one SignBlock duty for the next slot (this node's chain tip height + 1),
// and one SubmitCheckpoint duty per CheckpointEventInterval-sized batch of
// still-pending (not yet finalized) L2 blocks accumulated since the last
// one was issued. Checkpoint idx has no field in ConsensusState to read
// back (spec.md leaves "checkpoint numbering" unspecified), so the tracker
// assigns them itself as a monotonic counter — documented as an Open
// Question resolution.
func (t *Tracker) ExtractDuties(s state.ConsensusState, p params.RollupParams) []Duty {
	var out []Duty

	nextSlot := uint64(0)
	if s.Sync != nil {
		nextSlot = s.Sync.ChainTipHeight + 1
	}
	out = append(out, SignBlockDuty(nextSlot))

	if uint64(len(s.PendingL2Blocks)) >= p.CheckpointEventInterval {
		out = append(out, SubmitCheckpointDuty(t.nextCheckpointIdx))
	}

	return t.AddDuties(out)
}

// AddDuties merges newly extracted duties into the tracker, deduping by ID,
// and returns the set that is new as of this call (what the dispatcher
// should actually spawn workers for).
func (t *Tracker) AddDuties(duties []Duty) []Duty {
	var fresh []Duty
	for _, d := range duties {
		id := d.Id()
		if _, known := t.duties[id]; known {
			continue
		}
		t.duties[id] = d
		t.order = append(t.order, id)
		fresh = append(fresh, d)
		if d.Kind == KindSubmitCheckpoint && d.CheckpointIdx >= t.nextCheckpointIdx {
			t.nextCheckpointIdx = d.CheckpointIdx + 1
		}
	}
	return fresh
}

// All returns every currently tracked duty, in the order first added.
func (t *Tracker) All() []Duty {
	out := make([]Duty, 0, len(t.order))
	for _, id := range t.order {
		out = append(out, t.duties[id])
	}
	return out
}

// Remove drops a duty once it's been completed or determined to be expired,
// e.g. after StateUpdate observes the block it concerns was finalized.
func (t *Tracker) Remove(id ID) {
	if _, ok := t.duties[id]; !ok {
		return
	}
	delete(t.duties, id)
	for i, oid := range t.order {
		if oid == id {
			t.order = append(t.order[:i], t.order[i+1:]...)
			break
		}
	}
}

// StateUpdate prunes duties that a newly observed consensus state has made
// moot: a SignBlock duty for a slot at or below the current tip has either
// been fulfilled or passed by, and a SubmitCheckpoint duty whose blocks have
// all finalized (pending_l2_blocks drained past it) is done.
func (t *Tracker) StateUpdate(s state.ConsensusState) {
	tipHeight := uint64(0)
	if s.Sync != nil {
		tipHeight = s.Sync.ChainTipHeight
	}
	pendingCount := uint64(len(s.PendingL2Blocks))

	for _, id := range append([]ID(nil), t.order...) {
		d := t.duties[id]
		switch d.Kind {
		case KindSignBlock:
			if d.Slot <= tipHeight {
				t.Remove(id)
			}
		case KindSubmitCheckpoint:
			if pendingCount == 0 {
				t.Remove(id)
			}
		}
	}
}

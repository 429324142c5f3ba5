package duty

import (
	"testing"

	"github.com/alpenvertex/vertex-node/params"
	"github.com/alpenvertex/vertex-node/primitives"
	"github.com/alpenvertex/vertex-node/state"
)

func testL2BlockId(b byte) primitives.L2BlockId {
	var buf primitives.Buf32
	buf[0] = b
	return primitives.NewL2BlockId(buf)
}

func TestExtractDutiesSignBlockForNextSlot(t *testing.T) {
	tr := NewTracker()
	s := state.NewConsensusState()
	s.Sync = &state.SyncPointer{ChainTipHeight: 10}
	p := params.DefaultDevnetParams()

	fresh := tr.ExtractDuties(s, p)
	if len(fresh) != 1 || fresh[0].Kind != KindSignBlock || fresh[0].Slot != 11 {
		t.Fatalf("expected a single SignBlock(11) duty, got %+v", fresh)
	}

	// Re-extracting the same state shouldn't produce a duplicate.
	fresh = tr.ExtractDuties(s, p)
	if len(fresh) != 0 {
		t.Fatalf("expected no new duties on re-extraction, got %+v", fresh)
	}
	if len(tr.All()) != 1 {
		t.Fatalf("expected tracker to retain exactly one duty, got %d", len(tr.All()))
	}
}

func TestExtractDutiesSubmitCheckpointWhenThresholdReached(t *testing.T) {
	tr := NewTracker()
	p := params.DefaultDevnetParams()
	p.CheckpointEventInterval = 2

	s := state.NewConsensusState()
	s.Sync = &state.SyncPointer{ChainTipHeight: 0}
	s.PendingL2Blocks = []primitives.L2BlockId{testL2BlockId(1)}

	fresh := tr.ExtractDuties(s, p)
	var sawCheckpoint bool
	for _, d := range fresh {
		if d.Kind == KindSubmitCheckpoint {
			sawCheckpoint = true
		}
	}
	if sawCheckpoint {
		t.Fatalf("expected no checkpoint duty below threshold")
	}

	s.PendingL2Blocks = append(s.PendingL2Blocks, testL2BlockId(2))
	fresh = tr.ExtractDuties(s, p)
	sawCheckpoint = false
	for _, d := range fresh {
		if d.Kind == KindSubmitCheckpoint && d.CheckpointIdx == 0 {
			sawCheckpoint = true
		}
	}
	if !sawCheckpoint {
		t.Fatalf("expected a SubmitCheckpoint(0) duty once threshold reached, got %+v", fresh)
	}
}

func TestStateUpdatePrunesFulfilledDuties(t *testing.T) {
	tr := NewTracker()
	p := params.DefaultDevnetParams()
	s := state.NewConsensusState()
	s.Sync = &state.SyncPointer{ChainTipHeight: 5}

	tr.ExtractDuties(s, p)
	if len(tr.All()) != 1 {
		t.Fatalf("expected one tracked duty")
	}

	s.Sync.ChainTipHeight = 6
	tr.StateUpdate(s)
	if len(tr.All()) != 0 {
		t.Fatalf("expected SignBlock(6) duty to be pruned once tip reached 6, got %+v", tr.All())
	}
}

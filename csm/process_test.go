package csm

import (
	"testing"

	"github.com/alpenvertex/vertex-node/params"
	"github.com/alpenvertex/vertex-node/primitives"
	"github.com/alpenvertex/vertex-node/state"
	"github.com/alpenvertex/vertex-node/syncevent"
)

func testParams() params.RollupParams {
	p := params.DefaultDevnetParams()
	p.L1ReorgSafeDepth = 3
	return p
}

func bufAt(b byte) primitives.Buf32 {
	var out primitives.Buf32
	out[0] = b
	return out
}

func TestProcessEventL1BlockAcceptsAndBuries(t *testing.T) {
	p := testParams()
	s := state.NewConsensusState()

	for h := uint64(1); h <= 3; h++ {
		out := ProcessEvent(s, syncevent.NewL1Block(h, primitives.NewL1BlockId(bufAt(byte(h)))), p)
		if err := state.ApplyWritesToState(&s, out.Writes); err != nil {
			t.Fatalf("height %d: %v", h, err)
		}
	}
	if s.BuriedL1Height != 0 {
		t.Fatalf("expected no burial yet, got %d", s.BuriedL1Height)
	}

	out := ProcessEvent(s, syncevent.NewL1Block(4, primitives.NewL1BlockId(bufAt(4))), p)
	if err := state.ApplyWritesToState(&s, out.Writes); err != nil {
		t.Fatalf("height 4: %v", err)
	}
	if s.BuriedL1Height != 1 {
		t.Fatalf("expected buried height 1 at tip 4 with safe depth 3, got %d", s.BuriedL1Height)
	}
}

func TestProcessEventL1RevertRollsBack(t *testing.T) {
	p := testParams()
	s := state.NewConsensusState()
	ids := make([]primitives.L1BlockId, 0, 3)
	for h := uint64(1); h <= 3; h++ {
		id := primitives.NewL1BlockId(bufAt(byte(h)))
		ids = append(ids, id)
		out := ProcessEvent(s, syncevent.NewL1Block(h, id), p)
		if err := state.ApplyWritesToState(&s, out.Writes); err != nil {
			t.Fatalf("height %d: %v", h, err)
		}
	}

	out := ProcessEvent(s, syncevent.NewL1Revert(2, ids[1]), p)
	if err := state.ApplyWritesToState(&s, out.Writes); err != nil {
		t.Fatalf("revert: %v", err)
	}
	if len(s.RecentL1Blocks) != 1 {
		t.Fatalf("expected 1 recent l1 block after revert, got %d", len(s.RecentL1Blocks))
	}
	if s.RecentL1Blocks[len(s.RecentL1Blocks)-1] != ids[0] {
		t.Fatalf("expected surviving tip to be the block before the first reverted one")
	}
}

func TestProcessEventCheckpointSubmittedDrainsPendingL2Blocks(t *testing.T) {
	p := testParams()
	s := state.NewConsensusState()
	blkA := primitives.NewL2BlockId(bufAt(1))
	blkB := primitives.NewL2BlockId(bufAt(2))

	for _, blk := range []primitives.L2BlockId{blkA, blkB} {
		out := ProcessEvent(s, syncevent.NewL2BlockSeen(blk), p)
		if err := state.ApplyWritesToState(&s, out.Writes); err != nil {
			t.Fatalf("seen %v: %v", blk, err)
		}
	}
	if len(s.PendingL2Blocks) != 2 {
		t.Fatalf("expected 2 pending l2 blocks, got %d", len(s.PendingL2Blocks))
	}

	out := ProcessEvent(s, syncevent.NewCheckpointSubmitted(0), p)
	if len(out.Actions) != 1 || out.Actions[0].Kind != ActionFinalizeBlock || out.Actions[0].L2BlockId != blkA {
		t.Fatalf("expected ActionFinalizeBlock for the oldest pending block, got %+v", out.Actions)
	}
	if err := state.ApplyWritesToState(&s, out.Writes); err != nil {
		t.Fatalf("apply: %v", err)
	}
	if len(s.PendingL2Blocks) != 1 || s.PendingL2Blocks[0] != blkB {
		t.Fatalf("expected blkA drained from the front, got %+v", s.PendingL2Blocks)
	}

	out = ProcessEvent(s, syncevent.NewCheckpointSubmitted(1), p)
	if len(out.Actions) != 1 || out.Actions[0].L2BlockId != blkB {
		t.Fatalf("expected ActionFinalizeBlock for blkB, got %+v", out.Actions)
	}
	if err := state.ApplyWritesToState(&s, out.Writes); err != nil {
		t.Fatalf("apply: %v", err)
	}
	if len(s.PendingL2Blocks) != 0 {
		t.Fatalf("expected pending l2 blocks empty after draining both, got %+v", s.PendingL2Blocks)
	}
}

func TestProcessEventCheckpointSubmittedNoopWhenNothingPending(t *testing.T) {
	p := testParams()
	s := state.NewConsensusState()
	out := ProcessEvent(s, syncevent.NewCheckpointSubmitted(0), p)
	if len(out.Actions) != 0 || len(out.Writes) != 0 {
		t.Fatalf("expected a no-op Output, got %+v", out)
	}
}

// TestProcessEventL1BlockBootstrapsFromHighTip reproduces spec scenario E1:
// an empty state fed a single L1Block observation at a height far above
// L1ReorgSafeDepth (the shape ingestion produces on every restart, since it
// resumes from bitcoind's current tip rather than a persisted cursor). This
// must not demand draining more of recent_l1_blocks than has ever been
// observed.
func TestProcessEventL1BlockBootstrapsFromHighTip(t *testing.T) {
	p := testParams()
	s := state.NewConsensusState()

	out := ProcessEvent(s, syncevent.NewL1Block(100, primitives.NewL1BlockId(bufAt(1))), p)
	if err := state.ApplyWritesToState(&s, out.Writes); err != nil {
		t.Fatalf("bootstrap at height 100: %v", err)
	}
	if s.BuriedL1Height != 1 {
		t.Fatalf("expected buried height capped at 1 after a single observed block, got %d", s.BuriedL1Height)
	}
	if len(s.RecentL1Blocks) != 0 {
		t.Fatalf("expected the lone observed block to be immediately buried, got %d recent", len(s.RecentL1Blocks))
	}
}

func TestProcessEventL2BlockSeenEmitsUpdateTipAction(t *testing.T) {
	p := testParams()
	s := state.NewConsensusState()
	blk := primitives.NewL2BlockId(bufAt(9))
	out := ProcessEvent(s, syncevent.NewL2BlockSeen(blk), p)
	if len(out.Actions) != 1 || out.Actions[0].Kind != ActionUpdateTip {
		t.Fatalf("expected a single ActionUpdateTip, got %+v", out.Actions)
	}
	if err := state.ApplyWritesToState(&s, out.Writes); err != nil {
		t.Fatalf("apply: %v", err)
	}
	if len(s.PendingL2Blocks) != 1 || s.PendingL2Blocks[0] != blk {
		t.Fatalf("expected pending l2 blocks to record the new block")
	}
}

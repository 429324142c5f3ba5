package state

import (
	"errors"
	"testing"

	"github.com/alpenvertex/vertex-node/primitives"
)

func l1id(b byte) primitives.L1BlockId {
	var buf primitives.Buf32
	buf[0] = b
	return primitives.NewL1BlockId(buf)
}

func TestApplyWritesToStateAcceptAndRollback(t *testing.T) {
	s := NewConsensusState()
	err := ApplyWritesToState(&s, []ConsensusWrite{
		{Kind: CwAcceptL1Block, L1BlockId: l1id(1)},
		{Kind: CwAcceptL1Block, L1BlockId: l1id(2)},
		{Kind: CwAcceptL1Block, L1BlockId: l1id(3)},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(s.RecentL1Blocks) != 3 {
		t.Fatalf("expected 3 recent l1 blocks, got %d", len(s.RecentL1Blocks))
	}

	err = ApplyWritesToState(&s, []ConsensusWrite{
		{Kind: CwRollbackL1BlocksTo, L1BlockId: l1id(2)},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(s.RecentL1Blocks) != 1 || s.RecentL1Blocks[0] != l1id(1) {
		t.Fatalf("rollback did not truncate correctly: %v", s.RecentL1Blocks)
	}
}

func TestApplyWritesToStateRollbackMissingIsFatal(t *testing.T) {
	s := NewConsensusState()
	err := ApplyWritesToState(&s, []ConsensusWrite{
		{Kind: CwRollbackL1BlocksTo, L1BlockId: l1id(9)},
	})
	var fatal *FatalError
	if !errors.As(err, &fatal) {
		t.Fatalf("expected FatalError, got %v", err)
	}
}

func TestApplyWritesToStateUpdateBuried(t *testing.T) {
	s := NewConsensusState()
	_ = ApplyWritesToState(&s, []ConsensusWrite{
		{Kind: CwAcceptL1Block, L1BlockId: l1id(1)},
		{Kind: CwAcceptL1Block, L1BlockId: l1id(2)},
		{Kind: CwAcceptL1Block, L1BlockId: l1id(3)},
	})

	if err := ApplyWritesToState(&s, []ConsensusWrite{{Kind: CwUpdateBuried, BuriedIdx: 2}}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if s.BuriedL1Height != 2 {
		t.Fatalf("expected buried height 2, got %d", s.BuriedL1Height)
	}
	if len(s.RecentL1Blocks) != 1 {
		t.Fatalf("expected 1 remaining recent l1 block, got %d", len(s.RecentL1Blocks))
	}

	if err := ApplyWritesToState(&s, []ConsensusWrite{{Kind: CwUpdateBuried, BuriedIdx: 2}}); err == nil {
		t.Fatalf("expected fatal error on non-increasing buried height")
	}
	if err := ApplyWritesToState(&s, []ConsensusWrite{{Kind: CwUpdateBuried, BuriedIdx: 100}}); err == nil {
		t.Fatalf("expected fatal error draining more than tracked")
	}
}

func TestApplyWritesToStateFinalizeL2BlockDrainsFront(t *testing.T) {
	s := NewConsensusState()
	var blkA, blkB primitives.L2BlockId
	blkA = primitives.NewL2BlockId(primitives.Buf32{0x1})
	blkB = primitives.NewL2BlockId(primitives.Buf32{0x2})

	if err := ApplyWritesToState(&s, []ConsensusWrite{
		{Kind: CwAcceptL2Block, L2BlockId: blkA},
		{Kind: CwAcceptL2Block, L2BlockId: blkB},
	}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if err := ApplyWritesToState(&s, []ConsensusWrite{{Kind: CwFinalizeL2Block}}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(s.PendingL2Blocks) != 1 || s.PendingL2Blocks[0] != blkB {
		t.Fatalf("expected blkA drained from the front, got %v", s.PendingL2Blocks)
	}
}

func TestApplyWritesToStateFinalizeL2BlockEmptyIsFatal(t *testing.T) {
	s := NewConsensusState()
	err := ApplyWritesToState(&s, []ConsensusWrite{{Kind: CwFinalizeL2Block}})
	var fatal *FatalError
	if !errors.As(err, &fatal) {
		t.Fatalf("expected FatalError, got %v", err)
	}
}

func TestApplyWritesToStateAcceptL2BlockAdvancesSyncTip(t *testing.T) {
	s := NewConsensusState()
	s.Sync = &SyncPointer{}
	var blkid primitives.L2BlockId
	buf := primitives.Buf32{0x1}
	blkid = primitives.NewL2BlockId(buf)

	if err := ApplyWritesToState(&s, []ConsensusWrite{{Kind: CwAcceptL2Block, L2BlockId: blkid}}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if s.Sync.ChainTipBlkId != blkid {
		t.Fatalf("sync tip not updated")
	}
	if s.Sync.ChainTipHeight != 1 {
		t.Fatalf("expected height 1, got %d", s.Sync.ChainTipHeight)
	}
	if len(s.PendingL2Blocks) != 1 {
		t.Fatalf("expected pending l2 blocks to record the new block")
	}
}

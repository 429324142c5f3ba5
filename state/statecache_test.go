package state

import (
	"testing"

	"github.com/alpenvertex/vertex-node/primitives"
)

func manifestAt(b byte) primitives.L1BlockManifest {
	var id primitives.Buf32
	id[0] = b
	return primitives.L1BlockManifest{BlockId: primitives.NewL1BlockId(id)}
}

func TestStateCacheAcceptAndFinalizeRoundTrip(t *testing.T) {
	base := NewChainState()
	c := NewStateCache(base)
	c.AcceptL1Block(10, manifestAt(1))
	c.AcceptL1Block(11, manifestAt(2))
	c.MutateDeposit(0, DepositEntry{Amt: 1000, State: DepositCreated})
	c.SetTip(primitives.NewL2BlockId(primitives.Buf32{0xaa}))

	final, batch := c.Finalize()

	replayed, err := ApplyWriteBatchToChainState(base, batch)
	if err != nil {
		t.Fatalf("replay failed: %v", err)
	}
	if replayed.TipBlockId != final.TipBlockId {
		t.Fatalf("tip mismatch after replay")
	}
	if len(replayed.L1.Recent) != 2 {
		t.Fatalf("expected 2 recent L1 records, got %d", len(replayed.L1.Recent))
	}
	if replayed.Deposits[0].Amt != 1000 {
		t.Fatalf("deposit not carried through replay")
	}
}

func TestStateCacheAcceptL1BlockReplacesAtSameHeight(t *testing.T) {
	c := NewStateCache(NewChainState())
	c.AcceptL1Block(5, manifestAt(1))
	c.AcceptL1Block(5, manifestAt(2))

	got := c.State().L1.Recent
	if len(got) != 1 {
		t.Fatalf("expected re-org-safe replace to keep 1 record, got %d", len(got))
	}
	if got[0].Manifest.BlockId.Buf32()[0] != 2 {
		t.Fatalf("expected second manifest to win at same height")
	}
}

func TestStateCacheRevertL1Height(t *testing.T) {
	c := NewStateCache(NewChainState())
	c.AcceptL1Block(1, manifestAt(1))
	c.AcceptL1Block(2, manifestAt(2))
	c.AcceptL1Block(3, manifestAt(3))

	c.RevertL1Height(2)

	got := c.State().L1.Recent
	if len(got) != 2 {
		t.Fatalf("expected 2 records remaining after revert, got %d", len(got))
	}
	for _, rec := range got {
		if rec.Height > 2 {
			t.Fatalf("found record above revert height: %d", rec.Height)
		}
	}
}

func TestDepositEntryNextRejectsSkips(t *testing.T) {
	e := DepositEntry{Amt: 1, State: DepositCreated}
	if _, err := e.Next(DepositDispatched); err == nil {
		t.Fatalf("expected error skipping Accepted")
	}
	next, err := e.Next(DepositAccepted)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if next.State != DepositAccepted {
		t.Fatalf("state not advanced")
	}
}

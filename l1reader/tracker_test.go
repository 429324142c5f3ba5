package l1reader

import (
	"testing"

	"github.com/alpenvertex/vertex-node/primitives"
	"github.com/alpenvertex/vertex-node/syncevent"
)

func blockId(b byte) primitives.L1BlockId {
	var buf primitives.Buf32
	buf[0] = b
	return primitives.NewL1BlockId(buf)
}

func TestTrackerLinearExtension(t *testing.T) {
	tr := NewTracker()

	evs, err := tr.OnBlock(blockId(1), 1, primitives.L1BlockId{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(evs) != 1 || evs[0].Kind != syncevent.KindL1Block {
		t.Fatalf("expected single L1Block event, got %+v", evs)
	}

	evs, err = tr.OnBlock(blockId(2), 2, blockId(1))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(evs) != 1 || evs[0].Kind != syncevent.KindL1Block || evs[0].L1Height != 2 {
		t.Fatalf("expected single L1Block(2) event, got %+v", evs)
	}
}

func TestTrackerReorgEmitsRevertThenReplay(t *testing.T) {
	tr := NewTracker()
	must := func(evs []syncevent.Event, err error) []syncevent.Event {
		t.Helper()
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		return evs
	}

	must(tr.OnBlock(blockId(1), 1, primitives.L1BlockId{}))
	must(tr.OnBlock(blockId(2), 2, blockId(1)))
	must(tr.OnBlock(blockId(3), 3, blockId(2)))

	// Competing chain forks after block 1: announcing 2' directly replaces
	// the abandoned branch starting at block 2.
	evs := must(tr.OnBlock(blockId(20), 2, blockId(1)))

	if len(evs) != 2 {
		t.Fatalf("expected revert + 1 replayed block, got %d events: %+v", len(evs), evs)
	}
	if evs[0].Kind != syncevent.KindL1Revert {
		t.Fatalf("expected first event to be a revert, got %v", evs[0].Kind)
	}
	if evs[0].L1BlockId != blockId(2) {
		t.Fatalf("expected revert to name the first reverted block (id 2), got %v", evs[0].L1BlockId)
	}
	if evs[1].Kind != syncevent.KindL1Block || evs[1].L1BlockId != blockId(20) {
		t.Fatalf("expected replay of new tip, got %+v", evs[1])
	}

	// Extending the new branch is now a plain linear extension.
	evs = must(tr.OnBlock(blockId(30), 3, blockId(20)))
	if len(evs) != 1 || evs[0].Kind != syncevent.KindL1Block || evs[0].L1BlockId != blockId(30) {
		t.Fatalf("expected a single L1Block event extending the new tip, got %+v", evs)
	}
}

func TestTrackerRejectsUntrackedAncestor(t *testing.T) {
	tr := NewTracker()
	if _, err := tr.OnBlock(blockId(1), 1, primitives.L1BlockId{}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// A competing block whose ancestor chain was never observed.
	if _, err := tr.OnBlock(blockId(99), 50, blockId(98)); err == nil {
		t.Fatalf("expected error walking back an untracked ancestor chain")
	}
}

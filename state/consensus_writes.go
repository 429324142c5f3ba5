package state

import (
	"fmt"

	"github.com/alpenvertex/vertex-node/primitives"
)

// ConsensusWriteKind tags a CSM-level write produced by process_event.
// Grounded on original_source/crates/state/src/operation.rs's ConsensusWrite
// enum.
type ConsensusWriteKind uint8

const (
	CwReplace ConsensusWriteKind = iota
	CwReplaceChainState
	CwAcceptL2Block
	CwRollbackL1BlocksTo
	CwAcceptL1Block
	CwUpdateBuried
	CwFinalizeL2Block
)

// ConsensusWrite is one write emitted by the event-processing step. Only the
// field matching Kind is set.
type ConsensusWrite struct {
	Kind ConsensusWriteKind

	ReplaceState ConsensusState       // CwReplace
	NewChainState ChainState          // CwReplaceChainState
	L2BlockId    primitives.L2BlockId // CwAcceptL2Block
	L1BlockId    primitives.L1BlockId // CwRollbackL1BlocksTo, CwAcceptL1Block
	BuriedIdx    uint64               // CwUpdateBuried
	// CwFinalizeL2Block carries no payload: it always pops the front of
	// pending_l2_blocks, the block process_event already named in the
	// paired ActionFinalizeBlock.
}

// FatalError marks a ConsensusWrite that violates an invariant the CSM
// cannot recover from in-process; per spec.md §7 these propagate to the
// supervisor rather than being swallowed.
type FatalError struct {
	msg string
}

func (e *FatalError) Error() string { return "state: fatal: " + e.msg }

func fatalf(format string, args ...interface{}) error {
	return &FatalError{msg: fmt.Sprintf(format, args...)}
}

// ApplyWritesToState applies a sequence of ConsensusWrites to state in
// order, mutating it in place. Any violated invariant returns a *FatalError
// and leaves state partially applied; callers must treat that as a reason to
// halt the CSM driver, not retry (spec.md §7).
func ApplyWritesToState(s *ConsensusState, writes []ConsensusWrite) error {
	for _, w := range writes {
		if err := applyOne(s, w); err != nil {
			return err
		}
	}
	return nil
}

func applyOne(s *ConsensusState, w ConsensusWrite) error {
	switch w.Kind {
	case CwReplace:
		*s = w.ReplaceState.Clone()

	case CwReplaceChainState:
		s.ChainState = w.NewChainState.Clone()

	case CwAcceptL2Block:
		s.PendingL2Blocks = append(s.PendingL2Blocks, w.L2BlockId)
		if s.Sync != nil {
			s.Sync.ChainTipBlkId = w.L2BlockId
			s.Sync.ChainTipHeight++
		}

	case CwRollbackL1BlocksTo:
		pos := -1
		for i, id := range s.RecentL1Blocks {
			if id == w.L1BlockId {
				pos = i
				break
			}
		}
		if pos < 0 {
			return fatalf("RollbackL1BlocksTo: block %s not present in recent_l1_blocks", w.L1BlockId)
		}
		// truncate at and after pos: w.L1BlockId names the first reverted
		// block, so it and everything after it is dropped.
		s.RecentL1Blocks = s.RecentL1Blocks[:pos]

	case CwAcceptL1Block:
		s.RecentL1Blocks = append(s.RecentL1Blocks, w.L1BlockId)

	case CwUpdateBuried:
		if w.BuriedIdx <= s.BuriedL1Height {
			return fatalf("UpdateBuried: new height %d not greater than current buried height %d", w.BuriedIdx, s.BuriedL1Height)
		}
		drain := w.BuriedIdx - s.BuriedL1Height
		if drain > uint64(len(s.RecentL1Blocks)) {
			return fatalf("UpdateBuried: cannot drain %d blocks, only %d recent_l1_blocks tracked", drain, len(s.RecentL1Blocks))
		}
		s.RecentL1Blocks = append([]primitives.L1BlockId(nil), s.RecentL1Blocks[drain:]...)
		s.BuriedL1Height = w.BuriedIdx

	case CwFinalizeL2Block:
		if len(s.PendingL2Blocks) == 0 {
			return fatalf("FinalizeL2Block: pending_l2_blocks is empty")
		}
		s.PendingL2Blocks = append([]primitives.L2BlockId(nil), s.PendingL2Blocks[1:]...)

	default:
		return fatalf("unknown ConsensusWrite kind %d", w.Kind)
	}
	return nil
}

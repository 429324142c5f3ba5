package state

import "github.com/alpenvertex/vertex-node/primitives"

// SyncPointer tracks the CSM's view of chain progress once it has one,
// per spec.md §3 ("sync: Option<{chain_tip_blkid, chain_tip_height,
// finalized_blkid}>").
type SyncPointer struct {
	ChainTipBlkId   primitives.L2BlockId
	ChainTipHeight  uint64
	FinalizedBlkId  primitives.L2BlockId
}

// ConsensusState is the CSM-level state, separate from ChainState, per
// spec.md §3. Cyclic references between the two are broken by ownership:
// ConsensusState holds a cloned ChainState snapshot (value, not
// back-reference); writes always flow consensus -> chain via
// ReplaceChainState, never the other way (spec.md §9).
type ConsensusState struct {
	ChainState      ChainState
	RecentL1Blocks  []primitives.L1BlockId
	PendingL2Blocks []primitives.L2BlockId
	BuriedL1Height  uint64
	Sync            *SyncPointer
}

// NewConsensusState returns the empty/pre-genesis consensus state.
func NewConsensusState() ConsensusState {
	return ConsensusState{ChainState: NewChainState()}
}

// Clone returns a deep copy, used whenever a ConsensusState snapshot is
// handed to a subscriber or persisted as a checkpoint (§4.D, §9).
func (s ConsensusState) Clone() ConsensusState {
	out := ConsensusState{
		ChainState:     s.ChainState.Clone(),
		BuriedL1Height: s.BuriedL1Height,
	}
	out.RecentL1Blocks = append([]primitives.L1BlockId(nil), s.RecentL1Blocks...)
	out.PendingL2Blocks = append([]primitives.L2BlockId(nil), s.PendingL2Blocks...)
	if s.Sync != nil {
		sync := *s.Sync
		out.Sync = &sync
	}
	return out
}

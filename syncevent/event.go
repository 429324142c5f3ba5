// Package syncevent defines the SyncEvent log that drives the CSM: an
// append-only, durably ordered sequence of observations (new L1 blocks,
// reverts, L2 blocks seen, checkpoints submitted) that process_event folds
// into ConsensusState one at a time (spec.md §4.C, §7).
package syncevent

import (
	"fmt"

	"github.com/alpenvertex/vertex-node/primitives"
)

// Kind tags a SyncEvent's variant.
type Kind uint8

const (
	KindL1Block Kind = iota
	KindL1Revert
	KindL2BlockSeen
	KindCheckpointSubmitted
)

func (k Kind) String() string {
	switch k {
	case KindL1Block:
		return "L1Block"
	case KindL1Revert:
		return "L1Revert"
	case KindL2BlockSeen:
		return "L2BlockSeen"
	case KindCheckpointSubmitted:
		return "CheckpointSubmitted"
	default:
		return fmt.Sprintf("Kind(%d)", uint8(k))
	}
}

// Event is one entry in the sync-event log. Only the fields matching Kind
// are meaningful.
type Event struct {
	Kind Kind

	L1Height  uint64               // KindL1Block, KindL1Revert
	L1BlockId primitives.L1BlockId // KindL1Block
	L2BlockId primitives.L2BlockId // KindL2BlockSeen
	CheckpointIdx uint64           // KindCheckpointSubmitted
}

func NewL1Block(height uint64, id primitives.L1BlockId) Event {
	return Event{Kind: KindL1Block, L1Height: height, L1BlockId: id}
}

// NewL1Revert records a reorg: height is the L1 height of the first
// reverted block, firstReverted is that block's id. RollbackL1BlocksTo
// truncates recent_l1_blocks at and after firstReverted. The L1 reader
// resolves firstReverted by walking its own manifest store before emitting
// the event; process_event does not infer it.
func NewL1Revert(height uint64, firstReverted primitives.L1BlockId) Event {
	return Event{Kind: KindL1Revert, L1Height: height, L1BlockId: firstReverted}
}

func NewL2BlockSeen(id primitives.L2BlockId) Event {
	return Event{Kind: KindL2BlockSeen, L2BlockId: id}
}

func NewCheckpointSubmitted(idx uint64) Event {
	return Event{Kind: KindCheckpointSubmitted, CheckpointIdx: idx}
}

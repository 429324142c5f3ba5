// Package csm implements the consensus state machine: a pure event folder
// (process_event) plus a driver that persists each SyncEvent before acting
// on it, applies the resulting ConsensusWrites, and broadcasts the new state
// to subscribers (spec.md §4.C/§4.D, §7, §8 property 2).
package csm

import (
	"github.com/alpenvertex/vertex-node/params"
	"github.com/alpenvertex/vertex-node/primitives"
	"github.com/alpenvertex/vertex-node/state"
	"github.com/alpenvertex/vertex-node/syncevent"
)

// Output is everything process_event derives from one SyncEvent: the writes
// to apply, and the SyncActions the driver should act on afterward (e.g.
// tell the duty tracker a new tip landed). It deliberately does not touch
// storage or the EL itself — those live one layer up in the driver.
type Output struct {
	Writes  []state.ConsensusWrite
	Actions []Action
}

// ActionKind tags a post-write side effect the driver should perform.
type ActionKind uint8

const (
	ActionUpdateTip ActionKind = iota
	ActionMarkInvalid
	ActionFinalizeBlock
)

// Action mirrors original_source's SyncAction: each variant carries the
// L2BlockId it concerns.
type Action struct {
	Kind      ActionKind
	L2BlockId primitives.L2BlockId
}

// ProcessEvent is the CSM's pure transition function: given the consensus
// state as of the previous event and the next SyncEvent, it derives the
// writes and actions that event implies. It performs no I/O and has no
// access to anything but its arguments, so the same (prev, ev, params)
// triple always yields the same Output (spec.md §8 property 2's replay
// determinism, lifted one level from ChainState up to ConsensusState).
func ProcessEvent(prev state.ConsensusState, ev syncevent.Event, p params.RollupParams) Output {
	switch ev.Kind {
	case syncevent.KindL1Block:
		writes := []state.ConsensusWrite{{Kind: state.CwAcceptL1Block, L1BlockId: ev.L1BlockId}}
		if newBuried, ok := buriedHeight(prev, ev.L1Height, p); ok {
			writes = append(writes, state.ConsensusWrite{Kind: state.CwUpdateBuried, BuriedIdx: newBuried})
		}
		return Output{Writes: writes}

	case syncevent.KindL1Revert:
		// ev.L1BlockId names the first reverted block; RollbackL1BlocksTo
		// truncates recent_l1_blocks at and after it.
		return Output{Writes: []state.ConsensusWrite{
			{Kind: state.CwRollbackL1BlocksTo, L1BlockId: ev.L1BlockId},
		}}

	case syncevent.KindL2BlockSeen:
		return Output{
			Writes:  []state.ConsensusWrite{{Kind: state.CwAcceptL2Block, L2BlockId: ev.L2BlockId}},
			Actions: []Action{{Kind: ActionUpdateTip, L2BlockId: ev.L2BlockId}},
		}

	case syncevent.KindCheckpointSubmitted:
		// A submitted checkpoint finalizes the oldest still-pending L2 block;
		// later checkpoints finalize later blocks as pending_l2_blocks drains
		// one entry per checkpoint via CwFinalizeL2Block.
		if len(prev.PendingL2Blocks) == 0 {
			return Output{}
		}
		return Output{
			Writes:  []state.ConsensusWrite{{Kind: state.CwFinalizeL2Block}},
			Actions: []Action{{Kind: ActionFinalizeBlock, L2BlockId: prev.PendingL2Blocks[0]}},
		}

	default:
		return Output{}
	}
}

// buriedHeight reports the new buried height implied by observing an L1
// block at tipHeight, per params.L1ReorgSafeDepth, or ok=false if burial
// hasn't advanced. Grounded on original_source's status_manager.rs
// buried-height bookkeeping, folded into the pure event-folder here.
//
// The advance is capped at prev.BuriedL1Height + len(recent_l1_blocks)+1
// (the +1 accounts for the CwAcceptL1Block this same event already queued
// ahead of CwUpdateBuried): recent_l1_blocks only holds what's actually
// been observed, so on a fresh or just-bootstrapped node — e.g. ingestion
// starting at a high bitcoind tip with only one block observed so far —
// tipHeight-L1ReorgSafeDepth can demand draining more blocks than were ever
// recorded. CwUpdateBuried's own invariant check (state/consensus_writes.go)
// would turn that into a fatal abort on the very first ingested block
// (spec §8 E1) rather than quietly advancing only as far as observed
// history allows.
func buriedHeight(prev state.ConsensusState, tipHeight uint64, p params.RollupParams) (uint64, bool) {
	if tipHeight <= p.L1ReorgSafeDepth {
		return 0, false
	}
	newBuried := tipHeight - p.L1ReorgSafeDepth
	maxBuried := prev.BuriedL1Height + uint64(len(prev.RecentL1Blocks)) + 1
	if newBuried > maxBuried {
		newBuried = maxBuried
	}
	if newBuried <= prev.BuriedL1Height {
		return 0, false
	}
	return newBuried, true
}

// Package chainstf implements the chain state transition function:
// verify_and_transition(prev ChainState, block L2Block, params) -> ChainState
// (spec.md §4.E). Grounded on original_source/crates/proof-impl/cl-stf's
// verify_and_transition/apply_state_transition shape, adapted from a
// panic-on-failure proof-circuit style into Go's explicit-error idiom, the
// way the teacher's node/chainstate.go ApplyBlock validates before
// committing rather than asserting.
package chainstf

import (
	"fmt"

	"github.com/alpenvertex/vertex-node/l2block"
	"github.com/alpenvertex/vertex-node/params"
	"github.com/alpenvertex/vertex-node/state"
)

// VerifyAndTransition validates block against prev and, if valid, returns
// the resulting ChainState. It is pure: given the same (prev, block,
// params) it always returns the same result (spec.md §8 property 3).
func VerifyAndTransition(prev state.ChainState, block l2block.Block, p params.RollupParams) (state.ChainState, error) {
	if err := verifyBlock(block, p); err != nil {
		return state.ChainState{}, fmt.Errorf("chainstf: %w", err)
	}

	cache := state.NewStateCache(prev)
	if err := processBlock(cache, block, p); err != nil {
		return state.ChainState{}, fmt.Errorf("chainstf: %w", err)
	}
	final, _ := cache.Finalize()
	return final, nil
}

// verifyBlock runs the pre-transition checks spec.md §4.E step 1 requires:
// the header's signature and segment hashes. STF only ever runs on
// pre-validated input (spec.md §7), so any failure here is reported as an
// ordinary error to the caller rather than a panic — the caller decides
// whether that's fatal.
func verifyBlock(block l2block.Block, p params.RollupParams) error {
	if err := l2block.CheckCredential(block.Header, p.SequencerPubkey); err != nil {
		return fmt.Errorf("block credential verification failed: %w", err)
	}
	if err := l2block.CheckSegmentHashes(block.Header, block.Body); err != nil {
		return fmt.Errorf("block segment validation failed: %w", err)
	}
	return nil
}

// processBlock applies the block's L1 segment and exec segment against
// cache, in the order spec.md §4.E mandates: deposits are created (ascending
// L1-height then tx-position, tie-broken by output order — preserved here by
// requiring callers to hand NewPayloads/NewDeposits already in that order,
// the same way the teacher's node/chainstate.go requires UTXO updates to
// arrive in block order rather than re-sorting them), then existing deposits
// are transitioned per the exec segment, then the new L1 manifests are
// recorded into the chain state's L1 view, then the tip advances.
func processBlock(cache *state.StateCache, block l2block.Block, p params.RollupParams) error {
	for _, d := range block.Body.L1Segment.NewDeposits {
		if _, exists := cache.State().Deposits[d.Idx]; exists {
			return fmt.Errorf("deposit index %d already present", d.Idx)
		}
		cache.MutateDeposit(d.Idx, state.DepositEntry{Amt: d.Amt, State: state.DepositCreated})
	}

	for _, tr := range block.Body.ExecSegment.DepositTransitions {
		entry, ok := cache.State().Deposits[tr.Idx]
		if !ok {
			return fmt.Errorf("deposit transition references unknown index %d", tr.Idx)
		}
		next, err := entry.Next(tr.To)
		if err != nil {
			return fmt.Errorf("deposit %d: %w", tr.Idx, err)
		}
		cache.MutateDeposit(tr.Idx, next)
	}

	// L1BlockManifest carries no height field on the wire (spec.md §3); the
	// L1 reader is required to append manifests to NewPayloads in strictly
	// ascending height order immediately following the chain state's
	// highest already-recorded height, so the STF recovers each one's
	// height from its position rather than needing a redundant wire field.
	height := highestRecordedHeight(cache.State().L1)
	for _, manifest := range block.Body.L1Segment.NewPayloads {
		height++
		cache.AcceptL1Block(height, manifest)
	}

	cache.SetTip(block.Header.GetBlockId())
	return nil
}

func highestRecordedHeight(v state.L1View) uint64 {
	highest := v.BuriedHeight
	for _, rec := range v.Recent {
		if rec.Height > highest {
			highest = rec.Height
		}
	}
	return highest
}

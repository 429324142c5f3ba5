package state

import (
	"fmt"

	"github.com/alpenvertex/vertex-node/primitives"
)

// StateOpKind tags a chain-state-level write accumulated by a StateCache.
// Grounded 1:1 on original_source/crates/state/src/state_op.rs's StateOp
// enum (Replace / RevertL1Height / AcceptL1Block).
type StateOpKind uint8

const (
	OpReplace StateOpKind = iota
	OpRevertL1Height
	OpAcceptL1Block
)

// StateOp is one accumulated write. Only the field matching Kind is set.
type StateOp struct {
	Kind StateOpKind

	ReplaceState   ChainState        // OpReplace
	RevertToHeight uint64            // OpRevertL1Height
	AcceptHeight   uint64            // OpAcceptL1Block
	AcceptManifest primitives.L1BlockManifest // OpAcceptL1Block
}

// WriteBatch is the ordered collection of StateOps produced by a StateCache,
// persisted alongside the L2 block that produced it so a crash can replay
// from the last good ChainState (spec.md §4.B, §8 property 1).
type WriteBatch struct {
	Ops []StateOp
}

// StateCache wraps a ChainState snapshot and accumulates StateOps against
// it, mirroring the teacher's pattern of mutating an in-memory working copy
// (node/chainstate.go's workState) and only persisting once the whole block
// has been validated.
type StateCache struct {
	state ChainState
	ops   []StateOp
}

func NewStateCache(base ChainState) *StateCache {
	return &StateCache{state: base.Clone()}
}

// State returns the cache's current working ChainState.
func (c *StateCache) State() ChainState {
	return c.state
}

// Replace swaps the entire working chain state, recording a Replace op.
func (c *StateCache) Replace(newState ChainState) {
	c.state = newState.Clone()
	c.ops = append(c.ops, StateOp{Kind: OpReplace, ReplaceState: c.state.Clone()})
}

// RevertL1Height drops every recorded L1 manifest observed above h,
// mirroring a reorg rollback of the chain-state-owned L1 view.
func (c *StateCache) RevertL1Height(h uint64) {
	kept := make([]L1ManifestRecord, 0, len(c.state.L1.Recent))
	for _, rec := range c.state.L1.Recent {
		if rec.Height <= h {
			kept = append(kept, rec)
		}
	}
	c.state.L1.Recent = kept
	c.ops = append(c.ops, StateOp{Kind: OpRevertL1Height, RevertToHeight: h})
}

// AcceptL1Block appends a newly observed L1 manifest to the chain state's L1
// view, replacing any existing record at the same height (re-org-safe
// re-application).
func (c *StateCache) AcceptL1Block(height uint64, manifest primitives.L1BlockManifest) {
	filtered := c.state.L1.Recent[:0:0]
	for _, rec := range c.state.L1.Recent {
		if rec.Height != height {
			filtered = append(filtered, rec)
		}
	}
	c.state.L1.Recent = append(filtered, L1ManifestRecord{Height: height, Manifest: manifest})
	c.ops = append(c.ops, StateOp{Kind: OpAcceptL1Block, AcceptHeight: height, AcceptManifest: manifest})
}

// MutateDeposit applies a deposit lifecycle write directly on the working
// state. Deposit/operator mutations don't need their own StateOp kind: the
// STF is pure, so crash recovery replays process_block from the prior
// ChainState rather than replaying individual deposit writes; Finalize folds
// the net result into a single Replace op for the persisted WriteBatch.
func (c *StateCache) MutateDeposit(idx uint32, entry DepositEntry) {
	c.state.Deposits[idx] = entry
}

func (c *StateCache) SetTip(id primitives.L2BlockId) {
	c.state.TipBlockId = id
}

// Finalize returns the resulting ChainState and a WriteBatch that, replayed
// against the original base state, reproduces it bit-for-bit (spec.md §8
// property 1).
func (c *StateCache) Finalize() (ChainState, WriteBatch) {
	final := c.state.Clone()
	batch := WriteBatch{Ops: []StateOp{{Kind: OpReplace, ReplaceState: final.Clone()}}}
	return final, batch
}

// ApplyWriteBatchToChainState replays a WriteBatch's ops against prev,
// reproducing Finalize's result deterministically. Grounded on
// original_source/crates/state/src/state_op.rs's
// apply_write_batch_to_chainstate.
func ApplyWriteBatchToChainState(prev ChainState, batch WriteBatch) (ChainState, error) {
	cur := prev.Clone()
	for _, op := range batch.Ops {
		switch op.Kind {
		case OpReplace:
			cur = op.ReplaceState.Clone()
		case OpRevertL1Height:
			kept := make([]L1ManifestRecord, 0, len(cur.L1.Recent))
			for _, rec := range cur.L1.Recent {
				if rec.Height <= op.RevertToHeight {
					kept = append(kept, rec)
				}
			}
			cur.L1.Recent = kept
		case OpAcceptL1Block:
			filtered := cur.L1.Recent[:0:0]
			for _, rec := range cur.L1.Recent {
				if rec.Height != op.AcceptHeight {
					filtered = append(filtered, rec)
				}
			}
			cur.L1.Recent = append(filtered, L1ManifestRecord{Height: op.AcceptHeight, Manifest: op.AcceptManifest})
		default:
			return ChainState{}, fmt.Errorf("state: unknown StateOp kind %d", op.Kind)
		}
	}
	return cur, nil
}

// Package state holds the rollup's deterministic state types: ChainState
// (§3, §4.B/§4.E) and ConsensusState (§3, §4.D), along with the op types and
// apply functions that mutate them. Grounded on the teacher's
// node/chainstate.go ChainState type and on
// original_source/crates/state/src/{state_op,operation}.rs for the exact
// write-replay semantics.
package state

import (
	"fmt"

	"github.com/alpenvertex/vertex-node/primitives"
)

// DepositState is the lifecycle a bridge deposit moves through, per spec.md §3/§8 E4.
type DepositState uint8

const (
	DepositCreated DepositState = iota
	DepositAccepted
	DepositDispatched
	DepositExecuted
)

func (s DepositState) String() string {
	switch s {
	case DepositCreated:
		return "Created"
	case DepositAccepted:
		return "Accepted"
	case DepositDispatched:
		return "Dispatched"
	case DepositExecuted:
		return "Executed"
	default:
		return fmt.Sprintf("DepositState(%d)", uint8(s))
	}
}

// DepositEntry is one row of the deposits table, keyed by deposit index.
type DepositEntry struct {
	Amt   uint64
	State DepositState
}

// Next advances the deposit through its lifecycle, rejecting any
// out-of-order transition (spec.md §8 E4).
func (e DepositEntry) Next(to DepositState) (DepositEntry, error) {
	valid := map[DepositState]DepositState{
		DepositCreated:   DepositAccepted,
		DepositAccepted:  DepositDispatched,
		DepositDispatched: DepositExecuted,
	}
	want, ok := valid[e.State]
	if !ok || want != to {
		return e, fmt.Errorf("state: invalid deposit transition %s -> %s", e.State, to)
	}
	e.State = to
	return e, nil
}

// OperatorEntry is one row of the bridge operator table, keyed by operator
// index. Pubkey is an x-only (32-byte) pubkey with parity forced even per
// spec.md §3/§6.
type OperatorEntry struct {
	Pubkey primitives.Buf32
}

// L1ManifestRecord pairs a manifest with the L1 height it was observed at,
// so StateCache can revert by height without a separate height index.
type L1ManifestRecord struct {
	Height   uint64
	Manifest primitives.L1BlockManifest
}

// L1View is the chain-state-owned bookkeeping of recently observed L1
// headers and the buried height below which they're considered final,
// mutated only through StateCache (§4.B).
type L1View struct {
	Recent       []L1ManifestRecord
	BuriedHeight uint64
}

func (v L1View) clone() L1View {
	out := L1View{BuriedHeight: v.BuriedHeight}
	out.Recent = append([]L1ManifestRecord(nil), v.Recent...)
	return out
}

// ChainState is the deterministic rollup state described in spec.md §3.
// It is cloneable and mutated only through StateCache/WriteBatch.
type ChainState struct {
	TipBlockId primitives.L2BlockId
	Deposits   map[uint32]DepositEntry
	Operators  map[uint32]OperatorEntry
	L1         L1View
}

// NewChainState returns the empty/genesis chain state.
func NewChainState() ChainState {
	return ChainState{
		Deposits:  make(map[uint32]DepositEntry),
		Operators: make(map[uint32]OperatorEntry),
	}
}

// Clone returns a deep copy, since ChainState is only ever mutated via
// StateCache (the teacher's equivalent is node/chainstate.go's
// copyUtxoSet, generalized from a UTXO map to deposits+operators+L1 view).
func (s ChainState) Clone() ChainState {
	out := ChainState{
		TipBlockId: s.TipBlockId,
		Deposits:   make(map[uint32]DepositEntry, len(s.Deposits)),
		Operators:  make(map[uint32]OperatorEntry, len(s.Operators)),
		L1:         s.L1.clone(),
	}
	for k, v := range s.Deposits {
		out.Deposits[k] = v
	}
	for k, v := range s.Operators {
		out.Operators[k] = v
	}
	return out
}

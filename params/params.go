// Package params holds the rollup-level parameters that the consensus state
// machine, chain STF and duty layer are parameterized over. These correspond
// to spec.md §6's "rollup_params" configuration bundle, generalized into a
// typed struct the way the teacher generalizes its on-disk config in
// node/config.go.
package params

import (
	"fmt"

	"github.com/alpenvertex/vertex-node/primitives"
)

// RollupParams bundles the values that must be identical across every node
// following the same rollup instance. Unlike config.Config (per-node
// operational settings), these are consensus-critical.
type RollupParams struct {
	// MagicBytes prefixes deposit-request OP_RETURN scripts and inscription
	// tap-leaf envelopes.
	MagicBytes []byte

	// AddressLength is the expected byte length of the EL destination
	// address carried in a deposit-request script.
	AddressLength uint8

	// DepositQuantity is the fixed sat amount a deposit-request output #0
	// must carry.
	DepositQuantity uint64

	// BlockTimeSecs is the target L2 block cadence.
	BlockTimeSecs uint64

	// L2BlocksFetchLimit bounds get_recent_block_headers.
	L2BlocksFetchLimit uint64

	// VerifyProofs gates whether submit_checkpoint_proof actually runs the
	// zk verifier or accepts any well-formed proof (devnet mode).
	VerifyProofs bool

	// SequencerPubkey is the identity every L2BlockHeader.Signature must
	// verify against.
	SequencerPubkey primitives.Buf32

	// L1ReorgSafeDepth is the number of confirmations below the L1 tip at
	// which a header is considered buried/final (spec.md §9 open question:
	// exposed here as a rollup param since the original source left it
	// unparameterized).
	L1ReorgSafeDepth uint64

	// CheckpointEventInterval is how many sync events elapse between
	// ConsensusState checkpoints (spec.md §4.D, default 64).
	CheckpointEventInterval uint64

	// ChainId disambiguates inscriptions/signatures across networks.
	ChainId primitives.Buf32
}

func Validate(p RollupParams) error {
	if len(p.MagicBytes) == 0 {
		return fmt.Errorf("rollup params: magic_bytes required")
	}
	if len(p.MagicBytes) > 8 {
		return fmt.Errorf("rollup params: magic_bytes too long: %d", len(p.MagicBytes))
	}
	if p.AddressLength == 0 {
		return fmt.Errorf("rollup params: address_length required")
	}
	// OP_RETURN push is capped at 80 bytes total: magic ++ 32-byte control
	// hash ++ dest address.
	if int(p.AddressLength)+len(p.MagicBytes)+32 > 80 {
		return fmt.Errorf("rollup params: magic_bytes + address_length exceeds 80-byte OP_RETURN push")
	}
	if p.BlockTimeSecs == 0 {
		return fmt.Errorf("rollup params: block_time_secs required")
	}
	if p.L2BlocksFetchLimit == 0 {
		return fmt.Errorf("rollup params: l2_blocks_fetch_limit required")
	}
	if p.L1ReorgSafeDepth == 0 {
		return fmt.Errorf("rollup params: l1_reorg_safe_depth required")
	}
	if p.CheckpointEventInterval == 0 {
		return fmt.Errorf("rollup params: checkpoint_event_interval required")
	}
	return nil
}

func DefaultDevnetParams() RollupParams {
	return RollupParams{
		MagicBytes:              []byte("VRTX"),
		AddressLength:           20,
		DepositQuantity:         10_0000_0000,
		BlockTimeSecs:           2,
		L2BlocksFetchLimit:      1000,
		VerifyProofs:            false,
		L1ReorgSafeDepth:        6,
		CheckpointEventInterval: 64,
	}
}

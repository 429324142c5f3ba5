package rpcsrv

import (
	"fmt"

	"github.com/alpenvertex/vertex-node/primitives"
)

// ErrorCode tags the typed RPC error categories spec.md §7 requires: every
// internal error gets translated into one of these before it reaches a
// client, never leaking an internal error's stack trace or wrapped chain.
type ErrorCode string

const (
	CodeMissingBlock        ErrorCode = "MissingBlock"
	CodeUnknownDeposit      ErrorCode = "UnknownDeposit"
	CodeFetchLimitReached   ErrorCode = "FetchLimitReached"
	CodeProofAlreadyCreated ErrorCode = "ProofAlreadyCreated"
	CodeUnknownCheckpoint   ErrorCode = "UnknownCheckpoint"
	CodeInvalidProof        ErrorCode = "InvalidProof"
	CodeBeforeGenesis       ErrorCode = "BeforeGenesis"
	CodeInvalidParams       ErrorCode = "InvalidParams"
	CodeInternal            ErrorCode = "Internal"
)

// Error is the RPC-surfaced error shape: a stable code a client can branch
// on, plus a human-readable message. Handlers only ever hand one of these
// back across the wire (spec.md §7's "RPC handlers translate all internal
// errors to typed RPC error categories").
type Error struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
}

func (e *Error) Error() string { return fmt.Sprintf("%s: %s", e.Code, e.Message) }

func newError(code ErrorCode, format string, args ...interface{}) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// BlockHeader is the RPC-facing projection of l2block.Header, per spec.md
// §6's get_recent_block_headers/get_header_by_id shape.
type BlockHeader struct {
	BlockIdx        uint64               `json:"block_idx"`
	Timestamp       uint64               `json:"timestamp"`
	BlockId         primitives.L2BlockId `json:"block_id"`
	PrevBlock       primitives.L2BlockId `json:"prev_block"`
	L1SegmentHash   primitives.Buf32     `json:"l1_segment_hash"`
	ExecSegmentHash primitives.Buf32     `json:"exec_segment_hash"`
	StateRoot       primitives.Buf32     `json:"state_root"`
}

// ExecUpdate is the RPC-facing projection of an L2Block's exec segment,
// per spec.md §6's get_exec_update_by_id.
type ExecUpdate struct {
	BlockId primitives.L2BlockId `json:"block_id"`
	Update  []byte               `json:"update"`
}

// RawBundle is a whole L2 block serialized for bulk sync transport, per
// spec.md §6's get_raw_bundles/get_raw_bundle_by_id.
type RawBundle struct {
	BlockId primitives.L2BlockId `json:"block_id"`
	Raw     []byte               `json:"raw"`
}

// Deposit is the RPC-facing projection of a state.DepositEntry, keyed by
// its deposit index, per spec.md §6's get_current_deposits/
// get_current_deposit_by_id and §8 E4.
type Deposit struct {
	Idx   uint32 `json:"idx"`
	Amt   uint64 `json:"amt"`
	State string `json:"state"`
}

// BridgeDuty is a pending bridge-operator work item: a deposit that has
// moved to Dispatched and is awaiting the operator's withdrawal signature,
// per spec.md §6's get_bridge_duties and §8 E4's Dispatched -> Executed
// step.
type BridgeDuty struct {
	DepositIdx uint32 `json:"deposit_idx"`
	Amt        uint64 `json:"amt"`
}

// CheckpointInfo is the RPC-facing projection of a checkpointmgr
// CheckpointEntry, per spec.md §6's get_checkpoint_info.
type CheckpointInfo struct {
	Idx        uint64 `json:"idx"`
	Status     string `json:"status"`
	Proof      []byte `json:"proof,omitempty"`
	Transition []byte `json:"transition,omitempty"`
}

// L1Status is the RPC-facing projection of statusbus.L1Status, per spec.md
// §6's get_l1_status.
type L1Status struct {
	TipHeight    uint64                `json:"tip_height"`
	TipBlockId   primitives.L1BlockId  `json:"tip_block_id"`
	BuriedHeight uint64                `json:"buried_height"`
}

// ClientStatus is the RPC-facing projection of statusbus.ClientStatus,
// matching spec.md §6's get_client_status response shape exactly.
type ClientStatus struct {
	ChainTip       primitives.L2BlockId `json:"chain_tip"`
	ChainTipSlot   uint64               `json:"chain_tip_slot"`
	FinalizedBlkId primitives.L2BlockId `json:"finalized_blkid"`
	LastL1Block    primitives.L1BlockId `json:"last_l1_block"`
	BuriedL1Height uint64               `json:"buried_l1_height"`
}

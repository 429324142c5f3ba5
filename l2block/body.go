package l2block

import (
	"crypto/sha256"
	"encoding/binary"

	"github.com/alpenvertex/vertex-node/primitives"
	"github.com/alpenvertex/vertex-node/state"
)

// DepositIntent is a deposit newly announced by an L1 block in this
// segment, assigned the deposit index it will occupy in ChainState.Deposits
// once the STF processes it. Resolves spec.md §4.E's "deposits announced in
// the L1 segment → create deposit entries": the L1 reader parses the
// deposit-request scripts for each manifest in NewPayloads and the
// sequencer commits its decision about which deposits to accept directly
// into the block body, so the STF validates rather than re-derives Bitcoin
// script parsing.
type DepositIntent struct {
	Idx uint32
	Amt uint64
}

// L1Segment carries newly observed L1 header payloads plus the deposits
// they announce, per spec.md §3.
type L1Segment struct {
	NewPayloads []primitives.L1BlockManifest
	NewDeposits []DepositIntent
}

func NewL1Segment(payloads []primitives.L1BlockManifest, deposits []DepositIntent) L1Segment {
	if payloads == nil {
		payloads = []primitives.L1BlockManifest{}
	}
	if deposits == nil {
		deposits = []DepositIntent{}
	}
	return L1Segment{NewPayloads: payloads, NewDeposits: deposits}
}

// DepositTransition advances one existing deposit's lifecycle state, driven
// by the EL's withdrawal/da_blob processing for this block (spec.md §4.E).
type DepositTransition struct {
	Idx uint32
	To  state.DepositState
}

// ExecSegment carries one opaque EL update blob plus the deposit lifecycle
// transitions the EL's processing of that update implies.
type ExecSegment struct {
	Update             []byte
	DepositTransitions []DepositTransition
}

func NewExecSegment(update []byte, transitions []DepositTransition) ExecSegment {
	if transitions == nil {
		transitions = []DepositTransition{}
	}
	return ExecSegment{Update: append([]byte(nil), update...), DepositTransitions: transitions}
}

// Body is the L2 block body: an L1Segment plus an ExecSegment.
type Body struct {
	L1Segment   L1Segment
	ExecSegment ExecSegment
}

// HashL1Segment and HashExecSegment give the segment hashes committed to in
// the header, per spec.md §3's invariant
// "l1_segment_hash == hash(l1_segment)" / "exec_segment_hash == hash(exec_segment)".
func HashL1Segment(s L1Segment) primitives.Buf32 {
	h := sha256.New()
	var lenBuf [8]byte
	binary.LittleEndian.PutUint64(lenBuf[:], uint64(len(s.NewPayloads)))
	h.Write(lenBuf[:])
	for _, m := range s.NewPayloads {
		blkid := m.BlockId.Buf32()
		h.Write(blkid[:])
		h.Write(m.WitnessRoot[:])
		binary.LittleEndian.PutUint64(lenBuf[:], uint64(len(m.SerializedHeader)))
		h.Write(lenBuf[:])
		h.Write(m.SerializedHeader)
	}
	binary.LittleEndian.PutUint64(lenBuf[:], uint64(len(s.NewDeposits)))
	h.Write(lenBuf[:])
	for _, d := range s.NewDeposits {
		var idxBuf [4]byte
		binary.LittleEndian.PutUint32(idxBuf[:], d.Idx)
		h.Write(idxBuf[:])
		binary.LittleEndian.PutUint64(lenBuf[:], d.Amt)
		h.Write(lenBuf[:])
	}
	sum := h.Sum(nil)
	var out primitives.Buf32
	copy(out[:], sum)
	return out
}

func HashExecSegment(s ExecSegment) primitives.Buf32 {
	h := sha256.New()
	var lenBuf [8]byte
	binary.LittleEndian.PutUint64(lenBuf[:], uint64(len(s.Update)))
	h.Write(lenBuf[:])
	h.Write(s.Update)
	binary.LittleEndian.PutUint64(lenBuf[:], uint64(len(s.DepositTransitions)))
	h.Write(lenBuf[:])
	for _, t := range s.DepositTransitions {
		var idxBuf [4]byte
		binary.LittleEndian.PutUint32(idxBuf[:], t.Idx)
		h.Write(idxBuf[:])
		h.Write([]byte{byte(t.To)})
	}
	sum := h.Sum(nil)
	var out primitives.Buf32
	copy(out[:], sum)
	return out
}

// CheckSegmentHashes verifies the header's committed segment hashes match
// the body's actual contents, per spec.md §3.
func CheckSegmentHashes(h Header, b Body) error {
	if gotL1 := HashL1Segment(b.L1Segment); gotL1 != h.L1SegmentHash {
		return errSegmentHashMismatch("l1_segment", h.L1SegmentHash, gotL1)
	}
	if gotExec := HashExecSegment(b.ExecSegment); gotExec != h.ExecSegmentHash {
		return errSegmentHashMismatch("exec_segment", h.ExecSegmentHash, gotExec)
	}
	return nil
}

func errSegmentHashMismatch(name string, want, got primitives.Buf32) error {
	return &segmentHashMismatchError{name: name, want: want, got: got}
}

type segmentHashMismatchError struct {
	name string
	want primitives.Buf32
	got  primitives.Buf32
}

func (e *segmentHashMismatchError) Error() string {
	return "l2block: " + e.name + "_hash mismatch: header says " + e.want.String() + ", body hashes to " + e.got.String()
}

// Block is a full L2 block: header plus body.
type Block struct {
	Header Header
	Body   Body
}

package inscription

import (
	"context"
	"fmt"

	"github.com/alpenvertex/vertex-node/primitives"
)

// TaprootKeyer performs the two secp256k1-dependent operations this package
// cannot do with hash arithmetic alone: tweaking an internal key by a
// script-tree merkle root to get the output key the commit transaction
// pays to, and producing the Schnorr signature the reveal witness's
// script-path spend needs. No repo in the example pack carries a
// secp256k1/Schnorr implementation (the pack's only EC-adjacent code is
// ed25519, used for the sequencer's block-signing credential — a distinct
// curve), so rather than hand-roll elliptic curve arithmetic this package
// keeps those two operations behind a narrow capability interface, the
// same way the teacher isolates HSM-backed operations behind
// crypto.CryptoProvider instead of implementing the algorithm inline.
type TaprootKeyer interface {
	TapTweakPubkey(ctx context.Context, internalKey primitives.Buf32, merkleRoot primitives.Buf32) (outputKey primitives.Buf32, parity bool, err error)
	SignTapLeaf(ctx context.Context, internalKey primitives.Buf32, sighash primitives.Buf32) (sig primitives.Buf64, err error)
}

// ControlBlock assembles the BIP341 script-path control block for a
// single-leaf tap tree: leaf_version|parity byte, followed by the internal
// key. A single-leaf tree has an empty merkle path, so nothing else is
// appended.
func ControlBlock(internalKey primitives.Buf32, parity bool) []byte {
	versionByte := byte(LeafVersion)
	if parity {
		versionByte |= 0x01
	}
	out := make([]byte, 0, 1+32)
	out = append(out, versionByte)
	out = append(out, internalKey[:]...)
	return out
}

// CommitOutputScript is the taproot scriptPubKey (OP_1 <32-byte output
// key>) the commit transaction's output #0 pays to.
func CommitOutputScript(outputKey primitives.Buf32) []byte {
	out := make([]byte, 0, 2+32)
	out = append(out, 0x51, 0x20) // OP_1, 32-byte push
	out = append(out, outputKey[:]...)
	return out
}

// RevealWitness is the reveal transaction's input #0 witness:
// [signature, script, control_block], per spec.md §6's invariant (b).
type RevealWitness struct {
	Signature    primitives.Buf64
	Script       []byte
	ControlBlock []byte
}

// ErrEmptyWitnessBlock is returned when an assembled reveal witness would
// have an empty element, which a transaction broadcast would otherwise
// accept as a vacuous/invalid inscription — spec.md §6 names this failure
// condition explicitly.
var ErrEmptyWitnessBlock = fmt.Errorf("inscription: reveal witness must not contain an empty element")

// Validate checks RevealWitness against spec.md §6's invariants (b) and (c).
func (w RevealWitness) Validate() error {
	if w.Signature == (primitives.Buf64{}) {
		return ErrEmptyWitnessBlock
	}
	if len(w.Script) == 0 {
		return ErrEmptyWitnessBlock
	}
	if len(w.ControlBlock) == 0 {
		return ErrEmptyWitnessBlock
	}
	return nil
}

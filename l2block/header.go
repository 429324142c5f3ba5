// Package l2block defines the L2 block header/body types and the credential
// check that binds every block to the sequencer identity, grounded on the
// teacher's consensus/block_basic.go parse-then-validate shape and on
// original_source/crates/state/src/block.rs's L2BlockHeader field layout.
package l2block

import (
	"bytes"
	"crypto/ed25519"
	"crypto/sha256"
	"encoding/binary"
	"fmt"

	"github.com/alpenvertex/vertex-node/primitives"
)

// Header is the L2 block header. get_blockid() hashes the canonical
// serialization of every field, including the (possibly zeroed) signature,
// matching spec.md §3.
type Header struct {
	BlockIdx        uint64
	Timestamp       uint64
	PrevBlock       primitives.L2BlockId
	L1SegmentHash   primitives.Buf32
	ExecSegmentHash primitives.Buf32
	StateRoot       primitives.Buf32
	Signature       primitives.Buf64
}

// canonicalBytes is the deterministic serialization used both for get_blockid
// and for the credential signature (computed with Signature zeroed).
func (h Header) canonicalBytes() []byte {
	buf := make([]byte, 0, 8+8+32+32+32+32+64)
	var tmp [8]byte

	binary.LittleEndian.PutUint64(tmp[:], h.BlockIdx)
	buf = append(buf, tmp[:]...)

	binary.LittleEndian.PutUint64(tmp[:], h.Timestamp)
	buf = append(buf, tmp[:]...)

	prev := h.PrevBlock.Buf32()
	buf = append(buf, prev[:]...)
	buf = append(buf, h.L1SegmentHash[:]...)
	buf = append(buf, h.ExecSegmentHash[:]...)
	buf = append(buf, h.StateRoot[:]...)
	buf = append(buf, h.Signature[:]...)
	return buf
}

// GetBlockId computes the blockid as SHA-256 over the canonical serialization
// of every field including the signature (spec.md §3).
func (h Header) GetBlockId() primitives.L2BlockId {
	sum := sha256.Sum256(h.canonicalBytes())
	return primitives.NewL2BlockId(primitives.Buf32(sum))
}

// signingDigest is the same canonical serialization but with Signature
// zeroed, so that signing doesn't depend on its own output.
func (h Header) signingDigest() [32]byte {
	unsigned := h
	unsigned.Signature = primitives.ZeroBuf64
	return sha256.Sum256(unsigned.canonicalBytes())
}

// Sign produces the signature field for an otherwise-complete header using
// an ed25519 sequencer key. The 64-byte ed25519 signature maps directly onto
// Buf64; the 32-byte ed25519 public key maps directly onto the pinned
// sequencer pubkey (Buf32).
func Sign(h Header, priv ed25519.PrivateKey) (primitives.Buf64, error) {
	digest := h.signingDigest()
	sig := ed25519.Sign(priv, digest[:])
	return primitives.Buf64FromSlice(sig)
}

// CheckCredential verifies that h.Signature is a valid signature (under
// sequencerPubkey) over the header with Signature zeroed, matching spec.md
// §4.E step 1 ("check_block_credential"). Per spec.md §7, this is only ever
// called on pre-validated input whose failure is a fatal STF assertion, so
// the caller — not CheckCredential — decides how to escalate a mismatch.
func CheckCredential(h Header, sequencerPubkey primitives.Buf32) error {
	digest := h.signingDigest()
	pub := ed25519.PublicKey(sequencerPubkey[:])
	if !ed25519.Verify(pub, digest[:], h.Signature[:]) {
		return fmt.Errorf("l2block: header signature does not verify against sequencer pubkey")
	}
	return nil
}

// CheckIndexLinkage enforces block_idx == parent.block_idx + 1 unless
// block_idx == 0 (genesis, prev_block == zero), per spec.md §3.
func CheckIndexLinkage(h Header, parent *Header) error {
	if h.BlockIdx == 0 {
		if !h.PrevBlock.IsZero() {
			return fmt.Errorf("l2block: genesis header must have zero prev_block")
		}
		if parent != nil {
			return fmt.Errorf("l2block: genesis header must not have a parent")
		}
		return nil
	}
	if parent == nil {
		return fmt.Errorf("l2block: non-genesis header requires a parent")
	}
	if h.BlockIdx != parent.BlockIdx+1 {
		return fmt.Errorf("l2block: block_idx %d is not parent.block_idx+1 (%d)", h.BlockIdx, parent.BlockIdx+1)
	}
	parentId := parent.GetBlockId().Buf32()
	if !bytes.Equal(h.PrevBlock.Buf32().Bytes(), parentId.Bytes()) {
		return fmt.Errorf("l2block: prev_block does not match parent's blockid")
	}
	return nil
}

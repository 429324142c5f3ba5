package l2block

import "github.com/alpenvertex/vertex-node/primitives"

// Template is a header with every field set except Signature, mirroring the
// teacher's two-phase "build unsigned header prefix, then append the
// proof-of-work nonce" shape in node/miner.go's makeHeaderPrefix/
// appendU64leMiner, generalized here to "build unsigned header, then append
// the sequencer signature".
type Template struct {
	header Header
}

// CreateHeaderTemplate builds an unsigned header for a candidate block,
// deriving the segment hashes from the body so the caller can't
// accidentally desynchronize them.
func CreateHeaderTemplate(blockIdx uint64, timestamp uint64, prevBlock primitives.L2BlockId, body Body, stateRoot primitives.Buf32) Template {
	return Template{header: Header{
		BlockIdx:        blockIdx,
		Timestamp:       timestamp,
		PrevBlock:       prevBlock,
		L1SegmentHash:   HashL1Segment(body.L1Segment),
		ExecSegmentHash: HashExecSegment(body.ExecSegment),
		StateRoot:       stateRoot,
		Signature:       primitives.ZeroBuf64,
	}}
}

// CompleteWith attaches the final signature, producing the header that will
// be persisted and whose GetBlockId() becomes the block's identity.
func (t Template) CompleteWith(sig primitives.Buf64) Header {
	h := t.header
	h.Signature = sig
	return h
}

// Unsigned returns the header as it stands before signing (Signature
// zeroed), useful for computing the signing digest out-of-band (e.g. when
// signing happens on a remote HSM-shaped signer).
func (t Template) Unsigned() Header {
	return t.header
}

// Package inscription builds the commit/reveal taproot transaction pair
// that carries a checkpoint or DA blob onto L1, per spec.md §4.H/§6.
// Grounded on original_source/crates/btcio/src/writer/signer.rs's
// create_and_sign_blob_inscriptions, whose build_inscription_txs/UTXO-
// selection/wallet-signing half wasn't retrieved into this pack — the
// envelope script and tap-leaf math below are built directly from spec.md
// §6's wire format description instead.
package inscription

import (
	"crypto/sha256"
	"fmt"

	"github.com/alpenvertex/vertex-node/primitives"
)

const (
	// maxChunkBytes is the largest single data push Bitcoin script allows
	// via OP_PUSHDATA2 headroom before needing a new push; spec.md §6
	// caps inscription chunks at 520 bytes, matching Bitcoin's own
	// MAX_SCRIPT_ELEMENT_SIZE.
	maxChunkBytes = 520

	opFalse  = 0x00
	opIf     = 0x63
	opEndIf  = 0x68
	opPushdata1 = 0x4c
	opPushdata2 = 0x4d
)

// ChunkPayload splits data into pushes no larger than maxChunkBytes, in
// order, so BuildEnvelopeScript can embed an arbitrarily large blob (up to
// spec.md §6's 1 MB ceiling) as a sequence of pushes inside one tap leaf.
func ChunkPayload(data []byte) [][]byte {
	if len(data) == 0 {
		return nil
	}
	var chunks [][]byte
	for len(data) > 0 {
		n := maxChunkBytes
		if n > len(data) {
			n = len(data)
		}
		chunks = append(chunks, data[:n])
		data = data[n:]
	}
	return chunks
}

// BuildEnvelopeScript assembles the tap-leaf script
// `OP_FALSE OP_IF <magic_bytes> <chunk_1> ... <chunk_n> OP_ENDIF`, per
// spec.md §6's inscription format. OP_FALSE/OP_IF makes the pushed data
// unexecuted (it is only ever read back out of the witness by an indexer,
// never executed as script), the same "data push hidden behind an
// always-false branch" trick Bitcoin ordinal/inscription protocols use.
func BuildEnvelopeScript(magicBytes []byte, payload []byte) ([]byte, error) {
	if len(magicBytes) == 0 {
		return nil, fmt.Errorf("inscription: magic_bytes required")
	}
	script := []byte{opFalse, opIf}
	script = append(script, pushData(magicBytes)...)
	for _, chunk := range ChunkPayload(payload) {
		script = append(script, pushData(chunk)...)
	}
	script = append(script, opEndIf)
	return script, nil
}

// pushData encodes a single data push using the shortest applicable
// opcode, mirroring standard Bitcoin script push-data encoding.
func pushData(data []byte) []byte {
	n := len(data)
	switch {
	case n <= 75:
		return append([]byte{byte(n)}, data...)
	case n <= 255:
		return append([]byte{opPushdata1, byte(n)}, data...)
	default:
		return append([]byte{opPushdata2, byte(n), byte(n >> 8)}, data...)
	}
}

// tapLeafTag is BIP341's "TapLeaf" tagged-hash domain separator.
var tapLeafTag = sha256.Sum256([]byte("TapLeaf"))

// LeafVersion is BIP342's default tapscript leaf version.
const LeafVersion = 0xc0

// TapLeafHash computes the BIP341 tagged leaf hash of script at
// LeafVersion: sha256(tag||tag || leaf_version || compact_size(len(script)) || script).
// This needs no elliptic-curve arithmetic (it's a pure hash), unlike the
// taproot output-key tweak, which TaprootKeyer (taproot.go) delegates out.
func TapLeafHash(script []byte) primitives.Buf32 {
	h := sha256.New()
	h.Write(tapLeafTag[:])
	h.Write(tapLeafTag[:])
	h.Write([]byte{LeafVersion})
	h.Write(compactSize(uint64(len(script))))
	h.Write(script)
	sum := h.Sum(nil)
	var out primitives.Buf32
	copy(out[:], sum)
	return out
}

func compactSize(n uint64) []byte {
	switch {
	case n < 0xfd:
		return []byte{byte(n)}
	case n <= 0xffff:
		return []byte{0xfd, byte(n), byte(n >> 8)}
	case n <= 0xffffffff:
		return []byte{0xfe, byte(n), byte(n >> 8), byte(n >> 16), byte(n >> 24)}
	default:
		return []byte{0xff, byte(n), byte(n >> 8), byte(n >> 16), byte(n >> 24), byte(n >> 32), byte(n >> 40), byte(n >> 48), byte(n >> 56)}
	}
}

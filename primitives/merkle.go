package primitives

import (
	"crypto/sha256"
	"fmt"
)

// dsha256 is Bitcoin's double-SHA256.
func dsha256(b []byte) [32]byte {
	first := sha256.Sum256(b)
	return sha256.Sum256(first[:])
}

// reverse32 returns a byte-reversed copy, matching Bitcoin's txid display
// endianness: txids are stored internally in the order produced by
// dsha256, but the Merkle tree pairs them after reversal.
func reverse32(b [32]byte) [32]byte {
	var out [32]byte
	for i := 0; i < 32; i++ {
		out[i] = b[31-i]
	}
	return out
}

// Cohashes computes the Bitcoin-style Merkle inclusion path ("cohashes") for
// txids[idx] within the tree formed over txids. At each level, an odd-length
// level duplicates its last entry before pairing; the sibling of idx is
// idx^1; hashing combines byte-reversed children with double-SHA256, and
// idx is halved between levels. The returned slice has length
// ceil(log2(len(txids))) (zero for a single-element tree).
//
// Fails only if idx is out of range.
func Cohashes(txids [][32]byte, idx uint32) ([][32]byte, error) {
	if int(idx) >= len(txids) {
		return nil, fmt.Errorf("merkle: idx %d out of range for %d txids", idx, len(txids))
	}
	if len(txids) == 0 {
		return nil, fmt.Errorf("merkle: empty txid list")
	}

	level := make([][32]byte, len(txids))
	copy(level, txids)
	pos := idx

	var cohashes [][32]byte
	for len(level) > 1 {
		if len(level)%2 == 1 {
			level = append(level, level[len(level)-1])
		}
		sibling := pos ^ 1
		cohashes = append(cohashes, level[sibling])

		next := make([][32]byte, len(level)/2)
		for i := 0; i < len(next); i++ {
			left := reverse32(level[2*i])
			right := reverse32(level[2*i+1])
			buf := make([]byte, 0, 64)
			buf = append(buf, left[:]...)
			buf = append(buf, right[:]...)
			next[i] = dsha256(buf)
		}
		level = next
		pos >>= 1
	}
	return cohashes, nil
}

// Root reconstructs the Merkle root from a leaf and its cohashes path,
// by pairing the leaf with each cohash in order and promoting the result,
// matching the witness-root formula used by Bitcoin (pair-duplication
// already baked into cohashes as computed by Cohashes).
func Root(leaf [32]byte, idx uint32, cohashes [][32]byte) [32]byte {
	cur := leaf
	pos := idx
	for _, sib := range cohashes {
		left := reverse32(cur)
		right := reverse32(sib)
		if pos&1 == 1 {
			left, right = right, left
		}
		buf := make([]byte, 0, 64)
		buf = append(buf, left[:]...)
		buf = append(buf, right[:]...)
		cur = dsha256(buf)
		pos >>= 1
	}
	return cur
}

// RootFromTxids computes the Merkle root directly over a full txid list,
// used by the L1 reader to validate a fetched block's claimed merkle root.
func RootFromTxids(txids [][32]byte) ([32]byte, error) {
	if len(txids) == 0 {
		return [32]byte{}, fmt.Errorf("merkle: empty txid list")
	}
	cohashes, err := Cohashes(txids, 0)
	if err != nil {
		return [32]byte{}, err
	}
	return Root(txids[0], 0, cohashes), nil
}

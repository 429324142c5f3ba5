// Package storage wires up the bbolt-backed providers for every namespace
// spec.md §6 names: L1 manifests and txs, L2 blocks (plus a height index),
// chainstate snapshots, and ConsensusState checkpoints. Grounded throughout
// on the teacher's node/store/db.go bucket-per-namespace layout, generalized
// from "one UTXO set" to "one bucket per persisted record kind."
package storage

import (
	"encoding/binary"
	"fmt"

	"github.com/alpenvertex/vertex-node/primitives"
)

// writer accumulates a length-prefixed binary record the same way
// broadcaster/store.go and checkpointmgr/store.go build theirs, factored
// out here since storage's records have more fields.
type writer struct {
	buf []byte
}

func (w *writer) u8(v uint8)   { w.buf = append(w.buf, v) }
func (w *writer) u32(v uint32) {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	w.buf = append(w.buf, b[:]...)
}
func (w *writer) u64(v uint64) {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], v)
	w.buf = append(w.buf, b[:]...)
}
func (w *writer) buf32(b primitives.Buf32) { w.buf = append(w.buf, b[:]...) }
func (w *writer) buf64(b primitives.Buf64) { w.buf = append(w.buf, b[:]...) }
func (w *writer) bytes(b []byte) {
	w.u32(uint32(len(b)))
	w.buf = append(w.buf, b...)
}

// reader walks a writer-produced record, erroring on truncation.
type reader struct {
	buf []byte
	pos int
	err error
}

func newReader(b []byte) *reader { return &reader{buf: b} }

func (r *reader) need(n int) bool {
	if r.err != nil {
		return false
	}
	if r.pos+n > len(r.buf) {
		r.err = fmt.Errorf("storage: record truncated: need %d bytes at offset %d, have %d", n, r.pos, len(r.buf))
		return false
	}
	return true
}

func (r *reader) u8() uint8 {
	if !r.need(1) {
		return 0
	}
	v := r.buf[r.pos]
	r.pos++
	return v
}

func (r *reader) u32() uint32 {
	if !r.need(4) {
		return 0
	}
	v := binary.LittleEndian.Uint32(r.buf[r.pos : r.pos+4])
	r.pos += 4
	return v
}

func (r *reader) u64() uint64 {
	if !r.need(8) {
		return 0
	}
	v := binary.LittleEndian.Uint64(r.buf[r.pos : r.pos+8])
	r.pos += 8
	return v
}

func (r *reader) buf32() primitives.Buf32 {
	var out primitives.Buf32
	if !r.need(32) {
		return out
	}
	copy(out[:], r.buf[r.pos:r.pos+32])
	r.pos += 32
	return out
}

func (r *reader) buf64() primitives.Buf64 {
	var out primitives.Buf64
	if !r.need(64) {
		return out
	}
	copy(out[:], r.buf[r.pos:r.pos+64])
	r.pos += 64
	return out
}

func (r *reader) bytes() []byte {
	n := r.u32()
	if !r.need(int(n)) {
		return nil
	}
	out := append([]byte(nil), r.buf[r.pos:r.pos+int(n)]...)
	r.pos += int(n)
	return out
}

func heightKey(height uint64) []byte {
	var k [8]byte
	binary.BigEndian.PutUint64(k[:], height)
	return k[:]
}

func decodeHeightKey(k []byte) uint64 { return binary.BigEndian.Uint64(k) }

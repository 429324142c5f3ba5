package syncevent

import (
	"encoding/binary"
	"fmt"

	"github.com/alpenvertex/vertex-node/primitives"
)

// encode/decode give Event a fixed-layout binary form for bbolt storage,
// mirroring the teacher's fixed-offset encoding in
// node/store/db.go's encodeIndexEntry/decodeIndexEntry.
//
// layout: kind(1) | l1_height(8 LE) | l1_block_id(32) | l2_block_id(32) | checkpoint_idx(8 LE)
const encodedLen = 1 + 8 + 32 + 32 + 8

func encode(e Event) []byte {
	out := make([]byte, encodedLen)
	out[0] = byte(e.Kind)
	binary.LittleEndian.PutUint64(out[1:9], e.L1Height)
	copy(out[9:41], e.L1BlockId.Buf32().Bytes())
	copy(out[41:73], e.L2BlockId.Buf32().Bytes())
	binary.LittleEndian.PutUint64(out[73:81], e.CheckpointIdx)
	return out
}

func decode(b []byte) (Event, error) {
	if len(b) != encodedLen {
		return Event{}, fmt.Errorf("syncevent: bad encoded length %d, want %d", len(b), encodedLen)
	}
	var l1id, l2id primitives.Buf32
	copy(l1id[:], b[9:41])
	copy(l2id[:], b[41:73])
	return Event{
		Kind:          Kind(b[0]),
		L1Height:      binary.LittleEndian.Uint64(b[1:9]),
		L1BlockId:     primitives.NewL1BlockId(l1id),
		L2BlockId:     primitives.NewL2BlockId(l2id),
		CheckpointIdx: binary.LittleEndian.Uint64(b[73:81]),
	}, nil
}

// encodeKey gives an event index a big-endian key so bbolt's byte-ordered
// cursor scan visits events in index order, the ordering property
// Log.Range/Tail rely on.
func encodeKey(idx uint64) []byte {
	var k [8]byte
	binary.BigEndian.PutUint64(k[:], idx)
	return k[:]
}

func decodeKey(k []byte) uint64 {
	return binary.BigEndian.Uint64(k)
}

// Package checkpointmgr owns the rollup-level checkpoint lifecycle: turning
// a finalized checkpoint index into a signed commit/reveal inscription pair
// (spec.md §4.H), and accepting the zk-proof that later arrives for it over
// RPC (spec.md §6's submit_checkpoint_proof state machine). This is distinct
// from csm.CheckpointStore, which snapshots ConsensusState for replay
// (spec.md §9's two senses of "checkpoint").
//
// Grounded on the teacher's bbolt bucket-per-namespace storage pattern
// (node/store/db.go), the same way broadcaster/store.go is.
package checkpointmgr

import (
	"encoding/binary"
	"fmt"

	"github.com/alpenvertex/vertex-node/primitives"
	bolt "go.etcd.io/bbolt"
)

// ProofStatus is a CheckpointEntry's position in the submit_checkpoint_proof
// state machine.
type ProofStatus uint8

const (
	StatusPendingProof ProofStatus = iota
	StatusProofReady
)

func (s ProofStatus) String() string {
	switch s {
	case StatusPendingProof:
		return "PendingProof"
	case StatusProofReady:
		return "ProofReady"
	default:
		return fmt.Sprintf("ProofStatus(%d)", uint8(s))
	}
}

// CheckpointEntry is one rollup-level checkpoint, keyed by its idx.
type CheckpointEntry struct {
	Idx        uint64
	Status     ProofStatus
	Proof      []byte
	Transition []byte
}

// BlobStatus tracks a checkpoint blob's progress through inscription,
// mirroring the broadcaster's tx-entry lifecycle at the blob level rather
// than the raw-transaction level.
type BlobStatus uint8

const (
	BlobUnsigned BlobStatus = iota
	BlobUnpublished
	BlobInMempool
	BlobConfirmed
	BlobFinalized
	BlobExcluded
)

func (s BlobStatus) String() string {
	switch s {
	case BlobUnsigned:
		return "Unsigned"
	case BlobUnpublished:
		return "Unpublished"
	case BlobInMempool:
		return "InMempool"
	case BlobConfirmed:
		return "Confirmed"
	case BlobFinalized:
		return "Finalized"
	case BlobExcluded:
		return "Excluded"
	default:
		return fmt.Sprintf("BlobStatus(%d)", uint8(s))
	}
}

// BlobEntry is a checkpoint blob's inscription record, keyed by the hash of
// its own contents (its "intent hash", spec.md §6).
type BlobEntry struct {
	Blob       []byte
	CheckpointIdx uint64
	Status     BlobStatus
	CommitTxid primitives.Buf32
	RevealTxid primitives.Buf32
}

var (
	bucketCheckpoints = []byte("checkpoint_entries")
	bucketBlobs       = []byte("blob_entries")
)

// Store is the bbolt-backed pair of checkpoint-entry and blob-entry tables.
type Store struct {
	db *bolt.DB
}

func Open(db *bolt.DB) (*Store, error) {
	if err := db.Update(func(tx *bolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists(bucketCheckpoints); err != nil {
			return err
		}
		_, err := tx.CreateBucketIfNotExists(bucketBlobs)
		return err
	}); err != nil {
		return nil, fmt.Errorf("checkpointmgr: create buckets: %w", err)
	}
	return &Store{db: db}, nil
}

func idxKey(idx uint64) []byte {
	var k [8]byte
	binary.BigEndian.PutUint64(k[:], idx)
	return k[:]
}

func (s *Store) PutCheckpoint(e CheckpointEntry) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketCheckpoints)
		return b.Put(idxKey(e.Idx), encodeCheckpoint(e))
	})
}

func (s *Store) GetCheckpoint(idx uint64) (CheckpointEntry, bool, error) {
	var e CheckpointEntry
	var found bool
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketCheckpoints)
		val := b.Get(idxKey(idx))
		if val == nil {
			return nil
		}
		found = true
		var derr error
		e, derr = decodeCheckpoint(idx, val)
		return derr
	})
	return e, found, err
}

func (s *Store) PutBlob(intentHash primitives.Buf32, e BlobEntry) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketBlobs)
		return b.Put(intentHash[:], encodeBlob(e))
	})
}

func (s *Store) GetBlob(intentHash primitives.Buf32) (BlobEntry, bool, error) {
	var e BlobEntry
	var found bool
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketBlobs)
		val := b.Get(intentHash[:])
		if val == nil {
			return nil
		}
		found = true
		var derr error
		e, derr = decodeBlob(val)
		return derr
	})
	return e, found, err
}

func encodeCheckpoint(e CheckpointEntry) []byte {
	buf := make([]byte, 0, 1+4+len(e.Proof)+4+len(e.Transition))
	buf = append(buf, byte(e.Status))
	var u32 [4]byte
	binary.LittleEndian.PutUint32(u32[:], uint32(len(e.Proof)))
	buf = append(buf, u32[:]...)
	buf = append(buf, e.Proof...)
	binary.LittleEndian.PutUint32(u32[:], uint32(len(e.Transition)))
	buf = append(buf, u32[:]...)
	buf = append(buf, e.Transition...)
	return buf
}

func decodeCheckpoint(idx uint64, b []byte) (CheckpointEntry, error) {
	if len(b) < 1+4 {
		return CheckpointEntry{}, fmt.Errorf("checkpointmgr: checkpoint record too short")
	}
	e := CheckpointEntry{Idx: idx, Status: ProofStatus(b[0])}
	b = b[1:]
	proofLen := binary.LittleEndian.Uint32(b[:4])
	b = b[4:]
	if uint64(len(b)) < uint64(proofLen)+4 {
		return CheckpointEntry{}, fmt.Errorf("checkpointmgr: checkpoint record truncated")
	}
	e.Proof = append([]byte(nil), b[:proofLen]...)
	b = b[proofLen:]
	transLen := binary.LittleEndian.Uint32(b[:4])
	b = b[4:]
	if uint64(len(b)) < uint64(transLen) {
		return CheckpointEntry{}, fmt.Errorf("checkpointmgr: checkpoint record truncated transition")
	}
	e.Transition = append([]byte(nil), b[:transLen]...)
	return e, nil
}

func encodeBlob(e BlobEntry) []byte {
	buf := make([]byte, 0, 1+8+32+32+4+len(e.Blob))
	buf = append(buf, byte(e.Status))
	var u64 [8]byte
	binary.LittleEndian.PutUint64(u64[:], e.CheckpointIdx)
	buf = append(buf, u64[:]...)
	buf = append(buf, e.CommitTxid[:]...)
	buf = append(buf, e.RevealTxid[:]...)
	var u32 [4]byte
	binary.LittleEndian.PutUint32(u32[:], uint32(len(e.Blob)))
	buf = append(buf, u32[:]...)
	buf = append(buf, e.Blob...)
	return buf
}

func decodeBlob(b []byte) (BlobEntry, error) {
	if len(b) < 1+8+32+32+4 {
		return BlobEntry{}, fmt.Errorf("checkpointmgr: blob record too short")
	}
	e := BlobEntry{Status: BlobStatus(b[0])}
	b = b[1:]
	e.CheckpointIdx = binary.LittleEndian.Uint64(b[:8])
	b = b[8:]
	copy(e.CommitTxid[:], b[:32])
	b = b[32:]
	copy(e.RevealTxid[:], b[:32])
	b = b[32:]
	blobLen := binary.LittleEndian.Uint32(b[:4])
	b = b[4:]
	if uint64(len(b)) < uint64(blobLen) {
		return BlobEntry{}, fmt.Errorf("checkpointmgr: blob record truncated")
	}
	e.Blob = append([]byte(nil), b[:blobLen]...)
	return e, nil
}

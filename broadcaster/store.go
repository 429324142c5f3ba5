// Package broadcaster tracks every raw L1 transaction this node has signed
// (commit and reveal alike) through to confirmation, and runs the loop that
// actually publishes them to the Bitcoin network, per spec.md §4.H and §6.
// Grounded on original_source/crates/btcio/src/handlers.rs's data-flow shape
// and on the teacher's bbolt bucket-per-namespace storage pattern
// (node/store/db.go).
package broadcaster

import (
	"context"
	"encoding/binary"
	"fmt"
	"time"

	"github.com/alpenvertex/vertex-node/primitives"
	bolt "go.etcd.io/bbolt"
)

// Status is an L1TxEntry's lifecycle stage.
type Status uint8

const (
	StatusUnpublished Status = iota
	StatusPublished
	StatusConfirmed
	StatusExcluded
)

func (s Status) String() string {
	switch s {
	case StatusUnpublished:
		return "Unpublished"
	case StatusPublished:
		return "Published"
	case StatusConfirmed:
		return "Confirmed"
	case StatusExcluded:
		return "Excluded"
	default:
		return fmt.Sprintf("Status(%d)", uint8(s))
	}
}

// Entry is one tracked raw transaction. ConfirmedHeight is only meaningful
// when Status == StatusConfirmed; ExcludedReason only when StatusExcluded.
// CommitTxid is the zero Buf32 for a commit tx (or any standalone tx); for
// a reveal tx it names the commit tx it spends, so the broadcast loop
// holds it until that commit is accepted.
type Entry struct {
	RawTx           []byte
	Status          Status
	ConfirmedHeight uint64
	ExcludedReason  string
	LastSeen        int64
	CommitTxid      primitives.Buf32
}

var bucketTxEntries = []byte("l1_tx_entries")

// Store is the bbolt-backed table of L1TxEntry rows, keyed by txid.
type Store struct {
	db *bolt.DB
}

func Open(db *bolt.DB) (*Store, error) {
	if err := db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketTxEntries)
		return err
	}); err != nil {
		return nil, fmt.Errorf("broadcaster: create bucket: %w", err)
	}
	return &Store{db: db}, nil
}

// InsertUnpublishedTx implements inscription.TxEntryStore: a freshly signed
// raw tx starts life as Unpublished.
func (s *Store) InsertUnpublishedTx(_ context.Context, txid primitives.Buf32, raw []byte, commitTxid primitives.Buf32) error {
	return s.Put(txid, Entry{RawTx: raw, Status: StatusUnpublished, LastSeen: time.Now().UnixMilli(), CommitTxid: commitTxid})
}

func (s *Store) Put(txid primitives.Buf32, e Entry) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketTxEntries)
		val, err := encodeEntry(e)
		if err != nil {
			return err
		}
		return b.Put(txid[:], val)
	})
}

func (s *Store) Get(txid primitives.Buf32) (Entry, bool, error) {
	var e Entry
	var found bool
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketTxEntries)
		val := b.Get(txid[:])
		if val == nil {
			return nil
		}
		found = true
		var derr error
		e, derr = decodeEntry(val)
		return derr
	})
	return e, found, err
}

// Unpublished returns every entry still awaiting broadcast, for the
// broadcast loop to pick up each tick.
func (s *Store) Unpublished() (map[primitives.Buf32]Entry, error) {
	out := make(map[primitives.Buf32]Entry)
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketTxEntries)
		return b.ForEach(func(k, v []byte) error {
			e, err := decodeEntry(v)
			if err != nil {
				return err
			}
			if e.Status == StatusUnpublished {
				var id primitives.Buf32
				copy(id[:], k)
				out[id] = e
			}
			return nil
		})
	})
	return out, err
}

// all returns every tracked entry regardless of status.
func (s *Store) all() (map[primitives.Buf32]Entry, error) {
	out := make(map[primitives.Buf32]Entry)
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketTxEntries)
		return b.ForEach(func(k, v []byte) error {
			e, err := decodeEntry(v)
			if err != nil {
				return err
			}
			var id primitives.Buf32
			copy(id[:], k)
			out[id] = e
			return nil
		})
	})
	return out, err
}

func encodeEntry(e Entry) ([]byte, error) {
	buf := make([]byte, 0, 1+8+8+32+len(e.ExcludedReason)+4+len(e.RawTx)+4)
	buf = append(buf, byte(e.Status))

	var u64 [8]byte
	binary.LittleEndian.PutUint64(u64[:], e.ConfirmedHeight)
	buf = append(buf, u64[:]...)

	binary.LittleEndian.PutUint64(u64[:], uint64(e.LastSeen))
	buf = append(buf, u64[:]...)

	buf = append(buf, e.CommitTxid[:]...)

	var u32 [4]byte
	binary.LittleEndian.PutUint32(u32[:], uint32(len(e.ExcludedReason)))
	buf = append(buf, u32[:]...)
	buf = append(buf, []byte(e.ExcludedReason)...)

	binary.LittleEndian.PutUint32(u32[:], uint32(len(e.RawTx)))
	buf = append(buf, u32[:]...)
	buf = append(buf, e.RawTx...)

	return buf, nil
}

func decodeEntry(b []byte) (Entry, error) {
	if len(b) < 1+8+8+32+4 {
		return Entry{}, fmt.Errorf("broadcaster: entry record too short: %d bytes", len(b))
	}
	e := Entry{Status: Status(b[0])}
	b = b[1:]
	e.ConfirmedHeight = binary.LittleEndian.Uint64(b[:8])
	b = b[8:]
	e.LastSeen = int64(binary.LittleEndian.Uint64(b[:8]))
	b = b[8:]
	copy(e.CommitTxid[:], b[:32])
	b = b[32:]

	reasonLen := binary.LittleEndian.Uint32(b[:4])
	b = b[4:]
	if uint64(len(b)) < uint64(reasonLen)+4 {
		return Entry{}, fmt.Errorf("broadcaster: entry record truncated")
	}
	e.ExcludedReason = string(b[:reasonLen])
	b = b[reasonLen:]

	rawLen := binary.LittleEndian.Uint32(b[:4])
	b = b[4:]
	if uint64(len(b)) < uint64(rawLen) {
		return Entry{}, fmt.Errorf("broadcaster: entry record truncated raw tx")
	}
	e.RawTx = append([]byte(nil), b[:rawLen]...)

	return e, nil
}

package storage

import (
	"fmt"

	"github.com/alpenvertex/vertex-node/primitives"
	bolt "go.etcd.io/bbolt"
)

var (
	bucketL1Manifests = []byte("l1_manifests_by_height")
	bucketL1Txs       = []byte("l1_txs_by_height_pos")
)

// L1Store persists L1BlockManifests keyed by height, and L1Txs keyed by
// (height, pos), per spec.md §6's namespace list.
type L1Store struct {
	db *bolt.DB
}

func OpenL1Store(db *bolt.DB) (*L1Store, error) {
	if err := db.Update(func(tx *bolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists(bucketL1Manifests); err != nil {
			return err
		}
		_, err := tx.CreateBucketIfNotExists(bucketL1Txs)
		return err
	}); err != nil {
		return nil, fmt.Errorf("storage: create l1 buckets: %w", err)
	}
	return &L1Store{db: db}, nil
}

func (s *L1Store) PutManifest(height uint64, m primitives.L1BlockManifest) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketL1Manifests).Put(heightKey(height), encodeManifest(m))
	})
}

func (s *L1Store) GetManifest(height uint64) (primitives.L1BlockManifest, bool, error) {
	var m primitives.L1BlockManifest
	var found bool
	err := s.db.View(func(tx *bolt.Tx) error {
		val := tx.Bucket(bucketL1Manifests).Get(heightKey(height))
		if val == nil {
			return nil
		}
		found = true
		var derr error
		m, derr = decodeManifest(val)
		return derr
	})
	return m, found, err
}

// txKey packs (height, pos) into a single sortable 12-byte key so a cursor
// range-scan over a given height's prefix visits txs in position order.
func txKey(height uint64, pos uint32) []byte {
	k := make([]byte, 12)
	copy(k[:8], heightKey(height))
	k[8] = byte(pos >> 24)
	k[9] = byte(pos >> 16)
	k[10] = byte(pos >> 8)
	k[11] = byte(pos)
	return k
}

func (s *L1Store) PutTx(height uint64, pos uint32, t primitives.L1Tx) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketL1Txs).Put(txKey(height, pos), encodeL1Tx(t))
	})
}

func (s *L1Store) GetTx(height uint64, pos uint32) (primitives.L1Tx, bool, error) {
	var t primitives.L1Tx
	var found bool
	err := s.db.View(func(tx *bolt.Tx) error {
		val := tx.Bucket(bucketL1Txs).Get(txKey(height, pos))
		if val == nil {
			return nil
		}
		found = true
		var derr error
		t, derr = decodeL1Tx(val)
		return derr
	})
	return t, found, err
}

// TxsAtHeight returns every L1Tx recorded at height, in position order.
func (s *L1Store) TxsAtHeight(height uint64) ([]primitives.L1Tx, error) {
	prefix := heightKey(height)
	var out []primitives.L1Tx
	err := s.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(bucketL1Txs).Cursor()
		for k, v := c.Seek(prefix); k != nil && len(k) == 12 && string(k[:8]) == string(prefix); k, v = c.Next() {
			t, derr := decodeL1Tx(v)
			if derr != nil {
				return derr
			}
			out = append(out, t)
		}
		return nil
	})
	return out, err
}

func encodeManifest(m primitives.L1BlockManifest) []byte {
	w := &writer{}
	w.buf32(m.BlockId.Buf32())
	w.bytes(m.SerializedHeader)
	w.buf32(m.WitnessRoot)
	return w.buf
}

func decodeManifest(b []byte) (primitives.L1BlockManifest, error) {
	r := newReader(b)
	blkid := primitives.NewL1BlockId(r.buf32())
	header := r.bytes()
	witnessRoot := r.buf32()
	if r.err != nil {
		return primitives.L1BlockManifest{}, r.err
	}
	return primitives.L1BlockManifest{BlockId: blkid, SerializedHeader: header, WitnessRoot: witnessRoot}, nil
}

func encodeL1Tx(t primitives.L1Tx) []byte {
	w := &writer{}
	w.u32(t.Proof.Position)
	w.u32(uint32(len(t.Proof.Cohashes)))
	for _, c := range t.Proof.Cohashes {
		w.buf32(c)
	}
	w.bytes(t.RawTx)
	return w.buf
}

func decodeL1Tx(b []byte) (primitives.L1Tx, error) {
	r := newReader(b)
	position := r.u32()
	n := r.u32()
	cohashes := make([]primitives.Buf32, 0, n)
	for i := uint32(0); i < n; i++ {
		cohashes = append(cohashes, r.buf32())
	}
	raw := r.bytes()
	if r.err != nil {
		return primitives.L1Tx{}, r.err
	}
	return primitives.L1Tx{Proof: primitives.MerkleProof{Position: position, Cohashes: cohashes}, RawTx: raw}, nil
}

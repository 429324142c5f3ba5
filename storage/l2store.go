package storage

import (
	"context"
	"fmt"

	"github.com/alpenvertex/vertex-node/l2block"
	"github.com/alpenvertex/vertex-node/primitives"
	"github.com/alpenvertex/vertex-node/state"
	bolt "go.etcd.io/bbolt"
)

var (
	bucketL2Blocks      = []byte("l2_blocks_by_blkid")
	bucketL2HeightIndex = []byte("l2_height_to_blkids")
)

// L2Store persists L2Blocks keyed by blkid, with a height -> []blkid index
// alongside (a height can hold more than one competing block before the CSM
// settles on a tip), per spec.md §6. Implements duty.BlockReader and
// duty.BlockWriter.
type L2Store struct {
	db *bolt.DB
}

func OpenL2Store(db *bolt.DB) (*L2Store, error) {
	if err := db.Update(func(tx *bolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists(bucketL2Blocks); err != nil {
			return err
		}
		_, err := tx.CreateBucketIfNotExists(bucketL2HeightIndex)
		return err
	}); err != nil {
		return nil, fmt.Errorf("storage: create l2 buckets: %w", err)
	}
	return &L2Store{db: db}, nil
}

// StoreBlock implements duty.BlockWriter: it writes the block and appends
// its blkid to the height index, skipping the append if already present
// (idempotent re-store, e.g. after a crash-recovery replay).
func (s *L2Store) StoreBlock(_ context.Context, block l2block.Block) error {
	blkid := block.Header.GetBlockId()
	return s.db.Update(func(tx *bolt.Tx) error {
		if err := tx.Bucket(bucketL2Blocks).Put(blkid.Buf32().Bytes(), encodeBlock(block)); err != nil {
			return err
		}
		idxBucket := tx.Bucket(bucketL2HeightIndex)
		key := heightKey(block.Header.BlockIdx)
		existing := idxBucket.Get(key)
		ids, err := decodeBlockIdList(existing)
		if err != nil {
			return err
		}
		for _, id := range ids {
			if id == blkid {
				return nil
			}
		}
		ids = append(ids, blkid)
		return idxBucket.Put(key, encodeBlockIdList(ids))
	})
}

// GetBlocksAtHeight implements duty.BlockReader.
func (s *L2Store) GetBlocksAtHeight(_ context.Context, height uint64) ([]primitives.L2BlockId, error) {
	var ids []primitives.L2BlockId
	err := s.db.View(func(tx *bolt.Tx) error {
		val := tx.Bucket(bucketL2HeightIndex).Get(heightKey(height))
		if val == nil {
			return nil
		}
		var derr error
		ids, derr = decodeBlockIdList(val)
		return derr
	})
	return ids, err
}

// GetHeader implements duty.BlockReader.
func (s *L2Store) GetHeader(ctx context.Context, id primitives.L2BlockId) (l2block.Header, error) {
	block, found, err := s.GetBlock(ctx, id)
	if err != nil {
		return l2block.Header{}, err
	}
	if !found {
		return l2block.Header{}, fmt.Errorf("storage: no l2 block with id %s", id)
	}
	return block.Header, nil
}

func (s *L2Store) GetBlock(_ context.Context, id primitives.L2BlockId) (l2block.Block, bool, error) {
	var block l2block.Block
	var found bool
	err := s.db.View(func(tx *bolt.Tx) error {
		val := tx.Bucket(bucketL2Blocks).Get(id.Buf32().Bytes())
		if val == nil {
			return nil
		}
		found = true
		var derr error
		block, derr = decodeBlock(val)
		return derr
	})
	return block, found, err
}

func encodeBlockIdList(ids []primitives.L2BlockId) []byte {
	w := &writer{}
	w.u32(uint32(len(ids)))
	for _, id := range ids {
		w.buf32(id.Buf32())
	}
	return w.buf
}

func decodeBlockIdList(b []byte) ([]primitives.L2BlockId, error) {
	if b == nil {
		return nil, nil
	}
	r := newReader(b)
	n := r.u32()
	out := make([]primitives.L2BlockId, 0, n)
	for i := uint32(0); i < n; i++ {
		out = append(out, primitives.NewL2BlockId(r.buf32()))
	}
	if r.err != nil {
		return nil, r.err
	}
	return out, nil
}

func encodeHeader(h l2block.Header) []byte {
	w := &writer{}
	w.u64(h.BlockIdx)
	w.u64(h.Timestamp)
	w.buf32(h.PrevBlock.Buf32())
	w.buf32(h.L1SegmentHash)
	w.buf32(h.ExecSegmentHash)
	w.buf32(h.StateRoot)
	w.buf64(h.Signature)
	return w.buf
}

func decodeHeader(r *reader) l2block.Header {
	h := l2block.Header{}
	h.BlockIdx = r.u64()
	h.Timestamp = r.u64()
	h.PrevBlock = primitives.NewL2BlockId(r.buf32())
	h.L1SegmentHash = r.buf32()
	h.ExecSegmentHash = r.buf32()
	h.StateRoot = r.buf32()
	h.Signature = r.buf64()
	return h
}

func encodeBlock(b l2block.Block) []byte {
	w := &writer{}
	w.buf = append(w.buf, encodeHeader(b.Header)...)

	payloads := b.Body.L1Segment.NewPayloads
	w.u32(uint32(len(payloads)))
	for _, m := range payloads {
		w.buf32(m.BlockId.Buf32())
		w.bytes(m.SerializedHeader)
		w.buf32(m.WitnessRoot)
	}
	deposits := b.Body.L1Segment.NewDeposits
	w.u32(uint32(len(deposits)))
	for _, d := range deposits {
		w.u32(d.Idx)
		w.u64(d.Amt)
	}

	w.bytes(b.Body.ExecSegment.Update)
	transitions := b.Body.ExecSegment.DepositTransitions
	w.u32(uint32(len(transitions)))
	for _, t := range transitions {
		w.u32(t.Idx)
		w.u8(uint8(t.To))
	}
	return w.buf
}

func decodeBlock(b []byte) (l2block.Block, error) {
	r := newReader(b)
	header := decodeHeader(r)

	numPayloads := r.u32()
	payloads := make([]primitives.L1BlockManifest, 0, numPayloads)
	for i := uint32(0); i < numPayloads; i++ {
		blkid := primitives.NewL1BlockId(r.buf32())
		serHeader := r.bytes()
		witnessRoot := r.buf32()
		payloads = append(payloads, primitives.L1BlockManifest{BlockId: blkid, SerializedHeader: serHeader, WitnessRoot: witnessRoot})
	}

	numDeposits := r.u32()
	deposits := make([]l2block.DepositIntent, 0, numDeposits)
	for i := uint32(0); i < numDeposits; i++ {
		idx := r.u32()
		amt := r.u64()
		deposits = append(deposits, l2block.DepositIntent{Idx: idx, Amt: amt})
	}

	update := r.bytes()
	numTransitions := r.u32()
	transitions := make([]l2block.DepositTransition, 0, numTransitions)
	for i := uint32(0); i < numTransitions; i++ {
		idx := r.u32()
		to := state.DepositState(r.u8())
		transitions = append(transitions, l2block.DepositTransition{Idx: idx, To: to})
	}

	if r.err != nil {
		return l2block.Block{}, r.err
	}

	return l2block.Block{
		Header: header,
		Body: l2block.Body{
			L1Segment:   l2block.NewL1Segment(payloads, deposits),
			ExecSegment: l2block.NewExecSegment(update, transitions),
		},
	}, nil
}

package storage

import (
	"fmt"

	"github.com/alpenvertex/vertex-node/primitives"
	"github.com/alpenvertex/vertex-node/state"
	bolt "go.etcd.io/bbolt"
)

var bucketChainState = []byte("chainstate_by_block_idx")

// ChainStateStore persists ChainState snapshots keyed by block_idx, the
// "chainstate toplevel" namespace of spec.md §6 — distinct from the
// ConsensusState checkpoints ConsensusStore holds, the way state.go keeps
// ChainState and ConsensusState as separate types (spec.md §3, §9).
type ChainStateStore struct {
	db *bolt.DB
}

func OpenChainStateStore(db *bolt.DB) (*ChainStateStore, error) {
	if err := db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketChainState)
		return err
	}); err != nil {
		return nil, fmt.Errorf("storage: create chainstate bucket: %w", err)
	}
	return &ChainStateStore{db: db}, nil
}

func (s *ChainStateStore) Put(blockIdx uint64, cs state.ChainState) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketChainState).Put(heightKey(blockIdx), encodeChainState(cs))
	})
}

func (s *ChainStateStore) Get(blockIdx uint64) (state.ChainState, bool, error) {
	var cs state.ChainState
	var found bool
	err := s.db.View(func(tx *bolt.Tx) error {
		val := tx.Bucket(bucketChainState).Get(heightKey(blockIdx))
		if val == nil {
			return nil
		}
		found = true
		var derr error
		cs, derr = decodeChainState(val)
		return derr
	})
	return cs, found, err
}

// writeChainState/readChainState operate on a shared writer/reader cursor
// rather than self-delimited byte blobs, so ConsensusStore can embed a
// ChainState inline inside a larger ConsensusState record without needing
// a length prefix around it.
func writeChainState(w *writer, cs state.ChainState) {
	w.buf32(cs.TipBlockId.Buf32())

	w.u32(uint32(len(cs.Deposits)))
	for idx, e := range cs.Deposits {
		w.u32(idx)
		w.u64(e.Amt)
		w.u8(uint8(e.State))
	}

	w.u32(uint32(len(cs.Operators)))
	for idx, o := range cs.Operators {
		w.u32(idx)
		w.buf32(o.Pubkey)
	}

	w.u64(cs.L1.BuriedHeight)
	w.u32(uint32(len(cs.L1.Recent)))
	for _, rec := range cs.L1.Recent {
		w.u64(rec.Height)
		w.buf32(rec.Manifest.BlockId.Buf32())
		w.bytes(rec.Manifest.SerializedHeader)
		w.buf32(rec.Manifest.WitnessRoot)
	}
}

func readChainState(r *reader) state.ChainState {
	cs := state.NewChainState()
	cs.TipBlockId = primitives.NewL2BlockId(r.buf32())

	numDeposits := r.u32()
	for i := uint32(0); i < numDeposits; i++ {
		idx := r.u32()
		amt := r.u64()
		st := state.DepositState(r.u8())
		cs.Deposits[idx] = state.DepositEntry{Amt: amt, State: st}
	}

	numOperators := r.u32()
	for i := uint32(0); i < numOperators; i++ {
		idx := r.u32()
		pub := r.buf32()
		cs.Operators[idx] = state.OperatorEntry{Pubkey: pub}
	}

	cs.L1.BuriedHeight = r.u64()
	numRecent := r.u32()
	cs.L1.Recent = make([]state.L1ManifestRecord, 0, numRecent)
	for i := uint32(0); i < numRecent; i++ {
		height := r.u64()
		blkid := primitives.NewL1BlockId(r.buf32())
		header := r.bytes()
		witnessRoot := r.buf32()
		cs.L1.Recent = append(cs.L1.Recent, state.L1ManifestRecord{
			Height: height,
			Manifest: primitives.L1BlockManifest{
				BlockId:          blkid,
				SerializedHeader: header,
				WitnessRoot:      witnessRoot,
			},
		})
	}
	return cs
}

func encodeChainState(cs state.ChainState) []byte {
	w := &writer{}
	writeChainState(w, cs)
	return w.buf
}

func decodeChainState(b []byte) (state.ChainState, error) {
	r := newReader(b)
	cs := readChainState(r)
	if r.err != nil {
		return state.ChainState{}, r.err
	}
	return cs, nil
}

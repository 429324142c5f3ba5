package storage

import (
	"fmt"

	"github.com/alpenvertex/vertex-node/primitives"
	"github.com/alpenvertex/vertex-node/state"
	bolt "go.etcd.io/bbolt"
)

var bucketConsensusCheckpoints = []byte("consensus_checkpoints_by_idx")

// ConsensusStore persists ConsensusState snapshots keyed by the sync-event
// index they were taken at (spec.md §4.D/§6's "consensus checkpoints"
// namespace). Implements csm.CheckpointStore.
type ConsensusStore struct {
	db *bolt.DB
}

func OpenConsensusStore(db *bolt.DB) (*ConsensusStore, error) {
	if err := db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketConsensusCheckpoints)
		return err
	}); err != nil {
		return nil, fmt.Errorf("storage: create consensus checkpoint bucket: %w", err)
	}
	return &ConsensusStore{db: db}, nil
}

// SaveCheckpoint implements csm.CheckpointStore.
func (s *ConsensusStore) SaveCheckpoint(eventIdx uint64, cs state.ConsensusState) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketConsensusCheckpoints).Put(heightKey(eventIdx), encodeConsensusState(cs))
	})
}

// LoadLatestCheckpoint implements csm.CheckpointStore: it scans to the
// highest-keyed entry, since bbolt's byte-ordered keys make the last cursor
// entry the most recent checkpoint (same trick syncevent.Log's lastIndex
// uses).
func (s *ConsensusStore) LoadLatestCheckpoint() (uint64, state.ConsensusState, bool, error) {
	var eventIdx uint64
	var cs state.ConsensusState
	var found bool
	err := s.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(bucketConsensusCheckpoints).Cursor()
		k, v := c.Last()
		if k == nil {
			return nil
		}
		found = true
		eventIdx = decodeHeightKey(k)
		var derr error
		cs, derr = decodeConsensusState(v)
		return derr
	})
	return eventIdx, cs, found, err
}

func encodeConsensusState(cs state.ConsensusState) []byte {
	w := &writer{}
	writeChainState(w, cs.ChainState)

	w.u32(uint32(len(cs.RecentL1Blocks)))
	for _, id := range cs.RecentL1Blocks {
		w.buf32(id.Buf32())
	}
	w.u32(uint32(len(cs.PendingL2Blocks)))
	for _, id := range cs.PendingL2Blocks {
		w.buf32(id.Buf32())
	}
	w.u64(cs.BuriedL1Height)

	if cs.Sync == nil {
		w.u8(0)
	} else {
		w.u8(1)
		w.buf32(cs.Sync.ChainTipBlkId.Buf32())
		w.u64(cs.Sync.ChainTipHeight)
		w.buf32(cs.Sync.FinalizedBlkId.Buf32())
	}
	return w.buf
}

// decodeConsensusState reads the embedded ChainState and the
// ConsensusState-only fields off one shared cursor, matching how
// encodeConsensusState writes them with writeChainState rather than as a
// self-delimited nested blob.
func decodeConsensusState(b []byte) (state.ConsensusState, error) {
	r := newReader(b)
	cs := readChainState(r)
	out := state.ConsensusState{ChainState: cs}

	numRecent := r.u32()
	out.RecentL1Blocks = make([]primitives.L1BlockId, 0, numRecent)
	for i := uint32(0); i < numRecent; i++ {
		out.RecentL1Blocks = append(out.RecentL1Blocks, primitives.NewL1BlockId(r.buf32()))
	}
	numPending := r.u32()
	out.PendingL2Blocks = make([]primitives.L2BlockId, 0, numPending)
	for i := uint32(0); i < numPending; i++ {
		out.PendingL2Blocks = append(out.PendingL2Blocks, primitives.NewL2BlockId(r.buf32()))
	}
	out.BuriedL1Height = r.u64()

	hasSync := r.u8()
	if hasSync == 1 {
		tip := primitives.NewL2BlockId(r.buf32())
		height := r.u64()
		finalized := primitives.NewL2BlockId(r.buf32())
		out.Sync = &state.SyncPointer{ChainTipBlkId: tip, ChainTipHeight: height, FinalizedBlkId: finalized}
	}

	if r.err != nil {
		return state.ConsensusState{}, r.err
	}
	return out, nil
}

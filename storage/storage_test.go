package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/alpenvertex/vertex-node/l2block"
	"github.com/alpenvertex/vertex-node/primitives"
	"github.com/alpenvertex/vertex-node/state"
	bolt "go.etcd.io/bbolt"
)

func openTestDB(t *testing.T) *bolt.DB {
	t.Helper()
	path := filepath.Join(t.TempDir(), "storage.db")
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		t.Fatalf("open bbolt: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestL1StoreManifestRoundTrip(t *testing.T) {
	db := openTestDB(t)
	s, err := OpenL1Store(db)
	if err != nil {
		t.Fatalf("open: %v", err)
	}

	var blkid primitives.Buf32
	blkid[0] = 9
	manifest := primitives.L1BlockManifest{
		BlockId:          primitives.NewL1BlockId(blkid),
		SerializedHeader: []byte("raw-header"),
		WitnessRoot:      primitives.Buf32{0x01},
	}
	if err := s.PutManifest(100, manifest); err != nil {
		t.Fatalf("put: %v", err)
	}

	got, found, err := s.GetManifest(100)
	if err != nil || !found {
		t.Fatalf("get: found=%v err=%v", found, err)
	}
	if string(got.SerializedHeader) != "raw-header" || got.WitnessRoot != manifest.WitnessRoot {
		t.Fatalf("unexpected manifest: %+v", got)
	}
}

func TestL1StoreTxsAtHeightOrdered(t *testing.T) {
	db := openTestDB(t)
	s, err := OpenL1Store(db)
	if err != nil {
		t.Fatalf("open: %v", err)
	}

	for pos := uint32(0); pos < 3; pos++ {
		tx := primitives.L1Tx{
			Proof: primitives.MerkleProof{Position: pos, Cohashes: []primitives.Buf32{{byte(pos)}}},
			RawTx: []byte{byte(pos)},
		}
		if err := s.PutTx(50, pos, tx); err != nil {
			t.Fatalf("put tx %d: %v", pos, err)
		}
	}
	// a different height shouldn't leak into the scan
	if err := s.PutTx(51, 0, primitives.L1Tx{RawTx: []byte("other-height")}); err != nil {
		t.Fatalf("put: %v", err)
	}

	txs, err := s.TxsAtHeight(50)
	if err != nil {
		t.Fatalf("txs at height: %v", err)
	}
	if len(txs) != 3 {
		t.Fatalf("expected 3 txs at height 50, got %d", len(txs))
	}
	for i, tx := range txs {
		if tx.Proof.Position != uint32(i) {
			t.Fatalf("expected txs in position order, got position %d at index %d", tx.Proof.Position, i)
		}
	}
}

func testHeader(idx uint64, prev primitives.L2BlockId) l2block.Header {
	return l2block.Header{BlockIdx: idx, Timestamp: 1000 + idx, PrevBlock: prev}
}

func TestL2StoreRoundTripsBlockAndHeightIndex(t *testing.T) {
	db := openTestDB(t)
	s, err := OpenL2Store(db)
	if err != nil {
		t.Fatalf("open: %v", err)
	}

	block := l2block.Block{
		Header: testHeader(5, primitives.L2BlockId{}),
		Body: l2block.Body{
			L1Segment:   l2block.NewL1Segment(nil, nil),
			ExecSegment: l2block.NewExecSegment([]byte("payload"), nil),
		},
	}
	ctx := context.Background()
	if err := s.StoreBlock(ctx, block); err != nil {
		t.Fatalf("store: %v", err)
	}

	blkid := block.Header.GetBlockId()
	ids, err := s.GetBlocksAtHeight(ctx, 5)
	if err != nil {
		t.Fatalf("get blocks at height: %v", err)
	}
	if len(ids) != 1 || ids[0] != blkid {
		t.Fatalf("expected height index to contain just this block, got %+v", ids)
	}

	header, err := s.GetHeader(ctx, blkid)
	if err != nil {
		t.Fatalf("get header: %v", err)
	}
	if header.Timestamp != block.Header.Timestamp {
		t.Fatalf("unexpected header timestamp: %d", header.Timestamp)
	}

	got, found, err := s.GetBlock(ctx, blkid)
	if err != nil || !found {
		t.Fatalf("get block: found=%v err=%v", found, err)
	}
	if string(got.Body.ExecSegment.Update) != "payload" {
		t.Fatalf("expected exec segment payload round trip, got %q", got.Body.ExecSegment.Update)
	}
}

func TestL2StoreStoreBlockIsIdempotentInHeightIndex(t *testing.T) {
	db := openTestDB(t)
	s, err := OpenL2Store(db)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	block := l2block.Block{Header: testHeader(2, primitives.L2BlockId{})}
	ctx := context.Background()
	if err := s.StoreBlock(ctx, block); err != nil {
		t.Fatalf("store 1: %v", err)
	}
	if err := s.StoreBlock(ctx, block); err != nil {
		t.Fatalf("store 2: %v", err)
	}
	ids, err := s.GetBlocksAtHeight(ctx, 2)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if len(ids) != 1 {
		t.Fatalf("expected re-storing the same block not to duplicate the height index, got %d entries", len(ids))
	}
}

func TestChainStateStoreRoundTrip(t *testing.T) {
	db := openTestDB(t)
	s, err := OpenChainStateStore(db)
	if err != nil {
		t.Fatalf("open: %v", err)
	}

	cs := state.NewChainState()
	cs.Deposits[1] = state.DepositEntry{Amt: 500, State: state.DepositAccepted}
	cs.Operators[0] = state.OperatorEntry{Pubkey: primitives.Buf32{0x07}}
	cs.L1.BuriedHeight = 42
	cs.L1.Recent = append(cs.L1.Recent, state.L1ManifestRecord{
		Height: 10,
		Manifest: primitives.L1BlockManifest{
			BlockId:          primitives.NewL1BlockId(primitives.Buf32{0x11}),
			SerializedHeader: []byte("hdr"),
			WitnessRoot:      primitives.Buf32{0x22},
		},
	})

	if err := s.Put(3, cs); err != nil {
		t.Fatalf("put: %v", err)
	}
	got, found, err := s.Get(3)
	if err != nil || !found {
		t.Fatalf("get: found=%v err=%v", found, err)
	}
	if got.Deposits[1].Amt != 500 || got.Deposits[1].State != state.DepositAccepted {
		t.Fatalf("unexpected deposit entry: %+v", got.Deposits[1])
	}
	if got.Operators[0].Pubkey != (primitives.Buf32{0x07}) {
		t.Fatalf("unexpected operator entry: %+v", got.Operators[0])
	}
	if got.L1.BuriedHeight != 42 || len(got.L1.Recent) != 1 {
		t.Fatalf("unexpected l1 view: %+v", got.L1)
	}
}

func TestConsensusStoreLoadLatestCheckpoint(t *testing.T) {
	db := openTestDB(t)
	s, err := OpenConsensusStore(db)
	if err != nil {
		t.Fatalf("open: %v", err)
	}

	cs1 := state.NewConsensusState()
	cs1.BuriedL1Height = 1
	if err := s.SaveCheckpoint(10, cs1); err != nil {
		t.Fatalf("save 10: %v", err)
	}

	cs2 := state.NewConsensusState()
	cs2.BuriedL1Height = 2
	cs2.Sync = &state.SyncPointer{ChainTipHeight: 7}
	if err := s.SaveCheckpoint(20, cs2); err != nil {
		t.Fatalf("save 20: %v", err)
	}

	idx, got, found, err := s.LoadLatestCheckpoint()
	if err != nil || !found {
		t.Fatalf("load latest: found=%v err=%v", found, err)
	}
	if idx != 20 {
		t.Fatalf("expected latest checkpoint idx 20, got %d", idx)
	}
	if got.BuriedL1Height != 2 {
		t.Fatalf("expected latest state's buried height 2, got %d", got.BuriedL1Height)
	}
	if got.Sync == nil || got.Sync.ChainTipHeight != 7 {
		t.Fatalf("expected sync pointer to round trip, got %+v", got.Sync)
	}
}

func TestConsensusStoreNoCheckpointYet(t *testing.T) {
	db := openTestDB(t)
	s, err := OpenConsensusStore(db)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	_, _, found, err := s.LoadLatestCheckpoint()
	if err != nil {
		t.Fatalf("load latest: %v", err)
	}
	if found {
		t.Fatalf("expected no checkpoint found on a fresh store")
	}
}

package broadcaster

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/alpenvertex/vertex-node/primitives"
	bolt "go.etcd.io/bbolt"
)

type fakeL1Client struct {
	broadcast map[primitives.Buf32]bool
	height    map[primitives.Buf32]uint64
	confirmed map[primitives.Buf32]bool
	evicted   map[primitives.Buf32]bool
}

func newFakeL1Client() *fakeL1Client {
	return &fakeL1Client{
		broadcast: make(map[primitives.Buf32]bool),
		height:    make(map[primitives.Buf32]uint64),
		confirmed: make(map[primitives.Buf32]bool),
		evicted:   make(map[primitives.Buf32]bool),
	}
}

func (f *fakeL1Client) BroadcastTx(_ context.Context, raw []byte) error {
	txid := primitives.Buf32{}
	copy(txid[:], raw)
	f.broadcast[txid] = true
	return nil
}

func (f *fakeL1Client) GetStatus(_ context.Context, txid primitives.Buf32) (uint64, bool, bool, error) {
	if f.confirmed[txid] {
		return f.height[txid], true, false, nil
	}
	if f.evicted[txid] {
		return 0, false, true, nil
	}
	return 0, false, false, nil
}

type fakeReinscriber struct {
	calls []primitives.Buf32
}

func (f *fakeReinscriber) Reinscribe(_ context.Context, commitTxid primitives.Buf32) error {
	f.calls = append(f.calls, commitTxid)
	return nil
}

func openLoopStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "loop.db")
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		t.Fatalf("open bbolt: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	store, err := Open(db)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	return store
}

func TestTickHoldsRevealUntilCommitPublished(t *testing.T) {
	store := openLoopStore(t)
	commit := testTxid(1)
	reveal := testTxid(2)

	if err := store.Put(commit, Entry{RawTx: commit[:], Status: StatusUnpublished}); err != nil {
		t.Fatalf("put commit: %v", err)
	}
	if err := store.Put(reveal, Entry{RawTx: reveal[:], Status: StatusUnpublished, CommitTxid: commit}); err != nil {
		t.Fatalf("put reveal: %v", err)
	}

	client := newFakeL1Client()
	loop := NewLoop(store, client, &fakeReinscriber{})

	if err := loop.Tick(context.Background()); err != nil {
		t.Fatalf("tick: %v", err)
	}
	if !client.broadcast[commit] {
		t.Fatalf("expected commit to be broadcast on first tick")
	}
	if client.broadcast[reveal] {
		t.Fatalf("expected reveal to be held while its commit is unconfirmed")
	}

	commitEntry, _, _ := store.Get(commit)
	if commitEntry.Status != StatusPublished {
		t.Fatalf("expected commit marked Published, got %s", commitEntry.Status)
	}

	if err := loop.Tick(context.Background()); err != nil {
		t.Fatalf("second tick: %v", err)
	}
	if !client.broadcast[reveal] {
		t.Fatalf("expected reveal to be broadcast once its commit is Published")
	}
}

func TestTickMarksConfirmedWithHeight(t *testing.T) {
	store := openLoopStore(t)
	txid := testTxid(1)
	if err := store.Put(txid, Entry{RawTx: txid[:], Status: StatusPublished}); err != nil {
		t.Fatalf("put: %v", err)
	}

	client := newFakeL1Client()
	client.confirmed[txid] = true
	client.height[txid] = 42

	loop := NewLoop(store, client, &fakeReinscriber{})
	if err := loop.Tick(context.Background()); err != nil {
		t.Fatalf("tick: %v", err)
	}

	entry, _, _ := store.Get(txid)
	if entry.Status != StatusConfirmed || entry.ConfirmedHeight != 42 {
		t.Fatalf("expected confirmed at height 42, got status=%s height=%d", entry.Status, entry.ConfirmedHeight)
	}
}

func TestTickReinscribesOnCommitEviction(t *testing.T) {
	store := openLoopStore(t)
	commit := testTxid(1)
	if err := store.Put(commit, Entry{RawTx: commit[:], Status: StatusPublished}); err != nil {
		t.Fatalf("put: %v", err)
	}

	client := newFakeL1Client()
	client.evicted[commit] = true
	reinsc := &fakeReinscriber{}

	loop := NewLoop(store, client, reinsc)
	if err := loop.Tick(context.Background()); err != nil {
		t.Fatalf("tick: %v", err)
	}

	if len(reinsc.calls) != 1 || reinsc.calls[0] != commit {
		t.Fatalf("expected Reinscribe called once with the evicted commit, got %+v", reinsc.calls)
	}
	entry, _, _ := store.Get(commit)
	if entry.Status != StatusExcluded {
		t.Fatalf("expected commit marked Excluded after eviction, got %s", entry.Status)
	}
}

func TestTickDoesNotReinscribeOnRevealEviction(t *testing.T) {
	store := openLoopStore(t)
	commit := testTxid(1)
	reveal := testTxid(2)
	if err := store.Put(reveal, Entry{RawTx: reveal[:], Status: StatusPublished, CommitTxid: commit}); err != nil {
		t.Fatalf("put: %v", err)
	}

	client := newFakeL1Client()
	client.evicted[reveal] = true
	reinsc := &fakeReinscriber{}

	loop := NewLoop(store, client, reinsc)
	if err := loop.Tick(context.Background()); err != nil {
		t.Fatalf("tick: %v", err)
	}

	if len(reinsc.calls) != 0 {
		t.Fatalf("expected Reinscribe not called for a reveal eviction, got %+v", reinsc.calls)
	}
	entry, _, _ := store.Get(reveal)
	if entry.Status != StatusExcluded || entry.ExcludedReason != "reveal evicted" {
		t.Fatalf("expected reveal marked excluded with reveal-specific reason, got status=%s reason=%q", entry.Status, entry.ExcludedReason)
	}
}

package checkpointmgr

import (
	"context"
	"crypto/sha256"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/alpenvertex/vertex-node/inscription"
	"github.com/alpenvertex/vertex-node/params"
	"github.com/alpenvertex/vertex-node/primitives"
	bolt "go.etcd.io/bbolt"
)

type fakeBlobSource struct{ content []byte }

func (f fakeBlobSource) BuildCheckpointBlob(_ context.Context, idx uint64) ([]byte, error) {
	if f.content != nil {
		return f.content, nil
	}
	return []byte{byte(idx)}, nil
}

type fakeKeyer struct{}

func (fakeKeyer) TapTweakPubkey(_ context.Context, internalKey primitives.Buf32, merkleRoot primitives.Buf32) (primitives.Buf32, bool, error) {
	sum := sha256.Sum256(append(append([]byte{}, internalKey[:]...), merkleRoot[:]...))
	return primitives.Buf32(sum), false, nil
}

func (fakeKeyer) SignTapLeaf(_ context.Context, _ primitives.Buf32, sighash primitives.Buf32) (primitives.Buf64, error) {
	var sig primitives.Buf64
	copy(sig[:32], sighash[:])
	copy(sig[32:], sighash[:])
	return sig, nil
}

type fakeEncoder struct{ counter byte }

func (e *fakeEncoder) Encode(tx inscription.UnsignedTx) ([]byte, error) {
	e.counter++
	h := sha256.New()
	h.Write([]byte{e.counter})
	for _, in := range tx.Inputs {
		h.Write(in.PrevTxid[:])
	}
	return h.Sum(nil), nil
}

func (*fakeEncoder) Txid(raw []byte) (primitives.Buf32, error) {
	return primitives.Buf32(sha256.Sum256(raw)), nil
}

type fakeWallet struct{}

func (fakeWallet) SignRawTransactionWithWallet(_ context.Context, raw []byte) ([]byte, error) {
	return append(append([]byte{}, raw...), 0xAA), nil
}

type fakeUtxos struct{}

func (fakeUtxos) SelectFundingUtxo(_ context.Context, minValue uint64) (inscription.TxInput, uint64, error) {
	return inscription.TxInput{PrevTxid: primitives.Buf32{0x01}}, minValue + 1000, nil
}

type fakeEntries struct{}

func (fakeEntries) InsertUnpublishedTx(_ context.Context, _ primitives.Buf32, _ []byte, _ primitives.Buf32) error {
	return nil
}

func openTestManager(t *testing.T, blob []byte) *Manager {
	t.Helper()
	path := filepath.Join(t.TempDir(), "checkpointmgr.db")
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		t.Fatalf("open bbolt: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	store, err := Open(db)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}

	p := params.DefaultDevnetParams()
	p.MagicBytes = []byte("VRTX")
	deps := inscription.Deps{
		Keyer:         fakeKeyer{},
		Encoder:       &fakeEncoder{},
		Wallet:        fakeWallet{},
		Utxos:         fakeUtxos{},
		Entries:       fakeEntries{},
		Params:        p,
		InternalKey:   primitives.Buf32{0x02},
		RevealFeeSats: 1000,
	}
	return NewManager(store, fakeBlobSource{content: blob}, deps, nil)
}

type fakeVerifier struct {
	valid bool
	err   error
}

func (f fakeVerifier) VerifyProof(_ context.Context, _, _ []byte) (bool, error) {
	if f.err != nil {
		return false, f.err
	}
	return f.valid, nil
}

func openTestManagerVerifying(t *testing.T, blob []byte, verifier ProofVerifier) *Manager {
	t.Helper()
	path := filepath.Join(t.TempDir(), "checkpointmgr.db")
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		t.Fatalf("open bbolt: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	store, err := Open(db)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}

	p := params.DefaultDevnetParams()
	p.MagicBytes = []byte("VRTX")
	p.VerifyProofs = true
	deps := inscription.Deps{
		Keyer:         fakeKeyer{},
		Encoder:       &fakeEncoder{},
		Wallet:        fakeWallet{},
		Utxos:         fakeUtxos{},
		Entries:       fakeEntries{},
		Params:        p,
		InternalKey:   primitives.Buf32{0x02},
		RevealFeeSats: 1000,
	}
	return NewManager(store, fakeBlobSource{content: blob}, deps, verifier)
}

func TestInscribeCheckpointRecordsPendingProof(t *testing.T) {
	m := openTestManager(t, []byte("checkpoint-7-blob"))

	if err := m.InscribeCheckpoint(context.Background(), 7); err != nil {
		t.Fatalf("inscribe: %v", err)
	}

	entry, found, err := m.Info(7)
	if err != nil || !found {
		t.Fatalf("expected checkpoint entry to exist: found=%v err=%v", found, err)
	}
	if entry.Status != StatusPendingProof {
		t.Fatalf("expected PendingProof, got %s", entry.Status)
	}
}

func TestInscribeCheckpointIsIdempotent(t *testing.T) {
	m := openTestManager(t, []byte("checkpoint-3-blob"))

	if err := m.InscribeCheckpoint(context.Background(), 3); err != nil {
		t.Fatalf("inscribe: %v", err)
	}
	if err := m.InscribeCheckpoint(context.Background(), 3); err != nil {
		t.Fatalf("re-inscribe should no-op, got error: %v", err)
	}
}

func TestSubmitProofAdvancesToProofReady(t *testing.T) {
	m := openTestManager(t, []byte("checkpoint-1-blob"))
	if err := m.InscribeCheckpoint(context.Background(), 1); err != nil {
		t.Fatalf("inscribe: %v", err)
	}

	if err := m.SubmitProof(context.Background(), 1, []byte("proof"), []byte("transition")); err != nil {
		t.Fatalf("submit proof: %v", err)
	}

	entry, found, err := m.Info(1)
	if err != nil || !found {
		t.Fatalf("expected entry: found=%v err=%v", found, err)
	}
	if entry.Status != StatusProofReady {
		t.Fatalf("expected ProofReady, got %s", entry.Status)
	}
	if string(entry.Proof) != "proof" || string(entry.Transition) != "transition" {
		t.Fatalf("expected proof/transition to be stored, got %+v", entry)
	}
}

func TestSubmitProofRejectsSecondCall(t *testing.T) {
	m := openTestManager(t, []byte("checkpoint-2-blob"))
	if err := m.InscribeCheckpoint(context.Background(), 2); err != nil {
		t.Fatalf("inscribe: %v", err)
	}
	if err := m.SubmitProof(context.Background(), 2, []byte("proof"), []byte("transition")); err != nil {
		t.Fatalf("first submit: %v", err)
	}

	err := m.SubmitProof(context.Background(), 2, []byte("proof2"), []byte("transition2"))
	if err != ErrProofAlreadyCreated {
		t.Fatalf("expected ErrProofAlreadyCreated, got %v", err)
	}
}

func TestSubmitProofRejectsUnknownCheckpoint(t *testing.T) {
	m := openTestManager(t, nil)
	err := m.SubmitProof(context.Background(), 99, []byte("proof"), []byte("transition"))
	if err != ErrUnknownCheckpoint {
		t.Fatalf("expected ErrUnknownCheckpoint, got %v", err)
	}
}

func TestSubmitProofVerifiesWhenEnabled(t *testing.T) {
	m := openTestManagerVerifying(t, []byte("checkpoint-4-blob"), fakeVerifier{valid: true})
	if err := m.InscribeCheckpoint(context.Background(), 4); err != nil {
		t.Fatalf("inscribe: %v", err)
	}
	if err := m.SubmitProof(context.Background(), 4, []byte("proof"), []byte("transition")); err != nil {
		t.Fatalf("submit proof: %v", err)
	}
	entry, _, _ := m.Info(4)
	if entry.Status != StatusProofReady {
		t.Fatalf("expected ProofReady, got %s", entry.Status)
	}
}

func TestSubmitProofRejectsFailedVerification(t *testing.T) {
	m := openTestManagerVerifying(t, []byte("checkpoint-5-blob"), fakeVerifier{valid: false})
	if err := m.InscribeCheckpoint(context.Background(), 5); err != nil {
		t.Fatalf("inscribe: %v", err)
	}
	err := m.SubmitProof(context.Background(), 5, []byte("bad-proof"), []byte("transition"))
	if !errors.Is(err, ErrInvalidProof) {
		t.Fatalf("expected ErrInvalidProof, got %v", err)
	}
	entry, _, _ := m.Info(5)
	if entry.Status != StatusPendingProof {
		t.Fatalf("expected entry to stay PendingProof after rejected proof, got %s", entry.Status)
	}
}

func TestSubmitProofRejectsWhenNoVerifierConfigured(t *testing.T) {
	m := openTestManagerVerifying(t, []byte("checkpoint-6-blob"), nil)
	if err := m.InscribeCheckpoint(context.Background(), 6); err != nil {
		t.Fatalf("inscribe: %v", err)
	}
	err := m.SubmitProof(context.Background(), 6, []byte("proof"), []byte("transition"))
	if !errors.Is(err, ErrInvalidProof) {
		t.Fatalf("expected ErrInvalidProof, got %v", err)
	}
}

package checkpointmgr

import (
	"context"
	"crypto/sha256"
	"errors"
	"fmt"

	"github.com/alpenvertex/vertex-node/inscription"
	"github.com/alpenvertex/vertex-node/primitives"
)

// ErrProofAlreadyCreated is returned by SubmitProof when a checkpoint idx
// has already left StatusPendingProof, matching spec.md §6's
// submit_checkpoint_proof rejection.
var ErrProofAlreadyCreated = errors.New("checkpointmgr: proof already created for this checkpoint")

// ErrUnknownCheckpoint is returned when the idx has no CheckpointEntry yet,
// i.e. InscribeCheckpoint was never called (or never completed) for it.
var ErrUnknownCheckpoint = errors.New("checkpointmgr: unknown checkpoint idx")

// BlobSource produces the serialized checkpoint blob content for a given
// checkpoint idx, pulled from whatever chainstate/STF output is finalized
// at that point. Kept as a capability interface so this package doesn't
// need to import chainstf/state directly to stay decoupled the way
// engine.Ctl and the other capability interfaces in this module do.
type BlobSource interface {
	BuildCheckpointBlob(ctx context.Context, idx uint64) ([]byte, error)
}

// ProofVerifier checks a submitted zk-proof against its claimed state
// transition — the external zk-VM capability spec.md §6's VerifyProofs
// rollup param gates. No zk proving/verification library is retrieved into
// the example pack (see DESIGN.md), so this stays a narrow interface an
// operator-supplied implementation satisfies, the same way TaprootKeyer is
// left to be supplied rather than fabricated.
type ProofVerifier interface {
	VerifyProof(ctx context.Context, proof, transition []byte) (bool, error)
}

// ErrInvalidProof is returned by SubmitProof when params.VerifyProofs is
// set and the proof fails verification (or no ProofVerifier is configured
// to check it), matching rpcsrv.CodeInvalidProof.
var ErrInvalidProof = errors.New("checkpointmgr: proof failed verification")

// Manager owns the checkpoint inscription and proof-submission lifecycle.
// It implements duty.CheckpointInscriber.
type Manager struct {
	store    *Store
	blobs    BlobSource
	incDep   inscription.Deps
	verifier ProofVerifier
}

// NewManager wires a Manager. verifier may be nil: if incDep.Params.VerifyProofs
// is false (the devnet default), proofs are accepted unchecked exactly as
// before; if it's true, a nil verifier makes every SubmitProof call fail
// closed with ErrInvalidProof rather than silently accepting the proof.
func NewManager(store *Store, blobs BlobSource, incDep inscription.Deps, verifier ProofVerifier) *Manager {
	return &Manager{store: store, blobs: blobs, incDep: incDep, verifier: verifier}
}

// InscribeCheckpoint implements duty.CheckpointInscriber: it builds the
// checkpoint's blob, inscribes it as a commit/reveal tx pair (spec.md
// §4.H), and records both a CheckpointEntry (PendingProof, awaiting the
// zk-proof that arrives later over RPC) and a BlobEntry linking the
// checkpoint idx to the resulting txids.
func (m *Manager) InscribeCheckpoint(ctx context.Context, idx uint64) error {
	if _, found, err := m.store.GetCheckpoint(idx); err != nil {
		return fmt.Errorf("checkpointmgr: read checkpoint %d: %w", idx, err)
	} else if found {
		// Already inscribed (e.g. duty re-extracted after a crash); nothing
		// to do, the broadcaster/blob entries already carry this forward.
		return nil
	}

	blob, err := m.blobs.BuildCheckpointBlob(ctx, idx)
	if err != nil {
		return fmt.Errorf("checkpointmgr: build blob for checkpoint %d: %w", idx, err)
	}
	intentHash := blobIntentHash(blob)

	cid, rid, err := inscription.CreateAndSignInscription(ctx, blob, m.incDep)
	if err != nil {
		return fmt.Errorf("checkpointmgr: inscribe checkpoint %d: %w", idx, err)
	}

	if err := m.store.PutBlob(intentHash, BlobEntry{
		Blob:          blob,
		CheckpointIdx: idx,
		Status:        BlobUnpublished,
		CommitTxid:    cid,
		RevealTxid:    rid,
	}); err != nil {
		return fmt.Errorf("checkpointmgr: record blob entry for checkpoint %d: %w", idx, err)
	}

	if err := m.store.PutCheckpoint(CheckpointEntry{Idx: idx, Status: StatusPendingProof}); err != nil {
		return fmt.Errorf("checkpointmgr: record checkpoint entry %d: %w", idx, err)
	}
	return nil
}

// SubmitProof implements spec.md §6's submit_checkpoint_proof: it attaches
// a zk-proof and its state transition to a checkpoint already in
// PendingProof, advancing it to ProofReady. A second call on the same idx
// is rejected with ErrProofAlreadyCreated, matching scenario E5.
func (m *Manager) SubmitProof(ctx context.Context, idx uint64, proof, transition []byte) error {
	entry, found, err := m.store.GetCheckpoint(idx)
	if err != nil {
		return fmt.Errorf("checkpointmgr: read checkpoint %d: %w", idx, err)
	}
	if !found {
		return ErrUnknownCheckpoint
	}
	if entry.Status != StatusPendingProof {
		return ErrProofAlreadyCreated
	}
	if m.incDep.Params.VerifyProofs {
		if m.verifier == nil {
			return ErrInvalidProof
		}
		ok, err := m.verifier.VerifyProof(ctx, proof, transition)
		if err != nil {
			return fmt.Errorf("checkpointmgr: verify proof %d: %w", idx, err)
		}
		if !ok {
			return ErrInvalidProof
		}
	}
	entry.Status = StatusProofReady
	entry.Proof = append([]byte(nil), proof...)
	entry.Transition = append([]byte(nil), transition...)
	if err := m.store.PutCheckpoint(entry); err != nil {
		return fmt.Errorf("checkpointmgr: save checkpoint %d: %w", idx, err)
	}
	return nil
}

// Info returns the CheckpointEntry for idx, for get_checkpoint_info.
func (m *Manager) Info(idx uint64) (CheckpointEntry, bool, error) {
	return m.store.GetCheckpoint(idx)
}

func blobIntentHash(blob []byte) primitives.Buf32 {
	sum := sha256.Sum256(blob)
	return primitives.Buf32(sum)
}

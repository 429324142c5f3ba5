package duty

import (
	"context"
	"fmt"

	"github.com/alpenvertex/vertex-node/syncevent"
)

// CheckpointInscriber hands a checkpoint index off to the inscription
// writer, returning once the checkpoint blob has been queued for
// commit/reveal broadcast (spec.md §4.H). Implemented by checkpointmgr.
type CheckpointInscriber interface {
	InscribeCheckpoint(ctx context.Context, idx uint64) error
}

// SubmitCheckpointDeps bundles what the SubmitCheckpoint worker needs.
type SubmitCheckpointDeps struct {
	Inscriber CheckpointInscriber
	Csm       CsmSubmitter
}

// SubmitCheckpoint is the duty worker that hands a finalized batch of L2
// blocks off to the inscription writer and, once queued, tells the CSM the
// checkpoint was submitted so pending_l2_blocks can drain (spec.md §4.F/
// §4.H), grounded on original_source's duty_executor.rs submit_checkpoint
// path.
func SubmitCheckpoint(ctx context.Context, d Duty, deps SubmitCheckpointDeps) error {
	if d.Kind != KindSubmitCheckpoint {
		return fmt.Errorf("duty: submit_checkpoint: called with non-SubmitCheckpoint duty kind %d", d.Kind)
	}
	if err := deps.Inscriber.InscribeCheckpoint(ctx, d.CheckpointIdx); err != nil {
		return fmt.Errorf("duty: submit_checkpoint: inscribe checkpoint %d: %w", d.CheckpointIdx, err)
	}
	if err := deps.Csm.Submit(syncevent.NewCheckpointSubmitted(d.CheckpointIdx)); err != nil {
		return fmt.Errorf("duty: submit_checkpoint: notify csm: %w", err)
	}
	return nil
}

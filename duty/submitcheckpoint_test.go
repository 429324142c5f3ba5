package duty

import (
	"context"
	"errors"
	"testing"

	"github.com/alpenvertex/vertex-node/syncevent"
)

type fakeInscriber struct {
	inscribed []uint64
	failNext  bool
}

func (f *fakeInscriber) InscribeCheckpoint(_ context.Context, idx uint64) error {
	if f.failNext {
		return errors.New("inscriber: boom")
	}
	f.inscribed = append(f.inscribed, idx)
	return nil
}

func TestSubmitCheckpointHappyPath(t *testing.T) {
	inscriber := &fakeInscriber{}
	csm := &fakeCsm{}
	deps := SubmitCheckpointDeps{Inscriber: inscriber, Csm: csm}

	if err := SubmitCheckpoint(context.Background(), SubmitCheckpointDuty(3), deps); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(inscriber.inscribed) != 1 || inscriber.inscribed[0] != 3 {
		t.Fatalf("expected checkpoint 3 to be inscribed, got %+v", inscriber.inscribed)
	}
	if len(csm.submitted) != 1 || csm.submitted[0].Kind != syncevent.KindCheckpointSubmitted || csm.submitted[0].CheckpointIdx != 3 {
		t.Fatalf("expected a single CheckpointSubmitted(3) notification, got %+v", csm.submitted)
	}
}

func TestSubmitCheckpointPropagatesInscriberError(t *testing.T) {
	inscriber := &fakeInscriber{failNext: true}
	csm := &fakeCsm{}
	deps := SubmitCheckpointDeps{Inscriber: inscriber, Csm: csm}

	if err := SubmitCheckpoint(context.Background(), SubmitCheckpointDuty(1), deps); err == nil {
		t.Fatalf("expected error to propagate")
	}
	if len(csm.submitted) != 0 {
		t.Fatalf("expected no csm notification when inscription fails")
	}
}

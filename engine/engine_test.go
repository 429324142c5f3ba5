package engine

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alpenvertex/vertex-node/primitives"
)

func TestStubPreparePayloadReadyImmediately(t *testing.T) {
	s := NewStub()
	s.QueuePayload(ExecPayloadData{Update: []byte("payload-1")})

	jobId, err := s.PreparePayload(context.Background(), PayloadEnv{TimestampMs: 1})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	data, err := PollReady(context.Background(), s, jobId, time.Millisecond, 50*time.Millisecond)
	if err != nil {
		t.Fatalf("unexpected poll error: %v", err)
	}
	if string(data.Update) != "payload-1" {
		t.Fatalf("unexpected payload data: %q", data.Update)
	}
}

func TestPollReadyTimesOutOnPerpetuallyWorkingJob(t *testing.T) {
	s := NewStub()
	jobId, err := s.PreparePayload(context.Background(), PayloadEnv{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	_, err = PollReady(context.Background(), s, jobId, time.Millisecond, 10*time.Millisecond)
	if err == nil {
		t.Fatalf("expected timeout error")
	}
}

func TestGetPayloadStatusUnknownJobId(t *testing.T) {
	s := NewStub()
	_, err := s.GetPayloadStatus(context.Background(), 999)
	if !errors.Is(err, ErrUnknownPayloadId) {
		t.Fatalf("expected ErrUnknownPayloadId, got %v", err)
	}
}

func TestPollReadyRespectsContextCancellation(t *testing.T) {
	s := NewStub()
	jobId, err := s.PreparePayload(context.Background(), PayloadEnv{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = PollReady(ctx, s, jobId, time.Millisecond, time.Second)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestStubTracksHeadSafeFinalized(t *testing.T) {
	s := NewStub()
	var buf primitives.Buf32
	buf[0] = 7
	id := primitives.NewL2BlockId(buf)

	if err := s.UpdateHeadBlock(context.Background(), id); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := s.UpdateSafeBlock(context.Background(), id); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := s.UpdateFinalizedBlock(context.Background(), id); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if s.headId != id || s.safeId != id || s.finalId != id {
		t.Fatalf("expected stub to retain updated ids")
	}
}

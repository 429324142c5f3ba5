// Package engine defines the engine-API-shaped capability interface the CSM
// duty workers drive to produce and finalize EL payloads (spec.md §4.G), a
// deterministic test double, and the sleep-and-poll helper workers use to
// wait for payload readiness.
package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/alpenvertex/vertex-node/primitives"
)

// BlockStatus is submit_payload's verdict.
type BlockStatus uint8

const (
	BlockValid BlockStatus = iota
	BlockInvalid
	BlockSyncing
)

// PayloadStatusKind tags get_payload_status's result.
type PayloadStatusKind uint8

const (
	PayloadWorking PayloadStatusKind = iota
	PayloadReady
	PayloadInvalid
)

// PayloadEnv is the environment a payload is prepared against, per spec.md
// §4.F step 3.
type PayloadEnv struct {
	TimestampMs        uint64
	PrevGlobalStateRoot primitives.Buf32
	SafeL1Block        primitives.L1BlockId
	DaBlobs            [][]byte
}

// ExecPayloadData is the opaque EL payload blob produced once ready. It
// becomes an l2block.ExecSegment.Update verbatim.
type ExecPayloadData struct {
	Update []byte
}

// PayloadStatus is get_payload_status's result: Kind pins which field is
// meaningful (Ready carries Data, the others don't).
type PayloadStatus struct {
	Kind PayloadStatusKind
	Data ExecPayloadData
}

// ErrUnknownPayloadId is returned when job_id has aged out of the engine's
// bounded retention window (spec.md §4.G contract).
var ErrUnknownPayloadId = errors.New("engine: unknown payload id")

// Ctl is the capability interface the core consumes from the EL, per
// spec.md §4.G. Grounded on the teacher's narrow `crypto.CryptoProvider`
// capability-interface idiom, applied here to the EL boundary instead of
// the signing boundary.
type Ctl interface {
	SubmitPayload(ctx context.Context, payload ExecPayloadData) (BlockStatus, error)
	PreparePayload(ctx context.Context, env PayloadEnv) (jobId uint64, err error)
	GetPayloadStatus(ctx context.Context, jobId uint64) (PayloadStatus, error)
	UpdateHeadBlock(ctx context.Context, id primitives.L2BlockId) error
	UpdateSafeBlock(ctx context.Context, id primitives.L2BlockId) error
	UpdateFinalizedBlock(ctx context.Context, id primitives.L2BlockId) error
}

// PollReady polls ctl.GetPayloadStatus(jobId) every wait until it returns
// Ready or Invalid, or until timeout elapses. Grounded on spec.md §4.F step
// 5's sleep-and-poll contract (not a callback/push design): default wait is
// 100ms, default timeout 3000ms.
func PollReady(ctx context.Context, ctl Ctl, jobId uint64, wait, timeout time.Duration) (ExecPayloadData, error) {
	deadline := time.Now().Add(timeout)
	ticker := time.NewTicker(wait)
	defer ticker.Stop()

	for {
		status, err := ctl.GetPayloadStatus(ctx, jobId)
		if err != nil {
			return ExecPayloadData{}, err
		}
		switch status.Kind {
		case PayloadReady:
			return status.Data, nil
		case PayloadInvalid:
			return ExecPayloadData{}, fmt.Errorf("engine: payload %d invalid", jobId)
		}

		if time.Now().After(deadline) {
			return ExecPayloadData{}, fmt.Errorf("engine: payload %d timed out after %s", jobId, timeout)
		}
		select {
		case <-ctx.Done():
			return ExecPayloadData{}, ctx.Err()
		case <-ticker.C:
		}
	}
}

// DefaultWait and DefaultTimeout are spec.md §4.F step 5's defaults.
const (
	DefaultWait    = 100 * time.Millisecond
	DefaultTimeout = 3000 * time.Millisecond
)

// Stub is a deterministic in-memory Ctl test double: every prepared job
// becomes Ready immediately with the payload the caller queued via
// QueuePayload, or stays Working forever if none was queued (to exercise
// the timeout path).
type Stub struct {
	mu       sync.Mutex
	nextJob  uint64
	jobs     map[uint64]PayloadStatus
	queued   []ExecPayloadData
	headId, safeId, finalId primitives.L2BlockId
}

func NewStub() *Stub {
	return &Stub{jobs: make(map[uint64]PayloadStatus)}
}

// QueuePayload arranges for the next PreparePayload call to resolve Ready
// with data once polled.
func (s *Stub) QueuePayload(data ExecPayloadData) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.queued = append(s.queued, data)
}

func (s *Stub) SubmitPayload(_ context.Context, _ ExecPayloadData) (BlockStatus, error) {
	return BlockValid, nil
}

func (s *Stub) PreparePayload(_ context.Context, _ PayloadEnv) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	jobId := s.nextJob
	s.nextJob++
	if len(s.queued) > 0 {
		data := s.queued[0]
		s.queued = s.queued[1:]
		s.jobs[jobId] = PayloadStatus{Kind: PayloadReady, Data: data}
	} else {
		s.jobs[jobId] = PayloadStatus{Kind: PayloadWorking}
	}
	return jobId, nil
}

func (s *Stub) GetPayloadStatus(_ context.Context, jobId uint64) (PayloadStatus, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	status, ok := s.jobs[jobId]
	if !ok {
		return PayloadStatus{}, ErrUnknownPayloadId
	}
	return status, nil
}

func (s *Stub) UpdateHeadBlock(_ context.Context, id primitives.L2BlockId) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.headId = id
	return nil
}

func (s *Stub) UpdateSafeBlock(_ context.Context, id primitives.L2BlockId) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.safeId = id
	return nil
}

func (s *Stub) UpdateFinalizedBlock(_ context.Context, id primitives.L2BlockId) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.finalId = id
	return nil
}

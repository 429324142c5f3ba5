package duty

import (
	"context"
	"crypto/ed25519"
	"fmt"
	"time"

	"github.com/alpenvertex/vertex-node/engine"
	"github.com/alpenvertex/vertex-node/l2block"
	"github.com/alpenvertex/vertex-node/primitives"
	"github.com/alpenvertex/vertex-node/state"
	"github.com/alpenvertex/vertex-node/syncevent"
)

// BlockReader is the narrow read surface SignBlock needs from L2 storage:
// "has anyone already produced a block at this height" (re-org safety) and
// "what header does this block id resolve to" (to read prev_global_state_root
// off the tip).
type BlockReader interface {
	GetBlocksAtHeight(ctx context.Context, height uint64) ([]primitives.L2BlockId, error)
	GetHeader(ctx context.Context, id primitives.L2BlockId) (l2block.Header, error)
}

// BlockWriter persists a newly assembled, signed block.
type BlockWriter interface {
	StoreBlock(ctx context.Context, block l2block.Block) error
}

// CsmSubmitter is the narrow surface SignBlock and SubmitCheckpoint use to
// tell the CSM about new facts. Satisfied by *csm.Driver.
type CsmSubmitter interface {
	Submit(ev syncevent.Event) error
}

// PayloadBuilder composes the L1Segment (newly observed manifests and
// deposit intents since the last block) that this slot's block should
// commit. It is supplied by whatever component tracks L1-reader output
// (the node wiring layer), kept narrow here so the worker stays decoupled
// from l1reader's concrete types.
type PayloadBuilder interface {
	BuildL1Segment(ctx context.Context, afterTip primitives.L2BlockId) (l2block.L1Segment, error)
}

// SignBlockDeps bundles everything the SignBlock worker needs beyond the
// duty itself.
type SignBlockDeps struct {
	Reader       BlockReader
	Writer       BlockWriter
	Engine       engine.Ctl
	Csm          CsmSubmitter
	Segments     PayloadBuilder
	SignKey      ed25519.PrivateKey
	CurrentState func() state.ConsensusState
	NowMs        func() uint64
	Wait         time.Duration
	Timeout      time.Duration
}

// SignBlock is the duty worker that produces and signs the L2 block for one
// slot, grounded on spec.md §4.F's algorithm and on the teacher's
// Miner.MineOne shape (read chain context, assemble a candidate, validate,
// persist) generalized from proof-of-work mining to engine-payload
// preparation plus ed25519 signing.
func SignBlock(ctx context.Context, d Duty, deps SignBlockDeps) error {
	if d.Kind != KindSignBlock {
		return fmt.Errorf("duty: sign_block: called with non-SignBlock duty kind %d", d.Kind)
	}

	// Step 1: re-org safety. If a block already exists at this slot, this
	// duty was already fulfilled (possibly by an earlier crash-and-retry);
	// noop rather than produce a competing block.
	existing, err := deps.Reader.GetBlocksAtHeight(ctx, d.Slot)
	if err != nil {
		return fmt.Errorf("duty: sign_block: get_blocks_at_height(%d): %w", d.Slot, err)
	}
	if len(existing) > 0 {
		return nil
	}

	cs := deps.CurrentState()
	if cs.Sync == nil {
		return fmt.Errorf("duty: sign_block: consensus state has no sync pointer yet")
	}
	if cs.Sync.ChainTipHeight+1 != d.Slot {
		// The tip has moved past (or not yet reached) this slot since the
		// duty was extracted; let the next extraction cycle reconcile it
		// rather than build a now-stale block.
		return nil
	}
	prevHeader, err := deps.Reader.GetHeader(ctx, cs.Sync.ChainTipBlkId)
	if err != nil {
		return fmt.Errorf("duty: sign_block: read tip header %s: %w", cs.Sync.ChainTipBlkId, err)
	}
	prevId := prevHeader.GetBlockId()

	l1Segment, err := deps.Segments.BuildL1Segment(ctx, prevId)
	if err != nil {
		return fmt.Errorf("duty: sign_block: build l1 segment: %w", err)
	}

	env := engine.PayloadEnv{
		TimestampMs:         deps.NowMs(),
		PrevGlobalStateRoot: prevHeader.StateRoot,
	}
	if len(cs.RecentL1Blocks) > 0 {
		env.SafeL1Block = cs.RecentL1Blocks[len(cs.RecentL1Blocks)-1]
	}

	jobId, err := deps.Engine.PreparePayload(ctx, env)
	if err != nil {
		return fmt.Errorf("duty: sign_block: prepare_payload: %w", err)
	}
	execData, err := engine.PollReady(ctx, deps.Engine, jobId, deps.Wait, deps.Timeout)
	if err != nil {
		return fmt.Errorf("duty: sign_block: poll payload %d: %w", jobId, err)
	}

	body := l2block.Body{
		L1Segment:   l1Segment,
		ExecSegment: l2block.NewExecSegment(execData.Update, nil),
	}
	template := l2block.CreateHeaderTemplate(d.Slot, env.TimestampMs, prevId, body, primitives.ZeroBuf32)
	sig, err := l2block.Sign(template.Unsigned(), deps.SignKey)
	if err != nil {
		return fmt.Errorf("duty: sign_block: sign header: %w", err)
	}
	header := template.CompleteWith(sig)
	block := l2block.Block{Header: header, Body: body}

	if err := deps.Writer.StoreBlock(ctx, block); err != nil {
		return fmt.Errorf("duty: sign_block: store block: %w", err)
	}

	blockId := header.GetBlockId()
	if _, err := deps.Engine.SubmitPayload(ctx, execData); err != nil {
		return fmt.Errorf("duty: sign_block: submit_payload: %w", err)
	}
	if err := deps.Engine.UpdateHeadBlock(ctx, blockId); err != nil {
		return fmt.Errorf("duty: sign_block: update_head_block: %w", err)
	}
	if err := deps.Csm.Submit(syncevent.NewL2BlockSeen(blockId)); err != nil {
		return fmt.Errorf("duty: sign_block: notify csm: %w", err)
	}
	return nil
}

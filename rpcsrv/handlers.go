package rpcsrv

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/alpenvertex/vertex-node/checkpointmgr"
	"github.com/alpenvertex/vertex-node/l2block"
	"github.com/alpenvertex/vertex-node/primitives"
	"github.com/alpenvertex/vertex-node/state"
)

func (s *Server) protocolVersion() (interface{}, *Error) {
	return protocolVersion, nil
}

func (s *Server) getL1Status() (interface{}, *Error) {
	st, _ := s.status.L1.Get()
	return L1Status{TipHeight: st.TipHeight, TipBlockId: st.TipBlockId, BuriedHeight: st.BuriedHeight}, nil
}

func (s *Server) getL1ConnectionStatus() (interface{}, *Error) {
	st, _ := s.status.L1.Get()
	return st.Connected, nil
}

func (s *Server) getL1BlockHash(raw json.RawMessage) (interface{}, *Error) {
	var p struct {
		Height uint64 `json:"height"`
	}
	if err := decodeParams(raw, &p); err != nil {
		return nil, err
	}
	manifest, found, derr := s.l1.GetManifest(p.Height)
	if derr != nil {
		return nil, newError(CodeInternal, "%v", derr)
	}
	if !found {
		return nil, newError(CodeMissingBlock, "no l1 manifest at height %d", p.Height)
	}
	return manifest.BlockId, nil
}

func (s *Server) getClientStatus() (interface{}, *Error) {
	st, _ := s.status.Client.Get()
	return ClientStatus{
		ChainTip:       st.ChainTip,
		ChainTipSlot:   st.ChainTipSlot,
		FinalizedBlkId: st.FinalizedBlkId,
		LastL1Block:    st.LastL1Block,
		BuriedL1Height: st.BuriedL1Height,
	}, nil
}

// getRecentBlockHeaders walks back from the chain tip via PrevBlock links,
// bounded by rollup_params.l2_blocks_fetch_limit per spec.md §6.
func (s *Server) getRecentBlockHeaders(ctx context.Context, raw json.RawMessage) (interface{}, *Error) {
	var p struct {
		Count uint64 `json:"count"`
	}
	if err := decodeParams(raw, &p); err != nil {
		return nil, err
	}
	if p.Count > s.rollup.L2BlocksFetchLimit {
		return nil, newError(CodeFetchLimitReached, "requested %d exceeds l2_blocks_fetch_limit %d", p.Count, s.rollup.L2BlocksFetchLimit)
	}

	cs, _ := s.status.Client.Get()
	out := make([]BlockHeader, 0, p.Count)
	cur := cs.ChainTip
	for uint64(len(out)) < p.Count {
		if cur.IsZero() && len(out) > 0 {
			break
		}
		h, err := s.l2.GetHeader(ctx, cur)
		if err != nil {
			break
		}
		out = append(out, toRpcHeader(h))
		if h.BlockIdx == 0 {
			break
		}
		cur = h.PrevBlock
	}
	return out, nil
}

func (s *Server) getHeadersAtIdx(ctx context.Context, raw json.RawMessage) (interface{}, *Error) {
	var p struct {
		Idx uint64 `json:"idx"`
	}
	if err := decodeParams(raw, &p); err != nil {
		return nil, err
	}
	ids, derr := s.l2.GetBlocksAtHeight(ctx, p.Idx)
	if derr != nil {
		return nil, newError(CodeInternal, "%v", derr)
	}
	out := make([]BlockHeader, 0, len(ids))
	for _, id := range ids {
		h, derr := s.l2.GetHeader(ctx, id)
		if derr != nil {
			return nil, newError(CodeInternal, "%v", derr)
		}
		out = append(out, toRpcHeader(h))
	}
	return out, nil
}

func (s *Server) getHeaderById(ctx context.Context, raw json.RawMessage) (interface{}, *Error) {
	var p struct {
		BlockId primitives.L2BlockId `json:"block_id"`
	}
	if err := decodeParams(raw, &p); err != nil {
		return nil, err
	}
	h, derr := s.l2.GetHeader(ctx, p.BlockId)
	if derr != nil {
		return nil, newError(CodeMissingBlock, "no l2 block with id %s", p.BlockId)
	}
	return toRpcHeader(h), nil
}

func (s *Server) getExecUpdateById(ctx context.Context, raw json.RawMessage) (interface{}, *Error) {
	var p struct {
		BlockId primitives.L2BlockId `json:"block_id"`
	}
	if err := decodeParams(raw, &p); err != nil {
		return nil, err
	}
	block, found, derr := s.l2.GetBlock(ctx, p.BlockId)
	if derr != nil {
		return nil, newError(CodeInternal, "%v", derr)
	}
	if !found {
		return nil, newError(CodeMissingBlock, "no l2 block with id %s", p.BlockId)
	}
	return ExecUpdate{BlockId: p.BlockId, Update: block.Body.ExecSegment.Update}, nil
}

func (s *Server) getRawBundles(ctx context.Context, raw json.RawMessage) (interface{}, *Error) {
	var p struct {
		Start uint64 `json:"start"`
		End   uint64 `json:"end"`
	}
	if err := decodeParams(raw, &p); err != nil {
		return nil, err
	}
	if p.End < p.Start {
		return nil, newError(CodeInvalidParams, "end %d precedes start %d", p.End, p.Start)
	}
	if p.End-p.Start+1 > s.rollup.L2BlocksFetchLimit {
		return nil, newError(CodeFetchLimitReached, "range %d-%d exceeds l2_blocks_fetch_limit %d", p.Start, p.End, s.rollup.L2BlocksFetchLimit)
	}

	var out []RawBundle
	for idx := p.Start; idx <= p.End; idx++ {
		ids, derr := s.l2.GetBlocksAtHeight(ctx, idx)
		if derr != nil {
			return nil, newError(CodeInternal, "%v", derr)
		}
		for _, id := range ids {
			block, found, derr := s.l2.GetBlock(ctx, id)
			if derr != nil {
				return nil, newError(CodeInternal, "%v", derr)
			}
			if !found {
				continue
			}
			rawBlock, merr := json.Marshal(block)
			if merr != nil {
				return nil, newError(CodeInternal, "%v", merr)
			}
			out = append(out, RawBundle{BlockId: id, Raw: rawBlock})
		}
	}
	return out, nil
}

func (s *Server) getRawBundleById(ctx context.Context, raw json.RawMessage) (interface{}, *Error) {
	var p struct {
		BlockId primitives.L2BlockId `json:"block_id"`
	}
	if err := decodeParams(raw, &p); err != nil {
		return nil, err
	}
	block, found, derr := s.l2.GetBlock(ctx, p.BlockId)
	if derr != nil {
		return nil, newError(CodeInternal, "%v", derr)
	}
	if !found {
		return nil, newError(CodeMissingBlock, "no l2 block with id %s", p.BlockId)
	}
	rawBlock, merr := json.Marshal(block)
	if merr != nil {
		return nil, newError(CodeInternal, "%v", merr)
	}
	return RawBundle{BlockId: p.BlockId, Raw: rawBlock}, nil
}

// currentChainState loads the ChainState at the current chain tip, per
// spec.md §9's "ConsensusState owns a cloned ChainState snapshot" design —
// RPC reads go through this same toplevel snapshot rather than re-deriving
// it from the event log.
func (s *Server) currentChainState() (state.ChainState, uint64, *Error) {
	cs, _ := s.status.Client.Get()
	chainState, found, derr := s.chain.Get(cs.ChainTipSlot)
	if derr != nil {
		return state.ChainState{}, 0, newError(CodeInternal, "%v", derr)
	}
	if !found {
		return state.ChainState{}, 0, newError(CodeBeforeGenesis, "no chainstate recorded yet")
	}
	return chainState, cs.ChainTipSlot, nil
}

func (s *Server) getCurrentDeposits(raw json.RawMessage) (interface{}, *Error) {
	chainState, _, err := s.currentChainState()
	if err != nil {
		return nil, err
	}
	out := make([]Deposit, 0, len(chainState.Deposits))
	for idx, d := range chainState.Deposits {
		out = append(out, Deposit{Idx: idx, Amt: d.Amt, State: d.State.String()})
	}
	return out, nil
}

func (s *Server) getCurrentDepositById(raw json.RawMessage) (interface{}, *Error) {
	var p struct {
		Id uint32 `json:"id"`
	}
	if err := decodeParams(raw, &p); err != nil {
		return nil, err
	}
	chainState, _, derr := s.currentChainState()
	if derr != nil {
		return nil, derr
	}
	d, found := chainState.Deposits[p.Id]
	if !found {
		return nil, newError(CodeUnknownDeposit, "no deposit with id %d", p.Id)
	}
	return Deposit{Idx: p.Id, Amt: d.Amt, State: d.State.String()}, nil
}

// getBridgeDuties surfaces every deposit awaiting an operator's withdrawal
// signature (state.DepositDispatched, per spec.md §8 E4's
// Dispatched -> Executed step) at or below block_height, the rollup-side
// half of a "bridge duty" — the counterparty taproot-signing step itself is
// external to this node (spec.md §1's scope boundary).
func (s *Server) getBridgeDuties(raw json.RawMessage) (interface{}, *Error) {
	var p struct {
		OperatorIdx uint32 `json:"operator_idx"`
		BlockHeight uint64 `json:"block_height"`
	}
	if err := decodeParams(raw, &p); err != nil {
		return nil, err
	}
	var chainState state.ChainState
	var latest uint64
	var derr error
	if p.BlockHeight == 0 {
		var rerr *Error
		chainState, latest, rerr = s.currentChainState()
		if rerr != nil {
			return nil, rerr
		}
	} else {
		chainState, _, derr = s.chain.Get(p.BlockHeight)
		if derr != nil {
			return nil, newError(CodeInternal, "%v", derr)
		}
		latest = p.BlockHeight
	}

	duties := make([]BridgeDuty, 0)
	for idx, d := range chainState.Deposits {
		if d.State == state.DepositDispatched {
			duties = append(duties, BridgeDuty{DepositIdx: idx, Amt: d.Amt})
		}
	}
	return struct {
		Duties       []BridgeDuty `json:"duties"`
		LatestHeight uint64       `json:"latest_height"`
	}{Duties: duties, LatestHeight: latest}, nil
}

func (s *Server) getCheckpointInfo(raw json.RawMessage) (interface{}, *Error) {
	var p struct {
		Idx uint64 `json:"idx"`
	}
	if err := decodeParams(raw, &p); err != nil {
		return nil, err
	}
	entry, found, derr := s.ckpt.Info(p.Idx)
	if derr != nil {
		return nil, newError(CodeInternal, "%v", derr)
	}
	if !found {
		return nil, newError(CodeUnknownCheckpoint, "no checkpoint at idx %d", p.Idx)
	}
	return CheckpointInfo{Idx: entry.Idx, Status: entry.Status.String(), Proof: entry.Proof, Transition: entry.Transition}, nil
}

// getActiveOperatorChainPubkeySet returns every bridge operator's x-only
// pubkey. Forced-even-parity is already how OperatorEntry.Pubkey is stored
// (state.OperatorEntry's Buf32 is the x-only coordinate, per spec.md §6),
// so this just projects the table; it doesn't need to flip parity bits.
func (s *Server) getActiveOperatorChainPubkeySet(raw json.RawMessage) (interface{}, *Error) {
	chainState, _, err := s.currentChainState()
	if err != nil {
		return nil, err
	}
	out := make([]primitives.Buf32, 0, len(chainState.Operators))
	for _, o := range chainState.Operators {
		out = append(out, o.Pubkey)
	}
	return out, nil
}

func (s *Server) stop() (interface{}, *Error) {
	s.stopper.Stop()
	return true, nil
}

func (s *Server) submitDaBlob(ctx context.Context, raw json.RawMessage) (interface{}, *Error) {
	var p struct {
		Blob []byte `json:"blob"`
	}
	if err := decodeParams(raw, &p); err != nil {
		return nil, err
	}
	if err := s.dablob.SubmitDaBlob(ctx, p.Blob); err != nil {
		return nil, newError(CodeInternal, "%v", err)
	}
	return true, nil
}

func (s *Server) broadcastRawTx(ctx context.Context, raw json.RawMessage) (interface{}, *Error) {
	var p struct {
		Raw []byte `json:"raw"`
	}
	if err := decodeParams(raw, &p); err != nil {
		return nil, err
	}
	txid, err := s.txid.Txid(p.Raw)
	if err != nil {
		return nil, newError(CodeInvalidParams, "malformed transaction: %v", err)
	}
	if err := s.bcast.BroadcastTx(ctx, p.Raw); err != nil {
		return nil, newError(CodeInternal, "%v", err)
	}
	return txid, nil
}

func (s *Server) submitCheckpointProof(ctx context.Context, raw json.RawMessage) (interface{}, *Error) {
	var p struct {
		Idx        uint64 `json:"idx"`
		Proof      []byte `json:"proof"`
		Transition []byte `json:"transition"`
	}
	if err := decodeParams(raw, &p); err != nil {
		return nil, err
	}
	derr := s.ckpt.SubmitProof(ctx, p.Idx, p.Proof, p.Transition)
	switch {
	case derr == nil:
		return true, nil
	case errors.Is(derr, checkpointmgr.ErrProofAlreadyCreated):
		return nil, newError(CodeProofAlreadyCreated, "checkpoint %d already has a proof", p.Idx)
	case errors.Is(derr, checkpointmgr.ErrUnknownCheckpoint):
		return nil, newError(CodeUnknownCheckpoint, "no checkpoint at idx %d", p.Idx)
	case errors.Is(derr, checkpointmgr.ErrInvalidProof):
		return nil, newError(CodeInvalidProof, "checkpoint %d: proof failed verification", p.Idx)
	default:
		return nil, newError(CodeInternal, "%v", derr)
	}
}

func toRpcHeader(h l2block.Header) BlockHeader {
	return BlockHeader{
		BlockIdx:        h.BlockIdx,
		Timestamp:       h.Timestamp,
		BlockId:         h.GetBlockId(),
		PrevBlock:       h.PrevBlock,
		L1SegmentHash:   h.L1SegmentHash,
		ExecSegmentHash: h.ExecSegmentHash,
		StateRoot:       h.StateRoot,
	}
}

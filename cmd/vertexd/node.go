package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/alpenvertex/vertex-node/broadcaster"
	"github.com/alpenvertex/vertex-node/checkpointmgr"
	"github.com/alpenvertex/vertex-node/config"
	"github.com/alpenvertex/vertex-node/csm"
	"github.com/alpenvertex/vertex-node/duty"
	"github.com/alpenvertex/vertex-node/engine"
	"github.com/alpenvertex/vertex-node/inscription"
	"github.com/alpenvertex/vertex-node/internal/logging"
	"github.com/alpenvertex/vertex-node/l1rpc"
	"github.com/alpenvertex/vertex-node/l2block"
	"github.com/alpenvertex/vertex-node/params"
	"github.com/alpenvertex/vertex-node/primitives"
	"github.com/alpenvertex/vertex-node/rpcsrv"
	"github.com/alpenvertex/vertex-node/state"
	"github.com/alpenvertex/vertex-node/statusbus"
	"github.com/alpenvertex/vertex-node/storage"
	"github.com/alpenvertex/vertex-node/syncevent"
	bolt "go.etcd.io/bbolt"
)

// node bundles every long-lived component vertexd wires together, per
// spec.md §5's runtime shape: one CSM driver, one duty dispatcher, one
// broadcast loop, one RPC server, all sharing the storage opened at
// startup. Grounded on the teacher's node.SyncEngine/node.PeerManager
// split into independently owned components wired by main().
type node struct {
	nodeDB    *bolt.DB
	syncLog   *syncevent.Log
	l1Store   *storage.L1Store
	l2Store   *storage.L2Store
	csStore   *storage.ChainStateStore
	ckptMgr   *checkpointmgr.Manager
	bcastLoop *broadcaster.Loop
	driver    *csm.Driver
	tracker   *duty.Tracker
	dispatch  *duty.Dispatcher
	bus       *statusbus.Bus
	rpc       *rpcsrv.Server
	httpSrv   *http.Server
	ingest    *l1IngestLoop
	log       *logging.Logger
	stop      *stopper
}

// chainStateBlobSource implements checkpointmgr.BlobSource by JSON-encoding
// the ChainState snapshot recorded at a checkpoint's block index, reusing
// the same encoding rpcsrv's get_raw_bundle_by_id uses rather than a
// separate ad-hoc wire format for inscribed blob content.
type chainStateBlobSource struct {
	store *storage.ChainStateStore
}

func (b *chainStateBlobSource) BuildCheckpointBlob(_ context.Context, idx uint64) ([]byte, error) {
	cs, ok, err := b.store.Get(idx)
	if err != nil {
		return nil, fmt.Errorf("blobsource: load chainstate %d: %w", idx, err)
	}
	if !ok {
		return nil, fmt.Errorf("blobsource: no chainstate recorded at block idx %d", idx)
	}
	return json.Marshal(cs)
}

// noopDaInscriber reports that da-blob/checkpoint inscription isn't wired:
// inscription.Deps.Keyer needs a secp256k1 implementation no repo in the
// example pack carries (inscription/taproot.go's TaprootKeyer doc comment),
// so this node can track everything up to "ready to inscribe" but cannot
// actually produce a signed commit/reveal pair until an operator supplies
// one. See DESIGN.md.
type noopDaInscriber struct{}

func (noopDaInscriber) SubmitDaBlob(_ context.Context, _ []byte) error {
	return fmt.Errorf("vertexd: da blob inscription requires a TaprootKeyer implementation, none configured")
}

// noopPayloadBuilder reports that L1Segment assembly isn't wired: it needs
// an L1 block/transaction scanner (no full Bitcoin block-indexing reader
// was retrieved into the example pack, only the JSON-RPC client in l1rpc),
// so SignBlock duties will fail at this step until one is supplied.
type noopPayloadBuilder struct{}

func (noopPayloadBuilder) BuildL1Segment(_ context.Context, _ primitives.L2BlockId) (l2block.L1Segment, error) {
	return l2block.L1Segment{}, fmt.Errorf("vertexd: L1 segment assembly requires an L1 block scanner, none configured")
}

// newNode opens every store under cfg.DataDir and wires the components
// that are fully grounded in this module (storage, CSM, checkpoint/
// broadcast bookkeeping, RPC) against the genuinely external L1 RPC client
// (l1rpc.Client) and the execution-engine stub (engine.Stub, standing in
// for a real engine-API client — no Ethereum engine-API client library
// appears in the example pack either).
func newNode(cfg config.Config, log *logging.Logger) (*node, error) {
	dbPath := cfg.DataDir + "/node.db"
	db, err := bolt.Open(dbPath, 0o600, &bolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("open node db: %w", err)
	}

	syncLog, err := syncevent.Open(cfg.DataDir + "/syncevent.db")
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("open syncevent log: %w", err)
	}

	l1Store, err := storage.OpenL1Store(db)
	if err != nil {
		return nil, fmt.Errorf("open l1 store: %w", err)
	}
	l2Store, err := storage.OpenL2Store(db)
	if err != nil {
		return nil, fmt.Errorf("open l2 store: %w", err)
	}
	csStore, err := storage.OpenChainStateStore(db)
	if err != nil {
		return nil, fmt.Errorf("open chainstate store: %w", err)
	}
	consensusStore, err := storage.OpenConsensusStore(db)
	if err != nil {
		return nil, fmt.Errorf("open consensus store: %w", err)
	}
	ckptStore, err := checkpointmgr.Open(db)
	if err != nil {
		return nil, fmt.Errorf("open checkpoint store: %w", err)
	}
	bcastStore, err := broadcaster.Open(db)
	if err != nil {
		return nil, fmt.Errorf("open broadcast store: %w", err)
	}

	sequencerKey, err := config.LoadSequencerKey(cfg)
	if err != nil {
		return nil, fmt.Errorf("load sequencer key: %w", err)
	}

	l1Client := l1rpc.New(
		fmt.Sprintf("http://%s", cfg.BitcoindHost),
		cfg.BitcoindUser,
		cfg.BitcoindPassword,
	)

	bus := statusbus.New()
	notifyBus := csm.NewBus()

	incDeps := inscription.Deps{
		Wallet:      l1Client,
		Utxos:       l1Client,
		Entries:     bcastStore,
		Params:      cfg.RollupParams,
		InternalKey: cfg.RollupParams.SequencerPubkey,
	}
	// No zk proving/verification library is retrieved into the example
	// pack (see DESIGN.md), so this node runs with no ProofVerifier
	// configured: fine under RollupParams.VerifyProofs=false (the devnet
	// default), but submit_checkpoint_proof will fail closed with
	// ErrInvalidProof if an operator turns VerifyProofs on without
	// supplying one.
	ckptMgr := checkpointmgr.NewManager(ckptStore, &chainStateBlobSource{store: csStore}, incDeps, nil)

	elCtl := engine.NewStub()
	tracker := duty.NewTracker()

	var driver *csm.Driver
	worker := func(ctx context.Context, d duty.Duty) error {
		switch d.Kind {
		case duty.KindSignBlock:
			return duty.SignBlock(ctx, d, duty.SignBlockDeps{
				Reader:       l2Store,
				Writer:       l2Store,
				Engine:       elCtl,
				Csm:          driver,
				Segments:     noopPayloadBuilder{},
				SignKey:      sequencerKey,
				CurrentState: driver.State,
				NowMs:        func() uint64 { return uint64(time.Now().UnixMilli()) },
				Wait:         100 * time.Millisecond,
				Timeout:      3 * time.Second,
			})
		case duty.KindSubmitCheckpoint:
			return duty.SubmitCheckpoint(ctx, d, duty.SubmitCheckpointDeps{
				Inscriber: ckptMgr,
				Csm:       driver,
			})
		default:
			return fmt.Errorf("vertexd: unknown duty kind %d", d.Kind)
		}
	}
	dispatcher := duty.NewDispatcher(worker, log)

	actionHandler := &tipActionHandler{tracker: tracker, dispatcher: dispatcher, rollup: cfg.RollupParams}

	// worker's closure over driver only resolves once NewDriver returns;
	// safe because an empty syncevent log (the only case replayed here)
	// produces no actions to dispatch during replay.
	driver, err = csm.NewDriver(syncLog, consensusStore, actionHandler, notifyBus, cfg.RollupParams)
	if err != nil {
		return nil, fmt.Errorf("start csm driver: %w", err)
	}

	bcastLoop := broadcaster.NewLoop(bcastStore, l1Client, noopReinscriber{})

	// ConsensusState.RecentL1Blocks records ids in observed order but not
	// the heights they were seen at, so there's no cheap way to resume
	// ingestion exactly where a prior process left off without a separate
	// persisted cursor. Ingestion always starts from bitcoind's current tip
	// instead: this rollup anchors forward from a checkpointed genesis, it
	// doesn't replay the L1's entire history the way a full validating node
	// would, and a few skipped blocks across a restart cost nothing a fresh
	// getblockhash/getblockheader round trip doesn't recover.
	resumeFrom := uint64(0)
	if tip, err := l1Client.TipHeight(context.Background()); err == nil {
		resumeFrom = tip
	} else {
		log.Errorf("l1 ingest: could not reach bitcoind for startup tip, resuming from height 0: %v", err)
	}
	ingest := newL1IngestLoop(l1Client, driver, bus, log, time.Duration(cfg.L1PollIntervalSecs)*time.Second, resumeFrom)

	stop := &stopper{}
	rpcServer := rpcsrv.New(
		bus,
		l1Store,
		l2Store,
		csStore,
		ckptMgr,
		l1Client,
		l1Client,
		noopDaInscriber{},
		stop,
		cfg.RollupParams,
		log,
	)

	httpSrv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.RpcPort),
		Handler: rpcServer,
	}

	n := &node{
		nodeDB:    db,
		syncLog:   syncLog,
		l1Store:   l1Store,
		l2Store:   l2Store,
		csStore:   csStore,
		ckptMgr:   ckptMgr,
		bcastLoop: bcastLoop,
		driver:    driver,
		tracker:   tracker,
		dispatch:  dispatcher,
		bus:       bus,
		rpc:       rpcServer,
		httpSrv:   httpSrv,
		ingest:    ingest,
		log:       log,
		stop:      stop,
	}
	return n, nil
}

// tipActionHandler turns a csm.Action into fresh duties the moment the CSM
// driver applies a new tip, dispatching them immediately the same way
// original_source's duty_extractor reacts synchronously to a SyncAction
// rather than polling ConsensusState on an interval.
type tipActionHandler struct {
	tracker    *duty.Tracker
	dispatcher *duty.Dispatcher
	rollup     params.RollupParams
}

func (h *tipActionHandler) HandleAction(_ csm.Action, s state.ConsensusState) error {
	h.tracker.StateUpdate(s)
	fresh := h.tracker.ExtractDuties(s, h.rollup)
	if len(fresh) > 0 {
		h.dispatcher.Dispatch(context.Background(), fresh)
	}
	return nil
}

// noopReinscriber reports that commit-transaction re-signing after a UTXO
// eviction isn't wired, for the same TaprootKeyer-availability reason
// noopDaInscriber isn't.
type noopReinscriber struct{}

func (noopReinscriber) Reinscribe(_ context.Context, _ primitives.Buf32) error {
	return fmt.Errorf("vertexd: reinscription requires a TaprootKeyer implementation, none configured")
}

// stopper implements rpcsrv.Stopper; wired to the root cancel func in main.
type stopper struct {
	cancel context.CancelFunc
}

func (s *stopper) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
}

func (n *node) Close() error {
	if err := n.syncLog.Close(); err != nil {
		return err
	}
	return n.nodeDB.Close()
}

package csm

import (
	"path/filepath"
	"testing"

	"github.com/alpenvertex/vertex-node/params"
	"github.com/alpenvertex/vertex-node/primitives"
	"github.com/alpenvertex/vertex-node/state"
	"github.com/alpenvertex/vertex-node/syncevent"
)

type memCheckpointStore struct {
	idx   uint64
	state state.ConsensusState
	ok    bool
}

func (m *memCheckpointStore) SaveCheckpoint(eventIdx uint64, s state.ConsensusState) error {
	m.idx, m.state, m.ok = eventIdx, s.Clone(), true
	return nil
}

func (m *memCheckpointStore) LoadLatestCheckpoint() (uint64, state.ConsensusState, bool, error) {
	if !m.ok {
		return 0, state.ConsensusState{}, false, nil
	}
	return m.idx, m.state.Clone(), true, nil
}

type recordingHandler struct {
	actions []Action
}

func (r *recordingHandler) HandleAction(a Action, s state.ConsensusState) error {
	r.actions = append(r.actions, a)
	return nil
}

func devnetParams() params.RollupParams {
	p := params.DefaultDevnetParams()
	p.CheckpointEventInterval = 2
	return p
}

func TestDriverSubmitAppliesAndPublishes(t *testing.T) {
	dir := t.TempDir()
	l, err := syncevent.Open(filepath.Join(dir, "sync.db"))
	if err != nil {
		t.Fatalf("open log: %v", err)
	}
	defer l.Close()

	ckpt := &memCheckpointStore{}
	handler := &recordingHandler{}
	bus := NewBus()
	sub := bus.Subscribe()

	d, err := NewDriver(l, ckpt, handler, bus, devnetParams())
	if err != nil {
		t.Fatalf("new driver: %v", err)
	}

	blk := primitives.NewL2BlockId(primitives.Buf32{0x1})
	if err := d.Submit(syncevent.NewL2BlockSeen(blk)); err != nil {
		t.Fatalf("submit: %v", err)
	}

	notif := <-sub
	if notif.EventIdx != 0 {
		t.Fatalf("expected event idx 0, got %d", notif.EventIdx)
	}
	if len(notif.State.PendingL2Blocks) != 1 {
		t.Fatalf("expected published state to carry the new block")
	}
	if len(handler.actions) != 1 || handler.actions[0].Kind != ActionUpdateTip {
		t.Fatalf("expected handler to see ActionUpdateTip, got %+v", handler.actions)
	}
}

func TestDriverCheckpointsAtInterval(t *testing.T) {
	dir := t.TempDir()
	l, err := syncevent.Open(filepath.Join(dir, "sync.db"))
	if err != nil {
		t.Fatalf("open log: %v", err)
	}
	defer l.Close()

	ckpt := &memCheckpointStore{}
	d, err := NewDriver(l, ckpt, nil, nil, devnetParams())
	if err != nil {
		t.Fatalf("new driver: %v", err)
	}

	for i := 0; i < 3; i++ {
		ev := syncevent.NewL2BlockSeen(primitives.NewL2BlockId(primitives.Buf32{byte(i)}))
		if err := d.Submit(ev); err != nil {
			t.Fatalf("submit %d: %v", i, err)
		}
	}

	if !ckpt.ok {
		t.Fatalf("expected a checkpoint to have been saved")
	}
	if ckpt.idx != 2 {
		t.Fatalf("expected checkpoint at event idx 2 (interval=2), got %d", ckpt.idx)
	}
}

func TestDriverResumesFromCheckpointAndReplaysTail(t *testing.T) {
	dir := t.TempDir()
	logPath := filepath.Join(dir, "sync.db")
	ckpt := &memCheckpointStore{}

	l1, err := syncevent.Open(logPath)
	if err != nil {
		t.Fatalf("open log: %v", err)
	}
	d1, err := NewDriver(l1, ckpt, nil, nil, devnetParams())
	if err != nil {
		t.Fatalf("new driver: %v", err)
	}
	for i := 0; i < 2; i++ {
		ev := syncevent.NewL2BlockSeen(primitives.NewL2BlockId(primitives.Buf32{byte(i + 1)}))
		if err := d1.Submit(ev); err != nil {
			t.Fatalf("submit %d: %v", i, err)
		}
	}
	if !ckpt.ok {
		t.Fatalf("expected checkpoint after 2 events with interval 2")
	}
	if err := l1.Close(); err != nil {
		t.Fatalf("close log: %v", err)
	}

	l2, err := syncevent.Open(logPath)
	if err != nil {
		t.Fatalf("reopen log: %v", err)
	}
	defer l2.Close()
	d2, err := NewDriver(l2, ckpt, nil, nil, devnetParams())
	if err != nil {
		t.Fatalf("resume driver: %v", err)
	}
	if len(d2.State().PendingL2Blocks) != 2 {
		t.Fatalf("expected resumed state to carry both prior blocks, got %d", len(d2.State().PendingL2Blocks))
	}
}

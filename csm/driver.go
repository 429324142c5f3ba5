package csm

import (
	"fmt"

	"github.com/alpenvertex/vertex-node/params"
	"github.com/alpenvertex/vertex-node/state"
	"github.com/alpenvertex/vertex-node/syncevent"
)

// CheckpointStore persists and loads ConsensusState snapshots, keyed by the
// sync-event index they were taken at. Implemented by storage.ConsensusStore;
// kept as a narrow interface here so Driver doesn't import the storage
// package (mirrors the teacher's narrow crypto.CryptoProvider capability
// interface rather than a concrete struct dependency).
type CheckpointStore interface {
	SaveCheckpoint(eventIdx uint64, s state.ConsensusState) error
	LoadLatestCheckpoint() (eventIdx uint64, s state.ConsensusState, ok bool, err error)
}

// ActionHandler reacts to an Action the pure event-folder emitted, after its
// writes have been durably applied. Driving code (duty tracker, EL client)
// implements this; Driver itself stays agnostic of what an action means.
type ActionHandler interface {
	HandleAction(a Action, s state.ConsensusState) error
}

// Driver is the single-writer CSM loop: it reads events from the
// append-only log in order, folds each one through ProcessEvent, applies
// the resulting writes, periodically checkpoints, and publishes every
// resulting state to the Bus. Grounded on the teacher's single-goroutine
// SyncEngine driving chain-state mutation serially (node/sync.go), with the
// write-ahead-log discipline added per spec.md §4.C/§8 property 2.
type Driver struct {
	log      *syncevent.Log
	store    CheckpointStore
	handler  ActionHandler
	bus      *Bus
	params   params.RollupParams

	state      state.ConsensusState
	lastCkptAt uint64
}

// NewDriver loads the latest checkpoint (if any) and replays every event
// recorded since it, bringing state up to date before the caller starts
// feeding it new events.
func NewDriver(log *syncevent.Log, store CheckpointStore, handler ActionHandler, bus *Bus, p params.RollupParams) (*Driver, error) {
	d := &Driver{log: log, store: store, handler: handler, bus: bus, params: p}

	startIdx := uint64(0)
	if store != nil {
		idx, s, ok, err := store.LoadLatestCheckpoint()
		if err != nil {
			return nil, fmt.Errorf("csm: load checkpoint: %w", err)
		}
		if ok {
			d.state = s
			d.lastCkptAt = idx
			startIdx = idx + 1
		} else {
			d.state = state.NewConsensusState()
		}
	} else {
		d.state = state.NewConsensusState()
	}

	tail, err := log.Tail(startIdx)
	if err != nil {
		return nil, fmt.Errorf("csm: replay tail: %w", err)
	}
	for i, ev := range tail {
		if err := d.apply(startIdx+uint64(i), ev); err != nil {
			return nil, fmt.Errorf("csm: replay event %d: %w", startIdx+uint64(i), err)
		}
	}
	return d, nil
}

// Submit appends ev to the durable log, then folds and publishes it. The
// append happens before any write is applied in memory or any action is
// dispatched, so a crash between append and apply only costs a replay on
// restart, never a lost or duplicated write (spec.md §8 property 2).
func (d *Driver) Submit(ev syncevent.Event) error {
	idx, err := d.log.Append(ev)
	if err != nil {
		return fmt.Errorf("csm: append event: %w", err)
	}
	return d.apply(idx, ev)
}

func (d *Driver) apply(idx uint64, ev syncevent.Event) error {
	out := ProcessEvent(d.state, ev, d.params)
	if err := state.ApplyWritesToState(&d.state, out.Writes); err != nil {
		return err
	}

	if d.store != nil && (idx == 0 || idx-d.lastCkptAt >= d.params.CheckpointEventInterval) {
		if err := d.store.SaveCheckpoint(idx, d.state); err != nil {
			return fmt.Errorf("csm: save checkpoint: %w", err)
		}
		d.lastCkptAt = idx
	}

	if d.bus != nil {
		d.bus.Publish(Notif{EventIdx: idx, State: d.state.Clone()})
	}

	if d.handler != nil {
		for _, a := range out.Actions {
			if err := d.handler.HandleAction(a, d.state); err != nil {
				return fmt.Errorf("csm: handle action %v: %w", a.Kind, err)
			}
		}
	}
	return nil
}

// State returns the current ConsensusState. Callers that only need a
// read-only snapshot should Clone() the result before mutating anything
// reachable from it.
func (d *Driver) State() state.ConsensusState {
	return d.state
}

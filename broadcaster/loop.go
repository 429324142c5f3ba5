package broadcaster

import (
	"context"
	"fmt"

	"github.com/alpenvertex/vertex-node/primitives"
)

// L1Client is the narrow Bitcoin RPC surface the broadcast loop needs:
// push a raw tx to the mempool/network, and check how a previously
// broadcast one is doing.
type L1Client interface {
	BroadcastTx(ctx context.Context, raw []byte) error
	// GetStatus reports a previously broadcast tx's fate: confirmed at a
	// height, still unconfirmed (mempool or unknown), or evicted (its
	// inputs were spent by a competing tx, e.g. an RBF or a UTXO race).
	GetStatus(ctx context.Context, txid primitives.Buf32) (confirmedHeight uint64, confirmed bool, evicted bool, err error)
}

// Reinscriber re-runs the full commit/reveal build-and-sign procedure for a
// commit transaction that was evicted, since the UTXO it spent may have
// been respent by something else in the meantime (spec.md §4.H).
type Reinscriber interface {
	Reinscribe(ctx context.Context, commitTxid primitives.Buf32) error
}

// Loop drives L1TxEntry rows through Unpublished -> Published -> Confirmed,
// publishing commit transactions first and holding each reveal until its
// commit's entry is Published (accepted by BroadcastTx on an earlier tick)
// or Confirmed, per spec.md §4.H.
type Loop struct {
	store   *Store
	client  L1Client
	reinsc  Reinscriber
}

func NewLoop(store *Store, client L1Client, reinsc Reinscriber) *Loop {
	return &Loop{store: store, client: client, reinsc: reinsc}
}

// Tick runs one pass: broadcast every eligible Unpublished entry (commits,
// and reveals whose commit was already Published or Confirmed when the pass
// began), and re-check every
// Published entry for confirmation or eviction.
func (l *Loop) Tick(ctx context.Context) error {
	if err := l.publishEligible(ctx); err != nil {
		return err
	}
	return l.refreshPublished(ctx)
}

func (l *Loop) publishEligible(ctx context.Context) error {
	unpublished, err := l.store.Unpublished()
	if err != nil {
		return fmt.Errorf("broadcaster: list unpublished: %w", err)
	}
	for txid, entry := range unpublished {
		if entry.CommitTxid != (primitives.Buf32{}) {
			if _, pending := unpublished[entry.CommitTxid]; pending {
				// Commit is being published in this same pass; the reveal
				// waits for a later tick regardless of iteration order.
				continue
			}
			commit, ok, err := l.store.Get(entry.CommitTxid)
			if err != nil {
				return fmt.Errorf("broadcaster: read commit entry for reveal %s: %w", txid, err)
			}
			if !ok || (commit.Status != StatusPublished && commit.Status != StatusConfirmed) {
				// Commit hasn't been accepted yet; hold this reveal for a
				// later tick.
				continue
			}
		}
		if err := l.client.BroadcastTx(ctx, entry.RawTx); err != nil {
			return fmt.Errorf("broadcaster: broadcast %s: %w", txid, err)
		}
		entry.Status = StatusPublished
		if err := l.store.Put(txid, entry); err != nil {
			return fmt.Errorf("broadcaster: mark %s published: %w", txid, err)
		}
	}
	return nil
}

func (l *Loop) refreshPublished(ctx context.Context) error {
	all, err := l.store.all()
	if err != nil {
		return fmt.Errorf("broadcaster: list entries: %w", err)
	}
	for txid, entry := range all {
		if entry.Status != StatusPublished {
			continue
		}
		height, confirmed, evicted, err := l.client.GetStatus(ctx, txid)
		if err != nil {
			return fmt.Errorf("broadcaster: get_status %s: %w", txid, err)
		}
		switch {
		case confirmed:
			entry.Status = StatusConfirmed
			entry.ConfirmedHeight = height
			if err := l.store.Put(txid, entry); err != nil {
				return fmt.Errorf("broadcaster: mark %s confirmed: %w", txid, err)
			}
		case evicted:
			if entry.CommitTxid == (primitives.Buf32{}) {
				// This was a commit tx; its UTXO may have been respent,
				// so re-run the whole inscription procedure rather than
				// just rebroadcasting the stale transaction.
				if l.reinsc != nil {
					if err := l.reinsc.Reinscribe(ctx, txid); err != nil {
						return fmt.Errorf("broadcaster: reinscribe after eviction of %s: %w", txid, err)
					}
				}
				entry.Status = StatusExcluded
				entry.ExcludedReason = "commit evicted, reinscribing"
				if err := l.store.Put(txid, entry); err != nil {
					return fmt.Errorf("broadcaster: mark %s excluded: %w", txid, err)
				}
			} else {
				// A reveal's eviction means its commit was itself
				// reorged/evicted out from under it; leave it excluded
				// and let the commit's own eviction handling above drive
				// the re-run that will eventually produce a fresh reveal.
				entry.Status = StatusExcluded
				entry.ExcludedReason = "reveal evicted"
				if err := l.store.Put(txid, entry); err != nil {
					return fmt.Errorf("broadcaster: mark %s excluded: %w", txid, err)
				}
			}
		}
	}
	return nil
}

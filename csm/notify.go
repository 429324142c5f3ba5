package csm

import "github.com/alpenvertex/vertex-node/state"

// Notif is a ConsensusState update pushed to subscribers after a SyncEvent
// has been applied and persisted.
type Notif struct {
	EventIdx uint64
	State    state.ConsensusState
}

// subscriberBufSize bounds how far a subscriber can lag before updates are
// dropped for it. A slow subscriber never blocks the driver (spec.md §4.D,
// §7): it just skips intermediate notifications and resyncs off the latest
// State in the next one it does receive.
const subscriberBufSize = 8

// Bus fans a sequence of Notifs out to any number of subscribers, with
// lag-tolerant delivery: a full subscriber channel has its oldest pending
// notif dropped to make room rather than blocking Publish. Grounded on the
// teacher's broadcast pattern in node/p2p_runtime.go's peer fan-out loop,
// generalized from "send to every connected peer" to "send to every
// subscriber channel."
type Bus struct {
	subs []chan Notif
}

func NewBus() *Bus {
	return &Bus{}
}

// Subscribe registers a new channel that will receive every future Notif
// (subject to lag-dropping). The returned channel is never closed by the
// bus; callers stop reading when they're done.
func (b *Bus) Subscribe() <-chan Notif {
	ch := make(chan Notif, subscriberBufSize)
	b.subs = append(b.subs, ch)
	return ch
}

// Publish delivers n to every subscriber, dropping the oldest buffered notif
// for any subscriber whose channel is full instead of blocking.
func (b *Bus) Publish(n Notif) {
	for _, ch := range b.subs {
		select {
		case ch <- n:
		default:
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- n:
			default:
			}
		}
	}
}

package syncevent

import (
	"fmt"
	"time"

	bolt "go.etcd.io/bbolt"
)

var bucketEvents = []byte("sync_events_by_idx")

// Log is the append-only, bbolt-backed SyncEvent log. Events are keyed by a
// monotonically increasing big-endian index (ev_idx in spec.md §4.C), so a
// bucket cursor scan always visits them in the order they were appended.
// Grounded on the teacher's node/store/db.go bucket-per-namespace pattern:
// one bucket, opened once at startup, mutated only inside db.Update.
type Log struct {
	db   *bolt.DB
	next uint64
}

// Open opens (creating if absent) the sync-event log at path.
func Open(path string) (*Log, error) {
	bdb, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("syncevent: open bbolt: %w", err)
	}
	l := &Log{db: bdb}
	if err := bdb.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketEvents)
		return err
	}); err != nil {
		_ = bdb.Close()
		return nil, err
	}
	last, found, err := lastIndex(bdb)
	if err != nil {
		_ = bdb.Close()
		return nil, err
	}
	if found {
		l.next = last + 1
	}
	return l, nil
}

func lastIndex(db *bolt.DB) (uint64, bool, error) {
	var last uint64
	found := false
	err := db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(bucketEvents).Cursor()
		k, _ := c.Last()
		if k == nil {
			return nil
		}
		found = true
		last = decodeKey(k)
		return nil
	})
	if err != nil {
		return 0, false, err
	}
	return last, found, nil
}

func (l *Log) Close() error {
	if l == nil || l.db == nil {
		return nil
	}
	return l.db.Close()
}

// Append durably writes ev at the next index and returns that index. This is
// the write-ahead step of the CSM driver loop: events must be on disk before
// process_event runs against them (spec.md §4.C, §8 property 2).
func (l *Log) Append(ev Event) (uint64, error) {
	idx := l.next
	if err := l.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketEvents).Put(encodeKey(idx), encode(ev))
	}); err != nil {
		return 0, fmt.Errorf("syncevent: append: %w", err)
	}
	l.next = idx + 1
	return idx, nil
}

// Get reads the event at idx, returning ok=false if no such index exists.
func (l *Log) Get(idx uint64) (Event, bool, error) {
	var ev Event
	ok := false
	err := l.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(bucketEvents).Get(encodeKey(idx))
		if v == nil {
			return nil
		}
		decoded, err := decode(v)
		if err != nil {
			return err
		}
		ev, ok = decoded, true
		return nil
	})
	if err != nil {
		return Event{}, false, err
	}
	return ev, ok, nil
}

// Tail returns every event with index >= from, in order. Used on CSM driver
// startup to replay events recorded since the last persisted checkpoint.
func (l *Log) Tail(from uint64) ([]Event, error) {
	var out []Event
	err := l.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(bucketEvents).Cursor()
		for k, v := c.Seek(encodeKey(from)); k != nil; k, v = c.Next() {
			ev, err := decode(v)
			if err != nil {
				return err
			}
			out = append(out, ev)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// NextIndex returns the index Append will assign next.
func (l *Log) NextIndex() uint64 {
	return l.next
}

// Package audit persists every engine event to a local pebble database,
// giving the exchange a durable, replayable record of order lifecycle
// transitions and executions.
package audit

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/cockroachdb/pebble"

	"github.com/njorogedev/sokoni/internal/events"
)

// Log is a pebble-backed audit trail. Events are keyed by their dispatch
// sequence number, so iteration returns them in publish order.
type Log struct {
	db *pebble.DB
}

// Open opens or creates the audit database at dir.
func Open(dir string) (*Log, error) {
	db, err := pebble.Open(dir, &pebble.Options{
		DisableWAL: false, // we WANT durability
	})
	if err != nil {
		return nil, err
	}
	return &Log{db: db}, nil
}

// Close closes the underlying database.
func (l *Log) Close() error {
	return l.db.Close()
}

// Name implements events.Sink.
func (l *Log) Name() string { return "audit" }

// Publish implements events.Sink: it writes the event synchronously so a
// crash never loses an already-dispatched event.
func (l *Log) Publish(_ context.Context, e events.Event) error {
	val, err := json.Marshal(e)
	if err != nil {
		return err
	}
	return l.db.Set(keyFor(e.Seq), val, pebble.Sync)
}

// Scan iterates the stored events in sequence order, calling fn for each.
// fn returning an error stops the scan and propagates the error.
func (l *Log) Scan(fn func(e events.Event) error) error {
	iter, err := l.db.NewIter(&pebble.IterOptions{
		LowerBound: []byte("event/"),
		UpperBound: []byte("event/~"),
	})
	if err != nil {
		return err
	}
	defer iter.Close()

	for iter.First(); iter.Valid(); iter.Next() {
		var e events.Event
		if err := json.Unmarshal(iter.Value(), &e); err != nil {
			return err
		}
		if err := fn(e); err != nil {
			return err
		}
	}
	return iter.Error()
}

// Len returns the number of stored events.
func (l *Log) Len() (int, error) {
	n := 0
	err := l.Scan(func(events.Event) error {
		n++
		return nil
	})
	return n, err
}

func keyFor(seq uint64) []byte {
	return []byte(fmt.Sprintf("event/%020d", seq))
}

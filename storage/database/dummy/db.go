package dummydb

import (
	"sync"

	"github.com/trezcool/darasa/core/entity"
	"github.com/trezcool/darasa/core/recycle"
)

type (
	// DB is an in-memory record store used by tests and local tooling. It
	// mirrors the Postgres store's semantics: per-row versions, optimistic
	// conflict checks and all-or-nothing transaction scopes.
	DB struct {
		mu     sync.Mutex
		tables map[entity.Kind]map[string]*entity.Record
		events map[string]*recycle.DeletionEvent
	}

	snapshot struct {
		tables map[entity.Kind]map[string]*entity.Record
		events map[string]*recycle.DeletionEvent
	}
)

func Open() (*DB, error) {
	db := &DB{
		tables: make(map[entity.Kind]map[string]*entity.Record, len(entity.AllKinds)),
		events: make(map[string]*recycle.DeletionEvent),
	}
	for _, kind := range entity.AllKinds {
		db.tables[kind] = make(map[string]*entity.Record)
	}
	return db, nil
}

// AddRecord seeds a record; entity creation itself is outside the
// subsystem, so the dummy store exposes it directly.
func (db *DB) AddRecord(rec entity.Record) {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.tables[rec.Kind][rec.ID] = &rec
}

// TouchRecord bumps a record's version outside any transaction scope,
// simulating a concurrent mutation for conflict-path tests.
func (db *DB) TouchRecord(ref entity.Ref) {
	db.mu.Lock()
	defer db.mu.Unlock()
	if rec, ok := db.tables[ref.Kind][ref.ID]; ok {
		rec.Version++
	}
}

func (db *DB) snapshot() snapshot {
	snap := snapshot{
		tables: make(map[entity.Kind]map[string]*entity.Record, len(db.tables)),
		events: make(map[string]*recycle.DeletionEvent, len(db.events)),
	}
	for kind, table := range db.tables {
		snap.tables[kind] = make(map[string]*entity.Record, len(table))
		for id, rec := range table {
			cp := *rec
			snap.tables[kind][id] = &cp
		}
	}
	for id, ev := range db.events {
		cp := *ev
		snap.events[id] = &cp
	}
	return snap
}

func (db *DB) restore(snap snapshot) {
	db.tables = snap.tables
	db.events = snap.events
}

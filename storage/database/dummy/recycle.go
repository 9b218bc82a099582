package dummydb

import (
	"context"
	"sort"
	"time"

	"github.com/trezcool/darasa/core/entity"
	"github.com/trezcool/darasa/core/recycle"
)

type recycleRepository struct {
	db   *DB
	inTx bool
}

var _ recycle.Repository = (*recycleRepository)(nil) // interface compliance check

func NewRecycleRepository(db *DB) recycle.Repository {
	return &recycleRepository{db: db}
}

func (repo *recycleRepository) Atomically(ctx context.Context, fn func(tx recycle.Repository) error) error {
	if repo.inTx {
		return fn(repo)
	}
	if err := ctx.Err(); err != nil {
		// only a deadline expiry is the retryable timeout; plain
		// cancellation propagates as-is
		if err == context.DeadlineExceeded {
			return recycle.ErrTimeout
		}
		return err
	}

	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	snap := repo.db.snapshot()
	if err := fn(&recycleRepository{db: repo.db, inTx: true}); err != nil {
		repo.db.restore(snap)
		return err
	}
	return nil
}

// lock guards direct (non-transactional) calls; inside Atomically the
// store-wide mutex is already held.
func (repo *recycleRepository) lock() func() {
	if repo.inTx {
		return func() {}
	}
	repo.db.mu.Lock()
	return repo.db.mu.Unlock
}

func (repo *recycleRepository) get(ref entity.Ref) (*entity.Record, bool) {
	table, ok := repo.db.tables[ref.Kind]
	if !ok {
		return nil, false
	}
	rec, ok := table[ref.ID]
	return rec, ok
}

func (repo *recycleRepository) GetRecord(ctx context.Context, ref entity.Ref) (entity.Record, error) {
	defer repo.lock()()
	rec, ok := repo.get(ref)
	if !ok {
		return entity.Record{}, recycle.ErrNotFound
	}
	return *rec, nil
}

func (repo *recycleRepository) ChildRecords(ctx context.Context, parent entity.Ref, rel entity.Relation) ([]entity.Record, error) {
	defer repo.lock()()
	var children []entity.Record
	for _, rec := range repo.db.tables[rel.Child] {
		if rec.Parent != nil && *rec.Parent == parent {
			children = append(children, *rec)
		}
	}
	sort.Slice(children, func(i, j int) bool { return children[i].ID < children[j].ID })
	return children, nil
}

func (repo *recycleRepository) AncestorRecords(ctx context.Context, rec entity.Record) ([]entity.Record, error) {
	defer repo.lock()()
	var ancestors []entity.Record
	for parent := rec.Parent; parent != nil; {
		anc, ok := repo.get(*parent)
		if !ok {
			return nil, recycle.ErrNotFound
		}
		ancestors = append(ancestors, *anc)
		parent = anc.Parent
	}
	return ancestors, nil
}

func (repo *recycleRepository) SetTombstone(ctx context.Context, rec entity.Record, deletedAt time.Time, deletedBy, eventID string) error {
	defer repo.lock()()
	stored, ok := repo.get(rec.Ref)
	if !ok {
		return recycle.ErrNotFound
	}
	if stored.Version != rec.Version {
		return recycle.ErrConcurrentModification
	}
	stored.DeletedAt = &deletedAt
	stored.DeletedBy = deletedBy
	stored.DeletionEventID = eventID
	stored.Version++
	return nil
}

func (repo *recycleRepository) ClearTombstone(ctx context.Context, rec entity.Record) error {
	defer repo.lock()()
	stored, ok := repo.get(rec.Ref)
	if !ok {
		return recycle.ErrNotFound
	}
	if stored.Version != rec.Version {
		return recycle.ErrConcurrentModification
	}
	stored.DeletedAt = nil
	stored.DeletedBy = ""
	stored.DeletionEventID = ""
	stored.Version++
	return nil
}

func (repo *recycleRepository) CreateEvent(ctx context.Context, ev recycle.DeletionEvent) error {
	defer repo.lock()()
	cp := ev
	cp.Members = append([]entity.Ref(nil), ev.Members...)
	cp.Tombstoned = nil // derived, not persisted
	repo.db.events[ev.ID] = &cp
	return nil
}

func (repo *recycleRepository) GetEvent(ctx context.Context, id string) (recycle.DeletionEvent, error) {
	defer repo.lock()()
	ev, ok := repo.db.events[id]
	if !ok {
		return recycle.DeletionEvent{}, recycle.ErrNotFound
	}
	return *ev, nil
}

func (repo *recycleRepository) ListTombstoned(ctx context.Context, kind entity.Kind) ([]recycle.TombstonedRecord, error) {
	defer repo.lock()()
	var deleted []recycle.TombstonedRecord
	for _, rec := range repo.db.tables[kind] {
		if rec.Tombstoned() {
			deleted = append(deleted, recycle.TombstonedRecord{
				ID:        rec.ID,
				DeletedAt: *rec.DeletedAt,
				DeletedBy: rec.DeletedBy,
			})
		}
	}
	sort.Slice(deleted, func(i, j int) bool {
		if deleted[i].DeletedAt.Equal(deleted[j].DeletedAt) {
			return deleted[i].ID < deleted[j].ID
		}
		return deleted[i].DeletedAt.After(deleted[j].DeletedAt)
	})
	return deleted, nil
}

package dummydb_test

import (
	"context"
	"testing"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/darasa/core/entity"
	"github.com/trezcool/darasa/core/recycle"
	dummydb "github.com/trezcool/darasa/storage/database/dummy"
	testutil "github.com/trezcool/darasa/tests"
)

func setup(t *testing.T) (*dummydb.DB, recycle.Repository) {
	t.Helper()
	db, err := dummydb.Open()
	if err != nil {
		t.Fatalf("setup() failed: %v", err)
	}
	return db, dummydb.NewRecycleRepository(db)
}

func TestRecycleRepository_GetRecord(t *testing.T) {
	ctx := context.Background()
	db, repo := setup(t)
	tree := testutil.SeedCourseTree(t, db)

	rec, err := repo.GetRecord(ctx, tree.Module)
	if err != nil {
		t.Fatalf("GetRecord() failed: %v", err)
	}
	if rec.Parent == nil || *rec.Parent != tree.Course {
		t.Errorf("GetRecord().Parent = %v, want %s", rec.Parent, tree.Course)
	}

	if _, err = repo.GetRecord(ctx, entity.NewRef(entity.Course, "nope")); errors.Cause(err) != recycle.ErrNotFound {
		t.Errorf("GetRecord() error = %v, want %v", err, recycle.ErrNotFound)
	}
}

func TestRecycleRepository_ChildRecords(t *testing.T) {
	ctx := context.Background()
	db, repo := setup(t)
	tree := testutil.SeedCourseTree(t, db)
	testutil.AddRecord(t, db, entity.Module, "m0", testutil.RefPtr(tree.Course))

	children, err := repo.ChildRecords(ctx, tree.Course, entity.Relation{Child: entity.Module, ForeignKey: "course_id"})
	if err != nil {
		t.Fatalf("ChildRecords() failed: %v", err)
	}
	if len(children) != 2 {
		t.Fatalf("ChildRecords() returned %d records, want 2", len(children))
	}
	// ordered by id
	if children[0].ID != "m0" || children[1].ID != "m1" {
		t.Errorf("ChildRecords() order = [%s %s], want [m0 m1]", children[0].ID, children[1].ID)
	}
}

func TestRecycleRepository_AncestorRecords(t *testing.T) {
	ctx := context.Background()
	db, repo := setup(t)
	tree := testutil.SeedCourseTree(t, db)

	grade, err := repo.GetRecord(ctx, tree.Grade)
	if err != nil {
		t.Fatalf("GetRecord() failed: %v", err)
	}
	ancestors, err := repo.AncestorRecords(ctx, grade)
	if err != nil {
		t.Fatalf("AncestorRecords() failed: %v", err)
	}

	want := []entity.Ref{tree.Assignment, tree.Module, tree.Course}
	if len(ancestors) != len(want) {
		t.Fatalf("AncestorRecords() returned %d records, want %d", len(ancestors), len(want))
	}
	for i, anc := range ancestors {
		if anc.Ref != want[i] {
			t.Errorf("AncestorRecords()[%d] = %s, want %s", i, anc.Ref, want[i])
		}
	}
}

func TestRecycleRepository_versionChecks(t *testing.T) {
	ctx := context.Background()
	now := time.Now().UTC()
	db, repo := setup(t)
	tree := testutil.SeedCourseTree(t, db)

	rec, err := repo.GetRecord(ctx, tree.Course)
	if err != nil {
		t.Fatalf("GetRecord() failed: %v", err)
	}

	// another writer bumps the version before our write lands
	db.TouchRecord(tree.Course)

	err = repo.SetTombstone(ctx, rec, now, "adm", "ev1")
	if errors.Cause(err) != recycle.ErrConcurrentModification {
		t.Fatalf("SetTombstone() error = %v, want %v", err, recycle.ErrConcurrentModification)
	}

	// with a fresh read the write succeeds and bumps the version again
	if rec, err = repo.GetRecord(ctx, tree.Course); err != nil {
		t.Fatalf("GetRecord() failed: %v", err)
	}
	if err = repo.SetTombstone(ctx, rec, now, "adm", "ev1"); err != nil {
		t.Fatalf("SetTombstone() failed: %v", err)
	}
	refreshed, err := repo.GetRecord(ctx, tree.Course)
	if err != nil {
		t.Fatalf("GetRecord() failed: %v", err)
	}
	if !refreshed.Tombstoned() || refreshed.Version != rec.Version+1 {
		t.Errorf("SetTombstone() result = %+v, want tombstoned at version %d", refreshed, rec.Version+1)
	}

	// stale clears are rejected the same way
	if err = repo.ClearTombstone(ctx, rec); errors.Cause(err) != recycle.ErrConcurrentModification {
		t.Errorf("ClearTombstone() error = %v, want %v", err, recycle.ErrConcurrentModification)
	}
}

func TestRecycleRepository_Atomically(t *testing.T) {
	ctx := context.Background()
	now := time.Now().UTC()
	db, repo := setup(t)
	tree := testutil.SeedCourseTree(t, db)

	boom := errors.New("boom")
	err := repo.Atomically(ctx, func(tx recycle.Repository) error {
		rec, err := tx.GetRecord(ctx, tree.Course)
		if err != nil {
			return err
		}
		if err = tx.SetTombstone(ctx, rec, now, "adm", "ev1"); err != nil {
			return err
		}
		return boom
	})
	if errors.Cause(err) != boom {
		t.Fatalf("Atomically() error = %v, want %v", err, boom)
	}

	// the failed scope left no trace
	rec, err := repo.GetRecord(ctx, tree.Course)
	if err != nil {
		t.Fatalf("GetRecord() failed: %v", err)
	}
	if rec.Tombstoned() || rec.Version != 0 {
		t.Errorf("rolled-back record = %+v, want untouched", rec)
	}

	// nested scopes join the outer one
	err = repo.Atomically(ctx, func(tx recycle.Repository) error {
		return tx.Atomically(ctx, func(inner recycle.Repository) error {
			rec, err := inner.GetRecord(ctx, tree.Course)
			if err != nil {
				return err
			}
			return inner.SetTombstone(ctx, rec, now, "adm", "ev1")
		})
	})
	if err != nil {
		t.Fatalf("Atomically() failed: %v", err)
	}
	if rec, err = repo.GetRecord(ctx, tree.Course); err != nil || !rec.Tombstoned() {
		t.Errorf("nested scope result = (%+v, %v), want tombstoned course", rec, err)
	}

	// an expired deadline is the retryable timeout
	expiredCtx, cancelExpired := context.WithDeadline(ctx, time.Now().Add(-time.Second))
	defer cancelExpired()
	err = repo.Atomically(expiredCtx, func(tx recycle.Repository) error { return nil })
	if errors.Cause(err) != recycle.ErrTimeout {
		t.Errorf("Atomically() error = %v, want %v", err, recycle.ErrTimeout)
	}

	// plain cancellation is not
	canceledCtx, cancel := context.WithCancel(ctx)
	cancel()
	err = repo.Atomically(canceledCtx, func(tx recycle.Repository) error { return nil })
	if errors.Cause(err) != context.Canceled {
		t.Errorf("Atomically() error = %v, want %v", err, context.Canceled)
	}
}

func TestRecycleRepository_ListTombstoned(t *testing.T) {
	ctx := context.Background()
	db, repo := setup(t)
	tree := testutil.SeedCourseTree(t, db)
	testutil.AddRecord(t, db, entity.Module, "m2", testutil.RefPtr(tree.Course))

	t1 := time.Date(2021, 1, 1, 0, 0, 0, 0, time.UTC)
	t2 := t1.Add(time.Hour)
	for _, del := range []struct {
		ref entity.Ref
		at  time.Time
	}{
		{ref: tree.Module, at: t1},
		{ref: entity.NewRef(entity.Module, "m2"), at: t2},
	} {
		rec, err := repo.GetRecord(ctx, del.ref)
		if err != nil {
			t.Fatalf("GetRecord() failed: %v", err)
		}
		if err = repo.SetTombstone(ctx, rec, del.at, "adm", "ev-"+del.ref.ID); err != nil {
			t.Fatalf("SetTombstone() failed: %v", err)
		}
	}

	deleted, err := repo.ListTombstoned(ctx, entity.Module)
	if err != nil {
		t.Fatalf("ListTombstoned() failed: %v", err)
	}
	if len(deleted) != 2 {
		t.Fatalf("ListTombstoned() returned %d records, want 2", len(deleted))
	}
	// most recently deleted first
	if deleted[0].ID != "m2" || deleted[1].ID != "m1" {
		t.Errorf("ListTombstoned() order = [%s %s], want [m2 m1]", deleted[0].ID, deleted[1].ID)
	}
}

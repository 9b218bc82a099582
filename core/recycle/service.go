package recycle

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/trezcool/darasa/core"
	"github.com/trezcool/darasa/core/entity"
)

var nowFunc = func() time.Time { return time.Now().UTC() } // mockable

// Service implements the soft-delete and cascading-restore operations over
// the entity ownership graph. It is permission-agnostic: actor ids arrive
// pre-validated and are only recorded.
type Service struct {
	repo  Repository
	log   core.Logger
	clock func() time.Time
}

func NewService(repo Repository, log core.Logger, clock ...func() time.Time) *Service {
	svc := &Service{repo: repo, log: log, clock: nowFunc}
	if len(clock) > 0 && clock[0] != nil {
		svc.clock = clock[0]
	}
	return svc
}

// Delete tombstones the record and every reachable descendant as one atomic
// unit, and appends the corresponding DeletionEvent to the ledger.
// Descendants already tombstoned under an earlier event are listed as event
// members but keep their original event reference; only live->tombstoned
// transitions point at the new event.
//
// Fails with ErrNotFound or ErrAlreadyDeleted without writing anything.
func (svc *Service) Delete(ctx context.Context, kind entity.Kind, id, actor string) (DeletionEvent, error) {
	var ev DeletionEvent

	root := entity.NewRef(kind, id)
	err := svc.repo.Atomically(ctx, func(tx Repository) error {
		rec, err := tx.GetRecord(ctx, root)
		if err != nil {
			return err
		}
		if err = svc.checkTombstone(rec); err != nil {
			return err
		}
		if rec.Tombstoned() {
			return ErrAlreadyDeleted
		}

		members, err := svc.collectSubtree(ctx, tx, rec)
		if err != nil {
			return errors.Wrap(err, "collecting descendants")
		}

		now := svc.clock()
		ev = DeletionEvent{
			ID:        uuid.New().String(),
			Root:      root,
			Actor:     actor,
			CreatedAt: now,
		}
		for _, member := range members {
			ev.Members = append(ev.Members, member.Ref)
			if member.Tombstoned() {
				// deleted under an earlier event; keep that reference
				continue
			}
			if err = tx.SetTombstone(ctx, member, now, actor, ev.ID); err != nil {
				return errors.Wrapf(err, "tombstoning %s", member.Ref)
			}
			ev.Tombstoned = append(ev.Tombstoned, member.Ref)
		}
		return tx.CreateEvent(ctx, ev)
	})
	if err != nil {
		return DeletionEvent{}, err
	}

	svc.log.Info("deleted "+root.String(), map[string]interface{}{
		"event": ev.ID, "actor": actor, "records": len(ev.Tombstoned),
	})
	return ev, nil
}

// Restore clears the record's tombstone. With cascade, it additionally
// restores the record's descendants tombstoned under the same event:
// same-event siblings outside the target's subtree and descendants deleted
// independently under other events are left untouched.
//
// A restored record with a still-tombstoned ancestor becomes self-live but
// stays hidden from normal views until that ancestor is restored too.
//
// Fails with ErrNotFound or ErrNotDeleted without writing anything; a
// concurrent mutation of the computed restore set fails the whole call with
// ErrPartialRestoreConflict and zero effect.
func (svc *Service) Restore(ctx context.Context, kind entity.Kind, id string, cascade bool, actor string) ([]entity.Ref, error) {
	var restored []entity.Ref

	target := entity.NewRef(kind, id)
	err := svc.repo.Atomically(ctx, func(tx Repository) error {
		rec, err := tx.GetRecord(ctx, target)
		if err != nil {
			return err
		}
		if err = svc.checkTombstone(rec); err != nil {
			return err
		}
		if !rec.Tombstoned() {
			return ErrNotDeleted
		}

		restoreSet := []entity.Record{rec}
		if cascade {
			members, err := svc.collectSubtree(ctx, tx, rec)
			if err != nil {
				return errors.Wrap(err, "collecting descendants")
			}
			for _, member := range members[1:] { // members[0] is rec itself
				if member.Tombstoned() && member.DeletionEventID == rec.DeletionEventID {
					restoreSet = append(restoreSet, member)
				}
			}
		}

		restored = restored[:0]
		for _, member := range restoreSet {
			if err = tx.ClearTombstone(ctx, member); err != nil {
				if errors.Cause(err) == ErrConcurrentModification {
					// the member list no longer matches the store
					return errors.Wrapf(ErrPartialRestoreConflict, "restoring %s", member.Ref)
				}
				return errors.Wrapf(err, "restoring %s", member.Ref)
			}
			restored = append(restored, member.Ref)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	svc.log.Info("restored "+target.String(), map[string]interface{}{
		"actor": actor, "cascade": cascade, "records": len(restored),
	})
	return restored, nil
}

// ListTombstoned enumerates the directly tombstoned records of kind for
// recovery workflows, most recently deleted first.
func (svc *Service) ListTombstoned(ctx context.Context, kind entity.Kind) ([]TombstonedRecord, error) {
	return svc.repo.ListTombstoned(ctx, kind)
}

// GetEvent returns a ledger entry for caller auditing.
func (svc *Service) GetEvent(ctx context.Context, id string) (DeletionEvent, error) {
	return svc.repo.GetEvent(ctx, id)
}

// collectSubtree gathers root and every reachable descendant in BFS order,
// regardless of tombstone state. A kind reachable through two edges
// (Assignment under both Course and Module) is deduplicated on first sight.
func (svc *Service) collectSubtree(ctx context.Context, tx Repository, root entity.Record) ([]entity.Record, error) {
	seen := map[entity.Ref]bool{root.Ref: true}
	subtree := []entity.Record{root}

	for queue := []entity.Record{root}; len(queue) > 0; {
		rec := queue[0]
		queue = queue[1:]

		for _, rel := range entity.ChildrenOf(rec.Kind) {
			children, err := tx.ChildRecords(ctx, rec.Ref, rel)
			if err != nil {
				return nil, err
			}
			for _, child := range children {
				if seen[child.Ref] {
					continue
				}
				if err = svc.checkTombstone(child); err != nil {
					return nil, err
				}
				seen[child.Ref] = true
				subtree = append(subtree, child)
				queue = append(queue, child)
			}
		}
	}
	return subtree, nil
}

// checkTombstone surfaces stored state breaking the "deletionEventId is set
// iff deletedAt is set" invariant. Never repaired silently: it is reported
// on the alert path and propagated.
func (svc *Service) checkTombstone(rec entity.Record) error {
	var reason string
	switch {
	case rec.DeletedAt != nil && rec.DeletionEventID == "":
		reason = "deletedAt set without a deletion event"
	case rec.DeletedAt == nil && rec.DeletionEventID != "":
		reason = "deletion event set without deletedAt"
	default:
		return nil
	}
	err := &InvariantViolationError{Ref: rec.Ref, Reason: reason}
	svc.log.Error(err.Error(), map[string]interface{}{"record": rec.Ref.String()})
	return err
}

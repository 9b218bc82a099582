package recycle

import (
	"context"
	"time"

	"github.com/trezcool/darasa/core/entity"
)

// Repository is the transactional record-store collaborator. The store owns
// the entity rows; the subsystem only reads identities/FKs and mutates the
// three tombstone fields plus the append-only event ledger.
//
// Implementations must map their native conflict and deadline failures onto
// ErrConcurrentModification and ErrTimeout so callers can tell retryable
// failures from fatal ones.
type Repository interface {
	// Atomically runs fn within one serializable transaction scope: every
	// read and write fn performs through the passed Repository is part of
	// the same atomic, isolated unit, and none of it survives a returned
	// error. Nested calls join the enclosing scope.
	Atomically(ctx context.Context, fn func(tx Repository) error) error

	// GetRecord returns the record's tombstone view; ErrNotFound if absent.
	GetRecord(ctx context.Context, ref entity.Ref) (entity.Record, error)

	// ChildRecords returns the records of rel.Child owned by parent through
	// rel.ForeignKey, ordered by id.
	ChildRecords(ctx context.Context, parent entity.Ref, rel entity.Relation) ([]entity.Record, error)

	// AncestorRecords returns rec's ownership chain, nearest first, by
	// following effective-parent references up to a forest root.
	AncestorRecords(ctx context.Context, rec entity.Record) ([]entity.Record, error)

	// SetTombstone marks rec deleted. The write is version-checked against
	// rec.Version; a lost check fails with ErrConcurrentModification.
	SetTombstone(ctx context.Context, rec entity.Record, deletedAt time.Time, deletedBy, eventID string) error

	// ClearTombstone re-activates rec, clearing all three tombstone fields.
	// Version-checked like SetTombstone.
	ClearTombstone(ctx context.Context, rec entity.Record) error

	// CreateEvent appends ev to the ledger. Events are never updated or
	// deleted by this subsystem.
	CreateEvent(ctx context.Context, ev DeletionEvent) error

	// GetEvent returns a ledger row; ErrNotFound if absent.
	GetEvent(ctx context.Context, id string) (DeletionEvent, error)

	// ListTombstoned returns the directly tombstoned records of kind,
	// most recently deleted first. Cascade-hidden live records are not
	// included; they come back through their ancestor's restore.
	ListTombstoned(ctx context.Context, kind entity.Kind) ([]TombstonedRecord, error)
}

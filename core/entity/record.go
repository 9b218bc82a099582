package entity

import "time"

type (
	// Ref identifies a record as a (kind, id) pair.
	Ref struct {
		Kind Kind   `json:"kind"`
		ID   string `json:"id"`
	}

	// Record is the subsystem's view of an entity instance: its identity,
	// its effective owner and its tombstone state. All other entity fields
	// stay with the owning application flows.
	Record struct {
		Ref

		// Parent is the effective owner: the most specific ownership FK
		// that is set on the row. Nil at forest roots.
		Parent *Ref

		// Version increments on every tombstone mutation; used for
		// optimistic conflict detection.
		Version int

		DeletedAt       *time.Time
		DeletedBy       string
		DeletionEventID string
	}
)

func NewRef(kind Kind, id string) Ref {
	return Ref{Kind: kind, ID: id}
}

func (r Ref) String() string {
	return string(r.Kind) + ":" + r.ID
}

// Tombstoned reports a direct tombstone on the record itself,
// regardless of ancestor state. This is the predicate behind
// administrative recovery listings.
func (r Record) Tombstoned() bool {
	return r.DeletedAt != nil
}

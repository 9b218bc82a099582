package recycle

import (
	"time"

	"github.com/trezcool/darasa/core"
	"github.com/trezcool/darasa/core/entity"
)

type (
	// DeletionEvent is the immutable ledger row written by one delete
	// invocation. Members holds every record reachable from Root in BFS
	// order (Root first), including descendants that were already
	// tombstoned under an earlier event; those keep their original event
	// reference and are never restored through this one.
	DeletionEvent struct {
		ID        string       `json:"id"`
		Root      entity.Ref   `json:"root"`
		Actor     string       `json:"actor"`
		CreatedAt time.Time    `json:"created_at"` // UTC
		Members   []entity.Ref `json:"members"`

		// Tombstoned lists the members that actually transitioned
		// live->tombstoned under this event. Derived for caller auditing;
		// not persisted.
		Tombstoned []entity.Ref `json:"tombstoned,omitempty"`
	}

	// TombstonedRecord is the admin recovery-listing summary of a directly
	// tombstoned record.
	TombstonedRecord struct {
		ID        string    `json:"id"`
		DeletedAt time.Time `json:"deleted_at"` // UTC
		DeletedBy string    `json:"deleted_by"`
	}
)

// DeleteInput carries raw delete parameters from the surrounding
// application layer.
type DeleteInput struct {
	Kind  string `json:"kind" validate:"required,modelkind"`
	ID    string `json:"id" validate:"required"`
	Actor string `json:"actor" validate:"required"`
}

func (in *DeleteInput) Validate() error {
	in.Kind = core.CleanString(in.Kind, true /* lower */)
	in.ID = core.CleanString(in.ID)
	in.Actor = core.CleanString(in.Actor)
	return core.TranslateError(core.Validate.Struct(in))
}

// RestoreInput carries raw restore parameters from the surrounding
// application layer. Cascade extends the restore to descendants tombstoned
// under the same event.
type RestoreInput struct {
	Kind    string `json:"kind" validate:"required,modelkind"`
	ID      string `json:"id" validate:"required"`
	Cascade bool   `json:"cascade"`
	Actor   string `json:"actor" validate:"required"`
}

func (in *RestoreInput) Validate() error {
	in.Kind = core.CleanString(in.Kind, true /* lower */)
	in.ID = core.CleanString(in.ID)
	in.Actor = core.CleanString(in.Actor)
	return core.TranslateError(core.Validate.Struct(in))
}

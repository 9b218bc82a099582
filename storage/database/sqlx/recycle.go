package sqlxrepos

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/darasa/core"
	"github.com/trezcool/darasa/core/entity"
	"github.com/trezcool/darasa/core/recycle"
)

const eventTable = "deletion_event"

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

// tombstone columns present on every entity table
var recordColumns = []string{"id", "deleted_at", "deleted_by", "deletion_event_id", "version"}

type recycleRepository struct {
	db      *sqlx.DB
	exec    sqlx.ExtContext
	timeout time.Duration
	inTx    bool
}

var _ recycle.Repository = (*recycleRepository)(nil) // interface compliance check

func NewRecycleRepository(db *sqlx.DB, conf *core.Config) recycle.Repository {
	return &recycleRepository{db: db, exec: db, timeout: conf.Database.Timeout}
}

func tableFor(kind entity.Kind) string {
	return pq.QuoteIdentifier(string(kind))
}

// trapNoRowsErr maps psql "no rows" err to recycle.ErrNotFound
func trapNoRowsErr(err error, msg string) error {
	if err == sql.ErrNoRows {
		return recycle.ErrNotFound
	}
	return errors.Wrap(err, msg)
}

// trapTxErr maps store-level failures onto the retryable taxonomy:
// serialization/deadlock losses become ErrConcurrentModification and
// deadline hits become ErrTimeout. Already-mapped errors pass through.
func trapTxErr(err error) error {
	if err == nil {
		return nil
	}
	cause := errors.Cause(err)
	if cause == context.DeadlineExceeded {
		return recycle.ErrTimeout
	}
	if pqErr, ok := cause.(*pq.Error); ok {
		switch pqErr.Code {
		case "40001", "40P01": // serialization_failure, deadlock_detected
			return recycle.ErrConcurrentModification
		case "57014": // query_canceled (statement_timeout)
			return recycle.ErrTimeout
		}
	}
	return err
}

func (repo *recycleRepository) Atomically(ctx context.Context, fn func(tx recycle.Repository) error) error {
	if repo.inTx {
		return fn(repo)
	}

	if repo.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, repo.timeout)
		defer cancel()
	}

	// the descendant enumeration and the tombstone writes must share one
	// serializable snapshot
	tx, err := repo.db.BeginTxx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return trapTxErr(errors.Wrap(err, "beginning transaction"))
	}

	txRepo := &recycleRepository{db: repo.db, exec: tx, timeout: repo.timeout, inTx: true}
	if err = fn(txRepo); err != nil {
		_ = tx.Rollback()
		return trapTxErr(err)
	}
	if err = tx.Commit(); err != nil {
		return trapTxErr(errors.Wrap(err, "committing transaction"))
	}
	return nil
}

// scanRecord reads the tombstone columns plus the owner FK columns of kind
// and resolves the effective parent (most specific owner FK that is set).
func scanRecord(row sq.RowScanner, kind entity.Kind, owners []entity.Owner) (entity.Record, error) {
	var (
		id              string
		deletedAt       null.Time
		deletedBy       null.String
		deletionEventID null.String
		version         int
	)
	dest := []interface{}{&id, &deletedAt, &deletedBy, &deletionEventID, &version}
	fkVals := make([]null.String, len(owners))
	for i := range fkVals {
		dest = append(dest, &fkVals[i])
	}
	if err := row.Scan(dest...); err != nil {
		return entity.Record{}, err
	}

	rec := entity.Record{
		Ref:             entity.NewRef(kind, id),
		Version:         version,
		DeletedBy:       deletedBy.String,
		DeletionEventID: deletionEventID.String,
	}
	if deletedAt.Valid {
		t := deletedAt.Time.UTC()
		rec.DeletedAt = &t
	}
	for i, fk := range fkVals {
		if fk.Valid {
			parent := entity.NewRef(owners[i].Kind, fk.String)
			rec.Parent = &parent
			break
		}
	}
	return rec, nil
}

func selectRecords(kind entity.Kind) (sq.SelectBuilder, []entity.Owner) {
	owners := entity.OwnersOf(kind)
	cols := append([]string{}, recordColumns...)
	for _, own := range owners {
		cols = append(cols, own.ForeignKey)
	}
	return psql.Select(cols...).From(tableFor(kind)), owners
}

func (repo *recycleRepository) GetRecord(ctx context.Context, ref entity.Ref) (entity.Record, error) {
	builder, owners := selectRecords(ref.Kind)
	query, args, err := builder.Where(sq.Eq{"id": ref.ID}).ToSql()
	if err != nil {
		return entity.Record{}, errors.Wrap(err, "building record query")
	}

	rec, err := scanRecord(repo.exec.QueryRowxContext(ctx, query, args...), ref.Kind, owners)
	if err != nil {
		return entity.Record{}, trapNoRowsErr(err, "finding record")
	}
	return rec, nil
}

func (repo *recycleRepository) ChildRecords(ctx context.Context, parent entity.Ref, rel entity.Relation) ([]entity.Record, error) {
	builder, owners := selectRecords(rel.Child)
	query, args, err := builder.
		Where(sq.Eq{rel.ForeignKey: parent.ID}).
		OrderBy("id ASC").
		ToSql()
	if err != nil {
		return nil, errors.Wrap(err, "building children query")
	}

	rows, err := repo.exec.QueryxContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "querying children")
	}
	defer func() { _ = rows.Close() }()

	var children []entity.Record
	for rows.Next() {
		rec, err := scanRecord(rows, rel.Child, owners)
		if err != nil {
			return nil, errors.Wrap(err, "scanning child record")
		}
		children = append(children, rec)
	}
	if err = rows.Err(); err != nil {
		return nil, errors.Wrap(err, "querying children")
	}
	return children, nil
}

func (repo *recycleRepository) AncestorRecords(ctx context.Context, rec entity.Record) ([]entity.Record, error) {
	var ancestors []entity.Record
	for parent := rec.Parent; parent != nil; {
		anc, err := repo.GetRecord(ctx, *parent)
		if err != nil {
			return nil, err
		}
		ancestors = append(ancestors, anc)
		parent = anc.Parent
	}
	return ancestors, nil
}

func (repo *recycleRepository) SetTombstone(ctx context.Context, rec entity.Record, deletedAt time.Time, deletedBy, eventID string) error {
	query, args, err := psql.Update(tableFor(rec.Kind)).
		Set("deleted_at", deletedAt.UTC()).
		Set("deleted_by", deletedBy).
		Set("deletion_event_id", eventID).
		Set("version", rec.Version+1).
		Where(sq.Eq{"id": rec.ID, "version": rec.Version}).
		ToSql()
	if err != nil {
		return errors.Wrap(err, "building tombstone update")
	}
	return repo.execVersioned(ctx, query, args)
}

func (repo *recycleRepository) ClearTombstone(ctx context.Context, rec entity.Record) error {
	query, args, err := psql.Update(tableFor(rec.Kind)).
		Set("deleted_at", nil).
		Set("deleted_by", nil).
		Set("deletion_event_id", nil).
		Set("version", rec.Version+1).
		Where(sq.Eq{"id": rec.ID, "version": rec.Version}).
		ToSql()
	if err != nil {
		return errors.Wrap(err, "building tombstone clear")
	}
	return repo.execVersioned(ctx, query, args)
}

// execVersioned runs a version-checked update; a lost check updates no rows.
func (repo *recycleRepository) execVersioned(ctx context.Context, query string, args []interface{}) error {
	res, err := repo.exec.ExecContext(ctx, query, args...)
	if err != nil {
		return errors.Wrap(err, "updating tombstone")
	}
	cnt, err := res.RowsAffected()
	if err != nil {
		return errors.Wrap(err, "updating tombstone")
	}
	if cnt == 0 {
		return recycle.ErrConcurrentModification
	}
	return nil
}

func (repo *recycleRepository) CreateEvent(ctx context.Context, ev recycle.DeletionEvent) error {
	members, err := json.Marshal(ev.Members)
	if err != nil {
		return errors.Wrap(err, "encoding event members")
	}
	query, args, err := psql.Insert(eventTable).
		Columns("id", "root_kind", "root_id", "actor", "created_at", "members").
		Values(ev.ID, string(ev.Root.Kind), ev.Root.ID, ev.Actor, ev.CreatedAt.UTC(), members).
		ToSql()
	if err != nil {
		return errors.Wrap(err, "building event insert")
	}
	if _, err = repo.exec.ExecContext(ctx, query, args...); err != nil {
		return errors.Wrap(err, "inserting deletion event")
	}
	return nil
}

func (repo *recycleRepository) GetEvent(ctx context.Context, id string) (recycle.DeletionEvent, error) {
	query, args, err := psql.Select("id", "root_kind", "root_id", "actor", "created_at", "members").
		From(eventTable).
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return recycle.DeletionEvent{}, errors.Wrap(err, "building event query")
	}

	var (
		ev       recycle.DeletionEvent
		rootKind string
		members  []byte
	)
	row := repo.exec.QueryRowxContext(ctx, query, args...)
	if err = row.Scan(&ev.ID, &rootKind, &ev.Root.ID, &ev.Actor, &ev.CreatedAt, &members); err != nil {
		return recycle.DeletionEvent{}, trapNoRowsErr(err, "finding deletion event")
	}
	ev.Root.Kind = entity.Kind(rootKind)
	ev.CreatedAt = ev.CreatedAt.UTC()
	if err = json.Unmarshal(members, &ev.Members); err != nil {
		return recycle.DeletionEvent{}, errors.Wrap(err, "decoding event members")
	}
	return ev, nil
}

func (repo *recycleRepository) ListTombstoned(ctx context.Context, kind entity.Kind) ([]recycle.TombstonedRecord, error) {
	ord := core.DBOrdering{Field: "deleted_at"} // most recent first
	query, args, err := psql.Select("id", "deleted_at", "deleted_by").
		From(tableFor(kind)).
		Where("deleted_at IS NOT NULL").
		OrderBy(ord.String(), "id ASC").
		ToSql()
	if err != nil {
		return nil, errors.Wrap(err, "building tombstoned listing")
	}

	rows, err := repo.exec.QueryxContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "querying tombstoned records")
	}
	defer func() { _ = rows.Close() }()

	var deleted []recycle.TombstonedRecord
	for rows.Next() {
		var (
			rec       recycle.TombstonedRecord
			deletedBy null.String
		)
		if err = rows.Scan(&rec.ID, &rec.DeletedAt, &deletedBy); err != nil {
			return nil, errors.Wrap(err, "scanning tombstoned record")
		}
		rec.DeletedAt = rec.DeletedAt.UTC()
		rec.DeletedBy = deletedBy.String
		deleted = append(deleted, rec)
	}
	if err = rows.Err(); err != nil {
		return nil, errors.Wrap(err, "querying tombstoned records")
	}
	return deleted, nil
}

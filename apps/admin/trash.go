package main

import (
	"context"
	"fmt"

	"github.com/trezcool/darasa/core/entity"
	"github.com/trezcool/darasa/core/recycle"
)

// listTrash prints the directly deleted records of a kind, most recent first.
func (cli *commandLine) listTrash(kind string) error {
	k, err := entity.ParseKind(kind)
	if err != nil {
		return err
	}

	deleted, err := cli.svc.ListTombstoned(context.Background(), k)
	if err != nil {
		return err
	}
	if len(deleted) == 0 {
		fmt.Fprintf(cli.out, "no deleted %s records\n", k)
		return nil
	}
	for _, rec := range deleted {
		fmt.Fprintf(cli.out, "%s\t%s\tdeleted by %s\n", rec.ID, rec.DeletedAt.Format("2006-01-02 15:04:05"), rec.DeletedBy)
	}
	return nil
}

// delete tombstones a record and all its descendants.
func (cli *commandLine) delete(in recycle.DeleteInput) error {
	k, err := entity.ParseKind(in.Kind)
	if err != nil {
		return err
	}

	ev, err := cli.svc.Delete(context.Background(), k, in.ID, in.Actor)
	if err != nil {
		return err
	}
	fmt.Fprintf(cli.out, "deleted %d record(s) under event %s\n", len(ev.Tombstoned), ev.ID)
	for _, ref := range ev.Tombstoned {
		fmt.Fprintf(cli.out, "  %s\n", ref)
	}
	return nil
}

// restore re-activates a deleted record, optionally cascading to
// descendants deleted by the same event.
func (cli *commandLine) restore(in recycle.RestoreInput) error {
	k, err := entity.ParseKind(in.Kind)
	if err != nil {
		return err
	}

	restored, err := cli.svc.Restore(context.Background(), k, in.ID, in.Cascade, in.Actor)
	if err != nil {
		return err
	}
	fmt.Fprintf(cli.out, "restored %d record(s)\n", len(restored))
	for _, ref := range restored {
		fmt.Fprintf(cli.out, "  %s\n", ref)
	}
	return nil
}

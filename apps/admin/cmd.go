package main

import (
	"errors"
	"flag"
	"fmt"
	"io"

	"github.com/jmoiron/sqlx"

	"github.com/trezcool/darasa/core"
	"github.com/trezcool/darasa/core/recycle"
)

var errHelp = errors.New("help provided")

type commandLine struct {
	db  *sqlx.DB
	svc *recycle.Service
	out io.Writer
}

func (cli *commandLine) printFieldErrors(err error) {
	vErr, ok := err.(*core.ValidationError)
	if !ok {
		return
	}
	for _, fld := range vErr.Fields {
		fmt.Fprintf(cli.out, "%s: %s\n", fld.Field, fld.Error)
	}
}

func (cli *commandLine) printUsage() {
	fmt.Fprintln(cli.out, "Usage:")
	fmt.Fprintln(cli.out, "  trash -kind KIND - list deleted records of a kind")
	fmt.Fprintln(cli.out, "  delete -kind KIND -id ID -actor ACTOR - soft-delete a record and its descendants")
	fmt.Fprintln(cli.out, "  restore -kind KIND -id ID -actor ACTOR [-cascade] - restore a deleted record")
	fmt.Fprintln(cli.out, "  migrate COMMAND [args] - run database migrations")
}

func (cli *commandLine) run(args []string) error {
	if len(args) < 2 {
		cli.printUsage()
		return errHelp
	}

	trashCmd := flag.NewFlagSet("trash", flag.ExitOnError)
	trashKind := trashCmd.String("kind", "", "The model kind to list deleted records for.")

	deleteCmd := flag.NewFlagSet("delete", flag.ExitOnError)
	deleteKind := deleteCmd.String("kind", "", "The model kind of the record to delete.")
	deleteID := deleteCmd.String("id", "", "The id of the record to delete.")
	deleteActor := deleteCmd.String("actor", "", "The id of the admin performing the deletion.")

	restoreCmd := flag.NewFlagSet("restore", flag.ExitOnError)
	restoreKind := restoreCmd.String("kind", "", "The model kind of the record to restore.")
	restoreID := restoreCmd.String("id", "", "The id of the record to restore.")
	restoreActor := restoreCmd.String("actor", "", "The id of the admin performing the restore.")
	restoreCascade := restoreCmd.Bool("cascade", false, "Also restore descendants deleted by the same event.")

	switch args[1] {
	case "trash":
		if err := trashCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *trashKind == "" {
			trashCmd.Usage()
			return errHelp
		}
		return cli.listTrash(*trashKind)
	case "delete":
		if err := deleteCmd.Parse(args[2:]); err != nil {
			return err
		}
		in := recycle.DeleteInput{Kind: *deleteKind, ID: *deleteID, Actor: *deleteActor}
		if err := in.Validate(); err != nil {
			cli.printFieldErrors(err)
			deleteCmd.Usage()
			return err
		}
		return cli.delete(in)
	case "restore":
		if err := restoreCmd.Parse(args[2:]); err != nil {
			return err
		}
		in := recycle.RestoreInput{Kind: *restoreKind, ID: *restoreID, Cascade: *restoreCascade, Actor: *restoreActor}
		if err := in.Validate(); err != nil {
			cli.printFieldErrors(err)
			restoreCmd.Usage()
			return err
		}
		return cli.restore(in)
	case "migrate":
		if len(args) < 3 {
			cli.printUsage()
			return errHelp
		}
		return cli.migrate(args[2:])
	default:
		cli.printUsage()
		return errHelp
	}
}

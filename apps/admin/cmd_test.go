package main

import (
	"bytes"
	"database/sql"
	"fmt"
	"io"
	"io/fs"
	"log"
	"strconv"
	"strings"
	"testing"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/trezcool/darasa/core/entity"
	"github.com/trezcool/darasa/core/recycle"
	logsvc "github.com/trezcool/darasa/services/logger"
	dummydb "github.com/trezcool/darasa/storage/database/dummy"
	testutil "github.com/trezcool/darasa/tests"
)

func setup(t *testing.T) (*commandLine, *dummydb.DB, *bytes.Buffer) {
	// set up store & service
	db, err := dummydb.Open()
	if err != nil {
		t.Fatalf("setup() failed: %v", err)
	}
	svc := recycle.NewService(dummydb.NewRecycleRepository(db), logsvc.NewStdLogger(log.New(io.Discard, "", 0)))

	// start CLI
	out := new(bytes.Buffer)
	return &commandLine{
		db:  new(sqlx.DB),
		svc: svc,
		out: out,
	}, db, out
}

type cliTest struct {
	name       string
	args       []string // without program name
	wantErr    error
	wantErrStr string
}

func runCliTests(t *testing.T, cli *commandLine, tests []cliTest) {
	t.Helper()
	for _, tt := range tests {
		args := append([]string{"admin"}, tt.args...)

		t.Run(tt.name, func(t *testing.T) {
			if err := cli.run(args); err != nil {
				if tt.wantErr != nil {
					if errors.Cause(err) != tt.wantErr {
						t.Errorf("cli.run() error = %v, wantErr %v", err, tt.wantErr)
					}
				} else if tt.wantErrStr != "" {
					if err.Error() != tt.wantErrStr {
						t.Errorf("cli.run() error.Error() = %s, wantErrStr %s", err.Error(), tt.wantErrStr)
					}
				} else {
					t.Errorf("cli.run() unexpected error = %v", err)
				}
			} else if tt.wantErr != nil || tt.wantErrStr != "" {
				t.Errorf("cli.run() error = nil, want %v%s", tt.wantErr, tt.wantErrStr)
			}
		})
	}
}

func Test_commandLine_migrate(t *testing.T) {
	cli, _, _ := setup(t)

	gooseRunFunc = func(command string, db *sql.DB, fsys fs.FS, dir string, args ...string) error {
		switch command {
		case "up", "up-by-one", "down", "fix", "redo", "reset", "status", "version": // pass
		case "up-to":
			if len(args) == 0 {
				return fmt.Errorf("up-to must be of form: goose [OPTIONS] DRIVER DBSTRING up-to VERSION")
			}
			if _, err := strconv.ParseInt(args[0], 10, 64); err != nil {
				return fmt.Errorf("version must be a number (got '%s')", args[0])
			}
		case "create":
			if len(args) == 0 {
				return fmt.Errorf("create must be of form: goose [OPTIONS] DRIVER DBSTRING create NAME [go|sql]")
			}
		case "down-to":
			if len(args) == 0 {
				return fmt.Errorf("down-to must be of form: goose [OPTIONS] DRIVER DBSTRING down-to VERSION")
			}
			if _, err := strconv.ParseInt(args[0], 10, 64); err != nil {
				return fmt.Errorf("version must be a number (got '%s')", args[0])
			}
		default:
			return fmt.Errorf("%q: no such command", command)
		}
		return nil
	}

	tests := []cliTest{
		{name: "no subcommand", args: []string{"migrate"}, wantErr: errHelp},
		{name: "unknown subcommand", args: []string{"migrate", "lol"}, wantErrStr: "\"lol\": no such command"},
		{name: "up-to: no args", args: []string{"migrate", "up-to"}, wantErrStr: "up-to must be of form: goose [OPTIONS] DRIVER DBSTRING up-to VERSION"},
		{name: "up-to: non-int arg", args: []string{"migrate", "up-to", "lol"}, wantErrStr: "version must be a number (got 'lol')"},
		{name: "create: no args", args: []string{"migrate", "create"}, wantErrStr: "create must be of form: goose [OPTIONS] DRIVER DBSTRING create NAME [go|sql]"},
		{name: "down-to: no args", args: []string{"migrate", "down-to"}, wantErrStr: "down-to must be of form: goose [OPTIONS] DRIVER DBSTRING down-to VERSION"},
		{name: "down-to: non-int arg", args: []string{"migrate", "down-to", "lol"}, wantErrStr: "version must be a number (got 'lol')"},
		{name: "up", args: []string{"migrate", "up"}},
		{name: "up-by-one", args: []string{"migrate", "up-by-one"}},
		{name: "up-to", args: []string{"migrate", "up-to", "2"}},
		{name: "down", args: []string{"migrate", "down"}},
		{name: "down-to", args: []string{"migrate", "down-to", "1"}},
		{name: "redo", args: []string{"migrate", "redo"}},
		{name: "reset", args: []string{"migrate", "reset"}},
		{name: "status", args: []string{"migrate", "status"}},
		{name: "version", args: []string{"migrate", "version"}},
		{name: "create", args: []string{"migrate", "create", "course", "sql"}},
		{name: "fix", args: []string{"migrate", "fix"}},
	}
	runCliTests(t, cli, tests)
}

func Test_commandLine_trash(t *testing.T) {
	cli, db, out := setup(t)
	tree := testutil.SeedCourseTree(t, db)

	tests := []cliTest{
		{name: "no command", wantErr: errHelp},
		{name: "unknown command", args: []string{"lol"}, wantErr: errHelp},
		{name: "no kind", args: []string{"trash"}, wantErr: errHelp},
		{name: "unknown kind", args: []string{"trash", "-kind", "lol"}, wantErr: entity.ErrUnknownKind},
	}
	runCliTests(t, cli, tests)

	t.Run("empty trash", func(t *testing.T) {
		out.Reset()
		if err := cli.run([]string{"admin", "trash", "-kind", "course"}); err != nil {
			t.Fatalf("cli.run() failed: %v", err)
		}
		if got := out.String(); got != "no deleted course records\n" {
			t.Errorf("cli.run() output = %q", got)
		}
	})

	t.Run("lists deleted records", func(t *testing.T) {
		if err := cli.run([]string{"admin", "delete", "-kind", "course", "-id", tree.Course.ID, "-actor", "adm"}); err != nil {
			t.Fatalf("cli.run() failed: %v", err)
		}

		out.Reset()
		if err := cli.run([]string{"admin", "trash", "-kind", "course"}); err != nil {
			t.Fatalf("cli.run() failed: %v", err)
		}
		got := out.String()
		if !strings.Contains(got, tree.Course.ID) || !strings.Contains(got, "deleted by adm") {
			t.Errorf("cli.run() output = %q", got)
		}
	})
}

func Test_commandLine_delete(t *testing.T) {
	cli, db, out := setup(t)
	tree := testutil.SeedCourseTree(t, db)

	t.Run("missing flags", func(t *testing.T) {
		if err := cli.run([]string{"admin", "delete", "-kind", "course"}); err == nil {
			t.Error("cli.run() error = nil, want validation error")
		}
	})

	t.Run("not found", func(t *testing.T) {
		err := cli.run([]string{"admin", "delete", "-kind", "course", "-id", "nope", "-actor", "adm"})
		if errors.Cause(err) != recycle.ErrNotFound {
			t.Errorf("cli.run() error = %v, wantErr %v", err, recycle.ErrNotFound)
		}
	})

	t.Run("deletes the whole subtree", func(t *testing.T) {
		out.Reset()
		if err := cli.run([]string{"admin", "delete", "-kind", "course", "-id", tree.Course.ID, "-actor", "adm"}); err != nil {
			t.Fatalf("cli.run() failed: %v", err)
		}
		got := out.String()
		if !strings.Contains(got, "deleted 8 record(s) under event ") {
			t.Errorf("cli.run() output = %q", got)
		}
		for _, ref := range tree.All() {
			if !strings.Contains(got, ref.String()) {
				t.Errorf("cli.run() output misses %s", ref)
			}
		}
	})

	t.Run("already deleted", func(t *testing.T) {
		err := cli.run([]string{"admin", "delete", "-kind", "course", "-id", tree.Course.ID, "-actor", "adm"})
		if errors.Cause(err) != recycle.ErrAlreadyDeleted {
			t.Errorf("cli.run() error = %v, wantErr %v", err, recycle.ErrAlreadyDeleted)
		}
	})
}

func Test_commandLine_restore(t *testing.T) {
	cli, db, out := setup(t)
	tree := testutil.SeedCourseTree(t, db)

	t.Run("not deleted", func(t *testing.T) {
		err := cli.run([]string{"admin", "restore", "-kind", "course", "-id", tree.Course.ID, "-actor", "adm"})
		if errors.Cause(err) != recycle.ErrNotDeleted {
			t.Errorf("cli.run() error = %v, wantErr %v", err, recycle.ErrNotDeleted)
		}
	})

	t.Run("cascading restore", func(t *testing.T) {
		if err := cli.run([]string{"admin", "delete", "-kind", "course", "-id", tree.Course.ID, "-actor", "adm"}); err != nil {
			t.Fatalf("cli.run() failed: %v", err)
		}

		out.Reset()
		if err := cli.run([]string{"admin", "restore", "-kind", "course", "-id", tree.Course.ID, "-actor", "adm", "-cascade"}); err != nil {
			t.Fatalf("cli.run() failed: %v", err)
		}
		got := out.String()
		if !strings.Contains(got, "restored 8 record(s)") {
			t.Errorf("cli.run() output = %q", got)
		}
	})

	t.Run("non-cascading restore", func(t *testing.T) {
		if err := cli.run([]string{"admin", "delete", "-kind", "module", "-id", tree.Module.ID, "-actor", "adm"}); err != nil {
			t.Fatalf("cli.run() failed: %v", err)
		}

		out.Reset()
		if err := cli.run([]string{"admin", "restore", "-kind", "module", "-id", tree.Module.ID, "-actor", "adm"}); err != nil {
			t.Fatalf("cli.run() failed: %v", err)
		}
		if got := out.String(); !strings.Contains(got, "restored 1 record(s)") {
			t.Errorf("cli.run() output = %q", got)
		}
	})
}

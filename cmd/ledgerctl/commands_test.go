package main

import (
	"context"
	"flag"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/subcommands"
)

func run(t *testing.T, c subcommands.Command, args ...string) subcommands.ExitStatus {
	t.Helper()
	fs := flag.NewFlagSet(c.Name(), flag.ContinueOnError)
	c.SetFlags(fs)
	if err := fs.Parse(args); err != nil {
		t.Fatalf("parse %v: %v", args, err)
	}
	return c.Execute(context.Background(), fs)
}

func memoryStore(t *testing.T) {
	t.Setenv("STORE", "memory")
	t.Setenv("DATABASE_URL", "")
	t.Setenv("LOG_LEVEL", "disabled")
}

func TestCommandNamesAreUnique(t *testing.T) {
	seen := map[string]bool{}
	for _, c := range commands {
		if seen[c.Name()] {
			t.Fatalf("duplicate command %q", c.Name())
		}
		seen[c.Name()] = true
	}
}

func TestImportCommand(t *testing.T) {
	memoryStore(t)
	file := filepath.Join(t.TempDir(), "gifts.csv")
	if err := os.WriteFile(file, []byte("NAME,AMOUNT\nGrace,100\nJohn,200\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if got := run(t, &importCmd{}, "-event", "christmas", "-year", "2024", file); got != subcommands.ExitSuccess {
		t.Fatalf("import = %v, want success", got)
	}
	if got := run(t, &importCmd{}, "-event", "christmas", "-year", "2024"); got != subcommands.ExitUsageError {
		t.Fatalf("import without file = %v, want usage error", got)
	}
	if got := run(t, &importCmd{}, "-event", "", "-year", "2024", file); got != subcommands.ExitUsageError {
		t.Fatalf("import without event = %v, want usage error", got)
	}
}

func TestExportEmptyEventFails(t *testing.T) {
	memoryStore(t)
	if got := run(t, &exportCmd{}, "-event", "christmas", "-year", "2024", "-dir", t.TempDir()); got != subcommands.ExitFailure {
		t.Fatalf("export = %v, want failure", got)
	}
	if got := run(t, &exportCmd{}, "-event", "christmas", "-year", "2024", "-format", "pdf"); got != subcommands.ExitUsageError {
		t.Fatalf("export pdf = %v, want usage error", got)
	}
}

func TestGrantRequiresEmail(t *testing.T) {
	memoryStore(t)
	if got := run(t, &grantCmd{}, "-role", "editor"); got != subcommands.ExitUsageError {
		t.Fatalf("grant = %v, want usage error", got)
	}
	if got := run(t, &grantCmd{}, "-email", "clerk@church.org", "-role", "editor"); got != subcommands.ExitSuccess {
		t.Fatalf("grant = %v, want success", got)
	}
}

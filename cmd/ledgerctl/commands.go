package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"text/tabwriter"

	"github.com/google/subcommands"

	"github.com/24981a0558-joel/manna-contribution/internal/domain"
	"github.com/24981a0558-joel/manna-contribution/internal/ledger"
	"github.com/24981a0558-joel/manna-contribution/internal/sheet"
)

var commands = []subcommands.Command{
	&migrateCmd{},
	&grantCmd{},
	&revokeCmd{},
	&usersCmd{},
	&importCmd{},
	&exportCmd{},
	&counterCmd{},
}

type migrateCmd struct{}

func (*migrateCmd) Name() string     { return "migrate" }
func (*migrateCmd) Synopsis() string { return "apply the database schema" }
func (*migrateCmd) Usage() string {
	return `ledgerctl migrate

  Creates or updates the PostgreSQL tables and the change trigger. Safe to
  run repeatedly.
`
}
func (*migrateCmd) SetFlags(*flag.FlagSet) {}

func (*migrateCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	e, err := openEnv(ctx, true)
	if err != nil {
		fail(err)
		return subcommands.ExitFailure
	}
	defer e.close()
	fmt.Printf("schema up to date (%s)\n", e.cfg.Store)
	return subcommands.ExitSuccess
}

type grantCmd struct {
	email string
	name  string
	role  string
}

func (*grantCmd) Name() string     { return "grant" }
func (*grantCmd) Synopsis() string { return "give a user a role" }
func (*grantCmd) Usage() string {
	return `ledgerctl grant -email <email> -role <admin|editor|viewer> [-name <name>]
`
}

func (c *grantCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.email, "email", "", "email of the user")
	f.StringVar(&c.name, "name", "", "display name")
	f.StringVar(&c.role, "role", "viewer", "role to grant")
}

func (c *grantCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if c.email == "" {
		fmt.Fprintln(os.Stderr, "-email is required")
		return subcommands.ExitUsageError
	}
	e, err := openEnv(ctx, false)
	if err != nil {
		fail(err)
		return subcommands.ExitFailure
	}
	defer e.close()
	u, err := e.directory().Upsert(ctx, e.actor(), c.email, c.name, c.role)
	if err != nil {
		fail(err)
		return subcommands.ExitFailure
	}
	fmt.Printf("%s is now %s\n", u.Email, u.Role.Label())
	return subcommands.ExitSuccess
}

type revokeCmd struct {
	email string
}

func (*revokeCmd) Name() string     { return "revoke" }
func (*revokeCmd) Synopsis() string { return "remove a user from the access list" }
func (*revokeCmd) Usage() string {
	return `ledgerctl revoke -email <email>

  The user falls back to the default role on the next request.
`
}

func (c *revokeCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.email, "email", "", "email of the user")
}

func (c *revokeCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if c.email == "" {
		fmt.Fprintln(os.Stderr, "-email is required")
		return subcommands.ExitUsageError
	}
	e, err := openEnv(ctx, false)
	if err != nil {
		fail(err)
		return subcommands.ExitFailure
	}
	defer e.close()
	if err := e.directory().Delete(ctx, e.actor(), c.email); err != nil {
		fail(err)
		return subcommands.ExitFailure
	}
	fmt.Printf("%s removed\n", c.email)
	return subcommands.ExitSuccess
}

type usersCmd struct{}

func (*usersCmd) Name() string           { return "users" }
func (*usersCmd) Synopsis() string       { return "list the access list" }
func (*usersCmd) Usage() string          { return "ledgerctl users\n" }
func (*usersCmd) SetFlags(*flag.FlagSet) {}

func (*usersCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	e, err := openEnv(ctx, false)
	if err != nil {
		fail(err)
		return subcommands.ExitFailure
	}
	defer e.close()
	users, err := e.directory().List(ctx, e.actor())
	if err != nil {
		fail(err)
		return subcommands.ExitFailure
	}
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "EMAIL\tNAME\tROLE\tUPDATED BY")
	for _, u := range users {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", u.Email, u.Name, u.Role.Label(), u.UpdatedBy)
	}
	_ = w.Flush()
	return subcommands.ExitSuccess
}

// partitionFlags selects one event of one year.
type partitionFlags struct {
	event string
	year  int
}

func (p *partitionFlags) register(f *flag.FlagSet) {
	f.StringVar(&p.event, "event", "", "event id, e.g. christmas")
	f.IntVar(&p.year, "year", 0, "year of the event")
}

func (p *partitionFlags) partition() (domain.Partition, error) {
	return domain.NewPartition(p.event, p.year)
}

// withBook opens the selected partition, runs fn and waits for audit
// writes before returning.
func (p *partitionFlags) withBook(ctx context.Context, fn func(e *env, b *ledger.Book) error) subcommands.ExitStatus {
	part, err := p.partition()
	if err != nil {
		fail(err)
		return subcommands.ExitUsageError
	}
	e, err := openEnv(ctx, false)
	if err != nil {
		fail(err)
		return subcommands.ExitFailure
	}
	defer e.close()
	svc := e.service()
	defer svc.Close()
	b, release, err := svc.Open(ctx, part)
	if err != nil {
		fail(err)
		return subcommands.ExitFailure
	}
	defer release()
	if err := fn(e, b); err != nil {
		fail(err)
		return subcommands.ExitFailure
	}
	return subcommands.ExitSuccess
}

type importCmd struct {
	partitionFlags
}

func (*importCmd) Name() string     { return "import" }
func (*importCmd) Synopsis() string { return "bulk upload a spreadsheet into an event" }
func (*importCmd) Usage() string {
	return `ledgerctl import -event <id> -year <yyyy> <file.xlsx|file.csv>

  Rows without a positive SNO are numbered after the current counter.
`
}

func (c *importCmd) SetFlags(f *flag.FlagSet) { c.register(f) }

func (c *importCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if f.NArg() != 1 {
		fmt.Fprint(os.Stderr, c.Usage())
		return subcommands.ExitUsageError
	}
	file := f.Arg(0)
	data, err := os.ReadFile(file)
	if err != nil {
		fail(err)
		return subcommands.ExitFailure
	}
	return c.withBook(ctx, func(e *env, b *ledger.Book) error {
		res, err := b.ImportFile(ctx, e.actor(), filepath.Base(file), data)
		fmt.Printf("imported %d of %d rows in %d batches, counter %d\n", res.Committed(), res.Rows, res.Batches, res.Counter)
		return err
	})
}

type exportCmd struct {
	partitionFlags
	format string
	dir    string
}

func (*exportCmd) Name() string     { return "export" }
func (*exportCmd) Synopsis() string { return "download an event as a spreadsheet" }
func (*exportCmd) Usage() string {
	return `ledgerctl export -event <id> -year <yyyy> [-format xlsx|csv] [-dir <directory>]
`
}

func (c *exportCmd) SetFlags(f *flag.FlagSet) {
	c.register(f)
	f.StringVar(&c.format, "format", "xlsx", "xlsx or csv")
	f.StringVar(&c.dir, "dir", ".", "directory to write the file to")
}

func (c *exportCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	format, err := sheet.ParseFormat(c.format)
	if err != nil {
		fail(err)
		return subcommands.ExitUsageError
	}
	return c.withBook(ctx, func(_ *env, b *ledger.Book) error {
		name, data, err := b.Export(format)
		if err != nil {
			return err
		}
		out := filepath.Join(c.dir, name)
		if err := os.WriteFile(out, data, 0o644); err != nil {
			return err
		}
		fmt.Println(out)
		return nil
	})
}

type counterCmd struct {
	partitionFlags
}

func (*counterCmd) Name() string     { return "counter" }
func (*counterCmd) Synopsis() string { return "print the last SNO of an event" }
func (*counterCmd) Usage() string {
	return "ledgerctl counter -event <id> -year <yyyy>\n"
}

func (c *counterCmd) SetFlags(f *flag.FlagSet) { c.register(f) }

func (c *counterCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	return c.withBook(ctx, func(_ *env, b *ledger.Book) error {
		fmt.Println(b.Peek())
		return nil
	})
}

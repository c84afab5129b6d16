package migrate

import (
	"context"
	"flag"
	"log"

	"github.com/google/subcommands"
	"github.com/nrtkbb/disktree/cmd/setup"
	"github.com/nrtkbb/disktree/db"
)

type Command struct {
	configPath string
}

func (*Command) Name() string     { return "migrate" }
func (*Command) Synopsis() string { return "Upgrade cached scans to the current schema" }
func (*Command) Usage() string {
	return `migrate [-config <file>]:
  Run database migrations on every cache record in the cache directory.
`
}

func (c *Command) SetFlags(f *flag.FlagSet) {
	setup.ConfigFlag(f, &c.configPath)
}

func (c *Command) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	env, err := setup.Open(c.configPath)
	if err != nil {
		log.Printf("Failed to setup: %v", err)
		return subcommands.ExitFailure
	}
	defer env.Close()

	log.Printf("Running database migrations in %s...", env.Store.Dir())
	n, err := env.Store.Migrate(ctx)
	if err != nil {
		log.Printf("Failed to run migrations: %v", err)
		return subcommands.ExitFailure
	}
	log.Printf("Upgraded %d cache records to schema version %d", n, db.SchemaVersion)

	return subcommands.ExitSuccess
}

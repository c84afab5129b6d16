package roots

import (
	"context"
	"flag"
	"fmt"
	"log"

	"github.com/dustin/go-humanize"
	"github.com/google/subcommands"
	"github.com/nrtkbb/disktree/cmd/setup"
)

type Command struct {
	configPath string
}

func (*Command) Name() string     { return "roots" }
func (*Command) Synopsis() string { return "List cached scan roots" }
func (*Command) Usage() string {
	return `roots [-config <file>]:
  List every root with a cached scan, most recently captured first.
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

	records, err := env.Store.ListRecords(ctx)
	if err != nil {
		log.Printf("Failed to list cache records: %v", err)
		return subcommands.ExitFailure
	}

	for _, r := range records {
		fmt.Printf("%-10s %10s files  %-16s %s\n",
			humanize.IBytes(uint64(r.TotalSize)),
			humanize.Comma(int64(r.FileCount)),
			humanize.Time(r.CapturedAt),
			r.Root,
		)
	}

	return subcommands.ExitSuccess
}

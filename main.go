package main

import (
	"context"
	"flag"
	"os"

	"github.com/google/subcommands"
	"github.com/nrtkbb/disktree/cmd/find"
	"github.com/nrtkbb/disktree/cmd/migrate"
	"github.com/nrtkbb/disktree/cmd/roots"
	"github.com/nrtkbb/disktree/cmd/scan"
	"github.com/nrtkbb/disktree/cmd/serve"
	"github.com/nrtkbb/disktree/cmd/show"
	"github.com/nrtkbb/disktree/cmd/testdata"
	"github.com/nrtkbb/disktree/cmd/version"
)

func main() {
	// Register subcommands
	subcommands.Register(subcommands.HelpCommand(), "")
	subcommands.Register(subcommands.FlagsCommand(), "")
	subcommands.Register(subcommands.CommandsCommand(), "")
	subcommands.Register(&scan.Command{}, "")
	subcommands.Register(&roots.Command{}, "")
	subcommands.Register(&show.Command{}, "")
	subcommands.Register(&find.Command{}, "")
	subcommands.Register(&serve.Command{}, "")
	subcommands.Register(&migrate.Command{}, "")
	subcommands.Register(&version.Command{}, "")
	subcommands.Register(&testdata.Command{}, "")

	// Set the default subcommand to help if no subcommand is specified
	flag.Parse()
	if flag.NArg() == 0 {
		flag.Usage()
		os.Exit(1)
	}

	// Execute the specified subcommand
	ctx := context.Background()
	os.Exit(int(subcommands.Execute(ctx)))
}

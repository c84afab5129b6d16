package find

import (
	"context"
	"flag"
	"fmt"
	"log"

	"github.com/dustin/go-humanize"
	"github.com/google/subcommands"
	"github.com/nrtkbb/disktree/cmd/setup"
	"github.com/nrtkbb/disktree/models"
	"github.com/nrtkbb/disktree/search"
)

type Command struct {
	configPath string
	rootDir    string
	query      string
	extensions string
	limit      int
}

func (*Command) Name() string     { return "find" }
func (*Command) Synopsis() string { return "Fuzzy-find files in a cached scan" }
func (*Command) Usage() string {
	return `find -root <directory> [-q <fragment>] [-ext <list>] [-limit <n>] [-config <file>]:
  Search file names of a cached scan, best match first. -ext takes a list such as "log,txt".
`
}

func (c *Command) SetFlags(f *flag.FlagSet) {
	setup.ConfigFlag(f, &c.configPath)
	f.StringVar(&c.rootDir, "root", "", "scanned directory (required)")
	f.StringVar(&c.query, "q", "", "file name fragment")
	f.StringVar(&c.extensions, "ext", "", "extensions to keep, e.g. log,txt")
	f.IntVar(&c.limit, "limit", 50, "maximum number of results (0 for all)")
}

func (c *Command) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if c.rootDir == "" || c.limit < 0 {
		f.Usage()
		return subcommands.ExitUsageError
	}

	env, err := setup.Open(c.configPath)
	if err != nil {
		log.Printf("Failed to setup: %v", err)
		return subcommands.ExitFailure
	}
	defer env.Close()

	files, err := env.Engine.Search(ctx, models.SearchQuery{
		Root:         c.rootDir,
		NameFragment: c.query,
		Extensions:   search.ParseExtensions(c.extensions),
		Limit:        c.limit,
	})
	if err != nil {
		log.Printf("Search failed: %v", err)
		return subcommands.ExitFailure
	}

	for _, file := range files {
		fmt.Printf("%10s  %s\n", humanize.IBytes(uint64(file.Size)), file.Path)
	}

	return subcommands.ExitSuccess
}

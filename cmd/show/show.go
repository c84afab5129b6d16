package show

import (
	"context"
	"flag"
	"fmt"
	"log"

	"github.com/dustin/go-humanize"
	"github.com/google/subcommands"
	"github.com/nrtkbb/disktree/app"
	"github.com/nrtkbb/disktree/cmd/setup"
)

type Command struct {
	configPath string
	rootDir    string
	top        int
}

func (*Command) Name() string     { return "show" }
func (*Command) Synopsis() string { return "Show the disk usage summary of a cached scan" }
func (*Command) Usage() string {
	return `show -root <directory> [-top <n>] [-config <file>]:
  Print totals, the largest folders and the largest files of a cached scan.
`
}

func (c *Command) SetFlags(f *flag.FlagSet) {
	setup.ConfigFlag(f, &c.configPath)
	f.StringVar(&c.rootDir, "root", "", "scanned directory (required)")
	f.IntVar(&c.top, "top", app.DefaultTop, "number of folders and files to list")
}

func (c *Command) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if c.rootDir == "" {
		f.Usage()
		return subcommands.ExitUsageError
	}

	env, err := setup.Open(c.configPath)
	if err != nil {
		log.Printf("Failed to setup: %v", err)
		return subcommands.ExitFailure
	}
	defer env.Close()

	s, err := env.Engine.Summary(ctx, c.rootDir, c.top)
	if err != nil {
		log.Printf("Failed to summarize %s: %v", c.rootDir, err)
		return subcommands.ExitFailure
	}

	fmt.Printf("%s\n", s.Root)
	if s.CapturedAt != nil {
		fmt.Printf("  captured %s\n", humanize.Time(*s.CapturedAt))
	}
	fmt.Printf("  %s in %s files, %s folders\n", s.HumanTotal, humanize.Comma(int64(s.FileCount)), humanize.Comma(int64(s.FolderCount)))
	if s.UniqueSize != s.TotalSize {
		fmt.Printf("  %s unique in %s files (hardlinks counted once)\n", s.HumanUnique, humanize.Comma(int64(s.UniqueFiles)))
	}

	fmt.Println("\nLargest folders:")
	for _, d := range s.TopFolders {
		fmt.Printf("  %10s  %s\n", humanize.IBytes(uint64(d.Size)), d.Path)
	}

	fmt.Println("\nLargest files:")
	for _, file := range s.LargestFiles {
		fmt.Printf("  %10s  %s\n", humanize.IBytes(uint64(file.Size)), file.Path)
	}

	return subcommands.ExitSuccess
}

package scan

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/dustin/go-humanize"
	"github.com/google/subcommands"
	"github.com/nrtkbb/disktree/cmd/setup"
	"github.com/nrtkbb/disktree/models"
)

type Command struct {
	configPath string
	rootDir    string
	quiet      bool
}

func (*Command) Name() string     { return "scan" }
func (*Command) Synopsis() string { return "Scan a directory tree and cache its disk usage" }
func (*Command) Usage() string {
	return `scan -root <directory> [-quiet] [-config <file>]:
  Walk a directory tree, aggregate file and folder sizes, and store the result in the cache.
`
}

func (c *Command) SetFlags(f *flag.FlagSet) {
	setup.ConfigFlag(f, &c.configPath)
	f.StringVar(&c.rootDir, "root", "", "directory to scan (required)")
	f.BoolVar(&c.quiet, "quiet", false, "do not print progress")
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

	ctx, cancel := setup.SignalContext(ctx)
	defer cancel()

	scan, err := env.Engine.StartScan(ctx, c.rootDir)
	if err != nil {
		log.Printf("Failed to start scan: %v", err)
		return subcommands.ExitFailure
	}

	for p := range scan.Progress() {
		if !c.quiet {
			fmt.Fprintf(os.Stderr, "\r%s files, %s", humanize.Comma(p.FilesCount), p.Status)
		}
	}
	if !c.quiet {
		fmt.Fprintln(os.Stderr)
	}

	result, err := scan.Wait()
	if errors.Is(err, models.ErrCancelled) {
		log.Printf("Scan of %s cancelled after %d files; the cache was not changed", scan.Root(), scan.FilesCount())
		return subcommands.ExitFailure
	}
	if err != nil {
		log.Printf("Scan failed: %v", err)
		return subcommands.ExitFailure
	}

	report := scan.Report()
	fmt.Printf("Root:     %s\n", result.Root)
	fmt.Printf("Files:    %s\n", humanize.Comma(int64(len(result.Files))))
	fmt.Printf("Folders:  %s\n", humanize.Comma(int64(len(result.FolderSizes))))
	fmt.Printf("Total:    %s\n", humanize.IBytes(uint64(result.TotalSize())))
	fmt.Printf("Skipped:  %d\n", report.SkippedCount)
	fmt.Printf("Symlinks: %d\n", report.Symlinks)
	fmt.Printf("Elapsed:  %v\n", report.Duration)

	for _, s := range report.Skipped {
		log.Printf("Skipped %s (%s)", s.Path, s.Reason)
	}

	return subcommands.ExitSuccess
}

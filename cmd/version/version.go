package version

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"runtime"

	"github.com/google/subcommands"
	"github.com/nrtkbb/disktree/db"
)

// These variables are set by goreleaser
var (
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"
)

type Command struct{}

func (*Command) Name() string { return "version" }
func (*Command) Synopsis() string {
	return "Print the disktree build and the cache format it reads and writes"
}
func (*Command) Usage() string {
	return `version:
  Print the disktree release, its build commit and date, the Go toolchain
  and platform it was built for, and the cache schema version. Cache files
  written at an older schema are upgraded on load; newer ones are ignored.
`
}

func (c *Command) SetFlags(f *flag.FlagSet) {}

func (c *Command) Execute(_ context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	writeVersion(os.Stdout)
	return subcommands.ExitSuccess
}

func writeVersion(w io.Writer) {
	fmt.Fprintf(w, "disktree %s (commit %s, built %s)\n", Version, Commit, Date)
	fmt.Fprintf(w, "go: %s %s/%s\n", runtime.Version(), runtime.GOOS, runtime.GOARCH)
	fmt.Fprintf(w, "cache schema: v%d\n", db.SchemaVersion)
}

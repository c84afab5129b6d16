package testdata

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/google/subcommands"
)

type Command struct {
	outputDir string
}

func (*Command) Name() string     { return "testdata" }
func (*Command) Synopsis() string { return "Generate test data for scanning" }
func (*Command) Usage() string {
	return `testdata -out <directory>:
  Generate a directory tree with nested folders, an empty folder, hardlinks and a symlink.
`
}

func (c *Command) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.outputDir, "out", "", "output directory path (required)")
}

func (c *Command) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if c.outputDir == "" {
		f.Usage()
		return subcommands.ExitUsageError
	}

	stats, err := Generate(c.outputDir)
	if err != nil {
		log.Printf("Failed to generate test data: %v", err)
		return subcommands.ExitFailure
	}

	log.Printf("Generated %d directories, %d files (%s), %d hardlinks and %d symlinks in %s",
		stats.Dirs, stats.Files, humanize.IBytes(uint64(stats.Bytes)), stats.Hardlinks, stats.Symlinks, c.outputDir)
	return subcommands.ExitSuccess
}

// Stats counts what Generate created. Bytes is the apparent size a scan
// reports, hardlinks included.
type Stats struct {
	Dirs      int
	Files     int
	Hardlinks int
	Symlinks  int
	Bytes     int64
}

var dirs = []string{
	"docs",
	"images",
	"videos",
	"music",
	"docs/reports",
	"docs/presentations",
	"images/thumbnails",
	"images/originals",
	"videos/raw",
	"videos/edited",
	"empty",
}

// Generate writes the sample tree under outputDir. Hardlinks and the
// symlink are skipped, with a log line, where the filesystem refuses them.
func Generate(outputDir string) (Stats, error) {
	var stats Stats

	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return stats, fmt.Errorf("failed to create output directory: %w", err)
	}

	for _, dir := range dirs {
		path := filepath.Join(outputDir, filepath.FromSlash(dir))
		if err := os.MkdirAll(path, 0755); err != nil {
			return stats, fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
		stats.Dirs++
	}

	// Some files share content so a content grouper has work to do
	contents := []struct {
		content string
		count   int
		ext     string
	}{
		{"This is a test document\n", 5, ".txt"},
		{"Hello, World!\n", 3, ".txt"},
		{"const main = () => console.log('test');\n", 4, ".js"},
		{"# Test Markdown\n\nThis is a test.\n", 3, ".md"},
		{"<!DOCTYPE html><html><body>Test</body></html>\n", 3, ".html"},
		{"package main\n\nfunc main() {}\n", 4, ".go"},
		{"CREATE TABLE test (id INT);\n", 3, ".sql"},
		{"Test data for duplicate files\n", 5, ".txt"},
		{strings.Repeat("Large content repeated ", 1000), 2, ".log"},
	}

	// "empty" is never written to
	filled := dirs[:len(dirs)-1]

	var written []string
	fileCount := 1
	for _, c := range contents {
		for i := 0; i < c.count; i++ {
			dir := filled[fileCount%len(filled)]
			filename := fmt.Sprintf("file%d%s", fileCount, c.ext)
			path := filepath.Join(outputDir, filepath.FromSlash(dir), filename)

			if err := os.WriteFile(path, []byte(c.content), 0644); err != nil {
				return stats, fmt.Errorf("failed to create file %s: %w", filename, err)
			}
			written = append(written, path)
			stats.Files++
			stats.Bytes += int64(len(c.content))
			fileCount++
		}
	}

	// Hardlink the two large logs into another folder
	for _, src := range written {
		if filepath.Ext(src) != ".log" {
			continue
		}
		dst := filepath.Join(outputDir, "music", "link-"+filepath.Base(src))
		if err := os.Link(src, dst); err != nil {
			log.Printf("Skipping hardlink %s: %v", dst, err)
			continue
		}
		info, err := os.Stat(dst)
		if err != nil {
			return stats, fmt.Errorf("failed to stat hardlink %s: %w", dst, err)
		}
		stats.Files++
		stats.Hardlinks++
		stats.Bytes += info.Size()
	}

	link := filepath.Join(outputDir, "latest")
	if err := os.Symlink(filepath.Join("videos", "raw"), link); err != nil {
		log.Printf("Skipping symlink %s: %v", link, err)
	} else {
		stats.Symlinks++
	}

	return stats, nil
}

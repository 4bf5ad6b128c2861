package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"coldstore/lib"
	"coldstore/pkg/progress"

	"github.com/goccy/go-json"
)

func main() {
	if len(os.Args) < 3 {
		printUsage()
		os.Exit(1)
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	var err error
	switch operation := os.Args[1]; operation {
	case "archive":
		err = handleArchive(logger, os.Args[2:])
	case "restore":
		err = handleRestore(logger, os.Args[2:])
	case "inspect":
		err = handleInspect(os.Args[2:])
	case "verify":
		err = handleVerify(os.Args[2:])
	default:
		fmt.Println("Invalid operation:", operation)
		printUsage()
		os.Exit(1)
	}
	if err != nil {
		fmt.Println("Error:", err)
		os.Exit(1)
	}
}

// printUsage prints the command-line usage information
func printUsage() {
	fmt.Println("Usage:")
	fmt.Println("  coldstore archive dir [archive.huff] [--keep]")
	fmt.Println("  coldstore restore archive.huff dir")
	fmt.Println("  coldstore inspect archive.huff [--json]")
	fmt.Println("  coldstore verify archive.huff dir")
}

// splitFlag removes flag from args and reports whether it was present
func splitFlag(args []string, flag string) ([]string, bool) {
	out := args[:0:0]
	found := false
	for _, a := range args {
		if a == flag {
			found = true
			continue
		}
		out = append(out, a)
	}
	return out, found
}

// handleArchive archives a directory and removes its live content
func handleArchive(logger *slog.Logger, args []string) error {
	args, keep := splitFlag(args, "--keep")
	if len(args) != 1 && len(args) != 2 {
		return errors.New("usage: coldstore archive dir [archive.huff] [--keep]")
	}

	root := args[0]
	output := determineOutputPath(root, args)

	tracker := progress.New(os.Stdout)
	sum, err := lib.Archive(root, output,
		lib.WithLogger(logger),
		lib.WithProgress(tracker),
		lib.WithKeepSource(keep))
	if err != nil {
		return err
	}
	if !sum.Written {
		fmt.Println("Nothing to archive in", root)
		return nil
	}
	fmt.Printf("Archived %d files into %s (%d -> %d bytes)\n", sum.Entries, output, sum.FlatSize, sum.ArchiveSize)
	if sum.CleanupErr != nil {
		fmt.Println("Some files could not be removed:")
		fmt.Println(sum.CleanupErr)
	}
	return nil
}

// determineOutputPath picks the archive path: explicit argument, or a sibling
// of the archived directory named after it
func determineOutputPath(root string, args []string) string {
	if len(args) == 2 {
		return args[1]
	}
	clean := filepath.Clean(root)
	return filepath.Join(filepath.Dir(clean), filepath.Base(clean)+lib.Extension)
}

// handleRestore replays an archive into a directory
func handleRestore(logger *slog.Logger, args []string) error {
	if len(args) != 2 {
		return errors.New("usage: coldstore restore archive.huff dir")
	}

	tracker := progress.New(os.Stdout)
	sum, err := lib.Restore(args[0], args[1],
		lib.WithLogger(logger),
		lib.WithProgress(tracker))
	if err != nil {
		return err
	}
	if !sum.Restored {
		fmt.Println("No archive at", args[0])
		return nil
	}
	fmt.Printf("Restored %d files into %s\n", sum.Entries, args[1])
	if sum.CleanupErr != nil {
		fmt.Println("Some stale files could not be removed:")
		fmt.Println(sum.CleanupErr)
	}
	return nil
}

// handleInspect prints archive statistics and the file manifest
func handleInspect(args []string) error {
	args, asJSON := splitFlag(args, "--json")
	if len(args) != 1 {
		return errors.New("usage: coldstore inspect archive.huff [--json]")
	}

	stats, manifest, err := lib.Inspect(args[0])
	if err != nil {
		return err
	}

	if asJSON {
		out, err := json.MarshalIndent(struct {
			Stats *lib.Stats   `json:"stats"`
			Files lib.Manifest `json:"files"`
		}{stats, manifest}, "", "  ")
		if err != nil {
			return fmt.Errorf("encode json: %w", err)
		}
		fmt.Println(string(out))
		return nil
	}

	fmt.Printf("Entries:      %d\n", stats.Entries)
	fmt.Printf("Flat size:    %d bytes\n", stats.FlatSize)
	fmt.Printf("Archive size: %d bytes (%.1f%%)\n", stats.ArchiveSize, stats.Ratio*100)
	fmt.Printf("LZ4 size:     %d bytes\n", stats.LZ4Size)
	fmt.Printf("Code table:   %d symbols, longest code %d bits\n", stats.TableSize, stats.MaxCodeLen)
	for _, e := range manifest {
		fmt.Printf("  %016x %10d  %s\n", e.Digest, e.Size, e.Path)
	}
	return nil
}

// handleVerify compares an archive with a live directory
func handleVerify(args []string) error {
	if len(args) != 2 {
		return errors.New("usage: coldstore verify archive.huff dir")
	}

	diff, err := lib.Verify(args[0], args[1])
	if err != nil {
		return err
	}
	if diff.Empty() {
		fmt.Println("Archive matches", args[1])
		return nil
	}
	for _, p := range diff.Missing {
		fmt.Println("missing:", p)
	}
	for _, p := range diff.Extra {
		fmt.Println("extra:  ", p)
	}
	for _, p := range diff.Changed {
		fmt.Println("changed:", p)
	}
	return fmt.Errorf("archive %s differs from %s", args[0], args[1])
}

package core

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	"coldstore/pkg/progress"
)

// Collect reads every regular file under root into memory. Relative paths are
// slash-separated and computed against root, and the result is sorted by path.
// Symbolic links and special files are skipped, as is any path listed in skip
// (typically an archive file that lives inside root).
func Collect(root string, skip ...string) ([]ArchiveEntry, error) {
	return collect(root, nil, skip)
}

func collect(root string, tracker *progress.Tracker, skip []string) ([]ArchiveEntry, error) {
	root = resolvePath(root)
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("%w: stat root: %w", ErrPath, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%w: root %s is not a directory", ErrPath, root)
	}

	skipped := make(map[string]bool, len(skip))
	for _, p := range skip {
		skipped[resolvePath(p)] = true
	}

	var entries []ArchiveEntry
	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return fmt.Errorf("%w: walk %s: %w", ErrPath, path, err)
		}
		if !d.Type().IsRegular() {
			return nil
		}
		if abs, err := filepath.Abs(path); err == nil && skipped[abs] {
			return nil
		}

		relPath, err := filepath.Rel(root, path)
		if err != nil {
			return fmt.Errorf("%w: relative path for %s: %w", ErrPath, path, err)
		}
		relPath = filepath.ToSlash(relPath)
		// Refuse now what Restore would refuse later.
		if _, err := safeJoin(root, relPath); err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
		content, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("%w: read %s: %w", ErrIO, path, err)
		}
		tracker.AddBytes(uint64(len(content)))

		entries = append(entries, ArchiveEntry{RelPath: relPath, Content: content})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("collect %s: %w", root, err)
	}

	sort.Slice(entries, func(i, j int) bool {
		return entries[i].RelPath < entries[j].RelPath
	})
	return entries, nil
}

// resolvePath returns p as an absolute path with symbolic links evaluated.
// A path that does not exist yet, such as an archive about to be written,
// is resolved through its parent directory.
func resolvePath(p string) string {
	if resolved, err := filepath.EvalSymlinks(p); err == nil {
		p = resolved
	} else if parent, err := filepath.EvalSymlinks(filepath.Dir(p)); err == nil {
		p = filepath.Join(parent, filepath.Base(p))
	}
	if abs, err := filepath.Abs(p); err == nil {
		return abs
	}
	return filepath.Clean(p)
}

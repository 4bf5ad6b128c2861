package core

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ClearDir removes everything inside dir except the paths in keep, leaving
// dir itself in place. Directories that contain a kept path are descended
// into rather than removed. Each failed removal is logged and collected; the
// sweep always continues, and the failures are returned joined.
func ClearDir(dir string, keep []string, opts ...Option) error {
	return clearDir(dir, keep, newConfig(opts))
}

func clearDir(dir string, keep []string, cfg *Config) error {
	kept := make([]string, 0, len(keep))
	for _, k := range keep {
		kept = append(kept, resolvePath(k))
	}
	return sweep(resolvePath(dir), kept, cfg)
}

func sweep(dir string, kept []string, cfg *Config) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		cfg.Logger.Error("cannot list directory for cleanup", "dir", dir, "err", err)
		return fmt.Errorf("%w: list %s: %w", ErrPath, dir, err)
	}

	var errs []error
	for _, e := range entries {
		full := filepath.Join(dir, e.Name())
		abs, err := filepath.Abs(full)
		if err != nil {
			abs = full
		}

		switch keepState(abs, kept) {
		case keepExact:
			continue
		case keepInside:
			if e.IsDir() {
				if err := sweep(full, kept, cfg); err != nil {
					errs = append(errs, err)
				}
				continue
			}
		}

		if err := os.RemoveAll(full); err != nil {
			cfg.Logger.Error("cleanup failed", "path", full, "err", err)
			errs = append(errs, fmt.Errorf("%w: remove %s: %w", ErrIO, full, err))
		}
	}
	return errors.Join(errs...)
}

type keepMatch int

const (
	keepNone keepMatch = iota
	keepExact
	keepInside
)

func keepState(abs string, kept []string) keepMatch {
	state := keepNone
	prefix := abs + string(filepath.Separator)
	for _, k := range kept {
		if k == abs {
			return keepExact
		}
		if strings.HasPrefix(k, prefix) {
			state = keepInside
		}
	}
	return state
}

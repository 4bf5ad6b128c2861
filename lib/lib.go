// Package lib provides the stable entry points of coldstore for embedding
// applications. It re-exports the core package.
package lib

import (
	"coldstore/pkg/core"
)

// Extension is the conventional archive file extension.
const Extension = core.Extension

// Error categories re-exported from core.
var (
	ErrPath          = core.ErrPath
	ErrBufferCorrupt = core.ErrBufferCorrupt
	ErrDecode        = core.ErrDecode
	ErrIO            = core.ErrIO
	ErrTooLarge      = core.ErrTooLarge
	ErrUnsafePath    = core.ErrUnsafePath
)

type (
	Summary  = core.Summary
	Stats    = core.Stats
	Manifest = core.Manifest
	Diff     = core.Diff
	Option   = core.Option
)

var (
	WithLogger     = core.WithLogger
	WithProgress   = core.WithProgress
	WithKeepSource = core.WithKeepSource
	WithFileMode   = core.WithFileMode
	WithDirMode    = core.WithDirMode
)

// Archive is a wrapper around core.Archive
func Archive(root, archivePath string, opts ...Option) (*Summary, error) {
	return core.Archive(root, archivePath, opts...)
}

// Restore is a wrapper around core.Restore
func Restore(archivePath, dest string, opts ...Option) (*Summary, error) {
	return core.Restore(archivePath, dest, opts...)
}

// Inspect is a wrapper around core.Inspect
func Inspect(archivePath string) (*Stats, Manifest, error) {
	return core.Inspect(archivePath)
}

// Verify is a wrapper around core.Verify
func Verify(archivePath, dir string) (*Diff, error) {
	return core.Verify(archivePath, dir)
}

package core

import (
	"io"
	"io/fs"
	"log/slog"

	"coldstore/pkg/progress"
)

// Config holds the knobs shared by Archive and Restore.
type Config struct {
	Logger     *slog.Logger      // diagnostic events; discarded when nil
	Progress   *progress.Tracker // byte progress; disabled when nil
	KeepSource bool              // Archive: leave the live tree in place after archiving
	FileMode   fs.FileMode       // mode for restored files and the archive file
	DirMode    fs.FileMode       // mode for restored directories
}

// Option is a functional option for Archive and Restore.
type Option func(*Config)

// WithLogger routes warnings and cleanup failures to l.
func WithLogger(l *slog.Logger) Option {
	return func(c *Config) {
		c.Logger = l
	}
}

// WithProgress reports processed bytes to t.
func WithProgress(t *progress.Tracker) Option {
	return func(c *Config) {
		c.Progress = t
	}
}

// WithKeepSource disables the deletion of the live tree after a successful archive.
func WithKeepSource(keep bool) Option {
	return func(c *Config) {
		c.KeepSource = keep
	}
}

// WithFileMode sets the permission bits of files written by this package.
func WithFileMode(m fs.FileMode) Option {
	return func(c *Config) {
		c.FileMode = m
	}
}

// WithDirMode sets the permission bits of directories created during restore.
func WithDirMode(m fs.FileMode) Option {
	return func(c *Config) {
		c.DirMode = m
	}
}

func newConfig(opts []Option) *Config {
	c := &Config{
		FileMode: 0644,
		DirMode:  0755,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.Logger == nil {
		c.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return c
}

package core

import (
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"coldstore/pkg/progress"
)

// Compress runs the frequency model, tree builder, code table generator and
// encoder over a flat buffer.
func Compress(flat []byte) (*ArchiveFile, error) {
	table := BuildCodeTable(BuildTree(CountFrequencies(flat)))
	packed, bitCount, err := Encode(flat, table)
	if err != nil {
		return nil, err
	}
	return &ArchiveFile{Table: table, BitCount: bitCount, Packed: packed}, nil
}

// Size returns the number of bytes WriteTo produces.
func (a *ArchiveFile) Size() int64 {
	n := int64(2*lenSize + len(a.Packed))
	for _, c := range a.Table {
		n += 1 + lenSize + int64(c.Len)
	}
	return n
}

// WriteTo writes the archive layout to w.
func (a *ArchiveFile) WriteTo(w io.Writer) (int64, error) {
	if want := (uint64(a.BitCount) + 7) / 8; uint64(len(a.Packed)) != want {
		return 0, fmt.Errorf("write archive: %d packed bytes for %d bits, want %d", len(a.Packed), a.BitCount, want)
	}

	syms := a.Table.Symbols()
	header := make([]byte, 0, lenSize+len(syms)*(1+lenSize+8)+lenSize)
	header = binary.LittleEndian.AppendUint32(header, uint32(len(syms)))
	for _, b := range syms {
		code := a.Table[b].String()
		header = append(header, b)
		header = binary.LittleEndian.AppendUint32(header, uint32(len(code)))
		header = append(header, code...)
	}
	header = binary.LittleEndian.AppendUint32(header, a.BitCount)

	var total int64
	for _, part := range [][]byte{header, a.Packed} {
		n, err := w.Write(part)
		total += int64(n)
		if err != nil {
			return total, fmt.Errorf("%w: write archive: %w", ErrIO, err)
		}
		if n != len(part) {
			return total, fmt.Errorf("%w: write archive: %w", ErrIO, io.ErrShortWrite)
		}
	}
	return total, nil
}

// Archive snapshots every regular file under root into the archive at
// archivePath, then deletes the live content of root unless WithKeepSource
// is set. An archive path inside root is neither collected nor deleted.
//
// A root without files is not an error: a warning is logged, no archive is
// written and nothing is deleted.
func Archive(root, archivePath string, opts ...Option) (*Summary, error) {
	cfg := newConfig(opts)
	cfg.Progress.Start(0)
	defer cfg.Progress.Stop()

	entries, err := collect(root, cfg.Progress, []string{archivePath})
	if err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		cfg.Logger.Warn("nothing to archive, no archive written", "root", root)
		return &Summary{}, nil
	}

	flat, err := Flatten(entries)
	if err != nil {
		return nil, fmt.Errorf("serialize %s: %w", root, err)
	}
	a, err := Compress(flat)
	if err != nil {
		return nil, fmt.Errorf("compress %s: %w", root, err)
	}
	// Collected bytes are counted already; the archive bytes follow.
	cfg.Progress.SetTotal(cfg.Progress.Processed() + uint64(a.Size()))
	size, err := writeArchiveFile(archivePath, a, cfg)
	if err != nil {
		return nil, err
	}

	sum := &Summary{
		Entries:     len(entries),
		FlatSize:    uint64(len(flat)),
		ArchiveSize: uint64(size),
		BitCount:    a.BitCount,
		Written:     true,
	}
	cfg.Logger.Info("archive written",
		"root", root, "archive", archivePath, "entries", sum.Entries,
		"flat_bytes", sum.FlatSize, "archive_bytes", sum.ArchiveSize)

	if !cfg.KeepSource {
		sum.CleanupErr = clearDir(root, []string{archivePath}, cfg)
	}
	return sum, nil
}

// writeArchiveFile writes a to a temporary file next to name and renames it
// into place, so a failed write never leaves a partial archive behind.
func writeArchiveFile(name string, a *ArchiveFile, cfg *Config) (int64, error) {
	dir := filepath.Dir(name)
	if err := os.MkdirAll(dir, cfg.DirMode); err != nil {
		return 0, fmt.Errorf("%w: create archive directory: %w", ErrPath, err)
	}

	f, err := os.CreateTemp(dir, "."+filepath.Base(name)+".*.tmp")
	if err != nil {
		return 0, fmt.Errorf("%w: create archive: %w", ErrIO, err)
	}
	tmp := f.Name()
	committed := false
	defer func() {
		if !committed {
			f.Close()
			os.Remove(tmp)
		}
	}()

	n, err := a.WriteTo(&progress.Writer{W: f, T: cfg.Progress})
	if err != nil {
		return 0, fmt.Errorf("write %s: %w", name, err)
	}
	if err := f.Chmod(cfg.FileMode); err != nil {
		return 0, fmt.Errorf("%w: chmod archive: %w", ErrIO, err)
	}
	if err := f.Sync(); err != nil {
		return 0, fmt.Errorf("%w: sync archive: %w", ErrIO, err)
	}
	if err := f.Close(); err != nil {
		return 0, fmt.Errorf("%w: close archive: %w", ErrIO, err)
	}
	if err := os.Rename(tmp, name); err != nil {
		os.Remove(tmp)
		committed = true
		return 0, fmt.Errorf("%w: rename archive into place: %w", ErrIO, err)
	}
	committed = true
	return n, nil
}

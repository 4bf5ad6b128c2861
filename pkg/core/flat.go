package core

import (
	"encoding/binary"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// Flat buffer layout, all integers u32 little-endian:
//
//	entryCount
//	repeat entryCount times:
//	  relPathLen, relPath bytes
//	  contentLen, content bytes
const lenSize = 4

// Flatten packs entries into a single length-prefixed buffer.
// Zero entries yield a buffer holding only the count.
func Flatten(entries []ArchiveEntry) ([]byte, error) {
	if uint64(len(entries)) > maxField {
		return nil, fmt.Errorf("flatten: %d entries: %w", len(entries), ErrTooLarge)
	}

	size := uint64(lenSize)
	for _, e := range entries {
		if uint64(len(e.RelPath)) > maxField || uint64(len(e.Content)) > maxField {
			return nil, fmt.Errorf("flatten %s: %w", e.RelPath, ErrTooLarge)
		}
		size += 2*lenSize + uint64(len(e.RelPath)) + uint64(len(e.Content))
	}
	if size > maxField {
		return nil, fmt.Errorf("flatten: buffer of %d bytes: %w", size, ErrTooLarge)
	}

	buf := make([]byte, 0, size)
	buf = binary.LittleEndian.AppendUint32(buf, uint32(len(entries)))
	for _, e := range entries {
		buf = binary.LittleEndian.AppendUint32(buf, uint32(len(e.RelPath)))
		buf = append(buf, e.RelPath...)
		buf = binary.LittleEndian.AppendUint32(buf, uint32(len(e.Content)))
		buf = append(buf, e.Content...)
	}
	return buf, nil
}

// flatReader walks a flat buffer, refusing any read past its end.
type flatReader struct {
	buf []byte
	pos int
}

func (r *flatReader) uint32(what string) (uint32, error) {
	if len(r.buf)-r.pos < lenSize {
		return 0, fmt.Errorf("%w: %s at offset %d: need %d bytes, have %d",
			ErrBufferCorrupt, what, r.pos, lenSize, len(r.buf)-r.pos)
	}
	v := binary.LittleEndian.Uint32(r.buf[r.pos:])
	r.pos += lenSize
	return v, nil
}

func (r *flatReader) bytes(n uint32, what string) ([]byte, error) {
	if uint64(len(r.buf)-r.pos) < uint64(n) {
		return nil, fmt.Errorf("%w: %s at offset %d: need %d bytes, have %d",
			ErrBufferCorrupt, what, r.pos, n, len(r.buf)-r.pos)
	}
	b := r.buf[r.pos : r.pos+int(n) : r.pos+int(n)]
	r.pos += int(n)
	return b, nil
}

// Unflatten parses a flat buffer. Entry contents alias buf.
// Any inconsistency between length fields and the buffer size, including
// trailing bytes after the last entry, is reported as ErrBufferCorrupt.
func Unflatten(buf []byte) ([]ArchiveEntry, error) {
	r := &flatReader{buf: buf}
	count, err := r.uint32("entry count")
	if err != nil {
		return nil, err
	}

	// Each entry needs at least its two length fields.
	if uint64(count)*2*lenSize > uint64(len(buf)-r.pos) {
		return nil, fmt.Errorf("%w: %d entries cannot fit in %d bytes", ErrBufferCorrupt, count, len(buf))
	}

	entries := make([]ArchiveEntry, 0, count)
	for i := uint32(0); i < count; i++ {
		pathLen, err := r.uint32(fmt.Sprintf("entry %d path length", i))
		if err != nil {
			return nil, err
		}
		relPath, err := r.bytes(pathLen, fmt.Sprintf("entry %d path", i))
		if err != nil {
			return nil, err
		}
		contentLen, err := r.uint32(fmt.Sprintf("entry %d content length", i))
		if err != nil {
			return nil, err
		}
		content, err := r.bytes(contentLen, fmt.Sprintf("entry %d content", i))
		if err != nil {
			return nil, err
		}
		entries = append(entries, ArchiveEntry{RelPath: string(relPath), Content: content})
	}
	if r.pos != len(buf) {
		return nil, fmt.Errorf("%w: %d trailing bytes after %d entries", ErrBufferCorrupt, len(buf)-r.pos, count)
	}
	return entries, nil
}

// Rebuild replays a flat buffer into dest, creating parent directories as
// needed, and returns the number of files written. The whole buffer is
// validated before the first file is written.
func Rebuild(buf []byte, dest string, opts ...Option) (int, error) {
	plan, err := planRebuild(buf, dest)
	if err != nil {
		return 0, err
	}
	return plan.write(newConfig(opts))
}

// rebuildPlan is a parsed flat buffer with every target path resolved.
type rebuildPlan struct {
	entries []ArchiveEntry
	targets []string
}

func planRebuild(buf []byte, dest string) (*rebuildPlan, error) {
	entries, err := Unflatten(buf)
	if err != nil {
		return nil, fmt.Errorf("deserialize: %w", err)
	}
	p := &rebuildPlan{entries: entries, targets: make([]string, len(entries))}
	for i, e := range entries {
		if p.targets[i], err = safeJoin(dest, e.RelPath); err != nil {
			return nil, err
		}
	}
	return p, nil
}

func (p *rebuildPlan) contentSize() uint64 {
	var n uint64
	for _, e := range p.entries {
		n += uint64(len(e.Content))
	}
	return n
}

// write stops at the first failure; files already written stay in place.
func (p *rebuildPlan) write(cfg *Config) (int, error) {
	for i, e := range p.entries {
		if err := os.MkdirAll(filepath.Dir(p.targets[i]), cfg.DirMode); err != nil {
			return i, fmt.Errorf("%w: create parent dir for %s: %w", ErrIO, p.targets[i], err)
		}
		if err := writeFile(p.targets[i], e.Content, cfg.FileMode); err != nil {
			return i, err
		}
		cfg.Progress.AddBytes(uint64(len(e.Content)))
	}
	return len(p.entries), nil
}

// safeJoin maps an archived path under dest, rejecting absolute paths and any
// path that climbs out of dest. Separators are read the way the host reads
// them, so a backslash stays part of the file name on POSIX systems.
func safeJoin(dest, relPath string) (string, error) {
	native := filepath.FromSlash(relPath)
	if !filepath.IsLocal(native) || filepath.Clean(native) == "." {
		return "", fmt.Errorf("restore %q: %w", relPath, ErrUnsafePath)
	}
	return filepath.Join(dest, native), nil
}

func writeFile(name string, content []byte, mode fs.FileMode) error {
	if err := os.WriteFile(name, content, mode); err != nil {
		return fmt.Errorf("%w: write %s: %w", ErrIO, name, err)
	}
	return nil
}

package core

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// readFailure classifies a failed read: running out of data means the
// archive is corrupt, anything else is an I/O failure.
func readFailure(what string, err error) error {
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return fmt.Errorf("%w: read %s: %w", ErrBufferCorrupt, what, io.ErrUnexpectedEOF)
	}
	return fmt.Errorf("%w: read %s: %w", ErrIO, what, err)
}

// ReadFrom reads the archive layout from r, validating the code table.
func (a *ArchiveFile) ReadFrom(r io.Reader) (int64, error) {
	var total int64
	var word [lenSize]byte
	readUint32 := func(what string) (uint32, error) {
		n, err := io.ReadFull(r, word[:])
		total += int64(n)
		if err != nil {
			return 0, readFailure(what, err)
		}
		return binary.LittleEndian.Uint32(word[:]), nil
	}

	tableSize, err := readUint32("table size")
	if err != nil {
		return total, err
	}
	if tableSize > 256 {
		return total, fmt.Errorf("%w: table size %d exceeds 256", ErrBufferCorrupt, tableSize)
	}

	table := make(CodeTable, tableSize)
	for i := uint32(0); i < tableSize; i++ {
		var sym [1]byte
		n, err := io.ReadFull(r, sym[:])
		total += int64(n)
		if err != nil {
			return total, readFailure(fmt.Sprintf("table entry %d symbol", i), err)
		}
		codeLen, err := readUint32(fmt.Sprintf("table entry %d code length", i))
		if err != nil {
			return total, err
		}
		if codeLen == 0 || codeLen > maxCodeLen {
			return total, fmt.Errorf("%w: table entry %d: code length %d outside [1, %d]",
				ErrBufferCorrupt, i, codeLen, maxCodeLen)
		}
		text := make([]byte, codeLen)
		n, err = io.ReadFull(r, text)
		total += int64(n)
		if err != nil {
			return total, readFailure(fmt.Sprintf("table entry %d code", i), err)
		}
		code, err := ParseCode(string(text))
		if err != nil {
			return total, fmt.Errorf("table entry %d: %w", i, err)
		}
		if _, dup := table[sym[0]]; dup {
			return total, fmt.Errorf("%w: byte 0x%02x appears twice in table", ErrBufferCorrupt, sym[0])
		}
		table[sym[0]] = code
	}
	if err := table.Validate(); err != nil {
		return total, err
	}

	bitCount, err := readUint32("bit count")
	if err != nil {
		return total, err
	}
	if bitCount > 0 && len(table) == 0 {
		return total, fmt.Errorf("%w: %d bits with an empty code table", ErrBufferCorrupt, bitCount)
	}

	// Grow with the data actually present instead of trusting bitCount.
	want := (int64(bitCount) + 7) / 8
	var packed bytes.Buffer
	n, err := io.CopyN(&packed, r, want)
	total += n
	if err != nil {
		return total, readFailure("packed bits", err)
	}

	a.Table = table
	a.BitCount = bitCount
	a.Packed = packed.Bytes()
	return total, nil
}

// Decompress decodes the packed stream back into the flat buffer.
func Decompress(a *ArchiveFile) ([]byte, error) {
	return Decode(a.Packed, a.BitCount, a.Table)
}

// ReadArchive loads an archive file. Data past the packed stream is
// reported as corruption.
func ReadArchive(name string) (*ArchiveFile, int64, error) {
	f, err := os.Open(name)
	if err != nil {
		return nil, 0, fmt.Errorf("%w: open archive: %w", ErrIO, err)
	}
	defer f.Close()

	br := bufio.NewReader(f)
	a := &ArchiveFile{}
	n, err := a.ReadFrom(br)
	if err != nil {
		return nil, n, fmt.Errorf("read %s: %w", name, err)
	}
	if _, err := br.ReadByte(); err == nil {
		return nil, n, fmt.Errorf("read %s: %w: trailing data after %d bytes", name, ErrBufferCorrupt, n)
	} else if err != io.EOF {
		return nil, n, fmt.Errorf("read %s: %w: %w", name, ErrIO, err)
	}
	return a, n, nil
}

// Restore replays the archive at archivePath into dest. The archive is fully
// decoded and validated first; only then is the previous content of dest
// cleared (keeping the archive itself when it lives there) and every entry
// written. A missing archive is not an error: the returned Summary has
// Restored set to false.
func Restore(archivePath, dest string, opts ...Option) (*Summary, error) {
	cfg := newConfig(opts)

	if _, err := os.Stat(archivePath); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			cfg.Logger.Info("no archive to restore", "archive", archivePath)
			return &Summary{}, nil
		}
		return nil, fmt.Errorf("%w: stat archive: %w", ErrPath, err)
	}

	a, size, err := ReadArchive(archivePath)
	if err != nil {
		return nil, err
	}
	flat, err := Decompress(a)
	if err != nil {
		return nil, fmt.Errorf("decompress %s: %w", archivePath, err)
	}
	plan, err := planRebuild(flat, dest)
	if err != nil {
		return nil, fmt.Errorf("restore %s: %w", archivePath, err)
	}
	cfg.Progress.Start(plan.contentSize())
	defer cfg.Progress.Stop()

	if err := os.MkdirAll(dest, cfg.DirMode); err != nil {
		return nil, fmt.Errorf("%w: create destination: %w", ErrPath, err)
	}
	sum := &Summary{
		FlatSize:    uint64(len(flat)),
		ArchiveSize: uint64(size),
		BitCount:    a.BitCount,
	}
	sum.CleanupErr = clearDir(dest, []string{archivePath}, cfg)

	written, err := plan.write(cfg)
	sum.Entries = written
	if err != nil {
		return sum, fmt.Errorf("restore %s into %s: %w", archivePath, filepath.Clean(dest), err)
	}
	sum.Restored = true
	cfg.Logger.Info("archive restored", "archive", archivePath, "dest", dest, "entries", written)
	return sum, nil
}

package core

import (
	"errors"
	"fmt"
	"math"
)

// Extension is the conventional file extension for coldstore archives.
const Extension = ".huff"

// maxField is the largest value any length or count field can carry.
const maxField = math.MaxUint32

// Error categories. Every error returned by this package that belongs to one of
// these categories matches it with errors.Is.
var (
	ErrPath          = errors.New("path error")          // root or destination missing or inaccessible
	ErrBufferCorrupt = errors.New("buffer corrupt")      // length field inconsistent with remaining data
	ErrDecode        = errors.New("decode error")        // bitstream does not resolve against the code table
	ErrIO            = errors.New("i/o error")           // a file could not be opened, read or written
	ErrTooLarge      = errors.New("too large for format") // a length does not fit a u32 field
)

// ErrUnsafePath reports an archived path that would land outside the destination.
var ErrUnsafePath = fmt.Errorf("%w: unsafe relative path", ErrPath)

// ArchiveEntry is one regular file captured from the archived tree.
type ArchiveEntry struct {
	RelPath string // slash-separated, relative to the archived root
	Content []byte
}

// Summary describes what an Archive or Restore call did.
type Summary struct {
	Entries     int    // files archived or restored
	FlatSize    uint64 // size of the serialized flat buffer
	ArchiveSize uint64 // size of the archive file on disk
	BitCount    uint32 // meaningful bits in the packed stream

	Written    bool  // Archive: an archive file was produced
	Restored   bool  // Restore: an archive was found and replayed
	CleanupErr error // best-effort cleanup failures, joined
}

// ArchiveFile is the persisted form of one compressed flat buffer:
//
//	tableSize                         u32
//	repeat tableSize times:
//	  symbol                          byte
//	  codeLen                         u32
//	  code                            codeLen ASCII '0'/'1' characters
//	bitCount                          u32
//	packed                            ceil(bitCount/8) bytes, MSB first
//
// Integers are little-endian.
type ArchiveFile struct {
	Table    CodeTable
	BitCount uint32
	Packed   []byte
}

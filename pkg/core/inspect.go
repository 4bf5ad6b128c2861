package core

import (
	"bytes"
	"fmt"
	"sort"

	"github.com/cespare/xxhash/v2"
	"github.com/pierrec/lz4/v4"
)

// Stats summarizes an archive without restoring it.
type Stats struct {
	Entries     int     `json:"entries"`
	FlatSize    uint64  `json:"flat_size"`
	ArchiveSize uint64  `json:"archive_size"`
	TableSize   int     `json:"table_size"`
	MaxCodeLen  int     `json:"max_code_len"`
	BitCount    uint32  `json:"bit_count"`
	LZ4Size     uint64  `json:"lz4_size"` // LZ4 frame of the same flat buffer, for comparison
	Ratio       float64 `json:"ratio"`    // ArchiveSize / FlatSize
}

// ManifestEntry identifies one archived file by size and content digest.
type ManifestEntry struct {
	Path   string `json:"path"`
	Size   uint64 `json:"size"`
	Digest uint64 `json:"xxhash64"`
}

// Manifest lists archived files sorted by path.
type Manifest []ManifestEntry

// ManifestOf digests entries with xxhash64.
func ManifestOf(entries []ArchiveEntry) Manifest {
	m := make(Manifest, 0, len(entries))
	for _, e := range entries {
		m = append(m, ManifestEntry{
			Path:   e.RelPath,
			Size:   uint64(len(e.Content)),
			Digest: xxhash.Sum64(e.Content),
		})
	}
	sort.Slice(m, func(i, j int) bool { return m[i].Path < m[j].Path })
	return m
}

// Diff lists the differences between two manifests.
type Diff struct {
	Missing []string `json:"missing,omitempty"` // in the archive, not in the tree
	Extra   []string `json:"extra,omitempty"`   // in the tree, not in the archive
	Changed []string `json:"changed,omitempty"` // in both with different content
}

// Empty reports whether the manifests matched.
func (d *Diff) Empty() bool {
	return len(d.Missing) == 0 && len(d.Extra) == 0 && len(d.Changed) == 0
}

// Compare reports how tree differs from m.
func (m Manifest) Compare(tree Manifest) *Diff {
	d := &Diff{}
	i, j := 0, 0
	for i < len(m) || j < len(tree) {
		switch {
		case j == len(tree) || (i < len(m) && m[i].Path < tree[j].Path):
			d.Missing = append(d.Missing, m[i].Path)
			i++
		case i == len(m) || tree[j].Path < m[i].Path:
			d.Extra = append(d.Extra, tree[j].Path)
			j++
		default:
			if m[i].Size != tree[j].Size || m[i].Digest != tree[j].Digest {
				d.Changed = append(d.Changed, m[i].Path)
			}
			i++
			j++
		}
	}
	return d
}

// Inspect decodes an archive in memory and reports its statistics and manifest.
func Inspect(archivePath string) (*Stats, Manifest, error) {
	a, size, err := ReadArchive(archivePath)
	if err != nil {
		return nil, nil, err
	}
	flat, err := Decompress(a)
	if err != nil {
		return nil, nil, fmt.Errorf("decompress %s: %w", archivePath, err)
	}
	entries, err := Unflatten(flat)
	if err != nil {
		return nil, nil, fmt.Errorf("inspect %s: %w", archivePath, err)
	}
	lz4Size, err := lz4FrameSize(flat)
	if err != nil {
		return nil, nil, fmt.Errorf("inspect %s: %w", archivePath, err)
	}

	st := &Stats{
		Entries:     len(entries),
		FlatSize:    uint64(len(flat)),
		ArchiveSize: uint64(size),
		TableSize:   len(a.Table),
		MaxCodeLen:  int(a.Table.maxLen()),
		BitCount:    a.BitCount,
		LZ4Size:     lz4Size,
	}
	if st.FlatSize > 0 {
		st.Ratio = float64(st.ArchiveSize) / float64(st.FlatSize)
	}
	return st, ManifestOf(entries), nil
}

// Verify compares the archive with the live tree under dir.
func Verify(archivePath, dir string) (*Diff, error) {
	_, archived, err := Inspect(archivePath)
	if err != nil {
		return nil, err
	}
	entries, err := Collect(dir, archivePath)
	if err != nil {
		return nil, err
	}
	return archived.Compare(ManifestOf(entries)), nil
}

func lz4FrameSize(flat []byte) (uint64, error) {
	var buf bytes.Buffer
	zw := lz4.NewWriter(&buf)
	if _, err := zw.Write(flat); err != nil {
		return 0, fmt.Errorf("lz4 reference: %w", err)
	}
	if err := zw.Close(); err != nil {
		return 0, fmt.Errorf("lz4 reference: %w", err)
	}
	return uint64(buf.Len()), nil
}

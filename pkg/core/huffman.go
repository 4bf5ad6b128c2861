package core

import (
	"fmt"
	"sort"
	"strings"

	"github.com/icza/huffman"
)

// maxCodeLen bounds a code so it fits Code.Bits. A buffer addressable by
// u32 lengths never produces a deeper tree.
const maxCodeLen = 64

// Frequencies holds the occurrence count of every byte value.
type Frequencies [256]uint64

// CountFrequencies counts every byte of buf.
func CountFrequencies(buf []byte) *Frequencies {
	var f Frequencies
	for _, b := range buf {
		f[b]++
	}
	return &f
}

// Distinct returns how many byte values occur at least once.
func (f *Frequencies) Distinct() int {
	n := 0
	for _, c := range f {
		if c > 0 {
			n++
		}
	}
	return n
}

// PrefixTree is the Huffman tree over the byte values of one buffer.
type PrefixTree struct {
	root *huffman.Node
}

// BuildTree combines the two lightest nodes until a single root remains.
// Leaves enter in ascending byte order and equal weights keep that order,
// so the same frequencies always give the same tree. A buffer with a single
// distinct byte gives a tree that is just one leaf; a buffer with none gives
// an empty tree.
func BuildTree(f *Frequencies) *PrefixTree {
	leaves := make([]*huffman.Node, 0, 256)
	for b, c := range f {
		if c == 0 {
			continue
		}
		leaves = append(leaves, &huffman.Node{Value: huffman.ValueType(b), Count: int(c)})
	}
	return &PrefixTree{root: huffman.Build(leaves)}
}

// Empty reports whether the tree has no leaves.
func (t *PrefixTree) Empty() bool {
	return t == nil || t.root == nil
}

// Weight returns the total frequency under the root.
func (t *PrefixTree) Weight() uint64 {
	if t.Empty() {
		return 0
	}
	return uint64(t.root.Count)
}

// Code is a bit-string of Len bits held in the low bits of Bits, first bit
// most significant.
type Code struct {
	Bits uint64
	Len  uint8
}

func (c Code) appendBit(one bool) Code {
	c.Bits <<= 1
	if one {
		c.Bits |= 1
	}
	c.Len++
	return c
}

// String renders the code as ASCII '0' and '1' characters.
func (c Code) String() string {
	var sb strings.Builder
	sb.Grow(int(c.Len))
	for i := int(c.Len) - 1; i >= 0; i-- {
		if c.Bits>>uint(i)&1 == 1 {
			sb.WriteByte('1')
		} else {
			sb.WriteByte('0')
		}
	}
	return sb.String()
}

// ParseCode reads a code written as ASCII '0' and '1' characters.
func ParseCode(s string) (Code, error) {
	if len(s) == 0 || len(s) > maxCodeLen {
		return Code{}, fmt.Errorf("%w: code length %d outside [1, %d]", ErrBufferCorrupt, len(s), maxCodeLen)
	}
	var c Code
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '0':
			c = c.appendBit(false)
		case '1':
			c = c.appendBit(true)
		default:
			return Code{}, fmt.Errorf("%w: code %q has non-binary character %q", ErrBufferCorrupt, s, s[i])
		}
	}
	return c, nil
}

// HasPrefix reports whether p is a prefix of c.
func (c Code) HasPrefix(p Code) bool {
	if p.Len > c.Len {
		return false
	}
	return c.Bits>>(c.Len-p.Len) == p.Bits
}

// CodeTable maps each byte value present in a buffer to its code.
type CodeTable map[byte]Code

// BuildCodeTable walks the tree from the root, appending 0 on each left edge
// and 1 on each right edge. A one-leaf tree assigns its byte the code "0",
// since an empty code could not be decoded.
func BuildCodeTable(t *PrefixTree) CodeTable {
	table := make(CodeTable)
	if t.Empty() {
		return table
	}
	walkCodes(t.root, Code{}, table)
	if len(table) == 1 {
		for b := range table {
			table[b] = Code{Bits: 0, Len: 1}
		}
	}
	return table
}

func walkCodes(n *huffman.Node, prefix Code, table CodeTable) {
	if n.Left == nil && n.Right == nil {
		table[byte(n.Value)] = prefix
		return
	}
	if n.Left != nil {
		walkCodes(n.Left, prefix.appendBit(false), table)
	}
	if n.Right != nil {
		walkCodes(n.Right, prefix.appendBit(true), table)
	}
}

// Symbols returns the byte values of the table in ascending order.
func (ct CodeTable) Symbols() []byte {
	syms := make([]byte, 0, len(ct))
	for b := range ct {
		syms = append(syms, b)
	}
	sort.Slice(syms, func(i, j int) bool { return syms[i] < syms[j] })
	return syms
}

// Validate checks that every code is non-empty and no code is a prefix of another.
func (ct CodeTable) Validate() error {
	codes := make([]string, 0, len(ct))
	owner := make(map[string]byte, len(ct))
	for b, c := range ct {
		if c.Len == 0 || c.Len > maxCodeLen {
			return fmt.Errorf("%w: byte 0x%02x has code length %d", ErrBufferCorrupt, b, c.Len)
		}
		s := c.String()
		codes = append(codes, s)
		owner[s] = b
	}
	sort.Strings(codes)
	// In lexical order a code that prefixes any other also prefixes its successor.
	for i := 1; i < len(codes); i++ {
		if strings.HasPrefix(codes[i], codes[i-1]) {
			return fmt.Errorf("%w: code %s of byte 0x%02x is a prefix of code %s of byte 0x%02x",
				ErrBufferCorrupt, codes[i-1], owner[codes[i-1]], codes[i], owner[codes[i]])
		}
	}
	return nil
}

// Invert returns the code to byte mapping used for decoding.
func (ct CodeTable) Invert() map[Code]byte {
	inv := make(map[Code]byte, len(ct))
	for b, c := range ct {
		inv[c] = b
	}
	return inv
}

// maxLen returns the length of the longest code.
func (ct CodeTable) maxLen() uint8 {
	var n uint8
	for _, c := range ct {
		if c.Len > n {
			n = c.Len
		}
	}
	return n
}

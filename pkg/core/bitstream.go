package core

import (
	"bytes"
	"fmt"

	"github.com/icza/bitio"
)

// Encode concatenates the code of every byte of buf and packs the bits
// most significant first, zero-padding the last byte. It returns the packed
// bytes and the number of meaningful bits.
func Encode(buf []byte, table CodeTable) ([]byte, uint32, error) {
	var codes [256]Code
	var known [256]bool
	for b, c := range table {
		codes[b], known[b] = c, true
	}

	var total uint64
	for _, b := range buf {
		if !known[b] {
			return nil, 0, fmt.Errorf("encode: byte 0x%02x has no code", b)
		}
		total += uint64(codes[b].Len)
	}
	if total > maxField {
		return nil, 0, fmt.Errorf("encode: %d bits: %w", total, ErrTooLarge)
	}

	var out bytes.Buffer
	out.Grow(int((total + 7) / 8))
	w := bitio.NewWriter(&out)
	for _, b := range buf {
		c := codes[b]
		if err := w.WriteBits(c.Bits, c.Len); err != nil {
			return nil, 0, fmt.Errorf("encode: %w", err)
		}
	}
	if err := w.Close(); err != nil {
		return nil, 0, fmt.Errorf("encode: flush: %w", err)
	}
	return out.Bytes(), uint32(total), nil
}

// Decode reads exactly bitCount bits from packed, most significant first,
// emitting a byte each time the accumulated bits match a code of table.
// Padding after bitCount is ignored. Bits that never resolve to a code are
// reported as ErrDecode.
func Decode(packed []byte, bitCount uint32, table CodeTable) ([]byte, error) {
	if uint64(len(packed))*8 < uint64(bitCount) {
		return nil, fmt.Errorf("%w: %d bits declared, %d bytes packed", ErrBufferCorrupt, bitCount, len(packed))
	}
	if bitCount == 0 {
		return []byte{}, nil
	}
	if len(table) == 0 {
		return nil, fmt.Errorf("%w: %d bits with an empty code table", ErrDecode, bitCount)
	}

	inv := table.Invert()
	longest := table.maxLen()

	out := make([]byte, 0, bitCount/uint32(minLen(table)))
	r := bitio.NewReader(bytes.NewReader(packed))
	var cand Code
	for i := uint32(0); i < bitCount; i++ {
		one, err := r.ReadBool()
		if err != nil {
			return nil, fmt.Errorf("%w: bit %d: %w", ErrDecode, i, err)
		}
		cand = cand.appendBit(one)
		if b, ok := inv[cand]; ok {
			out = append(out, b)
			cand = Code{}
			continue
		}
		if cand.Len >= longest {
			return nil, fmt.Errorf("%w: bits %s ending at bit %d match no code", ErrDecode, cand, i)
		}
	}
	if cand.Len > 0 {
		return nil, fmt.Errorf("%w: stream ends inside a code (%s)", ErrDecode, cand)
	}
	return out, nil
}

func minLen(table CodeTable) uint8 {
	n := uint8(maxCodeLen)
	for _, c := range table {
		if c.Len > 0 && c.Len < n {
			n = c.Len
		}
	}
	return n
}

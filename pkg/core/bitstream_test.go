package core

import (
	"bytes"
	"errors"
	"testing"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	inputs := tableInputs()
	inputs["single symbol"] = bytes.Repeat([]byte{0}, 1000)
	inputs["one byte"] = []byte{42}

	for name, input := range inputs {
		t.Run(name, func(t *testing.T) {
			table := BuildCodeTable(BuildTree(CountFrequencies(input)))
			packed, bitCount, err := Encode(input, table)
			if err != nil {
				t.Fatalf("Encode failed: %v", err)
			}

			var wantBits uint32
			for _, b := range input {
				wantBits += uint32(table[b].Len)
			}
			if bitCount != wantBits {
				t.Fatalf("Bit count %d, want %d", bitCount, wantBits)
			}
			if want := int((bitCount + 7) / 8); len(packed) != want {
				t.Fatalf("Packed %d bytes for %d bits, want %d", len(packed), bitCount, want)
			}

			decoded, err := Decode(packed, bitCount, table)
			if err != nil {
				t.Fatalf("Decode failed: %v", err)
			}
			if !bytes.Equal(decoded, input) {
				t.Fatalf("Decoded content does not match input")
			}
		})
	}
}

func TestEncodePacksMSBFirst(t *testing.T) {
	a, _ := ParseCode("1")
	b, _ := ParseCode("01")
	table := CodeTable{'a': a, 'b': b}

	// a b a b a = 1 01 1 01 1 -> 1011 0110 (padding zeros)
	packed, bitCount, err := Encode([]byte("ababa"), table)
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	if bitCount != 7 {
		t.Fatalf("Expected 7 bits, got %d", bitCount)
	}
	if !bytes.Equal(packed, []byte{0xB6}) {
		t.Fatalf("Expected packed byte 0xB6, got %#v", packed)
	}
}

func TestDecodeIgnoresPadding(t *testing.T) {
	zero, _ := ParseCode("0")
	one, _ := ParseCode("1")
	table := CodeTable{'x': zero, 'y': one}

	// Only the first 3 bits are meaningful; the set padding bits must be ignored.
	decoded, err := Decode([]byte{0x5F}, 3, table)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if string(decoded) != "xyx" {
		t.Fatalf("Expected \"xyx\", got %q", decoded)
	}
}

func TestDecodeErrors(t *testing.T) {
	c0, _ := ParseCode("0")
	c10, _ := ParseCode("10")
	table := CodeTable{'a': c0, 'b': c10}

	testCases := []struct {
		name     string
		packed   []byte
		bitCount uint32
		table    CodeTable
		want     error
	}{
		{"bits match no code", []byte{0xC0}, 2, table, ErrDecode},
		{"stream ends inside a code", []byte{0x80}, 1, table, ErrDecode},
		{"bits with empty table", []byte{0x00}, 3, CodeTable{}, ErrDecode},
		{"bit count exceeds packed data", []byte{0x00}, 9, table, ErrBufferCorrupt},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := Decode(tc.packed, tc.bitCount, tc.table); !errors.Is(err, tc.want) {
				t.Errorf("Expected %v, got %v", tc.want, err)
			}
		})
	}
}

func TestEncodeMissingCode(t *testing.T) {
	c, _ := ParseCode("0")
	if _, _, err := Encode([]byte("ab"), CodeTable{'a': c}); err == nil {
		t.Fatalf("Expected an error for a byte without code")
	}
}

func BenchmarkEncodeDecode(b *testing.B) {
	input := bytes.Repeat([]byte("coldstore archives whole directory trees. "), 2048)
	table := BuildCodeTable(BuildTree(CountFrequencies(input)))
	b.SetBytes(int64(len(input)))
	b.ResetTimer()

	for i := 0; i < b.N; i++ {
		packed, bitCount, err := Encode(input, table)
		if err != nil {
			b.Fatal(err)
		}
		if _, err := Decode(packed, bitCount, table); err != nil {
			b.Fatal(err)
		}
	}
}

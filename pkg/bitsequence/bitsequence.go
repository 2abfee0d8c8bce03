package bitsequence

import (
	"fmt"
	"math/bits"

	"github.com/cockroachdb/errors"
)

// BitSequence represents a sequence of bits stored in a []byte.
// The bits are packed in LSB-first order within each byte (i.e. bit 0 is stored in the least significant bit).
type BitSequence struct {
	buf    []byte // underlying byte slice
	bitLen int    // number of bits stored in the sequence
}

// New returns a zeroed sequence of bitLen bits.
func New(bitLen int) *BitSequence {
	if bitLen < 0 {
		panic(fmt.Sprintf("bitsequence: negative length %d", bitLen))
	}
	return &BitSequence{
		buf:    make([]byte, (bitLen+7)/8),
		bitLen: bitLen,
	}
}

// FromBytesLSBWithLength creates a new BitSequence with a specific bit length,
// reading bits from least significant (bit 0) to most significant (bit 7) within each byte.
// It verifies that the provided byte slice is the correct size for the requested bit length,
// and that all bits beyond the specified length are zeros.
func FromBytesLSBWithLength(b []byte, bitLen int) (*BitSequence, error) {
	requiredBytes := (bitLen + 7) / 8
	if len(b) != requiredBytes {
		return nil, errors.Newf("bit length %d requires exactly %d bytes, got %d", bitLen, requiredBytes, len(b))
	}

	// For example, if remainingBits=3, mask would be 11111000 (binary)
	if remainingBits := bitLen % 8; remainingBits > 0 {
		mask := byte(0xFF << remainingBits)
		if (b[len(b)-1] & mask) != 0 {
			return nil, errors.Newf("invalid bit sequence: bits beyond position %d must be zeros", bitLen-1)
		}
	}

	buf := make([]byte, requiredBytes)
	copy(buf, b)

	return &BitSequence{
		buf:    buf,
		bitLen: bitLen,
	}, nil
}

// BitAt returns the bit at position i (0-indexed).
// It panics if i is out of range.
func (bs *BitSequence) BitAt(i int) bool {
	if i < 0 || i >= bs.bitLen {
		panic(fmt.Sprintf("bitsequence: index %d out of range [0, %d)", i, bs.bitLen))
	}
	return (bs.buf[i>>3] & (1 << uint(i&7))) != 0
}

// Set sets or clears the bit at position i.
// It panics if i is out of range.
func (bs *BitSequence) Set(i int, v bool) {
	if i < 0 || i >= bs.bitLen {
		panic(fmt.Sprintf("bitsequence: index %d out of range [0, %d)", i, bs.bitLen))
	}
	if v {
		bs.buf[i>>3] |= 1 << uint(i&7)
	} else {
		bs.buf[i>>3] &^= 1 << uint(i&7)
	}
}

// Len returns the total number of bits in the sequence.
func (bs *BitSequence) Len() int {
	return bs.bitLen
}

// Count returns the number of set bits.
func (bs *BitSequence) Count() int {
	n := 0
	for _, b := range bs.buf {
		n += bits.OnesCount8(b)
	}
	return n
}

// Clear zeroes every bit, keeping the length.
func (bs *BitSequence) Clear() {
	clear(bs.buf)
}

// NextSet returns the index of the first set bit at or after from, or -1.
func (bs *BitSequence) NextSet(from int) int {
	if from < 0 {
		from = 0
	}
	for i := from; i < bs.bitLen; {
		b := bs.buf[i>>3] >> uint(i&7)
		if b == 0 {
			// Skip to the start of the next byte.
			i = (i | 7) + 1
			continue
		}
		i += bits.TrailingZeros8(b)
		if i < bs.bitLen {
			return i
		}
		break
	}
	return -1
}

// ToBytesLSB returns a copy of the packed bits.
func (bs *BitSequence) ToBytesLSB() []byte {
	out := make([]byte, len(bs.buf))
	copy(out, bs.buf)
	return out
}

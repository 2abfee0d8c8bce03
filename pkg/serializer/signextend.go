package serializer

import "fmt"

// SignExtend reinterprets the low `bits` bits of value as a two's complement
// quantity and widens it to 32 bits. When bit (bits-1) is clear the input is
// returned unchanged, so callers must hand in a value already masked to its
// field width.
func SignExtend(value uint32, bits uint) uint32 {
	if bits == 0 || bits > 32 {
		panic(fmt.Sprintf("SignExtend: invalid field width %d (must be 1..32)", bits))
	}
	if bits == 32 {
		return value
	}
	signBit := uint32(1) << (bits - 1)
	if value&signBit == 0 {
		return value
	}
	return value | ^(signBit<<1 - 1)
}

// SignExtend64 is SignExtend for fields up to 64 bits wide.
func SignExtend64(value uint64, bits uint) uint64 {
	if bits == 0 || bits > 64 {
		panic(fmt.Sprintf("SignExtend64: invalid field width %d (must be 1..64)", bits))
	}
	if bits == 64 {
		return value
	}
	signBit := uint64(1) << (bits - 1)
	if value&signBit == 0 {
		return value
	}
	return value | ^(signBit<<1 - 1)
}

package serializer

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestSignExtend(t *testing.T) {
	tests := []struct {
		desc  string
		value uint32
		bits  uint
		want  uint32
	}{
		{desc: "positive 12 bit", value: 0x7FF, bits: 12, want: 0x7FF},
		{desc: "negative 12 bit", value: 0x800, bits: 12, want: 0xFFFFF800},
		{desc: "minus one 12 bit", value: 0xFFF, bits: 12, want: 0xFFFFFFFF},
		{desc: "negative byte", value: 0x80, bits: 8, want: 0xFFFFFF80},
		{desc: "positive byte", value: 0x7F, bits: 8, want: 0x7F},
		{desc: "negative half", value: 0x8001, bits: 16, want: 0xFFFF8001},
		{desc: "negative 13 bit branch offset", value: 0x1FFE, bits: 13, want: 0xFFFFFFFE},
		{desc: "negative 21 bit jump offset", value: 0x100000, bits: 21, want: 0xFFF00000},
		{desc: "single bit set", value: 1, bits: 1, want: 0xFFFFFFFF},
		{desc: "single bit clear", value: 0, bits: 1, want: 0},
		{desc: "full width", value: 0x80000000, bits: 32, want: 0x80000000},
		{desc: "zero", value: 0, bits: 12, want: 0},
	}
	for _, tt := range tests {
		t.Run(tt.desc, func(t *testing.T) {
			if got := SignExtend(tt.value, tt.bits); got != tt.want {
				t.Errorf("SignExtend(%#x, %d) = %#x; want %#x", tt.value, tt.bits, got, tt.want)
			}
		})
	}
}

// Every field value of every width either comes back untouched (sign bit
// clear) or with all bits above the field set and the field itself preserved.
func TestSignExtendLaw(t *testing.T) {
	for bits := uint(1); bits < 32; bits++ {
		fieldMask := uint32(1)<<bits - 1
		samples := []uint32{0, 1, fieldMask, fieldMask >> 1, (fieldMask >> 1) + 1, 0x5555_5555 & fieldMask, 0xAAAA_AAAA & fieldMask}
		for _, v := range samples {
			got := SignExtend(v, bits)
			if v&(1<<(bits-1)) == 0 {
				if got != v {
					t.Fatalf("bits=%d value=%#x: got %#x, want unchanged", bits, v, got)
				}
				continue
			}
			if got&fieldMask != v {
				t.Fatalf("bits=%d value=%#x: low bits changed to %#x", bits, v, got&fieldMask)
			}
			if got|fieldMask != 0xFFFFFFFF {
				t.Fatalf("bits=%d value=%#x: high bits not all set in %#x", bits, v, got)
			}
		}
	}
}

func TestSignExtendInvalidWidth(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Errorf("SignExtend with width 0 did not panic")
		}
	}()
	SignExtend(1, 0)
}

func TestUnsignedToSigned(t *testing.T) {
	if got := UnsignedToSigned(1, 0xFF); got != -1 {
		t.Errorf("UnsignedToSigned(1, 0xff) = %d; want -1", got)
	}
	if got := UnsignedToSigned(2, 0x7FFF); got != 0x7FFF {
		t.Errorf("UnsignedToSigned(2, 0x7fff) = %d; want %d", got, 0x7FFF)
	}
	if got := UnsignedToSigned(4, 0x80000000); got != -0x80000000 {
		t.Errorf("UnsignedToSigned(4, 0x80000000) = %d; want %d", got, -0x80000000)
	}
	if got := SignedToUnsigned(4, -1); got != 0xFFFFFFFF {
		t.Errorf("SignedToUnsigned(4, -1) = %#x; want 0xffffffff", got)
	}
}

func TestGeneralNatural(t *testing.T) {
	for _, x := range []uint64{0, 1, 127, 128, 300, 1 << 14, 1<<21 + 5, 1 << 40, 1<<56 - 1, 1 << 63} {
		enc := EncodeGeneralNatural(x)
		got, n, ok := DecodeGeneralNatural(enc)
		if !ok {
			t.Fatalf("DecodeGeneralNatural(%x) failed", enc)
		}
		if got != x || n != len(enc) {
			t.Errorf("round trip of %d: got %d (consumed %d of %d)", x, got, n, len(enc))
		}
	}
	if _, _, ok := DecodeGeneralNatural([]byte{0xFF, 1}); ok {
		t.Errorf("truncated fallback encoding decoded successfully")
	}
}

type sample struct {
	Kind     uint8
	PC       uint32
	Regs     [4]uint32
	Words    []uint32
	Name     string
	Hash     [8]byte
	Payload  []byte
	Optional *uint64
	Flag     bool
	Offset   int32
}

func TestSerializeStruct(t *testing.T) {
	opt := uint64(99)
	in := sample{
		Kind:     3,
		PC:       0x1234,
		Regs:     [4]uint32{0, 1, 0xFFFFFFFF, 7},
		Words:    []uint32{0x00100093, 0},
		Name:     "rv32i",
		Hash:     [8]byte{1, 2, 3, 4, 5, 6, 7, 8},
		Payload:  []byte("abc"),
		Optional: &opt,
		Flag:     true,
		Offset:   -8,
	}
	data := Serialize(in)

	var out sample
	if err := Deserialize(data, &out); err != nil {
		t.Fatalf("Deserialize: %v", err)
	}
	if diff := cmp.Diff(in, out); diff != "" {
		t.Errorf("round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestDeserializeRejectsTrailingBytes(t *testing.T) {
	data := append(Serialize(uint32(5)), 0)
	var v uint32
	if err := Deserialize(data, &v); err == nil {
		t.Errorf("expected error for trailing bytes")
	}
}

func TestDeserializeRejectsOversizedLength(t *testing.T) {
	// Length prefix claims 100 elements but only 2 bytes follow.
	data := append(EncodeGeneralNatural(100), 1, 2)
	var v []byte
	if err := Deserialize(data, &v); err == nil {
		t.Errorf("expected error for oversized length prefix")
	}
}

package util

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestOctetArrayZeroPadding(t *testing.T) {
	tests := []struct {
		in   []byte
		n    int
		want []byte
	}{
		{in: []byte{}, n: 4, want: []byte{}},
		{in: []byte{1}, n: 4, want: []byte{1, 0, 0, 0}},
		{in: []byte{1, 2, 3, 4}, n: 4, want: []byte{1, 2, 3, 4}},
		{in: []byte{1, 2, 3, 4, 5}, n: 4, want: []byte{1, 2, 3, 4, 5, 0, 0, 0}},
	}
	for _, tt := range tests {
		if diff := cmp.Diff(tt.want, OctetArrayZeroPadding(tt.in, tt.n)); diff != "" {
			t.Errorf("OctetArrayZeroPadding(%v, %d) mismatch (-want +got):\n%s", tt.in, tt.n, diff)
		}
	}
}

func TestWords(t *testing.T) {
	words := []uint32{0x00100093, 0xDEADBEEF}
	b := WordsToBytes(words)
	want := []byte{0x93, 0x00, 0x10, 0x00, 0xEF, 0xBE, 0xAD, 0xDE}
	if diff := cmp.Diff(want, b); diff != "" {
		t.Errorf("WordsToBytes mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(words, BytesToWords(b)); diff != "" {
		t.Errorf("BytesToWords mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]uint32{0x93, 0x0201}, BytesToWords([]byte{0x93, 0, 0, 0, 0x01, 0x02})); diff != "" {
		t.Errorf("trailing partial word mismatch (-want +got):\n%s", diff)
	}
}

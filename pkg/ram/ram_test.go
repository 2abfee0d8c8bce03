package ram

import (
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/google/go-cmp/cmp"
)

func TestWriteThenRead(t *testing.T) {
	r := NewRAM()
	for _, addr := range []uint32{0, 1, PageWords - 1, PageWords, 12345, Capacity - 1} {
		v := addr*7 + 0xA5
		if err := r.Mutate(addr, v); err != nil {
			t.Fatalf("Mutate(%#x): %v", addr, err)
		}
		got, err := r.Inspect(addr)
		if err != nil {
			t.Fatalf("Inspect(%#x): %v", addr, err)
		}
		if got != v {
			t.Errorf("Inspect(%#x) = %#x; want %#x", addr, got, v)
		}
	}
}

func TestUnwrittenReadsZero(t *testing.T) {
	r := NewRAM()
	got, err := r.Inspect(4096)
	if err != nil || got != 0 {
		t.Errorf("Inspect(4096) = %#x, %v; want 0, nil", got, err)
	}
}

func TestOutOfRange(t *testing.T) {
	r := NewRAMWithCapacity(16)
	tests := []struct {
		desc string
		run  func() error
		kind AccessKind
		addr uint64
	}{
		{desc: "read at capacity", run: func() error { _, err := r.Inspect(16); return err }, kind: Read, addr: 16},
		{desc: "read far", run: func() error { _, err := r.Inspect(0xFFFFFFFF); return err }, kind: Read, addr: 0xFFFFFFFF},
		{desc: "write at capacity", run: func() error { return r.Mutate(16, 1) }, kind: Write, addr: 16},
		{desc: "range crossing end", run: func() error { _, err := r.InspectRange(10, 7); return err }, kind: Read, addr: 16},
		{desc: "oversized load", run: func() error { return r.Load(make([]uint32, 17)) }, kind: Load, addr: 16},
	}
	for _, tt := range tests {
		t.Run(tt.desc, func(t *testing.T) {
			err := tt.run()
			if !errors.Is(err, ErrOutOfRange) {
				t.Fatalf("got %v; want ErrOutOfRange", err)
			}
			var ae *AccessError
			if !errors.As(err, &ae) {
				t.Fatalf("error %v is not an AccessError", err)
			}
			if ae.Kind != tt.kind || ae.Addr != tt.addr {
				t.Errorf("got kind=%s addr=%#x; want kind=%s addr=%#x", ae.Kind, ae.Addr, tt.kind, tt.addr)
			}
		})
	}
}

func TestLoad(t *testing.T) {
	r := NewRAMWithCapacity(4 * PageWords)
	if err := r.Mutate(100, 0xDEAD); err != nil {
		t.Fatal(err)
	}
	if err := r.Load([]uint32{1, 2, 3}); err != nil {
		t.Fatalf("Load: %v", err)
	}
	got, err := r.InspectRange(0, 4)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]uint32{1, 2, 3, 0}, got); diff != "" {
		t.Errorf("memory after load mismatch (-want +got):\n%s", diff)
	}
	if w, _ := r.Inspect(100); w != 0xDEAD {
		t.Errorf("Load disturbed word 100: got %#x", w)
	}
}

func TestDirtyPages(t *testing.T) {
	r := NewRAMWithCapacity(8 * PageWords)
	_ = r.Mutate(0, 1)
	_ = r.Mutate(3*PageWords+5, 1)
	// A zero write to a page that was never allocated leaves it clean.
	_ = r.Mutate(5*PageWords, 0)

	if diff := cmp.Diff([]uint32{0, 3}, r.DirtyPages()); diff != "" {
		t.Errorf("DirtyPages mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]uint32{0, 3}, r.Pages()); diff != "" {
		t.Errorf("Pages mismatch (-want +got):\n%s", diff)
	}

	r.ClearDirty()
	if got := r.DirtyPages(); len(got) != 0 {
		t.Errorf("DirtyPages after clear = %v", got)
	}
	_ = r.Mutate(3*PageWords, 9)
	if diff := cmp.Diff([]uint32{3}, r.DirtyPages()); diff != "" {
		t.Errorf("DirtyPages mismatch (-want +got):\n%s", diff)
	}
}

func TestRestorePage(t *testing.T) {
	r := NewRAMWithCapacity(2 * PageWords)
	words := make([]uint32, PageWords)
	words[7] = 0x42
	if err := r.RestorePage(1, words); err != nil {
		t.Fatalf("RestorePage: %v", err)
	}
	if w, _ := r.Inspect(PageWords + 7); w != 0x42 {
		t.Errorf("restored word = %#x; want 0x42", w)
	}
	if err := r.RestorePage(1, words[:3]); err == nil {
		t.Errorf("expected error for short page")
	}
	if err := r.RestorePage(2, words); !errors.Is(err, ErrOutOfRange) {
		t.Errorf("RestorePage past capacity: got %v", err)
	}
}

func TestReset(t *testing.T) {
	r := NewRAMWithCapacity(PageWords)
	_ = r.Mutate(3, 3)
	r.ClearDirty()
	r.Reset()
	if w, _ := r.Inspect(3); w != 0 {
		t.Errorf("word survived Reset: %#x", w)
	}
	if diff := cmp.Diff([]uint32{0}, r.DirtyPages()); diff != "" {
		t.Errorf("Reset should mark freed pages dirty (-want +got):\n%s", diff)
	}
}

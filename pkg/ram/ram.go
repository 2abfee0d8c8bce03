package ram

import (
	"fmt"
	"slices"

	"github.com/cockroachdb/errors"

	"github.com/alexanderKus/risc-v-emulator/pkg/bitsequence"
	"github.com/alexanderKus/risc-v-emulator/pkg/constants"
)

// Memory is word addressed: an index names a whole 32-bit cell.
const (
	PageWords = uint32(constants.MemoryPageWords)
	Capacity  = uint32(constants.MemoryCapacityWords)
)

// ErrOutOfRange is the class of every failed bounds check.
var ErrOutOfRange = errors.New("memory access out of range")

// AccessKind names the operation that touched memory.
type AccessKind int

const (
	Read AccessKind = iota
	Write
	Load
)

func (k AccessKind) String() string {
	switch k {
	case Read:
		return "read"
	case Write:
		return "write"
	case Load:
		return "load"
	default:
		return fmt.Sprintf("AccessKind(%d)", int(k))
	}
}

// AccessError reports an access outside [0, capacity).
type AccessError struct {
	Kind     AccessKind
	Addr     uint64
	Capacity uint32
}

func (e *AccessError) Error() string {
	return fmt.Sprintf("%s at word %#x outside memory of %#x words", e.Kind, e.Addr, e.Capacity)
}

func (e *AccessError) Is(target error) bool {
	return target == ErrOutOfRange
}

// RAM is a flat word memory. Storage is allocated a page at a time on first
// write; pages never written read as zero.
type RAM struct {
	capacity uint32
	pages    map[uint32][]uint32      // page number -> page content
	dirty    *bitsequence.BitSequence // pages written since the last ClearDirty
}

// NewRAM returns a zeroed memory of the default capacity.
func NewRAM() *RAM {
	return NewRAMWithCapacity(Capacity)
}

// NewRAMWithCapacity returns a zeroed memory of the given number of words.
func NewRAMWithCapacity(words uint32) *RAM {
	numPages := (uint64(words) + uint64(PageWords) - 1) / uint64(PageWords)
	return &RAM{
		capacity: words,
		pages:    make(map[uint32][]uint32),
		dirty:    bitsequence.New(int(numPages)),
	}
}

func (r *RAM) Capacity() uint32 {
	return r.capacity
}

// getPageAndOffset converts a word address to page number and offset
func getPageAndOffset(addr uint32) (pageNum uint32, offset uint32) {
	return addr / PageWords, addr % PageWords
}

func (r *RAM) getOrCreatePage(pageNum uint32) []uint32 {
	page, exists := r.pages[pageNum]
	if !exists {
		page = make([]uint32, PageWords)
		r.pages[pageNum] = page
	}
	return page
}

func (r *RAM) check(kind AccessKind, addr uint64) error {
	if addr < uint64(r.capacity) {
		return nil
	}
	return &AccessError{Kind: kind, Addr: addr, Capacity: r.capacity}
}

// Inspect returns the word at addr.
func (r *RAM) Inspect(addr uint32) (uint32, error) {
	if err := r.check(Read, uint64(addr)); err != nil {
		return 0, err
	}
	pageNum, offset := getPageAndOffset(addr)
	page, ok := r.pages[pageNum]
	if !ok {
		return 0, nil
	}
	return page[offset], nil
}

// Mutate replaces the word at addr.
func (r *RAM) Mutate(addr, word uint32) error {
	if err := r.check(Write, uint64(addr)); err != nil {
		return err
	}
	pageNum, offset := getPageAndOffset(addr)
	page, ok := r.pages[pageNum]
	if !ok {
		if word == 0 {
			return nil
		}
		page = r.getOrCreatePage(pageNum)
	}
	page[offset] = word
	r.dirty.Set(int(pageNum), true)
	return nil
}

// InspectRange returns count words starting at start.
func (r *RAM) InspectRange(start, count uint32) ([]uint32, error) {
	if count == 0 {
		return []uint32{}, nil
	}
	if err := r.check(Read, uint64(start)+uint64(count)-1); err != nil {
		return nil, err
	}
	out := make([]uint32, count)
	for i := range out {
		pageNum, offset := getPageAndOffset(start + uint32(i))
		if page, ok := r.pages[pageNum]; ok {
			out[i] = page[offset]
		}
	}
	return out, nil
}

// Load writes words[i] to address i. Memory past len(words) keeps its
// contents.
func (r *RAM) Load(words []uint32) error {
	if len(words) == 0 {
		return nil
	}
	if err := r.check(Load, uint64(len(words))-1); err != nil {
		return errors.Wrapf(err, "loading %d words", len(words))
	}
	for i, w := range words {
		if err := r.Mutate(uint32(i), w); err != nil {
			return err
		}
	}
	return nil
}

// Pages returns the numbers of all allocated pages in ascending order.
func (r *RAM) Pages() []uint32 {
	nums := make([]uint32, 0, len(r.pages))
	for n := range r.pages {
		nums = append(nums, n)
	}
	slices.Sort(nums)
	return nums
}

// Page returns the content of an allocated page, or nil. The slice aliases
// memory and must not be modified.
func (r *RAM) Page(pageNum uint32) []uint32 {
	return r.pages[pageNum]
}

// RestorePage overwrites a whole page, used when rebuilding memory from a
// snapshot.
func (r *RAM) RestorePage(pageNum uint32, words []uint32) error {
	if len(words) != int(PageWords) {
		return errors.Newf("page %d: expected %d words, got %d", pageNum, PageWords, len(words))
	}
	if err := r.check(Write, uint64(pageNum)*uint64(PageWords)); err != nil {
		return err
	}
	copy(r.getOrCreatePage(pageNum), words)
	r.dirty.Set(int(pageNum), true)
	return nil
}

// DirtyPages returns the pages written since the last ClearDirty, ascending.
func (r *RAM) DirtyPages() []uint32 {
	var nums []uint32
	for i := r.dirty.NextSet(0); i >= 0; i = r.dirty.NextSet(i + 1) {
		nums = append(nums, uint32(i))
	}
	return nums
}

func (r *RAM) ClearDirty() {
	r.dirty.Clear()
}

// Reset zeroes all memory.
func (r *RAM) Reset() {
	for n := range r.pages {
		r.dirty.Set(int(n), true)
	}
	clear(r.pages)
}

// IsZeroPage reports whether every word of a page is zero.
func IsZeroPage(words []uint32) bool {
	for _, w := range words {
		if w != 0 {
			return false
		}
	}
	return true
}

package merklizer

import (
	"encoding/binary"
	"slices"

	"golang.org/x/crypto/blake2b"

	"github.com/alexanderKus/risc-v-emulator/pkg/constants"
	"github.com/alexanderKus/risc-v-emulator/pkg/ram"
)

func Blake2bHash(data []byte) [32]byte {
	return blake2b.Sum256(data)
}

// MemoryTree keeps one leaf per non-zero memory page and refreshes only the
// pages a RAM reports dirty.
type MemoryTree struct {
	leaves map[uint32][32]byte
}

func NewMemoryTree() *MemoryTree {
	return &MemoryTree{leaves: make(map[uint32][32]byte)}
}

// Update rehashes the dirty pages of r and clears its dirty set. A tree must
// only ever be updated from the one RAM it describes.
func (t *MemoryTree) Update(r *ram.RAM) {
	for _, pageNum := range r.DirtyPages() {
		words := r.Page(pageNum)
		if words == nil || ram.IsZeroPage(words) {
			delete(t.leaves, pageNum)
			continue
		}
		t.leaves[pageNum] = leafHash(PageBlob(pageNum, words), Blake2bHash)
	}
	r.ClearDirty()
}

// Reset drops every leaf.
func (t *MemoryTree) Reset() {
	clear(t.leaves)
}

func (t *MemoryTree) pages() []uint32 {
	nums := make([]uint32, 0, len(t.leaves))
	for n := range t.leaves {
		nums = append(nums, n)
	}
	slices.Sort(nums)
	return nums
}

// blobs is the register leaf followed by the page leaves in page order.
func (t *MemoryTree) blobs(pc uint32, regs [constants.NumRegisters]uint32) ([][]byte, []uint32) {
	pages := t.pages()
	regsLeaf := leafHash(RegistersBlob(pc, regs), Blake2bHash)
	blobs := make([][]byte, 0, 1+len(pages))
	blobs = append(blobs, regsLeaf[:])
	for _, n := range pages {
		leaf := t.leaves[n]
		blobs = append(blobs, leaf[:])
	}
	return blobs, pages
}

// StateRoot commits to pc, x0..x31 and every non-zero memory page.
func (t *MemoryTree) StateRoot(pc uint32, regs [constants.NumRegisters]uint32) [32]byte {
	blobs, _ := t.blobs(pc, regs)
	return [32]byte(node(blobs, Blake2bHash))
}

// PageProof returns the leaf position and trace that tie a page to the state
// root. ok is false for a page that holds no non-zero word.
func (t *MemoryTree) PageProof(pc uint32, regs [constants.NumRegisters]uint32, pageNum uint32) (index, count int, trace [][32]byte, ok bool) {
	blobs, pages := t.blobs(pc, regs)
	pos, found := slices.BinarySearch(pages, pageNum)
	if !found {
		return 0, 0, nil, false
	}
	index = pos + 1
	return index, len(blobs), byteSliceToHashSlice(Trace(blobs, index, Blake2bHash)), true
}

// VerifyPage checks a page against a state root using a proof from PageProof.
func VerifyPage(root [32]byte, pageNum uint32, words []uint32, index, count int, trace [][32]byte) bool {
	leaf := leafHash(PageBlob(pageNum, words), Blake2bHash)
	got, ok := rootFromTrace(leaf[:], index, count, hashSliceToByteSlice(trace), Blake2bHash)
	if !ok {
		return false
	}
	return [32]byte(got) == root
}

// RegistersBlob is LE(pc) followed by LE(x0)..LE(x31).
func RegistersBlob(pc uint32, regs [constants.NumRegisters]uint32) []byte {
	buf := make([]byte, 4*(1+constants.NumRegisters))
	binary.LittleEndian.PutUint32(buf, pc)
	for i, r := range regs {
		binary.LittleEndian.PutUint32(buf[4*(i+1):], r)
	}
	return buf
}

// PageBlob is BE(page number) followed by the page words in little endian.
func PageBlob(pageNum uint32, words []uint32) []byte {
	buf := make([]byte, 4+4*len(words))
	binary.BigEndian.PutUint32(buf, pageNum)
	for i, w := range words {
		binary.LittleEndian.PutUint32(buf[4+4*i:], w)
	}
	return buf
}

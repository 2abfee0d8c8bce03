package merklizer

import (
	"bytes"
)

func node(blobs [][]byte, hash func([]byte) [32]byte) []byte {
	if len(blobs) == 0 {
		return make([]byte, 32) // Creates a zero-filled byte slice of length 32
	}
	if len(blobs) == 1 {
		return blobs[0]
	}
	// Split at midpoint (ceiling of length/2)
	mid := (len(blobs) + 1) / 2

	leftHalf := node(blobs[:mid], hash)
	rightHalf := node(blobs[mid:], hash)

	return hashNode(leftHalf, rightHalf, hash)
}

// hashNode is H($node ⌢ left ⌢ right).
func hashNode(left, right []byte, hash func([]byte) [32]byte) []byte {
	var buffer bytes.Buffer
	buffer.Write([]byte("node"))
	buffer.Write(left)
	buffer.Write(right)
	hashResult := hash(buffer.Bytes())
	return hashResult[:]
}

// Trace returns the sibling of every subtree on the path from the root down to
// blobs[index], root level first.
func Trace(blobs [][]byte, index int, hash func([]byte) [32]byte) [][]byte {
	if len(blobs) <= 1 {
		return [][]byte{}
	}

	mid := (len(blobs) + 1) / 2

	if index < mid {
		rightHalf := node(blobs[mid:], hash)
		subTrace := Trace(blobs[:mid], index, hash)
		return append([][]byte{rightHalf}, subTrace...)
	}
	leftHalf := node(blobs[:mid], hash)
	subTrace := Trace(blobs[mid:], index-mid, hash)
	return append([][]byte{leftHalf}, subTrace...)
}

// rootFromTrace rebuilds the root of a count-leaf tree from one leaf and the
// output of Trace for its index. ok is false when the trace has the wrong
// length for count.
func rootFromTrace(leaf []byte, index, count int, trace [][]byte, hash func([]byte) [32]byte) (root []byte, ok bool) {
	if count <= 1 {
		return leaf, len(trace) == 0
	}
	if len(trace) == 0 {
		return nil, false
	}
	mid := (count + 1) / 2
	sibling := trace[0]
	if index < mid {
		left, ok := rootFromTrace(leaf, index, mid, trace[1:], hash)
		if !ok {
			return nil, false
		}
		return hashNode(left, sibling, hash), true
	}
	right, ok := rootFromTrace(leaf, index-mid, count-mid, trace[1:], hash)
	if !ok {
		return nil, false
	}
	return hashNode(sibling, right, hash), true
}

func leafHash(blob []byte, hash func([]byte) [32]byte) [32]byte {
	return hash(append([]byte("leaf"), blob...))
}

func hashSliceToByteSlice(fixed [][32]byte) [][]byte {
	result := make([][]byte, len(fixed))
	for i, f := range fixed {
		result[i] = f[:]
	}
	return result
}

func byteSliceToHashSlice(bytes [][]byte) [][32]byte {
	result := make([][32]byte, len(bytes))
	for i, b := range bytes {
		copy(result[i][:], b)
	}
	return result
}

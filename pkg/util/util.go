package util

import "encoding/binary"

func OctetArrayZeroPadding(x []byte, n int) []byte {
	length := len(x)
	paddingSize := (n - (length % n)) % n
	result := make([]byte, length+paddingSize)
	copy(result, x)
	return result
}

// WordsToBytes lays words out little endian, four octets each.
func WordsToBytes(words []uint32) []byte {
	out := make([]byte, 4*len(words))
	for i, w := range words {
		binary.LittleEndian.PutUint32(out[4*i:], w)
	}
	return out
}

// BytesToWords reads little-endian words. A trailing partial word is zero
// padded.
func BytesToWords(b []byte) []uint32 {
	padded := OctetArrayZeroPadding(b, 4)
	words := make([]uint32, len(padded)/4)
	for i := range words {
		words[i] = binary.LittleEndian.Uint32(padded[4*i:])
	}
	return words
}

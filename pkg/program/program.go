// Package program reads flat RV32I images: little-endian 32-bit words loaded
// from address 0, with no header.
package program

import (
	"os"

	"github.com/cockroachdb/errors"

	"github.com/alexanderKus/risc-v-emulator/pkg/constants"
	"github.com/alexanderKus/risc-v-emulator/pkg/rv32i"
	"github.com/alexanderKus/risc-v-emulator/pkg/util"
)

// ErrImageTooLarge is returned for images that do not fit in memory. It is
// marked as a usage error.
var ErrImageTooLarge = errors.New("image exceeds memory capacity")

// Decode turns an image into words. Trailing bytes that do not fill a word
// become a final zero-padded word.
func Decode(data []byte) ([]uint32, error) {
	if len(data) > constants.MaxImageBytes {
		return nil, errors.Mark(
			errors.Wrapf(ErrImageTooLarge, "%d bytes, limit %d", len(data), constants.MaxImageBytes),
			rv32i.ErrUsage)
	}
	return util.BytesToWords(data), nil
}

func ReadFile(path string) ([]uint32, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Mark(errors.Wrapf(err, "read image %s", path), rv32i.ErrUsage)
	}
	words, err := Decode(data)
	if err != nil {
		return nil, errors.Wrapf(err, "image %s", path)
	}
	return words, nil
}

// Load reads the image at path into m.
func Load(m *rv32i.Machine, path string) error {
	words, err := ReadFile(path)
	if err != nil {
		return err
	}
	return m.LoadProgram(words)
}

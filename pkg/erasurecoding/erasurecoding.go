package erasurecoding

import (
	"bytes"

	"github.com/cockroachdb/errors"
	"github.com/klauspost/reedsolomon"
)

// Encode splits data into dataShards equally sized shards, zero padding the
// last one, and appends parityShards recovery shards.
func Encode(data []byte, dataShards, parityShards int) ([][]byte, error) {
	enc, err := reedsolomon.New(dataShards, parityShards)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create Reed-Solomon encoder")
	}

	// Split pads into spare capacity of its argument, so hand it a copy.
	buf := make([]byte, len(data), len(data)+dataShards)
	copy(buf, data)
	if len(buf) == 0 {
		buf = append(buf, 0)
	}

	shards, err := enc.Split(buf)
	if err != nil {
		return nil, errors.Wrap(err, "failed to split data")
	}
	if err := enc.Encode(shards); err != nil {
		return nil, errors.Wrap(err, "failed to encode parity")
	}
	return shards, nil
}

// Reconstruct rebuilds the shards that are nil and returns the first size
// bytes of the joined data shards. The parity count is len(shards)-dataShards.
func Reconstruct(shards [][]byte, dataShards, size int) ([]byte, error) {
	parityShards := len(shards) - dataShards
	if parityShards < 0 {
		return nil, errors.Newf("got %d shards, need at least %d", len(shards), dataShards)
	}
	enc, err := reedsolomon.New(dataShards, parityShards)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create Reed-Solomon encoder")
	}

	missing := false
	for _, s := range shards {
		if s == nil {
			missing = true
			break
		}
	}
	if missing {
		if err := enc.ReconstructData(shards); err != nil {
			return nil, errors.Wrap(err, "failed to reconstruct data")
		}
	}

	var out bytes.Buffer
	if err := enc.Join(&out, shards, size); err != nil {
		return nil, errors.Wrap(err, "failed to join shards")
	}
	return out.Bytes(), nil
}

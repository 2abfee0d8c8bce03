package staterepository

import (
	"encoding/binary"

	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/pebble"
	"golang.org/x/crypto/blake2b"

	"github.com/alexanderKus/risc-v-emulator/pkg/constants"
	"github.com/alexanderKus/risc-v-emulator/pkg/erasurecoding"
	"github.com/alexanderKus/risc-v-emulator/pkg/serializer"
	"github.com/alexanderKus/risc-v-emulator/pkg/types"
)

var (
	snapshotPrefix = []byte("snap:")
	shardPrefix    = []byte("shard:")
)

// snapshotHeader is stored under the snapshot key. The pages are stored
// erasure coded under one shard key each.
type snapshotHeader struct {
	PC          uint32
	Registers   [constants.NumRegisters]uint32
	Status      types.ExitStatus
	StateRoot   [32]byte
	PayloadSize uint64
	DataShards  uint8
	ShardHashes [][32]byte
}

// snapshotKey is prefix || imageHash || BE(step) so that one image's snapshots
// iterate in step order.
func snapshotKey(h types.ImageHash, step uint64) []byte {
	key := make([]byte, 0, len(snapshotPrefix)+32+8)
	key = append(key, snapshotPrefix...)
	key = append(key, h[:]...)
	return binary.BigEndian.AppendUint64(key, step)
}

func shardKey(h types.ImageHash, step uint64, index int) []byte {
	key := make([]byte, 0, len(shardPrefix)+32+8+1)
	key = append(key, shardPrefix...)
	key = append(key, h[:]...)
	key = binary.BigEndian.AppendUint64(key, step)
	return append(key, byte(index))
}

// imageBounds covers every snapshot key of h.
func imageBounds(h types.ImageHash) *pebble.IterOptions {
	lower := append(append([]byte{}, snapshotPrefix...), h[:]...)
	upper := append(append([]byte{}, lower...), 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF)
	return &pebble.IterOptions{LowerBound: lower, UpperBound: upper}
}

// SaveSnapshot stores s, replacing any snapshot of the same image and step.
func (r *PebbleStateRepository) SaveSnapshot(s Snapshot) error {
	payload := serializer.Serialize(s.Pages)
	shards, err := erasurecoding.Encode(payload, constants.SnapshotDataShards, constants.SnapshotParityShards)
	if err != nil {
		return errors.Wrap(err, "encode snapshot pages")
	}

	header := snapshotHeader{
		PC:          s.PC,
		Registers:   s.Registers,
		Status:      s.Status,
		StateRoot:   s.StateRoot,
		PayloadSize: uint64(len(payload)),
		DataShards:  uint8(constants.SnapshotDataShards),
		ShardHashes: make([][32]byte, len(shards)),
	}
	for i, shard := range shards {
		header.ShardHashes[i] = blake2b.Sum256(shard)
	}

	return r.write(func(b *pebble.Batch) error {
		if err := b.Set(snapshotKey(s.ImageHash, s.Step), serializer.Serialize(header), nil); err != nil {
			return err
		}
		for i, shard := range shards {
			if err := b.Set(shardKey(s.ImageHash, s.Step, i), shard, nil); err != nil {
				return err
			}
		}
		return nil
	})
}

// GetSnapshot loads the snapshot of image h taken at step. Shards that are
// missing or fail their hash are rebuilt from the others.
func (r *PebbleStateRepository) GetSnapshot(h types.ImageHash, step uint64) (Snapshot, bool, error) {
	data, found, err := r.getCopy(snapshotKey(h, step))
	if err != nil || !found {
		return Snapshot{}, found, err
	}

	var header snapshotHeader
	if err := serializer.Deserialize(data, &header); err != nil {
		return Snapshot{}, false, errors.Wrapf(err, "decode snapshot header %s/%d", h, step)
	}

	shards := make([][]byte, len(header.ShardHashes))
	for i := range shards {
		shard, ok, err := r.getCopy(shardKey(h, step, i))
		if err != nil {
			return Snapshot{}, false, err
		}
		if ok && blake2b.Sum256(shard) == header.ShardHashes[i] {
			shards[i] = shard
		}
	}
	payload, err := erasurecoding.Reconstruct(shards, int(header.DataShards), int(header.PayloadSize))
	if err != nil {
		return Snapshot{}, false, errors.Wrapf(err, "snapshot %s/%d", h, step)
	}

	s := Snapshot{
		ImageHash: h,
		Step:      step,
		PC:        header.PC,
		Registers: header.Registers,
		Status:    header.Status,
		StateRoot: header.StateRoot,
	}
	if err := serializer.Deserialize(payload, &s.Pages); err != nil {
		return Snapshot{}, false, errors.Wrapf(err, "decode snapshot pages %s/%d", h, step)
	}
	return s, true, nil
}

// ListSnapshots returns the steps at which image h has snapshots, ascending.
func (r *PebbleStateRepository) ListSnapshots(h types.ImageHash) ([]uint64, error) {
	iter, err := r.NewIter(imageBounds(h))
	if err != nil {
		return nil, err
	}
	defer iter.Close()

	var steps []uint64
	for iter.First(); iter.Valid(); iter.Next() {
		steps = append(steps, stepOf(iter.Key()))
	}
	return steps, nil
}

// LatestSnapshot returns the snapshot of image h with the highest step.
func (r *PebbleStateRepository) LatestSnapshot(h types.ImageHash) (Snapshot, bool, error) {
	iter, err := r.NewIter(imageBounds(h))
	if err != nil {
		return Snapshot{}, false, err
	}
	if !iter.Last() {
		return Snapshot{}, false, iter.Close()
	}
	step := stepOf(iter.Key())
	if err := iter.Close(); err != nil {
		return Snapshot{}, false, err
	}
	return r.GetSnapshot(h, step)
}

func (r *PebbleStateRepository) DeleteSnapshot(h types.ImageHash, step uint64) error {
	data, found, err := r.getCopy(snapshotKey(h, step))
	if err != nil || !found {
		return err
	}
	var header snapshotHeader
	if err := serializer.Deserialize(data, &header); err != nil {
		return errors.Wrapf(err, "decode snapshot header %s/%d", h, step)
	}
	return r.write(func(b *pebble.Batch) error {
		for i := range header.ShardHashes {
			if err := b.Delete(shardKey(h, step, i), nil); err != nil {
				return err
			}
		}
		return b.Delete(snapshotKey(h, step), nil)
	})
}

func stepOf(key []byte) uint64 {
	return binary.BigEndian.Uint64(key[len(key)-8:])
}

// PruneSnapshots deletes all but the keep most recent snapshots of image h
// and returns how many it deleted. keep <= 0 keeps everything.
func (r *PebbleStateRepository) PruneSnapshots(h types.ImageHash, keep int) (int, error) {
	if keep <= 0 {
		return 0, nil
	}
	steps, err := r.ListSnapshots(h)
	if err != nil {
		return 0, err
	}
	if len(steps) <= keep {
		return 0, nil
	}
	stale := steps[:len(steps)-keep]
	for _, step := range stale {
		if err := r.DeleteSnapshot(h, step); err != nil {
			return 0, errors.Wrapf(err, "delete snapshot %s/%d", h, step)
		}
	}
	return len(stale), nil
}

// SaveAndPrune stores s and prunes its image down to the keep most recent
// snapshots in a single commit, so a reader never sees the new snapshot
// without the pruning or the other way round.
func (r *PebbleStateRepository) SaveAndPrune(s Snapshot, keep int) (int, error) {
	tx, err := r.BeginTransaction()
	if err != nil {
		return 0, err
	}
	defer tx.Close()

	if err := tx.SaveSnapshot(s); err != nil {
		return 0, err
	}
	pruned, err := tx.PruneSnapshots(s.ImageHash, keep)
	if err != nil {
		return 0, err
	}
	if err := tx.CommitTransaction(); err != nil {
		return 0, errors.Wrap(err, "commit snapshot")
	}
	return pruned, nil
}

// Package blockcache provides a single-slot write-back cache over a block
// device, and [Sector], the byte-range view of it that the FAT engine uses.
//
// Exactly one block is held in memory at a time. Modifications stay in memory
// until either a different block is requested or the cache is flushed
// explicitly. Callers must call Flush() before discarding the cache, otherwise
// the last modification may be lost.
//
// All block indices begin at 0.
package blockcache

import (
	"fmt"

	"github.com/dargueta/fatstream"
	"github.com/dargueta/fatstream/errors"
	c "github.com/dargueta/fatstream/file_systems/common"
	log "github.com/sirupsen/logrus"
)

const (
	MinBytesPerBlock = 512
	MaxBytesPerBlock = 4096
)

// FetchBlockCallback is a pointer to a function that writes the contents of a
// single block from the backing storage into `buffer`. The following guarantees
// apply:
//
// - `blockIndex` is in the range [0, TotalBlocks).
// - `buffer` is always BytesPerBlock bytes.
type FetchBlockCallback func(blockIndex c.LogicalBlock, buffer []byte) error

// FlushBlockCallback is a pointer to a function that writes the contents of the
// given buffer to a block in the backing storage. All restrictions and
// guarantees in [FetchBlockCallback] apply here too.
type FlushBlockCallback func(blockIndex c.LogicalBlock, buffer []byte) error

type BlockCache struct {
	fetch         FetchBlockCallback
	flush         FlushBlockCallback
	bytesPerBlock uint
	totalBlocks   uint
	cachedBlock   c.LogicalBlock
	dirty         bool
	data          []byte
}

// New creates a new BlockCache holding nothing. `bytesPerBlock` must be a power
// of two in [MinBytesPerBlock, MaxBytesPerBlock].
func New(
	bytesPerBlock uint,
	totalBlocks uint,
	fetchCb FetchBlockCallback,
	flushCb FlushBlockCallback,
) (*BlockCache, error) {
	if bytesPerBlock < MinBytesPerBlock ||
		bytesPerBlock > MaxBytesPerBlock ||
		bytesPerBlock&(bytesPerBlock-1) != 0 {
		return nil, errors.NewWithMessage(
			errors.BadBlockSize,
			fmt.Sprintf(
				"block size must be a power of 2 in [%d, %d], got %d",
				MinBytesPerBlock,
				MaxBytesPerBlock,
				bytesPerBlock,
			),
		)
	}

	return &BlockCache{
		fetch:         fetchCb,
		flush:         flushCb,
		bytesPerBlock: bytesPerBlock,
		totalBlocks:   totalBlocks,
		cachedBlock:   c.InvalidLogicalBlock,
		data:          make([]byte, bytesPerBlock),
	}, nil
}

// WrapDevice creates a [BlockCache] on top of a block device. Errors from the
// device that don't already carry a code are reported as [errors.ReadError] or
// [errors.WriteError].
func WrapDevice(device fatstream.BlockDevice) (*BlockCache, error) {
	fetchCb := func(block c.LogicalBlock, buffer []byte) error {
		return errors.Ensure(errors.ReadError, device.ReadBlock(block, buffer))
	}
	flushCb := func(block c.LogicalBlock, buffer []byte) error {
		return errors.Ensure(errors.WriteError, device.WriteBlock(block, buffer))
	}
	return New(device.BlockSize(), device.BlockCount(), fetchCb, flushCb)
}

// BytesPerBlock returns the size of a single block, in bytes.
func (cache *BlockCache) BytesPerBlock() uint {
	return cache.bytesPerBlock
}

// TotalBlocks returns the number of blocks on the backing storage.
func (cache *BlockCache) TotalBlocks() uint {
	return cache.totalBlocks
}

// CachedBlock returns the index of the block currently held, or
// [c.InvalidLogicalBlock] if nothing has been loaded yet.
func (cache *BlockCache) CachedBlock() c.LogicalBlock {
	return cache.cachedBlock
}

// IsDirty returns true if the cached block has modifications that haven't been
// written back yet.
func (cache *BlockCache) IsDirty() bool {
	return cache.dirty
}

// Get returns a read-only view of block `index`, loading it first if needed.
//
// The returned slice aliases the cache's storage and is only valid until the
// next call on the cache.
func (cache *BlockCache) Get(index c.LogicalBlock) ([]byte, error) {
	err := cache.sync(index)
	if err != nil {
		return nil, err
	}
	return cache.data, nil
}

// GetMut is like [BlockCache.Get] but marks the block dirty, so that it will be
// written back on eviction or Flush().
func (cache *BlockCache) GetMut(index c.LogicalBlock) ([]byte, error) {
	err := cache.sync(index)
	if err != nil {
		return nil, err
	}
	cache.dirty = true
	return cache.data, nil
}

// Flush writes the cached block to storage if it's dirty. The block stays
// cached. Flushing a clean cache does nothing.
func (cache *BlockCache) Flush() error {
	if !cache.dirty {
		return nil
	}

	log.Tracef("blockcache: writing back block %d", cache.cachedBlock)
	err := cache.flush(cache.cachedBlock, cache.data)
	if err != nil {
		return err
	}
	cache.dirty = false
	return nil
}

// Invalidate flushes the cached block and then forgets it, forcing the next
// access to reload from storage.
func (cache *BlockCache) Invalidate() error {
	err := cache.Flush()
	if err != nil {
		return err
	}
	cache.cachedBlock = c.InvalidLogicalBlock
	return nil
}

// sync makes `index` the cached block. If a different block is cached and
// dirty, it's written back first. If writing back fails, the old block stays
// cached and dirty.
func (cache *BlockCache) sync(index c.LogicalBlock) error {
	if uint(index) >= cache.totalBlocks {
		return errors.NewWithMessage(
			errors.OutOfRange,
			fmt.Sprintf(
				"invalid block number: %d not in range [0, %d)",
				index,
				cache.totalBlocks,
			),
		)
	}

	if index == cache.cachedBlock {
		return nil
	}

	err := cache.Flush()
	if err != nil {
		return err
	}

	log.Tracef("blockcache: evicting block %d for %d", cache.cachedBlock, index)
	err = cache.fetch(index, cache.data)
	if err != nil {
		// The buffer contents are unspecified now, so nothing is cached.
		cache.cachedBlock = c.InvalidLogicalBlock
		return err
	}

	cache.cachedBlock = index
	return nil
}

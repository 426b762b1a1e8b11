package blockcache

import (
	"fmt"
	"sync"

	"github.com/dargueta/fatstream/errors"
	c "github.com/dargueta/fatstream/file_systems/common"
)

// Sector gives byte-range access to blocks through a [BlockCache]. It's the
// only path the allocation table and streams use to reach the device.
//
// Sector is not safe for concurrent use. It holds a guard for the duration of
// every operation, and trying to enter while the guard is held (from another
// goroutine, or re-entrantly from a fetch/flush callback) panics instead of
// blocking.
type Sector struct {
	guard sync.Mutex
	cache *BlockCache
}

func NewSector(cache *BlockCache) *Sector {
	return &Sector{cache: cache}
}

// Cache returns the cache this view sits on.
func (sector *Sector) Cache() *BlockCache {
	return sector.cache
}

// BytesPerSector returns the size of one sector, in bytes.
func (sector *Sector) BytesPerSector() uint {
	return sector.cache.BytesPerBlock()
}

func (sector *Sector) acquire() {
	if !sector.guard.TryLock() {
		panic("blockcache: sector accessed while another operation is in progress")
	}
}

func (sector *Sector) checkRange(index c.LogicalBlock, offset uint, length int) error {
	if offset+uint(length) > sector.cache.BytesPerBlock() {
		return errors.NewWithMessage(
			errors.OutOfRange,
			fmt.Sprintf(
				"can't access %d bytes at offset %d of block %d; block is %d bytes",
				length,
				offset,
				index,
				sector.cache.BytesPerBlock(),
			),
		)
	}
	return nil
}

// Read copies len(buffer) bytes from block `index`, beginning at byte `offset`,
// into `buffer`. The range must not cross the end of the block.
func (sector *Sector) Read(index c.LogicalBlock, offset uint, buffer []byte) error {
	sector.acquire()
	defer sector.guard.Unlock()

	err := sector.checkRange(index, offset, len(buffer))
	if err != nil {
		return err
	}

	data, err := sector.cache.Get(index)
	if err != nil {
		return err
	}
	copy(buffer, data[offset:])
	return nil
}

// Write copies `buffer` into block `index` beginning at byte `offset`, and
// marks the block dirty. The range must not cross the end of the block.
func (sector *Sector) Write(index c.LogicalBlock, offset uint, buffer []byte) error {
	sector.acquire()
	defer sector.guard.Unlock()

	err := sector.checkRange(index, offset, len(buffer))
	if err != nil {
		return err
	}

	data, err := sector.cache.GetMut(index)
	if err != nil {
		return err
	}
	copy(data[offset:], buffer)
	return nil
}

// Flush writes back the cached block if it's dirty.
func (sector *Sector) Flush() error {
	sector.acquire()
	defer sector.guard.Unlock()
	return sector.cache.Flush()
}

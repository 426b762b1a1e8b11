// Package testing contains fixtures shared by the tests of every package in
// this module. Import it under another name, e.g. `fattest`.
package testing

import (
	"crypto/rand"
	"fmt"
	"testing"

	"github.com/dargueta/fatstream/errors"
	c "github.com/dargueta/fatstream/file_systems/common"
	"github.com/dargueta/fatstream/file_systems/common/blockcache"
	"github.com/dargueta/fatstream/file_systems/common/blockdevice"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Create an image with the given number of blocks and bytes per block. It is
// guaranteed to either return a valid slice or fail the test and abort.
func CreateRandomImage(bytesPerBlock, totalBlocks uint, t *testing.T) []byte {
	backingData := make([]byte, bytesPerBlock*totalBlocks)

	_, err := rand.Read(backingData)
	require.NoErrorf(
		t,
		err,
		"failed to initialize %d blocks of size %d with random bytes",
		totalBlocks,
		bytesPerBlock,
	)
	return backingData
}

// CreateMemoryDevice creates an in-memory block device. If `backingData` is nil
// the device is filled with random bytes. Writes to the device modify
// `backingData` in place.
func CreateMemoryDevice(
	bytesPerBlock,
	totalBlocks uint,
	backingData []byte,
	t *testing.T,
) *blockdevice.StreamDevice {
	if backingData == nil {
		backingData = CreateRandomImage(bytesPerBlock, totalBlocks, t)
	}
	require.EqualValues(
		t,
		bytesPerBlock*totalBlocks,
		len(backingData),
		"backing data is the wrong size",
	)

	device, err := blockdevice.NewMemoryFromBytes(backingData, bytesPerBlock)
	require.NoError(t, err, "failed to create memory device")
	return device
}

// CacheCallCounts records how many times each callback of a cache created by
// [CreateDefaultCache] was invoked, and with which blocks.
type CacheCallCounts struct {
	Fetched []c.LogicalBlock
	Flushed []c.LogicalBlock
}

// CreateDefaultCache creates a block cache with fetch/flush handlers over a
// byte slice.
//
// Arguments:
//
//   - bytesPerBlock: The number of bytes in a single block.
//   - totalBlocks: The number of blocks in the image.
//   - writable: `true` if the image is writable, `false` otherwise. The handler
//     will fail a test if an attempt is made to write to the image if this is
//     false.
//   - backingData: Optional. A byte slice of exactly `bytesPerBlock * totalBlocks`
//     that is used as the underlying storage the cache sits on top of. You can
//     pass `nil` for this to get completely random data.
//   - `t`: The testing fixture.
//
// The fetch and flush handlers check bounds and permissions for you, and fail
// the test with an appropriate error message. The returned [CacheCallCounts]
// is updated on every callback invocation.
func CreateDefaultCache(
	bytesPerBlock,
	totalBlocks uint,
	writable bool,
	backingData []byte,
	t *testing.T,
) (*blockcache.BlockCache, *CacheCallCounts) {
	if backingData == nil {
		backingData = CreateRandomImage(bytesPerBlock, totalBlocks, t)
	}
	counts := &CacheCallCounts{}

	fetchCallback := func(blockIndex c.LogicalBlock, buffer []byte) error {
		counts.Fetched = append(counts.Fetched, blockIndex)
		if blockIndex >= c.LogicalBlock(totalBlocks) {
			message := fmt.Sprintf(
				"attempted to read outside bounds: block %d not in [0, %d)",
				blockIndex,
				totalBlocks,
			)
			t.Error(message)
			return errors.NewWithMessage(errors.ReadError, message)
		}

		start := uint(blockIndex) * bytesPerBlock
		copy(buffer, backingData[start:start+bytesPerBlock])
		return nil
	}

	var flushCallback blockcache.FlushBlockCallback
	if writable {
		flushCallback = func(blockIndex c.LogicalBlock, buffer []byte) error {
			counts.Flushed = append(counts.Flushed, blockIndex)
			if blockIndex >= c.LogicalBlock(totalBlocks) {
				message := fmt.Sprintf(
					"attempted to write outside bounds: %d not in [0, %d)",
					blockIndex,
					totalBlocks,
				)
				t.Error(message)
				return errors.NewWithMessage(errors.WriteError, message)
			}

			start := uint(blockIndex) * bytesPerBlock
			copy(backingData[start:start+bytesPerBlock], buffer)
			return nil
		}
	} else {
		flushCallback = func(blockIndex c.LogicalBlock, buffer []byte) error {
			counts.Flushed = append(counts.Flushed, blockIndex)
			message := fmt.Sprintf(
				"attempted to write %d bytes to block %d of read-only image",
				len(buffer),
				blockIndex,
			)
			t.Error(message)
			return errors.NewWithMessage(errors.WriteError, message)
		}
	}

	cache, err := blockcache.New(bytesPerBlock, totalBlocks, fetchCallback, flushCallback)
	require.NoError(t, err, "failed to create cache")
	assert.EqualValues(t, bytesPerBlock, cache.BytesPerBlock(), "wrong bytes per block")
	assert.EqualValues(t, totalBlocks, cache.TotalBlocks(), "wrong total blocks")
	return cache, counts
}

// Package fatstream is an embedded engine for FAT12, FAT16, and FAT32 volumes.
// It turns cluster chains on a raw block device into seekable byte streams.
//
// The pieces are layered bottom-up:
//
//   - [BlockDevice] is the raw storage, addressed in whole blocks.
//   - blockcache.BlockCache keeps exactly one block in memory, written back
//     lazily when a different block is requested.
//   - blockcache.Sector is the byte-range view on top of the cache used by
//     everything else.
//   - fat.Table reads and writes allocation table entries and manipulates
//     cluster chains.
//   - fat.Stream, fat.File, and fat.DirIterator are the byte-level consumers.
package fatstream

import (
	c "github.com/dargueta/fatstream/file_systems/common"
)

// BlockDevice is the interface for raw storage that can only be read from or
// written to in whole blocks.
//
// Implementations must satisfy the following:
//
//   - `buffer` is always exactly BlockSize() bytes.
//   - `index` may be out of range; implementations must reject it rather than
//     wrap around or extend the device.
//   - A failed read leaves the contents of `buffer` unspecified.
type BlockDevice interface {
	// BlockSize gives the size of a single block, in bytes.
	BlockSize() uint
	// BlockCount gives the total number of addressable blocks on the device.
	BlockCount() uint
	ReadBlock(index c.LogicalBlock, buffer []byte) error
	WriteBlock(index c.LogicalBlock, buffer []byte) error
}

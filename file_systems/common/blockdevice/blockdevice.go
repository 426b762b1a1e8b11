// Package blockdevice provides implementations of [fatstream.BlockDevice] on
// top of ordinary byte streams.
package blockdevice

import (
	"fmt"
	"io"

	"github.com/dargueta/fatstream/errors"
	c "github.com/dargueta/fatstream/file_systems/common"
)

// StreamDevice is an abstraction layer around a stream to make it look like a
// block device, e.g. a file that can only be read from or written to in
// multiples of its fundamental unit, a "block".
type StreamDevice struct {
	// startOffset is an offset from the beginning of the stream, in bytes, that
	// will be considered the beginning of block 0 for the device. This is useful
	// for skipping over MBRs or other volumes stored on the same image.
	startOffset   int64
	bytesPerBlock uint
	totalBlocks   uint
	stream        io.ReadWriteSeeker
}

// NewStreamDevice creates a block device over `stream`. Block 0 begins at byte
// `startOffset` of the stream.
func NewStreamDevice(
	stream io.ReadWriteSeeker,
	bytesPerBlock uint,
	totalBlocks uint,
	startOffset int64,
) (*StreamDevice, error) {
	if bytesPerBlock == 0 {
		return nil, errors.NewWithMessage(
			errors.BadBlockSize, "block size must be nonzero")
	}
	if startOffset < 0 {
		return nil, errors.NewWithMessage(
			errors.OutOfRange,
			fmt.Sprintf("start offset must be non-negative, got %d", startOffset),
		)
	}

	return &StreamDevice{
		startOffset:   startOffset,
		bytesPerBlock: bytesPerBlock,
		totalBlocks:   totalBlocks,
		stream:        stream,
	}, nil
}

// DetermineBlockCount gives the total number of blocks in a stream after
// `startOffset`, rounded down to the nearest block.
func DetermineBlockCount(stream io.Seeker, blockSize uint, startOffset int64) (uint, error) {
	offset, err := stream.Seek(0, io.SeekEnd)
	if err != nil {
		return 0, errors.NewFromError(errors.ReadError, err)
	}
	if offset <= startOffset {
		return 0, nil
	}
	return uint((offset - startOffset) / int64(blockSize)), nil
}

func (device *StreamDevice) BlockSize() uint {
	return device.bytesPerBlock
}

func (device *StreamDevice) BlockCount() uint {
	return device.totalBlocks
}

// StartOffset gives the byte offset of block 0 in the underlying stream.
func (device *StreamDevice) StartOffset() int64 {
	return device.startOffset
}

// BlockToStreamOffset converts a block index into a byte offset into the
// backing I/O stream.
func (device *StreamDevice) BlockToStreamOffset(index c.LogicalBlock) (int64, error) {
	if uint(index) >= device.totalBlocks {
		return -1,
			errors.NewWithMessage(
				errors.OutOfRange,
				fmt.Sprintf(
					"invalid block number: %d not in range [0, %d)",
					index,
					device.totalBlocks,
				),
			)
	}
	return device.startOffset + (int64(index) * int64(device.bytesPerBlock)), nil
}

// checkBuffer verifies the caller passed exactly one block's worth of buffer.
func (device *StreamDevice) checkBuffer(buffer []byte) error {
	if uint(len(buffer)) != device.bytesPerBlock {
		return errors.NewWithMessage(
			errors.BadBlockSize,
			fmt.Sprintf(
				"buffer must be exactly %d bytes, got %d",
				device.bytesPerBlock,
				len(buffer),
			),
		)
	}
	return nil
}

// seekToBlock positions the stream pointer at the byte offset where the given
// block starts.
func (device *StreamDevice) seekToBlock(index c.LogicalBlock) error {
	offset, err := device.BlockToStreamOffset(index)
	if err != nil {
		return err
	}
	_, err = device.stream.Seek(offset, io.SeekStart)
	return err
}

// ReadBlock reads a single whole block. A short read is treated as a failure.
func (device *StreamDevice) ReadBlock(index c.LogicalBlock, buffer []byte) error {
	err := device.checkBuffer(buffer)
	if err != nil {
		return err
	}

	err = device.seekToBlock(index)
	if err != nil {
		return errors.Ensure(errors.ReadError, err)
	}

	_, err = io.ReadFull(device.stream, buffer)
	if err != nil {
		return errors.NewFromError(
			errors.ReadError,
			fmt.Errorf("block %d: %w", index, err),
		)
	}
	return nil
}

// WriteBlock writes a single whole block.
func (device *StreamDevice) WriteBlock(index c.LogicalBlock, buffer []byte) error {
	err := device.checkBuffer(buffer)
	if err != nil {
		return err
	}

	err = device.seekToBlock(index)
	if err != nil {
		return errors.Ensure(errors.WriteError, err)
	}

	written, err := device.stream.Write(buffer)
	if err == nil && written < len(buffer) {
		err = io.ErrShortWrite
	}
	if err != nil {
		return errors.NewFromError(
			errors.WriteError,
			fmt.Errorf("block %d: %w", index, err),
		)
	}
	return nil
}

// Close closes the underlying stream if it supports it.
func (device *StreamDevice) Close() error {
	closer, ok := device.stream.(io.Closer)
	if !ok {
		return nil
	}
	return closer.Close()
}

package blockdevice

import (
	"github.com/xaionaro-go/bytesextra"
)

// NewMemory creates a zeroed in-memory device of the given dimensions.
func NewMemory(bytesPerBlock, totalBlocks uint) (*StreamDevice, error) {
	return NewMemoryFromBytes(make([]byte, bytesPerBlock*totalBlocks), bytesPerBlock)
}

// NewMemoryFromBytes creates a device whose storage is `data`. Writes to the
// device modify `data` in place. Trailing bytes that don't make up a whole
// block are ignored.
func NewMemoryFromBytes(data []byte, bytesPerBlock uint) (*StreamDevice, error) {
	if bytesPerBlock == 0 {
		return NewStreamDevice(nil, 0, 0, 0)
	}
	stream := bytesextra.NewReadWriteSeeker(data)
	return NewStreamDevice(stream, bytesPerBlock, uint(len(data))/bytesPerBlock, 0)
}

package blockdevice

import (
	"os"

	"github.com/dargueta/fatstream/errors"
	"github.com/spf13/afero"
)

// Open creates a device over the file at `path` on `fs`. The block count is
// derived from the size of the file after `startOffset`. Call Close() on the
// returned device to close the file.
func Open(fs afero.Fs, path string, bytesPerBlock uint, startOffset int64) (*StreamDevice, error) {
	if bytesPerBlock == 0 {
		return nil, errors.NewWithMessage(
			errors.BadBlockSize, "block size must be nonzero")
	}

	file, err := fs.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		return nil, errors.NewFromError(errors.FileOrFolderDoesNotExist, err)
	}

	totalBlocks, err := DetermineBlockCount(file, bytesPerBlock, startOffset)
	if err != nil {
		file.Close()
		return nil, err
	}

	device, err := NewStreamDevice(file, bytesPerBlock, totalBlocks, startOffset)
	if err != nil {
		file.Close()
		return nil, err
	}
	return device, nil
}

// Create creates the file at `path` on `fs` if needed and resizes it so that it
// holds exactly `totalBlocks` blocks after `startOffset`, then opens it as a
// device. Existing data inside the new size is kept; new space reads as zeroes.
func Create(
	fs afero.Fs,
	path string,
	bytesPerBlock uint,
	totalBlocks uint,
	startOffset int64,
) (*StreamDevice, error) {
	file, err := fs.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return nil, errors.NewFromError(errors.WriteError, err)
	}

	size := startOffset + int64(bytesPerBlock)*int64(totalBlocks)
	err = file.Truncate(size)
	if err != nil {
		file.Close()
		return nil, errors.NewFromError(errors.PartitionOutOfStorageSpace, err)
	}

	device, err := NewStreamDevice(file, bytesPerBlock, totalBlocks, startOffset)
	if err != nil {
		file.Close()
		return nil, err
	}
	return device, nil
}

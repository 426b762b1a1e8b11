package fat

import (
	"fmt"
	"io"

	"github.com/dargueta/fatstream/errors"
	c "github.com/dargueta/fatstream/file_systems/common"
)

// File is a [Stream] bounded by a byte size, the way a directory entry
// describes a regular file. Reads stop at the size, writes past it grow it,
// and seeks are clamped to it.
//
// The size lives only in memory. Persisting it to a directory entry is the
// caller's job.
type File struct {
	stream *Stream
	size   int64
}

// NewFile opens the chain beginning at `firstCluster` as a file of `size`
// bytes. The chain must be long enough to hold that many bytes.
func NewFile(table *Table, firstCluster c.ClusterID, size int64) (*File, error) {
	if size < 0 || size > maxFileSize {
		return nil, errors.NewWithMessage(
			errors.OutOfRange,
			fmt.Sprintf("invalid file size %d", size),
		)
	}

	stream, err := NewStream(table, firstCluster)
	if err != nil {
		return nil, err
	}

	length, err := table.ChainLength(firstCluster)
	if err != nil {
		return nil, err
	}

	capacity := int64(length) * int64(table.geometry.BytesPerCluster())
	if size > capacity {
		return nil, errors.NewWithMessage(
			errors.UnexpectedEndOfFile,
			fmt.Sprintf(
				"file claims %d bytes but its chain from %d only holds %d",
				size,
				firstCluster,
				capacity,
			),
		)
	}

	return &File{stream: stream, size: size}, nil
}

// CreateFile allocates a single-cluster chain and returns an empty file on it.
func CreateFile(table *Table) (*File, error) {
	firstCluster, err := table.CreateChain(1)
	if err != nil {
		return nil, err
	}
	return NewFile(table, firstCluster, 0)
}

const maxFileSize = int64(0xFFFFFFFF)

// Size returns the current size of the file, in bytes.
func (file *File) Size() int64 {
	return file.size
}

func (file *File) Tell() int64 {
	return file.stream.Tell()
}

func (file *File) FirstCluster() c.ClusterID {
	return file.stream.FirstCluster()
}

// Read fills `buffer` from the current position, never going past the size
// of the file. It fails with [errors.EndOfFile] if the position is already at
// the end.
func (file *File) Read(buffer []byte) (int, error) {
	if len(buffer) == 0 {
		return 0, nil
	}

	remaining := file.size - file.stream.Tell()
	if remaining <= 0 {
		return 0, errors.ErrEndOfFile
	}
	if int64(len(buffer)) > remaining {
		buffer = buffer[:remaining]
	}

	total := 0
	for total < len(buffer) {
		n, err := file.stream.Read(buffer[total:])
		if err != nil {
			if total > 0 {
				break
			}
			if errors.CodeOf(err) == errors.EndOfStream {
				return 0, errors.NewFromError(errors.UnexpectedEndOfFile, err)
			}
			return 0, err
		}
		if n == 0 {
			break
		}
		total += n
	}
	return total, nil
}

// Write writes all of `buffer` at the current position, allocating clusters as
// needed. If writing goes past the end of the file, the size grows to match.
func (file *File) Write(buffer []byte) (int, error) {
	if file.stream.Tell()+int64(len(buffer)) > maxFileSize {
		return 0, errors.NewWithMessage(
			errors.PartitionOutOfStorageSpace,
			fmt.Sprintf("writing %d bytes would exceed the largest FAT file size", len(buffer)),
		)
	}

	total := 0
	var err error
	for total < len(buffer) {
		var n int
		n, err = file.stream.Write(buffer[total:])
		total += n
		if err != nil {
			break
		}
	}

	if file.stream.Tell() > file.size {
		file.size = file.stream.Tell()
	}
	return total, err
}

// Seek moves the position. [io.SeekEnd] is relative to the size of the file.
// Positions past the end are clamped to the end; negative positions fail with
// [errors.NegativeSeek].
func (file *File) Seek(offset int64, whence int) (int64, error) {
	var target int64

	switch whence {
	case io.SeekStart:
		target = offset
	case io.SeekCurrent:
		target = file.stream.Tell() + offset
	case io.SeekEnd:
		target = file.size + offset
	default:
		return file.stream.Tell(), errors.NewWithMessage(
			errors.OutOfRange,
			fmt.Sprintf("invalid whence value %d", whence),
		)
	}

	if target < 0 {
		return file.stream.Tell(), errors.NewWithMessage(
			errors.NegativeSeek,
			fmt.Sprintf("can't seek to %d", target),
		)
	}
	if target > file.size {
		target = file.size
	}
	return file.stream.Seek(target, io.SeekStart)
}

// Resize sets the size of the file, and grows or shrinks its chain to the
// number of clusters needed to hold it. A file always keeps at least one
// cluster. Bytes added by growing the file read back as zeroes. If the
// position is past the new end, it's moved to the end.
func (file *File) Resize(size int64) error {
	if size < 0 || size > maxFileSize {
		return errors.NewWithMessage(
			errors.OutOfRange,
			fmt.Sprintf("invalid file size %d", size),
		)
	}

	bytesPerCluster := int64(file.stream.table.geometry.BytesPerCluster())
	clusters := (size + bytesPerCluster - 1) / bytesPerCluster
	if clusters == 0 {
		clusters = 1
	}

	err := file.stream.SetLen(uint(clusters))
	if err != nil {
		return err
	}

	oldSize := file.size
	if size > oldSize {
		err = file.zeroFill(oldSize, size)
		if err != nil {
			return err
		}
	}

	file.size = size
	if file.stream.Tell() > size {
		_, err = file.stream.Seek(size, io.SeekStart)
	}
	return err
}

// zeroFill overwrites [start, end) with zeroes and puts the position back where
// it was.
func (file *File) zeroFill(start, end int64) error {
	position := file.stream.Tell()
	_, err := file.stream.Seek(start, io.SeekStart)
	if err != nil {
		return err
	}

	zeroes := make([]byte, file.stream.bytesPerSector())
	for remaining := end - start; remaining > 0; {
		chunk := zeroes
		if remaining < int64(len(chunk)) {
			chunk = chunk[:remaining]
		}
		n, err := file.stream.Write(chunk)
		if err != nil {
			return err
		}
		remaining -= int64(n)
	}

	_, err = file.stream.Seek(position, io.SeekStart)
	return err
}

// WriteTo copies the rest of the file, from the current position, to `writer`.
func (file *File) WriteTo(writer io.Writer) (int64, error) {
	buffer := make([]byte, file.stream.table.geometry.BytesPerCluster())
	total := int64(0)

	for {
		n, err := file.Read(buffer)
		if n > 0 {
			written, writeErr := writer.Write(buffer[:n])
			total += int64(written)
			if writeErr != nil {
				return total, writeErr
			}
		}
		if errors.CodeOf(err) == errors.EndOfFile {
			return total, nil
		}
		if err != nil {
			return total, err
		}
	}
}

// Close writes back any pending modification. The file can still be used
// afterwards.
func (file *File) Close() error {
	return file.stream.Flush()
}

// Remove frees every cluster of the file. The File must not be used afterwards.
func (file *File) Remove() error {
	err := file.stream.table.DeleteChain(file.stream.firstCluster)
	if err != nil {
		return err
	}
	file.size = 0
	return file.stream.Flush()
}

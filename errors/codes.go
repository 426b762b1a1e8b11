package errors

import (
	"fmt"
)

// Code identifies the class of failure reported by a [DriverError]. The set is
// closed; callers are expected to switch on it.
type Code int

const (
	// OK is never attached to an error. It's what [CodeOf] returns for errors
	// that didn't come from this module.
	OK Code = iota
	BadBlockSize
	PartitionOutOfStorageSpace
	ReadError
	WriteError
	OutOfRange
	DirEntryNotFile
	FileOrFolderDoesNotExist
	FatTableError
	NoFreeCluster
	BadCount
	NegativeSeek
	EndOfFile
	UnexpectedEndOfFile
	EndOfStream
)

var messagesByCode = map[Code]string{
	OK:                         "success",
	BadBlockSize:               "unsupported block size",
	PartitionOutOfStorageSpace: "partition is out of storage space",
	ReadError:                  "failed to read from block device",
	WriteError:                 "failed to write to block device",
	OutOfRange:                 "index out of range",
	DirEntryNotFile:            "directory entry is not a file",
	FileOrFolderDoesNotExist:   "no such file or directory",
	FatTableError:              "allocation table is corrupted",
	NoFreeCluster:              "no free cluster left on the volume",
	BadCount:                   "invalid cluster count",
	NegativeSeek:               "seek to a negative position",
	EndOfFile:                  "end of file",
	UnexpectedEndOfFile:        "unexpected end of file",
	EndOfStream:                "end of cluster chain",
}

// StrError returns the default message for an error code.
func StrError(code Code) string {
	message, ok := messagesByCode[code]
	if ok {
		return message
	}
	return fmt.Sprintf("error %d not recognized.", int(code))
}

func (code Code) String() string {
	return StrError(code)
}

var ErrBadBlockSize = New(BadBlockSize)
var ErrPartitionOutOfStorageSpace = New(PartitionOutOfStorageSpace)
var ErrReadError = New(ReadError)
var ErrWriteError = New(WriteError)
var ErrOutOfRange = New(OutOfRange)
var ErrDirEntryNotFile = New(DirEntryNotFile)
var ErrFileOrFolderDoesNotExist = New(FileOrFolderDoesNotExist)
var ErrFatTableError = New(FatTableError)
var ErrNoFreeCluster = New(NoFreeCluster)
var ErrBadCount = New(BadCount)
var ErrNegativeSeek = New(NegativeSeek)
var ErrEndOfFile = New(EndOfFile)
var ErrUnexpectedEndOfFile = New(UnexpectedEndOfFile)
var ErrEndOfStream = New(EndOfStream)

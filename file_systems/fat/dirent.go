package fat

import (
	"encoding/binary"

	"github.com/dargueta/fatstream/errors"
	c "github.com/dargueta/fatstream/file_systems/common"
)

// DirentSize is the size of an on-disk directory entry, in bytes.
const DirentSize = 32

const (
	// DirentEndOfDirectory in the first byte of an entry means neither it nor
	// anything after it is in use.
	DirentEndOfDirectory = 0x00
	// DirentDeleted in the first byte of an entry marks a deleted entry.
	DirentDeleted = 0xE5
)

const (
	AttrReadOnly    = 0x01
	AttrHidden      = 0x02
	AttrSystem      = 0x04
	AttrVolumeLabel = 0x08
	AttrDirectory   = 0x10
	AttrArchived    = 0x20

	// AttrLongFileName is the combination of attribute bits that marks a long
	// file name fragment rather than a real entry.
	AttrLongFileName = AttrReadOnly | AttrHidden | AttrSystem | AttrVolumeLabel
)

// DirEntry is a raw directory entry. Only the status byte and the attribute
// byte are interpreted here; everything else is left to the caller.
type DirEntry struct {
	data [DirentSize]byte
}

// Bytes returns a copy of the raw entry.
func (entry DirEntry) Bytes() []byte {
	out := make([]byte, DirentSize)
	copy(out, entry.data[:])
	return out
}

// Status returns the first byte of the entry, i.e. the first byte of the name.
func (entry DirEntry) Status() byte {
	return entry.data[0]
}

// Attributes returns the attribute byte (offset 11).
func (entry DirEntry) Attributes() byte {
	return entry.data[11]
}

// RawName returns the 11 bytes of the short name, undecoded and space padded.
func (entry DirEntry) RawName() []byte {
	return entry.Bytes()[:11]
}

// FirstCluster returns the cluster the entry's data begins at. The high half
// is only meaningful on FAT32 volumes, and is zero elsewhere.
func (entry DirEntry) FirstCluster() c.ClusterID {
	high := binary.LittleEndian.Uint16(entry.data[20:22])
	low := binary.LittleEndian.Uint16(entry.data[26:28])
	return c.ClusterID(uint32(high)<<16 | uint32(low))
}

// FileSize returns the size field of the entry. It's zero for directories.
func (entry DirEntry) FileSize() uint32 {
	return binary.LittleEndian.Uint32(entry.data[28:32])
}

// DirIterator yields the live entries of a directory stored in a cluster
// chain. Deleted entries and long file name fragments are skipped. Iteration
// ends at the first end-of-directory marker, at the end of the chain, or on a
// short read.
//
//	iterator := fat.NewDirIterator(stream)
//	for entry, ok := iterator.Next(); ok; entry, ok = iterator.Next() {
//		...
//	}
//	if err := iterator.Err(); err != nil {
//		...
//	}
type DirIterator struct {
	stream *Stream
	done   bool
	err    error
}

// NewDirIterator creates an iterator reading entries from the current position
// of `stream`.
func NewDirIterator(stream *Stream) *DirIterator {
	return &DirIterator{stream: stream}
}

// Next returns the next live entry. The second return value is false once the
// directory is exhausted, and stays false.
func (iterator *DirIterator) Next() (DirEntry, bool) {
	var entry DirEntry

	for !iterator.done {
		n, err := iterator.stream.Read(entry.data[:])
		if err != nil {
			iterator.done = true
			if errors.CodeOf(err) != errors.EndOfStream {
				iterator.err = err
			}
			break
		}
		if n < DirentSize {
			iterator.done = true
			break
		}

		switch {
		case entry.Status() == DirentEndOfDirectory:
			iterator.done = true
		case entry.Status() == DirentDeleted:
			continue
		case entry.Attributes()&AttrLongFileName == AttrLongFileName:
			continue
		default:
			return entry, true
		}
	}
	return DirEntry{}, false
}

// Err returns the error that stopped iteration, if any. Reaching the end of
// the directory or of the chain isn't an error.
func (iterator *DirIterator) Err() error {
	return iterator.err
}

// ReadDirEntries collects every live entry of the directory at `stream`.
func ReadDirEntries(stream *Stream) ([]DirEntry, error) {
	entries := []DirEntry{}
	iterator := NewDirIterator(stream)
	for entry, ok := iterator.Next(); ok; entry, ok = iterator.Next() {
		entries = append(entries, entry)
	}
	return entries, iterator.Err()
}

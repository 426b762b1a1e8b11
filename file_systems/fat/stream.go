package fat

import (
	"fmt"
	"io"
	"math"

	"github.com/dargueta/fatstream/errors"
	c "github.com/dargueta/fatstream/file_systems/common"
	log "github.com/sirupsen/logrus"
)

// Stream is a byte cursor over a cluster chain. It knows nothing about file
// sizes: its extent is the whole chain, and writing past the end of the chain
// allocates more clusters.
//
// Reads and writes never cross a sector boundary in one call, so they may
// transfer fewer bytes than requested. Callers that want everything must loop;
// [File] does this for you.
type Stream struct {
	table        *Table
	firstCluster c.ClusterID
	// cluster is the cluster the cursor is in.
	cluster c.ClusterID
	// sectorIndex is the index of the cursor's sector within `cluster`.
	sectorIndex uint
	// offset is the cursor's byte offset within the sector. It's equal to
	// BytesPerSector when the sector has been used up and the next access needs
	// to advance.
	offset   uint
	position int64
}

// NewStream creates a stream over the chain beginning at `firstCluster`, with
// the cursor at the beginning.
func NewStream(table *Table, firstCluster c.ClusterID) (*Stream, error) {
	if !table.isDataCluster(firstCluster) {
		return nil, errors.NewWithMessage(
			errors.OutOfRange,
			fmt.Sprintf(
				"invalid cluster 0x%x cannot start a cluster chain",
				firstCluster,
			),
		)
	}

	return &Stream{
		table:        table,
		firstCluster: firstCluster,
		cluster:      firstCluster,
	}, nil
}

// FirstCluster returns the cluster the chain begins at. It never changes.
func (stream *Stream) FirstCluster() c.ClusterID {
	return stream.firstCluster
}

// Tell returns the cursor position relative to the beginning of the chain.
func (stream *Stream) Tell() int64 {
	return stream.position
}

// Flush writes back any pending modification to the device.
func (stream *Stream) Flush() error {
	return stream.table.Flush()
}

func (stream *Stream) bytesPerSector() uint {
	return stream.table.geometry.BytesPerSector
}

// advance moves the cursor to the next sector if the current one has been used
// up, following the chain into the next cluster if necessary. It fails with
// [errors.EndOfStream] if the cursor is at the end of the last cluster.
func (stream *Stream) advance() error {
	if stream.offset < stream.bytesPerSector() {
		return nil
	}

	if stream.sectorIndex+1 < stream.table.geometry.SectorsPerCluster {
		stream.sectorIndex++
		stream.offset = 0
		return nil
	}

	value, err := stream.table.Get(stream.cluster)
	if err != nil {
		return err
	}

	switch value.Kind {
	case KindLast:
		return errors.NewWithMessage(
			errors.EndOfStream,
			fmt.Sprintf("chain from %d ends at cluster %d", stream.firstCluster, stream.cluster),
		)
	case KindFree, KindBad:
		return errors.NewWithMessage(
			errors.FatTableError,
			fmt.Sprintf(
				"cluster %d in chain from %d is %s",
				stream.cluster,
				stream.firstCluster,
				value,
			),
		)
	}

	if !stream.table.isDataCluster(value.Cluster) {
		return errors.NewWithMessage(
			errors.FatTableError,
			fmt.Sprintf(
				"cluster %d followed by invalid cluster 0x%x in chain from %d",
				stream.cluster,
				value.Cluster,
				stream.firstCluster,
			),
		)
	}

	stream.cluster = value.Cluster
	stream.sectorIndex = 0
	stream.offset = 0
	return nil
}

// currentSector gives the absolute sector the cursor is in.
func (stream *Stream) currentSector() (c.LogicalBlock, error) {
	first, err := stream.table.ClusterToSector(stream.cluster)
	if err != nil {
		return 0, err
	}
	return first + c.LogicalBlock(stream.sectorIndex), nil
}

// chunkSize gives how many bytes of a `requested`-byte transfer fit in the rest
// of the current sector.
func (stream *Stream) chunkSize(requested int) int {
	available := int(stream.bytesPerSector() - stream.offset)
	if requested < available {
		return requested
	}
	return available
}

// Read copies bytes from the cursor into `buffer`, stopping at the end of the
// current sector. It returns [errors.EndOfStream] if the cursor is at the end
// of the chain.
func (stream *Stream) Read(buffer []byte) (int, error) {
	if len(buffer) == 0 {
		return 0, nil
	}

	err := stream.advance()
	if err != nil {
		return 0, err
	}

	sector, err := stream.currentSector()
	if err != nil {
		return 0, err
	}

	size := stream.chunkSize(len(buffer))
	err = stream.table.sector.Read(sector, stream.offset, buffer[:size])
	if err != nil {
		return 0, err
	}

	stream.offset += uint(size)
	stream.position += int64(size)
	return size, nil
}

// Write copies bytes from `buffer` to the cursor, stopping at the end of the
// current sector.
//
// If the cursor is at the end of the chain, Write allocates one more cluster,
// moves the cursor into it, and returns 0 without writing anything. Call it
// again to write the data.
func (stream *Stream) Write(buffer []byte) (int, error) {
	if len(buffer) == 0 {
		return 0, nil
	}

	err := stream.advance()
	if errors.CodeOf(err) == errors.EndOfStream {
		_, err = stream.table.ExtendChain(stream.cluster, 1)
		if err != nil {
			return 0, err
		}
		log.Debugf("fat: stream from %d grew past cluster %d", stream.firstCluster, stream.cluster)
		return 0, stream.advance()
	} else if err != nil {
		return 0, err
	}

	sector, err := stream.currentSector()
	if err != nil {
		return 0, err
	}

	size := stream.chunkSize(len(buffer))
	err = stream.table.sector.Write(sector, stream.offset, buffer[:size])
	if err != nil {
		return 0, err
	}

	stream.offset += uint(size)
	stream.position += int64(size)
	return size, nil
}

// Seek moves the cursor. [io.SeekEnd] is relative to the end of the last
// cluster in the chain. Seeking past the end of the chain fails with
// [errors.FatTableError] and leaves the cursor where it was.
func (stream *Stream) Seek(offset int64, whence int) (int64, error) {
	var target int64

	switch whence {
	case io.SeekStart:
		target = offset
	case io.SeekCurrent:
		target = stream.position + offset
	case io.SeekEnd:
		length, err := stream.table.ChainLength(stream.firstCluster)
		if err != nil {
			return stream.position, err
		}
		target = int64(length)*int64(stream.table.geometry.BytesPerCluster()) + offset
	default:
		return stream.position, errors.NewWithMessage(
			errors.OutOfRange,
			fmt.Sprintf("invalid whence value %d", whence),
		)
	}

	if target < 0 {
		return stream.position, errors.NewWithMessage(
			errors.NegativeSeek,
			fmt.Sprintf("can't seek to %d", target),
		)
	}
	if target > math.MaxUint32 {
		return stream.position, errors.NewWithMessage(
			errors.OutOfRange,
			fmt.Sprintf("position %d exceeds the largest FAT file size", target),
		)
	}

	err := stream.moveTo(target)
	if err != nil {
		return stream.position, err
	}
	return target, nil
}

// moveTo recomputes the cursor for absolute position `target`. A position on a
// cluster boundary is placed at the end of the previous cluster, so that a
// chain can be positioned at its very end without a cluster after it.
func (stream *Stream) moveTo(target int64) error {
	geometry := stream.table.geometry
	bytesPerCluster := int64(geometry.BytesPerCluster())

	clusterIndex := target / bytesPerCluster
	withinCluster := target % bytesPerCluster
	if withinCluster == 0 && target > 0 {
		clusterIndex--
		withinCluster = bytesPerCluster
	}

	cluster, err := stream.table.SkipChain(stream.firstCluster, uint(clusterIndex))
	if err != nil {
		return err
	}

	stream.cluster = cluster
	if withinCluster == bytesPerCluster {
		stream.sectorIndex = geometry.SectorsPerCluster - 1
		stream.offset = geometry.BytesPerSector
	} else {
		stream.sectorIndex = uint(withinCluster) / geometry.BytesPerSector
		stream.offset = uint(withinCluster) % geometry.BytesPerSector
	}
	stream.position = target
	return nil
}

// SetLen resizes the chain to `clusterCount` clusters. If that cuts off the
// cursor, it's moved to the new end of the chain.
func (stream *Stream) SetLen(clusterCount uint) error {
	err := stream.table.SetChainLength(stream.firstCluster, clusterCount)
	if err != nil {
		return err
	}

	capacity := int64(clusterCount) * int64(stream.table.geometry.BytesPerCluster())
	if stream.position > capacity {
		return stream.moveTo(capacity)
	}
	return stream.moveTo(stream.position)
}

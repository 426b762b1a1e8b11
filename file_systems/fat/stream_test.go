package fat_test

import (
	"crypto/rand"
	"io"
	"testing"

	"github.com/dargueta/fatstream/errors"
	"github.com/dargueta/fatstream/file_systems/fat"
	fattest "github.com/dargueta/fatstream/testing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newTestStream creates a volume with 1 KiB clusters (two 512-byte sectors) and
// a stream over a fresh chain of `clusters` clusters.
func newTestStream(t *testing.T, clusters uint) (*fat.Stream, *fat.Table, []byte) {
	table, image := fattest.CreateVolume(t, fat.FAT16, 512, 2, 64)

	first, err := table.CreateChain(clusters)
	require.NoError(t, err)

	stream, err := fat.NewStream(table, first)
	require.NoError(t, err)
	return stream, table, image
}

func randomBytes(t *testing.T, size int) []byte {
	data := make([]byte, size)
	_, err := rand.Read(data)
	require.NoError(t, err)
	return data
}

// writeAll keeps calling Write until everything is written, and returns how
// many calls wrote nothing because they extended the chain instead.
func writeAll(t *testing.T, stream *fat.Stream, data []byte) int {
	extensions := 0
	for written := 0; written < len(data); {
		n, err := stream.Write(data[written:])
		require.NoError(t, err)
		if n == 0 {
			extensions++
		}
		written += n
	}
	return extensions
}

func readAll(t *testing.T, stream *fat.Stream, size int) []byte {
	data := make([]byte, size)
	for total := 0; total < size; {
		n, err := stream.Read(data[total:])
		require.NoError(t, err)
		require.NotZero(t, n)
		total += n
	}
	return data
}

func TestStream__WriteRead__AcrossClusters(t *testing.T) {
	stream, table, _ := newTestStream(t, 1)
	data := randomBytes(t, 3000)

	extensions := writeAll(t, stream, data)
	assert.Equal(t, 2, extensions)
	assert.EqualValues(t, 3000, stream.Tell())

	length, err := table.ChainLength(stream.FirstCluster())
	require.NoError(t, err)
	assert.EqualValues(t, 3, length)

	position, err := stream.Seek(0, io.SeekStart)
	require.NoError(t, err)
	assert.EqualValues(t, 0, position)

	assert.Equal(t, data, readAll(t, stream, 3000))
}

func TestStream__Read__StopsAtSectorEnd(t *testing.T) {
	stream, _, _ := newTestStream(t, 1)

	_, err := stream.Seek(500, io.SeekStart)
	require.NoError(t, err)

	n, err := stream.Read(make([]byte, 100))
	require.NoError(t, err)
	assert.Equal(t, 12, n)

	n, err = stream.Read(make([]byte, 100))
	require.NoError(t, err)
	assert.Equal(t, 100, n)
	assert.EqualValues(t, 612, stream.Tell())

	n, err = stream.Read([]byte{})
	assert.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestStream__Read__EndOfStream(t *testing.T) {
	stream, _, _ := newTestStream(t, 1)

	_, err := stream.Seek(1020, io.SeekStart)
	require.NoError(t, err)

	n, err := stream.Read(make([]byte, 10))
	require.NoError(t, err)
	assert.Equal(t, 4, n)

	n, err = stream.Read(make([]byte, 10))
	assert.ErrorIs(t, err, errors.ErrEndOfStream)
	assert.Equal(t, 0, n)
	assert.EqualValues(t, 1024, stream.Tell())
}

// Writing at the exact end of a full chain extends it by one cluster and writes
// nothing; the next call writes into the new cluster.
func TestStream__Write__ExtendsAtChainEnd(t *testing.T) {
	stream, table, _ := newTestStream(t, 1)

	position, err := stream.Seek(1024, io.SeekStart)
	require.NoError(t, err)
	assert.EqualValues(t, 1024, position)

	n, err := stream.Write([]byte{0xAB})
	require.NoError(t, err)
	assert.Equal(t, 0, n)
	assert.EqualValues(t, 1024, stream.Tell())

	length, err := table.ChainLength(stream.FirstCluster())
	require.NoError(t, err)
	assert.EqualValues(t, 2, length)

	n, err = stream.Write([]byte{0xAB})
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.EqualValues(t, 1025, stream.Tell())
}

func TestStream__Write__LandsInClusterData(t *testing.T) {
	stream, table, image := newTestStream(t, 2)

	_, err := stream.Seek(1030, io.SeekStart)
	require.NoError(t, err)
	writeAll(t, stream, []byte("hello"))
	require.NoError(t, stream.Flush())

	secondCluster, err := table.SkipChain(stream.FirstCluster(), 1)
	require.NoError(t, err)
	sector, err := table.ClusterToSector(secondCluster)
	require.NoError(t, err)

	start := int(sector)*512 + 6
	assert.Equal(t, []byte("hello"), image[start:start+5])
}

func TestStream__Seek(t *testing.T) {
	stream, _, _ := newTestStream(t, 2)

	position, err := stream.Seek(100, io.SeekStart)
	require.NoError(t, err)
	assert.EqualValues(t, 100, position)

	position, err = stream.Seek(50, io.SeekCurrent)
	require.NoError(t, err)
	assert.EqualValues(t, 150, position)

	position, err = stream.Seek(-150, io.SeekCurrent)
	require.NoError(t, err)
	assert.EqualValues(t, 0, position)

	position, err = stream.Seek(0, io.SeekEnd)
	require.NoError(t, err)
	assert.EqualValues(t, 2048, position)

	position, err = stream.Seek(-10, io.SeekEnd)
	require.NoError(t, err)
	assert.EqualValues(t, 2038, position)
	assert.EqualValues(t, 2038, stream.Tell())
}

func TestStream__Seek__Invalid(t *testing.T) {
	stream, _, _ := newTestStream(t, 1)

	_, err := stream.Seek(10, io.SeekStart)
	require.NoError(t, err)

	_, err = stream.Seek(-11, io.SeekCurrent)
	assert.ErrorIs(t, err, errors.ErrNegativeSeek)

	_, err = stream.Seek(-1, io.SeekStart)
	assert.ErrorIs(t, err, errors.ErrNegativeSeek)

	_, err = stream.Seek(1025, io.SeekStart)
	assert.ErrorIs(t, err, errors.ErrFatTableError, "seeking past the chain")

	_, err = stream.Seek(0, 42)
	assert.ErrorIs(t, err, errors.ErrOutOfRange)

	assert.EqualValues(t, 10, stream.Tell(), "failed seeks must not move the cursor")
}

func TestStream__SetLen(t *testing.T) {
	stream, table, _ := newTestStream(t, 3)

	_, err := stream.Seek(2500, io.SeekStart)
	require.NoError(t, err)

	require.NoError(t, stream.SetLen(5))
	assert.EqualValues(t, 2500, stream.Tell(), "growing must not move the cursor")

	require.NoError(t, stream.SetLen(1))
	assert.EqualValues(t, 1024, stream.Tell(), "cursor must be clamped to the new end")

	length, err := table.ChainLength(stream.FirstCluster())
	require.NoError(t, err)
	assert.EqualValues(t, 1, length)

	assert.ErrorIs(t, stream.SetLen(0), errors.ErrBadCount)

	// The cursor is usable after being clamped.
	n, err := stream.Write([]byte{1})
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestNewStream__InvalidCluster(t *testing.T) {
	table, _ := fattest.CreateVolume(t, fat.FAT12, 512, 1, 16)

	_, err := fat.NewStream(table, 1)
	assert.ErrorIs(t, err, errors.ErrOutOfRange)

	_, err = fat.NewStream(table, 16)
	assert.ErrorIs(t, err, errors.ErrOutOfRange)
}

func TestStream__Read__CorruptedChain(t *testing.T) {
	stream, table, _ := newTestStream(t, 2)

	_, err := stream.Seek(1024, io.SeekStart)
	require.NoError(t, err)

	// The first cluster should link to the second, but now claims to be free.
	require.NoError(t, table.Set(stream.FirstCluster(), fat.Free))

	_, err = stream.Read(make([]byte, 4))
	assert.ErrorIs(t, err, errors.ErrFatTableError)
}

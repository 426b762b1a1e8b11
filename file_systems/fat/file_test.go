package fat_test

import (
	"bytes"
	"io"
	"testing"

	"github.com/dargueta/fatstream/errors"
	"github.com/dargueta/fatstream/file_systems/fat"
	fattest "github.com/dargueta/fatstream/testing"
	"github.com/noxer/bytewriter"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newTestFile creates an empty file on a volume with 1 KiB clusters.
func newTestFile(t *testing.T) (*fat.File, *fat.Table) {
	table, _ := fattest.CreateVolume(t, fat.FAT12, 512, 2, 64)
	file, err := fat.CreateFile(table)
	require.NoError(t, err)
	assert.EqualValues(t, 0, file.Size())
	return file, table
}

func chainLength(t *testing.T, table *fat.Table, file *fat.File) uint {
	length, err := table.ChainLength(file.FirstCluster())
	require.NoError(t, err)
	return length
}

func TestFile__WriteRead(t *testing.T) {
	file, table := newTestFile(t)
	data := randomBytes(t, 5000)

	n, err := file.Write(data)
	require.NoError(t, err)
	assert.Equal(t, 5000, n, "Write must absorb short writes and extensions")
	assert.EqualValues(t, 5000, file.Size())
	assert.EqualValues(t, 5, chainLength(t, table, file))

	_, err = file.Seek(0, io.SeekStart)
	require.NoError(t, err)

	readBack := make([]byte, 6000)
	n, err = file.Read(readBack)
	require.NoError(t, err)
	assert.Equal(t, 5000, n, "Read must stop at the end of the file")
	assert.Equal(t, data, readBack[:n])

	n, err = file.Read(readBack)
	assert.ErrorIs(t, err, errors.ErrEndOfFile)
	assert.ErrorIs(t, err, io.EOF)
	assert.Equal(t, 0, n)
}

func TestFile__Write__VolumeFull(t *testing.T) {
	// Four data clusters of 1 KiB each.
	table, _ := fattest.CreateVolume(t, fat.FAT12, 512, 2, 6)
	file, err := fat.CreateFile(table)
	require.NoError(t, err)

	n, err := file.Write(randomBytes(t, 5000))
	assert.ErrorIs(t, err, errors.ErrNoFreeCluster)
	assert.Equal(t, 4096, n, "Write must report the bytes written before failing")
	assert.EqualValues(t, 4096, file.Size())

	free, err := table.CountFree()
	require.NoError(t, err)
	assert.EqualValues(t, 0, free)
}

func TestFile__Write__Overwrite(t *testing.T) {
	file, _ := newTestFile(t)

	_, err := file.Write([]byte("0123456789"))
	require.NoError(t, err)

	_, err = file.Seek(3, io.SeekStart)
	require.NoError(t, err)
	_, err = file.Write([]byte("abc"))
	require.NoError(t, err)
	assert.EqualValues(t, 10, file.Size(), "overwriting must not change the size")

	_, err = file.Seek(8, io.SeekStart)
	require.NoError(t, err)
	_, err = file.Write([]byte("XYZ"))
	require.NoError(t, err)
	assert.EqualValues(t, 11, file.Size())

	_, err = file.Seek(0, io.SeekStart)
	require.NoError(t, err)

	output := &bytes.Buffer{}
	copied, err := io.Copy(output, file)
	require.NoError(t, err)
	assert.EqualValues(t, 11, copied)
	assert.Equal(t, "012abc67XYZ", output.String())
}

func TestFile__Seek__Clamped(t *testing.T) {
	file, _ := newTestFile(t)
	_, err := file.Write(make([]byte, 100))
	require.NoError(t, err)

	position, err := file.Seek(100000, io.SeekStart)
	require.NoError(t, err)
	assert.EqualValues(t, 100, position)

	position, err = file.Seek(-3, io.SeekEnd)
	require.NoError(t, err)
	assert.EqualValues(t, 97, position)

	position, err = file.Seek(50, io.SeekCurrent)
	require.NoError(t, err)
	assert.EqualValues(t, 100, position)

	_, err = file.Seek(-101, io.SeekEnd)
	assert.ErrorIs(t, err, errors.ErrNegativeSeek)
	assert.EqualValues(t, 100, file.Tell())
}

func TestFile__Resize__Shrink(t *testing.T) {
	file, table := newTestFile(t)
	_, err := file.Write(randomBytes(t, 5000))
	require.NoError(t, err)

	require.NoError(t, file.Resize(1500))
	assert.EqualValues(t, 1500, file.Size())
	assert.EqualValues(t, 1500, file.Tell())
	assert.EqualValues(t, 2, chainLength(t, table, file))

	require.NoError(t, file.Resize(0))
	assert.EqualValues(t, 0, file.Size())
	assert.EqualValues(t, 0, file.Tell())
	assert.EqualValues(t, 1, chainLength(t, table, file), "a file keeps at least one cluster")

	_, err = file.Read(make([]byte, 1))
	assert.ErrorIs(t, err, errors.ErrEndOfFile)
}

// Growing a file must not expose whatever was left in the clusters it gets.
func TestFile__Resize__GrowZeroFills(t *testing.T) {
	file, table := newTestFile(t)
	data := bytes.Repeat([]byte{0xEE}, 4000)
	_, err := file.Write(data)
	require.NoError(t, err)

	require.NoError(t, file.Resize(1500))
	_, err = file.Seek(200, io.SeekStart)
	require.NoError(t, err)

	require.NoError(t, file.Resize(4000))
	assert.EqualValues(t, 4000, file.Size())
	assert.EqualValues(t, 200, file.Tell(), "growing must not move the position")
	assert.EqualValues(t, 4, chainLength(t, table, file))

	_, err = file.Seek(0, io.SeekStart)
	require.NoError(t, err)
	output := &bytes.Buffer{}
	_, err = file.WriteTo(output)
	require.NoError(t, err)

	assert.Equal(t, data[:1500], output.Bytes()[:1500])
	assert.Equal(t, make([]byte, 2500), output.Bytes()[1500:])
}

func TestFile__Resize__Invalid(t *testing.T) {
	file, _ := newTestFile(t)
	assert.ErrorIs(t, file.Resize(-1), errors.ErrOutOfRange)
}

func TestFile__WriteTo__FixedBuffer(t *testing.T) {
	file, _ := newTestFile(t)
	data := randomBytes(t, 2100)
	_, err := file.Write(data)
	require.NoError(t, err)
	require.NoError(t, file.Close())

	_, err = file.Seek(0, io.SeekStart)
	require.NoError(t, err)

	buffer := make([]byte, 2100)
	written, err := file.WriteTo(bytewriter.New(buffer))
	require.NoError(t, err)
	assert.EqualValues(t, 2100, written)
	assert.Equal(t, data, buffer)

	_, err = file.Seek(0, io.SeekStart)
	require.NoError(t, err)
	_, err = file.WriteTo(bytewriter.New(make([]byte, 100)))
	assert.Error(t, err, "writing into a buffer that's too small should fail")
}

func TestNewFile(t *testing.T) {
	table, _ := fattest.CreateVolume(t, fat.FAT32, 512, 1, 64)
	first, err := table.CreateChain(2)
	require.NoError(t, err)

	file, err := fat.NewFile(table, first, 1024)
	require.NoError(t, err)
	assert.EqualValues(t, 1024, file.Size())
	assert.Equal(t, first, file.FirstCluster())

	_, err = fat.NewFile(table, first, 1025)
	assert.ErrorIs(t, err, errors.ErrUnexpectedEndOfFile)

	_, err = fat.NewFile(table, first, -1)
	assert.ErrorIs(t, err, errors.ErrOutOfRange)
}

// If the chain is shorter than the size claims, reading off the end is reported
// as an unexpected end of file rather than a normal one.
func TestFile__Read__ChainShorterThanSize(t *testing.T) {
	table, _ := fattest.CreateVolume(t, fat.FAT16, 512, 1, 64)
	first, err := table.CreateChain(2)
	require.NoError(t, err)

	file, err := fat.NewFile(table, first, 1024)
	require.NoError(t, err)

	require.NoError(t, table.SetChainLength(first, 1))
	_, err = file.Seek(512, io.SeekStart)
	require.NoError(t, err)

	_, err = file.Read(make([]byte, 10))
	assert.ErrorIs(t, err, errors.ErrUnexpectedEndOfFile)
	assert.NotErrorIs(t, err, io.EOF)
}

func TestFile__Remove(t *testing.T) {
	file, table := newTestFile(t)
	_, err := file.Write(make([]byte, 3000))
	require.NoError(t, err)

	free, err := table.CountFree()
	require.NoError(t, err)
	assert.EqualValues(t, 62-3, free)

	require.NoError(t, file.Remove())

	free, err = table.CountFree()
	require.NoError(t, err)
	assert.EqualValues(t, 62, free)
}

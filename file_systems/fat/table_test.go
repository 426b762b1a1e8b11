package fat_test

import (
	"fmt"
	"testing"

	"github.com/dargueta/fatstream/errors"
	c "github.com/dargueta/fatstream/file_systems/common"
	"github.com/dargueta/fatstream/file_systems/common/blockcache"
	"github.com/dargueta/fatstream/file_systems/fat"
	fattest "github.com/dargueta/fatstream/testing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Every kind of value must read back as written, for every cluster, and
// writing one entry must never disturb another.
func TestTable__GetSet__RoundTrip(t *testing.T) {
	for _, variant := range fattest.AllVariants {
		t.Run(variant.String(), func(t *testing.T) {
			table, _ := fattest.CreateVolume(t, variant, 512, 1, 1000)

			expected := make(map[c.ClusterID]fat.ClusterValue)
			for cluster := c.ClusterID(2); cluster < 1000; cluster++ {
				var value fat.ClusterValue
				switch cluster % 4 {
				case 0:
					value = fat.Free
				case 1:
					value = fat.Bad
				case 2:
					value = fat.Last
				default:
					next := cluster + 1
					if next == 1000 {
						next = 2
					}
					value = fat.Next(next)
				}
				require.NoErrorf(t, table.Set(cluster, value), "failed to set cluster %d", cluster)
				expected[cluster] = value
			}

			for cluster := c.ClusterID(2); cluster < 1000; cluster++ {
				value, err := table.Get(cluster)
				require.NoErrorf(t, err, "failed to get cluster %d", cluster)
				assert.Equalf(t, expected[cluster], value, "wrong value for cluster %d", cluster)
			}
		})
	}
}

func TestTable__Format(t *testing.T) {
	for _, variant := range fattest.AllVariants {
		t.Run(variant.String(), func(t *testing.T) {
			table, _ := fattest.CreateVolume(t, variant, 512, 1, 100)

			value, err := table.Get(0)
			require.NoError(t, err)
			assert.Equal(t, fat.Last, value, "media entry")

			value, err = table.Get(1)
			require.NoError(t, err)
			assert.Equal(t, fat.Last, value, "end of chain entry")

			free, err := table.CountFree()
			require.NoError(t, err)
			assert.EqualValues(t, 98, free)
		})
	}
}

func TestTable__FAT12__Packing(t *testing.T) {
	table, image := fattest.CreateVolume(t, fat.FAT12, 512, 1, 100)

	require.NoError(t, table.Set(2, fat.Next(3)))
	require.NoError(t, table.Set(3, fat.Last))
	require.NoError(t, table.Flush())

	// Table starts at sector 1. Entries 0 and 1 take the first three bytes.
	assert.Equal(t, []byte{0xF8, 0xFF, 0xFF}, image[512:515])
	assert.Equal(t, []byte{0x03, 0x80, 0xFF}, image[515:518])

	// Freeing the even entry must leave the odd neighbor's nibble alone.
	require.NoError(t, table.Set(2, fat.Free))
	value, err := table.Get(3)
	require.NoError(t, err)
	assert.Equal(t, fat.Last, value)

	require.NoError(t, table.Set(3, fat.Bad))
	value, err = table.Get(2)
	require.NoError(t, err)
	assert.Equal(t, fat.Free, value)
}

// With 512-byte sectors, the entry for cluster 341 begins at the last byte of
// the first table sector and ends in the second.
func TestTable__FAT12__EntryStraddlesSectors(t *testing.T) {
	table, image := fattest.CreateVolume(t, fat.FAT12, 512, 1, 1000)

	require.NoError(t, table.Set(340, fat.Last))
	require.NoError(t, table.Set(342, fat.Bad))
	require.NoError(t, table.Set(341, fat.Next(0x309)))

	value, err := table.Get(341)
	require.NoError(t, err)
	assert.Equal(t, fat.Next(0x309), value)

	value, err = table.Get(340)
	require.NoError(t, err)
	assert.Equal(t, fat.Last, value, "left neighbor clobbered")

	value, err = table.Get(342)
	require.NoError(t, err)
	assert.Equal(t, fat.Bad, value, "right neighbor clobbered")

	require.NoError(t, table.Set(340, fat.Free))
	require.NoError(t, table.Flush())

	// Entry 341 is odd, so it's the top 12 bits of the pair at table offset 511.
	assert.EqualValues(t, 0x90, image[512+511])
	assert.EqualValues(t, 0x30, image[512+512])
}

func TestTable__FAT16__Encoding(t *testing.T) {
	table, image := fattest.CreateVolume(t, fat.FAT16, 512, 1, 100)

	require.NoError(t, table.Set(2, fat.Last))
	require.NoError(t, table.Set(3, fat.Bad))
	require.NoError(t, table.Set(4, fat.Next(0x42)))
	require.NoError(t, table.Flush())

	assert.Equal(t, []byte{0xF8, 0xFF, 0xF7, 0xFF, 0x42, 0x00}, image[516:522])
}

func TestTable__FAT32__ReservedBitsPreserved(t *testing.T) {
	table, image := fattest.CreateVolume(t, fat.FAT32, 512, 1, 100)

	// Set the reserved nibble of entry 5 behind the cache's back.
	require.NoError(t, table.Sector().Cache().Invalidate())
	image[512+5*4+3] = 0xF0

	value, err := table.Get(5)
	require.NoError(t, err)
	assert.Equal(t, fat.Free, value, "reserved bits must be ignored when reading")

	require.NoError(t, table.Set(5, fat.Next(9)))
	require.NoError(t, table.Flush())
	assert.Equal(t, []byte{0x09, 0x00, 0x00, 0xF0}, image[532:536])

	require.NoError(t, table.Set(6, fat.Last))
	require.NoError(t, table.Set(7, fat.Bad))
	require.NoError(t, table.Flush())
	assert.Equal(t, []byte{0xF8, 0xFF, 0xFF, 0x0F}, image[536:540])
	assert.Equal(t, []byte{0xF7, 0xFF, 0xFF, 0x0F}, image[540:544])
}

func TestTable__GetSet__Invalid(t *testing.T) {
	table, _ := fattest.CreateVolume(t, fat.FAT16, 512, 1, 100)

	_, err := table.Get(100)
	assert.ErrorIs(t, err, errors.ErrOutOfRange)

	assert.ErrorIs(t, table.Set(100, fat.Free), errors.ErrOutOfRange)
	assert.ErrorIs(t, table.Set(2, fat.Next(100)), errors.ErrOutOfRange)
	assert.ErrorIs(t, table.Set(2, fat.Next(1)), errors.ErrOutOfRange)
	assert.ErrorIs(t, table.Set(2, fat.Next(2)), errors.ErrFatTableError)

	value, err := table.Get(2)
	require.NoError(t, err)
	assert.Equal(t, fat.Free, value, "rejected writes must not modify the table")
}

func TestTable__FindFree(t *testing.T) {
	table, _ := fattest.CreateVolume(t, fat.FAT12, 512, 1, 16)

	cluster, err := table.FindFree(0)
	require.NoError(t, err)
	assert.EqualValues(t, 2, cluster, "reserved clusters must be skipped")

	for i := c.ClusterID(2); i < 6; i++ {
		require.NoError(t, table.Set(i, fat.Last))
	}

	cluster, err = table.FindFree(0)
	require.NoError(t, err)
	assert.EqualValues(t, 6, cluster)

	cluster, err = table.FindFree(10)
	require.NoError(t, err)
	assert.EqualValues(t, 10, cluster)

	for i := c.ClusterID(6); i < 16; i++ {
		require.NoError(t, table.Set(i, fat.Bad))
	}
	_, err = table.FindFree(0)
	assert.ErrorIs(t, err, errors.ErrNoFreeCluster)

	free, err := table.CountFree()
	require.NoError(t, err)
	assert.EqualValues(t, 0, free)
}

func TestNewTable__Mismatches(t *testing.T) {
	geometry := fat.LayoutGeometry(fat.FAT16, 512, 1, 1, 100)

	t.Run("sector size", func(t *testing.T) {
		device := fattest.CreateMemoryDevice(1024, geometry.TotalSectors(), nil, t)
		cache, err := blockcache.WrapDevice(device)
		require.NoError(t, err)

		_, err = fat.NewTable(blockcache.NewSector(cache), geometry)
		assert.ErrorIs(t, err, errors.ErrBadBlockSize)
	})

	t.Run("device too small", func(t *testing.T) {
		device := fattest.CreateMemoryDevice(512, geometry.TotalSectors()-1, nil, t)
		cache, err := blockcache.WrapDevice(device)
		require.NoError(t, err)

		_, err = fat.NewTable(blockcache.NewSector(cache), geometry)
		assert.ErrorIs(t, err, errors.ErrPartitionOutOfStorageSpace)
	})

	t.Run("invalid geometry", func(t *testing.T) {
		device := fattest.CreateMemoryDevice(512, geometry.TotalSectors(), nil, t)
		cache, err := blockcache.WrapDevice(device)
		require.NoError(t, err)

		broken := geometry
		broken.SectorsPerCluster = 0
		_, err = fat.NewTable(blockcache.NewSector(cache), broken)
		assert.ErrorIs(t, err, errors.ErrOutOfRange)
	})
}

func TestClusterValue__String(t *testing.T) {
	for value, expected := range map[fat.ClusterValue]string{
		fat.Free:     "Free",
		fat.Bad:      "Bad",
		fat.Last:     "Last",
		fat.Next(17): "Next(17)",
	} {
		assert.Equal(t, expected, value.String())
		assert.Equal(t, expected, fmt.Sprint(value))
	}
}

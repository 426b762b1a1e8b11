package testing

import (
	"testing"

	"github.com/dargueta/fatstream/file_systems/common/blockcache"
	"github.com/dargueta/fatstream/file_systems/fat"
	"github.com/stretchr/testify/require"
)

// CreateVolume lays out an in-memory volume with one reserved sector, a single
// allocation table, and `totalClusters` table entries, then formats the table.
// It returns the table and the raw image, which tracks every flushed write.
func CreateVolume(
	t *testing.T,
	variant fat.Variant,
	bytesPerSector uint,
	sectorsPerCluster uint,
	totalClusters uint,
) (*fat.Table, []byte) {
	geometry := fat.LayoutGeometry(variant, bytesPerSector, sectorsPerCluster, 1, totalClusters)
	return CreateVolumeWithGeometry(t, geometry)
}

// CreateVolumeWithGeometry is like [CreateVolume] but takes a full geometry.
func CreateVolumeWithGeometry(t *testing.T, geometry fat.Geometry) (*fat.Table, []byte) {
	require.NoError(t, geometry.Validate(), "test geometry is invalid")

	totalSectors := geometry.TotalSectors()
	image := make([]byte, totalSectors*geometry.BytesPerSector)
	device := CreateMemoryDevice(geometry.BytesPerSector, totalSectors, image, t)

	cache, err := blockcache.WrapDevice(device)
	require.NoError(t, err, "failed to create cache")

	table, err := fat.NewTable(blockcache.NewSector(cache), geometry)
	require.NoError(t, err, "failed to create table")
	require.NoError(t, table.Format(), "failed to format table")
	require.NoError(t, table.Flush(), "failed to flush formatted table")
	return table, image
}

// AllVariants lists every supported variant, for table-driven tests.
var AllVariants = []fat.Variant{fat.FAT12, fat.FAT16, fat.FAT32}

// Package fat implements the allocation table, cluster chain, and stream layers
// of FAT12, FAT16, and FAT32 volumes.
package fat

import (
	"fmt"
	"strings"

	"github.com/dargueta/fatstream/errors"
	c "github.com/dargueta/fatstream/file_systems/common"
)

// Variant is the width of an allocation table entry: 12, 16, or 32 bits.
type Variant int

const (
	FAT12 = Variant(12)
	FAT16 = Variant(16)
	FAT32 = Variant(32)
)

func (v Variant) String() string {
	return fmt.Sprintf("FAT%d", int(v))
}

// IsValid returns true if `v` is one of the three supported variants.
func (v Variant) IsValid() bool {
	return v == FAT12 || v == FAT16 || v == FAT32
}

// MaxClusters gives the number of table entries (including the two reserved
// ones) a variant can address before running into its marker values.
func (v Variant) MaxClusters() uint {
	switch v {
	case FAT12:
		return 0xFF7
	case FAT16:
		return 0xFFF7
	case FAT32:
		return 0x0FFFFFF7
	}
	return 0
}

// ParseVariant accepts "12", "FAT12", "fat12", and so on.
func ParseVariant(text string) (Variant, error) {
	switch strings.TrimPrefix(strings.ToUpper(strings.TrimSpace(text)), "FAT") {
	case "12":
		return FAT12, nil
	case "16":
		return FAT16, nil
	case "32":
		return FAT32, nil
	}
	return 0, errors.NewWithMessage(
		errors.OutOfRange,
		fmt.Sprintf("unrecognized FAT variant %q", text),
	)
}

// DetermineFATVersion determines the version of the FAT file system based on the number
// of clusters on the system. (This is the only proper way to do so.)
func DetermineFATVersion(totalClusters uint) Variant {
	// These cluster counts, while odd-looking, are correct. They're taken directly from
	// Microsoft's FAT documentation, v1.03, page 14.
	if totalClusters < 4085 {
		return FAT12
	}
	if totalClusters < 65525 {
		return FAT16
	}
	return FAT32
}

// Geometry describes where things are on a volume. These are the values a
// driver would normally derive from the boot sector.
type Geometry struct {
	Variant           Variant
	BytesPerSector    uint
	SectorsPerCluster uint
	// FirstTableSector is the sector where the first copy of the allocation
	// table begins, i.e. the number of reserved sectors.
	FirstTableSector c.LogicalBlock
	// FirstDataSector is the sector where cluster 2 begins.
	FirstDataSector c.LogicalBlock
	// TotalClusters is the number of entries in the allocation table, including
	// the two reserved ones. Valid data clusters are [2, TotalClusters).
	TotalClusters uint
	// RootCluster is the first cluster of the root directory. Only FAT32 keeps
	// the root directory in a cluster chain; it's informational for the rest.
	RootCluster c.ClusterID
}

// LayoutGeometry computes the geometry of a volume with a single allocation
// table placed right after `reservedSectors` and the data region right after
// the table.
func LayoutGeometry(
	variant Variant,
	bytesPerSector uint,
	sectorsPerCluster uint,
	reservedSectors uint,
	totalClusters uint,
) Geometry {
	geometry := Geometry{
		Variant:           variant,
		BytesPerSector:    bytesPerSector,
		SectorsPerCluster: sectorsPerCluster,
		FirstTableSector:  c.LogicalBlock(reservedSectors),
		TotalClusters:     totalClusters,
		RootCluster:       c.FirstValidCluster,
	}
	geometry.FirstDataSector = geometry.FirstTableSector + c.LogicalBlock(geometry.TableSectors())
	return geometry
}

// BytesPerCluster gives the size of a single cluster, in bytes.
func (g Geometry) BytesPerCluster() uint {
	return g.BytesPerSector * g.SectorsPerCluster
}

// TableSectors gives the number of sectors one copy of the allocation table
// needs to hold TotalClusters entries.
func (g Geometry) TableSectors() uint {
	var tableBytes uint
	switch g.Variant {
	case FAT12:
		tableBytes = (g.TotalClusters*3 + 1) / 2
	case FAT16:
		tableBytes = g.TotalClusters * 2
	default:
		tableBytes = g.TotalClusters * 4
	}
	if g.BytesPerSector == 0 {
		return 0
	}
	return (tableBytes + g.BytesPerSector - 1) / g.BytesPerSector
}

// TotalSectors gives the minimum number of sectors the device must have to
// hold every cluster.
func (g Geometry) TotalSectors() uint {
	dataClusters := uint(0)
	if g.TotalClusters > 2 {
		dataClusters = g.TotalClusters - 2
	}
	return uint(g.FirstDataSector) + dataClusters*g.SectorsPerCluster
}

// Validate checks the geometry for internal consistency. It doesn't look at
// any device.
func (g Geometry) Validate() error {
	if !g.Variant.IsValid() {
		return errors.NewWithMessage(
			errors.OutOfRange,
			fmt.Sprintf("FAT variant must be 12, 16, or 32, got %d", int(g.Variant)),
		)
	}

	// BytesPerSector must be 512, 1024, 2048, or 4096.
	switch g.BytesPerSector {
	case 512, 1024, 2048, 4096:
	default:
		return errors.NewWithMessage(
			errors.BadBlockSize,
			fmt.Sprintf(
				"BytesPerSector must be 512, 1024, 2048, or 4096, got %d",
				g.BytesPerSector,
			),
		)
	}

	// SectorsPerCluster must be 2^x with x in [0, 8)
	switch g.SectorsPerCluster {
	case 1, 2, 4, 8, 16, 32, 64, 128:
	default:
		return errors.NewWithMessage(
			errors.OutOfRange,
			fmt.Sprintf(
				"SectorsPerCluster must be a power of 2 in 1-128, got %d",
				g.SectorsPerCluster,
			),
		)
	}

	if g.BytesPerCluster() > 32768 {
		return errors.NewWithMessage(
			errors.OutOfRange,
			fmt.Sprintf(
				"BytesPerCluster cannot exceed 32,768 but got %d",
				g.BytesPerCluster(),
			),
		)
	}

	if g.TotalClusters <= 2 || g.TotalClusters > g.Variant.MaxClusters() {
		return errors.NewWithMessage(
			errors.OutOfRange,
			fmt.Sprintf(
				"%s volume must have between 3 and %d table entries, got %d",
				g.Variant,
				g.Variant.MaxClusters(),
				g.TotalClusters,
			),
		)
	}

	tableEnd := g.FirstTableSector + c.LogicalBlock(g.TableSectors())
	if g.FirstDataSector < tableEnd {
		return errors.NewWithMessage(
			errors.OutOfRange,
			fmt.Sprintf(
				"data region at sector %d overlaps allocation table ending at %d",
				g.FirstDataSector,
				tableEnd,
			),
		)
	}
	return nil
}

// ClusterToSector gives the first sector of a data cluster.
func (g Geometry) ClusterToSector(cluster c.ClusterID) (c.LogicalBlock, error) {
	if cluster < c.FirstValidCluster || uint(cluster) >= g.TotalClusters {
		return 0, errors.NewWithMessage(
			errors.OutOfRange,
			fmt.Sprintf(
				"invalid cluster number: %d not in range [2, %d)",
				cluster,
				g.TotalClusters,
			),
		)
	}
	offset := (uint(cluster) - 2) * g.SectorsPerCluster
	return g.FirstDataSector + c.LogicalBlock(offset), nil
}

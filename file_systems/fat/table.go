package fat

import (
	"encoding/binary"
	"fmt"

	"github.com/dargueta/fatstream/errors"
	c "github.com/dargueta/fatstream/file_systems/common"
	"github.com/dargueta/fatstream/file_systems/common/blockcache"
)

// ClusterKind tells what an allocation table entry means.
type ClusterKind int

const (
	// KindFree marks an unallocated cluster.
	KindFree ClusterKind = iota
	// KindBad marks a cluster that must never be allocated.
	KindBad
	// KindLast marks the final cluster of a chain.
	KindLast
	// KindNext links a cluster to the one after it in its chain.
	KindNext
)

// ClusterValue is the decoded content of one allocation table entry. Cluster is
// only meaningful when Kind is [KindNext].
type ClusterValue struct {
	Kind    ClusterKind
	Cluster c.ClusterID
}

var (
	Free = ClusterValue{Kind: KindFree}
	Bad  = ClusterValue{Kind: KindBad}
	Last = ClusterValue{Kind: KindLast}
)

// Next creates a value linking to `cluster`.
func Next(cluster c.ClusterID) ClusterValue {
	return ClusterValue{Kind: KindNext, Cluster: cluster}
}

func (value ClusterValue) String() string {
	switch value.Kind {
	case KindFree:
		return "Free"
	case KindBad:
		return "Bad"
	case KindLast:
		return "Last"
	default:
		return fmt.Sprintf("Next(%d)", value.Cluster)
	}
}

type entryCodec struct {
	mask uint32
	bad  uint32
	last uint32
	// media is written to entry 0 when formatting; entry 1 gets `mask`.
	media uint32
}

var codecs = map[Variant]entryCodec{
	FAT12: {mask: 0xFFF, bad: 0xFF7, last: 0xFF8, media: 0xFF8},
	FAT16: {mask: 0xFFFF, bad: 0xFFF7, last: 0xFFF8, media: 0xFFF8},
	FAT32: {mask: 0x0FFFFFFF, bad: 0x0FFFFFF7, last: 0x0FFFFFF8, media: 0x0FFFFFF8},
}

func (codec entryCodec) decode(raw uint32) ClusterValue {
	raw &= codec.mask
	switch {
	case raw == 0:
		return Free
	case raw == codec.bad:
		return Bad
	case raw >= codec.last:
		return Last
	}
	return Next(c.ClusterID(raw))
}

func (codec entryCodec) encode(value ClusterValue) uint32 {
	switch value.Kind {
	case KindFree:
		return 0
	case KindBad:
		return codec.bad
	case KindLast:
		return codec.last
	}
	return uint32(value.Cluster) & codec.mask
}

// Table reads and writes entries of the first allocation table of a volume.
// Secondary copies of the table are neither read nor updated.
type Table struct {
	sector   *blockcache.Sector
	geometry Geometry
	codec    entryCodec
}

// NewTable creates a table accessor. The geometry is validated, and the sector
// size of the cache must match it.
func NewTable(sector *blockcache.Sector, geometry Geometry) (*Table, error) {
	err := geometry.Validate()
	if err != nil {
		return nil, err
	}

	if sector.BytesPerSector() != geometry.BytesPerSector {
		return nil, errors.NewWithMessage(
			errors.BadBlockSize,
			fmt.Sprintf(
				"device has %d-byte blocks but the volume uses %d-byte sectors",
				sector.BytesPerSector(),
				geometry.BytesPerSector,
			),
		)
	}

	totalBlocks := sector.Cache().TotalBlocks()
	if geometry.TotalSectors() > totalBlocks {
		return nil, errors.NewWithMessage(
			errors.PartitionOutOfStorageSpace,
			fmt.Sprintf(
				"volume needs %d sectors but the device only has %d",
				geometry.TotalSectors(),
				totalBlocks,
			),
		)
	}

	return &Table{
		sector:   sector,
		geometry: geometry,
		codec:    codecs[geometry.Variant],
	}, nil
}

func (table *Table) Geometry() Geometry {
	return table.geometry
}

// Sector returns the byte-range view the table goes through. Streams built on
// this table share it.
func (table *Table) Sector() *blockcache.Sector {
	return table.sector
}

// Flush writes back any pending modification to the device.
func (table *Table) Flush() error {
	return table.sector.Flush()
}

func (table *Table) ClusterToSector(cluster c.ClusterID) (c.LogicalBlock, error) {
	return table.geometry.ClusterToSector(cluster)
}

func (table *Table) checkCluster(cluster c.ClusterID) error {
	if uint(cluster) >= table.geometry.TotalClusters {
		return errors.NewWithMessage(
			errors.OutOfRange,
			fmt.Sprintf(
				"invalid cluster number: %d not in range [0, %d)",
				cluster,
				table.geometry.TotalClusters,
			),
		)
	}
	return nil
}

// isDataCluster returns true if `cluster` can be part of a chain.
func (table *Table) isDataCluster(cluster c.ClusterID) bool {
	return cluster >= c.FirstValidCluster && uint(cluster) < table.geometry.TotalClusters
}

// entryLocation gives the sector and offset within it of the first byte of the
// entry for `cluster`.
func (table *Table) entryLocation(cluster c.ClusterID) (c.LogicalBlock, uint) {
	var byteOffset uint
	switch table.geometry.Variant {
	case FAT12:
		byteOffset = uint(cluster) + uint(cluster)/2
	case FAT16:
		byteOffset = uint(cluster) * 2
	default:
		byteOffset = uint(cluster) * 4
	}

	bytesPerSector := table.geometry.BytesPerSector
	sector := table.geometry.FirstTableSector + c.LogicalBlock(byteOffset/bytesPerSector)
	return sector, byteOffset % bytesPerSector
}

// readPair reads the two bytes holding a FAT12 entry. They may be split
// across two sectors.
func (table *Table) readPair(sector c.LogicalBlock, offset uint) (uint16, error) {
	buffer := make([]byte, 2)
	if offset+1 < table.geometry.BytesPerSector {
		err := table.sector.Read(sector, offset, buffer)
		if err != nil {
			return 0, err
		}
		return binary.LittleEndian.Uint16(buffer), nil
	}

	err := table.sector.Read(sector, offset, buffer[:1])
	if err != nil {
		return 0, err
	}
	err = table.sector.Read(sector+1, 0, buffer[1:])
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint16(buffer), nil
}

func (table *Table) writePair(sector c.LogicalBlock, offset uint, value uint16) error {
	buffer := make([]byte, 2)
	binary.LittleEndian.PutUint16(buffer, value)

	if offset+1 < table.geometry.BytesPerSector {
		return table.sector.Write(sector, offset, buffer)
	}

	err := table.sector.Write(sector, offset, buffer[:1])
	if err != nil {
		return err
	}
	return table.sector.Write(sector+1, 0, buffer[1:])
}

// readRaw returns the raw entry for `cluster`, before masking.
func (table *Table) readRaw(cluster c.ClusterID) (uint32, error) {
	sector, offset := table.entryLocation(cluster)

	switch table.geometry.Variant {
	case FAT12:
		pair, err := table.readPair(sector, offset)
		if err != nil {
			return 0, err
		}
		if cluster%2 == 0 {
			return uint32(pair & 0x0FFF), nil
		}
		return uint32(pair >> 4), nil

	case FAT16:
		buffer := make([]byte, 2)
		err := table.sector.Read(sector, offset, buffer)
		if err != nil {
			return 0, err
		}
		return uint32(binary.LittleEndian.Uint16(buffer)), nil

	default:
		buffer := make([]byte, 4)
		err := table.sector.Read(sector, offset, buffer)
		if err != nil {
			return 0, err
		}
		return binary.LittleEndian.Uint32(buffer), nil
	}
}

// writeRaw stores the low bits of `raw` in the entry for `cluster`. Bits that
// belong to other entries (FAT12) or are reserved (the top nibble of FAT32) are
// preserved.
func (table *Table) writeRaw(cluster c.ClusterID, raw uint32) error {
	sector, offset := table.entryLocation(cluster)

	switch table.geometry.Variant {
	case FAT12:
		pair, err := table.readPair(sector, offset)
		if err != nil {
			return err
		}
		entry := uint16(raw & 0x0FFF)
		if cluster%2 == 0 {
			pair = (pair & 0xF000) | entry
		} else {
			pair = (pair & 0x000F) | (entry << 4)
		}
		return table.writePair(sector, offset, pair)

	case FAT16:
		buffer := make([]byte, 2)
		binary.LittleEndian.PutUint16(buffer, uint16(raw))
		return table.sector.Write(sector, offset, buffer)

	default:
		buffer := make([]byte, 4)
		err := table.sector.Read(sector, offset, buffer)
		if err != nil {
			return err
		}
		old := binary.LittleEndian.Uint32(buffer)
		binary.LittleEndian.PutUint32(buffer, (old&0xF0000000)|(raw&0x0FFFFFFF))
		return table.sector.Write(sector, offset, buffer)
	}
}

// Get decodes the entry for `cluster`.
func (table *Table) Get(cluster c.ClusterID) (ClusterValue, error) {
	err := table.checkCluster(cluster)
	if err != nil {
		return Free, err
	}

	raw, err := table.readRaw(cluster)
	if err != nil {
		return Free, err
	}
	return table.codec.decode(raw), nil
}

// Set encodes `value` into the entry for `cluster`. A [KindNext] value must
// point at a data cluster other than `cluster` itself.
func (table *Table) Set(cluster c.ClusterID, value ClusterValue) error {
	err := table.checkCluster(cluster)
	if err != nil {
		return err
	}

	if value.Kind == KindNext {
		if !table.isDataCluster(value.Cluster) {
			return errors.NewWithMessage(
				errors.OutOfRange,
				fmt.Sprintf(
					"cluster %d can't link to %d: not in range [2, %d)",
					cluster,
					value.Cluster,
					table.geometry.TotalClusters,
				),
			)
		}
		if value.Cluster == cluster {
			return errors.NewWithMessage(
				errors.FatTableError,
				fmt.Sprintf("cluster %d can't link to itself", cluster),
			)
		}
	}

	return table.writeRaw(cluster, table.codec.encode(value))
}

// FindFree returns the first free cluster at or after `start`. Reserved
// clusters are never returned, so a `start` below 2 is treated as 2.
func (table *Table) FindFree(start c.ClusterID) (c.ClusterID, error) {
	if start < c.FirstValidCluster {
		start = c.FirstValidCluster
	}

	for cluster := start; uint(cluster) < table.geometry.TotalClusters; cluster++ {
		value, err := table.Get(cluster)
		if err != nil {
			return 0, err
		}
		if value.Kind == KindFree {
			return cluster, nil
		}
	}

	return 0, errors.NewWithMessage(
		errors.NoFreeCluster,
		fmt.Sprintf("no free cluster in range [%d, %d)", start, table.geometry.TotalClusters),
	)
}

// CountFree returns the number of free data clusters on the volume.
func (table *Table) CountFree() (uint, error) {
	total := uint(0)
	for cluster := c.FirstValidCluster; uint(cluster) < table.geometry.TotalClusters; cluster++ {
		value, err := table.Get(cluster)
		if err != nil {
			return 0, err
		}
		if value.Kind == KindFree {
			total++
		}
	}
	return total, nil
}

// Format clears the whole allocation table, then writes the two reserved
// entries: the media descriptor in entry 0 and an end-of-chain marker in entry
// 1. Every data cluster is free afterwards.
func (table *Table) Format() error {
	zeroes := make([]byte, table.geometry.BytesPerSector)
	tableSectors := c.LogicalBlock(table.geometry.TableSectors())

	for i := c.LogicalBlock(0); i < tableSectors; i++ {
		err := table.sector.Write(table.geometry.FirstTableSector+i, 0, zeroes)
		if err != nil {
			return err
		}
	}

	err := table.writeRaw(0, table.codec.media)
	if err != nil {
		return err
	}
	return table.writeRaw(1, table.codec.mask)
}

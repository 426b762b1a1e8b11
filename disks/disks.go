// Package disks holds predefined volume geometries, so that callers who don't
// have a boot sector to read can still address common media.
package disks

import (
	_ "embed"
	"encoding/csv"
	"fmt"
	"sort"
	"strings"

	"github.com/dargueta/fatstream/errors"
	"github.com/dargueta/fatstream/file_systems/fat"
	"github.com/gocarina/gocsv"
)

// VolumeGeometry is one row of the preset table.
type VolumeGeometry struct {
	Slug              string `csv:"slug"`
	Name              string `csv:"name"`
	Variant           int    `csv:"variant"`
	BytesPerSector    uint   `csv:"bytes_per_sector"`
	SectorsPerCluster uint   `csv:"sectors_per_cluster"`
	// ReservedSectors gives the number of sectors before the allocation table.
	ReservedSectors uint `csv:"reserved_sectors"`
	// TotalClusters gives the number of table entries, including the two
	// reserved ones.
	TotalClusters uint   `csv:"total_clusters"`
	Notes         string `csv:"notes"`
}

// Geometry lays out the volume described by the preset.
func (g *VolumeGeometry) Geometry() fat.Geometry {
	return fat.LayoutGeometry(
		fat.Variant(g.Variant),
		g.BytesPerSector,
		g.SectorsPerCluster,
		g.ReservedSectors,
		g.TotalClusters,
	)
}

// TotalSizeBytes gives the minimum size of an image holding the volume.
func (g *VolumeGeometry) TotalSizeBytes() int64 {
	geometry := g.Geometry()
	return int64(geometry.TotalSectors()) * int64(geometry.BytesPerSector)
}

////////////////////////////////////////////////////////////////////////////////

//go:embed volume-geometries.csv
var volumeGeometriesRawCSV string
var volumeGeometries map[string]VolumeGeometry

// GetPredefinedGeometry returns the preset with the given slug.
func GetPredefinedGeometry(slug string) (VolumeGeometry, error) {
	geometry, ok := volumeGeometries[slug]
	if ok {
		return geometry, nil
	}

	return VolumeGeometry{}, errors.NewWithMessage(
		errors.FileOrFolderDoesNotExist,
		fmt.Sprintf("no predefined volume geometry exists with slug %q", slug),
	)
}

// ListPredefinedGeometries returns the slugs of all presets, sorted.
func ListPredefinedGeometries() []string {
	slugs := make([]string, 0, len(volumeGeometries))
	for slug := range volumeGeometries {
		slugs = append(slugs, slug)
	}
	sort.Strings(slugs)
	return slugs
}

func init() {
	csvReader := csv.NewReader(strings.NewReader(volumeGeometriesRawCSV))
	csvReader.Comma = '|'

	rows := []VolumeGeometry{}
	err := gocsv.UnmarshalCSV(csvReader, &rows)
	if err != nil {
		panic(fmt.Errorf("failed to decode volume geometries: %w", err))
	}

	volumeGeometries = make(map[string]VolumeGeometry, len(rows))
	for i, row := range rows {
		_, exists := volumeGeometries[row.Slug]
		if exists {
			message := fmt.Errorf(
				"duplicate definition for volume %q found on row %d",
				row.Slug,
				i+1)
			panic(message)
		}

		err = row.Geometry().Validate()
		if err != nil {
			panic(fmt.Errorf("volume %q on row %d is invalid: %w", row.Slug, i+1, err))
		}
		volumeGeometries[row.Slug] = row
	}
}

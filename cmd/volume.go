package main

import (
	"fmt"

	"github.com/dargueta/fatstream/disks"
	"github.com/dargueta/fatstream/errors"
	c "github.com/dargueta/fatstream/file_systems/common"
	"github.com/dargueta/fatstream/file_systems/common/blockcache"
	"github.com/dargueta/fatstream/file_systems/common/blockdevice"
	"github.com/dargueta/fatstream/file_systems/fat"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/afero"
	"github.com/urfave/cli/v2"
)

// hostFs is where image and host files live. Tests swap in a memory-backed one.
var hostFs afero.Fs = afero.NewOsFs()

type volume struct {
	device *blockdevice.StreamDevice
	table  *fat.Table
}

// geometryFromFlags builds the volume geometry from --geometry if given, or
// from the individual layout flags otherwise.
func geometryFromFlags(context *cli.Context) (fat.Geometry, error) {
	slug := context.String("geometry")
	if slug != "" {
		preset, err := disks.GetPredefinedGeometry(slug)
		if err != nil {
			return fat.Geometry{}, err
		}
		log.Debugf("using predefined geometry %q (%s)", preset.Slug, preset.Name)
		return preset.Geometry(), nil
	}

	totalClusters := context.Uint("clusters")
	if totalClusters <= uint(c.FirstValidCluster) {
		return fat.Geometry{}, errors.NewWithMessage(
			errors.BadCount,
			"either --geometry or --clusters (greater than 2) is required",
		)
	}

	variant := fat.DetermineFATVersion(totalClusters - uint(c.FirstValidCluster))
	if context.IsSet("fat") {
		var err error
		variant, err = fat.ParseVariant(context.String("fat"))
		if err != nil {
			return fat.Geometry{}, err
		}
	}

	geometry := fat.LayoutGeometry(
		variant,
		context.Uint("sector-size"),
		context.Uint("sectors-per-cluster"),
		context.Uint("reserved-sectors"),
		totalClusters,
	)
	return geometry, geometry.Validate()
}

// openVolume opens the image named by --image. If `create` is set, the image
// is created or resized to fit the geometry first.
func openVolume(context *cli.Context, create bool) (*volume, error) {
	path := context.String("image")
	if path == "" {
		return nil, errors.NewWithMessage(
			errors.FileOrFolderDoesNotExist, "--image is required")
	}

	geometry, err := geometryFromFlags(context)
	if err != nil {
		return nil, err
	}

	var device *blockdevice.StreamDevice
	if create {
		device, err = blockdevice.Create(
			hostFs,
			path,
			geometry.BytesPerSector,
			geometry.TotalSectors(),
			context.Int64("offset"))
	} else {
		device, err = blockdevice.Open(
			hostFs, path, geometry.BytesPerSector, context.Int64("offset"))
	}
	if err != nil {
		return nil, fmt.Errorf("can't open image %q: %w", path, err)
	}

	cache, err := blockcache.WrapDevice(device)
	if err != nil {
		device.Close()
		return nil, err
	}

	table, err := fat.NewTable(blockcache.NewSector(cache), geometry)
	if err != nil {
		device.Close()
		return nil, err
	}

	log.Debugf(
		"opened %s volume %q: %d clusters, %d bytes per cluster",
		geometry.Variant,
		path,
		geometry.TotalClusters,
		geometry.BytesPerCluster())
	return &volume{device: device, table: table}, nil
}

// Close writes back pending changes and closes the image.
func (v *volume) Close() error {
	flushErr := v.table.Flush()
	closeErr := v.device.Close()
	if flushErr != nil {
		return flushErr
	}
	return closeErr
}

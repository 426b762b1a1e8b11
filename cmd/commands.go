package main

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/dargueta/fatstream/disks"
	"github.com/dargueta/fatstream/errors"
	c "github.com/dargueta/fatstream/file_systems/common"
	"github.com/dargueta/fatstream/file_systems/fat"
	"github.com/urfave/cli/v2"
)

func parseClusterArg(context *cli.Context, index int) (c.ClusterID, error) {
	text := context.Args().Get(index)
	if text == "" {
		return 0, errors.NewWithMessage(errors.BadCount, "missing CLUSTER argument")
	}
	value, err := strconv.ParseUint(text, 0, 32)
	if err != nil {
		return 0, errors.NewWithMessage(
			errors.OutOfRange, fmt.Sprintf("invalid cluster %q", text))
	}
	return c.ClusterID(value), nil
}

func formatImage(context *cli.Context) error {
	vol, err := openVolume(context, true)
	if err != nil {
		return err
	}
	defer vol.Close()

	err = vol.table.Format()
	if err != nil {
		return err
	}

	geometry := vol.table.Geometry()
	fmt.Fprintf(
		context.App.Writer,
		"formatted %s volume: %d data clusters of %d bytes\n",
		geometry.Variant,
		geometry.TotalClusters-uint(c.FirstValidCluster),
		geometry.BytesPerCluster())
	return vol.Close()
}

func showInfo(context *cli.Context) error {
	vol, err := openVolume(context, false)
	if err != nil {
		return err
	}
	defer vol.Close()

	freeClusters, err := vol.table.CountFree()
	if err != nil {
		return err
	}

	geometry := vol.table.Geometry()
	out := context.App.Writer
	fmt.Fprintf(out, "variant:             %s\n", geometry.Variant)
	fmt.Fprintf(out, "bytes per sector:    %d\n", geometry.BytesPerSector)
	fmt.Fprintf(out, "sectors per cluster: %d\n", geometry.SectorsPerCluster)
	fmt.Fprintf(out, "first table sector:  %d\n", geometry.FirstTableSector)
	fmt.Fprintf(out, "first data sector:   %d\n", geometry.FirstDataSector)
	fmt.Fprintf(out, "total clusters:      %d\n", geometry.TotalClusters)
	fmt.Fprintf(out, "free clusters:       %d\n", freeClusters)
	return nil
}

func listChain(context *cli.Context) error {
	cluster, err := parseClusterArg(context, 0)
	if err != nil {
		return err
	}

	vol, err := openVolume(context, false)
	if err != nil {
		return err
	}
	defer vol.Close()

	chain, err := vol.table.ListChain(cluster)
	if err != nil {
		return err
	}

	parts := make([]string, len(chain))
	for i, link := range chain {
		parts[i] = strconv.FormatUint(uint64(link), 10)
	}
	fmt.Fprintln(context.App.Writer, strings.Join(parts, " "))
	return nil
}

func catFile(context *cli.Context) error {
	cluster, err := parseClusterArg(context, 0)
	if err != nil {
		return err
	}
	size, err := strconv.ParseInt(context.Args().Get(1), 0, 64)
	if err != nil {
		return errors.NewWithMessage(
			errors.OutOfRange,
			fmt.Sprintf("invalid SIZE %q", context.Args().Get(1)))
	}

	vol, err := openVolume(context, false)
	if err != nil {
		return err
	}
	defer vol.Close()

	file, err := fat.NewFile(vol.table, cluster, size)
	if err != nil {
		return err
	}
	_, err = file.WriteTo(context.App.Writer)
	return err
}

func listDirectory(context *cli.Context) error {
	cluster, err := parseClusterArg(context, 0)
	if err != nil {
		return err
	}

	vol, err := openVolume(context, false)
	if err != nil {
		return err
	}
	defer vol.Close()

	stream, err := fat.NewStream(vol.table, cluster)
	if err != nil {
		return err
	}

	entries, err := fat.ReadDirEntries(stream)
	if err != nil {
		return err
	}
	for _, entry := range entries {
		fmt.Fprintf(
			context.App.Writer,
			"%-11s  attr=0x%02x  cluster=%-8d  size=%d\n",
			entry.RawName(),
			entry.Attributes(),
			entry.FirstCluster(),
			entry.FileSize())
	}
	return nil
}

func putFile(context *cli.Context) error {
	hostPath := context.Args().First()
	if hostPath == "" {
		return errors.NewWithMessage(errors.BadCount, "missing HOST_FILE argument")
	}

	source, err := hostFs.Open(hostPath)
	if err != nil {
		return errors.NewFromError(errors.FileOrFolderDoesNotExist, err)
	}
	defer source.Close()

	vol, err := openVolume(context, false)
	if err != nil {
		return err
	}
	defer vol.Close()

	file, err := fat.CreateFile(vol.table)
	if err != nil {
		return err
	}

	_, err = io.Copy(file, source)
	if err != nil {
		file.Remove()
		return err
	}

	err = file.Close()
	if err != nil {
		return err
	}

	fmt.Fprintf(
		context.App.Writer,
		"cluster=%d size=%d\n",
		file.FirstCluster(),
		file.Size())
	return vol.Close()
}

func removeChain(context *cli.Context) error {
	cluster, err := parseClusterArg(context, 0)
	if err != nil {
		return err
	}

	vol, err := openVolume(context, false)
	if err != nil {
		return err
	}
	defer vol.Close()

	err = vol.table.DeleteChain(cluster)
	if err != nil {
		return err
	}
	return vol.Close()
}

func listPresets(context *cli.Context) error {
	for _, slug := range disks.ListPredefinedGeometries() {
		preset, err := disks.GetPredefinedGeometry(slug)
		if err != nil {
			return err
		}
		fmt.Fprintf(
			context.App.Writer,
			"%-16s FAT%-2d %10d bytes  %s\n",
			preset.Slug,
			preset.Variant,
			preset.TotalSizeBytes(),
			preset.Name)
	}
	return nil
}

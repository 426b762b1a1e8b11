package main

import (
	"os"

	log "github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"
)

func newApp() *cli.App {
	return &cli.App{
		Name:  "fatstream",
		Usage: "Inspect and modify cluster chains on FAT12/16/32 volume images",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "image",
				Aliases: []string{"i"},
				Usage:   "path to the image file",
			},
			&cli.StringFlag{
				Name:    "geometry",
				Aliases: []string{"g"},
				Usage:   "use a predefined volume geometry (see the `presets` command)",
			},
			&cli.StringFlag{
				Name:  "fat",
				Usage: "FAT variant: 12, 16, or 32 (default: derived from --clusters)",
			},
			&cli.UintFlag{
				Name:  "sector-size",
				Usage: "bytes per sector",
				Value: 512,
			},
			&cli.UintFlag{
				Name:  "sectors-per-cluster",
				Usage: "sectors per cluster",
				Value: 1,
			},
			&cli.UintFlag{
				Name:  "reserved-sectors",
				Usage: "sectors before the allocation table",
				Value: 1,
			},
			&cli.UintFlag{
				Name:  "clusters",
				Usage: "number of allocation table entries, including the two reserved ones",
			},
			&cli.Int64Flag{
				Name:  "offset",
				Usage: "byte offset of the volume within the image",
			},
			&cli.BoolFlag{
				Name:    "verbose",
				Aliases: []string{"v"},
				Usage:   "log allocation table changes",
			},
		},
		Before: func(context *cli.Context) error {
			if context.Bool("verbose") {
				log.SetLevel(log.DebugLevel)
			}
			return nil
		},
		Commands: []*cli.Command{
			{
				Name:   "format",
				Usage:  "Create or resize an image and clear its allocation table",
				Action: formatImage,
			},
			{
				Name:   "info",
				Usage:  "Show the volume geometry and free space",
				Action: showInfo,
			},
			{
				Name:      "chain",
				Usage:     "List the clusters of a chain",
				ArgsUsage: "CLUSTER",
				Action:    listChain,
			},
			{
				Name:      "cat",
				Usage:     "Write the contents of a file to stdout",
				ArgsUsage: "CLUSTER SIZE",
				Action:    catFile,
			},
			{
				Name:      "ls",
				Usage:     "List the entries of a directory",
				ArgsUsage: "CLUSTER",
				Action:    listDirectory,
			},
			{
				Name:      "put",
				Usage:     "Copy a file from the host into a new chain",
				ArgsUsage: "HOST_FILE",
				Action:    putFile,
			},
			{
				Name:      "rm",
				Usage:     "Free a chain",
				ArgsUsage: "CLUSTER",
				Action:    removeChain,
			},
			{
				Name:   "presets",
				Usage:  "List the predefined volume geometries",
				Action: listPresets,
			},
		},
	}
}

func main() {
	err := newApp().Run(os.Args)
	if err != nil {
		log.Fatalf("fatal error: %s", err.Error())
	}
}

package main

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/urfave/cli/v2"

	"github.com/sffs-go/sffs"
	"github.com/sffs-go/sffs/core"
	"github.com/sffs-go/sffs/presets"
)

func main() {
	app := cli.App{
		Usage:     "Create a fresh SFFS image",
		ArgsUsage: "IMAGE_PATH",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "fs-size", Usage: "image size, e.g. 50M, 2G, or a raw byte count"},
			&cli.StringFlag{Name: "preset", Usage: "named image-size preset (see presets package); overrides --fs-size/--block-size/--inode-ratio"},
			&cli.UintFlag{Name: "block-size", Value: 4096, Usage: "block size in bytes, must be a power of two"},
			&cli.UintFlag{Name: "inode-ratio", Value: sffs.InodeRatio, Usage: "bytes per inode"},
		},
		Action: mkfs,
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatalf("mkfs: %s", err)
	}
}

func mkfs(c *cli.Context) error {
	if c.Args().Len() != 1 {
		return cli.Exit("expected exactly one argument: the image path", 1)
	}
	imagePath := c.Args().First()

	fsSize, blockSize, inodeRatio, err := resolveGeometry(c)
	if err != nil {
		return cli.Exit(err.Error(), 1)
	}

	sb, err := core.Init(fsSize, blockSize, inodeRatio)
	if err != nil {
		return cli.Exit(fmt.Sprintf("layout computation failed: %s", err), 2)
	}

	file, err := os.Create(imagePath)
	if err != nil {
		return cli.Exit(fmt.Sprintf("could not create %q: %s", imagePath, err), 1)
	}
	defer file.Close()

	if err := file.Truncate(int64(sb.BlocksTotal * uint64(sb.BlockSize))); err != nil {
		return cli.Exit(fmt.Sprintf("could not size %q: %s", imagePath, err), 1)
	}
	if err := sb.WriteTo(file); err != nil {
		return cli.Exit(fmt.Sprintf("could not write superblock: %s", err), 1)
	}

	ctx, err := core.Mount(file, 0)
	if err != nil {
		return cli.Exit(fmt.Sprintf("could not mount freshly formatted image: %s", err), 1)
	}
	if err := ctx.Format(sffs.S_IRWXU|sffs.S_IRGRP|sffs.S_IXGRP|sffs.S_IROTH|sffs.S_IXOTH, 0, 0); err != nil {
		return cli.Exit(fmt.Sprintf("could not create root directory: %s", err), 1)
	}
	if err := core.Unmount(ctx); err != nil {
		return cli.Exit(fmt.Sprintf("could not flush new image: %s", err), 1)
	}

	fmt.Printf(
		"created %q: %d blocks of %d bytes, %d inodes\n",
		imagePath, sb.BlocksTotal, sb.BlockSize, sb.InodesTotal)
	return nil
}

// resolveGeometry applies --preset if given, otherwise --fs-size plus the
// block-size/inode-ratio flags.
func resolveGeometry(c *cli.Context) (fsSize uint64, blockSize uint32, inodeRatio uint32, err error) {
	if slug := c.String("preset"); slug != "" {
		preset, err := presets.Get(slug)
		if err != nil {
			return 0, 0, 0, err
		}
		return uint64(preset.SizeBytes), preset.BlockSize, preset.InodeRatio, nil
	}

	sizeFlag := c.String("fs-size")
	if sizeFlag == "" {
		return 0, 0, 0, fmt.Errorf("one of --fs-size or --preset is required")
	}
	fsSize, err = parseSize(sizeFlag)
	if err != nil {
		return 0, 0, 0, err
	}
	return fsSize, uint32(c.Uint("block-size")), uint32(c.Uint("inode-ratio")), nil
}

// parseSize parses a size string like "50M", "2G", "1024K", or a raw byte
// count with no suffix.
func parseSize(s string) (uint64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("empty size")
	}

	multiplier := uint64(1)
	suffix := s[len(s)-1]
	switch suffix {
	case 'K', 'k':
		multiplier = 1024
		s = s[:len(s)-1]
	case 'M', 'm':
		multiplier = 1024 * 1024
		s = s[:len(s)-1]
	case 'G', 'g':
		multiplier = 1024 * 1024 * 1024
		s = s[:len(s)-1]
	}

	value, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid size %q: %w", s, err)
	}
	return value * multiplier, nil
}

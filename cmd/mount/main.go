package main

import (
	"log"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/sffs-go/sffs"
	"github.com/sffs-go/sffs/core"
)

func main() {
	app := cli.App{
		Usage: "Open an SFFS image and report its status",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "fs-image", Required: true, Usage: "path to the image file"},
			&cli.StringFlag{Name: "log-file", Usage: "where to write the mount summary; defaults to stderr"},
			&cli.BoolFlag{Name: "read-only", Usage: "mount without permitting mutation"},
		},
		Action: mount,
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatalf("mount: %s", err)
	}
}

func mount(c *cli.Context) error {
	logOutput := os.Stderr
	if path := c.String("log-file"); path != "" {
		f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return cli.Exit("could not open log file: "+err.Error(), 1)
		}
		defer f.Close()
		log.SetOutput(f)
	} else {
		log.SetOutput(logOutput)
	}

	imagePath := c.String("fs-image")
	file, err := os.OpenFile(imagePath, os.O_RDWR, 0)
	if err != nil {
		return cli.Exit("could not open image: "+err.Error(), 1)
	}
	defer file.Close()

	flags := mountFlags(c)
	ctx, err := core.Mount(file, flags)
	if err != nil {
		return cli.Exit("mount failed: "+err.Error(), 2)
	}

	stat := ctx.StatFS()
	log.Printf(
		"mounted %s: block_size=%d free_blocks=%d/%d free_inodes=%d/%d",
		imagePath, stat.BlockSize, stat.FreeBlocks, stat.TotalBlocks, stat.FreeInodes, stat.TotalInodes)

	if err := core.Unmount(ctx); err != nil {
		return cli.Exit("unmount failed: "+err.Error(), 2)
	}
	return nil
}

func mountFlags(c *cli.Context) (flags sffs.MountFlags) {
	if c.Bool("read-only") {
		flags |= sffs.MountReadOnly
	}
	return flags
}

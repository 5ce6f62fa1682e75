// Command fat12 is a small urfave/cli wrapper around the volume package:
// format, list, read, write, and manage files on a 1.44 MB FAT12 image
// file.
package main

import (
	"fmt"
	"log"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/hisahi/fat12/blockimage"
	"github.com/hisahi/fat12/disks"
	"github.com/hisahi/fat12/volume"
)

func main() {
	app := cli.App{
		Name:  "fat12",
		Usage: "Inspect and manipulate 1.44 MB FAT12 floppy images",
		Commands: []*cli.Command{
			{
				Name:      "format",
				Usage:     "Create a fresh formatted image",
				ArgsUsage: "IMAGE",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "label", Value: ""},
				},
				Action: formatImage,
			},
			{
				Name:      "ls",
				Usage:     "List files and directories at a path",
				ArgsUsage: "IMAGE PATH",
				Flags: []cli.Flag{
					&cli.BoolFlag{Name: "all", Aliases: []string{"a"}},
				},
				Action: listDirectory,
			},
			{
				Name:      "cat",
				Usage:     "Print a file's contents to stdout",
				ArgsUsage: "IMAGE PATH",
				Action:    catFile,
			},
			{
				Name:      "put",
				Usage:     "Copy a host file into the image",
				ArgsUsage: "IMAGE HOST_FILE IMAGE_PATH",
				Action:    putFile,
			},
			{
				Name:      "get",
				Usage:     "Copy a file out of the image to the host",
				ArgsUsage: "IMAGE IMAGE_PATH HOST_FILE",
				Action:    getFile,
			},
			{
				Name:      "mkdir",
				Usage:     "Create a directory",
				ArgsUsage: "IMAGE PATH",
				Action:    mkdir,
			},
			{
				Name:      "rmdir",
				Usage:     "Remove an empty directory",
				ArgsUsage: "IMAGE PATH",
				Action:    rmdir,
			},
			{
				Name:      "rm",
				Usage:     "Delete a file",
				ArgsUsage: "IMAGE PATH",
				Action:    rm,
			},
			{
				Name:      "mv",
				Usage:     "Move a file or directory into an existing directory",
				ArgsUsage: "IMAGE SOURCE DEST",
				Action:    mv,
			},
			{
				Name:      "cp",
				Usage:     "Copy a file within the image",
				ArgsUsage: "IMAGE SOURCE DEST",
				Action:    cp,
			},
			{
				Name:      "label",
				Usage:     "Read or set the volume label",
				ArgsUsage: "IMAGE [NEW_LABEL]",
				Action:    label,
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatalf("fatal error: %s", err.Error())
	}
}

func openImage(path string) (*blockimage.Image, []byte, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, err
	}
	img, err := blockimage.Open(raw)
	if err != nil {
		return nil, nil, err
	}
	return img, raw, nil
}

func persist(path string, raw []byte) error {
	return os.WriteFile(path, raw, 0o644)
}

func formatImage(c *cli.Context) error {
	if c.Args().Len() < 1 {
		return fmt.Errorf("usage: fat12 format IMAGE")
	}
	path := c.Args().Get(0)
	label := c.String("label")

	raw := make([]byte, blockimage.Capacity)
	img, err := blockimage.Open(raw)
	if err != nil {
		return err
	}
	v, err := volume.Format(img, label, volume.MountOptions{})
	if err != nil {
		return err
	}

	geometry, _ := disks.GetPredefinedDiskGeometry(disks.CanonicalSlug)
	fmt.Printf("formatted %s (%s, %s)\n", path, v.MediaName(), geometry.Notes)
	return persist(path, raw)
}

func mountForRead(path string) (*volume.Volume, error) {
	img, _, err := openImage(path)
	if err != nil {
		return nil, err
	}
	return volume.Mount(img, volume.MountOptions{ReadOnly: true})
}

func mountForWrite(path string) (*volume.Volume, []byte, error) {
	img, raw, err := openImage(path)
	if err != nil {
		return nil, nil, err
	}
	v, err := volume.Mount(img, volume.MountOptions{})
	if err != nil {
		return nil, nil, err
	}
	return v, raw, nil
}

func listDirectory(c *cli.Context) error {
	if c.Args().Len() < 2 {
		return fmt.Errorf("usage: fat12 ls IMAGE PATH")
	}
	v, err := mountForRead(c.Args().Get(0))
	if err != nil {
		return err
	}
	hidden := c.Bool("all")

	dirs, err := v.ListDirs(c.Args().Get(1), hidden)
	if err != nil {
		return err
	}
	files, err := v.ListFiles(c.Args().Get(1), hidden)
	if err != nil {
		return err
	}
	for _, d := range dirs {
		fmt.Printf("%s/\n", d)
	}
	for _, f := range files {
		fmt.Println(f)
	}
	return nil
}

func catFile(c *cli.Context) error {
	if c.Args().Len() < 2 {
		return fmt.Errorf("usage: fat12 cat IMAGE PATH")
	}
	v, err := mountForRead(c.Args().Get(0))
	if err != nil {
		return err
	}
	data, err := v.ReadFile(c.Args().Get(1))
	if err != nil {
		return err
	}
	_, err = os.Stdout.Write(data)
	return err
}

func putFile(c *cli.Context) error {
	if c.Args().Len() < 3 {
		return fmt.Errorf("usage: fat12 put IMAGE HOST_FILE IMAGE_PATH")
	}
	imagePath, hostFile, destPath := c.Args().Get(0), c.Args().Get(1), c.Args().Get(2)
	v, raw, err := mountForWrite(imagePath)
	if err != nil {
		return err
	}
	data, err := os.ReadFile(hostFile)
	if err != nil {
		return err
	}
	if !v.Exists(destPath) {
		if err := v.CreateFile(destPath); err != nil {
			return err
		}
	}
	if err := v.WriteFile(destPath, data, true); err != nil {
		return err
	}
	return persist(imagePath, raw)
}

func getFile(c *cli.Context) error {
	if c.Args().Len() < 3 {
		return fmt.Errorf("usage: fat12 get IMAGE IMAGE_PATH HOST_FILE")
	}
	v, err := mountForRead(c.Args().Get(0))
	if err != nil {
		return err
	}
	data, err := v.ReadFile(c.Args().Get(1))
	if err != nil {
		return err
	}
	return os.WriteFile(c.Args().Get(2), data, 0o644)
}

func mkdir(c *cli.Context) error {
	if c.Args().Len() < 2 {
		return fmt.Errorf("usage: fat12 mkdir IMAGE PATH")
	}
	imagePath := c.Args().Get(0)
	v, raw, err := mountForWrite(imagePath)
	if err != nil {
		return err
	}
	if err := v.CreateDirectory(c.Args().Get(1), false); err != nil {
		return err
	}
	return persist(imagePath, raw)
}

func rmdir(c *cli.Context) error {
	if c.Args().Len() < 2 {
		return fmt.Errorf("usage: fat12 rmdir IMAGE PATH")
	}
	imagePath := c.Args().Get(0)
	v, raw, err := mountForWrite(imagePath)
	if err != nil {
		return err
	}
	if err := v.RemoveDirectory(c.Args().Get(1)); err != nil {
		return err
	}
	return persist(imagePath, raw)
}

func rm(c *cli.Context) error {
	if c.Args().Len() < 2 {
		return fmt.Errorf("usage: fat12 rm IMAGE PATH")
	}
	imagePath := c.Args().Get(0)
	v, raw, err := mountForWrite(imagePath)
	if err != nil {
		return err
	}
	if err := v.DeleteFile(c.Args().Get(1), false); err != nil {
		return err
	}
	return persist(imagePath, raw)
}

func mv(c *cli.Context) error {
	if c.Args().Len() < 3 {
		return fmt.Errorf("usage: fat12 mv IMAGE SOURCE DEST")
	}
	imagePath := c.Args().Get(0)
	v, raw, err := mountForWrite(imagePath)
	if err != nil {
		return err
	}
	if err := v.Move(c.Args().Get(1), c.Args().Get(2)); err != nil {
		return err
	}
	return persist(imagePath, raw)
}

func cp(c *cli.Context) error {
	if c.Args().Len() < 3 {
		return fmt.Errorf("usage: fat12 cp IMAGE SOURCE DEST")
	}
	imagePath := c.Args().Get(0)
	v, raw, err := mountForWrite(imagePath)
	if err != nil {
		return err
	}
	if err := v.Copy(c.Args().Get(1), c.Args().Get(2), false); err != nil {
		return err
	}
	return persist(imagePath, raw)
}

func label(c *cli.Context) error {
	if c.Args().Len() < 1 {
		return fmt.Errorf("usage: fat12 label IMAGE [NEW_LABEL]")
	}
	imagePath := c.Args().Get(0)
	if c.Args().Len() == 1 {
		v, err := mountForRead(imagePath)
		if err != nil {
			return err
		}
		l, err := v.ReadLabel()
		if err != nil {
			return err
		}
		fmt.Println(l)
		return nil
	}

	v, raw, err := mountForWrite(imagePath)
	if err != nil {
		return err
	}
	if err := v.SetLabel(c.Args().Get(1)); err != nil {
		return err
	}
	return persist(imagePath, raw)
}

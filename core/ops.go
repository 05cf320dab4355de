// Package core implements the operations spec.md §6 exposes to a kernel
// bridge: mount, unmount, getattr, readdir, mkdir, statfs. Everything
// below this layer (superblock, inode store, inode-list and block
// allocators, directory engine) is implementation detail the bridge never
// touches directly.
package core

import (
	"strings"
	"time"

	"github.com/sffs-go/sffs"
)

// RootInodeNumber is the root directory's fixed inode number (spec.md
// §3: "The root directory's inode has number 0 and type directory.").
const RootInodeNumber = 0

// Format finishes what core.Init starts: it allocates inode 0 as the
// root directory (mode plus the given uid/gid) and gives it a directory
// block whose "." and ".." both point to itself (spec.md §6).
func (ctx *Context) Format(mode uint32, uid, gid uint32) error {
	root, err := NewInode(RootInodeNumber, sffs.S_IFDIR|(mode&^sffs.S_IFMT), uid, gid)
	if err != nil {
		return err
	}
	if err := ctx.CreateInode(root); err != nil {
		return err
	}
	return ctx.InitChildDirectory(root, RootInodeNumber)
}

// resolvePath walks path's components from the root, returning the final
// inode. An empty path or "/" resolves to the root itself.
func (ctx *Context) resolvePath(path string) (*Inode, error) {
	current, err := ctx.ReadInode(RootInodeNumber)
	if err != nil {
		return nil, err
	}

	for _, part := range splitPath(path) {
		if !current.IsDir() {
			return nil, sffs.New(sffs.NoEnt).WithMessage("%q is not a directory", part)
		}
		rec, _, err := ctx.Lookup(current, part)
		if err != nil {
			return nil, err
		}
		current, err = ctx.ReadInode(rec.InoID)
		if err != nil {
			return nil, err
		}
	}
	return current, nil
}

// resolveParent resolves the directory containing path's final component,
// returning that directory inode plus the final component's name.
func (ctx *Context) resolveParent(path string) (*Inode, string, error) {
	parts := splitPath(path)
	if len(parts) == 0 {
		return nil, "", sffs.New(sffs.InvArg).WithMessage("path %q has no final component", path)
	}
	parentPath := "/" + strings.Join(parts[:len(parts)-1], "/")
	parent, err := ctx.resolvePath(parentPath)
	if err != nil {
		return nil, "", err
	}
	return parent, parts[len(parts)-1], nil
}

func splitPath(path string) []string {
	trimmed := strings.Trim(path, "/")
	if trimmed == "" {
		return nil
	}
	return strings.Split(trimmed, "/")
}

// fileSize derives a byte size from block count and residual bytes: the
// inode record has no direct byte-size field (spec.md §3), only a block
// count plus a residual-byte count for the tail block.
func fileSize(inode *Inode, blockSize uint32) int64 {
	if inode.BlockCount == 0 {
		return 0
	}
	return int64(inode.BlockCount-1)*int64(blockSize) + int64(inode.ResidualBytes)
}

func attrFromInode(inode *Inode, blockSize uint32) sffs.Attr {
	return sffs.Attr{
		InodeNumber: inode.InodeNumber,
		Mode:        inode.Mode,
		Nlinks:      inode.Nlinks,
		Uid:         inode.Uid,
		Gid:         inode.Gid,
		Size:        fileSize(inode, blockSize),
		BlockSize:   int64(blockSize),
		NumBlocks:   int64(inode.BlockCount),
		AccessedAt:  time.Unix(int64(inode.AccessTime), 0).UTC(),
		ChangedAt:   time.Unix(int64(inode.ChangeTime), 0).UTC(),
		ModifiedAt:  time.Unix(int64(inode.ModTime), 0).UTC(),
		CreatedAt:   time.Unix(int64(inode.CreateTime), 0).UTC(),
	}
}

// GetAttr resolves path and returns its attributes.
func (ctx *Context) GetAttr(path string) (sffs.Attr, error) {
	inode, err := ctx.resolvePath(path)
	if err != nil {
		return sffs.Attr{}, err
	}
	return attrFromInode(inode, ctx.Superblock.BlockSize), nil
}

// ReadDir resolves path as a directory and returns its entries, skipping
// the sentinel.
func (ctx *Context) ReadDir(path string) ([]sffs.DirEntry, error) {
	dir, err := ctx.resolvePath(path)
	if err != nil {
		return nil, err
	}
	if !dir.IsDir() {
		return nil, sffs.New(sffs.InvArg).WithMessage("%q is not a directory", path)
	}

	var entries []sffs.DirEntry
	err = ctx.forEachDirBlock(dir, func(_ uint32, block []byte) (bool, error) {
		offset := 0
		for offset < len(block) {
			rec, err := unmarshalRecordAt(block, offset)
			if err != nil {
				return false, err
			}
			if !rec.IsSentinel() {
				entries = append(entries, sffs.DirEntry{
					Name:        rec.Name,
					InodeNumber: rec.InoID,
					FileType:    uint8(rec.FileType),
				})
			}
			offset += int(rec.RecLen)
		}
		return false, nil
	})
	if err != nil {
		return nil, err
	}
	return entries, nil
}

// Mkdir creates a new, empty directory at path with the given mode,
// rejecting a path whose final component already exists.
func (ctx *Context) Mkdir(path string, mode uint32) error {
	if ctx.Flags.ReadOnly() {
		return sffs.New(sffs.InvArg).WithMessage("filesystem is mounted read-only")
	}

	parent, name, err := ctx.resolveParent(path)
	if err != nil {
		return err
	}
	if !parent.IsDir() {
		return sffs.New(sffs.InvArg).WithMessage("parent of %q is not a directory", path)
	}

	ino, err := ctx.AllocateInodeNumber()
	if err != nil {
		return err
	}
	child, err := NewInode(ino, sffs.S_IFDIR|(mode&^sffs.S_IFMT), parent.Uid, parent.Gid)
	if err != nil {
		return err
	}
	if err := ctx.CreateInode(child); err != nil {
		return err
	}
	if err := ctx.InitChildDirectory(child, parent.InodeNumber); err != nil {
		return err
	}
	if err := ctx.Insert(parent, name, child.InodeNumber, sffs.FileTypeNibble(child.Mode)); err != nil {
		return err
	}

	if ctx.Flags&sffs.MountAllowSync != 0 {
		return ctx.Flush()
	}
	return nil
}

// StatFS summarizes the mounted image's space and inode usage.
func (ctx *Context) StatFS() sffs.FSStat {
	sb := ctx.Superblock
	return sffs.FSStat{
		BlockSize:     int64(sb.BlockSize),
		TotalBlocks:   sb.DataBlockCount(),
		FreeBlocks:    sb.BlocksFree,
		TotalInodes:   uint64(sb.InodesTotal),
		FreeInodes:    uint64(sb.InodesFree),
		TotalGroups:   sb.GroupsTotal,
		FreeGroups:    sb.GroupsFree,
		MaxNameLength: int64(sffs.MaxNameLength),
	}
}

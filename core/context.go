package core

import (
	"io"

	"github.com/sffs-go/sffs"
	"github.com/sffs-go/sffs/bitmap"
	"github.com/sffs-go/sffs/device"
)

// Context is the single, explicit, heap-allocated mount handle SFFS
// operations take as their first argument (spec.md §5, §9): it owns the
// device handle, the authoritative in-memory superblock, and the two
// bitmaps. There is no package-level mutable state; every operation reads
// and writes through the Context it's given, and the bridge is
// responsible for serializing calls into it (spec.md §5: single-threaded,
// no internal locking).
//
// Unlike the teacher's CommonDriver, which shares one scratch buffer
// across every operation, Context deliberately holds none: each operation
// allocates its own block-sized buffer, per spec.md §9's redesign note on
// scratch-buffer sharing being a correctness hazard for reentrant calls.
type Context struct {
	stream      io.ReadWriteSeeker
	Device      *device.Device
	Superblock  *Superblock
	DataBitmap  *bitmap.Bitmap
	InodeBitmap *bitmap.Bitmap
	Flags       sffs.MountFlags
}

// Mount reads the superblock and both bitmaps off stream and returns a
// ready-to-use Context. It fails if the magic doesn't match or the
// superblock fails its self-consistency check.
func Mount(stream io.ReadWriteSeeker, flags sffs.MountFlags) (*Context, error) {
	sb, err := ReadSuperblockFrom(stream)
	if err != nil {
		return nil, err
	}
	if err := sb.SelfCheck(); err != nil {
		return nil, err
	}

	dev := device.New(stream, sb.BlockSize, sb.BlocksTotal, sb.FirstDataBlock)

	dataBitmapRaw, err := dev.ReadAbsolute(sb.DataBitmap.StartBlock, uint32(sb.DataBitmap.SizeBlocks))
	if err != nil {
		return nil, err
	}
	inodeBitmapRaw, err := dev.ReadAbsolute(sb.InodeBitmap.StartBlock, uint32(sb.InodeBitmap.SizeBlocks))
	if err != nil {
		return nil, err
	}

	return &Context{
		stream:      stream,
		Device:      dev,
		Superblock:  sb,
		DataBitmap:  bitmap.FromBytes(dataBitmapRaw, int(sb.DataBlockCount())),
		InodeBitmap: bitmap.FromBytes(inodeBitmapRaw, int(sb.InodesTotal)),
		Flags:       flags,
	}, nil
}

// Unmount flushes both bitmaps and then the superblock (see Flush). It
// does not close the stream or detach ctx from it. Calling any other
// method on ctx after Unmount is undefined.
func Unmount(ctx *Context) error {
	return ctx.Flush()
}

// Flush writes the in-memory superblock and both bitmaps back to the
// device. It's always safe to call mid-session (e.g. under
// sffs.MountAllowSync), not just at unmount.
func (ctx *Context) Flush() error {
	if err := ctx.flushBitmap(ctx.DataBitmap, ctx.Superblock.DataBitmap); err != nil {
		return err
	}
	if err := ctx.flushBitmap(ctx.InodeBitmap, ctx.Superblock.InodeBitmap); err != nil {
		return err
	}
	return ctx.Superblock.WriteTo(ctx.stream)
}

func (ctx *Context) flushBitmap(bm *bitmap.Bitmap, region regionDescriptor) error {
	regionBytes := region.SizeBlocks * uint64(ctx.Superblock.BlockSize)
	padded := make([]byte, regionBytes)
	copy(padded, bm.Bytes())
	return ctx.Device.WriteAbsolute(region.StartBlock, padded)
}

// inodesPerBlock returns how many GIT slots fit in one block.
func (sb *Superblock) inodesPerBlock() uint64 {
	return uint64(sb.BlockSize) / uint64(InodeEntrySize)
}

// ReadInodeSlot reads the raw InodeEntrySize-byte GIT slot for inode
// number ino, without consulting the inode bitmap.
func (ctx *Context) ReadInodeSlot(ino uint32) ([]byte, error) {
	perBlock := ctx.Superblock.inodesPerBlock()
	if perBlock == 0 {
		return nil, sffs.New(sffs.Init).WithMessage(
			"block size %d is smaller than one inode entry (%d bytes)", ctx.Superblock.BlockSize, InodeEntrySize)
	}
	blockOffset := uint64(ino) / perBlock
	slotInBlock := uint64(ino) % perBlock

	block, err := ctx.Device.ReadAbsolute(ctx.Superblock.InodeTable.StartBlock+blockOffset, 1)
	if err != nil {
		return nil, err
	}
	start := slotInBlock * uint64(InodeEntrySize)
	return block[start : start+uint64(InodeEntrySize)], nil
}

// WriteInodeSlot writes data (exactly InodeEntrySize bytes) into the GIT
// slot for inode number ino, read-modify-writing the containing block.
func (ctx *Context) WriteInodeSlot(ino uint32, data []byte) error {
	if len(data) != InodeEntrySize {
		return sffs.New(sffs.InvArg).WithMessage(
			"inode slot payload must be %d bytes, got %d", InodeEntrySize, len(data))
	}
	perBlock := ctx.Superblock.inodesPerBlock()
	if perBlock == 0 {
		return sffs.New(sffs.Init).WithMessage(
			"block size %d is smaller than one inode entry (%d bytes)", ctx.Superblock.BlockSize, InodeEntrySize)
	}
	blockOffset := uint64(ino) / perBlock
	slotInBlock := uint64(ino) % perBlock

	blockID := ctx.Superblock.InodeTable.StartBlock + blockOffset
	block, err := ctx.Device.ReadAbsolute(blockID, 1)
	if err != nil {
		return err
	}
	start := slotInBlock * uint64(InodeEntrySize)
	copy(block[start:start+uint64(InodeEntrySize)], data)
	return ctx.Device.WriteAbsolute(blockID, block)
}

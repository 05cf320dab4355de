package core

import (
	"time"

	"github.com/sffs-go/sffs"
)

// NewInode builds a fresh, in-memory primary inode record with the
// defaults spec.md §4.4's Create step calls for: zeroed counts, the
// caller's uid/gid, all four timestamps set to now, and a one-node list
// whose tail is itself. It does not touch the device or the bitmaps.
func NewInode(ino uint32, mode, uid, gid uint32) (*Inode, error) {
	if !sffs.HasExactlyOneFileTypeBit(mode) {
		return nil, sffs.New(sffs.InvArg).WithMessage(
			"mode 0x%X must carry exactly one file-type bit", mode)
	}

	now := uint32(time.Now().Unix())
	return &Inode{
		InodeNumber: ino,
		NextEntry:   0,
		ListSize:    1,
		LastLentry:  ino,
		Uid:         uid,
		Gid:         gid,
		Mode:        mode,
		Nlinks:      1,
		AccessTime:  now,
		ChangeTime:  now,
		ModTime:     now,
		CreateTime:  now,
	}, nil
}

// PersistInode rewrites an already-allocated inode's table slot, without
// touching free_inodes_count or the inode bitmap. Use this for every
// update after the inode's initial creation (list growth, block
// allocation, metadata changes).
func (ctx *Context) PersistInode(inode *Inode) error {
	data, err := inode.Marshal()
	if err != nil {
		return err
	}
	return ctx.WriteInodeSlot(inode.InodeNumber, data)
}

// PersistSupplementary rewrites a supplementary inode-list node's slot.
func (ctx *Context) PersistSupplementary(node *Supplementary) error {
	data, err := node.Marshal()
	if err != nil {
		return err
	}
	return ctx.WriteInodeSlot(node.InodeNumber, data)
}

// claimInodeSlot decrements free_inodes_count and sets the inode-bitmap
// bit for ino. Shared by CreateInode and the inode-list allocator's node
// creation, since both are "a brand-new GIT slot is now in use" events.
func (ctx *Context) claimInodeSlot(ino uint32) error {
	ctx.Superblock.InodesFree--
	if err := ctx.InodeBitmap.Set(int(ino)); err != nil {
		ctx.Superblock.InodesFree++
		return err
	}
	return nil
}

// CreateInode persists a brand-new primary inode for the first time,
// following spec.md §4.4's prescribed order: table write, then the
// free_inodes_count decrement, then the inode-bitmap bit set. A failure
// between the table write and the bitmap set leaves the table holding
// data for a bit that still reads as free; the next allocation scan
// simply overwrites it. The reverse order would leak a bit instead, which
// is why this order is kept rather than bitmap-first.
func (ctx *Context) CreateInode(inode *Inode) error {
	if err := ctx.PersistInode(inode); err != nil {
		return err
	}
	return ctx.claimInodeSlot(inode.InodeNumber)
}

// createSupplementary persists a brand-new supplementary inode-list node,
// following the same table-then-counter-then-bitmap order as CreateInode.
func (ctx *Context) createSupplementary(node *Supplementary) error {
	if err := ctx.PersistSupplementary(node); err != nil {
		return err
	}
	return ctx.claimInodeSlot(node.InodeNumber)
}

// ReadInode reads inode number ino, returning sffs.NoEnt if its
// inode-bitmap bit is clear.
func (ctx *Context) ReadInode(ino uint32) (*Inode, error) {
	set, err := ctx.InodeBitmap.Check(int(ino))
	if err != nil {
		return nil, err
	}
	if !set {
		return nil, sffs.New(sffs.NoEnt).WithMessage("no inode %d", ino)
	}

	data, err := ctx.ReadInodeSlot(ino)
	if err != nil {
		return nil, err
	}
	return UnmarshalInode(data)
}

// ReadSupplementary reads supplementary inode-list node ino.
func (ctx *Context) ReadSupplementary(ino uint32) (*Supplementary, error) {
	set, err := ctx.InodeBitmap.Check(int(ino))
	if err != nil {
		return nil, err
	}
	if !set {
		return nil, sffs.New(sffs.NoEnt).WithMessage("no inode %d", ino)
	}

	data, err := ctx.ReadInodeSlot(ino)
	if err != nil {
		return nil, err
	}
	return UnmarshalSupplementary(data)
}

// AllocateInodeNumber finds the first unused inode number at or past the
// superblock's reserved range, without marking it used. The caller must
// follow up with CreateInode to actually claim it.
func (ctx *Context) AllocateInodeNumber() (uint32, error) {
	start := int(ctx.Superblock.InodesReserved)
	for i := start; i < ctx.InodeBitmap.Len(); i++ {
		set, err := ctx.InodeBitmap.Check(i)
		if err != nil {
			return 0, err
		}
		if !set {
			return uint32(i), nil
		}
	}
	return 0, sffs.New(sffs.NoSpc).WithMessage("no free inode numbers")
}

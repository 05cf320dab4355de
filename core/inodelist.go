package core

import "github.com/sffs-go/sffs"

// GrowInodeList appends size supplementary records to primary's
// inode-list chain (spec.md §4.5). On success, primary's ListSize and
// LastLentry reflect the new tail and primary has already been persisted;
// the caller doesn't need to call PersistInode again just for this.
func (ctx *Context) GrowInodeList(primary *Inode, size uint32) error {
	if size == 0 {
		return nil
	}

	listCap := ctx.Superblock.ListCap
	if listCap != 0 && uint64(primary.ListSize)+uint64(size) > uint64(listCap) {
		return sffs.New(sffs.NoSpc).WithMessage(
			"growing list to %d nodes would exceed the %d-node cap", primary.ListSize+size, listCap)
	}
	if uint64(ctx.Superblock.InodesFree) < uint64(size) {
		return sffs.New(sffs.NoSpc).WithMessage(
			"need %d free inodes to grow the list, have %d", size, ctx.Superblock.InodesFree)
	}

	slots, err := ctx.chooseListSlots(primary, size)
	if err != nil {
		return err
	}

	previousTail := primary.LastLentry
	for i, ino := range slots {
		var next uint32
		if i+1 < len(slots) {
			next = slots[i+1]
		}
		node := &Supplementary{InodeNumber: ino, NextEntry: next}
		if err := ctx.createSupplementary(node); err != nil {
			return err
		}
	}

	if primary.LastLentry == primary.InodeNumber {
		// Empty chain: primary's own next-entry becomes the new head.
		primary.NextEntry = slots[0]
	} else {
		tail, err := ctx.ReadSupplementary(previousTail)
		if err != nil {
			return err
		}
		tail.NextEntry = slots[0]
		if err := ctx.PersistSupplementary(tail); err != nil {
			return err
		}
	}

	primary.ListSize += size
	primary.LastLentry = slots[len(slots)-1]
	return ctx.PersistInode(primary)
}

// chooseListSlots picks size inode numbers to use as new list nodes,
// trying the sequential range right after the list's current tail
// (LastLentry) first, and falling back to a scan for any size free slots.
func (ctx *Context) chooseListSlots(primary *Inode, size uint32) ([]uint32, error) {
	perBlock := ctx.Superblock.inodesPerBlock()
	inoModPerBlock := uint64(primary.InodeNumber) % perBlock

	if inoModPerBlock+uint64(size) <= perBlock {
		start := primary.LastLentry + 1
		allClear := true
		for i := uint32(0); i < size; i++ {
			candidate := start + i
			if uint64(candidate) >= uint64(ctx.InodeBitmap.Len()) {
				allClear = false
				break
			}
			set, err := ctx.InodeBitmap.Check(int(candidate))
			if err != nil {
				return nil, err
			}
			if set {
				allClear = false
				break
			}
		}
		if allClear {
			slots := make([]uint32, size)
			for i := uint32(0); i < size; i++ {
				slots[i] = start + i
			}
			return slots, nil
		}
	}

	slots := make([]uint32, 0, size)
	for i := int(ctx.Superblock.InodesReserved); i < ctx.InodeBitmap.Len() && uint32(len(slots)) < size; i++ {
		set, err := ctx.InodeBitmap.Check(i)
		if err != nil {
			return nil, err
		}
		if !set {
			slots = append(slots, uint32(i))
		}
	}
	if uint32(len(slots)) < size {
		return nil, sffs.New(sffs.NoSpc).WithMessage(
			"need %d free inode numbers to grow the list, found %d", size, len(slots))
	}
	return slots, nil
}

package core

import "github.com/sffs-go/sffs"

// AllocateBlocks runs the three-tier allocation policy of spec.md §4.6
// (extend last group, then a fresh group, then a linear scan) and commits
// the result in two phases: pointer slots first, then bitmap bits, with
// bitmap-phase rollback on partial failure. On success primary has
// already been persisted with its updated BlockCount.
func (ctx *Context) AllocateBlocks(primary *Inode, count uint32) ([]uint32, error) {
	if count == 0 {
		return nil, nil
	}

	requested, err := ctx.applyPreallocation(primary, count)
	if err != nil {
		return nil, err
	}

	if err := ctx.ensureCapacity(primary, requested); err != nil {
		return nil, err
	}

	chosen, allocatedGroups, err := ctx.selectBlocks(primary, requested)
	if err != nil {
		return nil, err
	}

	if err := ctx.commitPointers(primary, chosen); err != nil {
		return nil, err
	}
	primary.BlockCount += uint32(len(chosen))
	ctx.Superblock.BlocksFree -= uint64(len(chosen))
	ctx.Superblock.GroupsFree -= uint32(allocatedGroups)
	if err := ctx.PersistInode(primary); err != nil {
		return nil, err
	}

	if err := ctx.commitBitmapBits(chosen); err != nil {
		return nil, err
	}
	return chosen, nil
}

// commitBitmapBits is Phase B of the two-phase commit: it marks every
// chosen block used in the data bitmap. If any Set fails partway through
// (a bit that was supposed to be clear turns out not to be — a filesystem
// invariant violation, not an expected race, per spec.md §5's
// single-threaded model), every bit this call itself set is cleared again
// before returning the error, so a failed allocation never leaves the
// bitmap half-committed.
func (ctx *Context) commitBitmapBits(chosen []uint32) error {
	for i, blk := range chosen {
		if err := ctx.DataBitmap.Set(int(blk)); err != nil {
			for j := 0; j < i; j++ {
				_ = ctx.DataBitmap.Clear(int(chosen[j]))
			}
			return err
		}
	}
	return nil
}

// applyPreallocation boosts count by the mode-appropriate preallocation
// setting, clipping back to count if the boosted total can't be
// satisfied, and failing outright if even count can't be.
func (ctx *Context) applyPreallocation(primary *Inode, count uint32) (uint32, error) {
	free := ctx.Superblock.BlocksFree
	if uint64(count) > free {
		return 0, sffs.New(sffs.NoSpc).WithMessage(
			"need %d free blocks, have %d", count, free)
	}

	boost := uint64(count)
	if primary.IsDir() {
		boost += uint64(ctx.Superblock.PreallocDirBlocks)
	} else {
		boost += uint64(ctx.Superblock.PreallocBlocks)
	}
	if boost <= free {
		return uint32(boost), nil
	}
	return count, nil
}

// ensureCapacity grows the inode list, if needed, so primary has enough
// pointer slots to hold count more blocks.
func (ctx *Context) ensureCapacity(primary *Inode, count uint32) error {
	capacity := uint64(PrimaryPointerCount) + uint64(primary.ListSize-1)*uint64(SupplementaryPointerCount)
	needed := uint64(primary.BlockCount) + uint64(count)
	if needed <= capacity {
		return nil
	}
	deficit := needed - capacity
	growBy := ceilDiv(deficit, uint64(SupplementaryPointerCount))
	return ctx.GrowInodeList(primary, uint32(growBy))
}

// selectBlocks chooses `count` free data-relative block numbers without
// yet marking them used, following the three-tier policy. It returns the
// chosen IDs and how many previously-empty groups were touched (for the
// free_groups counter). A group counts once no matter which of the three
// steps picked blocks from it, so a brand-new file's first blocks landing
// in an empty group are counted the same as blocks picked in step 2's
// fresh-group scan.
func (ctx *Context) selectBlocks(primary *Inode, count uint32) ([]uint32, uint32, error) {
	chosen := make([]uint32, 0, count)
	chosenSet := make(map[uint32]bool, count)
	touchedGroups := make(map[uint64]bool)

	blocksPerGroup := uint64(ctx.Superblock.BlocksPerGroup)
	dataBlocks := ctx.Superblock.DataBlockCount()
	numGroups := ceilDiv(dataBlocks, blocksPerGroup)

	take := func(bit uint64) {
		chosen = append(chosen, uint32(bit))
		chosenSet[uint32(bit)] = true
		touchedGroups[bit/blocksPerGroup] = true
	}
	remaining := func() int { return int(count) - len(chosen) }

	// Data block 0 is never handed out: a zero pointer slot means "unset"
	// to ResolveBlock and forEachDirBlock.
	chosenSet[0] = true

	// Step 1: extend the last group the file already has a block in.
	var startGroup, startOffset uint64
	if primary.BlockCount == 0 {
		startGroup, startOffset = 0, 0
	} else {
		last, err := ctx.ResolveBlock(primary, 0, ResolveLast)
		if err != nil {
			return nil, 0, err
		}
		startGroup = uint64(last.BlockID) / blocksPerGroup
		startOffset = uint64(last.BlockID)%blocksPerGroup + 1
	}
	if startGroup < numGroups {
		groupStart := startGroup * blocksPerGroup
		groupEnd := groupStart + blocksPerGroup
		if groupEnd > dataBlocks {
			groupEnd = dataBlocks
		}
		for bit := groupStart + startOffset; bit < groupEnd && remaining() > 0; bit++ {
			if chosenSet[uint32(bit)] {
				continue
			}
			set, err := ctx.DataBitmap.Check(int(bit))
			if err != nil {
				return nil, 0, err
			}
			if !set {
				take(bit)
			}
		}
	}

	// Step 2: fresh, entirely-empty groups.
	for g := uint64(0); g < numGroups && remaining() > 0; g++ {
		empty, err := ctx.DataBitmap.GroupIsEmpty(int(g), int(blocksPerGroup))
		if err != nil {
			return nil, 0, err
		}
		if !empty {
			continue
		}
		groupStart := g * blocksPerGroup
		groupEnd := groupStart + blocksPerGroup
		if groupEnd > dataBlocks {
			groupEnd = dataBlocks
		}
		for bit := groupStart; bit < groupEnd && remaining() > 0; bit++ {
			if chosenSet[uint32(bit)] {
				continue
			}
			take(bit)
		}
	}

	// Step 3: linear scan for any remaining clear bit.
	for bit := uint64(0); bit < dataBlocks && remaining() > 0; bit++ {
		if chosenSet[uint32(bit)] {
			continue
		}
		set, err := ctx.DataBitmap.Check(int(bit))
		if err != nil {
			return nil, 0, err
		}
		if !set {
			take(bit)
		}
	}

	if remaining() > 0 {
		return nil, 0, sffs.New(sffs.NoSpc).WithMessage(
			"could not find %d free data blocks (found %d)", count, len(chosen))
	}

	// Count, among the groups this selection touched, how many were
	// entirely empty beforehand — the real bitmap hasn't been mutated yet,
	// so GroupIsEmpty still reports the pre-allocation state.
	var allocatedGroups uint32
	for g := range touchedGroups {
		empty, err := ctx.DataBitmap.GroupIsEmpty(int(g), int(blocksPerGroup))
		if err != nil {
			return nil, 0, err
		}
		if empty {
			allocatedGroups++
		}
	}
	return chosen, allocatedGroups, nil
}

// commitPointers writes chosen block IDs into primary's inode-list
// pointer slots, starting at the first slot past the file's current
// BlockCount, filling the primary's pointer area before spilling into
// supplementary records in chain order.
func (ctx *Context) commitPointers(primary *Inode, chosen []uint32) error {
	remaining := chosen

	start := int(primary.BlockCount)
	if start < PrimaryPointerCount {
		room := PrimaryPointerCount - start
		n := room
		if n > len(remaining) {
			n = len(remaining)
		}
		copy(primary.Pointers[start:start+n], remaining[:n])
		remaining = remaining[n:]
	}
	if len(remaining) == 0 {
		return nil
	}

	blocksPastPrimary := int64(primary.BlockCount) - PrimaryPointerCount
	if blocksPastPrimary < 0 {
		blocksPastPrimary = 0
	}
	nodeIndex := blocksPastPrimary / SupplementaryPointerCount
	offsetInNode := int(blocksPastPrimary % SupplementaryPointerCount)

	cur := primary.NextEntry
	for i := int64(0); i < nodeIndex; i++ {
		if cur == 0 {
			return sffs.New(sffs.Fs).WithMessage("inode list chain shorter than expected")
		}
		node, err := ctx.ReadSupplementary(cur)
		if err != nil {
			return err
		}
		cur = node.NextEntry
	}

	for len(remaining) > 0 {
		if cur == 0 {
			return sffs.New(sffs.Fs).WithMessage("inode list chain ran out of nodes while committing pointers")
		}
		node, err := ctx.ReadSupplementary(cur)
		if err != nil {
			return err
		}

		room := SupplementaryPointerCount - offsetInNode
		n := room
		if n > len(remaining) {
			n = len(remaining)
		}
		copy(node.Pointers[offsetInNode:offsetInNode+n], remaining[:n])
		remaining = remaining[n:]
		if err := ctx.PersistSupplementary(node); err != nil {
			return err
		}

		offsetInNode = 0
		cur = node.NextEntry
	}
	return nil
}

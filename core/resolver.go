package core

import "github.com/sffs-go/sffs"

// ResolveFlags modifies ResolveBlock's behavior (spec.md §4.7).
type ResolveFlags uint8

const (
	// ResolveLast substitutes n := i_blks_count-1 before resolving, i.e.
	// asks for the file's tail pointer slot instead of a specific index.
	ResolveLast ResolveFlags = 1 << iota
	// ResolveRead also fetches the resolved block's contents.
	ResolveRead
)

// ResolveResult is what ResolveBlock returns: the pointer slot's content
// (a data-relative block number, or 0 if unset), which inode record owns
// the slot, the slot's index within that record's pointer array, and
// optionally the block's contents.
type ResolveResult struct {
	BlockID     uint32
	OwningInode uint32
	SlotIndex   int
	Contents    []byte
}

// ResolveBlock walks primary's inode list to find the pointer slot for
// logical block n (0-based within the file).
func (ctx *Context) ResolveBlock(primary *Inode, n uint64, flags ResolveFlags) (*ResolveResult, error) {
	if flags&ResolveLast != 0 {
		if primary.BlockCount == 0 {
			n = 0
		} else {
			n = uint64(primary.BlockCount) - 1
		}
	}

	var result *ResolveResult
	if n < PrimaryPointerCount {
		result = &ResolveResult{
			BlockID:     primary.Pointers[n],
			OwningInode: primary.InodeNumber,
			SlotIndex:   int(n),
		}
	} else {
		m := n - PrimaryPointerCount
		nodeIndex := m / SupplementaryPointerCount
		slotOffset := m % SupplementaryPointerCount

		cur := primary.NextEntry
		var node *Supplementary
		for i := uint64(0); ; i++ {
			if cur == 0 {
				return nil, sffs.New(sffs.Fs).WithMessage(
					"inode list chain for inode %d ended before reaching block %d", primary.InodeNumber, n)
			}
			n2, err := ctx.ReadSupplementary(cur)
			if err != nil {
				return nil, err
			}
			node = n2
			if i == nodeIndex {
				break
			}
			cur = node.NextEntry
		}

		result = &ResolveResult{
			BlockID:     node.Pointers[slotOffset],
			OwningInode: node.InodeNumber,
			SlotIndex:   int(slotOffset),
		}
	}

	if flags&ResolveRead != 0 && result.BlockID != 0 {
		data, err := ctx.Device.ReadData(uint64(result.BlockID), 1)
		if err != nil {
			return nil, err
		}
		result.Contents = data
	}
	return result, nil
}

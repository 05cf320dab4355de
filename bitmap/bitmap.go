// Package bitmap implements the per-bit test/set/clear engine SFFS uses
// over its two on-disk bitmaps (data, inode). Unlike a plain allocation
// bitmap, Set refuses to set a bit that's already set: a double-set is a
// filesystem invariant violation, not a normal allocation race, since SFFS
// is single-threaded (§5) and a collision here means something upstream
// already got this wrong.
package bitmap

import (
	gobitmap "github.com/boljen/go-bitmap"

	"github.com/sffs-go/sffs"
)

// Bitmap wraps a fixed-size bit-addressed region with the four operations
// the core needs: Check, Set, Clear, and ReadGroupWord.
type Bitmap struct {
	bits  gobitmap.Bitmap
	nbits int
}

// New allocates a bitmap with room for nbits bits, all initially clear.
func New(nbits int) *Bitmap {
	return &Bitmap{bits: gobitmap.New(nbits), nbits: nbits}
}

// FromBytes wraps an existing byte slice (e.g. one just read off the
// device) as a bitmap without copying it.
func FromBytes(data []byte, nbits int) *Bitmap {
	return &Bitmap{bits: gobitmap.Bitmap(data), nbits: nbits}
}

// Len returns the number of addressable bits.
func (b *Bitmap) Len() int {
	return b.nbits
}

// Bytes returns the underlying byte slice, suitable for writing straight
// back to the device.
func (b *Bitmap) Bytes() []byte {
	return b.bits.Data(false)
}

func (b *Bitmap) checkRange(bit int) error {
	if bit < 0 || bit >= b.nbits {
		return sffs.New(sffs.InvArg).WithMessage("bit %d not in range [0, %d)", bit, b.nbits)
	}
	return nil
}

// Check reports whether bit is set.
func (b *Bitmap) Check(bit int) (bool, error) {
	if err := b.checkRange(bit); err != nil {
		return false, err
	}
	return b.bits.Get(bit), nil
}

// Set marks bit as in-use. It refuses to set a bit that's already set,
// signaling the filesystem invariant violation this implies (spec.md §4.2).
func (b *Bitmap) Set(bit int) error {
	if err := b.checkRange(bit); err != nil {
		return err
	}
	if b.bits.Get(bit) {
		return sffs.New(sffs.Fs).WithMessage("bit %d is already set", bit)
	}
	b.bits.Set(bit, true)
	return nil
}

// Clear marks bit as free, unconditionally.
func (b *Bitmap) Clear(bit int) error {
	if err := b.checkRange(bit); err != nil {
		return err
	}
	b.bits.Set(bit, false)
	return nil
}

// CountFree returns the number of clear bits in [start, b.Len()).
func (b *Bitmap) CountFree(start int) int {
	free := 0
	for i := start; i < b.nbits; i++ {
		if !b.bits.Get(i) {
			free++
		}
	}
	return free
}

// ReadGroupWord returns the bits belonging to group groupIndex, sized
// blocksPerGroup bits wide, as a byte slice. Used by the block allocator's
// "is this group entirely empty?" fast path (spec.md §4.6 step 2): a group
// is empty iff every byte in the returned slice is zero.
func (b *Bitmap) ReadGroupWord(groupIndex, blocksPerGroup int) ([]byte, error) {
	start := groupIndex * blocksPerGroup
	if start < 0 || start >= b.nbits {
		return nil, sffs.New(sffs.InvArg).WithMessage(
			"group %d (blocks_per_group=%d) out of range for a %d-bit bitmap",
			groupIndex, blocksPerGroup, b.nbits)
	}
	end := start + blocksPerGroup
	if end > b.nbits {
		end = b.nbits
	}

	startByte := start / 8
	endByte := (end + 7) / 8
	return b.Bytes()[startByte:endByte], nil
}

// GroupIsEmpty reports whether every bit in group groupIndex is clear.
func (b *Bitmap) GroupIsEmpty(groupIndex, blocksPerGroup int) (bool, error) {
	word, err := b.ReadGroupWord(groupIndex, blocksPerGroup)
	if err != nil {
		return false, err
	}
	for _, byteVal := range word {
		if byteVal != 0 {
			return false, nil
		}
	}
	return true, nil
}

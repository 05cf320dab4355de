// Package device implements SFFS's block-granular positioned I/O against
// the backing image: absolute and data-relative addressing over whole
// blocks, with a durable flush after every write (spec.md §4.1).
package device

import (
	"io"

	"github.com/sffs-go/sffs"
)

// Flusher is implemented by backing streams that can force a durable
// write-back (e.g. *os.File.Sync). Streams that don't implement it (such
// as in-memory test fixtures) are simply not flushed.
type Flusher interface {
	Sync() error
}

// Device wraps an io.ReadWriteSeeker to make it addressable in whole
// blocks, with absolute or data-relative block numbering. The exported
// fields are informational; use Resize to change TotalBlocks.
type Device struct {
	// BlockSize is the size of one block, in bytes. All reads and writes
	// are whole-block.
	BlockSize uint32
	// TotalBlocks is the total number of addressable blocks, including the
	// boot area.
	TotalBlocks uint64
	// DataStart is the absolute block number where the data region begins;
	// data-relative addressing adds this offset. It is the sum of the boot
	// reservation plus the three metadata region sizes (spec.md §4.1).
	DataStart uint64

	stream io.ReadWriteSeeker
}

// New wraps stream as a Device with the given geometry. dataStart is the
// absolute block index of the first data block, used to translate
// data-relative block numbers.
func New(stream io.ReadWriteSeeker, blockSize uint32, totalBlocks, dataStart uint64) *Device {
	return &Device{
		BlockSize:   blockSize,
		TotalBlocks: totalBlocks,
		DataStart:   dataStart,
		stream:      stream,
	}
}

func (d *Device) offsetOf(blockID uint64) (int64, error) {
	if blockID >= d.TotalBlocks {
		return 0, sffs.New(sffs.InvArg).WithMessage(
			"block %d not in range [0, %d)", blockID, d.TotalBlocks)
	}
	return int64(blockID) * int64(d.BlockSize), nil
}

func (d *Device) checkBounds(blockID uint64, numBlocks uint32) error {
	if blockID == 0 {
		return sffs.New(sffs.InvArg).WithMessage("block 0 (boot area) may not be written")
	}
	if blockID >= d.TotalBlocks {
		return sffs.New(sffs.InvArg).WithMessage(
			"block %d not in range [0, %d)", blockID, d.TotalBlocks)
	}
	if blockID+uint64(numBlocks) > d.TotalBlocks {
		return sffs.New(sffs.InvArg).WithMessage(
			"block %d plus %d blocks extends past end of image (%d blocks)",
			blockID, numBlocks, d.TotalBlocks)
	}
	return nil
}

func (d *Device) seekTo(blockID uint64) error {
	offset, err := d.offsetOf(blockID)
	if err != nil {
		return err
	}
	if _, err := d.stream.Seek(offset, io.SeekStart); err != nil {
		return sffs.New(sffs.DevSeek).Wrap(err)
	}
	return nil
}

// ReadAbsolute reads numBlocks whole blocks starting at the absolute block
// ID blockID.
func (d *Device) ReadAbsolute(blockID uint64, numBlocks uint32) ([]byte, error) {
	if blockID >= d.TotalBlocks || blockID+uint64(numBlocks) > d.TotalBlocks {
		return nil, sffs.New(sffs.InvArg).WithMessage(
			"block %d plus %d blocks extends past end of image (%d blocks)",
			blockID, numBlocks, d.TotalBlocks)
	}
	if err := d.seekTo(blockID); err != nil {
		return nil, err
	}

	buf := make([]byte, uint64(numBlocks)*uint64(d.BlockSize))
	if _, err := io.ReadFull(d.stream, buf); err != nil {
		return nil, sffs.New(sffs.DevRead).Wrap(err)
	}
	return buf, nil
}

// WriteAbsolute writes data, which must be a whole multiple of BlockSize,
// starting at the absolute block ID blockID. Block 0 (the boot area) may
// never be written. The write is followed by a durable flush if the
// backing stream supports one.
func (d *Device) WriteAbsolute(blockID uint64, data []byte) error {
	if uint32(len(data))%d.BlockSize != 0 {
		return sffs.New(sffs.InvArg).WithMessage(
			"data length %d is not a multiple of the block size (%d)", len(data), d.BlockSize)
	}
	numBlocks := uint32(uint64(len(data)) / uint64(d.BlockSize))
	if err := d.checkBounds(blockID, numBlocks); err != nil {
		return err
	}
	if err := d.seekTo(blockID); err != nil {
		return err
	}
	if _, err := d.stream.Write(data); err != nil {
		return sffs.New(sffs.DevWrite).Wrap(err)
	}
	if flusher, ok := d.stream.(Flusher); ok {
		if err := flusher.Sync(); err != nil {
			return sffs.New(sffs.DevWrite).Wrap(err)
		}
	}
	return nil
}

// ReadData reads numBlocks blocks starting at the data-relative block
// number dataBlockID (0 is the first data block).
func (d *Device) ReadData(dataBlockID uint64, numBlocks uint32) ([]byte, error) {
	return d.ReadAbsolute(d.DataStart+dataBlockID, numBlocks)
}

// WriteData writes data starting at the data-relative block number
// dataBlockID.
func (d *Device) WriteData(dataBlockID uint64, data []byte) error {
	return d.WriteAbsolute(d.DataStart+dataBlockID, data)
}

// Resize grows or shrinks the device to newTotalBlocks. Growing appends
// null blocks; shrinking requires the backing stream to support
// truncation.
func (d *Device) Resize(newTotalBlocks uint64) error {
	if newTotalBlocks == d.TotalBlocks {
		return nil
	}

	if newTotalBlocks > d.TotalBlocks {
		if _, err := d.stream.Seek(0, io.SeekEnd); err != nil {
			return sffs.New(sffs.DevSeek).Wrap(err)
		}
		missing := newTotalBlocks - d.TotalBlocks
		zeros := make([]byte, missing*uint64(d.BlockSize))
		if _, err := d.stream.Write(zeros); err != nil {
			return sffs.New(sffs.DevWrite).Wrap(err)
		}
		d.TotalBlocks = newTotalBlocks
		return nil
	}

	truncator, ok := d.stream.(interface{ Truncate(int64) error })
	if !ok {
		return sffs.New(sffs.InvArg).WithMessage(
			"backing stream does not support truncation, cannot shrink to %d blocks", newTotalBlocks)
	}
	if err := truncator.Truncate(int64(newTotalBlocks) * int64(d.BlockSize)); err != nil {
		return sffs.New(sffs.DevWrite).Wrap(err)
	}
	d.TotalBlocks = newTotalBlocks
	return nil
}
